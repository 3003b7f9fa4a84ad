package cli

import (
	"context"
	"errors"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Execute runs petctl with args and releases the app afterwards.
func Execute(ctx context.Context, v *viper.Viper, in io.Reader, args []string) error {
	app := NewApp(v, in)
	root := NewRootCommand(app)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	return errors.Join(err, app.Close())
}

// NewRootCommand builds the petctl command tree around app. Flags are bound
// to app's viper.
func NewRootCommand(app *App) *cobra.Command {
	v := app.v
	root := &cobra.Command{
		Use:           "petctl",
		Short:         "Manage your pets",
		Long:          `petctl keeps a list of your pets, either on this machine (--local) or on a pet-manager server you sign in to.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.Bool("local", false, "Keep pets in the local data directory instead of the server")
	flags.String("server", "", "Pet-manager server URL")
	flags.String("data-dir", "", "Directory for the local database and config.toml")
	flags.BoolP("verbose", "v", false, "Enable debug logging")

	for key, name := range map[string]string{
		"LOCAL":      "local",
		"SERVER_URL": "server",
		"DATA_DIR":   "data-dir",
		"VERBOSE":    "verbose",
	} {
		_ = v.BindPFlag(key, flags.Lookup(name))
	}

	root.AddCommand(newAuthCommand(app), newPetsCommand(app))
	return root
}
