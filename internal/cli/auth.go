package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/session"
)

func newAuthCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Sign up, sign in and out",
	}
	cmd.AddCommand(
		newCredentialsCommand(app, "signup", "Create an account and sign in", (*session.Manager).SignUp),
		newCredentialsCommand(app, "signin", "Sign in to an existing account", (*session.Manager).SignIn),
		newSignOutCommand(app),
		newWhoAmICommand(app),
	)
	return cmd
}

type credentialsFunc func(*session.Manager, context.Context, string, string) error

func newCredentialsCommand(app *App, use, short string, run credentialsFunc) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			var err error
			if email == "" {
				if email, err = app.prompt(out, "Email: "); err != nil {
					return err
				}
			}
			if password == "" {
				if password, err = app.promptSecret(out, "Password: "); err != nil {
					return err
				}
			}

			sessions, err := app.Sessions(cmd.Context())
			if err != nil {
				return err
			}
			if err := run(sessions, cmd.Context(), email, password); err != nil {
				return authFailure(err)
			}
			fmt.Fprintf(out, "Signed in as %s\n", sessions.Principal().Email)
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "Account email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Account password (prompted when empty)")
	return cmd
}

func newSignOutCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "signout",
		Short: "Sign out and forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sessions, err := app.Sessions(cmd.Context())
			if err != nil {
				return err
			}
			if err := sessions.SignOut(cmd.Context()); err != nil {
				app.logger.Warn("server sign-out failed; local session cleared", zap.Error(err))
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func newWhoAmICommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sessions, err := app.Sessions(cmd.Context())
			if err != nil {
				return err
			}
			p := sessions.Principal()
			if p == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Not signed in")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", p.Email, p.ID)
			return nil
		},
	}
}

// authFailure turns provider errors into user-facing messages.
func authFailure(err error) error {
	var ae *session.AuthError
	if !errors.As(err, &ae) {
		return err
	}
	switch ae.Code {
	case session.CodeInvalidCredentials:
		return errors.New("invalid email or password")
	case session.CodeAccountNotFound:
		return errors.New("no account with that email")
	case session.CodeAlreadyRegistered:
		return errors.New("an account with that email already exists")
	case session.CodeMalformed:
		return fmt.Errorf("rejected: %s", ae.Message)
	case session.CodeRateLimited:
		return errors.New("too many attempts, try again later")
	case session.CodeUnavailable:
		return fmt.Errorf("server unavailable: %w", err)
	}
	return err
}
