// Package cli implements the petctl command tree.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/term"
	"gorm.io/gorm"

	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/client"
	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/config"
	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/platform/database"
	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/platform/httpclient"
	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/platform/logger"
	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/session"
	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/store"
	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/store/blob"
	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/view"
)

// ErrNotSignedIn is returned by pet commands in remote mode without a session.
var ErrNotSignedIn = errors.New("not signed in; run `petctl auth signin` or use --local")

// App holds the petctl dependencies. They are built on first use by the
// command being run.
type App struct {
	v      *viper.Viper
	rawIn  io.Reader
	in     *bufio.Reader
	cfg    *config.ClientConfig
	logger *zap.Logger

	db       *gorm.DB
	blobs    blob.Store
	http     *httpclient.Client
	provider *client.AuthProvider
	sessions *session.Manager
	board    *view.Board
}

// NewApp creates an App reading prompts from in.
func NewApp(v *viper.Viper, in io.Reader) *App {
	return &App{v: v, rawIn: in, in: bufio.NewReader(in)}
}

// setup resolves configuration and opens the data directory.
func (a *App) setup() error {
	if a.cfg != nil {
		return nil
	}
	cfg, err := config.LoadClient(a.v)
	if err != nil {
		return err
	}
	log, err := logger.NewCLI(cfg.Verbose)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	db, err := database.OpenSQLite(cfg.DatabasePath())
	if err != nil {
		return err
	}
	blobs, err := blob.NewGormStore(db, blob.WithQuota(cfg.BlobQuotaBytes))
	if err != nil {
		return err
	}

	a.cfg, a.logger, a.db, a.blobs = cfg, log, db, blobs
	a.logger.Debug("petctl configured",
		zap.String("data_dir", cfg.DataDir),
		zap.String("server", cfg.ServerURL),
		zap.Bool("local", cfg.Local),
	)
	return nil
}

// Sessions returns the initialized session manager.
func (a *App) Sessions(ctx context.Context) (*session.Manager, error) {
	if err := a.setup(); err != nil {
		return nil, err
	}
	if a.sessions != nil {
		return a.sessions, nil
	}
	hc, err := httpclient.New(a.cfg.ServerURL, a.cfg.Timeout, nil)
	if err != nil {
		return nil, err
	}
	a.http = hc
	a.provider = client.NewAuthProvider(hc, a.blobs, a.logger.Named("auth"))
	a.sessions = session.NewManager(a.provider, a.logger.Named("session"))
	if err := a.sessions.Initialize(ctx); err != nil {
		a.logger.Warn("could not restore session", zap.Error(err))
	}
	return a.sessions, nil
}

// Board returns the pet board over the configured store variant, loaded.
func (a *App) Board(ctx context.Context) (*view.Board, error) {
	if a.board != nil {
		return a.board, nil
	}
	if err := a.setup(); err != nil {
		return nil, err
	}

	var s store.Store
	if a.cfg.Local {
		local, err := store.NewLocalStore(ctx, a.blobs, a.logger.Named("store"))
		if err != nil {
			return nil, err
		}
		s = local
	} else {
		sessions, err := a.Sessions(ctx)
		if err != nil {
			return nil, err
		}
		if sessions.Principal() == nil {
			return nil, ErrNotSignedIn
		}
		remote := store.NewRemoteStore(sessions, client.NewPetBackend(a.http, a.provider), a.logger.Named("store"))
		if err := remote.Fetch(ctx); err != nil {
			return nil, fmt.Errorf("load pets: %w", err)
		}
		s = remote
	}
	a.board = view.NewBoard(s)
	return a.board, nil
}

// Close releases the database and the provider subscription.
func (a *App) Close() error {
	if a.sessions != nil {
		a.sessions.Close()
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	if a.db == nil {
		return nil
	}
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// prompt prints label and reads one line.
func (a *App) prompt(out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label)
	line, err := a.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// promptSecret is prompt without echo when reading from a terminal.
func (a *App) promptSecret(out io.Writer, label string) (string, error) {
	f, ok := a.rawIn.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return a.prompt(out, label)
	}
	fmt.Fprint(out, label)
	secret, err := term.ReadPassword(int(f.Fd()))
	fmt.Fprintln(out)
	if err != nil {
		return "", err
	}
	return string(secret), nil
}
