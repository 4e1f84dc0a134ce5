package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/foldersync/internal/config"
	"github.com/roach88/foldersync/internal/engine"
	"github.com/roach88/foldersync/internal/gitstore"
	"github.com/roach88/foldersync/internal/model"
	"github.com/roach88/foldersync/internal/service"
	"github.com/roach88/foldersync/internal/store"
)

// App bundles the collaborators a workbook command needs.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Store   *store.Store
	Repo    *gitstore.Repo
	Service *service.Service
	Engine  *engine.Engine

	logCloser io.Closer
}

// loadConfig resolves configuration for cmd. Failures are command errors.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(".", cmd.Flags())
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "load config", err)
	}
	return cfg, nil
}

// openApp loads configuration and opens the store and the workbook
// repository. The caller must Close the returned App.
func openApp(ctx context.Context, opts *RootOptions, cmd *cobra.Command) (*App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if cfg.Workbook == "" {
		return nil, NewExitError(ExitCommandError, "workbook is required (--workbook or FOLDERSYNC_WORKBOOK)")
	}

	logger, closer, err := config.NewLogger(cfg.Log, cmd.ErrOrStderr(), opts.Verbose)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "create logger", err)
	}
	app := &App{Config: cfg, Logger: logger, logCloser: closer}

	if dir := filepath.Dir(cfg.DB); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			app.Close()
			return nil, WrapExitError(ExitCommandError, "create database directory", err)
		}
	}
	app.Store, err = store.Open(cfg.DB)
	if err != nil {
		app.Close()
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("open database %s", cfg.DB), err)
	}

	app.Repo, err = gitstore.Open(ctx, cfg.Repo, cfg.Workbook,
		gitstore.WithBranch(cfg.Branch),
		gitstore.WithLogger(logger))
	if err != nil {
		app.Close()
		return nil, WrapExitError(ExitCommandError, "open workbook", err)
	}

	app.Service = service.New(app.Store, app.Repo, service.WithLogger(logger))
	app.Engine = engine.New(app.Store, app.Repo, app.Repo,
		engine.WithBranch(cfg.Branch),
		engine.WithLockDir(filepath.Join(filepath.Dir(cfg.DB), "locks")),
		engine.WithLogger(logger))

	logger.Debug("opened workbook",
		"workbook", cfg.Workbook,
		"repo", cfg.Repo,
		"branch", cfg.Branch,
		"db", cfg.DB,
		"config", cfg.ConfigFile)
	return app, nil
}

// Actor returns the configured actor.
func (a *App) Actor() model.Actor {
	return model.Actor{UserID: a.Config.Actor}
}

// Close releases the store and the log file.
func (a *App) Close() error {
	var errs []error
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	if a.logCloser != nil {
		errs = append(errs, a.logCloser.Close())
	}
	return errors.Join(errs...)
}

// handleAppError prints an openApp failure and returns it unchanged so the
// exit code survives.
func handleAppError(f *OutputFormatter, err error) error {
	code := ErrCodeConfig
	if errors.Is(err, gitstore.ErrGitNotFound) {
		code = ErrCodeNotFound
	}
	_ = f.Error(code, err.Error(), nil)
	return err
}
