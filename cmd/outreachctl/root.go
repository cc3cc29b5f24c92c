package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"

	"voice-outreach/internal/app"
	"voice-outreach/internal/config"
	"voice-outreach/pkg/logger"

	"github.com/spf13/cobra"
)

// env holds what commands need from the outside world, so tests can
// substitute config and the object graph.
type env struct {
	loadConfig func() (config.Config, error)
	openApp    func(ctx context.Context, cfg config.Config, log *slog.Logger) (*app.App, error)
	newLogger  func(appEnv string) *slog.Logger
}

func defaultEnv() env {
	return env{
		loadConfig: config.Load,
		openApp: func(ctx context.Context, cfg config.Config, log *slog.Logger) (*app.App, error) {
			return app.Open(ctx, cfg, log, nil)
		},
		newLogger: logger.New,
	}
}

func newRootCommand(e env) *cobra.Command {
	root := &cobra.Command{
		Use:           "outreachctl",
		Short:         "run and inspect voice outreach campaigns",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		dispatchCommand(e),
		screenCommand(e),
		statsCommand(e),
		migrateCommand(e),
		tokenCommand(e),
	)
	return root
}

// setup loads config and puts the process logger in ctx.
func (e env) setup(cmd *cobra.Command) (context.Context, config.Config, *slog.Logger, error) {
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, config.Config{}, nil, err
	}
	log := e.newLogger(cfg.App.Env)
	slog.SetDefault(log)
	return logger.With(cmd.Context(), log), cfg, log, nil
}

// withApp runs fn against a fully wired App and closes it afterwards.
func (e env) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	ctx, cfg, log, err := e.setup(cmd)
	if err != nil {
		return err
	}
	a, err := e.openApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error("close failed", "err", err)
		}
	}()
	return fn(ctx, a)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
