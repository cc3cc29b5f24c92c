package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"voice-outreach/migrations"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/spf13/cobra"
)

var errMigrateArgs = errors.New("usage: migrate up | down [N] | version")

// migrateLogger adapts slog to migrate.Logger.
type migrateLogger struct{ log *slog.Logger }

func (l migrateLogger) Printf(format string, v ...any) {
	l.log.Info(fmt.Sprintf(format, v...), "component", "migrate")
}

func (l migrateLogger) Verbose() bool { return false }

func migrateCommand(e env) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate up | down [N] | version",
		Short: "apply or roll back the embedded schema migrations",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps := 1
			switch {
			case args[0] == "down" && len(args) == 2:
				n, err := strconv.Atoi(args[1])
				if err != nil || n <= 0 {
					return errMigrateArgs
				}
				steps = n
			case len(args) != 1:
				return errMigrateArgs
			case args[0] != "up" && args[0] != "down" && args[0] != "version":
				return errMigrateArgs
			}

			_, cfg, log, err := e.setup(cmd)
			if err != nil {
				return err
			}

			src, err := iofs.New(migrations.FS, ".")
			if err != nil {
				return fmt.Errorf("load migrations: %w", err)
			}
			m, err := migrate.NewWithSourceInstance("iofs", src, cfg.MigrateURL())
			if err != nil {
				return fmt.Errorf("open migrator: %w", err)
			}
			m.Log = migrateLogger{log: log}
			defer func() {
				if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
					log.Error("close migrator failed", "source_err", srcErr, "db_err", dbErr)
				}
			}()

			switch args[0] {
			case "up":
				err = m.Up()
			case "down":
				err = m.Steps(-steps)
			}
			if err != nil && !errors.Is(err, migrate.ErrNoChange) {
				return err
			}

			version, dirty, err := m.Version()
			if errors.Is(err, migrate.ErrNilVersion) {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), "version: none")
				return err
			}
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "version: %d dirty: %t\n", version, dirty)
			return err
		},
	}
}
