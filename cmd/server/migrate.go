package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/spf13/cobra"

	"github.com/iliyamo/pcbang-kiosk/internal/database"
)

var migrateSteps int

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().IntVar(&migrateSteps, "steps", 0, "apply n migrations (negative rolls back); 0 applies all pending")
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the embedded schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := setup()
		m, err := database.NewMigrator(dbOptions(cfg))
		if err != nil {
			return err
		}
		defer m.Close()

		if migrateSteps == 0 {
			err = m.Up()
		} else {
			err = m.Steps(migrateSteps)
		}
		if err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migrate: %w", err)
		}

		version, dirty, verr := m.Version()
		if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
			return verr
		}
		slog.Info("schema migrated", slog.Uint64("version", uint64(version)), slog.Bool("dirty", dirty))
		return nil
	},
}
