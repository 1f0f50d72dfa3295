package main

import (
	"github.com/couchcryptid/clima-ingest-service/internal/store"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
)

var dryRun bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the observation table for SQL stores",
	RunE:  runMigrate,
}

func init() {
	migrateCmd.Flags().BoolVar(&dryRun, "dry-run", false, "show pending migrations without applying")
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	dialect, ok := store.SQLDialect(cfg.StoreDriver)
	if !ok {
		logger.Info("store has no schema to migrate", "driver", cfg.StoreDriver)
		return nil
	}

	s, err := store.OpenSQLStore(cmd.Context(), dialect, cfg.StoreDSN, cfg.StoreTable, clockwork.NewRealClock())
	if err != nil {
		return err
	}
	defer s.Close() //nolint:errcheck

	if dryRun {
		pending, err := s.PendingMigrations(cmd.Context())
		if err != nil {
			return err
		}
		logger.Info("dry run: pending migrations", "table", cfg.StoreTable, "pending", pending)
		return nil
	}

	applied, err := s.Migrate(cmd.Context())
	if err != nil {
		return err
	}
	logger.Info("migrations complete", "table", cfg.StoreTable, "applied", applied)
	return nil
}
