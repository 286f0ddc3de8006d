package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fastygo/taskbot/internal/config"
	pgInfra "github.com/fastygo/taskbot/internal/infrastructure/postgres"
)

var migrateSteps int

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate [up|down]",
		Short: "Apply or roll back database migrations",
		Long: `Apply or roll back the Postgres schema under MIGRATIONS_PATH.

Examples:
  taskbot migrate
  taskbot migrate down --steps 1`,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{pgInfra.MigrateUp, pgInfra.MigrateDown},
		RunE:      runMigrate,
	}
	cmd.Flags().IntVar(&migrateSteps, "steps", 0, "number of migrations to apply (0 = all)")
	return cmd
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	defer log.Sync()

	if cfg.Storage != config.StoragePostgres {
		return fmt.Errorf("migrations need STORAGE_DRIVER=%s, got %q", config.StoragePostgres, cfg.Storage)
	}

	direction := pgInfra.MigrateUp
	if len(args) == 1 {
		direction = args[0]
	}
	return pgInfra.Migrate(cfg, direction, migrateSteps, log)
}
