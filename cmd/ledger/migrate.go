package main

import (
	"fmt"

	"github.com/eaglebank/ledger/internal/config"
	"github.com/eaglebank/ledger/internal/repository"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg.Log)
			if err != nil {
				return err
			}
			defer logger.Sync()

			db, err := openDatabase(cfg.Database.URL)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := repository.RunMigrations(db); err != nil {
				return fmt.Errorf("failed to migrate: %w", err)
			}
			logger.Info("Migrations applied")
			return nil
		},
	}
}
