package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"jobcard-service/internal/config"
	"jobcard-service/internal/db"
	"jobcard-service/internal/logger"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		appLogger := logger.New(cfg.Environment)

		database, err := db.Open(cfg, appLogger)
		if err != nil {
			return err
		}

		return db.Migrate(database, appLogger)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
