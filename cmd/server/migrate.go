package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ervin210/oauth-app-marketplace/internal/config"
	"github.com/ervin210/oauth-app-marketplace/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Args:  cobra.NoArgs,
	RunE:  runMigrateUp,
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back migrations",
	Long: `Roll back the given number of migrations.

Examples:
  server migrate down --steps 1`,
	Args: cobra.NoArgs,
	RunE: runMigrateDown,
}

var migrateSteps int

func init() {
	migrateDownCmd.Flags().IntVar(&migrateSteps, "steps", 1, "number of migrations to roll back")
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd)
	rootCmd.AddCommand(migrateCmd)
}

func runMigrateUp(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if err := database.RunMigrations(cfg.Database); err != nil {
		return err
	}
	logger.Info("Database migrations completed")
	return nil
}

func runMigrateDown(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if err := database.MigrateDown(cfg.Database, migrateSteps); err != nil {
		return err
	}
	logger.Info("Database migrations rolled back", slog.Int("steps", migrateSteps))
	return nil
}
