package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/classtrack/attendance/internal/config"
	"github.com/classtrack/attendance/internal/store/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Long: `Create the attendance schema in PostgreSQL.
The face template table is created with the configured embedding width;
changing the width later requires re-enrolling every face.`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	pool, err := postgres.NewPool(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	defer pool.Close()

	if err := postgres.Migrate(context.Background(), pool, cfg.Matching.EmbeddingDim); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}

	fmt.Printf("Schema ready (embedding width %d)\n", cfg.Matching.EmbeddingDim)
	return nil
}
