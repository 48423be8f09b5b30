package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"tally/internal/storage"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long: `Bring the database schema up to the latest version. The server also
migrates on startup; this command lets you do it ahead of a deploy.`,
		RunE: runMigrate,
	}
	cmd.Flags().Bool("status", false, "show the current schema version without applying changes")
	return cmd
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	status, _ := cmd.Flags().GetBool("status")
	dbPath := viper.GetString("database.path")

	if !status {
		slog.Info("Running database migrations", "database", dbPath)
		repo, err := openStore()
		if err != nil {
			return err
		}
		if err := repo.Close(); err != nil {
			return fmt.Errorf("close database: %w", err)
		}
	}

	version, dirty, err := storage.SchemaVersion(dbPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty: %t)\n", version, dirty)
	return nil
}
