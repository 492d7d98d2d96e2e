package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"inakat/lifecycle-service/internal/config"
	"inakat/lifecycle-service/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down|status]",
	Short:     "Apply or inspect database migrations",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: db.MigrationCommands,
	RunE: func(cmd *cobra.Command, args []string) error {
		command := "up"
		if len(args) == 1 {
			command = args[0]
		}
		databaseURL, err := config.DatabaseURL()
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}

		pool, err := db.NewPostgresPool(cmd.Context(), databaseURL)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer pool.Close()

		return db.Migrate(cmd.Context(), pool, command)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
