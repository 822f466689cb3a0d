package main

import (
	"context"

	"github.com/spf13/cobra"

	"transaction-engine/internal/database"
	"transaction-engine/internal/server"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate [up|down]",
	Short: "Apply or roll back the database schema",
	Long: `Apply or roll back the embedded schema migrations.

Examples:
  transaction-engine migrate up     # Create or upgrade the schema
  transaction-engine migrate down   # Drop every table`,
	ValidArgs: []string{string(database.Up), string(database.Down)},
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrate(cmd, database.Direction(args[0]))
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, direction database.Direction) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := server.NewLogger(cfg)
	ctx := context.Background()

	db, err := database.Open(ctx, cfg.GetDBConnectionString(), logger)
	if err != nil {
		return err
	}
	defer db.Close()

	return database.Migrate(ctx, db, direction, logger)
}
