package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"transaction-engine/internal/config"
)

var (
	// Global flags
	port    string
	migrate bool
)

// rootCmd serves by default so the container entry point needs no arguments.
var rootCmd = &cobra.Command{
	Use:   "transaction-engine",
	Short: "Money movement engine for deposits, withdrawals, bill pay and transfers",
	Long: `transaction-engine executes deposits, withdrawals, bill payments and
internal or external transfers against the account ledger.

Configuration is read from the environment (DB_HOST, DB_PORT, DB_USER,
DB_PASSWORD, DB_NAME, DB_SSLMODE, SERVER_PORT, JWT_SECRET, REDIS_ADDR,
IDEMPOTENCY_TTL, GATEWAY_MODE, GATEWAY_TIMEOUT, GATEWAY_LATENCY,
MIGRATE_ON_START, APP_ENV, OTEL_ENABLED, OTEL_EXPORTER_OTLP_ENDPOINT).
Flags override the environment. Serving refuses the default JWT secret
unless APP_ENV=development.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&port, "port", "", "HTTP port (overrides SERVER_PORT)")
	rootCmd.PersistentFlags().BoolVar(&migrate, "migrate", true, "Apply migrations before serving (overrides MIGRATE_ON_START)")
}

// loadConfig applies explicitly set flags on top of the environment.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if cmd.Flags().Changed("port") {
		cfg.ServerPort = port
	}
	if cmd.Flags().Changed("migrate") {
		cfg.MigrateOnStart = migrate
	}
	return cfg, nil
}
