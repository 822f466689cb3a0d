package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"transaction-engine/internal/config"
	"transaction-engine/internal/database"
	"transaction-engine/internal/idempotency"
	"transaction-engine/internal/server"
	"transaction-engine/internal/telemetry"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := server.NewLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tel, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:     cfg.TelemetryEnabled,
		Endpoint:    cfg.OTelEndpoint,
		Environment: cfg.Environment,
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(flushCtx); err != nil {
			logger.Error("Failed to flush traces", "error", err)
		}
	}()

	db, err := database.Open(ctx, cfg.GetDBConnectionString(), logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.MigrateOnStart {
		if err := database.Migrate(ctx, db, database.Up, logger); err != nil {
			return err
		}
	}

	var opts []server.Option
	if client := openRedis(ctx, cfg, logger); client != nil {
		defer client.Close()
		opts = append(opts, server.WithCache(idempotency.NewRedisCache(client, cfg.IdempotencyTTL)))
	}

	srv, listening, err := server.StartServer(cfg, db, opts...)
	if err != nil {
		return err
	}
	logger.Info("Server started successfully", "port", listening)

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", "error", err)
		return err
	}

	logger.Info("Server stopped")
	return nil
}

// openRedis returns nil when the cache is disabled or unreachable; the
// ledger alone is enough to detect replays.
func openRedis(ctx context.Context, cfg *config.Config, logger *slog.Logger) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("Redis unavailable, running without replay cache", "addr", cfg.RedisAddr, "error", err)
		_ = client.Close()
		return nil
	}

	logger.Info("Idempotency replay cache enabled", "addr", cfg.RedisAddr, "ttl", cfg.IdempotencyTTL)
	return client
}
