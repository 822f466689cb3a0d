package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// EnvDevelopment is the only environment allowed to run with DevJWTSecret.
	EnvDevelopment = "development"

	// DevJWTSecret signs tokens when JWT_SECRET is unset.
	DevJWTSecret = "development-secret"
)

// Config holds runtime settings for the transaction engine.
type Config struct {
	Environment string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	ServerPort string

	JWTSecret string

	// RedisAddr enables the idempotency replay cache when non-empty.
	RedisAddr      string
	IdempotencyTTL time.Duration

	GatewayTimeout time.Duration
	GatewayMode    string
	GatewayLatency time.Duration

	MigrateOnStart bool

	// TelemetryEnabled exports spans to the OTLP collector at OTelEndpoint.
	TelemetryEnabled bool
	OTelEndpoint     string
}

// Load reads the configuration from environment variables, falling back to
// local development defaults. Values that are set but cannot be parsed are
// reported together.
func Load() (*Config, error) {
	p := &parser{}
	cfg := &Config{
		Environment:      p.getEnv("APP_ENV", "production"),
		DBHost:           p.getEnv("DB_HOST", "localhost"),
		DBPort:           p.getEnv("DB_PORT", "5432"),
		DBUser:           p.getEnv("DB_USER", "postgres"),
		DBPassword:       p.getEnv("DB_PASSWORD", "password"),
		DBName:           p.getEnv("DB_NAME", "transaction_engine"),
		DBSSLMode:        p.getEnv("DB_SSLMODE", "disable"),
		ServerPort:       p.getEnv("SERVER_PORT", "8080"),
		JWTSecret:        p.getEnv("JWT_SECRET", DevJWTSecret),
		RedisAddr:        p.getEnv("REDIS_ADDR", ""),
		IdempotencyTTL:   p.getDuration("IDEMPOTENCY_TTL", 24*time.Hour),
		GatewayTimeout:   p.getDuration("GATEWAY_TIMEOUT", 5*time.Second),
		GatewayMode:      p.getEnv("GATEWAY_MODE", "approve"),
		GatewayLatency:   p.getDuration("GATEWAY_LATENCY", 0),
		MigrateOnStart:   p.getBool("MIGRATE_ON_START", true),
		TelemetryEnabled: p.getBool("OTEL_ENABLED", false),
		OTelEndpoint:     p.getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
	}
	if len(p.errs) > 0 {
		return nil, errors.Join(p.errs...)
	}
	return cfg, nil
}

// Validate rejects settings that are unsafe to serve traffic with.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET must be set")
	}
	if c.JWTSecret == DevJWTSecret && c.Environment != EnvDevelopment {
		return fmt.Errorf("JWT_SECRET is the development default; set it or run with APP_ENV=%s", EnvDevelopment)
	}
	return nil
}

// GetDBConnectionString returns a lib/pq keyword/value connection string.
func (c *Config) GetDBConnectionString() string {
	sslMode := c.DBSSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, sslMode)
}

type parser struct {
	errs []error
}

func (p *parser) getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func (p *parser) getDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid duration %q (use a unit, e.g. 5s)", key, v))
		return fallback
	}
	return d
}

func (p *parser) getBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid boolean %q", key, v))
		return fallback
	}
	return b
}
