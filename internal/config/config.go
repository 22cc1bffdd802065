// Package config loads node configuration from FORGE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Store backends.
const (
	BackendMemory     = "memory"
	BackendPostgres   = "postgres"
	BackendSQLite     = "sqlite"
	BackendClickhouse = "clickhouse"
)

// Config is the node configuration.
type Config struct {
	ListenAddr      string        `env:"FORGE_LISTEN_ADDR" envDefault:":8545"`
	StateBackend    string        `env:"FORGE_STATE_BACKEND" envDefault:"memory"`
	ReceiptBackend  string        `env:"FORGE_RECEIPT_BACKEND"`
	PostgresDSN     string        `env:"FORGE_POSTGRES_DSN"`
	SQLitePath      string        `env:"FORGE_SQLITE_PATH" envDefault:"forge.db"`
	ClickhouseDSN   string        `env:"FORGE_CLICKHOUSE_DSN"`
	GenesisFile     string        `env:"FORGE_GENESIS_FILE"`
	LogLevel        string        `env:"FORGE_LOG_LEVEL" envDefault:"info"`
	LogFormat       string        `env:"FORGE_LOG_FORMAT" envDefault:"plain"`
	FeedBuffer      int           `env:"FORGE_FEED_BUFFER" envDefault:"64"`
	FaucetEnabled   bool          `env:"FORGE_FAUCET_ENABLED" envDefault:"false"`
	ShutdownTimeout time.Duration `env:"FORGE_SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

// Load parses the environment into a Config and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Receipts returns the receipt journal backend, defaulting to the state backend.
func (c Config) Receipts() string {
	if c.ReceiptBackend == "" {
		return c.StateBackend
	}
	return c.ReceiptBackend
}

// Validate checks backend names and their required connection settings.
func (c Config) Validate() error {
	var errs []error

	switch c.StateBackend {
	case BackendMemory, BackendSQLite:
	case BackendPostgres:
		if c.PostgresDSN == "" {
			errs = append(errs, errors.New("FORGE_POSTGRES_DSN is required for the postgres state backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown state backend %q", c.StateBackend))
	}

	switch c.Receipts() {
	case BackendMemory, BackendSQLite, BackendPostgres:
		if c.Receipts() != c.StateBackend {
			errs = append(errs, fmt.Errorf("receipt backend %q must match the state backend or be clickhouse", c.Receipts()))
		}
	case BackendClickhouse:
		if c.ClickhouseDSN == "" {
			errs = append(errs, errors.New("FORGE_CLICKHOUSE_DSN is required for the clickhouse receipt backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown receipt backend %q", c.Receipts()))
	}

	if c.FeedBuffer <= 0 {
		errs = append(errs, errors.New("FORGE_FEED_BUFFER must be positive"))
	}

	return errors.Join(errs...)
}

// LoadEnvFile sets variables from a KEY=VALUE file without overriding the environment.
// A missing file is not an error.
func LoadEnvFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read env file: %w", err)
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if _, set := os.LookupEnv(key); set {
			continue
		}
		if err := os.Setenv(key, strings.TrimSpace(value)); err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
	}
	return nil
}
