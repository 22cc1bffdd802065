package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8545", cfg.ListenAddr)
	assert.Equal(t, BackendMemory, cfg.StateBackend)
	assert.Equal(t, BackendMemory, cfg.Receipts())
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 64, cfg.FeedBuffer)
	assert.False(t, cfg.FaucetEnabled)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("FORGE_STATE_BACKEND", "postgres")
	t.Setenv("FORGE_POSTGRES_DSN", "postgres://forge@localhost/forge")
	t.Setenv("FORGE_RECEIPT_BACKEND", "clickhouse")
	t.Setenv("FORGE_CLICKHOUSE_DSN", "clickhouse://localhost:9000/forge")
	t.Setenv("FORGE_SHUTDOWN_TIMEOUT", "5s")
	t.Setenv("FORGE_FAUCET_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, BackendPostgres, cfg.StateBackend)
	assert.Equal(t, BackendClickhouse, cfg.Receipts())
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
	assert.True(t, cfg.FaucetEnabled)
}

func TestValidate(t *testing.T) {
	base := Config{StateBackend: BackendMemory, FeedBuffer: 1}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"memory ok", func(*Config) {}, ""},
		{"unknown state", func(c *Config) { c.StateBackend = "redis" }, `unknown state backend "redis"`},
		{"postgres needs dsn", func(c *Config) { c.StateBackend = BackendPostgres }, "FORGE_POSTGRES_DSN"},
		{"clickhouse needs dsn", func(c *Config) { c.ReceiptBackend = BackendClickhouse }, "FORGE_CLICKHOUSE_DSN"},
		{"mismatched receipts", func(c *Config) { c.ReceiptBackend = BackendSQLite }, "must match the state backend"},
		{"feed buffer", func(c *Config) { c.FeedBuffer = 0 }, "FORGE_FEED_BUFFER"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "# comment\nFORGE_LOG_LEVEL=debug\nFORGE_LISTEN_ADDR = :9000\nbroken line\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("FORGE_LISTEN_ADDR", ":7000")
	t.Setenv("FORGE_LOG_LEVEL", "")
	require.NoError(t, os.Unsetenv("FORGE_LOG_LEVEL"))

	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "debug", os.Getenv("FORGE_LOG_LEVEL"))
	assert.Equal(t, ":7000", os.Getenv("FORGE_LISTEN_ADDR"))

	assert.NoError(t, LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")))
}
