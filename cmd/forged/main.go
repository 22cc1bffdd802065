// Command forged runs a token-forge node: the token factory and ledger contracts
// on a single-node chain, served over JSON-RPC with a websocket receipt feed.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"token-forge/internal/config"
)

var cmdMain = &cobra.Command{
	Use:   "forged",
	Short: "Token factory node",
	Run:   printUsageAndExit1,
}

var flagMain struct {
	EnvFile string
}

func init() {
	cmdMain.PersistentFlags().StringVar(&flagMain.EnvFile, "env-file", ".env", "KEY=VALUE file loaded before FORGE_* variables are read")
	cmdMain.AddCommand(cmdServe, cmdMigrate)
}

func main() {
	if err := cmdMain.Execute(); err != nil {
		os.Exit(1)
	}
}

func printUsageAndExit1(cmd *cobra.Command, args []string) {
	_ = cmd.Usage()
	os.Exit(1)
}

// loadConfig reads the env file, then the environment, then applies flag overrides.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	if err := config.LoadEnvFile(flagMain.EnvFile); err != nil {
		return config.Config{}, err
	}
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	override := func(name string, dst *string) {
		if flags.Lookup(name) != nil && flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	override("listen", &cfg.ListenAddr)
	override("state-backend", &cfg.StateBackend)
	override("receipt-backend", &cfg.ReceiptBackend)
	override("postgres-dsn", &cfg.PostgresDSN)
	override("sqlite-path", &cfg.SQLitePath)
	override("clickhouse-dsn", &cfg.ClickhouseDSN)
	override("genesis", &cfg.GenesisFile)
	override("log-level", &cfg.LogLevel)
	override("log-format", &cfg.LogFormat)
	if flags.Lookup("faucet") != nil && flags.Changed("faucet") {
		cfg.FaucetEnabled, _ = flags.GetBool("faucet")
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// addBackendFlags registers the flags shared by serve and migrate.
func addBackendFlags(cmd *cobra.Command) {
	cmd.Flags().String("state-backend", "", "State backend: memory, postgres, sqlite (FORGE_STATE_BACKEND)")
	cmd.Flags().String("receipt-backend", "", "Receipt backend: state backend or clickhouse (FORGE_RECEIPT_BACKEND)")
	cmd.Flags().String("postgres-dsn", "", "PostgreSQL connection string (FORGE_POSTGRES_DSN)")
	cmd.Flags().String("sqlite-path", "", "SQLite database file (FORGE_SQLITE_PATH)")
	cmd.Flags().String("clickhouse-dsn", "", "ClickHouse connection string (FORGE_CLICKHOUSE_DSN)")
	cmd.Flags().String("log-level", "", "Log level (FORGE_LOG_LEVEL)")
	cmd.Flags().String("log-format", "", "Log format: json, plain, text (FORGE_LOG_FORMAT)")
}
