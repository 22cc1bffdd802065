package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"token-forge/internal/config"
	"token-forge/internal/storage"
	chstore "token-forge/internal/storage/clickhouse"
	"token-forge/internal/storage/memory"
	"token-forge/internal/storage/migrations"
	pgstore "token-forge/internal/storage/postgres"
	"token-forge/internal/storage/sqlite"
)

// stores holds the selected backends.
type stores struct {
	state    storage.StateStore
	receipts storage.ReceiptStore
}

// createStores opens the configured backends and applies their migrations.
// The returned cleanup closes every opened connection.
func createStores(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*stores, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	s := &stores{}

	switch cfg.StateBackend {
	case config.BackendMemory:
		s.state = memory.NewStateStore()
		if cfg.Receipts() == config.BackendMemory {
			s.receipts = memory.NewReceiptStore()
		}

	case config.BackendPostgres:
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, cleanup, fmt.Errorf("connect postgres: %w", err)
		}
		closers = append(closers, pool.Close)

		applied, err := migrations.RunPostgresMigrations(ctx, pool)
		if err != nil {
			cleanup()
			return nil, func() {}, fmt.Errorf("postgres migrations: %w", err)
		}
		if len(applied) > 0 {
			logger.Info().Strs("versions", applied).Msg("postgres migrations applied")
		}
		s.state = pgstore.NewStateStore(pool)
		if cfg.Receipts() == config.BackendPostgres {
			s.receipts = pgstore.NewReceiptStore(pool)
		}

	case config.BackendSQLite:
		db, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, cleanup, fmt.Errorf("open sqlite: %w", err)
		}
		closers = append(closers, func() { db.Close() })

		s.state = sqlite.NewStateStore(db)
		if cfg.Receipts() == config.BackendSQLite {
			s.receipts = sqlite.NewReceiptStore(db)
		}

	default:
		return nil, cleanup, fmt.Errorf("unknown state backend %q", cfg.StateBackend)
	}

	if cfg.Receipts() == config.BackendClickhouse {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
		if err != nil {
			cleanup()
			return nil, func() {}, fmt.Errorf("clickhouse migrations: %w", err)
		}
		closers = append(closers, func() { conn.Close() })
		s.receipts = chstore.NewReceiptStore(conn)
	}

	if s.receipts == nil {
		cleanup()
		return nil, func() {}, fmt.Errorf("receipt backend %q unavailable for state backend %q", cfg.Receipts(), cfg.StateBackend)
	}

	logger.Info().
		Str("state", cfg.StateBackend).
		Str("receipts", cfg.Receipts()).
		Msg("stores ready")
	return s, cleanup, nil
}
