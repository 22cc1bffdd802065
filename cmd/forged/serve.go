package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"token-forge/internal/chain"
	"token-forge/internal/feed"
	"token-forge/internal/logging"
	"token-forge/internal/observability"
	"token-forge/internal/rpc"
)

var cmdServe = &cobra.Command{
	Use:   "serve",
	Short: "Run the node: JSON-RPC at /rpc, receipt feed at /ws",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	cmdServe.Flags().String("listen", "", "HTTP listen address (FORGE_LISTEN_ADDR)")
	cmdServe.Flags().String("genesis", "", "Genesis file, toml/yaml/json (FORGE_GENESIS_FILE)")
	cmdServe.Flags().Bool("faucet", false, "Expose the faucet RPC method (FORGE_FAUCET_ENABLED)")
	addBackendFlags(cmdServe)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	st, cleanup, err := createStores(ctx, cfg, logging.Component(logger, "storage"))
	if err != nil {
		return err
	}
	defer cleanup()

	hubConfig := feed.DefaultHubConfig()
	hubConfig.Buffer = cfg.FeedBuffer
	hub := feed.NewHub(hubConfig, logging.Component(logger, "feed"))

	node := chain.New(st.state, st.receipts,
		chain.WithLogger(logging.Component(logger, "chain")),
		chain.WithPublisher(hub),
	)

	if cfg.GenesisFile != "" {
		g, err := chain.LoadGenesis(cfg.GenesisFile)
		if err != nil {
			return err
		}
		if err := node.ApplyGenesis(ctx, g); err != nil {
			return fmt.Errorf("apply genesis: %w", err)
		}
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           newMux(node, hub, logger, rpc.WithFaucet(cfg.FaucetEnabled)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.ListenAddr).Msg("starting HTTP server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("initiating graceful shutdown")
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	// Second signal forces exit
	go func() {
		select {
		case sig := <-sigCh:
			logger.Warn().Str("signal", sig.String()).Msg("forcing immediate shutdown")
			os.Exit(1)
		case <-shutdownCtx.Done():
		}
	}()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info().Msg("shutdown complete")
	return nil
}

// newMux routes the node's HTTP surface.
func newMux(node rpc.Node, hub *feed.Hub, logger zerolog.Logger, opts ...rpc.ServerOption) *http.ServeMux {
	started := time.Now()
	mux := http.NewServeMux()

	mux.Handle("/rpc", rpc.NewServer(node, logging.Component(logger, "rpc"), opts...))
	mux.Handle("/ws", hub)

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Prometheus metrics
	mux.Handle("/metrics", observability.Handler())

	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		handleStatus(w, r, node, hub, started)
	})

	return mux
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status          string    `json:"status"`
	Uptime          string    `json:"uptime"`
	Started         time.Time `json:"started"`
	BlockHeight     uint64    `json:"block_height"`
	TxCount         uint64    `json:"tx_count"`
	Contracts       int       `json:"contracts"`
	FeedSubscribers int       `json:"feed_subscribers"`
}

// handleStatus returns node status as JSON.
func handleStatus(w http.ResponseWriter, r *http.Request, node rpc.Node, hub *feed.Hub, started time.Time) {
	tip, err := node.Tip(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	contracts, err := node.Contracts(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	resp := StatusResponse{
		Status:          "running",
		Uptime:          time.Since(started).Round(time.Second).String(),
		Started:         started,
		BlockHeight:     tip.Height,
		TxCount:         tip.TxCount,
		Contracts:       len(contracts),
		FeedSubscribers: hub.Subscribers(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
