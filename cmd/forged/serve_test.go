package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-forge/internal/chain"
	"token-forge/internal/config"
	"token-forge/internal/domain"
	"token-forge/internal/feed"
	"token-forge/internal/rpc"
	"token-forge/internal/storage/memory"
)

func newTestServer(t *testing.T) (*httptest.Server, *chain.Chain) {
	t.Helper()

	hub := feed.NewHub(feed.DefaultHubConfig(), zerolog.Nop())
	node := chain.New(memory.NewStateStore(), memory.NewReceiptStore(), chain.WithPublisher(hub))
	server := httptest.NewServer(newMux(node, hub, zerolog.Nop()))
	t.Cleanup(server.Close)
	return server, node
}

func TestMux_Health(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))
}

func TestMux_Status(t *testing.T) {
	server, node := newTestServer(t)

	_, err := node.Deploy(context.Background(), domain.PrincipalFromSeed("deployer"), domain.KindTokenFactory, "token-factory")
	require.NoError(t, err)

	resp, err := http.Get(server.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	var status StatusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, "running", status.Status)
	assert.Equal(t, uint64(1), status.BlockHeight)
	assert.Equal(t, 1, status.Contracts)
}

func TestMux_RPC(t *testing.T) {
	server, _ := newTestServer(t)

	client := rpc.NewClient(server.URL+"/rpc", rpc.WithMaxRetries(0))
	info, err := client.GetChainInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(0), info.Height)
}

func TestMux_FaucetGate(t *testing.T) {
	hub := feed.NewHub(feed.DefaultHubConfig(), zerolog.Nop())
	node := chain.New(memory.NewStateStore(), memory.NewReceiptStore())
	wallet := domain.PrincipalFromSeed("wallet_1")

	closed := httptest.NewServer(newMux(node, hub, zerolog.Nop()))
	defer closed.Close()
	_, err := rpc.NewClient(closed.URL+"/rpc", rpc.WithMaxRetries(0)).Faucet(context.Background(), wallet, domain.NewAmount(5))
	var rpcErr *rpc.Error
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, rpc.CodeMethodNotFound, rpcErr.Code)

	open := httptest.NewServer(newMux(node, hub, zerolog.Nop(), rpc.WithFaucet(true)))
	defer open.Close()
	balance, err := rpc.NewClient(open.URL+"/rpc", rpc.WithMaxRetries(0)).Faucet(context.Background(), wallet, domain.NewAmount(5))
	require.NoError(t, err)
	assert.True(t, balance.Equals64(5))
}

func TestMux_Metrics(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCreateStores_Memory(t *testing.T) {
	cfg := config.Config{StateBackend: config.BackendMemory, FeedBuffer: 1}

	st, cleanup, err := createStores(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer cleanup()

	assert.NotNil(t, st.state)
	assert.NotNil(t, st.receipts)
}

func TestCreateStores_SQLite(t *testing.T) {
	cfg := config.Config{
		StateBackend: config.BackendSQLite,
		SQLitePath:   t.TempDir() + "/forge.db",
		FeedBuffer:   1,
	}

	st, cleanup, err := createStores(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer cleanup()

	node := chain.New(st.state, st.receipts)
	tip, err := node.Tip(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(0), tip.Height)
}
