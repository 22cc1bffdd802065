package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"token-forge/internal/abi"
	"token-forge/internal/domain"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
)

// Client calls a forged node over HTTP JSON-RPC 2.0.
type Client struct {
	endpoint    string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	requestID   atomic.Uint64
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.retryDelay = d
	}
}

// WithMaxDelay sets maximum retry delay.
func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.maxDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// NewClient creates a new RPC client for endpoint, e.g. http://localhost:8545/rpc.
func NewClient(endpoint string, opts ...ClientOption) *Client {
	c := &Client{
		endpoint:    endpoint,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// call performs a JSON-RPC call with retries and exponential backoff.
// Transport failures and 429/5xx responses are retried; RPC errors are not.
func (c *Client) call(ctx context.Context, method string, params, result any) error {
	var rawParams json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("marshal params: %w", err)
		}
		rawParams = data
	}

	reqID := c.requestID.Add(1)
	body, err := json.Marshal(Request{
		JSONRPC: "2.0",
		ID:      json.RawMessage(strconv.FormatUint(reqID, 10)),
		Method:  method,
		Params:  rawParams,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
		}

		var rpcResp Response
		if err := json.Unmarshal(respBody, &rpcResp); err != nil {
			lastErr = fmt.Errorf("unmarshal response: %w", err)
			continue
		}

		if rpcResp.Error != nil {
			return rpcResp.Error
		}

		if result != nil && rpcResp.Result != nil {
			if err := json.Unmarshal(rpcResp.Result, result); err != nil {
				return fmt.Errorf("unmarshal result: %w", err)
			}
		}

		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// DeployContract deploys a contract of kind at <deployer>.<name>.
func (c *Client) DeployContract(ctx context.Context, deployer domain.Principal, kind domain.ContractKind, name string) (*Deployment, error) {
	var d Deployment
	if err := c.call(ctx, MethodDeployContract, DeployParams{Deployer: deployer, Kind: kind, Name: name}, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// SubmitTransaction mines one contract call and returns its receipt.
func (c *Client) SubmitTransaction(ctx context.Context, sender, target domain.Principal, function string, args ...abi.Value) (*domain.Receipt, error) {
	var r domain.Receipt
	params := TxParams{Sender: sender, Contract: target, Function: function, Args: nonNil(args)}
	if err := c.call(ctx, MethodSubmitTransaction, params, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// MineBlock mines txs in a single block.
func (c *Client) MineBlock(ctx context.Context, txs []TxParams) ([]*domain.Receipt, error) {
	var receipts []*domain.Receipt
	if err := c.call(ctx, MethodMineBlock, MineBlockParams{Transactions: txs}, &receipts); err != nil {
		return nil, err
	}
	return receipts, nil
}

// CallReadOnly evaluates a read-only function without mining.
func (c *Client) CallReadOnly(ctx context.Context, sender, target domain.Principal, function string, args ...abi.Value) (*CallResult, error) {
	var res CallResult
	params := TxParams{Sender: sender, Contract: target, Function: function, Args: nonNil(args)}
	if err := c.call(ctx, MethodCallReadOnly, params, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// GetReceipt retrieves a receipt by tx id.
func (c *Client) GetReceipt(ctx context.Context, txID string) (*domain.Receipt, error) {
	var r domain.Receipt
	if err := c.call(ctx, MethodGetReceipt, ReceiptParams{TxID: txID}, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// GetBlockReceipts retrieves the receipts of one block.
func (c *Client) GetBlockReceipts(ctx context.Context, height uint64) ([]*domain.Receipt, error) {
	var receipts []*domain.Receipt
	if err := c.call(ctx, MethodGetBlockReceipts, BlockParams{Height: height}, &receipts); err != nil {
		return nil, err
	}
	return receipts, nil
}

// GetAccount retrieves the native balance of principal.
func (c *Client) GetAccount(ctx context.Context, principal domain.Principal) (domain.Amount, error) {
	var a Account
	if err := c.call(ctx, MethodGetAccount, AccountParams{Principal: principal}, &a); err != nil {
		return domain.ZeroAmount, err
	}
	return domain.ParseAmount(a.Balance)
}

// Faucet credits amount to principal and returns the new balance.
func (c *Client) Faucet(ctx context.Context, principal domain.Principal, amount domain.Amount) (domain.Amount, error) {
	var a Account
	if err := c.call(ctx, MethodFaucet, FaucetParams{Principal: principal, Amount: amount.String()}, &a); err != nil {
		return domain.ZeroAmount, err
	}
	return domain.ParseAmount(a.Balance)
}

// GetChainInfo retrieves the chain tip and deployed contracts.
func (c *Client) GetChainInfo(ctx context.Context) (*ChainInfo, error) {
	var info ChainInfo
	if err := c.call(ctx, MethodGetChainInfo, struct{}{}, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func nonNil(args []abi.Value) []abi.Value {
	if args == nil {
		return []abi.Value{}
	}
	return args
}
