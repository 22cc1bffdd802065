package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"token-forge/internal/abi"
	"token-forge/internal/chain"
	"token-forge/internal/contract"
	"token-forge/internal/domain"
	"token-forge/internal/observability"
	"token-forge/internal/storage"
)

const maxRequestBytes = 1 << 20

// Node is the chain surface served over RPC.
type Node interface {
	Deploy(ctx context.Context, deployer domain.Principal, kind domain.ContractKind, name string) (*domain.ContractDeployment, error)
	Submit(ctx context.Context, tx chain.Tx) (*domain.Receipt, error)
	MineBlock(ctx context.Context, txs []chain.Tx) ([]*domain.Receipt, error)
	CallReadOnly(ctx context.Context, sender, target domain.Principal, function string, args []abi.Value) (abi.Value, error)
	Receipt(ctx context.Context, txID string) (*domain.Receipt, error)
	Receipts(ctx context.Context, height uint64) ([]*domain.Receipt, error)
	AccountBalance(ctx context.Context, account domain.Principal) (domain.Amount, error)
	Faucet(ctx context.Context, to domain.Principal, amount domain.Amount) (domain.Amount, error)
	Tip(ctx context.Context) (*domain.ChainTip, error)
	Contracts(ctx context.Context) ([]*domain.ContractDeployment, error)
}

var _ Node = (*chain.Chain)(nil)

type handlerFunc func(ctx context.Context, params json.RawMessage) (any, error)

// Server serves JSON-RPC 2.0 requests against a Node.
type Server struct {
	node     Node
	logger   zerolog.Logger
	handlers map[string]handlerFunc
	faucet   bool
}

// ServerOption configures Server.
type ServerOption func(*Server)

// WithFaucet exposes the faucet method. Without it faucet answers method not found.
func WithFaucet(enabled bool) ServerOption {
	return func(s *Server) {
		s.faucet = enabled
	}
}

// NewServer creates a new RPC server.
func NewServer(node Node, logger zerolog.Logger, opts ...ServerOption) *Server {
	s := &Server{node: node, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	s.handlers = map[string]handlerFunc{
		MethodDeployContract:    s.deployContract,
		MethodSubmitTransaction: s.submitTransaction,
		MethodMineBlock:         s.mineBlock,
		MethodCallReadOnly:      s.callReadOnly,
		MethodGetReceipt:        s.getReceipt,
		MethodGetBlockReceipts:  s.getBlockReceipts,
		MethodGetAccount:        s.getAccount,
		MethodGetChainInfo:      s.getChainInfo,
	}
	if s.faucet {
		s.handlers[MethodFaucet] = s.creditFaucet
	}
	return s
}

// ServeHTTP handles one JSON-RPC request per POST.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err != nil {
		writeResponse(w, Response{JSONRPC: "2.0", ID: json.RawMessage("null"), Error: &Error{Code: CodeInvalidRequest, Message: "request too large"}})
		return
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		writeResponse(w, Response{JSONRPC: "2.0", ID: json.RawMessage("null"), Error: &Error{Code: CodeParseError, Message: "parse error"}})
		return
	}
	id := req.ID
	if len(id) == 0 {
		id = json.RawMessage("null")
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		writeResponse(w, Response{JSONRPC: "2.0", ID: id, Error: &Error{Code: CodeInvalidRequest, Message: "invalid request"}})
		return
	}

	handler, ok := s.handlers[req.Method]
	if !ok {
		writeResponse(w, Response{JSONRPC: "2.0", ID: id, Error: &Error{Code: CodeMethodNotFound, Message: "method not found: " + req.Method}})
		return
	}

	start := time.Now()
	result, err := handler(r.Context(), req.Params)
	observability.RecordRPCLatency(req.Method, time.Since(start).Seconds())

	resp := Response{JSONRPC: "2.0", ID: id}
	if err != nil {
		resp.Error = toRPCError(err)
		s.logger.Debug().Str("method", req.Method).Err(err).Msg("rpc call failed")
	} else {
		data, err := json.Marshal(result)
		if err != nil {
			resp.Error = &Error{Code: CodeInternalError, Message: "encode result"}
		} else {
			resp.Result = data
		}
	}
	writeResponse(w, resp)
}

func writeResponse(w http.ResponseWriter, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// paramsError marks malformed params.
type paramsError struct{ err error }

func (e paramsError) Error() string { return "invalid params: " + e.err.Error() }
func (e paramsError) Unwrap() error { return e.err }

func decodeParams(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return paramsError{errors.New("missing params")}
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return paramsError{err}
	}
	return nil
}

func toRPCError(err error) *Error {
	var pe paramsError
	switch {
	case errors.As(err, &pe),
		errors.Is(err, domain.ErrInvalidPrincipal),
		errors.Is(err, chain.ErrInvalidSender),
		errors.Is(err, chain.ErrUnknownKind),
		errors.Is(err, storage.ErrInvalidInput):
		return &Error{Code: CodeInvalidParams, Message: err.Error()}
	case errors.Is(err, storage.ErrNotFound):
		return &Error{Code: CodeNotFound, Message: err.Error()}
	case errors.Is(err, chain.ErrContractExists):
		return &Error{Code: CodeConflict, Message: err.Error()}
	default:
		return &Error{Code: CodeServerError, Message: err.Error()}
	}
}

func parsePrincipal(p domain.Principal) error {
	_, err := domain.ParsePrincipal(string(p))
	return err
}

func (s *Server) deployContract(ctx context.Context, raw json.RawMessage) (any, error) {
	var p DeployParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if err := parsePrincipal(p.Deployer); err != nil {
		return nil, err
	}
	d, err := s.node.Deploy(ctx, p.Deployer, p.Kind, p.Name)
	if err != nil {
		return nil, err
	}
	return toDeployment(d), nil
}

func toTx(p TxParams) (chain.Tx, error) {
	if err := parsePrincipal(p.Contract); err != nil {
		return chain.Tx{}, err
	}
	if p.Function == "" {
		return chain.Tx{}, paramsError{errors.New("function is required")}
	}
	return chain.Tx{Sender: p.Sender, Contract: p.Contract, Function: p.Function, Args: p.Args}, nil
}

func (s *Server) submitTransaction(ctx context.Context, raw json.RawMessage) (any, error) {
	var p TxParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	tx, err := toTx(p)
	if err != nil {
		return nil, err
	}
	return s.node.Submit(ctx, tx)
}

func (s *Server) mineBlock(ctx context.Context, raw json.RawMessage) (any, error) {
	var p MineBlockParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	txs := make([]chain.Tx, 0, len(p.Transactions))
	for i, tp := range p.Transactions {
		tx, err := toTx(tp)
		if err != nil {
			return nil, fmt.Errorf("tx %d: %w", i, err)
		}
		txs = append(txs, tx)
	}
	return s.node.MineBlock(ctx, txs)
}

func (s *Server) callReadOnly(ctx context.Context, raw json.RawMessage) (any, error) {
	var p TxParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if err := parsePrincipal(p.Sender); err != nil {
		return nil, err
	}
	tx, err := toTx(p)
	if err != nil {
		return nil, err
	}

	value, err := s.node.CallReadOnly(ctx, tx.Sender, tx.Contract, tx.Function, tx.Args)
	if code, ok := contract.CodeOf(err); ok {
		c := uint32(code)
		return CallResult{ErrorCode: &c}, nil
	}
	if native, ok := contract.NativeErrorOf(err); ok {
		return CallResult{NativeError: string(native)}, nil
	}
	if err != nil {
		return nil, err
	}
	return CallResult{Ok: true, Value: &value}, nil
}

func (s *Server) getReceipt(ctx context.Context, raw json.RawMessage) (any, error) {
	var p ReceiptParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	r, err := s.node.Receipt(ctx, p.TxID)
	if err != nil {
		return nil, fmt.Errorf("receipt %s: %w", p.TxID, err)
	}
	return r, nil
}

func (s *Server) getBlockReceipts(ctx context.Context, raw json.RawMessage) (any, error) {
	var p BlockParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	receipts, err := s.node.Receipts(ctx, p.Height)
	if err != nil {
		return nil, err
	}
	if receipts == nil {
		receipts = []*domain.Receipt{}
	}
	return receipts, nil
}

func (s *Server) getAccount(ctx context.Context, raw json.RawMessage) (any, error) {
	var p AccountParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if err := parsePrincipal(p.Principal); err != nil {
		return nil, err
	}
	balance, err := s.node.AccountBalance(ctx, p.Principal)
	if err != nil {
		return nil, err
	}
	return Account{Principal: p.Principal, Balance: balance.String()}, nil
}

func (s *Server) creditFaucet(ctx context.Context, raw json.RawMessage) (any, error) {
	var p FaucetParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if err := parsePrincipal(p.Principal); err != nil {
		return nil, err
	}
	amount, err := domain.ParseAmount(p.Amount)
	if err != nil {
		return nil, paramsError{err}
	}
	balance, err := s.node.Faucet(ctx, p.Principal, amount)
	if err != nil {
		return nil, err
	}
	return Account{Principal: p.Principal, Balance: balance.String()}, nil
}

func (s *Server) getChainInfo(ctx context.Context, _ json.RawMessage) (any, error) {
	tip, err := s.node.Tip(ctx)
	if err != nil {
		return nil, err
	}
	contracts, err := s.node.Contracts(ctx)
	if err != nil {
		return nil, err
	}
	info := ChainInfo{Height: tip.Height, TxCount: tip.TxCount, Contracts: make([]Deployment, 0, len(contracts))}
	for _, d := range contracts {
		info.Contracts = append(info.Contracts, toDeployment(d))
	}
	return info, nil
}
