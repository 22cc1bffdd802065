// Package rpc exposes the host chain over JSON-RPC 2.0 and provides a typed client.
package rpc

import (
	"encoding/json"
	"fmt"

	"token-forge/internal/abi"
	"token-forge/internal/domain"
)

// Method names.
const (
	MethodDeployContract    = "deploy_contract"
	MethodSubmitTransaction = "submit_transaction"
	MethodMineBlock         = "mine_block"
	MethodCallReadOnly      = "call_read_only"
	MethodGetReceipt        = "get_receipt"
	MethodGetBlockReceipts  = "get_block_receipts"
	MethodGetAccount        = "get_account"
	MethodFaucet            = "faucet"
	MethodGetChainInfo      = "get_chain_info"
)

// JSON-RPC 2.0 error codes. Codes above -32099 are application defined.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeServerError    = -32000
	CodeNotFound       = -32001
	CodeConflict       = -32002
)

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// DeployParams are the params of deploy_contract.
type DeployParams struct {
	Deployer domain.Principal    `json:"deployer"`
	Kind     domain.ContractKind `json:"kind"`
	Name     string              `json:"name"`
}

// Deployment is a deployed contract on the wire.
type Deployment struct {
	Contract   domain.Principal    `json:"contract"`
	Kind       domain.ContractKind `json:"kind"`
	Deployer   domain.Principal    `json:"deployer"`
	DeployedAt uint64              `json:"deployed_at"`
}

// TxParams describe one contract call.
type TxParams struct {
	Sender   domain.Principal `json:"sender"`
	Contract domain.Principal `json:"contract"`
	Function string           `json:"function"`
	Args     []abi.Value      `json:"args"`
}

// MineBlockParams are the params of mine_block.
type MineBlockParams struct {
	Transactions []TxParams `json:"transactions"`
}

// CallResult is the outcome of call_read_only: (ok value), (err code) or a native failure.
type CallResult struct {
	Ok          bool       `json:"ok"`
	Value       *abi.Value `json:"value,omitempty"`
	ErrorCode   *uint32    `json:"error_code,omitempty"`
	NativeError string     `json:"native_error,omitempty"`
}

// ReceiptParams are the params of get_receipt.
type ReceiptParams struct {
	TxID string `json:"tx_id"`
}

// BlockParams are the params of get_block_receipts.
type BlockParams struct {
	Height uint64 `json:"height"`
}

// AccountParams are the params of get_account.
type AccountParams struct {
	Principal domain.Principal `json:"principal"`
}

// FaucetParams are the params of faucet. Amount is base-10 micro-units.
type FaucetParams struct {
	Principal domain.Principal `json:"principal"`
	Amount    string           `json:"amount"`
}

// Account is a native account balance on the wire.
type Account struct {
	Principal domain.Principal `json:"principal"`
	Balance   string           `json:"balance"`
}

// ChainInfo is the result of get_chain_info.
type ChainInfo struct {
	Height    uint64       `json:"height"`
	TxCount   uint64       `json:"tx_count"`
	Contracts []Deployment `json:"contracts"`
}

func toDeployment(d *domain.ContractDeployment) Deployment {
	return Deployment{
		Contract:   d.Contract,
		Kind:       d.Kind,
		Deployer:   d.Deployer,
		DeployedAt: d.DeployedAt,
	}
}
