// Package sip010 defines the standard fungible-token trait every token ledger implements.
package sip010

import (
	"context"
	"fmt"

	"token-forge/internal/abi"
	"token-forge/internal/contract"
	"token-forge/internal/domain"
)

// FungibleToken is the Go-side view of the trait.
type FungibleToken interface {
	Transfer(ctx context.Context, env *contract.Env, amount domain.Amount, sender, recipient domain.Principal, memo []byte) error
	GetName(ctx context.Context, env *contract.Env) (string, error)
	GetSymbol(ctx context.Context, env *contract.Env) (string, error)
	GetDecimals(ctx context.Context, env *contract.Env) (uint8, error)
	GetBalance(ctx context.Context, env *contract.Env, who domain.Principal) (domain.Amount, error)
	GetTotalSupply(ctx context.Context, env *contract.Env) (domain.Amount, error)
	GetTokenURI(ctx context.Context, env *contract.Env) (*string, error)
}

// MaxMemoLen is the largest transfer memo, in bytes.
const MaxMemoLen = 34

// Signatures is the ABI of the trait.
var Signatures = []abi.Signature{
	{
		Name: "transfer",
		Params: []abi.Param{
			{Name: "amount", Type: abi.TypeUInt},
			{Name: "sender", Type: abi.TypePrincipal},
			{Name: "recipient", Type: abi.TypePrincipal},
			{Name: "memo", Type: abi.TypeOptional, Inner: abi.TypeBuffer, MaxLen: MaxMemoLen},
		},
	},
	{Name: "get-name", ReadOnly: true},
	{Name: "get-symbol", ReadOnly: true},
	{Name: "get-decimals", ReadOnly: true},
	{Name: "get-balance", ReadOnly: true, Params: []abi.Param{{Name: "who", Type: abi.TypePrincipal}}},
	{Name: "get-total-supply", ReadOnly: true},
	{Name: "get-token-uri", ReadOnly: true},
}

// Conforms reports an error naming the first trait function c lacks or declares differently.
func Conforms(c contract.Contract) error {
	for _, want := range Signatures {
		m, ok := contract.Lookup(c, want.Name)
		if !ok {
			return fmt.Errorf("%s does not implement sip-010: missing %s", c.Kind(), want.Name)
		}
		if !m.Equal(want) {
			return fmt.Errorf("%s does not implement sip-010: %s has a different signature", c.Kind(), want.Name)
		}
	}
	return nil
}
