// Package factory implements the token registry contract.
//
// The factory is a catalog, not a custodian: create-token validates the request,
// charges the creation fee in native units, and records an immutable Token entry
// under the next sequential id. It never deploys or references ledger contracts.
package factory

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"token-forge/internal/contract"
	"token-forge/internal/domain"
	"token-forge/internal/storage"
)

const (
	// Version is reported by get-contract-info.
	Version = "1.0.0"

	// DefaultCreationFee is the fee in micro-units charged per token until the owner changes it.
	DefaultCreationFee = 1_000_000

	MaxNameLength   = 64
	MaxSymbolLength = 11
	MaxDecimals     = 18
)

var symbolRegex = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Factory is the token-factory program. All state lives in env.State keyed by env.Self.
type Factory struct{}

// New creates the token-factory program.
func New() *Factory {
	return &Factory{}
}

var (
	_ contract.Contract   = (*Factory)(nil)
	_ contract.Deployable = (*Factory)(nil)
)

// Kind implements contract.Contract.
func (f *Factory) Kind() domain.ContractKind {
	return domain.KindTokenFactory
}

// OnDeploy writes the initial config: deployer is owner and fee recipient.
func (f *Factory) OnDeploy(ctx context.Context, env *contract.Env) error {
	err := env.State.PutFactory(ctx, &domain.FactoryConfig{
		Contract:     env.Self,
		Owner:        env.Caller,
		FeeRecipient: env.Caller,
		CreationFee:  domain.NewAmount(DefaultCreationFee),
	})
	if err != nil {
		return contract.WrapWrite("put factory", err)
	}
	return nil
}

// ValidateToken checks the create-token inputs and returns the matching error code.
func ValidateToken(name, symbol string, decimals uint64, supply domain.Amount) error {
	if name == "" || len(name) > MaxNameLength {
		return ErrInvalidName
	}
	if len(symbol) > MaxSymbolLength || !symbolRegex.MatchString(symbol) {
		return ErrInvalidSymbol
	}
	if decimals > MaxDecimals {
		return ErrInvalidDecimals
	}
	if supply.IsZero() {
		return ErrInvalidAmount
	}
	return nil
}

// CreateToken registers a new token for the caller and returns its id.
// The creation fee is paid from caller to the fee recipient; a caller that is
// itself the fee recipient, or a zero fee, moves no funds.
func (f *Factory) CreateToken(ctx context.Context, env *contract.Env, name, symbol string, decimals uint64, supply domain.Amount) (uint64, error) {
	if err := ValidateToken(name, symbol, decimals, supply); err != nil {
		return 0, err
	}

	cfg, err := f.load(ctx, env)
	if err != nil {
		return 0, err
	}

	if !cfg.CreationFee.IsZero() && env.Caller != cfg.FeeRecipient {
		if err := env.TransferNative(ctx, cfg.CreationFee, env.Caller, cfg.FeeRecipient); err != nil {
			return 0, err
		}
	}

	tokenID := cfg.TokenCount
	token := &domain.Token{
		Factory:   env.Self,
		TokenID:   tokenID,
		Name:      name,
		Symbol:    symbol,
		Decimals:  uint8(decimals),
		Supply:    supply,
		Creator:   env.Caller,
		CreatedAt: env.BlockHeight,
	}
	if err := env.State.InsertToken(ctx, token); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return 0, fmt.Errorf("token id %d already registered: %w", tokenID, err)
		}
		return 0, contract.WrapWrite("insert token", err)
	}
	if err := env.State.AppendCreatorToken(ctx, env.Self, env.Caller, tokenID); err != nil {
		return 0, contract.WrapWrite("append creator token", err)
	}

	cfg.TokenCount++
	if err := env.State.PutFactory(ctx, cfg); err != nil {
		return 0, contract.WrapWrite("put factory", err)
	}

	env.Emit(domain.TopicPrint, map[string]string{
		"event":    "token-created",
		"token-id": strconv.FormatUint(tokenID, 10),
		"creator":  env.Caller.String(),
		"symbol":   symbol,
	})
	return tokenID, nil
}

// SetCreationFee replaces the creation fee. Owner only.
func (f *Factory) SetCreationFee(ctx context.Context, env *contract.Env, fee domain.Amount) error {
	return f.updateConfig(ctx, env, func(cfg *domain.FactoryConfig) {
		cfg.CreationFee = fee
	})
}

// SetFeeRecipient replaces the fee recipient. Owner only.
func (f *Factory) SetFeeRecipient(ctx context.Context, env *contract.Env, recipient domain.Principal) error {
	return f.updateConfig(ctx, env, func(cfg *domain.FactoryConfig) {
		cfg.FeeRecipient = recipient
	})
}

// TransferOwnership hands the owner role to newOwner in a single step. Owner only.
func (f *Factory) TransferOwnership(ctx context.Context, env *contract.Env, newOwner domain.Principal) error {
	return f.updateConfig(ctx, env, func(cfg *domain.FactoryConfig) {
		cfg.Owner = newOwner
	})
}

// GetTokenCount returns the number of registered tokens, which is also the next id.
func (f *Factory) GetTokenCount(ctx context.Context, env *contract.Env) (uint64, error) {
	cfg, err := f.load(ctx, env)
	if err != nil {
		return 0, err
	}
	return cfg.TokenCount, nil
}

// GetTokenByID returns a catalog entry, or ErrNotFound.
func (f *Factory) GetTokenByID(ctx context.Context, env *contract.Env, tokenID uint64) (*domain.Token, error) {
	t, err := env.State.GetToken(ctx, env.Self, tokenID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get token: %w", err)
	}
	return t, nil
}

// GetTokensByCreator returns the creator's token ids in creation order.
func (f *Factory) GetTokensByCreator(ctx context.Context, env *contract.Env, creator domain.Principal) ([]uint64, error) {
	ids, err := env.State.ListCreatorTokens(ctx, env.Self, creator)
	if err != nil {
		return nil, fmt.Errorf("list creator tokens: %w", err)
	}
	return ids, nil
}

// GetTokenCountByCreator returns how many tokens creator has registered.
func (f *Factory) GetTokenCountByCreator(ctx context.Context, env *contract.Env, creator domain.Principal) (uint64, error) {
	ids, err := f.GetTokensByCreator(ctx, env, creator)
	if err != nil {
		return 0, err
	}
	return uint64(len(ids)), nil
}

func (f *Factory) GetCreationFee(ctx context.Context, env *contract.Env) (domain.Amount, error) {
	cfg, err := f.load(ctx, env)
	if err != nil {
		return domain.ZeroAmount, err
	}
	return cfg.CreationFee, nil
}

func (f *Factory) GetOwner(ctx context.Context, env *contract.Env) (domain.Principal, error) {
	cfg, err := f.load(ctx, env)
	if err != nil {
		return "", err
	}
	return cfg.Owner, nil
}

func (f *Factory) GetFeeRecipient(ctx context.Context, env *contract.Env) (domain.Principal, error) {
	cfg, err := f.load(ctx, env)
	if err != nil {
		return "", err
	}
	return cfg.FeeRecipient, nil
}

// GetContractInfo returns the token count, creation fee and version.
func (f *Factory) GetContractInfo(ctx context.Context, env *contract.Env) (*domain.FactoryInfo, error) {
	cfg, err := f.load(ctx, env)
	if err != nil {
		return nil, err
	}
	return &domain.FactoryInfo{
		TokenCount:  cfg.TokenCount,
		CreationFee: cfg.CreationFee,
		Version:     Version,
	}, nil
}

func (f *Factory) updateConfig(ctx context.Context, env *contract.Env, mutate func(*domain.FactoryConfig)) error {
	cfg, err := f.load(ctx, env)
	if err != nil {
		return err
	}
	if env.Caller != cfg.Owner {
		return ErrNotOwner
	}
	mutate(cfg)
	if err := env.State.PutFactory(ctx, cfg); err != nil {
		return contract.WrapWrite("put factory", err)
	}
	return nil
}

func (f *Factory) load(ctx context.Context, env *contract.Env) (*domain.FactoryConfig, error) {
	cfg, err := env.State.GetFactory(ctx, env.Self)
	if err != nil {
		return nil, fmt.Errorf("get factory %s: %w", env.Self, err)
	}
	return cfg, nil
}
