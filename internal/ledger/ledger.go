// Package ledger implements the per-token balance and supply contract.
//
// A ledger is deployed uninitialized with its deployer as owner. The owner calls
// initialize exactly once to fix the metadata and mint the initial supply to a
// holder; afterwards holders transfer and burn their own balances and the owner
// may mint more. The sum of all balances always equals the total supply.
package ledger

import (
	"context"
	"encoding/hex"
	"fmt"

	"token-forge/internal/contract"
	"token-forge/internal/domain"
	"token-forge/internal/sip010"
)

// MaxDecimals is the largest accepted decimals value.
const MaxDecimals = 18

// Ledger is the token-ledger program. It is stateless; all state lives in
// env.State keyed by env.Self.
type Ledger struct{}

// New creates the token-ledger program.
func New() *Ledger {
	return &Ledger{}
}

var (
	_ contract.Contract    = (*Ledger)(nil)
	_ contract.Deployable  = (*Ledger)(nil)
	_ sip010.FungibleToken = (*Ledger)(nil)
)

// Kind implements contract.Contract.
func (l *Ledger) Kind() domain.ContractKind {
	return domain.KindTokenLedger
}

// OnDeploy writes the uninitialized metadata row owned by the deployer.
func (l *Ledger) OnDeploy(ctx context.Context, env *contract.Env) error {
	err := env.State.PutLedger(ctx, &domain.LedgerState{
		Contract: env.Self,
		Owner:    env.Caller,
	})
	if err != nil {
		return contract.WrapWrite("put ledger", err)
	}
	return nil
}

// Initialize sets the metadata and mints initialSupply to holder. Owner only, once.
func (l *Ledger) Initialize(ctx context.Context, env *contract.Env, name, symbol string, decimals uint64, initialSupply domain.Amount, holder domain.Principal) error {
	st, err := l.load(ctx, env)
	if err != nil {
		return err
	}
	if env.Caller != st.Owner {
		return ErrNotOwner
	}
	if st.Initialized {
		return ErrAlreadyInitialized
	}
	if decimals > MaxDecimals {
		return ErrInvalidDecimals
	}
	if initialSupply.IsZero() {
		return ErrInvalidAmount
	}

	st.Name = name
	st.Symbol = symbol
	st.Decimals = uint8(decimals)
	st.TotalSupply = initialSupply
	st.Initialized = true
	if err := env.State.PutLedger(ctx, st); err != nil {
		return contract.WrapWrite("put ledger", err)
	}
	if err := env.State.SetBalance(ctx, env.Self, holder, initialSupply); err != nil {
		return contract.WrapWrite("set balance", err)
	}

	env.Emit(domain.TopicFTMint, map[string]string{
		"amount":    initialSupply.String(),
		"recipient": holder.String(),
	})
	return nil
}

// Transfer moves amount from sender to recipient. The caller must be sender.
// A non-nil memo is emitted as a print event.
func (l *Ledger) Transfer(ctx context.Context, env *contract.Env, amount domain.Amount, sender, recipient domain.Principal, memo []byte) error {
	if _, err := l.loadInitialized(ctx, env); err != nil {
		return err
	}
	if env.Caller != sender {
		return ErrNotSender
	}
	if amount.IsZero() {
		return ErrInvalidAmount
	}

	senderBal, err := env.State.GetBalance(ctx, env.Self, sender)
	if err != nil {
		return fmt.Errorf("get balance: %w", err)
	}
	debited, ok := domain.CheckedSub(senderBal, amount)
	if !ok {
		return ErrInsufficientBalance
	}
	if err := env.State.SetBalance(ctx, env.Self, sender, debited); err != nil {
		return contract.WrapWrite("set balance", err)
	}

	// Read after the debit so a self-transfer nets to zero.
	recipientBal, err := env.State.GetBalance(ctx, env.Self, recipient)
	if err != nil {
		return fmt.Errorf("get balance: %w", err)
	}
	credited, ok := domain.CheckedAdd(recipientBal, amount)
	if !ok {
		return contract.ErrArithmeticOverflow
	}
	if err := env.State.SetBalance(ctx, env.Self, recipient, credited); err != nil {
		return contract.WrapWrite("set balance", err)
	}

	env.Emit(domain.TopicFTTransfer, map[string]string{
		"amount":    amount.String(),
		"sender":    sender.String(),
		"recipient": recipient.String(),
	})
	if memo != nil {
		env.Emit(domain.TopicPrint, map[string]string{"memo": hex.EncodeToString(memo)})
	}
	return nil
}

// Mint creates amount new units for recipient. Owner only.
func (l *Ledger) Mint(ctx context.Context, env *contract.Env, amount domain.Amount, recipient domain.Principal) error {
	st, err := l.loadInitialized(ctx, env)
	if err != nil {
		return err
	}
	if env.Caller != st.Owner {
		return ErrNotOwner
	}
	if amount.IsZero() {
		return ErrInvalidAmount
	}

	supply, ok := domain.CheckedAdd(st.TotalSupply, amount)
	if !ok {
		return contract.ErrArithmeticOverflow
	}
	bal, err := env.State.GetBalance(ctx, env.Self, recipient)
	if err != nil {
		return fmt.Errorf("get balance: %w", err)
	}
	// bal <= supply, so this cannot overflow once the supply add succeeded.
	credited, _ := domain.CheckedAdd(bal, amount)

	st.TotalSupply = supply
	if err := env.State.PutLedger(ctx, st); err != nil {
		return contract.WrapWrite("put ledger", err)
	}
	if err := env.State.SetBalance(ctx, env.Self, recipient, credited); err != nil {
		return contract.WrapWrite("set balance", err)
	}

	env.Emit(domain.TopicFTMint, map[string]string{
		"amount":    amount.String(),
		"recipient": recipient.String(),
	})
	return nil
}

// Burn destroys amount of holder's units. The caller must be holder.
func (l *Ledger) Burn(ctx context.Context, env *contract.Env, amount domain.Amount, holder domain.Principal) error {
	st, err := l.loadInitialized(ctx, env)
	if err != nil {
		return err
	}
	if env.Caller != holder {
		return ErrNotSender
	}
	if amount.IsZero() {
		return ErrInvalidAmount
	}

	bal, err := env.State.GetBalance(ctx, env.Self, holder)
	if err != nil {
		return fmt.Errorf("get balance: %w", err)
	}
	debited, ok := domain.CheckedSub(bal, amount)
	if !ok {
		return ErrInsufficientBalance
	}
	supply, ok := domain.CheckedSub(st.TotalSupply, amount)
	if !ok {
		return ErrInsufficientBalance
	}

	st.TotalSupply = supply
	if err := env.State.PutLedger(ctx, st); err != nil {
		return contract.WrapWrite("put ledger", err)
	}
	if err := env.State.SetBalance(ctx, env.Self, holder, debited); err != nil {
		return contract.WrapWrite("set balance", err)
	}

	env.Emit(domain.TopicFTBurn, map[string]string{
		"amount": amount.String(),
		"sender": holder.String(),
	})
	return nil
}

// GetName returns the token name, empty before initialization.
func (l *Ledger) GetName(ctx context.Context, env *contract.Env) (string, error) {
	st, err := l.load(ctx, env)
	if err != nil {
		return "", err
	}
	return st.Name, nil
}

// GetSymbol returns the ticker, empty before initialization.
func (l *Ledger) GetSymbol(ctx context.Context, env *contract.Env) (string, error) {
	st, err := l.load(ctx, env)
	if err != nil {
		return "", err
	}
	return st.Symbol, nil
}

// GetDecimals returns the display scale.
func (l *Ledger) GetDecimals(ctx context.Context, env *contract.Env) (uint8, error) {
	st, err := l.load(ctx, env)
	if err != nil {
		return 0, err
	}
	return st.Decimals, nil
}

// GetBalance returns who's balance; unknown principals hold zero.
func (l *Ledger) GetBalance(ctx context.Context, env *contract.Env, who domain.Principal) (domain.Amount, error) {
	bal, err := env.State.GetBalance(ctx, env.Self, who)
	if err != nil {
		return domain.ZeroAmount, fmt.Errorf("get balance: %w", err)
	}
	return bal, nil
}

// GetTotalSupply returns the number of units in circulation.
func (l *Ledger) GetTotalSupply(ctx context.Context, env *contract.Env) (domain.Amount, error) {
	st, err := l.load(ctx, env)
	if err != nil {
		return domain.ZeroAmount, err
	}
	return st.TotalSupply, nil
}

// GetTokenURI always returns nil; ledgers carry no off-chain metadata.
func (l *Ledger) GetTokenURI(_ context.Context, _ *contract.Env) (*string, error) {
	return nil, nil
}

// GetOwner returns the deployer.
func (l *Ledger) GetOwner(ctx context.Context, env *contract.Env) (domain.Principal, error) {
	st, err := l.load(ctx, env)
	if err != nil {
		return "", err
	}
	return st.Owner, nil
}

// IsInitialized reports whether initialize has succeeded.
func (l *Ledger) IsInitialized(ctx context.Context, env *contract.Env) (bool, error) {
	st, err := l.load(ctx, env)
	if err != nil {
		return false, err
	}
	return st.Initialized, nil
}

func (l *Ledger) load(ctx context.Context, env *contract.Env) (*domain.LedgerState, error) {
	st, err := env.State.GetLedger(ctx, env.Self)
	if err != nil {
		return nil, fmt.Errorf("get ledger %s: %w", env.Self, err)
	}
	return st, nil
}

func (l *Ledger) loadInitialized(ctx context.Context, env *contract.Env) (*domain.LedgerState, error) {
	st, err := l.load(ctx, env)
	if err != nil {
		return nil, err
	}
	if !st.Initialized {
		return nil, ErrNotInitialized
	}
	return st, nil
}
