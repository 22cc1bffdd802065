package contract

import (
	"context"
	"errors"
	"fmt"

	"token-forge/internal/domain"
	"token-forge/internal/storage"
)

// Env is the execution context of one contract call.
type Env struct {
	Caller      domain.Principal // tx-sender
	Self        domain.Principal // contract being executed
	BlockHeight uint64
	ReadOnly    bool
	State       storage.State

	events []domain.Event
}

// NewEnv creates an Env for a call of self by caller.
func NewEnv(st storage.State, caller, self domain.Principal, height uint64, readOnly bool) *Env {
	if readOnly {
		st = storage.ReadOnly(st)
	}
	return &Env{
		Caller:      caller,
		Self:        self,
		BlockHeight: height,
		ReadOnly:    readOnly,
		State:       st,
	}
}

// Emit records an event attributed to the executing contract.
func (e *Env) Emit(topic string, data map[string]string) {
	e.events = append(e.events, domain.Event{Contract: e.Self, Topic: topic, Data: data})
}

// Events returns the events emitted so far.
func (e *Env) Events() []domain.Event {
	return e.events
}

// TransferNative moves micro-units between native accounts.
// Fails with ErrInsufficientFunds when from cannot cover amount.
func (e *Env) TransferNative(ctx context.Context, amount domain.Amount, from, to domain.Principal) error {
	bank := Bank{Accounts: e.State}
	if err := bank.Transfer(ctx, amount, from, to); err != nil {
		return err
	}
	e.events = append(e.events, domain.Event{
		Topic: domain.TopicSTXTransfer,
		Data: map[string]string{
			"amount":    amount.String(),
			"sender":    from.String(),
			"recipient": to.String(),
		},
	})
	return nil
}

// Bank moves native micro-units over an AccountStore.
type Bank struct {
	Accounts storage.AccountStore
}

// Transfer debits from and credits to. A zero amount fails with ErrBadArgument.
func (b Bank) Transfer(ctx context.Context, amount domain.Amount, from, to domain.Principal) error {
	if amount.IsZero() {
		return fmt.Errorf("%w: zero native transfer", ErrBadArgument)
	}

	fromBal, err := b.Accounts.GetAccountBalance(ctx, from)
	if err != nil {
		return fmt.Errorf("get account balance: %w", err)
	}
	debited, ok := domain.CheckedSub(fromBal, amount)
	if !ok {
		return ErrInsufficientFunds
	}
	if err := b.Accounts.SetAccountBalance(ctx, from, debited); err != nil {
		return WrapWrite("set account balance", err)
	}

	return b.Credit(ctx, to, amount)
}

// Credit adds amount to an account, minting native units.
func (b Bank) Credit(ctx context.Context, to domain.Principal, amount domain.Amount) error {
	toBal, err := b.Accounts.GetAccountBalance(ctx, to)
	if err != nil {
		return fmt.Errorf("get account balance: %w", err)
	}
	credited, ok := domain.CheckedAdd(toBal, amount)
	if !ok {
		return ErrArithmeticOverflow
	}
	if err := b.Accounts.SetAccountBalance(ctx, to, credited); err != nil {
		return WrapWrite("set account balance", err)
	}
	return nil
}

// WrapWrite annotates a failed state write. storage.ErrReadOnly becomes the
// native read-only violation.
func WrapWrite(op string, err error) error {
	if errors.Is(err, storage.ErrReadOnly) {
		return ErrReadOnlyViolation
	}
	return fmt.Errorf("%s: %w", op, err)
}
