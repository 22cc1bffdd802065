package storage

import (
	"context"

	"token-forge/internal/domain"
)

// ReadOnly wraps s so that every write fails with ErrReadOnly.
func ReadOnly(s State) State {
	if ro, ok := s.(readOnlyState); ok {
		return ro
	}
	return readOnlyState{State: s}
}

type readOnlyState struct {
	State
}

func (readOnlyState) PutFactory(context.Context, *domain.FactoryConfig) error {
	return ErrReadOnly
}

func (readOnlyState) InsertToken(context.Context, *domain.Token) error {
	return ErrReadOnly
}

func (readOnlyState) AppendCreatorToken(context.Context, domain.Principal, domain.Principal, uint64) error {
	return ErrReadOnly
}

func (readOnlyState) PutLedger(context.Context, *domain.LedgerState) error {
	return ErrReadOnly
}

func (readOnlyState) SetBalance(context.Context, domain.Principal, domain.Principal, domain.Amount) error {
	return ErrReadOnly
}

func (readOnlyState) SetAccountBalance(context.Context, domain.Principal, domain.Amount) error {
	return ErrReadOnly
}

func (readOnlyState) InsertContract(context.Context, *domain.ContractDeployment) error {
	return ErrReadOnly
}

func (readOnlyState) SetTip(context.Context, *domain.ChainTip) error {
	return ErrReadOnly
}
