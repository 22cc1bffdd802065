package ledger

import "token-forge/internal/contract"

// Ledger error codes.
const (
	ErrNotOwner            contract.Code = 101
	ErrNotSender           contract.Code = 102
	ErrInvalidAmount       contract.Code = 103
	ErrInsufficientBalance contract.Code = 104
	ErrAlreadyInitialized  contract.Code = 105
	ErrNotInitialized      contract.Code = 106
	ErrInvalidDecimals     contract.Code = 107
)
