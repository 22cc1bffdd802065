package factory

import "token-forge/internal/contract"

// Factory error codes.
const (
	ErrNotOwner        contract.Code = 201
	ErrInvalidName     contract.Code = 202
	ErrInvalidSymbol   contract.Code = 203
	ErrInvalidDecimals contract.Code = 204
	ErrInvalidAmount   contract.Code = 205
	ErrNotFound        contract.Code = 206
)
