package contract

import (
	"errors"
	"fmt"
)

// Code is a contract-defined error returned as (err uN). Codes compare by value,
// so errors.Is(err, ledger.ErrNotOwner) works through any wrapping.
type Code uint32

func (c Code) Error() string {
	return fmt.Sprintf("contract error u%d", uint32(c))
}

// CodeOf extracts the contract error code from err.
func CodeOf(err error) (Code, bool) {
	var c Code
	if errors.As(err, &c) {
		return c, true
	}
	return 0, false
}

// NativeError is a failure raised by the platform itself rather than by contract logic.
// It aborts the call and is reported verbatim, never translated into a contract code.
type NativeError string

func (e NativeError) Error() string {
	return string(e)
}

const (
	ErrInsufficientFunds  NativeError = "insufficient-funds"
	ErrArithmeticOverflow NativeError = "arithmetic-overflow"
	ErrBadArgument        NativeError = "bad-argument"
	ErrNoSuchContract     NativeError = "no-such-contract"
	ErrNoSuchFunction     NativeError = "no-such-function"
	ErrReadOnlyViolation  NativeError = "read-only-violation"
)

// NativeErrorOf extracts the native error from err.
func NativeErrorOf(err error) (NativeError, bool) {
	var n NativeError
	if errors.As(err, &n) {
		return n, true
	}
	return "", false
}
