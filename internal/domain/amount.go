package domain

import (
	"errors"
	"fmt"

	"lukechampine.com/uint128"
)

// Amount is an unsigned 128-bit quantity in the smallest indivisible unit.
// All ledger balances, supplies and native micro-unit balances use it.
type Amount = uint128.Uint128

// ZeroAmount is the additive identity.
var ZeroAmount = uint128.Zero

// NewAmount converts a uint64 to an Amount.
func NewAmount(v uint64) Amount {
	return uint128.From64(v)
}

// ErrInvalidAmountString is returned by ParseAmount for anything but plain decimal digits.
var ErrInvalidAmountString = errors.New("amount must be base-10 digits")

// ParseAmount parses a base-10 amount. Only the digits 0-9 are accepted:
// no sign, prefix, exponent, separator or surrounding space.
func ParseAmount(s string) (Amount, error) {
	if !isDigits(s) {
		return ZeroAmount, fmt.Errorf("parse amount %q: %w", s, ErrInvalidAmountString)
	}
	a, err := uint128.FromString(s)
	if err != nil {
		return ZeroAmount, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return a, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// CheckedAdd returns a+b, or false if the sum does not fit in 128 bits.
func CheckedAdd(a, b Amount) (Amount, bool) {
	sum := a.AddWrap(b)
	if sum.Cmp(a) < 0 {
		return ZeroAmount, false
	}
	return sum, true
}

// CheckedSub returns a-b, or false if b > a.
func CheckedSub(a, b Amount) (Amount, bool) {
	if a.Cmp(b) < 0 {
		return ZeroAmount, false
	}
	return a.SubWrap(b), true
}
