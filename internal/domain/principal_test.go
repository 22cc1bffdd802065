package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestPrincipalFromSeed_Deterministic(t *testing.T) {
	a := PrincipalFromSeed("wallet_1")
	b := PrincipalFromSeed("wallet_1")
	c := PrincipalFromSeed("wallet_2")

	if a != b {
		t.Errorf("same seed produced different principals: %s vs %s", a, b)
	}
	if a == c {
		t.Errorf("different seeds produced the same principal %s", a)
	}

	if _, err := ParsePrincipal(string(a)); err != nil {
		t.Errorf("derived principal does not parse: %v", err)
	}
}

func TestParsePrincipal_Contract(t *testing.T) {
	deployer := PrincipalFromSeed("deployer")

	p, err := ContractPrincipal(deployer, "token-factory")
	if err != nil {
		t.Fatalf("ContractPrincipal: %v", err)
	}

	if !p.IsContract() {
		t.Error("expected contract principal")
	}
	if p.Address() != deployer {
		t.Errorf("Address mismatch: got %s, want %s", p.Address(), deployer)
	}
	if p.ContractName() != "token-factory" {
		t.Errorf("ContractName mismatch: got %s", p.ContractName())
	}

	if _, err := ContractPrincipal(p, "nested"); !errors.Is(err, ErrInvalidPrincipal) {
		t.Errorf("expected ErrInvalidPrincipal for contract deployer, got %v", err)
	}
}

func TestParsePrincipal_Invalid(t *testing.T) {
	deployer := string(PrincipalFromSeed("deployer"))

	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"not base58", "0OIl"},
		{"wrong length", "3mJr7AoUXx2Wqd"},
		{"bad contract name", deployer + ".1token"},
		{"empty contract name", deployer + "."},
		{"contract name too long", deployer + "." + strings.Repeat("a", 41)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParsePrincipal(tt.input); !errors.Is(err, ErrInvalidPrincipal) {
				t.Errorf("expected ErrInvalidPrincipal, got %v", err)
			}
		})
	}
}

func TestCheckedArithmetic(t *testing.T) {
	maxAmount, err := ParseAmount("340282366920938463463374607431768211455")
	if err != nil {
		t.Fatalf("ParseAmount: %v", err)
	}

	if _, ok := CheckedAdd(maxAmount, NewAmount(1)); ok {
		t.Error("expected overflow adding 1 to max")
	}

	sum, ok := CheckedAdd(NewAmount(40), NewAmount(2))
	if !ok || !sum.Equals64(42) {
		t.Errorf("CheckedAdd: got %s, %v", sum, ok)
	}

	if _, ok := CheckedSub(NewAmount(1), NewAmount(2)); ok {
		t.Error("expected underflow subtracting 2 from 1")
	}

	diff, ok := CheckedSub(NewAmount(10), NewAmount(10))
	if !ok || !diff.IsZero() {
		t.Errorf("CheckedSub: got %s, %v", diff, ok)
	}
}
