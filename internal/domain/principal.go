package domain

import (
	"crypto/ed25519"
	"crypto/sha256"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// Principal identifies an account or a deployed contract.
//
// A standard principal is the base58 encoding of a 32-byte ed25519 public key.
// A contract principal is "<deployer>.<contract-name>".
type Principal string

// ErrInvalidPrincipal is returned when a principal is not well formed.
var ErrInvalidPrincipal = errors.New("invalid principal")

const contractSeparator = "."

// Contract names follow the usual smart-contract naming rules: a letter followed by
// letters, digits, hyphens or underscores, at most 40 characters.
var contractNameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]{0,39}$`)

// ParsePrincipal validates s and returns it as a Principal.
func ParsePrincipal(s string) (Principal, error) {
	addr, name, isContract := strings.Cut(s, contractSeparator)
	if err := validateAddress(addr); err != nil {
		return "", fmt.Errorf("%w %q: %v", ErrInvalidPrincipal, s, err)
	}
	if isContract && !contractNameRegex.MatchString(name) {
		return "", fmt.Errorf("%w %q: bad contract name", ErrInvalidPrincipal, s)
	}
	return Principal(s), nil
}

// MustParsePrincipal is like ParsePrincipal but panics on error.
func MustParsePrincipal(s string) Principal {
	p, err := ParsePrincipal(s)
	if err != nil {
		panic(err)
	}
	return p
}

// ContractPrincipal builds the principal of a contract deployed by deployer.
func ContractPrincipal(deployer Principal, name string) (Principal, error) {
	if deployer.IsContract() {
		return "", fmt.Errorf("%w: contracts cannot deploy contracts", ErrInvalidPrincipal)
	}
	return ParsePrincipal(string(deployer) + contractSeparator + name)
}

// PrincipalFromPublicKey encodes an ed25519 public key as a standard principal.
func PrincipalFromPublicKey(pub ed25519.PublicKey) (Principal, error) {
	if !isOnCurve(pub) {
		return "", fmt.Errorf("%w: public key is not an ed25519 point", ErrInvalidPrincipal)
	}
	return Principal(base58.Encode(pub)), nil
}

// PrincipalFromSeed deterministically derives a standard principal from an arbitrary
// seed. Used for genesis and test wallets.
func PrincipalFromSeed(seed string) Principal {
	sum := sha256.Sum256([]byte(seed))
	pub := ed25519.NewKeyFromSeed(sum[:]).Public().(ed25519.PublicKey)
	return Principal(base58.Encode(pub))
}

// IsContract reports whether p names a contract.
func (p Principal) IsContract() bool {
	return strings.Contains(string(p), contractSeparator)
}

// Address returns the standard-principal part of p.
func (p Principal) Address() Principal {
	addr, _, _ := strings.Cut(string(p), contractSeparator)
	return Principal(addr)
}

// ContractName returns the contract name, or "" for standard principals.
func (p Principal) ContractName() string {
	_, name, _ := strings.Cut(string(p), contractSeparator)
	return name
}

func (p Principal) String() string {
	return string(p)
}

func validateAddress(addr string) error {
	if addr == "" {
		return errors.New("empty address")
	}
	raw, err := base58.Decode(addr)
	if err != nil {
		return fmt.Errorf("decode base58: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return fmt.Errorf("expected %d bytes, got %d", ed25519.PublicKeySize, len(raw))
	}
	if !isOnCurve(raw) {
		return errors.New("not an ed25519 point")
	}
	return nil
}

func isOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}
