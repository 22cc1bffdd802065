// Package contract is the runtime shared by the on-chain programs: typed error codes,
// native errors, the per-call execution environment and ABI dispatch.
package contract

import (
	"context"
	"fmt"

	"token-forge/internal/abi"
	"token-forge/internal/domain"
)

// Handler executes one ABI function. Arguments have already been checked
// against the method signature.
type Handler func(ctx context.Context, env *Env, args []abi.Value) (abi.Value, error)

// Method binds a public function signature to its handler.
type Method struct {
	abi.Signature
	Handler Handler
}

// Contract is a deployable program.
type Contract interface {
	// Kind names the program.
	Kind() domain.ContractKind

	// Methods returns the public ABI of the program.
	Methods() []Method
}

// Lookup finds a method by name.
func Lookup(c Contract, function string) (Method, bool) {
	for _, m := range c.Methods() {
		if m.Name == function {
			return m, true
		}
	}
	return Method{}, false
}

// Invoke dispatches function on c. Unknown functions, argument mismatches and
// public functions called in a read-only context fail with native errors.
func Invoke(ctx context.Context, c Contract, env *Env, function string, args []abi.Value) (abi.Value, error) {
	m, ok := Lookup(c, function)
	if !ok {
		return abi.Value{}, fmt.Errorf("%w: %s has no function %q", ErrNoSuchFunction, c.Kind(), function)
	}
	if env.ReadOnly && !m.ReadOnly {
		return abi.Value{}, fmt.Errorf("%w: %q is a public function", ErrReadOnlyViolation, function)
	}
	if err := m.Check(args); err != nil {
		return abi.Value{}, fmt.Errorf("%w: %v", ErrBadArgument, err)
	}
	return m.Handler(ctx, env, args)
}

// Signatures returns the signatures of all methods of c.
func Signatures(c Contract) []abi.Signature {
	methods := c.Methods()
	sigs := make([]abi.Signature, 0, len(methods))
	for _, m := range methods {
		sigs = append(sigs, m.Signature)
	}
	return sigs
}

// Deployable is implemented by programs that write initial state at deploy time.
// env.Caller is the deployer and env.Self the new contract principal.
type Deployable interface {
	OnDeploy(ctx context.Context, env *Env) error
}
