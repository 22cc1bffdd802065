package ledger

import (
	"context"
	"math"

	"token-forge/internal/abi"
	"token-forge/internal/contract"
	"token-forge/internal/sip010"
)

// Methods implements contract.Contract. The sip-010 functions come first, in trait order.
func (l *Ledger) Methods() []contract.Method {
	methods := make([]contract.Method, 0, len(sip010.Signatures)+5)
	handlers := map[string]contract.Handler{
		"transfer":         l.callTransfer,
		"get-name":         l.callGetName,
		"get-symbol":       l.callGetSymbol,
		"get-decimals":     l.callGetDecimals,
		"get-balance":      l.callGetBalance,
		"get-total-supply": l.callGetTotalSupply,
		"get-token-uri":    l.callGetTokenURI,
	}
	for _, sig := range sip010.Signatures {
		methods = append(methods, contract.Method{Signature: sig, Handler: handlers[sig.Name]})
	}

	return append(methods,
		contract.Method{
			Signature: abi.Signature{
				Name: "initialize",
				Params: []abi.Param{
					{Name: "name", Type: abi.TypeASCII},
					{Name: "symbol", Type: abi.TypeASCII},
					{Name: "decimals", Type: abi.TypeUInt},
					{Name: "initial-supply", Type: abi.TypeUInt},
					{Name: "initial-holder", Type: abi.TypePrincipal},
				},
			},
			Handler: l.callInitialize,
		},
		contract.Method{
			Signature: abi.Signature{
				Name: "mint",
				Params: []abi.Param{
					{Name: "amount", Type: abi.TypeUInt},
					{Name: "recipient", Type: abi.TypePrincipal},
				},
			},
			Handler: l.callMint,
		},
		contract.Method{
			Signature: abi.Signature{
				Name: "burn",
				Params: []abi.Param{
					{Name: "amount", Type: abi.TypeUInt},
					{Name: "holder", Type: abi.TypePrincipal},
				},
			},
			Handler: l.callBurn,
		},
		contract.Method{
			Signature: abi.Signature{Name: "get-owner", ReadOnly: true},
			Handler:   l.callGetOwner,
		},
		contract.Method{
			Signature: abi.Signature{Name: "is-initialized", ReadOnly: true},
			Handler:   l.callIsInitialized,
		},
	)
}

func (l *Ledger) callInitialize(ctx context.Context, env *contract.Env, args []abi.Value) (abi.Value, error) {
	decimals, ok := args[2].AsUint64()
	if !ok {
		// Out of range either way; Initialize reports it after the owner checks.
		decimals = math.MaxUint64
	}
	err := l.Initialize(ctx, env, args[0].Str, args[1].Str, decimals, args[3].UInt, args[4].AsPrincipal())
	if err != nil {
		return abi.Value{}, err
	}
	return abi.Bool(true), nil
}

func (l *Ledger) callTransfer(ctx context.Context, env *contract.Env, args []abi.Value) (abi.Value, error) {
	var memo []byte
	if args[3].Type == abi.TypeSome {
		memo = args[3].Inner.Bytes
		if memo == nil {
			memo = []byte{}
		}
	}
	err := l.Transfer(ctx, env, args[0].UInt, args[1].AsPrincipal(), args[2].AsPrincipal(), memo)
	if err != nil {
		return abi.Value{}, err
	}
	return abi.Bool(true), nil
}

func (l *Ledger) callMint(ctx context.Context, env *contract.Env, args []abi.Value) (abi.Value, error) {
	if err := l.Mint(ctx, env, args[0].UInt, args[1].AsPrincipal()); err != nil {
		return abi.Value{}, err
	}
	return abi.Bool(true), nil
}

func (l *Ledger) callBurn(ctx context.Context, env *contract.Env, args []abi.Value) (abi.Value, error) {
	if err := l.Burn(ctx, env, args[0].UInt, args[1].AsPrincipal()); err != nil {
		return abi.Value{}, err
	}
	return abi.Bool(true), nil
}

func (l *Ledger) callGetName(ctx context.Context, env *contract.Env, _ []abi.Value) (abi.Value, error) {
	name, err := l.GetName(ctx, env)
	if err != nil {
		return abi.Value{}, err
	}
	return abi.ASCII(name), nil
}

func (l *Ledger) callGetSymbol(ctx context.Context, env *contract.Env, _ []abi.Value) (abi.Value, error) {
	symbol, err := l.GetSymbol(ctx, env)
	if err != nil {
		return abi.Value{}, err
	}
	return abi.ASCII(symbol), nil
}

func (l *Ledger) callGetDecimals(ctx context.Context, env *contract.Env, _ []abi.Value) (abi.Value, error) {
	decimals, err := l.GetDecimals(ctx, env)
	if err != nil {
		return abi.Value{}, err
	}
	return abi.UInt64(uint64(decimals)), nil
}

func (l *Ledger) callGetBalance(ctx context.Context, env *contract.Env, args []abi.Value) (abi.Value, error) {
	bal, err := l.GetBalance(ctx, env, args[0].AsPrincipal())
	if err != nil {
		return abi.Value{}, err
	}
	return abi.UInt(bal), nil
}

func (l *Ledger) callGetTotalSupply(ctx context.Context, env *contract.Env, _ []abi.Value) (abi.Value, error) {
	supply, err := l.GetTotalSupply(ctx, env)
	if err != nil {
		return abi.Value{}, err
	}
	return abi.UInt(supply), nil
}

func (l *Ledger) callGetTokenURI(ctx context.Context, env *contract.Env, _ []abi.Value) (abi.Value, error) {
	uri, err := l.GetTokenURI(ctx, env)
	if err != nil {
		return abi.Value{}, err
	}
	if uri == nil {
		return abi.None(), nil
	}
	return abi.Some(abi.ASCII(*uri)), nil
}

func (l *Ledger) callGetOwner(ctx context.Context, env *contract.Env, _ []abi.Value) (abi.Value, error) {
	owner, err := l.GetOwner(ctx, env)
	if err != nil {
		return abi.Value{}, err
	}
	return abi.Principal(owner), nil
}

func (l *Ledger) callIsInitialized(ctx context.Context, env *contract.Env, _ []abi.Value) (abi.Value, error) {
	initialized, err := l.IsInitialized(ctx, env)
	if err != nil {
		return abi.Value{}, err
	}
	return abi.Bool(initialized), nil
}
