package factory

import (
	"context"
	"math"

	"token-forge/internal/abi"
	"token-forge/internal/contract"
	"token-forge/internal/domain"
)

// Methods implements contract.Contract.
func (f *Factory) Methods() []contract.Method {
	principalParam := func(name string) []abi.Param {
		return []abi.Param{{Name: name, Type: abi.TypePrincipal}}
	}

	return []contract.Method{
		{
			Signature: abi.Signature{
				Name: "create-token",
				Params: []abi.Param{
					{Name: "name", Type: abi.TypeASCII},
					{Name: "symbol", Type: abi.TypeASCII},
					{Name: "decimals", Type: abi.TypeUInt},
					{Name: "supply", Type: abi.TypeUInt},
				},
			},
			Handler: f.callCreateToken,
		},
		{
			Signature: abi.Signature{Name: "set-creation-fee", Params: []abi.Param{{Name: "new-fee", Type: abi.TypeUInt}}},
			Handler:   f.callSetCreationFee,
		},
		{
			Signature: abi.Signature{Name: "set-fee-recipient", Params: principalParam("new-recipient")},
			Handler:   f.callSetFeeRecipient,
		},
		{
			Signature: abi.Signature{Name: "transfer-ownership", Params: principalParam("new-owner")},
			Handler:   f.callTransferOwnership,
		},
		{
			Signature: abi.Signature{Name: "get-token-count", ReadOnly: true},
			Handler:   f.callGetTokenCount,
		},
		{
			Signature: abi.Signature{Name: "get-token-by-id", ReadOnly: true, Params: []abi.Param{{Name: "token-id", Type: abi.TypeUInt}}},
			Handler:   f.callGetTokenByID,
		},
		{
			Signature: abi.Signature{Name: "get-tokens-by-creator", ReadOnly: true, Params: principalParam("creator")},
			Handler:   f.callGetTokensByCreator,
		},
		{
			Signature: abi.Signature{Name: "get-token-count-by-creator", ReadOnly: true, Params: principalParam("creator")},
			Handler:   f.callGetTokenCountByCreator,
		},
		{
			Signature: abi.Signature{Name: "get-creation-fee", ReadOnly: true},
			Handler:   f.callGetCreationFee,
		},
		{
			Signature: abi.Signature{Name: "get-fee-recipient", ReadOnly: true},
			Handler:   f.callGetFeeRecipient,
		},
		{
			Signature: abi.Signature{Name: "get-owner", ReadOnly: true},
			Handler:   f.callGetOwner,
		},
		{
			Signature: abi.Signature{Name: "get-contract-info", ReadOnly: true},
			Handler:   f.callGetContractInfo,
		},
	}
}

// TokenTuple renders a catalog entry as returned by get-token-by-id.
func TokenTuple(t *domain.Token) abi.Value {
	return abi.Tuple(map[string]abi.Value{
		"token-id":   abi.UInt64(t.TokenID),
		"name":       abi.ASCII(t.Name),
		"symbol":     abi.ASCII(t.Symbol),
		"decimals":   abi.UInt64(uint64(t.Decimals)),
		"supply":     abi.UInt(t.Supply),
		"creator":    abi.Principal(t.Creator),
		"created-at": abi.UInt64(t.CreatedAt),
	})
}

func (f *Factory) callCreateToken(ctx context.Context, env *contract.Env, args []abi.Value) (abi.Value, error) {
	decimals, ok := args[2].AsUint64()
	if !ok {
		decimals = math.MaxUint64
	}
	id, err := f.CreateToken(ctx, env, args[0].Str, args[1].Str, decimals, args[3].UInt)
	if err != nil {
		return abi.Value{}, err
	}
	return abi.UInt64(id), nil
}

func (f *Factory) callSetCreationFee(ctx context.Context, env *contract.Env, args []abi.Value) (abi.Value, error) {
	if err := f.SetCreationFee(ctx, env, args[0].UInt); err != nil {
		return abi.Value{}, err
	}
	return abi.Bool(true), nil
}

func (f *Factory) callSetFeeRecipient(ctx context.Context, env *contract.Env, args []abi.Value) (abi.Value, error) {
	if err := f.SetFeeRecipient(ctx, env, args[0].AsPrincipal()); err != nil {
		return abi.Value{}, err
	}
	return abi.Bool(true), nil
}

func (f *Factory) callTransferOwnership(ctx context.Context, env *contract.Env, args []abi.Value) (abi.Value, error) {
	if err := f.TransferOwnership(ctx, env, args[0].AsPrincipal()); err != nil {
		return abi.Value{}, err
	}
	return abi.Bool(true), nil
}

func (f *Factory) callGetTokenCount(ctx context.Context, env *contract.Env, _ []abi.Value) (abi.Value, error) {
	n, err := f.GetTokenCount(ctx, env)
	if err != nil {
		return abi.Value{}, err
	}
	return abi.UInt64(n), nil
}

func (f *Factory) callGetTokenByID(ctx context.Context, env *contract.Env, args []abi.Value) (abi.Value, error) {
	id, ok := args[0].AsUint64()
	if !ok {
		return abi.Value{}, ErrNotFound
	}
	t, err := f.GetTokenByID(ctx, env, id)
	if err != nil {
		return abi.Value{}, err
	}
	return TokenTuple(t), nil
}

func (f *Factory) callGetTokensByCreator(ctx context.Context, env *contract.Env, args []abi.Value) (abi.Value, error) {
	ids, err := f.GetTokensByCreator(ctx, env, args[0].AsPrincipal())
	if err != nil {
		return abi.Value{}, err
	}
	items := make([]abi.Value, 0, len(ids))
	for _, id := range ids {
		items = append(items, abi.UInt64(id))
	}
	return abi.List(items...), nil
}

func (f *Factory) callGetTokenCountByCreator(ctx context.Context, env *contract.Env, args []abi.Value) (abi.Value, error) {
	n, err := f.GetTokenCountByCreator(ctx, env, args[0].AsPrincipal())
	if err != nil {
		return abi.Value{}, err
	}
	return abi.UInt64(n), nil
}

func (f *Factory) callGetCreationFee(ctx context.Context, env *contract.Env, _ []abi.Value) (abi.Value, error) {
	fee, err := f.GetCreationFee(ctx, env)
	if err != nil {
		return abi.Value{}, err
	}
	return abi.UInt(fee), nil
}

func (f *Factory) callGetFeeRecipient(ctx context.Context, env *contract.Env, _ []abi.Value) (abi.Value, error) {
	p, err := f.GetFeeRecipient(ctx, env)
	if err != nil {
		return abi.Value{}, err
	}
	return abi.Principal(p), nil
}

func (f *Factory) callGetOwner(ctx context.Context, env *contract.Env, _ []abi.Value) (abi.Value, error) {
	p, err := f.GetOwner(ctx, env)
	if err != nil {
		return abi.Value{}, err
	}
	return abi.Principal(p), nil
}

func (f *Factory) callGetContractInfo(ctx context.Context, env *contract.Env, _ []abi.Value) (abi.Value, error) {
	info, err := f.GetContractInfo(ctx, env)
	if err != nil {
		return abi.Value{}, err
	}
	return abi.Tuple(map[string]abi.Value{
		"token-count":  abi.UInt64(info.TokenCount),
		"creation-fee": abi.UInt(info.CreationFee),
		"version":      abi.ASCII(info.Version),
	}), nil
}
