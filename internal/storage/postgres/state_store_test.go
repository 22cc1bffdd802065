package postgres_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-forge/internal/domain"
	"token-forge/internal/storage"
	pgstore "token-forge/internal/storage/postgres"
)

var (
	alice   = domain.PrincipalFromSeed("alice")
	bob     = domain.PrincipalFromSeed("bob")
	factory = domain.Principal(string(alice) + ".token-factory")
	ledger  = domain.Principal(string(alice) + ".my-token")
)

func TestStateStore_FactoryRoundTrip(t *testing.T) {
	pool := newTestDB(t)

	ctx := context.Background()
	store := pgstore.NewStateStore(pool)

	cfg := &domain.FactoryConfig{
		Contract:     factory,
		Owner:        alice,
		FeeRecipient: alice,
		CreationFee:  domain.NewAmount(1_000_000),
		TokenCount:   0,
	}
	token := &domain.Token{
		Factory:   factory,
		TokenID:   0,
		Name:      "Galaxy Coin",
		Symbol:    "GLX",
		Decimals:  6,
		Supply:    domain.NewAmount(5_000_000_000),
		Creator:   bob,
		CreatedAt: 7,
	}

	err := store.Update(ctx, func(st storage.State) error {
		if err := st.PutFactory(ctx, cfg); err != nil {
			return err
		}
		if err := st.InsertToken(ctx, token); err != nil {
			return err
		}
		if err := st.AppendCreatorToken(ctx, factory, bob, 0); err != nil {
			return err
		}
		cfg.TokenCount = 1
		return st.PutFactory(ctx, cfg)
	})
	require.NoError(t, err)

	err = store.View(ctx, func(st storage.State) error {
		got, err := st.GetFactory(ctx, factory)
		require.NoError(t, err)
		assert.Equal(t, *cfg, *got)

		gotToken, err := st.GetToken(ctx, factory, 0)
		require.NoError(t, err)
		assert.Equal(t, *token, *gotToken)

		ids, err := st.ListCreatorTokens(ctx, factory, bob)
		require.NoError(t, err)
		assert.Equal(t, []uint64{0}, ids)

		ids, err = st.ListCreatorTokens(ctx, factory, alice)
		require.NoError(t, err)
		assert.Empty(t, ids)

		_, err = st.GetToken(ctx, factory, 1)
		assert.ErrorIs(t, err, storage.ErrNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestStateStore_InsertTokenDuplicate(t *testing.T) {
	pool := newTestDB(t)

	ctx := context.Background()
	store := pgstore.NewStateStore(pool)

	token := &domain.Token{Factory: factory, TokenID: 0, Name: "A", Symbol: "A", Creator: bob}
	require.NoError(t, store.Update(ctx, func(st storage.State) error {
		return st.InsertToken(ctx, token)
	}))

	err := store.Update(ctx, func(st storage.State) error {
		return st.InsertToken(ctx, token)
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestStateStore_CreatorTokensKeepOrder(t *testing.T) {
	pool := newTestDB(t)

	ctx := context.Background()
	store := pgstore.NewStateStore(pool)

	for _, id := range []uint64{0, 2, 5} {
		require.NoError(t, store.Update(ctx, func(st storage.State) error {
			return st.AppendCreatorToken(ctx, factory, bob, id)
		}))
	}

	require.NoError(t, store.View(ctx, func(st storage.State) error {
		ids, err := st.ListCreatorTokens(ctx, factory, bob)
		require.NoError(t, err)
		assert.Equal(t, []uint64{0, 2, 5}, ids)
		return nil
	}))
}

func TestStateStore_LedgerBalances(t *testing.T) {
	pool := newTestDB(t)

	ctx := context.Background()
	store := pgstore.NewStateStore(pool)

	big, err := domain.ParseAmount("340282366920938463463374607431768211455")
	require.NoError(t, err)

	l := &domain.LedgerState{
		Contract:    ledger,
		Owner:       alice,
		Initialized: true,
		Name:        "My Token",
		Symbol:      "MTK",
		Decimals:    6,
		TotalSupply: big,
	}

	require.NoError(t, store.Update(ctx, func(st storage.State) error {
		if err := st.PutLedger(ctx, l); err != nil {
			return err
		}
		if err := st.SetBalance(ctx, ledger, alice, big.Sub64(100)); err != nil {
			return err
		}
		return st.SetBalance(ctx, ledger, bob, domain.NewAmount(100))
	}))

	require.NoError(t, store.View(ctx, func(st storage.State) error {
		got, err := st.GetLedger(ctx, ledger)
		require.NoError(t, err)
		assert.Equal(t, *l, *got)

		balances, err := st.ListBalances(ctx, ledger)
		require.NoError(t, err)
		require.Len(t, balances, 2)

		unknown, err := st.GetBalance(ctx, ledger, domain.PrincipalFromSeed("carol"))
		require.NoError(t, err)
		assert.True(t, unknown.IsZero())
		return nil
	}))

	// A zero balance removes the row.
	require.NoError(t, store.Update(ctx, func(st storage.State) error {
		return st.SetBalance(ctx, ledger, bob, domain.ZeroAmount)
	}))
	require.NoError(t, store.View(ctx, func(st storage.State) error {
		balances, err := st.ListBalances(ctx, ledger)
		require.NoError(t, err)
		require.Len(t, balances, 1)
		assert.Equal(t, alice, balances[0].Holder)
		return nil
	}))
}

func TestStateStore_UpdateRollsBack(t *testing.T) {
	pool := newTestDB(t)

	ctx := context.Background()
	store := pgstore.NewStateStore(pool)
	errAbort := errors.New("abort")

	err := store.Update(ctx, func(st storage.State) error {
		if err := st.SetAccountBalance(ctx, alice, domain.NewAmount(42)); err != nil {
			return err
		}
		return errAbort
	})
	require.ErrorIs(t, err, errAbort)

	require.NoError(t, store.View(ctx, func(st storage.State) error {
		balance, err := st.GetAccountBalance(ctx, alice)
		require.NoError(t, err)
		assert.True(t, balance.IsZero())
		return nil
	}))
}

func TestStateStore_ViewIsReadOnly(t *testing.T) {
	pool := newTestDB(t)

	ctx := context.Background()
	store := pgstore.NewStateStore(pool)

	err := store.View(ctx, func(st storage.State) error {
		return st.SetTip(ctx, &domain.ChainTip{Height: 1})
	})
	assert.ErrorIs(t, err, storage.ErrReadOnly)
}

func TestStateStore_ContractsAndTip(t *testing.T) {
	pool := newTestDB(t)

	ctx := context.Background()
	store := pgstore.NewStateStore(pool)

	require.NoError(t, store.View(ctx, func(st storage.State) error {
		tip, err := st.GetTip(ctx)
		require.NoError(t, err)
		assert.Equal(t, domain.ChainTip{}, *tip)
		return nil
	}))

	require.NoError(t, store.Update(ctx, func(st storage.State) error {
		if err := st.InsertContract(ctx, &domain.ContractDeployment{
			Contract: ledger, Kind: domain.KindTokenLedger, Deployer: alice, DeployedAt: 2,
		}); err != nil {
			return err
		}
		if err := st.InsertContract(ctx, &domain.ContractDeployment{
			Contract: factory, Kind: domain.KindTokenFactory, Deployer: alice, DeployedAt: 1,
		}); err != nil {
			return err
		}
		return st.SetTip(ctx, &domain.ChainTip{Height: 2, TxCount: 2})
	}))

	err := store.Update(ctx, func(st storage.State) error {
		return st.InsertContract(ctx, &domain.ContractDeployment{
			Contract: factory, Kind: domain.KindTokenFactory, Deployer: alice, DeployedAt: 3,
		})
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	require.NoError(t, store.View(ctx, func(st storage.State) error {
		contracts, err := st.ListContracts(ctx)
		require.NoError(t, err)
		require.Len(t, contracts, 2)
		assert.Equal(t, factory, contracts[0].Contract)
		assert.Equal(t, domain.KindTokenLedger, contracts[1].Kind)

		_, err = st.GetContract(ctx, domain.Principal(string(bob)+".missing"))
		assert.ErrorIs(t, err, storage.ErrNotFound)

		tip, err := st.GetTip(ctx)
		require.NoError(t, err)
		assert.Equal(t, domain.ChainTip{Height: 2, TxCount: 2}, *tip)
		return nil
	}))
}
