package memory

import (
	"context"
	"errors"
	"testing"

	"token-forge/internal/domain"
	"token-forge/internal/storage"
)

var (
	factoryP = domain.PrincipalFromSeed("deployer") + ".token-factory"
	ledgerP  = domain.PrincipalFromSeed("deployer") + ".my-token"
	alice    = domain.PrincipalFromSeed("alice")
	bob      = domain.PrincipalFromSeed("bob")
)

func TestStateStore_UpdateCommits(t *testing.T) {
	store := NewStateStore()
	ctx := context.Background()

	err := store.Update(ctx, func(st storage.State) error {
		if err := st.PutFactory(ctx, &domain.FactoryConfig{Contract: factoryP, Owner: alice, CreationFee: domain.NewAmount(1_000_000)}); err != nil {
			return err
		}
		return st.SetBalance(ctx, ledgerP, alice, domain.NewAmount(500))
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	err = store.View(ctx, func(st storage.State) error {
		cfg, err := st.GetFactory(ctx, factoryP)
		if err != nil {
			return err
		}
		if cfg.Owner != alice {
			t.Errorf("Owner mismatch: got %s, want %s", cfg.Owner, alice)
		}
		bal, err := st.GetBalance(ctx, ledgerP, alice)
		if err != nil {
			return err
		}
		if !bal.Equals64(500) {
			t.Errorf("balance mismatch: got %s, want 500", bal)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View failed: %v", err)
	}
}

func TestStateStore_UpdateRollsBackOnError(t *testing.T) {
	store := NewStateStore()
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.Update(ctx, func(st storage.State) error {
		if err := st.SetAccountBalance(ctx, alice, domain.NewAmount(10)); err != nil {
			return err
		}
		if err := st.InsertToken(ctx, &domain.Token{Factory: factoryP, TokenID: 0, Name: "X"}); err != nil {
			return err
		}
		if err := st.AppendCreatorToken(ctx, factoryP, alice, 0); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	_ = store.View(ctx, func(st storage.State) error {
		bal, _ := st.GetAccountBalance(ctx, alice)
		if !bal.IsZero() {
			t.Errorf("expected rolled-back balance, got %s", bal)
		}
		if _, err := st.GetToken(ctx, factoryP, 0); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound for rolled-back token, got %v", err)
		}
		ids, _ := st.ListCreatorTokens(ctx, factoryP, alice)
		if len(ids) != 0 {
			t.Errorf("expected empty creator list, got %v", ids)
		}
		return nil
	})
}

func TestStateStore_ViewIsReadOnly(t *testing.T) {
	store := NewStateStore()
	ctx := context.Background()

	err := store.View(ctx, func(st storage.State) error {
		return st.SetBalance(ctx, ledgerP, alice, domain.NewAmount(1))
	})
	if !errors.Is(err, storage.ErrReadOnly) {
		t.Errorf("expected ErrReadOnly, got %v", err)
	}
}

func TestStateStore_CreatorTokensKeepOrder(t *testing.T) {
	store := NewStateStore()
	ctx := context.Background()

	for _, id := range []uint64{0, 2, 5} {
		err := store.Update(ctx, func(st storage.State) error {
			return st.AppendCreatorToken(ctx, factoryP, alice, id)
		})
		if err != nil {
			t.Fatalf("AppendCreatorToken failed: %v", err)
		}
	}

	// An aborted append must not leak into the committed list.
	_ = store.Update(ctx, func(st storage.State) error {
		_ = st.AppendCreatorToken(ctx, factoryP, alice, 9)
		return errors.New("abort")
	})

	_ = store.View(ctx, func(st storage.State) error {
		ids, err := st.ListCreatorTokens(ctx, factoryP, alice)
		if err != nil {
			t.Fatalf("ListCreatorTokens failed: %v", err)
		}
		want := []uint64{0, 2, 5}
		if len(ids) != len(want) {
			t.Fatalf("expected %v, got %v", want, ids)
		}
		for i := range want {
			if ids[i] != want[i] {
				t.Errorf("index %d: got %d, want %d", i, ids[i], want[i])
			}
		}

		other, _ := st.ListCreatorTokens(ctx, factoryP, bob)
		if other == nil || len(other) != 0 {
			t.Errorf("expected empty non-nil list for unknown creator, got %v", other)
		}
		return nil
	})
}

func TestStateStore_DuplicateContract(t *testing.T) {
	store := NewStateStore()
	ctx := context.Background()

	deploy := &domain.ContractDeployment{Contract: ledgerP, Kind: domain.KindTokenLedger, Deployer: alice}
	if err := store.Update(ctx, func(st storage.State) error { return st.InsertContract(ctx, deploy) }); err != nil {
		t.Fatalf("InsertContract failed: %v", err)
	}

	err := store.Update(ctx, func(st storage.State) error { return st.InsertContract(ctx, deploy) })
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestStateStore_ListBalancesSkipsZero(t *testing.T) {
	store := NewStateStore()
	ctx := context.Background()

	_ = store.Update(ctx, func(st storage.State) error {
		_ = st.SetBalance(ctx, ledgerP, alice, domain.NewAmount(7))
		_ = st.SetBalance(ctx, ledgerP, bob, domain.NewAmount(3))
		return st.SetBalance(ctx, ledgerP, bob, domain.ZeroAmount)
	})

	_ = store.View(ctx, func(st storage.State) error {
		balances, err := st.ListBalances(ctx, ledgerP)
		if err != nil {
			t.Fatalf("ListBalances failed: %v", err)
		}
		if len(balances) != 1 || balances[0].Holder != alice {
			t.Errorf("expected only alice, got %v", balances)
		}
		return nil
	})
}

func TestStateStore_UpdateSeesOwnWrites(t *testing.T) {
	store := NewStateStore()
	ctx := context.Background()

	_ = store.Update(ctx, func(st storage.State) error {
		_ = st.SetBalance(ctx, ledgerP, alice, domain.NewAmount(7))
		_ = st.SetBalance(ctx, ledgerP, bob, domain.NewAmount(3))
		return st.SetTip(ctx, &domain.ChainTip{Height: 4, TxCount: 9})
	})

	boom := errors.New("boom")
	err := store.Update(ctx, func(st storage.State) error {
		if err := st.SetBalance(ctx, ledgerP, bob, domain.ZeroAmount); err != nil {
			return err
		}
		if err := st.SetBalance(ctx, ledgerP, alice, domain.NewAmount(8)); err != nil {
			return err
		}
		if err := st.SetTip(ctx, &domain.ChainTip{Height: 5, TxCount: 10}); err != nil {
			return err
		}

		bal, _ := st.GetBalance(ctx, ledgerP, alice)
		if !bal.Equals64(8) {
			t.Errorf("expected pending balance 8, got %s", bal)
		}
		balances, _ := st.ListBalances(ctx, ledgerP)
		if len(balances) != 1 || balances[0].Holder != alice || !balances[0].Amount.Equals64(8) {
			t.Errorf("expected only alice at 8, got %v", balances)
		}
		tip, _ := st.GetTip(ctx)
		if tip.Height != 5 {
			t.Errorf("expected pending tip 5, got %d", tip.Height)
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	_ = store.View(ctx, func(st storage.State) error {
		balances, _ := st.ListBalances(ctx, ledgerP)
		if len(balances) != 2 {
			t.Fatalf("expected both holders after rollback, got %v", balances)
		}
		bal, _ := st.GetBalance(ctx, ledgerP, alice)
		if !bal.Equals64(7) {
			t.Errorf("expected committed balance 7, got %s", bal)
		}
		tip, _ := st.GetTip(ctx)
		if tip.Height != 4 || tip.TxCount != 9 {
			t.Errorf("expected committed tip 4/9, got %d/%d", tip.Height, tip.TxCount)
		}
		return nil
	})
}

func TestStateStore_DeleteThenRewriteCommits(t *testing.T) {
	store := NewStateStore()
	ctx := context.Background()

	_ = store.Update(ctx, func(st storage.State) error {
		return st.SetBalance(ctx, ledgerP, alice, domain.NewAmount(7))
	})
	err := store.Update(ctx, func(st storage.State) error {
		_ = st.SetBalance(ctx, ledgerP, alice, domain.ZeroAmount)
		return st.SetBalance(ctx, ledgerP, alice, domain.NewAmount(2))
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	_ = store.View(ctx, func(st storage.State) error {
		bal, _ := st.GetBalance(ctx, ledgerP, alice)
		if !bal.Equals64(2) {
			t.Errorf("expected 2, got %s", bal)
		}
		return nil
	})
}
