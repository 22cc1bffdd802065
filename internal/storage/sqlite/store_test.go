package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"token-forge/internal/domain"
	"token-forge/internal/storage"
)

var (
	alice   = domain.PrincipalFromSeed("alice")
	bob     = domain.PrincipalFromSeed("bob")
	factory = domain.Principal(string(alice) + ".token-factory")
	ledger  = domain.Principal(string(alice) + ".my-token")
)

func openTempDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "forge.db"))
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Fatalf("close sqlite db: %v", err)
		}
	})
	return db
}

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := Open(context.Background(), ""); err == nil {
		t.Fatal("expected empty path error")
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "forge.db")
	for i := 0; i < 2; i++ {
		db, err := Open(context.Background(), path)
		if err != nil {
			t.Fatalf("open #%d: %v", i, err)
		}
		if err := db.Close(); err != nil {
			t.Fatalf("close #%d: %v", i, err)
		}
	}
}

func TestExtractUpMigration(t *testing.T) {
	t.Parallel()

	got := extractUpMigration("-- +migrate Up\nCREATE TABLE a (x INT);\n-- +migrate Down\nDROP TABLE a;\n")
	if got != "\nCREATE TABLE a (x INT);\n" {
		t.Fatalf("up section = %q", got)
	}
	if got := extractUpMigration("SELECT 1;"); got != "SELECT 1;" {
		t.Fatalf("no marker = %q", got)
	}
}

func TestStateStoreFactoryRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewStateStore(openTempDB(t))

	cfg := &domain.FactoryConfig{
		Contract:     factory,
		Owner:        alice,
		FeeRecipient: bob,
		CreationFee:  domain.NewAmount(1_000_000),
		TokenCount:   1,
	}
	token := &domain.Token{
		Factory:   factory,
		TokenID:   0,
		Name:      "Galaxy Coin",
		Symbol:    "GLX",
		Decimals:  6,
		Supply:    domain.NewAmount(5_000_000_000),
		Creator:   bob,
		CreatedAt: 3,
	}
	err := store.Update(ctx, func(st storage.State) error {
		if err := st.PutFactory(ctx, cfg); err != nil {
			return err
		}
		if err := st.InsertToken(ctx, token); err != nil {
			return err
		}
		return st.AppendCreatorToken(ctx, factory, bob, 0)
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	err = store.View(ctx, func(st storage.State) error {
		gotCfg, err := st.GetFactory(ctx, factory)
		if err != nil {
			return err
		}
		if *gotCfg != *cfg {
			t.Fatalf("factory = %+v, want %+v", *gotCfg, *cfg)
		}
		gotToken, err := st.GetToken(ctx, factory, 0)
		if err != nil {
			return err
		}
		if *gotToken != *token {
			t.Fatalf("token = %+v, want %+v", *gotToken, *token)
		}
		ids, err := st.ListCreatorTokens(ctx, factory, bob)
		if err != nil {
			return err
		}
		if !reflect.DeepEqual(ids, []uint64{0}) {
			t.Fatalf("creator tokens = %v, want [0]", ids)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestStateStoreDuplicateToken(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewStateStore(openTempDB(t))
	token := &domain.Token{Factory: factory, TokenID: 0, Name: "A", Symbol: "A", Creator: bob}

	insert := func(st storage.State) error { return st.InsertToken(ctx, token) }
	if err := store.Update(ctx, insert); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if err := store.Update(ctx, insert); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("second insert = %v, want ErrDuplicateKey", err)
	}
}

func TestStateStoreUpdateRollsBack(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewStateStore(openTempDB(t))
	errAbort := errors.New("abort")

	err := store.Update(ctx, func(st storage.State) error {
		if err := st.SetBalance(ctx, ledger, alice, domain.NewAmount(10)); err != nil {
			return err
		}
		return errAbort
	})
	if !errors.Is(err, errAbort) {
		t.Fatalf("update = %v, want abort", err)
	}

	err = store.View(ctx, func(st storage.State) error {
		balance, err := st.GetBalance(ctx, ledger, alice)
		if err != nil {
			return err
		}
		if !balance.IsZero() {
			t.Fatalf("balance = %s, want 0", balance)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestStateStoreViewRejectsWrites(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewStateStore(openTempDB(t))

	err := store.View(ctx, func(st storage.State) error {
		return st.SetAccountBalance(ctx, alice, domain.NewAmount(1))
	})
	if !errors.Is(err, storage.ErrReadOnly) {
		t.Fatalf("view write = %v, want ErrReadOnly", err)
	}
}

func TestStateStoreLedgerAndTip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewStateStore(openTempDB(t))
	maxSupply, err := domain.ParseAmount("340282366920938463463374607431768211455")
	if err != nil {
		t.Fatal(err)
	}

	err = store.Update(ctx, func(st storage.State) error {
		if err := st.PutLedger(ctx, &domain.LedgerState{
			Contract: ledger, Owner: alice, Initialized: true,
			Name: "My Token", Symbol: "MTK", Decimals: 6, TotalSupply: maxSupply,
		}); err != nil {
			return err
		}
		if err := st.SetBalance(ctx, ledger, bob, domain.NewAmount(100)); err != nil {
			return err
		}
		if err := st.SetBalance(ctx, ledger, alice, maxSupply.Sub64(100)); err != nil {
			return err
		}
		if err := st.SetBalance(ctx, ledger, bob, domain.ZeroAmount); err != nil {
			return err
		}
		if err := st.InsertContract(ctx, &domain.ContractDeployment{
			Contract: ledger, Kind: domain.KindTokenLedger, Deployer: alice, DeployedAt: 1,
		}); err != nil {
			return err
		}
		return st.SetTip(ctx, &domain.ChainTip{Height: 4, TxCount: 9})
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	err = store.View(ctx, func(st storage.State) error {
		l, err := st.GetLedger(ctx, ledger)
		if err != nil {
			return err
		}
		if l.TotalSupply != maxSupply || !l.Initialized || l.Decimals != 6 {
			t.Fatalf("ledger = %+v", *l)
		}
		balances, err := st.ListBalances(ctx, ledger)
		if err != nil {
			return err
		}
		if len(balances) != 1 || balances[0].Holder != alice {
			t.Fatalf("balances = %+v, want only alice", balances)
		}
		contracts, err := st.ListContracts(ctx)
		if err != nil {
			return err
		}
		if len(contracts) != 1 || contracts[0].Kind != domain.KindTokenLedger {
			t.Fatalf("contracts = %+v", contracts)
		}
		tip, err := st.GetTip(ctx)
		if err != nil {
			return err
		}
		if *tip != (domain.ChainTip{Height: 4, TxCount: 9}) {
			t.Fatalf("tip = %+v", *tip)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestReceiptStoreRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewReceiptStore(openTempDB(t))

	code := uint32(101)
	failed := &domain.Receipt{
		TxID: "tx-2", BlockHeight: 2, TxIndex: 1, Sender: bob, Contract: factory,
		Function: "set-creation-fee", Args: `[{"type":"uint","value":"5"}]`,
		ErrorCode: &code, Events: []domain.Event{}, ExecutedAt: 1700000000001,
	}
	ok := &domain.Receipt{
		TxID: "tx-1", BlockHeight: 2, TxIndex: 0, Sender: alice, Contract: factory,
		Function: "create-token", Args: "[]", Committed: true, Result: `{"type":"uint","value":"0"}`,
		Events: []domain.Event{{
			Contract: factory, Topic: domain.TopicPrint,
			Data: map[string]string{"event": "token-created", "token-id": "0"},
		}},
		ExecutedAt: 1700000000000,
	}
	for _, r := range []*domain.Receipt{failed, ok} {
		if err := store.Insert(ctx, r); err != nil {
			t.Fatalf("insert %s: %v", r.TxID, err)
		}
	}
	if err := store.Insert(ctx, ok); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("duplicate insert = %v, want ErrDuplicateKey", err)
	}

	got, err := store.GetByTxID(ctx, "tx-2")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !reflect.DeepEqual(got, failed) {
		t.Fatalf("receipt = %+v, want %+v", got, failed)
	}

	block, err := store.GetByBlock(ctx, 2)
	if err != nil {
		t.Fatalf("get by block: %v", err)
	}
	if len(block) != 2 || block[0].TxID != "tx-1" || block[1].TxID != "tx-2" {
		t.Fatalf("block order = %+v", block)
	}

	sent, err := store.GetBySender(ctx, alice)
	if err != nil {
		t.Fatalf("get by sender: %v", err)
	}
	if len(sent) != 1 || !reflect.DeepEqual(sent[0], ok) {
		t.Fatalf("sender receipts = %+v", sent)
	}

	if _, err := store.GetByTxID(ctx, "nope"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("missing = %v, want ErrNotFound", err)
	}
}
