package clickhouse_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-forge/internal/domain"
	"token-forge/internal/storage"
	chstore "token-forge/internal/storage/clickhouse"
)

var (
	alice  = domain.PrincipalFromSeed("alice")
	bob    = domain.PrincipalFromSeed("bob")
	ledger = domain.Principal(string(alice) + ".my-token")
)

func testReceipt(txID string, height uint64, index int, sender domain.Principal) *domain.Receipt {
	return &domain.Receipt{
		TxID:        txID,
		BlockHeight: height,
		TxIndex:     index,
		Sender:      sender,
		Contract:    ledger,
		Function:    "burn",
		Args:        `[{"type":"uint","value":"500000000"}]`,
		Committed:   true,
		Result:      `{"type":"bool","value":true}`,
		Events: []domain.Event{{
			Contract: ledger,
			Topic:    domain.TopicFTBurn,
			Data:     map[string]string{"amount": "500000000", "sender": string(sender)},
		}},
		ExecutedAt: 1700000000000,
	}
}

func TestReceiptStore_InsertAndGet(t *testing.T) {
	conn := newTestDB(t)

	ctx := context.Background()
	store := chstore.NewReceiptStore(conn)

	r := testReceipt("tx-1", 3, 0, alice)
	require.NoError(t, store.Insert(ctx, r))

	got, err := store.GetByTxID(ctx, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, r, got)

	_, err = store.GetByTxID(ctx, "tx-missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestReceiptStore_InsertDuplicate(t *testing.T) {
	conn := newTestDB(t)

	ctx := context.Background()
	store := chstore.NewReceiptStore(conn)

	require.NoError(t, store.Insert(ctx, testReceipt("tx-dup", 1, 0, alice)))
	err := store.Insert(ctx, testReceipt("tx-dup", 1, 0, alice))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestReceiptStore_ErrorCodeNullable(t *testing.T) {
	conn := newTestDB(t)

	ctx := context.Background()
	store := chstore.NewReceiptStore(conn)

	code := uint32(206)
	failed := testReceipt("tx-fail", 2, 0, bob)
	failed.Committed = false
	failed.Result = ""
	failed.ErrorCode = &code
	failed.Events = []domain.Event{}
	require.NoError(t, store.Insert(ctx, failed))
	require.NoError(t, store.Insert(ctx, testReceipt("tx-ok", 2, 1, bob)))

	got, err := store.GetByBlock(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.NotNil(t, got[0].ErrorCode)
	assert.Equal(t, uint32(206), *got[0].ErrorCode)
	assert.False(t, got[0].Committed)
	assert.Nil(t, got[1].ErrorCode)
	assert.True(t, got[1].Committed)
}

func TestReceiptStore_GetBySender(t *testing.T) {
	conn := newTestDB(t)

	ctx := context.Background()
	store := chstore.NewReceiptStore(conn)

	require.NoError(t, store.Insert(ctx, testReceipt("tx-c", 6, 0, alice)))
	require.NoError(t, store.Insert(ctx, testReceipt("tx-a", 5, 0, alice)))
	require.NoError(t, store.Insert(ctx, testReceipt("tx-b", 5, 1, bob)))

	sent, err := store.GetBySender(ctx, alice)
	require.NoError(t, err)
	require.Len(t, sent, 2)
	assert.Equal(t, "tx-a", sent[0].TxID)
	assert.Equal(t, "tx-c", sent[1].TxID)

	none, err := store.GetBySender(ctx, domain.PrincipalFromSeed("carol"))
	require.NoError(t, err)
	assert.Empty(t, none)
}
