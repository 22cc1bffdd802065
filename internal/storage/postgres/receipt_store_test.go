package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-forge/internal/domain"
	"token-forge/internal/storage"
	pgstore "token-forge/internal/storage/postgres"
)

func testReceipt(txID string, height uint64, index int, sender domain.Principal) *domain.Receipt {
	return &domain.Receipt{
		TxID:        txID,
		BlockHeight: height,
		TxIndex:     index,
		Sender:      sender,
		Contract:    ledger,
		Function:    "transfer",
		Args:        `[{"type":"uint","value":"100"}]`,
		Committed:   true,
		Result:      `{"type":"bool","value":true}`,
		Events: []domain.Event{{
			Contract: ledger,
			Topic:    domain.TopicFTTransfer,
			Data:     map[string]string{"amount": "100", "sender": string(sender), "recipient": string(bob)},
		}},
		ExecutedAt: 1700000000000,
	}
}

func TestReceiptStore_InsertAndGet(t *testing.T) {
	pool := newTestDB(t)

	ctx := context.Background()
	store := pgstore.NewReceiptStore(pool)

	r := testReceipt("tx-1", 3, 0, alice)
	require.NoError(t, store.Insert(ctx, r))

	got, err := store.GetByTxID(ctx, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, r, got)

	_, err = store.GetByTxID(ctx, "tx-missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestReceiptStore_InsertDuplicate(t *testing.T) {
	pool := newTestDB(t)

	ctx := context.Background()
	store := pgstore.NewReceiptStore(pool)

	require.NoError(t, store.Insert(ctx, testReceipt("tx-dup", 1, 0, alice)))
	err := store.Insert(ctx, testReceipt("tx-dup", 1, 0, alice))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestReceiptStore_AbortedReceiptKeepsErrorCode(t *testing.T) {
	pool := newTestDB(t)

	ctx := context.Background()
	store := pgstore.NewReceiptStore(pool)

	code := uint32(104)
	r := testReceipt("tx-fail", 4, 0, bob)
	r.Committed = false
	r.Result = ""
	r.ErrorCode = &code
	r.Events = []domain.Event{}
	require.NoError(t, store.Insert(ctx, r))

	got, err := store.GetByTxID(ctx, "tx-fail")
	require.NoError(t, err)
	require.NotNil(t, got.ErrorCode)
	assert.Equal(t, uint32(104), *got.ErrorCode)
	assert.False(t, got.Committed)
	assert.Empty(t, got.Events)
}

func TestReceiptStore_GetByBlockAndSender(t *testing.T) {
	pool := newTestDB(t)

	ctx := context.Background()
	store := pgstore.NewReceiptStore(pool)

	require.NoError(t, store.Insert(ctx, testReceipt("tx-b", 5, 1, bob)))
	require.NoError(t, store.Insert(ctx, testReceipt("tx-a", 5, 0, alice)))
	require.NoError(t, store.Insert(ctx, testReceipt("tx-c", 6, 0, alice)))

	block, err := store.GetByBlock(ctx, 5)
	require.NoError(t, err)
	require.Len(t, block, 2)
	assert.Equal(t, "tx-a", block[0].TxID)
	assert.Equal(t, "tx-b", block[1].TxID)

	sent, err := store.GetBySender(ctx, alice)
	require.NoError(t, err)
	require.Len(t, sent, 2)
	assert.Equal(t, "tx-a", sent[0].TxID)
	assert.Equal(t, "tx-c", sent[1].TxID)

	empty, err := store.GetByBlock(ctx, 99)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
