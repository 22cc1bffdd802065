package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"token-forge/internal/domain"
	"token-forge/internal/storage"
)

// ReceiptStore implements storage.ReceiptStore using PostgreSQL.
type ReceiptStore struct {
	pool *Pool
}

// NewReceiptStore creates a new ReceiptStore.
func NewReceiptStore(pool *Pool) *ReceiptStore {
	return &ReceiptStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ReceiptStore = (*ReceiptStore)(nil)

const receiptColumns = `
	tx_id, block_height, tx_index, sender, contract, function, args,
	committed, result, error_code, native_error, events, executed_at
`

// Insert adds a new receipt. Returns ErrDuplicateKey if tx_id exists.
func (s *ReceiptStore) Insert(ctx context.Context, r *domain.Receipt) error {
	if r == nil || r.TxID == "" {
		return storage.ErrInvalidInput
	}

	events, err := json.Marshal(eventsOrEmpty(r.Events))
	if err != nil {
		return fmt.Errorf("encode receipt events: %w", err)
	}

	var errorCode *int64
	if r.ErrorCode != nil {
		code := int64(*r.ErrorCode)
		errorCode = &code
	}

	query := `INSERT INTO receipts (` + receiptColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err = s.pool.Exec(ctx, query,
		r.TxID,
		r.BlockHeight,
		r.TxIndex,
		r.Sender,
		r.Contract,
		r.Function,
		r.Args,
		r.Committed,
		r.Result,
		errorCode,
		r.NativeError,
		string(events),
		r.ExecutedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert receipt: %w", err)
	}
	return nil
}

// GetByTxID retrieves a receipt by tx id. Returns ErrNotFound if not exists.
func (s *ReceiptStore) GetByTxID(ctx context.Context, txID string) (*domain.Receipt, error) {
	query := `SELECT ` + receiptColumns + ` FROM receipts WHERE tx_id = $1`

	r, err := scanReceipt(s.pool.QueryRow(ctx, query, txID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get receipt by tx id: %w", err)
	}
	return r, nil
}

// GetByBlock retrieves all receipts of a block, ordered by tx_index ASC.
func (s *ReceiptStore) GetByBlock(ctx context.Context, height uint64) ([]*domain.Receipt, error) {
	query := `SELECT ` + receiptColumns + `
		FROM receipts
		WHERE block_height = $1
		ORDER BY tx_index ASC`

	return s.queryReceipts(ctx, query, height)
}

// GetBySender retrieves all receipts submitted by sender, ordered by (block_height, tx_index) ASC.
func (s *ReceiptStore) GetBySender(ctx context.Context, sender domain.Principal) ([]*domain.Receipt, error) {
	query := `SELECT ` + receiptColumns + `
		FROM receipts
		WHERE sender = $1
		ORDER BY block_height ASC, tx_index ASC`

	return s.queryReceipts(ctx, query, sender)
}

func (s *ReceiptStore) queryReceipts(ctx context.Context, query string, args ...any) ([]*domain.Receipt, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query receipts: %w", err)
	}
	defer rows.Close()

	var result []*domain.Receipt
	for rows.Next() {
		r, err := scanReceipt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan receipt: %w", err)
		}
		result = append(result, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate receipts: %w", err)
	}

	return result, nil
}

// scanReceipt scans a single row into Receipt.
func scanReceipt(row pgx.Row) (*domain.Receipt, error) {
	var (
		r         domain.Receipt
		errorCode *int64
		events    string
	)

	err := row.Scan(
		&r.TxID,
		&r.BlockHeight,
		&r.TxIndex,
		&r.Sender,
		&r.Contract,
		&r.Function,
		&r.Args,
		&r.Committed,
		&r.Result,
		&errorCode,
		&r.NativeError,
		&events,
		&r.ExecutedAt,
	)
	if err != nil {
		return nil, err
	}

	if errorCode != nil {
		code := uint32(*errorCode)
		r.ErrorCode = &code
	}
	if err := json.Unmarshal([]byte(events), &r.Events); err != nil {
		return nil, fmt.Errorf("decode receipt events: %w", err)
	}

	return &r, nil
}

func eventsOrEmpty(events []domain.Event) []domain.Event {
	if events == nil {
		return []domain.Event{}
	}
	return events
}
