package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"token-forge/internal/domain"
	"token-forge/internal/storage"
)

// ReceiptStore implements storage.ReceiptStore on SQLite.
type ReceiptStore struct {
	db *DB
}

// NewReceiptStore creates a receipt store sharing db.
func NewReceiptStore(db *DB) *ReceiptStore {
	return &ReceiptStore{db: db}
}

var _ storage.ReceiptStore = (*ReceiptStore)(nil)

const receiptColumns = `tx_id, block_height, tx_index, sender, contract, function, args,
	committed, result, error_code, native_error, events, executed_at`

// Insert adds a new receipt. Returns ErrDuplicateKey if tx_id exists.
func (s *ReceiptStore) Insert(ctx context.Context, r *domain.Receipt) error {
	if r == nil || r.TxID == "" {
		return storage.ErrInvalidInput
	}
	events := r.Events
	if events == nil {
		events = []domain.Event{}
	}
	encoded, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("encode receipt events: %w", err)
	}
	var errorCode sql.NullInt64
	if r.ErrorCode != nil {
		errorCode = sql.NullInt64{Int64: int64(*r.ErrorCode), Valid: true}
	}

	_, err = s.db.sqlDB.ExecContext(ctx,
		`INSERT INTO receipts (`+receiptColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.TxID,
		int64(r.BlockHeight),
		r.TxIndex,
		string(r.Sender),
		string(r.Contract),
		r.Function,
		r.Args,
		r.Committed,
		r.Result,
		errorCode,
		r.NativeError,
		string(encoded),
		r.ExecutedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert receipt: %w", err)
	}
	return nil
}

// GetByTxID retrieves a receipt by tx id. Returns ErrNotFound if not exists.
func (s *ReceiptStore) GetByTxID(ctx context.Context, txID string) (*domain.Receipt, error) {
	row := s.db.sqlDB.QueryRowContext(ctx,
		`SELECT `+receiptColumns+` FROM receipts WHERE tx_id = ?`, txID)
	r, err := scanReceipt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get receipt: %w", err)
	}
	return r, nil
}

// GetByBlock retrieves all receipts of a block, ordered by tx_index ASC.
func (s *ReceiptStore) GetByBlock(ctx context.Context, height uint64) ([]*domain.Receipt, error) {
	return s.query(ctx,
		`SELECT `+receiptColumns+` FROM receipts WHERE block_height = ? ORDER BY tx_index ASC`,
		int64(height),
	)
}

// GetBySender retrieves all receipts submitted by sender, ordered by (block_height, tx_index) ASC.
func (s *ReceiptStore) GetBySender(ctx context.Context, sender domain.Principal) ([]*domain.Receipt, error) {
	return s.query(ctx,
		`SELECT `+receiptColumns+` FROM receipts WHERE sender = ? ORDER BY block_height ASC, tx_index ASC`,
		string(sender),
	)
}

func (s *ReceiptStore) query(ctx context.Context, query string, args ...any) ([]*domain.Receipt, error) {
	rows, err := s.db.sqlDB.QueryContext(ctx, query, args...)
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

func scanReceipt(row rowScanner) (*domain.Receipt, error) {
	var (
		r         domain.Receipt
		height    int64
		errorCode sql.NullInt64
		events    string
	)
	err := row.Scan(
		&r.TxID, &height, &r.TxIndex, &r.Sender, &r.Contract, &r.Function, &r.Args,
		&r.Committed, &r.Result, &errorCode, &r.NativeError, &events, &r.ExecutedAt,
	)
	if err != nil {
		return nil, err
	}
	r.BlockHeight = uint64(height)
	if errorCode.Valid {
		code := uint32(errorCode.Int64)
		r.ErrorCode = &code
	}
	if err := json.Unmarshal([]byte(events), &r.Events); err != nil {
		return nil, fmt.Errorf("decode receipt events: %w", err)
	}
	return &r, nil
}
