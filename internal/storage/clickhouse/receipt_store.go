package clickhouse

import (
	"context"
	"encoding/json"
	"fmt"

	"token-forge/internal/domain"
	"token-forge/internal/storage"
)

// ReceiptStore implements storage.ReceiptStore using ClickHouse.
// The table is a ReplacingMergeTree keyed by tx_id, so uniqueness is checked before insert.
type ReceiptStore struct {
	conn *Conn
}

// NewReceiptStore creates a new ReceiptStore.
func NewReceiptStore(conn *Conn) *ReceiptStore {
	return &ReceiptStore{conn: conn}
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

	exists, err := s.exists(ctx, r.TxID)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	events := r.Events
	if events == nil {
		events = []domain.Event{}
	}
	encoded, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("encode receipt events: %w", err)
	}

	var committed uint8
	if r.Committed {
		committed = 1
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO receipts (`+receiptColumns+`)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	err = batch.Append(
		r.TxID, r.BlockHeight, uint32(r.TxIndex),
		string(r.Sender), string(r.Contract), r.Function, r.Args,
		committed, r.Result, r.ErrorCode, r.NativeError,
		string(encoded), r.ExecutedAt,
	)
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByTxID retrieves a receipt by tx id. Returns ErrNotFound if not exists.
func (s *ReceiptStore) GetByTxID(ctx context.Context, txID string) (*domain.Receipt, error) {
	query := `SELECT ` + receiptColumns + ` FROM receipts FINAL WHERE tx_id = ? LIMIT 1`

	rows, err := s.conn.Query(ctx, query, txID)
	if err != nil {
		return nil, fmt.Errorf("query by tx id: %w", err)
	}
	defer rows.Close()

	receipts, err := scanReceipts(rows)
	if err != nil {
		return nil, err
	}
	if len(receipts) == 0 {
		return nil, storage.ErrNotFound
	}
	return receipts[0], nil
}

// GetByBlock retrieves all receipts of a block, ordered by tx_index ASC.
func (s *ReceiptStore) GetByBlock(ctx context.Context, height uint64) ([]*domain.Receipt, error) {
	query := `SELECT ` + receiptColumns + `
		FROM receipts FINAL
		WHERE block_height = ?
		ORDER BY tx_index ASC`

	rows, err := s.conn.Query(ctx, query, height)
	if err != nil {
		return nil, fmt.Errorf("query by block: %w", err)
	}
	defer rows.Close()

	return scanReceipts(rows)
}

// GetBySender retrieves all receipts submitted by sender, ordered by (block_height, tx_index) ASC.
func (s *ReceiptStore) GetBySender(ctx context.Context, sender domain.Principal) ([]*domain.Receipt, error) {
	query := `SELECT ` + receiptColumns + `
		FROM receipts FINAL
		WHERE sender = ?
		ORDER BY block_height ASC, tx_index ASC`

	rows, err := s.conn.Query(ctx, query, string(sender))
	if err != nil {
		return nil, fmt.Errorf("query by sender: %w", err)
	}
	defer rows.Close()

	return scanReceipts(rows)
}

// exists checks if a receipt with the given tx id exists.
func (s *ReceiptStore) exists(ctx context.Context, txID string) (bool, error) {
	query := `SELECT count(*) FROM receipts WHERE tx_id = ?`

	var count uint64
	if err := s.conn.QueryRow(ctx, query, txID).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// scanReceipts scans multiple rows.
func scanReceipts(rows chRows) ([]*domain.Receipt, error) {
	var receipts []*domain.Receipt

	for rows.Next() {
		var (
			r                domain.Receipt
			sender, contract string
			txIndex          uint32
			committed        uint8
			errorCode        *uint32
			events           string
		)
		err := rows.Scan(
			&r.TxID, &r.BlockHeight, &txIndex,
			&sender, &contract, &r.Function, &r.Args,
			&committed, &r.Result, &errorCode, &r.NativeError,
			&events, &r.ExecutedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan receipt: %w", err)
		}

		r.TxIndex = int(txIndex)
		r.Sender = domain.Principal(sender)
		r.Contract = domain.Principal(contract)
		r.Committed = committed == 1
		r.ErrorCode = errorCode
		if err := json.Unmarshal([]byte(events), &r.Events); err != nil {
			return nil, fmt.Errorf("decode receipt events: %w", err)
		}
		receipts = append(receipts, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return receipts, nil
}
