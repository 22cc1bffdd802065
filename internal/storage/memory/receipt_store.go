package memory

import (
	"context"
	"slices"
	"sort"
	"sync"

	"token-forge/internal/domain"
	"token-forge/internal/storage"
)

// ReceiptStore is an in-memory implementation of storage.ReceiptStore.
type ReceiptStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Receipt // keyed by tx_id
}

// NewReceiptStore creates a new in-memory receipt store.
func NewReceiptStore() *ReceiptStore {
	return &ReceiptStore{
		data: make(map[string]*domain.Receipt),
	}
}

// Insert adds a new receipt. Returns ErrDuplicateKey if tx_id exists.
func (s *ReceiptStore) Insert(_ context.Context, r *domain.Receipt) error {
	if r == nil || r.TxID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.TxID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[r.TxID] = copyReceipt(r)
	return nil
}

// GetByTxID retrieves a receipt by tx id. Returns ErrNotFound if not exists.
func (s *ReceiptStore) GetByTxID(_ context.Context, txID string) (*domain.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[txID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyReceipt(r), nil
}

// GetByBlock retrieves all receipts of a block, ordered by tx_index ASC.
func (s *ReceiptStore) GetByBlock(_ context.Context, height uint64) ([]*domain.Receipt, error) {
	return s.filter(func(r *domain.Receipt) bool { return r.BlockHeight == height }), nil
}

// GetBySender retrieves all receipts submitted by sender.
func (s *ReceiptStore) GetBySender(_ context.Context, sender domain.Principal) ([]*domain.Receipt, error) {
	return s.filter(func(r *domain.Receipt) bool { return r.Sender == sender }), nil
}

func (s *ReceiptStore) filter(match func(*domain.Receipt) bool) []*domain.Receipt {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Receipt
	for _, r := range s.data {
		if match(r) {
			result = append(result, copyReceipt(r))
		}
	}

	// Sort by (block_height, tx_index) ASC
	sort.Slice(result, func(i, j int) bool {
		if result[i].BlockHeight != result[j].BlockHeight {
			return result[i].BlockHeight < result[j].BlockHeight
		}
		return result[i].TxIndex < result[j].TxIndex
	})
	return result
}

func copyReceipt(r *domain.Receipt) *domain.Receipt {
	receiptCopy := *r
	if r.ErrorCode != nil {
		code := *r.ErrorCode
		receiptCopy.ErrorCode = &code
	}
	receiptCopy.Events = slices.Clone(r.Events)
	return &receiptCopy
}

// Verify interface compliance at compile time.
var _ storage.ReceiptStore = (*ReceiptStore)(nil)
