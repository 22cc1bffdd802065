package storage

import (
	"context"

	"token-forge/internal/domain"
)

// FactoryStore provides access to factory_config, factory_tokens and factory_creator_tokens.
// All rows are keyed by the factory contract principal.
type FactoryStore interface {
	// GetFactory retrieves a factory config. Returns ErrNotFound if not exists.
	GetFactory(ctx context.Context, factory domain.Principal) (*domain.FactoryConfig, error)

	// PutFactory inserts or overwrites a factory config.
	PutFactory(ctx context.Context, cfg *domain.FactoryConfig) error

	// InsertToken adds a catalog entry. Returns ErrDuplicateKey if (factory, token_id) exists.
	InsertToken(ctx context.Context, t *domain.Token) error

	// GetToken retrieves a catalog entry. Returns ErrNotFound if not exists.
	GetToken(ctx context.Context, factory domain.Principal, tokenID uint64) (*domain.Token, error)

	// AppendCreatorToken appends tokenID to the creator's ordered id list.
	AppendCreatorToken(ctx context.Context, factory, creator domain.Principal, tokenID uint64) error

	// ListCreatorTokens returns the creator's token ids in creation order.
	// Returns an empty slice for unknown creators.
	ListCreatorTokens(ctx context.Context, factory, creator domain.Principal) ([]uint64, error)
}

// LedgerStore provides access to ledger_state and ledger_balances.
type LedgerStore interface {
	// GetLedger retrieves a ledger metadata row. Returns ErrNotFound if not exists.
	GetLedger(ctx context.Context, contract domain.Principal) (*domain.LedgerState, error)

	// PutLedger inserts or overwrites a ledger metadata row.
	PutLedger(ctx context.Context, l *domain.LedgerState) error

	// GetBalance returns the holder's balance; absent holders read zero.
	GetBalance(ctx context.Context, contract, holder domain.Principal) (domain.Amount, error)

	// SetBalance overwrites the holder's balance.
	SetBalance(ctx context.Context, contract, holder domain.Principal, amount domain.Amount) error

	// ListBalances returns all non-zero balances of a ledger, ordered by holder ASC.
	ListBalances(ctx context.Context, contract domain.Principal) ([]domain.Balance, error)
}

// AccountStore provides access to native micro-unit balances.
type AccountStore interface {
	// GetAccountBalance returns the native balance; unknown accounts read zero.
	GetAccountBalance(ctx context.Context, account domain.Principal) (domain.Amount, error)

	// SetAccountBalance overwrites the native balance.
	SetAccountBalance(ctx context.Context, account domain.Principal, amount domain.Amount) error
}

// ContractStore provides access to the deployed contracts registry.
type ContractStore interface {
	// InsertContract registers a deployment. Returns ErrDuplicateKey if the principal exists.
	InsertContract(ctx context.Context, c *domain.ContractDeployment) error

	// GetContract retrieves a deployment. Returns ErrNotFound if not exists.
	GetContract(ctx context.Context, contract domain.Principal) (*domain.ContractDeployment, error)

	// ListContracts returns all deployments ordered by (deployed_at, contract) ASC.
	ListContracts(ctx context.Context) ([]*domain.ContractDeployment, error)
}

// ChainStore persists the chain tip.
type ChainStore interface {
	// GetTip returns the chain tip. A fresh store returns a zero tip.
	GetTip(ctx context.Context) (*domain.ChainTip, error)

	// SetTip overwrites the chain tip.
	SetTip(ctx context.Context, tip *domain.ChainTip) error
}

// State is the complete world state visible inside one transaction.
type State interface {
	FactoryStore
	LedgerStore
	AccountStore
	ContractStore
	ChainStore
}

// StateStore runs functions against State inside storage transactions.
// If fn returns an error, every write made through its State is discarded.
type StateStore interface {
	// View runs fn against a consistent read-only snapshot.
	View(ctx context.Context, fn func(State) error) error

	// Update runs fn in a read-write transaction and commits if fn returns nil.
	Update(ctx context.Context, fn func(State) error) error
}

// ReceiptStore provides access to the append-only receipts journal.
type ReceiptStore interface {
	// Insert adds a receipt. Returns ErrDuplicateKey if tx_id exists.
	Insert(ctx context.Context, r *domain.Receipt) error

	// GetByTxID retrieves a receipt. Returns ErrNotFound if not exists.
	GetByTxID(ctx context.Context, txID string) (*domain.Receipt, error)

	// GetByBlock retrieves all receipts of a block, ordered by tx_index ASC.
	GetByBlock(ctx context.Context, height uint64) ([]*domain.Receipt, error)

	// GetBySender retrieves all receipts submitted by sender, ordered by (block_height, tx_index) ASC.
	GetBySender(ctx context.Context, sender domain.Principal) ([]*domain.Receipt, error)
}
