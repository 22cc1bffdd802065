package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"token-forge/internal/domain"
	"token-forge/internal/storage"
)

// StateStore implements storage.StateStore on SQLite transactions.
type StateStore struct {
	db *DB
}

// NewStateStore creates a state store sharing db.
func NewStateStore(db *DB) *StateStore {
	return &StateStore{db: db}
}

var _ storage.StateStore = (*StateStore)(nil)

// View runs fn inside a transaction that is always rolled back.
func (s *StateStore) View(ctx context.Context, fn func(storage.State) error) error {
	tx, err := s.db.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin view tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	return fn(storage.ReadOnly(&state{tx: tx}))
}

// Update runs fn in a transaction and commits if fn returns nil.
func (s *StateStore) Update(ctx context.Context, fn func(storage.State) error) error {
	tx, err := s.db.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update tx: %w", err)
	}
	if err := fn(&state{tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update tx: %w", err)
	}
	return nil
}

type state struct {
	tx *sql.Tx
}

var _ storage.State = (*state)(nil)

func (s *state) exec(ctx context.Context, op, query string, args ...any) error {
	if _, err := s.tx.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *state) GetFactory(ctx context.Context, factory domain.Principal) (*domain.FactoryConfig, error) {
	var (
		cfg   domain.FactoryConfig
		fee   string
		count int64
	)
	err := s.tx.QueryRowContext(ctx,
		`SELECT contract, owner, fee_recipient, creation_fee, token_count
		 FROM factory_config WHERE contract = ?`,
		string(factory),
	).Scan(&cfg.Contract, &cfg.Owner, &cfg.FeeRecipient, &fee, &count)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get factory: %w", err)
	}
	cfg.TokenCount = uint64(count)
	if cfg.CreationFee, err = domain.ParseAmount(fee); err != nil {
		return nil, fmt.Errorf("get factory: %w", err)
	}
	return &cfg, nil
}

func (s *state) PutFactory(ctx context.Context, cfg *domain.FactoryConfig) error {
	if cfg == nil || cfg.Contract == "" {
		return storage.ErrInvalidInput
	}
	return s.exec(ctx, "put factory",
		`INSERT INTO factory_config (contract, owner, fee_recipient, creation_fee, token_count)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(contract) DO UPDATE SET
		   owner = excluded.owner,
		   fee_recipient = excluded.fee_recipient,
		   creation_fee = excluded.creation_fee,
		   token_count = excluded.token_count`,
		string(cfg.Contract),
		string(cfg.Owner),
		string(cfg.FeeRecipient),
		cfg.CreationFee.String(),
		int64(cfg.TokenCount),
	)
}

func (s *state) InsertToken(ctx context.Context, t *domain.Token) error {
	if t == nil || t.Factory == "" {
		return storage.ErrInvalidInput
	}
	return s.exec(ctx, "insert token",
		`INSERT INTO factory_tokens (
		   factory, token_id, name, symbol, decimals, supply, creator, created_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(t.Factory),
		int64(t.TokenID),
		t.Name,
		t.Symbol,
		int64(t.Decimals),
		t.Supply.String(),
		string(t.Creator),
		int64(t.CreatedAt),
	)
}

func (s *state) GetToken(ctx context.Context, factory domain.Principal, tokenID uint64) (*domain.Token, error) {
	var (
		t                    domain.Token
		id, decimals, height int64
		supply               string
	)
	err := s.tx.QueryRowContext(ctx,
		`SELECT factory, token_id, name, symbol, decimals, supply, creator, created_at
		 FROM factory_tokens WHERE factory = ? AND token_id = ?`,
		string(factory), int64(tokenID),
	).Scan(&t.Factory, &id, &t.Name, &t.Symbol, &decimals, &supply, &t.Creator, &height)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get token: %w", err)
	}
	t.TokenID = uint64(id)
	t.Decimals = uint8(decimals)
	t.CreatedAt = uint64(height)
	if t.Supply, err = domain.ParseAmount(supply); err != nil {
		return nil, fmt.Errorf("get token: %w", err)
	}
	return &t, nil
}

func (s *state) AppendCreatorToken(ctx context.Context, factory, creator domain.Principal, tokenID uint64) error {
	return s.exec(ctx, "append creator token",
		`INSERT INTO factory_creator_tokens (factory, creator, position, token_id)
		 SELECT ?1, ?2, COALESCE(MAX(position) + 1, 0), ?3
		 FROM factory_creator_tokens
		 WHERE factory = ?1 AND creator = ?2`,
		string(factory), string(creator), int64(tokenID),
	)
}

func (s *state) ListCreatorTokens(ctx context.Context, factory, creator domain.Principal) ([]uint64, error) {
	rows, err := s.tx.QueryContext(ctx,
		`SELECT token_id FROM factory_creator_tokens
		 WHERE factory = ? AND creator = ?
		 ORDER BY position ASC`,
		string(factory), string(creator),
	)
	if err != nil {
		return nil, fmt.Errorf("list creator tokens: %w", err)
	}
	defer rows.Close()

	ids := []uint64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan creator token: %w", err)
		}
		ids = append(ids, uint64(id))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate creator tokens: %w", err)
	}
	return ids, nil
}

func (s *state) GetLedger(ctx context.Context, contract domain.Principal) (*domain.LedgerState, error) {
	var (
		l           domain.LedgerState
		initialized bool
		decimals    int64
		supply      string
	)
	err := s.tx.QueryRowContext(ctx,
		`SELECT contract, owner, initialized, name, symbol, decimals, total_supply
		 FROM ledger_state WHERE contract = ?`,
		string(contract),
	).Scan(&l.Contract, &l.Owner, &initialized, &l.Name, &l.Symbol, &decimals, &supply)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get ledger: %w", err)
	}
	l.Initialized = initialized
	l.Decimals = uint8(decimals)
	if l.TotalSupply, err = domain.ParseAmount(supply); err != nil {
		return nil, fmt.Errorf("get ledger: %w", err)
	}
	return &l, nil
}

func (s *state) PutLedger(ctx context.Context, l *domain.LedgerState) error {
	if l == nil || l.Contract == "" {
		return storage.ErrInvalidInput
	}
	return s.exec(ctx, "put ledger",
		`INSERT INTO ledger_state (contract, owner, initialized, name, symbol, decimals, total_supply)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(contract) DO UPDATE SET
		   owner = excluded.owner,
		   initialized = excluded.initialized,
		   name = excluded.name,
		   symbol = excluded.symbol,
		   decimals = excluded.decimals,
		   total_supply = excluded.total_supply`,
		string(l.Contract),
		string(l.Owner),
		l.Initialized,
		l.Name,
		l.Symbol,
		int64(l.Decimals),
		l.TotalSupply.String(),
	)
}

func (s *state) GetBalance(ctx context.Context, contract, holder domain.Principal) (domain.Amount, error) {
	var amount string
	err := s.tx.QueryRowContext(ctx,
		`SELECT amount FROM ledger_balances WHERE contract = ? AND holder = ?`,
		string(contract), string(holder),
	).Scan(&amount)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ZeroAmount, nil
	}
	if err != nil {
		return domain.ZeroAmount, fmt.Errorf("get balance: %w", err)
	}
	return domain.ParseAmount(amount)
}

func (s *state) SetBalance(ctx context.Context, contract, holder domain.Principal, amount domain.Amount) error {
	if amount.IsZero() {
		return s.exec(ctx, "delete balance",
			`DELETE FROM ledger_balances WHERE contract = ? AND holder = ?`,
			string(contract), string(holder),
		)
	}
	return s.exec(ctx, "set balance",
		`INSERT INTO ledger_balances (contract, holder, amount) VALUES (?, ?, ?)
		 ON CONFLICT(contract, holder) DO UPDATE SET amount = excluded.amount`,
		string(contract), string(holder), amount.String(),
	)
}

func (s *state) ListBalances(ctx context.Context, contract domain.Principal) ([]domain.Balance, error) {
	rows, err := s.tx.QueryContext(ctx,
		`SELECT holder, amount FROM ledger_balances WHERE contract = ? ORDER BY holder ASC`,
		string(contract),
	)
	if err != nil {
		return nil, fmt.Errorf("list balances: %w", err)
	}
	defer rows.Close()

	result := []domain.Balance{}
	for rows.Next() {
		var (
			b      domain.Balance
			amount string
		)
		if err := rows.Scan(&b.Holder, &amount); err != nil {
			return nil, fmt.Errorf("scan balance: %w", err)
		}
		if b.Amount, err = domain.ParseAmount(amount); err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate balances: %w", err)
	}
	return result, nil
}

func (s *state) GetAccountBalance(ctx context.Context, account domain.Principal) (domain.Amount, error) {
	var balance string
	err := s.tx.QueryRowContext(ctx,
		`SELECT balance FROM accounts WHERE principal = ?`,
		string(account),
	).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ZeroAmount, nil
	}
	if err != nil {
		return domain.ZeroAmount, fmt.Errorf("get account balance: %w", err)
	}
	return domain.ParseAmount(balance)
}

func (s *state) SetAccountBalance(ctx context.Context, account domain.Principal, amount domain.Amount) error {
	if account == "" {
		return storage.ErrInvalidInput
	}
	return s.exec(ctx, "set account balance",
		`INSERT INTO accounts (principal, balance) VALUES (?, ?)
		 ON CONFLICT(principal) DO UPDATE SET balance = excluded.balance`,
		string(account), amount.String(),
	)
}

func (s *state) InsertContract(ctx context.Context, c *domain.ContractDeployment) error {
	if c == nil || c.Contract == "" {
		return storage.ErrInvalidInput
	}
	return s.exec(ctx, "insert contract",
		`INSERT INTO contracts (contract, kind, deployer, deployed_at) VALUES (?, ?, ?, ?)`,
		string(c.Contract), string(c.Kind), string(c.Deployer), int64(c.DeployedAt),
	)
}

func (s *state) GetContract(ctx context.Context, contract domain.Principal) (*domain.ContractDeployment, error) {
	row := s.tx.QueryRowContext(ctx,
		`SELECT contract, kind, deployer, deployed_at FROM contracts WHERE contract = ?`,
		string(contract),
	)
	c, err := scanContract(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get contract: %w", err)
	}
	return c, nil
}

func (s *state) ListContracts(ctx context.Context) ([]*domain.ContractDeployment, error) {
	rows, err := s.tx.QueryContext(ctx,
		`SELECT contract, kind, deployer, deployed_at FROM contracts
		 ORDER BY deployed_at ASC, contract ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list contracts: %w", err)
	}
	defer rows.Close()

	result := []*domain.ContractDeployment{}
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contract: %w", err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contracts: %w", err)
	}
	return result, nil
}

func (s *state) GetTip(ctx context.Context) (*domain.ChainTip, error) {
	var height, count int64
	err := s.tx.QueryRowContext(ctx, `SELECT height, tx_count FROM chain_tip WHERE id = 1`).Scan(&height, &count)
	if errors.Is(err, sql.ErrNoRows) {
		return &domain.ChainTip{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get tip: %w", err)
	}
	return &domain.ChainTip{Height: uint64(height), TxCount: uint64(count)}, nil
}

func (s *state) SetTip(ctx context.Context, tip *domain.ChainTip) error {
	if tip == nil {
		return storage.ErrInvalidInput
	}
	return s.exec(ctx, "set tip",
		`INSERT INTO chain_tip (id, height, tx_count) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET height = excluded.height, tx_count = excluded.tx_count`,
		int64(tip.Height), int64(tip.TxCount),
	)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContract(row rowScanner) (*domain.ContractDeployment, error) {
	var (
		c        domain.ContractDeployment
		kind     string
		deployed int64
	)
	if err := row.Scan(&c.Contract, &kind, &c.Deployer, &deployed); err != nil {
		return nil, err
	}
	c.Kind = domain.ContractKind(kind)
	c.DeployedAt = uint64(deployed)
	return &c, nil
}
