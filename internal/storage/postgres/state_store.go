package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"token-forge/internal/domain"
	"token-forge/internal/observability"
	"token-forge/internal/storage"
)

// querier is the subset of pgx.Tx used by state.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// StateStore implements storage.StateStore using PostgreSQL transactions.
// Update runs at SERIALIZABLE isolation; View uses a read-only REPEATABLE READ snapshot.
type StateStore struct {
	pool *Pool
}

// NewStateStore creates a new StateStore.
func NewStateStore(pool *Pool) *StateStore {
	return &StateStore{pool: pool}
}

// Compile-time interface check.
var _ storage.StateStore = (*StateStore)(nil)

// View runs fn against a read-only snapshot.
func (s *StateStore) View(ctx context.Context, fn func(storage.State) error) error {
	return s.run(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}, func(st *state) error {
		return fn(storage.ReadOnly(st))
	})
}

// maxUpdateAttempts bounds reruns of an Update that lost a serialization conflict
// to another writer on the same database.
const maxUpdateAttempts = 3

// Update runs fn in a read-write transaction and commits if fn returns nil.
// fn is rerun from scratch when the transaction fails to serialize.
func (s *StateStore) Update(ctx context.Context, fn func(storage.State) error) error {
	var err error
	for attempt := 1; attempt <= maxUpdateAttempts; attempt++ {
		err = s.run(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(st *state) error {
			return fn(st)
		})
		if !isRetryableTxError(err) {
			return err
		}
		observability.DefaultMetrics.DBQueryErrors.WithLabelValues("postgres", "tx_retry").Inc()
	}
	return err
}

func (s *StateStore) run(ctx context.Context, opts pgx.TxOptions, fn func(*state) error) error {
	tx, err := s.pool.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin state tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if err := fn(&state{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit state tx: %w", err)
	}
	return nil
}

// state implements storage.State inside one transaction.
type state struct {
	q querier
}

var _ storage.State = (*state)(nil)

// queryRow defers errors to Scan, so only latency is recorded.
func (s *state) queryRow(ctx context.Context, op, query string, args ...any) pgx.Row {
	start := time.Now()
	row := s.q.QueryRow(ctx, query, args...)
	observability.RecordDBQuery("postgres", op, time.Since(start).Seconds(), nil)
	return row
}

func (s *state) query(ctx context.Context, op, query string, args ...any) (pgx.Rows, error) {
	start := time.Now()
	rows, err := s.q.Query(ctx, query, args...)
	observability.RecordDBQuery("postgres", op, time.Since(start).Seconds(), err)
	return rows, err
}

func (s *state) exec(ctx context.Context, op, query string, args ...any) error {
	start := time.Now()
	_, err := s.q.Exec(ctx, query, args...)
	observability.RecordDBQuery("postgres", op, time.Since(start).Seconds(), err)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetFactory retrieves a factory config. Returns ErrNotFound if not exists.
func (s *state) GetFactory(ctx context.Context, factory domain.Principal) (*domain.FactoryConfig, error) {
	query := `
		SELECT contract, owner, fee_recipient, creation_fee::text, token_count
		FROM factory_config
		WHERE contract = $1
	`

	var (
		cfg domain.FactoryConfig
		fee string
	)
	err := s.queryRow(ctx, "get_factory", query, factory).Scan(
		&cfg.Contract,
		&cfg.Owner,
		&cfg.FeeRecipient,
		&fee,
		&cfg.TokenCount,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get factory: %w", err)
	}
	if cfg.CreationFee, err = domain.ParseAmount(fee); err != nil {
		return nil, fmt.Errorf("get factory: %w", err)
	}
	return &cfg, nil
}

// PutFactory inserts or overwrites a factory config.
func (s *state) PutFactory(ctx context.Context, cfg *domain.FactoryConfig) error {
	if cfg == nil || cfg.Contract == "" {
		return storage.ErrInvalidInput
	}
	query := `
		INSERT INTO factory_config (contract, owner, fee_recipient, creation_fee, token_count, updated_at)
		VALUES ($1, $2, $3, $4::text::numeric, $5, NOW())
		ON CONFLICT (contract) DO UPDATE SET
			owner = EXCLUDED.owner,
			fee_recipient = EXCLUDED.fee_recipient,
			creation_fee = EXCLUDED.creation_fee,
			token_count = EXCLUDED.token_count,
			updated_at = NOW()
	`
	return s.exec(ctx, "put_factory", query,
		cfg.Contract,
		cfg.Owner,
		cfg.FeeRecipient,
		cfg.CreationFee.String(),
		cfg.TokenCount,
	)
}

// InsertToken adds a catalog entry. Returns ErrDuplicateKey if (factory, token_id) exists.
func (s *state) InsertToken(ctx context.Context, t *domain.Token) error {
	if t == nil || t.Factory == "" {
		return storage.ErrInvalidInput
	}
	query := `
		INSERT INTO factory_tokens (
			factory, token_id, name, symbol, decimals, supply, creator, created_at
		) VALUES ($1, $2, $3, $4, $5, $6::text::numeric, $7, $8)
	`
	return s.exec(ctx, "insert_token", query,
		t.Factory,
		t.TokenID,
		t.Name,
		t.Symbol,
		int16(t.Decimals),
		t.Supply.String(),
		t.Creator,
		t.CreatedAt,
	)
}

// GetToken retrieves a catalog entry. Returns ErrNotFound if not exists.
func (s *state) GetToken(ctx context.Context, factory domain.Principal, tokenID uint64) (*domain.Token, error) {
	query := `
		SELECT factory, token_id, name, symbol, decimals, supply::text, creator, created_at
		FROM factory_tokens
		WHERE factory = $1 AND token_id = $2
	`

	var (
		t        domain.Token
		decimals int16
		supply   string
	)
	err := s.queryRow(ctx, "get_token", query, factory, tokenID).Scan(
		&t.Factory,
		&t.TokenID,
		&t.Name,
		&t.Symbol,
		&decimals,
		&supply,
		&t.Creator,
		&t.CreatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get token: %w", err)
	}
	t.Decimals = uint8(decimals)
	if t.Supply, err = domain.ParseAmount(supply); err != nil {
		return nil, fmt.Errorf("get token: %w", err)
	}
	return &t, nil
}

// AppendCreatorToken appends tokenID to the creator's ordered id list.
func (s *state) AppendCreatorToken(ctx context.Context, factory, creator domain.Principal, tokenID uint64) error {
	query := `
		INSERT INTO factory_creator_tokens (factory, creator, position, token_id)
		SELECT $1, $2, COALESCE(MAX(position) + 1, 0), $3
		FROM factory_creator_tokens
		WHERE factory = $1 AND creator = $2
	`
	return s.exec(ctx, "append_creator_token", query, factory, creator, tokenID)
}

// ListCreatorTokens returns the creator's token ids in creation order.
func (s *state) ListCreatorTokens(ctx context.Context, factory, creator domain.Principal) ([]uint64, error) {
	query := `
		SELECT token_id
		FROM factory_creator_tokens
		WHERE factory = $1 AND creator = $2
		ORDER BY position ASC
	`

	rows, err := s.query(ctx, "list_creator_tokens", query, factory, creator)
	if err != nil {
		return nil, fmt.Errorf("list creator tokens: %w", err)
	}
	defer rows.Close()

	ids := []uint64{}
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan creator token: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate creator tokens: %w", err)
	}
	return ids, nil
}

// GetLedger retrieves a ledger metadata row. Returns ErrNotFound if not exists.
func (s *state) GetLedger(ctx context.Context, contract domain.Principal) (*domain.LedgerState, error) {
	query := `
		SELECT contract, owner, initialized, name, symbol, decimals, total_supply::text
		FROM ledger_state
		WHERE contract = $1
	`

	var (
		l        domain.LedgerState
		decimals int16
		supply   string
	)
	err := s.queryRow(ctx, "get_ledger", query, contract).Scan(
		&l.Contract,
		&l.Owner,
		&l.Initialized,
		&l.Name,
		&l.Symbol,
		&decimals,
		&supply,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get ledger: %w", err)
	}
	l.Decimals = uint8(decimals)
	if l.TotalSupply, err = domain.ParseAmount(supply); err != nil {
		return nil, fmt.Errorf("get ledger: %w", err)
	}
	return &l, nil
}

// PutLedger inserts or overwrites a ledger metadata row.
func (s *state) PutLedger(ctx context.Context, l *domain.LedgerState) error {
	if l == nil || l.Contract == "" {
		return storage.ErrInvalidInput
	}
	query := `
		INSERT INTO ledger_state (contract, owner, initialized, name, symbol, decimals, total_supply)
		VALUES ($1, $2, $3, $4, $5, $6, $7::text::numeric)
		ON CONFLICT (contract) DO UPDATE SET
			owner = EXCLUDED.owner,
			initialized = EXCLUDED.initialized,
			name = EXCLUDED.name,
			symbol = EXCLUDED.symbol,
			decimals = EXCLUDED.decimals,
			total_supply = EXCLUDED.total_supply
	`
	return s.exec(ctx, "put_ledger", query,
		l.Contract,
		l.Owner,
		l.Initialized,
		l.Name,
		l.Symbol,
		int16(l.Decimals),
		l.TotalSupply.String(),
	)
}

// GetBalance returns the holder's balance; absent holders read zero.
func (s *state) GetBalance(ctx context.Context, contract, holder domain.Principal) (domain.Amount, error) {
	query := `SELECT amount::text FROM ledger_balances WHERE contract = $1 AND holder = $2`

	var amount string
	if err := s.queryRow(ctx, "get_balance", query, contract, holder).Scan(&amount); err != nil {
		if isNotFoundError(err) {
			return domain.ZeroAmount, nil
		}
		return domain.ZeroAmount, fmt.Errorf("get balance: %w", err)
	}
	return domain.ParseAmount(amount)
}

// SetBalance overwrites the holder's balance. A zero balance removes the row.
func (s *state) SetBalance(ctx context.Context, contract, holder domain.Principal, amount domain.Amount) error {
	if amount.IsZero() {
		query := `DELETE FROM ledger_balances WHERE contract = $1 AND holder = $2`
		return s.exec(ctx, "delete_balance", query, contract, holder)
	}
	query := `
		INSERT INTO ledger_balances (contract, holder, amount)
		VALUES ($1, $2, $3::text::numeric)
		ON CONFLICT (contract, holder) DO UPDATE SET amount = EXCLUDED.amount
	`
	return s.exec(ctx, "set_balance", query, contract, holder, amount.String())
}

// ListBalances returns all non-zero balances of a ledger, ordered by holder ASC.
func (s *state) ListBalances(ctx context.Context, contract domain.Principal) ([]domain.Balance, error) {
	query := `
		SELECT holder, amount::text
		FROM ledger_balances
		WHERE contract = $1
		ORDER BY holder ASC
	`

	rows, err := s.query(ctx, "list_balances", query, contract)
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

// GetAccountBalance returns the native balance; unknown accounts read zero.
func (s *state) GetAccountBalance(ctx context.Context, account domain.Principal) (domain.Amount, error) {
	query := `SELECT balance::text FROM accounts WHERE principal = $1`

	var balance string
	if err := s.queryRow(ctx, "get_account", query, account).Scan(&balance); err != nil {
		if isNotFoundError(err) {
			return domain.ZeroAmount, nil
		}
		return domain.ZeroAmount, fmt.Errorf("get account balance: %w", err)
	}
	return domain.ParseAmount(balance)
}

// SetAccountBalance overwrites the native balance.
func (s *state) SetAccountBalance(ctx context.Context, account domain.Principal, amount domain.Amount) error {
	if account == "" {
		return storage.ErrInvalidInput
	}
	query := `
		INSERT INTO accounts (principal, balance)
		VALUES ($1, $2::text::numeric)
		ON CONFLICT (principal) DO UPDATE SET balance = EXCLUDED.balance
	`
	return s.exec(ctx, "set_account", query, account, amount.String())
}

// InsertContract registers a deployment. Returns ErrDuplicateKey if the principal exists.
func (s *state) InsertContract(ctx context.Context, c *domain.ContractDeployment) error {
	if c == nil || c.Contract == "" {
		return storage.ErrInvalidInput
	}
	query := `
		INSERT INTO contracts (contract, kind, deployer, deployed_at)
		VALUES ($1, $2, $3, $4)
	`
	return s.exec(ctx, "insert_contract", query, c.Contract, string(c.Kind), c.Deployer, c.DeployedAt)
}

// GetContract retrieves a deployment. Returns ErrNotFound if not exists.
func (s *state) GetContract(ctx context.Context, contract domain.Principal) (*domain.ContractDeployment, error) {
	query := `SELECT contract, kind, deployer, deployed_at FROM contracts WHERE contract = $1`

	c, err := scanContract(s.queryRow(ctx, "get_contract", query, contract))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get contract: %w", err)
	}
	return c, nil
}

// ListContracts returns all deployments ordered by (deployed_at, contract) ASC.
func (s *state) ListContracts(ctx context.Context) ([]*domain.ContractDeployment, error) {
	query := `
		SELECT contract, kind, deployer, deployed_at
		FROM contracts
		ORDER BY deployed_at ASC, contract ASC
	`

	rows, err := s.query(ctx, "list_contracts", query)
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

// GetTip returns the chain tip. A fresh database returns a zero tip.
func (s *state) GetTip(ctx context.Context) (*domain.ChainTip, error) {
	query := `SELECT height, tx_count FROM chain_tip WHERE id = 1`

	var tip domain.ChainTip
	if err := s.queryRow(ctx, "get_tip", query).Scan(&tip.Height, &tip.TxCount); err != nil {
		if isNotFoundError(err) {
			return &domain.ChainTip{}, nil
		}
		return nil, fmt.Errorf("get tip: %w", err)
	}
	return &tip, nil
}

// SetTip overwrites the chain tip.
func (s *state) SetTip(ctx context.Context, tip *domain.ChainTip) error {
	if tip == nil {
		return storage.ErrInvalidInput
	}
	query := `
		INSERT INTO chain_tip (id, height, tx_count)
		VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET
			height = EXCLUDED.height,
			tx_count = EXCLUDED.tx_count
	`
	return s.exec(ctx, "set_tip", query, tip.Height, tip.TxCount)
}

// scanContract scans a single row into ContractDeployment.
func scanContract(row pgx.Row) (*domain.ContractDeployment, error) {
	var (
		c    domain.ContractDeployment
		kind string
	)
	if err := row.Scan(&c.Contract, &kind, &c.Deployer, &c.DeployedAt); err != nil {
		return nil, err
	}
	c.Kind = domain.ContractKind(kind)
	return &c, nil
}
