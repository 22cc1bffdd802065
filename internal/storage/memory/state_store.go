package memory

import (
	"context"
	"slices"
	"sort"
	"sync"

	"token-forge/internal/domain"
	"token-forge/internal/storage"
)

type tokenKey struct {
	factory domain.Principal
	tokenID uint64
}

type creatorKey struct {
	factory domain.Principal
	creator domain.Principal
}

type balanceKey struct {
	contract domain.Principal
	holder   domain.Principal
}

// tables is the committed world state.
type tables struct {
	factories     map[domain.Principal]domain.FactoryConfig
	tokens        map[tokenKey]domain.Token
	creatorTokens map[creatorKey][]uint64
	ledgers       map[domain.Principal]domain.LedgerState
	balances      map[balanceKey]domain.Amount
	accounts      map[domain.Principal]domain.Amount
	contracts     map[domain.Principal]domain.ContractDeployment
	tip           domain.ChainTip
}

func newTables() *tables {
	return &tables{
		factories:     make(map[domain.Principal]domain.FactoryConfig),
		tokens:        make(map[tokenKey]domain.Token),
		creatorTokens: make(map[creatorKey][]uint64),
		ledgers:       make(map[domain.Principal]domain.LedgerState),
		balances:      make(map[balanceKey]domain.Amount),
		accounts:      make(map[domain.Principal]domain.Amount),
		contracts:     make(map[domain.Principal]domain.ContractDeployment),
	}
}

// StateStore is an in-memory implementation of storage.StateStore.
// Update records writes in a per-transaction overlay and merges it into the
// committed tables only when fn succeeds, so a transaction costs in
// proportion to what it touches.
type StateStore struct {
	mu sync.RWMutex
	t  *tables
}

// NewStateStore creates an empty in-memory state store.
func NewStateStore() *StateStore {
	return &StateStore{t: newTables()}
}

// View runs fn against the committed tables.
func (s *StateStore) View(_ context.Context, fn func(storage.State) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return fn(storage.ReadOnly(newState(s.t)))
}

// Update runs fn against an overlay of the committed tables and merges the
// overlay if fn succeeds. On error the overlay is dropped.
func (s *StateStore) Update(_ context.Context, fn func(storage.State) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := newState(s.t)
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit(s.t)
	return nil
}

var _ storage.StateStore = (*StateStore)(nil)

// state implements storage.State as a write set over the committed tables.
type state struct {
	factories     *overlay[domain.Principal, domain.FactoryConfig]
	tokens        *overlay[tokenKey, domain.Token]
	creatorTokens *overlay[creatorKey, []uint64]
	ledgers       *overlay[domain.Principal, domain.LedgerState]
	balances      *overlay[balanceKey, domain.Amount]
	accounts      *overlay[domain.Principal, domain.Amount]
	contracts     *overlay[domain.Principal, domain.ContractDeployment]
	tip           *domain.ChainTip
	baseTip       domain.ChainTip
}

var _ storage.State = (*state)(nil)

func newState(t *tables) *state {
	return &state{
		factories:     newOverlay(t.factories),
		tokens:        newOverlay(t.tokens),
		creatorTokens: newOverlay(t.creatorTokens),
		ledgers:       newOverlay(t.ledgers),
		balances:      newOverlay(t.balances),
		accounts:      newOverlay(t.accounts),
		contracts:     newOverlay(t.contracts),
		baseTip:       t.tip,
	}
}

func (s *state) commit(t *tables) {
	s.factories.commit()
	s.tokens.commit()
	s.creatorTokens.commit()
	s.ledgers.commit()
	s.balances.commit()
	s.accounts.commit()
	s.contracts.commit()
	if s.tip != nil {
		t.tip = *s.tip
	}
}

func (s *state) GetFactory(_ context.Context, factory domain.Principal) (*domain.FactoryConfig, error) {
	cfg, ok := s.factories.get(factory)
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &cfg, nil
}

func (s *state) PutFactory(_ context.Context, cfg *domain.FactoryConfig) error {
	if cfg == nil || cfg.Contract == "" {
		return storage.ErrInvalidInput
	}
	s.factories.put(cfg.Contract, *cfg)
	return nil
}

func (s *state) InsertToken(_ context.Context, t *domain.Token) error {
	if t == nil || t.Factory == "" {
		return storage.ErrInvalidInput
	}
	key := tokenKey{factory: t.Factory, tokenID: t.TokenID}
	if _, exists := s.tokens.get(key); exists {
		return storage.ErrDuplicateKey
	}
	s.tokens.put(key, *t)
	return nil
}

func (s *state) GetToken(_ context.Context, factory domain.Principal, tokenID uint64) (*domain.Token, error) {
	t, ok := s.tokens.get(tokenKey{factory: factory, tokenID: tokenID})
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &t, nil
}

func (s *state) AppendCreatorToken(_ context.Context, factory, creator domain.Principal, tokenID uint64) error {
	key := creatorKey{factory: factory, creator: creator}
	ids, _ := s.creatorTokens.get(key)
	s.creatorTokens.put(key, append(slices.Clip(ids), tokenID))
	return nil
}

func (s *state) ListCreatorTokens(_ context.Context, factory, creator domain.Principal) ([]uint64, error) {
	ids, ok := s.creatorTokens.get(creatorKey{factory: factory, creator: creator})
	if !ok {
		return []uint64{}, nil
	}
	return slices.Clone(ids), nil
}

func (s *state) GetLedger(_ context.Context, contract domain.Principal) (*domain.LedgerState, error) {
	l, ok := s.ledgers.get(contract)
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &l, nil
}

func (s *state) PutLedger(_ context.Context, l *domain.LedgerState) error {
	if l == nil || l.Contract == "" {
		return storage.ErrInvalidInput
	}
	s.ledgers.put(l.Contract, *l)
	return nil
}

func (s *state) GetBalance(_ context.Context, contract, holder domain.Principal) (domain.Amount, error) {
	amount, _ := s.balances.get(balanceKey{contract: contract, holder: holder})
	return amount, nil
}

func (s *state) SetBalance(_ context.Context, contract, holder domain.Principal, amount domain.Amount) error {
	key := balanceKey{contract: contract, holder: holder}
	if amount.IsZero() {
		s.balances.del(key)
		return nil
	}
	s.balances.put(key, amount)
	return nil
}

func (s *state) ListBalances(_ context.Context, contract domain.Principal) ([]domain.Balance, error) {
	result := []domain.Balance{}
	s.balances.each(func(key balanceKey, amount domain.Amount) {
		if key.contract == contract {
			result = append(result, domain.Balance{Holder: key.holder, Amount: amount})
		}
	})
	sort.Slice(result, func(i, j int) bool {
		return result[i].Holder < result[j].Holder
	})
	return result, nil
}

func (s *state) GetAccountBalance(_ context.Context, account domain.Principal) (domain.Amount, error) {
	amount, _ := s.accounts.get(account)
	return amount, nil
}

func (s *state) SetAccountBalance(_ context.Context, account domain.Principal, amount domain.Amount) error {
	if account == "" {
		return storage.ErrInvalidInput
	}
	s.accounts.put(account, amount)
	return nil
}

func (s *state) InsertContract(_ context.Context, c *domain.ContractDeployment) error {
	if c == nil || c.Contract == "" {
		return storage.ErrInvalidInput
	}
	if _, exists := s.contracts.get(c.Contract); exists {
		return storage.ErrDuplicateKey
	}
	s.contracts.put(c.Contract, *c)
	return nil
}

func (s *state) GetContract(_ context.Context, contract domain.Principal) (*domain.ContractDeployment, error) {
	c, ok := s.contracts.get(contract)
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &c, nil
}

func (s *state) ListContracts(_ context.Context) ([]*domain.ContractDeployment, error) {
	result := make([]*domain.ContractDeployment, 0, s.contracts.len())
	s.contracts.each(func(_ domain.Principal, c domain.ContractDeployment) {
		result = append(result, &c)
	})
	sort.Slice(result, func(i, j int) bool {
		if result[i].DeployedAt != result[j].DeployedAt {
			return result[i].DeployedAt < result[j].DeployedAt
		}
		return result[i].Contract < result[j].Contract
	})
	return result, nil
}

func (s *state) GetTip(_ context.Context) (*domain.ChainTip, error) {
	tip := s.baseTip
	if s.tip != nil {
		tip = *s.tip
	}
	return &tip, nil
}

func (s *state) SetTip(_ context.Context, tip *domain.ChainTip) error {
	if tip == nil {
		return storage.ErrInvalidInput
	}
	pending := *tip
	s.tip = &pending
	return nil
}
