// Package chain is the single-node host platform the contracts run on.
//
// It serializes every state-mutating call behind one mutex, executes each
// transaction inside its own storage transaction, and records a receipt for
// committed and aborted calls alike. Contract error codes and native errors
// become part of the receipt; only infrastructure failures are returned as
// Go errors.
package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"token-forge/internal/abi"
	"token-forge/internal/contract"
	"token-forge/internal/domain"
	"token-forge/internal/factory"
	"token-forge/internal/idhash"
	"token-forge/internal/ledger"
	"token-forge/internal/observability"
	"token-forge/internal/sip010"
	"token-forge/internal/storage"
)

// DeployFunction is the receipt function name of contract deployments.
const DeployFunction = "deploy-contract"

var (
	// ErrUnknownKind is returned when deploying an unregistered program.
	ErrUnknownKind = errors.New("unknown contract kind")

	// ErrContractExists is returned when the contract principal is already taken.
	ErrContractExists = errors.New("contract already exists")

	// ErrInvalidSender is returned for transactions whose sender is not a standard principal.
	ErrInvalidSender = errors.New("invalid transaction sender")
)

// Tx is a contract call submitted for execution.
type Tx struct {
	Sender   domain.Principal
	Contract domain.Principal
	Function string
	Args     []abi.Value
}

// Publisher receives every stored receipt.
type Publisher interface {
	Publish(r *domain.Receipt)
}

// Chain executes transactions against a StateStore.
type Chain struct {
	mu sync.Mutex

	state     storage.StateStore
	receipts  storage.ReceiptStore
	programs  map[domain.ContractKind]contract.Contract
	publisher Publisher
	logger    zerolog.Logger
	now       func() time.Time
}

// Option configures a Chain.
type Option func(*Chain)

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Chain) {
		c.logger = logger
	}
}

// WithPublisher sets the receipt publisher.
func WithPublisher(p Publisher) Option {
	return func(c *Chain) {
		c.publisher = p
	}
}

// WithClock overrides the wall clock used for receipt timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Chain) {
		c.now = now
	}
}

// New creates a chain with the token-factory and token-ledger programs registered.
func New(state storage.StateStore, receipts storage.ReceiptStore, opts ...Option) *Chain {
	c := &Chain{
		state:    state,
		receipts: receipts,
		programs: map[domain.ContractKind]contract.Contract{
			domain.KindTokenFactory: factory.New(),
			domain.KindTokenLedger:  ledger.New(),
		},
		logger: zerolog.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Program returns the program registered for kind.
func (c *Chain) Program(kind domain.ContractKind) (contract.Contract, bool) {
	p, ok := c.programs[kind]
	return p, ok
}

// Deploy creates a new contract instance at <deployer>.<name> in its own block.
// Ledger programs must conform to the sip-010 trait.
func (c *Chain) Deploy(ctx context.Context, deployer domain.Principal, kind domain.ContractKind, name string) (*domain.ContractDeployment, error) {
	program, principal, err := c.resolveDeploy(deployer, kind, name)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var (
		deployment *domain.ContractDeployment
		events     []domain.Event
	)
	err = c.state.Update(ctx, func(st storage.State) error {
		tip, err := st.GetTip(ctx)
		if err != nil {
			return fmt.Errorf("get tip: %w", err)
		}
		height := tip.Height + 1

		deployment, events, err = deployIn(ctx, st, program, deployer, principal, height)
		if err != nil {
			return err
		}
		return st.SetTip(ctx, &domain.ChainTip{Height: height, TxCount: tip.TxCount + 1})
	})
	if err != nil {
		return nil, err
	}

	if err := c.record(ctx, c.deployReceipt(deployment, name, 0, events)); err != nil {
		return nil, err
	}
	c.observeDeploy(deployment)
	return deployment, nil
}

// resolveDeploy checks a deploy request and returns the program and the new contract principal.
func (c *Chain) resolveDeploy(deployer domain.Principal, kind domain.ContractKind, name string) (contract.Contract, domain.Principal, error) {
	program, ok := c.programs[kind]
	if !ok || !kind.Valid() {
		return nil, "", fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if kind == domain.KindTokenLedger {
		if err := sip010.Conforms(program); err != nil {
			return nil, "", err
		}
	}
	principal, err := domain.ContractPrincipal(deployer, name)
	if err != nil {
		return nil, "", err
	}
	return program, principal, nil
}

// deployIn registers the contract at height and runs its deploy hook inside st.
func deployIn(ctx context.Context, st storage.State, program contract.Contract, deployer, principal domain.Principal, height uint64) (*domain.ContractDeployment, []domain.Event, error) {
	deployment := &domain.ContractDeployment{
		Contract:   principal,
		Kind:       program.Kind(),
		Deployer:   deployer,
		DeployedAt: height,
	}
	if err := st.InsertContract(ctx, deployment); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return nil, nil, fmt.Errorf("%w: %s", ErrContractExists, principal)
		}
		return nil, nil, fmt.Errorf("insert contract: %w", err)
	}

	var events []domain.Event
	if d, ok := program.(contract.Deployable); ok {
		env := contract.NewEnv(st, deployer, principal, height, false)
		if err := d.OnDeploy(ctx, env); err != nil {
			return nil, nil, fmt.Errorf("initialize %s: %w", principal, err)
		}
		events = env.Events()
	}
	return deployment, events, nil
}

func (c *Chain) deployReceipt(d *domain.ContractDeployment, name string, index int, events []domain.Event) *domain.Receipt {
	args, _ := json.Marshal([]abi.Value{abi.ASCII(string(d.Kind)), abi.ASCII(name)})
	return &domain.Receipt{
		TxID:        idhash.ComputeDeployID(d.DeployedAt, string(d.Contract), string(d.Kind)),
		BlockHeight: d.DeployedAt,
		TxIndex:     index,
		Sender:      d.Deployer,
		Contract:    d.Contract,
		Function:    DeployFunction,
		Args:        string(args),
		Committed:   true,
		Result:      mustJSON(abi.Bool(true)),
		Events:      events,
		ExecutedAt:  c.now().UnixMilli(),
	}
}

func (c *Chain) observeDeploy(d *domain.ContractDeployment) {
	observability.RecordDeploy(string(d.Kind))
	observability.RecordBlock(d.DeployedAt, c.now().Unix())
	c.logger.Info().
		Str("contract", d.Contract.String()).
		Str("kind", string(d.Kind)).
		Uint64("height", d.DeployedAt).
		Msg("contract deployed")
}

// Submit mines tx alone in a new block.
func (c *Chain) Submit(ctx context.Context, tx Tx) (*domain.Receipt, error) {
	receipts, err := c.MineBlock(ctx, []Tx{tx})
	if err != nil {
		return nil, err
	}
	return receipts[0], nil
}

// MineBlock executes txs in order in one new block. Each tx is atomic on its own:
// a failed tx rolls back only its own writes. An empty block only advances the height.
func (c *Chain) MineBlock(ctx context.Context, txs []Tx) ([]*domain.Receipt, error) {
	for i, tx := range txs {
		if tx.Sender.IsContract() {
			return nil, fmt.Errorf("%w: tx %d sender %s is a contract", ErrInvalidSender, i, tx.Sender)
		}
		if _, err := domain.ParsePrincipal(string(tx.Sender)); err != nil {
			return nil, fmt.Errorf("%w: tx %d: %v", ErrInvalidSender, i, err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	tip, err := c.tip(ctx)
	if err != nil {
		return nil, err
	}
	height := tip.Height + 1

	if len(txs) == 0 {
		err := c.state.Update(ctx, func(st storage.State) error {
			return st.SetTip(ctx, &domain.ChainTip{Height: height, TxCount: tip.TxCount})
		})
		if err != nil {
			return nil, fmt.Errorf("advance tip: %w", err)
		}
		observability.RecordBlock(height, c.now().Unix())
		return []*domain.Receipt{}, nil
	}

	receipts := make([]*domain.Receipt, 0, len(txs))
	for i, tx := range txs {
		r, err := c.execute(ctx, height, i, tx)
		if err != nil {
			return nil, err
		}
		receipts = append(receipts, r)
	}

	observability.RecordBlock(height, c.now().Unix())
	c.logger.Debug().Uint64("height", height).Int("txs", len(txs)).Msg("block mined")
	return receipts, nil
}

// execute runs one tx in its own storage transaction and records the receipt.
func (c *Chain) execute(ctx context.Context, height uint64, index int, tx Tx) (*domain.Receipt, error) {
	args := tx.Args
	if args == nil {
		args = []abi.Value{}
	}
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encode args: %w", err)
	}

	receipt := &domain.Receipt{
		TxID:        idhash.ComputeTxID(height, index, string(tx.Sender), string(tx.Contract), tx.Function, string(argsJSON)),
		BlockHeight: height,
		TxIndex:     index,
		Sender:      tx.Sender,
		Contract:    tx.Contract,
		Function:    tx.Function,
		Args:        string(argsJSON),
		ExecutedAt:  c.now().UnixMilli(),
	}

	start := time.Now()
	var (
		kind   domain.ContractKind
		result abi.Value
		events []domain.Event
	)
	err = c.state.Update(ctx, func(st storage.State) error {
		dep, err := st.GetContract(ctx, tx.Contract)
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: %s", contract.ErrNoSuchContract, tx.Contract)
		}
		if err != nil {
			return fmt.Errorf("get contract: %w", err)
		}
		kind = dep.Kind
		program, ok := c.programs[dep.Kind]
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownKind, dep.Kind)
		}

		env := contract.NewEnv(st, tx.Sender, tx.Contract, height, false)
		result, err = contract.Invoke(ctx, program, env, tx.Function, args)
		if err != nil {
			return err
		}
		events = env.Events()

		tip, err := st.GetTip(ctx)
		if err != nil {
			return fmt.Errorf("get tip: %w", err)
		}
		return st.SetTip(ctx, &domain.ChainTip{Height: height, TxCount: tip.TxCount + 1})
	})

	outcome := "ok"
	if code, ok := contract.CodeOf(err); ok {
		outcome = "err"
		value := uint32(code)
		receipt.ErrorCode = &value
	} else if native, ok := contract.NativeErrorOf(err); ok {
		outcome = "native"
		receipt.NativeError = string(native)
	} else if err != nil {
		return nil, fmt.Errorf("execute %s %s: %w", tx.Contract, tx.Function, err)
	}

	if outcome == "ok" {
		receipt.Committed = true
		receipt.Result = mustJSON(result)
		receipt.Events = events
	} else if err := c.bumpTxCount(ctx, height); err != nil {
		return nil, err
	}

	if err := c.record(ctx, receipt); err != nil {
		return nil, err
	}

	observability.RecordTransaction(string(kind), tx.Function, outcome, time.Since(start).Seconds())
	c.observeCommitted(kind, receipt)

	logEvent := c.logger.Debug()
	if outcome != "ok" {
		logEvent = c.logger.Info()
	}
	logEvent.
		Str("tx_id", receipt.TxID).
		Str("contract", tx.Contract.String()).
		Str("function", tx.Function).
		Str("outcome", outcome).
		Str("result", describeResult(receipt)).
		Msg("transaction executed")

	return receipt, nil
}

// bumpTxCount records an aborted tx in the tip; its own writes were rolled back.
func (c *Chain) bumpTxCount(ctx context.Context, height uint64) error {
	err := c.state.Update(ctx, func(st storage.State) error {
		tip, err := st.GetTip(ctx)
		if err != nil {
			return err
		}
		return st.SetTip(ctx, &domain.ChainTip{Height: height, TxCount: tip.TxCount + 1})
	})
	if err != nil {
		return fmt.Errorf("advance tip: %w", err)
	}
	return nil
}

func (c *Chain) record(ctx context.Context, r *domain.Receipt) error {
	if err := c.receipts.Insert(ctx, r); err != nil {
		return fmt.Errorf("store receipt %s: %w", r.TxID, err)
	}
	if c.publisher != nil {
		c.publisher.Publish(r)
	}
	return nil
}

func (c *Chain) observeCommitted(kind domain.ContractKind, r *domain.Receipt) {
	if !r.Committed {
		return
	}
	for _, ev := range r.Events {
		observability.RecordEvent(ev.Topic)
	}
	if kind != domain.KindTokenFactory || r.Function != "create-token" {
		return
	}
	observability.RecordTokenCreated()
	for _, ev := range r.Events {
		if ev.Topic != domain.TopicSTXTransfer {
			continue
		}
		if fee, err := domain.ParseAmount(ev.Data["amount"]); err == nil {
			observability.RecordFeeCollected(amountFloat(fee))
		}
	}
}

// CallReadOnly executes a read-only function against the current state.
// Calling a public function, or any write, fails with contract.ErrReadOnlyViolation.
func (c *Chain) CallReadOnly(ctx context.Context, sender, target domain.Principal, function string, args []abi.Value) (abi.Value, error) {
	var result abi.Value
	err := c.state.View(ctx, func(st storage.State) error {
		dep, err := st.GetContract(ctx, target)
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: %s", contract.ErrNoSuchContract, target)
		}
		if err != nil {
			return fmt.Errorf("get contract: %w", err)
		}
		program, ok := c.programs[dep.Kind]
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownKind, dep.Kind)
		}
		tip, err := st.GetTip(ctx)
		if err != nil {
			return fmt.Errorf("get tip: %w", err)
		}

		env := contract.NewEnv(st, sender, target, tip.Height, true)
		result, err = contract.Invoke(ctx, program, env, function, args)
		return err
	})

	outcome := "ok"
	if _, ok := contract.CodeOf(err); ok {
		outcome = "err"
	} else if _, ok := contract.NativeErrorOf(err); ok {
		outcome = "native"
	} else if err != nil {
		outcome = "error"
	}
	observability.RecordReadOnlyCall(function, outcome)

	if err != nil {
		return abi.Value{}, err
	}
	return result, nil
}

// Faucet credits native micro-units to an account and returns the new balance.
func (c *Chain) Faucet(ctx context.Context, to domain.Principal, amount domain.Amount) (domain.Amount, error) {
	if amount.IsZero() {
		return domain.ZeroAmount, fmt.Errorf("%w: zero faucet amount", storage.ErrInvalidInput)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var balance domain.Amount
	err := c.state.Update(ctx, func(st storage.State) error {
		bank := contract.Bank{Accounts: st}
		if err := bank.Credit(ctx, to, amount); err != nil {
			return err
		}
		var err error
		balance, err = st.GetAccountBalance(ctx, to)
		return err
	})
	if err != nil {
		return domain.ZeroAmount, fmt.Errorf("faucet %s: %w", to, err)
	}

	observability.RecordFaucet(amountFloat(amount))
	c.logger.Info().Str("account", to.String()).Str("amount", amount.String()).Msg("faucet credit")
	return balance, nil
}

// AccountBalance returns the native balance of an account.
func (c *Chain) AccountBalance(ctx context.Context, account domain.Principal) (domain.Amount, error) {
	var balance domain.Amount
	err := c.state.View(ctx, func(st storage.State) error {
		var err error
		balance, err = st.GetAccountBalance(ctx, account)
		return err
	})
	return balance, err
}

// Tip returns the current chain tip.
func (c *Chain) Tip(ctx context.Context) (*domain.ChainTip, error) {
	return c.tip(ctx)
}

func (c *Chain) tip(ctx context.Context) (*domain.ChainTip, error) {
	var tip *domain.ChainTip
	err := c.state.View(ctx, func(st storage.State) error {
		var err error
		tip, err = st.GetTip(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get tip: %w", err)
	}
	return tip, nil
}

// Contracts lists all deployed contracts.
func (c *Chain) Contracts(ctx context.Context) ([]*domain.ContractDeployment, error) {
	var list []*domain.ContractDeployment
	err := c.state.View(ctx, func(st storage.State) error {
		var err error
		list, err = st.ListContracts(ctx)
		return err
	})
	return list, err
}

// Receipt returns a stored receipt.
func (c *Chain) Receipt(ctx context.Context, txID string) (*domain.Receipt, error) {
	return c.receipts.GetByTxID(ctx, txID)
}

// Receipts returns the receipts of one block.
func (c *Chain) Receipts(ctx context.Context, height uint64) ([]*domain.Receipt, error) {
	return c.receipts.GetByBlock(ctx, height)
}

func describeResult(r *domain.Receipt) string {
	switch {
	case r.ErrorCode != nil:
		return fmt.Sprintf("(err u%d)", *r.ErrorCode)
	case r.NativeError != "":
		return r.NativeError
	default:
		return "(ok)"
	}
}

func mustJSON(v abi.Value) string {
	data, err := json.Marshal(v)
	if err != nil {
		// Values produced by contracts are always well formed.
		panic(fmt.Sprintf("encode abi value: %v", err))
	}
	return string(data)
}

func amountFloat(a domain.Amount) float64 {
	return float64(a.Hi)*math.Exp2(64) + float64(a.Lo)
}
