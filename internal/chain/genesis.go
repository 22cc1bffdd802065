package chain

import (
	"context"
	"fmt"

	"github.com/spf13/viper"

	"token-forge/internal/contract"
	"token-forge/internal/domain"
	"token-forge/internal/observability"
	"token-forge/internal/storage"
)

// Genesis is the initial state of a fresh chain.
type Genesis struct {
	Accounts  []GenesisAccount  `mapstructure:"accounts"`
	Contracts []GenesisContract `mapstructure:"contracts"`
}

// GenesisAccount credits a native balance. Either Principal or Seed names the account;
// Seed derives the principal with domain.PrincipalFromSeed.
type GenesisAccount struct {
	Principal string `mapstructure:"principal"`
	Seed      string `mapstructure:"seed"`
	Balance   string `mapstructure:"balance"` // micro-units, base 10
}

// GenesisContract deploys a contract at genesis.
type GenesisContract struct {
	Deployer     string `mapstructure:"deployer"`
	DeployerSeed string `mapstructure:"deployer_seed"`
	Kind         string `mapstructure:"kind"`
	Name         string `mapstructure:"name"`
}

// LoadGenesis reads a genesis file. The format follows the file extension
// (toml, yaml, json).
func LoadGenesis(file string) (*Genesis, error) {
	v := viper.New()
	v.SetConfigFile(file)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read genesis %s: %w", file, err)
	}

	g := new(Genesis)
	if err := v.Unmarshal(g); err != nil {
		return nil, fmt.Errorf("unmarshal genesis %s: %w", file, err)
	}
	return g, nil
}

// ApplyGenesis credits the genesis accounts and deploys the genesis contracts in
// block 1, all inside one storage transaction: either the whole genesis lands or
// nothing does. It does nothing on a chain that has already mined a block.
func (c *Chain) ApplyGenesis(ctx context.Context, g *Genesis) error {
	type credit struct {
		to     domain.Principal
		amount domain.Amount
	}
	type deploy struct {
		program   contract.Contract
		deployer  domain.Principal
		principal domain.Principal
		name      string
	}

	credits := make([]credit, 0, len(g.Accounts))
	for i, acct := range g.Accounts {
		p, err := resolvePrincipal(acct.Principal, acct.Seed)
		if err != nil {
			return fmt.Errorf("genesis account %d: %w", i, err)
		}
		amount, err := domain.ParseAmount(acct.Balance)
		if err != nil {
			return fmt.Errorf("genesis account %d: %w", i, err)
		}
		if amount.IsZero() {
			continue
		}
		credits = append(credits, credit{to: p, amount: amount})
	}

	deploys := make([]deploy, 0, len(g.Contracts))
	for i, gc := range g.Contracts {
		deployer, err := resolvePrincipal(gc.Deployer, gc.DeployerSeed)
		if err != nil {
			return fmt.Errorf("genesis contract %d: %w", i, err)
		}
		program, principal, err := c.resolveDeploy(deployer, domain.ContractKind(gc.Kind), gc.Name)
		if err != nil {
			return fmt.Errorf("genesis contract %d: %w", i, err)
		}
		deploys = append(deploys, deploy{program: program, deployer: deployer, principal: principal, name: gc.Name})
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var (
		skipped     bool
		skipHeight  uint64
		deployments = make([]*domain.ContractDeployment, len(deploys))
		events      = make([][]domain.Event, len(deploys))
	)
	err := c.state.Update(ctx, func(st storage.State) error {
		tip, err := st.GetTip(ctx)
		if err != nil {
			return fmt.Errorf("get tip: %w", err)
		}
		if tip.Height > 0 {
			skipped, skipHeight = true, tip.Height
			return nil
		}
		height := tip.Height + 1

		bank := contract.Bank{Accounts: st}
		for i, cr := range credits {
			if err := bank.Credit(ctx, cr.to, cr.amount); err != nil {
				return fmt.Errorf("genesis account %d: %w", i, err)
			}
		}
		for i, d := range deploys {
			deployments[i], events[i], err = deployIn(ctx, st, d.program, d.deployer, d.principal, height)
			if err != nil {
				return fmt.Errorf("genesis contract %d: %w", i, err)
			}
		}
		return st.SetTip(ctx, &domain.ChainTip{Height: height, TxCount: tip.TxCount + uint64(len(deploys))})
	})
	if err != nil {
		return err
	}
	if skipped {
		c.logger.Info().Uint64("height", skipHeight).Msg("chain already initialized, skipping genesis")
		return nil
	}

	for i, d := range deployments {
		if err := c.record(ctx, c.deployReceipt(d, deploys[i].name, i, events[i])); err != nil {
			return err
		}
		c.observeDeploy(d)
	}
	for _, cr := range credits {
		observability.RecordFaucet(amountFloat(cr.amount))
	}
	observability.RecordBlock(1, c.now().Unix())

	c.logger.Info().
		Int("accounts", len(credits)).
		Int("contracts", len(deploys)).
		Msg("genesis applied")
	return nil
}

func resolvePrincipal(principal, seed string) (domain.Principal, error) {
	switch {
	case principal != "" && seed != "":
		return "", fmt.Errorf("%w: both principal and seed set", domain.ErrInvalidPrincipal)
	case principal != "":
		return domain.ParsePrincipal(principal)
	case seed != "":
		return domain.PrincipalFromSeed(seed), nil
	default:
		return "", fmt.Errorf("%w: neither principal nor seed set", domain.ErrInvalidPrincipal)
	}
}
