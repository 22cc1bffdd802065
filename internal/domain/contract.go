package domain

// ContractKind names the contract implementations the host chain can deploy.
type ContractKind string

const (
	KindTokenFactory ContractKind = "token-factory"
	KindTokenLedger  ContractKind = "token-ledger"
)

// Valid reports whether k is a known contract kind.
func (k ContractKind) Valid() bool {
	switch k {
	case KindTokenFactory, KindTokenLedger:
		return true
	default:
		return false
	}
}

// ContractDeployment records a deployed contract instance.
// Corresponds to the contracts table.
type ContractDeployment struct {
	Contract   Principal
	Kind       ContractKind
	Deployer   Principal
	DeployedAt uint64 // block height
}

// ChainTip is the persisted head of the host chain.
type ChainTip struct {
	Height  uint64 // last mined block
	TxCount uint64 // transactions executed since genesis
}
