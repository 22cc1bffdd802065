package domain

// LedgerState is the scalar metadata block of one ledger deployment.
// Corresponds to the ledger_state table.
type LedgerState struct {
	Contract    Principal
	Owner       Principal // deployer; the only principal allowed to initialize and mint
	Initialized bool
	Name        string
	Symbol      string
	Decimals    uint8
	TotalSupply Amount
}

// Balance is one row of a ledger's balances table.
type Balance struct {
	Holder Principal
	Amount Amount
}
