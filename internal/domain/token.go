package domain

// Token is a factory catalog entry. Immutable once written.
// Corresponds to the factory_tokens table.
type Token struct {
	Factory   Principal // factory contract that registered the token
	TokenID   uint64    // dense, 0-based, assigned in creation order
	Name      string    // display name, 1..64 chars
	Symbol    string    // ticker, 1..11 chars of [A-Za-z0-9_-]
	Decimals  uint8     // 0..18
	Supply    Amount    // declared supply in micro-units
	Creator   Principal // caller of create-token
	CreatedAt uint64    // block height of registration
}

// FactoryConfig is the scalar configuration block of one factory deployment.
// Corresponds to the factory_config table.
type FactoryConfig struct {
	Contract     Principal
	Owner        Principal
	FeeRecipient Principal
	CreationFee  Amount // micro-units charged per create-token
	TokenCount   uint64 // next token id
}

// FactoryInfo is the aggregate snapshot returned by get-contract-info.
type FactoryInfo struct {
	TokenCount  uint64
	CreationFee Amount
	Version     string
}
