package domain

// Event topics emitted during execution.
const (
	TopicPrint       = "print"
	TopicFTTransfer  = "ft_transfer"
	TopicFTMint      = "ft_mint"
	TopicFTBurn      = "ft_burn"
	TopicSTXTransfer = "stx_transfer"
)

// Event is a side-channel record emitted by a committed call.
// Events of aborted calls are discarded along with their state writes.
type Event struct {
	Contract Principal         `json:"contract,omitempty"` // emitting contract, empty for native transfers
	Topic    string            `json:"topic"`              // one of the Topic* constants
	Data     map[string]string `json:"data"`               // topic-specific attributes, amounts base-10
}

// Receipt is the outcome of one executed transaction.
// Corresponds to the receipts table.
type Receipt struct {
	TxID        string    `json:"tx_id"`        // deterministic hash, see idhash.ComputeTxID
	BlockHeight uint64    `json:"block_height"` // block the tx was mined in
	TxIndex     int       `json:"tx_index"`     // position within the block
	Sender      Principal `json:"sender"`       // asserted caller
	Contract    Principal `json:"contract"`
	Function    string    `json:"function"`
	Args        string    `json:"args"`                   // JSON-encoded ABI arguments
	Committed   bool      `json:"committed"`              // true if state changes were applied
	Result      string    `json:"result,omitempty"`       // JSON-encoded ABI result value, empty on failure
	ErrorCode   *uint32   `json:"error_code,omitempty"`   // contract error code (nil if ok or native failure)
	NativeError string    `json:"native_error,omitempty"` // native platform error, empty otherwise
	Events      []Event   `json:"events"`
	ExecutedAt  int64     `json:"executed_at"` // wall clock, Unix ms
}
