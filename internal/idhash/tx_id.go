package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeTxID computes a deterministic tx_id using SHA256.
// Formula: SHA256(block_height|tx_index|sender|contract|function|args_json)
// Returns hex-encoded hash (64 characters).
func ComputeTxID(
	blockHeight uint64,
	txIndex int,
	sender string,
	contract string,
	function string,
	argsJSON string,
) string {
	data := fmt.Sprintf("%d|%d|%s|%s|%s|%s",
		blockHeight,
		txIndex,
		sender,
		contract,
		function,
		argsJSON,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ComputeDeployID computes a deterministic id for a contract deployment.
// Formula: SHA256(deploy|block_height|contract|kind)
func ComputeDeployID(blockHeight uint64, contract string, kind string) string {
	data := fmt.Sprintf("deploy|%d|%s|%s", blockHeight, contract, kind)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
