package idhash

import (
	"testing"
)

func TestComputeTxID(t *testing.T) {
	tests := []struct {
		name        string
		blockHeight uint64
		txIndex     int
		sender      string
		contract    string
		function    string
		argsJSON    string
		wantLen     int // hash length should be 64
	}{
		{
			name:        "create-token",
			blockHeight: 1,
			txIndex:     0,
			sender:      "wallet1",
			contract:    "deployer.token-factory",
			function:    "create-token",
			argsJSON:    `[{"type":"ascii","value":"Galaxy Coin"}]`,
			wantLen:     64,
		},
		{
			name:        "transfer without args",
			blockHeight: 99,
			txIndex:     3,
			sender:      "wallet2",
			contract:    "deployer.my-token",
			function:    "transfer",
			argsJSON:    "",
			wantLen:     64,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeTxID(tt.blockHeight, tt.txIndex, tt.sender, tt.contract, tt.function, tt.argsJSON)

			if len(got) != tt.wantLen {
				t.Errorf("ComputeTxID() length = %d, want %d", len(got), tt.wantLen)
			}

			// Verify determinism: same inputs should produce same output
			got2 := ComputeTxID(tt.blockHeight, tt.txIndex, tt.sender, tt.contract, tt.function, tt.argsJSON)
			if got != got2 {
				t.Errorf("ComputeTxID() not deterministic: %s != %s", got, got2)
			}
		})
	}
}

func TestComputeTxID_Uniqueness(t *testing.T) {
	base := ComputeTxID(5, 0, "s", "c", "f", "[]")

	variants := []string{
		ComputeTxID(6, 0, "s", "c", "f", "[]"),
		ComputeTxID(5, 1, "s", "c", "f", "[]"),
		ComputeTxID(5, 0, "t", "c", "f", "[]"),
		ComputeTxID(5, 0, "s", "d", "f", "[]"),
		ComputeTxID(5, 0, "s", "c", "g", "[]"),
		ComputeTxID(5, 0, "s", "c", "f", "[1]"),
	}

	for i, v := range variants {
		if v == base {
			t.Errorf("variant %d collides with base id %s", i, base)
		}
	}
}

func TestComputeDeployID(t *testing.T) {
	a := ComputeDeployID(1, "deployer.token-factory", "token-factory")
	b := ComputeDeployID(1, "deployer.my-token", "token-ledger")

	if len(a) != 64 {
		t.Errorf("ComputeDeployID() length = %d, want 64", len(a))
	}
	if a == b {
		t.Error("different deployments produced the same id")
	}
	if a == ComputeTxID(1, 0, "", "deployer.token-factory", "token-factory", "") {
		t.Error("deploy id collides with tx id namespace")
	}
}
