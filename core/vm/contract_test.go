package vm

import (
	"testing"

	"github.com/ethrun/ethrun/core/types"
)

var testAddr1 = types.HexToAddress("0x1111111111111111111111111111111111111111")

func TestValidJumpDestSkipsOverPushImmediateData(t *testing.T) {
	// PUSH1 0x5b JUMPDEST STOP
	// byte 1 (0x5b) is PUSH1's immediate data, not a real JUMPDEST, even
	// though it happens to equal the JUMPDEST opcode value.
	code := []byte{byte(PUSH1), byte(JUMPDEST), byte(JUMPDEST), byte(STOP)}
	c := newContract(testAddr1, testAddr1, nil, code, nil, 100_000)

	if c.validJumpDest(1) {
		t.Fatal("offset 1 is PUSH1's immediate data byte, must not be a valid jump destination")
	}
	if !c.validJumpDest(2) {
		t.Fatal("offset 2 is a real JUMPDEST, must be valid")
	}
}

func TestUseGasDeductsAndRejectsWhenInsufficient(t *testing.T) {
	c := newContract(testAddr1, testAddr1, nil, nil, nil, 100)
	if !c.useGas(40) {
		t.Fatal("expected useGas(40) to succeed with 100 available")
	}
	if c.Gas != 60 {
		t.Fatalf("Gas = %d, want 60", c.Gas)
	}
	if c.useGas(1000) {
		t.Fatal("expected useGas(1000) to fail with only 60 remaining")
	}
	if c.Gas != 60 {
		t.Fatalf("Gas after a failed useGas must be unchanged, got %d", c.Gas)
	}
}
