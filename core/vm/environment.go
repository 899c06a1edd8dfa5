// Package vm implements a narrow execution-interpreter contract plus a
// compact but real reference implementation.
package vm

import (
	"math/big"

	"github.com/ethrun/ethrun/core/types"
)

// GetHashFunc resolves a recent block number to its hash, for the BLOCKHASH
// opcode; implementations must return the zero hash outside their window.
type GetHashFunc func(uint64) types.Hash

// BlockContext is the read-only per-block data the environment facade
// exposes to executing code.
type BlockContext struct {
	GetHash     GetHashFunc
	Coinbase    types.Address
	BlockNumber *big.Int
	Time        uint64
	GasLimit    uint64
	BaseFee     *big.Int
	PrevRandao  types.Hash
}

// TxContext is the read-only per-transaction data the environment facade
// exposes to executing code.
type TxContext struct {
	Origin     types.Address
	GasPrice   *big.Int
	BlobHashes []types.Hash
}

// MessageResult is the external interpreter contract's return value:
// exactly what the transaction runner needs to finish
// gas accounting and assemble a receipt, and nothing about how the
// interpreter got there.
type MessageResult struct {
	Status          Status
	GasLeft         uint64
	ReturnData      []byte
	Logs            []types.Log
	SelfDestructSet map[types.Address]struct{}
	RefundDelta     int64
	CreatedAddress  *types.Address
}

// Status is the coarse outcome of a message's execution.
type Status int

const (
	StatusSuccess Status = iota
	StatusRevert
	StatusExceptionalHalt
)

// Config tunes the interpreter's optional behavior.
type Config struct {
	Debug        bool
	MaxCallDepth int
}

// Interpreter is the narrow contract the transaction runner depends on.
// The reference EVM type is one implementation; the engine's
// WithInterpreter option may supply another.
type Interpreter interface {
	ExecuteMessage(msg Message) MessageResult
}

// Message mirrors core.Message's fields that the interpreter needs,
// decoupling core/vm from core to avoid a package cycle (core imports
// core/vm for the Interpreter contract; core/vm must not import core).
type Message struct {
	From     types.Address
	To       *types.Address
	Value    *big.Int
	Data     []byte
	Gas      uint64
	Depth    int
	Static   bool
	Salt     *types.Hash // set for CREATE2-style deterministic creation
}
