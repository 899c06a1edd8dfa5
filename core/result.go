package core

import (
	"errors"

	"github.com/ethrun/ethrun/core/types"
)

// ErrExecutionReverted is returned (wrapped with return data) when the
// top-level message ends in a REVERT rather than an exceptional halt.
var ErrExecutionReverted = errors.New("core: execution reverted")

// ExecutionResult is what the interpreter (or the transaction runner
// wrapping it) returns for one top-level message.
type ExecutionResult struct {
	UsedGas         uint64
	RefundedGas     uint64
	Err             error
	ReturnData      []byte
	ContractAddress *types.Address
}

// Unwrap lets callers errors.Is/errors.As through to the interpreter's
// underlying error.
func (r *ExecutionResult) Unwrap() error { return r.Err }

func (r *ExecutionResult) Failed() bool { return r.Err != nil }

// Return returns the data from a successful execution.
func (r *ExecutionResult) Return() []byte {
	if r.Err != nil {
		return nil
	}
	return r.ReturnData
}

// Revert returns the data from a reverted execution (empty if the failure
// was an exceptional halt rather than an explicit REVERT).
func (r *ExecutionResult) Revert() []byte {
	if !errors.Is(r.Err, ErrExecutionReverted) {
		return nil
	}
	return r.ReturnData
}
