package core

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethrun/ethrun/core/types"
)

// Errors from header-level pre-execution validation.
var (
	ErrUnknownParent        = errors.New("core: unknown parent block")
	ErrBlockNumberMismatch  = errors.New("core: block number does not follow parent")
	ErrGasLimitOutOfBounds  = errors.New("core: gas limit adjusted more than 1/1024 from parent")
	ErrGasUsedExceedsLimit  = errors.New("core: header gas used exceeds its own gas limit")
	ErrTimestampNotIncreasing = errors.New("core: block timestamp does not exceed parent's")
)

// ValidateHeader checks header against parent independent of transaction
// execution: ancestry, monotonic numbering/timestamps, and the gas-limit
// elasticity bound: a child's gas limit may move at most 1/1024th of its
// parent's per block.
func ValidateHeader(header, parent *types.Header) error {
	if parent == nil {
		return ErrUnknownParent
	}
	if header.Number == nil || parent.Number == nil {
		return ErrBlockNumberMismatch
	}
	wantNumber := new(big.Int).Add(parent.Number, big.NewInt(1))
	if header.Number.Cmp(wantNumber) != 0 {
		return ErrBlockNumberMismatch
	}
	if header.Time <= parent.Time {
		return ErrTimestampNotIncreasing
	}
	if header.GasUsed > header.GasLimit {
		return ErrGasUsedExceedsLimit
	}

	diff := int64(header.GasLimit) - int64(parent.GasLimit)
	if diff < 0 {
		diff = -diff
	}
	bound := int64(parent.GasLimit / 1024)
	if diff > bound {
		return fmt.Errorf("%w: delta %d exceeds bound %d", ErrGasLimitOutOfBounds, diff, bound)
	}
	return nil
}
