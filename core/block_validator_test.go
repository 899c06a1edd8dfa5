package core

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethrun/ethrun/core/types"
)

func testHeader(number, time, gasLimit, gasUsed uint64) *types.Header {
	return &types.Header{
		Number:   new(big.Int).SetUint64(number),
		Time:     time,
		GasLimit: gasLimit,
		GasUsed:  gasUsed,
	}
}

func TestValidateHeaderAcceptsAWellFormedSuccessor(t *testing.T) {
	parent := testHeader(10, 100, 30_000_000, 0)
	child := testHeader(11, 101, 30_000_000, 21_000)
	if err := ValidateHeader(child, parent); err != nil {
		t.Fatalf("ValidateHeader: %v", err)
	}
}

func TestValidateHeaderRejectsNonSequentialNumber(t *testing.T) {
	parent := testHeader(10, 100, 30_000_000, 0)
	child := testHeader(12, 101, 30_000_000, 0)
	err := ValidateHeader(child, parent)
	if !errors.Is(err, ErrBlockNumberMismatch) {
		t.Fatalf("err = %v, want ErrBlockNumberMismatch", err)
	}
}

func TestValidateHeaderRejectsNonIncreasingTimestamp(t *testing.T) {
	parent := testHeader(10, 100, 30_000_000, 0)
	child := testHeader(11, 100, 30_000_000, 0)
	err := ValidateHeader(child, parent)
	if !errors.Is(err, ErrTimestampNotIncreasing) {
		t.Fatalf("err = %v, want ErrTimestampNotIncreasing", err)
	}
}

func TestValidateHeaderRejectsGasUsedAboveItsOwnLimit(t *testing.T) {
	parent := testHeader(10, 100, 30_000_000, 0)
	child := testHeader(11, 101, 30_000_000, 30_000_001)
	err := ValidateHeader(child, parent)
	if !errors.Is(err, ErrGasUsedExceedsLimit) {
		t.Fatalf("err = %v, want ErrGasUsedExceedsLimit", err)
	}
}

func TestValidateHeaderRejectsGasLimitJumpBeyondElasticityBound(t *testing.T) {
	parent := testHeader(10, 100, 30_000_000, 0)
	// parent's bound is parentGasLimit/1024 ~= 29296; jump far past it.
	child := testHeader(11, 101, 31_000_000, 0)
	err := ValidateHeader(child, parent)
	if !errors.Is(err, ErrGasLimitOutOfBounds) {
		t.Fatalf("err = %v, want ErrGasLimitOutOfBounds", err)
	}
}

func TestValidateHeaderRejectsNilParent(t *testing.T) {
	child := testHeader(1, 1, 30_000_000, 0)
	if err := ValidateHeader(child, nil); !errors.Is(err, ErrUnknownParent) {
		t.Fatalf("err = %v, want ErrUnknownParent", err)
	}
}
