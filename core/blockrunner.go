package core

import (
	"errors"
	"fmt"
	"math/big"

	ethlog "github.com/ethereum/go-ethereum/log"

	"github.com/ethrun/ethrun/core/state"
	"github.com/ethrun/ethrun/core/types"
	"github.com/ethrun/ethrun/core/vm"
)

// Errors from whole-block post-execution validation.
var (
	ErrReceiptRootMismatch = errors.New("core: computed receipt root does not match header")
	ErrBloomMismatch       = errors.New("core: computed logs bloom does not match header")
	ErrGasUsedMismatch     = errors.New("core: cumulative gas used does not match header")
	ErrStateRootMismatch   = errors.New("core: computed state root does not match header")
)

// NewInterpreterFunc builds the reference Interpreter for one block's worth of
// transactions; engines that supply their own Interpreter bypass this.
type NewInterpreterFunc func(blockCtx vm.BlockContext, txCtx vm.TxContext, db state.StateDB, rules vm.ForkRules, chainID *big.Int) vm.Interpreter

// DefaultNewInterpreter constructs the reference EVM.
func DefaultNewInterpreter(blockCtx vm.BlockContext, txCtx vm.TxContext, db state.StateDB, rules vm.ForkRules, chainID *big.Int) vm.Interpreter {
	return vm.NewEVM(blockCtx, txCtx, db, rules, chainID, vm.Config{})
}

// BlockRunResult is everything the blockchain driver needs after a block
// finished executing: its receipts and the execution results in tx order.
type BlockRunResult struct {
	Receipts []*types.Receipt
	Results  []*ExecutionResult
	GasUsed  uint64
}

// RunBlock validates a block's header against its parent, replays every transaction against db via
// the transaction runner, applies withdrawals, and checks the header's
// declared gas used against what was actually computed, plus its logs
// bloom and state root when the header sets them (non-zero). No receipts
// root or transactions root is computed or checked. db is mutated in place; callers that want to discard
// a failed block's effects should pass a Copy().
func RunBlock(db state.StateDB, chainCfg *ChainConfig, block *types.Block, parent *types.Header, newInterp NewInterpreterFunc) (*BlockRunResult, error) {
	header := block.Header()
	if err := ValidateHeader(header, parent); err != nil {
		return nil, fmt.Errorf("header validation: %w", err)
	}

	var td *big.Int // total-difficulty tracking is the blockchain driver's concern; nil here resolves by block number only
	_, rules, err := chainCfg.Resolve(header.Number.Uint64(), td)
	if err != nil {
		return nil, fmt.Errorf("rule-set resolution: %w", err)
	}

	if newInterp == nil {
		newInterp = DefaultNewInterpreter
	}

	blockCtx := vmBlockContextFromHeader(header)

	var (
		gasPool  GasPool
		receipts []*types.Receipt
		results  []*ExecutionResult
		cumulative uint64
	)
	gasPool.AddGas(header.GasLimit)

	txs := block.Transactions()
	for i, tx := range txs {
		if err := gasPool.SubGas(tx.Gas()); err != nil {
			return nil, fmt.Errorf("tx %d: %w", i, err)
		}

		txCtx := vmTxContextFromTx(tx)
		interp := newInterp(blockCtx, txCtx, db, rules, chainCfg.ChainID)

		receipt, result, err := RunTx(db, interp, tx, TxRunnerContext{
			Block:             header,
			Rules:             rules,
			ChainID:           chainCfg.ChainID,
			CumulativeGasUsed: cumulative,
			GetHash:           blockCtx.GetHash,
		})
		if err != nil {
			return nil, fmt.Errorf("tx %d: %w", i, err)
		}
		// The declared gas limit was already charged against the pool above;
		// any unused portion returns to it so later transactions can use it.
		gasPool.AddGas(tx.Gas() - receipt.GasUsed)
		cumulative = receipt.CumulativeGasUsed
		receipts = append(receipts, receipt)
		results = append(results, result)
	}

	for _, w := range block.Withdrawals() {
		amountWei := new(big.Int).Mul(new(big.Int).SetUint64(w.Amount), big.NewInt(1_000_000_000)) // gwei -> wei
		db.AddBalance(w.Address, amountWei)
	}
	db.FinalizePreState()

	if cumulative != header.GasUsed {
		return nil, fmt.Errorf("%w: got %d want %d", ErrGasUsedMismatch, cumulative, header.GasUsed)
	}

	var bloom types.Bloom
	for _, r := range receipts {
		bloom.Merge(r.Bloom)
	}
	if bloom != header.Bloom && !header.Bloom.IsZero() {
		return nil, ErrBloomMismatch
	}

	root, err := db.Commit()
	if err != nil {
		return nil, fmt.Errorf("state commit: %w", err)
	}
	if !header.Root.IsZero() && root != header.Root {
		return nil, ErrStateRootMismatch
	}

	ethlog.Info("block executed", "number", header.Number, "txs", len(txs), "gasUsed", cumulative)
	return &BlockRunResult{Receipts: receipts, Results: results, GasUsed: cumulative}, nil
}

func derefOrZero(a *types.Address) types.Address {
	if a == nil {
		return types.Address{}
	}
	return *a
}
