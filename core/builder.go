package core

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/ethrun/ethrun/core/state"
	"github.com/ethrun/ethrun/core/types"
	"github.com/ethrun/ethrun/core/vm"
)

// Errors from incremental block building.
var (
	// ErrTxGasLimitBlockOverflow is returned by AddTransaction when the
	// candidate's declared gas limit exceeds the gas remaining in the
	// block, distinct from a transaction that failed pre-execution
	// validation.
	ErrTxGasLimitBlockOverflow = errors.New("core: transaction gas limit exceeds remaining block gas")
	// ErrBuilderClosed is returned by AddTransaction, Build or Revert once
	// the builder has already reached a terminal state.
	ErrBuilderClosed = errors.New("core: builder already finalized or reverted")
)

// BuilderParams are the caller-supplied fields of a block under
// construction; everything else (receipts root, bloom, gas used, state
// root) is derived by Build.
type BuilderParams struct {
	ParentHash  types.Hash
	Number      *big.Int
	Coinbase    types.Address
	GasLimit    uint64
	Time        uint64
	BaseFee     *big.Int
	Extra       []byte
	Withdrawals []*types.Withdrawal
}

// SkippedTx records one candidate the builder did not include and why,
// distinguishing a block-gas-overflow skip from a validation failure so
// callers can react differently (e.g. retry an overflowed tx in the next
// block, but drop an invalid one).
type SkippedTx struct {
	Tx     *types.Transaction
	Reason error
}

// BuiltBlock is a sealed block plus the receipts/results produced while
// building it, ready for the caller to hand to BlockChain.InsertBlock.
type BuiltBlock struct {
	Block    *types.Block
	Receipts []*types.Receipt
	Results  []*ExecutionResult
	Skipped  []SkippedTx
}

// Builder is a long-lived handle onto one block under construction: callers
// add candidates one at a time via AddTransaction, then call either Build
// to seal the block or Revert to discard it. Either call is terminal; the
// builder rejects further calls afterward with ErrBuilderClosed.
type Builder struct {
	config    *ChainConfig
	newInterp NewInterpreterFunc

	db       state.StateDB
	snapshot int
	header   *types.Header
	params   BuilderParams
	rules    vm.ForkRules
	blockCtx vm.BlockContext

	gasPool    GasPool
	cumulative uint64

	included []*types.Transaction
	receipts []*types.Receipt
	results  []*ExecutionResult
	skipped  []SkippedTx

	closed bool
}

// NewBuilder opens a new block-building session on top of db (already
// rooted at params.ParentHash's state; db is mutated as transactions are
// added). db should not be shared with any other in-flight builder or
// execution, since AddTransaction mutates it directly.
func NewBuilder(config *ChainConfig, newInterp NewInterpreterFunc, db state.StateDB, params BuilderParams) (*Builder, error) {
	if newInterp == nil {
		newInterp = DefaultNewInterpreter
	}
	_, rules, err := config.Resolve(params.Number.Uint64(), nil)
	if err != nil {
		return nil, fmt.Errorf("rule-set resolution: %w", err)
	}

	header := &types.Header{
		ParentHash: params.ParentHash,
		Coinbase:   params.Coinbase,
		Number:     new(big.Int).Set(params.Number),
		GasLimit:   params.GasLimit,
		Time:       params.Time,
		Extra:      params.Extra,
		BaseFee:    params.BaseFee,
		Difficulty: big.NewInt(0),
		UncleHash:  types.EmptyUncleHash,
	}

	b := &Builder{
		config:    config,
		newInterp: newInterp,
		db:        db,
		snapshot:  db.Snapshot(),
		header:    header,
		params:    params,
		rules:     rules,
		blockCtx:  vmBlockContextFromHeader(header),
	}
	b.gasPool.AddGas(params.GasLimit)
	return b, nil
}

// AddTransaction runs tx against the builder's state and, on success,
// includes it in the block under construction. A transaction whose gas
// limit would overflow the remaining block gas is rejected with
// ErrTxGasLimitBlockOverflow without being executed; one that fails
// pre-execution validation is rejected with that error instead. Both leave
// the builder open for further additions. A transaction that reverts or
// halts during execution is included with a failed receipt.
func (b *Builder) AddTransaction(tx *types.Transaction) error {
	if b.closed {
		return ErrBuilderClosed
	}
	if tx.Gas() > b.gasPool.Gas() {
		return ErrTxGasLimitBlockOverflow
	}

	txCtx := vmTxContextFromTx(tx)
	interp := b.newInterp(b.blockCtx, txCtx, b.db, b.rules, b.config.ChainID)

	receipt, result, err := RunTx(b.db, interp, tx, TxRunnerContext{
		Block:             b.header,
		Rules:             b.rules,
		ChainID:           b.config.ChainID,
		CumulativeGasUsed: b.cumulative,
		GetHash:           b.blockCtx.GetHash,
	})
	if err != nil {
		return err
	}
	if err := b.gasPool.SubGas(receipt.GasUsed); err != nil {
		return ErrTxGasLimitBlockOverflow
	}

	b.cumulative = receipt.CumulativeGasUsed
	b.included = append(b.included, tx)
	b.receipts = append(b.receipts, receipt)
	b.results = append(b.results, result)
	return nil
}

// Build finalizes the block: applies withdrawals, derives gas-used, bloom
// and state root, and seals the header. Build is terminal; subsequent
// calls to AddTransaction, Build or Revert return ErrBuilderClosed.
func (b *Builder) Build() (*BuiltBlock, error) {
	if b.closed {
		return nil, ErrBuilderClosed
	}
	b.closed = true

	for _, w := range b.params.Withdrawals {
		amountWei := new(big.Int).Mul(new(big.Int).SetUint64(w.Amount), big.NewInt(1_000_000_000))
		b.db.AddBalance(w.Address, amountWei)
	}
	b.db.FinalizePreState()

	b.header.GasUsed = b.cumulative
	var bloom types.Bloom
	for _, r := range b.receipts {
		bloom.Merge(r.Bloom)
	}
	b.header.Bloom = bloom

	root, err := b.db.Commit()
	if err != nil {
		return nil, fmt.Errorf("state commit: %w", err)
	}
	b.header.Root = root

	if len(b.params.Withdrawals) > 0 {
		wroot := withdrawalsHash(b.params.Withdrawals)
		b.header.WithdrawalsHash = &wroot
	}

	block := types.NewBlock(b.header, &types.Body{Transactions: b.included, Withdrawals: b.params.Withdrawals})
	return &BuiltBlock{Block: block, Receipts: b.receipts, Results: b.results, Skipped: b.skipped}, nil
}

// Revert discards every effect AddTransaction had on the builder's state,
// rolling it back to the snapshot taken at NewBuilder, and closes the
// builder. Use this to abandon a build in progress rather than sealing it.
func (b *Builder) Revert() error {
	if b.closed {
		return ErrBuilderClosed
	}
	b.closed = true
	return b.db.RevertToSnapshot(b.snapshot)
}

// Build is a convenience wrapper around the incremental AddTransaction/
// Build session for callers that already have every candidate in hand:
// candidates are tried in the given order and anything that doesn't fit
// or fails is recorded in the result's Skipped list along with why,
// rather than aborting the whole build. Callers that want fee-priority
// ordering sort candidates themselves before calling this.
func Build(config *ChainConfig, newInterp NewInterpreterFunc, db state.StateDB, params BuilderParams, candidates []*types.Transaction) (*BuiltBlock, error) {
	b, err := NewBuilder(config, newInterp, db, params)
	if err != nil {
		return nil, err
	}

	for _, tx := range candidates {
		if err := b.AddTransaction(tx); err != nil {
			b.skipped = append(b.skipped, SkippedTx{Tx: tx, Reason: err})
		}
	}

	return b.Build()
}

func vmBlockContextFromHeader(h *types.Header) vm.BlockContext {
	return vm.BlockContext{
		GetHash:     func(uint64) types.Hash { return types.Hash{} },
		Coinbase:    h.Coinbase,
		BlockNumber: h.Number,
		Time:        h.Time,
		GasLimit:    h.GasLimit,
		BaseFee:     h.BaseFee,
	}
}

func vmTxContextFromTx(tx *types.Transaction) vm.TxContext {
	return vm.TxContext{Origin: derefOrZero(tx.Sender()), GasPrice: tx.GasPrice()}
}

// withdrawalsHash folds a block's withdrawals into a single hash for the
// header's WithdrawalsHash field. Not a real Merkle root (see DESIGN.md's
// note on the state-root simplification for the same rationale); this is
// a deterministic placeholder sufficient for equality checks within this
// engine.
func withdrawalsHash(ws []*types.Withdrawal) types.Hash {
	var buf []byte
	for _, w := range ws {
		buf = appendU64(buf, w.Index)
		buf = appendU64(buf, w.Validator)
		buf = append(buf, w.Address.Bytes()...)
		buf = appendU64(buf, w.Amount)
	}
	return types.Hash(crypto.Keccak256Hash(buf))
}

func appendU64(buf []byte, v uint64) []byte {
	var b [8]byte
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return append(buf, b[:]...)
}
