package core

import (
	"errors"
	"fmt"
	"math/big"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ethrun/ethrun/core/state"
	"github.com/ethrun/ethrun/core/types"
	"github.com/ethrun/ethrun/core/vm"
)

// Errors from engine construction and the EngineBusy guard.
var (
	ErrNilChainConfig = errors.New("core: engine requires a non-nil chain config")
	ErrNilGenesis     = errors.New("core: engine requires a genesis specification")
	ErrEngineBusy     = errors.New("core: engine is already executing a block or transaction")
)

// Option configures an Engine at construction time.
type Option func(*engineOptions)

type engineOptions struct {
	store              BlockStore
	newInterp          NewInterpreterFunc
	metricsRegisterer  prometheus.Registerer
	eventBufferSize    int
	activatePrecompiles bool
}

// WithBlockStore supplies a durable BlockStore; defaults to an in-memory
// one if omitted.
func WithBlockStore(store BlockStore) Option {
	return func(o *engineOptions) { o.store = store }
}

// WithInterpreter overrides the Interpreter constructor used for every
// block/transaction, letting a caller plug in an alternative
// implementation behind the same narrow contract.
func WithInterpreter(newInterp NewInterpreterFunc) Option {
	return func(o *engineOptions) { o.newInterp = newInterp }
}

// WithMetrics registers the engine's Recorder collectors against reg
// instead of discarding them.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *engineOptions) { o.metricsRegisterer = reg }
}

// WithEventBufferSize sets the per-subscription channel buffer on the
// engine's EventHub.
func WithEventBufferSize(n int) Option {
	return func(o *engineOptions) { o.eventBufferSize = n }
}

// WithPrecompilesActivated pre-warms the well-known precompile address
// range (0x01-0x13) with a non-empty account (balance=1, per the
// protocol's precompile-priming convention) at genesis so Empty()
// reports them as non-empty even before they are ever called.
func WithPrecompilesActivated() Option {
	return func(o *engineOptions) { o.activatePrecompiles = true }
}

// Engine is the outermost shell: owns the chain
// driver, genesis-derived state, the event hub and metrics recorder, and
// serializes block/transaction execution with a non-blocking busy guard
// so two callers can never execute against the same state concurrently.
type Engine struct {
	config  *ChainConfig
	chain   *BlockChain
	events  *EventHub
	metrics Recorder

	newInterp NewInterpreterFunc
	// busy serializes block/transaction execution against this Engine's
	// own chain. Copy() gives each replica its own guard, since each
	// replica also gets its own chain and state to serialize access to.
	busy *atomic.Bool
}

// NewEngine constructs and initializes an Engine: validates options,
// materializes genesis state, primes precompiles if requested, and
// returns a ready-to-use shell. Construction is idempotent in the sense
// that calling it twice with equivalent inputs yields chains with
// identical genesis state roots.
func NewEngine(config *ChainConfig, genesis *Genesis, opts ...Option) (*Engine, error) {
	if config == nil {
		return nil, ErrNilChainConfig
	}
	if genesis == nil {
		return nil, ErrNilGenesis
	}

	o := &engineOptions{eventBufferSize: 64}
	for _, opt := range opts {
		opt(o)
	}
	if o.store == nil {
		o.store = NewMemoryBlockStore()
	}
	if o.newInterp == nil {
		o.newInterp = DefaultNewInterpreter
	}

	db := state.NewMemoryStateDB()
	if o.activatePrecompiles {
		primePrecompiles(db)
	}
	genesisBlock := genesis.SetupGenesisBlock(db)

	chain, err := NewBlockChain(config, o.store, genesisBlock, db)
	if err != nil {
		return nil, fmt.Errorf("constructing chain: %w", err)
	}
	chain.newInterp = o.newInterp

	var recorder Recorder = noopRecorder{}
	if o.metricsRegisterer != nil {
		recorder = NewMetrics(o.metricsRegisterer)
	}

	return &Engine{
		config:    config,
		chain:     chain,
		events:    NewEventHub(o.eventBufferSize),
		metrics:   recorder,
		newInterp: o.newInterp,
		busy:      new(atomic.Bool),
	}, nil
}

// primePrecompiles marks addresses 0x01-0x13 as non-empty accounts with a
// nominal balance of 1, the convention used to keep them from being
// swept by the EIP-161 empty-account cleanup rule.
func primePrecompiles(db state.StateDB) {
	for _, addr := range vm.PrecompileAddresses() {
		db.CreateAccount(addr)
		db.AddBalance(addr, bigOne())
	}
}

// Events returns the engine's event hub for subscribing to block/tx
// lifecycle notifications.
func (e *Engine) Events() *EventHub { return e.events }

// Config returns the engine's chain configuration.
func (e *Engine) Config() *ChainConfig { return e.config }

// CurrentBlock returns the chain's current head.
func (e *Engine) CurrentBlock() *types.Block { return e.chain.CurrentBlock() }

// InsertBlock runs block against a fresh copy of the state rooted at the
// chain's current head and, on success, advances the head. It returns
// ErrEngineBusy immediately (never blocking) if another Insert/Build call
// is already in flight.
func (e *Engine) InsertBlock(block *types.Block) (*BlockRunResult, error) {
	if !e.busy.CompareAndSwap(false, true) {
		e.metrics.EngineBusyRejected()
		return nil, ErrEngineBusy
	}
	defer e.busy.Store(false)

	result, err := e.chain.InsertBlock(block)
	if err != nil {
		e.events.PublishAsync(EventEngineError, err, "")
		return nil, err
	}

	correlation := newCorrelationID()
	e.metrics.BlockInserted(result.GasUsed, len(result.Receipts))
	for i, r := range result.Receipts {
		success := r.Status == types.ReceiptStatusSuccessful
		e.metrics.TxExecuted(success, r.GasUsed)
		e.events.PublishAsync(EventTxExecuted, result.Results[i], correlation)
	}
	e.events.PublishAsync(EventBlockInserted, block, correlation)
	e.events.PublishAsync(EventChainHead, block, correlation)
	return result, nil
}

// Copy returns a new Engine bound to a cloned chain, block store and
// state, rooted at the same current head and state root as e but
// independently mutable from it: inserting or building against the copy
// never affects e, and vice versa. The copy gets its own busy guard and
// event hub, since those serialize and narrate execution against its own
// chain, not e's. The chain parameters (config) and metrics recorder are
// shared, matching how multiple engines over independent state stores
// still report into one metrics registry.
func (e *Engine) Copy() *Engine {
	return &Engine{
		config:    e.config,
		chain:     e.chain.Copy(),
		events:    NewEventHub(e.events.bufferSize),
		metrics:   e.metrics,
		newInterp: e.newInterp,
		busy:      new(atomic.Bool),
	}
}

// State returns a copy of the chain's current state.
func (e *Engine) State() state.StateDB { return e.chain.State() }

// BuildBlock assembles a candidate next block on top of the chain's
// current head via the block builder, without inserting it; the caller
// decides whether to hand the sealed block to InsertBlock.
func (e *Engine) BuildBlock(params BuilderParams, candidates []*types.Transaction) (*BuiltBlock, error) {
	if !e.busy.CompareAndSwap(false, true) {
		e.metrics.EngineBusyRejected()
		return nil, ErrEngineBusy
	}
	defer e.busy.Store(false)

	if params.ParentHash.IsZero() {
		params.ParentHash = e.chain.CurrentBlock().Hash()
	}
	return Build(e.config, e.newInterp, e.chain.State(), params, candidates)
}

func bigOne() *big.Int { return big.NewInt(1) }
