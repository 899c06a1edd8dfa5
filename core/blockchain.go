package core

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	ethlog "github.com/ethereum/go-ethereum/log"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ethrun/ethrun/core/state"
	"github.com/ethrun/ethrun/core/types"
)

// Errors from chain insertion.
var (
	ErrKnownBlock      = errors.New("core: block already present in the chain")
	ErrSideChainBlock  = errors.New("core: parent of block is not the current head")
	ErrBlockStoreEmpty = errors.New("core: chain has no genesis block")
)

// blockCacheSize bounds the in-memory LRU of recently inserted blocks;
// older blocks fall back to the block store lookup.
const blockCacheSize = 256

// BlockStore persists headers/blocks/receipts; WriteBlock should be
// durable and idempotent. An in-memory map is also acceptable for tests.
// Copy must return a store whose subsequent writes are invisible to the
// original and vice versa, so BlockChain.Copy() can hand out an
// independently mutable replica.
type BlockStore interface {
	WriteBlock(block *types.Block, receipts []*types.Receipt) error
	GetBlock(hash types.Hash, number uint64) (*types.Block, bool)
	GetHeader(hash types.Hash, number uint64) (*types.Header, bool)
	GetReceipts(hash types.Hash) ([]*types.Receipt, bool)
	Copy() BlockStore
}

// MemoryBlockStore is a BlockStore backed by plain maps, suitable for
// tests and the CLI's ephemeral mode.
type MemoryBlockStore struct {
	mu       sync.RWMutex
	blocks   map[types.Hash]*types.Block
	headers  map[types.Hash]*types.Header
	receipts map[types.Hash][]*types.Receipt
}

func NewMemoryBlockStore() *MemoryBlockStore {
	return &MemoryBlockStore{
		blocks:   make(map[types.Hash]*types.Block),
		headers:  make(map[types.Hash]*types.Header),
		receipts: make(map[types.Hash][]*types.Receipt),
	}
}

func (s *MemoryBlockStore) WriteBlock(block *types.Block, receipts []*types.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := block.Hash()
	s.blocks[h] = block
	s.headers[h] = block.Header()
	s.receipts[h] = receipts
	return nil
}

func (s *MemoryBlockStore) GetBlock(hash types.Hash, _ uint64) (*types.Block, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blocks[hash]
	return b, ok
}

func (s *MemoryBlockStore) GetHeader(hash types.Hash, _ uint64) (*types.Header, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.headers[hash]
	return h, ok
}

func (s *MemoryBlockStore) GetReceipts(hash types.Hash) ([]*types.Receipt, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.receipts[hash]
	return r, ok
}

// Copy returns a store with the same contents whose writes do not affect
// s. Blocks, headers and receipts are themselves treated as immutable
// once written, so only the maps need to be duplicated.
func (s *MemoryBlockStore) Copy() BlockStore {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := &MemoryBlockStore{
		blocks:   make(map[types.Hash]*types.Block, len(s.blocks)),
		headers:  make(map[types.Hash]*types.Header, len(s.headers)),
		receipts: make(map[types.Hash][]*types.Receipt, len(s.receipts)),
	}
	for k, v := range s.blocks {
		cp.blocks[k] = v
	}
	for k, v := range s.headers {
		cp.headers[k] = v
	}
	for k, v := range s.receipts {
		cp.receipts[k] = v
	}
	return cp
}

// BlockChain is the blockchain driver: the sequence of
// canonical blocks, their cumulative total difficulty, and the current
// head, replaying each inserted block through the block runner against a
// fresh state snapshot derived from its parent.
//
// Insertion is genesis-then-append-only. Blocks are cached in a bounded LRU
// (golang-lru/v2), backed by a BlockStore for anything evicted.
type BlockChain struct {
	mu sync.RWMutex

	config *ChainConfig
	store  BlockStore
	cache  *lru.Cache[types.Hash, *types.Block]

	genesis *types.Block
	head    *types.Block
	td      map[types.Hash]*big.Int

	// currentState is the state of the chain at head; every InsertBlock
	// runs the candidate block against a Copy() of it, only replacing it
	// with that copy once the block is fully accepted.
	currentState state.StateDB

	newInterp NewInterpreterFunc
}

// NewBlockChain constructs a driver rooted at genesis. genesisState must
// already carry genesis's allocation applied; that materialization is the
// engine shell's job, not this driver's.
func NewBlockChain(config *ChainConfig, store BlockStore, genesis *types.Block, genesisState state.StateDB) (*BlockChain, error) {
	if genesis == nil {
		return nil, ErrBlockStoreEmpty
	}
	cache, err := lru.New[types.Hash, *types.Block](blockCacheSize)
	if err != nil {
		return nil, fmt.Errorf("block cache: %w", err)
	}
	bc := &BlockChain{
		config:        config,
		store:         store,
		cache:         cache,
		genesis:       genesis,
		head:          genesis,
		td:            map[types.Hash]*big.Int{genesis.Hash(): new(big.Int).Set(genesis.Header().Difficulty)},
		currentState:  genesisState,
	}
	bc.newInterp = DefaultNewInterpreter
	bc.cache.Add(genesis.Hash(), genesis)
	if err := store.WriteBlock(genesis, nil); err != nil {
		return nil, fmt.Errorf("writing genesis: %w", err)
	}
	return bc, nil
}

// State returns a copy of the chain's current state, safe for a caller to
// mutate or inspect without affecting the canonical state.
func (bc *BlockChain) State() state.StateDB {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.currentState.Copy()
}

// CurrentBlock returns the chain's current head.
func (bc *BlockChain) CurrentBlock() *types.Block {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.head
}

// GetBlock looks up a block by hash, consulting the LRU cache before the
// backing store.
func (bc *BlockChain) GetBlock(hash types.Hash, number uint64) (*types.Block, bool) {
	if b, ok := bc.cache.Get(hash); ok {
		return b, true
	}
	b, ok := bc.store.GetBlock(hash, number)
	if ok {
		bc.cache.Add(hash, b)
	}
	return b, ok
}

// TotalDifficulty returns the accumulated difficulty at hash, if known.
func (bc *BlockChain) TotalDifficulty(hash types.Hash) (*big.Int, bool) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	td, ok := bc.td[hash]
	return td, ok
}

// InsertBlock validates block extends the current head, replays it via
// the block runner against a copy of the chain's current state, and on
// success advances the head and persists the result. Rejected blocks
// leave the chain and its canonical state untouched.
func (bc *BlockChain) InsertBlock(block *types.Block) (*BlockRunResult, error) {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	if _, ok := bc.GetBlock(block.Hash(), block.Number()); ok {
		return nil, ErrKnownBlock
	}
	if block.ParentHash() != bc.head.Hash() {
		return nil, fmt.Errorf("%w: parent %s, head %s", ErrSideChainBlock, block.ParentHash().Hex(), bc.head.Hash().Hex())
	}

	parentTD := bc.td[bc.head.Hash()]
	candidate := bc.currentState.Copy()
	result, err := RunBlock(candidate, bc.config, block, bc.head.Header(), bc.newInterp)
	if err != nil {
		return nil, fmt.Errorf("running block %d: %w", block.Number(), err)
	}

	if err := bc.store.WriteBlock(block, result.Receipts); err != nil {
		return nil, fmt.Errorf("persisting block %d: %w", block.Number(), err)
	}
	bc.cache.Add(block.Hash(), block)

	newTD := new(big.Int).Add(parentTD, block.Header().Difficulty)
	bc.td[block.Hash()] = newTD
	bc.head = block
	bc.currentState = candidate

	ethlog.Info("chain extended", "number", block.Number(), "hash", block.Hash().Hex(), "td", newTD)
	return result, nil
}

// Copy returns an independently mutable replica rooted at the same
// current head and state: its own block store, cache, total-difficulty
// ledger and state copy, none of which an insert against the original
// (or vice versa) can observe.
func (bc *BlockChain) Copy() *BlockChain {
	bc.mu.RLock()
	defer bc.mu.RUnlock()

	cache, err := lru.New[types.Hash, *types.Block](blockCacheSize)
	if err != nil {
		panic(fmt.Sprintf("core: block cache: %v", err))
	}
	for _, hash := range bc.cache.Keys() {
		if b, ok := bc.cache.Peek(hash); ok {
			cache.Add(hash, b)
		}
	}

	td := make(map[types.Hash]*big.Int, len(bc.td))
	for k, v := range bc.td {
		td[k] = v
	}

	return &BlockChain{
		config:       bc.config,
		store:        bc.store.Copy(),
		cache:        cache,
		genesis:      bc.genesis,
		head:         bc.head,
		td:           td,
		currentState: bc.currentState.Copy(),
		newInterp:    bc.newInterp,
	}
}
