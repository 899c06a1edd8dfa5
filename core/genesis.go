package core

import (
	"math/big"

	"github.com/ethrun/ethrun/core/state"
	"github.com/ethrun/ethrun/core/types"
)

// GenesisAccount is one pre-funded account in the genesis allocation.
type GenesisAccount struct {
	Balance *big.Int
	Code    []byte
	Nonce   uint64
	Storage map[types.Hash]types.Hash
}

// GenesisAlloc maps addresses to their genesis allocation.
type GenesisAlloc map[types.Address]GenesisAccount

// Genesis specifies the header fields and pre-funded accounts of a chain's
// first block. Amendment-gated header fields are driven by a resolved
// vm.ForkRules rather than per-EIP timestamp fields.
type Genesis struct {
	Config     *ChainConfig
	Nonce      uint64
	Timestamp  uint64
	ExtraData  []byte
	GasLimit   uint64
	Difficulty *big.Int
	MixHash    types.Hash
	Coinbase   types.Address
	Alloc      GenesisAlloc

	Number        uint64
	ParentHash    types.Hash
	BaseFee       *big.Int
	ExcessBlobGas *uint64
	BlobGasUsed   *uint64
}

// ToBlock assembles the genesis header/body, gating optional fields on the
// amendment set resolved for block 0 under Config.
func (g *Genesis) ToBlock() *types.Block {
	cfg := g.Config
	if cfg == nil {
		cfg = TestConfig
	}
	_, rules, err := cfg.Resolve(g.Number, nil)
	if err != nil {
		// A genesis whose own configuration cannot resolve a rule-set at
		// block 0 is a caller error; fall back to the zero-value rule set
		// (Frontier-equivalent) rather than panicking.
		rules.Tag = string(TagFrontier)
	}

	head := &types.Header{
		ParentHash:  g.ParentHash,
		UncleHash:   types.EmptyUncleHash,
		Coinbase:    g.Coinbase,
		Root:        types.EmptyRootHash,
		TxHash:      types.EmptyRootHash,
		ReceiptHash: types.EmptyRootHash,
		Difficulty:  g.Difficulty,
		Number:      new(big.Int).SetUint64(g.Number),
		GasLimit:    g.GasLimit,
		Time:        g.Timestamp,
		MixDigest:   g.MixHash,
		Nonce:       types.EncodeNonce(g.Nonce),
	}
	if len(g.ExtraData) > 0 {
		head.Extra = append([]byte(nil), g.ExtraData...)
	}
	if head.Difficulty == nil {
		head.Difficulty = new(big.Int)
	}

	if g.BaseFee != nil {
		head.BaseFee = new(big.Int).Set(g.BaseFee)
	} else if rules.IsLondon {
		head.BaseFee = big.NewInt(1_000_000_000)
	}

	if rules.IsShanghai {
		root := types.EmptyRootHash
		head.WithdrawalsHash = &root
	}

	if rules.IsCancun {
		ebg := zeroOr(g.ExcessBlobGas)
		bgu := zeroOr(g.BlobGasUsed)
		head.ExcessBlobGas = &ebg
		head.BlobGasUsed = &bgu
		root := types.EmptyRootHash
		head.ParentBeaconRoot = &root
	}

	if rules.IsPrague {
		root := types.EmptyRootHash
		head.RequestsHash = &root
	}

	if rules.IsGlamsterdan {
		zero := uint64(0)
		head.CalldataGasUsed = &zero
		head.CalldataExcessGas = &zero
	}

	return types.NewBlock(head, nil)
}

func zeroOr(p *uint64) uint64 {
	if p == nil {
		return 0
	}
	return *p
}

// SetupGenesisBlock applies the genesis allocation to db and returns the
// genesis block with its state root set from the resulting state.
func (g *Genesis) SetupGenesisBlock(db state.StateDB) *types.Block {
	for addr, account := range g.Alloc {
		db.CreateAccount(addr)
		if account.Balance != nil {
			db.AddBalance(addr, account.Balance)
		}
		if account.Nonce > 0 {
			db.SetNonce(addr, account.Nonce)
		}
		if len(account.Code) > 0 {
			db.SetCode(addr, account.Code)
		}
		for key, val := range account.Storage {
			db.SetState(addr, key, val)
		}
	}
	db.FinalizePreState()

	root, err := db.Commit()
	if err != nil {
		root = db.GetRoot()
	}

	block := g.ToBlock()
	header := block.Header()
	header.Root = root
	return types.NewBlock(header, block.Body())
}

// DefaultGenesisBlock returns a mainnet-shaped genesis specification with
// an empty allocation, for tests. The CLI's default chain uses
// DefaultTestGenesisBlock instead.
func DefaultGenesisBlock() *Genesis {
	return &Genesis{
		Config:     MainnetConfig,
		Nonce:      66,
		GasLimit:   30_000_000,
		Difficulty: big.NewInt(17_179_869_184),
		Alloc:      GenesisAlloc{},
	}
}

// DefaultTestGenesisBlock returns a genesis rooted at TestConfig (every
// amendment active from block zero), convenient for unit tests.
func DefaultTestGenesisBlock(alloc GenesisAlloc) *Genesis {
	if alloc == nil {
		alloc = GenesisAlloc{}
	}
	return &Genesis{
		Config:     TestConfig,
		GasLimit:   30_000_000,
		Difficulty: big.NewInt(0),
		Timestamp:  0,
		Alloc:      alloc,
	}
}
