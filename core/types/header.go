package types

import (
	"math/big"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/crypto"
)

// Header carries the consensus-critical block metadata. Fields introduced
// by later amendments are optional pointers, nil when the block's active
// rule-set does not carry them.
type Header struct {
	ParentHash  Hash
	UncleHash   Hash
	Coinbase    Address
	Root        Hash // state root
	TxHash      Hash // transactions root
	ReceiptHash Hash // receipts root
	Bloom       Bloom
	Difficulty  *big.Int
	Number      *big.Int
	GasLimit    uint64
	GasUsed     uint64
	Time        uint64
	Extra       []byte
	MixDigest   Hash
	Nonce       BlockNonce

	// EIP-1559
	BaseFee *big.Int
	// Withdrawals-carrying amendment
	WithdrawalsHash *Hash
	// EIP-4844
	BlobGasUsed   *uint64
	ExcessBlobGas *uint64
	ParentBeaconRoot *Hash
	// Requests-carrying amendment
	RequestsHash *Hash
	// Block-access-list amendment; never populated by this engine (see
	// the grounding ledger for why BAL construction is out of scope).
	BlockAccessListHash *Hash
	// Calldata-gas-metering amendment
	CalldataGasUsed   *uint64
	CalldataExcessGas *uint64

	hash atomic.Pointer[Hash]
}

// Hash returns the header's identifying hash, computed and cached on
// first use via an atomic pointer so concurrent readers never race.
func (h *Header) Hash() Hash {
	if p := h.hash.Load(); p != nil {
		return *p
	}
	computed := h.computeHash()
	h.hash.Store(&computed)
	return computed
}

func (h *Header) computeHash() Hash {
	buf := append([]byte{}, h.ParentHash.Bytes()...)
	buf = append(buf, h.UncleHash.Bytes()...)
	buf = append(buf, h.Coinbase.Bytes()...)
	buf = append(buf, h.Root.Bytes()...)
	buf = append(buf, h.TxHash.Bytes()...)
	buf = append(buf, h.ReceiptHash.Bytes()...)
	buf = append(buf, h.Bloom.Bytes()...)
	if h.Difficulty != nil {
		buf = append(buf, h.Difficulty.Bytes()...)
	}
	if h.Number != nil {
		buf = append(buf, h.Number.Bytes()...)
	}
	buf = appendUint64(buf, h.GasLimit)
	buf = appendUint64(buf, h.GasUsed)
	buf = appendUint64(buf, h.Time)
	buf = append(buf, h.Extra...)
	buf = append(buf, h.MixDigest.Bytes()...)
	buf = append(buf, h.Nonce[:]...)
	if h.BaseFee != nil {
		buf = append(buf, h.BaseFee.Bytes()...)
	}
	if h.WithdrawalsHash != nil {
		buf = append(buf, h.WithdrawalsHash.Bytes()...)
	}
	return Hash(crypto.Keccak256Hash(buf))
}

// Copy returns a deep-enough copy for header mutation during block
// building: the big.Int fields and Extra are cloned, the hash cache is
// reset; the optional pointer fields (WithdrawalsHash, BlobGasUsed, ...)
// are shared with the original.
func (h *Header) Copy() *Header {
	cp := *h
	cp.hash = atomic.Pointer[Hash]{}
	if h.Difficulty != nil {
		cp.Difficulty = new(big.Int).Set(h.Difficulty)
	}
	if h.Number != nil {
		cp.Number = new(big.Int).Set(h.Number)
	}
	if h.BaseFee != nil {
		cp.BaseFee = new(big.Int).Set(h.BaseFee)
	}
	if h.Extra != nil {
		cp.Extra = append([]byte{}, h.Extra...)
	}
	return &cp
}
