// Package types defines the data model shared by the execution engine:
// accounts, transactions, blocks, receipts and the small fixed-size
// byte-array types used throughout.
package types

import (
	"encoding/hex"
	"math/big"
)

const (
	HashLength    = 32
	AddressLength = 20
	BloomLength   = 256
	NonceLength   = 8
)

// Hash represents a 32-byte Keccak256 hash.
type Hash [HashLength]byte

func BytesToHash(b []byte) Hash {
	var h Hash
	if len(b) > HashLength {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
	return h
}

func HexToHash(s string) Hash { return BytesToHash(fromHex(s)) }

func (h Hash) Bytes() []byte { return h[:] }
func (h Hash) Hex() string   { return "0x" + hex.EncodeToString(h[:]) }
func (h Hash) String() string { return h.Hex() }
func (h *Hash) SetBytes(b []byte) {
	if len(b) > HashLength {
		b = b[len(b)-HashLength:]
	}
	for i := range h {
		h[i] = 0
	}
	copy(h[HashLength-len(b):], b)
}
func (h Hash) IsZero() bool { return h == Hash{} }

// Address represents a 20-byte account address.
type Address [AddressLength]byte

func BytesToAddress(b []byte) Address {
	var a Address
	if len(b) > AddressLength {
		b = b[len(b)-AddressLength:]
	}
	copy(a[AddressLength-len(b):], b)
	return a
}

func HexToAddress(s string) Address { return BytesToAddress(fromHex(s)) }

func (a Address) Bytes() []byte   { return a[:] }
func (a Address) Hex() string     { return "0x" + hex.EncodeToString(a[:]) }
func (a Address) String() string  { return a.Hex() }
func (a Address) IsZero() bool    { return a == Address{} }

// Bloom represents a 2048-bit log bloom filter.
type Bloom [BloomLength]byte

func (b Bloom) Bytes() []byte  { return b[:] }
func (b Bloom) Hex() string    { return "0x" + hex.EncodeToString(b[:]) }

// BlockNonce is the 8-byte nonce field of a block header.
type BlockNonce [NonceLength]byte

func EncodeNonce(i uint64) BlockNonce {
	var n BlockNonce
	for idx := 7; idx >= 0; idx-- {
		n[idx] = byte(i)
		i >>= 8
	}
	return n
}

func (n BlockNonce) Uint64() uint64 {
	var v uint64
	for _, b := range n {
		v = v<<8 | uint64(b)
	}
	return v
}

// Account is the consensus-relevant account record: nonce, balance, and
// the hashes of its code and storage trie root.
type Account struct {
	Nonce    uint64
	Balance  *big.Int
	Root     Hash
	CodeHash Hash
}

func NewAccount() Account {
	return Account{Balance: new(big.Int), Root: EmptyRootHash, CodeHash: EmptyCodeHash}
}

// IsEmpty reports whether the account meets the protocol's empty-account
// definition: zero nonce, zero balance, and no code.
func (a Account) IsEmpty() bool {
	return a.Nonce == 0 && (a.Balance == nil || a.Balance.Sign() == 0) && a.CodeHash == EmptyCodeHash
}

// Well-known fixed hashes. Values match the canonical Ethereum constants:
// Keccak256(RLP("")) (empty trie root), Keccak256(nil) (empty code) and
// Keccak256(RLP([])) (empty uncle list) respectively.
var (
	EmptyRootHash  = HexToHash("0x56e81f171bcc55a6ff8345e692c0f86e5b48e01b996cadc001622fb5e363b421")
	EmptyCodeHash  = HexToHash("0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470")
	EmptyUncleHash = HexToHash("0x1dcc4de8dec75d7aab85b567b6ccd41ad312451b948a7413f0a142fd40d49347")
)

func fromHex(s string) []byte {
	if has0xPrefix(s) {
		s = s[2:]
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil
	}
	return b
}

func has0xPrefix(s string) bool {
	return len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}
