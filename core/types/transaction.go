package types

import (
	"errors"
	"math/big"
)

// Transaction type tags, returned by Transaction.Type().
const (
	LegacyTxType     uint8 = 0x00
	AccessListTxType uint8 = 0x01
	DynamicFeeTxType uint8 = 0x02
)

var ErrInvalidTxType = errors.New("types: unrecognized transaction type")

// txData is the envelope-specific payload. Each transaction kind
// implements it; Transaction wraps whichever one it was constructed with.
type txData interface {
	txType() uint8
	chainID() *big.Int
	nonce() uint64
	gasLimit() uint64
	gasPrice() *big.Int
	gasFeeCap() *big.Int
	gasTipCap() *big.Int
	to() *Address
	value() *big.Int
	data() []byte
	accessList() AccessList
	blobHashes() []Hash
	authList() []Authorization
}

// LegacyTx is the original unsigned-envelope transaction: a single gas
// price, no access list.
type LegacyTx struct {
	Nonce    uint64
	GasPrice *big.Int
	Gas      uint64
	To       *Address
	Value    *big.Int
	Data     []byte
}

func (t *LegacyTx) txType() uint8           { return LegacyTxType }
func (t *LegacyTx) chainID() *big.Int       { return nil }
func (t *LegacyTx) nonce() uint64           { return t.Nonce }
func (t *LegacyTx) gasLimit() uint64        { return t.Gas }
func (t *LegacyTx) gasPrice() *big.Int      { return t.GasPrice }
func (t *LegacyTx) gasFeeCap() *big.Int     { return t.GasPrice }
func (t *LegacyTx) gasTipCap() *big.Int     { return t.GasPrice }
func (t *LegacyTx) to() *Address            { return t.To }
func (t *LegacyTx) value() *big.Int         { return t.Value }
func (t *LegacyTx) data() []byte            { return t.Data }
func (t *LegacyTx) accessList() AccessList  { return nil }
func (t *LegacyTx) blobHashes() []Hash      { return nil }
func (t *LegacyTx) authList() []Authorization { return nil }

// AccessListTx is the EIP-2930 envelope: a legacy-priced transaction that
// additionally declares the accounts/slots it will touch.
type AccessListTx struct {
	ChainID    *big.Int
	Nonce      uint64
	GasPrice   *big.Int
	Gas        uint64
	To         *Address
	Value      *big.Int
	Data       []byte
	AccessList AccessList
}

func (t *AccessListTx) txType() uint8             { return AccessListTxType }
func (t *AccessListTx) chainID() *big.Int         { return t.ChainID }
func (t *AccessListTx) nonce() uint64              { return t.Nonce }
func (t *AccessListTx) gasLimit() uint64           { return t.Gas }
func (t *AccessListTx) gasPrice() *big.Int         { return t.GasPrice }
func (t *AccessListTx) gasFeeCap() *big.Int        { return t.GasPrice }
func (t *AccessListTx) gasTipCap() *big.Int        { return t.GasPrice }
func (t *AccessListTx) to() *Address               { return t.To }
func (t *AccessListTx) value() *big.Int            { return t.Value }
func (t *AccessListTx) data() []byte               { return t.Data }
func (t *AccessListTx) accessList() AccessList     { return t.AccessList }
func (t *AccessListTx) blobHashes() []Hash         { return nil }
func (t *AccessListTx) authList() []Authorization  { return nil }

// DynamicFeeTx is the EIP-1559 fee-market envelope: a fee cap and a
// priority-fee (tip) cap instead of a single gas price.
type DynamicFeeTx struct {
	ChainID    *big.Int
	Nonce      uint64
	GasTipCap  *big.Int
	GasFeeCap  *big.Int
	Gas        uint64
	To         *Address
	Value      *big.Int
	Data       []byte
	AccessList AccessList
	AuthList   []Authorization
	BlobHashes []Hash
}

func (t *DynamicFeeTx) txType() uint8            { return DynamicFeeTxType }
func (t *DynamicFeeTx) chainID() *big.Int        { return t.ChainID }
func (t *DynamicFeeTx) nonce() uint64             { return t.Nonce }
func (t *DynamicFeeTx) gasLimit() uint64          { return t.Gas }
func (t *DynamicFeeTx) gasPrice() *big.Int        { return t.GasFeeCap }
func (t *DynamicFeeTx) gasFeeCap() *big.Int       { return t.GasFeeCap }
func (t *DynamicFeeTx) gasTipCap() *big.Int       { return t.GasTipCap }
func (t *DynamicFeeTx) to() *Address              { return t.To }
func (t *DynamicFeeTx) value() *big.Int           { return t.Value }
func (t *DynamicFeeTx) data() []byte              { return t.Data }
func (t *DynamicFeeTx) accessList() AccessList    { return t.AccessList }
func (t *DynamicFeeTx) blobHashes() []Hash        { return t.BlobHashes }
func (t *DynamicFeeTx) authList() []Authorization { return t.AuthList }

// Transaction wraps one of the envelope kinds above plus the signature and
// a cached sender, set once by signature recovery.
type Transaction struct {
	inner  txData
	V, R, S *big.Int
	sender  *Address
	hash    *Hash
}

func NewTx(inner txData) *Transaction { return &Transaction{inner: inner} }

func (tx *Transaction) Type() uint8             { return tx.inner.txType() }
func (tx *Transaction) ChainID() *big.Int       { return tx.inner.chainID() }
func (tx *Transaction) Nonce() uint64           { return tx.inner.nonce() }
func (tx *Transaction) Gas() uint64             { return tx.inner.gasLimit() }
func (tx *Transaction) GasPrice() *big.Int      { return tx.inner.gasPrice() }
func (tx *Transaction) GasFeeCap() *big.Int     { return tx.inner.gasFeeCap() }
func (tx *Transaction) GasTipCap() *big.Int     { return tx.inner.gasTipCap() }
func (tx *Transaction) To() *Address            { return tx.inner.to() }
func (tx *Transaction) Value() *big.Int         { return tx.inner.value() }
func (tx *Transaction) Data() []byte            { return tx.inner.data() }
func (tx *Transaction) AccessList() AccessList  { return tx.inner.accessList() }
func (tx *Transaction) BlobHashes() []Hash      { return tx.inner.blobHashes() }
func (tx *Transaction) AuthorizationList() []Authorization { return tx.inner.authList() }

// Sender returns the cached sender address, or nil if signature recovery
// has not yet been performed for this transaction.
func (tx *Transaction) Sender() *Address { return tx.sender }

// SetSender caches the result of signature recovery so it need not be
// repeated by every later reader of this transaction.
func (tx *Transaction) SetSender(addr Address) { tx.sender = &addr }

// Hash returns the transaction's identifying hash, computing and caching
// it on first use.
func (tx *Transaction) Hash() Hash {
	if tx.hash != nil {
		return *tx.hash
	}
	h := computeTxHash(tx)
	tx.hash = &h
	return h
}

// IsContractCreation reports whether this transaction has no declared
// recipient, i.e. it deploys new code.
func (tx *Transaction) IsContractCreation() bool { return tx.inner.to() == nil }
