package types

import (
	"encoding/binary"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"
)

// computeTxHash derives a transaction's identifying hash from its
// envelope fields. It is not a full RLP encoder; it hashes a deterministic
// concatenation of the fields that determine a transaction's identity,
// which is sufficient for this engine's own root/cache-key purposes.
func computeTxHash(tx *Transaction) Hash {
	buf := []byte{tx.Type()}
	buf = appendUint64(buf, tx.Nonce())
	buf = appendBigInt(buf, tx.GasPrice())
	buf = appendBigInt(buf, tx.GasFeeCap())
	buf = appendBigInt(buf, tx.GasTipCap())
	buf = appendUint64(buf, tx.Gas())
	if to := tx.To(); to != nil {
		buf = append(buf, to.Bytes()...)
	}
	buf = appendBigInt(buf, tx.Value())
	buf = append(buf, tx.Data()...)
	for _, at := range tx.AccessList() {
		buf = append(buf, at.Address.Bytes()...)
		for _, k := range at.StorageKeys {
			buf = append(buf, k.Bytes()...)
		}
	}
	return Hash(crypto.Keccak256Hash(buf))
}

func appendUint64(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}

func appendBigInt(buf []byte, v *big.Int) []byte {
	if v == nil {
		return append(buf, 0)
	}
	return append(buf, v.Bytes()...)
}
