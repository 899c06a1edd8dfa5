package types

// AccessTuple is a single entry of an EIP-2930-style access list: an
// address together with the storage keys the transaction declares it
// will touch.
type AccessTuple struct {
	Address     Address
	StorageKeys []Hash
}

// AccessList is the ordered list of access tuples carried by access-list
// and fee-market transactions.
type AccessList []AccessTuple

// StorageKeys returns the total number of storage keys across all tuples,
// used by intrinsic gas accounting.
func (al AccessList) StorageKeys() int {
	n := 0
	for _, t := range al {
		n += len(t.StorageKeys)
	}
	return n
}

// Authorization is an EIP-7702-style authorization tuple: a signed
// delegation from an EOA to a piece of code. Carried by fee-market
// transactions only; the interpreter is responsible for applying it.
type Authorization struct {
	ChainID uint64
	Address Address
	Nonce   uint64
	V       uint8
	R, S    Hash
}
