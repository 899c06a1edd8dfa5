// Package state implements the engine's state interface:
// account/storage reads and writes, checkpoint/commit/revert, and
// warm/cold access tracking, plus an in-memory reference implementation.
package state

import (
	"math/big"

	"github.com/ethrun/ethrun/core/types"
)

// StateDB is the single canonical state-interface contract consumed by
// both the transaction runner and the interpreter. The teacher pack
// defines this contract twice (once in core/vm, once in core/state) with
// near-identical but not identical method sets; this repository collapses
// that into one interface so there is exactly one source of truth.
type StateDB interface {
	CreateAccount(addr types.Address)

	SubBalance(addr types.Address, amount *big.Int)
	AddBalance(addr types.Address, amount *big.Int)
	GetBalance(addr types.Address) *big.Int

	GetNonce(addr types.Address) uint64
	SetNonce(addr types.Address, nonce uint64)

	GetCode(addr types.Address) []byte
	SetCode(addr types.Address, code []byte)
	GetCodeHash(addr types.Address) types.Hash
	GetCodeSize(addr types.Address) int

	SelfDestruct(addr types.Address)
	HasSelfDestructed(addr types.Address) bool

	GetState(addr types.Address, key types.Hash) types.Hash
	SetState(addr types.Address, key, value types.Hash)
	GetCommittedState(addr types.Address, key types.Hash) types.Hash

	GetTransientState(addr types.Address, key types.Hash) types.Hash
	SetTransientState(addr types.Address, key, value types.Hash)
	ClearTransientStorage()

	Exist(addr types.Address) bool
	Empty(addr types.Address) bool

	Snapshot() int
	RevertToSnapshot(id int) error
	CommitSnapshot(id int)

	AddLog(log types.Log)
	GetLogs() []types.Log

	AddRefund(gas uint64)
	SubRefund(gas uint64)
	GetRefund() uint64

	AddAddressToAccessList(addr types.Address) bool
	AddSlotToAccessList(addr types.Address, slot types.Hash) (addrPresent, slotPresent bool)
	AddressInAccessList(addr types.Address) bool
	SlotInAccessList(addr types.Address, slot types.Hash) (addrPresent, slotPresent bool)

	SetTxContext(txHash types.Hash, txIndex int)
	FinalizePreState()

	// TouchedAddresses returns every address touched (created, or had its
	// balance/nonce/code/storage/self-destruct flag written) since the
	// last SetTxContext call, for EIP-161-style empty-account cleanup.
	TouchedAddresses() []types.Address

	Commit() (types.Hash, error)
	GetRoot() types.Hash

	Copy() StateDB
}
