package state

import (
	"errors"
	"math/big"

	"github.com/ethrun/ethrun/core/types"
)

// Errors surfaced by Journal.RevertTo.
var (
	ErrInvalidSnapshot = errors.New("state: invalid snapshot id")
	ErrSnapshotBehind  = errors.New("state: snapshot id is behind the journal's current position")
)

// JournalEntry is one tagged diff record. Revert restores the pre-image it
// captured at append time.
type JournalEntry interface {
	Revert(db *MemoryStateDB)
}

// Journal is the single checkpoint/diff stack consumed by MemoryStateDB.
// Journal supports one snapshot/commit/revert design: frames hold only
// indices into the flat entry log, not back-pointers, so opening and
// discarding a checkpoint is O(1).
type Journal struct {
	entries   []JournalEntry
	snapshots []int
}

func NewJournal() *Journal {
	return &Journal{}
}

func (j *Journal) Append(entry JournalEntry) {
	j.entries = append(j.entries, entry)
}

// Snapshot opens a new checkpoint frame, returning its id.
func (j *Journal) Snapshot() int {
	id := len(j.snapshots)
	j.snapshots = append(j.snapshots, len(j.entries))
	return id
}

// RevertTo unwinds every entry appended since the given snapshot, in
// reverse order, then discards the snapshot and everything after it.
func (j *Journal) RevertTo(id int, db *MemoryStateDB) error {
	if id < 0 || id >= len(j.snapshots) {
		return ErrInvalidSnapshot
	}
	mark := j.snapshots[id]
	if mark > len(j.entries) {
		return ErrSnapshotBehind
	}
	for i := len(j.entries) - 1; i >= mark; i-- {
		j.entries[i].Revert(db)
	}
	j.entries = j.entries[:mark]
	j.snapshots = j.snapshots[:id]
	return nil
}

// Commit folds the top frame into its parent: the entries since the
// snapshot remain in place (they are now attributed to the parent scope)
// and only the snapshot marker itself is discarded, with no per-entry
// work or allocation.
func (j *Journal) Commit(id int) {
	if id < 0 || id >= len(j.snapshots) {
		return
	}
	j.snapshots = j.snapshots[:id]
}

func (j *Journal) Length() int        { return len(j.entries) }
func (j *Journal) Depth() int         { return len(j.snapshots) }
func (j *Journal) Reset() {
	j.entries = nil
	j.snapshots = nil
}

// --- tagged entry types, one per kind of reversible mutation ---

type createAccountChange struct{ addr types.Address }

func (c createAccountChange) Revert(db *MemoryStateDB) { delete(db.stateObjects, c.addr) }

type balanceChange struct {
	addr types.Address
	prev *big.Int
}

func (c balanceChange) Revert(db *MemoryStateDB) {
	db.getOrNewStateObject(c.addr).account.Balance = c.prev
}

type nonceChange struct {
	addr types.Address
	prev uint64
}

func (c nonceChange) Revert(db *MemoryStateDB) {
	db.getOrNewStateObject(c.addr).account.Nonce = c.prev
}

type codeChange struct {
	addr           types.Address
	prevCode       []byte
	prevCodeHash   types.Hash
}

func (c codeChange) Revert(db *MemoryStateDB) {
	obj := db.getOrNewStateObject(c.addr)
	obj.code = c.prevCode
	obj.account.CodeHash = c.prevCodeHash
}

type storageChange struct {
	addr     types.Address
	key      types.Hash
	prevalue types.Hash
	existed  bool
}

func (c storageChange) Revert(db *MemoryStateDB) {
	obj := db.getOrNewStateObject(c.addr)
	// Restore through the dirty view even when the slot had no dirty entry:
	// FinalizePreState or Commit may have folded the written value into
	// committedStorage since this entry was appended.
	obj.dirtyStorage[c.key] = c.prevalue
}

type transientStorageChange struct {
	addr     types.Address
	key      types.Hash
	prevalue types.Hash
}

func (c transientStorageChange) Revert(db *MemoryStateDB) {
	db.setTransientStateDirect(c.addr, c.key, c.prevalue)
}

type selfDestructChange struct {
	addr   types.Address
	prev   bool
}

func (c selfDestructChange) Revert(db *MemoryStateDB) {
	db.getOrNewStateObject(c.addr).selfDestructed = c.prev
}

type refundChange struct{ prev uint64 }

func (c refundChange) Revert(db *MemoryStateDB) { db.refund = c.prev }

type logChange struct{ txHash types.Hash }

func (c logChange) Revert(db *MemoryStateDB) {
	logs := db.logs[c.txHash]
	if len(logs) > 0 {
		db.logs[c.txHash] = logs[:len(logs)-1]
	}
}

type accessListAddAccountChange struct{ addr types.Address }

func (c accessListAddAccountChange) Revert(db *MemoryStateDB) {
	db.accessList.removeAddress(c.addr)
}

type accessListAddSlotChange struct {
	addr types.Address
	slot types.Hash
}

func (c accessListAddSlotChange) Revert(db *MemoryStateDB) {
	db.accessList.removeSlot(c.addr, c.slot)
}
