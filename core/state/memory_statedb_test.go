package state

import (
	"math/big"
	"testing"

	"github.com/ethrun/ethrun/core/types"
)

var (
	addrA = types.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	addrB = types.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
)

func TestBalanceAddSubRoundTrips(t *testing.T) {
	db := NewMemoryStateDB()
	db.CreateAccount(addrA)
	db.AddBalance(addrA, big.NewInt(100))
	db.SubBalance(addrA, big.NewInt(40))

	if got := db.GetBalance(addrA); got.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("balance = %s, want 60", got)
	}
}

func TestRepeatedGetBalanceNeverServesStaleCachedValue(t *testing.T) {
	db := NewMemoryStateDB()
	db.CreateAccount(addrA)
	db.AddBalance(addrA, big.NewInt(100))

	// first read populates the account cache.
	if got := db.GetBalance(addrA); got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("balance = %s, want 100", got)
	}
	db.SubBalance(addrA, big.NewInt(30))

	// the write must invalidate the cache entry, so this read reflects
	// the subtraction rather than the value cached above.
	if got := db.GetBalance(addrA); got.Cmp(big.NewInt(70)) != 0 {
		t.Fatalf("balance after write = %s, want 70 (cache must not serve stale data)", got)
	}
	if got := db.GetNonce(addrA); got != 0 {
		t.Fatalf("nonce = %d, want 0", got)
	}
	if got := db.GetCodeHash(addrA); got != types.EmptyCodeHash {
		t.Fatalf("codeHash = %s, want EmptyCodeHash", got)
	}
}

func TestGetBalanceOfUnknownAccountIsZeroNotNil(t *testing.T) {
	db := NewMemoryStateDB()
	if got := db.GetBalance(addrA); got == nil || got.Sign() != 0 {
		t.Fatalf("expected a non-nil zero balance, got %v", got)
	}
}

func TestRevertToSnapshotUndoesBalanceAndNonceChanges(t *testing.T) {
	db := NewMemoryStateDB()
	db.CreateAccount(addrA)
	db.AddBalance(addrA, big.NewInt(1000))
	db.SetNonce(addrA, 1)

	snap := db.Snapshot()
	db.AddBalance(addrA, big.NewInt(500))
	db.SetNonce(addrA, 2)

	if err := db.RevertToSnapshot(snap); err != nil {
		t.Fatalf("RevertToSnapshot: %v", err)
	}

	if got := db.GetBalance(addrA); got.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("balance after revert = %s, want 1000", got)
	}
	if got := db.GetNonce(addrA); got != 1 {
		t.Fatalf("nonce after revert = %d, want 1", got)
	}
}

func TestCommitSnapshotDoesNotUndoChanges(t *testing.T) {
	db := NewMemoryStateDB()
	db.CreateAccount(addrA)
	snap := db.Snapshot()
	db.AddBalance(addrA, big.NewInt(50))
	db.CommitSnapshot(snap)

	if got := db.GetBalance(addrA); got.Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("balance = %s, want 50 (CommitSnapshot must not revert)", got)
	}
}

func TestSetStateThenRevertRestoresPriorValue(t *testing.T) {
	db := NewMemoryStateDB()
	db.CreateAccount(addrA)
	key := types.Hash{1}
	val1 := types.Hash{0xaa}
	val2 := types.Hash{0xbb}

	db.SetState(addrA, key, val1)
	snap := db.Snapshot()
	db.SetState(addrA, key, val2)
	if got := db.GetState(addrA, key); got != val2 {
		t.Fatalf("GetState = %x, want %x", got, val2)
	}
	if err := db.RevertToSnapshot(snap); err != nil {
		t.Fatalf("RevertToSnapshot: %v", err)
	}
	if got := db.GetState(addrA, key); got != val1 {
		t.Fatalf("GetState after revert = %x, want %x", got, val1)
	}
}

func TestFinalizePreStateMovesValuesIntoCommittedStorage(t *testing.T) {
	db := NewMemoryStateDB()
	db.CreateAccount(addrA)
	key := types.Hash{2}
	val := types.Hash{0xcc}
	db.SetState(addrA, key, val)

	if got := db.GetCommittedState(addrA, key); got != (types.Hash{}) {
		t.Fatalf("GetCommittedState before finalize = %x, want zero", got)
	}
	db.FinalizePreState()
	if got := db.GetCommittedState(addrA, key); got != val {
		t.Fatalf("GetCommittedState after finalize = %x, want %x", got, val)
	}
}

func TestSelfDestructRemovesAccountOnCommit(t *testing.T) {
	db := NewMemoryStateDB()
	db.CreateAccount(addrA)
	db.AddBalance(addrA, big.NewInt(1))
	db.SelfDestruct(addrA)

	if !db.HasSelfDestructed(addrA) {
		t.Fatal("expected HasSelfDestructed to report true")
	}
	if !db.Exist(addrA) {
		t.Fatal("account must still Exist() until Commit")
	}
	if _, err := db.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if db.Exist(addrA) {
		t.Fatal("expected the self-destructed account to be gone after Commit")
	}
}

func TestCopyIsIndependentOfTheOriginal(t *testing.T) {
	db := NewMemoryStateDB()
	db.CreateAccount(addrA)
	db.AddBalance(addrA, big.NewInt(100))

	cp := db.Copy()
	cp.AddBalance(addrA, big.NewInt(50))

	if got := db.GetBalance(addrA); got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("original balance mutated by copy: got %s, want 100", got)
	}
	if got := cp.GetBalance(addrA); got.Cmp(big.NewInt(150)) != 0 {
		t.Fatalf("copy balance = %s, want 150", got)
	}
}

func TestCommitIsDeterministicAcrossEquivalentStates(t *testing.T) {
	build := func() StateDB {
		db := NewMemoryStateDB()
		db.CreateAccount(addrA)
		db.AddBalance(addrA, big.NewInt(7))
		db.SetState(addrA, types.Hash{1}, types.Hash{2})
		db.CreateAccount(addrB)
		db.SetNonce(addrB, 4)
		return db
	}

	r1, err := build().Commit()
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	r2, err := build().Commit()
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if r1 != r2 {
		t.Fatalf("two equivalently-built states produced different roots: %x vs %x", r1, r2)
	}
}

func TestAddAddressToAccessListReportsFreshnessOnce(t *testing.T) {
	db := NewMemoryStateDB()
	if !db.AddAddressToAccessList(addrA) {
		t.Fatal("expected first AddAddressToAccessList to report newly-added")
	}
	if db.AddAddressToAccessList(addrA) {
		t.Fatal("expected second AddAddressToAccessList to report already-present")
	}
	if !db.AddressInAccessList(addrA) {
		t.Fatal("expected AddressInAccessList to report true")
	}
}

func TestTransientStorageIsClearedButDurableStorageIsNot(t *testing.T) {
	db := NewMemoryStateDB()
	db.CreateAccount(addrA)
	db.SetState(addrA, types.Hash{1}, types.Hash{0xff})
	db.SetTransientState(addrA, types.Hash{2}, types.Hash{0xee})

	db.ClearTransientStorage()

	if got := db.GetTransientState(addrA, types.Hash{2}); got != (types.Hash{}) {
		t.Fatalf("transient state survived ClearTransientStorage: %x", got)
	}
	if got := db.GetState(addrA, types.Hash{1}); got != (types.Hash{0xff}) {
		t.Fatal("durable storage must survive ClearTransientStorage")
	}
}

func TestTouchedAddressesTracksEveryWriteRegardlessOfRevert(t *testing.T) {
	db := NewMemoryStateDB()
	db.SetTxContext(types.Hash{1}, 0)

	db.CreateAccount(addrA)
	snap := db.Snapshot()
	db.CreateAccount(addrB)
	if err := db.RevertToSnapshot(snap); err != nil {
		t.Fatalf("RevertToSnapshot: %v", err)
	}

	touched := map[types.Address]bool{}
	for _, a := range db.TouchedAddresses() {
		touched[a] = true
	}
	if !touched[addrA] {
		t.Fatal("expected addrA to be touched")
	}
	if !touched[addrB] {
		t.Fatal("expected addrB to still be touched even though its creation was reverted")
	}
}

func TestTouchedAddressesResetBySetTxContext(t *testing.T) {
	db := NewMemoryStateDB()
	db.SetTxContext(types.Hash{1}, 0)
	db.CreateAccount(addrA)

	db.SetTxContext(types.Hash{2}, 1)

	if len(db.TouchedAddresses()) != 0 {
		t.Fatalf("expected an empty touched set for the new transaction, got %v", db.TouchedAddresses())
	}
}
