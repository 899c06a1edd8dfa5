package state

import (
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethrun/ethrun/core/types"
)

// stateObject is the mutable in-memory record for one account: its
// account fields, its code, and its storage split into the committed
// (pre-transaction) and dirty (written-this-transaction) views so that
// GetCommittedState never needs to re-derive history.
type stateObject struct {
	account types.Account
	code    []byte

	committedStorage map[types.Hash]types.Hash
	dirtyStorage     map[types.Hash]types.Hash

	selfDestructed bool
}

func newStateObject() *stateObject {
	return &stateObject{
		account:          types.NewAccount(),
		committedStorage: make(map[types.Hash]types.Hash),
		dirtyStorage:     make(map[types.Hash]types.Hash),
	}
}

// MemoryStateDB is the reference in-memory implementation of StateDB. It
// is not backed by durable storage; callers that need persistence wrap or
// replace it behind the same interface.
type MemoryStateDB struct {
	stateObjects map[types.Address]*stateObject
	journal      *Journal
	cache        *accountCache

	logs    map[types.Hash][]types.Log
	refund  uint64

	accessList       *accessList
	transientStorage map[types.Address]map[types.Hash]types.Hash

	// touched accumulates every address written to since the last
	// SetTxContext call, regardless of whether the write that touched it
	// was later rolled back by a nested revert: the empty-account cleanup
	// rule cares about addresses the transaction reached, not just the
	// ones whose changes survived.
	touched map[types.Address]struct{}

	txHash  types.Hash
	txIndex int
}

func NewMemoryStateDB() *MemoryStateDB {
	return &MemoryStateDB{
		stateObjects:     make(map[types.Address]*stateObject),
		journal:          NewJournal(),
		cache:            newAccountCache(4 * 1024 * 1024),
		logs:             make(map[types.Hash][]types.Log),
		accessList:       newAccessList(),
		transientStorage: make(map[types.Address]map[types.Hash]types.Hash),
		touched:          make(map[types.Address]struct{}),
	}
}

var _ StateDB = (*MemoryStateDB)(nil)

func (s *MemoryStateDB) getStateObject(addr types.Address) *stateObject {
	return s.stateObjects[addr]
}

func (s *MemoryStateDB) getOrNewStateObject(addr types.Address) *stateObject {
	s.touched[addr] = struct{}{}
	obj := s.stateObjects[addr]
	if obj == nil {
		obj = newStateObject()
		s.stateObjects[addr] = obj
	}
	return obj
}

// TouchedAddresses returns every address touched since the last
// SetTxContext call.
func (s *MemoryStateDB) TouchedAddresses() []types.Address {
	addrs := make([]types.Address, 0, len(s.touched))
	for addr := range s.touched {
		addrs = append(addrs, addr)
	}
	return addrs
}

func (s *MemoryStateDB) CreateAccount(addr types.Address) {
	s.touched[addr] = struct{}{}
	_, existed := s.stateObjects[addr]
	s.journal.Append(createAccountChange{addr: addr})
	obj := newStateObject()
	if existed {
		// Preserve balance across re-creation (e.g. CREATE2 redeploy onto
		// an address that already received a value transfer).
		obj.account.Balance = s.stateObjects[addr].account.Balance
	}
	s.stateObjects[addr] = obj
	s.cache.invalidate(addr)
}

func (s *MemoryStateDB) SubBalance(addr types.Address, amount *big.Int) {
	if amount.Sign() == 0 {
		return
	}
	obj := s.getOrNewStateObject(addr)
	s.journal.Append(balanceChange{addr: addr, prev: new(big.Int).Set(obj.account.Balance)})
	obj.account.Balance = new(big.Int).Sub(obj.account.Balance, amount)
	s.cache.invalidate(addr)
}

func (s *MemoryStateDB) AddBalance(addr types.Address, amount *big.Int) {
	if amount.Sign() == 0 {
		return
	}
	obj := s.getOrNewStateObject(addr)
	s.journal.Append(balanceChange{addr: addr, prev: new(big.Int).Set(obj.account.Balance)})
	obj.account.Balance = new(big.Int).Add(obj.account.Balance, amount)
	s.cache.invalidate(addr)
}

func (s *MemoryStateDB) GetBalance(addr types.Address) *big.Int {
	if acct, ok := s.cache.get(addr); ok {
		return acct.Balance
	}
	obj := s.getStateObject(addr)
	if obj == nil {
		return new(big.Int)
	}
	s.cache.set(addr, obj.account)
	return obj.account.Balance
}

func (s *MemoryStateDB) GetNonce(addr types.Address) uint64 {
	if acct, ok := s.cache.get(addr); ok {
		return acct.Nonce
	}
	obj := s.getStateObject(addr)
	if obj == nil {
		return 0
	}
	s.cache.set(addr, obj.account)
	return obj.account.Nonce
}

func (s *MemoryStateDB) SetNonce(addr types.Address, nonce uint64) {
	obj := s.getOrNewStateObject(addr)
	s.journal.Append(nonceChange{addr: addr, prev: obj.account.Nonce})
	obj.account.Nonce = nonce
	s.cache.invalidate(addr)
}

// GetCode reads code bytes directly from the state object: the account
// cache's fixed layout holds only nonce/balance/root/codehash, not code
// bodies, so it cannot serve this read.
func (s *MemoryStateDB) GetCode(addr types.Address) []byte {
	if obj := s.getStateObject(addr); obj != nil {
		return obj.code
	}
	return nil
}

func (s *MemoryStateDB) SetCode(addr types.Address, code []byte) {
	obj := s.getOrNewStateObject(addr)
	s.journal.Append(codeChange{addr: addr, prevCode: obj.code, prevCodeHash: obj.account.CodeHash})
	obj.code = code
	obj.account.CodeHash = types.Hash(crypto.Keccak256Hash(code))
	s.cache.invalidate(addr)
}

func (s *MemoryStateDB) GetCodeHash(addr types.Address) types.Hash {
	if acct, ok := s.cache.get(addr); ok {
		return acct.CodeHash
	}
	obj := s.getStateObject(addr)
	if obj == nil {
		return types.Hash{}
	}
	s.cache.set(addr, obj.account)
	return obj.account.CodeHash
}

func (s *MemoryStateDB) GetCodeSize(addr types.Address) int {
	return len(s.GetCode(addr))
}

func (s *MemoryStateDB) SelfDestruct(addr types.Address) {
	obj := s.getOrNewStateObject(addr)
	s.journal.Append(selfDestructChange{addr: addr, prev: obj.selfDestructed})
	obj.selfDestructed = true
}

func (s *MemoryStateDB) HasSelfDestructed(addr types.Address) bool {
	obj := s.getStateObject(addr)
	return obj != nil && obj.selfDestructed
}

// GetState reads storage directly: the account cache covers only the
// fixed account record, not per-slot storage.
func (s *MemoryStateDB) GetState(addr types.Address, key types.Hash) types.Hash {
	obj := s.getStateObject(addr)
	if obj == nil {
		return types.Hash{}
	}
	if v, ok := obj.dirtyStorage[key]; ok {
		return v
	}
	return obj.committedStorage[key]
}

func (s *MemoryStateDB) SetState(addr types.Address, key, value types.Hash) {
	obj := s.getOrNewStateObject(addr)
	prev, existed := obj.dirtyStorage[key]
	if !existed {
		prev = obj.committedStorage[key]
	}
	if prev == value {
		return
	}
	// prev != value is already guaranteed here, so writing zero to a slot
	// that was truly unset (prev already zero) never reaches this point:
	// the prev == value check above catches it as a no-op.
	s.journal.Append(storageChange{addr: addr, key: key, prevalue: prev, existed: existed})
	obj.dirtyStorage[key] = value
}

func (s *MemoryStateDB) GetCommittedState(addr types.Address, key types.Hash) types.Hash {
	obj := s.getStateObject(addr)
	if obj == nil {
		return types.Hash{}
	}
	return obj.committedStorage[key]
}

// FinalizePreState copies every dirty slot into committedStorage so that
// GetCommittedState reflects the state immediately before the upcoming
// transaction. Called by the transaction runner at the end of each
// transaction (not mid-transaction), keeping "original storage" meaningful
// for SSTORE refund accounting.
func (s *MemoryStateDB) FinalizePreState() {
	for _, obj := range s.stateObjects {
		for k, v := range obj.dirtyStorage {
			obj.committedStorage[k] = v
		}
		obj.dirtyStorage = make(map[types.Hash]types.Hash)
	}
}

func (s *MemoryStateDB) GetTransientState(addr types.Address, key types.Hash) types.Hash {
	if m, ok := s.transientStorage[addr]; ok {
		return m[key]
	}
	return types.Hash{}
}

func (s *MemoryStateDB) SetTransientState(addr types.Address, key, value types.Hash) {
	prev := s.GetTransientState(addr, key)
	if prev == value {
		return
	}
	s.journal.Append(transientStorageChange{addr: addr, key: key, prevalue: prev})
	s.setTransientStateDirect(addr, key, value)
}

func (s *MemoryStateDB) setTransientStateDirect(addr types.Address, key, value types.Hash) {
	m, ok := s.transientStorage[addr]
	if !ok {
		m = make(map[types.Hash]types.Hash)
		s.transientStorage[addr] = m
	}
	m[key] = value
}

// ClearTransientStorage discards all transient storage. Called by the
// transaction runner at the transaction boundary.
func (s *MemoryStateDB) ClearTransientStorage() {
	s.transientStorage = make(map[types.Address]map[types.Hash]types.Hash)
}

func (s *MemoryStateDB) Exist(addr types.Address) bool {
	return s.getStateObject(addr) != nil
}

func (s *MemoryStateDB) Empty(addr types.Address) bool {
	obj := s.getStateObject(addr)
	return obj == nil || obj.account.IsEmpty()
}

func (s *MemoryStateDB) Snapshot() int { return s.journal.Snapshot() }

func (s *MemoryStateDB) RevertToSnapshot(id int) error { return s.journal.RevertTo(id, s) }

// CommitSnapshot folds the checkpoint frame opened by Snapshot into its
// parent, without reverting it. This is the "commit" half of the
// checkpoint/journal discipline; it is
// distinct from Commit() below, which finalizes the state root.
func (s *MemoryStateDB) CommitSnapshot(id int) { s.journal.Commit(id) }

func (s *MemoryStateDB) SetTxContext(txHash types.Hash, txIndex int) {
	s.txHash = txHash
	s.txIndex = txIndex
	s.touched = make(map[types.Address]struct{})
}

func (s *MemoryStateDB) AddLog(log types.Log) {
	log.TxHash = s.txHash
	log.TxIndex = uint(s.txIndex)
	log.Index = uint(len(s.logs[s.txHash]))
	s.journal.Append(logChange{txHash: s.txHash})
	s.logs[s.txHash] = append(s.logs[s.txHash], log)
}

func (s *MemoryStateDB) GetLogs() []types.Log {
	var all []types.Log
	for _, logs := range s.logs {
		all = append(all, logs...)
	}
	return all
}

func (s *MemoryStateDB) AddRefund(gas uint64) {
	s.journal.Append(refundChange{prev: s.refund})
	s.refund += gas
}

func (s *MemoryStateDB) SubRefund(gas uint64) {
	s.journal.Append(refundChange{prev: s.refund})
	if gas > s.refund {
		s.refund = 0
		return
	}
	s.refund -= gas
}

func (s *MemoryStateDB) GetRefund() uint64 { return s.refund }

func (s *MemoryStateDB) AddAddressToAccessList(addr types.Address) bool {
	if s.accessList.AddAddress(addr) {
		s.journal.Append(accessListAddAccountChange{addr: addr})
		return true
	}
	return false
}

func (s *MemoryStateDB) AddSlotToAccessList(addr types.Address, slot types.Hash) (addrPresent, slotPresent bool) {
	addrPresent, slotPresent = s.accessList.AddSlot(addr, slot)
	if !addrPresent {
		s.journal.Append(accessListAddAccountChange{addr: addr})
	}
	if !slotPresent {
		s.journal.Append(accessListAddSlotChange{addr: addr, slot: slot})
	}
	return addrPresent, slotPresent
}

func (s *MemoryStateDB) AddressInAccessList(addr types.Address) bool {
	return s.accessList.ContainsAddress(addr)
}

func (s *MemoryStateDB) SlotInAccessList(addr types.Address, slot types.Hash) (addrPresent, slotPresent bool) {
	return s.accessList.Contains(addr, slot)
}

// Copy returns a fully independent deep copy with a fresh, empty journal
// (no open checkpoints survive a copy), matching the engine shell's
// copy contract.
func (s *MemoryStateDB) Copy() StateDB {
	cp := NewMemoryStateDB()
	for addr, obj := range s.stateObjects {
		newObj := &stateObject{
			account:          types.Account{Nonce: obj.account.Nonce, Balance: new(big.Int).Set(obj.account.Balance), Root: obj.account.Root, CodeHash: obj.account.CodeHash},
			code:             append([]byte{}, obj.code...),
			committedStorage: make(map[types.Hash]types.Hash, len(obj.committedStorage)),
			dirtyStorage:     make(map[types.Hash]types.Hash, len(obj.dirtyStorage)),
			selfDestructed:   obj.selfDestructed,
		}
		for k, v := range obj.committedStorage {
			newObj.committedStorage[k] = v
		}
		for k, v := range obj.dirtyStorage {
			newObj.dirtyStorage[k] = v
		}
		cp.stateObjects[addr] = newObj
	}
	cp.accessList = s.accessList.Copy()
	return cp
}

// GetRoot computes a root over the current dirty-and-committed state
// without flushing it, for mid-block introspection. Commit additionally
// flushes dirty storage and drops self-destructed accounts.
func (s *MemoryStateDB) GetRoot() types.Hash { return s.computeRoot(false) }

// Commit flushes dirty storage into committed storage, removes
// self-destructed accounts, and returns the resulting state root.
//
// The teacher's Commit builds a real Merkle-Patricia trie via its trie
// package; that package was not part of this engine's retrieved,
// implemented scope (see DESIGN.md). This computes a deterministic root
// instead: Keccak256 over the sorted (address, RLP-free account encoding)
// pairs, with each account's storage root computed the same way over its
// sorted (key, value) pairs. It satisfies every invariant this engine
// relies on a root for (equality across generate=true/false, stability
// under Copy, change-detection) without claiming Merkle-proof compatibility.
func (s *MemoryStateDB) Commit() (types.Hash, error) {
	for addr, obj := range s.stateObjects {
		if obj.selfDestructed {
			delete(s.stateObjects, addr)
			s.cache.invalidate(addr)
			continue
		}
		for k, v := range obj.dirtyStorage {
			obj.committedStorage[k] = v
		}
		obj.dirtyStorage = make(map[types.Hash]types.Hash)
		obj.account.Root = s.storageRoot(obj)
	}
	return s.computeRoot(true), nil
}

// StorageRoot returns addr's current storage root without requiring a
// full Commit.
func (s *MemoryStateDB) StorageRoot(addr types.Address) types.Hash {
	obj := s.getStateObject(addr)
	if obj == nil {
		return types.EmptyRootHash
	}
	return s.storageRoot(obj)
}

func (s *MemoryStateDB) storageRoot(obj *stateObject) types.Hash {
	merged := make(map[types.Hash]types.Hash, len(obj.committedStorage)+len(obj.dirtyStorage))
	for k, v := range obj.committedStorage {
		merged[k] = v
	}
	for k, v := range obj.dirtyStorage {
		merged[k] = v
	}
	keys := make([]types.Hash, 0, len(merged))
	for k, v := range merged {
		if v.IsZero() {
			continue
		}
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return types.EmptyRootHash
	}
	sort.Slice(keys, func(i, j int) bool { return lessHash(keys[i], keys[j]) })
	buf := make([]byte, 0, len(keys)*64)
	for _, k := range keys {
		buf = append(buf, k.Bytes()...)
		buf = append(buf, merged[k].Bytes()...)
	}
	return types.Hash(crypto.Keccak256Hash(buf))
}

func (s *MemoryStateDB) computeRoot(committedOnly bool) types.Hash {
	if len(s.stateObjects) == 0 {
		return types.EmptyRootHash
	}
	addrs := make([]types.Address, 0, len(s.stateObjects))
	for addr, obj := range s.stateObjects {
		if obj.selfDestructed {
			continue
		}
		addrs = append(addrs, addr)
	}
	if len(addrs) == 0 {
		return types.EmptyRootHash
	}
	sort.Slice(addrs, func(i, j int) bool { return lessAddress(addrs[i], addrs[j]) })
	buf := make([]byte, 0, len(addrs)*128)
	for _, addr := range addrs {
		obj := s.stateObjects[addr]
		buf = append(buf, addr.Bytes()...)
		var nb [8]byte
		putUint64(nb[:], obj.account.Nonce)
		buf = append(buf, nb[:]...)
		if obj.account.Balance != nil {
			buf = append(buf, obj.account.Balance.Bytes()...)
		}
		buf = append(buf, obj.account.CodeHash.Bytes()...)
		storageRoot := s.storageRoot(obj)
		buf = append(buf, storageRoot.Bytes()...)
	}
	return types.Hash(crypto.Keccak256Hash(buf))
}

func lessHash(a, b types.Hash) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

func lessAddress(a, b types.Address) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

func putUint64(b []byte, v uint64) {
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
}
