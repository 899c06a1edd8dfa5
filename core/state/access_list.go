package state

import "github.com/ethrun/ethrun/core/types"

// accessList tracks the warm/cold address and (address,key) sets for the
// current transaction. Entries are only ever added through AddAddress/
// AddSlot and removed through the journal's strict LIFO revert, so
// removeAddress/removeSlot only ever need to undo the most recent add.
type accessList struct {
	addresses map[types.Address]int // index into slots, or -1 if no slots recorded yet
	slots     []map[types.Hash]struct{}
}

func newAccessList() *accessList {
	return &accessList{addresses: make(map[types.Address]int)}
}

// ContainsAddress reports whether addr is in the warm set.
func (al *accessList) ContainsAddress(addr types.Address) bool {
	_, ok := al.addresses[addr]
	return ok
}

// Contains reports whether addr and slot are both warm.
func (al *accessList) Contains(addr types.Address, slot types.Hash) (addressPresent, slotPresent bool) {
	idx, ok := al.addresses[addr]
	if !ok {
		return false, false
	}
	if idx < 0 {
		return true, false
	}
	_, slotPresent = al.slots[idx][slot]
	return true, slotPresent
}

// AddAddress adds addr to the warm set, returning false if it was already
// present (no-op).
func (al *accessList) AddAddress(addr types.Address) bool {
	if _, ok := al.addresses[addr]; ok {
		return false
	}
	al.addresses[addr] = -1
	return true
}

// AddSlot adds (addr, slot) to the warm set, reporting whether each was
// already present.
func (al *accessList) AddSlot(addr types.Address, slot types.Hash) (addrPresent, slotPresent bool) {
	idx, ok := al.addresses[addr]
	if !ok {
		al.slots = append(al.slots, map[types.Hash]struct{}{slot: {}})
		al.addresses[addr] = len(al.slots) - 1
		return false, false
	}
	if idx == -1 {
		al.slots = append(al.slots, map[types.Hash]struct{}{slot: {}})
		al.addresses[addr] = len(al.slots) - 1
		return true, false
	}
	if _, ok := al.slots[idx][slot]; ok {
		return true, true
	}
	al.slots[idx][slot] = struct{}{}
	return true, false
}

func (al *accessList) removeAddress(addr types.Address) {
	delete(al.addresses, addr)
}

func (al *accessList) removeSlot(addr types.Address, slot types.Hash) {
	idx, ok := al.addresses[addr]
	if !ok || idx == -1 {
		return
	}
	delete(al.slots[idx], slot)
}

// Copy returns a deep copy, used by MemoryStateDB.Copy.
func (al *accessList) Copy() *accessList {
	cp := &accessList{addresses: make(map[types.Address]int, len(al.addresses))}
	for k, v := range al.addresses {
		cp.addresses[k] = v
	}
	cp.slots = make([]map[types.Hash]struct{}, len(al.slots))
	for i, s := range al.slots {
		m := make(map[types.Hash]struct{}, len(s))
		for k := range s {
			m[k] = struct{}{}
		}
		cp.slots[i] = m
	}
	return cp
}
