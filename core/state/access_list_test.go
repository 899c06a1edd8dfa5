package state

import (
	"testing"

	"github.com/ethrun/ethrun/core/types"
)

func TestAccessListAddSlotReportsAddressAndSlotPresence(t *testing.T) {
	al := newAccessList()
	slot := hashOne()

	addrPresent, slotPresent := al.AddSlot(addrA, slot)
	if addrPresent || slotPresent {
		t.Fatalf("first AddSlot: addrPresent=%v slotPresent=%v, want false,false", addrPresent, slotPresent)
	}

	addrPresent, slotPresent = al.AddSlot(addrA, slot)
	if !addrPresent || !slotPresent {
		t.Fatalf("second AddSlot: addrPresent=%v slotPresent=%v, want true,true", addrPresent, slotPresent)
	}
}

func TestAccessListAddSlotOnAnAddressAddedWithoutSlotsYet(t *testing.T) {
	al := newAccessList()
	al.AddAddress(addrA)

	addrPresent, slotPresent := al.AddSlot(addrA, hashOne())
	if !addrPresent {
		t.Fatal("expected addrPresent=true since AddAddress already warmed the address")
	}
	if slotPresent {
		t.Fatal("expected slotPresent=false for a never-before-seen slot")
	}
}

func TestAccessListCopyIsIndependent(t *testing.T) {
	al := newAccessList()
	al.AddSlot(addrA, hashOne())

	cp := al.Copy()
	cp.AddSlot(addrB, hashOne())

	if al.ContainsAddress(addrB) {
		t.Fatal("original access list must not see the copy's additions")
	}
	if !cp.ContainsAddress(addrA) {
		t.Fatal("copy must retain the original's entries")
	}
}

func hashOne() types.Hash {
	return types.Hash{1}
}
