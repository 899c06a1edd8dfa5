package vm

import (
	"testing"

	"github.com/holiman/uint256"
)

func TestStackPushPopIsLIFO(t *testing.T) {
	s := newStack()
	a, b := uint256.NewInt(1), uint256.NewInt(2)
	s.push(a)
	s.push(b)

	if got := s.pop(); got.Cmp(b) != 0 {
		t.Fatalf("first pop = %s, want %s", got.Hex(), b.Hex())
	}
	if got := s.pop(); got.Cmp(a) != 0 {
		t.Fatalf("second pop = %s, want %s", got.Hex(), a.Hex())
	}
}

func TestStackDupCopiesTheNthElementFromTop(t *testing.T) {
	s := newStack()
	s.push(uint256.NewInt(10))
	s.push(uint256.NewInt(20))
	s.dup(2) // duplicate the element 2 below the top (10)

	if s.len() != 3 {
		t.Fatalf("len = %d, want 3", s.len())
	}
	if got := s.pop(); got.Cmp(uint256.NewInt(10)) != 0 {
		t.Fatalf("duplicated value = %s, want 10", got.Hex())
	}
}

func TestStackSwapExchangesTopWithNthBelow(t *testing.T) {
	s := newStack()
	s.push(uint256.NewInt(1))
	s.push(uint256.NewInt(2))
	s.push(uint256.NewInt(3))
	s.swap(2) // swap top (3) with the element 2 below it (1)

	if got := s.pop(); got.Cmp(uint256.NewInt(1)) != 0 {
		t.Fatalf("top after swap = %s, want 1", got.Hex())
	}
	if got := s.back(1); got.Cmp(uint256.NewInt(3)) != 0 {
		t.Fatalf("back(1) = %s, want 3", got.Hex())
	}
}
