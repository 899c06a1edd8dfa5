package types

import (
	"math/big"
	"testing"
)

func TestNewBlockDefaultsToAnEmptyBodyWhenNilIsGiven(t *testing.T) {
	h := &Header{Number: big.NewInt(1)}
	b := NewBlock(h, nil)
	if b.Body() == nil {
		t.Fatal("NewBlock(header, nil) must default to a non-nil empty body")
	}
	if len(b.Transactions()) != 0 || len(b.Uncles()) != 0 || len(b.Withdrawals()) != 0 {
		t.Fatal("default body must be empty")
	}
}

func TestBlockAccessorsDelegateToHeader(t *testing.T) {
	h := &Header{Number: big.NewInt(7), GasLimit: 30_000_000, GasUsed: 21_000, Time: 42}
	b := NewBlock(h, nil)

	if b.Number() != 7 {
		t.Fatalf("Number() = %d, want 7", b.Number())
	}
	if b.GasLimit() != 30_000_000 {
		t.Fatalf("GasLimit() = %d, want 30000000", b.GasLimit())
	}
	if b.GasUsed() != 21_000 {
		t.Fatalf("GasUsed() = %d, want 21000", b.GasUsed())
	}
	if b.Time() != 42 {
		t.Fatalf("Time() = %d, want 42", b.Time())
	}
	if b.Hash() != h.Hash() {
		t.Fatal("Block.Hash() must delegate to its header's Hash()")
	}
}

func TestWithSealKeepsTheBodyButReplacesTheHeader(t *testing.T) {
	tx := NewTx(&LegacyTx{Nonce: 0, GasPrice: big.NewInt(1), Gas: 21_000})
	body := &Body{Transactions: []*Transaction{tx}}
	original := NewBlock(&Header{Number: big.NewInt(1)}, body)

	sealed := original.WithSeal(&Header{Number: big.NewInt(1), GasUsed: 21_000})

	if sealed.GasUsed() != 21_000 {
		t.Fatalf("sealed block GasUsed() = %d, want 21000", sealed.GasUsed())
	}
	if len(sealed.Transactions()) != 1 || sealed.Transactions()[0] != tx {
		t.Fatal("WithSeal must preserve the original body's transactions")
	}
}
