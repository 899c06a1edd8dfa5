package core

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethrun/ethrun/core/state"
	"github.com/ethrun/ethrun/core/types"
)

func TestBuilderIncludesValidCandidatesAndFillsHeaderTotals(t *testing.T) {
	db, genesisBlock := genesisStateWithFundedSender(t)

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    0,
		GasPrice: big.NewInt(2_000_000_000),
		Gas:      21_000,
		To:       &testRecipient,
		Value:    big.NewInt(7),
	})
	tx.SetSender(testSender)

	built, err := Build(TestConfig, DefaultNewInterpreter, db, BuilderParams{
		ParentHash: genesisBlock.Hash(),
		Number:     new(big.Int).SetUint64(genesisBlock.Number() + 1),
		Coinbase:   types.HexToAddress("0xc0ffee0000000000000000000000000000c0fe"),
		GasLimit:   genesisBlock.GasLimit(),
		Time:       genesisBlock.Time() + 1,
		BaseFee:    big.NewInt(1_000_000_000),
	}, []*types.Transaction{tx})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if len(built.Skipped) != 0 {
		t.Fatalf("len(Skipped) = %d, want 0", len(built.Skipped))
	}
	if len(built.Block.Transactions()) != 1 {
		t.Fatalf("len(Transactions) = %d, want 1", len(built.Block.Transactions()))
	}
	if built.Block.Header().GasUsed != 21_000 {
		t.Fatalf("header.GasUsed = %d, want 21000", built.Block.Header().GasUsed)
	}
	if built.Block.Header().Root.IsZero() {
		t.Fatal("header.Root must be set after Build")
	}
}

func TestBuilderSkipsCandidateOverBlockGasLimitWithDistinctReason(t *testing.T) {
	db, genesisBlock := genesisStateWithFundedSender(t)

	oversized := types.NewTx(&types.LegacyTx{
		Nonce:    0,
		GasPrice: big.NewInt(1_000_000_000),
		Gas:      50_000,
		To:       &testRecipient,
		Value:    big.NewInt(1),
	})
	oversized.SetSender(testSender)

	built, err := Build(TestConfig, DefaultNewInterpreter, db, BuilderParams{
		ParentHash: genesisBlock.Hash(),
		Number:     new(big.Int).SetUint64(genesisBlock.Number() + 1),
		GasLimit:   30_000, // below oversized.Gas()
		Time:       genesisBlock.Time() + 1,
		BaseFee:    big.NewInt(1_000_000_000),
	}, []*types.Transaction{oversized})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if len(built.Skipped) != 1 {
		t.Fatalf("len(Skipped) = %d, want 1", len(built.Skipped))
	}
	if !errors.Is(built.Skipped[0].Reason, ErrTxGasLimitBlockOverflow) {
		t.Fatalf("Skipped[0].Reason = %v, want ErrTxGasLimitBlockOverflow", built.Skipped[0].Reason)
	}
	if len(built.Block.Transactions()) != 0 {
		t.Fatalf("len(Transactions) = %d, want 0", len(built.Block.Transactions()))
	}
	if built.Block.Header().GasUsed != 0 {
		t.Fatalf("header.GasUsed = %d, want 0", built.Block.Header().GasUsed)
	}
}

func TestBuilderSkipsFailingCandidateButKeepsLaterValidOnesWithDistinctReason(t *testing.T) {
	db, genesisBlock := genesisStateWithFundedSender(t)

	// wrong nonce: will fail pre-execution validation inside RunTx.
	badNonce := types.NewTx(&types.LegacyTx{
		Nonce:    7,
		GasPrice: big.NewInt(1_000_000_000),
		Gas:      21_000,
		To:       &testRecipient,
		Value:    big.NewInt(1),
	})
	badNonce.SetSender(testSender)

	good := types.NewTx(&types.LegacyTx{
		Nonce:    0,
		GasPrice: big.NewInt(1_000_000_000),
		Gas:      21_000,
		To:       &testRecipient,
		Value:    big.NewInt(1),
	})
	good.SetSender(testSender)

	built, err := Build(TestConfig, DefaultNewInterpreter, db, BuilderParams{
		ParentHash: genesisBlock.Hash(),
		Number:     new(big.Int).SetUint64(genesisBlock.Number() + 1),
		GasLimit:   genesisBlock.GasLimit(),
		Time:       genesisBlock.Time() + 1,
		BaseFee:    big.NewInt(1_000_000_000),
	}, []*types.Transaction{badNonce, good})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if len(built.Skipped) != 1 {
		t.Fatalf("len(Skipped) = %d, want 1", len(built.Skipped))
	}
	if errors.Is(built.Skipped[0].Reason, ErrTxGasLimitBlockOverflow) {
		t.Fatal("a nonce-validation failure must not be reported as a gas overflow")
	}
	if !errors.Is(built.Skipped[0].Reason, ErrNonceMismatch) {
		t.Fatalf("Skipped[0].Reason = %v, want ErrNonceMismatch", built.Skipped[0].Reason)
	}
	if len(built.Block.Transactions()) != 1 {
		t.Fatalf("len(Transactions) = %d, want 1", len(built.Block.Transactions()))
	}
	if built.Block.Transactions()[0] != good {
		t.Fatal("expected the valid transaction to be included despite the earlier skip")
	}
}

func TestBuilderComputesWithdrawalsHashWhenWithdrawalsPresent(t *testing.T) {
	db, genesisBlock := genesisStateWithFundedSender(t)

	w := &types.Withdrawal{Index: 0, Validator: 3, Address: testRecipient, Amount: 10}
	built, err := Build(TestConfig, DefaultNewInterpreter, db, BuilderParams{
		ParentHash:  genesisBlock.Hash(),
		Number:      new(big.Int).SetUint64(genesisBlock.Number() + 1),
		GasLimit:    genesisBlock.GasLimit(),
		Time:        genesisBlock.Time() + 1,
		BaseFee:     big.NewInt(1_000_000_000),
		Withdrawals: []*types.Withdrawal{w},
	}, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if built.Block.Header().WithdrawalsHash == nil {
		t.Fatal("expected WithdrawalsHash to be set")
	}
	if built.Block.Header().WithdrawalsHash.IsZero() {
		t.Fatal("expected a non-zero WithdrawalsHash")
	}
}

func TestNewBuilderAddTransactionAndBuildIncrementally(t *testing.T) {
	db, genesisBlock := genesisStateWithFundedSender(t)

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    0,
		GasPrice: big.NewInt(1_000_000_000),
		Gas:      21_000,
		To:       &testRecipient,
		Value:    big.NewInt(1),
	})
	tx.SetSender(testSender)

	b, err := NewBuilder(TestConfig, DefaultNewInterpreter, db, BuilderParams{
		ParentHash: genesisBlock.Hash(),
		Number:     new(big.Int).SetUint64(genesisBlock.Number() + 1),
		GasLimit:   genesisBlock.GasLimit(),
		Time:       genesisBlock.Time() + 1,
		BaseFee:    big.NewInt(1_000_000_000),
	})
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}
	if err := b.AddTransaction(tx); err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}

	built, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(built.Block.Transactions()) != 1 {
		t.Fatalf("len(Transactions) = %d, want 1", len(built.Block.Transactions()))
	}
}

func TestBuilderRejectsCallsAfterBuild(t *testing.T) {
	db, genesisBlock := genesisStateWithFundedSender(t)

	b, err := NewBuilder(TestConfig, DefaultNewInterpreter, db, BuilderParams{
		ParentHash: genesisBlock.Hash(),
		Number:     new(big.Int).SetUint64(genesisBlock.Number() + 1),
		GasLimit:   genesisBlock.GasLimit(),
		Time:       genesisBlock.Time() + 1,
		BaseFee:    big.NewInt(1_000_000_000),
	})
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}
	if _, err := b.Build(); err != nil {
		t.Fatalf("Build: %v", err)
	}

	tx := types.NewTx(&types.LegacyTx{Nonce: 0, GasPrice: big.NewInt(1), Gas: 21_000, To: &testRecipient})
	tx.SetSender(testSender)
	if err := b.AddTransaction(tx); !errors.Is(err, ErrBuilderClosed) {
		t.Fatalf("AddTransaction after Build = %v, want ErrBuilderClosed", err)
	}
	if _, err := b.Build(); !errors.Is(err, ErrBuilderClosed) {
		t.Fatalf("second Build = %v, want ErrBuilderClosed", err)
	}
	if err := b.Revert(); !errors.Is(err, ErrBuilderClosed) {
		t.Fatalf("Revert after Build = %v, want ErrBuilderClosed", err)
	}
}

func TestBuilderRevertUndoesAddedTransactionsAndCloses(t *testing.T) {
	db, genesisBlock := genesisStateWithFundedSender(t)
	balanceBefore := db.GetBalance(testSender)

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    0,
		GasPrice: big.NewInt(1_000_000_000),
		Gas:      21_000,
		To:       &testRecipient,
		Value:    big.NewInt(1),
	})
	tx.SetSender(testSender)

	b, err := NewBuilder(TestConfig, DefaultNewInterpreter, db, BuilderParams{
		ParentHash: genesisBlock.Hash(),
		Number:     new(big.Int).SetUint64(genesisBlock.Number() + 1),
		GasLimit:   genesisBlock.GasLimit(),
		Time:       genesisBlock.Time() + 1,
		BaseFee:    big.NewInt(1_000_000_000),
	})
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}
	if err := b.AddTransaction(tx); err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}

	if err := b.Revert(); err != nil {
		t.Fatalf("Revert: %v", err)
	}

	if db.GetBalance(testSender).Cmp(balanceBefore) != 0 {
		t.Fatal("Revert must undo balance changes made while building")
	}
	if err := b.AddTransaction(tx); !errors.Is(err, ErrBuilderClosed) {
		t.Fatalf("AddTransaction after Revert = %v, want ErrBuilderClosed", err)
	}
}

// ensure a fresh state.StateDB can stand in for the builder's db parameter
// without additional adaptation (confirms the state package's public API
// shape matches what core expects of it).
var _ state.StateDB = state.NewMemoryStateDB()
