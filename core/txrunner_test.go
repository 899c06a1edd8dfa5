package core

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethrun/ethrun/core/state"
	"github.com/ethrun/ethrun/core/types"
	"github.com/ethrun/ethrun/core/vm"
)

func newTestRunnerContext(header *types.Header) TxRunnerContext {
	_, rules, err := TestConfig.Resolve(header.Number.Uint64(), nil)
	if err != nil {
		panic(err)
	}
	return TxRunnerContext{
		Block:   header,
		Rules:   rules,
		ChainID: TestConfig.ChainID,
	}
}

func newTestHeaderForTxs() *types.Header {
	return &types.Header{
		Number:   big.NewInt(1),
		GasLimit: 30_000_000,
		Coinbase: types.HexToAddress("0xc0ffee0000000000000000000000000000c0fe"),
		BaseFee:  big.NewInt(1_000_000_000),
	}
}

func fundedSender(db state.StateDB, addr types.Address, balance *big.Int) {
	db.CreateAccount(addr)
	db.AddBalance(addr, balance)
}

func runSimpleTransfer(t *testing.T, db state.StateDB, ctx TxRunnerContext, tx *types.Transaction) (*types.Receipt, *ExecutionResult) {
	t.Helper()
	blockCtx := vmBlockContextFromHeader(ctx.Block)
	txCtx := vmTxContextFromTx(tx)
	interp := vm.NewEVM(blockCtx, txCtx, db, ctx.Rules, ctx.ChainID, vm.Config{})
	receipt, result, err := RunTx(db, interp, tx, ctx)
	if err != nil {
		t.Fatalf("RunTx: %v", err)
	}
	return receipt, result
}

func TestRunTxTransfersValueAndBumpsNonce(t *testing.T) {
	db := state.NewMemoryStateDB()
	sender := types.HexToAddress("0x1111111111111111111111111111111111111111")
	recipient := types.HexToAddress("0x2222222222222222222222222222222222222222")
	fundedSender(db, sender, big.NewInt(1_000_000_000_000_000_000))

	header := newTestHeaderForTxs()
	ctx := newTestRunnerContext(header)

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    0,
		GasPrice: big.NewInt(2_000_000_000),
		Gas:      21_000,
		To:       &recipient,
		Value:    big.NewInt(1_000),
	})
	tx.SetSender(sender)

	receipt, result := runSimpleTransfer(t, db, ctx, tx)
	if receipt.Status != types.ReceiptStatusSuccessful {
		t.Fatalf("status = %d, want success", receipt.Status)
	}
	if result.Failed() {
		t.Fatalf("unexpected failure: %v", result.Err)
	}
	if got := db.GetBalance(recipient); got.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("recipient balance = %s, want 1000", got)
	}
	if got := db.GetNonce(sender); got != 1 {
		t.Fatalf("sender nonce = %d, want 1", got)
	}
}

func TestRunTxRejectsNonceMismatch(t *testing.T) {
	db := state.NewMemoryStateDB()
	sender := types.HexToAddress("0x1111111111111111111111111111111111111111")
	fundedSender(db, sender, big.NewInt(1_000_000_000_000_000_000))
	db.SetNonce(sender, 5)

	header := newTestHeaderForTxs()
	ctx := newTestRunnerContext(header)

	tx := types.NewTx(&types.LegacyTx{Nonce: 0, GasPrice: big.NewInt(1), Gas: 21_000})
	tx.SetSender(sender)

	blockCtx := vmBlockContextFromHeader(header)
	txCtx := vmTxContextFromTx(tx)
	interp := vm.NewEVM(blockCtx, txCtx, db, ctx.Rules, ctx.ChainID, vm.Config{})

	_, _, err := RunTx(db, interp, tx, ctx)
	if !errors.Is(err, ErrNonceMismatch) {
		t.Fatalf("err = %v, want ErrNonceMismatch", err)
	}
}

func TestRunTxRejectsInsufficientFunds(t *testing.T) {
	db := state.NewMemoryStateDB()
	sender := types.HexToAddress("0x1111111111111111111111111111111111111111")
	fundedSender(db, sender, big.NewInt(100))

	header := newTestHeaderForTxs()
	ctx := newTestRunnerContext(header)

	tx := types.NewTx(&types.LegacyTx{Nonce: 0, GasPrice: big.NewInt(1_000_000_000), Gas: 21_000})
	tx.SetSender(sender)

	blockCtx := vmBlockContextFromHeader(header)
	txCtx := vmTxContextFromTx(tx)
	interp := vm.NewEVM(blockCtx, txCtx, db, ctx.Rules, ctx.ChainID, vm.Config{})

	_, _, err := RunTx(db, interp, tx, ctx)
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}
}

func TestRunTxRejectsIntrinsicGasTooLow(t *testing.T) {
	db := state.NewMemoryStateDB()
	sender := types.HexToAddress("0x1111111111111111111111111111111111111111")
	fundedSender(db, sender, big.NewInt(1_000_000_000_000_000_000))

	header := newTestHeaderForTxs()
	ctx := newTestRunnerContext(header)

	tx := types.NewTx(&types.LegacyTx{Nonce: 0, GasPrice: big.NewInt(1), Gas: 100})
	tx.SetSender(sender)

	blockCtx := vmBlockContextFromHeader(header)
	txCtx := vmTxContextFromTx(tx)
	interp := vm.NewEVM(blockCtx, txCtx, db, ctx.Rules, ctx.ChainID, vm.Config{})

	_, _, err := RunTx(db, interp, tx, ctx)
	if !errors.Is(err, ErrIntrinsicGasTooLow) {
		t.Fatalf("err = %v, want ErrIntrinsicGasTooLow", err)
	}
}

func TestRunTxRejectsMissingSender(t *testing.T) {
	db := state.NewMemoryStateDB()
	header := newTestHeaderForTxs()
	ctx := newTestRunnerContext(header)

	tx := types.NewTx(&types.LegacyTx{Nonce: 0, GasPrice: big.NewInt(1), Gas: 21_000})

	blockCtx := vmBlockContextFromHeader(header)
	txCtx := vmTxContextFromTx(tx)
	interp := vm.NewEVM(blockCtx, txCtx, db, ctx.Rules, ctx.ChainID, vm.Config{})

	_, _, err := RunTx(db, interp, tx, ctx)
	if !errors.Is(err, ErrBadSignature) {
		t.Fatalf("err = %v, want ErrBadSignature", err)
	}
}

func TestRunTxRejectsFeeCapBelowBaseFee(t *testing.T) {
	db := state.NewMemoryStateDB()
	sender := types.HexToAddress("0x1111111111111111111111111111111111111111")
	fundedSender(db, sender, big.NewInt(1_000_000_000_000_000_000))

	header := newTestHeaderForTxs()
	ctx := newTestRunnerContext(header)

	tx := types.NewTx(&types.DynamicFeeTx{
		Nonce:     0,
		GasFeeCap: big.NewInt(1), // below header.BaseFee
		GasTipCap: big.NewInt(1),
		Gas:       21_000,
	})
	tx.SetSender(sender)

	blockCtx := vmBlockContextFromHeader(header)
	txCtx := vmTxContextFromTx(tx)
	interp := vm.NewEVM(blockCtx, txCtx, db, ctx.Rules, ctx.ChainID, vm.Config{})

	_, _, err := RunTx(db, interp, tx, ctx)
	if !errors.Is(err, ErrFeeCapBelowBaseFee) {
		t.Fatalf("err = %v, want ErrFeeCapBelowBaseFee", err)
	}
}

func TestCleanupEmptyTouchedAccountsSweepsEveryTouchedAddressNotOnlyTheFixedFour(t *testing.T) {
	db := state.NewMemoryStateDB()
	db.SetTxContext(types.Hash{}, 0)

	sender := types.HexToAddress("0x1111111111111111111111111111111111111111")
	recipient := types.HexToAddress("0x2222222222222222222222222222222222222222")
	coinbase := types.HexToAddress("0x3333333333333333333333333333333333333333")
	nested := types.HexToAddress("0x4444444444444444444444444444444444444444")

	db.CreateAccount(sender)
	db.CreateAccount(recipient)
	db.CreateAccount(coinbase)
	// nested stands in for a third-party address a nested CALL touched
	// without the caller ever passing it to cleanupEmptyTouchedAccounts
	// directly; only the touched-address journal should know about it.
	db.CreateAccount(nested)

	cleanupEmptyTouchedAccounts(db)

	for _, addr := range []types.Address{sender, recipient, coinbase, nested} {
		if db.Exist(addr) {
			t.Fatalf("expected %s to be swept as an empty touched account", addr.Hex())
		}
	}
}

func TestCleanupEmptyTouchedAccountsLeavesNonEmptyAccountsAlone(t *testing.T) {
	db := state.NewMemoryStateDB()
	db.SetTxContext(types.Hash{}, 0)

	addr := types.HexToAddress("0x5555555555555555555555555555555555555555")
	db.CreateAccount(addr)
	db.AddBalance(addr, big.NewInt(1))

	cleanupEmptyTouchedAccounts(db)

	if !db.Exist(addr) {
		t.Fatal("expected a non-empty touched account to survive cleanup")
	}
}

func TestRunTxRejectsChainIDMismatch(t *testing.T) {
	db := state.NewMemoryStateDB()
	sender := types.HexToAddress("0x1111111111111111111111111111111111111111")
	fundedSender(db, sender, big.NewInt(1_000_000_000_000_000_000))

	header := newTestHeaderForTxs()
	ctx := newTestRunnerContext(header)

	tx := types.NewTx(&types.AccessListTx{
		ChainID:  big.NewInt(999), // does not match TestConfig.ChainID
		Nonce:    0,
		GasPrice: big.NewInt(1_000_000_000),
		Gas:      21_000,
	})
	tx.SetSender(sender)

	blockCtx := vmBlockContextFromHeader(header)
	txCtx := vmTxContextFromTx(tx)
	interp := vm.NewEVM(blockCtx, txCtx, db, ctx.Rules, ctx.ChainID, vm.Config{})

	_, _, err := RunTx(db, interp, tx, ctx)
	if !errors.Is(err, ErrWrongChainId) {
		t.Fatalf("err = %v, want ErrWrongChainId", err)
	}
}
