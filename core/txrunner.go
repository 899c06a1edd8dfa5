package core

import (
	"errors"
	"fmt"
	"math/big"

	ethlog "github.com/ethereum/go-ethereum/log"

	"github.com/ethrun/ethrun/core/state"
	"github.com/ethrun/ethrun/core/types"
	"github.com/ethrun/ethrun/core/vm"
)

// Errors from transaction validation. Each
// pre-execution check below fails with exactly one of these; none of
// them mutate state.
var (
	ErrNonceMismatch       = errors.New("core: nonce mismatch")
	ErrInsufficientFunds   = errors.New("core: insufficient funds for gas * price + value")
	ErrIntrinsicGasTooLow  = errors.New("core: intrinsic gas too low")
	ErrBlockGasLimitExceeded = errors.New("core: transaction exceeds block gas limit")
	ErrUnsupportedTxType   = errors.New("core: tx type not enabled by the active rule-set")
	ErrBadSignature        = errors.New("core: invalid transaction signature")
	ErrWrongChainId        = errors.New("core: chain id mismatch")
	ErrFeeCapBelowBaseFee  = errors.New("core: max fee per gas below block base fee")
)

// refundQuotient returns the divisor applied to the gas used to cap the
// interpreter-reported refund delta: EIP-3529 (London+) tightened it from
// 2 to 5.
func refundQuotient(rules vm.ForkRules) uint64 {
	if rules.IsLondon {
		return 5
	}
	return 2
}

// intrinsicGas computes the fixed pre-execution cost of a transaction:
// the base tx cost, per-byte data cost (distinguishing zero/non-zero
// bytes), the access list cost, and the higher base cost for contract
// creation.
func intrinsicGas(data []byte, accessList types.AccessList, isContractCreation bool, rules vm.ForkRules) uint64 {
	gas := vm.TxGas
	if isContractCreation {
		gas = vm.TxGasContractCreation
	}
	var zeroes, nonZeroes uint64
	for _, b := range data {
		if b == 0 {
			zeroes++
		} else {
			nonZeroes++
		}
	}
	nonZeroGas := vm.TxDataNonZeroGasEIP2028
	gas += zeroes * vm.TxDataZeroGas
	gas += nonZeroes * nonZeroGas
	if rules.IsBerlin {
		gas += uint64(len(accessList)) * vm.TxAccessListAddressGas
		gas += uint64(accessList.StorageKeys()) * vm.TxAccessListStorageKeyGas
	}
	return gas
}

// TxRunnerContext is the per-block information the transaction runner
// needs that is not part of the transaction itself.
type TxRunnerContext struct {
	Block        *types.Header
	Rules        vm.ForkRules
	ChainID      *big.Int
	CumulativeGasUsed uint64
	GetHash      vm.GetHashFunc
}

// RunTx validates
// tx against db and ctx, executes it via interp, and returns its receipt
// plus the raw execution result.
func RunTx(db state.StateDB, interp vm.Interpreter, tx *types.Transaction, ctx TxRunnerContext) (*types.Receipt, *ExecutionResult, error) {
	sender := tx.Sender()
	if sender == nil {
		return nil, nil, ErrBadSignature
	}
	if chainID := tx.ChainID(); chainID != nil && ctx.ChainID != nil && chainID.Cmp(ctx.ChainID) != 0 {
		return nil, nil, ErrWrongChainId
	}
	if !txTypeEnabled(tx.Type(), ctx.Rules) {
		return nil, nil, ErrUnsupportedTxType
	}
	if tx.Gas() > ctx.Block.GasLimit-ctx.CumulativeGasUsed {
		return nil, nil, ErrBlockGasLimitExceeded
	}

	igas := intrinsicGas(tx.Data(), tx.AccessList(), tx.IsContractCreation(), ctx.Rules)
	if tx.Gas() < igas {
		return nil, nil, ErrIntrinsicGasTooLow
	}
	if db.GetNonce(*sender) != tx.Nonce() {
		return nil, nil, ErrNonceMismatch
	}

	if tx.Type() == types.DynamicFeeTxType {
		if ctx.Block.BaseFee == nil {
			return nil, nil, fmt.Errorf("%w: fee-market tx without an active base fee", ErrFeeCapBelowBaseFee)
		}
		if tx.GasFeeCap().Cmp(ctx.Block.BaseFee) < 0 {
			return nil, nil, ErrFeeCapBelowBaseFee
		}
		if tx.GasTipCap().Cmp(tx.GasFeeCap()) > 0 {
			return nil, nil, ErrFeeCapBelowBaseFee
		}
	}
	msg := TransactionToMessage(tx, ctx.Block.BaseFee)
	effectiveGasPrice := msg.GasPrice

	upfrontCost := new(big.Int).Mul(new(big.Int).SetUint64(tx.Gas()), effectiveGasPrice)
	if tx.Value() != nil {
		upfrontCost.Add(upfrontCost, tx.Value())
	}
	if db.GetBalance(*sender).Cmp(upfrontCost) < 0 {
		return nil, nil, ErrInsufficientFunds
	}

	// --- execution begins; every exit below this point is via commit or revert ---
	checkpoint := db.Snapshot()

	fee := new(big.Int).Mul(new(big.Int).SetUint64(tx.Gas()), effectiveGasPrice)
	db.SubBalance(*sender, fee)
	db.SetNonce(*sender, tx.Nonce()+1)

	db.SetTxContext(tx.Hash(), 0)
	preWarm(db, *sender, tx.To(), ctx.Block.Coinbase, tx.AccessList(), ctx.Rules)

	vmMsg := vm.Message{
		From:   msg.From,
		To:     msg.To,
		Value:  msg.Value,
		Data:   msg.Data,
		Gas:    msg.GasLimit - igas,
		Depth:  0,
		Static: false,
	}

	result := interp.ExecuteMessage(vmMsg)

	gasUsed := vmMsg.Gas - result.GasLeft
	refund := uint64(0)
	if result.Status == vm.StatusSuccess && result.RefundDelta > 0 {
		refund = uint64(result.RefundDelta)
		maxRefund := gasUsed / refundQuotient(ctx.Rules)
		if refund > maxRefund {
			refund = maxRefund
		}
		gasUsed -= refund
	}
	totalGasUsed := gasUsed + igas

	remaining := new(big.Int).Mul(new(big.Int).SetUint64(tx.Gas()-totalGasUsed), effectiveGasPrice)
	db.AddBalance(*sender, remaining)

	coinbasePayment := new(big.Int).Mul(new(big.Int).SetUint64(totalGasUsed), effectiveGasPrice)
	if ctx.Block.BaseFee != nil {
		tip := new(big.Int).Sub(effectiveGasPrice, ctx.Block.BaseFee)
		coinbasePayment = new(big.Int).Mul(new(big.Int).SetUint64(totalGasUsed), tip)
	}
	db.AddBalance(ctx.Block.Coinbase, coinbasePayment)

	if result.Status == vm.StatusSuccess {
		for addr := range result.SelfDestructSet {
			db.SelfDestruct(addr)
		}
		if ctx.Rules.IsEIP158 {
			cleanupEmptyTouchedAccounts(db)
		}
	}

	db.ClearTransientStorage()
	db.FinalizePreState()

	var execErr error
	status := types.ReceiptStatusSuccessful
	switch result.Status {
	case vm.StatusSuccess:
		db.CommitSnapshot(checkpoint)
	case vm.StatusRevert:
		_ = db.RevertToSnapshot(checkpoint)
		// The fee deduction, nonce bump, sender refund and coinbase payment
		// above happened after Snapshot, so the revert undid them too.
		// Re-apply them since they stand even when execution reverts.
		db.SubBalance(*sender, fee)
		db.SetNonce(*sender, tx.Nonce()+1)
		remaining := new(big.Int).Mul(new(big.Int).SetUint64(tx.Gas()-totalGasUsed), effectiveGasPrice)
		db.AddBalance(*sender, remaining)
		db.AddBalance(ctx.Block.Coinbase, coinbasePayment)
		status = types.ReceiptStatusFailed
		execErr = fmt.Errorf("%w", ErrExecutionReverted)
	default:
		_ = db.RevertToSnapshot(checkpoint)
		db.SubBalance(*sender, fee)
		db.SetNonce(*sender, tx.Nonce()+1)
		db.AddBalance(ctx.Block.Coinbase, coinbasePayment)
		status = types.ReceiptStatusFailed
		execErr = errors.New("core: exceptional halt")
	}

	cumulative := ctx.CumulativeGasUsed + totalGasUsed
	receipt := types.NewReceipt(status, cumulative, result.Logs)
	receipt.TxHash = tx.Hash()
	receipt.GasUsed = totalGasUsed
	receipt.ContractAddress = result.CreatedAddress

	execResult := &ExecutionResult{
		UsedGas:         totalGasUsed,
		RefundedGas:     refund,
		Err:             execErr,
		ReturnData:      result.ReturnData,
		ContractAddress: result.CreatedAddress,
	}

	ethlog.Debug("transaction executed", "hash", tx.Hash().Hex(), "gasUsed", totalGasUsed, "status", status)
	return receipt, execResult, nil
}

func txTypeEnabled(t uint8, rules vm.ForkRules) bool {
	switch t {
	case types.LegacyTxType:
		return true
	case types.AccessListTxType:
		return rules.IsBerlin
	case types.DynamicFeeTxType:
		return rules.IsLondon
	default:
		return false
	}
}

// preWarm pre-populates the access/warm sets: sender,
// target, coinbase (from Shanghai on), precompiles, and the transaction's
// own access list.
func preWarm(db state.StateDB, sender types.Address, to *types.Address, coinbase types.Address, al types.AccessList, rules vm.ForkRules) {
	if !rules.IsBerlin {
		return
	}
	db.AddAddressToAccessList(sender)
	if to != nil {
		db.AddAddressToAccessList(*to)
	}
	if rules.IsShanghai {
		db.AddAddressToAccessList(coinbase)
	}
	for _, addr := range vm.PrecompileAddresses() {
		db.AddAddressToAccessList(addr)
	}
	for _, tuple := range al {
		db.AddAddressToAccessList(tuple.Address)
		for _, key := range tuple.StorageKeys {
			db.AddSlotToAccessList(tuple.Address, key)
		}
	}
}

// cleanupEmptyTouchedAccounts sweeps every address the transaction touched
// (sender, recipient, coinbase, newly created accounts, and any address a
// nested CALL reached) and removes the ones left empty, per the active
// rule-set's EIP-161 amendment.
func cleanupEmptyTouchedAccounts(db state.StateDB) {
	for _, addr := range db.TouchedAddresses() {
		if db.Exist(addr) && db.Empty(addr) {
			db.SelfDestruct(addr)
		}
	}
}
