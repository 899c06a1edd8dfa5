package vm

// Gas cost constants for the opcode subset this interpreter implements.
// Names and values match the canonical protocol gas table for the opcodes
// it shares; the opcode set itself is deliberately narrower.
const (
	GasQuickStep   uint64 = 2
	GasFastestStep uint64 = 3
	GasFastStep    uint64 = 5
	GasMidStep     uint64 = 8
	GasSlowStep    uint64 = 10

	SstoreSetGas      uint64 = 20000
	SstoreResetGas    uint64 = 5000
	SstoreClearRefund uint64 = 4800
	SloadGasCold      uint64 = 2100
	SloadGasWarm      uint64 = 100
	ColdAccountAccessCost uint64 = 2600
	WarmStorageReadCost   uint64 = 100

	CallValueTransferGas uint64 = 9000
	CallNewAccountGas    uint64 = 25000
	CallStipend          uint64 = 2300

	CreateGas     uint64 = 32000
	CreateDataGas uint64 = 200 // per deployed byte

	LogGas      uint64 = 375
	LogTopicGas uint64 = 375
	LogDataGas  uint64 = 8

	MemoryGas    uint64 = 3
	QuadCoeffDiv uint64 = 512

	TxGas                     uint64 = 21000
	TxGasContractCreation     uint64 = 53000
	TxDataZeroGas             uint64 = 4
	TxDataNonZeroGasEIP2028   uint64 = 16
	TxAccessListAddressGas    uint64 = 2400
	TxAccessListStorageKeyGas uint64 = 1900
)

// memoryGasCost computes the total (not incremental) memory-expansion
// gas cost for a memory of the given word count, per the protocol's
// quadratic formula.
func memoryGasCost(words uint64) uint64 {
	linear := words * MemoryGas
	quad := (words * words) / QuadCoeffDiv
	return linear + quad
}
