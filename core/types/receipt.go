package types

const (
	ReceiptStatusFailed    = uint64(0)
	ReceiptStatusSuccessful = uint64(1)
)

// Receipt records the outcome of one transaction's execution within a
// block: whether it succeeded, how much cumulative gas the block had used
// by the time it finished, and the logs it emitted.
type Receipt struct {
	Status            uint64
	CumulativeGasUsed uint64
	Bloom             Bloom
	Logs              []Log

	TxHash          Hash
	ContractAddress *Address
	GasUsed         uint64
}

// NewReceipt derives Bloom from Logs; callers should not set it directly.
func NewReceipt(status uint64, cumulativeGasUsed uint64, logs []Log) *Receipt {
	return &Receipt{
		Status:            status,
		CumulativeGasUsed: cumulativeGasUsed,
		Bloom:             CreateBloom(logs),
		Logs:              logs,
	}
}
