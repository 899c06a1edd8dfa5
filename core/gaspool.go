package core

import "errors"

// ErrGasPoolExhausted is returned when the block gas pool has insufficient
// gas left for a transaction's declared gas limit.
var ErrGasPoolExhausted = errors.New("core: gas pool exhausted")

// GasPool tracks the gas remaining in a block while the block runner or
// block builder iterates transactions.
type GasPool uint64

func (gp *GasPool) AddGas(amount uint64) *GasPool {
	*gp += GasPool(amount)
	return gp
}

func (gp *GasPool) SubGas(amount uint64) error {
	if uint64(*gp) < amount {
		return ErrGasPoolExhausted
	}
	*gp -= GasPool(amount)
	return nil
}

func (gp *GasPool) Gas() uint64 { return uint64(*gp) }
