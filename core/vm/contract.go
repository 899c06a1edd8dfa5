package vm

import (
	"math/big"

	"github.com/ethrun/ethrun/core/types"
)

// Contract is the executing call frame's code, input and remaining gas.
type Contract struct {
	Address types.Address
	Caller  types.Address
	Value   *big.Int
	Code    []byte
	Input   []byte

	Gas uint64

	jumpDests map[uint64]struct{}
}

func newContract(caller, address types.Address, value *big.Int, code, input []byte, gas uint64) *Contract {
	c := &Contract{Address: address, Caller: caller, Value: value, Code: code, Input: input, Gas: gas}
	c.analyzeJumpDests()
	return c
}

// analyzeJumpDests precomputes valid JUMPDEST positions once per frame,
// skipping over PUSH immediate-data bytes so a JUMP can never land inside
// push data.
func (c *Contract) analyzeJumpDests() {
	c.jumpDests = make(map[uint64]struct{})
	for pc := uint64(0); pc < uint64(len(c.Code)); {
		op := OpCode(c.Code[pc])
		if op == JUMPDEST {
			c.jumpDests[pc] = struct{}{}
		}
		if op >= PUSH1 && op <= PUSH32 {
			pc += uint64(op-PUSH1) + 1
		}
		pc++
	}
}

func (c *Contract) validJumpDest(dest uint64) bool {
	_, ok := c.jumpDests[dest]
	return ok
}

func (c *Contract) useGas(amount uint64) bool {
	if c.Gas < amount {
		return false
	}
	c.Gas -= amount
	return true
}
