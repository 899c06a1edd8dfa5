package vm

import (
	"math/big"

	"github.com/holiman/uint256"

	"github.com/ethrun/ethrun/core/types"
)

// run is the opcode-dispatch loop shared by Call and Create. Each opcode's
// constant, dynamic and memory-expansion gas is charged (growing memory as
// it is paid for) before the opcode executes; the order among those
// charges varies by opcode. It returns the frame's return data.
func (evm *EVM) run(contract *Contract, static bool) ([]byte, error) {
	stack := newStack()
	mem := newMemory()
	pc := uint64(0)

	for {
		if pc >= uint64(len(contract.Code)) {
			return nil, nil
		}
		op := OpCode(contract.Code[pc])

		switch {
		case op == STOP:
			return nil, nil
		case op == RETURN || op == REVERT:
			if stack.len() < 2 {
				return nil, ErrStackUnderflow
			}
			offset, size := stack.pop(), stack.pop()
			if !evm.chargeMemory(contract, mem, offset.Uint64(), size.Uint64()) {
				return nil, ErrOutOfGas
			}
			data := mem.Get(offset.Uint64(), size.Uint64())
			if op == REVERT {
				return data, ErrExecutionReverted
			}
			return data, nil
		case op == JUMPDEST:
			pc++
			continue
		case op >= PUSH0 && op <= PUSH32:
			n := int(op - PUSH0)
			if !contract.useGas(GasFastestStep) {
				return nil, ErrOutOfGas
			}
			var v uint256.Int
			if n > 0 {
				start := pc + 1
				end := start + uint64(n)
				if end > uint64(len(contract.Code)) {
					end = uint64(len(contract.Code))
				}
				v.SetBytes(contract.Code[start:end])
			}
			stack.push(&v)
			pc += uint64(n) + 1
			continue
		default:
			if err := evm.execOne(contract, stack, mem, op, &pc, static); err != nil {
				return nil, err
			}
		}
		pc++
	}
}

func (evm *EVM) chargeMemory(contract *Contract, mem *Memory, offset, size uint64) bool {
	if size == 0 {
		return true
	}
	newWords := wordsFor(offset, size)
	oldWords := wordsFor(0, uint64(mem.Len()))
	if newWords <= oldWords {
		return true
	}
	cost := memoryGasCost(newWords) - memoryGasCost(oldWords)
	if !contract.useGas(cost) {
		return false
	}
	mem.resize(newWords * 32)
	return true
}

// execOne executes a single non-control-flow, non-push opcode. pc is
// advanced by the caller except for JUMP/JUMPI, which set it directly.
func (evm *EVM) execOne(c *Contract, stack *Stack, mem *Memory, op OpCode, pc *uint64, static bool) error {
	need := func(n int) bool { return stack.len() >= n }

	switch {
	case op == ADD:
		if !need(2) || !c.useGas(GasFastestStep) {
			return stackOrGasErr(stack, 2)
		}
		a, b := stack.pop(), stack.pop()
		a.Add(&a, &b)
		stack.push(&a)
	case op == MUL:
		if !need(2) || !c.useGas(GasFastStep) {
			return stackOrGasErr(stack, 2)
		}
		a, b := stack.pop(), stack.pop()
		a.Mul(&a, &b)
		stack.push(&a)
	case op == SUB:
		if !need(2) || !c.useGas(GasFastestStep) {
			return stackOrGasErr(stack, 2)
		}
		a, b := stack.pop(), stack.pop()
		a.Sub(&a, &b)
		stack.push(&a)
	case op == DIV:
		if !need(2) || !c.useGas(GasFastStep) {
			return stackOrGasErr(stack, 2)
		}
		a, b := stack.pop(), stack.pop()
		if b.IsZero() {
			a.Clear()
		} else {
			a.Div(&a, &b)
		}
		stack.push(&a)
	case op == MOD:
		if !need(2) || !c.useGas(GasFastStep) {
			return stackOrGasErr(stack, 2)
		}
		a, b := stack.pop(), stack.pop()
		if b.IsZero() {
			a.Clear()
		} else {
			a.Mod(&a, &b)
		}
		stack.push(&a)
	case op == LT:
		if !need(2) || !c.useGas(GasFastestStep) {
			return stackOrGasErr(stack, 2)
		}
		a, b := stack.pop(), stack.pop()
		stack.push(boolU256(a.Lt(&b)))
	case op == GT:
		if !need(2) || !c.useGas(GasFastestStep) {
			return stackOrGasErr(stack, 2)
		}
		a, b := stack.pop(), stack.pop()
		stack.push(boolU256(a.Gt(&b)))
	case op == EQ:
		if !need(2) || !c.useGas(GasFastestStep) {
			return stackOrGasErr(stack, 2)
		}
		a, b := stack.pop(), stack.pop()
		stack.push(boolU256(a.Eq(&b)))
	case op == ISZERO:
		if !need(1) || !c.useGas(GasFastestStep) {
			return stackOrGasErr(stack, 1)
		}
		a := stack.pop()
		stack.push(boolU256(a.IsZero()))
	case op == AND:
		if !need(2) || !c.useGas(GasFastestStep) {
			return stackOrGasErr(stack, 2)
		}
		a, b := stack.pop(), stack.pop()
		a.And(&a, &b)
		stack.push(&a)
	case op == OR:
		if !need(2) || !c.useGas(GasFastestStep) {
			return stackOrGasErr(stack, 2)
		}
		a, b := stack.pop(), stack.pop()
		a.Or(&a, &b)
		stack.push(&a)
	case op == XOR:
		if !need(2) || !c.useGas(GasFastestStep) {
			return stackOrGasErr(stack, 2)
		}
		a, b := stack.pop(), stack.pop()
		a.Xor(&a, &b)
		stack.push(&a)
	case op == NOT:
		if !need(1) || !c.useGas(GasFastestStep) {
			return stackOrGasErr(stack, 1)
		}
		a := stack.pop()
		a.Not(&a)
		stack.push(&a)
	case op == POP:
		if !need(1) || !c.useGas(GasQuickStep) {
			return stackOrGasErr(stack, 1)
		}
		stack.pop()
	case op == MLOAD:
		if !need(1) || !c.useGas(GasFastestStep) {
			return stackOrGasErr(stack, 1)
		}
		offset := stack.pop()
		off := offset.Uint64()
		if !evm.chargeMemory(c, mem, off, 32) {
			return ErrOutOfGas
		}
		var v uint256.Int
		v.SetBytes(mem.Get(off, 32))
		stack.push(&v)
	case op == MSTORE:
		if !need(2) || !c.useGas(GasFastestStep) {
			return stackOrGasErr(stack, 2)
		}
		offset, val := stack.pop(), stack.pop()
		off := offset.Uint64()
		if !evm.chargeMemory(c, mem, off, 32) {
			return ErrOutOfGas
		}
		b := val.Bytes32()
		mem.Set32(off, b[:])
	case op == MSTORE8:
		if !need(2) || !c.useGas(GasFastestStep) {
			return stackOrGasErr(stack, 2)
		}
		offset, val := stack.pop(), stack.pop()
		off := offset.Uint64()
		if !evm.chargeMemory(c, mem, off, 1) {
			return ErrOutOfGas
		}
		mem.Set(off, 1, []byte{byte(val.Uint64())})
	case op == SLOAD:
		if !need(1) {
			return ErrStackUnderflow
		}
		key := stack.pop()
		addr := c.Address
		keyHash := types.Hash(key.Bytes32())
		warm := evm.chargeSloadGas(c, addr, keyHash)
		if !warm {
			return ErrOutOfGas
		}
		v := evm.StateDB.GetState(addr, keyHash)
		var out uint256.Int
		out.SetBytes(v.Bytes())
		stack.push(&out)
	case op == SSTORE:
		if static {
			return ErrWriteProtection
		}
		if !need(2) {
			return ErrStackUnderflow
		}
		key, val := stack.pop(), stack.pop()
		addr := c.Address
		keyHash := types.Hash(key.Bytes32())
		valHash := types.Hash(val.Bytes32())
		if !evm.chargeSstoreGas(c, addr, keyHash, valHash) {
			return ErrOutOfGas
		}
		evm.StateDB.SetState(addr, keyHash, valHash)
	case op == TLOAD:
		if !need(1) || !c.useGas(WarmStorageReadCost) {
			return stackOrGasErr(stack, 1)
		}
		key := stack.pop()
		v := evm.StateDB.GetTransientState(c.Address, types.Hash(key.Bytes32()))
		var out uint256.Int
		out.SetBytes(v.Bytes())
		stack.push(&out)
	case op == TSTORE:
		if static {
			return ErrWriteProtection
		}
		if !need(2) || !c.useGas(WarmStorageReadCost) {
			return stackOrGasErr(stack, 2)
		}
		key, val := stack.pop(), stack.pop()
		evm.StateDB.SetTransientState(c.Address, types.Hash(key.Bytes32()), types.Hash(val.Bytes32()))
	case op == JUMP:
		if !need(1) || !c.useGas(GasMidStep) {
			return stackOrGasErr(stack, 1)
		}
		dest := stack.pop()
		if !c.validJumpDest(dest.Uint64()) {
			return ErrInvalidJump
		}
		*pc = dest.Uint64()
		return nil
	case op == JUMPI:
		if !need(2) || !c.useGas(GasSlowStep) {
			return stackOrGasErr(stack, 2)
		}
		dest, cond := stack.pop(), stack.pop()
		if cond.IsZero() {
			*pc++
			return nil
		}
		if !c.validJumpDest(dest.Uint64()) {
			return ErrInvalidJump
		}
		*pc = dest.Uint64()
		return nil
	case op == MSIZE:
		if !c.useGas(GasQuickStep) {
			return ErrOutOfGas
		}
		var v uint256.Int
		v.SetUint64(uint64(mem.Len()))
		stack.push(&v)
	case op == ADDRESS:
		if !c.useGas(GasQuickStep) {
			return ErrOutOfGas
		}
		var v uint256.Int
		v.SetBytes(c.Address.Bytes())
		stack.push(&v)
	case op == CALLER:
		if !c.useGas(GasQuickStep) {
			return ErrOutOfGas
		}
		var v uint256.Int
		v.SetBytes(c.Caller.Bytes())
		stack.push(&v)
	case op == CALLVALUE:
		if !c.useGas(GasQuickStep) {
			return ErrOutOfGas
		}
		var v uint256.Int
		if c.Value != nil {
			v.SetFromBig(c.Value)
		}
		stack.push(&v)
	case op == BALANCE:
		if !need(1) || !c.useGas(ColdAccountAccessCost) {
			return stackOrGasErr(stack, 1)
		}
		addrWord := stack.pop()
		addr := types.BytesToAddress(addrWord.Bytes())
		var v uint256.Int
		v.SetFromBig(evm.StateDB.GetBalance(addr))
		stack.push(&v)
	case op == CALLDATASIZE:
		if !c.useGas(GasQuickStep) {
			return ErrOutOfGas
		}
		var v uint256.Int
		v.SetUint64(uint64(len(c.Input)))
		stack.push(&v)
	case op == CALLDATALOAD:
		if !need(1) || !c.useGas(GasFastestStep) {
			return stackOrGasErr(stack, 1)
		}
		offset := stack.pop()
		off := offset.Uint64()
		var buf [32]byte
		if off < uint64(len(c.Input)) {
			copy(buf[:], c.Input[off:])
		}
		var v uint256.Int
		v.SetBytes(buf[:])
		stack.push(&v)
	case op == CALLDATACOPY:
		if !need(3) || !c.useGas(GasFastestStep) {
			return stackOrGasErr(stack, 3)
		}
		destOff, srcOff, size := stack.pop(), stack.pop(), stack.pop()
		if !evm.chargeMemory(c, mem, destOff.Uint64(), size.Uint64()) {
			return ErrOutOfGas
		}
		src := srcOff.Uint64()
		n := size.Uint64()
		buf := make([]byte, n)
		if src < uint64(len(c.Input)) {
			copy(buf, c.Input[src:])
		}
		mem.Set(destOff.Uint64(), n, buf)
	case op >= DUP1 && op <= DUP16:
		n := int(op-DUP1) + 1
		if stack.len() < n || !c.useGas(GasFastestStep) {
			return stackOrGasErr(stack, n)
		}
		stack.dup(n)
	case op >= SWAP1 && op <= SWAP16:
		n := int(op-SWAP1) + 1
		if stack.len() < n+1 || !c.useGas(GasFastestStep) {
			return stackOrGasErr(stack, n+1)
		}
		stack.swap(n)
	case op >= LOG0 && op <= LOG4:
		if static {
			return ErrWriteProtection
		}
		n := int(op - LOG0)
		if !need(2 + n) {
			return ErrStackUnderflow
		}
		offset, size := stack.pop(), stack.pop()
		if !evm.chargeMemory(c, mem, offset.Uint64(), size.Uint64()) {
			return ErrOutOfGas
		}
		cost := LogGas + uint64(n)*LogTopicGas + size.Uint64()*LogDataGas
		if !c.useGas(cost) {
			return ErrOutOfGas
		}
		topics := make([]types.Hash, n)
		for i := 0; i < n; i++ {
			t := stack.pop()
			topics[i] = types.Hash(t.Bytes32())
		}
		data := mem.Get(offset.Uint64(), size.Uint64())
		evm.collectedLogs = append(evm.collectedLogs, types.Log{Address: c.Address, Topics: topics, Data: data})
	case op == CREATE:
		if static {
			return ErrWriteProtection
		}
		if !need(3) {
			return ErrStackUnderflow
		}
		value, offset, size := stack.pop(), stack.pop(), stack.pop()
		if !evm.chargeMemory(c, mem, offset.Uint64(), size.Uint64()) {
			return ErrOutOfGas
		}
		if !c.useGas(CreateGas) {
			return ErrOutOfGas
		}
		initCode := mem.Get(offset.Uint64(), size.Uint64())
		childGas := c.Gas
		addr, _, gasLeft, cerr := evm.Create(c.Address, initCode, childGas, value.ToBig())
		c.Gas = gasLeft
		pushCreateResult(stack, addr, cerr)
	case op == CREATE2:
		if static {
			return ErrWriteProtection
		}
		if !need(4) {
			return ErrStackUnderflow
		}
		value, offset, size, salt := stack.pop(), stack.pop(), stack.pop(), stack.pop()
		if !evm.chargeMemory(c, mem, offset.Uint64(), size.Uint64()) {
			return ErrOutOfGas
		}
		if !c.useGas(CreateGas) {
			return ErrOutOfGas
		}
		initCode := mem.Get(offset.Uint64(), size.Uint64())
		childGas := c.Gas
		saltHash := types.Hash(salt.Bytes32())
		addr, _, gasLeft, cerr := evm.Create2(c.Address, initCode, childGas, value.ToBig(), saltHash)
		c.Gas = gasLeft
		pushCreateResult(stack, addr, cerr)
	case op == CALL:
		if !need(7) {
			return ErrStackUnderflow
		}
		gasWord, addrWord, value := stack.pop(), stack.pop(), stack.pop()
		inOff, inSize, outOff, outSize := stack.pop(), stack.pop(), stack.pop(), stack.pop()
		if !evm.chargeMemory(c, mem, inOff.Uint64(), inSize.Uint64()) {
			return ErrOutOfGas
		}
		if !evm.chargeMemory(c, mem, outOff.Uint64(), outSize.Uint64()) {
			return ErrOutOfGas
		}
		addr := types.BytesToAddress(addrWord.Bytes())
		valBig := value.ToBig()
		cost := ColdAccountAccessCost
		if valBig.Sign() != 0 {
			cost += CallValueTransferGas
			if !static && !evm.StateDB.Exist(addr) {
				cost += CallNewAccountGas
			}
		}
		if !c.useGas(cost) {
			return ErrOutOfGas
		}
		input := mem.Get(inOff.Uint64(), inSize.Uint64())
		callGas := gasWord.Uint64()
		if callGas > c.Gas-c.Gas/64 {
			callGas = c.Gas - c.Gas/64 // EIP-150 63/64 rule
		}
		if valBig.Sign() != 0 {
			callGas += CallStipend
		}
		if callGas > c.Gas {
			callGas = c.Gas
		}
		c.Gas -= callGas
		ret, gasLeft, cerr := evm.Call(c.Address, addr, input, callGas, valBig, static)
		c.Gas += gasLeft
		mem.Set(outOff.Uint64(), minU64(outSize.Uint64(), uint64(len(ret))), ret)
		stack.push(boolU256(cerr == nil))
	case op == SELFDESTRUCT:
		if static {
			return ErrWriteProtection
		}
		if !need(1) {
			return ErrStackUnderflow
		}
		beneficiary := stack.pop()
		addr := types.BytesToAddress(beneficiary.Bytes())
		balance := evm.StateDB.GetBalance(c.Address)
		evm.StateDB.AddBalance(addr, balance)
		evm.StateDB.SubBalance(c.Address, balance)
		evm.StateDB.SelfDestruct(c.Address)
		evm.selfDestructSet[c.Address] = struct{}{}
		return nil
	default:
		return ErrInvalidOpcode
	}
	return nil
}

func (evm *EVM) chargeSloadGas(c *Contract, addr types.Address, key types.Hash) bool {
	if !evm.Rules.IsBerlin {
		return c.useGas(GasSlowStep * 10)
	}
	_, warm := evm.StateDB.SlotInAccessList(addr, key)
	if warm {
		return c.useGas(WarmStorageReadCost)
	}
	evm.StateDB.AddSlotToAccessList(addr, key)
	return c.useGas(SloadGasCold)
}

func (evm *EVM) chargeSstoreGas(c *Contract, addr types.Address, key, value types.Hash) bool {
	current := evm.StateDB.GetState(addr, key)

	// This reference interpreter charges a flat SstoreResetGas for every
	// SSTORE, including one that leaves the slot unchanged, rather than the
	// full EIP-2200 net-gas table. Setting a zero slot to non-zero is
	// therefore charged less than SstoreSetGas, and no cold-slot surcharge
	// is added.
	if !c.useGas(SstoreResetGas) {
		return false
	}
	if current == value {
		return true
	}
	if !current.IsZero() && value.IsZero() {
		evm.refundDelta += int64(SstoreClearRefund)
	}
	return true
}

func pushCreateResult(stack *Stack, addr types.Address, err error) {
	if err != nil {
		stack.push(new(uint256.Int))
		return
	}
	var v uint256.Int
	v.SetBytes(addr.Bytes())
	stack.push(&v)
}

func boolU256(b bool) *uint256.Int {
	v := new(uint256.Int)
	if b {
		v.SetOne()
	}
	return v
}

func minU64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

func stackOrGasErr(stack *Stack, need int) error {
	if stack.len() < need {
		return ErrStackUnderflow
	}
	return ErrOutOfGas
}
