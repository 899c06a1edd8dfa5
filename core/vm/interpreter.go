package vm

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/ethrun/ethrun/core/state"
	"github.com/ethrun/ethrun/core/types"
)

// Errors produced by the reference interpreter. ErrExecutionReverted
// carries return data (via MessageResult.ReturnData); every other error
// here results in an exceptional halt (all gas consumed).
var (
	ErrExecutionReverted        = errors.New("vm: execution reverted")
	ErrOutOfGas                 = errors.New("vm: out of gas")
	ErrDepth                    = errors.New("vm: max call depth exceeded")
	ErrInsufficientBalance      = errors.New("vm: insufficient balance for transfer")
	ErrInvalidJump              = errors.New("vm: invalid jump destination")
	ErrWriteProtection           = errors.New("vm: write protection (static call)")
	ErrMaxCodeSizeExceeded      = errors.New("vm: max code size exceeded")
	ErrMaxInitCodeSizeExceeded  = errors.New("vm: max init code size exceeded")
	ErrContractAddressCollision = errors.New("vm: contract address collision")
	ErrInvalidOpcode            = errors.New("vm: invalid opcode")
	ErrStackUnderflow           = errors.New("vm: stack underflow")
	ErrStackOverflow            = errors.New("vm: stack overflow")
)

const (
	maxCodeSize     = 24576
	maxInitCodeSize = 2 * maxCodeSize
	callCreateDepth = 1024
)

// EVM is the reference Interpreter implementation, grounded on the
// teacher's core/vm/interpreter.go EVM type: a block/tx context pair, a
// state interface, and the fork-gated Call/Create control flow.
type EVM struct {
	BlockContext
	TxContext
	Config

	StateDB state.StateDB
	Rules   ForkRules
	ChainID *big.Int

	depth int

	selfDestructSet map[types.Address]struct{}
	collectedLogs   []types.Log
	refundDelta     int64
}

func NewEVM(blockCtx BlockContext, txCtx TxContext, statedb state.StateDB, rules ForkRules, chainID *big.Int, cfg Config) *EVM {
	return &EVM{
		BlockContext: blockCtx,
		TxContext:    txCtx,
		Config:       cfg,
		StateDB:      statedb,
		Rules:        rules,
		ChainID:      chainID,
	}
}

var _ Interpreter = (*EVM)(nil)

// ExecuteMessage implements Interpreter. It is the sole entry point the
// transaction runner calls for a message's top-level call or create.
func (evm *EVM) ExecuteMessage(msg Message) MessageResult {
	evm.selfDestructSet = make(map[types.Address]struct{})
	evm.collectedLogs = nil
	evm.refundDelta = 0
	evm.depth = msg.Depth

	var (
		ret         []byte
		leftOverGas uint64
		err         error
		createdAddr *types.Address
	)

	if msg.To == nil {
		var addr types.Address
		addr, ret, leftOverGas, err = evm.Create(msg.From, msg.Data, msg.Gas, msg.Value)
		if err == nil {
			createdAddr = &addr
		}
	} else {
		ret, leftOverGas, err = evm.Call(msg.From, *msg.To, msg.Data, msg.Gas, msg.Value, msg.Static)
	}

	status := StatusSuccess
	switch {
	case err == nil:
	case errors.Is(err, ErrExecutionReverted):
		status = StatusRevert
	default:
		status = StatusExceptionalHalt
		leftOverGas = 0
		ret = nil
	}

	return MessageResult{
		Status:          status,
		GasLeft:         leftOverGas,
		ReturnData:      ret,
		Logs:            evm.collectedLogs,
		SelfDestructSet: evm.selfDestructSet,
		RefundDelta:     evm.refundDelta,
		CreatedAddress:  createdAddr,
	}
}

// Call executes a message call against an existing account's code.
func (evm *EVM) Call(caller, addr types.Address, input []byte, gas uint64, value *big.Int, static bool) (ret []byte, leftOverGas uint64, err error) {
	if evm.depth > callCreateDepth {
		return nil, gas, ErrDepth
	}
	if value != nil && value.Sign() != 0 {
		if static {
			return nil, gas, ErrWriteProtection
		}
		if evm.StateDB.GetBalance(caller).Cmp(value) < 0 {
			return nil, gas, ErrInsufficientBalance
		}
	}

	snapshot := evm.StateDB.Snapshot()

	if !evm.StateDB.Exist(addr) {
		if value == nil || value.Sign() == 0 {
			// Calling a non-existent account with no value is a no-op
			// that still succeeds, per the protocol's account-touch rules.
			return nil, gas, nil
		}
		evm.StateDB.CreateAccount(addr)
	}
	if value != nil && value.Sign() != 0 {
		evm.StateDB.SubBalance(caller, value)
		evm.StateDB.AddBalance(addr, value)
	}

	code := evm.StateDB.GetCode(addr)
	if len(code) == 0 {
		return nil, gas, nil
	}

	contract := newContract(caller, addr, value, code, input, gas)
	logMark := len(evm.collectedLogs)
	evm.depth++
	ret, err = evm.run(contract, static)
	evm.depth--

	if err != nil {
		_ = evm.StateDB.RevertToSnapshot(snapshot)
		evm.collectedLogs = evm.collectedLogs[:logMark]
		if !errors.Is(err, ErrExecutionReverted) {
			contract.Gas = 0
		}
	} else {
		evm.StateDB.CommitSnapshot(snapshot)
	}
	return ret, contract.Gas, err
}

// Create deploys new code at a deterministically derived address (CREATE
// semantics; CREATE2 is Create2 below).
func (evm *EVM) Create(caller types.Address, initCode []byte, gas uint64, value *big.Int) (types.Address, []byte, uint64, error) {
	nonce := evm.StateDB.GetNonce(caller)
	addr := createAddress(caller, nonce)
	return evm.createCommon(caller, addr, initCode, gas, value)
}

// Create2 deploys new code at an address derived from a salt, letting the
// caller predict the address before deployment.
func (evm *EVM) Create2(caller types.Address, initCode []byte, gas uint64, value *big.Int, salt types.Hash) (types.Address, []byte, uint64, error) {
	addr := create2Address(caller, salt, initCode)
	return evm.createCommon(caller, addr, initCode, gas, value)
}

func (evm *EVM) createCommon(caller, addr types.Address, initCode []byte, gas uint64, value *big.Int) (types.Address, []byte, uint64, error) {
	if evm.depth > callCreateDepth {
		return types.Address{}, nil, gas, ErrDepth
	}
	if len(initCode) > maxInitCodeSize {
		return types.Address{}, nil, gas, ErrMaxInitCodeSizeExceeded
	}
	if value != nil && value.Sign() != 0 && evm.StateDB.GetBalance(caller).Cmp(value) < 0 {
		return types.Address{}, nil, gas, ErrInsufficientBalance
	}
	if evm.StateDB.Exist(addr) && (evm.StateDB.GetCodeSize(addr) != 0 || evm.StateDB.GetNonce(addr) != 0) {
		return types.Address{}, nil, gas, ErrContractAddressCollision
	}

	snapshot := evm.StateDB.Snapshot()
	evm.StateDB.CreateAccount(addr)
	if evm.Rules.IsEIP158 {
		evm.StateDB.SetNonce(addr, 1)
	}
	if value != nil && value.Sign() != 0 {
		evm.StateDB.SubBalance(caller, value)
		evm.StateDB.AddBalance(addr, value)
	}

	contract := newContract(caller, addr, value, initCode, nil, gas)
	logMark := len(evm.collectedLogs)
	evm.depth++
	ret, err := evm.run(contract, false)
	evm.depth--

	if err == nil {
		if evm.Rules.IsEIP3541 && len(ret) > 0 && ret[0] == 0xEF {
			err = ErrInvalidOpcode
		} else if len(ret) > maxCodeSize {
			err = ErrMaxCodeSizeExceeded
		} else {
			depositCost := uint64(len(ret)) * CreateDataGas
			if !contract.useGas(depositCost) {
				err = ErrOutOfGas
			} else {
				evm.StateDB.SetCode(addr, ret)
			}
		}
	}

	if err != nil {
		_ = evm.StateDB.RevertToSnapshot(snapshot)
		evm.collectedLogs = evm.collectedLogs[:logMark]
		if !errors.Is(err, ErrExecutionReverted) {
			contract.Gas = 0
		}
		return addr, nil, contract.Gas, err
	}
	evm.StateDB.CommitSnapshot(snapshot)
	return addr, nil, contract.Gas, nil
}

// createAddress derives the CREATE address: keccak256(rlp([sender, nonce]))[12:].
func createAddress(sender types.Address, nonce uint64) types.Address {
	data := wrapRLPList(append(encodeRLPBytes(sender.Bytes()), encodeRLPUint(nonce)...))
	hash := crypto.Keccak256(data)
	return types.BytesToAddress(hash[12:])
}

// create2Address derives the CREATE2 address: keccak256(0xff ++ sender ++ salt ++ keccak256(initCode))[12:].
func create2Address(sender types.Address, salt types.Hash, initCode []byte) types.Address {
	codeHash := crypto.Keccak256(initCode)
	buf := make([]byte, 0, 1+20+32+32)
	buf = append(buf, 0xff)
	buf = append(buf, sender.Bytes()...)
	buf = append(buf, salt.Bytes()...)
	buf = append(buf, codeHash...)
	hash := crypto.Keccak256(buf)
	return types.BytesToAddress(hash[12:])
}

// --- minimal RLP helpers, sufficient for [address, nonce] encoding only ---

func encodeRLPBytes(b []byte) []byte {
	if len(b) == 1 && b[0] < 0x80 {
		return b
	}
	return append([]byte{byte(0x80 + len(b))}, b...)
}

func encodeRLPUint(v uint64) []byte {
	if v == 0 {
		return []byte{0x80}
	}
	return encodeRLPBytes(uintToMinBytes(v))
}

func uintToMinBytes(v uint64) []byte {
	var buf [8]byte
	for i := 7; i >= 0; i-- {
		buf[i] = byte(v)
		v >>= 8
	}
	i := 0
	for i < 7 && buf[i] == 0 {
		i++
	}
	return buf[i:]
}

func wrapRLPList(payload []byte) []byte {
	if len(payload) < 56 {
		return append([]byte{byte(0xc0 + len(payload))}, payload...)
	}
	lenBytes := uintToMinBytes(uint64(len(payload)))
	return append(append([]byte{byte(0xf7 + len(lenBytes))}, lenBytes...), payload...)
}
