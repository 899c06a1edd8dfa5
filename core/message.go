package core

import (
	"math/big"

	"github.com/ethrun/ethrun/core/types"
)

// Message is a transaction flattened into the form the interpreter
// consumes: sender already recovered, effective gas price already chosen.
type Message struct {
	From       types.Address
	To         *types.Address // nil for contract creation
	Nonce      uint64
	Value      *big.Int
	GasLimit   uint64
	GasPrice   *big.Int // effective gas price, already resolved from the tx's envelope
	GasFeeCap  *big.Int
	GasTipCap  *big.Int
	Data       []byte
	AccessList types.AccessList
	BlobHashes []types.Hash
	AuthList   []types.Authorization
	TxType     uint8

	// Depth and Static are set by the interpreter for nested calls; the
	// top-level message constructed by the transaction runner always has
	// Depth 0 and Static false.
	Depth  int
	Static bool
}

// TransactionToMessage converts a signed, priced transaction into a
// Message ready for execution. baseFee is nil when the fee-market
// amendment is inactive. Sender must already be recovered via
// tx.SetSender before calling this.
func TransactionToMessage(tx *types.Transaction, baseFee *big.Int) Message {
	msg := Message{
		Nonce:      tx.Nonce(),
		GasLimit:   tx.Gas(),
		GasFeeCap:  tx.GasFeeCap(),
		GasTipCap:  tx.GasTipCap(),
		Data:       tx.Data(),
		AccessList: tx.AccessList(),
		BlobHashes: tx.BlobHashes(),
		AuthList:   tx.AuthorizationList(),
		TxType:     tx.Type(),
	}
	if sender := tx.Sender(); sender != nil {
		msg.From = *sender
	}
	if tx.To() != nil {
		to := *tx.To()
		msg.To = &to
	}
	if tx.Value() != nil {
		msg.Value = new(big.Int).Set(tx.Value())
	} else {
		msg.Value = new(big.Int)
	}

	msg.GasPrice = new(big.Int).Set(tx.GasFeeCap())
	if baseFee != nil {
		tip := new(big.Int).Sub(tx.GasFeeCap(), baseFee)
		if tip.Cmp(tx.GasTipCap()) > 0 {
			tip = tx.GasTipCap()
		}
		msg.GasPrice = new(big.Int).Add(baseFee, tip)
	}
	return msg
}
