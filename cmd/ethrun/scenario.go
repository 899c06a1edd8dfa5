package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethrun/ethrun/core"
	"github.com/ethrun/ethrun/core/types"
)

// scenarioFile is the CLI's input format: a genesis allocation plus an
// ordered list of blocks to build and insert. Addresses/hashes are hex
// strings here rather than the fixed-size array types core/types uses
// directly, since that package has no JSON tags of its own and keeping the
// wire format at this boundary is simpler than adding one there.
type scenarioFile struct {
	Genesis genesisSpec `json:"genesis"`
	Blocks  []blockSpec `json:"blocks"`
}

type genesisSpec struct {
	ChainID  uint64                      `json:"chainId"`
	GasLimit uint64                      `json:"gasLimit"`
	Alloc    map[string]genesisAllocSpec `json:"alloc"`
}

type genesisAllocSpec struct {
	Balance string `json:"balance"`
	Nonce   uint64 `json:"nonce"`
	Code    string `json:"code"`
}

type blockSpec struct {
	Coinbase     string   `json:"coinbase"`
	GasLimit     uint64   `json:"gasLimit"`
	Time         uint64   `json:"time"`
	BaseFee      string   `json:"baseFee"`
	Transactions []txSpec `json:"transactions"`
}

type txSpec struct {
	Type      uint8  `json:"type"`
	From      string `json:"from"`
	Nonce     uint64 `json:"nonce"`
	To        string `json:"to"`
	Value     string `json:"value"`
	Gas       uint64 `json:"gas"`
	GasPrice  string `json:"gasPrice"`
	GasFeeCap string `json:"gasFeeCap"`
	GasTipCap string `json:"gasTipCap"`
	Data      string `json:"data"`
}

func loadScenario(path string) (*scenarioFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario file: %w", err)
	}
	var s scenarioFile
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parsing scenario file: %w", err)
	}
	return &s, nil
}

func bigOrZero(s string) *big.Int {
	if s == "" {
		return new(big.Int)
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return new(big.Int)
	}
	return v
}

func hexBytes(s string) []byte {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s)%2 == 1 {
		s = "0" + s
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil
	}
	return b
}

// toGenesis builds a core.Genesis from the parsed scenario, rooted at
// TestConfig so every amendment is active from block zero: the CLI is a
// demonstration/testing harness, not a mainnet node.
func (s *scenarioFile) toGenesis() *core.Genesis {
	alloc := core.GenesisAlloc{}
	for addrHex, a := range s.Genesis.Alloc {
		alloc[types.HexToAddress(addrHex)] = core.GenesisAccount{
			Balance: bigOrZero(a.Balance),
			Nonce:   a.Nonce,
			Code:    hexBytes(a.Code),
		}
	}

	g := core.DefaultTestGenesisBlock(alloc)
	if s.Genesis.GasLimit > 0 {
		g.GasLimit = s.Genesis.GasLimit
	}
	if s.Genesis.ChainID > 0 {
		cfg := *core.TestConfig
		cfg.ChainID = new(big.Int).SetUint64(s.Genesis.ChainID)
		g.Config = &cfg
	}
	return g
}

// toTransaction builds a *types.Transaction with its sender set directly
// from the spec: this engine has no wallet/signing layer (see DESIGN.md's
// excluded dependencies), so there is no signature to recover it from.
func (t txSpec) toTransaction() (*types.Transaction, error) {
	from := types.HexToAddress(t.From)
	var to *types.Address
	if t.To != "" {
		addr := types.HexToAddress(t.To)
		to = &addr
	}

	var tx *types.Transaction
	switch t.Type {
	case types.LegacyTxType:
		tx = types.NewTx(&types.LegacyTx{
			Nonce:    t.Nonce,
			GasPrice: bigOrZero(t.GasPrice),
			Gas:      t.Gas,
			To:       to,
			Value:    bigOrZero(t.Value),
			Data:     hexBytes(t.Data),
		})
	case types.AccessListTxType:
		tx = types.NewTx(&types.AccessListTx{
			Nonce:    t.Nonce,
			GasPrice: bigOrZero(t.GasPrice),
			Gas:      t.Gas,
			To:       to,
			Value:    bigOrZero(t.Value),
			Data:     hexBytes(t.Data),
		})
	case types.DynamicFeeTxType:
		tx = types.NewTx(&types.DynamicFeeTx{
			Nonce:     t.Nonce,
			GasFeeCap: bigOrZero(t.GasFeeCap),
			GasTipCap: bigOrZero(t.GasTipCap),
			Gas:       t.Gas,
			To:        to,
			Value:     bigOrZero(t.Value),
			Data:      hexBytes(t.Data),
		})
	default:
		return nil, fmt.Errorf("unsupported transaction type %d", t.Type)
	}
	tx.SetSender(from)
	return tx, nil
}
