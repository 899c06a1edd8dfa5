package types

import "github.com/ethereum/go-ethereum/crypto"

// Bloom is a fixed 3-hash/2048-bit filter over log addresses and topics,
// per the protocol's logsBloom encoding. A generic k-hash bloom filter
// library does not fit this fixed scheme, so it is implemented directly
// against the already-depended-upon Keccak256.
const bloomBitLength = BloomLength * 8

func CreateBloom(logs []Log) Bloom {
	var b Bloom
	for _, log := range logs {
		b.add(log.Address.Bytes())
		for _, topic := range log.Topics {
			b.add(topic.Bytes())
		}
	}
	return b
}

func (b *Bloom) add(data []byte) {
	h := crypto.Keccak256(data)
	for i := 0; i < 3; i++ {
		bit := (uint(h[i*2])<<8 | uint(h[i*2+1])) & (bloomBitLength - 1)
		b[BloomLength-1-bit/8] |= 1 << (bit % 8)
	}
}

// Merge ORs other into b, matching the block runner's cumulative bloom
// accumulation across receipts.
func (b *Bloom) Merge(other Bloom) {
	for i := range b {
		b[i] |= other[i]
	}
}

// IsZero reports whether no bit in the filter is set.
func (b Bloom) IsZero() bool {
	return b == Bloom{}
}

func BytesToBloom(b []byte) Bloom {
	var bloom Bloom
	copy(bloom[BloomLength-len(b):], b)
	return bloom
}
