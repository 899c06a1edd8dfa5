package state

import (
	"encoding/binary"
	"math/big"

	"github.com/VictoriaMetrics/fastcache"
	"github.com/ethrun/ethrun/core/types"
)

// accountCache is a bounded read-through cache of account records in
// front of the account map, for workloads that repeatedly re-read hot
// addresses (e.g. the coinbase, a popular contract) within a block.
// Writes always go through the backing map directly; the cache only
// short-circuits reads, and is invalidated on every write to the address
// it covers, so it never serves stale data.
type accountCache struct {
	cache *fastcache.Cache
}

func newAccountCache(maxBytes int) *accountCache {
	return &accountCache{cache: fastcache.New(maxBytes)}
}

func (c *accountCache) get(addr types.Address) (types.Account, bool) {
	buf, ok := c.cache.HasGet(nil, addr.Bytes())
	if !ok {
		return types.Account{}, false
	}
	return decodeAccount(buf), true
}

func (c *accountCache) set(addr types.Address, acct types.Account) {
	c.cache.Set(addr.Bytes(), encodeAccount(acct))
}

func (c *accountCache) invalidate(addr types.Address) {
	c.cache.Del(addr.Bytes())
}

func (c *accountCache) reset() {
	c.cache.Reset()
}

// encodeAccount/decodeAccount use a small fixed layout rather than RLP:
// this cache is a local performance aid only, never part of consensus
// state, so its wire format can be whatever is cheapest to (de)serialize.
func encodeAccount(a types.Account) []byte {
	buf := make([]byte, 8+32+32+32)
	binary.BigEndian.PutUint64(buf[0:8], a.Nonce)
	if a.Balance != nil {
		a.Balance.FillBytes(buf[8:40])
	}
	copy(buf[40:72], a.Root.Bytes())
	copy(buf[72:104], a.CodeHash.Bytes())
	return buf
}

func decodeAccount(buf []byte) types.Account {
	if len(buf) < 104 {
		return types.NewAccount()
	}
	return types.Account{
		Nonce:    binary.BigEndian.Uint64(buf[0:8]),
		Balance:  new(big.Int).SetBytes(buf[8:40]),
		Root:     types.BytesToHash(buf[40:72]),
		CodeHash: types.BytesToHash(buf[72:104]),
	}
}
