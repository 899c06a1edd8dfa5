package vm

import "github.com/ethrun/ethrun/core/types"

// MaxPrecompileAddress is the highest well-known precompile address (0x13,
// the point-evaluation precompile). Addresses 0x01 through this value are
// treated as precompiles for warm-access-list and empty-account-cleanup
// purposes; this reference interpreter does not execute any of them.
const MaxPrecompileAddress = 0x13

// PrecompileAddresses returns the well-known precompile addresses 0x01
// through MaxPrecompileAddress in ascending order.
func PrecompileAddresses() []types.Address {
	addrs := make([]types.Address, 0, MaxPrecompileAddress)
	for i := 1; i <= MaxPrecompileAddress; i++ {
		addrs = append(addrs, types.BytesToAddress([]byte{byte(i)}))
	}
	return addrs
}
