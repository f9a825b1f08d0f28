package types

import (
	vaulttypes "github.com/openalpha/fracshare/x/vault/types"
)

// Module name and store key
const (
	ModuleName = "shares"
	StoreKey   = ModuleName
)

// Store key prefixes
var (
	PoolKeyPrefix       = []byte{0x01}
	BalanceKeyPrefix    = []byte{0x02}
	BaselineKeyPrefix   = []byte{0x03}
	AssetIndexKeyPrefix = []byte{0x04}
	PoolSequenceKey     = []byte{0x05}
)

// PoolKey returns the store key of a pool
func PoolKey(poolID string) []byte {
	return append(append([]byte{}, PoolKeyPrefix...), poolID...)
}

// AssetIndexKey returns the key mapping a backing asset to its active pool
func AssetIndexKey(assetRef string) []byte {
	return append(append([]byte{}, AssetIndexKeyPrefix...), assetRef...)
}

// HolderPrefix returns the prefix of all per-holder records of a pool
// under the given record prefix (balances or baselines).
func HolderPrefix(recordPrefix []byte, poolID string) []byte {
	key := make([]byte, 0, len(recordPrefix)+1+len(poolID))
	key = append(key, recordPrefix...)
	key = append(key, byte(len(poolID)))
	key = append(key, poolID...)
	return key
}

// HolderKey returns the key of a per-holder record of a pool
func HolderKey(recordPrefix []byte, poolID, holder string) []byte {
	return append(HolderPrefix(recordPrefix, poolID), holder...)
}

// EscrowAddress is the vault account holding a pool's undistributed
// and unclaimed dividends.
func EscrowAddress(poolID string) string {
	return vaulttypes.ModuleAddress(ModuleName + "/" + poolID)
}
