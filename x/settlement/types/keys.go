package types

import (
	vaulttypes "github.com/openalpha/fracshare/x/vault/types"
)

// Module name and store key
const (
	ModuleName = "settlement"
	StoreKey   = ModuleName
)

// Store key prefixes
var (
	ExecutedKeyPrefix     = []byte{0x01}
	CancellationKeyPrefix = []byte{0x02}
	SettlementKeyPrefix   = []byte{0x03}
	SettlementSequenceKey = []byte{0x04}
	ParamsKey             = []byte{0x05}
	ActionKeyPrefix       = []byte{0x06}
)

// ExecutedKey returns the key of an order's executed amount
func ExecutedKey(orderID string) []byte {
	return append(append([]byte{}, ExecutedKeyPrefix...), orderID...)
}

// CancellationKey returns the key of an order's cancellation record
func CancellationKey(orderID string) []byte {
	return append(append([]byte{}, CancellationKeyPrefix...), orderID...)
}

// ActionKey returns the key marking an executed action
func ActionKey(actionID string) []byte {
	return append(append([]byte{}, ActionKeyPrefix...), actionID...)
}

// SettlementKey returns the key of a settlement record. The sequence is
// big-endian so records iterate in settlement order.
func SettlementKey(seq []byte) []byte {
	return append(append([]byte{}, SettlementKeyPrefix...), seq...)
}

// EscrowAddress is the vault account that holds a buyer's payment for
// the duration of a settlement.
func EscrowAddress() string {
	return vaulttypes.ModuleAddress(ModuleName)
}
