package types

import (
	"fmt"
	"strings"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
)

// Module name and store key
const (
	ModuleName = "vault"
	StoreKey   = ModuleName

	// MaxAmountBits bounds externally supplied amounts so that balances,
	// supplies and the fixed point products built on them stay well inside
	// the 256 bits math.Int allows.
	MaxAmountBits = 128

	modulePrefix = "module/"
)

// Store key prefixes
var (
	BalanceKeyPrefix = []byte{0x01}
	SupplyKeyPrefix  = []byte{0x02}
)

// Event types
const (
	EventTypeTransfer = "vault_transfer"
	EventTypeMint     = "vault_mint"

	AttributeKeySender    = "sender"
	AttributeKeyRecipient = "recipient"
	AttributeKeyAmount    = "amount"
)

// BalanceKey returns the store key for an (address, denom) balance.
// The address is length-prefixed so module addresses containing
// separators cannot collide with user addresses.
func BalanceKey(addr, denom string) []byte {
	key := make([]byte, 0, len(BalanceKeyPrefix)+1+len(addr)+len(denom))
	key = append(key, BalanceKeyPrefix...)
	key = append(key, byte(len(addr)))
	key = append(key, addr...)
	key = append(key, denom...)
	return key
}

// AddressBalancesPrefix returns the prefix for all balances of addr.
func AddressBalancesPrefix(addr string) []byte {
	key := make([]byte, 0, len(BalanceKeyPrefix)+1+len(addr))
	key = append(key, BalanceKeyPrefix...)
	key = append(key, byte(len(addr)))
	key = append(key, addr...)
	return key
}

// SupplyKey returns the store key for the total minted supply of denom.
func SupplyKey(denom string) []byte {
	return append(append([]byte{}, SupplyKeyPrefix...), denom...)
}

// ModuleAddress returns the escrow account owned by a module.
func ModuleAddress(name string) string {
	return fmt.Sprintf("%s%s", modulePrefix, name)
}

// IsModuleAddress reports whether addr is a module escrow account
func IsModuleAddress(addr string) bool {
	return strings.HasPrefix(addr, modulePrefix)
}

// ValidateAddress checks that an account identifier can be stored.
func ValidateAddress(addr string) error {
	if addr == "" {
		return ErrInvalidAddress
	}
	if len(addr) > 255 {
		return ErrInvalidAddress.Wrapf("address too long: %d bytes", len(addr))
	}
	return nil
}

// ValidateAccountAddress checks an address supplied from outside the
// ledger. It must be a bech32 account address; module accounts are only
// reachable through keeper-internal sends.
func ValidateAccountAddress(addr string) error {
	if IsModuleAddress(addr) {
		return ErrInvalidAddress.Wrapf("%s is a module account", addr)
	}
	if _, err := sdk.AccAddressFromBech32(addr); err != nil {
		return ErrInvalidAddress.Wrapf("%s: %s", addr, err)
	}
	return nil
}

// AmountInRange reports whether amt fits in MaxAmountBits
func AmountInRange(amt math.Int) bool {
	return amt.BigInt().BitLen() <= MaxAmountBits
}
