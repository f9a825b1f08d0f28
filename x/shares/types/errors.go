package types

import (
	"cosmossdk.io/errors"
)

// Module error codes
var (
	ErrPoolNotFound        = errors.Register(ModuleName, 1, "pool not found")
	ErrPoolInactive        = errors.Register(ModuleName, 2, "pool is not active")
	ErrZeroSupply          = errors.Register(ModuleName, 3, "pool has zero share supply")
	ErrNothingToClaim      = errors.Register(ModuleName, 4, "nothing to claim")
	ErrInsufficientBalance = errors.Register(ModuleName, 5, "insufficient share balance")
	ErrNotSoleOwner        = errors.Register(ModuleName, 6, "holder is not the sole owner")
	ErrInvalidAmount       = errors.Register(ModuleName, 7, "invalid amount")
	ErrInvalidHolder       = errors.Register(ModuleName, 8, "invalid holder")
	ErrSelfTransfer        = errors.Register(ModuleName, 9, "sender and recipient are the same")
	ErrAssetAlreadyPooled  = errors.Register(ModuleName, 10, "asset already backs an active pool")
	ErrInvalidAsset        = errors.Register(ModuleName, 11, "invalid asset reference")
	ErrInvalidDenom        = errors.Register(ModuleName, 12, "invalid dividend denom")

	// Invariant errors
	ErrInvariantBroken = errors.Register(ModuleName, 20, "pool accounting invariant broken")
)
