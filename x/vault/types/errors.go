package types

import (
	"cosmossdk.io/errors"
)

// Module error codes
var (
	ErrInsufficientFunds = errors.Register(ModuleName, 1, "insufficient funds")
	ErrInvalidCoin       = errors.Register(ModuleName, 2, "invalid coin")
	ErrInvalidAddress    = errors.Register(ModuleName, 3, "invalid address")
)
