package orderstore

import (
	"cosmossdk.io/errors"
)

// Codespace of the advisory order store errors
const Codespace = "orderstore"

var (
	ErrOrderNotFound         = errors.Register(Codespace, 1, "order not found")
	ErrDuplicateOrder        = errors.Register(Codespace, 2, "order already exists")
	ErrOrderClosed           = errors.Register(Codespace, 3, "order is not open")
	ErrMatchNotFound         = errors.Register(Codespace, 4, "match not found")
	ErrMatchNotPending       = errors.Register(Codespace, 5, "match is not pending")
	ErrInsufficientRemaining = errors.Register(Codespace, 6, "advisory remaining amount too small")
)
