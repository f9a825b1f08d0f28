package types

import (
	"cosmossdk.io/errors"
)

// Module error codes
var (
	ErrInvalidSignature    = errors.Register(ModuleName, 1, "invalid order signature")
	ErrOrderExpired        = errors.Register(ModuleName, 2, "order expired")
	ErrExceedsRemaining    = errors.Register(ModuleName, 3, "amount exceeds remaining order capacity")
	ErrInsufficientPayment = errors.Register(ModuleName, 4, "insufficient payment")
	ErrOrderCancelled      = errors.Register(ModuleName, 5, "order cancelled")
	ErrAlreadyCancelled    = errors.Register(ModuleName, 6, "order already cancelled")
	ErrInvalidOrder        = errors.Register(ModuleName, 7, "invalid order")
	ErrInvalidRequest      = errors.Register(ModuleName, 8, "invalid settlement request")
	ErrPriceMismatch       = errors.Register(ModuleName, 9, "settlement price outside order limits")
	ErrSelfTrade           = errors.Register(ModuleName, 10, "buyer and seller are the same owner")
	ErrInvalidParams       = errors.Register(ModuleName, 11, "invalid params")
	ErrSettlementNotFound  = errors.Register(ModuleName, 12, "settlement not found")
	ErrInvalidAction       = errors.Register(ModuleName, 13, "invalid action")
	ErrActionExpired       = errors.Register(ModuleName, 14, "action expired")
	ErrActionReplayed      = errors.Register(ModuleName, 15, "action already executed")
)
