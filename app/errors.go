package app

import (
	"errors"

	errorsmod "cosmossdk.io/errors"

	"github.com/openalpha/fracshare/offchain/orderstore"
	settlementtypes "github.com/openalpha/fracshare/x/settlement/types"
	sharestypes "github.com/openalpha/fracshare/x/shares/types"
	vaulttypes "github.com/openalpha/fracshare/x/vault/types"
)

// ErrPanic wraps a panic recovered while executing an operation. The
// operation's branch is discarded.
var ErrPanic = errorsmod.Register(Name, 1, "operation panicked")

// Kind classifies an error so a caller can decide whether to re-sign,
// re-fetch or abandon.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuthorization
	KindState
	KindFunds
	KindReplay
	KindNotFound
)

// String returns the name of the kind
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthorization:
		return "authorization"
	case KindState:
		return "state"
	case KindFunds:
		return "funds"
	case KindReplay:
		return "replay"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

var kinds = []struct {
	kind Kind
	errs []error
}{
	{KindValidation, []error{
		sharestypes.ErrInvalidAmount,
		sharestypes.ErrInvalidHolder,
		sharestypes.ErrSelfTransfer,
		sharestypes.ErrInvalidAsset,
		sharestypes.ErrInvalidDenom,
		settlementtypes.ErrInvalidOrder,
		settlementtypes.ErrInvalidRequest,
		settlementtypes.ErrPriceMismatch,
		settlementtypes.ErrSelfTrade,
		settlementtypes.ErrInvalidParams,
		settlementtypes.ErrInvalidAction,
		vaulttypes.ErrInvalidCoin,
		vaulttypes.ErrInvalidAddress,
		orderstore.ErrDuplicateOrder,
	}},
	{KindAuthorization, []error{
		settlementtypes.ErrInvalidSignature,
		sharestypes.ErrNotSoleOwner,
	}},
	{KindState, []error{
		sharestypes.ErrPoolInactive,
		sharestypes.ErrZeroSupply,
		sharestypes.ErrNothingToClaim,
		sharestypes.ErrAssetAlreadyPooled,
		settlementtypes.ErrOrderExpired,
		settlementtypes.ErrOrderCancelled,
		settlementtypes.ErrAlreadyCancelled,
		settlementtypes.ErrActionExpired,
		orderstore.ErrOrderClosed,
		orderstore.ErrMatchNotPending,
		orderstore.ErrInsufficientRemaining,
	}},
	{KindFunds, []error{
		vaulttypes.ErrInsufficientFunds,
		settlementtypes.ErrInsufficientPayment,
		sharestypes.ErrInsufficientBalance,
	}},
	{KindReplay, []error{
		settlementtypes.ErrExceedsRemaining,
		settlementtypes.ErrActionReplayed,
	}},
	{KindNotFound, []error{
		sharestypes.ErrPoolNotFound,
		settlementtypes.ErrSettlementNotFound,
		orderstore.ErrOrderNotFound,
		orderstore.ErrMatchNotFound,
	}},
}

// KindOf classifies err. Unknown errors are internal.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	for _, group := range kinds {
		for _, target := range group.errs {
			if errors.Is(err, target) {
				return group.kind
			}
		}
	}
	return KindInternal
}
