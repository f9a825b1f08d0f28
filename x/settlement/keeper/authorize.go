package keeper

import (
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/openalpha/fracshare/x/settlement/types"
)

// Authorize checks a signed action and marks it executed. The caller runs
// the authorized operation in the same branch, so a failed operation also
// discards the mark and the action can be retried.
func (k *Keeper) Authorize(ctx sdk.Context, action types.Action, sig []byte) (string, error) {
	if err := action.Validate(); err != nil {
		return "", err
	}
	domain := k.Domain(ctx)
	if err := types.VerifyAction(action, domain, sig); err != nil {
		return "", err
	}
	actionID := action.ID(domain)
	if action.ExpiredAt(ctx.BlockTime().Unix()) {
		return actionID, types.ErrActionExpired.Wrapf("action %s", actionID)
	}

	store := k.GetStore(ctx)
	if store.Has(types.ActionKey(actionID)) {
		return actionID, types.ErrActionReplayed.Wrapf("action %s", actionID)
	}
	store.Set(types.ActionKey(actionID), []byte{0x01})

	ctx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeAction,
			sdk.NewAttribute(types.AttributeKeyActionID, actionID),
			sdk.NewAttribute(types.AttributeKeyActionType, string(action.Type)),
			sdk.NewAttribute(types.AttributeKeySigner, action.Signer),
		),
	)
	return actionID, nil
}

// IsActionExecuted reports whether an action id has been consumed
func (k *Keeper) IsActionExecuted(ctx sdk.Context, actionID string) bool {
	return k.GetStore(ctx).Has(types.ActionKey(actionID))
}
