package keeper

import (
	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/openalpha/fracshare/x/shares/types"
	vaulttypes "github.com/openalpha/fracshare/x/vault/types"
)

// TransferShares moves amount shares of a pool from one holder to another.
// Every transfer runs moveBalance and then adjustBaseline; there is no
// path that moves shares without the baseline adjustment.
func (k *Keeper) TransferShares(ctx sdk.Context, poolID, from, to string, amount math.Int) error {
	if amount.IsNil() || !amount.IsPositive() {
		return types.ErrInvalidAmount.Wrap("transfer must be positive")
	}
	if from == to {
		return types.ErrSelfTransfer
	}
	if err := vaulttypes.ValidateAccountAddress(from); err != nil {
		return types.ErrInvalidHolder.Wrap(err.Error())
	}
	if err := vaulttypes.ValidateAccountAddress(to); err != nil {
		return types.ErrInvalidHolder.Wrap(err.Error())
	}
	pool, err := k.mustGetPool(ctx, poolID)
	if err != nil {
		return err
	}
	if !pool.Active {
		return types.ErrPoolInactive.Wrapf("pool %s", poolID)
	}

	prevFrom, prevTo, err := k.moveBalance(ctx, poolID, from, to, amount)
	if err != nil {
		return err
	}
	forfeited := k.adjustBaseline(ctx, pool, from, to, prevFrom, prevTo, amount)

	if forfeited.IsPositive() {
		pool.Undistributed = pool.Undistributed.Add(forfeited)
		pool.UpdatedAt = ctx.BlockTime().Unix()
		k.SetPool(ctx, pool)
	}

	ctx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeTransfer,
			sdk.NewAttribute(types.AttributeKeyPoolID, poolID),
			sdk.NewAttribute(types.AttributeKeySender, from),
			sdk.NewAttribute(types.AttributeKeyRecipient, to),
			sdk.NewAttribute(types.AttributeKeyShares, amount.String()),
			sdk.NewAttribute(types.AttributeKeyForfeited, forfeited.String()),
		),
	)
	return nil
}

// moveBalance debits from and credits to, returning both pre-transfer
// balances.
func (k *Keeper) moveBalance(ctx sdk.Context, poolID, from, to string, amount math.Int) (math.Int, math.Int, error) {
	fromBalance := k.GetBalance(ctx, poolID, from)
	if fromBalance.LT(amount) {
		return math.Int{}, math.Int{}, types.ErrInsufficientBalance.Wrapf("%s holds %s, needs %s", from, fromBalance, amount)
	}
	toBalance := k.GetBalance(ctx, poolID, to)

	k.setBalance(ctx, poolID, from, fromBalance.Sub(amount))
	k.setBalance(ctx, poolID, to, toBalance.Add(amount))
	return fromBalance, toBalance, nil
}

// adjustBaseline is the transfer hook. The recipient's baseline grows by
// exactly the entitlement the incoming shares carry at the current CDPS,
// so their claim on past dividends is unchanged. The sender's baseline is
// only lowered to their new accrued figure when it would exceed it. The
// sender's lost claim is returned as forfeited.
func (k *Keeper) adjustBaseline(ctx sdk.Context, pool *types.Pool, from, to string, prevFrom, prevTo, amount math.Int) math.Int {
	poolID := pool.PoolID

	// recipient: delta = amount*CDPS/SCALE, computed as the difference of
	// floors so rounding never gives an existing holder an extra unit
	delta := pool.Accrued(prevTo.Add(amount)).Sub(pool.Accrued(prevTo))
	k.setSettled(ctx, poolID, to, k.GetSettled(ctx, poolID, to).Add(delta))

	// sender
	settled := k.GetSettled(ctx, poolID, from)
	before := pool.Claimable(prevFrom, settled)

	newBalance := prevFrom.Sub(amount)
	accrued := pool.Accrued(newBalance)
	if settled.GT(accrued) {
		settled = accrued
		k.setSettled(ctx, poolID, from, settled)
	}
	after := pool.Claimable(newBalance, settled)

	return before.Sub(after)
}
