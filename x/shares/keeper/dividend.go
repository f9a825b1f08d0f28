package keeper

import (
	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/openalpha/fracshare/x/shares/types"
	vaulttypes "github.com/openalpha/fracshare/x/vault/types"
)

// DepositDividends moves amount from depositor into the pool escrow and
// advances the pool's CDPS. Entitlement forfeited on earlier transfers is
// distributed together with the deposit, and the division remainder is
// carried exactly into the next deposit.
func (k *Keeper) DepositDividends(ctx sdk.Context, depositor, poolID string, amount math.Int) (*types.Pool, error) {
	if err := vaulttypes.ValidateAccountAddress(depositor); err != nil {
		return nil, types.ErrInvalidHolder.Wrap(err.Error())
	}
	if amount.IsNil() || !amount.IsPositive() {
		return nil, types.ErrInvalidAmount.Wrap("deposit must be positive")
	}
	if !vaulttypes.AmountInRange(amount) {
		return nil, types.ErrInvalidAmount.Wrapf("deposit exceeds %d bits", vaulttypes.MaxAmountBits)
	}
	pool, err := k.mustGetPool(ctx, poolID)
	if err != nil {
		return nil, err
	}
	if !pool.Active {
		return nil, types.ErrPoolInactive.Wrapf("pool %s", poolID)
	}
	if !pool.TotalShares.IsPositive() {
		return nil, types.ErrZeroSupply.Wrapf("pool %s", poolID)
	}

	if err := k.vaultKeeper.Send(ctx, depositor, types.EscrowAddress(poolID), sdk.NewCoin(pool.DividendDenom, amount)); err != nil {
		return nil, err
	}

	distributable := amount.Add(pool.Undistributed)
	numerator := distributable.Mul(types.Scale).Add(pool.ScaledRemainder)
	pool.CDPS = pool.CDPS.Add(numerator.Quo(pool.TotalShares))
	pool.ScaledRemainder = numerator.Mod(pool.TotalShares)
	pool.Undistributed = math.ZeroInt()
	pool.TotalDeposited = pool.TotalDeposited.Add(amount)
	pool.UpdatedAt = ctx.BlockTime().Unix()
	k.SetPool(ctx, pool)

	ctx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeDeposit,
			sdk.NewAttribute(types.AttributeKeyPoolID, poolID),
			sdk.NewAttribute(types.AttributeKeyDepositor, depositor),
			sdk.NewAttribute(types.AttributeKeyAmount, amount.String()),
			sdk.NewAttribute(types.AttributeKeyCDPS, pool.CDPS.String()),
		),
	)

	k.Logger().Debug("dividends deposited",
		"pool_id", poolID,
		"amount", amount.String(),
		"cdps", pool.CDPS.String(),
	)
	return pool, nil
}

// Claimable returns what holder could claim from a pool right now
func (k *Keeper) Claimable(ctx sdk.Context, poolID, holder string) (math.Int, error) {
	pool, err := k.mustGetPool(ctx, poolID)
	if err != nil {
		return math.Int{}, err
	}
	return pool.Claimable(k.GetBalance(ctx, poolID, holder), k.GetSettled(ctx, poolID, holder)), nil
}

// Claim pays holder's outstanding entitlement out of the pool escrow.
// The baseline and pool totals are written before the payout.
func (k *Keeper) Claim(ctx sdk.Context, poolID, holder string) (math.Int, error) {
	if err := vaulttypes.ValidateAccountAddress(holder); err != nil {
		return math.Int{}, types.ErrInvalidHolder.Wrap(err.Error())
	}
	pool, err := k.mustGetPool(ctx, poolID)
	if err != nil {
		return math.Int{}, err
	}

	balance := k.GetBalance(ctx, poolID, holder)
	accrued := pool.Accrued(balance)
	claimable := accrued.Sub(k.GetSettled(ctx, poolID, holder))
	if !claimable.IsPositive() {
		return math.Int{}, types.ErrNothingToClaim.Wrapf("%s in %s", holder, poolID)
	}

	k.setSettled(ctx, poolID, holder, accrued)
	pool.TotalClaimed = pool.TotalClaimed.Add(claimable)
	pool.UpdatedAt = ctx.BlockTime().Unix()
	k.SetPool(ctx, pool)

	if err := k.vaultKeeper.Send(ctx, types.EscrowAddress(poolID), holder, sdk.NewCoin(pool.DividendDenom, claimable)); err != nil {
		return math.Int{}, err
	}

	ctx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeClaim,
			sdk.NewAttribute(types.AttributeKeyPoolID, poolID),
			sdk.NewAttribute(types.AttributeKeyHolder, holder),
			sdk.NewAttribute(types.AttributeKeyAmount, claimable.String()),
		),
	)
	return claimable, nil
}
