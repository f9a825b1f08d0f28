package keeper

import (
	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/openalpha/fracshare/x/shares/types"
	vaulttypes "github.com/openalpha/fracshare/x/vault/types"
)

// CreatePool fractionalizes assetRef into totalShares shares, all minted
// to creator. An asset can back at most one active pool.
func (k *Keeper) CreatePool(ctx sdk.Context, creator, assetRef string, totalShares math.Int, denom string) (*types.Pool, error) {
	if err := vaulttypes.ValidateAccountAddress(creator); err != nil {
		return nil, types.ErrInvalidHolder.Wrap(err.Error())
	}
	if assetRef == "" {
		return nil, types.ErrInvalidAsset
	}
	if err := sdk.ValidateDenom(denom); err != nil {
		return nil, types.ErrInvalidDenom.Wrap(err.Error())
	}
	if totalShares.IsNil() || !totalShares.IsPositive() {
		return nil, types.ErrInvalidAmount.Wrap("total shares must be positive")
	}
	if !vaulttypes.AmountInRange(totalShares) {
		return nil, types.ErrInvalidAmount.Wrapf("total shares exceed %d bits", vaulttypes.MaxAmountBits)
	}
	if existing, ok := k.GetPoolByAsset(ctx, assetRef); ok {
		return nil, types.ErrAssetAlreadyPooled.Wrapf("%s backs %s", assetRef, existing)
	}

	poolID := k.nextPoolID(ctx)
	pool := types.NewPool(poolID, assetRef, creator, denom, totalShares, ctx.BlockTime().Unix())
	k.SetPool(ctx, pool)
	k.GetStore(ctx).Set(types.AssetIndexKey(assetRef), []byte(poolID))
	k.setBalance(ctx, poolID, creator, totalShares)

	ctx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeCreatePool,
			sdk.NewAttribute(types.AttributeKeyPoolID, poolID),
			sdk.NewAttribute(types.AttributeKeyAssetRef, assetRef),
			sdk.NewAttribute(types.AttributeKeyCreator, creator),
			sdk.NewAttribute(types.AttributeKeyShares, totalShares.String()),
		),
	)

	k.Logger().Info("pool created",
		"pool_id", poolID,
		"asset_ref", assetRef,
		"total_shares", totalShares.String(),
	)
	return pool, nil
}

// Recombine burns every share of a pool held by its sole owner, pays the
// owner everything left in the pool escrow and releases the backing asset.
func (k *Keeper) Recombine(ctx sdk.Context, poolID, holder string) (string, error) {
	if err := vaulttypes.ValidateAccountAddress(holder); err != nil {
		return "", types.ErrInvalidHolder.Wrap(err.Error())
	}
	pool, err := k.mustGetPool(ctx, poolID)
	if err != nil {
		return "", err
	}
	if !pool.Active {
		return "", types.ErrPoolInactive.Wrapf("pool %s", poolID)
	}
	balance := k.GetBalance(ctx, poolID, holder)
	if !balance.Equal(pool.TotalShares) {
		return "", types.ErrNotSoleOwner.Wrapf("%s holds %s of %s shares", holder, balance, pool.TotalShares)
	}

	// A zero-balance holder never keeps a claim, so the sole owner is
	// entitled to the whole escrow: their claimable plus rounding dust and
	// any undistributed forfeits.
	payout := pool.EscrowBalance()
	pool.TotalClaimed = pool.TotalClaimed.Add(payout)
	pool.Undistributed = math.ZeroInt()
	pool.ScaledRemainder = math.ZeroInt()
	pool.TotalShares = math.ZeroInt()
	pool.Active = false
	pool.ReleasedTo = holder
	pool.UpdatedAt = ctx.BlockTime().Unix()

	k.setBalance(ctx, poolID, holder, math.ZeroInt())
	k.setSettled(ctx, poolID, holder, math.ZeroInt())
	k.SetPool(ctx, pool)
	k.GetStore(ctx).Delete(types.AssetIndexKey(pool.AssetRef))

	if err := k.vaultKeeper.Send(ctx, types.EscrowAddress(poolID), holder, sdk.NewCoin(pool.DividendDenom, payout)); err != nil {
		return "", err
	}

	ctx.EventManager().EmitEvents(sdk.Events{
		sdk.NewEvent(
			types.EventTypeRecombine,
			sdk.NewAttribute(types.AttributeKeyPoolID, poolID),
			sdk.NewAttribute(types.AttributeKeyHolder, holder),
			sdk.NewAttribute(types.AttributeKeyShares, balance.String()),
			sdk.NewAttribute(types.AttributeKeyAmount, payout.String()),
		),
		sdk.NewEvent(
			types.EventTypeAssetReleased,
			sdk.NewAttribute(types.AttributeKeyPoolID, poolID),
			sdk.NewAttribute(types.AttributeKeyAssetRef, pool.AssetRef),
			sdk.NewAttribute(types.AttributeKeyReleasedTo, holder),
		),
	})

	k.Logger().Info("pool recombined",
		"pool_id", poolID,
		"asset_ref", pool.AssetRef,
		"released_to", holder,
		"payout", payout.String(),
	)
	return pool.AssetRef, nil
}
