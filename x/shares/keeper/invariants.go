package keeper

import (
	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/openalpha/fracshare/x/shares/types"
)

// PoolAccounting summarizes the dividend liabilities of a pool
type PoolAccounting struct {
	PoolID         string   `json:"pool_id"`
	Holders        int      `json:"holders"`
	SharesHeld     math.Int `json:"shares_held"`
	TotalShares    math.Int `json:"total_shares"`
	TotalDeposited math.Int `json:"total_deposited"`
	TotalClaimed   math.Int `json:"total_claimed"`
	Undistributed  math.Int `json:"undistributed"`
	Outstanding    math.Int `json:"outstanding"`
	Escrow         math.Int `json:"escrow"`
	// RoundingGap is deposited minus every liability: the dust lost to
	// per-holder floor division.
	RoundingGap math.Int `json:"rounding_gap"`
}

// GetPoolAccounting computes the accounting summary of a pool
func (k *Keeper) GetPoolAccounting(ctx sdk.Context, poolID string) (*PoolAccounting, error) {
	pool, err := k.mustGetPool(ctx, poolID)
	if err != nil {
		return nil, err
	}

	holders := k.GetHolders(ctx, poolID)
	held := math.ZeroInt()
	outstanding := math.ZeroInt()
	for _, h := range holders {
		held = held.Add(h.Balance)
		outstanding = outstanding.Add(h.Claimable)
	}

	liabilities := outstanding.Add(pool.TotalClaimed).Add(pool.Undistributed)
	return &PoolAccounting{
		PoolID:         poolID,
		Holders:        len(holders),
		SharesHeld:     held,
		TotalShares:    pool.TotalShares,
		TotalDeposited: pool.TotalDeposited,
		TotalClaimed:   pool.TotalClaimed,
		Undistributed:  pool.Undistributed,
		Outstanding:    outstanding,
		Escrow:         k.vaultKeeper.GetBalance(ctx, types.EscrowAddress(poolID), pool.DividendDenom),
		RoundingGap:    pool.TotalDeposited.Sub(liabilities),
	}, nil
}

// CheckPoolInvariants verifies the accounting of a pool:
//   - share balances sum to TotalShares
//   - no holder's baseline exceeds their accrued entitlement
//   - outstanding + claimed + undistributed never exceeds deposited
//   - the escrow holds exactly deposited minus claimed
func (k *Keeper) CheckPoolInvariants(ctx sdk.Context, poolID string) error {
	pool, err := k.mustGetPool(ctx, poolID)
	if err != nil {
		return err
	}

	for _, h := range k.GetHolders(ctx, poolID) {
		if accrued := pool.Accrued(h.Balance); h.Settled.GT(accrued) {
			return types.ErrInvariantBroken.Wrapf("%s settled %s exceeds accrued %s", h.Holder, h.Settled, accrued)
		}
	}

	acct, err := k.GetPoolAccounting(ctx, poolID)
	if err != nil {
		return err
	}
	if !acct.SharesHeld.Equal(pool.TotalShares) {
		return types.ErrInvariantBroken.Wrapf("shares held %s != total shares %s", acct.SharesHeld, pool.TotalShares)
	}
	if acct.RoundingGap.IsNegative() {
		return types.ErrInvariantBroken.Wrapf("liabilities exceed deposits by %s", acct.RoundingGap.Neg())
	}
	if !acct.Escrow.Equal(pool.EscrowBalance()) {
		return types.ErrInvariantBroken.Wrapf("escrow %s != deposited-claimed %s", acct.Escrow, pool.EscrowBalance())
	}
	return nil
}

// CheckAllInvariants runs CheckPoolInvariants over every pool
func (k *Keeper) CheckAllInvariants(ctx sdk.Context) error {
	for _, pool := range k.GetAllPools(ctx) {
		if err := k.CheckPoolInvariants(ctx, pool.PoolID); err != nil {
			return err
		}
	}
	return nil
}
