package types

import (
	"cosmossdk.io/math"
)

// Scale is the fixed-point scale of the cumulative dividend per share.
var Scale = math.NewIntWithDecimal(1, 18)

// Pool is a bundle of fractional shares backed by one indivisible asset.
//
// CDPS is the cumulative dividend per share, scaled by Scale. The
// remainder of every CDPS division is carried in ScaledRemainder so that
// rounding dust is folded into the next deposit instead of being lost.
// Undistributed holds entitlement forfeited by senders on transfer; it
// is distributed together with the next deposit.
type Pool struct {
	PoolID          string   `json:"pool_id"`
	AssetRef        string   `json:"asset_ref"`
	Creator         string   `json:"creator"`
	DividendDenom   string   `json:"dividend_denom"`
	TotalShares     math.Int `json:"total_shares"`
	CDPS            math.Int `json:"cdps"`
	ScaledRemainder math.Int `json:"scaled_remainder"`
	Undistributed   math.Int `json:"undistributed"`
	TotalDeposited  math.Int `json:"total_deposited"`
	TotalClaimed    math.Int `json:"total_claimed"`
	Active          bool     `json:"active"`
	ReleasedTo      string   `json:"released_to,omitempty"`
	CreatedAt       int64    `json:"created_at"`
	UpdatedAt       int64    `json:"updated_at"`
}

// NewPool creates an active pool with its full supply outstanding
func NewPool(poolID, assetRef, creator, denom string, totalShares math.Int, now int64) *Pool {
	return &Pool{
		PoolID:          poolID,
		AssetRef:        assetRef,
		Creator:         creator,
		DividendDenom:   denom,
		TotalShares:     totalShares,
		CDPS:            math.ZeroInt(),
		ScaledRemainder: math.ZeroInt(),
		Undistributed:   math.ZeroInt(),
		TotalDeposited:  math.ZeroInt(),
		TotalClaimed:    math.ZeroInt(),
		Active:          true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Accrued returns balance*CDPS/Scale, the entitlement a balance has
// accumulated since the pool was created.
func (p *Pool) Accrued(balance math.Int) math.Int {
	return AccruedAt(balance, p.CDPS)
}

// AccruedAt computes balance*cdps/Scale rounding down.
func AccruedAt(balance, cdps math.Int) math.Int {
	if balance.IsZero() || cdps.IsZero() {
		return math.ZeroInt()
	}
	return balance.Mul(cdps).Quo(Scale)
}

// Claimable returns accrued minus settled, floored at zero.
func (p *Pool) Claimable(balance, settled math.Int) math.Int {
	c := p.Accrued(balance).Sub(settled)
	if c.IsNegative() {
		return math.ZeroInt()
	}
	return c
}

// EscrowBalance is the value the pool escrow must hold: every deposit
// minus every payout.
func (p *Pool) EscrowBalance() math.Int {
	return p.TotalDeposited.Sub(p.TotalClaimed)
}

// Holding is a holder's position in a pool
type Holding struct {
	PoolID    string   `json:"pool_id"`
	Holder    string   `json:"holder"`
	Balance   math.Int `json:"balance"`
	Settled   math.Int `json:"settled"`
	Claimable math.Int `json:"claimable"`
}
