package app

import (
	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	settlementtypes "github.com/openalpha/fracshare/x/settlement/types"
	shareskeeper "github.com/openalpha/fracshare/x/shares/keeper"
	sharestypes "github.com/openalpha/fracshare/x/shares/types"
)

// Pool returns a pool by id
func (l *Ledger) Pool(poolID string) (*sharestypes.Pool, error) {
	var pool *sharestypes.Pool
	l.query(func(ctx sdk.Context) {
		pool = l.SharesKeeper.GetPool(ctx, poolID)
	})
	if pool == nil {
		return nil, sharestypes.ErrPoolNotFound.Wrapf("pool %s", poolID)
	}
	return pool, nil
}

// Pools returns every pool
func (l *Ledger) Pools() []*sharestypes.Pool {
	var pools []*sharestypes.Pool
	l.query(func(ctx sdk.Context) {
		pools = l.SharesKeeper.GetAllPools(ctx)
	})
	return pools
}

// Holding returns a holder's balance, baseline and claimable in a pool
func (l *Ledger) Holding(poolID, holder string) (*sharestypes.Holding, error) {
	var (
		holding *sharestypes.Holding
		err     error
	)
	l.query(func(ctx sdk.Context) {
		holding, err = l.SharesKeeper.GetHolding(ctx, poolID, holder)
	})
	return holding, err
}

// Holders returns every holder of a pool
func (l *Ledger) Holders(poolID string) []*sharestypes.Holding {
	var holders []*sharestypes.Holding
	l.query(func(ctx sdk.Context) {
		holders = l.SharesKeeper.GetHolders(ctx, poolID)
	})
	return holders
}

// PoolAccounting returns the dividend accounting summary of a pool
func (l *Ledger) PoolAccounting(poolID string) (*shareskeeper.PoolAccounting, error) {
	var (
		acct *shareskeeper.PoolAccounting
		err  error
	)
	l.query(func(ctx sdk.Context) {
		acct, err = l.SharesKeeper.GetPoolAccounting(ctx, poolID)
	})
	return acct, err
}

// CheckInvariants verifies the accounting of every pool
func (l *Ledger) CheckInvariants() error {
	var err error
	l.query(func(ctx sdk.Context) {
		err = l.SharesKeeper.CheckAllInvariants(ctx)
	})
	return err
}

// Balance returns the vault balance of an account
func (l *Ledger) Balance(addr, denom string) math.Int {
	var amt math.Int
	l.query(func(ctx sdk.Context) {
		amt = l.VaultKeeper.GetBalance(ctx, addr, denom)
	})
	return amt
}

// OrderState returns the authoritative fill state of an order
func (l *Ledger) OrderState(order settlementtypes.Order) *settlementtypes.OrderState {
	var state *settlementtypes.OrderState
	l.query(func(ctx sdk.Context) {
		state = l.SettlementKeeper.GetOrderState(ctx, order)
	})
	return state
}

// Executed returns the settled amount of an order
func (l *Ledger) Executed(orderID string) math.Int {
	var amt math.Int
	l.query(func(ctx sdk.Context) {
		amt = l.SettlementKeeper.GetExecuted(ctx, orderID)
	})
	return amt
}

// Settlement returns a settlement record by id
func (l *Ledger) Settlement(settlementID string) (*settlementtypes.Settlement, error) {
	var (
		s   *settlementtypes.Settlement
		err error
	)
	l.query(func(ctx sdk.Context) {
		s, err = l.SettlementKeeper.GetSettlement(ctx, settlementID)
	})
	return s, err
}

// RecentSettlements returns up to limit settlements, newest first
func (l *Ledger) RecentSettlements(limit int) []*settlementtypes.Settlement {
	var settlements []*settlementtypes.Settlement
	l.query(func(ctx sdk.Context) {
		settlements = l.SettlementKeeper.GetRecentSettlements(ctx, limit)
	})
	return settlements
}

// Params returns the settlement params
func (l *Ledger) Params() settlementtypes.Params {
	var params settlementtypes.Params
	l.query(func(ctx sdk.Context) {
		params = l.SettlementKeeper.GetParams(ctx)
	})
	return params
}

// Domain returns the order signing domain
func (l *Ledger) Domain() settlementtypes.Domain {
	return settlementtypes.NewDomain(l.chainID)
}
