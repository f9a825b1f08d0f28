package app

import (
	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/openalpha/fracshare/metrics"
	settlementtypes "github.com/openalpha/fracshare/x/settlement/types"
	sharestypes "github.com/openalpha/fracshare/x/shares/types"
)

// CreatePool fractionalizes an asset into a new pool owned by creator
func (l *Ledger) CreatePool(creator, assetRef string, totalShares math.Int, denom string) (*sharestypes.Pool, error) {
	var pool *sharestypes.Pool
	err := l.execute("create_pool", func(ctx sdk.Context) error {
		var err error
		pool, err = l.SharesKeeper.CreatePool(ctx, creator, assetRef, totalShares, denom)
		return err
	})
	return pool, err
}

// DepositDividends adds amount to a pool's distribution
func (l *Ledger) DepositDividends(depositor, poolID string, amount math.Int) (*sharestypes.Pool, error) {
	var pool *sharestypes.Pool
	err := l.execute("deposit_dividends", func(ctx sdk.Context) error {
		var err error
		pool, err = l.SharesKeeper.DepositDividends(ctx, depositor, poolID, amount)
		return err
	})
	if err == nil {
		metrics.GetCollector().RecordDeposit(poolID, approx(amount))
	}
	return pool, err
}

// Claim pays holder's outstanding dividends and returns the amount paid
func (l *Ledger) Claim(poolID, holder string) (math.Int, error) {
	var paid math.Int
	err := l.execute("claim", func(ctx sdk.Context) error {
		var err error
		paid, err = l.SharesKeeper.Claim(ctx, poolID, holder)
		return err
	})
	if err == nil {
		metrics.GetCollector().RecordClaim(poolID, approx(paid))
	}
	return paid, err
}

// TransferShares moves shares between holders, running the baseline hook
func (l *Ledger) TransferShares(poolID, from, to string, amount math.Int) error {
	err := l.execute("transfer_shares", func(ctx sdk.Context) error {
		return l.SharesKeeper.TransferShares(ctx, poolID, from, to, amount)
	})
	if err == nil {
		metrics.GetCollector().RecordTransfer(poolID)
	}
	return err
}

// Recombine burns every share of a pool held by its sole owner and
// returns the released asset reference
func (l *Ledger) Recombine(poolID, holder string) (string, error) {
	var assetRef string
	err := l.execute("recombine", func(ctx sdk.Context) error {
		var err error
		assetRef, err = l.SharesKeeper.Recombine(ctx, poolID, holder)
		return err
	})
	return assetRef, err
}

// Fund mints value to an account. It is the only way value enters the
// ledger.
func (l *Ledger) Fund(addr string, coin sdk.Coin) error {
	return l.execute("fund", func(ctx sdk.Context) error {
		return l.VaultKeeper.Mint(ctx, addr, coin)
	})
}

// CancelOrder records the cancellation of a signed order
func (l *Ledger) CancelOrder(order settlementtypes.Order, sig []byte) (string, error) {
	var orderID string
	err := l.execute("cancel_order", func(ctx sdk.Context) error {
		var err error
		orderID, err = l.SettlementKeeper.Cancel(ctx, order, sig)
		return err
	})
	return orderID, err
}

// Settle executes a settlement between two signed orders
func (l *Ledger) Settle(req settlementtypes.SettleRequest) (*settlementtypes.Settlement, error) {
	var settlement *settlementtypes.Settlement
	err := l.execute("settle", func(ctx sdk.Context) error {
		var err error
		settlement, err = l.SettlementKeeper.Settle(ctx, req)
		return err
	})
	if err == nil {
		metrics.GetCollector().RecordSettlement(settlement.PoolID,
			approx(settlement.Amount), approx(settlement.Value), approx(settlement.Fee))
	}
	return settlement, err
}

// ActionResult is the outcome of an authorized action. Pool is set for
// CREATE_POOL and DEPOSIT, Paid for CLAIM and AssetRef for RECOMBINE.
type ActionResult struct {
	ActionID string
	Pool     *sharestypes.Pool
	Paid     math.Int
	AssetRef string
}

// ExecuteAction runs a pool operation on behalf of the action's signer.
// The signature check, the replay mark and the operation commit together.
func (l *Ledger) ExecuteAction(action settlementtypes.Action, sig []byte) (*ActionResult, error) {
	res := &ActionResult{}
	err := l.execute("action", func(ctx sdk.Context) error {
		var err error
		if res.ActionID, err = l.SettlementKeeper.Authorize(ctx, action, sig); err != nil {
			return err
		}
		sk := l.SharesKeeper
		switch action.Type {
		case settlementtypes.ActionCreatePool:
			res.Pool, err = sk.CreatePool(ctx, action.Signer, action.AssetRef, action.Amount, action.Denom)
		case settlementtypes.ActionDeposit:
			res.Pool, err = sk.DepositDividends(ctx, action.Signer, action.PoolID, action.Amount)
		case settlementtypes.ActionClaim:
			res.Paid, err = sk.Claim(ctx, action.PoolID, action.Signer)
		case settlementtypes.ActionTransfer:
			err = sk.TransferShares(ctx, action.PoolID, action.Signer, action.Recipient, action.Amount)
		case settlementtypes.ActionRecombine:
			res.AssetRef, err = sk.Recombine(ctx, action.PoolID, action.Signer)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	c := metrics.GetCollector()
	switch action.Type {
	case settlementtypes.ActionDeposit:
		c.RecordDeposit(action.PoolID, approx(action.Amount))
	case settlementtypes.ActionClaim:
		c.RecordClaim(action.PoolID, approx(res.Paid))
	case settlementtypes.ActionTransfer:
		c.RecordTransfer(action.PoolID)
	}
	return res, nil
}

// ActionExecuted reports whether an action id has been consumed
func (l *Ledger) ActionExecuted(actionID string) bool {
	var done bool
	l.query(func(ctx sdk.Context) {
		done = l.SettlementKeeper.IsActionExecuted(ctx, actionID)
	})
	return done
}

// approx converts an amount for metrics only
func approx(v math.Int) float64 {
	f, _ := v.ToLegacyDec().Float64()
	return f
}
