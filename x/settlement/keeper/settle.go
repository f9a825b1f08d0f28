package keeper

import (
	"encoding/binary"
	"fmt"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/openalpha/fracshare/x/settlement/types"
)

// Settle executes one settlement between a signed bid and a signed ask.
//
// The caller must run Settle inside a branched context and discard the
// branch on error: the executed amounts are written before value moves,
// so a failure after that point is only safe when nothing is committed.
func (k *Keeper) Settle(ctx sdk.Context, req types.SettleRequest) (*types.Settlement, error) {
	if err := req.ValidateBasic(); err != nil {
		return nil, err
	}

	params := k.GetParams(ctx)
	domain := types.NewDomain(params.ChainID)

	// 1. Signatures
	if err := types.VerifyOrder(req.BuyOrder, domain, req.BuySig); err != nil {
		return nil, err
	}
	if err := types.VerifyOrder(req.SellOrder, domain, req.SellSig); err != nil {
		return nil, err
	}
	buyID := req.BuyOrder.ID(domain)
	sellID := req.SellOrder.ID(domain)

	// 2. Liveness
	now := ctx.BlockTime().Unix()
	for _, o := range []struct {
		id    string
		order types.Order
	}{{buyID, req.BuyOrder}, {sellID, req.SellOrder}} {
		if k.IsCancelled(ctx, o.id) {
			return nil, types.ErrOrderCancelled.Wrapf("order %s", o.id)
		}
		if o.order.ExpiredAt(now) {
			return nil, types.ErrOrderExpired.Wrapf("order %s expired at %d", o.id, o.order.Expiry)
		}
	}

	// 3. Remaining capacity, the replay guard
	buyExecuted, err := k.checkRemaining(ctx, buyID, req.BuyOrder, req.Amount)
	if err != nil {
		return nil, err
	}
	sellExecuted, err := k.checkRemaining(ctx, sellID, req.SellOrder, req.Amount)
	if err != nil {
		return nil, err
	}

	// 4. Value
	value := req.Value()
	fee := params.Fee(value)
	if req.Payment.LT(value) {
		return nil, types.ErrInsufficientPayment.Wrapf("payment %s < value %s", req.Payment, value)
	}
	proceeds := value.Sub(fee)
	refund := req.Payment.Sub(value)

	// 5. Record execution before anything moves
	buyExecuted = buyExecuted.Add(req.Amount)
	sellExecuted = sellExecuted.Add(req.Amount)
	k.setExecuted(ctx, buyID, buyExecuted)
	k.setExecuted(ctx, sellID, sellExecuted)

	// 6. Value and shares
	buyer, seller := req.BuyOrder.Owner, req.SellOrder.Owner
	escrow := types.EscrowAddress()
	if err := k.vaultKeeper.Send(ctx, buyer, escrow, sdk.NewCoin(params.Denom, req.Payment)); err != nil {
		return nil, err
	}
	if err := k.vaultKeeper.Send(ctx, escrow, seller, sdk.NewCoin(params.Denom, proceeds)); err != nil {
		return nil, err
	}
	if err := k.vaultKeeper.Send(ctx, escrow, params.FeeRecipient, sdk.NewCoin(params.Denom, fee)); err != nil {
		return nil, err
	}
	if err := k.sharesKeeper.TransferShares(ctx, req.BuyOrder.PoolID, seller, buyer, req.Amount); err != nil {
		return nil, err
	}

	// 7. Refund and record
	if err := k.vaultKeeper.Send(ctx, escrow, buyer, sdk.NewCoin(params.Denom, refund)); err != nil {
		return nil, err
	}

	seq := k.nextSettlementSeq(ctx)
	settlement := &types.Settlement{
		SettlementID:   fmt.Sprintf("stl-%d", binary.BigEndian.Uint64(seq)),
		BuyOrderID:     buyID,
		SellOrderID:    sellID,
		PoolID:         req.BuyOrder.PoolID,
		Buyer:          buyer,
		Seller:         seller,
		Amount:         req.Amount,
		Price:          req.Price,
		Value:          value,
		Fee:            fee,
		SellerProceeds: proceeds,
		Refund:         refund,
		BuyExecuted:    buyExecuted,
		SellExecuted:   sellExecuted,
		Height:         ctx.BlockHeight(),
		Timestamp:      now,
	}
	k.setSettlement(ctx, seq, settlement)

	ctx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeSettle,
			sdk.NewAttribute(types.AttributeKeySettlementID, settlement.SettlementID),
			sdk.NewAttribute(types.AttributeKeyBuyOrderID, buyID),
			sdk.NewAttribute(types.AttributeKeySellOrderID, sellID),
			sdk.NewAttribute(types.AttributeKeyPoolID, settlement.PoolID),
			sdk.NewAttribute(types.AttributeKeyBuyer, buyer),
			sdk.NewAttribute(types.AttributeKeySeller, seller),
			sdk.NewAttribute(types.AttributeKeyAmount, req.Amount.String()),
			sdk.NewAttribute(types.AttributeKeyPrice, req.Price.String()),
			sdk.NewAttribute(types.AttributeKeyValue, value.String()),
			sdk.NewAttribute(types.AttributeKeyFee, fee.String()),
			sdk.NewAttribute(types.AttributeKeyRefund, refund.String()),
		),
	)

	k.Logger().Info("orders settled",
		"settlement_id", settlement.SettlementID,
		"pool_id", settlement.PoolID,
		"amount", req.Amount.String(),
		"price", req.Price.String(),
		"fee", fee.String(),
	)
	return settlement, nil
}

// checkRemaining returns the order's executed amount, failing when amount
// does not fit in what is left of the order.
func (k *Keeper) checkRemaining(ctx sdk.Context, orderID string, order types.Order, amount math.Int) (math.Int, error) {
	executed := k.GetExecuted(ctx, orderID)
	remaining := order.Amount.Sub(executed)
	if amount.GT(remaining) {
		return math.Int{}, types.ErrExceedsRemaining.Wrapf("order %s: %s requested, %s remaining", orderID, amount, remaining)
	}
	return executed, nil
}

// Cancel withdraws an order on behalf of its owner. The first call records
// the cancellation; later calls fail with ErrAlreadyCancelled and change
// nothing.
func (k *Keeper) Cancel(ctx sdk.Context, order types.Order, sig []byte) (string, error) {
	if err := order.Validate(); err != nil {
		return "", err
	}
	domain := k.Domain(ctx)
	if err := types.VerifyOrder(order, domain, sig); err != nil {
		return "", err
	}

	orderID := order.ID(domain)
	if k.IsCancelled(ctx, orderID) {
		return orderID, types.ErrAlreadyCancelled.Wrapf("order %s", orderID)
	}

	k.setCancellation(ctx, &types.Cancellation{
		OrderID:     orderID,
		Owner:       order.Owner,
		CancelledAt: ctx.BlockTime().Unix(),
	})

	ctx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeCancel,
			sdk.NewAttribute(types.AttributeKeyOrderID, orderID),
			sdk.NewAttribute(types.AttributeKeyOwner, order.Owner),
		),
	)
	return orderID, nil
}
