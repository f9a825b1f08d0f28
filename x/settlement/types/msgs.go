package types

import (
	"context"

	"cosmossdk.io/math"
)

// MsgServer defines the settlement module message service
type MsgServer interface {
	Settle(context.Context, *MsgSettle) (*MsgSettleResponse, error)
	CancelOrder(context.Context, *MsgCancelOrder) (*MsgCancelOrderResponse, error)
}

// MsgSettle submits a matched pair of signed orders for settlement
type MsgSettle struct {
	Request SettleRequest `json:"request"`
}

// ValidateBasic performs stateless checks
func (msg MsgSettle) ValidateBasic() error {
	return msg.Request.ValidateBasic()
}

// MsgSettleResponse defines the Settle response
type MsgSettleResponse struct {
	Settlement *Settlement `json:"settlement"`
}

// MsgCancelOrder withdraws a signed order
type MsgCancelOrder struct {
	Order     Order  `json:"order"`
	Signature []byte `json:"signature"`
}

// ValidateBasic performs stateless checks
func (msg MsgCancelOrder) ValidateBasic() error {
	if err := msg.Order.Validate(); err != nil {
		return err
	}
	if len(msg.Signature) == 0 {
		return ErrInvalidSignature.Wrap("empty signature")
	}
	return nil
}

// MsgCancelOrderResponse defines the CancelOrder response
type MsgCancelOrderResponse struct {
	OrderID string `json:"order_id"`
}

// ValidateBasic checks the request without touching state and resolves
// the settlement price.
func (r *SettleRequest) ValidateBasic() error {
	if r.BuyOrder.Side != SideBid {
		return ErrInvalidRequest.Wrap("buy order must be a BID")
	}
	if r.SellOrder.Side != SideAsk {
		return ErrInvalidRequest.Wrap("sell order must be an ASK")
	}
	if err := r.BuyOrder.Validate(); err != nil {
		return err
	}
	if err := r.SellOrder.Validate(); err != nil {
		return err
	}
	if r.BuyOrder.PoolID != r.SellOrder.PoolID {
		return ErrInvalidRequest.Wrapf("pool mismatch %s != %s", r.BuyOrder.PoolID, r.SellOrder.PoolID)
	}
	if r.BuyOrder.Owner == r.SellOrder.Owner {
		return ErrSelfTrade
	}
	if r.Amount.IsNil() || !r.Amount.IsPositive() {
		return ErrInvalidRequest.Wrap("amount must be positive")
	}
	if r.Amount.BigInt().BitLen() > MaxOrderBits {
		return ErrInvalidRequest.Wrapf("amount is limited to %d bits", MaxOrderBits)
	}
	if r.Payment.IsNil() || r.Payment.IsNegative() {
		return ErrInvalidRequest.Wrap("payment must not be negative")
	}
	if r.Payment.BigInt().BitLen() > 2*MaxOrderBits {
		return ErrInvalidRequest.Wrapf("payment is limited to %d bits", 2*MaxOrderBits)
	}
	if len(r.BuySig) == 0 || len(r.SellSig) == 0 {
		return ErrInvalidSignature.Wrap("missing signature")
	}

	if r.BuyOrder.PricePerUnit.LT(r.SellOrder.PricePerUnit) {
		return ErrPriceMismatch.Wrapf("bid %s below ask %s", r.BuyOrder.PricePerUnit, r.SellOrder.PricePerUnit)
	}
	// The settlement price is the resting order's limit: the ask price
	// unless the caller names the bid price.
	if r.Price.IsNil() || r.Price.IsZero() {
		r.Price = r.SellOrder.PricePerUnit
	}
	if !r.Price.Equal(r.SellOrder.PricePerUnit) && !r.Price.Equal(r.BuyOrder.PricePerUnit) {
		return ErrPriceMismatch.Wrapf("price %s is neither the ask %s nor the bid %s", r.Price, r.SellOrder.PricePerUnit, r.BuyOrder.PricePerUnit)
	}
	return nil
}

// Value returns Amount*Price
func (r SettleRequest) Value() math.Int {
	return r.Amount.Mul(r.Price)
}
