package types

import (
	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	vaulttypes "github.com/openalpha/fracshare/x/vault/types"
)

// MaxFeeBps caps the platform fee at 100%
const MaxFeeBps = 10000

// Params defines the settlement parameters
type Params struct {
	FeeBps       uint32 `json:"fee_bps"`
	FeeRecipient string `json:"fee_recipient"`
	Denom        string `json:"denom"`
	ChainID      string `json:"chain_id"`
}

// DefaultParams returns default settlement parameters
func DefaultParams() Params {
	return Params{
		FeeBps:       250, // 2.5%
		FeeRecipient: vaulttypes.ModuleAddress("fees"),
		Denom:        "uusdc",
		ChainID:      "fracshare-1",
	}
}

// Validate checks the params
func (p Params) Validate() error {
	if p.FeeBps > MaxFeeBps {
		return ErrInvalidParams.Wrapf("fee bps %d exceeds %d", p.FeeBps, MaxFeeBps)
	}
	if err := vaulttypes.ValidateAddress(p.FeeRecipient); err != nil {
		return ErrInvalidParams.Wrapf("fee recipient: %s", err)
	}
	if err := sdk.ValidateDenom(p.Denom); err != nil {
		return ErrInvalidParams.Wrap(err.Error())
	}
	if p.ChainID == "" {
		return ErrInvalidParams.Wrap("empty chain id")
	}
	return nil
}

// Fee returns value*FeeBps/10000 rounded down
func (p Params) Fee(value math.Int) math.Int {
	return value.MulRaw(int64(p.FeeBps)).QuoRaw(MaxFeeBps)
}

// SettleRequest asks the ledger to settle Amount shares between a signed
// bid and a signed ask. Price zero means the ask's price. Payment is the
// value the buyer puts up; anything above the settlement value is refunded.
type SettleRequest struct {
	BuyOrder  Order    `json:"buy_order"`
	BuySig    []byte   `json:"buy_signature"`
	SellOrder Order    `json:"sell_order"`
	SellSig   []byte   `json:"sell_signature"`
	Amount    math.Int `json:"amount"`
	Price     math.Int `json:"price"`
	Payment   math.Int `json:"payment"`
}

// Settlement is the record of one executed settlement
type Settlement struct {
	SettlementID   string   `json:"settlement_id"`
	BuyOrderID     string   `json:"buy_order_id"`
	SellOrderID    string   `json:"sell_order_id"`
	PoolID         string   `json:"pool_id"`
	Buyer          string   `json:"buyer"`
	Seller         string   `json:"seller"`
	Amount         math.Int `json:"amount"`
	Price          math.Int `json:"price"`
	Value          math.Int `json:"value"`
	Fee            math.Int `json:"fee"`
	SellerProceeds math.Int `json:"seller_proceeds"`
	Refund         math.Int `json:"refund"`
	BuyExecuted    math.Int `json:"buy_executed"`
	SellExecuted   math.Int `json:"sell_executed"`
	Height         int64    `json:"height"`
	Timestamp      int64    `json:"timestamp"`
}

// Cancellation records that an order's owner withdrew it
type Cancellation struct {
	OrderID     string `json:"order_id"`
	Owner       string `json:"owner"`
	CancelledAt int64  `json:"cancelled_at"`
}

// OrderState is the authoritative fill state of an order
type OrderState struct {
	OrderID   string   `json:"order_id"`
	Executed  math.Int `json:"executed"`
	Remaining math.Int `json:"remaining"`
	Cancelled bool     `json:"cancelled"`
}
