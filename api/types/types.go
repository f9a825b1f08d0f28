package types

import (
	"encoding/hex"
	"fmt"
	"strings"

	"cosmossdk.io/math"

	"github.com/openalpha/fracshare/offchain/orderstore"
	settlementtypes "github.com/openalpha/fracshare/x/settlement/types"
)

// Amounts travel as decimal strings and signatures as hex so that clients
// never lose precision or guess an encoding.

// Order is the wire form of a signed order
type Order struct {
	Side         string `json:"side"`
	PoolID       string `json:"pool_id"`
	Amount       string `json:"amount"`
	PricePerUnit string `json:"price_per_unit"`
	Owner        string `json:"owner"`
	Nonce        uint64 `json:"nonce"`
	Expiry       int64  `json:"expiry"`
}

// ToOrder converts the wire form. Field validation is left to the ledger.
func (o Order) ToOrder() (settlementtypes.Order, error) {
	amount, err := ParseAmount("amount", o.Amount)
	if err != nil {
		return settlementtypes.Order{}, err
	}
	price, err := ParseAmount("price_per_unit", o.PricePerUnit)
	if err != nil {
		return settlementtypes.Order{}, err
	}
	return settlementtypes.Order{
		Side:         settlementtypes.Side(strings.ToUpper(o.Side)),
		PoolID:       o.PoolID,
		Amount:       amount,
		PricePerUnit: price,
		Owner:        o.Owner,
		Nonce:        o.Nonce,
		Expiry:       o.Expiry,
	}, nil
}

// FromOrder returns the wire form of an order
func FromOrder(o settlementtypes.Order) Order {
	return Order{
		Side:         string(o.Side),
		PoolID:       o.PoolID,
		Amount:       o.Amount.String(),
		PricePerUnit: o.PricePerUnit.String(),
		Owner:        o.Owner,
		Nonce:        o.Nonce,
		Expiry:       o.Expiry,
	}
}

// SignedOrderRequest carries an order and its owner's signature. It is the
// body of POST /v1/orders and POST /v1/orders/cancel.
type SignedOrderRequest struct {
	Order     Order  `json:"order"`
	Signature string `json:"signature"`
}

// Decode returns the order and the raw signature
func (r SignedOrderRequest) Decode() (settlementtypes.Order, []byte, error) {
	order, err := r.Order.ToOrder()
	if err != nil {
		return settlementtypes.Order{}, nil, err
	}
	sig, err := ParseSignature(r.Signature)
	if err != nil {
		return settlementtypes.Order{}, nil, err
	}
	return order, sig, nil
}

// SettleRequest is the body of POST /v1/settlements
type SettleRequest struct {
	BuyOrder      Order  `json:"buy_order"`
	BuySignature  string `json:"buy_signature"`
	SellOrder     Order  `json:"sell_order"`
	SellSignature string `json:"sell_signature"`
	Amount        string `json:"amount"`
	// Price may be empty to settle at the ask price; otherwise it must
	// equal the ask or the bid price
	Price   string `json:"price,omitempty"`
	Payment string `json:"payment"`
}

// ToSettleRequest converts the wire form
func (r SettleRequest) ToSettleRequest() (settlementtypes.SettleRequest, error) {
	var (
		req settlementtypes.SettleRequest
		err error
	)
	if req.BuyOrder, req.BuySig, err = (SignedOrderRequest{Order: r.BuyOrder, Signature: r.BuySignature}).Decode(); err != nil {
		return req, fmt.Errorf("buy order: %w", err)
	}
	if req.SellOrder, req.SellSig, err = (SignedOrderRequest{Order: r.SellOrder, Signature: r.SellSignature}).Decode(); err != nil {
		return req, fmt.Errorf("sell order: %w", err)
	}
	if req.Amount, err = ParseAmount("amount", r.Amount); err != nil {
		return req, err
	}
	req.Price = math.ZeroInt()
	if r.Price != "" {
		if req.Price, err = ParseAmount("price", r.Price); err != nil {
			return req, err
		}
	}
	if req.Payment, err = ParseAmount("payment", r.Payment); err != nil {
		return req, err
	}
	return req, nil
}

// Authorization carries the signer's consent to a pool write. The
// signature covers the settlement Action built from the request fields,
// the path's pool id, Nonce and Expiry.
type Authorization struct {
	Nonce     uint64 `json:"nonce"`
	Expiry    int64  `json:"expiry,omitempty"`
	Signature string `json:"signature"`
}

func (a Authorization) sign(action *settlementtypes.Action) ([]byte, error) {
	action.Nonce = a.Nonce
	action.Expiry = a.Expiry
	return ParseSignature(a.Signature)
}

// CreatePoolRequest is the body of POST /v1/pools. Denom is part of the
// signed action, so signers name it explicitly.
type CreatePoolRequest struct {
	Creator     string `json:"creator"`
	AssetRef    string `json:"asset_ref"`
	TotalShares string `json:"total_shares"`
	Denom       string `json:"denom"`
	Authorization
}

// ToAction returns the signed action and its signature
func (r CreatePoolRequest) ToAction() (settlementtypes.Action, []byte, error) {
	shares, err := ParseAmount("total_shares", r.TotalShares)
	if err != nil {
		return settlementtypes.Action{}, nil, err
	}
	action := settlementtypes.Action{
		Type:     settlementtypes.ActionCreatePool,
		Signer:   r.Creator,
		AssetRef: r.AssetRef,
		Denom:    r.Denom,
		Amount:   shares,
	}
	sig, err := r.sign(&action)
	return action, sig, err
}

// DepositRequest is the body of POST /v1/pools/{poolId}/dividends
type DepositRequest struct {
	Depositor string `json:"depositor"`
	Amount    string `json:"amount"`
	Authorization
}

// ToAction returns the signed action and its signature
func (r DepositRequest) ToAction(poolID string) (settlementtypes.Action, []byte, error) {
	amount, err := ParseAmount("amount", r.Amount)
	if err != nil {
		return settlementtypes.Action{}, nil, err
	}
	action := settlementtypes.Action{
		Type:   settlementtypes.ActionDeposit,
		Signer: r.Depositor,
		PoolID: poolID,
		Amount: amount,
	}
	sig, err := r.sign(&action)
	return action, sig, err
}

// HolderRequest is the body of the claim and recombine endpoints
type HolderRequest struct {
	Holder string `json:"holder"`
	Authorization
}

// ToAction returns the signed action of type t and its signature
func (r HolderRequest) ToAction(t settlementtypes.ActionType, poolID string) (settlementtypes.Action, []byte, error) {
	action := settlementtypes.Action{
		Type:   t,
		Signer: r.Holder,
		PoolID: poolID,
		Amount: math.ZeroInt(),
	}
	sig, err := r.sign(&action)
	return action, sig, err
}

// TransferRequest is the body of POST /v1/pools/{poolId}/transfers
type TransferRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
	Authorization
}

// ToAction returns the signed action and its signature
func (r TransferRequest) ToAction(poolID string) (settlementtypes.Action, []byte, error) {
	amount, err := ParseAmount("amount", r.Amount)
	if err != nil {
		return settlementtypes.Action{}, nil, err
	}
	action := settlementtypes.Action{
		Type:      settlementtypes.ActionTransfer,
		Signer:    r.From,
		PoolID:    poolID,
		Recipient: r.To,
		Amount:    amount,
	}
	sig, err := r.sign(&action)
	return action, sig, err
}

// FundRequest is the body of POST /v1/accounts/{address}/fund
type FundRequest struct {
	Denom  string `json:"denom"`
	Amount string `json:"amount"`
}

// ClaimResponse reports a dividend payout
type ClaimResponse struct {
	PoolID string   `json:"pool_id"`
	Holder string   `json:"holder"`
	Paid   math.Int `json:"paid"`
}

// RecombineResponse reports the asset released by a recombination
type RecombineResponse struct {
	PoolID   string `json:"pool_id"`
	AssetRef string `json:"asset_ref"`
}

// BalanceResponse is a vault balance
type BalanceResponse struct {
	Address string   `json:"address"`
	Denom   string   `json:"denom"`
	Amount  math.Int `json:"amount"`
}

// OrderResponse pairs the advisory book entry with the ledger's fill state
type OrderResponse struct {
	Entry *orderstore.Entry           `json:"entry"`
	State *settlementtypes.OrderState `json:"state"`
}

// CancelResponse reports a recorded cancellation
type CancelResponse struct {
	OrderID   string `json:"order_id"`
	Cancelled bool   `json:"cancelled"`
}

// OrderBookResponse lists the open orders of a pool, best price first
type OrderBookResponse struct {
	PoolID string              `json:"pool_id"`
	Bids   []*orderstore.Entry `json:"bids"`
	Asks   []*orderstore.Entry `json:"asks"`
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status    string `json:"status"`
	ChainID   string `json:"chain_id"`
	Height    int64  `json:"height"`
	Timestamp int64  `json:"timestamp"`
}

// ErrorResponse is returned with every non-2xx status. Kind tells the
// client whether to re-sign, re-fetch or abandon.
type ErrorResponse struct {
	Error   string `json:"error"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// ParseAmount parses a non-negative base-10 integer
func ParseAmount(field, s string) (math.Int, error) {
	if s == "" {
		return math.Int{}, fmt.Errorf("%s is required", field)
	}
	v, ok := math.NewIntFromString(s)
	if !ok {
		return math.Int{}, fmt.Errorf("%s: invalid integer %q", field, s)
	}
	if v.IsNegative() {
		return math.Int{}, fmt.Errorf("%s must not be negative", field)
	}
	return v, nil
}

// ParseSignature decodes a hex signature, with or without a 0x prefix
func ParseSignature(s string) ([]byte, error) {
	if s == "" {
		return nil, fmt.Errorf("signature is required")
	}
	sig, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, fmt.Errorf("signature: %w", err)
	}
	return sig, nil
}
