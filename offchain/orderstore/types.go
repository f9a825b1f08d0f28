package orderstore

import (
	"time"

	"cosmossdk.io/math"

	"github.com/openalpha/fracshare/x/settlement/types"
)

// Status is the advisory lifecycle state of an order
type Status string

const (
	StatusOpen            Status = "OPEN"
	StatusPartiallyFilled Status = "PARTIALLY_FILLED"
	StatusFilled          Status = "FILLED"
	StatusCancelled       Status = "CANCELLED"
	StatusExpired         Status = "EXPIRED"
)

// IsOpen reports whether an order in this state can still trade
func (s Status) IsOpen() bool {
	return s == StatusOpen || s == StatusPartiallyFilled
}

// Entry is a signed order with its best-effort fill state. FilledAmount
// trails the ledger's executed amount; PendingAmount is reserved by
// matches that have not been settled yet.
type Entry struct {
	OrderID       string      `json:"order_id"`
	Order         types.Order `json:"order"`
	Signature     []byte      `json:"signature"`
	Status        Status      `json:"status"`
	FilledAmount  math.Int    `json:"filled_amount"`
	PendingAmount math.Int    `json:"pending_amount"`
	Seq           uint64      `json:"seq"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// Remaining returns amount minus filled and pending, floored at zero
func (e *Entry) Remaining() math.Int {
	r := e.Order.Amount.Sub(e.FilledAmount).Sub(e.PendingAmount)
	if r.IsNegative() {
		return math.ZeroInt()
	}
	return r
}

func (e *Entry) clone() *Entry {
	c := *e
	c.Signature = append([]byte(nil), e.Signature...)
	return &c
}

// refreshStatus derives OPEN/PARTIALLY_FILLED/FILLED from the fill figures
func (e *Entry) refreshStatus() {
	if !e.Status.IsOpen() {
		return
	}
	switch {
	case e.FilledAmount.GTE(e.Order.Amount):
		e.Status = StatusFilled
	case e.FilledAmount.IsPositive():
		e.Status = StatusPartiallyFilled
	default:
		e.Status = StatusOpen
	}
}

// MatchStatus is the state of a proposed match
type MatchStatus string

const (
	MatchPending MatchStatus = "PENDING"
	MatchSettled MatchStatus = "SETTLED"
	MatchFailed  MatchStatus = "FAILED"
)

// OrderMatch is a proposed pairing of a bid and an ask. It becomes
// SETTLED only after the ledger executed the settlement.
type OrderMatch struct {
	MatchID       string      `json:"match_id"`
	BuyOrderID    string      `json:"buy_order_id"`
	SellOrderID   string      `json:"sell_order_id"`
	PoolID        string      `json:"pool_id"`
	MatchedAmount math.Int    `json:"matched_amount"`
	MatchedPrice  math.Int    `json:"matched_price"`
	Status        MatchStatus `json:"status"`
	FailureReason string      `json:"failure_reason,omitempty"`
	SettlementID  string      `json:"settlement_id,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

func (m *OrderMatch) clone() *OrderMatch {
	c := *m
	return &c
}

// UpdateType identifies what changed in the store
type UpdateType string

const (
	UpdateOrderCreated UpdateType = "order_created"
	UpdateOrder        UpdateType = "order"
	UpdateMatch        UpdateType = "match"
)

// Update describes a change, delivered to subscribers after it is applied
type Update struct {
	Type  UpdateType  `json:"type"`
	Order *Entry      `json:"order,omitempty"`
	Match *OrderMatch `json:"match,omitempty"`
}
