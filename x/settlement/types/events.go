package types

// Event types
const (
	EventTypeSettle = "settlement_settle"
	EventTypeCancel = "settlement_cancel_order"
	EventTypeAction = "settlement_authorize_action"
)

// Attribute keys
const (
	AttributeKeySettlementID = "settlement_id"
	AttributeKeyOrderID      = "order_id"
	AttributeKeyBuyOrderID   = "buy_order_id"
	AttributeKeySellOrderID  = "sell_order_id"
	AttributeKeyPoolID       = "pool_id"
	AttributeKeyBuyer        = "buyer"
	AttributeKeySeller       = "seller"
	AttributeKeyOwner        = "owner"
	AttributeKeyAmount       = "amount"
	AttributeKeyPrice        = "price"
	AttributeKeyValue        = "value"
	AttributeKeyFee          = "fee"
	AttributeKeyRefund       = "refund"
	AttributeKeyActionID     = "action_id"
	AttributeKeyActionType   = "action_type"
	AttributeKeySigner       = "signer"
)
