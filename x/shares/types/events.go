package types

// Event types
const (
	EventTypeCreatePool    = "shares_create_pool"
	EventTypeDeposit       = "shares_deposit_dividends"
	EventTypeClaim         = "shares_claim"
	EventTypeTransfer      = "shares_transfer"
	EventTypeRecombine     = "shares_recombine"
	EventTypeAssetReleased = "asset_released"
)

// Attribute keys
const (
	AttributeKeyPoolID     = "pool_id"
	AttributeKeyAssetRef   = "asset_ref"
	AttributeKeyCreator    = "creator"
	AttributeKeyDepositor  = "depositor"
	AttributeKeyHolder     = "holder"
	AttributeKeySender     = "sender"
	AttributeKeyRecipient  = "recipient"
	AttributeKeyAmount     = "amount"
	AttributeKeyShares     = "shares"
	AttributeKeyCDPS       = "cdps"
	AttributeKeyForfeited  = "forfeited"
	AttributeKeyReleasedTo = "released_to"
)
