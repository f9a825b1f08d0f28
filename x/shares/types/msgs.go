package types

import (
	"context"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
)

// MsgServer defines the shares module message service
type MsgServer interface {
	CreatePool(context.Context, *MsgCreatePool) (*MsgCreatePoolResponse, error)
	DepositDividends(context.Context, *MsgDepositDividends) (*MsgDepositDividendsResponse, error)
	Claim(context.Context, *MsgClaim) (*MsgClaimResponse, error)
	TransferShares(context.Context, *MsgTransferShares) (*MsgTransferSharesResponse, error)
	Recombine(context.Context, *MsgRecombine) (*MsgRecombineResponse, error)
}

// MsgCreatePool fractionalizes an asset into TotalShares shares owned by Creator
type MsgCreatePool struct {
	Creator       string `json:"creator"`
	AssetRef      string `json:"asset_ref"`
	TotalShares   string `json:"total_shares"`
	DividendDenom string `json:"dividend_denom"`
}

// ValidateBasic performs stateless checks
func (msg MsgCreatePool) ValidateBasic() error {
	if _, err := sdk.AccAddressFromBech32(msg.Creator); err != nil {
		return ErrInvalidHolder.Wrapf("creator: %s", err)
	}
	if msg.AssetRef == "" {
		return ErrInvalidAsset
	}
	if err := sdk.ValidateDenom(msg.DividendDenom); err != nil {
		return ErrInvalidDenom.Wrap(err.Error())
	}
	_, err := ParsePositiveAmount(msg.TotalShares)
	return err
}

// MsgCreatePoolResponse defines the CreatePool response
type MsgCreatePoolResponse struct {
	PoolID string `json:"pool_id"`
}

// MsgDepositDividends adds Amount of the pool's dividend denom to a pool
type MsgDepositDividends struct {
	Depositor string `json:"depositor"`
	PoolID    string `json:"pool_id"`
	Amount    string `json:"amount"`
}

// ValidateBasic performs stateless checks
func (msg MsgDepositDividends) ValidateBasic() error {
	if msg.Depositor == "" {
		return ErrInvalidHolder.Wrap("empty depositor")
	}
	if msg.PoolID == "" {
		return ErrPoolNotFound
	}
	_, err := ParsePositiveAmount(msg.Amount)
	return err
}

// MsgDepositDividendsResponse defines the DepositDividends response
type MsgDepositDividendsResponse struct {
	CDPS string `json:"cdps"`
}

// MsgClaim pays out a holder's outstanding dividends
type MsgClaim struct {
	Holder string `json:"holder"`
	PoolID string `json:"pool_id"`
}

// ValidateBasic performs stateless checks
func (msg MsgClaim) ValidateBasic() error {
	if _, err := sdk.AccAddressFromBech32(msg.Holder); err != nil {
		return ErrInvalidHolder.Wrapf("holder: %s", err)
	}
	if msg.PoolID == "" {
		return ErrPoolNotFound
	}
	return nil
}

// MsgClaimResponse defines the Claim response
type MsgClaimResponse struct {
	AmountPaid string `json:"amount_paid"`
}

// MsgTransferShares moves shares between holders
type MsgTransferShares struct {
	PoolID string `json:"pool_id"`
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

// ValidateBasic performs stateless checks
func (msg MsgTransferShares) ValidateBasic() error {
	if _, err := sdk.AccAddressFromBech32(msg.From); err != nil {
		return ErrInvalidHolder.Wrapf("from: %s", err)
	}
	if _, err := sdk.AccAddressFromBech32(msg.To); err != nil {
		return ErrInvalidHolder.Wrapf("to: %s", err)
	}
	if msg.From == msg.To {
		return ErrSelfTransfer
	}
	if msg.PoolID == "" {
		return ErrPoolNotFound
	}
	_, err := ParsePositiveAmount(msg.Amount)
	return err
}

// MsgTransferSharesResponse defines the TransferShares response
type MsgTransferSharesResponse struct{}

// MsgRecombine burns every share of a pool held by its sole owner and
// releases the backing asset
type MsgRecombine struct {
	Holder string `json:"holder"`
	PoolID string `json:"pool_id"`
}

// ValidateBasic performs stateless checks
func (msg MsgRecombine) ValidateBasic() error {
	if _, err := sdk.AccAddressFromBech32(msg.Holder); err != nil {
		return ErrInvalidHolder.Wrapf("holder: %s", err)
	}
	if msg.PoolID == "" {
		return ErrPoolNotFound
	}
	return nil
}

// MsgRecombineResponse defines the Recombine response
type MsgRecombineResponse struct {
	AssetRef string `json:"asset_ref"`
}

// ParsePositiveAmount parses a base-10 integer amount that must be > 0
func ParsePositiveAmount(s string) (math.Int, error) {
	amt, ok := math.NewIntFromString(s)
	if !ok {
		return math.Int{}, ErrInvalidAmount.Wrapf("cannot parse %q", s)
	}
	if !amt.IsPositive() {
		return math.Int{}, ErrInvalidAmount.Wrapf("%s must be positive", s)
	}
	return amt, nil
}
