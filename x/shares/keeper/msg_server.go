package keeper

import (
	"context"

	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/openalpha/fracshare/x/shares/types"
)

var _ types.MsgServer = (*msgServer)(nil)

type msgServer struct {
	Keeper *Keeper
}

// NewMsgServerImpl returns an implementation of the MsgServer interface
func NewMsgServerImpl(keeper *Keeper) types.MsgServer {
	return &msgServer{Keeper: keeper}
}

// CreatePool handles MsgCreatePool
func (m *msgServer) CreatePool(ctx context.Context, msg *types.MsgCreatePool) (*types.MsgCreatePoolResponse, error) {
	sdkCtx := sdk.UnwrapSDKContext(ctx)
	if err := msg.ValidateBasic(); err != nil {
		return nil, err
	}
	totalShares, err := types.ParsePositiveAmount(msg.TotalShares)
	if err != nil {
		return nil, err
	}

	pool, err := m.Keeper.CreatePool(sdkCtx, msg.Creator, msg.AssetRef, totalShares, msg.DividendDenom)
	if err != nil {
		return nil, err
	}
	return &types.MsgCreatePoolResponse{PoolID: pool.PoolID}, nil
}

// DepositDividends handles MsgDepositDividends
func (m *msgServer) DepositDividends(ctx context.Context, msg *types.MsgDepositDividends) (*types.MsgDepositDividendsResponse, error) {
	sdkCtx := sdk.UnwrapSDKContext(ctx)
	if err := msg.ValidateBasic(); err != nil {
		return nil, err
	}
	amount, err := types.ParsePositiveAmount(msg.Amount)
	if err != nil {
		return nil, err
	}

	pool, err := m.Keeper.DepositDividends(sdkCtx, msg.Depositor, msg.PoolID, amount)
	if err != nil {
		return nil, err
	}
	return &types.MsgDepositDividendsResponse{CDPS: pool.CDPS.String()}, nil
}

// Claim handles MsgClaim
func (m *msgServer) Claim(ctx context.Context, msg *types.MsgClaim) (*types.MsgClaimResponse, error) {
	sdkCtx := sdk.UnwrapSDKContext(ctx)
	if err := msg.ValidateBasic(); err != nil {
		return nil, err
	}

	paid, err := m.Keeper.Claim(sdkCtx, msg.PoolID, msg.Holder)
	if err != nil {
		return nil, err
	}
	return &types.MsgClaimResponse{AmountPaid: paid.String()}, nil
}

// TransferShares handles MsgTransferShares
func (m *msgServer) TransferShares(ctx context.Context, msg *types.MsgTransferShares) (*types.MsgTransferSharesResponse, error) {
	sdkCtx := sdk.UnwrapSDKContext(ctx)
	if err := msg.ValidateBasic(); err != nil {
		return nil, err
	}
	amount, err := types.ParsePositiveAmount(msg.Amount)
	if err != nil {
		return nil, err
	}

	if err := m.Keeper.TransferShares(sdkCtx, msg.PoolID, msg.From, msg.To, amount); err != nil {
		return nil, err
	}
	return &types.MsgTransferSharesResponse{}, nil
}

// Recombine handles MsgRecombine
func (m *msgServer) Recombine(ctx context.Context, msg *types.MsgRecombine) (*types.MsgRecombineResponse, error) {
	sdkCtx := sdk.UnwrapSDKContext(ctx)
	if err := msg.ValidateBasic(); err != nil {
		return nil, err
	}

	assetRef, err := m.Keeper.Recombine(sdkCtx, msg.PoolID, msg.Holder)
	if err != nil {
		return nil, err
	}
	return &types.MsgRecombineResponse{AssetRef: assetRef}, nil
}
