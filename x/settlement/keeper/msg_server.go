package keeper

import (
	"context"

	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/openalpha/fracshare/x/settlement/types"
)

var _ types.MsgServer = (*msgServer)(nil)

type msgServer struct {
	Keeper *Keeper
}

// NewMsgServerImpl returns an implementation of the MsgServer interface
func NewMsgServerImpl(keeper *Keeper) types.MsgServer {
	return &msgServer{Keeper: keeper}
}

// Settle handles MsgSettle
func (m *msgServer) Settle(ctx context.Context, msg *types.MsgSettle) (*types.MsgSettleResponse, error) {
	sdkCtx := sdk.UnwrapSDKContext(ctx)

	// Settle writes executed amounts before moving value, so it always
	// runs in a branch that is committed only on success.
	cacheCtx, write := sdkCtx.CacheContext()
	settlement, err := m.Keeper.Settle(cacheCtx, msg.Request)
	if err != nil {
		return nil, err
	}
	write()

	return &types.MsgSettleResponse{Settlement: settlement}, nil
}

// CancelOrder handles MsgCancelOrder
func (m *msgServer) CancelOrder(ctx context.Context, msg *types.MsgCancelOrder) (*types.MsgCancelOrderResponse, error) {
	sdkCtx := sdk.UnwrapSDKContext(ctx)
	if err := msg.ValidateBasic(); err != nil {
		return nil, err
	}

	orderID, err := m.Keeper.Cancel(sdkCtx, msg.Order, msg.Signature)
	if err != nil {
		return nil, err
	}
	return &types.MsgCancelOrderResponse{OrderID: orderID}, nil
}
