package keeper_test

import (
	"testing"

	"cosmossdk.io/log"
	"cosmossdk.io/math"
	storetypes "cosmossdk.io/store/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/stretchr/testify/require"

	"github.com/openalpha/fracshare/testutil"
	shareskeeper "github.com/openalpha/fracshare/x/shares/keeper"
	sharestypes "github.com/openalpha/fracshare/x/shares/types"
	"github.com/openalpha/fracshare/x/settlement/keeper"
	"github.com/openalpha/fracshare/x/settlement/types"
	vaultkeeper "github.com/openalpha/fracshare/x/vault/keeper"
	vaulttypes "github.com/openalpha/fracshare/x/vault/types"
)

type fixture struct {
	ctx     sdk.Context
	k       *keeper.Keeper
	vault   *vaultkeeper.Keeper
	shares  *shareskeeper.Keeper
	domain  types.Domain
	params  types.Params
	poolID  string
	buyKey  *secp256k1.PrivateKey
	buyer   string
	sellKey *secp256k1.PrivateKey
	seller  string
}

func setupSettlement(t *testing.T) *fixture {
	t.Helper()
	vaultKey := storetypes.NewKVStoreKey(vaulttypes.StoreKey)
	sharesKey := storetypes.NewKVStoreKey(sharestypes.StoreKey)
	settlementKey := storetypes.NewKVStoreKey(types.StoreKey)
	ctx := testutil.NewContext(t, vaultKey, sharesKey, settlementKey)

	vk := vaultkeeper.NewKeeper(vaultKey, log.NewNopLogger())
	sk := shareskeeper.NewKeeper(sharesKey, vk, log.NewNopLogger())
	k := keeper.NewKeeper(settlementKey, vk, sk, log.NewNopLogger())

	params := types.DefaultParams()
	params.ChainID = "fracshare-test"
	require.NoError(t, k.SetParams(ctx, params))

	buyKey, buyer := testutil.Key("buyer")
	sellKey, seller := testutil.Key("seller")

	pool, err := sk.CreatePool(ctx, seller, "artwork-1", math.NewInt(1000), params.Denom)
	require.NoError(t, err)
	require.NoError(t, vk.Mint(ctx, buyer, sdk.NewCoin(params.Denom, math.NewInt(10_000))))

	return &fixture{
		ctx:     ctx,
		k:       k,
		vault:   vk,
		shares:  sk,
		domain:  k.Domain(ctx),
		params:  params,
		poolID:  pool.PoolID,
		buyKey:  buyKey,
		buyer:   buyer,
		sellKey: sellKey,
		seller:  seller,
	}
}

func (f *fixture) bid(amount, price int64) types.Order {
	return types.Order{
		Side: types.SideBid, PoolID: f.poolID, Amount: math.NewInt(amount),
		PricePerUnit: math.NewInt(price), Owner: f.buyer, Nonce: 1,
	}
}

func (f *fixture) ask(amount, price int64) types.Order {
	return types.Order{
		Side: types.SideAsk, PoolID: f.poolID, Amount: math.NewInt(amount),
		PricePerUnit: math.NewInt(price), Owner: f.seller, Nonce: 1,
	}
}

func (f *fixture) request(bid, ask types.Order, amount, payment int64) types.SettleRequest {
	return types.SettleRequest{
		BuyOrder:  bid,
		BuySig:    types.SignOrder(f.buyKey, bid, f.domain),
		SellOrder: ask,
		SellSig:   types.SignOrder(f.sellKey, ask, f.domain),
		Amount:    math.NewInt(amount),
		Payment:   math.NewInt(payment),
	}
}

func (f *fixture) balance(addr string) math.Int {
	return f.vault.GetBalance(f.ctx, addr, f.params.Denom)
}

// O1 bids 100 at 5, O2 asks 60 at 5. Settling 60 fills O2; one more
// unit is a replay past capacity.
func TestSettleScenarioFillThenReplay(t *testing.T) {
	f := setupSettlement(t)
	o1, o2 := f.bid(100, 5), f.ask(60, 5)

	s, err := f.k.Settle(f.ctx, f.request(o1, o2, 60, 300))
	require.NoError(t, err)
	require.Equal(t, "stl-1", s.SettlementID)
	require.True(t, s.Value.Equal(math.NewInt(300)))
	require.True(t, s.Fee.Equal(math.NewInt(7)))

	require.True(t, f.balance(f.buyer).Equal(math.NewInt(9_700)))
	require.True(t, f.balance(f.seller).Equal(math.NewInt(293)))
	require.True(t, f.balance(f.params.FeeRecipient).Equal(math.NewInt(7)))
	require.True(t, f.balance(types.EscrowAddress()).IsZero())
	require.True(t, f.shares.GetBalance(f.ctx, f.poolID, f.buyer).Equal(math.NewInt(60)))
	require.True(t, f.shares.GetBalance(f.ctx, f.poolID, f.seller).Equal(math.NewInt(940)))

	require.True(t, f.k.GetExecuted(f.ctx, o2.ID(f.domain)).Equal(math.NewInt(60)))
	require.True(t, f.k.GetExecuted(f.ctx, o1.ID(f.domain)).Equal(math.NewInt(60)))
	require.True(t, f.k.GetOrderState(f.ctx, o2).Remaining.IsZero())
	require.True(t, f.k.GetOrderState(f.ctx, o1).Remaining.Equal(math.NewInt(40)))

	_, err = f.k.Settle(f.ctx, f.request(o1, o2, 1, 5))
	require.ErrorIs(t, err, types.ErrExceedsRemaining)
	require.True(t, f.k.GetExecuted(f.ctx, o2.ID(f.domain)).Equal(math.NewInt(60)))
	require.True(t, f.balance(f.buyer).Equal(math.NewInt(9_700)))

	stored, err := f.k.GetSettlement(f.ctx, s.SettlementID)
	require.NoError(t, err)
	require.Equal(t, s.BuyOrderID, stored.BuyOrderID)
	require.Len(t, f.k.GetRecentSettlements(f.ctx, 10), 1)
}

func TestSettlePartialFills(t *testing.T) {
	f := setupSettlement(t)
	o1, o2 := f.bid(100, 5), f.ask(100, 5)

	for i := 0; i < 4; i++ {
		_, err := f.k.Settle(f.ctx, f.request(o1, o2, 25, 125))
		require.NoError(t, err)
	}
	_, err := f.k.Settle(f.ctx, f.request(o1, o2, 1, 5))
	require.ErrorIs(t, err, types.ErrExceedsRemaining)
	require.True(t, f.k.GetExecuted(f.ctx, o1.ID(f.domain)).Equal(math.NewInt(100)))
}

func TestSettleRefundsOverpayment(t *testing.T) {
	f := setupSettlement(t)
	req := f.request(f.bid(10, 7), f.ask(10, 5), 10, 1000)
	req.Price = math.NewInt(7)

	s, err := f.k.Settle(f.ctx, req)
	require.NoError(t, err)
	require.True(t, s.Value.Equal(math.NewInt(70)))
	require.True(t, s.Refund.Equal(math.NewInt(930)))
	require.True(t, f.balance(f.buyer).Equal(math.NewInt(10_000-70)))
	require.True(t, f.balance(f.seller).Equal(math.NewInt(70).Sub(s.Fee)))
}

func TestSettleInsufficientPayment(t *testing.T) {
	f := setupSettlement(t)
	_, err := f.k.Settle(f.ctx, f.request(f.bid(10, 5), f.ask(10, 5), 10, 49))
	require.ErrorIs(t, err, types.ErrInsufficientPayment)
}

func TestSettleInvalidSignature(t *testing.T) {
	f := setupSettlement(t)
	req := f.request(f.bid(10, 5), f.ask(10, 5), 10, 50)
	req.SellSig = types.SignOrder(f.buyKey, req.SellOrder, f.domain)

	_, err := f.k.Settle(f.ctx, req)
	require.ErrorIs(t, err, types.ErrInvalidSignature)

	req = f.request(f.bid(10, 5), f.ask(10, 5), 10, 50)
	req.BuyOrder.Amount = math.NewInt(1000)
	_, err = f.k.Settle(f.ctx, req)
	require.ErrorIs(t, err, types.ErrInvalidSignature)
}

func TestSettleExpired(t *testing.T) {
	f := setupSettlement(t)
	ask := f.ask(10, 5)
	ask.Expiry = f.ctx.BlockTime().Unix()

	_, err := f.k.Settle(f.ctx, f.request(f.bid(10, 5), ask, 10, 50))
	require.ErrorIs(t, err, types.ErrOrderExpired)

	ask.Expiry = f.ctx.BlockTime().Unix() + 1
	_, err = f.k.Settle(f.ctx, f.request(f.bid(10, 5), ask, 10, 50))
	require.NoError(t, err)
}

func TestSettleValidation(t *testing.T) {
	f := setupSettlement(t)

	req := f.request(f.bid(10, 4), f.ask(10, 5), 10, 50)
	_, err := f.k.Settle(f.ctx, req)
	require.ErrorIs(t, err, types.ErrPriceMismatch)

	req = f.request(f.bid(10, 5), f.ask(10, 5), 0, 50)
	_, err = f.k.Settle(f.ctx, req)
	require.ErrorIs(t, err, types.ErrInvalidRequest)

	req = f.request(f.ask(10, 5), f.ask(10, 5), 10, 50)
	_, err = f.k.Settle(f.ctx, req)
	require.ErrorIs(t, err, types.ErrInvalidRequest)

	// a price strictly between the limits is not any resting order's price
	req = f.request(f.bid(10, 7), f.ask(10, 5), 10, 70)
	req.Price = math.NewInt(6)
	_, err = f.k.Settle(f.ctx, req)
	require.ErrorIs(t, err, types.ErrPriceMismatch)
	require.True(t, f.k.GetExecuted(f.ctx, req.SellOrder.ID(f.domain)).IsZero())
}

func TestCancel(t *testing.T) {
	f := setupSettlement(t)
	bid, ask := f.bid(10, 5), f.ask(10, 5)

	_, err := f.k.Cancel(f.ctx, ask, types.SignOrder(f.buyKey, ask, f.domain))
	require.ErrorIs(t, err, types.ErrInvalidSignature)

	orderID, err := f.k.Cancel(f.ctx, ask, types.SignOrder(f.sellKey, ask, f.domain))
	require.NoError(t, err)
	require.Equal(t, ask.ID(f.domain), orderID)
	record := f.k.GetCancellation(f.ctx, orderID)
	require.NotNil(t, record)

	_, err = f.k.Cancel(f.ctx, ask, types.SignOrder(f.sellKey, ask, f.domain))
	require.ErrorIs(t, err, types.ErrAlreadyCancelled)
	require.Equal(t, record, f.k.GetCancellation(f.ctx, orderID))

	_, err = f.k.Settle(f.ctx, f.request(bid, ask, 10, 50))
	require.ErrorIs(t, err, types.ErrOrderCancelled)
	require.True(t, f.k.GetOrderState(f.ctx, ask).Remaining.IsZero())
	require.True(t, f.k.GetOrderState(f.ctx, ask).Cancelled)
}

func TestMsgServerDiscardsFailedSettlement(t *testing.T) {
	f := setupSettlement(t)
	srv := keeper.NewMsgServerImpl(f.k)

	// payment exceeds the buyer's funds: fails after the executed amounts
	// were written in the branch
	bid, ask := f.bid(10, 5), f.ask(10, 5)
	_, err := srv.Settle(f.ctx, &types.MsgSettle{Request: f.request(bid, ask, 10, 20_000)})
	require.ErrorIs(t, err, vaulttypes.ErrInsufficientFunds)
	require.True(t, f.k.GetExecuted(f.ctx, bid.ID(f.domain)).IsZero())
	require.True(t, f.k.GetExecuted(f.ctx, ask.ID(f.domain)).IsZero())

	res, err := srv.Settle(f.ctx, &types.MsgSettle{Request: f.request(bid, ask, 10, 50)})
	require.NoError(t, err)
	require.True(t, res.Settlement.SellExecuted.Equal(math.NewInt(10)))

	cancelled, err := srv.CancelOrder(f.ctx, &types.MsgCancelOrder{
		Order: bid, Signature: types.SignOrder(f.buyKey, bid, f.domain),
	})
	require.NoError(t, err)
	require.Equal(t, bid.ID(f.domain), cancelled.OrderID)
}

func TestSettleSellerWithoutShares(t *testing.T) {
	f := setupSettlement(t)
	ask := f.ask(2000, 1)

	_, err := f.k.Settle(f.ctx, f.request(f.bid(2000, 1), ask, 1500, 1500))
	require.ErrorIs(t, err, sharestypes.ErrInsufficientBalance)
}
