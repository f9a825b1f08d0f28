package app_test

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/stretchr/testify/require"

	"github.com/openalpha/fracshare/app"
	"github.com/openalpha/fracshare/offchain/orderstore"
	"github.com/openalpha/fracshare/testutil"
	settlementtypes "github.com/openalpha/fracshare/x/settlement/types"
	sharestypes "github.com/openalpha/fracshare/x/shares/types"
	vaulttypes "github.com/openalpha/fracshare/x/vault/types"
)

const denom = "uusdc"

type ledgerFixture struct {
	ledger  *app.Ledger
	poolID  string
	buyKey  *secp256k1.PrivateKey
	buyer   string
	sellKey *secp256k1.PrivateKey
	seller  string
}

func newLedger(t *testing.T) *ledgerFixture {
	t.Helper()
	params := settlementtypes.DefaultParams()
	params.ChainID = "fracshare-test"

	ledger, err := app.NewLedger(app.Options{
		Params: params,
		Clock:  func() time.Time { return testutil.GenesisTime },
	})
	require.NoError(t, err)

	buyKey, buyer := testutil.Key("buyer")
	sellKey, seller := testutil.Key("seller")

	pool, err := ledger.CreatePool(seller, "artwork-1", math.NewInt(1000), denom)
	require.NoError(t, err)
	require.NoError(t, ledger.Fund(buyer, sdk.NewCoin(denom, math.NewInt(100_000))))

	return &ledgerFixture{
		ledger:  ledger,
		poolID:  pool.PoolID,
		buyKey:  buyKey,
		buyer:   buyer,
		sellKey: sellKey,
		seller:  seller,
	}
}

func (f *ledgerFixture) request(buyAmount, sellAmount, amount int64) settlementtypes.SettleRequest {
	d := f.ledger.Domain()
	bid := settlementtypes.Order{
		Side: settlementtypes.SideBid, PoolID: f.poolID, Amount: math.NewInt(buyAmount),
		PricePerUnit: math.NewInt(5), Owner: f.buyer, Nonce: 1,
	}
	ask := settlementtypes.Order{
		Side: settlementtypes.SideAsk, PoolID: f.poolID, Amount: math.NewInt(sellAmount),
		PricePerUnit: math.NewInt(5), Owner: f.seller, Nonce: 1,
	}
	return settlementtypes.SettleRequest{
		BuyOrder:  bid,
		BuySig:    settlementtypes.SignOrder(f.buyKey, bid, d),
		SellOrder: ask,
		SellSig:   settlementtypes.SignOrder(f.sellKey, ask, d),
		Amount:    math.NewInt(amount),
		Price:     math.NewInt(5),
		Payment:   math.NewInt(amount * 5),
	}
}

func TestNewLedgerRejectsInvalidParams(t *testing.T) {
	params := settlementtypes.DefaultParams()
	params.FeeBps = settlementtypes.MaxFeeBps + 1
	_, err := app.NewLedger(app.Options{Params: params})
	require.ErrorIs(t, err, settlementtypes.ErrInvalidParams)
}

func TestHeightAdvancesOnlyOnCommit(t *testing.T) {
	f := newLedger(t)
	height := f.ledger.Height()

	_, err := f.ledger.DepositDividends(f.buyer, f.poolID, math.NewInt(1000))
	require.NoError(t, err)
	require.Equal(t, height+1, f.ledger.Height())

	_, err = f.ledger.DepositDividends(f.buyer, f.poolID, math.ZeroInt())
	require.Error(t, err)
	require.Equal(t, height+1, f.ledger.Height())
}

// Scenario C: concurrent settles of one pair each asking for the whole
// remaining capacity.
func TestConcurrentSettleConsumesCapacityOnce(t *testing.T) {
	f := newLedger(t)
	req := f.request(100, 60, 60)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		replays   int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ledger.Settle(req)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
				return
			}
			if app.KindOf(err) == app.KindReplay {
				replays++
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, successes)
	require.Equal(t, workers-1, replays)

	sellID := req.SellOrder.ID(f.ledger.Domain())
	require.True(t, f.ledger.Executed(sellID).Equal(math.NewInt(60)))

	holding, err := f.ledger.Holding(f.poolID, f.buyer)
	require.NoError(t, err)
	require.True(t, holding.Balance.Equal(math.NewInt(60)))
	require.NoError(t, f.ledger.CheckInvariants())
}

func TestFailedSettleLeavesNoTrace(t *testing.T) {
	f := newLedger(t)
	req := f.request(100, 60, 60)
	req.Payment = math.NewInt(299)

	before := f.ledger.Balance(f.buyer, denom)
	_, err := f.ledger.Settle(req)
	require.ErrorIs(t, err, settlementtypes.ErrInsufficientPayment)
	require.Equal(t, app.KindFunds, app.KindOf(err))

	require.True(t, f.ledger.Balance(f.buyer, denom).Equal(before))
	require.True(t, f.ledger.Executed(req.SellOrder.ID(f.ledger.Domain())).IsZero())
	require.Empty(t, f.ledger.RecentSettlements(10))
}

func TestSettleAndDividendsThroughLedger(t *testing.T) {
	f := newLedger(t)

	_, err := f.ledger.DepositDividends(f.buyer, f.poolID, math.NewInt(1000))
	require.NoError(t, err)

	s, err := f.ledger.Settle(f.request(100, 100, 100))
	require.NoError(t, err)
	require.Equal(t, "stl-1", s.SettlementID)

	got, err := f.ledger.Settlement("stl-1")
	require.NoError(t, err)
	require.True(t, got.Amount.Equal(math.NewInt(100)))

	// the buyer bought shares after the deposit, so owns nothing of it
	buyerHolding, err := f.ledger.Holding(f.poolID, f.buyer)
	require.NoError(t, err)
	require.True(t, buyerHolding.Claimable.IsZero())

	// the seller keeps the entitlement of the 900 shares still held; the
	// 100 forfeited with the sold shares waits for the next deposit
	paid, err := f.ledger.Claim(f.poolID, f.seller)
	require.NoError(t, err)
	require.True(t, paid.Equal(math.NewInt(900)))

	_, err = f.ledger.DepositDividends(f.buyer, f.poolID, math.NewInt(1000))
	require.NoError(t, err)
	paid, err = f.ledger.Claim(f.poolID, f.buyer)
	require.NoError(t, err)
	require.True(t, paid.Equal(math.NewInt(110)))

	sellerHolding, err := f.ledger.Holding(f.poolID, f.seller)
	require.NoError(t, err)
	require.True(t, sellerHolding.Claimable.Equal(math.NewInt(990)))

	acct, err := f.ledger.PoolAccounting(f.poolID)
	require.NoError(t, err)
	require.True(t, acct.TotalDeposited.Equal(math.NewInt(2000)))
	require.True(t, acct.TotalClaimed.Equal(math.NewInt(1010)))
	require.NoError(t, f.ledger.CheckInvariants())

	params := f.ledger.Params()
	require.True(t, f.ledger.Balance(params.FeeRecipient, denom).Equal(math.NewInt(12)))
}

func TestCancelOrderThroughLedger(t *testing.T) {
	f := newLedger(t)
	req := f.request(100, 60, 60)

	orderID, err := f.ledger.CancelOrder(req.SellOrder, req.SellSig)
	require.NoError(t, err)
	require.Equal(t, req.SellOrder.ID(f.ledger.Domain()), orderID)

	_, err = f.ledger.CancelOrder(req.SellOrder, req.SellSig)
	require.ErrorIs(t, err, settlementtypes.ErrAlreadyCancelled)

	state := f.ledger.OrderState(req.SellOrder)
	require.True(t, state.Cancelled)
	require.True(t, state.Remaining.IsZero())

	_, err = f.ledger.Settle(req)
	require.ErrorIs(t, err, settlementtypes.ErrOrderCancelled)
	require.Equal(t, app.KindState, app.KindOf(err))
}

func TestSubscribeReceivesCommittedEvents(t *testing.T) {
	f := newLedger(t)

	var (
		heights    []int64
		eventTypes []string
	)
	f.ledger.Subscribe(func(height int64, events sdk.Events) {
		heights = append(heights, height)
		for _, ev := range events {
			eventTypes = append(eventTypes, ev.Type)
		}
	})

	_, err := f.ledger.DepositDividends(f.buyer, f.poolID, math.NewInt(10))
	require.NoError(t, err)
	_, err = f.ledger.Claim(f.poolID, f.buyer)
	require.Error(t, err)

	require.Equal(t, []int64{f.ledger.Height()}, heights)
	require.Contains(t, eventTypes, sharestypes.EventTypeDeposit)
}

func TestRecombineThroughLedger(t *testing.T) {
	f := newLedger(t)

	_, err := f.ledger.Recombine(f.poolID, f.buyer)
	require.ErrorIs(t, err, sharestypes.ErrNotSoleOwner)
	require.Equal(t, app.KindAuthorization, app.KindOf(err))

	assetRef, err := f.ledger.Recombine(f.poolID, f.seller)
	require.NoError(t, err)
	require.Equal(t, "artwork-1", assetRef)

	pool, err := f.ledger.Pool(f.poolID)
	require.NoError(t, err)
	require.False(t, pool.Active)
	require.Len(t, f.ledger.Pools(), 1)

	_, err = f.ledger.Pool("pool-999")
	require.Equal(t, app.KindNotFound, app.KindOf(err))
}

func TestKindOf(t *testing.T) {
	cases := []struct {
		err  error
		kind app.Kind
	}{
		{sharestypes.ErrInvalidAmount.Wrap("x"), app.KindValidation},
		{settlementtypes.ErrInvalidSignature, app.KindAuthorization},
		{settlementtypes.ErrOrderExpired, app.KindState},
		{vaulttypes.ErrInsufficientFunds.Wrapf("short by %d", 1), app.KindFunds},
		{settlementtypes.ErrExceedsRemaining, app.KindReplay},
		{orderstore.ErrMatchNotFound, app.KindNotFound},
		{orderstore.ErrInsufficientRemaining, app.KindState},
		{errors.New("boom"), app.KindInternal},
		{nil, app.KindInternal},
	}
	for _, tc := range cases {
		require.Equal(t, tc.kind, app.KindOf(tc.err), "%v", tc.err)
	}
	require.Equal(t, "replay", app.KindReplay.String())
}

func TestOversizedAmountsRejected(t *testing.T) {
	f := newLedger(t)
	huge, ok := math.NewIntFromString("1" + strings.Repeat("0", 68))
	require.True(t, ok)
	height := f.ledger.Height()

	_, err := f.ledger.DepositDividends(f.buyer, f.poolID, huge)
	require.ErrorIs(t, err, sharestypes.ErrInvalidAmount)

	err = f.ledger.Fund(f.buyer, sdk.NewCoin(denom, huge))
	require.ErrorIs(t, err, vaulttypes.ErrInvalidCoin)

	_, err = f.ledger.CreatePool(f.seller, "artwork-2", huge, denom)
	require.ErrorIs(t, err, sharestypes.ErrInvalidAmount)

	// amount*price of these orders does not fit in 256 bits
	req := f.request(100, 100, 100)
	big59, ok := math.NewIntFromString("1" + strings.Repeat("0", 59))
	require.True(t, ok)
	d := f.ledger.Domain()
	req.BuyOrder.Amount, req.BuyOrder.PricePerUnit = big59, big59
	req.SellOrder.Amount, req.SellOrder.PricePerUnit = big59, big59
	req.BuySig = settlementtypes.SignOrder(f.buyKey, req.BuyOrder, d)
	req.SellSig = settlementtypes.SignOrder(f.sellKey, req.SellOrder, d)
	req.Amount, req.Price = big59, big59
	_, err = f.ledger.Settle(req)
	require.ErrorIs(t, err, settlementtypes.ErrInvalidOrder)
	require.Equal(t, app.KindValidation, app.KindOf(err))

	// the ledger stays usable
	require.Equal(t, height, f.ledger.Height())
	_, err = f.ledger.Settle(f.request(100, 100, 100))
	require.NoError(t, err)
	require.NoError(t, f.ledger.CheckInvariants())
}

func TestModuleAccountsAreNotExternal(t *testing.T) {
	f := newLedger(t)
	escrow := sharestypes.EscrowAddress(f.poolID)

	err := f.ledger.Fund(escrow, sdk.NewCoin(denom, math.NewInt(7)))
	require.ErrorIs(t, err, vaulttypes.ErrInvalidAddress)
	require.ErrorIs(t, f.ledger.Fund(settlementtypes.EscrowAddress(), sdk.NewCoin(denom, math.NewInt(7))), vaulttypes.ErrInvalidAddress)
	require.ErrorIs(t, f.ledger.Fund("alice", sdk.NewCoin(denom, math.NewInt(7))), vaulttypes.ErrInvalidAddress)

	err = f.ledger.TransferShares(f.poolID, f.seller, escrow, math.NewInt(5))
	require.ErrorIs(t, err, sharestypes.ErrInvalidHolder)

	_, err = f.ledger.DepositDividends(escrow, f.poolID, math.NewInt(1))
	require.ErrorIs(t, err, sharestypes.ErrInvalidHolder)

	_, err = f.ledger.DepositDividends(f.buyer, f.poolID, math.NewInt(1000))
	require.NoError(t, err)
	require.NoError(t, f.ledger.CheckInvariants())
	require.True(t, f.ledger.Balance(escrow, denom).Equal(math.NewInt(1000)))
}

func TestExecuteAction(t *testing.T) {
	f := newLedger(t)
	d := f.ledger.Domain()

	transfer := settlementtypes.Action{
		Type: settlementtypes.ActionTransfer, Signer: f.seller, PoolID: f.poolID,
		Recipient: f.buyer, Amount: math.NewInt(400), Nonce: 1,
	}
	res, err := f.ledger.ExecuteAction(transfer, settlementtypes.SignAction(f.sellKey, transfer, d))
	require.NoError(t, err)
	require.True(t, f.ledger.ActionExecuted(res.ActionID))

	_, err = f.ledger.ExecuteAction(transfer, settlementtypes.SignAction(f.sellKey, transfer, d))
	require.Equal(t, app.KindReplay, app.KindOf(err))

	// the buyer cannot move the seller's shares
	theft := transfer
	theft.Nonce = 2
	_, err = f.ledger.ExecuteAction(theft, settlementtypes.SignAction(f.buyKey, theft, d))
	require.ErrorIs(t, err, settlementtypes.ErrInvalidSignature)

	deposit := settlementtypes.Action{
		Type: settlementtypes.ActionDeposit, Signer: f.buyer, PoolID: f.poolID,
		Amount: math.NewInt(1000), Nonce: 1,
	}
	res, err = f.ledger.ExecuteAction(deposit, settlementtypes.SignAction(f.buyKey, deposit, d))
	require.NoError(t, err)
	require.True(t, res.Pool.TotalDeposited.Equal(math.NewInt(1000)))

	claim := settlementtypes.Action{
		Type: settlementtypes.ActionClaim, Signer: f.buyer, PoolID: f.poolID,
		Amount: math.ZeroInt(), Nonce: 2,
	}
	res, err = f.ledger.ExecuteAction(claim, settlementtypes.SignAction(f.buyKey, claim, d))
	require.NoError(t, err)
	require.True(t, res.Paid.Equal(math.NewInt(400)))

	// a failed operation leaves its action unconsumed
	recombine := settlementtypes.Action{
		Type: settlementtypes.ActionRecombine, Signer: f.seller, PoolID: f.poolID,
		Amount: math.ZeroInt(), Nonce: 3,
	}
	sig := settlementtypes.SignAction(f.sellKey, recombine, d)
	_, err = f.ledger.ExecuteAction(recombine, sig)
	require.ErrorIs(t, err, sharestypes.ErrNotSoleOwner)
	require.False(t, f.ledger.ActionExecuted(recombine.ID(d)))

	back := settlementtypes.Action{
		Type: settlementtypes.ActionTransfer, Signer: f.buyer, PoolID: f.poolID,
		Recipient: f.seller, Amount: math.NewInt(400), Nonce: 4,
	}
	_, err = f.ledger.ExecuteAction(back, settlementtypes.SignAction(f.buyKey, back, d))
	require.NoError(t, err)
	res, err = f.ledger.ExecuteAction(recombine, sig)
	require.NoError(t, err)
	require.Equal(t, "artwork-1", res.AssetRef)
	require.NoError(t, f.ledger.CheckInvariants())
}
