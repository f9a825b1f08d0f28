package orderstore_test

import (
	"testing"
	"time"

	"cosmossdk.io/log"
	"cosmossdk.io/math"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/stretchr/testify/require"

	"github.com/openalpha/fracshare/offchain/orderstore"
	"github.com/openalpha/fracshare/testutil"
	"github.com/openalpha/fracshare/x/settlement/types"
)

type trader struct {
	key  *secp256k1.PrivateKey
	addr string
}

func newTrader(label string) trader {
	key, addr := testutil.Key(label)
	return trader{key: key, addr: addr}
}

type storeFixture struct {
	store  *orderstore.Store
	domain types.Domain
	now    time.Time
}

func newStoreFixture(t *testing.T) *storeFixture {
	t.Helper()
	f := &storeFixture{
		domain: types.NewDomain("fracshare-test"),
		now:    testutil.GenesisTime,
	}
	f.store = orderstore.NewStore(f.domain, log.NewNopLogger(), func() time.Time { return f.now })
	return f
}

func (f *storeFixture) place(t *testing.T, tr trader, side types.Side, amount, price int64, nonce uint64) string {
	t.Helper()
	order := types.Order{
		Side: side, PoolID: "pool-1", Amount: math.NewInt(amount),
		PricePerUnit: math.NewInt(price), Owner: tr.addr, Nonce: nonce,
	}
	id, err := f.store.CreateOrder(order, types.SignOrder(tr.key, order, f.domain))
	require.NoError(t, err)
	return id
}

func TestCreateOrder(t *testing.T) {
	f := newStoreFixture(t)
	alice := newTrader("alice")

	order := types.Order{
		Side: types.SideBid, PoolID: "pool-1", Amount: math.NewInt(10),
		PricePerUnit: math.NewInt(5), Owner: alice.addr, Nonce: 1,
	}
	sig := types.SignOrder(alice.key, order, f.domain)

	id, err := f.store.CreateOrder(order, sig)
	require.NoError(t, err)
	require.Equal(t, order.ID(f.domain), id)

	e, err := f.store.GetOrder(id)
	require.NoError(t, err)
	require.Equal(t, orderstore.StatusOpen, e.Status)
	require.True(t, e.Remaining().Equal(math.NewInt(10)))

	_, err = f.store.CreateOrder(order, sig)
	require.ErrorIs(t, err, orderstore.ErrDuplicateOrder)

	_, err = f.store.GetOrder("missing")
	require.ErrorIs(t, err, orderstore.ErrOrderNotFound)
}

func TestCreateOrderRejectsBadInput(t *testing.T) {
	f := newStoreFixture(t)
	alice := newTrader("alice")
	mallory := newTrader("mallory")

	order := types.Order{
		Side: types.SideAsk, PoolID: "pool-1", Amount: math.NewInt(10),
		PricePerUnit: math.NewInt(5), Owner: alice.addr, Nonce: 1,
	}

	_, err := f.store.CreateOrder(order, types.SignOrder(mallory.key, order, f.domain))
	require.ErrorIs(t, err, types.ErrInvalidSignature)

	bad := order
	bad.Amount = math.ZeroInt()
	_, err = f.store.CreateOrder(bad, types.SignOrder(alice.key, bad, f.domain))
	require.ErrorIs(t, err, types.ErrInvalidOrder)

	expired := order
	expired.Expiry = f.now.Unix()
	_, err = f.store.CreateOrder(expired, types.SignOrder(alice.key, expired, f.domain))
	require.ErrorIs(t, err, types.ErrOrderExpired)
}

func TestOpenOrdersPriceTimePriority(t *testing.T) {
	f := newStoreFixture(t)
	a, b, c := newTrader("a"), newTrader("b"), newTrader("c")

	b1 := f.place(t, a, types.SideBid, 10, 50, 1)
	b2 := f.place(t, b, types.SideBid, 10, 55, 1)
	b3 := f.place(t, c, types.SideBid, 10, 50, 1)

	s1 := f.place(t, a, types.SideAsk, 10, 70, 2)
	s2 := f.place(t, b, types.SideAsk, 10, 60, 2)

	ids := func(entries []*orderstore.Entry) []string {
		out := make([]string, 0, len(entries))
		for _, e := range entries {
			out = append(out, e.OrderID)
		}
		return out
	}
	require.Equal(t, []string{b2, b1, b3}, ids(f.store.OpenOrders("pool-1", types.SideBid)))
	require.Equal(t, []string{s2, s1}, ids(f.store.OpenOrders("pool-1", types.SideAsk)))
	require.Empty(t, f.store.OpenOrders("pool-2", types.SideBid))
}

func TestCancelOrder(t *testing.T) {
	f := newStoreFixture(t)
	alice := newTrader("alice")
	mallory := newTrader("mallory")

	order := types.Order{
		Side: types.SideAsk, PoolID: "pool-1", Amount: math.NewInt(10),
		PricePerUnit: math.NewInt(5), Owner: alice.addr, Nonce: 7,
	}
	sig := types.SignOrder(alice.key, order, f.domain)
	id, err := f.store.CreateOrder(order, sig)
	require.NoError(t, err)

	_, err = f.store.CancelOrder(order, types.SignOrder(mallory.key, order, f.domain))
	require.ErrorIs(t, err, types.ErrInvalidSignature)

	cancelled, err := f.store.CancelOrder(order, sig)
	require.NoError(t, err)
	require.Equal(t, id, cancelled)

	e, err := f.store.GetOrder(id)
	require.NoError(t, err)
	require.Equal(t, orderstore.StatusCancelled, e.Status)
	require.Empty(t, f.store.OpenOrders("pool-1", types.SideAsk))

	_, err = f.store.CancelOrder(order, sig)
	require.ErrorIs(t, err, types.ErrAlreadyCancelled)
}

func TestSubscribersSeeEveryUpdate(t *testing.T) {
	f := newStoreFixture(t)
	alice := newTrader("alice")

	var first, second []orderstore.UpdateType
	f.store.Subscribe(func(u orderstore.Update) { first = append(first, u.Type) })
	f.store.Subscribe(func(u orderstore.Update) {
		second = append(second, u.Type)
		// subscribers run without the store lock
		require.Len(t, f.store.OpenOrders("pool-1", types.SideBid), 1)
	})

	id := f.place(t, alice, types.SideBid, 10, 5, 1)
	require.Equal(t, []orderstore.UpdateType{orderstore.UpdateOrderCreated}, first)
	require.Equal(t, first, second)

	entry, err := f.store.GetOrder(id)
	require.NoError(t, err)
	require.Equal(t, alice.addr, entry.Order.Owner)
}

func TestExpireOrders(t *testing.T) {
	f := newStoreFixture(t)
	alice := newTrader("alice")
	start := f.now.Unix()

	place := func(expiry int64, nonce uint64) string {
		order := types.Order{
			Side: types.SideBid, PoolID: "pool-1", Amount: math.NewInt(1),
			PricePerUnit: math.NewInt(1), Owner: alice.addr, Nonce: nonce, Expiry: expiry,
		}
		id, err := f.store.CreateOrder(order, types.SignOrder(alice.key, order, f.domain))
		require.NoError(t, err)
		return id
	}
	late := place(start+100, 1)
	early := place(start+10, 2)
	never := place(0, 3)

	require.Empty(t, f.store.ExpireOrders(f.now.Add(5*time.Second)))

	expired := f.store.ExpireOrders(f.now.Add(10 * time.Second))
	require.Equal(t, []string{early}, expired)

	expired = f.store.ExpireOrders(f.now.Add(time.Hour))
	require.Equal(t, []string{late}, expired)

	for id, want := range map[string]orderstore.Status{
		early: orderstore.StatusExpired,
		late:  orderstore.StatusExpired,
		never: orderstore.StatusOpen,
	} {
		e, err := f.store.GetOrder(id)
		require.NoError(t, err)
		require.Equal(t, want, e.Status)
	}
	require.Len(t, f.store.OpenOrders("pool-1", types.SideBid), 1)
}

func TestMatchLifecycle(t *testing.T) {
	f := newStoreFixture(t)
	buyer, seller := newTrader("buyer"), newTrader("seller")

	buyID := f.place(t, buyer, types.SideBid, 100, 10, 1)
	sellID := f.place(t, seller, types.SideAsk, 60, 9, 1)

	var updates []orderstore.Update
	f.store.Subscribe(func(u orderstore.Update) { updates = append(updates, u) })

	m, err := f.store.AddMatch(buyID, sellID, math.NewInt(60), math.NewInt(9))
	require.NoError(t, err)
	require.Equal(t, orderstore.MatchPending, m.Status)
	require.NotEmpty(t, m.MatchID)
	require.Len(t, updates, 3)

	sell, err := f.store.GetOrder(sellID)
	require.NoError(t, err)
	require.True(t, sell.Remaining().IsZero())
	require.Len(t, f.store.PendingMatches(), 1)

	_, err = f.store.AddMatch(buyID, sellID, math.NewInt(1), math.NewInt(9))
	require.ErrorIs(t, err, orderstore.ErrInsufficientRemaining)

	require.NoError(t, f.store.MarkSettled(m.MatchID, "stl-1"))
	require.ErrorIs(t, f.store.MarkSettled(m.MatchID, "stl-2"), orderstore.ErrMatchNotPending)
	require.ErrorIs(t, f.store.MarkFailed(m.MatchID, "late"), orderstore.ErrMatchNotPending)

	got, err := f.store.GetMatch(m.MatchID)
	require.NoError(t, err)
	require.Equal(t, orderstore.MatchSettled, got.Status)
	require.Equal(t, "stl-1", got.SettlementID)

	sell, err = f.store.GetOrder(sellID)
	require.NoError(t, err)
	require.Equal(t, orderstore.StatusFilled, sell.Status)
	buy, err := f.store.GetOrder(buyID)
	require.NoError(t, err)
	require.Equal(t, orderstore.StatusPartiallyFilled, buy.Status)
	require.True(t, buy.FilledAmount.Equal(math.NewInt(60)))
	require.True(t, buy.Remaining().Equal(math.NewInt(40)))

	require.Empty(t, f.store.PendingMatches())
	require.Len(t, f.store.MatchesForOrder(buyID), 1)
	require.Empty(t, f.store.OpenOrders("pool-1", types.SideAsk))
}

func TestMarkFailedReleasesReservation(t *testing.T) {
	f := newStoreFixture(t)
	buyer, seller := newTrader("buyer"), newTrader("seller")

	buyID := f.place(t, buyer, types.SideBid, 50, 10, 1)
	sellID := f.place(t, seller, types.SideAsk, 50, 10, 1)

	m, err := f.store.AddMatch(buyID, sellID, math.NewInt(50), math.NewInt(10))
	require.NoError(t, err)
	require.NoError(t, f.store.MarkFailed(m.MatchID, "insufficient payment"))

	got, err := f.store.GetMatch(m.MatchID)
	require.NoError(t, err)
	require.Equal(t, orderstore.MatchFailed, got.Status)
	require.Equal(t, "insufficient payment", got.FailureReason)

	buy, err := f.store.GetOrder(buyID)
	require.NoError(t, err)
	require.Equal(t, orderstore.StatusOpen, buy.Status)
	require.True(t, buy.Remaining().Equal(math.NewInt(50)))

	_, err = f.store.GetMatch("missing")
	require.ErrorIs(t, err, orderstore.ErrMatchNotFound)
}

func TestAddMatchValidation(t *testing.T) {
	f := newStoreFixture(t)
	buyer, seller := newTrader("buyer"), newTrader("seller")

	buyID := f.place(t, buyer, types.SideBid, 50, 10, 1)
	sellID := f.place(t, seller, types.SideAsk, 50, 10, 1)

	_, err := f.store.AddMatch(sellID, buyID, math.NewInt(1), math.NewInt(10))
	require.ErrorIs(t, err, types.ErrInvalidRequest)

	_, err = f.store.AddMatch(buyID, sellID, math.ZeroInt(), math.NewInt(10))
	require.ErrorIs(t, err, types.ErrInvalidRequest)

	_, err = f.store.AddMatch(buyID, "missing", math.NewInt(1), math.NewInt(10))
	require.ErrorIs(t, err, orderstore.ErrOrderNotFound)
}

func TestSyncExecuted(t *testing.T) {
	f := newStoreFixture(t)
	seller := newTrader("seller")
	id := f.place(t, seller, types.SideAsk, 100, 10, 1)

	require.NoError(t, f.store.SyncExecuted(id, math.NewInt(30), false))
	e, err := f.store.GetOrder(id)
	require.NoError(t, err)
	require.Equal(t, orderstore.StatusPartiallyFilled, e.Status)
	require.True(t, e.FilledAmount.Equal(math.NewInt(30)))

	// the ledger never moves backwards
	require.NoError(t, f.store.SyncExecuted(id, math.NewInt(10), false))
	e, err = f.store.GetOrder(id)
	require.NoError(t, err)
	require.True(t, e.FilledAmount.Equal(math.NewInt(30)))

	require.NoError(t, f.store.SyncExecuted(id, math.NewInt(30), true))
	e, err = f.store.GetOrder(id)
	require.NoError(t, err)
	require.Equal(t, orderstore.StatusCancelled, e.Status)
	require.Empty(t, f.store.OpenOrders("pool-1", types.SideAsk))

	require.ErrorIs(t, f.store.SyncExecuted("missing", math.ZeroInt(), false), orderstore.ErrOrderNotFound)
}
