package matcher

import (
	"errors"
	"time"

	"cosmossdk.io/log"
	"cosmossdk.io/math"

	"github.com/openalpha/fracshare/metrics"
	"github.com/openalpha/fracshare/offchain/orderstore"
	"github.com/openalpha/fracshare/x/settlement/types"
)

// Engine proposes matches from the advisory order store. It never touches
// the ledger; proposals are only validated when they are settled.
type Engine struct {
	store  *orderstore.Store
	clock  func() time.Time
	logger log.Logger
}

// NewEngine creates an engine over store
func NewEngine(store *orderstore.Store, logger log.Logger, clock func() time.Time) *Engine {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Engine{
		store:  store,
		clock:  clock,
		logger: logger.With("module", "matcher"),
	}
}

// candidate is a resting order the incoming order can trade against
type candidate struct {
	orderID string
	price   math.Int
	amount  math.Int
}

// ProposeMatches matches an incoming order against the resting orders of
// the counter side using price-time priority. The settlement price is the
// resting order's price. Each proposal is stored as a PENDING match.
func (e *Engine) ProposeMatches(orderID string) ([]*orderstore.OrderMatch, error) {
	timer := metrics.NewTimer()

	incoming, err := e.store.GetOrder(orderID)
	if err != nil {
		if errors.Is(err, orderstore.ErrOrderNotFound) {
			return nil, types.ErrInvalidOrder.Wrapf("unknown order %s", orderID)
		}
		return nil, err
	}

	now := e.clock().Unix()
	matches := make([]*orderstore.OrderMatch, 0)
	if !incoming.Status.IsOpen() || incoming.Order.ExpiredAt(now) {
		return matches, nil
	}

	remaining := incoming.Remaining()
	var candidates []candidate
	e.store.Scan(incoming.Order.PoolID, incoming.Order.Side.Opposite(), func(resting *orderstore.Entry) bool {
		if !remaining.IsPositive() {
			return false
		}
		if !isPriceCompatible(incoming.Order, resting.Order.PricePerUnit) {
			return false
		}
		if resting.Order.Owner == incoming.Order.Owner ||
			!resting.Status.IsOpen() ||
			resting.Order.ExpiredAt(now) {
			return true
		}
		available := resting.Remaining()
		if !available.IsPositive() {
			return true
		}

		amount := math.MinInt(remaining, available)
		candidates = append(candidates, candidate{
			orderID: resting.OrderID,
			price:   resting.Order.PricePerUnit,
			amount:  amount,
		})
		remaining = remaining.Sub(amount)
		return true
	})

	for _, c := range candidates {
		buyID, sellID := incoming.OrderID, c.orderID
		if incoming.Order.Side == types.SideAsk {
			buyID, sellID = c.orderID, incoming.OrderID
		}
		m, err := e.store.AddMatch(buyID, sellID, c.amount, c.price)
		if err != nil {
			// the book moved between the scan and the reservation
			e.logger.Debug("match skipped", "buy_order_id", buyID, "sell_order_id", sellID, "error", err)
			continue
		}
		matches = append(matches, m)
	}

	metrics.GetCollector().RecordMatchingLatency(incoming.Order.PoolID, timer.ElapsedMs())
	if len(matches) > 0 {
		e.logger.Info("matches proposed", "order_id", orderID, "count", len(matches))
	}
	return matches, nil
}

// isPriceCompatible checks that the incoming order crosses the resting
// price: a bid must be at or above the ask, an ask at or below the bid.
func isPriceCompatible(incoming types.Order, restingPrice math.Int) bool {
	if incoming.Side == types.SideBid {
		return incoming.PricePerUnit.GTE(restingPrice)
	}
	return incoming.PricePerUnit.LTE(restingPrice)
}
