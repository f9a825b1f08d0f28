package orderstore

import (
	"sort"
	"sync"
	"time"

	"cosmossdk.io/log"
	"cosmossdk.io/math"
	"github.com/google/uuid"
	"github.com/huandu/skiplist"

	"github.com/openalpha/fracshare/metrics"
	"github.com/openalpha/fracshare/x/settlement/types"
)

// Store keeps signed orders and proposed matches in memory. Everything in
// it is advisory; the ledger decides what actually settles.
type Store struct {
	mu sync.RWMutex

	domain types.Domain
	clock  func() time.Time
	logger log.Logger

	entries     map[string]*Entry
	books       map[string]*book // poolID -> book
	expiry      *skiplist.SkipList
	matches     map[string]*OrderMatch
	matchOrder  []string
	orderMatch  map[string][]string // orderID -> matchIDs
	seq         uint64
	subscribers []Subscriber
}

// NewStore creates an empty store for orders signed under domain
func NewStore(domain types.Domain, logger log.Logger, clock func() time.Time) *Store {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Store{
		domain:     domain,
		clock:      clock,
		logger:     logger.With("module", "orderstore"),
		entries:    make(map[string]*Entry),
		books:      make(map[string]*book),
		expiry:     newExpiryIndex(),
		matches:    make(map[string]*OrderMatch),
		orderMatch: make(map[string][]string),
	}
}

// Domain returns the signing domain the store verifies against
func (s *Store) Domain() types.Domain {
	return s.domain
}

// Subscriber receives store updates
type Subscriber func(Update)

// Subscribe registers fn to receive every update. fn is called without
// the store lock held.
func (s *Store) Subscribe(fn Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

func (s *Store) publish(updates []Update) {
	s.mu.RLock()
	subs := append([]Subscriber(nil), s.subscribers...)
	s.mu.RUnlock()

	for _, u := range updates {
		for _, fn := range subs {
			fn(u)
		}
	}
}

// CreateOrder verifies and stores a signed order
func (s *Store) CreateOrder(order types.Order, sig []byte) (string, error) {
	if err := order.Validate(); err != nil {
		return "", err
	}
	if err := types.VerifyOrder(order, s.domain, sig); err != nil {
		return "", err
	}

	now := s.clock()
	if order.ExpiredAt(now.Unix()) {
		return "", types.ErrOrderExpired.Wrapf("expiry %d", order.Expiry)
	}
	orderID := order.ID(s.domain)

	s.mu.Lock()
	if _, ok := s.entries[orderID]; ok {
		s.mu.Unlock()
		return "", ErrDuplicateOrder.Wrapf("order %s", orderID)
	}

	s.seq++
	e := &Entry{
		OrderID:       orderID,
		Order:         order,
		Signature:     append([]byte(nil), sig...),
		Status:        StatusOpen,
		FilledAmount:  math.ZeroInt(),
		PendingAmount: math.ZeroInt(),
		Seq:           s.seq,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.entries[orderID] = e
	s.bookFor(order.PoolID).add(e)
	if order.Expiry != 0 {
		s.expiry.Set(expiryKey{expiry: order.Expiry, seq: e.Seq}, orderID)
	}
	s.refreshOpenGauge(order.PoolID, order.Side)
	update := Update{Type: UpdateOrderCreated, Order: e.clone()}
	s.mu.Unlock()

	metrics.GetCollector().RecordOrder(string(order.Side), string(StatusOpen))
	s.logger.Debug("order created", "order_id", orderID, "pool_id", order.PoolID, "side", order.Side)
	s.publish([]Update{update})
	return orderID, nil
}

// GetOrder returns a copy of an entry
func (s *Store) GetOrder(orderID string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[orderID]
	if !ok {
		return nil, ErrOrderNotFound.Wrapf("order %s", orderID)
	}
	return e.clone(), nil
}

// CancelOrder withdraws an order from the book. Only the owner's signature
// over the order is accepted.
func (s *Store) CancelOrder(order types.Order, sig []byte) (string, error) {
	if err := types.VerifyOrder(order, s.domain, sig); err != nil {
		return "", err
	}
	orderID := order.ID(s.domain)

	s.mu.Lock()
	e, ok := s.entries[orderID]
	if !ok {
		s.mu.Unlock()
		return "", ErrOrderNotFound.Wrapf("order %s", orderID)
	}
	switch {
	case e.Status == StatusCancelled:
		s.mu.Unlock()
		return "", types.ErrAlreadyCancelled.Wrapf("order %s", orderID)
	case !e.Status.IsOpen():
		s.mu.Unlock()
		return "", ErrOrderClosed.Wrapf("order %s is %s", orderID, e.Status)
	}
	s.closeLocked(e, StatusCancelled)
	update := Update{Type: UpdateOrder, Order: e.clone()}
	s.mu.Unlock()

	metrics.GetCollector().RecordOrder(string(order.Side), string(StatusCancelled))
	s.logger.Info("order cancelled", "order_id", orderID)
	s.publish([]Update{update})
	return orderID, nil
}

// ExpireOrders marks every open order whose expiry is at or before now as
// EXPIRED and returns their ids.
func (s *Store) ExpireOrders(now time.Time) []string {
	s.mu.Lock()
	var (
		expired []string
		updates []Update
	)
	for {
		front := s.expiry.Front()
		if front == nil {
			break
		}
		key := front.Key().(expiryKey)
		if key.expiry > now.Unix() {
			break
		}
		s.expiry.Remove(key)

		e, ok := s.entries[front.Value.(string)]
		if !ok || !e.Status.IsOpen() {
			continue
		}
		s.closeLocked(e, StatusExpired)
		expired = append(expired, e.OrderID)
		updates = append(updates, Update{Type: UpdateOrder, Order: e.clone()})
		metrics.GetCollector().RecordOrder(string(e.Order.Side), string(StatusExpired))
	}
	s.mu.Unlock()

	if len(expired) > 0 {
		s.logger.Info("orders expired", "count", len(expired))
		s.publish(updates)
	}
	return expired
}

// OpenOrders returns the open orders of one side of a pool in priority
// order: best price first, then arrival.
func (s *Store) OpenOrders(poolID string, side types.Side) []*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Entry
	s.scanLocked(poolID, side, func(e *Entry) bool {
		out = append(out, e.clone())
		return true
	})
	return out
}

// Scan walks the open orders of one side of a pool in priority order under
// the store's read lock until fn returns false. fn must not call back into
// the store.
func (s *Store) Scan(poolID string, side types.Side, fn func(e *Entry) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.scanLocked(poolID, side, func(e *Entry) bool {
		return fn(e.clone())
	})
}

func (s *Store) scanLocked(poolID string, side types.Side, fn func(e *Entry) bool) {
	b, ok := s.books[poolID]
	if !ok {
		return
	}
	b.ascend(side, func(orderID string, _ math.Int) bool {
		e, ok := s.entries[orderID]
		if !ok {
			return true
		}
		return fn(e)
	})
}

// AddMatch records a PENDING match and reserves the matched amount on both
// orders.
func (s *Store) AddMatch(buyID, sellID string, amount, price math.Int) (*OrderMatch, error) {
	if amount.IsNil() || !amount.IsPositive() {
		return nil, types.ErrInvalidRequest.Wrap("match amount must be positive")
	}

	s.mu.Lock()
	buy, sell, err := s.pairLocked(buyID, sellID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if buy.Remaining().LT(amount) || sell.Remaining().LT(amount) {
		s.mu.Unlock()
		return nil, ErrInsufficientRemaining.Wrapf("amount %s", amount)
	}

	now := s.clock()
	m := &OrderMatch{
		MatchID:       uuid.NewString(),
		BuyOrderID:    buyID,
		SellOrderID:   sellID,
		PoolID:        buy.Order.PoolID,
		MatchedAmount: amount,
		MatchedPrice:  price,
		Status:        MatchPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.matches[m.MatchID] = m
	s.matchOrder = append(s.matchOrder, m.MatchID)
	s.orderMatch[buyID] = append(s.orderMatch[buyID], m.MatchID)
	s.orderMatch[sellID] = append(s.orderMatch[sellID], m.MatchID)

	for _, e := range []*Entry{buy, sell} {
		e.PendingAmount = e.PendingAmount.Add(amount)
		e.UpdatedAt = now
	}
	updates := []Update{
		{Type: UpdateMatch, Match: m.clone()},
		{Type: UpdateOrder, Order: buy.clone()},
		{Type: UpdateOrder, Order: sell.clone()},
	}
	s.mu.Unlock()

	metrics.GetCollector().RecordMatch(string(MatchPending))
	s.publish(updates)
	return m.clone(), nil
}

func (s *Store) pairLocked(buyID, sellID string) (*Entry, *Entry, error) {
	buy, ok := s.entries[buyID]
	if !ok {
		return nil, nil, ErrOrderNotFound.Wrapf("order %s", buyID)
	}
	sell, ok := s.entries[sellID]
	if !ok {
		return nil, nil, ErrOrderNotFound.Wrapf("order %s", sellID)
	}
	if buy.Order.Side != types.SideBid || sell.Order.Side != types.SideAsk {
		return nil, nil, types.ErrInvalidRequest.Wrap("match needs a bid and an ask")
	}
	if buy.Order.PoolID != sell.Order.PoolID {
		return nil, nil, types.ErrInvalidRequest.Wrap("orders are for different pools")
	}
	if !buy.Status.IsOpen() {
		return nil, nil, ErrOrderClosed.Wrapf("order %s is %s", buyID, buy.Status)
	}
	if !sell.Status.IsOpen() {
		return nil, nil, ErrOrderClosed.Wrapf("order %s is %s", sellID, sell.Status)
	}
	return buy, sell, nil
}

// GetMatch returns a copy of a match
func (s *Store) GetMatch(matchID string) (*OrderMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.matches[matchID]
	if !ok {
		return nil, ErrMatchNotFound.Wrapf("match %s", matchID)
	}
	return m.clone(), nil
}

// PendingMatches returns every PENDING match in creation order
func (s *Store) PendingMatches() []*OrderMatch {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*OrderMatch
	for _, id := range s.matchOrder {
		if m := s.matches[id]; m.Status == MatchPending {
			out = append(out, m.clone())
		}
	}
	return out
}

// MatchesForOrder returns the matches an order takes part in, oldest first
func (s *Store) MatchesForOrder(orderID string) []*OrderMatch {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.orderMatch[orderID]
	out := make([]*OrderMatch, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.matches[id].clone())
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// MarkSettled moves a PENDING match to SETTLED and converts its
// reservation into fill. A match settles at most once.
func (s *Store) MarkSettled(matchID, settlementID string) error {
	return s.resolve(matchID, func(m *OrderMatch, buy, sell *Entry) {
		m.Status = MatchSettled
		m.SettlementID = settlementID
		for _, e := range []*Entry{buy, sell} {
			if e == nil {
				continue
			}
			e.FilledAmount = math.MinInt(e.FilledAmount.Add(m.MatchedAmount), e.Order.Amount)
		}
	})
}

// MarkFailed moves a PENDING match to FAILED and releases its reservation
func (s *Store) MarkFailed(matchID, reason string) error {
	return s.resolve(matchID, func(m *OrderMatch, _, _ *Entry) {
		m.Status = MatchFailed
		m.FailureReason = reason
	})
}

func (s *Store) resolve(matchID string, apply func(m *OrderMatch, buy, sell *Entry)) error {
	s.mu.Lock()
	m, ok := s.matches[matchID]
	if !ok {
		s.mu.Unlock()
		return ErrMatchNotFound.Wrapf("match %s", matchID)
	}
	if m.Status != MatchPending {
		s.mu.Unlock()
		return ErrMatchNotPending.Wrapf("match %s is %s", matchID, m.Status)
	}

	now := s.clock()
	buy := s.entries[m.BuyOrderID]
	sell := s.entries[m.SellOrderID]
	for _, e := range []*Entry{buy, sell} {
		if e == nil {
			continue
		}
		e.PendingAmount = e.PendingAmount.Sub(m.MatchedAmount)
		if e.PendingAmount.IsNegative() {
			e.PendingAmount = math.ZeroInt()
		}
	}
	apply(m, buy, sell)
	m.UpdatedAt = now

	updates := []Update{{Type: UpdateMatch, Match: m.clone()}}
	for _, e := range []*Entry{buy, sell} {
		if e == nil {
			continue
		}
		s.settleStatusLocked(e, now)
		updates = append(updates, Update{Type: UpdateOrder, Order: e.clone()})
	}
	status := m.Status
	s.mu.Unlock()

	metrics.GetCollector().RecordMatch(string(status))
	s.logger.Debug("match resolved", "match_id", matchID, "status", status)
	s.publish(updates)
	return nil
}

// SyncExecuted overwrites an order's advisory fill with the ledger's
// authoritative figures.
func (s *Store) SyncExecuted(orderID string, executed math.Int, cancelled bool) error {
	s.mu.Lock()
	e, ok := s.entries[orderID]
	if !ok {
		s.mu.Unlock()
		return ErrOrderNotFound.Wrapf("order %s", orderID)
	}

	now := s.clock()
	before := e.Status
	if executed.GT(e.FilledAmount) {
		e.FilledAmount = math.MinInt(executed, e.Order.Amount)
	}
	if cancelled && e.Status.IsOpen() {
		s.closeLocked(e, StatusCancelled)
	} else {
		s.settleStatusLocked(e, now)
	}
	e.UpdatedAt = now
	update := Update{Type: UpdateOrder, Order: e.clone()}
	s.mu.Unlock()

	if before != update.Order.Status {
		metrics.GetCollector().RecordOrder(string(e.Order.Side), string(update.Order.Status))
	}
	s.publish([]Update{update})
	return nil
}

// settleStatusLocked refreshes the status and drops a filled order from the book
func (s *Store) settleStatusLocked(e *Entry, now time.Time) {
	wasOpen := e.Status.IsOpen()
	e.refreshStatus()
	e.UpdatedAt = now
	if wasOpen && !e.Status.IsOpen() {
		s.unindexLocked(e)
	}
}

func (s *Store) closeLocked(e *Entry, status Status) {
	e.Status = status
	e.UpdatedAt = s.clock()
	s.unindexLocked(e)
}

func (s *Store) unindexLocked(e *Entry) {
	if b, ok := s.books[e.Order.PoolID]; ok {
		b.remove(e)
	}
	if e.Order.Expiry != 0 {
		s.expiry.Remove(expiryKey{expiry: e.Order.Expiry, seq: e.Seq})
	}
	s.refreshOpenGauge(e.Order.PoolID, e.Order.Side)
}

func (s *Store) bookFor(poolID string) *book {
	b, ok := s.books[poolID]
	if !ok {
		b = newBook()
		s.books[poolID] = b
	}
	return b
}

func (s *Store) refreshOpenGauge(poolID string, side types.Side) {
	n := 0
	if b, ok := s.books[poolID]; ok {
		n = b.side(side).Len()
	}
	metrics.GetCollector().SetOpenOrders(poolID, string(side), n)
}
