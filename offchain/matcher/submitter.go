package matcher

import (
	"context"
	"sync"
	"time"

	"cosmossdk.io/log"

	"github.com/openalpha/fracshare/offchain/orderstore"
	"github.com/openalpha/fracshare/x/settlement/types"
)

// Ledger is the authoritative side the submitter settles against
type Ledger interface {
	Settle(req types.SettleRequest) (*types.Settlement, error)
	OrderState(order types.Order) *types.OrderState
}

// SubmitterStatus represents the status of a submitter
type SubmitterStatus struct {
	InFlight          int       `json:"in_flight"`
	LastSubmitTime    time.Time `json:"last_submit_time"`
	LastError         string    `json:"last_error,omitempty"`
	TotalSubmissions  int64     `json:"total_submissions"`
	FailedSubmissions int64     `json:"failed_submissions"`
}

// Submitter drives PENDING matches into the ledger and writes the outcome
// back to the store.
type Submitter struct {
	ledger Ledger
	store  *orderstore.Store
	logger log.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
	status   SubmitterStatus
}

// NewSubmitter creates a submitter
func NewSubmitter(ledger Ledger, store *orderstore.Store, logger log.Logger) *Submitter {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Submitter{
		ledger:   ledger,
		store:    store,
		logger:   logger.With("module", "submitter"),
		inFlight: make(map[string]struct{}),
	}
}

// SubmitMatch settles one PENDING match. The match is marked SETTLED or
// FAILED according to the ledger's answer, and both orders are refreshed
// from the ledger's executed amounts either way. The returned error is
// the ledger's rejection, if any.
func (s *Submitter) SubmitMatch(ctx context.Context, matchID string) (*types.Settlement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !s.acquire(matchID) {
		return nil, orderstore.ErrMatchNotPending.Wrapf("match %s is being submitted", matchID)
	}
	defer s.release(matchID)

	m, err := s.store.GetMatch(matchID)
	if err != nil {
		return nil, err
	}
	if m.Status != orderstore.MatchPending {
		return nil, orderstore.ErrMatchNotPending.Wrapf("match %s is %s", matchID, m.Status)
	}

	buy, err := s.store.GetOrder(m.BuyOrderID)
	if err != nil {
		return nil, err
	}
	sell, err := s.store.GetOrder(m.SellOrderID)
	if err != nil {
		return nil, err
	}

	req := types.SettleRequest{
		BuyOrder:  buy.Order,
		BuySig:    buy.Signature,
		SellOrder: sell.Order,
		SellSig:   sell.Signature,
		Amount:    m.MatchedAmount,
		Price:     m.MatchedPrice,
		Payment:   m.MatchedAmount.Mul(m.MatchedPrice),
	}

	settlement, settleErr := s.ledger.Settle(req)
	if settleErr != nil {
		if err := s.store.MarkFailed(matchID, settleErr.Error()); err != nil {
			s.logger.Error("failed to mark match failed", "match_id", matchID, "error", err)
		}
		s.logger.Info("match rejected by ledger", "match_id", matchID, "error", settleErr)
	} else if err := s.store.MarkSettled(matchID, settlement.SettlementID); err != nil {
		s.logger.Error("failed to mark match settled", "match_id", matchID, "error", err)
	}

	s.sync(buy)
	s.sync(sell)
	s.record(settleErr)

	if settleErr != nil {
		return nil, settleErr
	}
	return settlement, nil
}

// SubmitPending submits every PENDING match in creation order and returns
// how many settled and how many failed.
func (s *Submitter) SubmitPending(ctx context.Context) (settled, failed int) {
	for _, m := range s.store.PendingMatches() {
		if ctx.Err() != nil {
			return settled, failed
		}
		if _, err := s.SubmitMatch(ctx, m.MatchID); err != nil {
			failed++
			continue
		}
		settled++
	}
	return settled, failed
}

// GetStatus returns the submitter status
func (s *Submitter) GetStatus() SubmitterStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	status := s.status
	status.InFlight = len(s.inFlight)
	return status
}

// sync refreshes the advisory fill of an order from the ledger
func (s *Submitter) sync(e *orderstore.Entry) {
	state := s.ledger.OrderState(e.Order)
	if err := s.store.SyncExecuted(e.OrderID, state.Executed, state.Cancelled); err != nil {
		s.logger.Error("failed to sync order", "order_id", e.OrderID, "error", err)
	}
}

func (s *Submitter) acquire(matchID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.inFlight[matchID]; ok {
		return false
	}
	s.inFlight[matchID] = struct{}{}
	return true
}

func (s *Submitter) release(matchID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, matchID)
}

func (s *Submitter) record(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.TotalSubmissions++
	s.status.LastSubmitTime = time.Now()
	if err != nil {
		s.status.FailedSubmissions++
		s.status.LastError = err.Error()
	}
}
