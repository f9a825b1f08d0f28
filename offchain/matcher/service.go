package matcher

import (
	"context"
	"sync"
	"time"

	"cosmossdk.io/log"

	"github.com/openalpha/fracshare/offchain/orderstore"
)

// Config holds the matcher service configuration
type Config struct {
	// Interval between expiry sweeps and submission rounds
	Interval time.Duration `json:"interval"`
	// BatchSize caps the orders matched per round
	BatchSize int `json:"batch_size"`
	// AutoMatch proposes matches for every new order
	AutoMatch bool `json:"auto_match"`
	// AutoSubmit drives pending matches into the ledger every round
	AutoSubmit bool `json:"auto_submit"`
}

// DefaultConfig returns the default matcher configuration
func DefaultConfig() *Config {
	return &Config{
		Interval:   500 * time.Millisecond,
		BatchSize:  100,
		AutoMatch:  true,
		AutoSubmit: true,
	}
}

// Stats is a snapshot of the service
type Stats struct {
	QueuedOrders   int             `json:"queued_orders"`
	PendingMatches int             `json:"pending_matches"`
	Rounds         int64           `json:"rounds"`
	Submitter      SubmitterStatus `json:"submitter"`
}

// Service runs the engine and the submitter in the background
type Service struct {
	config    *Config
	store     *orderstore.Store
	engine    *Engine
	submitter *Submitter
	queue     *OrderQueue
	logger    log.Logger
	clock     func() time.Time

	mu      sync.Mutex
	running bool
	rounds  int64
	wake    chan struct{}
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewService wires a service. New orders are queued for matching as soon
// as the store accepts them.
func NewService(config *Config, store *orderstore.Store, engine *Engine, submitter *Submitter, logger log.Logger, clock func() time.Time) *Service {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Interval <= 0 {
		config.Interval = DefaultConfig().Interval
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	if clock == nil {
		clock = time.Now
	}
	s := &Service{
		config:    config,
		store:     store,
		engine:    engine,
		submitter: submitter,
		queue:     NewOrderQueue(config.BatchSize),
		logger:    logger.With("module", "matcher-service"),
		clock:     clock,
		wake:      make(chan struct{}, 1),
	}
	if config.AutoMatch {
		store.Subscribe(s.onUpdate)
	}
	return s
}

func (s *Service) onUpdate(u orderstore.Update) {
	if u.Type != orderstore.UpdateOrderCreated || u.Order == nil {
		return
	}
	if s.queue.Add(u.Order.OrderID) {
		select {
		case s.wake <- struct{}{}:
		default:
		}
	}
}

// Start starts the background loop
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})

	s.wg.Add(1)
	go s.loop(ctx, s.stopCh)

	s.logger.Info("matcher service started", "interval", s.config.Interval)
	return nil
}

// Stop stops the loop after a final round
func (s *Service) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("matcher service stopped")
	return nil
}

func (s *Service) loop(ctx context.Context, stopCh chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			s.RunOnce(context.Background())
			return
		case <-s.wake:
			s.RunOnce(ctx)
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce expires stale orders, proposes matches for queued orders and,
// when enabled, submits every pending match.
func (s *Service) RunOnce(ctx context.Context) {
	s.store.ExpireOrders(s.clock())

	for {
		batch := s.queue.FlushBatch()
		if len(batch) == 0 {
			break
		}
		for _, orderID := range batch {
			if _, err := s.engine.ProposeMatches(orderID); err != nil {
				s.logger.Error("failed to propose matches", "order_id", orderID, "error", err)
			}
		}
	}

	if s.config.AutoSubmit {
		settled, failed := s.submitter.SubmitPending(ctx)
		if settled+failed > 0 {
			s.logger.Info("pending matches submitted", "settled", settled, "failed", failed)
		}
	}

	s.mu.Lock()
	s.rounds++
	s.mu.Unlock()
}

// GetStats returns a snapshot of the service
func (s *Service) GetStats() Stats {
	s.mu.Lock()
	rounds := s.rounds
	s.mu.Unlock()

	return Stats{
		QueuedOrders:   s.queue.Len(),
		PendingMatches: len(s.store.PendingMatches()),
		Rounds:         rounds,
		Submitter:      s.submitter.GetStatus(),
	}
}
