package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// fracshare metrics collector

var (
	// Singleton collector
	collector     *Collector
	collectorOnce sync.Once
)

// Collector holds all fracshare metrics
type Collector struct {
	// Ledger metrics
	LedgerOpsTotal  *prometheus.CounterVec
	LedgerOpLatency *prometheus.HistogramVec
	LedgerHeight    prometheus.Gauge

	// Dividend metrics
	DividendsDeposited *prometheus.CounterVec
	DividendsClaimed   *prometheus.CounterVec
	ShareTransfers     *prometheus.CounterVec

	// Settlement metrics
	SettlementsTotal *prometheus.CounterVec
	SettledShares    *prometheus.CounterVec
	SettledValue     *prometheus.CounterVec
	FeesCollected    *prometheus.CounterVec

	// Advisory order book metrics
	OrdersTotal     *prometheus.CounterVec
	OrdersOpen      *prometheus.GaugeVec
	MatchesTotal    *prometheus.CounterVec
	MatchingLatency *prometheus.HistogramVec

	// WebSocket metrics
	WSConnectionsActive prometheus.Gauge
	WSMessagesTotal     *prometheus.CounterVec

	// API metrics
	APIRequestsTotal  *prometheus.CounterVec
	APIRequestLatency *prometheus.HistogramVec
}

// GetCollector returns the singleton metrics collector
func GetCollector() *Collector {
	collectorOnce.Do(func() {
		collector = newCollector()
	})
	return collector
}

// newCollector creates a new metrics collector
func newCollector() *Collector {
	c := &Collector{}

	// Ledger metrics
	c.LedgerOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fracshare",
			Subsystem: "ledger",
			Name:      "operations_total",
			Help:      "Ledger operations by name and outcome",
		},
		[]string{"op", "outcome"},
	)

	c.LedgerOpLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fracshare",
			Subsystem: "ledger",
			Name:      "operation_latency_ms",
			Help:      "Ledger operation latency in milliseconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100},
		},
		[]string{"op"},
	)

	c.LedgerHeight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "fracshare",
			Subsystem: "ledger",
			Name:      "height",
			Help:      "Last committed ledger height",
		},
	)

	// Dividend metrics
	c.DividendsDeposited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fracshare",
			Subsystem: "dividends",
			Name:      "deposited",
			Help:      "Total dividends deposited",
		},
		[]string{"pool_id"},
	)

	c.DividendsClaimed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fracshare",
			Subsystem: "dividends",
			Name:      "claimed",
			Help:      "Total dividends claimed",
		},
		[]string{"pool_id"},
	)

	c.ShareTransfers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fracshare",
			Subsystem: "shares",
			Name:      "transfers_total",
			Help:      "Total share transfers",
		},
		[]string{"pool_id"},
	)

	// Settlement metrics
	c.SettlementsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fracshare",
			Subsystem: "settlements",
			Name:      "total",
			Help:      "Total settlements executed",
		},
		[]string{"pool_id"},
	)

	c.SettledShares = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fracshare",
			Subsystem: "settlements",
			Name:      "shares",
			Help:      "Total shares moved by settlement",
		},
		[]string{"pool_id"},
	)

	c.SettledValue = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fracshare",
			Subsystem: "settlements",
			Name:      "value",
			Help:      "Total value paid by buyers",
		},
		[]string{"pool_id"},
	)

	c.FeesCollected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fracshare",
			Subsystem: "settlements",
			Name:      "fees",
			Help:      "Total platform fees collected",
		},
		[]string{"pool_id"},
	)

	// Advisory order book metrics
	c.OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fracshare",
			Subsystem: "orders",
			Name:      "total",
			Help:      "Orders by side and lifecycle event",
		},
		[]string{"side", "status"},
	)

	c.OrdersOpen = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "fracshare",
			Subsystem: "orders",
			Name:      "open",
			Help:      "Number of open orders in the advisory book",
		},
		[]string{"pool_id", "side"},
	)

	c.MatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fracshare",
			Subsystem: "matching",
			Name:      "matches_total",
			Help:      "Order matches by status",
		},
		[]string{"status"},
	)

	c.MatchingLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fracshare",
			Subsystem: "matching",
			Name:      "latency_ms",
			Help:      "Match proposal latency in milliseconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50},
		},
		[]string{"pool_id"},
	)

	// WebSocket metrics
	c.WSConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "fracshare",
			Subsystem: "websocket",
			Name:      "connections_active",
			Help:      "Number of active WebSocket connections",
		},
	)

	c.WSMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fracshare",
			Subsystem: "websocket",
			Name:      "messages_total",
			Help:      "Total WebSocket messages broadcast",
		},
		[]string{"channel"},
	)

	// API metrics
	c.APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fracshare",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total API requests",
		},
		[]string{"method", "path", "status"},
	)

	c.APIRequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fracshare",
			Subsystem: "api",
			Name:      "request_latency_ms",
			Help:      "API request latency in milliseconds",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"method", "path"},
	)

	// Register all metrics
	c.registerAll()

	return c
}

// registerAll registers all metrics with Prometheus
func (c *Collector) registerAll() {
	// Ledger metrics
	prometheus.MustRegister(c.LedgerOpsTotal)
	prometheus.MustRegister(c.LedgerOpLatency)
	prometheus.MustRegister(c.LedgerHeight)

	// Dividend metrics
	prometheus.MustRegister(c.DividendsDeposited)
	prometheus.MustRegister(c.DividendsClaimed)
	prometheus.MustRegister(c.ShareTransfers)

	// Settlement metrics
	prometheus.MustRegister(c.SettlementsTotal)
	prometheus.MustRegister(c.SettledShares)
	prometheus.MustRegister(c.SettledValue)
	prometheus.MustRegister(c.FeesCollected)

	// Advisory order book metrics
	prometheus.MustRegister(c.OrdersTotal)
	prometheus.MustRegister(c.OrdersOpen)
	prometheus.MustRegister(c.MatchesTotal)
	prometheus.MustRegister(c.MatchingLatency)

	// WebSocket metrics
	prometheus.MustRegister(c.WSConnectionsActive)
	prometheus.MustRegister(c.WSMessagesTotal)

	// API metrics
	prometheus.MustRegister(c.APIRequestsTotal)
	prometheus.MustRegister(c.APIRequestLatency)
}

// ============ Recording Helpers ============

// RecordLedgerOp records the outcome and latency of a ledger operation
func (c *Collector) RecordLedgerOp(op, outcome string, latencyMs float64) {
	c.LedgerOpsTotal.WithLabelValues(op, outcome).Inc()
	c.LedgerOpLatency.WithLabelValues(op).Observe(latencyMs)
}

// RecordHeight records the last committed ledger height
func (c *Collector) RecordHeight(height int64) {
	c.LedgerHeight.Set(float64(height))
}

// RecordDeposit records a dividend deposit
func (c *Collector) RecordDeposit(poolID string, amount float64) {
	c.DividendsDeposited.WithLabelValues(poolID).Add(amount)
}

// RecordClaim records a dividend claim
func (c *Collector) RecordClaim(poolID string, amount float64) {
	c.DividendsClaimed.WithLabelValues(poolID).Add(amount)
}

// RecordTransfer records a share transfer
func (c *Collector) RecordTransfer(poolID string) {
	c.ShareTransfers.WithLabelValues(poolID).Inc()
}

// RecordSettlement records an executed settlement
func (c *Collector) RecordSettlement(poolID string, shares, value, fee float64) {
	c.SettlementsTotal.WithLabelValues(poolID).Inc()
	c.SettledShares.WithLabelValues(poolID).Add(shares)
	c.SettledValue.WithLabelValues(poolID).Add(value)
	c.FeesCollected.WithLabelValues(poolID).Add(fee)
}

// RecordOrder records an order lifecycle event
func (c *Collector) RecordOrder(side, status string) {
	c.OrdersTotal.WithLabelValues(side, status).Inc()
}

// SetOpenOrders records the number of open orders on one side of a pool
func (c *Collector) SetOpenOrders(poolID, side string, n int) {
	c.OrdersOpen.WithLabelValues(poolID, side).Set(float64(n))
}

// RecordMatch records a match status transition
func (c *Collector) RecordMatch(status string) {
	c.MatchesTotal.WithLabelValues(status).Inc()
}

// RecordMatchingLatency records match proposal latency
func (c *Collector) RecordMatchingLatency(poolID string, latencyMs float64) {
	c.MatchingLatency.WithLabelValues(poolID).Observe(latencyMs)
}

// RecordAPIRequest records an API request
func (c *Collector) RecordAPIRequest(method, path, status string, latencyMs float64) {
	c.APIRequestsTotal.WithLabelValues(method, path, status).Inc()
	c.APIRequestLatency.WithLabelValues(method, path).Observe(latencyMs)
}

// RecordWSConnection records WebSocket connection changes
func (c *Collector) RecordWSConnection(delta int) {
	c.WSConnectionsActive.Add(float64(delta))
}

// RecordWSMessage records a broadcast WebSocket message
func (c *Collector) RecordWSMessage(channel string) {
	c.WSMessagesTotal.WithLabelValues(channel).Inc()
}

// ============ HTTP Handler ============

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for measuring latency
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ElapsedMs returns the elapsed time in milliseconds
func (t *Timer) ElapsedMs() float64 {
	return float64(time.Since(t.start).Microseconds()) / 1000.0
}
