package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cosmossdk.io/log"
	"github.com/gorilla/mux"

	"github.com/openalpha/fracshare/api/handlers"
	"github.com/openalpha/fracshare/api/middleware"
	"github.com/openalpha/fracshare/api/websocket"
	"github.com/openalpha/fracshare/app"
	"github.com/openalpha/fracshare/metrics"
	"github.com/openalpha/fracshare/offchain/matcher"
	"github.com/openalpha/fracshare/offchain/orderstore"
)

// Server represents the API server
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	config     *Config
	logger     log.Logger

	hub         *websocket.Hub
	rateLimiter *middleware.RateLimiter
	service     *matcher.Service
}

// Config contains server configuration
type Config struct {
	Host             string
	Port             int
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	DisableRateLimit bool // For testing purposes
	RateLimit        *middleware.RateLimitConfig
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Host:         "0.0.0.0",
		Port:         8080,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		RateLimit:    middleware.DefaultRateLimitConfig(),
	}
}

// Deps are the components the API fronts. Service is optional.
type Deps struct {
	Ledger    *app.Ledger
	Store     *orderstore.Store
	Engine    *matcher.Engine
	Submitter *matcher.Submitter
	Service   *matcher.Service
}

// NewServer creates the API server and subscribes the websocket hub to
// committed ledger events and book updates.
func NewServer(config *Config, deps Deps, logger log.Logger) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}

	s := &Server{
		config:  config,
		logger:  logger.With("module", "server"),
		hub:     websocket.NewHub(websocket.DefaultHubConfig(), logger),
		service: deps.Service,
	}

	deps.Ledger.Subscribe(s.hub.PublishLedgerEvents)
	deps.Store.Subscribe(s.hub.PublishStoreUpdate)

	h := handlers.NewHandler(deps.Ledger, deps.Store, deps.Engine, deps.Submitter, logger)
	router := s.routes(h)

	// Apply middleware chain: CORS -> RateLimit -> Router
	if config.DisableRateLimit {
		s.handler = middleware.CORS(router)
	} else {
		s.rateLimiter = middleware.NewRateLimiter(config.RateLimit)
		s.handler = middleware.CORS(middleware.RateLimitMiddleware(s.rateLimiter)(router))
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      s.handler,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}
	return s
}

func (s *Server) routes(h *handlers.Handler) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Observe(s.logger))

	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.HandleFunc("/v1/health", h.Health).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.hub.ServeWS)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/params", h.Params).Methods(http.MethodGet)
	v1.HandleFunc("/matcher/status", s.handleMatcherStatus).Methods(http.MethodGet)

	// Pools
	v1.HandleFunc("/pools", h.CreatePool).Methods(http.MethodPost)
	v1.HandleFunc("/pools", h.ListPools).Methods(http.MethodGet)
	v1.HandleFunc("/pools/{poolId}", h.GetPool).Methods(http.MethodGet)
	v1.HandleFunc("/pools/{poolId}/dividends", h.DepositDividends).Methods(http.MethodPost)
	v1.HandleFunc("/pools/{poolId}/claim", h.Claim).Methods(http.MethodPost)
	v1.HandleFunc("/pools/{poolId}/transfers", h.TransferShares).Methods(http.MethodPost)
	v1.HandleFunc("/pools/{poolId}/recombine", h.Recombine).Methods(http.MethodPost)
	v1.HandleFunc("/pools/{poolId}/holders", h.ListHolders).Methods(http.MethodGet)
	v1.HandleFunc("/pools/{poolId}/holders/{holder}", h.GetHolding).Methods(http.MethodGet)
	v1.HandleFunc("/pools/{poolId}/accounting", h.GetAccounting).Methods(http.MethodGet)
	v1.HandleFunc("/pools/{poolId}/orderbook", h.GetOrderBook).Methods(http.MethodGet)

	// Accounts
	v1.HandleFunc("/accounts/{address}/fund", h.Fund).Methods(http.MethodPost)
	v1.HandleFunc("/accounts/{address}/balances/{denom}", h.GetBalance).Methods(http.MethodGet)

	// Orders
	v1.HandleFunc("/orders", h.CreateOrder).Methods(http.MethodPost)
	v1.HandleFunc("/orders/cancel", h.CancelOrder).Methods(http.MethodPost)
	v1.HandleFunc("/orders/{orderId}", h.GetOrder).Methods(http.MethodGet)
	v1.HandleFunc("/orders/{orderId}/matches", h.ListOrderMatches).Methods(http.MethodGet)
	v1.HandleFunc("/orders/{orderId}/matches", h.ProposeMatches).Methods(http.MethodPost)

	// Matches
	v1.HandleFunc("/matches", h.ListPendingMatches).Methods(http.MethodGet)
	v1.HandleFunc("/matches/{matchId}", h.GetMatch).Methods(http.MethodGet)
	v1.HandleFunc("/matches/{matchId}/submit", h.SubmitMatch).Methods(http.MethodPost)

	// Settlements
	v1.HandleFunc("/settlements", h.Settle).Methods(http.MethodPost)
	v1.HandleFunc("/settlements", h.ListSettlements).Methods(http.MethodGet)
	v1.HandleFunc("/settlements/{settlementId}", h.GetSettlement).Methods(http.MethodGet)

	return r
}

// Handler returns the fully wrapped HTTP handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Hub returns the websocket hub
func (s *Server) Hub() *websocket.Hub {
	return s.hub
}

// Start runs the websocket hub and serves HTTP until Stop is called
func (s *Server) Start() error {
	go s.hub.Run()

	s.logger.Info("API server starting", "addr", s.httpServer.Addr, "rate_limit", !s.config.DisableRateLimit)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server
func (s *Server) Stop(ctx context.Context) error {
	s.hub.Stop()
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
	return s.httpServer.Shutdown(ctx)
}

// handleMatcherStatus reports the background matching service counters
func (s *Server) handleMatcherStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if s.service == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "matcher_disabled"})
		return
	}
	_ = json.NewEncoder(w).Encode(s.service.GetStats())
}
