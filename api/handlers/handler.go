package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"cosmossdk.io/log"
	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/openalpha/fracshare/api/types"
	"github.com/openalpha/fracshare/app"
	"github.com/openalpha/fracshare/offchain/orderstore"
	settlementtypes "github.com/openalpha/fracshare/x/settlement/types"
	shareskeeper "github.com/openalpha/fracshare/x/shares/keeper"
	sharestypes "github.com/openalpha/fracshare/x/shares/types"
)

// Ledger is the authoritative state the handlers read and mutate
type Ledger interface {
	Height() int64
	Domain() settlementtypes.Domain
	Params() settlementtypes.Params

	ExecuteAction(action settlementtypes.Action, sig []byte) (*app.ActionResult, error)
	Fund(addr string, coin sdk.Coin) error
	CancelOrder(order settlementtypes.Order, sig []byte) (string, error)
	Settle(req settlementtypes.SettleRequest) (*settlementtypes.Settlement, error)

	Pool(poolID string) (*sharestypes.Pool, error)
	Pools() []*sharestypes.Pool
	Holding(poolID, holder string) (*sharestypes.Holding, error)
	Holders(poolID string) []*sharestypes.Holding
	PoolAccounting(poolID string) (*shareskeeper.PoolAccounting, error)
	Balance(addr, denom string) math.Int
	OrderState(order settlementtypes.Order) *settlementtypes.OrderState
	Settlement(settlementID string) (*settlementtypes.Settlement, error)
	RecentSettlements(limit int) []*settlementtypes.Settlement
}

// OrderBook is the advisory order store
type OrderBook interface {
	CreateOrder(order settlementtypes.Order, sig []byte) (string, error)
	GetOrder(orderID string) (*orderstore.Entry, error)
	CancelOrder(order settlementtypes.Order, sig []byte) (string, error)
	OpenOrders(poolID string, side settlementtypes.Side) []*orderstore.Entry
	GetMatch(matchID string) (*orderstore.OrderMatch, error)
	PendingMatches() []*orderstore.OrderMatch
	MatchesForOrder(orderID string) []*orderstore.OrderMatch
	SyncExecuted(orderID string, executed math.Int, cancelled bool) error
}

// Matcher proposes matches for an order
type Matcher interface {
	ProposeMatches(orderID string) ([]*orderstore.OrderMatch, error)
}

// Submitter turns a pending match into a settlement
type Submitter interface {
	SubmitMatch(ctx context.Context, matchID string) (*settlementtypes.Settlement, error)
}

// Handler serves the REST API
type Handler struct {
	ledger    Ledger
	book      OrderBook
	matcher   Matcher
	submitter Submitter
	logger    log.Logger
	clock     func() time.Time
}

// NewHandler creates a new handler
func NewHandler(ledger Ledger, book OrderBook, matcher Matcher, submitter Submitter, logger log.Logger) *Handler {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Handler{
		ledger:    ledger,
		book:      book,
		matcher:   matcher,
		submitter: submitter,
		logger:    logger.With("module", "api"),
		clock:     time.Now,
	}
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, &types.HealthResponse{
		Status:    "healthy",
		ChainID:   h.ledger.Domain().ChainID,
		Height:    h.ledger.Height(),
		Timestamp: h.clock().Unix(),
	})
}

// Params handles GET /v1/params
func (h *Handler) Params(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"params": h.ledger.Params(),
		"domain": h.ledger.Domain(),
	})
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeBadRequest(w, "invalid_json", "Invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func queryLimit(r *http.Request, def, max int) int {
	limit := def
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > max {
		limit = max
	}
	return limit
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeBadRequest(w http.ResponseWriter, code, message string) {
	writeJSON(w, http.StatusBadRequest, &types.ErrorResponse{
		Error:   code,
		Kind:    app.KindValidation.String(),
		Message: message,
	})
}

// writeError maps a ledger or store error to its HTTP status
func (h *Handler) writeError(w http.ResponseWriter, code string, err error) {
	kind := app.KindOf(err)
	status := StatusOf(kind)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "code", code, "error", err)
	}
	writeJSON(w, status, &types.ErrorResponse{
		Error:   code,
		Kind:    kind.String(),
		Message: err.Error(),
	})
}

// StatusOf returns the HTTP status of an error kind
func StatusOf(kind app.Kind) int {
	switch kind {
	case app.KindValidation:
		return http.StatusBadRequest
	case app.KindAuthorization:
		return http.StatusForbidden
	case app.KindState, app.KindReplay:
		return http.StatusConflict
	case app.KindFunds:
		return http.StatusPaymentRequired
	case app.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
