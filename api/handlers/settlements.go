package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/openalpha/fracshare/api/types"
	settlementtypes "github.com/openalpha/fracshare/x/settlement/types"
)

const (
	defaultSettlementLimit = 50
	maxSettlementLimit     = 500
)

// Settle handles POST /v1/settlements: a caller that paired two signed
// orders itself settles them without going through the book.
func (h *Handler) Settle(w http.ResponseWriter, r *http.Request) {
	var body types.SettleRequest
	if !decode(w, r, &body) {
		return
	}
	req, err := body.ToSettleRequest()
	if err != nil {
		writeBadRequest(w, "invalid_settlement", err.Error())
		return
	}

	settlement, err := h.ledger.Settle(req)
	if err != nil {
		h.writeError(w, "settle_failed", err)
		return
	}

	// orders that are also in the book follow the ledger
	h.syncBook(req.BuyOrder)
	h.syncBook(req.SellOrder)

	writeJSON(w, http.StatusCreated, settlement)
}

func (h *Handler) syncBook(order settlementtypes.Order) {
	state := h.ledger.OrderState(order)
	if _, err := h.book.GetOrder(state.OrderID); err != nil {
		return
	}
	if err := h.book.SyncExecuted(state.OrderID, state.Executed, state.Cancelled); err != nil {
		h.logger.Error("failed to sync order", "order_id", state.OrderID, "error", err)
	}
}

// ListSettlements handles GET /v1/settlements?limit=N, newest first
func (h *Handler) ListSettlements(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, defaultSettlementLimit, maxSettlementLimit)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"settlements": h.ledger.RecentSettlements(limit),
	})
}

// GetSettlement handles GET /v1/settlements/{settlementId}
func (h *Handler) GetSettlement(w http.ResponseWriter, r *http.Request) {
	s, err := h.ledger.Settlement(mux.Vars(r)["settlementId"])
	if err != nil {
		h.writeError(w, "settlement_not_found", err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}
