package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/openalpha/fracshare/api/types"
	"github.com/openalpha/fracshare/offchain/orderstore"
	settlementtypes "github.com/openalpha/fracshare/x/settlement/types"
)

// CreateOrder handles POST /v1/orders. Orders the ledger already
// cancelled or filled are refused; a partially executed order enters the
// book with the ledger's fill.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req types.SignedOrderRequest
	if !decode(w, r, &req) {
		return
	}
	order, sig, err := req.Decode()
	if err != nil {
		writeBadRequest(w, "invalid_order", err.Error())
		return
	}
	if err := order.Validate(); err != nil {
		h.writeError(w, "invalid_order", err)
		return
	}

	state := h.ledger.OrderState(order)
	switch {
	case state.Cancelled:
		h.writeError(w, "order_cancelled", settlementtypes.ErrOrderCancelled.Wrapf("order %s", state.OrderID))
		return
	case !state.Remaining.IsPositive():
		h.writeError(w, "order_filled", settlementtypes.ErrExceedsRemaining.Wrapf("order %s is fully executed", state.OrderID))
		return
	}

	orderID, err := h.book.CreateOrder(order, sig)
	if err != nil {
		h.writeError(w, "create_order_failed", err)
		return
	}
	if state.Executed.IsPositive() {
		if err := h.book.SyncExecuted(orderID, state.Executed, false); err != nil {
			h.logger.Error("failed to sync new order", "order_id", orderID, "error", err)
		}
	}

	entry, err := h.book.GetOrder(orderID)
	if err != nil {
		h.writeError(w, "create_order_failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, &types.OrderResponse{Entry: entry, State: state})
}

// CancelOrder handles POST /v1/orders/cancel. The cancellation is recorded
// on the ledger first; the book only follows.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	var req types.SignedOrderRequest
	if !decode(w, r, &req) {
		return
	}
	order, sig, err := req.Decode()
	if err != nil {
		writeBadRequest(w, "invalid_order", err.Error())
		return
	}

	orderID, err := h.ledger.CancelOrder(order, sig)
	if err != nil {
		h.writeError(w, "cancel_failed", err)
		return
	}

	if _, err := h.book.CancelOrder(order, sig); err != nil && !bookMissOrClosed(err) {
		h.logger.Error("failed to cancel order in book", "order_id", orderID, "error", err)
	}
	writeJSON(w, http.StatusOK, &types.CancelResponse{OrderID: orderID, Cancelled: true})
}

func bookMissOrClosed(err error) bool {
	return errors.Is(err, orderstore.ErrOrderNotFound) ||
		errors.Is(err, orderstore.ErrOrderClosed) ||
		errors.Is(err, settlementtypes.ErrAlreadyCancelled)
}

// GetOrder handles GET /v1/orders/{orderId}
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	entry, err := h.book.GetOrder(mux.Vars(r)["orderId"])
	if err != nil {
		h.writeError(w, "order_not_found", err)
		return
	}
	writeJSON(w, http.StatusOK, &types.OrderResponse{
		Entry: entry,
		State: h.ledger.OrderState(entry.Order),
	})
}

// ListOrderMatches handles GET /v1/orders/{orderId}/matches
func (h *Handler) ListOrderMatches(w http.ResponseWriter, r *http.Request) {
	orderID := mux.Vars(r)["orderId"]
	if _, err := h.book.GetOrder(orderID); err != nil {
		h.writeError(w, "order_not_found", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"order_id": orderID,
		"matches":  h.book.MatchesForOrder(orderID),
	})
}

// ProposeMatches handles POST /v1/orders/{orderId}/matches
func (h *Handler) ProposeMatches(w http.ResponseWriter, r *http.Request) {
	orderID := mux.Vars(r)["orderId"]
	matches, err := h.matcher.ProposeMatches(orderID)
	if err != nil {
		h.writeError(w, "match_failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"order_id": orderID,
		"matches":  matches,
	})
}

// ListPendingMatches handles GET /v1/matches
func (h *Handler) ListPendingMatches(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"matches": h.book.PendingMatches(),
	})
}

// GetMatch handles GET /v1/matches/{matchId}
func (h *Handler) GetMatch(w http.ResponseWriter, r *http.Request) {
	m, err := h.book.GetMatch(mux.Vars(r)["matchId"])
	if err != nil {
		h.writeError(w, "match_not_found", err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// SubmitMatch handles POST /v1/matches/{matchId}/submit
func (h *Handler) SubmitMatch(w http.ResponseWriter, r *http.Request) {
	settlement, err := h.submitter.SubmitMatch(r.Context(), mux.Vars(r)["matchId"])
	if err != nil {
		h.writeError(w, "submit_failed", err)
		return
	}
	writeJSON(w, http.StatusOK, settlement)
}
