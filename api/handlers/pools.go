package handlers

import (
	"net/http"

	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/gorilla/mux"

	"github.com/openalpha/fracshare/api/types"
	settlementtypes "github.com/openalpha/fracshare/x/settlement/types"
)

// CreatePool handles POST /v1/pools
func (h *Handler) CreatePool(w http.ResponseWriter, r *http.Request) {
	var req types.CreatePoolRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Denom == "" {
		req.Denom = h.ledger.Params().Denom
	}
	action, sig, err := req.ToAction()
	if err != nil {
		writeBadRequest(w, "invalid_request", err.Error())
		return
	}

	res, err := h.ledger.ExecuteAction(action, sig)
	if err != nil {
		h.writeError(w, "create_pool_failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, res.Pool)
}

// ListPools handles GET /v1/pools
func (h *Handler) ListPools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"pools": h.ledger.Pools(),
	})
}

// GetPool handles GET /v1/pools/{poolId}
func (h *Handler) GetPool(w http.ResponseWriter, r *http.Request) {
	pool, err := h.ledger.Pool(mux.Vars(r)["poolId"])
	if err != nil {
		h.writeError(w, "pool_not_found", err)
		return
	}
	writeJSON(w, http.StatusOK, pool)
}

// DepositDividends handles POST /v1/pools/{poolId}/dividends
func (h *Handler) DepositDividends(w http.ResponseWriter, r *http.Request) {
	var req types.DepositRequest
	if !decode(w, r, &req) {
		return
	}
	action, sig, err := req.ToAction(mux.Vars(r)["poolId"])
	if err != nil {
		writeBadRequest(w, "invalid_request", err.Error())
		return
	}

	res, err := h.ledger.ExecuteAction(action, sig)
	if err != nil {
		h.writeError(w, "deposit_failed", err)
		return
	}
	writeJSON(w, http.StatusOK, res.Pool)
}

// Claim handles POST /v1/pools/{poolId}/claim
func (h *Handler) Claim(w http.ResponseWriter, r *http.Request) {
	var req types.HolderRequest
	if !decode(w, r, &req) {
		return
	}
	poolID := mux.Vars(r)["poolId"]
	action, sig, err := req.ToAction(settlementtypes.ActionClaim, poolID)
	if err != nil {
		writeBadRequest(w, "invalid_request", err.Error())
		return
	}

	res, err := h.ledger.ExecuteAction(action, sig)
	if err != nil {
		h.writeError(w, "claim_failed", err)
		return
	}
	writeJSON(w, http.StatusOK, &types.ClaimResponse{PoolID: poolID, Holder: req.Holder, Paid: res.Paid})
}

// TransferShares handles POST /v1/pools/{poolId}/transfers
func (h *Handler) TransferShares(w http.ResponseWriter, r *http.Request) {
	var req types.TransferRequest
	if !decode(w, r, &req) {
		return
	}
	poolID := mux.Vars(r)["poolId"]
	action, sig, err := req.ToAction(poolID)
	if err != nil {
		writeBadRequest(w, "invalid_request", err.Error())
		return
	}

	if _, err := h.ledger.ExecuteAction(action, sig); err != nil {
		h.writeError(w, "transfer_failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"pool_id": poolID,
		"from":    req.From,
		"to":      req.To,
		"amount":  action.Amount,
	})
}

// Recombine handles POST /v1/pools/{poolId}/recombine
func (h *Handler) Recombine(w http.ResponseWriter, r *http.Request) {
	var req types.HolderRequest
	if !decode(w, r, &req) {
		return
	}
	poolID := mux.Vars(r)["poolId"]
	action, sig, err := req.ToAction(settlementtypes.ActionRecombine, poolID)
	if err != nil {
		writeBadRequest(w, "invalid_request", err.Error())
		return
	}

	res, err := h.ledger.ExecuteAction(action, sig)
	if err != nil {
		h.writeError(w, "recombine_failed", err)
		return
	}
	writeJSON(w, http.StatusOK, &types.RecombineResponse{PoolID: poolID, AssetRef: res.AssetRef})
}

// ListHolders handles GET /v1/pools/{poolId}/holders
func (h *Handler) ListHolders(w http.ResponseWriter, r *http.Request) {
	poolID := mux.Vars(r)["poolId"]
	if _, err := h.ledger.Pool(poolID); err != nil {
		h.writeError(w, "pool_not_found", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"pool_id": poolID,
		"holders": h.ledger.Holders(poolID),
	})
}

// GetHolding handles GET /v1/pools/{poolId}/holders/{holder}
func (h *Handler) GetHolding(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	holding, err := h.ledger.Holding(vars["poolId"], vars["holder"])
	if err != nil {
		h.writeError(w, "holding_failed", err)
		return
	}
	writeJSON(w, http.StatusOK, holding)
}

// GetAccounting handles GET /v1/pools/{poolId}/accounting
func (h *Handler) GetAccounting(w http.ResponseWriter, r *http.Request) {
	acct, err := h.ledger.PoolAccounting(mux.Vars(r)["poolId"])
	if err != nil {
		h.writeError(w, "accounting_failed", err)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

// GetOrderBook handles GET /v1/pools/{poolId}/orderbook
func (h *Handler) GetOrderBook(w http.ResponseWriter, r *http.Request) {
	poolID := mux.Vars(r)["poolId"]
	writeJSON(w, http.StatusOK, &types.OrderBookResponse{
		PoolID: poolID,
		Bids:   h.book.OpenOrders(poolID, settlementtypes.SideBid),
		Asks:   h.book.OpenOrders(poolID, settlementtypes.SideAsk),
	})
}

// Fund handles POST /v1/accounts/{address}/fund
func (h *Handler) Fund(w http.ResponseWriter, r *http.Request) {
	var req types.FundRequest
	if !decode(w, r, &req) {
		return
	}
	amount, err := types.ParseAmount("amount", req.Amount)
	if err != nil {
		writeBadRequest(w, "invalid_amount", err.Error())
		return
	}
	denom := req.Denom
	if denom == "" {
		denom = h.ledger.Params().Denom
	}
	if err := sdk.ValidateDenom(denom); err != nil {
		writeBadRequest(w, "invalid_denom", err.Error())
		return
	}
	addr := mux.Vars(r)["address"]

	if err := h.ledger.Fund(addr, sdk.NewCoin(denom, amount)); err != nil {
		h.writeError(w, "fund_failed", err)
		return
	}
	writeJSON(w, http.StatusOK, &types.BalanceResponse{
		Address: addr,
		Denom:   denom,
		Amount:  h.ledger.Balance(addr, denom),
	})
}

// GetBalance handles GET /v1/accounts/{address}/balances/{denom}
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	writeJSON(w, http.StatusOK, &types.BalanceResponse{
		Address: vars["address"],
		Denom:   vars["denom"],
		Amount:  h.ledger.Balance(vars["address"], vars["denom"]),
	})
}
