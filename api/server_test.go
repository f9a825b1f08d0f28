package api_test

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cosmossdk.io/log"
	"cosmossdk.io/math"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/stretchr/testify/require"

	"github.com/openalpha/fracshare/api"
	apitypes "github.com/openalpha/fracshare/api/types"
	"github.com/openalpha/fracshare/app"
	"github.com/openalpha/fracshare/offchain/matcher"
	"github.com/openalpha/fracshare/offchain/orderstore"
	"github.com/openalpha/fracshare/testutil"
	settlementtypes "github.com/openalpha/fracshare/x/settlement/types"
)

type apiFixture struct {
	handler http.Handler
	ledger  *app.Ledger
	store   *orderstore.Store
	buyKey  *secp256k1.PrivateKey
	buyer   string
	sellKey *secp256k1.PrivateKey
	seller  string
	nonce   uint64
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()
	clock := func() time.Time { return testutil.GenesisTime }

	params := settlementtypes.DefaultParams()
	params.ChainID = "fracshare-test"
	ledger, err := app.NewLedger(app.Options{Params: params, Clock: clock})
	require.NoError(t, err)

	store := orderstore.NewStore(ledger.Domain(), log.NewNopLogger(), clock)
	engine := matcher.NewEngine(store, log.NewNopLogger(), clock)
	submitter := matcher.NewSubmitter(ledger, store, log.NewNopLogger())

	config := api.DefaultConfig()
	config.DisableRateLimit = true
	srv := api.NewServer(config, api.Deps{
		Ledger:    ledger,
		Store:     store,
		Engine:    engine,
		Submitter: submitter,
	}, log.NewNopLogger())
	t.Cleanup(srv.Hub().Stop)

	buyKey, buyer := testutil.Key("buyer")
	sellKey, seller := testutil.Key("seller")
	return &apiFixture{
		handler: srv.Handler(),
		ledger:  ledger,
		store:   store,
		buyKey:  buyKey,
		buyer:   buyer,
		sellKey: sellKey,
		seller:  seller,
	}
}

func (f *apiFixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

// authorize signs action for key's account with the next nonce
func (f *apiFixture) authorize(key *secp256k1.PrivateKey, action settlementtypes.Action) apitypes.Authorization {
	f.nonce++
	action.Signer = settlementtypes.OwnerAddress(key.PubKey())
	action.Nonce = f.nonce
	return apitypes.Authorization{
		Nonce:     f.nonce,
		Expiry:    action.Expiry,
		Signature: hex.EncodeToString(settlementtypes.SignAction(key, action, f.ledger.Domain())),
	}
}

func (f *apiFixture) createPoolRequest(key *secp256k1.PrivateKey, assetRef string, shares int64) apitypes.CreatePoolRequest {
	denom := f.ledger.Params().Denom
	auth := f.authorize(key, settlementtypes.Action{
		Type: settlementtypes.ActionCreatePool, AssetRef: assetRef, Denom: denom, Amount: math.NewInt(shares),
	})
	return apitypes.CreatePoolRequest{
		Creator:       settlementtypes.OwnerAddress(key.PubKey()),
		AssetRef:      assetRef,
		TotalShares:   math.NewInt(shares).String(),
		Denom:         denom,
		Authorization: auth,
	}
}

func (f *apiFixture) depositRequest(key *secp256k1.PrivateKey, poolID string, amount int64) apitypes.DepositRequest {
	auth := f.authorize(key, settlementtypes.Action{
		Type: settlementtypes.ActionDeposit, PoolID: poolID, Amount: math.NewInt(amount),
	})
	return apitypes.DepositRequest{
		Depositor:     settlementtypes.OwnerAddress(key.PubKey()),
		Amount:        math.NewInt(amount).String(),
		Authorization: auth,
	}
}

func (f *apiFixture) holderRequest(key *secp256k1.PrivateKey, t settlementtypes.ActionType, poolID string) apitypes.HolderRequest {
	auth := f.authorize(key, settlementtypes.Action{Type: t, PoolID: poolID, Amount: math.ZeroInt()})
	return apitypes.HolderRequest{
		Holder:        settlementtypes.OwnerAddress(key.PubKey()),
		Authorization: auth,
	}
}

func (f *apiFixture) transferRequest(key *secp256k1.PrivateKey, poolID, to string, amount int64) apitypes.TransferRequest {
	auth := f.authorize(key, settlementtypes.Action{
		Type: settlementtypes.ActionTransfer, PoolID: poolID, Recipient: to, Amount: math.NewInt(amount),
	})
	return apitypes.TransferRequest{
		From:          settlementtypes.OwnerAddress(key.PubKey()),
		To:            to,
		Amount:        math.NewInt(amount).String(),
		Authorization: auth,
	}
}

func (f *apiFixture) createPool(t *testing.T) string {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/v1/pools", f.createPoolRequest(f.sellKey, "artwork-1", 1000))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var pool struct {
		PoolID string `json:"pool_id"`
	}
	decodeBody(t, rec, &pool)
	return pool.PoolID
}

func (f *apiFixture) signed(key *secp256k1.PrivateKey, order settlementtypes.Order) apitypes.SignedOrderRequest {
	sig := settlementtypes.SignOrder(key, order, f.ledger.Domain())
	return apitypes.SignedOrderRequest{
		Order:     apitypes.FromOrder(order),
		Signature: hex.EncodeToString(sig),
	}
}

func order(side settlementtypes.Side, poolID, owner string, amount, price int64) settlementtypes.Order {
	return settlementtypes.Order{
		Side: side, PoolID: poolID, Amount: math.NewInt(amount),
		PricePerUnit: math.NewInt(price), Owner: owner, Nonce: 1,
	}
}

func TestHealth(t *testing.T) {
	f := newAPI(t)
	rec := f.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp apitypes.HealthResponse
	decodeBody(t, rec, &resp)
	require.Equal(t, "healthy", resp.Status)
	require.Equal(t, "fracshare-test", resp.ChainID)
}

func TestOrderMatchSubmitFlow(t *testing.T) {
	f := newAPI(t)
	poolID := f.createPool(t)

	rec := f.do(t, http.MethodPost, "/v1/accounts/"+f.buyer+"/fund", apitypes.FundRequest{Amount: "10000"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	ask := order(settlementtypes.SideAsk, poolID, f.seller, 100, 5)
	rec = f.do(t, http.MethodPost, "/v1/orders", f.signed(f.sellKey, ask))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	bid := order(settlementtypes.SideBid, poolID, f.buyer, 60, 5)
	rec = f.do(t, http.MethodPost, "/v1/orders", f.signed(f.buyKey, bid))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	bidID := bid.ID(f.ledger.Domain())

	rec = f.do(t, http.MethodGet, "/v1/pools/"+poolID+"/orderbook", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var book apitypes.OrderBookResponse
	decodeBody(t, rec, &book)
	require.Len(t, book.Bids, 1)
	require.Len(t, book.Asks, 1)

	rec = f.do(t, http.MethodPost, "/v1/orders/"+bidID+"/matches", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var proposed struct {
		Matches []*orderstore.OrderMatch `json:"matches"`
	}
	decodeBody(t, rec, &proposed)
	require.Len(t, proposed.Matches, 1)
	matchID := proposed.Matches[0].MatchID

	rec = f.do(t, http.MethodPost, "/v1/matches/"+matchID+"/submit", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var settlement settlementtypes.Settlement
	decodeBody(t, rec, &settlement)
	require.True(t, settlement.Value.Equal(math.NewInt(300)))
	require.True(t, settlement.Fee.Equal(math.NewInt(7)))

	// a settled match cannot be submitted again
	rec = f.do(t, http.MethodPost, "/v1/matches/"+matchID+"/submit", nil)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodGet, "/v1/pools/"+poolID+"/holders/"+f.buyer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var holding struct {
		Balance math.Int `json:"balance"`
	}
	decodeBody(t, rec, &holding)
	require.True(t, holding.Balance.Equal(math.NewInt(60)))

	rec = f.do(t, http.MethodGet, "/v1/orders/"+bidID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got apitypes.OrderResponse
	decodeBody(t, rec, &got)
	require.Equal(t, orderstore.StatusFilled, got.Entry.Status)
	require.True(t, got.State.Remaining.IsZero())

	rec = f.do(t, http.MethodGet, "/v1/settlements/"+settlement.SettlementID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/v1/settlements?limit=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Settlements []settlementtypes.Settlement `json:"settlements"`
	}
	decodeBody(t, rec, &list)
	require.Len(t, list.Settlements, 1)

	// a fully executed order cannot be placed again
	rec = f.do(t, http.MethodPost, "/v1/orders", f.signed(f.buyKey, bid))
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestDirectSettlementAndDividends(t *testing.T) {
	f := newAPI(t)
	poolID := f.createPool(t)
	rec := f.do(t, http.MethodPost, "/v1/accounts/"+f.buyer+"/fund", apitypes.FundRequest{Amount: "10000"})
	require.Equal(t, http.StatusOK, rec.Code)

	bid := order(settlementtypes.SideBid, poolID, f.buyer, 100, 5)
	ask := order(settlementtypes.SideAsk, poolID, f.seller, 100, 5)
	buy := f.signed(f.buyKey, bid)
	sell := f.signed(f.sellKey, ask)
	body := apitypes.SettleRequest{
		BuyOrder:      buy.Order,
		BuySignature:  buy.Signature,
		SellOrder:     sell.Order,
		SellSignature: sell.Signature,
		Amount:        "100",
		Payment:       "499",
	}

	rec = f.do(t, http.MethodPost, "/v1/settlements", body)
	require.Equal(t, http.StatusPaymentRequired, rec.Code, rec.Body.String())
	var errResp apitypes.ErrorResponse
	decodeBody(t, rec, &errResp)
	require.Equal(t, "funds", errResp.Kind)

	body.Payment = "600"
	rec = f.do(t, http.MethodPost, "/v1/settlements", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var settlement settlementtypes.Settlement
	decodeBody(t, rec, &settlement)
	require.True(t, settlement.Refund.Equal(math.NewInt(100)))

	rec = f.do(t, http.MethodPost, "/v1/pools/"+poolID+"/dividends", f.depositRequest(f.buyKey, poolID, 1000))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/v1/pools/"+poolID+"/claim", f.holderRequest(f.buyKey, settlementtypes.ActionClaim, poolID))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var claim apitypes.ClaimResponse
	decodeBody(t, rec, &claim)
	require.True(t, claim.Paid.Equal(math.NewInt(100)))

	rec = f.do(t, http.MethodPost, "/v1/pools/"+poolID+"/claim", f.holderRequest(f.buyKey, settlementtypes.ActionClaim, poolID))
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodGet, "/v1/pools/"+poolID+"/accounting", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, f.ledger.CheckInvariants())
}

func TestCancelOrder(t *testing.T) {
	f := newAPI(t)
	poolID := f.createPool(t)

	ask := order(settlementtypes.SideAsk, poolID, f.seller, 100, 5)
	req := f.signed(f.sellKey, ask)
	rec := f.do(t, http.MethodPost, "/v1/orders", req)
	require.Equal(t, http.StatusCreated, rec.Code)

	// signed by someone other than the owner
	forged := f.signed(f.buyKey, ask)
	rec = f.do(t, http.MethodPost, "/v1/orders/cancel", forged)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, "/v1/orders/cancel", req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	entry, err := f.store.GetOrder(ask.ID(f.ledger.Domain()))
	require.NoError(t, err)
	require.Equal(t, orderstore.StatusCancelled, entry.Status)
	require.True(t, f.ledger.OrderState(ask).Cancelled)

	rec = f.do(t, http.MethodPost, "/v1/orders/cancel", req)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPost, "/v1/orders", req)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestErrorMapping(t *testing.T) {
	f := newAPI(t)
	poolID := f.createPool(t)

	cases := []struct {
		name   string
		method string
		path   string
		body   interface{}
		status int
	}{
		{"unknown pool", http.MethodGet, "/v1/pools/pool-999", nil, http.StatusNotFound},
		{"unknown order", http.MethodGet, "/v1/orders/abcd", nil, http.StatusNotFound},
		{"unknown match", http.MethodGet, "/v1/matches/nope", nil, http.StatusNotFound},
		{"unknown settlement", http.MethodGet, "/v1/settlements/stl-9", nil, http.StatusNotFound},
		{"bad amount", http.MethodPost, "/v1/pools", apitypes.CreatePoolRequest{Creator: f.seller, AssetRef: "a", TotalShares: "x"}, http.StatusBadRequest},
		{"missing signature", http.MethodPost, "/v1/pools/" + poolID + "/claim", apitypes.HolderRequest{Holder: f.seller}, http.StatusBadRequest},
		{"duplicate asset", http.MethodPost, "/v1/pools", f.createPoolRequest(f.sellKey, "artwork-1", 10), http.StatusConflict},
		{"nothing to claim", http.MethodPost, "/v1/pools/" + poolID + "/claim", f.holderRequest(f.sellKey, settlementtypes.ActionClaim, poolID), http.StatusConflict},
		{"insufficient shares", http.MethodPost, "/v1/pools/" + poolID + "/transfers", f.transferRequest(f.buyKey, poolID, f.seller, 1), http.StatusPaymentRequired},
		{"not sole owner", http.MethodPost, "/v1/pools/" + poolID + "/recombine", f.holderRequest(f.buyKey, settlementtypes.ActionRecombine, poolID), http.StatusForbidden},
		{"unfunded deposit", http.MethodPost, "/v1/pools/" + poolID + "/dividends", f.depositRequest(f.buyKey, poolID, 5), http.StatusPaymentRequired},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := f.do(t, tc.method, tc.path, tc.body)
			require.Equal(t, tc.status, rec.Code, rec.Body.String())
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/pools", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecombineReleasesAsset(t *testing.T) {
	f := newAPI(t)
	poolID := f.createPool(t)

	rec := f.do(t, http.MethodPost, "/v1/pools/"+poolID+"/recombine", f.holderRequest(f.sellKey, settlementtypes.ActionRecombine, poolID))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp apitypes.RecombineResponse
	decodeBody(t, rec, &resp)
	require.Equal(t, "artwork-1", resp.AssetRef)

	rec = f.do(t, http.MethodGet, "/v1/pools", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

// Pool writes act only for the account that signed them.
func TestPoolWritesRequireSigner(t *testing.T) {
	f := newAPI(t)
	poolID := f.createPool(t)
	malloryKey, mallory := testutil.Key("mallory")

	// mallory signs a transfer out of the seller's holding
	req := f.transferRequest(malloryKey, poolID, mallory, 500)
	req.From = f.seller
	rec := f.do(t, http.MethodPost, "/v1/pools/"+poolID+"/transfers", req)
	require.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())
	var errResp apitypes.ErrorResponse
	decodeBody(t, rec, &errResp)
	require.Equal(t, app.KindAuthorization.String(), errResp.Kind)

	// the seller's signature on another pool does not carry over
	req = f.transferRequest(f.sellKey, "pool-999", mallory, 500)
	rec = f.do(t, http.MethodPost, "/v1/pools/"+poolID+"/transfers", req)
	require.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())

	// recombining someone else's pool
	recombine := f.holderRequest(malloryKey, settlementtypes.ActionRecombine, poolID)
	recombine.Holder = f.seller
	rec = f.do(t, http.MethodPost, "/v1/pools/"+poolID+"/recombine", recombine)
	require.Equal(t, http.StatusForbidden, rec.Code)

	// draining the seller's vault balance into dividends
	rec = f.do(t, http.MethodPost, "/v1/accounts/"+f.seller+"/fund", apitypes.FundRequest{Amount: "1000"})
	require.Equal(t, http.StatusOK, rec.Code)
	deposit := f.depositRequest(malloryKey, poolID, 1000)
	deposit.Depositor = f.seller
	rec = f.do(t, http.MethodPost, "/v1/pools/"+poolID+"/dividends", deposit)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.True(t, f.ledger.Balance(f.seller, f.ledger.Params().Denom).Equal(math.NewInt(1000)))

	holding, err := f.ledger.Holding(poolID, f.seller)
	require.NoError(t, err)
	require.True(t, holding.Balance.Equal(math.NewInt(1000)))
	pool, err := f.ledger.Pool(poolID)
	require.NoError(t, err)
	require.True(t, pool.Active)
}

func TestPoolWriteReplayRejected(t *testing.T) {
	f := newAPI(t)
	poolID := f.createPool(t)

	req := f.transferRequest(f.sellKey, poolID, f.buyer, 10)
	rec := f.do(t, http.MethodPost, "/v1/pools/"+poolID+"/transfers", req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/v1/pools/"+poolID+"/transfers", req)
	require.Equal(t, http.StatusConflict, rec.Code)
	var errResp apitypes.ErrorResponse
	decodeBody(t, rec, &errResp)
	require.Equal(t, app.KindReplay.String(), errResp.Kind)

	holding, err := f.ledger.Holding(poolID, f.buyer)
	require.NoError(t, err)
	require.True(t, holding.Balance.Equal(math.NewInt(10)))
}

func TestCORSPreflight(t *testing.T) {
	f := newAPI(t)
	rec := f.do(t, http.MethodOptions, "/v1/orders", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
