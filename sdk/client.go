package sdk

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"cosmossdk.io/math"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	apitypes "github.com/openalpha/fracshare/api/types"
	"github.com/openalpha/fracshare/offchain/orderstore"
	settlementtypes "github.com/openalpha/fracshare/x/settlement/types"
	shareskeeper "github.com/openalpha/fracshare/x/shares/keeper"
	sharestypes "github.com/openalpha/fracshare/x/shares/types"
)

// Client talks to a fracshared node over its HTTP API and signs orders
// locally. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client

	domainMu sync.Mutex
	domain   *settlementtypes.Domain
	params   settlementtypes.Params

	// nonce numbers signed actions; seeded from the clock so restarted
	// clients do not reuse action ids
	nonce atomic.Uint64

	stats clientCounters
}

// APIError is a non-2xx answer from the node
type APIError struct {
	Status  int
	Code    string
	Kind    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%s, status %d): %s", e.Code, e.Kind, e.Status, e.Message)
}

// NewClient creates a client for the node at baseURL. A nil httpClient
// gets a pooled client with a 30s timeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        1000,
				MaxIdleConnsPerHost: 200,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	c := &Client{baseURL: baseURL, http: httpClient}
	c.nonce.Store(uint64(time.Now().UnixNano()))
	return c
}

// Domain returns the node's signing domain, fetched on first use
func (c *Client) Domain(ctx context.Context) (settlementtypes.Domain, error) {
	d, _, err := c.load(ctx)
	return d, err
}

// Params returns the node's settlement params, fetched on first use
func (c *Client) Params(ctx context.Context) (settlementtypes.Params, error) {
	_, p, err := c.load(ctx)
	return p, err
}

func (c *Client) load(ctx context.Context) (settlementtypes.Domain, settlementtypes.Params, error) {
	c.domainMu.Lock()
	defer c.domainMu.Unlock()
	if c.domain != nil {
		return *c.domain, c.params, nil
	}

	var resp struct {
		Params settlementtypes.Params `json:"params"`
		Domain settlementtypes.Domain `json:"domain"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/params", nil, &resp); err != nil {
		return settlementtypes.Domain{}, settlementtypes.Params{}, err
	}
	c.domain, c.params = &resp.Domain, resp.Params
	return resp.Domain, resp.Params, nil
}

// authorize signs action for the node's domain with a fresh nonce
func (c *Client) authorize(ctx context.Context, key *secp256k1.PrivateKey, action *settlementtypes.Action) (apitypes.Authorization, error) {
	domain, err := c.Domain(ctx)
	if err != nil {
		return apitypes.Authorization{}, err
	}
	action.Signer = settlementtypes.OwnerAddress(key.PubKey())
	action.Nonce = c.nonce.Add(1)
	return apitypes.Authorization{
		Nonce:     action.Nonce,
		Expiry:    action.Expiry,
		Signature: hex.EncodeToString(settlementtypes.SignAction(key, *action, domain)),
	}, nil
}

// Health returns the node health
func (c *Client) Health(ctx context.Context) (*apitypes.HealthResponse, error) {
	var resp apitypes.HealthResponse
	return &resp, c.do(ctx, http.MethodGet, "/health", nil, &resp)
}

// CreatePool fractionalizes an asset into a pool owned by key's account
func (c *Client) CreatePool(ctx context.Context, key *secp256k1.PrivateKey, assetRef string, totalShares math.Int) (*sharestypes.Pool, error) {
	params, err := c.Params(ctx)
	if err != nil {
		return nil, err
	}
	action := settlementtypes.Action{
		Type:     settlementtypes.ActionCreatePool,
		AssetRef: assetRef,
		Denom:    params.Denom,
		Amount:   totalShares,
	}
	auth, err := c.authorize(ctx, key, &action)
	if err != nil {
		return nil, err
	}
	var pool sharestypes.Pool
	err = c.do(ctx, http.MethodPost, "/v1/pools", &apitypes.CreatePoolRequest{
		Creator:       action.Signer,
		AssetRef:      assetRef,
		TotalShares:   totalShares.String(),
		Denom:         params.Denom,
		Authorization: auth,
	}, &pool)
	return &pool, err
}

// GetPool returns a pool
func (c *Client) GetPool(ctx context.Context, poolID string) (*sharestypes.Pool, error) {
	var pool sharestypes.Pool
	return &pool, c.do(ctx, http.MethodGet, "/v1/pools/"+url.PathEscape(poolID), nil, &pool)
}

// Holding returns a holder's position
func (c *Client) Holding(ctx context.Context, poolID, holder string) (*sharestypes.Holding, error) {
	var h sharestypes.Holding
	path := fmt.Sprintf("/v1/pools/%s/holders/%s", url.PathEscape(poolID), url.PathEscape(holder))
	return &h, c.do(ctx, http.MethodGet, path, nil, &h)
}

// Accounting returns the dividend accounting of a pool
func (c *Client) Accounting(ctx context.Context, poolID string) (*shareskeeper.PoolAccounting, error) {
	var acct shareskeeper.PoolAccounting
	return &acct, c.do(ctx, http.MethodGet, "/v1/pools/"+url.PathEscape(poolID)+"/accounting", nil, &acct)
}

// DepositDividends adds dividends to a pool from key's account
func (c *Client) DepositDividends(ctx context.Context, key *secp256k1.PrivateKey, poolID string, amount math.Int) error {
	action := settlementtypes.Action{Type: settlementtypes.ActionDeposit, PoolID: poolID, Amount: amount}
	auth, err := c.authorize(ctx, key, &action)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, "/v1/pools/"+url.PathEscape(poolID)+"/dividends", &apitypes.DepositRequest{
		Depositor:     action.Signer,
		Amount:        amount.String(),
		Authorization: auth,
	}, nil)
}

// Claim pays out the dividends of key's account
func (c *Client) Claim(ctx context.Context, key *secp256k1.PrivateKey, poolID string) (math.Int, error) {
	action := settlementtypes.Action{Type: settlementtypes.ActionClaim, PoolID: poolID, Amount: math.ZeroInt()}
	auth, err := c.authorize(ctx, key, &action)
	if err != nil {
		return math.Int{}, err
	}
	var resp apitypes.ClaimResponse
	err = c.do(ctx, http.MethodPost, "/v1/pools/"+url.PathEscape(poolID)+"/claim", &apitypes.HolderRequest{
		Holder:        action.Signer,
		Authorization: auth,
	}, &resp)
	return resp.Paid, err
}

// TransferShares moves shares from key's account to another holder
func (c *Client) TransferShares(ctx context.Context, key *secp256k1.PrivateKey, poolID, to string, amount math.Int) error {
	action := settlementtypes.Action{Type: settlementtypes.ActionTransfer, PoolID: poolID, Recipient: to, Amount: amount}
	auth, err := c.authorize(ctx, key, &action)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, "/v1/pools/"+url.PathEscape(poolID)+"/transfers", &apitypes.TransferRequest{
		From:          action.Signer,
		To:            to,
		Amount:        amount.String(),
		Authorization: auth,
	}, nil)
}

// Recombine burns every share of a pool held by key's account and
// returns the released asset reference
func (c *Client) Recombine(ctx context.Context, key *secp256k1.PrivateKey, poolID string) (string, error) {
	action := settlementtypes.Action{Type: settlementtypes.ActionRecombine, PoolID: poolID, Amount: math.ZeroInt()}
	auth, err := c.authorize(ctx, key, &action)
	if err != nil {
		return "", err
	}
	var resp apitypes.RecombineResponse
	err = c.do(ctx, http.MethodPost, "/v1/pools/"+url.PathEscape(poolID)+"/recombine", &apitypes.HolderRequest{
		Holder:        action.Signer,
		Authorization: auth,
	}, &resp)
	return resp.AssetRef, err
}

// Fund mints value to an account and returns the new balance
func (c *Client) Fund(ctx context.Context, addr string, amount math.Int) (math.Int, error) {
	var resp apitypes.BalanceResponse
	err := c.do(ctx, http.MethodPost, "/v1/accounts/"+url.PathEscape(addr)+"/fund", &apitypes.FundRequest{
		Amount: amount.String(),
	}, &resp)
	return resp.Amount, err
}

// Balance returns an account balance
func (c *Client) Balance(ctx context.Context, addr, denom string) (math.Int, error) {
	var resp apitypes.BalanceResponse
	path := fmt.Sprintf("/v1/accounts/%s/balances/%s", url.PathEscape(addr), url.PathEscape(denom))
	err := c.do(ctx, http.MethodGet, path, nil, &resp)
	return resp.Amount, err
}

// Sign signs an order for the node's domain
func (c *Client) Sign(ctx context.Context, key *secp256k1.PrivateKey, order settlementtypes.Order) (*apitypes.SignedOrderRequest, error) {
	domain, err := c.Domain(ctx)
	if err != nil {
		return nil, err
	}
	return &apitypes.SignedOrderRequest{
		Order:     apitypes.FromOrder(order),
		Signature: hex.EncodeToString(settlementtypes.SignOrder(key, order, domain)),
	}, nil
}

// PlaceOrder signs an order and adds it to the node's book
func (c *Client) PlaceOrder(ctx context.Context, key *secp256k1.PrivateKey, order settlementtypes.Order) (*apitypes.OrderResponse, error) {
	req, err := c.Sign(ctx, key, order)
	if err != nil {
		return nil, err
	}
	var resp apitypes.OrderResponse
	return &resp, c.do(ctx, http.MethodPost, "/v1/orders", req, &resp)
}

// CancelOrder signs the order and records its cancellation
func (c *Client) CancelOrder(ctx context.Context, key *secp256k1.PrivateKey, order settlementtypes.Order) error {
	req, err := c.Sign(ctx, key, order)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, "/v1/orders/cancel", req, nil)
}

// GetOrder returns an order with its ledger state
func (c *Client) GetOrder(ctx context.Context, orderID string) (*apitypes.OrderResponse, error) {
	var resp apitypes.OrderResponse
	return &resp, c.do(ctx, http.MethodGet, "/v1/orders/"+url.PathEscape(orderID), nil, &resp)
}

// ProposeMatches asks the node to match an order against the book
func (c *Client) ProposeMatches(ctx context.Context, orderID string) ([]*orderstore.OrderMatch, error) {
	var resp struct {
		Matches []*orderstore.OrderMatch `json:"matches"`
	}
	err := c.do(ctx, http.MethodPost, "/v1/orders/"+url.PathEscape(orderID)+"/matches", nil, &resp)
	return resp.Matches, err
}

// SubmitMatch settles a pending match
func (c *Client) SubmitMatch(ctx context.Context, matchID string) (*settlementtypes.Settlement, error) {
	var s settlementtypes.Settlement
	return &s, c.do(ctx, http.MethodPost, "/v1/matches/"+url.PathEscape(matchID)+"/submit", nil, &s)
}

// Settle settles two signed orders directly
func (c *Client) Settle(ctx context.Context, req *apitypes.SettleRequest) (*settlementtypes.Settlement, error) {
	var s settlementtypes.Settlement
	return &s, c.do(ctx, http.MethodPost, "/v1/settlements", req, &s)
}

// RecentSettlements returns up to limit settlements, newest first
func (c *Client) RecentSettlements(ctx context.Context, limit int) ([]*settlementtypes.Settlement, error) {
	var resp struct {
		Settlements []*settlementtypes.Settlement `json:"settlements"`
	}
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/v1/settlements?limit=%d", limit), nil, &resp)
	return resp.Settlements, err
}

// BatchPlace places orders in parallel. The result slices are index
// aligned with orders.
func (c *Client) BatchPlace(ctx context.Context, key *secp256k1.PrivateKey, orders []settlementtypes.Order) ([]*apitypes.OrderResponse, []error) {
	results := make([]*apitypes.OrderResponse, len(orders))
	errs := make([]error, len(orders))
	var wg sync.WaitGroup

	for i, o := range orders {
		wg.Add(1)
		go func(idx int, order settlementtypes.Order) {
			defer wg.Done()
			results[idx], errs[idx] = c.PlaceOrder(ctx, key, order)
		}(i, o)
	}

	wg.Wait()
	return results, errs
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	start := time.Now()
	err := c.roundTrip(ctx, method, path, body, out)
	c.stats.record(time.Since(start), err)
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var e apitypes.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&e); err != nil {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Code: e.Error, Kind: e.Kind, Message: e.Message}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// ClientStats returns client statistics
type ClientStats struct {
	TotalRequests  int64
	FailedRequests int64
	AvgLatency     time.Duration
}

type clientCounters struct {
	total   atomic.Int64
	failed  atomic.Int64
	latency atomic.Int64
}

func (s *clientCounters) record(latency time.Duration, err error) {
	s.total.Add(1)
	s.latency.Add(int64(latency))
	if err != nil {
		s.failed.Add(1)
	}
}

// Stats returns request counters since the client was created
func (c *Client) Stats() ClientStats {
	total := c.stats.total.Load()
	stats := ClientStats{
		TotalRequests:  total,
		FailedRequests: c.stats.failed.Load(),
	}
	if total > 0 {
		stats.AvgLatency = time.Duration(c.stats.latency.Load() / total)
	}
	return stats
}
