package websocket

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"cosmossdk.io/log"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/google/uuid"

	"github.com/openalpha/fracshare/metrics"
	"github.com/openalpha/fracshare/offchain/orderstore"
)

// Channels a client can subscribe to. Pool channels are suffixed with the
// pool id, e.g. "pool:pool-1".
const (
	ChannelLedger  = "ledger"
	ChannelOrders  = "orders"
	ChannelMatches = "matches"
	ChannelPool    = "pool:"
)

// Hub maintains the set of active clients and broadcasts messages
type Hub struct {
	// Registered clients
	clients  map[*Client]bool
	channels map[string]map[*Client]bool // channel -> clients

	// Register/unregister requests
	register   chan *Client
	unregister chan *Client

	// Channel subscription requests
	subscribe   chan *SubscriptionRequest
	unsubscribe chan *SubscriptionRequest

	quit chan struct{}
	once sync.Once

	mu     sync.RWMutex
	config *HubConfig
	logger log.Logger
}

// HubConfig contains hub configuration
type HubConfig struct {
	MaxSubscriptions int
	// Messages per second per client
	MessageRateLimit int
}

// DefaultHubConfig returns default hub configuration
func DefaultHubConfig() *HubConfig {
	return &HubConfig{
		MaxSubscriptions: 50,
		MessageRateLimit: 100,
	}
}

// SubscriptionRequest represents a subscription request
type SubscriptionRequest struct {
	Client  *Client
	Channel string
}

// NewHub creates a new Hub
func NewHub(config *HubConfig, logger log.Logger) *Hub {
	if config == nil {
		config = DefaultHubConfig()
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}

	return &Hub{
		clients:     make(map[*Client]bool),
		channels:    make(map[string]map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		subscribe:   make(chan *SubscriptionRequest, 256),
		unsubscribe: make(chan *SubscriptionRequest, 256),
		quit:        make(chan struct{}),
		config:      config,
		logger:      logger.With("module", "websocket"),
	}
}

// Run processes registrations and subscriptions until Stop is called
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case req := <-h.subscribe:
			h.handleSubscription(req)

		case req := <-h.unsubscribe:
			h.handleUnsubscription(req)

		case <-h.quit:
			h.closeAll()
			return
		}
	}
}

// Stop ends Run and disconnects every client
func (h *Hub) Stop() {
	h.once.Do(func() { close(h.quit) })
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = true
	metrics.GetCollector().RecordWSConnection(1)
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)

		for channel, clients := range h.channels {
			delete(clients, client)
			if len(clients) == 0 {
				delete(h.channels, channel)
			}
		}

		close(client.send)
		metrics.GetCollector().RecordWSConnection(-1)
		client.subMu.Lock()
		subs := len(client.subscriptions)
		client.subMu.Unlock()
		h.logger.Debug("websocket client disconnected",
			"client_id", client.id,
			"subscriptions", subs,
			"connected_for", time.Since(client.connectedAt).String(),
		)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
		metrics.GetCollector().RecordWSConnection(-1)
	}
	h.clients = make(map[*Client]bool)
	h.channels = make(map[string]map[*Client]bool)
}

func (h *Hub) handleSubscription(req *SubscriptionRequest) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[req.Client]; !ok {
		return
	}
	if _, ok := h.channels[req.Channel]; !ok {
		h.channels[req.Channel] = make(map[*Client]bool)
	}
	h.channels[req.Channel][req.Client] = true

	req.Client.Send(encode(&WSMessage{Type: "subscribed", Channel: req.Channel}))
}

func (h *Hub) handleUnsubscription(req *SubscriptionRequest) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.channels[req.Channel]; ok {
		delete(clients, req.Client)
		if len(clients) == 0 {
			delete(h.channels, req.Channel)
		}
	}
	if _, ok := h.clients[req.Client]; ok {
		req.Client.Send(encode(&WSMessage{Type: "unsubscribed", Channel: req.Channel}))
	}
}

// BroadcastToChannel sends a message to all clients subscribed to a channel
func (h *Hub) BroadcastToChannel(channel string, message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to encode message", "channel", channel, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	clients, ok := h.channels[channel]
	if !ok {
		return
	}
	for client := range clients {
		client.Send(data)
	}
	metrics.GetCollector().RecordWSMessage(channelName(channel))
}

// PublishLedgerEvents forwards committed ledger events. Every event goes to
// the ledger channel; events carrying a pool id also go to that pool's
// channel.
func (h *Hub) PublishLedgerEvents(height int64, events sdk.Events) {
	for _, ev := range events {
		msg := &EventMessage{
			Height:     height,
			Type:       ev.Type,
			Attributes: make(map[string]string, len(ev.Attributes)),
		}
		for _, attr := range ev.Attributes {
			msg.Attributes[attr.Key] = attr.Value
		}

		h.BroadcastToChannel(ChannelLedger, &WSMessage{Type: "event", Channel: ChannelLedger, Data: msg})
		if poolID, ok := msg.Attributes["pool_id"]; ok && poolID != "" {
			channel := ChannelPool + poolID
			h.BroadcastToChannel(channel, &WSMessage{Type: "event", Channel: channel, Data: msg})
		}
	}
}

// PublishStoreUpdate forwards an advisory order or match update
func (h *Hub) PublishStoreUpdate(u orderstore.Update) {
	switch {
	case u.Order != nil:
		h.BroadcastToChannel(ChannelOrders, &WSMessage{Type: string(u.Type), Channel: ChannelOrders, Data: u.Order})
	case u.Match != nil:
		h.BroadcastToChannel(ChannelMatches, &WSMessage{Type: string(u.Type), Channel: ChannelMatches, Data: u.Match})
	}
}

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type    string      `json:"type"`
	Channel string      `json:"channel"`
	Data    interface{} `json:"data,omitempty"`
}

// EventMessage is a committed ledger event
type EventMessage struct {
	Height     int64             `json:"height"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// GetChannelClientCount returns the number of clients in a channel
func (h *Hub) GetChannelClientCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if clients, ok := h.channels[channel]; ok {
		return len(clients)
	}
	return 0
}

// ServeWS handles WebSocket upgrade requests
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("upgrade failed", "error", err)
		return
	}

	clientID := r.URL.Query().Get("client_id")
	if clientID == "" {
		clientID = uuid.NewString()
	}

	client := NewClient(h, conn, clientID)
	select {
	case h.register <- client:
	case <-h.quit:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()

	// channels listed in the query string are subscribed right away
	for _, channel := range r.URL.Query()["channel"] {
		client.handleSubscribe(channel)
	}
}

func isValidChannel(channel string) bool {
	switch channel {
	case ChannelLedger, ChannelOrders, ChannelMatches:
		return true
	}
	return strings.HasPrefix(channel, ChannelPool) && len(channel) > len(ChannelPool)
}

// channelName strips per-pool suffixes so metric labels stay bounded
func channelName(channel string) string {
	if strings.HasPrefix(channel, ChannelPool) {
		return strings.TrimSuffix(ChannelPool, ":")
	}
	return channel
}

func encode(msg *WSMessage) []byte {
	data, _ := json.Marshal(msg)
	return data
}
