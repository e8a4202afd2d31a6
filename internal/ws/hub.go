package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ljhyeon/Fish-in-Water/internal/livebid"
)

// ──────────────────────────────────────────────────────────────────────────────
// Tunables
// ──────────────────────────────────────────────────────────────────────────────

const (
	writeDeadline  = 10 * time.Second
	pingInterval   = 30 * time.Second
	pongWait       = 35 * time.Second // must be > pingInterval
	maxMessageSize = 512              // bytes; clients only send pongs
	sendBufferSize = 256              // messages in each client send channel
)

// ──────────────────────────────────────────────────────────────────────────────
// Client
// ──────────────────────────────────────────────────────────────────────────────

// Client represents one connected WebSocket endpoint watching one auction.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte // buffered outbound message queue
	auctionID uuid.UUID
}

// ──────────────────────────────────────────────────────────────────────────────
// Hub
// ──────────────────────────────────────────────────────────────────────────────

// Hub maintains per-auction watcher sets and routes live bid updates to them.
// Run() must be called in a dedicated goroutine before ServeWs is used.
type Hub struct {
	// Watchers keyed by the auction they subscribed to.
	mu      sync.RWMutex
	clients map[uuid.UUID]map[*Client]bool

	// channels consumed by Run()
	broadcast  chan targeted
	register   chan *Client
	unregister chan *Client

	logger *slog.Logger

	// upgrader is safe for concurrent use after construction.
	upgrader websocket.Upgrader
}

// targeted pairs a serialized message with the auction it belongs to.
type targeted struct {
	auctionID uuid.UUID
	payload   []byte
}

// NewHub creates a Hub ready to be started with Run().
func NewHub(allowedOrigins []string, logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID]map[*Client]bool),
		broadcast:  make(chan targeted, 512),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowedOrigins) == 0 {
					return true // dev mode: allow all
				}
				origin := r.Header.Get("Origin")
				for _, o := range allowedOrigins {
					if o == "*" || o == origin {
						return true
					}
				}
				return false
			},
		},
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Run — hub event loop
// ──────────────────────────────────────────────────────────────────────────────

// Run processes registration, unregistration, and broadcast events
// sequentially.  Call it once as a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			watchers, ok := h.clients[client.auctionID]
			if !ok {
				watchers = make(map[*Client]bool)
				h.clients[client.auctionID] = watchers
			}
			watchers[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if watchers, ok := h.clients[client.auctionID]; ok {
				if _, ok := watchers[client]; ok {
					delete(watchers, client)
					close(client.send)
				}
				if len(watchers) == 0 {
					delete(h.clients, client.auctionID)
				}
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients[msg.auctionID] {
				select {
				case client.send <- msg.payload:
				default:
					// Client's buffer full — drop the message for this client.
					// The writePump will detect a stalled connection separately.
				}
			}
			h.mu.RUnlock()
		}
	}
}

// WatcherCount returns the current number of clients watching an auction.
func (h *Hub) WatcherCount(auctionID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[auctionID])
}

// ──────────────────────────────────────────────────────────────────────────────
// Pump — live bid store subscription → hub broadcast
// ──────────────────────────────────────────────────────────────────────────────

// LiveFeed is the subscription surface of the live bid store.
type LiveFeed interface {
	SubscribeAll(ctx context.Context) (<-chan livebid.Update, error)
}

// Pump subscribes to the live event feed and forwards every update to the
// watchers of its auction: bid updates while the auction runs, plus the
// started and finished lifecycle frames the engine publishes.  Blocks until
// ctx is cancelled or the feed closes; run it as a goroutine from main().
func (h *Hub) Pump(ctx context.Context, feed LiveFeed) error {
	updates, err := feed.SubscribeAll(ctx)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case u, ok := <-updates:
			if !ok {
				return nil
			}
			h.forward(u)
		}
	}
}

// forward maps one feed event onto its wire message.
func (h *Hub) forward(u livebid.Update) {
	switch u.Kind {
	case livebid.EventStarted:
		h.BroadcastAuctionStarted(AuctionStartedMessage{
			Type:       MsgTypeAuctionStarted,
			AuctionID:  u.AuctionID,
			StartPrice: u.State.CurrentPrice,
			EndTime:    u.EndTime,
			Timestamp:  time.Now(),
		})
	case livebid.EventFinished:
		h.BroadcastAuctionFinished(AuctionFinishedMessage{
			Type:       MsgTypeAuctionFinished,
			AuctionID:  u.AuctionID,
			Status:     u.Status,
			FinalPrice: u.FinalPrice,
			WinnerID:   u.WinnerID,
			Timestamp:  time.Now(),
		})
	default:
		h.BroadcastBidUpdate(BidUpdateMessage{
			Type:         MsgTypeBidUpdate,
			AuctionID:    u.AuctionID,
			CurrentPrice: u.State.CurrentPrice,
			LastBidderID: u.State.LastBidderID,
			LastBidAt:    u.State.LastBidAt,
			Timestamp:    time.Now(),
		})
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// ServeWs — HTTP → WebSocket upgrade
// ──────────────────────────────────────────────────────────────────────────────

// ServeWs upgrades an HTTP request to a WebSocket connection subscribed to a
// single auction's updates, and starts the read/write pumps.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request, auctionID uuid.UUID) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "err", err)
		return
	}

	client := &Client{
		hub:       h,
		conn:      conn,
		send:      make(chan []byte, sendBufferSize),
		auctionID: auctionID,
	}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

// ──────────────────────────────────────────────────────────────────────────────
// Client pumps
// ──────────────────────────────────────────────────────────────────────────────

// writePump drains the client's send channel and writes messages to the
// WebSocket connection.  It also sends ping frames every pingInterval.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if !ok {
				// Hub closed the channel.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads frames from the WebSocket connection.  Only pong messages
// are handled (they reset the read deadline).  Any data frame gets an error
// reply — this is a server-push-only protocol.  When the connection drops
// the client is unregistered.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("ws unexpected close",
					"auction_id", c.auctionID, "err", err)
			}
			return
		}
		// Inbound data is not part of the protocol; tell the client so.
		c.hub.SendError(c, "read_only", "this stream does not accept messages")
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Broadcast helpers
// ──────────────────────────────────────────────────────────────────────────────

// BroadcastBidUpdate serialises and delivers a BidUpdateMessage to the
// auction's watchers.
func (h *Hub) BroadcastBidUpdate(msg BidUpdateMessage) {
	h.broadcastJSON(msg.AuctionID, msg)
}

// BroadcastAuctionStarted notifies watchers the auction went live.
func (h *Hub) BroadcastAuctionStarted(msg AuctionStartedMessage) {
	h.broadcastJSON(msg.AuctionID, msg)
}

// BroadcastAuctionFinished notifies watchers of the settled outcome.
func (h *Hub) BroadcastAuctionFinished(msg AuctionFinishedMessage) {
	h.broadcastJSON(msg.AuctionID, msg)
}

// broadcastJSON is the common marshalling path.
func (h *Hub) broadcastJSON(auctionID uuid.UUID, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("ws marshal error", "err", err)
		return
	}
	select {
	case h.broadcast <- targeted{auctionID: auctionID, payload: data}:
	default:
		h.logger.Warn("ws broadcast channel full, message dropped")
	}
}

// SendError writes an error message directly to one client's send channel.
func (h *Hub) SendError(client *Client, code, message string) {
	data, err := json.Marshal(ErrorMessage{
		Type:    MsgTypeError,
		Code:    code,
		Message: message,
	})
	if err != nil {
		return
	}
	select {
	case client.send <- data:
	default:
	}
}
