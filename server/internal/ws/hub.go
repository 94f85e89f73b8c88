package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rulboard/rulboard/server/internal/api"
	"github.com/rulboard/rulboard/server/internal/receiver"
)

const (
	// writeTimeout is the deadline for a single write to a client.
	writeTimeout = 10 * time.Second

	// pongWait is how long to wait for a pong response before treating the
	// connection as dead.
	pongWait = 60 * time.Second

	// pingPeriod controls how often the server sends WebSocket ping frames.
	// Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// sendBufSize is the per-client outgoing message buffer depth.
	sendBufSize = 16
)

// Event names carried in Message.Event.
const (
	EventSnapshot = "snapshot" // periodic tick or initial push
	EventBatch    = "batch"    // a source delivered a new batch
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Allow all origins; callers should apply CORS at the reverse-proxy level.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Message is the JSON envelope sent to clients.
type Message struct {
	Event string               `json:"event"`
	Data  api.SnapshotResponse `json:"data"`
	// SourceID names the source whose batch triggered an EventBatch push.
	SourceID string `json:"source_id,omitempty"`
}

// Source produces the snapshot pushed to clients.
type Source interface {
	Snapshot() api.SnapshotResponse
}

// Hub manages WebSocket client connections. It pushes the fleet snapshot to
// every client each interval and as soon as a new batch is stored.
// A client connected with ?source=<id> only receives that source in
// Data.Sources; fleet health stays fleet-wide.
type Hub struct {
	source   Source
	interval time.Duration

	// pending holds source IDs announced through Notify since the last push.
	pendingMu sync.Mutex
	pending   []string
	kick      chan struct{}

	mu      sync.RWMutex
	clients map[*client]struct{}
}

// client represents one connected WebSocket client.
type client struct {
	conn   *websocket.Conn
	send   chan []byte
	filter string // source ID, or "" for every source
}

// New creates a Hub that reads from src and broadcasts every interval.
func New(src Source, interval time.Duration) *Hub {
	return &Hub{
		source:   src,
		interval: interval,
		kick:     make(chan struct{}, 1),
		clients:  make(map[*client]struct{}),
	}
}

// Notify schedules an immediate push after a batch from sourceID was stored.
// It never blocks; notifications that arrive before the push are coalesced.
// Its signature matches receiver.Listener.
func (h *Hub) Notify(sourceID string, _ receiver.Result) {
	h.pendingMu.Lock()
	h.pending = append(h.pending, sourceID)
	h.pendingMu.Unlock()

	select {
	case h.kick <- struct{}{}:
	default:
	}
}

// Run starts the broadcast loop. Run blocks until ctx is cancelled, then
// closes all active connections.
func (h *Hub) Run(ctx context.Context) {
	t := time.NewTicker(h.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-t.C:
			h.broadcast(EventSnapshot, "")
		case <-h.kick:
			for _, id := range h.takePending() {
				h.broadcast(EventBatch, id)
			}
		}
	}
}

// ServeHTTP upgrades the HTTP connection to WebSocket and serves the client.
// It sends the current snapshot immediately on connect, then continues to
// receive broadcasts from the Run loop. Blocks until the connection closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		return
	}

	c := &client{
		conn:   conn,
		send:   make(chan []byte, sendBufSize),
		filter: r.URL.Query().Get("source"),
	}
	h.register(c)
	defer h.unregister(c)

	// Send the current snapshot immediately so the UI has data right away.
	if data, err := encode(EventSnapshot, "", filterSources(h.source.Snapshot(), c.filter)); err == nil {
		h.deliver([]*client{c}, data)
	}

	go c.writePump()
	c.readPump() // blocks until connection closes
}

// Count returns the number of currently connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// --- internal ---------------------------------------------------------------

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// takePending returns the distinct source IDs announced since the last call,
// in announcement order.
func (h *Hub) takePending() []string {
	h.pendingMu.Lock()
	ids := h.pending
	h.pending = nil
	h.pendingMu.Unlock()

	seen := make(map[string]struct{}, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// broadcast pushes one snapshot to every client. Messages are encoded once
// per distinct filter. A batch event for source X skips clients filtered to
// another source.
func (h *Hub) broadcast(event, sourceID string) {
	h.mu.RLock()
	groups := make(map[string][]*client)
	for c := range h.clients {
		if event == EventBatch && c.filter != "" && c.filter != sourceID {
			continue
		}
		groups[c.filter] = append(groups[c.filter], c)
	}
	h.mu.RUnlock()
	if len(groups) == 0 {
		return
	}

	snap := h.source.Snapshot()
	for filter, targets := range groups {
		data, err := encode(event, sourceID, filterSources(snap, filter))
		if err != nil {
			slog.Error("ws: encode snapshot", "err", err)
			return
		}
		h.deliver(targets, data)
	}
}

// deliver queues data for every target still registered. Sends happen under
// the read lock so a concurrent unregister cannot close a channel mid-send.
// Clients whose buffer is full are disconnected afterwards.
func (h *Hub) deliver(targets []*client, data []byte) {
	var slow []*client

	h.mu.RLock()
	for _, c := range targets {
		if _, ok := h.clients[c]; !ok {
			continue
		}
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		slog.Warn("ws: dropping slow client", "remote", c.conn.RemoteAddr().String())
		h.unregister(c)
	}
}

// filterSources narrows snap.Sources to the given source ID. The Sources
// slice is copied so the shared snapshot is left intact.
func filterSources(snap api.SnapshotResponse, sourceID string) api.SnapshotResponse {
	if sourceID == "" {
		return snap
	}
	out := snap
	out.Sources = []api.SourceResponse{}
	for _, s := range snap.Sources {
		if s.SourceID == sourceID {
			out.Sources = append(out.Sources, s)
		}
	}
	return out
}

func encode(event, sourceID string, snap api.SnapshotResponse) ([]byte, error) {
	return json.Marshal(Message{Event: event, Data: snap, SourceID: sourceID})
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

// writePump drains the client's send channel and forwards messages to the
// WebSocket connection. It also sends periodic ping frames. Runs in its own
// goroutine per client.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
			if !ok {
				// Channel was closed (hub is shutting down or client removed).
				c.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads frames from the connection to process control messages (pong,
// close) and detect disconnects. Blocks until the connection closes.
func (c *client) readPump() {
	defer c.conn.Close()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}
