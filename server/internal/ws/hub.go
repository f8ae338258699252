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

	"github.com/table1837/eightysix/server/internal/availability"
	"github.com/table1837/eightysix/server/internal/session"
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

	// attachTimeout bounds recovery of a scope on first connect.
	attachTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Allow all origins; callers should apply CORS at the reverse-proxy level.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub upgrades realtime connections and attaches each one as a session of
// its scope. The scope's actor pushes the snapshot and every later event;
// the hub only moves bytes to the socket.
type Hub struct {
	manager      *availability.Manager
	defaultScope string

	mu      sync.RWMutex
	clients map[*client]struct{}
}

// client is one connected WebSocket client. It implements session.Sink.
type client struct {
	conn *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	closed bool
}

// New creates a Hub attaching connections through m. Connections on a route
// without a {scope} path value join defaultScope.
func New(m *availability.Manager, defaultScope string) *Hub {
	return &Hub{
		manager:      m,
		defaultScope: defaultScope,
		clients:      make(map[*client]struct{}),
	}
}

// ServeHTTP validates the scope, upgrades the HTTP connection to WebSocket and
// serves the client. The first message is always the scope snapshot.
// Blocks until the connection closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	scope := r.PathValue("scope")
	if scope == "" {
		scope = h.defaultScope
	}
	if err := availability.ValidateScope(scope); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": err.Error()}) //nolint:errcheck
		return
	}
	id := r.URL.Query().Get("session_id")
	if id == "" {
		id = uuid.NewString()
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, sendBufSize),
	}
	h.register(c)
	defer h.unregister(c)

	go c.writePump()

	ctx, cancel := context.WithTimeout(context.Background(), attachTimeout)
	err = h.manager.Attach(ctx, scope, id, c)
	cancel()
	if err != nil {
		slog.Warn("ws: attach failed", "scope", scope, "session_id", id, "err", err)
		c.readPump()
		return
	}
	defer h.manager.Release(scope, id, c)

	slog.Debug("ws: session attached", "scope", scope, "session_id", id)
	c.readPump() // blocks until connection closes
	slog.Debug("ws: session closed", "scope", scope, "session_id", id)
}

// Count returns the number of currently connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CloseAll closes every open connection. Used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.Close()
	}
}

// --- internal ---------------------------------------------------------------

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.Close()
}

// Send queues msg without blocking. A full buffer means the client is not
// keeping up; the caller evicts it.
func (c *client) Send(msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return session.ErrSinkClosed
	}
	select {
	case c.send <- msg:
		return nil
	default:
		return session.ErrSlowConsumer
	}
}

// Close stops the write pump, which sends a close frame and closes the connection.
func (c *client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
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
				// Session was evicted, replaced or the hub is shutting down.
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
// close) and detect disconnects. Clients never send data frames that matter.
// Blocks until the connection closes.
func (c *client) readPump() {
	defer c.conn.Close()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}
