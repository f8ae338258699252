package stream

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/table1837/eightysix/agent/internal/backoff"
	"github.com/table1837/eightysix/pkg/types"
)

const handshakeTimeout = 10 * time.Second

// Client follows one scope's realtime feed and applies it to a Mirror.
type Client struct {
	url       string
	sessionID string
	mirror    *Mirror
	dialer    *websocket.Dialer
	bo        *backoff.Backoff

	// OnMessage, when set, is called after each message is applied.
	// It runs on the read goroutine and must not block for long.
	OnMessage func(types.Message)
}

// New returns a Client for the gateway at baseURL (ws:// or wss://).
// reconnectMax caps the delay between reconnect attempts.
func New(baseURL string, mirror *Mirror, reconnectMax time.Duration) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("stream: parse url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("stream: url scheme %q, want ws or wss", u.Scheme)
	}

	id := uuid.NewString()
	u.Path += "/ws/scopes/" + url.PathEscape(mirror.Scope())
	u.RawQuery = url.Values{"session_id": {id}}.Encode()

	return &Client{
		url:       u.String(),
		sessionID: id,
		mirror:    mirror,
		dialer:    &websocket.Dialer{HandshakeTimeout: handshakeTimeout},
		bo:        backoff.New(backoff.DefaultInitial, reconnectMax),
	}, nil
}

// SessionID returns the ID presented on every (re)connect.
func (c *Client) SessionID() string { return c.sessionID }

// Run connects and follows the feed, reconnecting on failure.
// It blocks until ctx is cancelled.
func (c *Client) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
		if err != nil {
			slog.Warn("stream: dial failed, will retry", "url", c.url, "err", err)
			if !c.bo.Sleep(ctx) {
				return
			}
			continue
		}

		slog.Info("stream: connected", "scope", c.mirror.Scope(), "session", c.sessionID)
		c.bo.Reset()

		err = c.follow(ctx, conn)
		if ctx.Err() != nil {
			return
		}
		slog.Warn("stream: connection lost, will reconnect", "scope", c.mirror.Scope(), "err", err)
		if !c.bo.Sleep(ctx) {
			return
		}
	}
}

// follow reads messages until the connection fails or ctx is cancelled.
func (c *Client) follow(ctx context.Context, conn *websocket.Conn) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage, //nolint:errcheck
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			conn.Close()
		case <-done:
			conn.Close()
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		msg, err := c.mirror.Apply(data)
		if err != nil {
			slog.Warn("stream: dropped message", "err", err)
			continue
		}
		if c.OnMessage != nil {
			c.OnMessage(msg)
		}
	}
}
