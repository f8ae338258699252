package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/table1837/eightysix/agent/internal/backoff"
	"github.com/table1837/eightysix/pkg/types"
)

// fakeGateway serves /ws/scopes/{scope}. Each connection receives the
// frames returned by script for that connection number; when closeAfter is
// set the server hangs up once they are written.
type fakeGateway struct {
	mu         sync.Mutex
	sessions   []string
	paths      []string
	script     func(n int) [][]byte
	closeAfter bool
}

func (g *fakeGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	up := websocket.Upgrader{}
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	g.mu.Lock()
	g.sessions = append(g.sessions, r.URL.Query().Get("session_id"))
	g.paths = append(g.paths, r.URL.Path)
	n := len(g.sessions)
	g.mu.Unlock()

	for _, frame := range g.script(n) {
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			return
		}
	}
	if g.closeAfter {
		return
	}
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (g *fakeGateway) seen() ([]string, []string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.sessions...), append([]string(nil), g.paths...)
}

func startGateway(t *testing.T, g *fakeGateway) string {
	t.Helper()
	srv := httptest.NewServer(g)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestClient_FollowsFeed(t *testing.T) {
	at := time.Now().UTC()
	g := &fakeGateway{script: func(int) [][]byte {
		return [][]byte{
			snapshotMsg(t, "bar", rec("Negroni", types.StatusUnavailable, at)),
			recordMsg(t, "bar", rec("Paloma", types.StatusUnavailable, at.Add(time.Second))),
		}
	}}
	base := startGateway(t, g)

	m := NewMirror("bar")
	c, err := New(base, m, time.Second)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	var mu sync.Mutex
	var events []string
	c.OnMessage = func(msg types.Message) {
		mu.Lock()
		events = append(events, msg.Event)
		mu.Unlock()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	waitFor(t, "two unavailable items", func() bool { return len(m.Unavailable()) == 2 })

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 2 || events[0] != types.EventSnapshot || events[1] != types.EventItemAdded {
		t.Errorf("events: got %v, want [snapshot item-added]", events)
	}
	sessions, paths := g.seen()
	if paths[0] != "/ws/scopes/bar" {
		t.Errorf("path: got %q, want /ws/scopes/bar", paths[0])
	}
	if sessions[0] != c.SessionID() {
		t.Errorf("session_id: got %q, want %q", sessions[0], c.SessionID())
	}
}

func TestClient_ReconnectsWithSameSession(t *testing.T) {
	at := time.Now().UTC()
	g := &fakeGateway{
		closeAfter: true,
		script: func(n int) [][]byte {
			if n == 1 {
				return [][]byte{snapshotMsg(t, "bar", rec("Negroni", types.StatusUnavailable, at))}
			}
			// The item was restored while the client was away.
			return [][]byte{snapshotMsg(t, "bar", rec("Negroni", types.StatusAvailable, at.Add(time.Second)))}
		},
	}
	base := startGateway(t, g)

	m := NewMirror("bar")
	c, err := New(base, m, time.Second)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.bo = backoff.New(10*time.Millisecond, 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	waitFor(t, "second connection", func() bool {
		s, _ := g.seen()
		return len(s) >= 2
	})
	waitFor(t, "resynced snapshot", func() bool {
		st, _ := m.Status("Negroni")
		return st == types.StatusAvailable
	})

	sessions, _ := g.seen()
	if sessions[0] != sessions[1] {
		t.Errorf("reconnect used new session id: %q then %q", sessions[0], sessions[1])
	}
}

func TestClient_StopsOnCancel(t *testing.T) {
	g := &fakeGateway{script: func(int) [][]byte { return [][]byte{snapshotMsg(t, "bar")} }}
	base := startGateway(t, g)

	m := NewMirror("bar")
	c, err := New(base, m, time.Second)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	waitFor(t, "sync", m.Synced)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestNew_RejectsBadScheme(t *testing.T) {
	if _, err := New("http://localhost:8080", NewMirror("bar"), time.Second); err == nil {
		t.Fatal("expected error for http scheme")
	}
}
