package session

import (
	"errors"
	"sync"
)

var (
	// ErrSessionDelivery marks a message that could not be handed to a session.
	ErrSessionDelivery = errors.New("session: delivery failed")

	// ErrSinkClosed is returned by a Sink that has already been closed.
	ErrSinkClosed = errors.New("session: sink closed")

	// ErrSlowConsumer is returned by a Sink whose outgoing buffer is full.
	ErrSlowConsumer = errors.New("session: outgoing buffer full")
)

// Sink accepts serialized messages for one connection. Send must not block
// on network I/O; implementations queue and write from their own goroutine.
type Sink interface {
	Send(msg []byte) error
	Close()
}

// Session is one registered connection.
type Session struct {
	ID   string
	Sink Sink
}

// Registry is the set of live sessions for one scope.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]Sink
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]Sink)}
}

// Register adds sink under id. A second registration for the same id
// replaces the first; the replaced sink is closed.
func (r *Registry) Register(id string, sink Sink) {
	r.mu.Lock()
	old, ok := r.sessions[id]
	r.sessions[id] = sink
	r.mu.Unlock()

	if ok && old != sink {
		old.Close()
	}
}

// Unregister removes id and closes its sink. Removing an absent id is a no-op.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	sink, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if ok {
		sink.Close()
	}
}

// UnregisterSink removes id only while it is still bound to sink, so a
// failed send to a replaced connection cannot evict its successor.
func (r *Registry) UnregisterSink(id string, sink Sink) {
	r.mu.Lock()
	cur, ok := r.sessions[id]
	if ok && cur == sink {
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	sink.Close()
}

// Sessions returns a point-in-time copy of the registered sessions.
func (r *Registry) Sessions() []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Session, 0, len(r.sessions))
	for id, s := range r.sessions {
		out = append(out, Session{ID: id, Sink: s})
	}
	return out
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[id]
	return ok
}

// Count returns the number of registered sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CloseAll unregisters and closes every session.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sinks := r.sessions
	r.sessions = make(map[string]Sink)
	r.mu.Unlock()

	for _, s := range sinks {
		s.Close()
	}
}
