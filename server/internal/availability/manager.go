package availability

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/table1837/eightysix/pkg/types"
	"github.com/table1837/eightysix/server/internal/kv"
	"github.com/table1837/eightysix/server/internal/session"
)

// Manager owns one Actor per scope, opening each on first use.
//
// Manager is safe for concurrent use. Observers must be registered with
// Observe before the first call that opens an actor.
type Manager struct {
	backend kv.Backend
	opts    Options
	group   singleflight.Group

	mu     sync.RWMutex
	actors map[string]*Actor
}

// NewManager creates a Manager persisting through backend.
func NewManager(backend kv.Backend, opts Options) *Manager {
	return &Manager{
		backend: backend,
		opts:    opts,
		actors:  make(map[string]*Actor),
	}
}

// Observe registers o for every actor opened afterwards.
func (m *Manager) Observe(o Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opts.Observers = append(m.opts.Observers, o)
}

// Actor returns the actor for scope, opening and recovering it if needed.
// Concurrent first calls for one scope share a single recovery.
func (m *Manager) Actor(ctx context.Context, scope string) (*Actor, error) {
	if err := ValidateScope(scope); err != nil {
		return nil, err
	}

	m.mu.RLock()
	a, ok := m.actors[scope]
	m.mu.RUnlock()
	if ok {
		return a, nil
	}

	v, err, _ := m.group.Do(scope, func() (any, error) {
		m.mu.RLock()
		a, ok := m.actors[scope]
		opts := m.opts
		m.mu.RUnlock()
		if ok {
			return a, nil
		}

		// Waiters share this recovery, so one caller's cancellation must not fail it.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recoverTimeout(opts))
		defer cancel()
		a, err := Open(rctx, scope, m.backend.Bucket(scope), opts)
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		m.actors[scope] = a
		m.mu.Unlock()
		return a, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Actor), nil
}

// Apply routes u to the actor for scope.
func (m *Manager) Apply(ctx context.Context, scope string, u types.Update) (types.Record, error) {
	a, err := m.Actor(ctx, scope)
	if err != nil {
		return types.Record{}, err
	}
	rec, err := a.Apply(ctx, u)
	m.evictIfBroken(scope, a, err)
	return rec, err
}

// Snapshot returns the current records of scope.
func (m *Manager) Snapshot(ctx context.Context, scope string) ([]types.Record, error) {
	a, err := m.Actor(ctx, scope)
	if err != nil {
		return nil, err
	}
	return a.Snapshot(), nil
}

// Attach pushes scope's snapshot to sink and registers it for broadcasts.
func (m *Manager) Attach(ctx context.Context, scope, id string, sink session.Sink) error {
	a, err := m.Actor(ctx, scope)
	if err != nil {
		sink.Close()
		return err
	}
	err = a.Attach(id, sink)
	m.evictIfBroken(scope, a, err)
	return err
}

// Detach unregisters session id from scope. Unknown scopes and ids are ignored.
func (m *Manager) Detach(scope, id string) {
	m.mu.RLock()
	a, ok := m.actors[scope]
	m.mu.RUnlock()
	if ok {
		a.Detach(id)
	}
}

// Release unregisters id from scope if it is still bound to sink.
func (m *Manager) Release(scope, id string, sink session.Sink) {
	m.mu.RLock()
	a, ok := m.actors[scope]
	m.mu.RUnlock()
	if ok {
		a.Release(id, sink)
	}
}

// Scopes returns the names of the open scopes, sorted.
func (m *Manager) Scopes() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.actors))
	for s := range m.actors {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// SessionCount returns the number of sessions attached across all scopes.
func (m *Manager) SessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, a := range m.actors {
		n += a.Sessions()
	}
	return n
}

// Close detaches every session of every scope.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.actors {
		a.Close()
	}
}

// recoverTimeout bounds the shared recovery of one scope.
func recoverTimeout(opts Options) time.Duration {
	if opts.PersistTimeout > 0 {
		return 4 * opts.PersistTimeout
	}
	return 4 * DefaultPersistTimeout
}

// evictIfBroken drops a from the scope map after an invariant violation so
// the next call rebuilds the scope from the durable store.
func (m *Manager) evictIfBroken(scope string, a *Actor, err error) {
	if !errors.Is(err, ErrRegistryInconsistency) {
		return
	}
	m.mu.Lock()
	if m.actors[scope] == a {
		delete(m.actors, scope)
	}
	m.mu.Unlock()
}
