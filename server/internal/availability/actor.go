package availability

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/table1837/eightysix/pkg/types"
	"github.com/table1837/eightysix/server/internal/kv"
	"github.com/table1837/eightysix/server/internal/session"
)

// DefaultPersistTimeout bounds a single durable write when Options leaves
// PersistTimeout unset.
const DefaultPersistTimeout = 5 * time.Second

const tracerName = "github.com/table1837/eightysix/server/internal/availability"

// Observer is notified of every apply outcome. Observers run inside the
// actor's critical section, in apply order, and must not block.
type Observer interface {
	Applied(scope string, rec types.Record, fanout session.Result)
	Rejected(scope string, err error)
}

// Options tune an Actor.
type Options struct {
	// PersistTimeout bounds each kv.Store.Put. Zero means DefaultPersistTimeout.
	PersistTimeout time.Duration

	// Now stamps applied_at. Nil means time.Now.
	Now func() time.Time

	Observers []Observer
}

// Actor is the single writer of one scope's availability state.
type Actor struct {
	scope          string
	store          kv.Store
	persistTimeout time.Duration
	now            func() time.Time
	observers      []Observer
	tracer         trace.Tracer
	sessions       *session.Registry
	broken         atomic.Bool

	mu          sync.Mutex
	state       map[string]types.Record
	lastApplied time.Time
}

// Open creates the Actor for scope and rebuilds its state from every value
// currently held in store. Values that do not decode are skipped.
func Open(ctx context.Context, scope string, store kv.Store, opts Options) (*Actor, error) {
	if err := ValidateScope(scope); err != nil {
		return nil, err
	}
	a := &Actor{
		scope:          scope,
		store:          store,
		persistTimeout: opts.PersistTimeout,
		now:            opts.Now,
		observers:      opts.Observers,
		tracer:         otel.Tracer(tracerName),
		sessions:       session.NewRegistry(),
		state:          make(map[string]types.Record),
	}
	if a.persistTimeout <= 0 {
		a.persistTimeout = DefaultPersistTimeout
	}
	if a.now == nil {
		a.now = time.Now
	}

	pairs, err := store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("availability: recover scope %q: %w: %w", scope, ErrPersistence, err)
	}
	for _, p := range pairs {
		var rec types.Record
		if err := json.Unmarshal(p.Value, &rec); err != nil || rec.ItemKey == "" {
			slog.Warn("availability: skipping undecodable record",
				"scope", scope, "key", p.Key, "err", err)
			continue
		}
		a.state[rec.ItemKey] = rec
		if rec.AppliedAt.After(a.lastApplied) {
			a.lastApplied = rec.AppliedAt
		}
	}

	slog.Info("availability: scope recovered", "scope", scope, "records", len(a.state))
	return a, nil
}

// Scope returns the scope name the actor owns.
func (a *Actor) Scope() string { return a.scope }

// Apply validates u, persists it, updates the in-memory state and broadcasts
// it. The returned Record is durable when err is nil.
func (a *Actor) Apply(ctx context.Context, u types.Update) (rec types.Record, err error) {
	ctx, span := a.tracer.Start(ctx, "availability.Apply", trace.WithAttributes(
		attribute.String("scope", a.scope),
		attribute.String("item_key", u.ItemKey),
		attribute.String("status", string(u.Status)),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	u, err = normalize(u)
	if err != nil {
		a.reject(err)
		return types.Record{}, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	defer a.recoverInvariant(&err)

	if a.broken.Load() {
		return types.Record{}, fmt.Errorf("availability: scope %q: %w", a.scope, ErrRegistryInconsistency)
	}

	appliedAt := a.now().UTC()
	if appliedAt.Before(a.lastApplied) {
		appliedAt = a.lastApplied
	}
	rec = types.Record{
		ItemKey:   u.ItemKey,
		Status:    u.Status,
		ActorID:   u.ActorID,
		Reason:    u.Reason,
		AppliedAt: appliedAt,
	}

	if err := a.persist(ctx, rec); err != nil {
		a.reject(err)
		return types.Record{}, err
	}

	a.state[rec.ItemKey] = rec
	a.lastApplied = appliedAt

	fanout := a.broadcast(rec)
	for _, o := range a.observers {
		o.Applied(a.scope, rec, fanout)
	}

	slog.Debug("availability: update applied",
		"scope", a.scope,
		"item_key", rec.ItemKey,
		"status", rec.Status,
		"actor_id", rec.ActorID,
		"delivered", fanout.Delivered,
		"evicted", fanout.Evicted,
	)
	return rec, nil
}

// Snapshot returns every tracked record ordered by item key.
func (a *Actor) Snapshot() []types.Record {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

// Attach pushes the current snapshot to sink and then registers it under id
// for future broadcasts. Both happen under the apply lock. On any error the
// sink is closed and not registered.
func (a *Actor) Attach(id string, sink session.Sink) (err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	defer func() {
		if err != nil {
			sink.Close()
		}
	}()
	defer a.recoverInvariant(&err)

	if a.broken.Load() {
		return fmt.Errorf("availability: scope %q: %w", a.scope, ErrRegistryInconsistency)
	}

	msg, err := types.NewSnapshotMessage(a.scope, a.snapshotLocked())
	if err != nil {
		return err
	}
	if err := session.Deliver(session.Session{ID: id, Sink: sink}, msg); err != nil {
		return err
	}
	a.sessions.Register(id, sink)
	return nil
}

// Detach unregisters id. Detaching an unknown id is a no-op.
func (a *Actor) Detach(id string) {
	a.sessions.Unregister(id)
}

// Release unregisters id only while it is still bound to sink. Gateways call
// it when a connection ends so a reconnect under the same id survives.
func (a *Actor) Release(id string, sink session.Sink) {
	a.sessions.UnregisterSink(id, sink)
}

// Sessions returns the number of attached sessions.
func (a *Actor) Sessions() int {
	return a.sessions.Count()
}

// Close detaches every session.
func (a *Actor) Close() {
	a.sessions.CloseAll()
}

// --- internal ---------------------------------------------------------------

func (a *Actor) persist(ctx context.Context, rec types.Record) error {
	value, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("availability: encode %q: %w: %w", rec.ItemKey, ErrPersistence, err)
	}

	pctx, cancel := context.WithTimeout(ctx, a.persistTimeout)
	defer cancel()

	if err := a.store.Put(pctx, rec.ItemKey, value); err != nil {
		return fmt.Errorf("availability: persist %q: %w: %w", rec.ItemKey, ErrPersistence, err)
	}
	// A store that ignores its context may return nil after the deadline;
	// the caller has already been promised a bounded wait.
	if err := pctx.Err(); err != nil {
		return fmt.Errorf("availability: persist %q: %w: %w", rec.ItemKey, ErrPersistence, err)
	}
	return nil
}

func (a *Actor) broadcast(rec types.Record) session.Result {
	msg, err := types.NewRecordMessage(a.scope, rec)
	if err != nil {
		slog.Error("availability: encode broadcast", "scope", a.scope, "err", err)
		return session.Result{}
	}
	return session.Broadcast(msg, a.sessions)
}

func (a *Actor) snapshotLocked() []types.Record {
	out := make([]types.Record, 0, len(a.state))
	for _, r := range a.state {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ItemKey < out[j].ItemKey })
	return out
}

func (a *Actor) reject(err error) {
	for _, o := range a.observers {
		o.Rejected(a.scope, err)
	}
}

// recoverInvariant converts a panic inside the critical section into
// ErrRegistryInconsistency and marks the actor unusable. Its sessions are
// closed so clients reconnect to a rebuilt actor.
func (a *Actor) recoverInvariant(err *error) {
	p := recover()
	if p == nil {
		return
	}
	a.broken.Store(true)
	slog.Error("availability: invariant violation, discarding actor",
		"scope", a.scope, "panic", p)
	a.sessions.CloseAll()
	*err = fmt.Errorf("availability: scope %q: %w: %v", a.scope, ErrRegistryInconsistency, p)
}
