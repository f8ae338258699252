package stream

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/table1837/eightysix/pkg/types"
)

// Mirror is a thread-safe local copy of a scope's records.
type Mirror struct {
	mu     sync.RWMutex
	scope  string
	items  map[string]types.Record
	synced bool
}

// NewMirror returns an empty Mirror for scope.
func NewMirror(scope string) *Mirror {
	return &Mirror{scope: scope, items: make(map[string]types.Record)}
}

// Scope returns the scope this mirror follows.
func (m *Mirror) Scope() string { return m.scope }

// Apply decodes one realtime message and folds it into the mirror.
// A snapshot replaces all records; item events upsert one record unless a
// newer record for the same item is already held.
func (m *Mirror) Apply(raw []byte) (types.Message, error) {
	var msg types.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return msg, fmt.Errorf("stream: decode message: %w", err)
	}
	if msg.Scope != "" && msg.Scope != m.scope {
		return msg, fmt.Errorf("stream: message for scope %q, mirror follows %q", msg.Scope, m.scope)
	}

	switch msg.Event {
	case types.EventSnapshot:
		var records []types.Record
		if err := json.Unmarshal(msg.Data, &records); err != nil {
			return msg, fmt.Errorf("stream: decode snapshot: %w", err)
		}
		items := make(map[string]types.Record, len(records))
		for _, r := range records {
			items[r.ItemKey] = r
		}
		m.mu.Lock()
		m.items = items
		m.synced = true
		m.mu.Unlock()

	case types.EventItemAdded, types.EventItemRemoved:
		var r types.Record
		if err := json.Unmarshal(msg.Data, &r); err != nil {
			return msg, fmt.Errorf("stream: decode %s: %w", msg.Event, err)
		}
		m.mu.Lock()
		if cur, ok := m.items[r.ItemKey]; !ok || !cur.AppliedAt.After(r.AppliedAt) {
			m.items[r.ItemKey] = r
		}
		m.mu.Unlock()

	default:
		return msg, fmt.Errorf("stream: unknown event %q", msg.Event)
	}
	return msg, nil
}

// Records returns every mirrored record sorted by item key.
func (m *Mirror) Records() []types.Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.Record, 0, len(m.items))
	for _, r := range m.items {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ItemKey < out[j].ItemKey })
	return out
}

// Unavailable returns the sorted keys of items currently 86'd.
func (m *Mirror) Unavailable() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var keys []string
	for k, r := range m.items {
		if r.Status == types.StatusUnavailable {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Status returns the mirrored status of key and whether it is tracked.
func (m *Mirror) Status(key string) (types.Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.items[key]
	return r.Status, ok
}

// Synced reports whether at least one snapshot has been applied.
func (m *Mirror) Synced() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.synced
}
