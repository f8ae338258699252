package kv

import (
	"context"
	"sync"
	"time"
)

// Entry is a stored value together with the time it was last written.
type Entry struct {
	Value     []byte
	UpdatedAt time.Time
}

// Memory is a thread-safe in-memory Backend. Values survive for the life of
// the process only; it is intended for tests and single-node development.
type Memory struct {
	mu     sync.RWMutex
	data   map[string]map[string]*Entry // scope -> key -> entry
	closed bool
	now    func() time.Time // injectable for deterministic tests
}

// NewMemory creates an empty Memory backend.
func NewMemory() *Memory {
	return &Memory{
		data: make(map[string]map[string]*Entry),
		now:  time.Now,
	}
}

// Bucket returns the Store for scope.
func (m *Memory) Bucket(scope string) Store {
	return &memoryBucket{m: m, scope: scope}
}

// Get returns the entry for key within scope and whether it was found.
func (m *Memory) Get(scope, key string) (*Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.data[scope][key]
	return e, ok
}

// Count returns the number of keys stored under scope.
func (m *Memory) Count(scope string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data[scope])
}

// Close marks the backend closed. Subsequent Put and List calls fail.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *Memory) put(ctx context.Context, scope, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// Callers may reuse value after Put returns.
	cp := append([]byte(nil), value...)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	bucket, ok := m.data[scope]
	if !ok {
		bucket = make(map[string]*Entry)
		m.data[scope] = bucket
	}
	bucket[key] = &Entry{Value: cp, UpdatedAt: m.now()}
	return nil
}

func (m *Memory) list(ctx context.Context, scope string) ([]Pair, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	bucket := m.data[scope]
	out := make([]Pair, 0, len(bucket))
	for k, e := range bucket {
		out = append(out, Pair{Key: k, Value: append([]byte(nil), e.Value...)})
	}
	return out, nil
}

type memoryBucket struct {
	m     *Memory
	scope string
}

func (b *memoryBucket) Put(ctx context.Context, key string, value []byte) error {
	return b.m.put(ctx, b.scope, key, value)
}

func (b *memoryBucket) List(ctx context.Context) ([]Pair, error) {
	return b.m.list(ctx, b.scope)
}
