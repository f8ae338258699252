package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeClock is a settable clock for TTL tests.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

func newTestCache(ttl time.Duration) (*Cache, *fakeClock) {
	clk := &fakeClock{t: time.Date(2026, 10, 17, 20, 0, 0, 0, time.UTC)}
	c := New(ttl)
	c.now = clk.Now
	return c, clk
}

func counting(calls *atomic.Int32, value string) ComputeFunc {
	return func(context.Context) ([]byte, error) {
		calls.Add(1)
		return []byte(value), nil
	}
}

func TestGetOrCompute_HitWithinTTL(t *testing.T) {
	c, clk := newTestCache(300 * time.Second)
	var calls atomic.Int32
	ctx := context.Background()

	v1, hit1, err := c.GetOrCompute(ctx, "mezcal", counting(&calls, "r1"))
	if err != nil || hit1 {
		t.Fatalf("first call: hit=%v err=%v", hit1, err)
	}
	clk.Advance(299 * time.Second)
	v2, hit2, _ := c.GetOrCompute(ctx, "mezcal", counting(&calls, "r2"))

	if !hit2 {
		t.Error("second call within TTL: expected hit")
	}
	if string(v1) != "r1" || string(v2) != "r1" {
		t.Errorf("values: got %q, %q; want r1, r1", v1, v2)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("compute calls: got %d, want 1", n)
	}
}

func TestGetOrCompute_RecomputesAfterTTL(t *testing.T) {
	c, clk := newTestCache(300 * time.Second)
	var calls atomic.Int32
	ctx := context.Background()

	c.GetOrCompute(ctx, "mezcal", counting(&calls, "r")) //nolint:errcheck
	c.GetOrCompute(ctx, "mezcal", counting(&calls, "r")) //nolint:errcheck
	clk.Advance(300 * time.Second)
	_, hit, _ := c.GetOrCompute(ctx, "mezcal", counting(&calls, "r"))

	if hit {
		t.Error("third call after TTL: expected miss")
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("compute calls: got %d, want 2", n)
	}
}

func TestGetOrCompute_NormalizedQueriesShareEntry(t *testing.T) {
	c, _ := newTestCache(time.Minute)
	var calls atomic.Int32
	ctx := context.Background()

	for _, q := range []string{"Old Fashioned", "old   fashioned", "  OLD FASHIONED "} {
		c.GetOrCompute(ctx, q, counting(&calls, "r")) //nolint:errcheck
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("compute calls: got %d, want 1", n)
	}
}

func TestGetOrCompute_DistinctQueries(t *testing.T) {
	c, _ := newTestCache(time.Minute)
	var calls atomic.Int32
	ctx := context.Background()

	c.GetOrCompute(ctx, "gin", counting(&calls, "g")) //nolint:errcheck
	c.GetOrCompute(ctx, "rum", counting(&calls, "r")) //nolint:errcheck
	if n := calls.Load(); n != 2 {
		t.Errorf("compute calls: got %d, want 2", n)
	}
}

func TestGetOrCompute_ErrorNotCached(t *testing.T) {
	c, _ := newTestCache(time.Minute)
	ctx := context.Background()
	boom := errors.New("ranking unavailable")

	_, _, err := c.GetOrCompute(ctx, "gin", func(context.Context) ([]byte, error) { return nil, boom })
	if !errors.Is(err, boom) {
		t.Fatalf("err: got %v, want %v", err, boom)
	}
	var calls atomic.Int32
	v, hit, err := c.GetOrCompute(ctx, "gin", counting(&calls, "ok"))
	if err != nil || hit || string(v) != "ok" {
		t.Errorf("after error: v=%q hit=%v err=%v", v, hit, err)
	}
}

func TestGetOrCompute_ConcurrentMissesCollapse(t *testing.T) {
	c, _ := newTestCache(time.Minute)
	var calls atomic.Int32
	release := make(chan struct{})
	compute := func(context.Context) ([]byte, error) {
		calls.Add(1)
		<-release
		return []byte("r"), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.GetOrCompute(context.Background(), "tequila", compute) //nolint:errcheck
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Errorf("compute calls: got %d, want 1", n)
	}
}

func TestEvict_RemovesExpired(t *testing.T) {
	c, clk := newTestCache(time.Minute)
	ctx := context.Background()
	var calls atomic.Int32
	c.GetOrCompute(ctx, "a", counting(&calls, "a")) //nolint:errcheck
	clk.Advance(30 * time.Second)
	c.GetOrCompute(ctx, "b", counting(&calls, "b")) //nolint:errcheck

	removed := c.Evict(clk.Now().Add(31 * time.Second))
	if removed != 1 {
		t.Errorf("Evict: removed %d, want 1", removed)
	}
	if s := c.Stats(); s.Entries != 1 {
		t.Errorf("Entries: got %d, want 1", s.Entries)
	}
}

func TestStatsAndPurge(t *testing.T) {
	c, _ := newTestCache(time.Minute)
	ctx := context.Background()
	var calls atomic.Int32
	c.GetOrCompute(ctx, "a", counting(&calls, "a")) //nolint:errcheck
	c.GetOrCompute(ctx, "a", counting(&calls, "a")) //nolint:errcheck

	s := c.Stats()
	if s.Hits != 1 || s.Misses != 1 || s.Entries != 1 {
		t.Errorf("Stats: got %+v, want 1 hit 1 miss 1 entry", s)
	}
	c.Purge()
	if s := c.Stats(); s.Entries != 0 {
		t.Errorf("Entries after Purge: got %d, want 0", s.Entries)
	}
}

func TestKey_Deterministic(t *testing.T) {
	if Key("Negroni") != Key("negroni") {
		t.Error("Key should be case-insensitive")
	}
	if Key("Negroni") == Key("Boulevardier") {
		t.Error("distinct queries should not share a key")
	}
	if got := Key("x"); len(got) <= len(keyPrefix) || got[:len(keyPrefix)] != keyPrefix {
		t.Errorf("Key: got %q, want %q prefix", got, keyPrefix)
	}
}

func TestNew_DefaultTTL(t *testing.T) {
	if ttl := New(0).TTL(); ttl != DefaultTTL {
		t.Errorf("TTL: got %v, want %v", ttl, DefaultTTL)
	}
}
