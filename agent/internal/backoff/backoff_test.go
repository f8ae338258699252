package backoff

import (
	"context"
	"testing"
	"time"
)

func TestBackoff_Resets(t *testing.T) {
	b := New(time.Second, time.Minute)
	if first := b.Next(); first > 2*time.Second {
		t.Errorf("first backoff too large: %v", first)
	}
	for i := 0; i < 10; i++ {
		b.Next()
	}
	b.Reset()
	if after := b.Next(); after > 2*time.Second {
		t.Errorf("backoff after reset too large: %v", after)
	}
}

func TestBackoff_NeverExceedsMax(t *testing.T) {
	b := New(time.Second, 10*time.Second)
	for i := 0; i < 50; i++ {
		// With jitter, the ceiling is max * 1.25.
		if d := b.Next(); d > 10*time.Second*5/4 {
			t.Errorf("backoff[%d] = %v, exceeds 1.25×max", i, d)
		}
	}
}

func TestNew_Defaults(t *testing.T) {
	b := New(0, 0)
	if b.initial != DefaultInitial || b.max != DefaultMax {
		t.Errorf("defaults: got initial=%v max=%v", b.initial, b.max)
	}
	b = New(time.Minute, time.Second)
	if b.initial != time.Second {
		t.Errorf("initial above max: got %v, want clamp to 1s", b.initial)
	}
}

func TestSleep_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if New(time.Hour, time.Hour).Sleep(ctx) {
		t.Error("Sleep with cancelled context: got true, want false")
	}
}

func TestSleep_Elapses(t *testing.T) {
	if !New(time.Millisecond, time.Millisecond).Sleep(context.Background()) {
		t.Error("Sleep: got false, want true")
	}
}
