package sqlkv

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/table1837/eightysix/server/internal/kv"
)

func openTempStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "eightysix.db")
	store, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store, path
}

func toMap(pairs []kv.Pair) map[string]string {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		out[p.Key] = string(p.Value)
	}
	return out
}

func TestPutAndList(t *testing.T) {
	store, _ := openTempStore(t)
	ctx := context.Background()
	b := store.Bucket("bar")

	if err := b.Put(ctx, "Old Fashioned", []byte(`{"status":"unavailable"}`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := b.Put(ctx, "Negroni", []byte(`{"status":"unavailable"}`)); err != nil {
		t.Fatalf("put: %v", err)
	}

	pairs, err := b.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(pairs) != 2 {
		t.Fatalf("pairs len = %d, want 2", len(pairs))
	}
}

func TestPutUpsertsLastWriteWins(t *testing.T) {
	store, _ := openTempStore(t)
	ctx := context.Background()
	b := store.Bucket("bar")

	b.Put(ctx, "Old Fashioned", []byte("v1")) //nolint:errcheck
	if err := b.Put(ctx, "Old Fashioned", []byte("v2")); err != nil {
		t.Fatalf("second put: %v", err)
	}

	got := toMap(mustList(t, b))
	if len(got) != 1 {
		t.Fatalf("pairs len = %d, want 1", len(got))
	}
	if got["Old Fashioned"] != "v2" {
		t.Fatalf("value = %q, want v2", got["Old Fashioned"])
	}
}

func TestBucketsAreIsolated(t *testing.T) {
	store, _ := openTempStore(t)
	ctx := context.Background()

	store.Bucket("bar").Put(ctx, "k", []byte("bar"))         //nolint:errcheck
	store.Bucket("kitchen").Put(ctx, "k", []byte("kitchen")) //nolint:errcheck

	if got := toMap(mustList(t, store.Bucket("bar"))); got["k"] != "bar" {
		t.Fatalf("bar value = %q, want bar", got["k"])
	}
	if got := toMap(mustList(t, store.Bucket("kitchen"))); got["k"] != "kitchen" {
		t.Fatalf("kitchen value = %q, want kitchen", got["k"])
	}
}

func TestValuesSurviveReopen(t *testing.T) {
	store, path := openTempStore(t)
	ctx := context.Background()
	store.Bucket("bar").Put(ctx, "Negroni", []byte("persisted")) //nolint:errcheck
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	if got := toMap(mustList(t, reopened.Bucket("bar"))); got["Negroni"] != "persisted" {
		t.Fatalf("value after reopen = %q, want persisted", got["Negroni"])
	}
}

func TestPutRequiresKey(t *testing.T) {
	store, _ := openTempStore(t)
	if err := store.Bucket("bar").Put(context.Background(), " ", []byte("x")); err == nil {
		t.Fatal("expected error for empty key")
	}
}

func TestOpenSQLiteRequiresPath(t *testing.T) {
	if _, err := OpenSQLite(""); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestMySQLRoundTrip(t *testing.T) {
	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		t.Skip("MYSQL_DSN not set")
	}
	store, err := OpenMySQL(dsn)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	b := store.Bucket("sqlkv-test")
	if err := b.Put(ctx, "Daiquiri", []byte("v1")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := b.Put(ctx, "Daiquiri", []byte("v2")); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if got := toMap(mustList(t, b)); got["Daiquiri"] != "v2" {
		t.Fatalf("value = %q, want v2", got["Daiquiri"])
	}
}

func mustList(t *testing.T, s kv.Store) []kv.Pair {
	t.Helper()
	pairs, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	return pairs
}
