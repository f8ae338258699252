package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/table1837/eightysix/server/internal/config"
	"github.com/table1837/eightysix/server/internal/kv"
	"github.com/table1837/eightysix/server/internal/kv/sqlkv"
)

func TestOpenBackend_Memory(t *testing.T) {
	b, err := openBackend(context.Background(), config.StorageConfig{Driver: config.DriverMemory})
	if err != nil {
		t.Fatalf("openBackend: %v", err)
	}
	defer b.Close()
	if _, ok := b.(*kv.Memory); !ok {
		t.Errorf("backend: got %T, want *kv.Memory", b)
	}
}

func TestOpenBackend_SQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eightysix.db")
	b, err := openBackend(context.Background(), config.StorageConfig{Driver: config.DriverSQLite, Path: path})
	if err != nil {
		t.Fatalf("openBackend: %v", err)
	}
	defer b.Close()
	s, ok := b.(*sqlkv.Store)
	if !ok || s.Dialect() != sqlkv.SQLite {
		t.Errorf("backend: got %T, want sqlite store", b)
	}
}

func TestOpenBackend_Unknown(t *testing.T) {
	if _, err := openBackend(context.Background(), config.StorageConfig{Driver: "dynamo"}); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
