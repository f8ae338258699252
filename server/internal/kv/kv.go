package kv

import (
	"context"
	"errors"
)

// ErrClosed is returned by stores whose backend has been closed.
var ErrClosed = errors.New("kv: backend closed")

// Pair is one stored key and its current value.
type Pair struct {
	Key   string
	Value []byte
}

// Store is the per-scope durable key-value contract.
type Store interface {
	// Put stores value under key, replacing any previous value.
	Put(ctx context.Context, key string, value []byte) error
	// List returns every current pair.
	List(ctx context.Context) ([]Pair, error)
}

// Backend partitions durable storage by scope.
type Backend interface {
	// Bucket returns the Store for scope. Buckets are cheap; callers may
	// request the same scope more than once.
	Bucket(scope string) Store
	Close() error
}
