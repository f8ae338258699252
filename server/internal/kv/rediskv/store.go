// Package rediskv implements the kv.Backend contract on Redis. Each scope is
// one hash (eightysix:scope:<scope>); HSET is atomic per field, which is the
// only guarantee the availability actors rely on.
package rediskv

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/table1837/eightysix/server/internal/kv"
)

const scopeKeyPrefix = "eightysix:scope:"

// Store is a Redis-backed kv.Backend.
type Store struct {
	client *redis.Client
}

// New wraps an existing client.
func New(client *redis.Client) *Store {
	return &Store{client: client}
}

// Dial connects to addr and verifies the connection with PING.
func Dial(ctx context.Context, addr, password string, db int) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("rediskv: ping %s: %w", addr, err)
	}
	return &Store{client: client}, nil
}

// Bucket returns the Store for scope.
func (s *Store) Bucket(scope string) kv.Store {
	return &bucket{client: s.client, key: scopeKeyPrefix + scope}
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

type bucket struct {
	client *redis.Client
	key    string
}

func (b *bucket) Put(ctx context.Context, key string, value []byte) error {
	if err := b.client.HSet(ctx, b.key, key, value).Err(); err != nil {
		return fmt.Errorf("rediskv: hset %s %q: %w", b.key, key, err)
	}
	return nil
}

func (b *bucket) List(ctx context.Context) ([]kv.Pair, error) {
	m, err := b.client.HGetAll(ctx, b.key).Result()
	if err != nil {
		return nil, fmt.Errorf("rediskv: hgetall %s: %w", b.key, err)
	}
	out := make([]kv.Pair, 0, len(m))
	for k, v := range m {
		out = append(out, kv.Pair{Key: k, Value: []byte(v)})
	}
	return out, nil
}
