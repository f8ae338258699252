package main

import (
	"context"
	"fmt"

	"github.com/table1837/eightysix/server/internal/config"
	"github.com/table1837/eightysix/server/internal/kv"
	"github.com/table1837/eightysix/server/internal/kv/rediskv"
	"github.com/table1837/eightysix/server/internal/kv/sqlkv"
)

// openBackend returns the durable store selected by cfg.Driver.
func openBackend(ctx context.Context, cfg config.StorageConfig) (kv.Backend, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return kv.NewMemory(), nil
	case config.DriverSQLite:
		return sqlkv.OpenSQLite(cfg.Path)
	case config.DriverMySQL:
		return sqlkv.OpenMySQL(cfg.DSN)
	case config.DriverRedis:
		return rediskv.Dial(ctx, cfg.Redis.Addr, cfg.Redis.Password(), cfg.Redis.DB)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
