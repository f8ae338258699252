// Package sqlkv implements the kv.Backend contract on database/sql, with
// dialects for SQLite (modernc.org/sqlite, pure Go) and MySQL
// (github.com/go-sql-driver/mysql).
//
// All scopes share one table keyed by (scope, item_key); each row holds the
// current JSON value for that key.
package sqlkv

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"github.com/table1837/eightysix/server/internal/kv"
)

// Dialect selects driver-specific SQL.
type Dialect string

const (
	SQLite Dialect = "sqlite"
	MySQL  Dialect = "mysql"
)

var schema = map[Dialect]string{
	SQLite: `
CREATE TABLE IF NOT EXISTS availability (
	scope      TEXT    NOT NULL,
	item_key   TEXT    NOT NULL,
	value      BLOB    NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (scope, item_key)
)`,
	MySQL: `
CREATE TABLE IF NOT EXISTS availability (
	scope      VARCHAR(64)  NOT NULL,
	item_key   VARCHAR(255) NOT NULL,
	value      MEDIUMBLOB   NOT NULL,
	updated_at BIGINT       NOT NULL,
	PRIMARY KEY (scope, item_key)
)`,
}

var upsert = map[Dialect]string{
	SQLite: `
INSERT INTO availability (scope, item_key, value, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (scope, item_key) DO UPDATE SET
	value = excluded.value,
	updated_at = excluded.updated_at`,
	MySQL: `
INSERT INTO availability (scope, item_key, value, updated_at)
VALUES (?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
	value = VALUES(value),
	updated_at = VALUES(updated_at)`,
}

// Store provides SQL-backed availability persistence.
type Store struct {
	sqlDB   *sql.DB
	dialect Dialect
	now     func() time.Time
}

// OpenSQLite opens (creating if needed) a SQLite database file at path.
func OpenSQLite(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlkv: storage path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	return open(SQLite, "sqlite", dsn)
}

// OpenMySQL opens a MySQL database using a go-sql-driver DSN.
func OpenMySQL(dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("sqlkv: mysql dsn is required")
	}
	return open(MySQL, "mysql", dsn)
}

func open(d Dialect, driver, dsn string) (*Store, error) {
	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlkv: open %s db: %w", d, err)
	}
	if d == SQLite {
		// One writer at a time; SQLite serialises writes anyway.
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("sqlkv: ping %s db: %w", d, err)
	}
	if _, err := sqlDB.Exec(schema[d]); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("sqlkv: ensure schema: %w", err)
	}
	return &Store{sqlDB: sqlDB, dialect: d, now: time.Now}, nil
}

// Dialect reports which SQL dialect the store speaks.
func (s *Store) Dialect() Dialect { return s.dialect }

// Close releases the database connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Bucket returns the Store for scope.
func (s *Store) Bucket(scope string) kv.Store {
	return &bucket{s: s, scope: scope}
}

type bucket struct {
	s     *Store
	scope string
}

// Put upserts value under (scope, key).
func (b *bucket) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("sqlkv: key is required")
	}
	_, err := b.s.sqlDB.ExecContext(ctx, upsert[b.s.dialect],
		b.scope, key, value, b.s.now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("sqlkv: put %q: %w", key, err)
	}
	return nil
}

// List returns every pair stored under the bucket's scope.
func (b *bucket) List(ctx context.Context) ([]kv.Pair, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := b.s.sqlDB.QueryContext(ctx,
		`SELECT item_key, value FROM availability WHERE scope = ?`, b.scope)
	if err != nil {
		return nil, fmt.Errorf("sqlkv: list %q: %w", b.scope, err)
	}
	defer rows.Close()

	var out []kv.Pair
	for rows.Next() {
		var p kv.Pair
		if err := rows.Scan(&p.Key, &p.Value); err != nil {
			return nil, fmt.Errorf("sqlkv: scan: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlkv: iterate: %w", err)
	}
	return out, nil
}
