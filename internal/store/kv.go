// Package store provides the relay's persisted key-value state. The only
// consumer is the ingestion loop's dedup tracking, so the surface is a
// deliberately small get/put capability plus a bounded id-list layered on top.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// KV is the key-value collaborator consumed by the ingestion loop. Values are
// JSON-serializable strings; a missing key is reported via the bool, not an
// error.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Put(ctx context.Context, key string, value string) error
}

// DBTX is the minimal interface shared by *pgxpool.Pool and pgx.Tx, so the
// same store code works inside or outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Compile-time assertion that PostgresKV implements KV.
var _ KV = (*PostgresKV)(nil)

// PostgresKV stores relay state in a single relay_state table:
//
//	CREATE TABLE relay_state (
//	    key        TEXT PRIMARY KEY,
//	    value      TEXT NOT NULL,
//	    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
//
// Writes are last-writer-wins upserts. Concurrent pollers for the same key
// can lose an update; the cost is only a duplicate future delivery.
type PostgresKV struct {
	db DBTX
}

// NewPostgresKV creates a PostgresKV on the given connection or transaction.
func NewPostgresKV(db DBTX) *PostgresKV {
	return &PostgresKV{db: db}
}

// EnsureSchema creates the relay_state table when it does not exist yet.
// Called once at startup; the relay owns its single table outright, so a
// migration tool would be overkill.
func (s *PostgresKV) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx,
		`CREATE TABLE IF NOT EXISTS relay_state (
		    key        TEXT PRIMARY KEY,
		    value      TEXT NOT NULL,
		    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("ensuring relay_state schema: %w", err)
	}
	return nil
}

// Get returns the value stored under key, reporting absence via the bool.
func (s *PostgresKV) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(ctx,
		`SELECT value FROM relay_state WHERE key = $1`, key,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("kv get %q: %w", key, err)
	}
	return value, true, nil
}

// Put upserts the value under key.
func (s *PostgresKV) Put(ctx context.Context, key string, value string) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO relay_state (key, value, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("kv put %q: %w", key, err)
	}
	return nil
}
