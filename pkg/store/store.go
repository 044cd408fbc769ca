// Package store persists custom tools, rate-limit windows, and execution
// records in Postgres.
package store

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// Store wraps the shared connection pool. All writes are single-row
// upserts/inserts; only the rate-limit check-and-increment and the
// hash-chain append need statement-level atomicity.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a store backed by the given connection pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// EnsureSchema applies the embedded DDL. Statements are idempotent
// (CREATE TABLE IF NOT EXISTS), so this is safe to run at every startup.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("store.EnsureSchema: %w", err)
	}
	return nil
}

// Ping reports datastore reachability for readiness checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
