// Package store persists pages, chunks, crawl jobs, API keys, and the
// search query log in Postgres. Vector search runs on pgvector; every
// logical operation uses its own pooled connection.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("store: not found")

// Store wraps a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to the database and verifies the connection.
func New(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close releases all pooled connections.
func (s *Store) Close() { s.pool.Close() }

// Ping checks database connectivity for health endpoints.
func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// hashAPIKey hashes a raw API key string using SHA-256 and returns a
// hex string. Only hashes are ever stored.
func hashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// newUUID prefers time-ordered v7 ids so rows sort by creation, with a
// v4 fallback when the clock misbehaves.
func newUUID() uuid.UUID {
	if id, err := uuid.NewV7(); err == nil {
		return id
	}
	return uuid.New()
}

// uuidOrNull maps an empty id string onto SQL NULL for nullable uuid
// foreign keys such as crawl_jobs.api_key_id.
func uuidOrNull(id string) any {
	if id == "" {
		return nil
	}
	return id
}
