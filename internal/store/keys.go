package store

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"sonar/internal/model"
)

// keyPrefixLen is how much of the raw key is stored in clear for
// identification in listings and logs.
const keyPrefixLen = 12

const keyColumns = `
	id, key_hash, key_prefix, name, quota_total, quota_used,
	rate_limit_per_minute, is_active, created_at, expires_at, last_used_at`

// CreateAPIKey mints a new key, stores its hash, and returns the raw
// key. The raw key is shown exactly once; only its SHA-256 survives.
func (s *Store) CreateAPIKey(ctx context.Context, name string, quotaTotal, ratePerMinute int) (string, *model.APIKey, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", nil, fmt.Errorf("generate key: %w", err)
	}
	raw := "sonar_" + base64.RawURLEncoding.EncodeToString(buf)

	if quotaTotal <= 0 {
		quotaTotal = 10000
	}
	if ratePerMinute <= 0 {
		ratePerMinute = 60
	}

	const q = `
		INSERT INTO api_keys (
			id, key_hash, key_prefix, name, quota_total, quota_used,
			rate_limit_per_minute, is_active, created_at
		) VALUES ($1, $2, $3, $4, $5, 0, $6, true, now())
		RETURNING` + keyColumns

	row := s.pool.QueryRow(ctx, q,
		newUUID(), hashAPIKey(raw), raw[:keyPrefixLen], name, quotaTotal, ratePerMinute)
	key, err := scanAPIKey(row)
	if err != nil {
		return "", nil, fmt.Errorf("create api key: %w", err)
	}
	return raw, key, nil
}

// GetAPIKeyByRawKey looks up an API key by its raw value.
func (s *Store) GetAPIKeyByRawKey(ctx context.Context, raw string) (*model.APIKey, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT`+keyColumns+` FROM api_keys WHERE key_hash = $1`, hashAPIKey(raw))
	key, err := scanAPIKey(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get api key: %w", err)
	}
	return key, nil
}

// TouchAPIKey records when a key was last used. Best-effort; callers
// ignore the error.
func (s *Store) TouchAPIKey(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `UPDATE api_keys SET last_used_at = now() WHERE id = $1`, id)
	return err
}

// IncrementAPIKeyQuota adds to a key's used quota.
func (s *Store) IncrementAPIKeyQuota(ctx context.Context, id string, amount int) error {
	if amount <= 0 {
		amount = 1
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET quota_used = quota_used + $2 WHERE id = $1`, id, amount)
	return err
}

// CountAPIKeys reports how many keys exist, used by first-boot
// bootstrap to decide whether to mint one.
func (s *Store) CountAPIKeys(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM api_keys`).Scan(&n)
	return n, err
}

func scanAPIKey(row pgx.Row) (*model.APIKey, error) {
	var k model.APIKey
	err := row.Scan(
		&k.ID, &k.KeyHash, &k.KeyPrefix, &k.Name, &k.QuotaTotal, &k.QuotaUsed,
		&k.RateLimitPerMinute, &k.IsActive, &k.CreatedAt, &k.ExpiresAt, &k.LastUsedAt,
	)
	if err != nil {
		return nil, err
	}
	return &k, nil
}
