package store

import (
	"context"
	"time"

	"github.com/sqlc-dev/pqtype"

	"sonar/internal/model"
)

// LogSearchQuery appends an analytics row for a served search. Filters
// arrive pre-marshalled as JSON; nil means no filters were applied.
// Callers treat failures as non-fatal.
func (s *Store) LogSearchQuery(ctx context.Context, entry *model.QueryLog) error {
	var filters pqtype.NullRawMessage
	if len(entry.Filters) > 0 {
		filters = pqtype.NullRawMessage{RawMessage: entry.Filters, Valid: true}
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO search_queries (
			id, api_key_id, query, num_results, filters,
			results_count, latency_ms, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, now())`,
		newUUID(), uuidOrNull(entry.APIKeyID), entry.Query, entry.NumResults,
		filters, entry.ResultsCount, entry.LatencyMs)
	return err
}

// DeleteOldSearchQueries removes query-log rows older than the cutoff.
func (s *Store) DeleteOldSearchQueries(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM search_queries WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
