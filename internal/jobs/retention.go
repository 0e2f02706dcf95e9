package jobs

import (
	"context"
	"log/slog"
	"time"

	"sonar/internal/config"
	"sonar/internal/metrics"
)

// RetentionStats captures the number of records deleted by TTL cleanup.
type RetentionStats struct {
	JobsDeleted    int64 `json:"jobsDeleted"`
	QueriesDeleted int64 `json:"queriesDeleted"`
}

// CleanupExpiredData deletes finished crawl jobs and old query-log
// rows based on retention settings so that the database does not grow
// without bound. Pages and chunks are never expired; they are the
// index itself.
func CleanupExpiredData(ctx context.Context, cfg *config.Config, st JobStore, logger *slog.Logger) RetentionStats {
	now := time.Now().UTC()
	var stats RetentionStats

	if cfg.Retention.JobsDays > 0 {
		cutoff := now.AddDate(0, 0, -cfg.Retention.JobsDays)
		n, err := st.DeleteFinishedCrawlJobs(ctx, cutoff)
		if err != nil {
			logger.Warn("retention cleanup of crawl jobs failed", "error", err)
		} else if n > 0 {
			stats.JobsDeleted = n
			metrics.RecordRetentionJobs(n)
		}
	}

	if cfg.Retention.QueryLogDays > 0 {
		cutoff := now.AddDate(0, 0, -cfg.Retention.QueryLogDays)
		n, err := st.DeleteOldSearchQueries(ctx, cutoff)
		if err != nil {
			logger.Warn("retention cleanup of search queries failed", "error", err)
		} else if n > 0 {
			stats.QueriesDeleted = n
			metrics.RecordRetentionQueries(n)
		}
	}

	return stats
}
