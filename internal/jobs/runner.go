package jobs

import (
	"context"
	"log/slog"
	"time"

	"sonar/internal/config"
	"sonar/internal/model"
)

// CrawlJobExecutor runs a single claimed crawl job to completion. The
// executor owns the terminal status transition of the job it is given.
type CrawlJobExecutor interface {
	ExecuteCrawlJob(ctx context.Context, job *model.CrawlJob)
}

// JobStore is the slice of the database layer the runner needs. Claims
// are atomic on the store side so multiple runners can share a table;
// a nil job with nil error means the queue is empty.
type JobStore interface {
	ClaimPendingCrawlJob(ctx context.Context) (*model.CrawlJob, error)
	DeleteFinishedCrawlJobs(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteOldSearchQueries(ctx context.Context, cutoff time.Time) (int64, error)
}

// Runner polls the crawl_jobs table and dispatches claimed jobs to the
// executor. It encapsulates concurrency limits, polling intervals, and
// periodic retention cleanup.
type Runner struct {
	cfg      *config.Config
	store    JobStore
	executor CrawlJobExecutor
	logger   *slog.Logger
}

// NewRunner constructs a Runner with the given configuration, store,
// and crawl job executor.
func NewRunner(cfg *config.Config, st JobStore, exec CrawlJobExecutor, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{cfg: cfg, store: st, executor: exec, logger: logger}
}

// Start launches the worker loop in the current goroutine. Callers
// typically run this in its own goroutine and keep the process alive.
// Cancelling the context stops polling; in-flight jobs run on until
// they finish or time out.
func (r *Runner) Start(ctx context.Context) {
	pollInterval := time.Duration(r.cfg.Worker.PollIntervalMs) * time.Millisecond
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}

	maxJobs := r.cfg.Worker.MaxConcurrentJobs
	if maxJobs <= 0 {
		maxJobs = 2
	}

	sem := make(chan struct{}, maxJobs)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	var lastCleanup time.Time
	cleanupInterval := time.Duration(r.cfg.Retention.CleanupIntervalMinutes) * time.Minute
	if cleanupInterval <= 0 {
		cleanupInterval = time.Hour
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if r.cfg.Retention.Enabled {
			now := time.Now().UTC()
			if lastCleanup.IsZero() || now.Sub(lastCleanup) >= cleanupInterval {
				CleanupExpiredData(ctx, r.cfg, r.store, r.logger)
				lastCleanup = now
			}
		}

		// Claim as many jobs as current capacity allows. The claim is a
		// DB-side state transition, so a claimed job is never picked up
		// twice even with concurrent runners.
		for len(sem) < maxJobs {
			job, err := r.store.ClaimPendingCrawlJob(ctx)
			if err != nil {
				r.logger.Warn("claim crawl job failed", "error", err)
				break
			}
			if job == nil {
				break
			}

			sem <- struct{}{}
			go func(job *model.CrawlJob) {
				defer func() { <-sem }()
				r.executor.ExecuteCrawlJob(ctx, job)
			}(job)
		}
	}
}
