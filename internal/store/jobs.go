package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"sonar/internal/jobs"
	"sonar/internal/model"
)

const jobColumns = `
	id, COALESCE(api_key_id::text, ''), seed_url, domain, max_pages, include_subdomains,
	status, pages_crawled, pages_indexed, created_at, started_at,
	completed_at, COALESCE(error_message,'')`

// CreateCrawlJob inserts a new job in the pending state and fills in
// its generated id and created_at.
func (s *Store) CreateCrawlJob(ctx context.Context, job *model.CrawlJob) error {
	const q = `
		INSERT INTO crawl_jobs (
			id, api_key_id, seed_url, domain, max_pages,
			include_subdomains, status, pages_crawled, pages_indexed, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, 0, 0, now())
		RETURNING id, created_at`

	job.Status = string(jobs.StatusPending)
	return s.pool.QueryRow(ctx, q,
		newUUID(), uuidOrNull(job.APIKeyID), job.SeedURL, job.Domain, job.MaxPages,
		job.IncludeSubdomains, job.Status,
	).Scan(&job.ID, &job.CreatedAt)
}

// GetCrawlJob returns a job by id, or ErrNotFound.
func (s *Store) GetCrawlJob(ctx context.Context, id string) (*model.CrawlJob, error) {
	row := s.pool.QueryRow(ctx, `SELECT`+jobColumns+` FROM crawl_jobs WHERE id = $1`, id)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get crawl job: %w", err)
	}
	return job, nil
}

// ClaimPendingCrawlJob atomically moves the oldest pending job to
// running and returns it. SKIP LOCKED keeps concurrent workers from
// claiming the same job. Returns (nil, nil) when nothing is pending.
func (s *Store) ClaimPendingCrawlJob(ctx context.Context) (*model.CrawlJob, error) {
	const q = `
		UPDATE crawl_jobs SET status = $1, started_at = now()
		WHERE id = (
			SELECT id FROM crawl_jobs
			WHERE status = $2
			ORDER BY created_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING` + jobColumns

	row := s.pool.QueryRow(ctx, q, string(jobs.StatusRunning), string(jobs.StatusPending))
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim crawl job: %w", err)
	}
	return job, nil
}

// UpdateCrawlJobProgress persists the monotonic page counters of a
// running job.
func (s *Store) UpdateCrawlJobProgress(ctx context.Context, id string, pagesCrawled, pagesIndexed int) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE crawl_jobs
		SET pages_crawled = GREATEST(pages_crawled, $2),
			pages_indexed = GREATEST(pages_indexed, $3)
		WHERE id = $1 AND status = $4`,
		id, pagesCrawled, pagesIndexed, string(jobs.StatusRunning))
	return err
}

// CompleteCrawlJob marks a running job completed with its final
// counters. The status guard keeps terminal states immutable.
func (s *Store) CompleteCrawlJob(ctx context.Context, id string, pagesCrawled, pagesIndexed int) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE crawl_jobs
		SET status = $2, pages_crawled = GREATEST(pages_crawled, $3),
			pages_indexed = GREATEST(pages_indexed, $4), completed_at = now()
		WHERE id = $1 AND status = $5`,
		id, string(jobs.StatusCompleted), pagesCrawled, pagesIndexed, string(jobs.StatusRunning))
	return err
}

// FailCrawlJob marks a running job failed with an error message.
func (s *Store) FailCrawlJob(ctx context.Context, id, message string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE crawl_jobs
		SET status = $2, error_message = $3, completed_at = now()
		WHERE id = $1 AND status = $4`,
		id, string(jobs.StatusFailed), message, string(jobs.StatusRunning))
	return err
}

// DeleteFinishedCrawlJobs removes completed and failed jobs older than
// the cutoff so the table does not grow without bound.
func (s *Store) DeleteFinishedCrawlJobs(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM crawl_jobs
		WHERE status IN ($1, $2) AND created_at < $3`,
		string(jobs.StatusCompleted), string(jobs.StatusFailed), cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanJob(row pgx.Row) (*model.CrawlJob, error) {
	var j model.CrawlJob
	err := row.Scan(
		&j.ID, &j.APIKeyID, &j.SeedURL, &j.Domain, &j.MaxPages,
		&j.IncludeSubdomains, &j.Status, &j.PagesCrawled, &j.PagesIndexed,
		&j.CreatedAt, &j.StartedAt, &j.CompletedAt, &j.ErrorMessage,
	)
	if err != nil {
		return nil, err
	}
	return &j, nil
}
