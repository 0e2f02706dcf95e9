package services

import (
	"context"

	"sonar/internal/crawler"
	"sonar/internal/jobs"
	"sonar/internal/metrics"
	"sonar/internal/model"
)

// ExecuteCrawlJob drives a claimed crawl job: walk the site, save every
// successful page, index what has content. Per-page failures are
// logged and counted but never fail the job; only a walker or store
// failure does. The job arrives already in the running state.
func (s *Indexing) ExecuteCrawlJob(ctx context.Context, job *model.CrawlJob) {
	logger := s.logger.With("job_id", job.ID, "seed_url", job.SeedURL)
	logger.Info("crawl job started", "max_pages", job.MaxPages)

	onProgress := func(completed, total int, last *crawler.Result) {
		job.PagesCrawled = completed
		if last != nil && !last.OK() {
			logger.Debug("page fetch failed", "url", last.URL, "error", last.Err)
		}
		if err := s.store.UpdateCrawlJobProgress(ctx, job.ID, job.PagesCrawled, job.PagesIndexed); err != nil {
			logger.Warn("progress update failed", "error", err)
		}
	}

	results, err := s.crawler.CrawlSite(ctx, crawler.SiteOptions{
		SeedURL:           job.SeedURL,
		MaxPages:          job.MaxPages,
		IncludeSubdomains: job.IncludeSubdomains,
	}, onProgress)
	if err != nil {
		logger.Error("crawl job failed", "error", err)
		if ferr := s.store.FailCrawlJob(ctx, job.ID, err.Error()); ferr != nil {
			logger.Error("marking job failed failed", "error", ferr)
		}
		metrics.RecordCrawlJob(string(jobs.StatusFailed), len(results), job.PagesIndexed)
		return
	}

	job.PagesCrawled = len(results)
	indexed := 0
	for _, res := range results {
		if !res.OK() {
			continue
		}

		page, err := s.SavePage(ctx, res.URL, res.Doc, res.Status)
		if err != nil {
			logger.Error("crawl job aborted, page save failed", "url", res.URL, "error", err)
			if ferr := s.store.FailCrawlJob(ctx, job.ID, err.Error()); ferr != nil {
				logger.Error("marking job failed failed", "error", ferr)
			}
			metrics.RecordCrawlJob(string(jobs.StatusFailed), job.PagesCrawled, indexed)
			return
		}
		if page.Content == "" {
			continue
		}

		if err := s.IndexPage(ctx, page); err != nil {
			logger.Warn("page index failed, continuing", "url", res.URL, "error", err)
			continue
		}

		indexed++
		job.PagesIndexed = indexed
		if err := s.store.UpdateCrawlJobProgress(ctx, job.ID, job.PagesCrawled, job.PagesIndexed); err != nil {
			logger.Warn("progress update failed", "error", err)
		}
	}

	if err := s.store.CompleteCrawlJob(ctx, job.ID, job.PagesCrawled, job.PagesIndexed); err != nil {
		logger.Error("marking job completed failed", "error", err)
		return
	}

	metrics.RecordCrawlJob(string(jobs.StatusCompleted), job.PagesCrawled, job.PagesIndexed)
	logger.Info("crawl job completed",
		"pages_crawled", job.PagesCrawled, "pages_indexed", job.PagesIndexed)
}
