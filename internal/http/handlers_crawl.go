package http

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"

	"sonar/internal/model"
	"sonar/internal/store"
)

const (
	defaultCrawlPages = 100
	maxCrawlPages     = 1000
)

func crawlHandler(c *fiber.Ctx) error {
	var reqBody CrawlRequest
	if err := c.BodyParser(&reqBody); err != nil {
		return badRequestJSON(c)
	}

	seed := strings.TrimSpace(reqBody.URL)
	if seed == "" {
		return badRequest(c, "Missing required field 'url'")
	}
	parsed, err := url.Parse(seed)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return badRequest(c, "Field 'url' must be an absolute http(s) URL")
	}

	maxPages := defaultCrawlPages
	if reqBody.MaxPages != nil {
		maxPages = *reqBody.MaxPages
		if maxPages < 1 || maxPages > maxCrawlPages {
			return badRequest(c, fmt.Sprintf("Field 'max_pages' must be between 1 and %d", maxCrawlPages))
		}
	}

	job := &model.CrawlJob{
		APIKeyID:          authedKeyID(c),
		SeedURL:           seed,
		Domain:            parsed.Hostname(),
		MaxPages:          maxPages,
		IncludeSubdomains: reqBody.IncludeSubdomains,
	}

	backend := c.Locals("backend").(Backend)
	if err := backend.CreateCrawlJob(c.Context(), job); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Success: false,
			Code:    "CRAWL_ENQUEUE_FAILED",
			Error:   err.Error(),
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(CrawlAccepted{
		JobID:    job.ID,
		Status:   job.Status,
		SeedURL:  job.SeedURL,
		MaxPages: job.MaxPages,
		Message:  "Crawl job queued; poll /v1/crawl/status/" + job.ID,
	})
}

func crawlStatusHandler(c *fiber.Ctx) error {
	jobID := c.Params("job_id")

	backend := c.Locals("backend").(Backend)
	job, err := backend.GetCrawlJob(c.Context(), jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
				Success: false,
				Code:    "JOB_NOT_FOUND",
				Error:   "No crawl job with that id",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Success: false,
			Code:    "INTERNAL_ERROR",
			Error:   err.Error(),
		})
	}

	// Jobs are visible only to the key that created them.
	if keyID := authedKeyID(c); keyID != "" && job.APIKeyID != "" && job.APIKeyID != keyID {
		return c.Status(fiber.StatusForbidden).JSON(ErrorResponse{
			Success: false,
			Code:    "FORBIDDEN",
			Error:   "Crawl job belongs to a different API key",
		})
	}

	return c.JSON(CrawlStatus{
		JobID:        job.ID,
		Status:       job.Status,
		SeedURL:      job.SeedURL,
		PagesCrawled: job.PagesCrawled,
		PagesIndexed: job.PagesIndexed,
		CreatedAt:    job.CreatedAt,
		StartedAt:    job.StartedAt,
		CompletedAt:  job.CompletedAt,
		ErrorMessage: job.ErrorMessage,
	})
}
