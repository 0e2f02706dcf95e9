package http

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"sonar/internal/model"
	"sonar/internal/services"
)

const (
	maxQueryLen      = 1000
	maxNumResults    = 100
	dateLayout       = "2006-01-02"
	defaultPerSearch = 10
)

func searchHandler(c *fiber.Ctx) error {
	var reqBody SearchRequest
	if err := c.BodyParser(&reqBody); err != nil {
		return badRequestJSON(c)
	}

	query := strings.TrimSpace(reqBody.Query)
	if query == "" {
		return badRequest(c, "Missing required field 'query'")
	}
	if len(query) > maxQueryLen {
		return badRequest(c, fmt.Sprintf("Field 'query' exceeds %d characters", maxQueryLen))
	}

	numResults := defaultPerSearch
	if reqBody.NumResults != nil {
		numResults = *reqBody.NumResults
		if numResults < 1 || numResults > maxNumResults {
			return badRequest(c, fmt.Sprintf("Field 'num_results' must be between 1 and %d", maxNumResults))
		}
	}

	filters, err := parseFilters(reqBody.Filters)
	if err != nil {
		return badRequest(c, err.Error())
	}

	idx := c.Locals("indexing").(Indexer)
	res, err := idx.Search(c.Context(), &services.SearchRequest{
		Query:             query,
		NumResults:        numResults,
		IncludeContent:    reqBody.IncludeContent,
		IncludeHighlights: reqBody.IncludeHighlights,
		Filters:           filters,
		APIKeyID:          authedKeyID(c),
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Success: false,
			Code:    "SEARCH_FAILED",
			Error:   err.Error(),
		})
	}

	return c.JSON(SearchResponse{
		Query:        res.Query,
		Results:      wireResults(res.Results),
		TotalResults: res.TotalResults,
		TookMs:       res.TookMs,
	})
}

func parseFilters(f *SearchFilters) (model.SearchFilters, error) {
	var out model.SearchFilters
	if f == nil {
		return out, nil
	}
	out.Domains = f.Domains
	out.ExcludeDomains = f.ExcludeDomains
	out.Language = f.Language
	if f.StartDate != "" {
		t, err := time.Parse(dateLayout, f.StartDate)
		if err != nil {
			return out, fmt.Errorf("invalid 'start_date', expected YYYY-MM-DD")
		}
		out.StartDate = &t
	}
	if f.EndDate != "" {
		t, err := time.Parse(dateLayout, f.EndDate)
		if err != nil {
			return out, fmt.Errorf("invalid 'end_date', expected YYYY-MM-DD")
		}
		out.EndDate = &t
	}
	return out, nil
}

func wireResults(hits []services.SearchHit) []SearchResult {
	out := make([]SearchResult, 0, len(hits))
	for _, h := range hits {
		out = append(out, SearchResult{
			ID:            h.ID,
			URL:           h.URL,
			Title:         h.Title,
			Score:         h.Score,
			PublishedDate: h.PublishedAt,
			Author:        h.Author,
			Content:       h.Content,
			Highlights:    h.Highlights,
		})
	}
	return out
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
		Success: false,
		Code:    "BAD_REQUEST",
		Error:   msg,
	})
}

func badRequestJSON(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
		Success: false,
		Code:    "BAD_REQUEST_INVALID_JSON",
		Error:   "Bad request, malformed JSON",
	})
}
