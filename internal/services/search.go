package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"sonar/internal/extract"
	"sonar/internal/metrics"
	"sonar/internal/model"
)

const (
	defaultNumResults = 10
	highlightCount    = 3
	highlightWindow   = 150
)

// SearchRequest is the internal representation of a search request.
// It mirrors the HTTP payload but is decoupled from Fiber and JSON
// tags.
type SearchRequest struct {
	Query             string
	NumResults        int
	IncludeContent    bool
	IncludeHighlights bool
	Filters           model.SearchFilters
	// APIKeyID tags the query-log row; empty disables logging.
	APIKeyID string
}

// SearchHit is one ranked page. Content and Highlights are filled only
// when the request asked for them.
type SearchHit struct {
	ID          string
	URL         string
	Title       string
	Score       float64
	PublishedAt *time.Time
	Author      string
	Content     string
	Highlights  []string
}

// SearchResponse groups the hits with timing for the took_ms contract.
type SearchResponse struct {
	Query        string
	Results      []SearchHit
	TotalResults int
	TookMs       int64
}

// Search embeds the query, runs the vector search, and decorates hits
// with content and highlights on request. The query log is best-effort
// and never affects the response.
func (s *Indexing) Search(ctx context.Context, req *SearchRequest) (*SearchResponse, error) {
	if req == nil || strings.TrimSpace(req.Query) == "" {
		return nil, errors.New("empty search query")
	}
	start := time.Now()

	queryVec, err := s.embedder.EmbedQuery(ctx, req.Query)
	if err != nil {
		metrics.RecordSearch(false, 0)
		return nil, fmt.Errorf("embed query: %w", err)
	}

	k := req.NumResults
	if k <= 0 {
		k = defaultNumResults
	}

	rows, err := s.store.SearchChunks(ctx, queryVec, k, req.Filters)
	if err != nil {
		metrics.RecordSearch(false, 0)
		return nil, fmt.Errorf("vector search: %w", err)
	}

	results := make([]SearchHit, 0, len(rows))
	for _, r := range rows {
		hit := SearchHit{
			ID:          r.PageID,
			URL:         r.URL,
			Title:       r.Title,
			Score:       r.Score,
			PublishedAt: r.PublishedAt,
			Author:      r.Author,
		}
		if req.IncludeContent {
			hit.Content = r.PageText
		}
		if req.IncludeHighlights && r.PageText != "" {
			hit.Highlights = extract.Highlights(r.PageText, req.Query, highlightCount, highlightWindow)
		}
		results = append(results, hit)
	}

	tookMs := time.Since(start).Milliseconds()
	metrics.RecordSearch(true, len(results))

	if req.APIKeyID != "" {
		s.logQuery(ctx, req, len(results), tookMs)
	}

	return &SearchResponse{
		Query:        req.Query,
		Results:      results,
		TotalResults: len(results),
		TookMs:       tookMs,
	}, nil
}

func (s *Indexing) logQuery(ctx context.Context, req *SearchRequest, resultCount int, tookMs int64) {
	var filters []byte
	if !req.Filters.IsZero() {
		filters, _ = json.Marshal(req.Filters)
	}

	entry := &model.QueryLog{
		APIKeyID:     req.APIKeyID,
		Query:        req.Query,
		NumResults:   req.NumResults,
		Filters:      filters,
		ResultsCount: resultCount,
		LatencyMs:    int(tookMs),
	}
	if err := s.store.LogSearchQuery(ctx, entry); err != nil {
		s.logger.Warn("search query log failed", "error", err)
	}
}
