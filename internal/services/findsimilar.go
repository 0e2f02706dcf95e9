package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"sonar/internal/model"
	"sonar/internal/store"
)

// SimilarRequest asks for pages semantically close to a URL.
type SimilarRequest struct {
	URL                 string
	NumResults          int
	IncludeContent      bool
	ExcludeSourceDomain bool
}

// SimilarResponse mirrors SearchResponse with the source URL attached.
// Error is set when the source page had to be crawled and the crawl
// failed; Results is then empty.
type SimilarResponse struct {
	SourceURL string
	Results   []SearchHit
	TookMs    int64
	Error     string
}

// FindSimilar looks up the source page, crawling and indexing it first
// when it is not yet known, then ranks other pages by similarity to
// its representative chunk.
func (s *Indexing) FindSimilar(ctx context.Context, req *SimilarRequest) (*SimilarResponse, error) {
	if req == nil || strings.TrimSpace(req.URL) == "" {
		return nil, errors.New("empty source url")
	}
	start := time.Now()

	page, err := s.store.GetPageByURL(ctx, req.URL)
	if errors.Is(err, store.ErrNotFound) {
		res := s.crawler.FetchOne(ctx, req.URL)
		if res.Err != "" {
			// Never expose a partially indexed source; report the crawl
			// failure with an empty result set.
			return &SimilarResponse{SourceURL: req.URL, Error: res.Err}, nil
		}
		page, err = s.SavePage(ctx, req.URL, res.Doc, res.Status)
		if err != nil {
			return nil, fmt.Errorf("save source page: %w", err)
		}
		if err := s.IndexPage(ctx, page); err != nil {
			return nil, fmt.Errorf("index source page: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("lookup source page: %w", err)
	}

	k := req.NumResults
	if k <= 0 {
		k = defaultNumResults
	}

	rows, err := s.store.FindSimilarToPage(ctx, page.ID, k, req.ExcludeSourceDomain)
	if errors.Is(err, store.ErrNotFound) {
		// Source page exists but has no embedded chunks (empty content).
		rows = nil
	} else if err != nil {
		return nil, fmt.Errorf("find similar: %w", err)
	}

	return &SimilarResponse{
		SourceURL: req.URL,
		Results:   hitsFromRows(rows, req.IncludeContent),
		TookMs:    time.Since(start).Milliseconds(),
	}, nil
}

func hitsFromRows(rows []model.SearchResult, includeContent bool) []SearchHit {
	hits := make([]SearchHit, 0, len(rows))
	for _, r := range rows {
		hit := SearchHit{
			ID:          r.PageID,
			URL:         r.URL,
			Title:       r.Title,
			Score:       r.Score,
			PublishedAt: r.PublishedAt,
			Author:      r.Author,
		}
		if includeContent {
			hit.Content = r.PageText
		}
		hits = append(hits, hit)
	}
	return hits
}
