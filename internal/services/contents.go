package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sonar/internal/metrics"
	"sonar/internal/store"
)

// summaryInputLimit caps how much page content goes into the summary
// prompt.
const summaryInputLimit = 5000

// ContentsRequest asks for the content of a batch of URLs. Misses are
// crawled and saved (not indexed) so later requests hit the cache.
type ContentsRequest struct {
	URLs             []string
	IncludeMarkdown  bool
	IncludeSummary   bool
	SummaryMaxLength int
}

// ContentResult is the per-URL outcome. Status is "success" or
// "error"; a batch never fails wholesale on per-URL errors.
type ContentResult struct {
	URL         string
	Title       string
	Content     string
	Markdown    string
	Summary     string
	Author      string
	PublishedAt *time.Time
	Status      string
	Error       string
}

// ContentsResponse carries the per-URL results plus timing.
type ContentsResponse struct {
	Results []ContentResult
	TookMs  int64
}

// GetContents serves each URL from the page cache when present,
// otherwise fetches, extracts, and saves it. Summaries are generated
// per URL on request and are best-effort.
func (s *Indexing) GetContents(ctx context.Context, req *ContentsRequest) (*ContentsResponse, error) {
	if req == nil || len(req.URLs) == 0 {
		return nil, errors.New("no urls given")
	}
	start := time.Now()

	results := make([]ContentResult, 0, len(req.URLs))
	for _, u := range req.URLs {
		results = append(results, s.contentFor(ctx, u, req))
	}

	return &ContentsResponse{
		Results: results,
		TookMs:  time.Since(start).Milliseconds(),
	}, nil
}

func (s *Indexing) contentFor(ctx context.Context, url string, req *ContentsRequest) ContentResult {
	out := ContentResult{URL: url, Status: "success"}

	page, err := s.store.GetPageByURL(ctx, url)
	switch {
	case err == nil:
		out.Title = page.Title
		out.Content = page.Content
		out.Author = page.Author
		out.PublishedAt = page.PublishedAt
		if req.IncludeMarkdown {
			out.Markdown = page.Markdown
		}

	case errors.Is(err, store.ErrNotFound):
		res := s.crawler.FetchOne(ctx, url)
		if res.Err != "" {
			return ContentResult{URL: url, Status: "error", Error: res.Err}
		}
		saved, err := s.SavePage(ctx, url, res.Doc, res.Status)
		if err != nil {
			return ContentResult{URL: url, Status: "error", Error: err.Error()}
		}
		out.Title = saved.Title
		out.Content = saved.Content
		out.Author = saved.Author
		out.PublishedAt = saved.PublishedAt
		if req.IncludeMarkdown {
			out.Markdown = saved.Markdown
		}

	default:
		return ContentResult{URL: url, Status: "error", Error: err.Error()}
	}

	if req.IncludeSummary && out.Content != "" {
		summary, err := s.summarize(ctx, out.Content, req.SummaryMaxLength)
		if err != nil {
			s.logger.Warn("summary generation failed", "url", url, "error", err)
		} else {
			out.Summary = summary
		}
	}

	return out
}

// summarize asks the LLM for a bounded summary of the content.
func (s *Indexing) summarize(ctx context.Context, content string, maxWords int) (string, error) {
	if maxWords <= 0 {
		maxWords = 200
	}
	if len(content) > summaryInputLimit {
		content = content[:summaryInputLimit]
	}

	prompt := fmt.Sprintf(`Summarize the following content in %d words or less.
Be concise and capture the key points:

%s`, maxWords, content)

	text, err := s.llm.Generate(ctx, s.llmModel, prompt)
	metrics.RecordLLMCall(s.llmModel, err == nil)
	return text, err
}
