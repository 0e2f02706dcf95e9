package http

import "time"

// ErrorResponse is the error envelope every failure uses.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Error   string `json:"error"`
}

// SearchRequest is the /v1/search payload.
type SearchRequest struct {
	Query             string         `json:"query"`
	NumResults        *int           `json:"num_results,omitempty"`
	IncludeContent    bool           `json:"include_content,omitempty"`
	IncludeHighlights bool           `json:"include_highlights,omitempty"`
	Filters           *SearchFilters `json:"filters,omitempty"`
}

// SearchFilters mirrors the service filters with wire-format dates
// (YYYY-MM-DD).
type SearchFilters struct {
	Domains        []string `json:"domains,omitempty"`
	ExcludeDomains []string `json:"exclude_domains,omitempty"`
	StartDate      string   `json:"start_date,omitempty"`
	EndDate        string   `json:"end_date,omitempty"`
	Language       string   `json:"language,omitempty"`
}

// SearchResult is one ranked hit on the wire.
type SearchResult struct {
	ID            string     `json:"id"`
	URL           string     `json:"url"`
	Title         string     `json:"title,omitempty"`
	Score         float64    `json:"score"`
	PublishedDate *time.Time `json:"published_date,omitempty"`
	Author        string     `json:"author,omitempty"`
	Content       string     `json:"content,omitempty"`
	Highlights    []string   `json:"highlights,omitempty"`
}

type SearchResponse struct {
	Query        string         `json:"query"`
	Results      []SearchResult `json:"results"`
	TotalResults int            `json:"total_results"`
	TookMs       int64          `json:"took_ms"`
}

// ContentsRequest is the /v1/contents payload.
type ContentsRequest struct {
	URLs             []string `json:"urls"`
	IncludeMarkdown  *bool    `json:"include_markdown,omitempty"`
	IncludeSummary   bool     `json:"include_summary,omitempty"`
	SummaryMaxLength int      `json:"summary_max_length,omitempty"`
}

// ContentResult is the per-URL outcome; Status is "success" or
// "error".
type ContentResult struct {
	URL           string     `json:"url"`
	Title         string     `json:"title,omitempty"`
	Content       string     `json:"content,omitempty"`
	Markdown      string     `json:"markdown,omitempty"`
	Summary       string     `json:"summary,omitempty"`
	Author        string     `json:"author,omitempty"`
	PublishedDate *time.Time `json:"published_date,omitempty"`
	Status        string     `json:"status"`
	Error         string     `json:"error,omitempty"`
}

type ContentsResponse struct {
	Results []ContentResult `json:"results"`
	TookMs  int64           `json:"took_ms"`
}

// SimilarRequest is the /v1/findsimilar payload.
type SimilarRequest struct {
	URL                 string `json:"url"`
	NumResults          *int   `json:"num_results,omitempty"`
	IncludeContent      bool   `json:"include_content,omitempty"`
	ExcludeSourceDomain *bool  `json:"exclude_source_domain,omitempty"`
}

type SimilarResponse struct {
	SourceURL string         `json:"source_url"`
	Results   []SearchResult `json:"results"`
	TookMs    int64          `json:"took_ms"`
	Error     string         `json:"error,omitempty"`
}

// CrawlRequest is the /v1/crawl payload.
type CrawlRequest struct {
	URL               string `json:"url"`
	MaxPages          *int   `json:"max_pages,omitempty"`
	IncludeSubdomains bool   `json:"include_subdomains,omitempty"`
}

// CrawlAccepted is the 202 response for a queued crawl job.
type CrawlAccepted struct {
	JobID    string `json:"job_id"`
	Status   string `json:"status"`
	SeedURL  string `json:"seed_url"`
	MaxPages int    `json:"max_pages"`
	Message  string `json:"message"`
}

// CrawlStatus is the /v1/crawl/status/:job_id response.
type CrawlStatus struct {
	JobID        string     `json:"job_id"`
	Status       string     `json:"status"`
	SeedURL      string     `json:"seed_url"`
	PagesCrawled int        `json:"pages_crawled"`
	PagesIndexed int        `json:"pages_indexed"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// AnswerRequest is the /v1/answer payload.
type AnswerRequest struct {
	Query            string `json:"query"`
	NumSources       *int   `json:"num_sources,omitempty"`
	IncludeCitations *bool  `json:"include_citations,omitempty"`
}

type Citation struct {
	URL     string `json:"url"`
	Title   string `json:"title,omitempty"`
	Snippet string `json:"snippet,omitempty"`
}

type AnswerResponse struct {
	Query     string     `json:"query"`
	Answer    string     `json:"answer"`
	Citations []Citation `json:"citations"`
	TookMs    int64      `json:"took_ms"`
}
