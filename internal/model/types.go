package model

import "time"

// Page is a crawled web page with its extracted content. One row per
// unique URL; recrawls update the row in place.
type Page struct {
	ID          string     `json:"id"`
	URL         string     `json:"url"`
	Domain      string     `json:"domain"`
	Title       string     `json:"title,omitempty"`
	Description string     `json:"description,omitempty"`
	Content     string     `json:"content,omitempty"`
	Markdown    string     `json:"markdown,omitempty"`
	Author      string     `json:"author,omitempty"`
	PublishedAt *time.Time `json:"published_date,omitempty"`
	Language    string     `json:"language,omitempty"`
	ContentHash string     `json:"content_hash,omitempty"`
	StatusCode  int        `json:"status_code,omitempty"`
	CrawledAt   time.Time  `json:"crawled_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Chunk is a stored slice of a page's content together with its
// embedding. (PageID, Index) is unique and dense per page.
type Chunk struct {
	ID        string
	PageID    string
	Index     int
	Content   string
	Embedding []float32
	StartChar int
	EndChar   int
	CreatedAt time.Time
}

// CrawlJob tracks a site crawl request through its lifecycle
// (pending -> running -> completed|failed).
type CrawlJob struct {
	ID                string     `json:"job_id"`
	APIKeyID          string     `json:"-"`
	SeedURL           string     `json:"seed_url"`
	Domain            string     `json:"domain"`
	MaxPages          int        `json:"max_pages"`
	IncludeSubdomains bool       `json:"include_subdomains"`
	Status            string     `json:"status"`
	PagesCrawled      int        `json:"pages_crawled"`
	PagesIndexed      int        `json:"pages_indexed"`
	CreatedAt         time.Time  `json:"created_at"`
	StartedAt         *time.Time `json:"started_at,omitempty"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	ErrorMessage      string     `json:"error_message,omitempty"`
}

// SearchFilters restricts a vector search. Empty fields mean no
// restriction.
type SearchFilters struct {
	Domains        []string   `json:"domains,omitempty"`
	ExcludeDomains []string   `json:"exclude_domains,omitempty"`
	StartDate      *time.Time `json:"start_date,omitempty"`
	EndDate        *time.Time `json:"end_date,omitempty"`
	Language       string     `json:"language,omitempty"`
}

// IsZero reports whether no filter is set.
func (f SearchFilters) IsZero() bool {
	return len(f.Domains) == 0 && len(f.ExcludeDomains) == 0 &&
		f.StartDate == nil && f.EndDate == nil && f.Language == ""
}

// SearchResult is one row returned by the vector store: the
// best-scoring chunk of a page joined with page-level fields.
type SearchResult struct {
	ChunkID     string
	PageID      string
	URL         string
	Title       string
	Domain      string
	Author      string
	PublishedAt *time.Time
	PageText    string
	ChunkText   string
	Score       float64
}

// APIKey is an issued credential with quota and rate limit settings.
// Only the SHA-256 hash of the raw key is stored.
type APIKey struct {
	ID                 string
	KeyHash            string
	KeyPrefix          string
	Name               string
	QuotaTotal         int
	QuotaUsed          int
	RateLimitPerMinute int
	IsActive           bool
	CreatedAt          time.Time
	ExpiresAt          *time.Time
	LastUsedAt         *time.Time
}

// QueryLog is an analytics row recorded after each search. Logging is
// best-effort and never blocks the search response.
type QueryLog struct {
	APIKeyID     string
	Query        string
	NumResults   int
	Filters      []byte
	ResultsCount int
	LatencyMs    int
}
