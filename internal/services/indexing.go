// Package services wires the crawler, extractor, embedder, and vector
// store into the operations the API exposes: semantic search, content
// fetches, similarity lookups, crawl jobs, and grounded answers.
package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/url"
	"strings"

	"sonar/internal/config"
	"sonar/internal/crawler"
	"sonar/internal/embedder"
	"sonar/internal/extract"
	"sonar/internal/model"
)

// Store is the slice of the database layer the indexing service uses.
type Store interface {
	GetPageByURL(ctx context.Context, url string) (*model.Page, error)
	UpsertPage(ctx context.Context, p *model.Page) (*model.Page, error)
	ReplacePageChunks(ctx context.Context, pageID string, chunks []model.Chunk, embeddings [][]float32) error
	SearchChunks(ctx context.Context, queryVec []float32, k int, filters model.SearchFilters) ([]model.SearchResult, error)
	FindSimilarToPage(ctx context.Context, pageID string, k int, excludeSameDomain bool) ([]model.SearchResult, error)
	UpdateCrawlJobProgress(ctx context.Context, id string, pagesCrawled, pagesIndexed int) error
	CompleteCrawlJob(ctx context.Context, id string, pagesCrawled, pagesIndexed int) error
	FailCrawlJob(ctx context.Context, id, message string) error
	LogSearchQuery(ctx context.Context, entry *model.QueryLog) error
}

// Fetcher is the slice of the crawler the service uses.
type Fetcher interface {
	FetchOne(ctx context.Context, url string) *crawler.Result
	CrawlSite(ctx context.Context, opts crawler.SiteOptions, onProgress crawler.Progress) ([]*crawler.Result, error)
}

// Embeddings produces vectors for queries and document chunks.
type Embeddings interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator runs a single-turn text generation, used for summaries and
// answers.
type Generator interface {
	Generate(ctx context.Context, model, prompt string) (string, error)
}

// Indexing orchestrates the crawl -> extract -> embed -> store
// pipeline and serves retrieval over it. All collaborators are
// injected; the service holds no global state.
type Indexing struct {
	store    Store
	crawler  Fetcher
	embedder Embeddings
	llm      Generator
	logger   *slog.Logger

	chunkSize    int
	chunkOverlap int
	llmModel     string
}

// NewIndexing constructs the service from explicit dependencies.
func NewIndexing(cfg *config.Config, st Store, cr Fetcher, em Embeddings, gen Generator, logger *slog.Logger) *Indexing {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexing{
		store:        st,
		crawler:      cr,
		embedder:     em,
		llm:          gen,
		logger:       logger,
		chunkSize:    cfg.Embedding.ChunkSize,
		chunkOverlap: cfg.Embedding.ChunkOverlap,
		llmModel:     cfg.LLM.Model,
	}
}

// SavePage persists an extracted document under its URL. Saving does
// not index; callers that want the page searchable call IndexPage too.
func (s *Indexing) SavePage(ctx context.Context, pageURL string, doc *extract.Document, statusCode int) (*model.Page, error) {
	page := &model.Page{
		URL:        pageURL,
		Domain:     domainOf(pageURL),
		StatusCode: statusCode,
	}
	if doc != nil {
		page.Title = doc.Title
		page.Description = doc.Description
		page.Content = doc.Text
		page.Markdown = doc.Markdown
		page.Author = doc.Author
		page.PublishedAt = doc.PublishedAt
		page.Language = doc.Language
		if doc.Text != "" {
			sum := sha256.Sum256([]byte(doc.Text))
			page.ContentHash = hex.EncodeToString(sum[:])
		}
	}
	return s.store.UpsertPage(ctx, page)
}

// IndexPage chunks a page's content, embeds the chunks, and atomically
// replaces the page's chunk set. Pages without content are skipped;
// that is not an error, they are just unsearchable.
func (s *Indexing) IndexPage(ctx context.Context, page *model.Page) error {
	if page == nil || strings.TrimSpace(page.Content) == "" {
		return nil
	}

	spans := embedder.ChunkText(page.Content, s.chunkSize, s.chunkOverlap)
	if len(spans) == 0 {
		return nil
	}

	texts := make([]string, len(spans))
	chunks := make([]model.Chunk, len(spans))
	for i, sp := range spans {
		texts[i] = sp.Content
		chunks[i] = model.Chunk{
			PageID:    page.ID,
			Index:     i,
			Content:   sp.Content,
			StartChar: sp.Start,
			EndChar:   sp.End,
		}
	}

	embeddings, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return err
	}

	return s.store.ReplacePageChunks(ctx, page.ID, chunks, embeddings)
}

// domainOf extracts the host part of a URL, empty when unparseable.
func domainOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Host
}
