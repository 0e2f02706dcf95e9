package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"sonar/internal/config"
	"sonar/internal/model"
	"sonar/internal/services"
	"sonar/internal/store"
)

// fakeBackend implements Backend in memory.
type fakeBackend struct {
	keys       map[string]*model.APIKey // raw key -> key
	jobs       map[string]*model.CrawlJob
	quotaAdded map[string]int
	touched    map[string]int
	createErr  error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		keys:       map[string]*model.APIKey{},
		jobs:       map[string]*model.CrawlJob{},
		quotaAdded: map[string]int{},
		touched:    map[string]int{},
	}
}

func (f *fakeBackend) GetAPIKeyByRawKey(ctx context.Context, raw string) (*model.APIKey, error) {
	if k, ok := f.keys[raw]; ok {
		return k, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeBackend) TouchAPIKey(ctx context.Context, id string) error {
	f.touched[id]++
	return nil
}

func (f *fakeBackend) IncrementAPIKeyQuota(ctx context.Context, id string, amount int) error {
	f.quotaAdded[id] += amount
	return nil
}

func (f *fakeBackend) CreateCrawlJob(ctx context.Context, job *model.CrawlJob) error {
	if f.createErr != nil {
		return f.createErr
	}
	job.ID = "job-1"
	job.Status = "pending"
	job.CreatedAt = time.Now().UTC()
	f.jobs[job.ID] = job
	return nil
}

func (f *fakeBackend) GetCrawlJob(ctx context.Context, id string) (*model.CrawlJob, error) {
	if j, ok := f.jobs[id]; ok {
		return j, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeBackend) Ping(ctx context.Context) error { return nil }

// fakeIndexer records the request it got and replies with a canned
// response.
type fakeIndexer struct {
	searchReq   *services.SearchRequest
	searchRes   *services.SearchResponse
	contentsReq *services.ContentsRequest
	similarReq  *services.SimilarRequest
}

func (f *fakeIndexer) Search(ctx context.Context, req *services.SearchRequest) (*services.SearchResponse, error) {
	f.searchReq = req
	if f.searchRes != nil {
		return f.searchRes, nil
	}
	return &services.SearchResponse{Query: req.Query}, nil
}

func (f *fakeIndexer) GetContents(ctx context.Context, req *services.ContentsRequest) (*services.ContentsResponse, error) {
	f.contentsReq = req
	results := make([]services.ContentResult, len(req.URLs))
	for i, u := range req.URLs {
		results[i] = services.ContentResult{URL: u, Status: "success"}
	}
	return &services.ContentsResponse{Results: results}, nil
}

func (f *fakeIndexer) FindSimilar(ctx context.Context, req *services.SimilarRequest) (*services.SimilarResponse, error) {
	f.similarReq = req
	return &services.SimilarResponse{SourceURL: req.URL}, nil
}

type fakeAnswering struct {
	req *services.AnswerRequest
}

func (f *fakeAnswering) Answer(ctx context.Context, req *services.AnswerRequest) (*services.AnswerResponse, error) {
	f.req = req
	return &services.AnswerResponse{Query: req.Query, Answer: "an answer"}, nil
}

func newTestServer(authEnabled bool) (*Server, *fakeBackend, *fakeIndexer, *fakeAnswering) {
	cfg := &config.Config{}
	cfg.Auth.Enabled = authEnabled
	backend := newFakeBackend()
	idx := &fakeIndexer{}
	ans := &fakeAnswering{}
	return NewServer(cfg, backend, idx, ans, nil), backend, idx, ans
}

func postJSON(t *testing.T, s *Server, path string, body any, header map[string]string) *http.Response {
	t.Helper()
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(buf))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := s.app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal %q: %v", raw, err)
	}
	return out
}

func TestSearchHandlerValidation(t *testing.T) {
	s, _, _, _ := newTestServer(false)

	cases := []struct {
		name string
		body any
	}{
		{"missing query", SearchRequest{}},
		{"blank query", SearchRequest{Query: "   "}},
		{"num_results too high", SearchRequest{Query: "x", NumResults: intPtr(101)}},
		{"num_results zero", SearchRequest{Query: "x", NumResults: intPtr(0)}},
		{"bad date", SearchRequest{Query: "x", Filters: &SearchFilters{StartDate: "01/02/2026"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := postJSON(t, s, "/v1/search", tc.body, nil)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", resp.StatusCode)
			}
			env := decodeBody[ErrorResponse](t, resp)
			if env.Success || env.Error == "" {
				t.Fatalf("bad envelope: %+v", env)
			}
		})
	}
}

func TestSearchHandlerDefaultsAndFilters(t *testing.T) {
	s, _, idx, _ := newTestServer(false)

	resp := postJSON(t, s, "/v1/search", SearchRequest{
		Query:          "golang pgvector",
		IncludeContent: true,
		Filters:        &SearchFilters{Domains: []string{"go.dev"}, StartDate: "2026-01-15"},
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	if idx.searchReq.NumResults != 10 {
		t.Fatalf("expected default num_results 10, got %d", idx.searchReq.NumResults)
	}
	if !idx.searchReq.IncludeContent {
		t.Fatal("include_content not propagated")
	}
	if idx.searchReq.Filters.StartDate == nil ||
		!idx.searchReq.Filters.StartDate.Equal(time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("start_date not parsed: %+v", idx.searchReq.Filters.StartDate)
	}

	body := decodeBody[SearchResponse](t, resp)
	if body.Query != "golang pgvector" {
		t.Fatalf("unexpected echo: %q", body.Query)
	}
	if body.Results == nil {
		t.Fatal("results must be [] not null")
	}
}

func TestContentsHandlerValidation(t *testing.T) {
	s, _, idx, _ := newTestServer(false)

	resp := postJSON(t, s, "/v1/contents", ContentsRequest{}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty urls, got %d", resp.StatusCode)
	}

	urls := make([]string, 11)
	for i := range urls {
		urls[i] = "https://a.test/"
	}
	resp = postJSON(t, s, "/v1/contents", ContentsRequest{URLs: urls}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for 11 urls, got %d", resp.StatusCode)
	}

	resp = postJSON(t, s, "/v1/contents", ContentsRequest{URLs: []string{"https://a.test/"}}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if !idx.contentsReq.IncludeMarkdown {
		t.Fatal("include_markdown must default to true")
	}
}

func TestFindSimilarHandlerDefaults(t *testing.T) {
	s, _, idx, _ := newTestServer(false)

	resp := postJSON(t, s, "/v1/findsimilar", SimilarRequest{URL: "https://a.test/post"}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if !idx.similarReq.ExcludeSourceDomain {
		t.Fatal("exclude_source_domain must default to true")
	}
	if idx.similarReq.NumResults != 10 {
		t.Fatalf("expected default num_results 10, got %d", idx.similarReq.NumResults)
	}
}

func TestCrawlHandlerQueuesJob(t *testing.T) {
	s, backend, _, _ := newTestServer(false)

	resp := postJSON(t, s, "/v1/crawl", CrawlRequest{URL: "https://docs.a.test/start"}, nil)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	body := decodeBody[CrawlAccepted](t, resp)
	if body.JobID == "" || body.Status != "pending" {
		t.Fatalf("unexpected accepted body: %+v", body)
	}
	if body.MaxPages != 100 {
		t.Fatalf("expected default max_pages 100, got %d", body.MaxPages)
	}
	job := backend.jobs[body.JobID]
	if job.Domain != "docs.a.test" {
		t.Fatalf("expected domain from seed, got %q", job.Domain)
	}
}

func TestCrawlHandlerRejectsBadSeeds(t *testing.T) {
	s, _, _, _ := newTestServer(false)

	for _, u := range []string{"", "ftp://a.test/", "not a url", "/relative"} {
		resp := postJSON(t, s, "/v1/crawl", CrawlRequest{URL: u}, nil)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("seed %q: expected 400, got %d", u, resp.StatusCode)
		}
	}

	resp := postJSON(t, s, "/v1/crawl", CrawlRequest{URL: "https://a.test/", MaxPages: intPtr(1001)}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for max_pages 1001, got %d", resp.StatusCode)
	}
}

func TestCrawlStatusHandler(t *testing.T) {
	s, backend, _, _ := newTestServer(false)
	started := time.Now().UTC()
	backend.jobs["job-9"] = &model.CrawlJob{
		ID: "job-9", SeedURL: "https://a.test/", Status: "running",
		PagesCrawled: 4, PagesIndexed: 3, StartedAt: &started,
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/crawl/status/job-9", nil)
	resp, err := s.app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := decodeBody[CrawlStatus](t, resp)
	if body.Status != "running" || body.PagesCrawled != 4 || body.PagesIndexed != 3 {
		t.Fatalf("unexpected status body: %+v", body)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/crawl/status/nope", nil)
	resp, err = s.app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown job, got %d", resp.StatusCode)
	}
}

func TestAnswerHandler(t *testing.T) {
	s, _, _, ans := newTestServer(false)

	resp := postJSON(t, s, "/v1/answer", AnswerRequest{Query: "what is pgvector"}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ans.req.NumSources != 5 {
		t.Fatalf("expected default num_sources 5, got %d", ans.req.NumSources)
	}
	if !ans.req.IncludeCitations {
		t.Fatal("include_citations must default to true")
	}
	body := decodeBody[AnswerResponse](t, resp)
	if body.Answer != "an answer" {
		t.Fatalf("unexpected answer: %q", body.Answer)
	}
	if body.Citations == nil {
		t.Fatal("citations must be [] not null")
	}
}

func TestHealthzShallow(t *testing.T) {
	s, _, _, _ := newTestServer(false)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	resp, err := s.app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func intPtr(v int) *int { return &v }
