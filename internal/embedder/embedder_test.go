package embedder

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"sonar/internal/llm"
)

type fakeEmbedClient struct {
	mu        sync.Mutex
	calls     int
	failFirst int
	failText  string
	dim       int
	taskTypes []string
}

func (f *fakeEmbedClient) EmbedText(_ context.Context, req llm.EmbedRequest) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	f.taskTypes = append(f.taskTypes, req.TaskType)

	if f.calls <= f.failFirst {
		return nil, errors.New("rate limited")
	}
	if f.failText != "" && req.Text == f.failText {
		return nil, errors.New("upstream rejected text")
	}

	dim := f.dim
	if dim == 0 {
		dim = 4
	}
	vec := make([]float32, dim)
	vec[0] = float32(len(req.Text))
	return vec, nil
}

type sleepRecorder struct {
	mu    sync.Mutex
	slept []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slept = append(s.slept, d)
	return nil
}

func newTestEmbedder(client Client, cfg Config) (*Embedder, *sleepRecorder) {
	e := New(client, cfg)
	rec := &sleepRecorder{}
	e.sleep = rec.sleep
	return e, rec
}

func TestEmbedQueryRetriesThenSucceeds(t *testing.T) {
	client := &fakeEmbedClient{failFirst: 2}
	e, rec := newTestEmbedder(client, Config{Dimension: 4, MaxAttempts: 3})

	vec, err := e.EmbedQuery(context.Background(), "what is go")
	if err != nil {
		t.Fatalf("EmbedQuery: %v", err)
	}
	if len(vec) != 4 {
		t.Fatalf("expected 4 dims, got %d", len(vec))
	}
	if client.calls != 3 {
		t.Fatalf("expected 3 calls, got %d", client.calls)
	}
	if len(rec.slept) != 2 || rec.slept[0] != time.Second || rec.slept[1] != 2*time.Second {
		t.Fatalf("unexpected backoff schedule: %v", rec.slept)
	}
	for _, tt := range client.taskTypes {
		if tt != llm.TaskRetrievalQuery {
			t.Fatalf("expected query task type, got %q", tt)
		}
	}
}

func TestEmbedQueryExhaustsAttempts(t *testing.T) {
	client := &fakeEmbedClient{failFirst: 100}
	e, rec := newTestEmbedder(client, Config{Dimension: 4, MaxAttempts: 3})

	_, err := e.EmbedQuery(context.Background(), "q")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "after 3 attempts") {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.calls != 3 {
		t.Fatalf("expected 3 calls, got %d", client.calls)
	}
	if len(rec.slept) != 2 {
		t.Fatalf("expected 2 backoff sleeps, got %v", rec.slept)
	}
}

func TestEmbedDimensionMismatchNotRetried(t *testing.T) {
	client := &fakeEmbedClient{dim: 5}
	e, rec := newTestEmbedder(client, Config{Dimension: 4, MaxAttempts: 3})

	_, err := e.EmbedDocument(context.Background(), "text")
	if err == nil || !strings.Contains(err.Error(), "dimension") {
		t.Fatalf("expected dimension error, got %v", err)
	}
	if client.calls != 1 {
		t.Fatalf("wrong vector width must not be retried, got %d calls", client.calls)
	}
	if len(rec.slept) != 0 {
		t.Fatalf("expected no sleeps, got %v", rec.slept)
	}
}

func TestEmbedDocumentsKeepsOrderAndBatches(t *testing.T) {
	client := &fakeEmbedClient{}
	e, rec := newTestEmbedder(client, Config{
		Dimension:   4,
		BatchSize:   2,
		BatchDelay:  500 * time.Millisecond,
		MaxAttempts: 1,
	})

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	vecs, err := e.EmbedDocuments(context.Background(), texts)
	if err != nil {
		t.Fatalf("EmbedDocuments: %v", err)
	}
	if len(vecs) != len(texts) {
		t.Fatalf("expected %d vectors, got %d", len(texts), len(vecs))
	}
	for i, v := range vecs {
		if int(v[0]) != len(texts[i]) {
			t.Fatalf("vector %d out of order: got %v for %q", i, v[0], texts[i])
		}
	}
	if client.calls != 5 {
		t.Fatalf("expected 5 calls, got %d", client.calls)
	}
	// Three batches of two, two, one: a pause after each but the last.
	if len(rec.slept) != 2 {
		t.Fatalf("expected 2 batch pauses, got %v", rec.slept)
	}
	for _, d := range rec.slept {
		if d != 500*time.Millisecond {
			t.Fatalf("unexpected pause %v", d)
		}
	}
	for _, tt := range client.taskTypes {
		if tt != llm.TaskRetrievalDocument {
			t.Fatalf("expected document task type, got %q", tt)
		}
	}
}

func TestEmbedDocumentsFirstErrorFails(t *testing.T) {
	client := &fakeEmbedClient{failText: "bad"}
	e, _ := newTestEmbedder(client, Config{Dimension: 4, BatchSize: 10, MaxAttempts: 1})

	_, err := e.EmbedDocuments(context.Background(), []string{"ok", "bad", "fine"})
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestEmbedDocumentsEmptyInput(t *testing.T) {
	client := &fakeEmbedClient{}
	e, _ := newTestEmbedder(client, Config{Dimension: 4})

	vecs, err := e.EmbedDocuments(context.Background(), nil)
	if err != nil || vecs != nil {
		t.Fatalf("expected nil, nil, got %v, %v", vecs, err)
	}
	if client.calls != 0 {
		t.Fatalf("expected no calls, got %d", client.calls)
	}
}
