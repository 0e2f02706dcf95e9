// Package embedder produces embedding vectors for document chunks and
// search queries, batching and retrying around the Gemini API.
package embedder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sonar/internal/llm"
	"sonar/internal/metrics"
)

const (
	initialBackoff = time.Second
	maxBackoff     = 10 * time.Second
)

// Client is the slice of the Gemini client the embedder needs.
type Client interface {
	EmbedText(ctx context.Context, req llm.EmbedRequest) ([]float32, error)
}

// Config controls model choice, batching, and retries.
type Config struct {
	Model       string
	Dimension   int
	BatchSize   int
	BatchDelay  time.Duration
	MaxAttempts int
}

// Embedder embeds texts with bounded concurrency. Queries and
// documents use different task types so retrieval quality holds up.
type Embedder struct {
	client Client
	cfg    Config

	sleep func(ctx context.Context, d time.Duration) error
}

// New returns an embedder with config gaps filled by defaults.
func New(client Client, cfg Config) *Embedder {
	if cfg.Dimension <= 0 {
		cfg.Dimension = 768
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.BatchDelay <= 0 {
		cfg.BatchDelay = 500 * time.Millisecond
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	return &Embedder{client: client, cfg: cfg, sleep: sleepCtx}
}

// Dimension returns the configured vector width.
func (e *Embedder) Dimension() int { return e.cfg.Dimension }

// EmbedQuery embeds a search query.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.embed(ctx, text, llm.TaskRetrievalQuery)
}

// EmbedDocument embeds a single document chunk.
func (e *Embedder) EmbedDocument(ctx context.Context, text string) ([]float32, error) {
	return e.embed(ctx, text, llm.TaskRetrievalDocument)
}

// EmbedDocuments embeds all texts, preserving input order. Texts are
// processed in batches of BatchSize concurrent requests with a pause
// between batches so the API quota is not burned in spikes. The first
// failed text fails the whole call.
func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, len(texts))
	for base := 0; base < len(texts); base += e.cfg.BatchSize {
		end := base + e.cfg.BatchSize
		if end > len(texts) {
			end = len(texts)
		}

		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			firstErr error
		)
		for i := base; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				vec, err := e.embed(ctx, texts[i], llm.TaskRetrievalDocument)
				if err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = fmt.Errorf("text %d: %w", i, err)
					}
					mu.Unlock()
					return
				}
				out[i] = vec
			}(i)
		}
		wg.Wait()
		if firstErr != nil {
			return nil, firstErr
		}

		if end < len(texts) {
			if err := e.sleep(ctx, e.cfg.BatchDelay); err != nil {
				return nil, err
			}
		}
	}

	return out, nil
}

// embed calls the API with exponential backoff. A vector of the wrong
// width is a permanent failure and is not retried.
func (e *Embedder) embed(ctx context.Context, text, taskType string) ([]float32, error) {
	var lastErr error
	backoff := initialBackoff
	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		vec, err := e.client.EmbedText(ctx, llm.EmbedRequest{
			Model:     e.cfg.Model,
			Text:      text,
			TaskType:  taskType,
			Dimension: e.cfg.Dimension,
		})
		metrics.RecordEmbedCall(taskType, err == nil)
		if err == nil {
			if len(vec) != e.cfg.Dimension {
				return nil, fmt.Errorf("embedding has dimension %d, want %d", len(vec), e.cfg.Dimension)
			}
			return vec, nil
		}

		lastErr = err
		if attempt == e.cfg.MaxAttempts {
			break
		}
		if err := e.sleep(ctx, backoff); err != nil {
			return nil, err
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
	return nil, fmt.Errorf("embedding failed after %d attempts: %w", e.cfg.MaxAttempts, lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
