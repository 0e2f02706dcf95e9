package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"sonar/internal/config"
	"sonar/internal/metrics"
)

const (
	defaultNumSources = 5
	// answerSourceLimit caps how much of each source page goes into the
	// answer prompt.
	answerSourceLimit  = 3000
	citationSnippetLen = 200
)

// Searcher is the slice of the indexing service the answerer needs.
type Searcher interface {
	Search(ctx context.Context, req *SearchRequest) (*SearchResponse, error)
}

// AnswerRequest asks for a grounded answer to a natural question.
type AnswerRequest struct {
	Query            string
	NumSources       int
	IncludeCitations bool
	APIKeyID         string
}

// Citation points back at a source page used for the answer.
type Citation struct {
	URL     string
	Title   string
	Snippet string
}

// AnswerResponse is the generated answer with its citations.
type AnswerResponse struct {
	Query     string
	Answer    string
	Citations []Citation
	TookMs    int64
}

// Answerer composes retrieval with generation: rewrite the question
// into a search query, search the index, and answer from the sources.
type Answerer struct {
	search       Searcher
	llm          Generator
	logger       *slog.Logger
	model        string
	rewriteModel string
}

// NewAnswerer constructs an Answerer on top of the indexing service.
func NewAnswerer(cfg *config.Config, search Searcher, gen Generator, logger *slog.Logger) *Answerer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Answerer{
		search:       search,
		llm:          gen,
		logger:       logger,
		model:        cfg.LLM.Model,
		rewriteModel: cfg.LLM.RewriteModel,
	}
}

// Answer runs the rewrite -> search -> generate pipeline. The rewrite
// step is best-effort; when it fails or produces garbage the raw query
// is searched instead.
func (a *Answerer) Answer(ctx context.Context, req *AnswerRequest) (*AnswerResponse, error) {
	if req == nil || strings.TrimSpace(req.Query) == "" {
		return nil, errors.New("empty question")
	}
	start := time.Now()

	query := a.rewriteQuery(ctx, req.Query)

	numSources := req.NumSources
	if numSources <= 0 {
		numSources = defaultNumSources
	}

	searchRes, err := a.search.Search(ctx, &SearchRequest{
		Query:             query,
		NumResults:        numSources,
		IncludeContent:    true,
		IncludeHighlights: true,
		APIKeyID:          req.APIKeyID,
	})
	if err != nil {
		return nil, fmt.Errorf("source search: %w", err)
	}

	var (
		contextParts []string
		citations    []Citation
	)
	for i, hit := range searchRes.Results {
		if hit.Content == "" {
			continue
		}
		content := truncate(hit.Content, answerSourceLimit)
		title := hit.Title
		if title == "" {
			title = "Unknown"
		}
		contextParts = append(contextParts, fmt.Sprintf("[Source %d]: %s\n%s", i+1, title, content))

		if req.IncludeCitations {
			snippet := truncate(hit.Content, citationSnippetLen)
			if len(hit.Highlights) > 0 {
				snippet = hit.Highlights[0]
			}
			citations = append(citations, Citation{URL: hit.URL, Title: hit.Title, Snippet: snippet})
		}
	}

	sources := "No relevant sources were found."
	if len(contextParts) > 0 {
		sources = strings.Join(contextParts, "\n\n")
	}

	prompt := fmt.Sprintf(`Answer this question: %s

I have gathered the following web sources:
%s

Instructions:
1. First, try to answer using the sources above if they contain relevant information
2. If the sources DON'T contain the answer or are irrelevant to the question, use your own knowledge to provide an accurate answer
3. Be transparent: if you're using your own knowledge instead of sources, say "Based on my knowledge..."
4. If using sources, cite them (e.g., "According to Source 1...")
5. Provide a comprehensive, well-structured answer
6. For factual questions (capitals, populations, dates, etc.), prioritize accuracy over source citation

Answer:`, req.Query, sources)

	answer, err := a.llm.Generate(ctx, a.model, prompt)
	metrics.RecordLLMCall(a.model, err == nil)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	return &AnswerResponse{
		Query:     req.Query,
		Answer:    answer,
		Citations: citations,
		TookMs:    time.Since(start).Milliseconds(),
	}, nil
}

// rewriteQuery turns a question into a keyword search query so vector
// retrieval is not thrown off by question phrasing. Any failure falls
// back to the raw question.
func (a *Answerer) rewriteQuery(ctx context.Context, question string) string {
	prompt := fmt.Sprintf(`You are a search query optimizer. Convert the user's question into an optimal web search query.

Rules:
1. Replace pronouns with specific entities
2. Remove question words (what, how, why, when)
3. Add terms that clarify intent (geography, economy, history, etc.)

Examples:
- "What is the capital of Japan?" -> "Tokyo Japan capital city"
- "What is the population of Tokyo?" -> "Tokyo population demographics"
- "Who is the CEO of Apple?" -> "Tim Cook Apple CEO"

Question: %s

Search query (output ONLY the optimized search query, nothing else):`, question)

	out, err := a.llm.Generate(ctx, a.rewriteModel, prompt)
	metrics.RecordLLMCall(a.rewriteModel, err == nil)
	if err != nil {
		a.logger.Debug("query rewrite failed, using raw query", "error", err)
		return question
	}

	out = strings.Trim(strings.TrimSpace(out), `"'`)
	if len(out) < 3 {
		return question
	}
	return out
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
