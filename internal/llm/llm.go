// Package llm is a minimal client for the Gemini Generative Language
// API, covering the two calls the service needs: text embedding and
// text generation.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Embedding task types understood by the API. Documents and queries
// are embedded differently so that retrieval works well.
const (
	TaskRetrievalDocument = "RETRIEVAL_DOCUMENT"
	TaskRetrievalQuery    = "RETRIEVAL_QUERY"
)

// Client talks to the Gemini REST API using key auth. Model names are
// plain identifiers such as "text-embedding-004"; the client adds the
// "models/" resource prefix itself.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// New returns a client for the given API key.
func New(apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// EmbedRequest asks for one embedding vector.
type EmbedRequest struct {
	Model string
	Text  string
	// TaskType is one of the Task* constants.
	TaskType string
	// Dimension truncates the returned vector when the model supports
	// it; zero keeps the model default.
	Dimension int
}

// embedContentRequest and friends are minimal shapes for the REST API.
type embedContentRequest struct {
	Model                string        `json:"model"`
	Content              geminiContent `json:"content"`
	TaskType             string        `json:"taskType,omitempty"`
	OutputDimensionality int           `json:"outputDimensionality,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type embedContentResponse struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
}

type generateContentRequest struct {
	Contents []geminiContent `json:"contents"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// EmbedText returns the embedding vector for a single text.
func (c *Client) EmbedText(ctx context.Context, req EmbedRequest) ([]float32, error) {
	body := embedContentRequest{
		Model:                "models/" + req.Model,
		Content:              geminiContent{Parts: []geminiPart{{Text: req.Text}}},
		TaskType:             req.TaskType,
		OutputDimensionality: req.Dimension,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/models/%s:embedContent?key=%s", c.baseURL, req.Model, url.QueryEscape(c.apiKey))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("gemini embedContent failed with status %d", resp.StatusCode)
	}

	var parsed embedContentResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	if len(parsed.Embedding.Values) == 0 {
		return nil, errors.New("gemini embedContent returned no values")
	}

	return parsed.Embedding.Values, nil
}

// Generate runs a single-turn text generation and returns the
// concatenated text of the first candidate.
func (c *Client) Generate(ctx context.Context, model, prompt string) (string, error) {
	body := generateContentRequest{
		Contents: []geminiContent{
			{Parts: []geminiPart{{Text: prompt}}},
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, model, url.QueryEscape(c.apiKey))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("gemini generateContent failed with status %d", resp.StatusCode)
	}

	var parsed generateContentResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("gemini generateContent returned no candidates")
	}

	var sb strings.Builder
	for _, part := range parsed.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String(), nil
}
