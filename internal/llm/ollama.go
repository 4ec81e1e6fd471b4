package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/codecompass/codecompass-go/pkg/config"
)

// OllamaProvider talks to a local Ollama server for both embedding and
// text generation. Connection pooling mirrors the teacher's embeddings
// client: a shared, keep-alive http.Client rather than one dialed per
// request.
type OllamaProvider struct {
	baseURL       string
	embedModel    string
	generateModel string
	dimension     string
	targetDim     int
	httpClient    *http.Client
}

// NewOllamaFactory is the registry Factory for the Ollama provider. model
// selects the generation model; the embedding model always comes from
// Config.Embeddings.Model since the two roles are independent per
// spec.md §4.3.
func NewOllamaFactory(cfg *config.Config, model string) (Provider, error) {
	if model == "" {
		model = cfg.Suggestion.Model
	}
	return &OllamaProvider{
		baseURL:       cfg.Suggestion.OllamaURL,
		embedModel:    cfg.Embeddings.Model,
		generateModel: model,
		targetDim:     cfg.Embeddings.Dimension,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				MaxConnsPerHost:     100,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

func (o *OllamaProvider) Name() string { return "ollama" }

func (o *OllamaProvider) Dimension() int { return o.targetDim }

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (o *OllamaProvider) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	reqBody, err := json.Marshal(ollamaEmbedRequest{Model: o.embedModel, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("llm: marshal ollama embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/embeddings", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("llm: build ollama embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("llm: ollama embed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("llm: ollama embed returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("llm: decode ollama embed response: %w", err)
	}

	embedding := parsed.Embedding
	if o.targetDim > 0 && o.targetDim < len(embedding) {
		embedding = applyMRL(embedding, o.targetDim)
	}

	return normalizeVector(embedding), nil
}

type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
}

func (o *OllamaProvider) GenerateText(ctx context.Context, prompt string) (string, error) {
	reqBody, err := json.Marshal(ollamaGenerateRequest{Model: o.generateModel, Prompt: prompt, Stream: false})
	if err != nil {
		return "", fmt.Errorf("llm: marshal ollama generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("llm: build ollama generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm: ollama generate request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("llm: ollama generate returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("llm: decode ollama generate response: %w", err)
	}

	return parsed.Response, nil
}

func (o *OllamaProvider) CheckConnection(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := o.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (o *OllamaProvider) ProcessFeedback(ctx context.Context, query, suggestion, feedback string, score float64) (string, error) {
	prompt := fmt.Sprintf(
		"Original query: %s\nPrevious suggestion: %s\nUser feedback: %s\nRelevance score: %.2f\nRevise the suggestion to address the feedback.",
		query, suggestion, feedback, score)
	return o.GenerateText(ctx, prompt)
}

// applyMRL truncates an embedding to targetDim, the Matryoshka
// Representation Learning truncation the teacher applied for
// nomic-embed-text. Truncation-then-renormalize is valid for MRL-trained
// models; it is not a general dimensionality-reduction technique.
func applyMRL(embedding []float32, targetDim int) []float32 {
	if targetDim > len(embedding) {
		targetDim = len(embedding)
	}
	sliced := make([]float32, targetDim)
	copy(sliced, embedding[:targetDim])
	return sliced
}
