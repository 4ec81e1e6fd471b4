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

// OpenAIProvider speaks the OpenAI-compatible embeddings and chat
// completions API. It supplements the teacher, which only integrated
// Ollama; spec.md §4.3 explicitly allows multiple concrete provider
// variants.
type OpenAIProvider struct {
	baseURL       string
	apiKey        string
	embedModel    string
	generateModel string
	targetDim     int
	httpClient    *http.Client
}

// NewOpenAIFactory is the registry Factory for the OpenAI-compatible
// provider.
func NewOpenAIFactory(cfg *config.Config, model string) (Provider, error) {
	if model == "" {
		model = cfg.Suggestion.Model
	}
	if cfg.Suggestion.OpenAIKey == "" {
		return nil, fmt.Errorf("llm: openai provider requires OPENAI_API_KEY")
	}
	return &OpenAIProvider{
		baseURL:       cfg.Suggestion.OpenAIURL,
		apiKey:        cfg.Suggestion.OpenAIKey,
		embedModel:    cfg.Embeddings.Model,
		generateModel: model,
		targetDim:     cfg.Embeddings.Dimension,
		httpClient:    &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func (o *OpenAIProvider) Name() string { return "openai" }

func (o *OpenAIProvider) Dimension() int { return o.targetDim }

type openAIEmbedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type openAIEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (o *OpenAIProvider) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	reqBody, err := json.Marshal(openAIEmbedRequest{Model: o.embedModel, Input: text})
	if err != nil {
		return nil, fmt.Errorf("llm: marshal openai embed request: %w", err)
	}

	resp, err := o.do(ctx, http.MethodPost, "/embeddings", reqBody)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var parsed openAIEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("llm: decode openai embed response: %w", err)
	}
	if len(parsed.Data) == 0 {
		return nil, fmt.Errorf("llm: openai embed response had no data")
	}

	embedding := parsed.Data[0].Embedding
	if o.targetDim > 0 && o.targetDim < len(embedding) {
		embedding = applyMRL(embedding, o.targetDim)
	}

	return normalizeVector(embedding), nil
}

type openAIChatRequest struct {
	Model    string          `json:"model"`
	Messages []openAIMessage `json:"messages"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
}

func (o *OpenAIProvider) GenerateText(ctx context.Context, prompt string) (string, error) {
	reqBody, err := json.Marshal(openAIChatRequest{
		Model:    o.generateModel,
		Messages: []openAIMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("llm: marshal openai chat request: %w", err)
	}

	resp, err := o.do(ctx, http.MethodPost, "/chat/completions", reqBody)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var parsed openAIChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("llm: decode openai chat response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("llm: openai chat response had no choices")
	}

	return parsed.Choices[0].Message.Content, nil
}

func (o *OpenAIProvider) CheckConnection(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/models", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (o *OpenAIProvider) ProcessFeedback(ctx context.Context, query, suggestion, feedback string, score float64) (string, error) {
	prompt := fmt.Sprintf(
		"Original query: %s\nPrevious suggestion: %s\nUser feedback: %s\nRelevance score: %.2f\nRevise the suggestion to address the feedback.",
		query, suggestion, feedback, score)
	return o.GenerateText(ctx, prompt)
}

func (o *OpenAIProvider) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, o.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("llm: build openai request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("llm: openai request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("llm: openai returned status %d: %s", resp.StatusCode, string(respBody))
	}

	return resp, nil
}
