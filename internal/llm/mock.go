package llm

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/codecompass/codecompass-go/pkg/config"
)

// MockProvider generates deterministic embeddings from text hashes and
// canned text completions. It has no network dependency, so tests and
// local development can select it without a reachable LLM backend.
type MockProvider struct {
	dimension int
}

// NewMockFactory is the registry Factory for the mock provider.
func NewMockFactory(cfg *config.Config, _ string) (Provider, error) {
	return &MockProvider{dimension: cfg.Embeddings.Dimension}, nil
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) Dimension() int { return m.dimension }

// GenerateEmbedding hashes text into a deterministic, unit-normalized
// vector of Dimension() length: identical input always yields the
// identical vector, and distinct inputs yield (with overwhelming
// probability) distinct vectors.
func (m *MockProvider) GenerateEmbedding(_ context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("llm: mock provider cannot embed empty text")
	}

	hash := sha256.Sum256([]byte(text))
	vector := make([]float32, m.dimension)

	for i := 0; i < m.dimension; i++ {
		offset := (i * 4) % len(hash)
		seed := binary.BigEndian.Uint32(hash[offset:])
		seed64 := int64(seed)
		if seed64 > math.MaxInt32 {
			seed64 %= math.MaxInt32
		}
		vector[i] = float32(seed64) / float32(math.MaxInt32)
	}

	return normalizeVector(vector), nil
}

// GenerateText echoes a canned completion referencing the prompt, enough
// for tool handlers and the agent loop to exercise their parsing logic in
// tests without a real model.
func (m *MockProvider) GenerateText(_ context.Context, prompt string) (string, error) {
	return fmt.Sprintf("mock response to: %s", truncateRunes(prompt, 80)), nil
}

func (m *MockProvider) CheckConnection(_ context.Context) bool { return true }

func (m *MockProvider) ProcessFeedback(_ context.Context, _, suggestion, feedback string, _ float64) (string, error) {
	return fmt.Sprintf("%s (revised per feedback: %s)", suggestion, feedback), nil
}

func normalizeVector(v []float32) []float32 {
	var sumSquares float32
	for _, val := range v {
		sumSquares += val * val
	}
	if sumSquares == 0 {
		return v
	}
	magnitude := float32(math.Sqrt(float64(sumSquares)))
	out := make([]float32, len(v))
	for i, val := range v {
		out[i] = val / magnitude
	}
	return out
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
