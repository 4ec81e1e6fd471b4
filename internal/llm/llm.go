// Package llm provides pluggable text-embedding and text-generation
// providers behind a small capability interface, selected at runtime by
// Config rather than compiled in as a single hardcoded client.
package llm

import (
	"context"
	"errors"
)

// ErrFeedbackNotSupported is returned by providers that do not implement
// ProcessFeedback.
var ErrFeedbackNotSupported = errors.New("llm: provider does not support feedback processing")

// Provider is the capability set spec.md assigns to LLMProvider:
// embedding generation, text generation, a connection check, and optional
// feedback processing. A single concrete Provider may serve as both the
// embedding provider and the suggestion provider, or the two roles may be
// filled by different Provider instances — Config selects each
// independently.
type Provider interface {
	// Name is the provider's registry key, e.g. "ollama", "openai", "mock".
	Name() string

	// GenerateEmbedding returns a fixed-dimension vector for text. The
	// returned vector's length always equals Dimension().
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)

	// GenerateText returns a completion for prompt.
	GenerateText(ctx context.Context, prompt string) (string, error)

	// CheckConnection reports whether the provider's backend is reachable.
	// It never returns an error; failures are reported as false.
	CheckConnection(ctx context.Context) bool

	// ProcessFeedback incorporates user feedback on a previous suggestion
	// and returns a revised suggestion. Providers that don't support this
	// return ErrFeedbackNotSupported.
	ProcessFeedback(ctx context.Context, query, suggestion, feedback string, score float64) (string, error)

	// Dimension is the embedding vector length this provider produces.
	Dimension() int
}
