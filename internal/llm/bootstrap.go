package llm

import "github.com/codecompass/codecompass-go/pkg/config"

// NewDefaultRegistry returns a Registry with the ollama, openai, and mock
// provider factories registered, mirroring the embedding package's
// init()-time registration idiom but without a package-global instance,
// so tests can construct independent registries.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("ollama", NewOllamaFactory)
	r.Register("openai", NewOpenAIFactory)
	r.Register("mock", NewMockFactory)
	return r
}

// EmbeddingProvider resolves the Provider configured for embedding
// generation (Config.Embeddings.Provider/Model).
func EmbeddingProvider(r *Registry, cfg *config.Config) (Provider, error) {
	return r.Get(cfg, cfg.Embeddings.Provider, cfg.Embeddings.Model)
}

// SuggestionProvider resolves the Provider currently configured for text
// generation (Config.Suggestion.Provider/Model, mutable via
// switch_suggestion_model).
func SuggestionProvider(r *Registry, cfg *config.Config) (Provider, error) {
	snap := cfg.CurrentSuggestion()
	return r.Get(cfg, snap.Provider, snap.Model)
}
