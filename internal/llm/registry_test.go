package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codecompass/codecompass-go/pkg/config"
)

func TestRegistryGetCachesInstances(t *testing.T) {
	r := NewRegistry()
	calls := 0
	r.Register("counting", func(cfg *config.Config, model string) (Provider, error) {
		calls++
		return &MockProvider{dimension: cfg.Embeddings.Dimension}, nil
	})

	cfg := config.DefaultConfig()
	p1, err := r.Get(cfg, "counting", "m1")
	require.NoError(t, err)
	p2, err := r.Get(cfg, "counting", "m1")
	require.NoError(t, err)

	assert.Same(t, p1, p2)
	assert.Equal(t, 1, calls)
}

func TestRegistryGetUnknownProvider(t *testing.T) {
	r := NewRegistry()
	cfg := config.DefaultConfig()
	_, err := r.Get(cfg, "nonexistent", "m1")
	assert.Error(t, err)
}

func TestRegistryClearCacheForcesReconstruction(t *testing.T) {
	r := NewRegistry()
	calls := 0
	r.Register("counting", func(cfg *config.Config, model string) (Provider, error) {
		calls++
		return &MockProvider{dimension: cfg.Embeddings.Dimension}, nil
	})

	cfg := config.DefaultConfig()
	_, err := r.Get(cfg, "counting", "m1")
	require.NoError(t, err)

	r.ClearCache()

	_, err = r.Get(cfg, "counting", "m1")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestDefaultRegistryListsProviders(t *testing.T) {
	r := NewDefaultRegistry()
	assert.ElementsMatch(t, []string{"mock", "ollama", "openai"}, r.List())
}

func TestSuggestionProviderTracksSwitch(t *testing.T) {
	r := NewDefaultRegistry()
	cfg := config.DefaultConfig()

	cfg.SwitchSuggestionModel("mock", "whatever")
	p, err := SuggestionProvider(r, cfg)
	require.NoError(t, err)
	assert.Equal(t, "mock", p.Name())

	ctx := context.Background()
	assert.True(t, p.CheckConnection(ctx))
}
