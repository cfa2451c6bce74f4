package google

import (
	"context"
	"testing"

	"github.com/Corphon/FriendsSyndicate/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeRequiresKey(t *testing.T) {
	p := &Provider{}
	err := p.Initialize(map[string]string{"api_key": ""})
	assert.ErrorIs(t, err, llm.ErrMissingAPIKey)
}

func TestInitializeDefaults(t *testing.T) {
	p := &Provider{}
	require.NoError(t, p.Initialize(map[string]string{"api_key": "k"}))
	assert.Equal(t, DefaultModel, p.defaultModel)

	p2 := &Provider{}
	require.NoError(t, p2.Initialize(map[string]string{"api_key": "k", "default_model": "gemini-2.5-pro"}))
	assert.Equal(t, "gemini-2.5-pro", p2.defaultModel)
}

func TestRegisteredInDefaultRegistry(t *testing.T) {
	assert.True(t, llm.DefaultRegistry.Has(ProviderName))
	assert.Contains(t, llm.DefaultRegistry.SupportedModels(ProviderName), DefaultModel)
}

func TestCompleteTextBeforeInitialize(t *testing.T) {
	p := &Provider{}
	_, err := p.CompleteText(context.Background(), llm.CompletionRequest{Prompt: "x"})
	assert.Error(t, err)
}
