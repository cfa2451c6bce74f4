package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	key string
}

func (f *fakeProvider) Initialize(config map[string]string) error {
	if config["api_key"] == "" {
		return ErrMissingAPIKey
	}
	f.key = config["api_key"]
	return nil
}

func (f *fakeProvider) GetName() string              { return "fake" }
func (f *fakeProvider) GetSupportedModels() []string { return []string{"fake-1"} }

func (f *fakeProvider) CompleteText(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	return &CompletionResponse{Text: "echo: " + req.Prompt, ProviderName: "fake"}, nil
}

func TestRegistryGetProvider(t *testing.T) {
	r := NewRegistry()
	r.Register("fake", func() Provider { return &fakeProvider{} })

	p, err := r.GetProvider("fake", map[string]string{"api_key": "k"})
	require.NoError(t, err)

	resp, err := p.CompleteText(context.Background(), CompletionRequest{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "echo: hi", resp.Text)
}

func TestRegistryErrors(t *testing.T) {
	r := NewRegistry()
	r.Register("fake", func() Provider { return &fakeProvider{} })

	_, err := r.GetProvider("missing", nil)
	assert.ErrorIs(t, err, ErrUnknownProvider)

	_, err = r.GetProvider("fake", map[string]string{})
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestRegistryListing(t *testing.T) {
	r := NewRegistry()
	r.Register("b", func() Provider { return &fakeProvider{} })
	r.Register("a", func() Provider { return &fakeProvider{} })

	assert.Equal(t, []string{"a", "b"}, r.ListProviders())
	assert.True(t, r.Has("a"))
	assert.False(t, r.Has("c"))
	assert.Equal(t, []string{"fake-1"}, r.SupportedModels("a"))
	assert.Empty(t, r.SupportedModels("c"))
}
