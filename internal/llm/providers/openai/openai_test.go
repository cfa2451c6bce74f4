package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Corphon/FriendsSyndicate/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildParams(t *testing.T) {
	params := buildParams("gpt-4o-mini", llm.CompletionRequest{
		Prompt:       "say hi",
		SystemPrompt: "be brief",
		Temperature:  0.9,
		MaxTokens:    60,
	})

	require.Len(t, params.Messages, 2)
	assert.NotNil(t, params.Messages[0].OfSystem)
	assert.NotNil(t, params.Messages[1].OfUser)
	assert.Equal(t, "gpt-4o-mini", string(params.Model))
	assert.Equal(t, int64(60), params.MaxCompletionTokens.Value)
}

func TestInitializeRequiresKey(t *testing.T) {
	p := &Provider{}
	err := p.Initialize(map[string]string{})
	assert.ErrorIs(t, err, llm.ErrMissingAPIKey)

	_, err = p.CompleteText(context.Background(), llm.CompletionRequest{Prompt: "x"})
	assert.Error(t, err)
}

func TestCompleteTextAgainstStub(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "gpt-4o-mini",
			"choices": []map[string]interface{}{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]interface{}{"role": "assistant", "content": "  Could this BE any more trending?  "},
			}},
			"usage": map[string]interface{}{"prompt_tokens": 10, "completion_tokens": 8, "total_tokens": 18},
		})
	}))
	defer srv.Close()

	p := &Provider{}
	require.NoError(t, p.Initialize(map[string]string{"api_key": "test-key", "base_url": srv.URL}))

	resp, err := p.CompleteText(context.Background(), llm.CompletionRequest{Prompt: "topic"})
	require.NoError(t, err)
	assert.Equal(t, "Could this BE any more trending?", resp.Text)
	assert.Equal(t, 18, resp.TokensUsed)
	assert.Equal(t, ProviderName, resp.ProviderName)
}
