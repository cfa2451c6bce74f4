package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Corphon/FriendsSyndicate/internal/config"
	"github.com/Corphon/FriendsSyndicate/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type keyEchoProvider struct {
	key string
	err error
}

func (p *keyEchoProvider) Initialize(cfg map[string]string) error {
	if cfg["api_key"] == "" {
		return llm.ErrMissingAPIKey
	}
	p.key = cfg["api_key"]
	return nil
}

func (p *keyEchoProvider) GetName() string              { return "echo" }
func (p *keyEchoProvider) GetSupportedModels() []string { return []string{"echo-1"} }

func (p *keyEchoProvider) CompleteText(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &llm.CompletionResponse{Text: p.key + ":" + req.Prompt}, nil
}

func newEchoRegistry(failWith error) *llm.Registry {
	r := llm.NewRegistry()
	r.Register("echo", func() llm.Provider { return &keyEchoProvider{err: failWith} })
	return r
}

func testAppConfig(key string) *config.AppConfig {
	return &config.AppConfig{
		LLMProvider:     "echo",
		LLMConfig:       map[string]string{"api_key": key},
		LLMRateInterval: time.Millisecond,
	}
}

func TestLLMServiceWithoutKeyIsNotReady(t *testing.T) {
	svc := NewLLMServiceWithRegistry(newEchoRegistry(nil), testAppConfig(""))

	ready, state := svc.GetProviderStatus()
	assert.False(t, ready)
	assert.Equal(t, "API key not configured", state)

	_, err := svc.Complete(context.Background(), "", llm.CompletionRequest{Prompt: "x"})
	assert.ErrorIs(t, err, ErrLLMNotReady)
}

func TestLLMServiceEnvironmentKey(t *testing.T) {
	svc := NewLLMServiceWithRegistry(newEchoRegistry(nil), testAppConfig("env"))

	ready, _ := svc.GetProviderStatus()
	require.True(t, ready)
	assert.Equal(t, "env", svc.EnvironmentKey())

	resp, err := svc.Complete(context.Background(), "env", llm.CompletionRequest{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "env:hi", resp.Text)
}

func TestLLMServiceSessionKeyProvidersAreCached(t *testing.T) {
	svc := NewLLMServiceWithRegistry(newEchoRegistry(nil), testAppConfig(""))

	p1, err := svc.ProviderFor("session-a")
	require.NoError(t, err)
	p2, err := svc.ProviderFor("session-a")
	require.NoError(t, err)
	assert.Same(t, p1, p2)

	p3, err := svc.ProviderFor("session-b")
	require.NoError(t, err)
	assert.NotSame(t, p1, p3)

	resp, err := svc.Complete(context.Background(), "session-b", llm.CompletionRequest{Prompt: "yo"})
	require.NoError(t, err)
	assert.Equal(t, "session-b:yo", resp.Text)
}

func TestLLMServiceProviderError(t *testing.T) {
	svc := NewLLMServiceWithRegistry(newEchoRegistry(errors.New("503")), testAppConfig("env"))

	_, err := svc.Complete(context.Background(), "env", llm.CompletionRequest{Prompt: "x"})
	assert.EqualError(t, err, "503")
}

func TestLLMServiceCancelledContext(t *testing.T) {
	svc := NewLLMServiceWithRegistry(newEchoRegistry(nil), testAppConfig("env"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Complete(ctx, "env", llm.CompletionRequest{Prompt: "x"})
	assert.Error(t, err)
}

func TestLLMServiceUpdateProvider(t *testing.T) {
	svc := NewLLMServiceWithRegistry(newEchoRegistry(nil), testAppConfig(""))

	err := svc.UpdateProvider("missing", map[string]string{"api_key": "k"})
	assert.ErrorIs(t, err, llm.ErrUnknownProvider)
	assert.False(t, svc.IsReady())

	require.NoError(t, svc.UpdateProvider("echo", map[string]string{"api_key": "k2", "default_model": "echo-1"}))
	assert.True(t, svc.IsReady())
	assert.Equal(t, "echo-1", svc.GetDefaultModel())
}

func TestLLMServiceRecordsStats(t *testing.T) {
	svc := NewLLMServiceWithRegistry(newEchoRegistry(nil), testAppConfig("env"))
	stats := NewStatsService()
	svc.SetStats(stats)

	_, err := svc.Complete(context.Background(), "env", llm.CompletionRequest{Prompt: "hi"})
	require.NoError(t, err)

	failing := NewLLMServiceWithRegistry(newEchoRegistry(errors.New("503")), testAppConfig("env"))
	failing.SetStats(stats)
	_, err = failing.Complete(context.Background(), "env", llm.CompletionRequest{Prompt: "hi"})
	require.Error(t, err)

	usage := stats.GetUsageStats()
	assert.Equal(t, 2, usage.TodayRequests)
	assert.Equal(t, 1, usage.TodayFailures)
}
