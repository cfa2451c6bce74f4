// internal/llm/providers/openai/openai.go
package openai

import (
	"context"
	"fmt"
	"strings"

	"github.com/Corphon/FriendsSyndicate/internal/llm"
	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"
)

const (
	ProviderName = "openai"
	DefaultModel = "gpt-4o-mini"
)

func init() {
	llm.Register(ProviderName, func() llm.Provider {
		return &Provider{
			models: []string{"gpt-4o-mini", "gpt-4o", "gpt-4.1-mini"},
		}
	})
}

// Provider OpenAI chat completions
type Provider struct {
	client       oai.Client
	ready        bool
	defaultModel string
	models       []string
}

func (p *Provider) Initialize(config map[string]string) error {
	apiKey := config["api_key"]
	if apiKey == "" {
		return fmt.Errorf("openai: %w", llm.ErrMissingAPIKey)
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL := config["base_url"]; baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	p.client = oai.NewClient(opts...)
	p.ready = true

	p.defaultModel = DefaultModel
	if model := config["default_model"]; model != "" {
		p.defaultModel = model
	}
	return nil
}

func (p *Provider) GetName() string {
	return "openai"
}

func (p *Provider) GetSupportedModels() []string {
	return p.models
}

func (p *Provider) CompleteText(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if !p.ready {
		return nil, fmt.Errorf("openai: 提供者未初始化")
	}

	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	resp, err := p.client.Chat.Completions.New(ctx, buildParams(model, req))
	if err != nil {
		return nil, fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai: %w", llm.ErrEmptyResponse)
	}

	choice := resp.Choices[0]
	text := strings.TrimSpace(choice.Message.Content)
	if text == "" {
		return nil, fmt.Errorf("openai: %w", llm.ErrEmptyResponse)
	}

	return &llm.CompletionResponse{
		Text:         text,
		FinishReason: choice.FinishReason,
		TokensUsed:   int(resp.Usage.TotalTokens),
		ModelName:    model,
		ProviderName: ProviderName,
	}, nil
}

func buildParams(model string, req llm.CompletionRequest) oai.ChatCompletionNewParams {
	var messages []oai.ChatCompletionMessageParamUnion
	if req.SystemPrompt != "" {
		messages = append(messages, oai.SystemMessage(req.SystemPrompt))
	}
	messages = append(messages, oai.UserMessage(req.Prompt))

	params := oai.ChatCompletionNewParams{
		Model:    shared.ChatModel(model),
		Messages: messages,
	}
	if req.Temperature != 0 {
		params.Temperature = param.NewOpt(float64(req.Temperature))
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(req.MaxTokens))
	}
	return params
}
