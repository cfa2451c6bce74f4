// internal/services/response_service.go
package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/Corphon/FriendsSyndicate/internal/llm"
	"github.com/Corphon/FriendsSyndicate/internal/models"
	"github.com/Corphon/FriendsSyndicate/internal/utils"
)

const (
	replyTemperature = 0.9
	replyMaxTokens   = 80
)

// TextCompleter 文本生成入口，LLMService 实现该接口
type TextCompleter interface {
	Complete(ctx context.Context, credential string, req llm.CompletionRequest) (*llm.CompletionResponse, error)
}

// ResponseService 为单个角色生成一条群聊回复
type ResponseService struct {
	completer TextCompleter
	roster    *models.Roster
	logger    *utils.Logger
}

// NewResponseService 创建回复服务
func NewResponseService(completer TextCompleter, roster *models.Roster) *ResponseService {
	if roster == nil {
		roster = models.DefaultRoster()
	}
	return &ResponseService{
		completer: completer,
		roster:    roster,
		logger:    utils.GetLogger(),
	}
}

// MockResponse 无密钥时的固定模板
func MockResponse(topic string) string {
	return fmt.Sprintf("Mock response about %s because no API key.", topic)
}

// ErrorMarker 服务失败时写入对话的标记文本
func ErrorMarker(err error) string {
	return fmt.Sprintf("[AI Error: %v]", err)
}

// Generate 生成回复。任何失败都以 ReplyServiceError 返回，不会向调用方报错
func (s *ResponseService) Generate(ctx context.Context, persona models.PersonaID, topic string, history models.Transcript, credential string) models.Reply {
	if credential == "" {
		return models.Reply{Kind: models.ReplyTemplate, Text: MockResponse(topic)}
	}
	if s.completer == nil {
		return serviceErrorReply(ErrLLMNotReady)
	}

	req := llm.CompletionRequest{
		Prompt:      s.BuildPrompt(persona, topic, history),
		Temperature: replyTemperature,
		MaxTokens:   replyMaxTokens,
	}

	resp, err := s.completer.Complete(ctx, credential, req)
	if err != nil {
		s.logger.Warn("角色回复生成失败", map[string]interface{}{
			"persona": persona,
			"error":   err.Error(),
		})
		return serviceErrorReply(err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return serviceErrorReply(llm.ErrEmptyResponse)
	}
	return models.Reply{Kind: models.ReplyGenerated, Text: text}
}

func serviceErrorReply(err error) models.Reply {
	return models.Reply{Kind: models.ReplyServiceError, Text: ErrorMarker(err), Err: err}
}

// BuildPrompt 构建角色扮演提示词；历史包含之前所有发言（含 Manager 话题）
func (s *ResponseService) BuildPrompt(persona models.PersonaID, topic string, history models.Transcript) string {
	lines := make([]string, 0, len(history))
	for _, turn := range history {
		lines = append(lines, fmt.Sprintf("%s: %s", turn.Speaker, turn.Text))
	}

	show := "Friends"
	voice := ""
	if s.roster != nil {
		if s.roster.Show != "" {
			show = s.roster.Show
		}
		if p, ok := s.roster.Get(persona); ok {
			voice = p.Voice
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "You are roleplaying as %s from the TV show '%s'.\n", persona, show)
	if voice != "" {
		fmt.Fprintf(&sb, "Your voice: %s.\n", voice)
	}
	fmt.Fprintf(&sb, "Current Conversation Topic: %s\n\n", topic)
	sb.WriteString("Recent Chat History:\n")
	sb.WriteString(strings.Join(lines, "\n"))
	sb.WriteString("\n\nYour Goal:\n")
	sb.WriteString("- Roast the previous speaker or make a cynical/funny comment about the topic.\n")
	sb.WriteString("- Be modern, unfiltered, and edgy (TV-MA).\n")
	sb.WriteString("- Keep it short (under 20 words).\n")
	sb.WriteString("- STAY IN CHARACTER.\n\n")
	sb.WriteString("Reply ONLY with the message text.")
	return sb.String()
}
