// internal/models/conversation.go
package models

import (
	"fmt"
	"time"
)

// 非角色发言者，只作为生成上下文，不会出现在任何渲染结果中
const (
	SpeakerManager = "Manager"
	SpeakerCritic  = "Critic"
)

// DefaultTurnCount 每次生成的对话轮数（不含话题上下文）
const DefaultTurnCount = 4

// MaxTurnCount 单次生成的最大轮数，防止请求过大
const MaxTurnCount = 10

// Turn 表示对话中的一条发言，创建后不可修改
type Turn struct {
	Speaker string `json:"speaker"` // PersonaID、Manager 或 Critic
	Text    string `json:"text"`
}

// Transcript 一次生成的完整对话，按插入顺序排列
// 第一条始终是隐藏的 Manager 话题发言
type Transcript []Turn

// NewTranscript 以话题上下文发言开始一份新的对话记录
func NewTranscript(topic string) Transcript {
	return Transcript{ContextTurn(topic)}
}

// ContextTurn 构建 Manager 话题发言
func ContextTurn(topic string) Turn {
	return Turn{Speaker: SpeakerManager, Text: fmt.Sprintf("Topic: %s", topic)}
}

// IsHiddenSpeaker 判断发言者是否需要在渲染时隐藏
func IsHiddenSpeaker(speaker string) bool {
	return speaker == SpeakerManager || speaker == SpeakerCritic
}

// IsEmpty 对话记录为空
func (t Transcript) IsEmpty() bool {
	return len(t) == 0
}

// Dialogue 返回话题上下文之后的对话轮次
func (t Transcript) Dialogue() []Turn {
	if len(t) == 0 {
		return nil
	}
	if t[0].Speaker == SpeakerManager {
		return t[1:]
	}
	return t
}

// Clone 复制一份对话记录，避免调用方共享底层数组
func (t Transcript) Clone() Transcript {
	if t == nil {
		return nil
	}
	out := make(Transcript, len(t))
	copy(out, t)
	return out
}

// Conversation 一次生成的结果：话题和对话记录总是成对出现
type Conversation struct {
	Topic       string     `json:"topic"`
	Transcript  Transcript `json:"transcript"`
	GeneratedAt time.Time  `json:"generated_at"`
}

// ReplyKind 区分一条回复的来源
type ReplyKind string

const (
	ReplyGenerated    ReplyKind = "generated"     // 文本生成服务成功返回
	ReplyTemplate     ReplyKind = "template"      // 无密钥时的模板回退
	ReplyServiceError ReplyKind = "service_error" // 服务调用失败，文本为错误标记
)

// Reply 单个角色的一次回复
type Reply struct {
	Kind ReplyKind `json:"kind"`
	Text string    `json:"text"`
	Err  error     `json:"-"`
}
