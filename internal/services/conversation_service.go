// internal/services/conversation_service.go
package services

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/Corphon/FriendsSyndicate/internal/models"
	"github.com/Corphon/FriendsSyndicate/internal/utils"
)

// 生成过程中的进度阶段
const (
	StageTopic  = "topic"  // 话题已确定
	StageTyping = "typing" // 某个角色开始回复
	StageTurn   = "turn"   // 一轮发言完成
	StageDone   = "done"
)

// ProgressEvent 对话生成进度，不包含发言内容
type ProgressEvent struct {
	Stage   string `json:"stage"`
	Topic   string `json:"topic,omitempty"`
	Turn    int    `json:"turn"`
	Total   int    `json:"total"`
	Speaker string `json:"speaker,omitempty"`
}

// RunOptions 单次生成的参数
type RunOptions struct {
	TurnCount  int    // <=0 使用默认轮数，超过 MaxTurnCount 时截断
	Credential string // 为空时使用模板回复
	Progress   func(ProgressEvent)
}

// TopicFetcher 话题来源
type TopicFetcher interface {
	FetchTopic(ctx context.Context) string
}

// ReplyGenerator 角色回复生成
type ReplyGenerator interface {
	Generate(ctx context.Context, persona models.PersonaID, topic string, history models.Transcript, credential string) models.Reply
}

// ConversationService 按轮次驱动群聊生成，各轮严格顺序执行
type ConversationService struct {
	topics       TopicFetcher
	generator    ReplyGenerator
	personas     []models.PersonaID
	defaultTurns int
	rngMutex     sync.Mutex
	rng          *rand.Rand
	metrics      *utils.MetricsCollector
	logger       *utils.Logger
}

// NewConversationService 创建对话引擎；rng 为 nil 时使用全局随机源
func NewConversationService(topics TopicFetcher, generator ReplyGenerator, roster *models.Roster, defaultTurns int, rng *rand.Rand) (*ConversationService, error) {
	if topics == nil || generator == nil {
		return nil, fmt.Errorf("话题服务和回复服务不能为空")
	}
	if roster == nil {
		roster = models.DefaultRoster()
	}
	personas := roster.IDs()
	if len(personas) < 2 {
		return nil, fmt.Errorf("至少需要2位成员才能避免连续发言，当前: %d", len(personas))
	}
	if defaultTurns <= 0 {
		defaultTurns = models.DefaultTurnCount
	}

	return &ConversationService{
		topics:       topics,
		generator:    generator,
		personas:     personas,
		defaultTurns: defaultTurns,
		rng:          rng,
		metrics:      utils.GetMetricsCollector(),
		logger:       utils.GetLogger(),
	}, nil
}

// ResolveTurnCount 计算实际轮数
func (s *ConversationService) ResolveTurnCount(requested int) int {
	if requested <= 0 {
		requested = s.defaultTurns
	}
	if requested > models.MaxTurnCount {
		requested = models.MaxTurnCount
	}
	return requested
}

// Run 生成一段新对话：Manager 话题发言之后跟随 K 轮角色发言，
// 相邻两轮不会是同一个角色。单轮失败只影响该轮文本。
func (s *ConversationService) Run(ctx context.Context, opts RunOptions) models.Conversation {
	total := s.ResolveTurnCount(opts.TurnCount)
	notify := func(ev ProgressEvent) {
		if opts.Progress != nil {
			ev.Total = total
			opts.Progress(ev)
		}
	}

	topic := s.topics.FetchTopic(ctx)
	notify(ProgressEvent{Stage: StageTopic, Topic: topic})

	transcript := models.NewTranscript(topic)
	lastSpeaker := models.SpeakerManager

	for i := 0; i < total; i++ {
		speaker := s.nextSpeaker(lastSpeaker)
		notify(ProgressEvent{Stage: StageTyping, Turn: i + 1, Speaker: string(speaker)})

		var reply models.Reply
		if opts.Credential == "" {
			// 无密钥时不经过回复服务
			reply = models.Reply{Kind: models.ReplyTemplate, Text: MockResponse(topic)}
		} else {
			reply = s.generator.Generate(ctx, speaker, topic, transcript.Clone(), opts.Credential)
		}
		s.metrics.RecordTurn(ctx, string(reply.Kind))

		transcript = append(transcript, models.Turn{Speaker: string(speaker), Text: reply.Text})
		lastSpeaker = string(speaker)
		notify(ProgressEvent{Stage: StageTurn, Turn: i + 1, Speaker: string(speaker)})
	}

	notify(ProgressEvent{Stage: StageDone, Turn: total})
	s.metrics.RecordConversation(ctx, total)
	s.logger.Info("对话生成完成", map[string]interface{}{
		"topic": topic,
		"turns": total,
	})

	return models.Conversation{
		Topic:       topic,
		Transcript:  transcript,
		GeneratedAt: time.Now(),
	}
}

// nextSpeaker 从除上一位发言者之外的成员中均匀随机选择
func (s *ConversationService) nextSpeaker(last string) models.PersonaID {
	candidates := make([]models.PersonaID, 0, len(s.personas))
	for _, p := range s.personas {
		if string(p) != last {
			candidates = append(candidates, p)
		}
	}
	return candidates[s.intN(len(candidates))]
}

func (s *ConversationService) intN(n int) int {
	if s.rng == nil {
		return rand.IntN(n)
	}
	s.rngMutex.Lock()
	defer s.rngMutex.Unlock()
	return s.rng.IntN(n)
}
