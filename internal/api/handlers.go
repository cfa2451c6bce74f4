// internal/api/handlers.go
package api

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/Corphon/FriendsSyndicate/internal/errors"
	"github.com/Corphon/FriendsSyndicate/internal/models"
	"github.com/Corphon/FriendsSyndicate/internal/render"
	"github.com/Corphon/FriendsSyndicate/internal/services"
	"github.com/gin-gonic/gin"
)

// Handler 处理页面和API请求
type Handler struct {
	Conversations    *services.ConversationService // 对话引擎
	Sessions         *services.SessionStore        // 会话状态
	Exports          *services.ExportService       // 分享图片
	Progress         *services.ProgressService     // 进度跟踪
	LLM              *services.LLMService          // 文本生成
	Stats            *services.StatsService        // 使用统计
	Renderer         *render.HTMLRenderer          // 页面标记
	WebSocketHandler *WebSocketHandler             // WebSocket 处理器
	Response         *ResponseHelper               // 响应助手
}

// GenerateConversationRequest 生成对话的请求结构，整个请求体可以省略
type GenerateConversationRequest struct {
	Turns int `json:"turns"` // 角色发言轮数，0 表示默认值
}

// SessionKeyRequest 会话密钥
type SessionKeyRequest struct {
	APIKey string `json:"api_key"`
}

// ConversationResponse 对话生成或查询的返回数据
type ConversationResponse struct {
	Topic      string            `json:"topic"`
	Transcript models.Transcript `json:"transcript"`
	HTML       string            `json:"html"`
	Generating bool              `json:"generating"`
	Mode       string            `json:"mode"`
}

// generationTimeout 单次生成的上限，客户端断开不会中止生成
const generationTimeout = 2 * time.Minute

// 生成模式
const (
	ModeGenerated = "generated"
	ModeTemplate  = "template"
)

// NewHandler 创建处理器
func NewHandler(
	conversations *services.ConversationService,
	sessions *services.SessionStore,
	exports *services.ExportService,
	progress *services.ProgressService,
	llmService *services.LLMService,
	stats *services.StatsService,
	renderer *render.HTMLRenderer,
) *Handler {
	return &Handler{
		Conversations:    conversations,
		Sessions:         sessions,
		Exports:          exports,
		Progress:         progress,
		LLM:              llmService,
		Stats:            stats,
		Renderer:         renderer,
		WebSocketHandler: NewWebSocketHandler(progress),
		Response:         NewResponseHelper(),
	}
}

// session 当前请求对应的会话状态
func (h *Handler) session(c *gin.Context) (*services.SessionState, string, bool) {
	sessionID := SessionID(c)
	if sessionID == "" {
		h.Response.Error(c, http.StatusBadRequest, ErrorSessionMissing, "会话不存在，请刷新页面")
		return nil, "", false
	}
	return h.Sessions.GetOrCreate(sessionID), sessionID, true
}

// credentialFor 会话中输入的密钥优先于环境密钥
func (h *Handler) credentialFor(state *services.SessionState) string {
	if key := state.Credential(); key != "" {
		return key
	}
	if h.LLM == nil {
		return ""
	}
	return h.LLM.EnvironmentKey()
}

func modeFor(credential string) string {
	if credential == "" {
		return ModeTemplate
	}
	return ModeGenerated
}

// ========================================
// 页面
// ========================================

// IndexPage 渲染聊天页面
func (h *Handler) IndexPage(c *gin.Context) {
	state, _, ok := h.session(c)
	if !ok {
		return
	}
	snapshot := state.Get()
	conv := models.Conversation{Topic: snapshot.Topic, Transcript: snapshot.Transcript}
	envKey := h.LLM != nil && h.LLM.EnvironmentKey() != ""

	c.HTML(http.StatusOK, render.PageTemplate, h.Renderer.Page(conv, envKey, snapshot.HasCredential))
}

// ========================================
// 对话
// ========================================

// GenerateConversation 生成新对话并替换会话中的旧对话
func (h *Handler) GenerateConversation(c *gin.Context) {
	state, sessionID, ok := h.session(c)
	if !ok {
		return
	}

	var req GenerateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.Response.BadRequest(c, "请求格式错误", err.Error())
		return
	}
	if req.Turns < 0 {
		h.Response.BadRequest(c, "轮数不能为负数")
		return
	}

	if err := state.BeginGeneration(); err != nil {
		h.Response.AppError(c, err)
		return
	}
	defer state.EndGeneration()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), generationTimeout)
	defer cancel()

	credential := h.credentialFor(state)
	conv := h.Conversations.Run(ctx, services.RunOptions{
		TurnCount:  req.Turns,
		Credential: credential,
		Progress:   h.Progress.Reporter(sessionID),
	})
	state.Set(conv.Topic, conv.Transcript)
	if h.Stats != nil {
		h.Stats.RecordConversation()
	}

	html, err := h.Renderer.RenderHTML(conv)
	if err != nil {
		log.Printf("❌ 渲染聊天片段失败: %v", err)
		h.Response.InternalError(c, "渲染聊天页面失败")
		return
	}
	h.WebSocketHandler.NotifyConversationUpdated(sessionID, conv.Topic)

	h.Response.Created(c, ConversationResponse{
		Topic:      conv.Topic,
		Transcript: conv.Transcript,
		HTML:       string(html),
		Mode:       modeFor(credential),
	}, "对话已生成")
}

// GetCurrentConversation 返回会话中的当前对话
func (h *Handler) GetCurrentConversation(c *gin.Context) {
	state, _, ok := h.session(c)
	if !ok {
		return
	}
	snapshot := state.Get()
	conv := models.Conversation{Topic: snapshot.Topic, Transcript: snapshot.Transcript}

	html, err := h.Renderer.RenderHTML(conv)
	if err != nil {
		h.Response.InternalError(c, "渲染聊天页面失败")
		return
	}

	transcript := snapshot.Transcript
	if transcript == nil {
		transcript = models.Transcript{}
	}
	h.Response.Success(c, ConversationResponse{
		Topic:      snapshot.Topic,
		Transcript: transcript,
		HTML:       string(html),
		Generating: snapshot.Generating,
		Mode:       modeFor(h.credentialFor(state)),
	})
}

// ExportImage 下载当前对话的分享图片；没有对话时只返回警告
func (h *Handler) ExportImage(c *gin.Context) {
	state, _, ok := h.session(c)
	if !ok {
		return
	}
	snapshot := state.Get()

	result, err := h.Exports.ExportImage(c.Request.Context(), models.Conversation{
		Topic:      snapshot.Topic,
		Transcript: snapshot.Transcript,
	})
	if err != nil {
		if !apperrors.IsEmptyTranscript(err) {
			log.Printf("❌ 导出分享图片失败: %v", err)
		}
		h.Response.AppError(c, err)
		return
	}

	h.Response.BinaryDownload(c, result.Data, result.Filename, result.ContentType)
}

// ========================================
// 会话密钥
// ========================================

// SetSessionKey 保存会话内输入的密钥，只保存在内存中
func (h *Handler) SetSessionKey(c *gin.Context) {
	state, _, ok := h.session(c)
	if !ok {
		return
	}

	var req SessionKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "请求格式错误")
		return
	}
	key := strings.TrimSpace(req.APIKey)
	if key == "" {
		h.Response.Error(c, http.StatusBadRequest, ErrorAPIKeyMissing, "密钥不能为空")
		return
	}

	if h.LLM == nil {
		h.Response.Error(c, http.StatusServiceUnavailable, ErrorLLMServiceUnavailable, "文本生成服务未初始化")
		return
	}
	if _, err := h.LLM.ProviderFor(key); err != nil {
		log.Printf("⚠️ 会话密钥无法初始化提供者: %v", err)
		h.Response.Error(c, http.StatusBadRequest, ErrorLLMConfigInvalid, "无法使用该密钥初始化文本生成服务")
		return
	}

	state.SetCredential(key)
	h.Response.Success(c, gin.H{
		"session_key_set": true,
		"provider":        h.LLM.GetProviderName(),
	}, "密钥已保存到当前会话")
}

// ClearSessionKey 清除会话密钥
func (h *Handler) ClearSessionKey(c *gin.Context) {
	state, _, ok := h.session(c)
	if !ok {
		return
	}
	state.SetCredential("")
	h.Response.Success(c, gin.H{"session_key_set": false}, "密钥已清除")
}

// ========================================
// 状态
// ========================================

// GetLLMStatus 当前会话是否会使用真实生成
func (h *Handler) GetLLMStatus(c *gin.Context) {
	state, _, ok := h.session(c)
	if !ok {
		return
	}

	status := gin.H{
		"ready":              false,
		"status":             "LLM服务未初始化",
		"env_key_configured": false,
		"session_key_set":    state.Credential() != "",
	}
	if h.LLM != nil {
		ready, readyState := h.LLM.GetProviderStatus()
		status["ready"] = ready
		status["status"] = readyState
		status["provider"] = h.LLM.GetProviderName()
		status["model"] = h.LLM.GetDefaultModel()
		status["env_key_configured"] = h.LLM.EnvironmentKey() != ""
	}
	status["mode"] = modeFor(h.credentialFor(state))

	h.Response.Success(c, status)
}

// GetFallbackTopics 内置的备用话题
func (h *Handler) GetFallbackTopics(c *gin.Context) {
	h.Response.Success(c, gin.H{"topics": services.FallbackTopics()})
}

// GetUsageStats 进程内的使用统计
func (h *Handler) GetUsageStats(c *gin.Context) {
	if h.Stats == nil {
		h.Response.Success(c, &services.UsageStats{})
		return
	}
	h.Response.Success(c, h.Stats.GetUsageStats())
}

// Healthz 存活检查
func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"sessions":  h.Sessions.Count(),
		"websocket": h.WebSocketHandler.Manager().GetStatus(),
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// SessionWebSocket 推送当前会话的生成进度
func (h *Handler) SessionWebSocket(c *gin.Context) {
	h.WebSocketHandler.SessionWebSocket(c)
}

// Shutdown 关闭所有 WebSocket 连接
func (h *Handler) Shutdown() {
	h.WebSocketHandler.Manager().Shutdown()
}
