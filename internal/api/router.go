// internal/api/router.go
package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/Corphon/FriendsSyndicate/internal/config"
	"github.com/Corphon/FriendsSyndicate/internal/di"
	"github.com/Corphon/FriendsSyndicate/internal/render"
	"github.com/Corphon/FriendsSyndicate/internal/services"
	"github.com/Corphon/FriendsSyndicate/web"
	"github.com/gin-gonic/gin"
)

// SetupRouter 从容器取出服务并配置HTTP路由
func SetupRouter(metricsHandler http.Handler) (*gin.Engine, *Handler, error) {
	cfg := config.GetCurrentConfig()
	container := di.GetContainer()

	// ✅ 只从容器获取服务，不再创建新实例
	conversations, ok := container.Get(di.ServiceConversation).(*services.ConversationService)
	if !ok {
		return nil, nil, fmt.Errorf("对话服务未正确初始化")
	}
	sessions, ok := container.Get(di.ServiceSession).(*services.SessionStore)
	if !ok {
		return nil, nil, fmt.Errorf("会话服务未正确初始化")
	}
	exports, ok := container.Get(di.ServiceExport).(*services.ExportService)
	if !ok {
		return nil, nil, fmt.Errorf("导出服务未正确初始化")
	}
	progress, ok := container.Get(di.ServiceProgress).(*services.ProgressService)
	if !ok {
		return nil, nil, fmt.Errorf("进度服务未正确初始化")
	}
	renderer, ok := container.Get(di.ServiceHTMLRenderer).(*render.HTMLRenderer)
	if !ok {
		return nil, nil, fmt.Errorf("页面渲染器未正确初始化")
	}
	// LLM 服务缺失时仍可使用模板回复
	llmService, _ := container.Get(di.ServiceLLM).(*services.LLMService)
	stats, _ := container.Get(di.ServiceStats).(*services.StatsService)

	handler := NewHandler(conversations, sessions, exports, progress, llmService, stats, renderer)
	return NewRouter(handler, cfg, metricsHandler), handler, nil
}

// NewRouter 注册所有路由
func NewRouter(handler *Handler, cfg *config.AppConfig, metricsHandler http.Handler) *gin.Engine {
	if !cfg.DebugMode && gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}

	sessionTTL := cfg.SessionTTL
	if sessionTTL <= 0 {
		sessionTTL = config.DefaultSessionTTL
	}

	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.DebugMode {
		r.Use(gin.Logger())
	}
	r.Use(RequestIDMiddleware())
	r.Use(corsMiddleware())

	// 内嵌的模板和静态资源
	r.SetHTMLTemplate(handler.Renderer.Template())
	r.StaticFS("/static", http.FS(web.Static()))

	r.GET("/healthz", handler.Healthz)
	if metricsHandler != nil {
		r.GET("/metrics", gin.WrapH(metricsHandler))
	}

	// 以下路由都需要会话
	session := r.Group("/", SessionMiddleware(sessionTTL))
	{
		session.GET("/", handler.IndexPage)
		session.GET("/ws/session", handler.SessionWebSocket)
	}

	limited := GenerateRateLimit()
	api := r.Group("/api", SessionMiddleware(sessionTTL))
	{
		// ===============================
		// 对话相关路由
		// ===============================
		conversations := api.Group("/conversations")
		{
			conversations.POST("", limited, handler.GenerateConversation)
			conversations.GET("/current", handler.GetCurrentConversation)
			conversations.GET("/current/image", limited, handler.ExportImage)
		}

		// ===============================
		// 会话密钥
		// ===============================
		keyGroup := api.Group("/session/key")
		{
			keyGroup.PUT("", handler.SetSessionKey)
			keyGroup.DELETE("", handler.ClearSessionKey)
		}

		api.GET("/llm/status", handler.GetLLMStatus)
		api.GET("/topics/fallback", handler.GetFallbackTopics)
		api.GET("/stats", handler.GetUsageStats)
	}

	return r
}

// StartMaintenance 定期清理空闲的进度跟踪器，done 关闭时退出
func StartMaintenance(done <-chan struct{}, progress *services.ProgressService, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				progress.CleanupIdleTrackers(maxAge)
			case <-done:
				return
			}
		}
	}()
}
