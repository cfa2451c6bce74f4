// internal/app/app.go
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/Corphon/FriendsSyndicate/internal/api"
	"github.com/Corphon/FriendsSyndicate/internal/config"
	"github.com/Corphon/FriendsSyndicate/internal/di"
	"github.com/Corphon/FriendsSyndicate/internal/llm"
	"github.com/Corphon/FriendsSyndicate/internal/models"
	"github.com/Corphon/FriendsSyndicate/internal/render"
	"github.com/Corphon/FriendsSyndicate/internal/services"
	"github.com/Corphon/FriendsSyndicate/internal/utils"
	"github.com/gin-gonic/gin"

	// 注册文本生成提供者
	_ "github.com/Corphon/FriendsSyndicate/internal/llm/providers/google"
	_ "github.com/Corphon/FriendsSyndicate/internal/llm/providers/openai"
)

const (
	shutdownTimeout     = 30 * time.Second
	maintenanceInterval = 5 * time.Minute
	trackerMaxAge       = 30 * time.Minute
)

// App 持有服务器运行所需的全部组件
type App struct {
	config          *config.AppConfig
	router          *gin.Engine
	handler         *api.Handler
	metricsHandler  http.Handler
	shutdownMetrics func(context.Context) error
	stopChan        chan struct{}
	stopOnce        sync.Once
}

var (
	instance *App
	mutex    sync.Mutex
)

// GetApp 获取应用单例
func GetApp() *App {
	mutex.Lock()
	defer mutex.Unlock()
	if instance == nil {
		instance = &App{stopChan: make(chan struct{})}
	}
	return instance
}

// InitServices 按依赖顺序创建服务并注册到全局容器
func InitServices() error {
	return RegisterServices(di.GetContainer(), config.GetCurrentConfig())
}

// RegisterServices 按依赖顺序创建服务并注册到指定容器
func RegisterServices(container *di.Container, cfg *config.AppConfig) error {
	if cfg == nil {
		return fmt.Errorf("配置未初始化")
	}
	roster := models.DefaultRoster()

	container.Register(di.ServiceMetrics, utils.GetMetricsCollector())
	stats := services.NewStatsService()
	container.Register(di.ServiceStats, stats)

	// 1. 文本生成服务，没有密钥时进入模板模式
	llmService := services.NewLLMServiceWithRegistry(llm.DefaultRegistry, cfg)
	llmService.SetStats(stats)
	ready, state := llmService.GetProviderStatus()
	if ready {
		log.Printf("✅ LLM服务就绪: %s (%s)", llmService.GetProviderName(), llmService.GetDefaultModel())
	} else {
		log.Printf("ℹ️ LLM服务未就绪: %s", state)
	}
	container.Register(di.ServiceLLM, llmService)

	// 2. 话题源和回复生成
	topicService := services.NewTopicService(cfg)
	container.Register(di.ServiceTopic, topicService)

	responseService := services.NewResponseService(llmService, roster)
	container.Register(di.ServiceResponse, responseService)

	// 3. 对话引擎
	conversationService, err := services.NewConversationService(topicService, responseService, roster, cfg.TurnCount, nil)
	if err != nil {
		return fmt.Errorf("创建对话引擎失败: %w", err)
	}
	container.Register(di.ServiceConversation, conversationService)

	// 4. 会话、进度和渲染
	container.Register(di.ServiceSession, services.NewSessionStore(cfg.SessionTTL))
	container.Register(di.ServiceProgress, services.NewProgressService())

	imageRenderer := render.NewImageRenderer(cfg.FontPath, roster)
	log.Printf("🖼️ 分享图片字体: %s", imageRenderer.FontSource())
	container.Register(di.ServiceExport, services.NewExportService(imageRenderer))

	htmlRenderer, err := render.NewHTMLRenderer(roster)
	if err != nil {
		return err
	}
	container.Register(di.ServiceHTMLRenderer, htmlRenderer)

	return nil
}

// Initialize 初始化指标、服务和路由
func (a *App) Initialize() error {
	a.config = config.GetCurrentConfig()

	metricsHandler, shutdown, err := utils.InitMetricsProvider()
	if err != nil {
		log.Printf("⚠️ 指标导出初始化失败，/metrics 不可用: %v", err)
	} else {
		a.metricsHandler = metricsHandler
		a.shutdownMetrics = shutdown
	}

	if err := InitServices(); err != nil {
		return fmt.Errorf("初始化服务失败: %w", err)
	}

	router, handler, err := api.SetupRouter(a.metricsHandler)
	if err != nil {
		return fmt.Errorf("设置路由失败: %w", err)
	}
	a.router = router
	a.handler = handler

	api.StartMaintenance(a.stopChan, handler.Progress, maintenanceInterval, trackerMaxAge)
	return nil
}

// Router 已配置的路由
func (a *App) Router() *gin.Engine {
	return a.router
}

// GetConfig 当前配置
func (a *App) GetConfig() *config.AppConfig {
	return a.config
}

// IsDebugMode 是否处于调试模式
func (a *App) IsDebugMode() bool {
	return a.config != nil && a.config.DebugMode
}

// Run 启动HTTP服务器，ctx 取消后优雅关闭
func (a *App) Run(ctx context.Context) error {
	if a.router == nil {
		return fmt.Errorf("应用尚未初始化")
	}

	srv := &http.Server{
		Addr:              ":" + a.config.Port,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("🌐 服务器启动在端口 %s", a.config.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("启动服务器失败: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Println("🛑 正在关闭服务器...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	a.Cleanup(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("服务器强制关闭: %w", err)
	}
	log.Println("✅ 服务器优雅关闭完成")
	return nil
}

// Cleanup 停止后台任务，关闭连接并刷新指标
func (a *App) Cleanup(ctx context.Context) {
	a.stopOnce.Do(func() {
		close(a.stopChan)
	})
	if a.handler != nil {
		a.handler.Shutdown()
	}
	if a.shutdownMetrics != nil {
		if err := a.shutdownMetrics(ctx); err != nil {
			log.Printf("⚠️ 关闭指标导出失败: %v", err)
		}
		a.shutdownMetrics = nil
	}
}
