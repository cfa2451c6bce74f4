package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Corphon/FriendsSyndicate/internal/config"
	"github.com/Corphon/FriendsSyndicate/internal/di"
	"github.com/Corphon/FriendsSyndicate/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(feedURL string) *config.AppConfig {
	return &config.AppConfig{
		Port:            "0",
		LogDir:          "",
		TrendsFeedURL:   feedURL,
		FeedTimeout:     time.Second,
		TopicCacheTTL:   time.Minute,
		TurnCount:       config.DefaultTurnCount,
		SessionTTL:      time.Hour,
		LLMRateInterval: time.Millisecond,
		LLMProvider:     config.DefaultProvider,
		LLMConfig:       map[string]string{"api_key": ""},
	}
}

// 重置全局应用实例和容器
func resetApp(t *testing.T) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	instance = nil
	di.GetContainer().Clear()
	t.Cleanup(func() {
		instance = nil
		di.GetContainer().Clear()
		config.SetCurrentConfig(nil)
	})
}

func TestGetApp(t *testing.T) {
	resetApp(t)

	app1 := GetApp()
	require.NotNil(t, app1)
	assert.Same(t, app1, GetApp())
	assert.NotNil(t, app1.stopChan)
}

func TestRegisterServices(t *testing.T) {
	container := di.NewContainer()
	require.NoError(t, RegisterServices(container, testConfig("http://127.0.0.1:0/rss")))

	for _, name := range []string{
		di.ServiceMetrics, di.ServiceLLM, di.ServiceTopic, di.ServiceResponse,
		di.ServiceConversation, di.ServiceSession, di.ServiceProgress,
		di.ServiceExport, di.ServiceHTMLRenderer, di.ServiceStats,
	} {
		assert.True(t, container.Has(name), "缺少服务 %s", name)
	}

	llmService, ok := container.Get(di.ServiceLLM).(*services.LLMService)
	require.True(t, ok)
	assert.False(t, llmService.IsReady())
	assert.Empty(t, llmService.EnvironmentKey())
}

func TestRegisterServicesWithKey(t *testing.T) {
	container := di.NewContainer()
	cfg := testConfig("http://127.0.0.1:0/rss")
	cfg.LLMConfig["api_key"] = "test-key"
	require.NoError(t, RegisterServices(container, cfg))

	llmService := container.Get(di.ServiceLLM).(*services.LLMService)
	assert.True(t, llmService.IsReady())
	assert.Equal(t, "google", llmService.GetProviderName())
}

func TestRegisterServicesRequiresConfig(t *testing.T) {
	assert.Error(t, RegisterServices(di.NewContainer(), nil))
}

func TestInitializeServesRoutes(t *testing.T) {
	resetApp(t)
	feed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer feed.Close()
	config.SetCurrentConfig(testConfig(feed.URL))

	app := GetApp()
	require.NoError(t, app.Initialize())
	defer app.Cleanup(context.Background())

	assert.False(t, app.IsDebugMode())
	assert.Equal(t, "0", app.GetConfig().Port)

	for _, path := range []string{"/healthz", "/metrics", "/", "/api/topics/fallback", "/api/stats"} {
		rec := httptest.NewRecorder()
		app.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}

	// 话题源不可用时使用备用话题
	rec := httptest.NewRecorder()
	app.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/conversations", nil))
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestRunRequiresInitialize(t *testing.T) {
	resetApp(t)
	assert.Error(t, GetApp().Run(context.Background()))
}

func TestCleanupIsIdempotent(t *testing.T) {
	resetApp(t)
	app := GetApp()
	app.Cleanup(context.Background())
	app.Cleanup(context.Background())

	select {
	case <-app.stopChan:
	default:
		t.Fatal("stopChan 应该已关闭")
	}
}
