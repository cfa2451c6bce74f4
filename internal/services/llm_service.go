// internal/services/llm_service.go
package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Corphon/FriendsSyndicate/internal/config"
	"github.com/Corphon/FriendsSyndicate/internal/llm"
	"github.com/Corphon/FriendsSyndicate/internal/utils"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

var ErrLLMNotReady = errors.New("llm service not ready")

const (
	providerCacheTTL     = 30 * time.Minute
	providerCacheCleanup = time.Hour
	defaultRateBurst     = 2
)

var providerDefaultModels = map[string]string{
	"google": "gemini-2.5-flash",
	"openai": "gpt-4o-mini",
}

// LLMService 提供统一的大语言模型调用接口。
// 环境变量中的密钥对应一个常驻提供者；页面输入的会话密钥按哈希缓存各自的提供者。
type LLMService struct {
	providerMutex      sync.RWMutex
	registry           *llm.Registry
	provider           llm.Provider
	providerName       string
	providerConfig     map[string]string
	isReady            bool
	readyState         string
	activeDefaultModel string

	sessionProviders *cache.Cache
	limiter          *rate.Limiter
	metrics          *utils.MetricsCollector
	stats            *StatsService
}

// NewLLMService 根据当前配置创建服务；没有密钥时返回未就绪服务而不是错误
func NewLLMService() (*LLMService, error) {
	cfg := config.GetCurrentConfig()
	if cfg == nil {
		service := createBaseLLMService(llm.DefaultRegistry, config.DefaultLLMRateInterval)
		service.readyState = "Failed to retrieve configuration"
		return service, nil
	}
	return NewLLMServiceWithRegistry(llm.DefaultRegistry, cfg), nil
}

// NewLLMServiceWithRegistry 使用指定注册表创建服务，测试中注入假提供者
func NewLLMServiceWithRegistry(registry *llm.Registry, cfg *config.AppConfig) *LLMService {
	service := createBaseLLMService(registry, cfg.LLMRateInterval)
	service.providerName = cfg.LLMProvider
	service.providerConfig = copyConfig(cfg.LLMConfig)

	if cfg.LLMProvider == "" || cfg.LLMConfig["api_key"] == "" {
		service.readyState = "API key not configured"
		return service
	}

	provider, err := registry.GetProvider(cfg.LLMProvider, cfg.LLMConfig)
	if err != nil {
		service.readyState = fmt.Sprintf("Initialization failed: %v", err)
		return service
	}

	service.provider = provider
	service.activeDefaultModel = extractDefaultModel(cfg.LLMProvider, cfg.LLMConfig)
	service.isReady = true
	service.readyState = "Ready"
	return service
}

// NewEmptyLLMService 创建一个空的LLM服务实例作为后备方案
func NewEmptyLLMService() *LLMService {
	service := createBaseLLMService(llm.DefaultRegistry, config.DefaultLLMRateInterval)
	service.providerName = "empty"
	service.readyState = "Standby mode: responses use the built-in template"
	return service
}

func createBaseLLMService(registry *llm.Registry, interval time.Duration) *LLMService {
	if interval <= 0 {
		interval = config.DefaultLLMRateInterval
	}
	return &LLMService{
		registry:         registry,
		readyState:       "Uninitialized",
		sessionProviders: cache.New(providerCacheTTL, providerCacheCleanup),
		limiter:          rate.NewLimiter(rate.Every(interval), defaultRateBurst),
		metrics:          utils.GetMetricsCollector(),
	}
}

// SetStats 设置使用统计，nil 表示不统计
func (s *LLMService) SetStats(stats *StatsService) {
	s.stats = stats
}

// IsReady 环境密钥对应的提供者是否可用
func (s *LLMService) IsReady() bool {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	return s.isReady && s.provider != nil
}

// GetReadyState 获取服务的就绪状态描述
func (s *LLMService) GetReadyState() string {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	return s.readyState
}

// GetProviderStatus 返回是否就绪以及状态说明
func (s *LLMService) GetProviderStatus() (bool, string) {
	if s == nil {
		return false, "LLM服务实例未初始化"
	}
	if s.IsReady() {
		return true, "Ready"
	}
	return false, s.GetReadyState()
}

// GetProviderName 当前提供者名称
func (s *LLMService) GetProviderName() string {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	return s.providerName
}

// GetDefaultModel 当前默认模型
func (s *LLMService) GetDefaultModel() string {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	if s.activeDefaultModel != "" {
		return s.activeDefaultModel
	}
	return providerDefaultModels[s.providerName]
}

// EnvironmentKey 返回进程级密钥，会话未输入密钥时使用
func (s *LLMService) EnvironmentKey() string {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	return s.providerConfig["api_key"]
}

// UpdateProvider 替换进程级提供者并清空会话提供者缓存
func (s *LLMService) UpdateProvider(providerName string, cfg map[string]string) error {
	provider, err := s.registry.GetProvider(providerName, cfg)
	if err != nil {
		s.providerMutex.Lock()
		s.isReady = false
		s.readyState = fmt.Sprintf("Configuration failed: %v", err)
		s.providerMutex.Unlock()
		return err
	}

	s.providerMutex.Lock()
	defer s.providerMutex.Unlock()

	s.provider = provider
	s.providerName = providerName
	s.providerConfig = copyConfig(cfg)
	s.activeDefaultModel = extractDefaultModel(providerName, cfg)
	s.isReady = true
	s.readyState = "Ready"
	s.sessionProviders.Flush()
	return nil
}

// ProviderFor 返回与给定密钥对应的已初始化提供者
func (s *LLMService) ProviderFor(credential string) (llm.Provider, error) {
	if credential == "" {
		return nil, ErrLLMNotReady
	}

	s.providerMutex.RLock()
	if s.provider != nil && credential == s.providerConfig["api_key"] {
		p := s.provider
		s.providerMutex.RUnlock()
		return p, nil
	}
	name := s.providerName
	cfg := copyConfig(s.providerConfig)
	s.providerMutex.RUnlock()

	if name == "" || name == "empty" {
		name = config.DefaultProvider
	}

	key := name + ":" + hashCredential(credential)
	if cached, ok := s.sessionProviders.Get(key); ok {
		if p, ok := cached.(llm.Provider); ok {
			return p, nil
		}
	}

	cfg["api_key"] = credential
	provider, err := s.registry.GetProvider(name, cfg)
	if err != nil {
		return nil, err
	}
	s.sessionProviders.Set(key, provider, cache.DefaultExpiration)
	return provider, nil
}

// Complete 经限流后调用提供者生成文本
func (s *LLMService) Complete(ctx context.Context, credential string, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	provider, err := s.ProviderFor(credential)
	if err != nil {
		return nil, err
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("等待限流失败: %w", err)
	}

	start := time.Now()
	resp, err := provider.CompleteText(ctx, req)
	status := "ok"
	if err != nil {
		status = "error"
	}
	s.metrics.RecordLLMLatency(ctx, s.GetProviderName(), status, time.Since(start))
	if s.stats != nil {
		tokens := 0
		if resp != nil {
			tokens = resp.TokensUsed
		}
		s.stats.RecordAPIRequest(tokens, err != nil)
	}

	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, llm.ErrEmptyResponse
	}
	return resp, nil
}

func hashCredential(credential string) string {
	sum := sha256.Sum256([]byte(credential))
	return hex.EncodeToString(sum[:8])
}

func extractDefaultModel(provider string, cfg map[string]string) string {
	if cfg != nil {
		if model := cfg["default_model"]; model != "" {
			return model
		}
	}
	return providerDefaultModels[provider]
}

func copyConfig(cfg map[string]string) map[string]string {
	out := make(map[string]string, len(cfg))
	for k, v := range cfg {
		out[k] = v
	}
	return out
}
