// internal/config/config.go
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// 默认值
const (
	DefaultPort            = "8080"
	DefaultProvider        = "google"
	DefaultTrendsFeedURL   = "https://trends.google.com/trends/trendingsearches/daily/rss?geo=US"
	DefaultFeedTimeout     = 5 * time.Second
	DefaultTopicCacheTTL   = 10 * time.Minute
	DefaultSessionTTL      = 2 * time.Hour
	DefaultLLMRateInterval = 500 * time.Millisecond
	DefaultTurnCount       = 4
)

// 当前配置的单例实例
var (
	currentConfig *AppConfig
	configMutex   sync.RWMutex
)

// AppConfig 包含应用程序的所有配置
type AppConfig struct {
	// 基础配置
	Port      string `json:"port"`
	LogDir    string `json:"log_dir"`
	DebugMode bool   `json:"debug_mode"`

	// 话题源
	TrendsFeedURL string        `json:"trends_feed_url"`
	FeedTimeout   time.Duration `json:"feed_timeout"`
	TopicCacheTTL time.Duration `json:"topic_cache_ttl"`

	// 对话生成
	TurnCount       int           `json:"turn_count"`
	SessionTTL      time.Duration `json:"session_ttl"`
	LLMRateInterval time.Duration `json:"llm_rate_interval"`

	// 分享图片
	FontPath string `json:"font_path,omitempty"`

	// LLM相关配置，api_key 为空表示使用模板回退
	LLMProvider string            `json:"llm_provider"`
	LLMConfig   map[string]string `json:"-"`
}

// Config 存储从环境变量读取的基础配置
type Config struct {
	Port            string
	GeminiAPIKey    string
	OpenAIAPIKey    string
	LLMProvider     string
	LLMModel        string
	TrendsFeedURL   string
	FeedTimeout     time.Duration
	TopicCacheTTL   time.Duration
	TurnCount       int
	SessionTTL      time.Duration
	LLMRateInterval time.Duration
	FontPath        string
	LogDir          string
	DebugMode       bool
}

// Load 从环境变量加载配置
func Load() (*Config, error) {
	// 尝试加载.env文件（可选）
	_ = godotenv.Load()

	config := &Config{
		Port:            getEnv("PORT", DefaultPort),
		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		LLMProvider:     getEnv("LLM_PROVIDER", DefaultProvider),
		LLMModel:        getEnv("LLM_MODEL", ""),
		TrendsFeedURL:   getEnv("TRENDS_FEED_URL", DefaultTrendsFeedURL),
		FeedTimeout:     getEnvDuration("FEED_TIMEOUT", DefaultFeedTimeout),
		TopicCacheTTL:   getEnvDuration("TOPIC_CACHE_TTL", DefaultTopicCacheTTL),
		TurnCount:       getEnvInt("TURN_COUNT", DefaultTurnCount),
		SessionTTL:      getEnvDuration("SESSION_TTL", DefaultSessionTTL),
		LLMRateInterval: getEnvDuration("LLM_RATE_INTERVAL", DefaultLLMRateInterval),
		FontPath:        getEnv("FONT_PATH", ""),
		LogDir:          getEnv("LOG_DIR", "logs"),
		DebugMode:       getEnvBool("DEBUG_MODE", true),
	}

	if config.TurnCount <= 0 {
		return nil, fmt.Errorf("TURN_COUNT 必须为正整数，当前: %d", config.TurnCount)
	}

	// 没有密钥是正常的运行模式（模板回退），只记录提示
	if config.APIKey() == "" {
		log.Println("提示: 未设置文本生成API密钥，将使用模板回复；也可以在页面中为当前会话输入密钥")
	}

	return config, nil
}

// APIKey 根据所选提供者返回对应的密钥
func (c *Config) APIKey() string {
	if c.LLMProvider == "openai" {
		return c.OpenAIAPIKey
	}
	return c.GeminiAPIKey
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvBool 获取布尔类型环境变量
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	return value == "true" || value == "1" || value == "yes"
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("警告: 环境变量 %s=%q 不是整数，使用默认值 %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}

// getEnvDuration 支持 "5s"、"10m" 这类写法
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		log.Printf("警告: 环境变量 %s=%q 不是有效时长，使用默认值 %s", key, value, defaultValue)
		return defaultValue
	}
	return d
}

// InitConfig 初始化配置管理器
func InitConfig() error {
	baseConfig, err := Load()
	if err != nil {
		return err
	}

	configMutex.Lock()
	defer configMutex.Unlock()

	currentConfig = fromBase(baseConfig)
	return nil
}

// fromBase 由基础配置生成运行时配置
func fromBase(base *Config) *AppConfig {
	llmConfig := map[string]string{
		"api_key": base.APIKey(),
	}
	if base.LLMModel != "" {
		llmConfig["default_model"] = base.LLMModel
	}

	return &AppConfig{
		Port:            base.Port,
		LogDir:          base.LogDir,
		DebugMode:       base.DebugMode,
		TrendsFeedURL:   base.TrendsFeedURL,
		FeedTimeout:     base.FeedTimeout,
		TopicCacheTTL:   base.TopicCacheTTL,
		TurnCount:       base.TurnCount,
		SessionTTL:      base.SessionTTL,
		LLMRateInterval: base.LLMRateInterval,
		FontPath:        base.FontPath,
		LLMProvider:     base.LLMProvider,
		LLMConfig:       llmConfig,
	}
}

// GetCurrentConfig 返回当前配置的副本
func GetCurrentConfig() *AppConfig {
	configMutex.RLock()
	defer configMutex.RUnlock()

	if currentConfig == nil {
		// 尚未初始化时直接读取环境变量
		baseConfig, err := Load()
		if err != nil {
			baseConfig = &Config{
				Port:            DefaultPort,
				LLMProvider:     DefaultProvider,
				TrendsFeedURL:   DefaultTrendsFeedURL,
				FeedTimeout:     DefaultFeedTimeout,
				TopicCacheTTL:   DefaultTopicCacheTTL,
				TurnCount:       DefaultTurnCount,
				SessionTTL:      DefaultSessionTTL,
				LLMRateInterval: DefaultLLMRateInterval,
				LogDir:          "logs",
			}
		}
		return fromBase(baseConfig)
	}

	// 返回配置的副本
	configCopy := *currentConfig
	configCopy.LLMConfig = make(map[string]string, len(currentConfig.LLMConfig))
	for k, v := range currentConfig.LLMConfig {
		configCopy.LLMConfig[k] = v
	}
	return &configCopy
}

// SetCurrentConfig 直接替换当前配置（测试和命令行工具使用）
func SetCurrentConfig(cfg *AppConfig) {
	configMutex.Lock()
	defer configMutex.Unlock()
	currentConfig = cfg
}

// UpdateLLMConfig 更新LLM配置，仅保存在内存中
func UpdateLLMConfig(provider string, config map[string]string) error {
	configMutex.Lock()
	defer configMutex.Unlock()

	if currentConfig == nil {
		return fmt.Errorf("配置系统未初始化")
	}
	if provider == "" {
		return fmt.Errorf("LLM提供者不能为空")
	}

	currentConfig.LLMProvider = provider
	currentConfig.LLMConfig = config
	return nil
}
