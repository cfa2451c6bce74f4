package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("LLM_PROVIDER", "")
	t.Setenv("TURN_COUNT", "")
	t.Setenv("FEED_TIMEOUT", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultProvider, cfg.LLMProvider)
	assert.Equal(t, DefaultTurnCount, cfg.TurnCount)
	assert.Equal(t, DefaultFeedTimeout, cfg.FeedTimeout)
	assert.Empty(t, cfg.APIKey(), "未设置密钥时应走模板回退")
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("GEMINI_API_KEY", "g-key")
	t.Setenv("OPENAI_API_KEY", "o-key")
	t.Setenv("LLM_PROVIDER", "openai")
	t.Setenv("TURN_COUNT", "6")
	t.Setenv("FEED_TIMEOUT", "2s")
	t.Setenv("DEBUG_MODE", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "o-key", cfg.APIKey())
	assert.Equal(t, 6, cfg.TurnCount)
	assert.Equal(t, 2*time.Second, cfg.FeedTimeout)
	assert.False(t, cfg.DebugMode)
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	t.Setenv("TURN_COUNT", "abc")
	t.Setenv("SESSION_TTL", "forever")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultTurnCount, cfg.TurnCount)
	assert.Equal(t, DefaultSessionTTL, cfg.SessionTTL)
}

func TestLoadRejectsNonPositiveTurnCount(t *testing.T) {
	t.Setenv("TURN_COUNT", "0")

	_, err := Load()
	assert.Error(t, err)
}

func TestInitAndUpdateLLMConfig(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "g-key")
	t.Setenv("LLM_PROVIDER", "google")
	t.Setenv("TURN_COUNT", "")
	defer SetCurrentConfig(nil)

	require.NoError(t, InitConfig())

	cfg := GetCurrentConfig()
	assert.Equal(t, "g-key", cfg.LLMConfig["api_key"])

	// 返回的是副本，修改不影响全局配置
	cfg.LLMConfig["api_key"] = "changed"
	assert.Equal(t, "g-key", GetCurrentConfig().LLMConfig["api_key"])

	require.NoError(t, UpdateLLMConfig("openai", map[string]string{"api_key": "o-key"}))
	cfg = GetCurrentConfig()
	assert.Equal(t, "openai", cfg.LLMProvider)
	assert.Equal(t, "o-key", cfg.LLMConfig["api_key"])

	assert.Error(t, UpdateLLMConfig("", nil))
}
