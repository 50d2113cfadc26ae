package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.telegram.org", cfg.Telegram.APIBase)
	assert.Equal(t, 30*time.Second, cfg.Telegram.PollTimeout)
	assert.Equal(t, 1500*time.Millisecond, cfg.Telegram.EditInterval)

	assert.Equal(t, "https://api.anthropic.com", cfg.Anthropic.BaseURL)
	assert.Equal(t, 4096, cfg.Anthropic.MaxTokens)
	assert.Equal(t, 120*time.Second, cfg.Anthropic.Timeout)

	assert.Equal(t, time.Minute, cfg.Limits.RateWindow)
	assert.Equal(t, 10, cfg.Limits.RateLimit)
	assert.Equal(t, 20, cfg.Limits.MaxMessages)
	assert.Equal(t, 50000, cfg.Limits.MaxContextTokens)
	assert.Equal(t, 24*time.Hour, cfg.Limits.IdleExpiry)
	assert.Equal(t, time.Hour, cfg.Limits.CleanupInterval)

	assert.False(t, cfg.Redis.Enabled)
	assert.Empty(t, cfg.NATS.URL)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "123:abc")
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
	t.Setenv("ANTHROPIC_MODEL", "claude-test-model")
	t.Setenv("LIMITS_RATE_LIMIT", "5")
	t.Setenv("LIMITS_RATE_WINDOW", "30s")
	t.Setenv("LIMITS_MAX_MESSAGES", "8")
	t.Setenv("LIMITS_IDLE_EXPIRY", "48h")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("SERVER_CORS_ORIGINS", "https://ops.example.com, https://other.example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "123:abc", cfg.Telegram.Token)
	assert.Equal(t, "sk-test", cfg.Anthropic.APIKey)
	assert.Equal(t, "claude-test-model", cfg.Anthropic.Model)
	assert.Equal(t, 5, cfg.Limits.RateLimit)
	assert.Equal(t, 30*time.Second, cfg.Limits.RateWindow)
	assert.Equal(t, 8, cfg.Limits.MaxMessages)
	assert.Equal(t, 48*time.Hour, cfg.Limits.IdleExpiry)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "localhost:6380", cfg.Redis.Addr())
	assert.Equal(t, []string{"https://ops.example.com", "https://other.example.com"}, cfg.Server.CORSAllowedOrigins)
}

func TestLoad_BadDuration(t *testing.T) {
	t.Setenv("LIMITS_RATE_WINDOW", "not-a-duration")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "limits.rate.window")
}

func TestValidate_MissingCredentials(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	cfg.Telegram.Token = ""
	cfg.Anthropic.APIKey = ""

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TELEGRAM_TOKEN")
	assert.Contains(t, err.Error(), "ANTHROPIC_API_KEY")
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	cfg.Telegram.Token = "t"
	cfg.Anthropic.APIKey = "k"
	cfg.Limits.RateLimit = 0
	cfg.Limits.MaxMessages = -1
	cfg.Server.Port = 99999

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LIMITS_RATE_LIMIT")
	assert.Contains(t, err.Error(), "LIMITS_MAX_MESSAGES")
	assert.Contains(t, err.Error(), "SERVER_PORT")
}

func TestValidate_OK(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	cfg.Telegram.Token = "123:abc"
	cfg.Anthropic.APIKey = "sk-test"

	assert.NoError(t, cfg.Validate())
}
