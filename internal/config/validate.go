package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks Config for problems that would break the relay at
// runtime. It collects all errors into a single joined error.
func (c *Config) Validate() error {
	var errs []string

	if c.Telegram.Token == "" {
		errs = append(errs, "TELEGRAM_TOKEN is required")
	}
	if c.Anthropic.APIKey == "" {
		errs = append(errs, "ANTHROPIC_API_KEY is required")
	}

	if c.Limits.RateLimit < 1 {
		errs = append(errs, fmt.Sprintf("LIMITS_RATE_LIMIT must be positive, got %d", c.Limits.RateLimit))
	}
	if c.Limits.RateWindow <= 0 {
		errs = append(errs, "LIMITS_RATE_WINDOW must be positive")
	}
	if c.Limits.MaxMessages < 1 {
		errs = append(errs, fmt.Sprintf("LIMITS_MAX_MESSAGES must be positive, got %d", c.Limits.MaxMessages))
	}
	if c.Limits.MaxContextTokens < 1 {
		errs = append(errs, fmt.Sprintf("LIMITS_MAX_CONTEXT_TOKENS must be positive, got %d", c.Limits.MaxContextTokens))
	}
	if c.Limits.IdleExpiry <= 0 {
		errs = append(errs, "LIMITS_IDLE_EXPIRY must be positive")
	}
	if c.Limits.CleanupInterval <= 0 {
		errs = append(errs, "LIMITS_CLEANUP_INTERVAL must be positive")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT must be 1-65535, got %d", c.Server.Port))
	}
	if c.Redis.Enabled && (c.Redis.Port < 1 || c.Redis.Port > 65535) {
		errs = append(errs, fmt.Sprintf("REDIS_PORT must be 1-65535, got %d", c.Redis.Port))
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  " + strings.Join(errs, "\n  "))
	}
	return nil
}
