package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Telegram  TelegramConfig
	Anthropic AnthropicConfig
	Limits    LimitsConfig
	Redis     RedisConfig
	NATS      NATSConfig
	Server    ServerConfig
	Log       LogConfig
}

type TelegramConfig struct {
	Token       string
	APIBase     string
	PollTimeout time.Duration
	// EditInterval throttles streaming message edits so the bot stays
	// under Telegram's own per-chat edit limits.
	EditInterval time.Duration
}

type AnthropicConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// LimitsConfig holds the relay's resource-bounding knobs: request
// admission, history caps, and cleanup cadence.
type LimitsConfig struct {
	RateWindow       time.Duration
	RateLimit        int
	MaxMessages      int
	MaxContextTokens int
	IdleExpiry       time.Duration
	CleanupInterval  time.Duration
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type NATSConfig struct {
	// URL enables event publishing when non-empty.
	URL string
}

type ServerConfig struct {
	Host               string
	Port               int
	CORSAllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Load .env file if it exists (ignore error if missing)
	_ = k.Load(file.Provider(".env"), dotenv.Parser())

	// Load environment variables (override .env)
	err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ToLower(strings.ReplaceAll(s, "_", "."))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	cfg := &Config{
		Telegram: TelegramConfig{
			Token:   k.String("telegram.token"),
			APIBase: k.String("telegram.api.base"),
		},
		Anthropic: AnthropicConfig{
			APIKey:    k.String("anthropic.api.key"),
			BaseURL:   k.String("anthropic.base.url"),
			Model:     k.String("anthropic.model"),
			MaxTokens: k.Int("anthropic.max.tokens"),
		},
		Limits: LimitsConfig{
			RateLimit:        k.Int("limits.rate.limit"),
			MaxMessages:      k.Int("limits.max.messages"),
			MaxContextTokens: k.Int("limits.max.context.tokens"),
		},
		Redis: RedisConfig{
			Enabled:  k.Bool("redis.enabled"),
			Host:     k.String("redis.host"),
			Port:     k.Int("redis.port"),
			Password: k.String("redis.password"),
			DB:       k.Int("redis.db"),
		},
		NATS: NATSConfig{
			URL: k.String("nats.url"),
		},
		Server: ServerConfig{
			Host: k.String("server.host"),
			Port: k.Int("server.port"),
		},
		Log: LogConfig{
			Level:  k.String("log.level"),
			Format: k.String("log.format"),
		},
	}

	if origins := k.String("server.cors.origins"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.Server.CORSAllowedOrigins = append(cfg.Server.CORSAllowedOrigins, o)
			}
		}
	}

	// Apply defaults
	if cfg.Telegram.APIBase == "" {
		cfg.Telegram.APIBase = "https://api.telegram.org"
	}
	if cfg.Anthropic.BaseURL == "" {
		cfg.Anthropic.BaseURL = "https://api.anthropic.com"
	}
	if cfg.Anthropic.Model == "" {
		cfg.Anthropic.Model = "claude-sonnet-4-20250514"
	}
	if cfg.Anthropic.MaxTokens == 0 {
		cfg.Anthropic.MaxTokens = 4096
	}
	if cfg.Limits.RateLimit == 0 {
		cfg.Limits.RateLimit = 10
	}
	if cfg.Limits.MaxMessages == 0 {
		cfg.Limits.MaxMessages = 20
	}
	if cfg.Limits.MaxContextTokens == 0 {
		cfg.Limits.MaxContextTokens = 50000
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}

	// Parse durations
	durations := []struct {
		key string
		def string
		dst *time.Duration
	}{
		{"telegram.poll.timeout", "30s", &cfg.Telegram.PollTimeout},
		{"telegram.edit.interval", "1500ms", &cfg.Telegram.EditInterval},
		{"anthropic.timeout", "120s", &cfg.Anthropic.Timeout},
		{"limits.rate.window", "1m", &cfg.Limits.RateWindow},
		{"limits.idle.expiry", "24h", &cfg.Limits.IdleExpiry},
		{"limits.cleanup.interval", "1h", &cfg.Limits.CleanupInterval},
	}
	for _, d := range durations {
		raw := k.String(d.key)
		if raw == "" {
			raw = d.def
		}
		*d.dst, err = time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", d.key, err)
		}
	}

	return cfg, nil
}
