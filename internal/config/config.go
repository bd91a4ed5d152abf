// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Board      BoardConfig      `mapstructure:"board"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Summarizer SummarizerConfig `mapstructure:"summarizer"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Storage    StorageConfig    `mapstructure:"storage"`
	PubSub     PubSubConfig     `mapstructure:"pubsub"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                   int `mapstructure:"port"`
	RequestTimeoutSeconds  int `mapstructure:"request_timeout_seconds"`
	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds"`
}

// AuthConfig guards the refresh endpoint.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// BoardConfig points at the notice board and shapes requests to it.
type BoardConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	ImageOrigin    string `mapstructure:"image_origin"`
	UserAgent      string `mapstructure:"user_agent"`
	PageSize       int    `mapstructure:"page_size"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxBodyBytes   int    `mapstructure:"max_body_bytes"`
}

// RateLimitConfig bounds per-host request rate. Zero RPS disables limiting.
type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// SummarizerConfig configures the Gemini fallback chain.
type SummarizerConfig struct {
	APIKey         string   `mapstructure:"api_key"`
	Models         []string `mapstructure:"models"`
	TimeoutSeconds int      `mapstructure:"timeout_seconds"`
	BaseURL        string   `mapstructure:"base_url"`
}

// DatabaseConfig controls the Postgres notice store. An empty DSN selects the
// in-memory store.
type DatabaseConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
	Migrate  bool   `mapstructure:"migrate"`
}

// StorageConfig selects where raw article HTML is archived.
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
	Bucket  string `mapstructure:"bucket"`
	Prefix  string `mapstructure:"prefix"`
}

// PubSubConfig holds metadata for sync event notifications. An empty topic
// selects the in-memory publisher.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// SchedulerConfig controls periodic syncs.
type SchedulerConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	Spec              string `mapstructure:"spec"`
	Timezone          string `mapstructure:"timezone"`
	RunTimeoutSeconds int    `mapstructure:"run_timeout_seconds"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("NOTICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("summarizer.api_key", "NOTICE_SUMMARIZER_API_KEY", "GEMINI_API_KEY"); err != nil {
		return Config{}, fmt.Errorf("bind summarizer.api_key: %w", err)
	}
	if err := v.BindEnv("database.dsn", "NOTICE_DATABASE_DSN", "DATABASE_URL"); err != nil {
		return Config{}, fmt.Errorf("bind database.dsn: %w", err)
	}

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_seconds", 300)
	v.SetDefault("server.shutdown_timeout_seconds", 15)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.api_key", "")
	v.SetDefault("board.base_url", "https://www.ajou.ac.kr/kr/ajou/notice.do")
	v.SetDefault("board.image_origin", "https://ajou.ac.kr")
	v.SetDefault("board.user_agent", "")
	v.SetDefault("board.page_size", 20)
	v.SetDefault("board.timeout_seconds", 15)
	v.SetDefault("board.max_body_bytes", 10<<20)
	v.SetDefault("rate_limit.rps", 2.0)
	v.SetDefault("rate_limit.burst", 4)
	v.SetDefault("summarizer.models", []string{"gemini-2.5-flash", "gemini-2.5-flash-lite", "gemini-1.5-pro-002"})
	v.SetDefault("summarizer.timeout_seconds", 60)
	v.SetDefault("summarizer.base_url", "")
	v.SetDefault("database.table", "notices")
	v.SetDefault("database.max_conns", 4)
	v.SetDefault("database.migrate", true)
	v.SetDefault("storage.backend", "memory")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.prefix", "notices")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.spec", "*/30 * * * *")
	v.SetDefault("scheduler.timezone", "Asia/Seoul")
	v.SetDefault("scheduler.run_timeout_seconds", 600)
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if u, err := url.Parse(c.Board.BaseURL); err != nil || !u.IsAbs() {
		return fmt.Errorf("board.base_url must be an absolute URL")
	}
	if u, err := url.Parse(c.Board.ImageOrigin); err != nil || !u.IsAbs() {
		return fmt.Errorf("board.image_origin must be an absolute URL")
	}
	if c.Board.PageSize <= 0 {
		return fmt.Errorf("board.page_size must be > 0")
	}
	if c.Board.TimeoutSeconds <= 0 {
		return fmt.Errorf("board.timeout_seconds must be > 0")
	}
	if c.Board.MaxBodyBytes < 0 {
		return fmt.Errorf("board.max_body_bytes must be >= 0")
	}
	if c.RateLimit.RPS < 0 {
		return fmt.Errorf("rate_limit.rps must be >= 0")
	}
	if c.RateLimit.RPS > 0 && c.RateLimit.Burst <= 0 {
		return fmt.Errorf("rate_limit.burst must be > 0 when rate_limit.rps is set")
	}
	if len(c.Summarizer.Models) == 0 {
		return fmt.Errorf("summarizer.models must list at least one model")
	}
	if c.Summarizer.TimeoutSeconds <= 0 {
		return fmt.Errorf("summarizer.timeout_seconds must be > 0")
	}
	switch c.Storage.Backend {
	case "memory":
	case "gcs":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket must be set when storage.backend is gcs")
		}
	default:
		return fmt.Errorf("storage.backend must be memory or gcs, got %q", c.Storage.Backend)
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic_name is set")
	}
	if c.Scheduler.Enabled && c.Scheduler.Spec == "" {
		return fmt.Errorf("scheduler.spec must be set when the scheduler is enabled")
	}
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	return nil
}

// BoardTimeout is the per-request timeout for board and image fetches.
func (c Config) BoardTimeout() time.Duration {
	return time.Duration(c.Board.TimeoutSeconds) * time.Second
}

// SummarizerTimeout bounds a single model attempt.
func (c Config) SummarizerTimeout() time.Duration {
	return time.Duration(c.Summarizer.TimeoutSeconds) * time.Second
}

// ShutdownTimeout bounds graceful shutdown.
func (c Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSeconds) * time.Second
}

// SchedulerRunTimeout bounds one scheduled sync.
func (c Config) SchedulerRunTimeout() time.Duration {
	return time.Duration(c.Scheduler.RunTimeoutSeconds) * time.Second
}
