package config

import (
	"time"

	"github.com/phrazzld/scry-import/internal/queue"
)

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Media    MediaConfig    `mapstructure:"media"`
	Export   ExportConfig   `mapstructure:"export"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port      int    `mapstructure:"port"       validate:"required,gt=0,lt=65536"`
	LogLevel  string `mapstructure:"log_level"  validate:"required,oneof=debug info warn error"`
	LogFormat string `mapstructure:"log_format" validate:"required,oneof=json text"`
}

// DatabaseConfig contains all database-related configuration settings.
// The database is optional; without a URL, artifacts are only exported to files.
type DatabaseConfig struct {
	URL                    string `mapstructure:"url"                       validate:"omitempty,url"`
	MaxOpenConns           int    `mapstructure:"max_open_conns"            validate:"gte=0"`
	MaxIdleConns           int    `mapstructure:"max_idle_conns"            validate:"gte=0"`
	ConnMaxLifetimeMinutes int    `mapstructure:"conn_max_lifetime_minutes" validate:"gte=0"`
}

// LLMConfig contains all LLM integration related settings.
type LLMConfig struct {
	GeminiAPIKey string `mapstructure:"gemini_api_key" validate:"required"`
	ModelName    string `mapstructure:"model_name"     validate:"required"`
	// PromptTemplatePath overrides the built-in prompt when set.
	PromptTemplatePath string  `mapstructure:"prompt_template_path"`
	Temperature        float32 `mapstructure:"temperature" validate:"gte=0,lte=2"`
}

// QueueConfig contains the retry and backoff policy of the import queue.
type QueueConfig struct {
	MaxRetries                  int  `mapstructure:"max_retries"                     validate:"gte=0"`
	MaxConsecutiveRateLimits    int  `mapstructure:"max_consecutive_rate_limits"     validate:"gte=1"`
	RateLimitWaitSeconds        int  `mapstructure:"rate_limit_wait_seconds"         validate:"gt=0"`
	OverloadWaitSeconds         int  `mapstructure:"overload_wait_seconds"           validate:"gt=0"`
	MaxWaitSeconds              int  `mapstructure:"max_wait_seconds"                validate:"gtefield=RateLimitWaitSeconds,gtefield=OverloadWaitSeconds"`
	CooldownMS                  int  `mapstructure:"cooldown_ms"                     validate:"gte=0"`
	CountOverloadTowardHardStop bool `mapstructure:"count_overload_toward_hard_stop"`
	ErrorMessageMaxLength       int  `mapstructure:"error_message_max_length"        validate:"gte=0"`
}

// Policy converts the configuration into a queue.Policy.
func (c QueueConfig) Policy() queue.Policy {
	p := queue.DefaultPolicy()
	p.MaxRetries = c.MaxRetries
	p.MaxConsecutiveRateLimits = c.MaxConsecutiveRateLimits
	p.CountOverloadTowardHardStop = c.CountOverloadTowardHardStop
	p.RateLimitWait = time.Duration(c.RateLimitWaitSeconds) * time.Second
	p.OverloadWait = time.Duration(c.OverloadWaitSeconds) * time.Second
	p.MaxWait = time.Duration(c.MaxWaitSeconds) * time.Second
	p.Cooldown = time.Duration(c.CooldownMS) * time.Millisecond
	p.ErrorMessageMaxLength = c.ErrorMessageMaxLength
	return p
}

// MediaConfig controls where rendered exercise images are written.
type MediaConfig struct {
	Dir string `mapstructure:"dir" validate:"required"`
}

// ExportConfig controls where artifact export files are written.
type ExportConfig struct {
	Dir string `mapstructure:"dir" validate:"required"`
}
