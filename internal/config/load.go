package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Default values applied before config files and environment variables.
var defaults = map[string]any{
	"server.port":       8080,
	"server.log_level":  "info",
	"server.log_format": "json",

	"database.url":                       "",
	"database.max_open_conns":            10,
	"database.max_idle_conns":            5,
	"database.conn_max_lifetime_minutes": 5,

	"llm.gemini_api_key":       "",
	"llm.model_name":           "gemini-2.0-flash",
	"llm.prompt_template_path": "",
	"llm.temperature":          0.2,

	"queue.max_retries":                     3,
	"queue.max_consecutive_rate_limits":     5,
	"queue.rate_limit_wait_seconds":         30,
	"queue.overload_wait_seconds":           10,
	"queue.max_wait_seconds":                120,
	"queue.cooldown_ms":                     4000,
	"queue.count_overload_toward_hard_stop": false,
	"queue.error_message_max_length":        160,

	"media.dir":  "./media",
	"export.dir": "./exports",
}

// Load configuration from environment variables and optionally config files.
// Environment variables (prefix SCRY_, dots replaced by underscores) take
// precedence over values from config.yaml in the working directory or ./config.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("SCRY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &cfg, nil
}
