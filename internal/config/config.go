// Package config provides configuration management for the Form D dashboard.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/ulule/limiter/v3"
	"gopkg.in/yaml.v3"

	"formdwatch/pkg/utils"
)

// Configuration validation errors.
var (
	ErrMissingEndpoint   = errors.New("edgar.endpoint is required")
	ErrInvalidEndpoint   = errors.New("edgar.endpoint must be an absolute http(s) URL")
	ErrMissingForms      = errors.New("edgar.forms is required")
	ErrMissingBrowseURL  = errors.New("edgar.browse_url is required")
	ErrMissingUserAgent  = errors.New("edgar.user_agent is required")
	ErrInvalidTimeout    = errors.New("edgar.timeout_sec must be between 1 and 300")
	ErrInvalidMaxBody    = errors.New("edgar.max_body_kb must be at least 1")
	ErrMissingAddr       = errors.New("server.addr is required")
	ErrInvalidSessionTTL = errors.New("server.session_ttl must be positive")
	ErrMissingCookieName = errors.New("server.cookie_name is required")
	ErrInvalidSweep      = errors.New("server.sweep_schedule must be a cron expression or descriptor")
	ErrInvalidRateLimit  = errors.New("server.fetch_rate_limit must look like 10-M")
	ErrMissingChatModel  = errors.New("chat.model is required when chat is enabled")
	ErrInvalidMaxHistory = errors.New("chat.max_history must be at least 2")
	ErrInvalidChatTime   = errors.New("chat.timeout_sec must be at least 1")
	ErrMissingMetrics    = errors.New("metrics.path must start with / when metrics are enabled")
	ErrInvalidLogLevel   = errors.New("logging.level must be one of: debug, info, warn, error")
	ErrInvalidLogFormat  = errors.New("logging.format must be 'text' or 'json'")
)

// DefaultEnvFiles are loaded, when present, before environment overrides are applied.
var DefaultEnvFiles = []string{".env", ".env.local"}

// Config represents the complete application configuration.
type Config struct {
	Edgar   EdgarConfig   `yaml:"edgar"   envPrefix:"EDGAR_"`
	Server  ServerConfig  `yaml:"server"  envPrefix:"SERVER_"`
	Chat    ChatConfig    `yaml:"chat"    envPrefix:"CHAT_"`
	Metrics MetricsConfig `yaml:"metrics" envPrefix:"METRICS_"`
	Logging LoggingConfig `yaml:"logging" envPrefix:"LOG_"`
}

// EdgarConfig describes the upstream full-text search request.
type EdgarConfig struct {
	Endpoint   string `yaml:"endpoint"    env:"ENDPOINT"`
	Forms      string `yaml:"forms"       env:"FORMS"`
	BrowseURL  string `yaml:"browse_url"  env:"BROWSE_URL"`
	UserAgent  string `yaml:"user_agent"  env:"USER_AGENT"`
	Accept     string `yaml:"accept"      env:"ACCEPT"`
	Origin     string `yaml:"origin"      env:"ORIGIN"`
	Referer    string `yaml:"referer"     env:"REFERER"`
	TimeoutSec int    `yaml:"timeout_sec" env:"TIMEOUT_SEC"`
	MaxBodyKb  int    `yaml:"max_body_kb" env:"MAX_BODY_KB"`
}

// ServerConfig contains dashboard HTTP settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"              env:"ADDR"`
	CookieName      string        `yaml:"cookie_name"       env:"COOKIE_NAME"`
	SessionTTL      time.Duration `yaml:"session_ttl"       env:"SESSION_TTL"`
	ReadTimeout     time.Duration `yaml:"read_timeout"      env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout"     env:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"  env:"SHUTDOWN_TIMEOUT"`
	// SweepSchedule is a cron spec for dropping idle sessions, e.g. "@every 1m".
	SweepSchedule string `yaml:"sweep_schedule" env:"SWEEP_SCHEDULE"`
	// FetchRateLimit caps upstream fetches per client IP, in limiter format
	// ("10-M" is ten per minute). Empty disables the limit.
	FetchRateLimit string   `yaml:"fetch_rate_limit" env:"FETCH_RATE_LIMIT"`
	CORSOrigins    []string `yaml:"cors_origins"     env:"CORS_ORIGINS" envSeparator:","`
}

// ChatConfig configures the optional chat assistant panel.
type ChatConfig struct {
	BaseURL      string `yaml:"base_url"      env:"BASE_URL"`
	Model        string `yaml:"model"         env:"MODEL"`
	SystemPrompt string `yaml:"system_prompt" env:"SYSTEM_PROMPT"`
	MaxHistory   int    `yaml:"max_history"   env:"MAX_HISTORY"`
	TimeoutSec   int    `yaml:"timeout_sec"   env:"TIMEOUT_SEC"`
	Enabled      bool   `yaml:"enabled"       env:"ENABLED"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Path    string `yaml:"path"    env:"PATH"`
	Enabled bool   `yaml:"enabled" env:"ENABLED"`
}

// LoggingConfig defines logging behavior.
type LoggingConfig struct {
	Level  string `yaml:"level"  env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Edgar: EdgarConfig{
			Endpoint:   "https://efts.sec.gov/LATEST/search-index",
			Forms:      "D",
			BrowseURL:  "https://www.sec.gov/edgar/browse/",
			UserAgent:  "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/130.0.0.0 Safari/537.36",
			Accept:     "application/json, text/javascript, */*; q=0.01",
			Origin:     "https://www.sec.gov",
			Referer:    "https://www.sec.gov/",
			TimeoutSec: 20,
			MaxBodyKb:  8192,
		},
		Server: ServerConfig{
			Addr:            ":8080",
			CookieName:      "formd_sid",
			SessionTTL:      12 * time.Hour,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			SweepSchedule:   "@every 1m",
			FetchRateLimit:  "10-M",
		},
		Chat: ChatConfig{
			Enabled:    true,
			Model:      "gpt-3.5-turbo",
			MaxHistory: 50,
			TimeoutSec: 60,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Path:    "/metrics",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig loads configuration from a YAML file layered over Default().
// An empty path skips the file. Environment overrides (FORMD_*) are applied last.
func LoadConfig(filepath string) (*Config, error) {
	cfg := Default()

	if filepath != "" {
		data, err := os.ReadFile(filepath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}

	if err := ApplyEnv(cfg, DefaultEnvFiles); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// ApplyEnv loads any existing env files and overlays FORMD_* variables onto cfg.
func ApplyEnv(cfg *Config, envFiles []string) error {
	var existing []string

	for _, f := range envFiles {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}

	if len(existing) > 0 {
		if err := godotenv.Load(existing...); err != nil {
			return fmt.Errorf("failed to load env files: %w", err)
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: "FORMD_"}); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}

	return nil
}

// WriteYAML writes the configuration as YAML.
func (c *Config) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return enc.Close()
}

// SaveConfig saves configuration to YAML file.
func (c *Config) SaveConfig(filepath string) error {
	var buf bytes.Buffer
	if err := c.WriteYAML(&buf); err != nil {
		return err
	}

	if err := os.WriteFile(filepath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Edgar.Validate(); err != nil {
		return err
	}

	if c.Server.Addr == "" {
		return ErrMissingAddr
	}

	if c.Server.SessionTTL <= 0 {
		return ErrInvalidSessionTTL
	}

	if c.Server.CookieName == "" {
		return ErrMissingCookieName
	}

	if _, err := cron.ParseStandard(c.Server.SweepSchedule); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSweep, err)
	}

	if c.Server.FetchRateLimit != "" {
		if _, err := limiter.NewRateFromFormatted(c.Server.FetchRateLimit); err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidRateLimit, c.Server.FetchRateLimit)
		}
	}

	if c.Chat.Enabled {
		if c.Chat.Model == "" {
			return ErrMissingChatModel
		}

		if c.Chat.MaxHistory < 2 {
			return ErrInvalidMaxHistory
		}

		if c.Chat.TimeoutSec < 1 {
			return ErrInvalidChatTime
		}
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return ErrMissingMetrics
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return ErrInvalidLogLevel
	}

	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return ErrInvalidLogFormat
	}

	return nil
}

// Validate checks the upstream request settings.
func (e *EdgarConfig) Validate() error {
	if e.Endpoint == "" {
		return ErrMissingEndpoint
	}

	if !utils.NewHTTPHelper(nil).IsValidURL(e.Endpoint) {
		return fmt.Errorf("%w: %q", ErrInvalidEndpoint, e.Endpoint)
	}

	if e.Forms == "" {
		return ErrMissingForms
	}

	if e.BrowseURL == "" {
		return ErrMissingBrowseURL
	}

	if e.UserAgent == "" {
		return ErrMissingUserAgent
	}

	if e.TimeoutSec < 1 || e.TimeoutSec > 300 {
		return ErrInvalidTimeout
	}

	if e.MaxBodyKb < 1 {
		return ErrInvalidMaxBody
	}

	return nil
}

// GetTimeout returns the upstream request timeout.
func (e *EdgarConfig) GetTimeout() time.Duration {
	return time.Duration(e.TimeoutSec) * time.Second
}

// GetMaxBodyBytes returns the response body read limit in bytes.
func (e *EdgarConfig) GetMaxBodyBytes() int64 {
	return int64(e.MaxBodyKb) * 1024
}

// GetTimeout returns the chat completion timeout.
func (c *ChatConfig) GetTimeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// String returns a string representation of the config.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Endpoint: %s, Forms: %s, Addr: %s, Chat: %t, Metrics: %t}",
		c.Edgar.Endpoint,
		c.Edgar.Forms,
		c.Server.Addr,
		c.Chat.Enabled,
		c.Metrics.Enabled,
	)
}
