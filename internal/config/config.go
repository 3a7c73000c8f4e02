// Package config loads the API and sources server settings from the
// environment. A .env file in the working directory is read first but
// never overrides variables that are already set.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Common holds the settings both servers share.
type Common struct {
	AppEnv    string `env:"APP_ENV" envDefault:"development"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"90s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Empty disables error reporting and trace export respectively.
	SentryDSN    string `env:"SENTRY_DSN"`
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

func (c *Common) IsDevelopment() bool { return c.AppEnv == "development" }

func (c *Common) IsProduction() bool { return c.AppEnv == "production" }

func (c *Common) validate() error {
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, strings.ToLower(c.LogLevel)) {
		return fmt.Errorf("LOG_LEVEL %q is not one of debug, info, warn, error", c.LogLevel)
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return fmt.Errorf("LOG_FORMAT %q is not json or text", c.LogFormat)
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("SHUTDOWN_TIMEOUT must be positive")
	}
	return nil
}

// Config is the API server's configuration.
type Config struct {
	Common

	AppPort int `env:"APP_PORT" envDefault:"8080"`

	// Base URL serving /analyze, /lighthouse and /analyze-meta-tags.
	SourcesBaseURL   string        `env:"SOURCES_BASE_URL,required"`
	SourceTimeout    time.Duration `env:"SOURCE_TIMEOUT" envDefault:"20s"`
	SourceMaxRetries int           `env:"SOURCE_MAX_RETRIES" envDefault:"1"`

	// Without Redis, history and rate limits live in process memory.
	RedisURL   string        `env:"REDIS_URL"`
	HistoryTTL time.Duration `env:"HISTORY_TTL" envDefault:"24h"`

	RateLimitEnabled     bool `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RateLimitRPS         int  `env:"RATE_LIMIT_RPS" envDefault:"20"`
	RateLimitBurst       int  `env:"RATE_LIMIT_BURST" envDefault:"40"`
	SubmissionsPerMinute int  `env:"RATE_LIMIT_SUBMISSIONS_PER_MINUTE" envDefault:"10"`
	SubmissionBurst      int  `env:"RATE_LIMIT_SUBMISSION_BURST" envDefault:"3"`

	// Comma separated, e.g. "https://dashboard.example.com,*.webpulse.dev".
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
	MaxRequestBodySize int64    `env:"MAX_REQUEST_BODY_SIZE" envDefault:"65536"`
}

// CORSOrigins returns the configured origins with blanks dropped.
func (c *Config) CORSOrigins() []string {
	var out []string
	for _, o := range c.CORSAllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// Validate checks constraints env tags cannot express.
func (c *Config) Validate() error {
	if err := c.Common.validate(); err != nil {
		return err
	}
	if c.SourceTimeout <= 0 {
		return fmt.Errorf("SOURCE_TIMEOUT must be positive, got %s", c.SourceTimeout)
	}
	if c.SourceMaxRetries < 0 {
		return fmt.Errorf("SOURCE_MAX_RETRIES must not be negative, got %d", c.SourceMaxRetries)
	}
	// A response is written only after the slowest source has settled.
	if c.WriteTimeout <= c.SourceTimeout {
		return fmt.Errorf("WRITE_TIMEOUT (%s) must exceed SOURCE_TIMEOUT (%s)", c.WriteTimeout, c.SourceTimeout)
	}
	if c.RateLimitEnabled && (c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0) {
		return errors.New("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	if c.MaxRequestBodySize <= 0 {
		return errors.New("MAX_REQUEST_BODY_SIZE must be positive")
	}
	return nil
}

// SourcesConfig is the sources server's configuration.
type SourcesConfig struct {
	Common

	Port int `env:"SOURCES_PORT" envDefault:"5000"`

	PageSpeedAPIURL   string  `env:"PAGESPEED_API_URL" envDefault:"https://www.googleapis.com/pagespeedonline/v5/runPagespeed"`
	PageSpeedAPIKey   string  `env:"PAGESPEED_API_KEY"`
	PageSpeedStrategy string  `env:"PAGESPEED_STRATEGY" envDefault:"mobile"`
	PageSpeedRPS      float64 `env:"PAGESPEED_RPS" envDefault:"2"`

	// OpenAI-compatible chat endpoint. Without an API key insights come
	// from a template over the page text.
	LLMBaseURL string `env:"LLM_BASE_URL" envDefault:"https://api.openai.com/v1"`
	LLMAPIKey  string `env:"LLM_API_KEY"`
	LLMModel   string `env:"LLM_MODEL" envDefault:"gpt-4o-mini"`
	LLMRPM     int    `env:"LLM_RPM" envDefault:"30"`
	LLMBurst   int    `env:"LLM_BURST" envDefault:"5"`

	FetchTimeout time.Duration `env:"FETCH_TIMEOUT" envDefault:"15s"`
}

func (c *SourcesConfig) Validate() error {
	if err := c.Common.validate(); err != nil {
		return err
	}
	if c.PageSpeedStrategy != "mobile" && c.PageSpeedStrategy != "desktop" {
		return fmt.Errorf("PAGESPEED_STRATEGY %q is not mobile or desktop", c.PageSpeedStrategy)
	}
	if c.PageSpeedRPS <= 0 {
		return errors.New("PAGESPEED_RPS must be positive")
	}
	if c.LLMRPM < 0 || c.LLMBurst < 0 {
		return errors.New("LLM_RPM and LLM_BURST must not be negative")
	}
	if c.FetchTimeout <= 0 {
		return errors.New("FETCH_TIMEOUT must be positive")
	}
	return nil
}

// Load returns the API server configuration.
func Load() (*Config, error) {
	return load[Config]()
}

// LoadSources returns the sources server configuration.
func LoadSources() (*SourcesConfig, error) {
	return load[SourcesConfig]()
}

type validated[T any] interface {
	*T
	Validate() error
}

func load[T any, PT validated[T]]() (*T, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := new(T)
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := PT(cfg).Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
