package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SOURCES_BASE_URL", "http://localhost:5000")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:5000", cfg.SourcesBaseURL)
	assert.Equal(t, 8080, cfg.AppPort)
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 20*time.Second, cfg.SourceTimeout)
	assert.Equal(t, 1, cfg.SourceMaxRetries)
	assert.Equal(t, 24*time.Hour, cfg.HistoryTTL)
	assert.Empty(t, cfg.RedisURL)
	assert.Empty(t, cfg.CORSOrigins())
	assert.EqualValues(t, 65536, cfg.MaxRequestBodySize)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("SOURCES_BASE_URL", "http://sources:5000")
	t.Setenv("APP_ENV", "production")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("HISTORY_TTL", "2h")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example.com, ,*.webpulse.dev ")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "redis://localhost:6379", cfg.RedisURL)
	assert.Equal(t, 2*time.Hour, cfg.HistoryTTL)
	assert.Equal(t, []string{"https://a.example.com", "*.webpulse.dev"}, cfg.CORSOrigins())
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"missing sources url", map[string]string{}, "SOURCES_BASE_URL"},
		{"write shorter than source", map[string]string{"SOURCE_TIMEOUT": "2m", "WRITE_TIMEOUT": "1m"}, "WRITE_TIMEOUT"},
		{"negative retries", map[string]string{"SOURCE_MAX_RETRIES": "-1"}, "SOURCE_MAX_RETRIES"},
		{"bad log level", map[string]string{"LOG_LEVEL": "verbose"}, "LOG_LEVEL"},
		{"bad log format", map[string]string{"LOG_FORMAT": "xml"}, "LOG_FORMAT"},
		{"zero rps", map[string]string{"RATE_LIMIT_RPS": "0"}, "RATE_LIMIT_RPS"},
		{"malformed duration", map[string]string{"SOURCE_TIMEOUT": "soon"}, "parse config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.name == "missing sources url" {
				t.Setenv("SOURCES_BASE_URL", "")
				os.Unsetenv("SOURCES_BASE_URL")
			} else {
				t.Setenv("SOURCES_BASE_URL", "http://localhost:5000")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_RateLimitDisabledSkipsChecks(t *testing.T) {
	t.Setenv("SOURCES_BASE_URL", "http://localhost:5000")
	t.Setenv("RATE_LIMIT_ENABLED", "false")
	t.Setenv("RATE_LIMIT_RPS", "0")

	_, err := Load()
	assert.NoError(t, err)
}

func TestLoadSources(t *testing.T) {
	cfg, err := LoadSources()
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Port)
	assert.Equal(t, "mobile", cfg.PageSpeedStrategy)
	assert.Equal(t, 15*time.Second, cfg.FetchTimeout)
	assert.Equal(t, "gpt-4o-mini", cfg.LLMModel)
	assert.Empty(t, cfg.LLMAPIKey)

	t.Setenv("PAGESPEED_STRATEGY", "tablet")
	_, err = LoadSources()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PAGESPEED_STRATEGY")
}
