package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgresql://localhost/fabmarket_test")
	t.Setenv("ANALYSIS_WORKERS", "")
	t.Setenv("ANALYSIS_MAX_RETRIES", "")
	t.Setenv("ANALYSIS_RETRY_DELAY_SECONDS", "")
	t.Setenv("ANALYSIS_DISABLED_FORMATS", "")
	t.Setenv("PAYMENT_SUCCESS_TOKEN", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.AnalysisWorkers)
	assert.Equal(t, 3, cfg.AnalysisMaxRetries)
	assert.Equal(t, 60*time.Second, cfg.AnalysisRetryDelay)
	assert.Equal(t, time.Second, cfg.AnalysisPollInterval)
	assert.Empty(t, cfg.AnalysisDisabledFormats)
	assert.Equal(t, "valid_dummy_token", cfg.PaymentSuccessToken)
	assert.True(t, cfg.IsTest())
	assert.Same(t, cfg, GetConfig(), "Load should install the config")
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgresql://localhost/fabmarket_test")
	t.Setenv("ANALYSIS_WORKERS", "8")
	t.Setenv("ANALYSIS_RETRY_DELAY_SECONDS", "5")
	t.Setenv("ANALYSIS_DISABLED_FORMATS", " STEP, ,iges ")
	t.Setenv("OTEL_ENABLED", "yes")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.AnalysisWorkers)
	assert.Equal(t, 5*time.Second, cfg.AnalysisRetryDelay)
	assert.Equal(t, []string{"step", "iges"}, cfg.AnalysisDisabledFormats)
	assert.True(t, cfg.OtelEnabled)
}

func TestLoadInvalidIntegerFallsBack(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgresql://localhost/fabmarket_test")
	t.Setenv("ANALYSIS_MAX_RETRIES", "three")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.AnalysisMaxRetries)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			DatabaseURL:          "postgresql://localhost/x",
			AnalysisWorkers:      1,
			AnalysisMaxRetries:   3,
			AnalysisRetryDelay:   time.Minute,
			AnalysisPollInterval: time.Second,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing database url", mutate: func(c *Config) { c.DatabaseURL = "" }, wantErr: "DATABASE_URL is required"},
		{name: "no workers", mutate: func(c *Config) { c.AnalysisWorkers = 0 }, wantErr: "ANALYSIS_WORKERS must be at least 1"},
		{name: "negative retries", mutate: func(c *Config) { c.AnalysisMaxRetries = -1 }, wantErr: "ANALYSIS_MAX_RETRIES cannot be negative"},
		{name: "zero poll interval", mutate: func(c *Config) { c.AnalysisPollInterval = 0 }, wantErr: "ANALYSIS_POLL_INTERVAL_MS must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tt.wantErr)
		})
	}
}

func TestEnvironmentHelpers(t *testing.T) {
	cfg := &Config{GoEnv: "production"}
	assert.True(t, cfg.IsProduction())
	assert.False(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsTest())
}
