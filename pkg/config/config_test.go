package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/errmonitor/pkg/async"
	"github.com/kart-io/errmonitor/pkg/destination"
	"github.com/kart-io/errmonitor/pkg/errors"
	"github.com/kart-io/errmonitor/pkg/logger"
)

func TestNew_Defaults(t *testing.T) {
	cfg, err := New()
	require.NoError(t, err)

	assert.False(t, cfg.Async.Enabled)
	assert.Equal(t, 256, cfg.Async.QueueCapacity)
	assert.Equal(t, 1, cfg.Async.MinWorkers)
	assert.Equal(t, 4, cfg.Async.MaxWorkers)
	assert.Equal(t, 60*time.Second, cfg.Async.IdleTimeout)
	assert.Equal(t, 10*time.Second, cfg.Async.ShutdownTimeout)
	assert.Equal(t, 5*time.Second, cfg.Async.ShutdownNowTimeout)
	assert.Equal(t, 20, cfg.StackTrace.MaxLines)
	assert.Equal(t, 2000, cfg.StackTrace.MaxChars)
	assert.Equal(t, 10*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, 10, cfg.Filter.RateLimit.MaxPerMinute)
	assert.Equal(t, 5, cfg.Filter.RateLimit.Burst)
	assert.Equal(t, MetricsNoop, cfg.Metrics.Backend)
	assert.Empty(t, cfg.Destinations)
	assert.Equal(t, logger.Discard, cfg.Log())
}

func TestNew_Options(t *testing.T) {
	cfg, err := New(
		WithWebhook("ops", "https://hooks.slack.com/services/T/B/x", "billing"),
		WithAsync(async.Config{QueueCapacity: 8, MinWorkers: 2, MaxWorkers: 2}),
		WithMaxRetries(3),
		WithStackTrace(5, 500),
		WithMetrics(MetricsPrometheus),
	)
	require.NoError(t, err)

	require.Len(t, cfg.Destinations, 1)
	assert.Equal(t, destination.KindSlack, cfg.Destinations[0].ResolvedKind())
	assert.Equal(t, 1, cfg.EnabledDestinations())
	assert.True(t, cfg.Async.Enabled)
	assert.Equal(t, 8, cfg.Async.QueueCapacity)
	assert.Equal(t, 4, cfg.HTTP.RetryPolicy().MaxAttempts())
	assert.Equal(t, 5, cfg.StackTrace.Limits().MaxLines)
}

func TestHTTPConfig_RetryPolicy(t *testing.T) {
	assert.Equal(t, errors.NoRetry, HTTPConfig{}.RetryPolicy())
	p := HTTPConfig{MaxRetries: 2, RetryBaseDelay: time.Millisecond, RetryMaxDelay: time.Second}.RetryPolicy()
	assert.Equal(t, 3, p.MaxAttempts())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
		code errors.Code
	}{
		{"negative capacity", WithAsync(async.Config{QueueCapacity: -1, MinWorkers: 1, MaxWorkers: 1}), errors.ErrInvalidConfig},
		{"no min workers", WithAsync(async.Config{QueueCapacity: 1, MinWorkers: 0, MaxWorkers: 1}), errors.ErrInvalidConfig},
		{"max below min", WithAsync(async.Config{QueueCapacity: 1, MinWorkers: 3, MaxWorkers: 2}), errors.ErrInvalidConfig},
		{"negative retries", WithMaxRetries(-1), errors.ErrInvalidConfig},
		{"unknown backend", WithMetrics("statsd"), errors.ErrConfigValidation},
		{"empty endpoint", WithDestination(destination.Config{Name: "x", Enabled: true}), errors.ErrConfigValidation},
		{"redis without addr", func(c *Config) error { c.Redis = RedisConfig{Enabled: true}; return nil }, errors.ErrMissingConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opt)
			require.Error(t, err)
			code, ok := errors.CodeOf(err)
			require.True(t, ok)
			assert.Equal(t, tt.code, code)
		})
	}
}

const sampleYAML = `
async:
  enabled: true
  queue_capacity: 64
  idle_timeout: 30s
destinations:
  - name: ops
    endpoint: https://hooks.slack.com/services/T/B/secret
    application_name: billing
    environment: prod
    minimum_level: WARN
    enabled: true
    additional_properties:
      team: payments
  - name: audit
    kind: webhook
    endpoint: https://audit.example.com/hook
    enabled: false
http:
  max_retries: 2
metrics:
  backend: otel
filter:
  exclude_prefixes: [com.acme.noisy]
`

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "errmonitor.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.Async.Enabled)
	assert.Equal(t, 64, cfg.Async.QueueCapacity)
	assert.Equal(t, 30*time.Second, cfg.Async.IdleTimeout)
	assert.Equal(t, 4, cfg.Async.MaxWorkers, "unset keys keep defaults")
	assert.Equal(t, 2, cfg.HTTP.MaxRetries)
	assert.Equal(t, MetricsOTel, cfg.Metrics.Backend)
	assert.Equal(t, []string{"com.acme.noisy"}, cfg.Filter.ExcludePrefixes)

	require.Len(t, cfg.Destinations, 2)
	ops := cfg.Destinations[0]
	assert.Equal(t, "billing", ops.ApplicationName)
	assert.Equal(t, "WARN", ops.MinimumLevel)
	assert.True(t, ops.Enabled)
	assert.Equal(t, "payments", ops.AdditionalProperties["team"])
	assert.Equal(t, destination.KindWebhook, cfg.Destinations[1].Kind)
	assert.Equal(t, 1, cfg.EnabledDestinations())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ERRMONITOR_ASYNC_MAX_WORKERS", "8")
	t.Setenv("ERRMONITOR_HTTP_TIMEOUT", "3s")
	t.Setenv("ERRMONITOR_LOGGER_FORMAT", "json")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Async.MaxWorkers)
	assert.Equal(t, 3*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, "json", cfg.Logger.Format)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	code, _ := errors.CodeOf(err)
	assert.Equal(t, errors.ErrConfigLoadFailed, code)

	t.Setenv("ERRMONITOR_METRICS_BACKEND", "statsd")
	_, err = Load("")
	code, _ = errors.CodeOf(err)
	assert.Equal(t, errors.ErrConfigValidation, code)
}
