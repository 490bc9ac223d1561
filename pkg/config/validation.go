package config

import (
	"strings"

	"github.com/kart-io/errmonitor/pkg/errors"
)

// Validate checks the configuration. An empty destination list is valid;
// the appender degrades to a no-op instead.
func (c *Config) Validate() error {
	a := c.Async.Config
	if a.QueueCapacity < 0 {
		return errors.Newf(errors.ErrInvalidConfig, "async.queue_capacity must not be negative, got %d", a.QueueCapacity)
	}
	if a.MinWorkers < 1 {
		return errors.Newf(errors.ErrInvalidConfig, "async.min_workers must be at least 1, got %d", a.MinWorkers)
	}
	if a.MaxWorkers < a.MinWorkers {
		return errors.Newf(errors.ErrInvalidConfig, "async.max_workers (%d) must not be below async.min_workers (%d)",
			a.MaxWorkers, a.MinWorkers)
	}
	if a.IdleTimeout < 0 || a.ShutdownTimeout < 0 || a.ShutdownNowTimeout < 0 {
		return errors.New(errors.ErrInvalidConfig, "async timeouts must not be negative")
	}

	if c.HTTP.Timeout < 0 {
		return errors.New(errors.ErrInvalidConfig, "http.timeout must not be negative")
	}
	if c.HTTP.MaxRetries < 0 {
		return errors.Newf(errors.ErrInvalidConfig, "http.max_retries must not be negative, got %d", c.HTTP.MaxRetries)
	}

	switch strings.ToLower(c.Metrics.Backend) {
	case "", MetricsNoop, MetricsOTel, MetricsPrometheus:
	default:
		return errors.Newf(errors.ErrConfigValidation, "unknown metrics backend %q", c.Metrics.Backend)
	}

	switch strings.ToLower(c.Logger.Format) {
	case "", "text", "json":
	default:
		return errors.Newf(errors.ErrConfigValidation, "unknown logger format %q", c.Logger.Format)
	}

	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		return errors.Newf(errors.ErrConfigValidation, "telemetry.sample_rate must be within [0, 1], got %v", c.Telemetry.SampleRate)
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return errors.New(errors.ErrMissingConfig, "redis.addr is required when redis is enabled")
	}

	for i, d := range c.Destinations {
		if strings.TrimSpace(d.Endpoint) == "" {
			return errors.Newf(errors.ErrConfigValidation, "destinations[%d] (%s) has an empty endpoint", i, d.Name)
		}
	}
	return nil
}
