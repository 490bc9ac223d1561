package config

import (
	"time"

	"github.com/kart-io/errmonitor/pkg/async"
	"github.com/kart-io/errmonitor/pkg/destination"
	"github.com/kart-io/errmonitor/pkg/filter"
	"github.com/kart-io/errmonitor/pkg/logger"
	"github.com/kart-io/errmonitor/pkg/tracing"
)

// WithDestination appends a destination
func WithDestination(d destination.Config) Option {
	return func(c *Config) error {
		c.Destinations = append(c.Destinations, d)
		return nil
	}
}

// WithWebhook appends an enabled destination for endpoint. The gateway kind
// is inferred from the endpoint host.
func WithWebhook(name, endpoint, applicationName string) Option {
	return WithDestination(destination.Config{
		Name:            name,
		Endpoint:        endpoint,
		ApplicationName: applicationName,
		Enabled:         true,
	})
}

// WithAsync enables background dispatch with the given executor settings
func WithAsync(cfg async.Config) Option {
	return func(c *Config) error {
		c.Async = AsyncConfig{Enabled: true, Config: cfg}
		return nil
	}
}

// WithSync disables background dispatch
func WithSync() Option {
	return func(c *Config) error {
		c.Async.Enabled = false
		return nil
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) error {
		c.HTTP.Timeout = timeout
		return nil
	}
}

// WithMaxRetries sets the maximum retry attempts per delivery
func WithMaxRetries(retries int) Option {
	return func(c *Config) error {
		c.HTTP.MaxRetries = retries
		return nil
	}
}

// WithStackTrace sets the stack trace bounds
func WithStackTrace(maxLines, maxChars int) Option {
	return func(c *Config) error {
		c.StackTrace = StackTraceConfig{MaxLines: maxLines, MaxChars: maxChars}
		return nil
	}
}

// WithFilter replaces the admission filter settings
func WithFilter(f filter.Config) Option {
	return func(c *Config) error {
		c.Filter = f
		return nil
	}
}

// WithRedis enables the shared rate limit on addr
func WithRedis(addr string) Option {
	return func(c *Config) error {
		c.Redis.Enabled = true
		c.Redis.Addr = addr
		return nil
	}
}

// WithMetrics selects the metrics backend
func WithMetrics(backend string) Option {
	return func(c *Config) error {
		c.Metrics.Backend = backend
		return nil
	}
}

// WithTelemetry sets the tracing configuration
func WithTelemetry(t tracing.Config) Option {
	return func(c *Config) error {
		c.Telemetry = t
		return nil
	}
}

// WithLogger sets the logger instance
func WithLogger(l logger.Logger) Option {
	return func(c *Config) error {
		c.LoggerInstance = l
		return nil
	}
}

// WithTestDefaults applies test-friendly defaults
func WithTestDefaults() Option {
	return func(c *Config) error {
		c.Async.Enabled = false
		c.HTTP.Timeout = 5 * time.Second
		c.HTTP.MaxRetries = 0
		c.Logger.Level = "debug"
		c.LoggerInstance = logger.Discard
		return nil
	}
}
