// Package config provides the errmonitor configuration and its loaders
package config

import (
	"time"

	"github.com/kart-io/errmonitor/pkg/async"
	"github.com/kart-io/errmonitor/pkg/destination"
	"github.com/kart-io/errmonitor/pkg/errors"
	"github.com/kart-io/errmonitor/pkg/filter"
	"github.com/kart-io/errmonitor/pkg/logger"
	"github.com/kart-io/errmonitor/pkg/message"
	"github.com/kart-io/errmonitor/pkg/tracing"
)

// Metrics backends
const (
	MetricsNoop       = "noop"
	MetricsOTel       = "otel"
	MetricsPrometheus = "prometheus"
)

// Config represents the unified configuration structure
type Config struct {
	Async        AsyncConfig          `mapstructure:"async" json:"async" yaml:"async"`
	Destinations []destination.Config `mapstructure:"destinations" json:"destinations" yaml:"destinations"`
	StackTrace   StackTraceConfig     `mapstructure:"stack_trace" json:"stack_trace" yaml:"stack_trace"`
	HTTP         HTTPConfig           `mapstructure:"http" json:"http" yaml:"http"`
	Filter       filter.Config        `mapstructure:"filter" json:"filter" yaml:"filter"`
	Redis        RedisConfig          `mapstructure:"redis" json:"redis" yaml:"redis"`
	Metrics      MetricsConfig        `mapstructure:"metrics" json:"metrics" yaml:"metrics"`
	Telemetry    tracing.Config       `mapstructure:"telemetry" json:"telemetry" yaml:"telemetry"`
	Logger       LoggerConfig         `mapstructure:"logger" json:"logger" yaml:"logger"`
	NATS         NATSConfig           `mapstructure:"nats" json:"nats" yaml:"nats"`

	// Instance-level settings
	LoggerInstance logger.Logger `mapstructure:"-" json:"-" yaml:"-"`
}

// AsyncConfig configures background dispatch
type AsyncConfig struct {
	Enabled      bool `mapstructure:"enabled" json:"enabled" yaml:"enabled"`
	async.Config `mapstructure:",squash" yaml:",inline"`
}

// StackTraceConfig bounds rendered stack traces
type StackTraceConfig struct {
	MaxLines int `mapstructure:"max_lines" json:"max_lines" yaml:"max_lines"`
	MaxChars int `mapstructure:"max_chars" json:"max_chars" yaml:"max_chars"`
}

// Limits converts the section to message limits
func (s StackTraceConfig) Limits() message.StackLimits {
	return message.StackLimits{MaxLines: s.MaxLines, MaxChars: s.MaxChars}
}

// HTTPConfig configures the webhook transport shared by all gateways
type HTTPConfig struct {
	Timeout        time.Duration `mapstructure:"timeout" json:"timeout" yaml:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries" json:"max_retries" yaml:"max_retries"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay" json:"retry_base_delay" yaml:"retry_base_delay"`
	RetryMaxDelay  time.Duration `mapstructure:"retry_max_delay" json:"retry_max_delay" yaml:"retry_max_delay"`
}

// RetryPolicy returns the gateway retry policy. Zero retries means a single attempt.
func (h HTTPConfig) RetryPolicy() errors.RetryPolicy {
	if h.MaxRetries <= 0 {
		return errors.NoRetry
	}
	return errors.NewExponentialBackoffPolicy(h.RetryBaseDelay, h.RetryMaxDelay, h.MaxRetries)
}

// RedisConfig enables the cluster-wide rate limit
type RedisConfig struct {
	Enabled   bool   `mapstructure:"enabled" json:"enabled" yaml:"enabled"`
	Addr      string `mapstructure:"addr" json:"addr" yaml:"addr"`
	Password  string `mapstructure:"password" json:"-" yaml:"password"`
	DB        int    `mapstructure:"db" json:"db" yaml:"db"`
	KeyPrefix string `mapstructure:"key_prefix" json:"key_prefix" yaml:"key_prefix"`
}

// MetricsConfig selects the metrics backend
type MetricsConfig struct {
	Backend   string `mapstructure:"backend" json:"backend" yaml:"backend"`
	Namespace string `mapstructure:"namespace" json:"namespace" yaml:"namespace"`
}

// LoggerConfig configures logging behavior
type LoggerConfig struct {
	Level  string `mapstructure:"level" json:"level" yaml:"level"`
	Format string `mapstructure:"format" json:"format" yaml:"format"`
}

// NATSConfig configures the NATS capture source
type NATSConfig struct {
	URL     string `mapstructure:"url" json:"url" yaml:"url"`
	Subject string `mapstructure:"subject" json:"subject" yaml:"subject"`
	Queue   string `mapstructure:"queue" json:"queue" yaml:"queue"`
}

// Default returns the configuration used when nothing is overridden
func Default() *Config {
	return &Config{
		Async:      AsyncConfig{Config: async.DefaultConfig()},
		StackTrace: StackTraceConfig{MaxLines: message.DefaultStackLimits.MaxLines, MaxChars: message.DefaultStackLimits.MaxChars},
		HTTP: HTTPConfig{
			Timeout:        10 * time.Second,
			RetryBaseDelay: 500 * time.Millisecond,
			RetryMaxDelay:  5 * time.Second,
		},
		Filter:    filter.Config{RateLimit: filter.DefaultRateLimitConfig()},
		Redis:     RedisConfig{Addr: "localhost:6379", KeyPrefix: "errmonitor:ratelimit"},
		Metrics:   MetricsConfig{Backend: MetricsNoop, Namespace: "errmonitor"},
		Telemetry: tracing.DefaultConfig(),
		Logger:    LoggerConfig{Level: "warn", Format: "text"},
		NATS:      NATSConfig{URL: "nats://localhost:4222", Subject: "errmonitor.events"},
	}
}

// Option defines a functional option for configuration
type Option func(*Config) error

// New creates a configuration from the defaults and the given options
func New(opts ...Option) (*Config, error) {
	cfg := Default()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// EnabledDestinations returns the number of enabled destinations
func (c *Config) EnabledDestinations() int {
	n := 0
	for _, d := range c.Destinations {
		if d.Enabled {
			n++
		}
	}
	return n
}

// Log returns the injected logger instance, or a discarding one.
func (c *Config) Log() logger.Logger {
	return logger.OrDiscard(c.LoggerInstance)
}
