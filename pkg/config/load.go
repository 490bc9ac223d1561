package config

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/kart-io/errmonitor/pkg/errors"
)

// EnvPrefix prefixes every environment override, e.g. ERRMONITOR_ASYNC_ENABLED.
const EnvPrefix = "ERRMONITOR"

// Load reads configuration from the YAML file at path, when given, and from
// environment variables. Keys absent from both keep their defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, errors.ErrConfigLoadFailed, "failed to read config %s", path)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigLoadFailed, "failed to unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every default so environment overrides resolve
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("async.enabled", d.Async.Enabled)
	v.SetDefault("async.queue_capacity", d.Async.QueueCapacity)
	v.SetDefault("async.min_workers", d.Async.MinWorkers)
	v.SetDefault("async.max_workers", d.Async.MaxWorkers)
	v.SetDefault("async.idle_timeout", d.Async.IdleTimeout)
	v.SetDefault("async.shutdown_timeout", d.Async.ShutdownTimeout)
	v.SetDefault("async.shutdown_now_timeout", d.Async.ShutdownNowTimeout)

	v.SetDefault("destinations", []map[string]any{})

	v.SetDefault("stack_trace.max_lines", d.StackTrace.MaxLines)
	v.SetDefault("stack_trace.max_chars", d.StackTrace.MaxChars)

	v.SetDefault("http.timeout", d.HTTP.Timeout)
	v.SetDefault("http.max_retries", d.HTTP.MaxRetries)
	v.SetDefault("http.retry_base_delay", d.HTTP.RetryBaseDelay)
	v.SetDefault("http.retry_max_delay", d.HTTP.RetryMaxDelay)

	v.SetDefault("filter.minimum_level", d.Filter.MinimumLevel)
	v.SetDefault("filter.include_prefixes", []string{})
	v.SetDefault("filter.exclude_prefixes", []string{})
	v.SetDefault("filter.rate_limit.enabled", d.Filter.RateLimit.Enabled)
	v.SetDefault("filter.rate_limit.max_per_minute", d.Filter.RateLimit.MaxPerMinute)
	v.SetDefault("filter.rate_limit.burst", d.Filter.RateLimit.Burst)

	v.SetDefault("redis.enabled", d.Redis.Enabled)
	v.SetDefault("redis.addr", d.Redis.Addr)
	v.SetDefault("redis.password", d.Redis.Password)
	v.SetDefault("redis.db", d.Redis.DB)
	v.SetDefault("redis.key_prefix", d.Redis.KeyPrefix)

	v.SetDefault("metrics.backend", d.Metrics.Backend)
	v.SetDefault("metrics.namespace", d.Metrics.Namespace)

	v.SetDefault("telemetry.enabled", d.Telemetry.Enabled)
	v.SetDefault("telemetry.service_name", d.Telemetry.ServiceName)
	v.SetDefault("telemetry.otlp_endpoint", d.Telemetry.OTLPEndpoint)
	v.SetDefault("telemetry.insecure", d.Telemetry.Insecure)
	v.SetDefault("telemetry.sample_rate", d.Telemetry.SampleRate)

	v.SetDefault("logger.level", d.Logger.Level)
	v.SetDefault("logger.format", d.Logger.Format)

	v.SetDefault("nats.url", d.NATS.URL)
	v.SetDefault("nats.subject", d.NATS.Subject)
	v.SetDefault("nats.queue", d.NATS.Queue)
}
