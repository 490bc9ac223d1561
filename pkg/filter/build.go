package filter

import (
	"github.com/redis/go-redis/v9"

	"github.com/kart-io/errmonitor/pkg/event"
	"github.com/kart-io/errmonitor/pkg/logger"
)

// Config selects the admission filters
type Config struct {
	MinimumLevel    string          `mapstructure:"minimum_level" json:"minimum_level" yaml:"minimum_level"`
	IncludePrefixes []string        `mapstructure:"include_prefixes" json:"include_prefixes" yaml:"include_prefixes"`
	ExcludePrefixes []string        `mapstructure:"exclude_prefixes" json:"exclude_prefixes" yaml:"exclude_prefixes"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit" json:"rate_limit" yaml:"rate_limit"`
}

// Build assembles the chain described by cfg. When rdb is non-nil the rate
// limit is shared through Redis under keyPrefix instead of kept in process.
func Build(cfg Config, rdb redis.Cmdable, keyPrefix string, l logger.Logger) Filter {
	var chain Chain
	if cfg.MinimumLevel != "" {
		chain = append(chain, Level{Minimum: event.ParseLevel(cfg.MinimumLevel)})
	}
	if len(cfg.IncludePrefixes) > 0 || len(cfg.ExcludePrefixes) > 0 {
		chain = append(chain, Prefix{Include: cfg.IncludePrefixes, Exclude: cfg.ExcludePrefixes})
	}
	if cfg.RateLimit.Enabled {
		if rdb != nil {
			chain = append(chain, NewRedisRateLimit(rdb, keyPrefix, cfg.RateLimit.MaxPerMinute, l))
		} else {
			chain = append(chain, NewRateLimit(cfg.RateLimit))
		}
	}
	if len(chain) == 0 {
		return AllowAll
	}
	return chain
}
