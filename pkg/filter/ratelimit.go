package filter

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/kart-io/errmonitor/pkg/event"
	"github.com/kart-io/errmonitor/pkg/logger"
)

// RateLimitConfig bounds how many events are admitted
type RateLimitConfig struct {
	Enabled      bool `mapstructure:"enabled" json:"enabled" yaml:"enabled"`
	MaxPerMinute int  `mapstructure:"max_per_minute" json:"max_per_minute" yaml:"max_per_minute"`
	Burst        int  `mapstructure:"burst" json:"burst" yaml:"burst"`
}

// DefaultRateLimitConfig allows 10 events a minute with at most 5 in one second
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{MaxPerMinute: 10, Burst: 5}
}

// RateLimit is an in-process limiter combining a per-minute budget with a
// per-second burst budget. A negative limit disables that budget.
type RateLimit struct {
	minute *rate.Limiter
	second *rate.Limiter
}

// NewRateLimit creates a RateLimit from cfg
func NewRateLimit(cfg RateLimitConfig) *RateLimit {
	r := &RateLimit{}
	if cfg.MaxPerMinute >= 0 {
		r.minute = rate.NewLimiter(rate.Limit(float64(cfg.MaxPerMinute)/60), cfg.MaxPerMinute)
	}
	if cfg.Burst >= 0 {
		r.second = rate.NewLimiter(rate.Limit(cfg.Burst), cfg.Burst)
	}
	return r
}

func (r *RateLimit) ShouldReport(context.Context, *event.Event) (bool, string) {
	now := time.Now()

	// a rejection by the minute budget hands the burst token back
	var sec *rate.Reservation
	if r.second != nil {
		sec = r.second.ReserveN(now, 1)
		if !sec.OK() || sec.DelayFrom(now) > 0 {
			sec.CancelAt(now)
			return false, ReasonRateLimit
		}
	}
	if r.minute != nil && !r.minute.AllowN(now, 1) {
		if sec != nil {
			sec.CancelAt(now)
		}
		return false, ReasonRateLimit
	}
	return true, ""
}

// RedisRateLimit shares a fixed per-minute window across processes through
// Redis. Redis failures admit the event.
type RedisRateLimit struct {
	client       redis.Cmdable
	keyPrefix    string
	maxPerMinute int64
	logger       logger.Logger
	now          func() time.Time
}

// NewRedisRateLimit creates a limiter whose window keys are "<keyPrefix>:<unix minute>"
func NewRedisRateLimit(client redis.Cmdable, keyPrefix string, maxPerMinute int, l logger.Logger) *RedisRateLimit {
	if keyPrefix == "" {
		keyPrefix = "errmonitor:ratelimit"
	}
	return &RedisRateLimit{
		client:       client,
		keyPrefix:    keyPrefix,
		maxPerMinute: int64(maxPerMinute),
		logger:       logger.OrDiscard(l),
		now:          time.Now,
	}
}

func (r *RedisRateLimit) key() string {
	return fmt.Sprintf("%s:%d", r.keyPrefix, r.now().Unix()/60)
}

func (r *RedisRateLimit) ShouldReport(ctx context.Context, _ *event.Event) (bool, string) {
	if r.maxPerMinute < 0 {
		return true, ""
	}
	key := r.key()

	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		r.logger.Warn("Redis rate limit unavailable, admitting event", "error", err)
		return true, ""
	}
	if count == 1 {
		if err := r.client.Expire(ctx, key, 2*time.Minute).Err(); err != nil {
			r.logger.Warn("Failed to set rate limit window expiry", "key", key, "error", err)
		}
	}
	if count > r.maxPerMinute {
		return false, ReasonRateLimit
	}
	return true, ""
}
