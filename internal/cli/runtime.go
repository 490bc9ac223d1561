package cli

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"

	"github.com/kart-io/errmonitor/pkg/appender"
	"github.com/kart-io/errmonitor/pkg/config"
	"github.com/kart-io/errmonitor/pkg/dispatch"
	"github.com/kart-io/errmonitor/pkg/filter"
	"github.com/kart-io/errmonitor/pkg/logger"
	"github.com/kart-io/errmonitor/pkg/metrics"
	"github.com/kart-io/errmonitor/pkg/monitor"
	"github.com/kart-io/errmonitor/pkg/platform"
	"github.com/kart-io/errmonitor/pkg/platforms/slack"
	"github.com/kart-io/errmonitor/pkg/platforms/teams"
	"github.com/kart-io/errmonitor/pkg/platforms/webhook"
	"github.com/kart-io/errmonitor/pkg/tracing"
)

// pipeline is the fully wired dispatch stack for one command invocation
type pipeline struct {
	cfg    *config.Config
	logger logger.Logger

	registry     *platform.Registry
	orchestrator *dispatch.Orchestrator
	appender     *appender.Appender
	monitor      *monitor.Monitor

	memory     *metrics.Memory
	prometheus *metrics.Prometheus
	tracer     *tracing.Provider
	redis      *redis.Client
}

func newLogger(cfg config.LoggerConfig, out io.Writer) logger.Logger {
	if out == nil {
		out = os.Stderr
	}
	if strings.EqualFold(cfg.Format, "text") || cfg.Format == "" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}
	zl := zerolog.New(out).With().Timestamp().Str("app", "errmonitor").Logger()
	return logger.NewZerolog(zl).LogMode(logger.ParseLevel(cfg.Level))
}

func newPipeline(ctx context.Context, cfg *config.Config, l logger.Logger) (*pipeline, error) {
	p := &pipeline{cfg: cfg, logger: l, memory: metrics.NewMemory()}

	observer, err := p.observer()
	if err != nil {
		return nil, err
	}

	p.tracer, err = tracing.New(ctx, cfg.Telemetry)
	if err != nil {
		return nil, err
	}

	poster := platform.NewPoster(
		platform.WithTimeout(cfg.HTTP.Timeout),
		platform.WithRetryPolicy(cfg.HTTP.RetryPolicy()),
		platform.WithPosterLogger(l),
	)
	p.registry = platform.NewRegistry(l)
	if err := p.registry.Register(
		slack.New(slack.WithPoster(poster), slack.WithLogger(l)),
		teams.New(teams.WithPoster(poster), teams.WithLogger(l)),
		webhook.New(webhook.WithPoster(poster), webhook.WithLogger(l)),
	); err != nil {
		return nil, err
	}

	p.orchestrator = dispatch.New(p.registry,
		dispatch.WithLogger(l),
		dispatch.WithTracer(p.tracer.Tracer()),
		dispatch.WithStackLimits(cfg.StackTrace.Limits()),
	)

	appOpts := []appender.Option{
		appender.WithLogger(l),
		appender.WithObserver(metrics.ReportRecorder{Observer: observer}),
	}
	if cfg.Async.Enabled {
		appOpts = append(appOpts, appender.WithAsync(cfg.Async.Config, metrics.ExecutorOptions(observer)...))
	}
	p.appender = appender.New(p.orchestrator, cfg.Destinations, appOpts...)

	var rdb redis.Cmdable
	if cfg.Redis.Enabled {
		p.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := p.redis.Ping(ctx).Err(); err != nil {
			l.Warn("Redis unreachable, rate limit fails open until it recovers", "addr", cfg.Redis.Addr, "error", err)
		}
		rdb = p.redis
	}

	p.monitor = monitor.New(p.appender,
		monitor.WithFilter(filter.Build(cfg.Filter, rdb, cfg.Redis.KeyPrefix, l)),
		monitor.WithMetrics(observer),
		monitor.WithLogger(l),
	)
	return p, nil
}

// observer combines the in-process totals with the configured backend
func (p *pipeline) observer() (metrics.Observer, error) {
	switch strings.ToLower(p.cfg.Metrics.Backend) {
	case config.MetricsPrometheus:
		p.prometheus = metrics.NewPrometheus(p.cfg.Metrics.Namespace)
		return metrics.Multi{p.memory, p.prometheus}, nil
	case config.MetricsOTel:
		o, err := metrics.NewOTel(otel.GetMeterProvider().Meter(tracing.InstrumentationName))
		if err != nil {
			return nil, err
		}
		return metrics.Multi{p.memory, o}, nil
	default:
		return p.memory, nil
	}
}

// close stops the appender, then flushes traces and releases Redis.
func (p *pipeline) close(ctx context.Context) {
	if err := p.appender.Stop(ctx); err != nil {
		p.logger.Warn("Appender stop incomplete", "error", err)
	}
	if err := p.tracer.Shutdown(ctx); err != nil {
		p.logger.Warn("Tracer shutdown failed", "error", err)
	}
	if p.redis != nil {
		_ = p.redis.Close()
	}
}
