// Package tracing sets up the OpenTelemetry tracer provider used by the
// dispatch pipeline.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/kart-io/errmonitor/pkg/errors"
)

// InstrumentationName is the tracer and meter name used across the module.
const InstrumentationName = "github.com/kart-io/errmonitor"

// Config controls trace export
type Config struct {
	Enabled      bool              `mapstructure:"enabled" json:"enabled" yaml:"enabled"`
	ServiceName  string            `mapstructure:"service_name" json:"service_name" yaml:"service_name"`
	OTLPEndpoint string            `mapstructure:"otlp_endpoint" json:"otlp_endpoint" yaml:"otlp_endpoint"`
	OTLPHeaders  map[string]string `mapstructure:"otlp_headers" json:"otlp_headers" yaml:"otlp_headers"`
	Insecure     bool              `mapstructure:"insecure" json:"insecure" yaml:"insecure"`
	SampleRate   float64           `mapstructure:"sample_rate" json:"sample_rate" yaml:"sample_rate"`
}

// DefaultConfig returns tracing disabled with a local collector endpoint
func DefaultConfig() Config {
	return Config{
		ServiceName:  "errmonitor",
		OTLPEndpoint: "localhost:4318",
		Insecure:     true,
		SampleRate:   1.0,
	}
}

// Provider owns the tracer provider for the process
type Provider struct {
	tracer trace.Tracer
	sdk    *sdktrace.TracerProvider
}

// New builds a Provider. When cfg is disabled the provider hands out a noop
// tracer and Shutdown does nothing.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{tracer: noop.NewTracerProvider().Tracer(InstrumentationName)}, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(attribute.String("service.name", cfg.ServiceName)),
	)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrInvalidConfig, "create trace resource")
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.OTLPEndpoint)}
	if len(cfg.OTLPHeaders) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(cfg.OTLPHeaders))
	}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptrace.New(ctx, otlptracehttp.NewClient(opts...))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrInvalidConfig, "create trace exporter")
	}

	return NewWithExporter(res, exporter, cfg.SampleRate), nil
}

// NewWithExporter builds a Provider around an arbitrary span exporter and
// installs it as the global tracer provider.
func NewWithExporter(res *resource.Resource, exporter sdktrace.SpanExporter, sampleRate float64) *Provider {
	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampleRate))),
	}
	if res != nil {
		tpOpts = append(tpOpts, sdktrace.WithResource(res))
	}
	sdk := sdktrace.NewTracerProvider(tpOpts...)

	otel.SetTracerProvider(sdk)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return &Provider{tracer: sdk.Tracer(InstrumentationName), sdk: sdk}
}

// Tracer returns the tracer for dispatch spans
func (p *Provider) Tracer() trace.Tracer { return p.tracer }

// Shutdown flushes pending spans
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.sdk == nil {
		return nil
	}
	return p.sdk.Shutdown(ctx)
}

// SetError records err on span
func SetError(span trace.Span, err error) {
	if span != nil && err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetErrorText marks span failed with a message
func SetErrorText(span trace.Span, msg string) {
	if span != nil {
		span.SetStatus(codes.Error, msg)
	}
}

// SetSuccess marks span ok
func SetSuccess(span trace.Span) {
	if span != nil {
		span.SetStatus(codes.Ok, "")
	}
}
