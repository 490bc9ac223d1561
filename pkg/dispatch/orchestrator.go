// Package dispatch fans one captured event out to every eligible destination
// and collects the delivery outcomes into a report.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/kart-io/errmonitor/pkg/destination"
	"github.com/kart-io/errmonitor/pkg/errors"
	"github.com/kart-io/errmonitor/pkg/event"
	"github.com/kart-io/errmonitor/pkg/logger"
	"github.com/kart-io/errmonitor/pkg/message"
	"github.com/kart-io/errmonitor/pkg/platform"
	"github.com/kart-io/errmonitor/pkg/receipt"
	"github.com/kart-io/errmonitor/pkg/tracing"
)

// Orchestrator routes events to gateways
type Orchestrator struct {
	registry *platform.Registry
	logger   logger.Logger
	tracer   trace.Tracer
	limits   message.StackLimits
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithLogger sets the logger
func WithLogger(l logger.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger.OrDiscard(l) }
}

// WithTracer sets the tracer used for dispatch and send spans
func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithStackLimits bounds rendered stack traces
func WithStackLimits(l message.StackLimits) Option {
	return func(o *Orchestrator) { o.limits = l }
}

// New creates an Orchestrator over registry
func New(registry *platform.Registry, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry: registry,
		logger:   logger.Discard,
		tracer:   noop.NewTracerProvider().Tracer(tracing.InstrumentationName),
		limits:   message.DefaultStackLimits,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Registry returns the gateway registry
func (o *Orchestrator) Registry() *platform.Registry { return o.registry }

// Route pairs a destination with one gateway that serves it
type Route struct {
	Destination destination.Config
	Gateway     platform.Gateway
}

// Routes returns the (destination, gateway) pairs ev would be sent to, in
// dispatch order.
func (o *Orchestrator) Routes(ev *event.Event, dests []destination.Config) []Route {
	if ev == nil || o.registry == nil || !destination.AnyEnabled(dests) {
		return nil
	}
	level := ev.Level()

	var routes []Route
	for _, dest := range dests {
		if !dest.Eligible(level) {
			continue
		}
		gateways := o.registry.Match(dest)
		if len(gateways) == 0 {
			o.logger.Debug("No gateway supports destination", "destination", dest.DisplayName(), "kind", dest.ResolvedKind())
			continue
		}
		for _, g := range gateways {
			routes = append(routes, Route{Destination: dest, Gateway: g})
		}
	}
	return routes
}

// Process starts dispatching ev to dests and returns immediately. Sends run
// concurrently; the returned Pending completes once every send has finished.
func (o *Orchestrator) Process(ctx context.Context, ev *event.Event, dests []destination.Config) *Pending {
	routes := o.Routes(ev, dests)
	if len(routes) == 0 {
		var id string
		if ev != nil {
			id = ev.ID()
		}
		return completed(receipt.Empty(id))
	}

	start := time.Now()
	ctx, span := o.tracer.Start(ctx, "errmonitor.dispatch", trace.WithAttributes(
		attribute.String("event.id", ev.ID()),
		attribute.String("event.level", ev.Level().String()),
		attribute.Int("routes", len(routes)),
	))

	base := message.FromEvent(ev, o.limits)
	outcomes := make([]receipt.Outcome, len(routes))
	p := newPending()

	var wg sync.WaitGroup
	wg.Add(len(routes))
	for i, r := range routes {
		go func() {
			defer wg.Done()
			outcomes[i] = o.send(ctx, base, r)
		}()
	}

	go func() {
		wg.Wait()
		report := receipt.NewReport(ev.ID(), outcomes, time.Since(start))
		span.SetAttributes(
			attribute.Int("successful", report.Successful),
			attribute.Int("failed", report.Failed),
		)
		if report.Failed > 0 {
			tracing.SetErrorText(span, fmt.Sprintf("%d of %d sends failed", report.Failed, report.Total))
		} else {
			tracing.SetSuccess(span)
		}
		span.End()
		o.logger.Debug("Dispatch finished", "event_id", ev.ID(), "status", report.Status, "duration", report.Duration)
		p.complete(report)
	}()
	return p
}

func (o *Orchestrator) send(ctx context.Context, base message.Message, r Route) (out receipt.Outcome) {
	name := r.Destination.DisplayName()
	start := time.Now()

	ctx, span := o.tracer.Start(ctx, "errmonitor.send", trace.WithAttributes(
		attribute.String("gateway", r.Gateway.Name()),
		attribute.String("destination", name),
	))
	defer span.End()

	defer func() {
		if rec := recover(); rec != nil {
			err := errors.Newf(errors.ErrInternalError, "gateway panicked: %v", rec)
			o.logger.Error("Gateway panicked during send", "gateway", r.Gateway.Name(), "destination", name, "panic", fmt.Sprint(rec))
			tracing.SetError(span, err)
			out = receipt.Failure(name, r.Gateway.Name(), err).WithDuration(time.Since(start))
			out.Kind = string(r.Gateway.Kind())
		}
	}()

	out = r.Gateway.Send(ctx, base.Enrich(r.Destination), r.Destination.Endpoint)
	out.Destination = name
	out.Gateway = r.Gateway.Name()
	out.Kind = string(r.Gateway.Kind())

	if out.HasStatusCode() {
		span.SetAttributes(attribute.Int("status_code", out.StatusCode))
	}
	if out.Succeeded {
		tracing.SetSuccess(span)
	} else {
		tracing.SetErrorText(span, out.Error)
		o.logger.Warn("Notification delivery failed",
			"gateway", out.Gateway, "destination", name,
			"status_code", out.StatusCode, "error", out.Error)
	}
	return out
}
