// Package monitor reports Go errors and panics into the notification
// pipeline. Every report is counted, passed through the admission filter and
// then handed to the appender.
package monitor

import (
	"context"
	"fmt"
	"maps"
	"runtime/debug"

	"github.com/kart-io/errmonitor/pkg/appender"
	"github.com/kart-io/errmonitor/pkg/event"
	"github.com/kart-io/errmonitor/pkg/filter"
	"github.com/kart-io/errmonitor/pkg/logger"
	"github.com/kart-io/errmonitor/pkg/metrics"
)

// Option configures a Monitor
type Option func(*Monitor)

// WithFilter sets the admission filter
func WithFilter(f filter.Filter) Option {
	return func(m *Monitor) {
		if f != nil {
			m.filter = f
		}
	}
}

// WithMetrics sets the metrics observer
func WithMetrics(o metrics.Observer) Option {
	return func(m *Monitor) { m.metrics = metrics.OrNoop(o) }
}

// WithLogger sets the logger
func WithLogger(l logger.Logger) Option {
	return func(m *Monitor) { m.logger = logger.OrDiscard(l) }
}

// WithDefaultSource names the source used when a report does not set one
func WithDefaultSource(name string) Option {
	return func(m *Monitor) { m.source = name }
}

// Monitor is the capture boundary for application code
type Monitor struct {
	appender *appender.Appender
	filter   filter.Filter
	metrics  metrics.Observer
	logger   logger.Logger
	source   string
}

// New creates a Monitor feeding a
func New(a *appender.Appender, opts ...Option) *Monitor {
	m := &Monitor{
		appender: a,
		filter:   filter.AllowAll,
		metrics:  metrics.Noop,
		logger:   logger.Discard,
		source:   "errmonitor",
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ReportOption adjusts a single report
type ReportOption func(*report)

type report struct {
	source  string
	level   string
	message string
	thread  string
	props   map[string]string
	noStack bool
}

// WithSource names the component the error came from
func WithSource(name string) ReportOption {
	return func(r *report) { r.source = name }
}

// WithLevel overrides the ERROR default
func WithLevel(level event.Level) ReportOption {
	return func(r *report) { r.level = level.String() }
}

// WithMessage replaces the error text as the notification content
func WithMessage(msg string) ReportOption {
	return func(r *report) { r.message = msg }
}

// WithThread records the execution context, e.g. a worker or request id
func WithThread(name string) ReportOption {
	return func(r *report) { r.thread = name }
}

// WithProperty adds one context property
func WithProperty(key, value string) ReportOption {
	return func(r *report) { r.props[key] = value }
}

// WithProperties adds context properties
func WithProperties(props map[string]string) ReportOption {
	return func(r *report) { maps.Copy(r.props, props) }
}

// WithoutStack skips capturing the goroutine stack
func WithoutStack() ReportOption {
	return func(r *report) { r.noStack = true }
}

// Report captures err with the current goroutine stack and submits it.
// It returns whether the event passed the admission filter.
func (m *Monitor) Report(ctx context.Context, err error, opts ...ReportOption) bool {
	if err == nil {
		return false
	}
	r := report{source: m.source, level: event.LevelError.String(), props: make(map[string]string)}
	for _, opt := range opts {
		opt(&r)
	}
	msg := r.message
	if msg == "" {
		msg = err.Error()
	}
	f := event.Fields{
		Level:      r.level,
		Message:    msg,
		Cause:      err,
		LoggerName: r.source,
		Thread:     r.thread,
		Properties: r.props,
	}
	if !r.noStack {
		f.Stack = string(debug.Stack())
	}
	return m.Submit(ctx, event.New(f))
}

// Submit counts ev, applies the admission filter and appends it.
func (m *Monitor) Submit(ctx context.Context, ev *event.Event) bool {
	if ev == nil {
		return false
	}
	m.metrics.RecordError(ev.Level().String(), ev.LoggerName())

	if ok, reason := m.filter.ShouldReport(ctx, ev); !ok {
		m.metrics.RecordFiltered(reason)
		m.logger.Debug("Event filtered", "event_id", ev.ID(), "reason", reason)
		return false
	}
	if m.appender != nil {
		m.appender.Append(ctx, ev)
	}
	return true
}

// Recover reports a recovered panic at ERROR and absorbs it. It must be
// deferred directly:
//
//	defer m.Recover(ctx)
func (m *Monitor) Recover(ctx context.Context, opts ...ReportOption) {
	r := recover()
	if r == nil {
		return
	}
	err, ok := r.(error)
	if !ok {
		err = fmt.Errorf("panic: %v", r)
	}
	m.logger.Error("Recovered panic", "panic", fmt.Sprint(r))
	m.Report(ctx, err, append([]ReportOption{WithProperty("panic", "true")}, opts...)...)
}

// Go runs fn on a new goroutine guarded by Recover
func (m *Monitor) Go(ctx context.Context, fn func(ctx context.Context), opts ...ReportOption) {
	go func() {
		defer m.Recover(ctx, opts...)
		fn(ctx)
	}()
}
