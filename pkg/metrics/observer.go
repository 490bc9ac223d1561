// Package metrics provides the observer the pipeline reports counters and
// timings to, with OpenTelemetry, Prometheus and in-memory backends.
package metrics

import (
	"context"
	"time"

	"github.com/kart-io/errmonitor/pkg/async"
	"github.com/kart-io/errmonitor/pkg/receipt"
)

// Observer receives pipeline measurements. Implementations must be safe for
// concurrent use and must never block.
type Observer interface {
	RecordError(level, source string)
	RecordFiltered(reason string)
	RecordNotification(kind string, success bool)
	RecordProcessingTime(d time.Duration)
	RecordShed()
	RecordTaskFailure()
}

// Noop discards every measurement
var Noop Observer = noop{}

type noop struct{}

func (noop) RecordError(string, string)         {}
func (noop) RecordFiltered(string)              {}
func (noop) RecordNotification(string, bool)    {}
func (noop) RecordProcessingTime(time.Duration) {}
func (noop) RecordShed()                        {}
func (noop) RecordTaskFailure()                 {}

// OrNoop returns o, or Noop when o is nil.
func OrNoop(o Observer) Observer {
	if o == nil {
		return Noop
	}
	return o
}

// Multi fans measurements out to several observers
type Multi []Observer

func (m Multi) RecordError(level, source string) {
	for _, o := range m {
		o.RecordError(level, source)
	}
}

func (m Multi) RecordFiltered(reason string) {
	for _, o := range m {
		o.RecordFiltered(reason)
	}
}

func (m Multi) RecordNotification(kind string, success bool) {
	for _, o := range m {
		o.RecordNotification(kind, success)
	}
}

func (m Multi) RecordProcessingTime(d time.Duration) {
	for _, o := range m {
		o.RecordProcessingTime(d)
	}
}

func (m Multi) RecordShed() {
	for _, o := range m {
		o.RecordShed()
	}
}

func (m Multi) RecordTaskFailure() {
	for _, o := range m {
		o.RecordTaskFailure()
	}
}

// ReportRecorder turns finished dispatch reports into observer calls.
type ReportRecorder struct {
	Observer Observer
}

// ObserveReport records one notification per outcome, labelled by
// destination kind, and the report duration.
func (r ReportRecorder) ObserveReport(_ context.Context, report *receipt.Report) {
	o := OrNoop(r.Observer)
	for _, out := range report.Outcomes {
		kind := out.Kind
		if kind == "" {
			kind = out.Gateway
		}
		o.RecordNotification(kind, out.Succeeded)
	}
	if !report.IsEmpty() {
		o.RecordProcessingTime(report.Duration)
	}
}

// ExecutorOptions wires executor shedding and task failures into o.
func ExecutorOptions(o Observer) []async.Option {
	o = OrNoop(o)
	return []async.Option{
		async.WithShedCallback(func(*async.Handle) { o.RecordShed() }),
		async.WithFailureCallback(func(*async.Handle, error) { o.RecordTaskFailure() }),
	}
}
