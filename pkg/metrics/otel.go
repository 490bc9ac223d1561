package metrics

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/kart-io/errmonitor/pkg/errors"
)

// OTel records measurements through an OpenTelemetry meter
type OTel struct {
	errorsTotal   metric.Int64Counter
	filtered      metric.Int64Counter
	notifications metric.Int64Counter
	shed          metric.Int64Counter
	taskFailures  metric.Int64Counter
	processing    metric.Float64Histogram
}

// NewOTel creates the instruments on meter
func NewOTel(meter metric.Meter) (*OTel, error) {
	o := &OTel{}
	var err error

	if o.errorsTotal, err = meter.Int64Counter("errmonitor.errors",
		metric.WithDescription("Errors captured by level and source")); err != nil {
		return nil, errors.Wrap(err, errors.ErrInternalError, "create errors counter")
	}
	if o.filtered, err = meter.Int64Counter("errmonitor.filtered",
		metric.WithDescription("Events rejected by admission filters")); err != nil {
		return nil, errors.Wrap(err, errors.ErrInternalError, "create filtered counter")
	}
	if o.notifications, err = meter.Int64Counter("errmonitor.notifications",
		metric.WithDescription("Notifications sent by gateway and result")); err != nil {
		return nil, errors.Wrap(err, errors.ErrInternalError, "create notifications counter")
	}
	if o.shed, err = meter.Int64Counter("errmonitor.executor.shed",
		metric.WithDescription("Queued dispatches evicted by load shedding")); err != nil {
		return nil, errors.Wrap(err, errors.ErrInternalError, "create shed counter")
	}
	if o.taskFailures, err = meter.Int64Counter("errmonitor.executor.task_failures",
		metric.WithDescription("Executor tasks that failed or panicked")); err != nil {
		return nil, errors.Wrap(err, errors.ErrInternalError, "create task failure counter")
	}
	if o.processing, err = meter.Float64Histogram("errmonitor.processing.duration",
		metric.WithDescription("Time to dispatch one event to all destinations"),
		metric.WithUnit("ms")); err != nil {
		return nil, errors.Wrap(err, errors.ErrInternalError, "create processing histogram")
	}
	return o, nil
}

func (o *OTel) RecordError(level, source string) {
	o.errorsTotal.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("level", level),
		attribute.String("source", source),
	))
}

func (o *OTel) RecordFiltered(reason string) {
	o.filtered.Add(context.Background(), 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (o *OTel) RecordNotification(kind string, success bool) {
	o.notifications.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("success", strconv.FormatBool(success)),
	))
}

func (o *OTel) RecordProcessingTime(d time.Duration) {
	o.processing.Record(context.Background(), float64(d)/float64(time.Millisecond))
}

func (o *OTel) RecordShed() { o.shed.Add(context.Background(), 1) }

func (o *OTel) RecordTaskFailure() { o.taskFailures.Add(context.Background(), 1) }
