package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus records measurements into its own registry
type Prometheus struct {
	registry *prometheus.Registry

	ErrorsTotal   *prometheus.CounterVec
	Filtered      *prometheus.CounterVec
	Notifications *prometheus.CounterVec
	Shed          prometheus.Counter
	TaskFailures  prometheus.Counter
	Processing    prometheus.Histogram
}

// NewPrometheus registers the collectors under namespace, "errmonitor" when empty.
func NewPrometheus(namespace string) *Prometheus {
	if namespace == "" {
		namespace = "errmonitor"
	}
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Prometheus{
		registry: reg,
		ErrorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Errors captured by level and source.",
		}, []string{"level", "source"}),
		Filtered: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "filtered_total",
			Help:      "Events rejected by admission filters.",
		}, []string{"reason"}),
		Notifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notifications sent by gateway and result.",
		}, []string{"kind", "success"}),
		Shed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "shed_total",
			Help:      "Queued dispatches evicted by load shedding.",
		}),
		TaskFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "task_failures_total",
			Help:      "Executor tasks that failed or panicked.",
		}),
		Processing: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "processing_duration_seconds",
			Help:      "Time to dispatch one event to all destinations.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// Registry exposes the underlying registry
func (p *Prometheus) Registry() *prometheus.Registry { return p.registry }

// Handler serves the registry in the exposition format
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

func (p *Prometheus) RecordError(level, source string) {
	p.ErrorsTotal.WithLabelValues(level, source).Inc()
}

func (p *Prometheus) RecordFiltered(reason string) {
	p.Filtered.WithLabelValues(reason).Inc()
}

func (p *Prometheus) RecordNotification(kind string, success bool) {
	p.Notifications.WithLabelValues(kind, strconv.FormatBool(success)).Inc()
}

func (p *Prometheus) RecordProcessingTime(d time.Duration) { p.Processing.Observe(d.Seconds()) }

func (p *Prometheus) RecordShed() { p.Shed.Inc() }

func (p *Prometheus) RecordTaskFailure() { p.TaskFailures.Inc() }
