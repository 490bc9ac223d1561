package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/kart-io/errmonitor/pkg/async"
	"github.com/kart-io/errmonitor/pkg/errors"
	"github.com/kart-io/errmonitor/pkg/receipt"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumOf(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "%s is not an int64 sum", m.Name)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestOTel(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	o, err := NewOTel(provider.Meter("test"))
	require.NoError(t, err)

	o.RecordError("ERROR", "svc")
	o.RecordError("WARN", "svc")
	o.RecordFiltered("rate_limit")
	o.RecordNotification("slack", true)
	o.RecordNotification("teams", false)
	o.RecordShed()
	o.RecordTaskFailure()
	o.RecordProcessingTime(25 * time.Millisecond)

	got := collect(t, reader)
	assert.EqualValues(t, 2, sumOf(t, got["errmonitor.errors"]))
	assert.EqualValues(t, 1, sumOf(t, got["errmonitor.filtered"]))
	assert.EqualValues(t, 2, sumOf(t, got["errmonitor.notifications"]))
	assert.EqualValues(t, 1, sumOf(t, got["errmonitor.executor.shed"]))
	assert.EqualValues(t, 1, sumOf(t, got["errmonitor.executor.task_failures"]))

	hist, ok := got["errmonitor.processing.duration"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.InDelta(t, 25.0, hist.DataPoints[0].Sum, 0.001)
	assert.Equal(t, "ms", got["errmonitor.processing.duration"].Unit)
}

func TestPrometheus(t *testing.T) {
	p := NewPrometheus("")
	p.RecordError("ERROR", "svc")
	p.RecordFiltered("level")
	p.RecordNotification("slack", true)
	p.RecordNotification("slack", false)
	p.RecordShed()
	p.RecordTaskFailure()
	p.RecordProcessingTime(time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(p.ErrorsTotal.WithLabelValues("ERROR", "svc")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.Filtered.WithLabelValues("level")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.Notifications.WithLabelValues("slack", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.Shed))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.TaskFailures))
	assert.Equal(t, 1, testutil.CollectAndCount(p.Processing))

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	assert.True(t, strings.Contains(string(body), "errmonitor_executor_shed_total 1"))
}

func TestPrometheus_IsolatedRegistries(t *testing.T) {
	a := NewPrometheus("a")
	b := NewPrometheus("a")
	a.RecordShed()
	assert.Equal(t, 1.0, testutil.ToFloat64(a.Shed))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.Shed))
}

func TestMemory(t *testing.T) {
	m := NewMemory()
	assert.Equal(t, 1.0, m.SuccessRate())

	m.RecordError("ERROR", "svc")
	m.RecordNotification("slack", true)
	m.RecordNotification("slack", true)
	m.RecordNotification("teams", false)
	m.RecordProcessingTime(10 * time.Millisecond)
	m.RecordProcessingTime(30 * time.Millisecond)

	snap := m.Snapshot()
	assert.EqualValues(t, 1, snap.ErrorsByLevel["ERROR"])
	assert.EqualValues(t, 2, snap.SentByKind["slack"])
	assert.EqualValues(t, 1, snap.FailedByKind["teams"])
	assert.InDelta(t, 2.0/3.0, snap.SuccessRate, 0.0001)
	assert.Equal(t, 20*time.Millisecond, snap.AvgProcessing)
	assert.Equal(t, 30*time.Millisecond, snap.MaxProcessing)

	snap.SentByKind["slack"] = 99
	assert.EqualValues(t, 2, m.Snapshot().SentByKind["slack"])
}

func TestMulti(t *testing.T) {
	a, b := NewMemory(), NewMemory()
	var o Observer = Multi{a, b}
	o.RecordFiltered("prefix")
	o.RecordShed()

	assert.EqualValues(t, 1, a.Snapshot().FilteredBy["prefix"])
	assert.EqualValues(t, 1, b.Snapshot().Shed)
}

func TestReportRecorder(t *testing.T) {
	m := NewMemory()
	rec := ReportRecorder{Observer: m}

	rec.ObserveReport(context.Background(), receipt.Empty("ev"))
	assert.Zero(t, m.Snapshot().AvgProcessing)

	mirrored := receipt.Success("a", "slack-mirror", 200)
	mirrored.Kind = "slack"
	primary := receipt.Success("a", "slack", 200)
	primary.Kind = "slack"
	report := receipt.NewReport("ev", []receipt.Outcome{
		primary,
		mirrored,
		receipt.Failure("b", "teams", errors.New(errors.ErrPlatformUnavailable, "down")),
	}, 5*time.Millisecond)
	rec.ObserveReport(context.Background(), report)

	snap := m.Snapshot()
	assert.EqualValues(t, 2, snap.SentByKind["slack"], "instances of one kind share a series")
	assert.Zero(t, snap.SentByKind["slack-mirror"])
	assert.EqualValues(t, 1, snap.FailedByKind["teams"], "outcomes without a kind fall back to the gateway name")
	assert.Equal(t, 5*time.Millisecond, snap.MaxProcessing)

	assert.NotPanics(t, func() { ReportRecorder{}.ObserveReport(context.Background(), report) })
}

func TestExecutorOptions(t *testing.T) {
	m := NewMemory()
	cfg := async.Config{QueueCapacity: 1, MinWorkers: 1, MaxWorkers: 1, IdleTimeout: time.Second,
		ShutdownTimeout: time.Second, ShutdownNowTimeout: time.Second}
	e := async.NewExecutor(cfg, ExecutorOptions(m)...)
	defer e.ShutdownNow()

	release := make(chan struct{})
	started := make(chan struct{})
	_, err := e.Submit(func(context.Context) error {
		close(started)
		<-release
		return errors.New(errors.ErrInternalError, "fail")
	})
	require.NoError(t, err)
	<-started

	first, err := e.Submit(func(context.Context) error { return nil })
	require.NoError(t, err)
	_, err = e.Submit(func(context.Context) error { return nil })
	require.NoError(t, err)

	<-first.Done()
	close(release)

	require.Eventually(t, func() bool {
		s := m.Snapshot()
		return s.Shed == 1 && s.TaskFailures == 1
	}, time.Second, 5*time.Millisecond)
}
