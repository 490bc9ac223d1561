package dispatch

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/kart-io/errmonitor/pkg/destination"
	"github.com/kart-io/errmonitor/pkg/errors"
	"github.com/kart-io/errmonitor/pkg/event"
	"github.com/kart-io/errmonitor/pkg/message"
	"github.com/kart-io/errmonitor/pkg/platform"
	"github.com/kart-io/errmonitor/pkg/receipt"
)

type mockGateway struct {
	name   string
	kind   destination.Kind
	fail   map[string]bool
	panics bool
	delay  time.Duration

	calls atomic.Int32
	mu    sync.Mutex
	sent  []message.Message
}

func (g *mockGateway) Name() string           { return g.name }
func (g *mockGateway) Kind() destination.Kind { return g.kind }
func (g *mockGateway) Close() error           { return nil }

func (g *mockGateway) Supports(d destination.Config) bool {
	return d.Enabled && d.ResolvedKind() == g.kind
}

func (g *mockGateway) TestConnection(context.Context, string) bool { return true }

func (g *mockGateway) Send(_ context.Context, msg message.Message, endpoint string) receipt.Outcome {
	g.calls.Add(1)
	if g.delay > 0 {
		time.Sleep(g.delay)
	}
	if g.panics {
		panic("gateway bug")
	}
	g.mu.Lock()
	g.sent = append(g.sent, msg)
	g.mu.Unlock()
	if g.fail[endpoint] {
		return receipt.Failure(endpoint, g.name, errors.New(errors.ErrPlatformUnavailable, "HTTP 503: down").WithStatusCode(503))
	}
	return receipt.Success(endpoint, g.name, 200)
}

func newOrchestrator(t *testing.T, gateways ...platform.Gateway) *Orchestrator {
	t.Helper()
	reg := platform.NewRegistry(nil)
	require.NoError(t, reg.Register(gateways...))
	return New(reg)
}

func dest(name, endpoint string) destination.Config {
	return destination.Config{Name: name, Kind: destination.KindWebhook, Endpoint: endpoint, Enabled: true, ApplicationName: "app"}
}

func errorEvent() *event.Event {
	return event.New(event.Fields{
		Level:      "ERROR",
		Message:    "payment failed",
		LoggerName: "com.acme.billing.PaymentService",
		Cause:      stderrors.New("card declined"),
		Properties: map[string]string{"userId": "u1"},
	})
}

func wait(t *testing.T, p *Pending) *receipt.Report {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r, err := p.Wait(ctx)
	require.NoError(t, err)
	return r
}

func TestProcess_IsolatesFailures(t *testing.T) {
	gw := &mockGateway{name: "webhook", kind: destination.KindWebhook, fail: map[string]bool{"https://b.example.com/hook": true}}
	o := newOrchestrator(t, gw)

	dests := []destination.Config{
		dest("a", "https://a.example.com/hook"),
		dest("b", "https://b.example.com/hook"),
		dest("c", "https://c.example.com/hook"),
	}
	report := wait(t, o.Process(context.Background(), errorEvent(), dests))

	require.Len(t, report.Outcomes, 3)
	assert.Equal(t, 2, report.Successful)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, receipt.StatusPartial, report.Status)

	// outcomes follow dispatch order
	assert.Equal(t, "a", report.Outcomes[0].Destination)
	assert.Equal(t, "b", report.Outcomes[1].Destination)
	assert.Equal(t, "c", report.Outcomes[2].Destination)
	assert.False(t, report.Outcomes[1].Succeeded)
	assert.Equal(t, 503, report.Outcomes[1].StatusCode)
	assert.Equal(t, "webhook", report.Outcomes[1].Gateway)
}

func TestProcess_PanickingGatewayBecomesFailure(t *testing.T) {
	bad := &mockGateway{name: "bad", kind: destination.KindWebhook, panics: true}
	good := &mockGateway{name: "good", kind: destination.KindWebhook}
	o := newOrchestrator(t, bad, good)

	report := wait(t, o.Process(context.Background(), errorEvent(), []destination.Config{dest("a", "https://a.example.com")}))
	require.Len(t, report.Outcomes, 2)
	assert.False(t, report.Outcomes[0].Succeeded)
	assert.Contains(t, report.Outcomes[0].Error, "gateway panicked")
	assert.Equal(t, "webhook", report.Outcomes[0].Kind)
	assert.True(t, report.Outcomes[1].Succeeded)
}

func TestProcess_LevelFiltering(t *testing.T) {
	gw := &mockGateway{name: "webhook", kind: destination.KindWebhook}
	o := newOrchestrator(t, gw)

	strict := dest("strict", "https://strict.example.com")
	strict.MinimumLevel = "ERROR"
	open := dest("open", "https://open.example.com")
	dests := []destination.Config{strict, open}

	warn := event.New(event.Fields{Level: "WARN", Message: "slow"})
	assert.Len(t, o.Routes(warn, dests), 1)

	report := wait(t, o.Process(context.Background(), event.New(event.Fields{Level: "INFO", Message: "hi"}), dests))
	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, "open", report.Outcomes[0].Destination)

	unparsable := event.New(event.Fields{Level: "loud", Message: "?"})
	assert.Len(t, o.Routes(unparsable, dests), 2)
}

func TestProcess_EmptyPath(t *testing.T) {
	gw := &mockGateway{name: "webhook", kind: destination.KindWebhook}
	o := newOrchestrator(t, gw)

	disabled := dest("off", "https://off.example.com")
	disabled.Enabled = false

	for name, dests := range map[string][]destination.Config{
		"none":         nil,
		"all disabled": {disabled},
	} {
		t.Run(name, func(t *testing.T) {
			p := o.Process(context.Background(), errorEvent(), dests)
			select {
			case <-p.Done():
			default:
				t.Fatal("empty dispatch should complete immediately")
			}
			report := wait(t, p)
			assert.True(t, report.IsEmpty())
			assert.Equal(t, receipt.StatusEmpty, report.Status)
		})
	}

	report := wait(t, o.Process(context.Background(), nil, []destination.Config{dest("a", "https://a.example.com")}))
	assert.True(t, report.IsEmpty())
	assert.Zero(t, gw.calls.Load())
}

func TestProcess_EnrichesPerDestination(t *testing.T) {
	gw := &mockGateway{name: "webhook", kind: destination.KindWebhook}
	o := newOrchestrator(t, gw)

	d := dest("a", "https://a.example.com/hook")
	d.Environment = "prod"
	d.AdditionalProperties = map[string]any{"team": "x", "userId": "override"}

	wait(t, o.Process(context.Background(), errorEvent(), []destination.Config{d}))

	require.Len(t, gw.sent, 1)
	msg := gw.sent[0]
	assert.Equal(t, "PaymentService", msg.Title())
	assert.Equal(t, "payment failed", msg.Content())
	assert.Equal(t, "app", msg.ApplicationName())
	assert.Equal(t, "prod", msg.Environment())
	assert.Equal(t, "https://a.example.com/hook", msg.Endpoint())
	team, _ := msg.Value("team")
	user, _ := msg.Value("userId")
	assert.Equal(t, "x", team)
	assert.Equal(t, "override", user)
	assert.Contains(t, msg.StackTrace(), "card declined")
}

func TestProcess_MirrorFanOut(t *testing.T) {
	primary := &mockGateway{name: "slack", kind: destination.KindSlack}
	mirror := &mockGateway{name: "slack-mirror", kind: destination.KindSlack}
	teams := &mockGateway{name: "teams", kind: destination.KindTeams}
	o := newOrchestrator(t, primary, mirror, teams)

	d := destination.Config{Name: "ops", Endpoint: "https://hooks.slack.com/services/T/B/x", Enabled: true}
	report := wait(t, o.Process(context.Background(), errorEvent(), []destination.Config{d}))

	require.Len(t, report.Outcomes, 2)
	assert.Equal(t, "slack", report.Outcomes[0].Gateway)
	assert.Equal(t, "slack-mirror", report.Outcomes[1].Gateway)
	for _, out := range report.Outcomes {
		assert.Equal(t, "slack", out.Kind)
	}
	assert.Zero(t, teams.calls.Load())
}

func TestProcess_SendsConcurrently(t *testing.T) {
	gw := &mockGateway{name: "webhook", kind: destination.KindWebhook, delay: 100 * time.Millisecond}
	o := newOrchestrator(t, gw)

	dests := make([]destination.Config, 5)
	for i := range dests {
		dests[i] = dest("d", "https://example.com/hook")
	}

	start := time.Now()
	p := o.Process(context.Background(), errorEvent(), dests)
	assert.Less(t, time.Since(start), 50*time.Millisecond, "Process must not block on sends")

	report := wait(t, p)
	assert.Len(t, report.Outcomes, 5)
	assert.Less(t, time.Since(start), 400*time.Millisecond)
}

func TestPending_WaitHonoursContext(t *testing.T) {
	p := newPending()
	assert.Nil(t, p.Report())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Wait(ctx)
	require.Error(t, err)
	code, _ := errors.CodeOf(err)
	assert.Equal(t, errors.ErrSystemTimeout, code)
}

func TestProcess_Spans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))

	gw := &mockGateway{name: "webhook", kind: destination.KindWebhook, fail: map[string]bool{"https://b.example.com": true}}
	reg := platform.NewRegistry(nil)
	require.NoError(t, reg.Register(gw))
	o := New(reg, WithTracer(tp.Tracer("test")))

	wait(t, o.Process(context.Background(), errorEvent(), []destination.Config{
		dest("a", "https://a.example.com"),
		dest("b", "https://b.example.com"),
	}))

	require.Eventually(t, func() bool { return len(rec.Ended()) == 3 }, time.Second, 5*time.Millisecond)
	names := map[string]int{}
	for _, s := range rec.Ended() {
		names[s.Name()]++
	}
	assert.Equal(t, 1, names["errmonitor.dispatch"])
	assert.Equal(t, 2, names["errmonitor.send"])
}
