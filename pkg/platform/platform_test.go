package platform

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/errmonitor/pkg/destination"
	"github.com/kart-io/errmonitor/pkg/errors"
	"github.com/kart-io/errmonitor/pkg/logger"
	"github.com/kart-io/errmonitor/pkg/message"
)

type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordingLogger) LogMode(logger.LogLevel) logger.Logger { return l }
func (l *recordingLogger) Info(msg string, args ...any)          { l.add(msg, args) }
func (l *recordingLogger) Warn(msg string, args ...any)          { l.add(msg, args) }
func (l *recordingLogger) Error(msg string, args ...any)         { l.add(msg, args) }
func (l *recordingLogger) Debug(msg string, args ...any)         { l.add(msg, args) }

func (l *recordingLogger) add(msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprint(append([]any{msg}, args...)...))
}

func (l *recordingLogger) joined() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return strings.Join(l.lines, "\n")
}

func jsonFormatter(msg message.Message) (any, error) {
	return map[string]string{"text": msg.Content()}, nil
}

func TestPoster_Success(t *testing.T) {
	var gotBody, gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		gotType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	status, err := NewPoster().PostJSON(context.Background(), "webhook", srv.URL+"/hook/secret-token", map[string]string{"a": "b"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"a":"b"}`, gotBody)
	assert.Equal(t, "application/json", gotType)
}

func TestPoster_HTTPFailureCarriesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("invalid_payload"))
	}))
	defer srv.Close()

	status, err := NewPoster().PostJSON(context.Background(), "slack", srv.URL, map[string]string{})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, err.Error(), "HTTP 400: invalid_payload")

	code, ok := errors.StatusCodeOf(err)
	require.True(t, ok)
	assert.Equal(t, 400, code)
	assert.False(t, errors.IsTransport(err))
}

func TestPoster_TransportFailureHasNoStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := srv.URL + "/services/secret-token"
	srv.Close()

	status, err := NewPoster().PostJSON(context.Background(), "slack", endpoint, map[string]string{})
	require.Error(t, err)
	assert.Zero(t, status)
	assert.True(t, errors.IsTransport(err))
	assert.NotContains(t, err.Error(), "secret-token")
}

func TestPoster_TimeoutIsClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	_, err := NewPoster(WithTimeout(20*time.Millisecond)).PostJSON(context.Background(), "webhook", srv.URL, map[string]string{})
	require.Error(t, err)
	code, _ := errors.CodeOf(err)
	assert.Equal(t, errors.ErrNetworkTimeout, code)
}

func TestPoster_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewPoster(WithRetryPolicy(errors.NewExponentialBackoffPolicy(time.Millisecond, 5*time.Millisecond, 3)))
	status, err := p.PostJSON(context.Background(), "webhook", srv.URL, map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 3, calls.Load())
}

func TestPoster_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewPoster(WithRetryPolicy(errors.NewExponentialBackoffPolicy(time.Millisecond, 5*time.Millisecond, 3)))
	status, err := p.PostJSON(context.Background(), "webhook", srv.URL, map[string]string{})
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, status)
	assert.EqualValues(t, 1, calls.Load())
}

func TestPoster_EncodingFailure(t *testing.T) {
	_, err := NewPoster().PostJSON(context.Background(), "webhook", "https://example.com/hook", map[string]any{"ch": make(chan int)})
	require.Error(t, err)
	code, _ := errors.CodeOf(err)
	assert.Equal(t, errors.ErrMessageEncoding, code)
}

func TestWebhookGateway_MasksEndpointInLogs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	rec := &recordingLogger{}
	g := NewWebhookGateway("webhook", destination.KindWebhook, jsonFormatter, NewPoster(WithPosterLogger(rec)), rec)

	endpoint := srv.URL + "/hooks/T000/B000/very-secret-token"
	outcome := g.Send(context.Background(), message.New(message.Fields{Content: "x"}), endpoint)
	assert.False(t, outcome.Succeeded)
	assert.Equal(t, 500, outcome.StatusCode)
	assert.Equal(t, "webhook", outcome.Gateway)
	assert.NotContains(t, rec.joined(), "very-secret-token")
	assert.Contains(t, rec.joined(), "127.0.0.1/***")
}

func TestWebhookGateway_FormatFailure(t *testing.T) {
	g := NewWebhookGateway("webhook", destination.KindWebhook, func(message.Message) (any, error) {
		return nil, stderrors.New("bad template")
	}, nil, nil)

	outcome := g.Send(context.Background(), message.New(message.Fields{}), "https://example.com/hook")
	assert.False(t, outcome.Succeeded)
	assert.False(t, outcome.HasStatusCode())
	assert.Contains(t, outcome.Error, "bad template")
}

func TestWebhookGateway_TestConnection(t *testing.T) {
	var body string
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		body = string(b)
	}))
	defer ok.Close()
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer failing.Close()

	g := NewWebhookGateway("webhook", destination.KindWebhook, jsonFormatter, nil, nil)
	assert.True(t, g.TestConnection(context.Background(), ok.URL))
	assert.Contains(t, body, HealthCheckText)
	assert.False(t, g.TestConnection(context.Background(), failing.URL))
	assert.False(t, g.TestConnection(context.Background(), "http://127.0.0.1:1/unreachable"))

	panicky := NewWebhookGateway("panicky", destination.KindWebhook, func(message.Message) (any, error) {
		panic("formatter bug")
	}, nil, nil)
	assert.False(t, panicky.TestConnection(context.Background(), ok.URL))
}

func TestWebhookGateway_Supports(t *testing.T) {
	g := NewWebhookGateway("slack", destination.KindSlack, jsonFormatter, nil, nil)

	assert.True(t, g.Supports(destination.Config{Enabled: true, Endpoint: "https://hooks.slack.com/services/x"}))
	assert.False(t, g.Supports(destination.Config{Enabled: false, Endpoint: "https://hooks.slack.com/services/x"}))
	assert.False(t, g.Supports(destination.Config{Enabled: true, Endpoint: "https://example.com/hook"}))
	assert.True(t, g.Supports(destination.Config{Enabled: true, Kind: destination.KindSlack, Endpoint: "https://proxy.example.com/slack"}))
	assert.False(t, g.Supports(destination.Config{Enabled: true, Kind: destination.KindSlack}))
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(nil)
	primary := NewWebhookGateway("slack", destination.KindSlack, jsonFormatter, nil, nil)
	mirror := NewWebhookGateway("slack-mirror", destination.KindSlack, jsonFormatter, nil, nil)
	teams := NewWebhookGateway("teams", destination.KindTeams, jsonFormatter, nil, nil)

	require.NoError(t, r.Register(primary, mirror, teams))
	assert.Equal(t, []string{"slack", "slack-mirror", "teams"}, r.Names())
	assert.Error(t, r.Register(NewWebhookGateway("slack", destination.KindSlack, jsonFormatter, nil, nil)))

	dest := destination.Config{Enabled: true, Endpoint: "https://hooks.slack.com/services/x"}
	matched := r.Match(dest)
	require.Len(t, matched, 2)
	assert.Equal(t, "slack", matched[0].Name())
	assert.Equal(t, "slack-mirror", matched[1].Name())

	g, err := r.Get("teams")
	require.NoError(t, err)
	assert.Equal(t, destination.KindTeams, g.Kind())
	_, err = r.Get("missing")
	assert.Error(t, err)

	require.NoError(t, r.Unregister("slack-mirror"))
	assert.Len(t, r.Match(dest), 1)
	assert.Error(t, r.Unregister("slack-mirror"))

	require.NoError(t, r.Close())
	assert.Zero(t, r.Len())
}

func TestDisplayKey(t *testing.T) {
	assert.Equal(t, "User Id", DisplayKey("userId"))
	assert.Equal(t, "Request Path", DisplayKey("request_path"))
	assert.Equal(t, "Team", DisplayKey("team"))
}
