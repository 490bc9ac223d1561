package event

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"TRACE", LevelTrace},
		{"debug", LevelDebug},
		{"Info", LevelInfo},
		{"WARN", LevelWarn},
		{"warning", LevelWarn},
		{"ERROR", LevelError},
		{"fatal", LevelError},
		{"", LevelError},
		{"loud", LevelError},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestLevelOrdering(t *testing.T) {
	assert.True(t, LevelError.AtLeast(LevelWarn))
	assert.True(t, LevelWarn.AtLeast(LevelWarn))
	assert.False(t, LevelInfo.AtLeast(LevelError))
	assert.Equal(t, "WARN", LevelWarn.String())
}

func TestNew_CopiesAndDefaults(t *testing.T) {
	props := map[string]string{"userId": "u1"}
	ev := New(Fields{Level: "error", Message: "boom", Properties: props})

	props["userId"] = "changed"
	v, ok := ev.Property("userId")
	require.True(t, ok)
	assert.Equal(t, "u1", v)

	got := ev.Properties()
	got["extra"] = "x"
	_, ok = ev.Property("extra")
	assert.False(t, ok)

	assert.NotEmpty(t, ev.ID())
	assert.False(t, ev.Timestamp().IsZero())
	assert.Equal(t, time.UTC, ev.Timestamp().Location())
	assert.Equal(t, LevelError, ev.Level())
}

func TestContent(t *testing.T) {
	assert.Equal(t, "raw", New(Fields{Message: "raw"}).Content())
	assert.Equal(t, "formatted", New(Fields{Message: "raw", FormattedMessage: "formatted"}).Content())
}

func TestShortName(t *testing.T) {
	assert.Equal(t, "OrderService", ShortName("com.acme.OrderService"))
	assert.Equal(t, "handler", ShortName("github.com/acme/api/handler"))
	assert.Equal(t, "main", ShortName("main"))
	assert.Equal(t, "", ShortName(""))
}

func TestRenderCause(t *testing.T) {
	root := errors.New("connection refused")
	err := fmt.Errorf("load order: %w", root)

	out := RenderCause(err, "goroutine 1 [running]:\nmain.main()\n")
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "*fmt.wrapError: load order: connection refused", lines[0])
	assert.Equal(t, "Caused by: *errors.errorString: connection refused", lines[1])
	assert.Equal(t, "goroutine 1 [running]:", lines[2])

	assert.Equal(t, "", RenderCause(nil, ""))
	assert.Equal(t, "trace", RenderCause(nil, "trace"))
}

func TestFormatStack(t *testing.T) {
	text := strings.Repeat("frame\n", 20)

	t.Run("within limit", func(t *testing.T) {
		out := FormatStack(text, 25)
		assert.NotContains(t, out, "more lines truncated")
		assert.Equal(t, 20, strings.Count(out, "frame"))
	})

	t.Run("over limit", func(t *testing.T) {
		out := FormatStack(text, 4)
		assert.Equal(t, 4, strings.Count(out, "frame"))
		assert.True(t, strings.HasSuffix(out, "... 16 more lines truncated"))
	})

	t.Run("zero lines", func(t *testing.T) {
		assert.Equal(t, "... 20 more lines truncated", FormatStack(text, 0))
	})

	t.Run("empty", func(t *testing.T) {
		assert.Equal(t, "", FormatStack("", 5))
	})
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abc... (truncated)", Truncate("abcdef", 3))
	assert.Equal(t, "abcdef", Truncate("abcdef", 0))
}

func TestEnvelopeRoundTrip(t *testing.T) {
	data := []byte(`{"level":"WARN","message":"disk low","loggerName":"ops.Disk","properties":{"host":"a"},"error":"ENOSPC","stackTrace":"frame1"}`)

	ev, err := DecodeEnvelope(data)
	require.NoError(t, err)
	assert.Equal(t, LevelWarn, ev.Level())
	assert.Equal(t, "disk low", ev.Message())
	assert.Equal(t, "ops.Disk", ev.LoggerName())
	assert.EqualError(t, ev.Cause(), "ENOSPC")
	assert.Equal(t, "frame1", ev.Stack())
	assert.True(t, ev.HasCause())

	env := ev.Envelope()
	assert.Equal(t, "ENOSPC", env.Error)
	assert.Equal(t, "a", env.Properties["host"])
}

func TestDecodeEnvelope_Invalid(t *testing.T) {
	_, err := DecodeEnvelope([]byte(`{`))
	assert.Error(t, err)

	_, err = DecodeEnvelope([]byte(`{"level":"ERROR"}`))
	assert.Error(t, err)
}
