package natsource

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/errmonitor/pkg/errors"
	"github.com/kart-io/errmonitor/pkg/event"
)

type collector struct {
	mu     sync.Mutex
	events []*event.Event
	reject bool
}

func (c *collector) Submit(_ context.Context, ev *event.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return !c.reject
}

func TestHandle(t *testing.T) {
	c := &collector{}
	s := New(nil, "errmonitor.events", "", c, nil)

	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	payload, err := json.Marshal(event.Envelope{
		Level:      "warning",
		Message:    "disk almost full",
		LoggerName: "ops.DiskWatcher",
		Thread:     "main",
		Timestamp:  ts,
		Properties: map[string]string{"host": "db-1"},
		Error:      "no space left on device",
		StackTrace: "at DiskWatcher.check",
	})
	require.NoError(t, err)

	assert.True(t, s.Handle(context.Background(), payload))
	require.Len(t, c.events, 1)
	ev := c.events[0]
	assert.Equal(t, event.LevelWarn, ev.Level())
	assert.Equal(t, "disk almost full", ev.Content())
	assert.Equal(t, "ops.DiskWatcher", ev.LoggerName())
	assert.Equal(t, ts, ev.Timestamp())
	assert.EqualError(t, ev.Cause(), "no space left on device")
	host, _ := ev.Property("host")
	assert.Equal(t, "db-1", host)
	assert.NotEmpty(t, ev.ID())
}

func TestHandle_Malformed(t *testing.T) {
	c := &collector{}
	s := New(nil, "errmonitor.events", "", c, nil)

	assert.False(t, s.Handle(context.Background(), []byte("{not json")))
	assert.False(t, s.Handle(context.Background(), []byte(`{"level":"ERROR"}`)))
	assert.Empty(t, c.events)

	c.reject = true
	assert.False(t, s.Handle(context.Background(), []byte(`{"level":"ERROR","message":"filtered"}`)))

	assert.Equal(t, Stats{Received: 3, Accepted: 0, Dropped: 2}, s.Stats())
}

func TestStartWithoutConnection(t *testing.T) {
	s := New(nil, "errmonitor.events", "workers", &collector{}, nil)
	err := s.Start()
	code, _ := errors.CodeOf(err)
	assert.Equal(t, errors.ErrMissingConfig, code)
	assert.NoError(t, s.Close())
}
