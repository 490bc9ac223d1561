// Package natsource feeds JSON event envelopes published on a NATS subject
// into the notification pipeline.
package natsource

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kart-io/errmonitor/pkg/errors"
	"github.com/kart-io/errmonitor/pkg/event"
	"github.com/kart-io/errmonitor/pkg/logger"
)

// Submitter accepts decoded events. monitor.Monitor implements it.
type Submitter interface {
	Submit(ctx context.Context, ev *event.Event) bool
}

// Config holds the connection and subscription settings
type Config struct {
	URL           string
	Subject       string
	Queue         string
	Name          string
	MaxReconnects int
	ReconnectWait time.Duration
	Timeout       time.Duration
}

// DefaultConfig returns a Config for a local server
func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		Subject:       "errmonitor.events",
		Name:          "errmonitor",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
		Timeout:       5 * time.Second,
	}
}

// Connect dials the server described by cfg
func Connect(cfg Config, l logger.Logger) (*nats.Conn, error) {
	l = logger.OrDiscard(l)
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				l.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			l.Info("NATS reconnected", "url", c.ConnectedUrlRedacted())
		}),
	}
	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrNetworkConnection, "failed to connect to NATS")
	}
	return conn, nil
}

// Stats counts handled payloads
type Stats struct {
	Received int64 `json:"received"`
	Accepted int64 `json:"accepted"`
	Dropped  int64 `json:"dropped"`
}

// Source subscribes to a subject and submits every decoded event
type Source struct {
	conn      *nats.Conn
	subject   string
	queue     string
	submitter Submitter
	logger    logger.Logger

	mu  sync.Mutex
	sub *nats.Subscription

	received atomic.Int64
	accepted atomic.Int64
	dropped  atomic.Int64
}

// New creates a Source. Start begins delivery.
func New(conn *nats.Conn, subject, queue string, s Submitter, l logger.Logger) *Source {
	return &Source{
		conn:      conn,
		subject:   subject,
		queue:     queue,
		submitter: s,
		logger:    logger.OrDiscard(l),
	}
}

// Start subscribes, as a queue group member when a queue is configured.
func (s *Source) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sub != nil {
		return nil
	}
	if s.conn == nil {
		return errors.New(errors.ErrMissingConfig, "natsource: no connection")
	}

	handler := func(msg *nats.Msg) { s.Handle(context.Background(), msg.Data) }
	var (
		sub *nats.Subscription
		err error
	)
	if s.queue != "" {
		sub, err = s.conn.QueueSubscribe(s.subject, s.queue, handler)
	} else {
		sub, err = s.conn.Subscribe(s.subject, handler)
	}
	if err != nil {
		return errors.Wrapf(err, errors.ErrNetworkConnection, "failed to subscribe to %s", s.subject)
	}
	s.sub = sub
	s.logger.Info("Subscribed to event subject", "subject", s.subject, "queue", s.queue)
	return nil
}

// Handle decodes one payload and submits it. Malformed payloads are logged
// and dropped. It reports whether the event was accepted.
func (s *Source) Handle(ctx context.Context, data []byte) bool {
	s.received.Add(1)
	ev, err := event.DecodeEnvelope(data)
	if err != nil {
		s.dropped.Add(1)
		s.logger.Warn("Dropping malformed event payload", "subject", s.subject, "bytes", len(data), "error", err)
		return false
	}
	if s.submitter == nil || !s.submitter.Submit(ctx, ev) {
		return false
	}
	s.accepted.Add(1)
	return true
}

// Stats returns the payload counters
func (s *Source) Stats() Stats {
	return Stats{
		Received: s.received.Load(),
		Accepted: s.accepted.Load(),
		Dropped:  s.dropped.Load(),
	}
}

// Close drains the subscription so in-flight messages finish.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sub == nil {
		return nil
	}
	err := s.sub.Drain()
	s.sub = nil
	return err
}
