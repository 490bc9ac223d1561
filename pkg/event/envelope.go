package event

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	nerrors "github.com/kart-io/errmonitor/pkg/errors"
)

// Envelope is the JSON wire shape of an event published by a remote capture source.
type Envelope struct {
	ID               string            `json:"id,omitempty"`
	Level            string            `json:"level"`
	Message          string            `json:"message"`
	FormattedMessage string            `json:"formattedMessage,omitempty"`
	LoggerName       string            `json:"loggerName,omitempty"`
	Thread           string            `json:"thread,omitempty"`
	Timestamp        time.Time         `json:"timestamp,omitempty"`
	Properties       map[string]string `json:"properties,omitempty"`
	Error            string            `json:"error,omitempty"`
	StackTrace       string            `json:"stackTrace,omitempty"`
}

// DecodeEnvelope parses data into an Event. Payloads without a message are rejected.
func DecodeEnvelope(data []byte) (*Event, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, nerrors.Wrap(err, nerrors.ErrMessageEncoding, "decode event envelope")
	}
	if strings.TrimSpace(env.Message) == "" && strings.TrimSpace(env.FormattedMessage) == "" {
		return nil, nerrors.New(nerrors.ErrInvalidMessage, "event envelope has no message")
	}
	return env.Event(), nil
}

// Event converts the envelope into an Event.
func (env Envelope) Event() *Event {
	var cause error
	if env.Error != "" {
		cause = errors.New(env.Error)
	}
	return New(Fields{
		ID:               env.ID,
		Level:            env.Level,
		Message:          env.Message,
		FormattedMessage: env.FormattedMessage,
		Cause:            cause,
		Stack:            env.StackTrace,
		LoggerName:       env.LoggerName,
		Timestamp:        env.Timestamp,
		Thread:           env.Thread,
		Properties:       env.Properties,
	})
}

// Envelope converts the event to its wire shape.
func (e *Event) Envelope() Envelope {
	env := Envelope{
		ID:               e.id,
		Level:            e.level,
		Message:          e.message,
		FormattedMessage: e.formattedMessage,
		LoggerName:       e.loggerName,
		Thread:           e.thread,
		Timestamp:        e.timestamp,
		Properties:       e.Properties(),
		StackTrace:       e.stack,
	}
	if e.cause != nil {
		env.Error = e.cause.Error()
	}
	return env
}
