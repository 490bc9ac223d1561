// Package event defines the captured error/log occurrence that flows through
// the dispatch pipeline.
//
// An Event is built once from Fields and is read-only afterwards; accessors
// hand out copies of mutable state.
package event

import (
	"maps"
	"time"

	"github.com/google/uuid"
)

// Fields is the complete field set used to construct an Event.
type Fields struct {
	ID               string
	Level            string
	Message          string
	FormattedMessage string
	Cause            error
	// Stack is an already rendered stack trace for Cause, e.g. from runtime/debug.Stack.
	Stack      string
	LoggerName string
	Timestamp  time.Time
	Thread     string
	Properties map[string]string
}

// Event is an immutable captured occurrence.
type Event struct {
	id               string
	level            string
	message          string
	formattedMessage string
	cause            error
	stack            string
	loggerName       string
	timestamp        time.Time
	thread           string
	properties       map[string]string
}

// New builds an Event. A missing ID is generated and a zero timestamp becomes now;
// timestamps are normalised to UTC.
func New(f Fields) *Event {
	id := f.ID
	if id == "" {
		id = uuid.NewString()
	}
	ts := f.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	props := make(map[string]string, len(f.Properties))
	maps.Copy(props, f.Properties)

	return &Event{
		id:               id,
		level:            f.Level,
		message:          f.Message,
		formattedMessage: f.FormattedMessage,
		cause:            f.Cause,
		stack:            f.Stack,
		loggerName:       f.LoggerName,
		timestamp:        ts.UTC(),
		thread:           f.Thread,
		properties:       props,
	}
}

func (e *Event) ID() string { return e.id }

// RawLevel returns the level as captured.
func (e *Event) RawLevel() string { return e.level }

// Level returns the parsed severity; unparsable levels rank as LevelError.
func (e *Event) Level() Level { return ParseLevel(e.level) }

func (e *Event) Message() string          { return e.message }
func (e *Event) FormattedMessage() string { return e.formattedMessage }
func (e *Event) Cause() error             { return e.cause }
func (e *Event) Stack() string            { return e.stack }
func (e *Event) LoggerName() string       { return e.loggerName }
func (e *Event) Timestamp() time.Time     { return e.timestamp }
func (e *Event) Thread() string           { return e.thread }

// HasCause reports whether the event carries error detail.
func (e *Event) HasCause() bool { return e.cause != nil || e.stack != "" }

// Properties returns a copy of the context properties.
func (e *Event) Properties() map[string]string {
	return maps.Clone(e.properties)
}

// Property returns a single context property.
func (e *Event) Property(key string) (string, bool) {
	v, ok := e.properties[key]
	return v, ok
}

// Content returns the formatted message when present, else the raw message.
func (e *Event) Content() string {
	if e.formattedMessage != "" {
		return e.formattedMessage
	}
	return e.message
}
