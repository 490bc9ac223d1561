// Package message provides the outbound notification message derived from an
// event for one destination.
package message

import (
	"maps"
	"slices"
	"time"

	"github.com/kart-io/errmonitor/pkg/destination"
	"github.com/kart-io/errmonitor/pkg/event"
)

// EndpointKey is the metadata key holding the resolved destination endpoint.
// Payload formatters must not render it.
const EndpointKey = "webhookUrl"

// Fields is the complete field set used to construct a Message.
type Fields struct {
	Title           string
	Content         string
	Level           event.Level
	ApplicationName string
	Environment     string
	StackTrace      string
	Source          string
	Timestamp       time.Time
	Metadata        map[string]any
}

// Message is an immutable outbound notification. Values are built in one step
// through New, FromEvent or Enrich and never modified afterwards.
type Message struct {
	title           string
	content         string
	level           event.Level
	applicationName string
	environment     string
	stackTrace      string
	source          string
	timestamp       time.Time
	metadata        map[string]any
}

// New builds a Message from f. The metadata map is copied.
func New(f Fields) Message {
	md := make(map[string]any, len(f.Metadata))
	maps.Copy(md, f.Metadata)
	return Message{
		title:           f.Title,
		content:         f.Content,
		level:           f.Level,
		applicationName: f.ApplicationName,
		environment:     f.Environment,
		stackTrace:      f.StackTrace,
		source:          f.Source,
		timestamp:       f.Timestamp,
		metadata:        md,
	}
}

// StackLimits bound the rendered stack trace.
type StackLimits struct {
	MaxLines int
	MaxChars int
}

// DefaultStackLimits matches the chat payload limits of the bundled gateways.
var DefaultStackLimits = StackLimits{MaxLines: 20, MaxChars: 2000}

// FromEvent builds the destination-independent base message for ev.
func FromEvent(ev *event.Event, limits StackLimits) Message {
	md := make(map[string]any)
	for k, v := range ev.Properties() {
		md[k] = v
	}

	var stack string
	if ev.HasCause() {
		rendered := event.RenderCause(ev.Cause(), ev.Stack())
		stack = event.Truncate(event.FormatStack(rendered, limits.MaxLines), limits.MaxChars)
	}

	return New(Fields{
		Title:      event.ShortName(ev.LoggerName()),
		Content:    ev.Content(),
		Level:      ev.Level(),
		StackTrace: stack,
		Source:     ev.LoggerName(),
		Timestamp:  ev.Timestamp(),
		Metadata:   md,
	})
}

// Enrich returns a copy of m for dest: destination properties are merged over
// the event metadata, the endpoint is recorded under EndpointKey, and the
// application name and environment come from dest.
func (m Message) Enrich(dest destination.Config) Message {
	md := maps.Clone(m.metadata)
	if md == nil {
		md = make(map[string]any)
	}
	maps.Copy(md, dest.AdditionalProperties)
	md[EndpointKey] = dest.Endpoint

	return Message{
		title:           m.title,
		content:         m.content,
		level:           m.level,
		applicationName: dest.ApplicationName,
		environment:     dest.Environment,
		stackTrace:      m.stackTrace,
		source:          m.source,
		timestamp:       m.timestamp,
		metadata:        md,
	}
}

func (m Message) Title() string           { return m.title }
func (m Message) Content() string         { return m.content }
func (m Message) Level() event.Level      { return m.level }
func (m Message) ApplicationName() string { return m.applicationName }
func (m Message) Environment() string     { return m.environment }
func (m Message) StackTrace() string      { return m.stackTrace }
func (m Message) HasStackTrace() bool     { return m.stackTrace != "" }
func (m Message) Source() string          { return m.source }
func (m Message) Timestamp() time.Time    { return m.timestamp }

// Metadata returns a copy of the full metadata, including the endpoint.
func (m Message) Metadata() map[string]any {
	return maps.Clone(m.metadata)
}

// Value returns one metadata entry.
func (m Message) Value(key string) (any, bool) {
	v, ok := m.metadata[key]
	return v, ok
}

// Endpoint returns the resolved endpoint recorded by Enrich.
func (m Message) Endpoint() string {
	s, _ := m.metadata[EndpointKey].(string)
	return s
}

// DisplayMetadata returns the metadata safe to render, without the endpoint
// and without nil values.
func (m Message) DisplayMetadata() map[string]any {
	out := make(map[string]any, len(m.metadata))
	for k, v := range m.metadata {
		if k == EndpointKey || v == nil {
			continue
		}
		out[k] = v
	}
	return out
}

// DisplayKeys returns the DisplayMetadata keys in sorted order.
func (m Message) DisplayKeys() []string {
	return slices.Sorted(maps.Keys(m.DisplayMetadata()))
}
