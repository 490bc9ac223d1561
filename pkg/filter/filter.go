// Package filter decides whether a captured event is admitted into the
// notification pipeline.
package filter

import (
	"context"
	"strings"

	"github.com/kart-io/errmonitor/pkg/event"
)

// Rejection reasons reported alongside a false decision
const (
	ReasonLevel     = "level"
	ReasonPrefix    = "prefix"
	ReasonRateLimit = "rate_limit"
)

// Filter admits or rejects an event. On rejection it returns a short reason
// label suitable for a metrics dimension.
type Filter interface {
	ShouldReport(ctx context.Context, ev *event.Event) (bool, string)
}

// Func adapts a function to Filter
type Func func(ctx context.Context, ev *event.Event) (bool, string)

func (f Func) ShouldReport(ctx context.Context, ev *event.Event) (bool, string) {
	return f(ctx, ev)
}

// AllowAll admits every event
var AllowAll Filter = Func(func(context.Context, *event.Event) (bool, string) { return true, "" })

// Level admits events at or above Minimum
type Level struct {
	Minimum event.Level
}

func (f Level) ShouldReport(_ context.Context, ev *event.Event) (bool, string) {
	if ev.Level().AtLeast(f.Minimum) {
		return true, ""
	}
	return false, ReasonLevel
}

// Prefix filters on the event's logger name. An empty Include admits every
// name; Exclude takes precedence over Include.
type Prefix struct {
	Include []string
	Exclude []string
}

func (f Prefix) ShouldReport(_ context.Context, ev *event.Event) (bool, string) {
	name := ev.LoggerName()
	for _, p := range f.Exclude {
		if strings.HasPrefix(name, p) {
			return false, ReasonPrefix
		}
	}
	if len(f.Include) == 0 {
		return true, ""
	}
	for _, p := range f.Include {
		if strings.HasPrefix(name, p) {
			return true, ""
		}
	}
	return false, ReasonPrefix
}

// Chain runs filters in order; the first rejection wins.
type Chain []Filter

func (c Chain) ShouldReport(ctx context.Context, ev *event.Event) (bool, string) {
	for _, f := range c {
		if ok, reason := f.ShouldReport(ctx, ev); !ok {
			return false, reason
		}
	}
	return true, ""
}
