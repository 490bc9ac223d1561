package appender

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kart-io/errmonitor/pkg/event"
)

// LoggerKey is the attribute naming the originating logger or component.
const LoggerKey = "logger"

// SlogHandler forwards records at or above Level to an Appender and passes
// every record on to Next when one is set.
type SlogHandler struct {
	appender *Appender
	next     slog.Handler
	level    slog.Leveler
	attrs    []slog.Attr
	groups   []string
}

// NewSlogHandler creates a handler. level defaults to slog.LevelError.
func NewSlogHandler(a *Appender, next slog.Handler, level slog.Leveler) *SlogHandler {
	if level == nil {
		level = slog.LevelError
	}
	return &SlogHandler{appender: a, next: next, level: level}
}

func (h *SlogHandler) Enabled(ctx context.Context, l slog.Level) bool {
	if l >= h.level.Level() {
		return true
	}
	return h.next != nil && h.next.Enabled(ctx, l)
}

func (h *SlogHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= h.level.Level() {
		h.appender.Append(ctx, h.toEvent(r))
	}
	if h.next != nil && h.next.Enabled(ctx, r.Level) {
		return h.next.Handle(ctx, r)
	}
	return nil
}

func (h *SlogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := h.clone()
	prefix := h.prefix()
	for _, a := range attrs {
		if prefix != "" {
			a.Key = prefix + a.Key
		}
		c.attrs = append(c.attrs, a)
	}
	if h.next != nil {
		c.next = h.next.WithAttrs(attrs)
	}
	return c
}

func (h *SlogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := h.clone()
	c.groups = append(c.groups, name)
	if h.next != nil {
		c.next = h.next.WithGroup(name)
	}
	return c
}

func (h *SlogHandler) clone() *SlogHandler {
	c := *h
	c.attrs = append([]slog.Attr(nil), h.attrs...)
	c.groups = append([]string(nil), h.groups...)
	return &c
}

func (h *SlogHandler) prefix() string {
	if len(h.groups) == 0 {
		return ""
	}
	return strings.Join(h.groups, ".") + "."
}

func (h *SlogHandler) toEvent(r slog.Record) *event.Event {
	f := event.Fields{
		Level:      SlogLevel(r.Level).String(),
		Message:    r.Message,
		Timestamp:  r.Time,
		Properties: make(map[string]string),
	}

	collect := func(a slog.Attr, prefix string) {
		a.Value = a.Value.Resolve()
		if err, ok := a.Value.Any().(error); ok && f.Cause == nil {
			f.Cause = err
			return
		}
		if a.Key == LoggerKey && prefix == "" {
			f.LoggerName = a.Value.String()
			return
		}
		flatten(f.Properties, prefix+a.Key, a.Value)
	}
	for _, a := range h.attrs {
		collect(a, "")
	}
	prefix := h.prefix()
	r.Attrs(func(a slog.Attr) bool {
		collect(a, prefix)
		return true
	})
	return event.New(f)
}

func flatten(out map[string]string, key string, v slog.Value) {
	if v.Kind() != slog.KindGroup {
		out[key] = fmt.Sprint(v.Any())
		return
	}
	for _, a := range v.Group() {
		flatten(out, key+"."+a.Key, a.Value.Resolve())
	}
}

// SlogLevel maps a slog level onto an event level
func SlogLevel(l slog.Level) event.Level {
	switch {
	case l >= slog.LevelError:
		return event.LevelError
	case l >= slog.LevelWarn:
		return event.LevelWarn
	case l >= slog.LevelInfo:
		return event.LevelInfo
	case l >= slog.LevelDebug:
		return event.LevelDebug
	default:
		return event.LevelTrace
	}
}
