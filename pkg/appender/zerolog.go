package appender

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/kart-io/errmonitor/pkg/event"
)

// ZerologHook forwards zerolog events at or above MinLevel to an Appender.
// Zerolog does not expose event fields to hooks, so only the level and
// message are captured.
type ZerologHook struct {
	Appender   *Appender
	MinLevel   zerolog.Level
	LoggerName string
}

// NewZerologHook creates a hook forwarding errors and above
func NewZerologHook(a *Appender, loggerName string) ZerologHook {
	return ZerologHook{Appender: a, MinLevel: zerolog.ErrorLevel, LoggerName: loggerName}
}

func (h ZerologHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	if h.Appender == nil || level < h.MinLevel || level == zerolog.NoLevel || level == zerolog.Disabled {
		return
	}
	ctx := e.GetCtx()
	if ctx == nil {
		ctx = context.Background()
	}
	h.Appender.Append(ctx, event.New(event.Fields{
		Level:      ZerologLevel(level).String(),
		Message:    msg,
		LoggerName: h.LoggerName,
	}))
}

// ZerologLevel maps a zerolog level onto an event level
func ZerologLevel(l zerolog.Level) event.Level {
	switch {
	case l >= zerolog.ErrorLevel:
		return event.LevelError
	case l == zerolog.WarnLevel:
		return event.LevelWarn
	case l == zerolog.InfoLevel:
		return event.LevelInfo
	case l == zerolog.DebugLevel:
		return event.LevelDebug
	default:
		return event.LevelTrace
	}
}
