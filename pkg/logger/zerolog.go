package logger

import (
	"fmt"

	"github.com/rs/zerolog"
)

// ZerologLogger adapts a zerolog.Logger to the Logger interface.
type ZerologLogger struct {
	zl    zerolog.Logger
	level LogLevel
}

// NewZerolog wraps zl. The adapter filters at Info until LogMode says otherwise;
// zerolog's own global and per-logger levels still apply on top.
func NewZerolog(zl zerolog.Logger) Logger {
	return &ZerologLogger{zl: zl, level: Info}
}

// LogMode sets the log level and returns a new logger instance.
func (l *ZerologLogger) LogMode(level LogLevel) Logger {
	newLogger := *l
	newLogger.level = level
	return &newLogger
}

func (l *ZerologLogger) Info(msg string, args ...any) {
	if l.level >= Info {
		l.emit(l.zl.Info(), msg, args)
	}
}

func (l *ZerologLogger) Warn(msg string, args ...any) {
	if l.level >= Warn {
		l.emit(l.zl.Warn(), msg, args)
	}
}

func (l *ZerologLogger) Error(msg string, args ...any) {
	if l.level >= Error {
		l.emit(l.zl.Error(), msg, args)
	}
}

func (l *ZerologLogger) Debug(msg string, args ...any) {
	if l.level >= Debug {
		l.emit(l.zl.Debug(), msg, args)
	}
}

func (l *ZerologLogger) emit(ev *zerolog.Event, msg string, args []any) {
	if ev == nil {
		return
	}
	for i := 0; i < len(args); i += 2 {
		key := fmt.Sprint(args[i])
		if i+1 >= len(args) {
			ev = ev.Str(key, "(no value)")
			break
		}
		switch v := args[i+1].(type) {
		case error:
			ev = ev.AnErr(key, v)
		case string:
			ev = ev.Str(key, v)
		default:
			ev = ev.Interface(key, v)
		}
	}
	ev.Msg(msg)
}
