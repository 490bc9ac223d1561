package event

import "strings"

// Level is an ordered event severity.
type Level int

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = [...]string{"TRACE", "DEBUG", "INFO", "WARN", "ERROR"}

// String returns the upper-case level name.
func (l Level) String() string {
	if l < LevelTrace || l > LevelError {
		return "ERROR"
	}
	return levelNames[l]
}

// AtLeast reports whether l ranks at or above min.
func (l Level) AtLeast(min Level) bool {
	return l >= min
}

// ParseLevel parses a level name case-insensitively. Names that cannot be
// parsed are treated as LevelError so that unknown severities still notify.
func ParseLevel(name string) Level {
	l, ok := LookupLevel(name)
	if !ok {
		return LevelError
	}
	return l
}

// LookupLevel parses a level name and reports whether it was recognised.
func LookupLevel(name string) (Level, bool) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "TRACE":
		return LevelTrace, true
	case "DEBUG":
		return LevelDebug, true
	case "INFO":
		return LevelInfo, true
	case "WARN", "WARNING":
		return LevelWarn, true
	case "ERROR", "FATAL", "PANIC":
		return LevelError, true
	default:
		return LevelError, false
	}
}
