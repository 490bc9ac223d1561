package platform

import (
	"regexp"
	"strings"

	"github.com/kart-io/errmonitor/pkg/event"
)

// LevelEmoji returns the chat emoji used in alert headers.
func LevelEmoji(l event.Level) string {
	switch l {
	case event.LevelError:
		return "🚨"
	case event.LevelWarn:
		return "⚠️"
	case event.LevelInfo:
		return "ℹ️"
	case event.LevelDebug:
		return "🔍"
	default:
		return "📝"
	}
}

var camelBoundary = regexp.MustCompile(`([a-z])([A-Z])`)

// DisplayKey turns a metadata key such as userId or user_id into "User Id".
func DisplayKey(key string) string {
	spaced := strings.ReplaceAll(camelBoundary.ReplaceAllString(key, "$1 $2"), "_", " ")
	words := strings.Fields(spaced)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}
