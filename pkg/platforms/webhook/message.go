package webhook

import (
	"time"

	"github.com/kart-io/errmonitor/pkg/message"
)

// Payload is the flat JSON body posted to generic webhooks
type Payload struct {
	Title           string         `json:"title"`
	Content         string         `json:"content"`
	Level           string         `json:"level"`
	ApplicationName string         `json:"applicationName"`
	Environment     string         `json:"environment,omitempty"`
	Source          string         `json:"source,omitempty"`
	StackTrace      string         `json:"stackTrace,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	Timestamp       string         `json:"timestamp"`
}

// Format renders msg as a Payload. The endpoint is never included.
func Format(msg message.Message) Payload {
	ts := msg.Timestamp()
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return Payload{
		Title:           msg.Title(),
		Content:         msg.Content(),
		Level:           msg.Level().String(),
		ApplicationName: msg.ApplicationName(),
		Environment:     msg.Environment(),
		Source:          msg.Source(),
		StackTrace:      msg.StackTrace(),
		Metadata:        msg.DisplayMetadata(),
		Timestamp:       ts.Format(time.RFC3339Nano),
	}
}
