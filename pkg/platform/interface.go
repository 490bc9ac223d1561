// Package platform provides the gateway abstraction used to deliver
// notifications to one destination kind, plus the shared webhook transport.
package platform

import (
	"context"

	"github.com/kart-io/errmonitor/pkg/destination"
	"github.com/kart-io/errmonitor/pkg/message"
	"github.com/kart-io/errmonitor/pkg/receipt"
)

// Gateway delivers messages for one destination kind.
//
// Send never returns an error: every failure is reported through the
// returned Outcome, which carries a status code only when the remote side
// answered. Implementations must never log an unmasked endpoint.
type Gateway interface {
	// Name identifies the gateway instance, e.g. "slack" or "slack-mirror".
	Name() string
	// Kind is the destination kind the gateway serves.
	Kind() destination.Kind
	// Supports reports whether dest should be delivered through this gateway.
	Supports(dest destination.Config) bool
	// Send delivers msg to endpoint.
	Send(ctx context.Context, msg message.Message, endpoint string) receipt.Outcome
	// TestConnection sends a synthetic health-check message and reports
	// whether it was accepted. Errors are reported as false.
	TestConnection(ctx context.Context, endpoint string) bool
	// Close releases transport resources.
	Close() error
}

// Formatter turns a message into the payload posted for one gateway kind.
type Formatter func(msg message.Message) (any, error)
