package platform

import (
	"context"
	"time"

	"github.com/kart-io/errmonitor/pkg/destination"
	"github.com/kart-io/errmonitor/pkg/errors"
	"github.com/kart-io/errmonitor/pkg/event"
	"github.com/kart-io/errmonitor/pkg/logger"
	"github.com/kart-io/errmonitor/pkg/message"
	"github.com/kart-io/errmonitor/pkg/receipt"
)

// HealthCheckText is the content of the synthetic connection-test message.
const HealthCheckText = "Health check from errmonitor"

// WebhookGateway is a Gateway that formats messages into a JSON payload and
// posts them through a Poster. The slack, teams and webhook packages build
// on it.
type WebhookGateway struct {
	name   string
	kind   destination.Kind
	format Formatter
	poster *Poster
	logger logger.Logger
}

// NewWebhookGateway creates a gateway named name serving kind.
func NewWebhookGateway(name string, kind destination.Kind, format Formatter, poster *Poster, l logger.Logger) *WebhookGateway {
	if poster == nil {
		poster = NewPoster(WithPosterLogger(l))
	}
	return &WebhookGateway{
		name:   name,
		kind:   kind,
		format: format,
		poster: poster,
		logger: logger.OrDiscard(l),
	}
}

// Name returns the gateway name
func (g *WebhookGateway) Name() string { return g.name }

// Kind returns the destination kind served
func (g *WebhookGateway) Kind() destination.Kind { return g.kind }

// Supports reports whether dest is enabled and resolves to this gateway's kind
func (g *WebhookGateway) Supports(dest destination.Config) bool {
	return dest.Enabled && dest.Endpoint != "" && dest.ResolvedKind() == g.kind
}

// Send formats and posts msg
func (g *WebhookGateway) Send(ctx context.Context, msg message.Message, endpoint string) receipt.Outcome {
	start := time.Now()
	masked := destination.MaskEndpoint(endpoint)

	payload, err := g.format(msg)
	if err != nil {
		g.logger.Error("Failed to format notification", "gateway", g.name, "endpoint", masked, "error", err)
		return receipt.Failure(masked, g.name, errors.Wrap(err, errors.ErrMessageEncoding, "format payload")).
			WithDuration(time.Since(start))
	}

	status, err := g.poster.PostJSON(ctx, g.name, endpoint, payload)
	if err != nil {
		return receipt.Failure(masked, g.name, err).WithDuration(time.Since(start))
	}
	return receipt.Success(masked, g.name, status).WithDuration(time.Since(start))
}

// TestConnection posts a synthetic health-check message
func (g *WebhookGateway) TestConnection(ctx context.Context, endpoint string) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("Connection test panicked", "gateway", g.name, "panic", r)
			ok = false
		}
	}()

	msg := message.New(message.Fields{
		Title:           "Health Check",
		Content:         HealthCheckText,
		Level:           event.LevelInfo,
		ApplicationName: "errmonitor",
		Timestamp:       time.Now().UTC(),
	})
	outcome := g.Send(ctx, msg, endpoint)
	if !outcome.Succeeded {
		g.logger.Warn("Connection test failed", "gateway", g.name, "endpoint", destination.MaskEndpoint(endpoint), "error", outcome.Error)
	}
	return outcome.Succeeded
}

// Close releases idle connections
func (g *WebhookGateway) Close() error {
	g.poster.CloseIdleConnections()
	return nil
}
