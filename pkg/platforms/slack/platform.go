// Package slack provides the Slack incoming-webhook gateway
package slack

import (
	"github.com/kart-io/errmonitor/pkg/destination"
	"github.com/kart-io/errmonitor/pkg/logger"
	"github.com/kart-io/errmonitor/pkg/message"
	"github.com/kart-io/errmonitor/pkg/platform"
)

// Name is the default gateway name
const Name = "slack"

// Options configures the Slack gateway
type Options struct {
	// Name overrides the gateway name, e.g. "slack-mirror" for a second instance.
	Name      string
	Channel   string
	Username  string
	IconEmoji string
	Poster    *platform.Poster
	Logger    logger.Logger
}

// Option mutates Options
type Option func(*Options)

// WithName sets the gateway name
func WithName(name string) Option { return func(o *Options) { o.Name = name } }

// WithChannel overrides the webhook's default channel
func WithChannel(channel string) Option { return func(o *Options) { o.Channel = channel } }

// WithUsername sets the posting username
func WithUsername(username string) Option { return func(o *Options) { o.Username = username } }

// WithIconEmoji sets the posting icon
func WithIconEmoji(icon string) Option { return func(o *Options) { o.IconEmoji = icon } }

// WithPoster sets the transport
func WithPoster(p *platform.Poster) Option { return func(o *Options) { o.Poster = p } }

// WithLogger sets the logger
func WithLogger(l logger.Logger) Option { return func(o *Options) { o.Logger = l } }

// New creates a Slack gateway
func New(opts ...Option) *platform.WebhookGateway {
	o := Options{Name: Name}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Poster == nil {
		o.Poster = platform.NewPoster(platform.WithPosterLogger(o.Logger))
	}

	format := func(msg message.Message) (any, error) {
		payload := Format(msg)
		payload.Channel = o.Channel
		payload.Username = o.Username
		payload.IconEmoji = o.IconEmoji
		return payload, nil
	}
	return platform.NewWebhookGateway(o.Name, destination.KindSlack, format, o.Poster, o.Logger)
}
