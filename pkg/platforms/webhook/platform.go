// Package webhook provides a gateway for generic JSON webhooks
package webhook

import (
	"github.com/kart-io/errmonitor/pkg/destination"
	"github.com/kart-io/errmonitor/pkg/logger"
	"github.com/kart-io/errmonitor/pkg/message"
	"github.com/kart-io/errmonitor/pkg/platform"
)

// Name is the default gateway name
const Name = "webhook"

// Options configures the webhook gateway
type Options struct {
	Name    string
	Headers map[string]string
	Poster  *platform.Poster
	Logger  logger.Logger
}

// Option mutates Options
type Option func(*Options)

// WithName sets the gateway name
func WithName(name string) Option { return func(o *Options) { o.Name = name } }

// WithHeader adds a request header, e.g. an auth token. Ignored when WithPoster is used.
func WithHeader(key, value string) Option {
	return func(o *Options) {
		if o.Headers == nil {
			o.Headers = make(map[string]string)
		}
		o.Headers[key] = value
	}
}

// WithPoster sets the transport
func WithPoster(p *platform.Poster) Option { return func(o *Options) { o.Poster = p } }

// WithLogger sets the logger
func WithLogger(l logger.Logger) Option { return func(o *Options) { o.Logger = l } }

// New creates a generic webhook gateway
func New(opts ...Option) *platform.WebhookGateway {
	o := Options{Name: Name}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Poster == nil {
		posterOpts := []platform.PosterOption{platform.WithPosterLogger(o.Logger)}
		for k, v := range o.Headers {
			posterOpts = append(posterOpts, platform.WithHeader(k, v))
		}
		o.Poster = platform.NewPoster(posterOpts...)
	}

	format := func(msg message.Message) (any, error) {
		return Format(msg), nil
	}
	return platform.NewWebhookGateway(o.Name, destination.KindWebhook, format, o.Poster, o.Logger)
}
