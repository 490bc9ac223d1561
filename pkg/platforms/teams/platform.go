// Package teams provides the Microsoft Teams connector gateway
package teams

import (
	"github.com/kart-io/errmonitor/pkg/destination"
	"github.com/kart-io/errmonitor/pkg/logger"
	"github.com/kart-io/errmonitor/pkg/message"
	"github.com/kart-io/errmonitor/pkg/platform"
)

// Name is the default gateway name
const Name = "teams"

// Options configures the Teams gateway
type Options struct {
	Name   string
	Poster *platform.Poster
	Logger logger.Logger
}

// Option mutates Options
type Option func(*Options)

// WithName sets the gateway name
func WithName(name string) Option { return func(o *Options) { o.Name = name } }

// WithPoster sets the transport
func WithPoster(p *platform.Poster) Option { return func(o *Options) { o.Poster = p } }

// WithLogger sets the logger
func WithLogger(l logger.Logger) Option { return func(o *Options) { o.Logger = l } }

// New creates a Teams gateway
func New(opts ...Option) *platform.WebhookGateway {
	o := Options{Name: Name}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Poster == nil {
		o.Poster = platform.NewPoster(platform.WithPosterLogger(o.Logger))
	}

	format := func(msg message.Message) (any, error) {
		return Format(msg), nil
	}
	return platform.NewWebhookGateway(o.Name, destination.KindTeams, format, o.Poster, o.Logger)
}
