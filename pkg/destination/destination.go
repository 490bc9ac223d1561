// Package destination describes configured notification targets and the
// rules that decide whether an event is delivered to them.
package destination

import (
	"maps"
	"net/url"
	"strings"

	"github.com/kart-io/errmonitor/pkg/event"
)

// Kind names the gateway family a destination is delivered through.
type Kind string

const (
	KindSlack   Kind = "slack"
	KindTeams   Kind = "teams"
	KindWebhook Kind = "webhook"
)

// Config is one configured destination. It is loaded once and shared
// read-only across concurrent dispatches.
type Config struct {
	Name            string `mapstructure:"name" json:"name" yaml:"name"`
	Kind            Kind   `mapstructure:"kind" json:"kind,omitempty" yaml:"kind"`
	Endpoint        string `mapstructure:"endpoint" json:"-" yaml:"endpoint"`
	ApplicationName string `mapstructure:"application_name" json:"application_name" yaml:"application_name"`
	Environment     string `mapstructure:"environment" json:"environment" yaml:"environment"`
	// MinimumLevel is empty when every level is eligible.
	MinimumLevel         string         `mapstructure:"minimum_level" json:"minimum_level,omitempty" yaml:"minimum_level"`
	Enabled              bool           `mapstructure:"enabled" json:"enabled" yaml:"enabled"`
	AdditionalProperties map[string]any `mapstructure:"additional_properties" json:"additional_properties,omitempty" yaml:"additional_properties"`
}

// ResolvedKind returns Kind, or infers it from the endpoint host when unset.
func (c Config) ResolvedKind() Kind {
	if c.Kind != "" {
		return Kind(strings.ToLower(string(c.Kind)))
	}
	return InferKind(c.Endpoint)
}

// DisplayName returns Name, or the masked endpoint when no name is configured.
func (c Config) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return MaskEndpoint(c.Endpoint)
}

// Eligible reports whether an event at level should be sent to this destination.
func (c Config) Eligible(level event.Level) bool {
	if !c.Enabled {
		return false
	}
	if strings.TrimSpace(c.MinimumLevel) == "" {
		return true
	}
	return level.AtLeast(event.ParseLevel(c.MinimumLevel))
}

// Properties returns a copy of the additional properties.
func (c Config) Properties() map[string]any {
	return maps.Clone(c.AdditionalProperties)
}

// AnyEnabled reports whether at least one destination is enabled.
func AnyEnabled(dests []Config) bool {
	for _, d := range dests {
		if d.Enabled {
			return true
		}
	}
	return false
}

// InferKind guesses the gateway family from a webhook URL.
func InferKind(endpoint string) Kind {
	u, err := url.Parse(endpoint)
	if err != nil {
		return KindWebhook
	}
	host := strings.ToLower(u.Hostname())
	switch {
	case host == "hooks.slack.com":
		return KindSlack
	case host == "outlook.office.com",
		strings.HasSuffix(host, ".office365.com"),
		host == "office365.com",
		strings.HasSuffix(host, ".webhook.office.com"):
		return KindTeams
	default:
		return KindWebhook
	}
}

// MaskEndpoint reduces a secret-bearing URL to its host.
func MaskEndpoint(endpoint string) string {
	if len(endpoint) < 20 {
		return "***"
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Hostname() + "/***"
}
