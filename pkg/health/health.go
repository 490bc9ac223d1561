// Package health probes configured destinations through their gateways.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/kart-io/errmonitor/pkg/destination"
	"github.com/kart-io/errmonitor/pkg/logger"
	"github.com/kart-io/errmonitor/pkg/platform"
)

// Check is the result of probing one destination through one gateway
type Check struct {
	Destination string        `json:"destination"`
	Gateway     string        `json:"gateway"`
	Endpoint    string        `json:"endpoint"`
	Healthy     bool          `json:"healthy"`
	Duration    time.Duration `json:"duration"`
}

// Status aggregates every check
type Status struct {
	Healthy   bool      `json:"healthy"`
	Checks    []Check   `json:"checks"`
	CheckedAt time.Time `json:"checked_at"`
}

// Checker runs connection tests against the registry's gateways
type Checker struct {
	registry *platform.Registry
	dests    []destination.Config
	logger   logger.Logger
}

// NewChecker creates a Checker for the enabled destinations in dests
func NewChecker(registry *platform.Registry, dests []destination.Config, l logger.Logger) *Checker {
	return &Checker{registry: registry, dests: dests, logger: logger.OrDiscard(l)}
}

// Check probes every (destination, gateway) pair concurrently. Checks keep
// configuration order. With nothing to probe the status is healthy.
func (c *Checker) Check(ctx context.Context) Status {
	type probe struct {
		dest destination.Config
		gw   platform.Gateway
	}
	var probes []probe
	if c.registry != nil {
		for _, d := range c.dests {
			if !d.Enabled {
				continue
			}
			for _, g := range c.registry.Match(d) {
				probes = append(probes, probe{dest: d, gw: g})
			}
		}
	}

	checks := make([]Check, len(probes))
	var wg sync.WaitGroup
	for i, p := range probes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			ok := p.gw.TestConnection(ctx, p.dest.Endpoint)
			checks[i] = Check{
				Destination: p.dest.DisplayName(),
				Gateway:     p.gw.Name(),
				Endpoint:    destination.MaskEndpoint(p.dest.Endpoint),
				Healthy:     ok,
				Duration:    time.Since(start),
			}
			if !ok {
				c.logger.Warn("Destination health check failed",
					"destination", checks[i].Destination, "gateway", checks[i].Gateway, "endpoint", checks[i].Endpoint)
			}
		}()
	}
	wg.Wait()

	status := Status{Healthy: true, Checks: checks, CheckedAt: time.Now().UTC()}
	for _, ch := range checks {
		if !ch.Healthy {
			status.Healthy = false
		}
	}
	return status
}
