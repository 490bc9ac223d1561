package platform

import (
	"sync"

	"github.com/kart-io/errmonitor/pkg/destination"
	"github.com/kart-io/errmonitor/pkg/errors"
	"github.com/kart-io/errmonitor/pkg/logger"
)

// Registry holds the available gateways in registration order.
type Registry struct {
	mu       sync.RWMutex
	gateways []Gateway
	byName   map[string]Gateway
	logger   logger.Logger
}

// NewRegistry creates an empty registry
func NewRegistry(l logger.Logger) *Registry {
	return &Registry{
		byName: make(map[string]Gateway),
		logger: logger.OrDiscard(l),
	}
}

// Register adds gateways. Names must be unique.
func (r *Registry) Register(gateways ...Gateway) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, g := range gateways {
		if _, exists := r.byName[g.Name()]; exists {
			return errors.Newf(errors.ErrPlatformExists, "gateway %s already registered", g.Name())
		}
		r.byName[g.Name()] = g
		r.gateways = append(r.gateways, g)
		r.logger.Info("Gateway registered", "gateway", g.Name(), "kind", g.Kind())
	}
	return nil
}

// Unregister removes a gateway by name
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[name]; !exists {
		return errors.Newf(errors.ErrPlatformNotFound, "gateway %s not registered", name)
	}
	delete(r.byName, name)
	for i, g := range r.gateways {
		if g.Name() == name {
			r.gateways = append(r.gateways[:i:i], r.gateways[i+1:]...)
			break
		}
	}
	return nil
}

// Get returns a gateway by name
func (r *Registry) Get(name string) (Gateway, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.byName[name]
	if !ok {
		return nil, errors.Newf(errors.ErrPlatformNotFound, "gateway %s not registered", name)
	}
	return g, nil
}

// Names returns the registered gateway names in registration order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.gateways))
	for i, g := range r.gateways {
		names[i] = g.Name()
	}
	return names
}

// Match returns every gateway that supports dest, in registration order.
func (r *Registry) Match(dest destination.Config) []Gateway {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []Gateway
	for _, g := range r.gateways {
		if g.Supports(dest) {
			matched = append(matched, g)
		}
	}
	return matched
}

// Len returns the number of registered gateways
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.gateways)
}

// Close closes all gateways and empties the registry
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, g := range r.gateways {
		if err := g.Close(); err != nil {
			r.logger.Error("Failed to close gateway", "gateway", g.Name(), "error", err)
			errs = append(errs, err)
		}
	}
	r.gateways = nil
	r.byName = make(map[string]Gateway)
	return errors.Join(errs...)
}
