// Package registry holds the probe implementations known to the daemon.
// Probes are registered explicitly at startup; there is no directory
// scanning or dynamic loading.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/HerbHall/netpad/pkg/probe"
	"go.uber.org/zap"
	"golang.org/x/mod/semver"
)

// ErrUnknownProbe is returned when a probe name has no registered factory.
var ErrUnknownProbe = errors.New("unknown probe")

// Registry maps probe names to their factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]probe.Factory
	order     []string // registration order
	logger    *zap.Logger
}

// New creates an empty probe registry.
func New(logger *zap.Logger) *Registry {
	return &Registry{
		factories: make(map[string]probe.Factory),
		logger:    logger,
	}
}

// Register adds a probe factory. Names must be unique and versions must be
// valid semantic versions.
func (r *Registry) Register(f probe.Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	info := f.Info()
	name := info.Name

	if name == "" {
		return fmt.Errorf("probe has empty name")
	}
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("probe %q already registered", name)
	}
	if !semver.IsValid("v" + info.Version) {
		return fmt.Errorf("probe %q has invalid version %q", name, info.Version)
	}

	r.factories[name] = f
	r.order = append(r.order, name)
	r.logger.Info("imported probe",
		zap.String("name", name),
		zap.String("description", info.Description),
		zap.String("version", info.Version),
	)
	return nil
}

// Validate constructs every registered probe once with the dependencies
// depsFn returns, so that bad probe defaults abort startup instead of
// surfacing on the first poll.
func (r *Registry) Validate(depsFn func(name string) probe.Dependencies) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range r.order {
		if _, err := r.factories[name].New(depsFn(name)); err != nil {
			return fmt.Errorf("probe %q failed to initialize: %w", name, err)
		}
	}
	r.logger.Info("probe registry validated", zap.Strings("probes", r.order))
	return nil
}

// Lookup returns the factory registered under name.
func (r *Registry) Lookup(name string) (probe.Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	return f, ok
}

// New constructs a fresh probe instance by name.
func (r *Registry) New(name string, deps probe.Dependencies) (probe.Probe, error) {
	f, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProbe, name)
	}
	return f.New(deps)
}

// Names returns registered probe names sorted alphabetically.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	sort.Strings(names)
	return names
}

// Infos returns metadata for all registered probes in registration order.
func (r *Registry) Infos() []probe.Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	infos := make([]probe.Info, 0, len(r.order))
	for _, name := range r.order {
		infos = append(infos, r.factories[name].Info())
	}
	return infos
}
