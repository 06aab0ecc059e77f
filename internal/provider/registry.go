package provider

import "fmt"

// Registry is the process-lifetime mapping from provider name to adapter,
// plus the default and fallback choices. It is built once at startup and
// never mutated afterwards, so concurrent reads need no synchronization.
type Registry struct {
	adapters     map[string]Adapter
	defaultName  string
	fallbackName string
}

// NewRegistry builds an immutable registry. The default and fallback names
// must both refer to one of the given adapters.
func NewRegistry(adapters []Adapter, defaultName, fallbackName string) (*Registry, error) {
	m := make(map[string]Adapter, len(adapters))
	for _, a := range adapters {
		if _, dup := m[a.Name()]; dup {
			return nil, fmt.Errorf("provider %q registered twice", a.Name())
		}
		m[a.Name()] = a
	}
	if _, ok := m[defaultName]; !ok {
		return nil, fmt.Errorf("default provider %q is not registered", defaultName)
	}
	if _, ok := m[fallbackName]; !ok {
		return nil, fmt.Errorf("fallback provider %q is not registered", fallbackName)
	}
	return &Registry{adapters: m, defaultName: defaultName, fallbackName: fallbackName}, nil
}

// Resolve returns the adapter for name. An empty or unrecognized name
// resolves to the default provider; callers never see a resolution failure.
func (r *Registry) Resolve(name string) Adapter {
	if a, ok := r.adapters[name]; ok {
		return a
	}
	return r.adapters[r.defaultName]
}

// Fallback returns the configured fallback adapter.
func (r *Registry) Fallback() Adapter {
	return r.adapters[r.fallbackName]
}

// DefaultName returns the name of the default provider.
func (r *Registry) DefaultName() string {
	return r.defaultName
}

// Names returns the registered provider names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for n := range r.adapters {
		names = append(names, n)
	}
	return names
}
