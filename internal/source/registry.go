package source

import (
	"github.com/rotisserie/eris"
)

// Registry maps source names to their adapters, preserving registration
// order for deterministic runs.
type Registry struct {
	adapters map[string]Adapter
	order    []string
}

// NewRegistry creates a registry populated with all upstream sources.
func NewRegistry() *Registry {
	r := &Registry{adapters: make(map[string]Adapter)}

	r.Register(&PJM{})
	r.Register(&MISO{})
	r.Register(&NYISO{})
	r.Register(&ERCOT{})
	r.Register(&LBNL{})

	return r
}

// Register adds an adapter to the registry.
func (r *Registry) Register(a Adapter) {
	if r.adapters == nil {
		r.adapters = make(map[string]Adapter)
	}
	name := a.Name()
	r.adapters[name] = a
	r.order = append(r.order, name)
}

// Get returns an adapter by name.
func (r *Registry) Get(name string) (Adapter, error) {
	a, ok := r.adapters[name]
	if !ok {
		return nil, eris.Errorf("source: unknown source %q", name)
	}
	return a, nil
}

// Select returns the named adapters, or all adapters when names is empty,
// in registration order.
func (r *Registry) Select(names []string) ([]Adapter, error) {
	if len(names) == 0 {
		return r.All(), nil
	}
	var result []Adapter
	for _, name := range names {
		a, err := r.Get(name)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, nil
}

// All returns all adapters in registration order.
func (r *Registry) All() []Adapter {
	result := make([]Adapter, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, r.adapters[name])
	}
	return result
}

// AllNames returns the registered source names in registration order.
func (r *Registry) AllNames() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
