package domain

import (
	"fmt"
	"sync"
)

// General is the name of the fallback domain every registry carries.
const General = "general"

// Registry is a thread-safe set of domains, kept in registration order.
type Registry struct {
	mu      sync.RWMutex
	domains map[string]*Domain
	order   []string
}

// NewRegistry creates a registry holding the built-in domains followed by extra.
// An extra domain with a built-in name replaces it.
func NewRegistry(extra ...Domain) (*Registry, error) {
	r := &Registry{domains: make(map[string]*Domain)}
	for _, d := range builtins() {
		if err := r.Register(d); err != nil {
			return nil, err
		}
	}
	for _, d := range extra {
		if err := r.Register(d); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds or replaces a domain.
func (r *Registry) Register(d Domain) error {
	if err := d.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.domains[d.Name]; !exists {
		r.order = append(r.order, d.Name)
	}
	r.domains[d.Name] = &d
	return nil
}

// Get returns the named domain.
func (r *Registry) Get(name string) (*Domain, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.domains[name]
	return d, ok
}

// List returns all domains in registration order.
func (r *Registry) List() []*Domain {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Domain, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.domains[name])
	}
	return out
}

// Detect picks the domain whose keywords best match goal. Ties go to the
// earlier registration; no match yields the general domain.
func (r *Registry) Detect(goal string) *Domain {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best *Domain
	bestScore := 0
	for _, name := range r.order {
		d := r.domains[name]
		if s := d.score(goal); s > bestScore {
			best, bestScore = d, s
		}
	}
	if best == nil {
		return r.domains[General]
	}
	return best
}

// Resolve returns the named domain, or detects one from goal when name is
// empty or "auto".
func (r *Registry) Resolve(name, goal string) (*Domain, error) {
	if name == "" || name == "auto" {
		return r.Detect(goal), nil
	}
	d, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("unknown domain %q", name)
	}
	return d, nil
}
