package domain

import "sync"

// Registry maps domain names to live *Domain instances so that
// continuations recorded by one domain can be dispatched onto another by
// name (§4.G, §9 "process-wide state: none required" — a Registry is owned
// by whatever process wires domains together, never a package-level
// global).
type Registry struct {
	mu      sync.RWMutex
	domains map[string]*Domain
}

func NewRegistry() *Registry {
	return &Registry{domains: make(map[string]*Domain)}
}

// Add registers d under its own name, replacing any prior domain with the
// same name.
func (r *Registry) Add(d *Domain) {
	r.mu.Lock()
	r.domains[d.name] = d
	r.mu.Unlock()
}

// Remove drops a domain from the registry.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	delete(r.domains, name)
	r.mu.Unlock()
}

// Lookup returns the domain registered under name, if any.
func (r *Registry) Lookup(name string) (*Domain, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.domains[name]
	return d, ok
}
