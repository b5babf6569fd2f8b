package plugin

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/hupe1980/agentrelay/core"
)

type entry struct {
	plugin Plugin
	desc   Descriptor
}

// Registry maps capability names to module instances. Registration is
// expected to happen at startup; lookups are safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewRegistry creates an empty registry, optionally pre-populated.
// It panics on an invalid or duplicate plugin, like MustRegister.
func NewRegistry(plugins ...Plugin) *Registry {
	r := &Registry{entries: make(map[string]entry)}
	for _, p := range plugins {
		r.MustRegister(p)
	}
	return r
}

// Register adds p under its descriptor name. Names are matched
// case-insensitively. A duplicate name fails and keeps the first registration.
func (r *Registry) Register(p Plugin) error {
	if p == nil {
		return fmt.Errorf("%w: nil plugin", core.ErrInvalidArgument)
	}
	desc := p.Descriptor()
	desc.Name = strings.ToLower(strings.TrimSpace(desc.Name))
	if desc.Name == "" {
		return fmt.Errorf("%w: plugin name is empty", core.ErrInvalidArgument)
	}
	if strings.ContainsAny(desc.Name, " \t\n") {
		return fmt.Errorf("%w: plugin name %q contains whitespace", core.ErrInvalidArgument, desc.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[desc.Name]; exists {
		return fmt.Errorf("%w: %s", core.ErrDuplicateCapability, desc.Name)
	}
	r.entries[desc.Name] = entry{plugin: p, desc: desc.WithDefaults()}
	return nil
}

// MustRegister is like Register but panics on error. Intended for composition roots.
func (r *Registry) MustRegister(p Plugin) {
	if err := r.Register(p); err != nil {
		panic(err)
	}
}

// Get returns the plugin registered under name.
func (r *Registry) Get(name string) (Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[strings.ToLower(name)]
	return e.plugin, ok
}

// Descriptor returns the normalized descriptor registered under name.
func (r *Registry) Descriptor(name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[strings.ToLower(name)]
	return e.desc, ok
}

// List returns all descriptors sorted by name.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.desc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns the registered names sorted.
func (r *Registry) Names() []string {
	descs := r.List()
	names := make([]string, len(descs))
	for i, d := range descs {
		names[i] = d.Name
	}
	return names
}

// Len returns the number of registered plugins.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
