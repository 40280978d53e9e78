package usage

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry holds the providers bound for this process. Lookups happen at call
// time, so a provider bound after a Binding was handed out is still found.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

func NewRegistry() *Registry {
	return &Registry{providers: map[string]Provider{}}
}

// Bind registers p under p.Name(), replacing and closing any previous provider
// with the same name.
func (r *Registry) Bind(p Provider) error {
	if p == nil {
		return fmt.Errorf("bind: nil provider")
	}
	name := normalizeName(p.Name())
	if name == "" {
		return fmt.Errorf("bind: provider name is empty")
	}
	r.mu.Lock()
	prev := r.providers[name]
	r.providers[name] = p
	r.mu.Unlock()
	if prev != nil && prev != p {
		return prev.Close()
	}
	return nil
}

// Unbind removes and closes the named provider.
func (r *Registry) Unbind(name string) error {
	name = normalizeName(name)
	r.mu.Lock()
	p, ok := r.providers[name]
	delete(r.providers, name)
	r.mu.Unlock()
	if !ok {
		return nil
	}
	return p.Close()
}

func (r *Registry) Lookup(name string) (Provider, error) {
	name = normalizeName(name)
	r.mu.RLock()
	p, ok := r.providers[name]
	r.mu.RUnlock()
	if !ok {
		return nil, &UnavailableError{Name: name}
	}
	return p, nil
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.providers))
	for name := range r.providers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Binding returns a call-time binding for the named provider.
func (r *Registry) Binding(name string) Binding {
	return registryBinding{registry: r, name: name}
}

func (r *Registry) Close() error {
	r.mu.Lock()
	providers := r.providers
	r.providers = map[string]Provider{}
	r.mu.Unlock()

	var firstErr error
	for _, name := range sortedKeys(providers) {
		if err := providers[name].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

type registryBinding struct {
	registry *Registry
	name     string
}

// Name is the provider name the binding resolves.
func (b registryBinding) Name() string {
	return normalizeName(b.name)
}

func (b registryBinding) Provider() (Provider, error) {
	if b.registry == nil {
		return nil, &UnavailableError{Name: normalizeName(b.name)}
	}
	return b.registry.Lookup(b.name)
}

// StaticBinding binds a single provider directly; a nil provider is unavailable.
type StaticBinding struct {
	P Provider
}

func (b StaticBinding) Provider() (Provider, error) {
	if b.P == nil {
		return nil, &UnavailableError{}
	}
	return b.P, nil
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func sortedKeys(m map[string]Provider) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
