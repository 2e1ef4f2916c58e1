package shipper

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry maps carrier codes to adapters. Codes are case-insensitive.
type Registry struct {
	adapters map[string]Adapter
	mu       sync.RWMutex
}

// NewRegistry creates a new adapter registry.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{
		adapters: make(map[string]Adapter),
	}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

// Register adds an adapter, replacing any adapter with the same code.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[normalize(a.Code())] = a
}

// Get returns the adapter for code.
func (r *Registry) Get(code string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if a, ok := r.adapters[normalize(code)]; ok {
		return a, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrCarrierNotFound, code)
}

// Has reports whether an adapter is registered for code.
func (r *Registry) Has(code string) bool {
	_, err := r.Get(code)
	return err == nil
}

// Codes returns the registered carrier codes, sorted.
func (r *Registry) Codes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	codes := make([]string, 0, len(r.adapters))
	for code := range r.adapters {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Count returns the number of registered adapters.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.adapters)
}

func normalize(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}
