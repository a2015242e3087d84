package harness

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"mentorctl/internal/backend"
)

// Check exercises the backend once. It returns nil on success, an
// *AssertionError on a mismatch, or the backend error it hit.
type Check func(ctx context.Context, b backend.Adapter, params map[string]string) error

// CheckInfo describes a registered check.
type CheckInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	fn          Check
}

// Registry maps check names to implementations.
type Registry struct {
	mu     sync.RWMutex
	checks map[string]CheckInfo
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{checks: make(map[string]CheckInfo)}
}

// Register adds a check. Names must be unique.
func (r *Registry) Register(name, description string, fn Check) error {
	if name == "" || fn == nil {
		return fmt.Errorf("check needs a name and a function")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.checks[name]; exists {
		return fmt.Errorf("check %q already registered", name)
	}
	r.checks[name] = CheckInfo{Name: name, Description: description, fn: fn}
	return nil
}

// Lookup returns the check registered under name.
func (r *Registry) Lookup(name string) (Check, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.checks[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCheck, name)
	}
	return info.fn, nil
}

// List returns all checks sorted by name.
func (r *Registry) List() []CheckInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]CheckInfo, 0, len(r.checks))
	for _, info := range r.checks {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
