package action

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	timesheet "github.com/adiazcan/timesheet-speck-kit-sub001"
)

// Registry maps action kinds to executors. The set of kinds is open: a
// kind is known once an executor is bound to it. It is safe for
// concurrent use.
type Registry struct {
	mu        sync.RWMutex
	executors map[Kind]Executor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{executors: make(map[Kind]Executor)}
}

// Register binds exec to kind, replacing any previous binding.
func (r *Registry) Register(kind Kind, exec Executor) error {
	if strings.TrimSpace(string(kind)) == "" {
		return fmt.Errorf("%w: action kind is required", timesheet.ErrInvalidInput)
	}
	if exec == nil {
		return fmt.Errorf("%w: nil executor for %q", timesheet.ErrInvalidInput, kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[kind] = exec
	return nil
}

// Get returns the executor for kind.
func (r *Registry) Get(kind Kind) (Executor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.executors[kind]
	return e, ok
}

// Has reports whether kind has an executor.
func (r *Registry) Has(kind Kind) bool {
	_, ok := r.Get(kind)
	return ok
}

// ParseKind converts s into a registered Kind.
func (r *Registry) ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !r.Has(k) {
		return "", fmt.Errorf("%w: %q", timesheet.ErrUnknownAction, s)
	}
	return k, nil
}

// Registered returns the bound kinds in sorted order.
func (r *Registry) Registered() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]Kind, 0, len(r.executors))
	for k := range r.executors {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Validate fails with ErrUnknownAction when any of kinds (the built-in
// kinds if none are given) has no executor. Call it before the processor starts
// so that a missing binding is a startup error, not a runtime one.
func (r *Registry) Validate(kinds ...Kind) error {
	if len(kinds) == 0 {
		kinds = Kinds()
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var missing []string
	for _, k := range kinds {
		if _, ok := r.executors[k]; !ok {
			missing = append(missing, string(k))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: no executor registered for %v", timesheet.ErrUnknownAction, missing)
	}
	return nil
}
