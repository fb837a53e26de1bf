package routes

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrInvalidRoute is returned for paths outside the API prefix
	ErrInvalidRoute = errors.New("route is not an /api/ route")
	// ErrRouteNotFound is returned when no handler is registered for a path
	ErrRouteNotFound = errors.New("no route")
	// ErrDuplicateRoute is returned when a path is registered twice
	ErrDuplicateRoute = errors.New("route already registered")
)

// Registry maps API route paths to their handlers. It is filled once at
// startup and only read afterwards.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]HandlerFunc)}
}

// Register adds handler under path. path must carry the API prefix and may
// only be registered once.
func (r *Registry) Register(path string, handler HandlerFunc) error {
	if !IsAPIPath(path) {
		return fmt.Errorf("%w: %s", ErrInvalidRoute, path)
	}
	if handler == nil {
		return fmt.Errorf("nil handler for %s", path)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[path]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateRoute, path)
	}
	r.handlers[path] = handler
	return nil
}

// Resolve returns the handler for path. Any query string is ignored.
func (r *Registry) Resolve(path string) (HandlerFunc, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handler, ok := r.handlers[stripQuery(path)]
	if !ok {
		return nil, fmt.Errorf("%w for %s", ErrRouteNotFound, path)
	}
	return handler, nil
}

// Paths returns the registered paths in lexical order
func (r *Registry) Paths() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	paths := make([]string, 0, len(r.handlers))
	for p := range r.handlers {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Len returns the number of registered routes
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}
