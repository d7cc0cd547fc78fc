package game

import (
	"sync"

	"github.com/typewars/typewars-server/internal/metrics"
)

// ControllerFactory builds the controller for a session on first join.
type ControllerFactory func(sessionID string) (*Controller, error)

type registryEntry struct {
	useCount   int
	controller *Controller
}

// Registry is the process-wide mapping from session identifier to its
// refcounted controller. At most one controller exists per session while
// its refcount is positive.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*registryEntry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*registryEntry)}
}

// GetOrCreate returns the session's controller, constructing it through the
// factory when absent. Factory errors (ErrGameOver, ErrNotFound) propagate
// and leave no entry behind.
func (r *Registry) GetOrCreate(factory ControllerFactory, sessionID string) (*Controller, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[sessionID]
	if !ok {
		controller, err := factory(sessionID)
		if err != nil {
			return nil, err
		}
		entry = &registryEntry{controller: controller}
		r.entries[sessionID] = entry
		metrics.ActiveControllers.Inc()
	}
	entry.useCount++
	return entry.controller, nil
}

// Release decrements the session's refcount and deletes the controller when
// it drops to zero.
func (r *Registry) Release(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[sessionID]
	if !ok {
		return
	}
	entry.useCount--
	if entry.useCount <= 0 {
		delete(r.entries, sessionID)
		metrics.ActiveControllers.Dec()
	}
}

// Len reports how many controllers are live.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
