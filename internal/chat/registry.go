package chat

import (
	"log/slog"
	"sync"
)

// Registry keeps at most one live view model per screen key.
type Registry struct {
	logger *slog.Logger

	mu     sync.RWMutex
	active map[string]*ViewModel
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger: logger,
		active: make(map[string]*ViewModel),
	}
}

// Get returns the live view model for key, or nil.
func (r *Registry) Get(key string) *ViewModel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active[key]
}

// Register makes vm the live view model for key. A previous view model for the
// same key is closed.
func (r *Registry) Register(key string, vm *ViewModel) {
	r.mu.Lock()
	existing := r.active[key]
	r.active[key] = vm
	r.mu.Unlock()

	if existing != nil && existing != vm {
		existing.Close()
		r.logger.Info("chat screen replaced", "screen", key)
	}
}

// Unregister closes vm and removes it if it is still the live one for key.
func (r *Registry) Unregister(key string, vm *ViewModel) {
	r.mu.Lock()
	if current, ok := r.active[key]; ok && current == vm {
		delete(r.active, key)
	}
	r.mu.Unlock()

	vm.Close()
}

// CloseAll closes every live view model.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	all := r.active
	r.active = make(map[string]*ViewModel)
	r.mu.Unlock()

	for _, vm := range all {
		vm.Close()
	}
}

// Len returns the number of live view models.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.active)
}
