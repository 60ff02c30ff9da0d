package command

import (
	"fmt"
	"sync"

	"mysql-dbdriver/internal/driver"
)

// Registry is a Handles implementation that names handles "nsdb0",
// "nsdb1", ... in registration order.
type Registry struct {
	mu      sync.RWMutex
	next    int
	handles map[string]*driver.Handle
}

func NewRegistry() *Registry {
	return &Registry{handles: make(map[string]*driver.Handle)}
}

// Add registers h and returns its name.
func (r *Registry) Add(h *driver.Handle) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := fmt.Sprintf("nsdb%d", r.next)
	r.next++
	r.handles[name] = h
	return name
}

// Remove forgets name. The handle itself is left alone.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handles, name)
}

func (r *Registry) Handle(name string) (*driver.Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[name]
	return h, ok
}
