package gateway

import (
	"fmt"
	"sync"
)

// Registry holds the set of currently connected services, keyed by
// service name (spec §4.6). A service occupies exactly one name at a
// time; registering a name already in use fails with ALREADY_REGISTERED
// rather than replacing the holder.
type Registry struct {
	mu       sync.RWMutex
	services map[string]*Client
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{services: make(map[string]*Client)}
}

// ErrAlreadyRegistered is returned by Register when name is taken.
type ErrAlreadyRegistered struct {
	Name string
}

func (e *ErrAlreadyRegistered) Error() string {
	return fmt.Sprintf("service %q is already registered", e.Name)
}

// Register binds name to client. Callers should translate the returned
// error to a PROTOCOL_ERROR / ALREADY_REGISTERED response.
func (r *Registry) Register(name string, client *Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.services[name]; exists {
		return &ErrAlreadyRegistered{Name: name}
	}
	r.services[name] = client
	return nil
}

// Deregister removes name's binding and does nothing else (pending
// RPCs are cancelled by the dispatcher separately — see
// Dispatcher.CancelForService).
func (r *Registry) Deregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.services, name)
}

// Lookup resolves name to its connected Client, or ok=false if no
// service currently holds that name.
func (r *Registry) Lookup(name string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.services[name]
	return c, ok
}

// Names returns every currently registered service name.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.services))
	for n := range r.services {
		names = append(names, n)
	}
	return names
}
