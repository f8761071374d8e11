package ws

import (
	"sync"
)

// Connection is one viewer's live channel as seen by the hub.
type Connection interface {
	// ID returns a unique identifier for the connection.
	ID() string

	// Send queues data for delivery. A non-nil error marks the connection stale.
	Send(data []byte) error

	// Close releases the connection. It must be safe to call more than once.
	Close()
}

// Registry tracks the currently open connections.
type Registry struct {
	conns map[string]Connection
	mu    sync.RWMutex
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]Connection),
	}
}

// Add registers a connection.
func (r *Registry) Add(conn Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[conn.ID()] = conn
}

// Remove unregisters a connection. It reports whether this exact connection
// was registered.
func (r *Registry) Remove(conn Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.conns[conn.ID()]
	if !ok || current != conn {
		return false
	}
	delete(r.conns, conn.ID())
	return true
}

// Contains reports whether the connection is registered.
func (r *Registry) Contains(conn Connection) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	current, ok := r.conns[conn.ID()]
	return ok && current == conn
}

// Snapshot returns the registered connections at this instant.
func (r *Registry) Snapshot() []Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]Connection, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	return conns
}

// ForEach calls fn for every connection registered when the call began.
// fn runs without the registry lock held, so it may add or remove connections.
func (r *Registry) ForEach(fn func(conn Connection)) {
	for _, c := range r.Snapshot() {
		fn(c)
	}
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Clear removes every connection and returns them.
func (r *Registry) Clear() []Connection {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns := make([]Connection, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	r.conns = make(map[string]Connection)
	return conns
}
