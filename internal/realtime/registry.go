// Package realtime holds the live delivery side of notifications: the
// per-user channel registry, the dispatcher and the event-stream framing.
//
// A user has at most one live channel. Opening a second stream (another tab
// or device) replaces the first in the registry; the older stream stays open
// until its transport closes but receives no further frames. Supporting
// several devices per user would mean turning the registry value into a set.
package realtime

import "sync"

// Channel is a write handle that pushes frames to one connected client.
type Channel interface {
	Send(f Frame) error
}

// Registry maps a user id to that user's current live channel.
// It is process-local and starts empty; clients reconnect after a restart.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]Channel
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{channels: make(map[string]Channel)}
}

// Register stores ch for userID, replacing any previous channel.
// It returns the replaced channel, if any.
func (r *Registry) Register(userID string, ch Channel) Channel {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.channels[userID]
	r.channels[userID] = ch
	return prev
}

// Unregister removes whatever channel is registered for userID.
func (r *Registry) Unregister(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.channels, userID)
}

// Release removes the entry for userID only if it still points at ch, so a
// superseded stream shutting down never evicts its replacement.
func (r *Registry) Release(userID string, ch Channel) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.channels[userID]; ok && cur == ch {
		delete(r.channels, userID)
		return true
	}
	return false
}

// Lookup returns the live channel of userID.
func (r *Registry) Lookup(userID string) (Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[userID]
	return ch, ok
}

// Len returns the number of users with a live channel.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}
