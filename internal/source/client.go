// Package source defines the per-platform data source clients the scan
// engine fans out to, and the error taxonomy their failures are classified
// into.
package source

import (
	"context"
	"sync"

	"github.com/pulsewatch/pulsewatch/internal/models"
)

// Client fetches activity items from one external platform. Implementations
// may fail at any time; callers own retries and fault isolation.
type Client interface {
	Platform() string
	FetchUserItems(ctx context.Context, userID string, lookbackDays int) ([]models.Item, error)
	FetchPeerItems(ctx context.Context, peerID string, lookbackDays int) ([]models.Item, error)
}

// Registry holds the configured client per platform key.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]Client
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]Client)}
}

// Register adds or replaces the client for its platform.
func (r *Registry) Register(c Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c.Platform()] = c
}

// Get returns the client for platform.
func (r *Registry) Get(platform string) (Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[platform]
	return c, ok
}

// Platforms lists the registered platform keys.
func (r *Registry) Platforms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.clients))
	for k := range r.clients {
		keys = append(keys, k)
	}
	return keys
}
