package menu

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Controller is the contract shared by every menu variant.
type Controller interface {
	ThreadID() string
	Recipient() string
	State() State
	Display() MessageRef
	Initiating() MessageRef
	Thread() Thread

	// Process handles recipient input. It reports whether the input
	// disbanded the menu.
	Process(ctx context.Context, in Input) bool

	// OnTimeout is invoked by the timeout watcher.
	OnTimeout()

	// Disband tears the menu down. categoryID is empty when nothing was
	// selected. Only the first call has effects; it returns true.
	Disband(ctx context.Context, categoryID string, reason Reason) bool

	Info() Info
}

// Registry maps thread ids to their single active menu. It holds no
// persisted state: menus do not survive a restart.
type Registry struct {
	mu          sync.RWMutex
	menus       map[string]Controller
	byRecipient map[string]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		menus:       make(map[string]Controller),
		byRecipient: make(map[string]string),
	}
}

// Register adds c under threadID. It fails when the thread already has a menu.
func (r *Registry) Register(threadID string, c Controller) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.menus[threadID]; exists {
		return fmt.Errorf("register %s: %w", threadID, ErrMenuExists)
	}
	r.menus[threadID] = c
	if rcpt := c.Recipient(); rcpt != "" && rcpt != threadID {
		r.byRecipient[rcpt] = threadID
	}
	return nil
}

// Lookup returns the menu for threadID.
func (r *Registry) Lookup(threadID string) (Controller, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.menus[threadID]
	return c, ok
}

// LookupKey resolves a thread id or a recipient user id.
func (r *Registry) LookupKey(key string) (Controller, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.menus[key]; ok {
		return c, true
	}
	if threadID, ok := r.byRecipient[key]; ok {
		c, ok := r.menus[threadID]
		return c, ok
	}
	return nil, false
}

// Remove deletes the entry for threadID if it still belongs to c.
func (r *Registry) Remove(threadID string, c Controller) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.menus[threadID]
	if !ok || current != c {
		return false
	}
	delete(r.menus, threadID)
	for rcpt, id := range r.byRecipient {
		if id == threadID {
			delete(r.byRecipient, rcpt)
		}
	}
	return true
}

// Len returns the number of active menus.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.menus)
}

// List returns the registered menus ordered by thread id.
func (r *Registry) List() []Controller {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.menus))
	for id := range r.menus {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]Controller, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.menus[id])
	}
	return out
}
