/*
Package chat contains the realtime messaging core.

This file defines the Presence registry, the process-wide map of user id to
last-active timestamp. It is the source of truth for "who is online" queries
and broadcasts.
*/
package chat

import (
	"sync"
	"time"
)

// Presence tracks which users currently hold a connection. It is created at
// process start, injected into the Service, and torn down with it.
type Presence struct {
	mu    sync.RWMutex
	users map[string]time.Time
}

// NewPresence returns an empty Presence registry.
func NewPresence() *Presence {
	return &Presence{
		users: make(map[string]time.Time),
	}
}

// MarkOnline inserts or refreshes the registry entry for the user.
func (p *Presence) MarkOnline(userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.users[userID] = time.Now()
}

// MarkOffline removes the registry entry for the user.
//
// A user may hold several concurrent connections; any single disconnect
// clears the entry regardless. This is a deliberate simplification over
// reference-counting connections, and matches the observable behavior
// clients are written against.
func (p *Presence) MarkOffline(userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.users, userID)
}

// IsOnline reports whether the user currently has a registry entry.
func (p *Presence) IsOnline(userID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	_, ok := p.users[userID]
	return ok
}

// Snapshot returns the current set of online user ids.
func (p *Presence) Snapshot() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	ids := make([]string, 0, len(p.users))
	for id := range p.users {
		ids = append(ids, id)
	}
	return ids
}
