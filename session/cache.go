package session

import (
	"sync"
	"time"
)

// Cache is the in-process layer of the triple-layer store: a fast path keyed
// by session ID that is lost on process restart. It is an explicit, injected
// component rather than a package-level registry so tests can substitute
// their own instance.
//
// At most one cached copy exists per session ID per process; the durable
// layer remains authoritative.
type Cache struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{sessions: make(map[string]*Session)}
}

// Get returns the cached session for id, or nil.
func (c *Cache) Get(id string) *Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessions[id]
}

// Put inserts or replaces the cached copy for sess.SessionID.
func (c *Cache) Put(sess *Session) {
	if sess == nil || sess.SessionID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[sess.SessionID] = sess
}

// Remove drops the cached copy for id. Removing an absent id is a no-op.
func (c *Cache) Remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, id)
}

// Len reports the number of cached sessions.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sessions)
}

// IDs returns a snapshot of all cached session IDs.
func (c *Cache) IDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.sessions))
	for id := range c.sessions {
		ids = append(ids, id)
	}
	return ids
}

// EvictExpired removes every cached session that is expired or invalid at
// now and returns how many entries were dropped. This bounds cache growth
// independently of the per-session heartbeat timers.
func (c *Cache) EvictExpired(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	evicted := 0
	for id, sess := range c.sessions {
		if !sess.IsValid || sess.Expired(now) {
			delete(c.sessions, id)
			evicted++
		}
	}
	return evicted
}
