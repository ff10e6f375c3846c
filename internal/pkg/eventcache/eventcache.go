// Package eventcache remembers recently processed webhook event ids so
// redeliveries can be acknowledged without touching the database. It is a
// fast path only; durable idempotency lives in the settlement query.
package eventcache

import (
	"context"
	"sync"
)

// Cache is an atomic insert-if-absent set of event ids.
type Cache interface {
	// MarkIfAbsent records id and reports whether it was newly added.
	MarkIfAbsent(ctx context.Context, id string) (bool, error)
	// Forget removes id so a later redelivery is processed again.
	Forget(ctx context.Context, id string) error
}

type slot struct {
	id  string
	seq uint64
}

// MemoryCache is a bounded FIFO set. When full, the oldest id is evicted.
type MemoryCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]uint64
	ring     []slot
	next     int
	seq      uint64
}

// NewMemoryCache creates a cache holding at most capacity ids.
func NewMemoryCache(capacity int) *MemoryCache {
	if capacity <= 0 {
		capacity = 1000
	}
	return &MemoryCache{
		capacity: capacity,
		entries:  make(map[string]uint64, capacity),
		ring:     make([]slot, capacity),
	}
}

// MarkIfAbsent implements Cache.
func (c *MemoryCache) MarkIfAbsent(_ context.Context, id string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[id]; ok {
		return false, nil
	}

	if old := c.ring[c.next]; old.id != "" {
		// A forgotten and re-added id owns a newer seq; leave it alone.
		if seq, ok := c.entries[old.id]; ok && seq == old.seq {
			delete(c.entries, old.id)
		}
	}

	c.seq++
	c.entries[id] = c.seq
	c.ring[c.next] = slot{id: id, seq: c.seq}
	c.next = (c.next + 1) % c.capacity
	return true, nil
}

// Forget implements Cache.
func (c *MemoryCache) Forget(_ context.Context, id string) error {
	c.mu.Lock()
	delete(c.entries, id)
	c.mu.Unlock()
	return nil
}

// Len returns the number of remembered ids.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
