package pipeline

import (
	"context"
	"sync"
	"time"
)

// MemoryCache is a ProcessingCache backed by a process-local map. Entries are
// evicted lazily on read.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*CacheEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryCache creates an in-process cache. ttl <= 0 uses DefaultCacheTTL.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &MemoryCache{
		entries: make(map[string]*CacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, conversationID string) (*CacheEntry, error) {
	c.mu.RLock()
	entry, ok := c.entries[conversationID]
	c.mu.RUnlock()
	if !ok {
		return nil, ErrEntryNotFound
	}
	if entry.Expired(c.now().UTC()) {
		c.mu.Lock()
		delete(c.entries, conversationID)
		c.mu.Unlock()
		return nil, ErrEntryNotFound
	}
	clone := *entry
	return &clone, nil
}

func (c *MemoryCache) Put(_ context.Context, entry *CacheEntry) error {
	if entry == nil || entry.ConversationID == "" {
		return ErrEntryNotFound
	}
	stored := *entry
	if stored.ExpiresAt.IsZero() {
		stored.ExpiresAt = c.now().UTC().Add(c.ttl)
	}
	c.mu.Lock()
	c.entries[entry.ConversationID] = &stored
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, conversationID string) error {
	c.mu.Lock()
	delete(c.entries, conversationID)
	c.mu.Unlock()
	return nil
}

var _ ProcessingCache = (*MemoryCache)(nil)
