package profile

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Store is the remote entity store the cache memoizes.
type Store interface {
	Get(ctx context.Context, userID string) (*Profile, error)
}

// Cache memoizes profile lookups for the lifetime of a session. Entries are
// read-mostly and never expire on their own; Invalidate exists for external
// callers that learn about a role change mid-session.
type Cache struct {
	store  Store
	logger *zap.SugaredLogger

	mu      sync.RWMutex
	entries map[string]*Profile
}

func NewCache(store Store, logger *zap.Logger) *Cache {
	return &Cache{
		store:   store,
		logger:  logger.Sugar(),
		entries: make(map[string]*Profile),
	}
}

// Resolve returns the cached profile or fetches it from the store. A failed
// lookup resolves to the Unknown fallback and is not cached, so a later
// Resolve for the same user retries the store.
func (c *Cache) Resolve(ctx context.Context, userID string) *Profile {
	c.mu.RLock()
	cached, ok := c.entries[userID]
	c.mu.RUnlock()
	if ok {
		return cached
	}

	fetched, err := c.store.Get(ctx, userID)
	if err != nil {
		c.logger.Warnw("Profile lookup failed, using fallback",
			"user_id", userID,
			"error", err,
		)
		return Unknown(userID)
	}

	c.mu.Lock()
	c.entries[userID] = fetched
	c.mu.Unlock()

	return fetched
}

// Peek returns the cached profile without fetching, or nil.
func (c *Cache) Peek(userID string) *Profile {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[userID]
}

func (c *Cache) Invalidate(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, userID)
}

func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
