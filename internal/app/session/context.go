package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Context carries the per-session state the feed components share: the
// session user, the baseline captured at subscription start and the read
// watermark. It replaces ambient globals; every component receives it at
// construction.
type Context struct {
	id     uuid.UUID
	userID string

	mu        sync.RWMutex
	began     bool
	baseline  time.Time
	watermark time.Time
}

func NewContext(userID string) *Context {
	return &Context{
		id:     uuid.New(),
		userID: userID,
	}
}

func (c *Context) ID() uuid.UUID {
	return c.id
}

func (c *Context) UserID() string {
	return c.userID
}

// Begin seeds the baseline and the watermark read from the remote store.
// It must run before the first event is classified; the reconciler refuses
// to start on a context that has not begun.
func (c *Context) Begin(baseline, watermark time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.began {
		return
	}
	c.began = true
	c.baseline = baseline
	c.watermark = watermark
}

func (c *Context) Began() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.began
}

// Baseline is fixed for the lifetime of the session, set once by Begin.
func (c *Context) Baseline() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseline
}

func (c *Context) Watermark() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.watermark
}

// AdvanceWatermark moves the watermark forward and reports whether it moved.
// A stale timestamp never rewinds it.
func (c *Context) AdvanceWatermark(t time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !t.After(c.watermark) {
		return false
	}
	c.watermark = t
	return true
}
