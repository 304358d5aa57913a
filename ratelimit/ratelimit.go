// Package ratelimit provides a fixed-window request counter keyed by client
// identity. The store is an interface so a distributed backend can replace
// the in-memory one without touching call sites.
package ratelimit

import (
	"sync"
	"time"
)

// Counter counts hits per key within a fixed window. Incr returns the hit
// count for the current window, including this hit.
type Counter interface {
	Incr(key string, window time.Duration) int
}

type memoryCounter struct {
	mu      sync.Mutex
	now     func() time.Time
	windows map[string]*window
}

type window struct {
	start time.Time
	hits  int
}

func NewMemoryCounter() Counter {
	return &memoryCounter{
		now:     time.Now,
		windows: make(map[string]*window),
	}
}

func (c *memoryCounter) Incr(key string, d time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	w := c.windows[key]
	if w == nil || now.Sub(w.start) >= d {
		w = &window{start: now}
		c.windows[key] = w
	}
	w.hits++
	return w.hits
}
