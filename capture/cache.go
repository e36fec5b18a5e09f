package capture

import (
	"sync"
	"sync/atomic"
	"time"
)

// Stats counts capture requests against a display and how many were served
// from the cache.
type Stats struct {
	CaptureRequests int64 `json:"captureRequests"`
	CacheHits       int64 `json:"cacheHits"`
}

// Cache keeps the last capture of a display for a short window.
type Cache struct {
	window time.Duration
	now    func() time.Time

	mu   sync.RWMutex
	last *Capture

	requests atomic.Int64
	hits     atomic.Int64
}

func NewCache(window time.Duration) *Cache {
	return &Cache{window: window, now: time.Now}
}

// SetClock overrides the time source.
func (c *Cache) SetClock(now func() time.Time) {
	c.now = now
}

// Get returns a deep copy of the last capture if it is younger than the window.
func (c *Cache) Get() (*Capture, bool) {
	c.requests.Add(1)
	return c.peek()
}

// Peek is Get without counting a request, used to re-check inside the worker.
func (c *Cache) Peek() (*Capture, bool) {
	return c.peek()
}

func (c *Cache) peek() (*Capture, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.last == nil || c.now().Sub(c.last.Timestamp) > c.window {
		return nil, false
	}
	c.hits.Add(1)
	return c.last.Clone(), true
}

// Put records raster as the latest capture and returns it with its timestamp.
func (c *Cache) Put(raster *Raster) *Capture {
	capture := &Capture{Timestamp: c.now(), Raster: raster}

	c.mu.Lock()
	c.last = capture
	c.mu.Unlock()

	return capture.Clone()
}

// Last returns the most recent capture regardless of age.
func (c *Cache) Last() *Capture {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.last == nil {
		return nil
	}
	return c.last.Clone()
}

func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.last = nil
	c.mu.Unlock()
}

func (c *Cache) Stats() Stats {
	return Stats{CaptureRequests: c.requests.Load(), CacheHits: c.hits.Load()}
}
