// ABOUTME: Thread-safe TTL set for suppressing repeated one-shot values
// ABOUTME: Used by the calendar callback page so a refreshed redirect cannot replay an auth code

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

type entry struct {
	seenAt  time.Time
	element *list.Element
}

// Cache remembers keys for a fixed TTL, bounded to maxSize entries with the
// oldest evicted first. The zero value is not usable; call New.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	order   *list.List // oldest at front
	ttl     time.Duration
	maxSize int
	now     func() time.Time
	done    chan struct{}
	closed  bool
}

// New creates a cache and starts its sweeper goroutine. Call Close to stop it.
func New(ttl time.Duration, maxSize int) *Cache {
	if maxSize < 1 {
		maxSize = 1
	}
	c := &Cache{
		entries: make(map[string]*entry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go c.sweepLoop(sweepInterval(ttl))
	return c
}

func sweepInterval(ttl time.Duration) time.Duration {
	if ttl <= 0 || ttl > time.Minute {
		return time.Minute
	}
	return ttl
}

// Seen reports whether key was claimed within the TTL.
func (c *Cache) Seen(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.liveLocked(key)
}

// Claim records key and reports true if this call was the first to do so
// within the TTL. Concurrent callers racing on the same key get exactly one true.
func (c *Cache) Claim(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.liveLocked(key) {
		return false
	}
	c.insertLocked(key)
	return true
}

// Forget drops key so it can be claimed again.
func (c *Cache) Forget(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		c.order.Remove(e.element)
		delete(c.entries, key)
	}
}

// Len returns the number of stored keys, expired ones included until swept.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) liveLocked(key string) bool {
	e, ok := c.entries[key]
	return ok && c.now().Sub(e.seenAt) < c.ttl
}

func (c *Cache) insertLocked(key string) {
	now := c.now()

	if e, ok := c.entries[key]; ok {
		e.seenAt = now
		c.order.MoveToBack(e.element)
		return
	}

	if len(c.entries) >= c.maxSize {
		if front := c.order.Front(); front != nil {
			oldest, _ := front.Value.(string)
			c.order.Remove(front)
			delete(c.entries, oldest)
		}
	}

	c.entries[key] = &entry{seenAt: now, element: c.order.PushBack(key)}
}

func (c *Cache) sweepLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.done:
			return
		}
	}
}

// sweep removes expired entries. Entries are in insertion order so it stops
// at the first live one.
func (c *Cache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for front := c.order.Front(); front != nil; front = c.order.Front() {
		key, _ := front.Value.(string)
		e := c.entries[key]
		if now.Sub(e.seenAt) < c.ttl {
			return
		}
		c.order.Remove(front)
		delete(c.entries, key)
	}
}

// Close stops the sweeper. It is safe to call multiple times.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
