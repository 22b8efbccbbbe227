// Package cache provides the bounded in-process caches used across the
// composer: the validator verification cache, the fee quote memo, and the
// recent-transfer tier of the duplicate index.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// LRU is a generic LRU cache. A positive ttl expires entries by age on
// read; ttl <= 0 disables expiry and keeps entries until evicted by
// capacity.
type LRU[K comparable, V any] struct {
	mu       sync.RWMutex
	capacity int
	ttl      time.Duration
	items    map[K]*list.Element
	order    *list.List
	nowFn    func() time.Time

	hits   int64
	misses int64
}

type lruEntry[K comparable, V any] struct {
	key       K
	value     V
	expiresAt time.Time
}

func NewLRU[K comparable, V any](capacity int, ttl time.Duration) *LRU[K, V] {
	if capacity < 1 {
		capacity = 1
	}
	return &LRU[K, V]{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[K]*list.Element, capacity),
		order:    list.New(),
		nowFn:    time.Now,
	}
}

// Get returns the cached value and true when present and unexpired.
// Expired entries are removed on access.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.misses++
		var zero V
		return zero, false
	}

	e := elem.Value.(*lruEntry[K, V])
	if c.ttl > 0 && c.nowFn().After(e.expiresAt) {
		c.removeElement(elem)
		c.misses++
		var zero V
		return zero, false
	}

	c.order.MoveToFront(elem)
	c.hits++
	return e.value, true
}

// Put inserts or refreshes a value, evicting the oldest entry at capacity.
func (c *LRU[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.order.MoveToFront(elem)
		e := elem.Value.(*lruEntry[K, V])
		e.value = value
		if c.ttl > 0 {
			e.expiresAt = c.nowFn().Add(c.ttl)
		}
		return
	}

	if c.order.Len() >= c.capacity {
		if oldest := c.order.Back(); oldest != nil {
			c.removeElement(oldest)
		}
	}

	e := &lruEntry[K, V]{key: key, value: value}
	if c.ttl > 0 {
		e.expiresAt = c.nowFn().Add(c.ttl)
	}
	c.items[key] = c.order.PushFront(e)
}

// Remove drops a key if present. Used to invalidate verification results
// when a validator keyset is reloaded.
func (c *LRU[K, V]) Remove(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
	}
}

// Purge drops every entry, keeping hit/miss counters.
func (c *LRU[K, V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[K]*list.Element, c.capacity)
	c.order.Init()
}

// Len counts resident entries, including expired ones not yet swept.
func (c *LRU[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.order.Len()
}

// Stats returns cumulative hit and miss counts.
func (c *LRU[K, V]) Stats() (hits, misses int64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}

func (c *LRU[K, V]) removeElement(elem *list.Element) {
	c.order.Remove(elem)
	e := elem.Value.(*lruEntry[K, V])
	delete(c.items, e.key)
}
