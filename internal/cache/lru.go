// Package cache provides a bounded least-recently-used map
package cache

import (
	"sync"
	"sync/atomic"
)

// node represents a node in the doubly-linked list
type node[V any] struct {
	key   string
	value V
	prev  *node[V]
	next  *node[V]
}

// Stats reports cache usage
type Stats struct {
	Hits     int64   `json:"hits"`
	Misses   int64   `json:"misses"`
	Size     int     `json:"size"`
	MaxSize  int     `json:"max_size"`
	HitRatio float64 `json:"hit_ratio"`
}

// LRU is a string-keyed cache that evicts the least recently used entry
// once maxSize is exceeded. It is safe for concurrent use.
type LRU[V any] struct {
	maxSize int
	size    int

	// Sentinels; head.next is the most recently used
	head *node[V]
	tail *node[V]

	items map[string]*node[V]
	mutex sync.Mutex

	hits   atomic.Int64
	misses atomic.Int64
}

// NewLRU creates a cache holding at most maxSize entries
func NewLRU[V any](maxSize int) *LRU[V] {
	if maxSize <= 0 {
		maxSize = 256
	}

	head := &node[V]{}
	tail := &node[V]{}
	head.next = tail
	tail.prev = head

	return &LRU[V]{
		maxSize: maxSize,
		head:    head,
		tail:    tail,
		items:   make(map[string]*node[V]),
	}
}

// Get retrieves a value and marks it as recently used
func (c *LRU[V]) Get(key string) (V, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	found, exists := c.items[key]
	if !exists {
		c.misses.Add(1)
		var zero V
		return zero, false
	}

	c.moveToFront(found)
	c.hits.Add(1)
	return found.value, true
}

// Set adds or updates a value
func (c *LRU[V]) Set(key string, value V) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if existing, exists := c.items[key]; exists {
		existing.value = value
		c.moveToFront(existing)
		return
	}

	added := &node[V]{key: key, value: value}
	c.addToFront(added)
	c.items[key] = added
	c.size++

	if c.size > c.maxSize {
		c.evictLRU()
	}
}

// Invalidate removes a specific key
func (c *LRU[V]) Invalidate(key string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if existing, exists := c.items[key]; exists {
		c.removeNode(existing)
		delete(c.items, key)
		c.size--
	}
}

// Clear removes all entries and resets the counters
func (c *LRU[V]) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.head.next = c.tail
	c.tail.prev = c.head
	c.items = make(map[string]*node[V])
	c.size = 0

	c.hits.Store(0)
	c.misses.Store(0)
}

// Stats returns current cache statistics
func (c *LRU[V]) Stats() Stats {
	c.mutex.Lock()
	size := c.size
	c.mutex.Unlock()

	hits := c.hits.Load()
	misses := c.misses.Load()

	var hitRatio float64
	if total := hits + misses; total > 0 {
		hitRatio = float64(hits) / float64(total)
	}

	return Stats{
		Hits:     hits,
		Misses:   misses,
		Size:     size,
		MaxSize:  c.maxSize,
		HitRatio: hitRatio,
	}
}

func (c *LRU[V]) moveToFront(n *node[V]) {
	c.removeNode(n)
	c.addToFront(n)
}

func (c *LRU[V]) addToFront(n *node[V]) {
	n.prev = c.head
	n.next = c.head.next
	c.head.next.prev = n
	c.head.next = n
}

func (c *LRU[V]) removeNode(n *node[V]) {
	n.prev.next = n.next
	n.next.prev = n.prev
}

func (c *LRU[V]) evictLRU() {
	if c.tail.prev == c.head {
		return
	}

	oldest := c.tail.prev
	c.removeNode(oldest)
	delete(c.items, oldest.key)
	c.size--
}
