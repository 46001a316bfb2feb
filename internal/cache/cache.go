package cache

import (
	"sort"
	"sync"
)

// KeyedCache remembers values by key with no eviction. The asset preloader
// uses it as the set of model URLs that have already been loaded.
type KeyedCache[V any] struct {
	m       sync.RWMutex
	entries map[string]V
}

func NewKeyedCache[V any]() *KeyedCache[V] {
	return &KeyedCache[V]{
		entries: make(map[string]V),
	}
}

func (c *KeyedCache[V]) Get(key string) (V, bool) {
	c.m.RLock()
	defer c.m.RUnlock()
	v, ok := c.entries[key]
	return v, ok
}

func (c *KeyedCache[V]) Has(key string) bool {
	c.m.RLock()
	defer c.m.RUnlock()
	_, ok := c.entries[key]
	return ok
}

func (c *KeyedCache[V]) Add(key string, v V) {
	c.m.Lock()
	defer c.m.Unlock()
	c.entries[key] = v
}

func (c *KeyedCache[V]) Len() int {
	c.m.RLock()
	defer c.m.RUnlock()
	return len(c.entries)
}

// Keys returns the cached keys in sorted order.
func (c *KeyedCache[V]) Keys() []string {
	c.m.RLock()
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	c.m.RUnlock()
	sort.Strings(keys)
	return keys
}

// SafeCounter is a thread-safe counter
type SafeCounter struct {
	mu sync.Mutex
	v  int
}

func (c *SafeCounter) Value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.v
}

func (c *SafeCounter) Inc() {
	c.mu.Lock()
	c.v++
	c.mu.Unlock()
}

func (c *SafeCounter) Dec() {
	c.mu.Lock()
	c.v--
	c.mu.Unlock()
}
