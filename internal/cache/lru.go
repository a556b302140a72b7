package cache

import (
	"container/list"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// Stats holds cache counters.
type Stats struct {
	Hits    int64
	Misses  int64
	Entries int
	Size    int64
}

// LRU is a size-bounded least-recently-used cache keyed by string.
// Values must be immutable once inserted.
type LRU[V any] struct {
	mu        sync.Mutex
	capacity  int64
	size      int64
	items     map[string]*list.Element
	evictList *list.List
	group     singleflight.Group

	hits   atomic.Int64
	misses atomic.Int64
}

type entry[V any] struct {
	key   string
	value V
	cost  int64
}

// NewLRU creates a new LRU with the given capacity in cost units (usually bytes).
// A capacity <= 0 disables caching; GetOrLoad then always loads.
func NewLRU[V any](capacity int64) *LRU[V] {
	return &LRU[V]{
		capacity:  capacity,
		items:     make(map[string]*list.Element),
		evictList: list.New(),
	}
}

// Get returns a cached value.
func (c *LRU[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ent, ok := c.items[key]; ok {
		c.hits.Add(1)
		c.evictList.MoveToFront(ent)
		return ent.Value.(*entry[V]).value, true
	}
	c.misses.Add(1)
	var zero V
	return zero, false
}

// Set caches a value. Values costing more than the capacity are not cached.
func (c *LRU[V]) Set(key string, value V, cost int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ent, ok := c.items[key]; ok {
		c.evictList.MoveToFront(ent)
		e := ent.Value.(*entry[V])
		c.size += cost - e.cost
		e.value = value
		e.cost = cost
		c.evict()
		return
	}

	if cost > c.capacity {
		return
	}

	element := c.evictList.PushFront(&entry[V]{key: key, value: value, cost: cost})
	c.items[key] = element
	c.size += cost
	c.evict()
}

// GetOrLoad returns the cached value for key, calling load on a miss.
// Concurrent misses for one key share a single load call.
func (c *LRU[V]) GetOrLoad(key string, load func() (V, int64, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	res, err, _ := c.group.Do(key, func() (any, error) {
		// Another caller may have populated the entry while we waited.
		c.mu.Lock()
		if ent, ok := c.items[key]; ok {
			c.mu.Unlock()
			return ent.Value.(*entry[V]).value, nil
		}
		c.mu.Unlock()

		v, cost, err := load()
		if err != nil {
			return nil, err
		}
		c.Set(key, v, cost)
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return res.(V), nil
}

// Remove drops a key from the cache.
func (c *LRU[V]) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ent, ok := c.items[key]; ok {
		c.removeElement(ent)
	}
}

// Purge drops every entry.
func (c *LRU[V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.evictList.Init()
	c.size = 0
}

// Stats returns a snapshot of the cache counters.
func (c *LRU[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Entries: len(c.items),
		Size:    c.size,
	}
}

func (c *LRU[V]) evict() {
	for c.size > c.capacity {
		element := c.evictList.Back()
		if element == nil {
			break
		}
		c.removeElement(element)
	}
}

func (c *LRU[V]) removeElement(e *list.Element) {
	c.evictList.Remove(e)
	kv := e.Value.(*entry[V])
	delete(c.items, kv.key)
	c.size -= kv.cost
}
