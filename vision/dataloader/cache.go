package dataloader

import (
	"container/list"
	"fmt"
	"sync"
)

// TensorCache is an LRU cache of decoded image tensors keyed by dataset
// index. Decoding and normalizing an image dominates the per-example cost,
// so repeated epochs over a dataset that fits the cache skip disk entirely.
type TensorCache struct {
	mu      sync.Mutex
	entries map[int][]float32
	lru     *list.List
	lruMap  map[int]*list.Element
	maxSize int

	hits   int64
	misses int64
}

// NewTensorCache creates a cache holding up to maxSize tensors. A maxSize of
// zero disables caching.
func NewTensorCache(maxSize int) *TensorCache {
	return &TensorCache{
		entries: make(map[int][]float32),
		lru:     list.New(),
		lruMap:  make(map[int]*list.Element),
		maxSize: maxSize,
	}
}

// Get retrieves the tensor for a dataset index, marking it most recently
// used.
func (c *TensorCache) Get(index int) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if data, ok := c.entries[index]; ok {
		c.lru.MoveToFront(c.lruMap[index])
		c.hits++
		return data, true
	}

	c.misses++
	return nil, false
}

// Put stores the tensor for a dataset index, evicting least recently used
// entries when the cache is full.
func (c *TensorCache) Put(index int, data []float32) {
	if c.maxSize <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[index]; ok {
		c.lru.MoveToFront(c.lruMap[index])
		return
	}

	elem := c.lru.PushFront(index)
	c.lruMap[index] = elem
	c.entries[index] = data

	for len(c.entries) > c.maxSize {
		oldest := c.lru.Back()
		if oldest == nil {
			break
		}
		evicted := oldest.Value.(int)
		c.lru.Remove(oldest)
		delete(c.lruMap, evicted)
		delete(c.entries, evicted)
	}
}

// Clear drops all entries. Statistics stay cumulative.
func (c *TensorCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[int][]float32)
	c.lru = list.New()
	c.lruMap = make(map[int]*list.Element)
}

// Stats returns a snapshot of cache usage.
func (c *TensorCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := CacheStats{
		Size:    len(c.entries),
		MaxSize: c.maxSize,
		Hits:    c.hits,
		Misses:  c.misses,
	}
	if total := c.hits + c.misses; total > 0 {
		stats.HitRate = float64(c.hits) / float64(total) * 100
	}
	return stats
}

// CacheStats holds cache usage counters.
type CacheStats struct {
	Size    int
	MaxSize int
	Hits    int64
	Misses  int64
	HitRate float64
}

func (cs CacheStats) String() string {
	return fmt.Sprintf("Cache: %d/%d items, Hits: %d, Misses: %d, Hit Rate: %.1f%%",
		cs.Size, cs.MaxSize, cs.Hits, cs.Misses, cs.HitRate)
}
