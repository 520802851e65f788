package threat

import (
	"container/list"
	"sync"
	"time"

	"iocviewer/internal/metrics"
)

// BatchCache is an LRU cache with TTL holding the most recent batch per
// source. Expired entries are dropped on lookup.
type BatchCache struct {
	maxSize int
	ttl     time.Duration
	items   map[SourceID]*cacheItem
	lruList *list.List
	now     func() time.Time
	mu      sync.Mutex
}

type cacheItem struct {
	key       SourceID
	value     *IndicatorBatch
	element   *list.Element
	expiresAt time.Time
}

func NewBatchCache(maxSize int, ttl time.Duration) *BatchCache {
	return &BatchCache{
		maxSize: maxSize,
		ttl:     ttl,
		items:   make(map[SourceID]*cacheItem),
		lruList: list.New(),
		now:     time.Now,
	}
}

func (c *BatchCache) Get(key SourceID) (*IndicatorBatch, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, exists := c.items[key]
	if !exists {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	}
	if c.now().After(item.expiresAt) {
		c.removeItem(item)
		metrics.CacheLookups.WithLabelValues("expired").Inc()
		return nil, false
	}

	c.lruList.MoveToFront(item.element)
	metrics.CacheLookups.WithLabelValues("hit").Inc()
	return item.value, true
}

func (c *BatchCache) Set(key SourceID, value *IndicatorBatch) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, exists := c.items[key]; exists {
		existing.value = value
		existing.expiresAt = c.now().Add(c.ttl)
		c.lruList.MoveToFront(existing.element)
		return
	}

	item := &cacheItem{
		key:       key,
		value:     value,
		expiresAt: c.now().Add(c.ttl),
	}
	item.element = c.lruList.PushFront(item)
	c.items[key] = item

	if len(c.items) > c.maxSize {
		if oldest := c.lruList.Back(); oldest != nil {
			c.removeItem(oldest.Value.(*cacheItem))
		}
	}
}

func (c *BatchCache) removeItem(item *cacheItem) {
	delete(c.items, item.key)
	c.lruList.Remove(item.element)
}

func (c *BatchCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
