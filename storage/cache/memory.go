package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/koneum/eduwaly/core/plan"
	"github.com/koneum/eduwaly/services/metrics"
)

type entry struct {
	plan       plan.Plan
	insertedAt time.Time
	element    *list.Element
}

// PlanCache is an in-memory LRU cache with TTL for plan catalog rows.
type PlanCache struct {
	mu      sync.Mutex
	entries map[string]*entry
	lru     *list.List
	maxSize int
	ttl     time.Duration
	now     func() time.Time
	hits    uint64
	misses  uint64
}

var _ plan.Cache = (*PlanCache)(nil) // interface compliance check

func NewPlanCache(maxSize int, ttl time.Duration) *PlanCache {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &PlanCache{
		entries: make(map[string]*entry),
		lru:     list.New(),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *PlanCache) Get(_ context.Context, id string) (plan.Plan, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	if !ok || c.now().Sub(e.insertedAt) > c.ttl {
		if ok {
			c.remove(id)
		}
		c.misses++
		metrics.PlanCacheRequests.WithLabelValues("memory", "miss").Inc()
		return plan.Plan{}, false
	}

	c.lru.MoveToFront(e.element)
	c.hits++
	metrics.PlanCacheRequests.WithLabelValues("memory", "hit").Inc()
	return e.plan, true
}

func (c *PlanCache) Set(_ context.Context, p plan.Plan) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[p.ID]; ok {
		e.plan = p
		e.insertedAt = c.now()
		c.lru.MoveToFront(e.element)
		return
	}
	if c.lru.Len() >= c.maxSize {
		if oldest := c.lru.Back(); oldest != nil {
			c.remove(oldest.Value.(string))
		}
	}
	c.entries[p.ID] = &entry{
		plan:       p,
		insertedAt: c.now(),
		element:    c.lru.PushFront(p.ID),
	}
}

func (c *PlanCache) Invalidate(_ context.Context, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remove(id)
}

// Stats returns the hit and miss counts.
func (c *PlanCache) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

func (c *PlanCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// remove must be called with mu held.
func (c *PlanCache) remove(id string) {
	if e, ok := c.entries[id]; ok {
		c.lru.Remove(e.element)
		delete(c.entries, id)
	}
}
