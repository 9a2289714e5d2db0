package planner

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/wbrown/janus-odata/odata/query"
	"github.com/wbrown/janus-odata/odata/uricompare"
)

// PlanCache caches compiled plans so that requests differing only in
// literal values reuse one plan
type PlanCache struct {
	buckets map[uint64][]*cachedPlan // structural digest -> resident plans
	size    int
	mu      sync.RWMutex

	// Statistics
	hits            int64
	misses          int64
	bindingFailures int64
	inserts         int64

	// Configuration
	maxSize int
	ttl     time.Duration
}

type cachedPlan struct {
	plan      *Plan
	timestamp time.Time
}

// CacheStats is a snapshot of cache statistics
type CacheStats struct {
	Hits            int64
	Misses          int64
	BindingFailures int64
	Inserts         int64
	Size            int // Resident plans
	Buckets         int // Distinct digests
}

// NewPlanCache creates a new plan cache
func NewPlanCache(maxSize int, ttl time.Duration) *PlanCache {
	if maxSize <= 0 {
		maxSize = 1000 // Default to 1000 cached plans
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute // Default to 5 minute TTL
	}

	return &PlanCache{
		buckets: make(map[uint64][]*cachedPlan),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

// Lookup finds a resident plan equivalent to req and binds req's literals
// to its slots. The first equivalent resident in the digest's bucket wins.
//
// A *uricompare.BindingError means a plan matched but req's values cannot be
// bound to it; the caller should compile a fresh plan instead.
func (c *PlanCache) Lookup(req *query.Request) (*Plan, []uricompare.Binding, bool, error) {
	if c == nil {
		return nil, nil, false, nil
	}
	return c.lookup(uricompare.Hash(req), req)
}

// LookupDigest is Lookup with a digest the caller has already computed
func (c *PlanCache) LookupDigest(digest uint64, req *query.Request) (*Plan, []uricompare.Binding, bool, error) {
	if c == nil {
		return nil, nil, false, nil
	}
	return c.lookup(digest, req)
}

func (c *PlanCache) lookup(digest uint64, req *query.Request) (*Plan, []uricompare.Binding, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, cached := range c.buckets[digest] {
		// Note: expired entries are skipped here and removed on Insert
		if time.Since(cached.timestamp) > c.ttl {
			continue
		}
		bindings, ok, err := uricompare.Equivalent(cached.plan.Request, req, cached.plan.Slots)
		if !ok {
			continue
		}
		if err != nil {
			atomic.AddInt64(&c.bindingFailures, 1)
			atomic.AddInt64(&c.misses, 1)
			return cached.plan, nil, false, err
		}
		atomic.AddInt64(&c.hits, 1)
		return cached.plan, bindings, true, nil
	}

	atomic.AddInt64(&c.misses, 1)
	return nil, nil, false, nil
}

// Insert stores a plan under its digest. A resident plan equivalent to the
// new one is replaced; plans that merely share the digest stay side by side.
func (c *PlanCache) Insert(plan *Plan) {
	if c == nil || plan == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry := &cachedPlan{plan: plan, timestamp: time.Now()}
	bucket := c.buckets[plan.Digest]
	for i, cached := range bucket {
		if _, ok := uricompare.Compare(cached.plan.Request, plan.Request); ok {
			bucket[i] = entry
			atomic.AddInt64(&c.inserts, 1)
			return
		}
	}

	// Evict expired entries if cache is full
	if c.size >= c.maxSize {
		c.evictExpired()

		// If still full, evict oldest
		if c.size >= c.maxSize {
			c.evictOldest()
		}
	}

	c.buckets[plan.Digest] = append(c.buckets[plan.Digest], entry)
	c.size++
	atomic.AddInt64(&c.inserts, 1)
}

// Clear removes all cached plans
func (c *PlanCache) Clear() {
	if c == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.buckets = make(map[uint64][]*cachedPlan)
	c.size = 0
	atomic.StoreInt64(&c.hits, 0)
	atomic.StoreInt64(&c.misses, 0)
	atomic.StoreInt64(&c.bindingFailures, 0)
	atomic.StoreInt64(&c.inserts, 0)
}

// Stats returns cache statistics
func (c *PlanCache) Stats() CacheStats {
	if c == nil {
		return CacheStats{}
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	return CacheStats{
		Hits:            atomic.LoadInt64(&c.hits),
		Misses:          atomic.LoadInt64(&c.misses),
		BindingFailures: atomic.LoadInt64(&c.bindingFailures),
		Inserts:         atomic.LoadInt64(&c.inserts),
		Size:            c.size,
		Buckets:         len(c.buckets),
	}
}

// evictExpired removes expired entries from the cache
func (c *PlanCache) evictExpired() {
	now := time.Now()
	for digest, bucket := range c.buckets {
		kept := bucket[:0]
		for _, cached := range bucket {
			if now.Sub(cached.timestamp) <= c.ttl {
				kept = append(kept, cached)
			}
		}
		c.size -= len(bucket) - len(kept)
		c.setBucket(digest, kept)
	}
}

// evictOldest removes the oldest entry from the cache
func (c *PlanCache) evictOldest() {
	var oldestDigest uint64
	oldestIndex := -1
	var oldestTime time.Time

	for digest, bucket := range c.buckets {
		for i, cached := range bucket {
			if oldestIndex < 0 || cached.timestamp.Before(oldestTime) {
				oldestDigest, oldestIndex = digest, i
				oldestTime = cached.timestamp
			}
		}
	}

	if oldestIndex >= 0 {
		bucket := c.buckets[oldestDigest]
		c.setBucket(oldestDigest, append(bucket[:oldestIndex], bucket[oldestIndex+1:]...))
		c.size--
	}
}

func (c *PlanCache) setBucket(digest uint64, bucket []*cachedPlan) {
	if len(bucket) == 0 {
		delete(c.buckets, digest)
		return
	}
	c.buckets[digest] = bucket
}
