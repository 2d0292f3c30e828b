package search

import (
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"
)

// ParamValueType tags how a bound value should be encoded for the
// underlying driver.
type ParamValueType int

const (
	ValueText ParamValueType = iota
	ValueInteger
	ValueFloat
	ValueBoolean
	ValueTimestamp
	ValueJSON
)

// ParamPosition records where the Nth bind value lands in the SQL
// template, so Bind can validate arity without re-parsing SQL.
type ParamPosition struct {
	Position   int
	Name       string
	ValueIndex int
	ValueType  ParamValueType
}

// CacheErrorKind is the closed error taxonomy for cache Bind/Get failures.
type CacheErrorKind int

const (
	ErrNotFound CacheErrorKind = iota
	ErrDisabled
	ErrParameterMismatch
)

// CacheError carries the taxonomy plus, for ErrParameterMismatch, the
// expected and actual argument counts.
type CacheError struct {
	Kind     CacheErrorKind
	Expected int
	Got      int
}

func (e *CacheError) Error() string {
	switch e.Kind {
	case ErrDisabled:
		return "query plan cache is disabled"
	case ErrParameterMismatch:
		return fmt.Sprintf("parameter mismatch: expected %d, got %d", e.Expected, e.Got)
	default:
		return "not found"
	}
}

// PreparedQuery is a cached SQL template keyed by query shape: it binds
// correctly against any value set matching the shape it was built from.
type PreparedQuery struct {
	SQLTemplate    string
	ParamPositions []ParamPosition
	ParamCount     int
	CachedAt       time.Time
	hitCount       atomic.Uint64
}

// HitCount returns the number of times this entry has satisfied a Get.
func (p *PreparedQuery) HitCount() uint64 { return p.hitCount.Load() }

func (p *PreparedQuery) isStale(maxAge time.Duration) bool {
	return time.Since(p.CachedAt) > maxAge
}

// BoundQuery is a PreparedQuery with concrete values attached.
type BoundQuery struct {
	SQL    string
	Params []interface{}
}

// Bind pairs values positionally with the template. It fails with
// ErrParameterMismatch if the counts differ.
func (p *PreparedQuery) Bind(values []interface{}) (BoundQuery, error) {
	if len(values) != p.ParamCount {
		return BoundQuery{}, &CacheError{Kind: ErrParameterMismatch, Expected: p.ParamCount, Got: len(values)}
	}
	p.hitCount.Add(1)
	return BoundQuery{SQL: p.SQLTemplate, Params: values}, nil
}

// Statistics tracks cache effectiveness counters, readable as a snapshot.
type Statistics struct {
	hits       atomic.Uint64
	misses     atomic.Uint64
	evictions  atomic.Uint64
	insertions atomic.Uint64
	size       atomic.Int64
}

// StatisticsSnapshot is an immutable point-in-time read of Statistics.
type StatisticsSnapshot struct {
	Hits, Misses, Evictions, Insertions uint64
	Size                                int64
	HitRatio                            float64
}

func (s *Statistics) Snapshot() StatisticsSnapshot {
	hits := s.hits.Load()
	misses := s.misses.Load()
	total := hits + misses
	ratio := 0.0
	if total > 0 {
		ratio = float64(hits) / float64(total)
	}
	return StatisticsSnapshot{
		Hits: hits, Misses: misses,
		Evictions:  s.evictions.Load(),
		Insertions: s.insertions.Load(),
		Size:       s.size.Load(),
		HitRatio:   ratio,
	}
}

const (
	defaultMaxAgeSeconds  = 3600
	cleanupProbabilityPct = 1   // 1-in-100 chance per insert once at soft capacity
	hardCapacityMultiple  = 1.5 // forced cleanup once len >= capacity*1.5
	shardCount            = 16
)

type shard struct {
	mu      sync.RWMutex
	entries map[uint64]*PreparedQuery
}

// Cache is the query plan cache: a lock-sharded, TTL-evicted map keyed
// by query shape. Get takes a shard read lock, and a write lock only to
// evict a stale entry it found; Insert takes a write lock on a single
// shard, and a sweep it triggers locks each shard in turn. There is no
// LRU bookkeeping; eviction is driven purely
// by TTL plus the probabilistic/forced cleanup sweeps on Insert.
type Cache struct {
	shards   [shardCount]*shard
	capacity int
	maxAge   time.Duration
	enabled  bool
	stats    Statistics
}

// NewCache creates an enabled cache with the given soft capacity and the
// default 3600s TTL.
func NewCache(capacity int) *Cache {
	c := &Cache{capacity: capacity, maxAge: defaultMaxAgeSeconds * time.Second, enabled: true}
	for i := range c.shards {
		c.shards[i] = &shard{entries: map[uint64]*PreparedQuery{}}
	}
	return c
}

// NewDisabledCache returns a cache whose Get always misses and whose
// Insert is a no-op, used when the deployment wants search correctness
// without the plan cache's memory footprint.
func NewDisabledCache() *Cache {
	c := NewCache(1)
	c.enabled = false
	return c
}

// WithMaxAge overrides the default TTL.
func (c *Cache) WithMaxAge(d time.Duration) *Cache {
	c.maxAge = d
	return c
}

func (c *Cache) shardFor(h uint64) *shard {
	return c.shards[h%shardCount]
}

// Get returns the prepared query for key, or (nil, false) on miss. A stale
// hit is evicted and counted as a miss.
func (c *Cache) Get(key QueryCacheKey) (*PreparedQuery, bool) {
	if !c.enabled {
		c.stats.misses.Add(1)
		return nil, false
	}
	h := key.Hash()
	s := c.shardFor(h)

	s.mu.RLock()
	entry, ok := s.entries[h]
	s.mu.RUnlock()

	if !ok {
		c.stats.misses.Add(1)
		return nil, false
	}
	if entry.isStale(c.maxAge) {
		s.mu.Lock()
		if cur, still := s.entries[h]; still && cur == entry {
			delete(s.entries, h)
			c.stats.size.Add(-1)
			c.stats.evictions.Add(1)
		}
		s.mu.Unlock()
		c.stats.misses.Add(1)
		return nil, false
	}

	c.stats.hits.Add(1)
	return entry, true
}

// Insert publishes a prepared query for key, stamping CachedAt. Once the
// cache reaches soft capacity, every insert has a 1% chance of triggering
// a stale sweep; at 1.5x capacity a sweep is forced unconditionally.
func (c *Cache) Insert(key QueryCacheKey, pq *PreparedQuery) {
	if !c.enabled {
		return
	}
	pq.CachedAt = time.Now()
	h := key.Hash()
	s := c.shardFor(h)

	s.mu.Lock()
	_, existed := s.entries[h]
	s.entries[h] = pq
	s.mu.Unlock()

	if !existed {
		c.stats.size.Add(1)
	}
	c.stats.insertions.Add(1)

	current := c.stats.size.Load()
	hardLimit := int64(float64(c.capacity) * hardCapacityMultiple)
	if current >= hardLimit {
		c.cleanupStale()
	} else if current >= int64(c.capacity) && rand.Intn(100) < cleanupProbabilityPct {
		c.cleanupStale()
	}
}

// CleanupStale performs an O(n) scan removing every entry whose age
// exceeds the cache's TTL. It is exported so callers (e.g. a periodic
// maintenance goroutine) can trigger it directly; Insert also calls it
// probabilistically once at soft capacity, unconditionally at the hard
// limit.
func (c *Cache) CleanupStale() {
	c.cleanupStale()
}

func (c *Cache) cleanupStale() {
	for _, s := range c.shards {
		s.mu.Lock()
		for h, e := range s.entries {
			if e.isStale(c.maxAge) {
				delete(s.entries, h)
				c.stats.size.Add(-1)
				c.stats.evictions.Add(1)
			}
		}
		s.mu.Unlock()
	}
}

// Stats returns a point-in-time snapshot of cache statistics.
func (c *Cache) Stats() StatisticsSnapshot {
	return c.stats.Snapshot()
}
