package terminology

import (
	"strings"
	"sync"
	"time"
)

// cacheKey identifies a cached resource by canonical URL and optional
// version. Trailing slashes are normalised away before keying.
type cacheKey struct {
	url     string
	version string
}

func keyFor(url, version string) cacheKey {
	return cacheKey{url: strings.TrimRight(url, "/"), version: version}
}

type entry struct {
	value    interface{}
	cachedAt time.Time
	negative bool
}

// Cache is a many-readers/few-writers terminology cache, one map per
// resource kind (CodeSystem/ValueSet/ConceptMap) each behind its own
// RWMutex. Unlike the search plan cache, eviction here is purely
// TTL-checked on read; there is no sharding, since terminology lookups
// are not the same kind of hot path as the search SQL cache.
type Cache struct {
	mu          sync.RWMutex
	codeSystems map[cacheKey]entry
	valueSets   map[cacheKey]entry
	conceptMaps map[cacheKey]entry
	maxAge      time.Duration
	negMaxAge   time.Duration
}

// NewCache creates a Cache with the given positive-hit TTL. Negative
// results (misses from the canonical manager) are cached for a much
// shorter duration, just enough to suppress request storms.
func NewCache(maxAge time.Duration) *Cache {
	return &Cache{
		codeSystems: map[cacheKey]entry{},
		valueSets:   map[cacheKey]entry{},
		conceptMaps: map[cacheKey]entry{},
		maxAge:      maxAge,
		negMaxAge:   5 * time.Second,
	}
}

func (c *Cache) get(m map[cacheKey]entry, url, version string) (interface{}, bool, bool) {
	c.mu.RLock()
	e, ok := m[keyFor(url, version)]
	c.mu.RUnlock()
	if !ok {
		return nil, false, false
	}
	age := time.Since(e.cachedAt)
	ttl := c.maxAge
	if e.negative {
		ttl = c.negMaxAge
	}
	if age > ttl {
		return nil, false, false
	}
	return e.value, e.negative, true
}

func (c *Cache) put(m map[cacheKey]entry, url, version string, value interface{}, negative bool) {
	c.mu.Lock()
	m[keyFor(url, version)] = entry{value: value, cachedAt: time.Now(), negative: negative}
	c.mu.Unlock()
}

func (c *Cache) GetCodeSystem(url, version string) (*CodeSystem, bool) {
	v, neg, ok := c.get(c.codeSystems, url, version)
	if !ok || neg {
		return nil, false
	}
	return v.(*CodeSystem), true
}

func (c *Cache) PutCodeSystem(cs *CodeSystem) {
	c.put(c.codeSystems, cs.URL, cs.Version, cs, false)
}

func (c *Cache) PutCodeSystemMiss(url, version string) {
	c.put(c.codeSystems, url, version, (*CodeSystem)(nil), true)
}

func (c *Cache) GetValueSet(url, version string) (*ValueSet, bool) {
	v, neg, ok := c.get(c.valueSets, url, version)
	if !ok || neg {
		return nil, false
	}
	return v.(*ValueSet), true
}

func (c *Cache) PutValueSet(vs *ValueSet) {
	c.put(c.valueSets, vs.URL, vs.Version, vs, false)
}

func (c *Cache) PutValueSetMiss(url, version string) {
	c.put(c.valueSets, url, version, (*ValueSet)(nil), true)
}

func (c *Cache) GetConceptMap(url, version string) (*ConceptMap, bool) {
	v, neg, ok := c.get(c.conceptMaps, url, version)
	if !ok || neg {
		return nil, false
	}
	return v.(*ConceptMap), true
}

func (c *Cache) PutConceptMap(cm *ConceptMap) {
	c.put(c.conceptMaps, cm.URL, cm.Version, cm, false)
}

func (c *Cache) PutConceptMapMiss(url, version string) {
	c.put(c.conceptMaps, url, version, (*ConceptMap)(nil), true)
}
