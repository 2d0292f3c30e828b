package search

import "testing"

func keyFor(n int) QueryCacheKey {
	return QueryCacheKey{ResourceType: "Observation", Parameters: []QueryParamKey{
		{Name: "status", ParamType: Token, ValueCount: n},
	}}
}

func TestCache_SoftCapacityDoesNotDropEntries(t *testing.T) {
	c := NewCache(2)
	for i := 1; i <= 3; i++ {
		c.Insert(keyFor(i), &PreparedQuery{SQLTemplate: "SELECT 1", ParamCount: 0})
	}
	if got := c.Stats().Size; got != 3 {
		t.Fatalf("expected all 3 entries to survive soft-capacity insert (hard limit 1.5*2=3), got size=%d", got)
	}
}

func TestCache_GetMiss(t *testing.T) {
	c := NewCache(10)
	if _, ok := c.Get(keyFor(1)); ok {
		t.Fatal("expected miss on empty cache")
	}
	if c.Stats().Misses != 1 {
		t.Fatalf("expected 1 miss recorded, got %d", c.Stats().Misses)
	}
}

func TestCache_InsertThenGetHits(t *testing.T) {
	c := NewCache(10)
	k := keyFor(1)
	c.Insert(k, &PreparedQuery{SQLTemplate: "SELECT 1", ParamCount: 0})
	pq, ok := c.Get(k)
	if !ok || pq.SQLTemplate != "SELECT 1" {
		t.Fatalf("expected hit with SELECT 1, got ok=%v pq=%+v", ok, pq)
	}
	if c.Stats().Hits != 1 {
		t.Fatalf("expected 1 hit recorded, got %d", c.Stats().Hits)
	}
}

func TestCache_DisabledCacheAlwaysMisses(t *testing.T) {
	c := NewDisabledCache()
	k := keyFor(1)
	c.Insert(k, &PreparedQuery{SQLTemplate: "SELECT 1", ParamCount: 0})
	if _, ok := c.Get(k); ok {
		t.Fatal("expected disabled cache to never hit")
	}
}

func TestCache_StaleEntryEvictedOnGet(t *testing.T) {
	c := NewCache(10).WithMaxAge(0)
	k := keyFor(1)
	c.Insert(k, &PreparedQuery{SQLTemplate: "SELECT 1", ParamCount: 0})
	if _, ok := c.Get(k); ok {
		t.Fatal("expected immediate staleness with zero TTL to miss")
	}
	if c.Stats().Evictions != 1 {
		t.Fatalf("expected 1 eviction recorded, got %d", c.Stats().Evictions)
	}
}

func TestPreparedQuery_BindArityMismatch(t *testing.T) {
	pq := &PreparedQuery{SQLTemplate: "SELECT * FROM t WHERE a = $1", ParamCount: 1}
	_, err := pq.Bind(nil)
	if err == nil {
		t.Fatal("expected ParameterMismatch error")
	}
	ce, ok := err.(*CacheError)
	if !ok || ce.Kind != ErrParameterMismatch || ce.Expected != 1 || ce.Got != 0 {
		t.Fatalf("expected CacheError{ErrParameterMismatch,1,0}, got %+v", err)
	}
}

func TestPreparedQuery_BindSuccessIncrementsHitCount(t *testing.T) {
	pq := &PreparedQuery{SQLTemplate: "SELECT 1", ParamCount: 1}
	if _, err := pq.Bind([]interface{}{"x"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pq.HitCount() != 1 {
		t.Fatalf("expected hit count 1, got %d", pq.HitCount())
	}
}

func TestShapeOf_Hash_StableAcrossCalls(t *testing.T) {
	pp := Parse("status=active")
	k1 := ShapeOf(pp, "Observation", false)
	k2 := ShapeOf(pp, "Observation", false)
	if k1.Hash() != k2.Hash() {
		t.Fatal("expected repeated ShapeOf calls to hash identically")
	}
}
