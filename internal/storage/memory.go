package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/octofhir/fhircore/internal/search"
)

// MemoryStore is an in-memory Store test double. It is not a Postgres
// JSONB simulator: Search and Execute ignore the BuiltQuery entirely and
// return every resource of the type, newest first, with only the
// pagination and total options applied.
type MemoryStore struct {
	mu   sync.RWMutex
	byRT map[string]map[string]Stored
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byRT: make(map[string]map[string]Stored)}
}

func (m *MemoryStore) Read(_ context.Context, resourceType, id string) (Stored, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	table := m.byRT[resourceType]
	if table == nil {
		return Stored{}, false, nil
	}
	s, ok := table[id]
	return s, ok, nil
}

func (m *MemoryStore) Create(_ context.Context, resourceType string, resource map[string]interface{}) (Stored, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.byRT[resourceType] == nil {
		m.byRT[resourceType] = make(map[string]Stored)
	}
	id := uuid.New().String()
	if resource == nil {
		resource = map[string]interface{}{}
	}
	resource["resourceType"] = resourceType
	resource["id"] = id
	stored := Stored{
		ResourceType: resourceType,
		ID:           id,
		Resource:     resource,
		Version:      uuid.New().String(),
		LastUpdated:  time.Now().UTC(),
	}
	m.byRT[resourceType][id] = stored
	return stored, nil
}

func (m *MemoryStore) Update(_ context.Context, resourceType, id string, resource map[string]interface{}, versionIfMatch string) (Stored, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	table := m.byRT[resourceType]
	if table == nil {
		return Stored{}, &ErrOptimisticLock{ResourceType: resourceType, ID: id}
	}
	existing, ok := table[id]
	if !ok {
		return Stored{}, &ErrOptimisticLock{ResourceType: resourceType, ID: id}
	}
	if versionIfMatch != "" && existing.Version != versionIfMatch {
		return Stored{}, &ErrOptimisticLock{ResourceType: resourceType, ID: id, Expected: versionIfMatch, Actual: existing.Version}
	}
	if resource == nil {
		resource = map[string]interface{}{}
	}
	resource["resourceType"] = resourceType
	resource["id"] = id
	stored := Stored{
		ResourceType: resourceType,
		ID:           id,
		Resource:     resource,
		Version:      uuid.New().String(),
		LastUpdated:  time.Now().UTC(),
	}
	table[id] = stored
	return stored, nil
}

func (m *MemoryStore) Delete(_ context.Context, resourceType, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if table := m.byRT[resourceType]; table != nil {
		delete(table, id)
	}
	return nil
}

func (m *MemoryStore) Search(_ context.Context, resourceType string, _ search.BuiltQuery, opts SearchOptions) (SearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	table := m.byRT[resourceType]
	entries := make([]Stored, 0, len(table))
	for _, s := range table {
		entries = append(entries, s)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].LastUpdated.After(entries[j].LastUpdated) })

	total := len(entries)
	start := opts.Offset
	if start > len(entries) {
		start = len(entries)
	}
	end := start + opts.Count
	if opts.Count <= 0 || end > len(entries) {
		end = len(entries)
	}
	page := append([]Stored(nil), entries[start:end]...)

	result := SearchResult{Entries: page}
	if opts.IncludeTotal {
		result.Total = &total
	}
	return result, nil
}

func (m *MemoryStore) Execute(ctx context.Context, resourceType string, query search.BuiltQuery) (RowStream, error) {
	result, err := m.Search(ctx, resourceType, query, SearchOptions{Count: -1})
	if err != nil {
		return nil, err
	}
	return &memoryRowStream{entries: result.Entries}, nil
}

type memoryRowStream struct {
	entries []Stored
	pos     int
}

func (s *memoryRowStream) Next(_ context.Context) (Row, bool, error) {
	if s.pos >= len(s.entries) {
		return Row{}, false, nil
	}
	e := s.entries[s.pos]
	s.pos++
	return Row{Values: []interface{}{e.ID, e.Resource, e.Version, e.LastUpdated}}, true, nil
}

func (s *memoryRowStream) Close() {}
