package storage

import (
	"context"
	"testing"

	"github.com/octofhir/fhircore/internal/search"
)

func TestMemoryStoreCreateRead(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	created, err := store.Create(ctx, "Patient", map[string]interface{}{"name": "test"})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("expected Create to assign an ID")
	}

	got, ok, err := store.Read(ctx, "Patient", created.ID)
	if err != nil {
		t.Fatalf("Read returned error: %v", err)
	}
	if !ok {
		t.Fatalf("expected resource to be found")
	}
	if got.Version != created.Version {
		t.Errorf("Version = %q, want %q", got.Version, created.Version)
	}
}

func TestMemoryStoreReadMissing(t *testing.T) {
	store := NewMemoryStore()
	_, ok, err := store.Read(context.Background(), "Patient", "does-not-exist")
	if err != nil {
		t.Fatalf("Read returned error: %v", err)
	}
	if ok {
		t.Errorf("expected missing resource to report ok=false")
	}
}

func TestMemoryStoreUpdateOptimisticLock(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	created, _ := store.Create(ctx, "Patient", map[string]interface{}{})

	if _, err := store.Update(ctx, "Patient", created.ID, map[string]interface{}{}, "stale-version"); err == nil {
		t.Fatalf("expected stale version to be rejected")
	}

	updated, err := store.Update(ctx, "Patient", created.ID, map[string]interface{}{"active": true}, created.Version)
	if err != nil {
		t.Fatalf("Update with correct version returned error: %v", err)
	}
	if updated.Version == created.Version {
		t.Errorf("expected Update to assign a new version")
	}
}

func TestMemoryStoreDeleteIsIdempotent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	created, _ := store.Create(ctx, "Patient", map[string]interface{}{})

	if err := store.Delete(ctx, "Patient", created.ID); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if err := store.Delete(ctx, "Patient", created.ID); err != nil {
		t.Errorf("second Delete of an absent resource should be a no-op, got error: %v", err)
	}
}

func TestMemoryStoreSearchPagination(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		store.Create(ctx, "Patient", map[string]interface{}{})
	}

	result, err := store.Search(ctx, "Patient", search.BuiltQuery{}, SearchOptions{Count: 2, Offset: 1, IncludeTotal: true})
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if len(result.Entries) != 2 {
		t.Errorf("len(Entries) = %d, want 2", len(result.Entries))
	}
	if result.Total == nil || *result.Total != 5 {
		t.Errorf("Total = %v, want 5", result.Total)
	}
}
