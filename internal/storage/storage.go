// Package storage implements the resource storage contract:
// read/search/create/update/delete over FHIR resources, plus a
// lower-level capability to execute a search.BuiltQuery and return a row
// stream. A single pgx-backed implementation driven by a resourceType to
// table-name mapping serves every resource type, since the set of FHIR
// resource types is open-ended rather than a fixed domain model.
package storage

import (
	"context"
	"time"

	"github.com/octofhir/fhircore/internal/search"
)

// Stored is a persisted FHIR resource plus its version metadata, the Go
// equivalent of the contract's Stored{resource, version, lastUpdated}.
type Stored struct {
	ResourceType string
	ID           string
	Resource     map[string]interface{}
	Version      string
	LastUpdated  time.Time
}

// SearchResult is the outcome of Search: the page of matching resources and
// an optional total count (omitted when the caller didn't request one, to
// avoid a second COUNT(*) scan).
type SearchResult struct {
	Entries []Stored
	Total   *int
}

// SearchOptions carries the pagination and ordering decisions the search
// URL parser already resolved; Storage applies them verbatim rather than
// re-deriving them.
type SearchOptions struct {
	Count        int
	Offset       int
	Sort         []search.SortField
	IncludeTotal bool
}

// Row is one record of a raw BuiltQuery execution, for callers (e.g. the
// SQL Language Server's catalog introspection, or a bundle assembler) that
// need the row shape without the Stored{} wrapping.
type Row struct {
	Values []interface{}
}

// RowStream is a lazily-consumed result set from Execute. Callers must call
// Close when done, even after exhausting Next or hitting an error.
type RowStream interface {
	Next(ctx context.Context) (Row, bool, error)
	Close()
}

// Store is the resource storage contract.
type Store interface {
	// Read returns the current version of a resource, or (Stored{}, false, nil)
	// if it does not exist.
	Read(ctx context.Context, resourceType, id string) (Stored, bool, error)

	// Search runs a compiled search.BuiltQuery against resourceType's table,
	// applying opts for pagination/sort/total.
	Search(ctx context.Context, resourceType string, query search.BuiltQuery, opts SearchOptions) (SearchResult, error)

	// Create inserts a new resource, assigning id/version/lastUpdated.
	Create(ctx context.Context, resourceType string, resource map[string]interface{}) (Stored, error)

	// Update replaces a resource's content, enforcing versionIfMatch as an
	// optimistic-concurrency precondition when non-empty.
	Update(ctx context.Context, resourceType, id string, resource map[string]interface{}, versionIfMatch string) (Stored, error)

	// Delete removes a resource. Deleting an already-absent resource is not
	// an error (idempotent per FHIR's DELETE semantics).
	Delete(ctx context.Context, resourceType, id string) error

	// Execute runs a BuiltQuery against resourceType's table and returns the
	// raw row stream, for callers that need more than the Stored{} shape
	// (e.g. a bundle assembler projecting specific columns).
	Execute(ctx context.Context, resourceType string, query search.BuiltQuery) (RowStream, error)
}

// ErrOptimisticLock is returned by Update when versionIfMatch does not
// match the resource's current version.
type ErrOptimisticLock struct {
	ResourceType string
	ID           string
	Expected     string
	Actual       string
}

func (e *ErrOptimisticLock) Error() string {
	return "storage: version conflict for " + e.ResourceType + "/" + e.ID
}
