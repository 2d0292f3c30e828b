// Package canonical adapts the storage contract (internal/storage) to
// the narrow CanonicalStore the terminology engine needs to resolve
// ValueSet/CodeSystem/ConceptMap by (url, version). It supplies only the
// exact-match lookup the engine actually calls, backed by whichever
// Store the server is configured with, so `serve` has a working
// terminology path without a second database or service to stand up.
package canonical

import (
	"context"
	"fmt"

	"github.com/octofhir/fhircore/internal/search"
	"github.com/octofhir/fhircore/internal/storage"
	"github.com/octofhir/fhircore/internal/terminology"
)

// maxCanonicalScan bounds how many rows of a conformance resource type are
// pulled back to search by url/version client-side. Deployments rarely
// carry more than a few hundred ValueSets/CodeSystems/ConceptMaps; a full
// secondary index is future work, not required for this core to function.
const maxCanonicalScan = 10000

// searchAll is the unconstrained BuiltQuery ("WHERE TRUE") every Store
// implementation accepts for a full-table scan.
var searchAll = search.BuiltQuery{}

// Store implements terminology.CanonicalStore over a storage.Store.
type Store struct {
	backing storage.Store
}

// New wraps backing as a CanonicalStore.
func New(backing storage.Store) *Store {
	return &Store{backing: backing}
}

func (s *Store) LoadCodeSystem(url, version string) (*terminology.CodeSystem, error) {
	raw, err := s.findByURL(context.Background(), "CodeSystem", url, version)
	if err != nil {
		return nil, err
	}
	return decodeCodeSystem(raw)
}

func (s *Store) LoadValueSet(url, version string) (*terminology.ValueSet, error) {
	raw, err := s.findByURL(context.Background(), "ValueSet", url, version)
	if err != nil {
		return nil, err
	}
	return decodeValueSet(raw)
}

func (s *Store) LoadConceptMap(url, version string) (*terminology.ConceptMap, error) {
	raw, err := s.findByURL(context.Background(), "ConceptMap", url, version)
	if err != nil {
		return nil, err
	}
	return decodeConceptMap(raw)
}

func (s *Store) FindConceptMaps(sourceURL, targetURL string) ([]*terminology.ConceptMap, error) {
	ctx := context.Background()
	result, err := s.backing.Search(ctx, "ConceptMap", searchAll, storage.SearchOptions{Count: maxCanonicalScan})
	if err != nil {
		return nil, fmt.Errorf("canonical: search ConceptMap: %w", err)
	}

	var out []*terminology.ConceptMap
	for _, entry := range result.Entries {
		cm, err := decodeConceptMap(entry.Resource)
		if err != nil {
			continue
		}
		if sourceURL != "" && cm.Source != sourceURL {
			continue
		}
		if targetURL != "" && cm.Target != targetURL {
			continue
		}
		out = append(out, cm)
	}
	return out, nil
}

// findByURL scans resourceType's table for the (url, version) pair and
// returns the first match's raw resource content, for the wire decoders in
// decode.go to map onto the domain types. version == "" matches any version.
func (s *Store) findByURL(ctx context.Context, resourceType, url, version string) (map[string]interface{}, error) {
	result, err := s.backing.Search(ctx, resourceType, searchAll, storage.SearchOptions{Count: maxCanonicalScan})
	if err != nil {
		return nil, fmt.Errorf("canonical: search %s: %w", resourceType, err)
	}
	for _, entry := range result.Entries {
		entryURL, _ := entry.Resource["url"].(string)
		if entryURL != url {
			continue
		}
		if version != "" {
			entryVersion, _ := entry.Resource["version"].(string)
			if entryVersion != version {
				continue
			}
		}
		return entry.Resource, nil
	}
	return nil, fmt.Errorf("canonical: %s %q (version %q) not found", resourceType, url, version)
}
