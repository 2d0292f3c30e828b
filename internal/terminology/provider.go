package terminology

import "github.com/octofhir/fhircore/pkg/fhirmodels"

// CanonicalStore is the inbound dependency the terminology operations use
// to load conformance resources by canonical URL when the cache misses.
// An implementation typically resolves this against the storage layer's
// SearchParameter/ValueSet/CodeSystem/ConceptMap tables.
type CanonicalStore interface {
	LoadCodeSystem(url, version string) (*CodeSystem, error)
	LoadValueSet(url, version string) (*ValueSet, error)
	LoadConceptMap(url, version string) (*ConceptMap, error)
	// FindConceptMaps returns ConceptMaps whose source/target match the
	// given canonical URLs, for $translate's implicit-map-search mode.
	FindConceptMaps(sourceURL, targetURL string) ([]*ConceptMap, error)
}

// ExternalProvider is the narrow contract for delegating to a large
// external terminology (SNOMED CT, LOINC, RxNorm) when a CodeSystem has
// no local concept hierarchy.
type ExternalProvider interface {
	Lookup(system, code, version string) (*LookupResult, error)
	Subsumes(system, codeA, codeB string) (SubsumptionOutcome, error)
}

// largeCodeSystems are the well-known ontologies too big to hold a local
// concept hierarchy; $subsumes delegates to an ExternalProvider for these
// regardless of what the local CodeSystem resource says.
var largeCodeSystems = map[string]bool{
	fhirmodels.SystemSNOMED: true,
	fhirmodels.SystemLOINC:  true,
	fhirmodels.SystemRxNorm: true,
}

// Engine wires the cache and the two inbound dependencies together; every
// terminology operation in this package is a method on Engine.
type Engine struct {
	cache    *Cache
	store    CanonicalStore
	external ExternalProvider // may be nil: $lookup on a large code system then fails NotSupported and $subsumes answers NotSubsumed
}

// NewEngine creates a terminology Engine. external may be nil.
func NewEngine(cache *Cache, store CanonicalStore, external ExternalProvider) *Engine {
	return &Engine{cache: cache, store: store, external: external}
}

func (e *Engine) codeSystem(url, version string) (*CodeSystem, error) {
	if cs, ok := e.cache.GetCodeSystem(url, version); ok {
		return cs, nil
	}
	cs, err := e.store.LoadCodeSystem(url, version)
	if err != nil {
		e.cache.PutCodeSystemMiss(url, version)
		return nil, errNotFound("code system %s: %v", url, err)
	}
	e.cache.PutCodeSystem(cs)
	return cs, nil
}

func (e *Engine) valueSet(url, version string) (*ValueSet, error) {
	if vs, ok := e.cache.GetValueSet(url, version); ok {
		return vs, nil
	}
	vs, err := e.store.LoadValueSet(url, version)
	if err != nil {
		e.cache.PutValueSetMiss(url, version)
		return nil, errNotFound("value set %s: %v", url, err)
	}
	e.cache.PutValueSet(vs)
	return vs, nil
}

func (e *Engine) conceptMap(url, version string) (*ConceptMap, error) {
	if cm, ok := e.cache.GetConceptMap(url, version); ok {
		return cm, nil
	}
	cm, err := e.store.LoadConceptMap(url, version)
	if err != nil {
		e.cache.PutConceptMapMiss(url, version)
		return nil, errNotFound("concept map %s: %v", url, err)
	}
	e.cache.PutConceptMap(cm)
	return cm, nil
}
