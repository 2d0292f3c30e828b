package search

import (
	"fmt"
	"sort"
	"sync/atomic"
)

// ParamDef is the registry's search-parameter metadata: the mapping from
// (resource type, code) to type, legal modifiers/comparators, reference
// target types and the FHIRPath expression used to index it.
type ParamDef struct {
	Code        string
	Base        string // resource type
	Type        ParamType
	Modifiers   map[ModifierKind]bool
	Comparators map[Prefix]bool
	Target      []string // resource types, for Reference/Composite params
	Expression  string
	Common      bool
}

// FHIRPathValidator is the narrow external contract the registry uses to
// reject SearchParameter registrations with a syntactically invalid
// expression.
type FHIRPathValidator interface {
	Validate(expression string) error
}

// snapshot is the immutable, atomically-swapped generation of the
// registry's contents. Readers that grab a snapshot see a consistent view
// for the life of their request even if a concurrent Register/Unregister
// publishes a new one.
type snapshot struct {
	byType map[string]map[string]*ParamDef
}

// Registry is the single source of truth for which search parameters are
// legal for a resource type. Register/Unregister are not hot-path:
// they build a new snapshot and swap it in atomically; Get/GetAllForType/
// ListResourceTypes only ever read the currently-published snapshot.
type Registry struct {
	current  atomic.Pointer[snapshot]
	fhirpath FHIRPathValidator
}

// NewRegistry creates a Registry seeded with the given built-in
// definitions and validated against validator for any later registrations.
// validator may be nil, in which case Register skips expression validation
// (useful for tests that don't need a FHIRPath engine).
func NewRegistry(builtins []*ParamDef, validator FHIRPathValidator) *Registry {
	r := &Registry{fhirpath: validator}
	snap := &snapshot{byType: map[string]map[string]*ParamDef{}}
	for _, d := range builtins {
		addToSnapshot(snap, d)
	}
	r.current.Store(snap)
	return r
}

func addToSnapshot(s *snapshot, d *ParamDef) {
	m, ok := s.byType[d.Base]
	if !ok {
		m = map[string]*ParamDef{}
		s.byType[d.Base] = m
	}
	m[d.Code] = d
}

func cloneSnapshot(s *snapshot) *snapshot {
	out := &snapshot{byType: make(map[string]map[string]*ParamDef, len(s.byType))}
	for rt, params := range s.byType {
		inner := make(map[string]*ParamDef, len(params))
		for code, def := range params {
			inner[code] = def
		}
		out.byType[rt] = inner
	}
	return out
}

// ListResourceTypes returns all resource types with at least one registered
// search parameter.
func (r *Registry) ListResourceTypes() []string {
	snap := r.current.Load()
	out := make([]string, 0, len(snap.byType))
	for rt := range snap.byType {
		out = append(out, rt)
	}
	sort.Strings(out)
	return out
}

// GetAllForType returns every search parameter registered for rt.
func (r *Registry) GetAllForType(rt string) []*ParamDef {
	snap := r.current.Load()
	params := snap.byType[rt]
	out := make([]*ParamDef, 0, len(params))
	for _, d := range params {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Get returns the definition for (rt, code), or nil if unregistered.
func (r *Registry) Get(rt, code string) *ParamDef {
	snap := r.current.Load()
	params := snap.byType[rt]
	if params == nil {
		return nil
	}
	return params[code]
}

// Register validates and admits a new (or replacement) search parameter
// definition, then atomically publishes a new snapshot. code and base are
// mandatory (Type is not checked); expression is parsed by the FHIRPath
// validator if one was configured.
func (r *Registry) Register(d *ParamDef) error {
	if d.Code == "" {
		return fmt.Errorf("search parameter code is required")
	}
	if d.Base == "" {
		return fmt.Errorf("search parameter base resource type is required")
	}
	if d.Expression != "" && r.fhirpath != nil {
		if err := r.fhirpath.Validate(d.Expression); err != nil {
			return fmt.Errorf("invalid FHIRPath expression %q: %w", d.Expression, err)
		}
	}

	for {
		old := r.current.Load()
		next := cloneSnapshot(old)
		addToSnapshot(next, d)
		if r.current.CompareAndSwap(old, next) {
			return nil
		}
	}
}

// Unregister removes the definition registered under (base, code). It
// takes the (base, code) pair, not a SearchParameter canonical URL;
// callers pass the same pair they registered with, since this core does
// not own canonical-URL resolution for
// SearchParameter resources (that belongs to the canonical manager).
func (r *Registry) Unregister(base, code string) {
	for {
		old := r.current.Load()
		params := old.byType[base]
		if params == nil || params[code] == nil {
			return
		}
		next := cloneSnapshot(old)
		delete(next.byType[base], code)
		if r.current.CompareAndSwap(old, next) {
			return
		}
	}
}
