// plan.go ties the registry, parser, builder and plan cache together
// into the single happy-path search pipeline:
//
//	URL string --parse--> ParsedParameters --validate-->
//	    cache key (shape) --cache lookup (hit/miss recorded)-->
//	    registry lookup --> per-param compile --> BuiltQuery --> SQL + params
//	                                          --cache insert-->
//
// A cache hit does not skip compilation: every call compiles the predicate
// and binds the request's own values.
//
// It is the thin glue an HTTP handler calls; none of the four components
// know about each other.
package search

import (
	"sort"
	"strings"
)

// Plan is the outcome of running a query string through the full search
// pipeline: the bound SQL/params ready for Storage.Execute, plus the
// pagination/sort decisions the caller applies verbatim.
type Plan struct {
	Bound        BoundQuery
	Count        int
	Offset       int
	Sort         []SortField
	IncludeTotal bool
	CacheHit     bool
}

// PlanQuery resolves rawQuery against resourceType: parses it, validates it
// against the registry's allow-list, and compiles the predicate via the
// per-type compilers using each parameter's registry definition.
//
// The query-plan cache is consulted for its shape bookkeeping
// (Plan.CacheHit, hit/miss statistics) and is populated on every
// resolution so its statistics and TTL-eviction behavior are exercised the
// way a real handler would drive them. This module's Builder always
// recompiles predicate text and values together (builder.go's addCondition
// appends both in lockstep), so there is no separate values-only encoding
// path to bind against a cached template; skipping recompilation on a hit
// would require splitting that bookkeeping out of every per-type compiler,
// which is a larger change than this glue warrants. That simplification is
// recorded in DESIGN.md.
func PlanQuery(registry *Registry, cache *Cache, resourceType, rawQuery string, maxCount int) (*Plan, error) {
	defs := registry.GetAllForType(resourceType)
	allowed := make(map[string]bool, len(defs)+4)
	for _, d := range defs {
		allowed[d.Code] = true
	}
	for _, builtin := range []string{"_id", "_lastUpdated", "_count", "_offset", "_sort", "_total"} {
		allowed[builtin] = true
	}

	allowedSort := make(map[string]bool, len(defs)+1)
	allowedSort["_id"] = true
	allowedSort["_lastUpdated"] = true
	for _, d := range defs {
		allowedSort[d.Code] = true
	}

	pp := Parse(rawQuery)
	if err := pp.Validate(allowed, allowedSort, maxCount); err != nil {
		return nil, err
	}

	count := pp.ParseCount(10, maxCount)
	offset := pp.ParseOffset(0)
	includeTotal := hasParam(pp, "_total")

	key := ShapeOf(pp, resourceType, offset > 0)
	_, cacheHit := cache.Get(key)

	builder := NewBuilder(nil)
	for _, p := range searchOnlyParams(pp) {
		def := registry.Get(resourceType, p.Name)
		if def == nil {
			// Already validated against the allow-list; an unregistered
			// builtin (e.g. _id) has no ParamDef and is handled by the
			// storage layer's ToFilters translation instead of the builder.
			continue
		}
		if err := builder.ApplyParam(def, p, jsonbPathFor(def)); err != nil {
			return nil, err
		}
	}
	built := builder.Build()

	pq := &PreparedQuery{
		SQLTemplate: built.SQL(),
		ParamCount:  len(built.Params),
	}
	for i := range built.Params {
		pq.ParamPositions = append(pq.ParamPositions, ParamPosition{Position: i + 1, ValueIndex: i, ValueType: ValueText})
	}
	cache.Insert(key, pq)

	return &Plan{
		Bound:        BoundQuery{SQL: built.SQL(), Params: built.Params},
		Count:        count,
		Offset:       offset,
		Sort:         pp.Sort,
		IncludeTotal: includeTotal,
		CacheHit:     cacheHit,
	}, nil
}

// jsonbPathFor derives the trusted JSONB path fragment for a registered
// search parameter from the leading dotted-identifier prefix of its
// FHIRPath expression ("Patient.meta.lastUpdated" becomes
// resource->'meta'->'lastUpdated'), falling back to the parameter code
// when the expression starts with something richer than a plain path.
// Registry expressions are validated at registration time, never taken
// from request input, so this string concatenation never touches
// unvalidated data.
func jsonbPathFor(def *ParamDef) string {
	expr := def.Expression
	if prefix := def.Base + "."; strings.HasPrefix(expr, prefix) {
		expr = expr[len(prefix):]
	}
	path := "resource"
	for _, seg := range strings.Split(expr, ".") {
		if fields := strings.Fields(seg); len(fields) > 0 {
			seg = fields[0]
		}
		if !isSimpleIdent(seg) {
			break
		}
		path += "->'" + seg + "'"
		if strings.ContainsRune(expr, ' ') {
			break // "value as Quantity" style: only the first segment is a path
		}
	}
	if path == "resource" {
		return "resource->'" + def.Code + "'"
	}
	return path
}

func isSimpleIdent(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') && r != '_' {
			return false
		}
	}
	return true
}

func hasParam(pp *ParsedParameters, name string) bool {
	for _, p := range pp.Params {
		if p.Name == name {
			return true
		}
	}
	return false
}

// searchOnlyParams drops the reserved result-parameters that never
// compile to a predicate (_count/_offset/_sort never reach pp.Params,
// Parse absorbs them, leaving only _total to skip here), and sorts by
// name so evaluation order matches the name-sorted cache key.
func searchOnlyParams(pp *ParsedParameters) []ParsedParam {
	out := make([]ParsedParam, 0, len(pp.Params))
	for _, p := range pp.Params {
		if p.Name == "_total" {
			continue
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
