package search

import (
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
)

// QueryParamKey is the shape-relevant projection of a ParsedParam: enough
// to reconstruct a SQL template, but none of the actual values.
type QueryParamKey struct {
	Name       string
	Modifier   string
	ParamType  ParamType
	ValueCount int
}

// QueryCacheKey is the plan cache key: the structural signature of a
// query, independent of concrete values and of the URL's parameter order.
type QueryCacheKey struct {
	ResourceType  string
	Parameters    []QueryParamKey
	HasPagination bool
	SortFields    []string
}

// ShapeOf derives the cache key for a parsed query. Parameters are sorted
// by name so `?a=1&b=2` and `?b=2&a=1` produce an identical key.
func ShapeOf(pp *ParsedParameters, resourceType string, hasPagination bool) QueryCacheKey {
	key := QueryCacheKey{ResourceType: resourceType, HasPagination: hasPagination}
	for _, p := range pp.Params {
		key.Parameters = append(key.Parameters, QueryParamKey{
			Name:       p.Name,
			Modifier:   modifierCacheToken(p.Modifier),
			ParamType:  inferParamType(p.Name),
			ValueCount: len(p.Values),
		})
	}
	sort.Slice(key.Parameters, func(i, j int) bool { return key.Parameters[i].Name < key.Parameters[j].Name })

	for _, f := range pp.Sort {
		tok := f.Name
		if f.Descending {
			tok = "-" + tok
		}
		key.SortFields = append(key.SortFields, tok)
	}
	return key
}

func modifierCacheToken(m Modifier) string {
	if m.Kind == ModifierTypeName {
		return "type:" + m.TypeName
	}
	return strconv.Itoa(int(m.Kind))
}

// inferParamType is a name-based heuristic used only for cache-shape
// purposes: it need not match the registry's authoritative type, it only
// has to be stable so identical names always infer the same type.
func inferParamType(name string) ParamType {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "date"), strings.Contains(lower, "time"), lower == "_lastupdated":
		return Date
	case strings.Contains(lower, "code"), strings.Contains(lower, "status"),
		strings.Contains(lower, "identifier"), strings.Contains(lower, "type"),
		strings.Contains(lower, "category"):
		return Token
	case strings.Contains(lower, "name"), strings.Contains(lower, "family"),
		strings.Contains(lower, "given"), strings.Contains(lower, "address"),
		strings.Contains(lower, "city"), strings.Contains(lower, "text"):
		return String
	case strings.Contains(lower, "subject"), strings.Contains(lower, "patient"),
		strings.Contains(lower, "performer"), strings.Contains(lower, "encounter"),
		strings.Contains(lower, "reference"):
		return Reference
	case strings.Contains(lower, "quantity"):
		return Quantity
	case lower == "url" || lower == "uri" || strings.Contains(lower, "uri"):
		return URI
	default:
		return Token
	}
}

// Hash returns a stable content hash of the key, used as the cache's map
// index. Two keys with equal field values always hash equal; order within
// Parameters has already been normalised by ShapeOf.
func (k QueryCacheKey) Hash() uint64 {
	h := fnv.New64a()
	h.Write([]byte(k.ResourceType))
	h.Write([]byte{0})
	for _, p := range k.Parameters {
		h.Write([]byte(p.Name))
		h.Write([]byte{'|'})
		h.Write([]byte(p.Modifier))
		h.Write([]byte{'|'})
		h.Write([]byte(p.ParamType.String()))
		h.Write([]byte{'|'})
		h.Write([]byte(strconv.Itoa(p.ValueCount)))
		h.Write([]byte{0})
	}
	if k.HasPagination {
		h.Write([]byte{1})
	}
	for _, s := range k.SortFields {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}
	return h.Sum64()
}
