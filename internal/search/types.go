// Package search implements the FHIR search engine: URL parsing, JSONB
// SQL compilation, the search-parameter registry and the query plan
// cache.
package search

import "time"

// ParamType is the FHIR search parameter type. It is a closed set: new
// types require a new constant and a compiler in builder.go, not a plugin
// interface.
type ParamType int

const (
	Number ParamType = iota
	Date
	String
	Token
	Reference
	Composite
	Quantity
	URI
	Special
)

func (t ParamType) String() string {
	switch t {
	case Number:
		return "number"
	case Date:
		return "date"
	case String:
		return "string"
	case Token:
		return "token"
	case Reference:
		return "reference"
	case Composite:
		return "composite"
	case Quantity:
		return "quantity"
	case URI:
		return "uri"
	case Special:
		return "special"
	default:
		return "unknown"
	}
}

// Prefix is a FHIR search value comparator prefix.
type Prefix string

const (
	PrefixNone Prefix = ""
	PrefixEq   Prefix = "eq"
	PrefixNe   Prefix = "ne"
	PrefixGt   Prefix = "gt"
	PrefixLt   Prefix = "lt"
	PrefixGe   Prefix = "ge"
	PrefixLe   Prefix = "le"
	PrefixSa   Prefix = "sa"
	PrefixEb   Prefix = "eb"
	PrefixAp   Prefix = "ap"
)

var knownPrefixes = map[Prefix]bool{
	PrefixEq: true, PrefixNe: true, PrefixGt: true, PrefixLt: true,
	PrefixGe: true, PrefixLe: true, PrefixSa: true, PrefixEb: true, PrefixAp: true,
}

// ModifierKind is the closed set of recognised search modifiers. Anything
// that doesn't match becomes ModifierTypeName (e.g. "subject:Patient").
type ModifierKind int

const (
	ModifierNone ModifierKind = iota
	ModifierExact
	ModifierContains
	ModifierText
	ModifierIn
	ModifierNotIn
	ModifierBelow
	ModifierAbove
	ModifierNot
	ModifierIdentifier
	ModifierMissing
	ModifierOfType
	ModifierTypeName
)

// Modifier carries the recognised kind plus, for ModifierTypeName, the raw
// resource type name it captured.
type Modifier struct {
	Kind     ModifierKind
	TypeName string
}

func parseModifier(raw string) Modifier {
	switch raw {
	case "":
		return Modifier{Kind: ModifierNone}
	case "exact":
		return Modifier{Kind: ModifierExact}
	case "contains":
		return Modifier{Kind: ModifierContains}
	case "text":
		return Modifier{Kind: ModifierText}
	case "in":
		return Modifier{Kind: ModifierIn}
	case "not-in":
		return Modifier{Kind: ModifierNotIn}
	case "below":
		return Modifier{Kind: ModifierBelow}
	case "above":
		return Modifier{Kind: ModifierAbove}
	case "not":
		return Modifier{Kind: ModifierNot}
	case "identifier":
		return Modifier{Kind: ModifierIdentifier}
	case "missing":
		return Modifier{Kind: ModifierMissing}
	case "ofType":
		return Modifier{Kind: ModifierOfType}
	default:
		return Modifier{Kind: ModifierTypeName, TypeName: raw}
	}
}

// Value is a single comma-separated value within a ParsedParam, with its
// stripped comparator prefix.
type Value struct {
	Prefix Prefix
	Raw    string
}

// ParsedParam is one occurrence of `name[:modifier]=v1,v2,...` from the URL.
// Comma-separated values are OR'd together by the SQL builder; repeated
// occurrences of the same name (separate ParsedParam entries) are AND'd.
type ParsedParam struct {
	Name     string
	Modifier Modifier
	Values   []Value
}

// ParsedParameters is the parser's output: the structured, order-preserving view
// of a decoded query string, plus the non-search control values that were
// recognised along the way (_count, _offset, _sort).
type ParsedParameters struct {
	Params     []ParsedParam
	Count      *int
	Offset     *int
	Sort       []SortField
	rawCount   string
	rawOffset  string
	rawSortRaw string
}

// SortField is one field of a (possibly multi-field) _sort directive.
type SortField struct {
	Name       string
	Descending bool
}

// FilterKind is the closed sum type for QueryFilter (spec §9: sum types are
// not plug-in points).
type FilterKind int

const (
	FilterExact FilterKind = iota
	FilterDateRange
	FilterIdentifier
	FilterContains
)

// QueryFilter is the best-effort translation of a handful of built-in
// parameters (_id, _lastUpdated, identifier, name/family/given) to the
// storage filter model. Parameters without a direct
// equivalent are not represented here; they pass through to the SQL
// builder untouched.
type QueryFilter struct {
	Kind   FilterKind
	Field  string
	Value  string     // FilterExact, FilterContains, FilterIdentifier (value part)
	System string     // FilterIdentifier only
	Start  *time.Time // FilterDateRange
	End    *time.Time // FilterDateRange
}
