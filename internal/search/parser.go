package search

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ValidationError is the error kind query validation returns. It models
// the two variants (unknown parameter, invalid value) as a single tagged
// struct rather than an interface hierarchy.
type ValidationError struct {
	UnknownParam string
	InvalidParam string
	Message      string
}

func (e *ValidationError) Error() string {
	if e.UnknownParam != "" {
		return fmt.Sprintf("unknown search parameter: %s", e.UnknownParam)
	}
	return fmt.Sprintf("invalid value for %s: %s", e.InvalidParam, e.Message)
}

func errUnknownParameter(name string) error {
	return &ValidationError{UnknownParam: name}
}

func errInvalidValue(param, message string) error {
	return &ValidationError{InvalidParam: param, Message: message}
}

// Parse decodes an application/x-www-form-urlencoded query string into
// ParsedParameters. Parse always succeeds: malformed
// percent-encoding degrades to the literal substring rather than erroring,
// empty values are dropped, and whitespace at comma-split boundaries is
// trimmed.
func Parse(rawQuery string) *ParsedParameters {
	pp := &ParsedParameters{}

	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}
		var rawKey, rawVal string
		if idx := strings.IndexByte(pair, '='); idx >= 0 {
			rawKey, rawVal = pair[:idx], pair[idx+1:]
		} else {
			rawKey = pair
		}
		key := decodeFormValue(rawKey)
		if key == "" {
			continue
		}
		val := decodeFormValue(rawVal)

		name, modRaw := splitNameAndModifier(key)

		switch name {
		case "_count":
			if pp.rawCount == "" {
				pp.rawCount = val
			}
			continue
		case "_offset":
			if pp.rawOffset == "" {
				pp.rawOffset = val
			}
			continue
		case "_sort":
			if pp.rawSortRaw == "" {
				pp.rawSortRaw = val
				pp.Sort = parseSort(val)
			}
			continue
		}

		param := ParsedParam{
			Name:     name,
			Modifier: parseModifier(modRaw),
		}
		for _, v := range strings.Split(val, ",") {
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			prefix, remainder := extractPrefix(v)
			param.Values = append(param.Values, Value{Prefix: prefix, Raw: remainder})
		}
		pp.Params = append(pp.Params, param)
	}

	return pp
}

func decodeFormValue(s string) string {
	s = strings.ReplaceAll(s, "+", " ")
	if decoded, err := url.QueryUnescape(s); err == nil {
		return decoded
	}
	return s
}

// splitNameAndModifier splits on the first ':'. A bare name has no modifier.
func splitNameAndModifier(key string) (string, string) {
	if idx := strings.IndexByte(key, ':'); idx >= 0 {
		return key[:idx], key[idx+1:]
	}
	return key, ""
}

// extractPrefix inspects the first two characters of v. If they match a
// known comparator prefix, it is stripped; otherwise the value is returned
// unchanged with PrefixNone. At most one prefix is ever stripped.
func extractPrefix(v string) (Prefix, string) {
	if len(v) >= 2 {
		candidate := Prefix(strings.ToLower(v[:2]))
		if knownPrefixes[candidate] {
			return candidate, v[2:]
		}
	}
	return PrefixNone, v
}

// parseSort parses the first _sort value's comma-separated field list.
// A leading "-" means descending; otherwise ascending. _sort is a control
// parameter handled outside the ParsedParam path, so no ":asc"/":desc"
// modifier variant is emitted here; descending is always spelled "-field".
func parseSort(raw string) []SortField {
	if raw == "" {
		return nil
	}
	var fields []SortField
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		desc := strings.HasPrefix(part, "-")
		if desc {
			part = part[1:]
		}
		if part == "" {
			continue
		}
		fields = append(fields, SortField{Name: part, Descending: desc})
	}
	return fields
}

// ParseCount clamps the _count value into [1, max]. An absent, zero,
// negative or unparsable _count falls back to defaultCount.
func (pp *ParsedParameters) ParseCount(defaultCount, max int) int {
	if pp.rawCount == "" {
		return defaultCount
	}
	n, err := strconv.Atoi(pp.rawCount)
	if err != nil || n <= 0 {
		return defaultCount
	}
	if n > max {
		return max
	}
	return n
}

// ParseOffset parses _offset, falling back to defaultOffset when absent,
// negative or unparsable.
func (pp *ParsedParameters) ParseOffset(defaultOffset int) int {
	if pp.rawOffset == "" {
		return defaultOffset
	}
	n, err := strconv.Atoi(pp.rawOffset)
	if err != nil || n < 0 {
		return defaultOffset
	}
	return n
}

// Validate checks parameter names against an allow-list, _sort fields
// against their own allow-list, and _count against max. Modifiers are
// stripped from the name before the allow-list check.
func (pp *ParsedParameters) Validate(allowedParams, allowedSortFields map[string]bool, maxCount int) error {
	for _, p := range pp.Params {
		if !allowedParams[p.Name] {
			return errUnknownParameter(p.Name)
		}
	}
	if pp.rawCount != "" {
		n, err := strconv.Atoi(pp.rawCount)
		if err != nil {
			return errInvalidValue("_count", "must be an integer")
		}
		if n <= 0 {
			return errInvalidValue("_count", "must be positive")
		}
		if n > maxCount {
			return errInvalidValue("_count", fmt.Sprintf("exceeds maximum of %d", maxCount))
		}
	}
	if pp.rawOffset != "" {
		if _, err := strconv.Atoi(pp.rawOffset); err != nil {
			return errInvalidValue("_offset", "must be an integer")
		}
	}
	for _, f := range pp.Sort {
		if !allowedSortFields[f.Name] {
			return errInvalidValue("_sort", fmt.Sprintf("unknown sort field %q", f.Name))
		}
	}
	return nil
}

// ToFilters performs the best-effort translation for the minority of
// built-ins that have a direct storage-filter equivalent:
// _id, _lastUpdated, identifier, and name/family/given. Everything else
// passes through untouched (it is not represented in the returned slice;
// the SQL builder consumes the original ParsedParam for those).
//
// _lastUpdated prefix handling intentionally collapses gt into ge-like
// "start" and lt into le-like "end" semantics, and drops ne/sa/eb/ap
// entirely. Established client behaviour depends on this collapse; keep
// it rather than tightening to a strict interpretation.
func (pp *ParsedParameters) ToFilters() []QueryFilter {
	var filters []QueryFilter
	for _, p := range pp.Params {
		switch p.Name {
		case "_id":
			if v := firstRaw(p); v != "" {
				filters = append(filters, QueryFilter{Kind: FilterExact, Field: "_id", Value: v})
			}
		case "_lastUpdated":
			for _, v := range p.Values {
				if f, ok := lastUpdatedFilter(v); ok {
					filters = append(filters, f)
				}
			}
		case "identifier":
			if v := firstRaw(p); v != "" {
				system, value := splitSystemValue(v)
				filters = append(filters, QueryFilter{Kind: FilterIdentifier, Field: "identifier", System: system, Value: value})
			}
		case "name", "family", "given":
			if v := firstRaw(p); v != "" {
				if p.Modifier.Kind == ModifierExact {
					filters = append(filters, QueryFilter{Kind: FilterExact, Field: p.Name, Value: v})
				} else {
					filters = append(filters, QueryFilter{Kind: FilterContains, Field: p.Name, Value: v})
				}
			}
		}
	}
	return filters
}

func firstRaw(p ParsedParam) string {
	if len(p.Values) == 0 {
		return ""
	}
	return p.Values[0].Raw
}

func splitSystemValue(v string) (system, value string) {
	if idx := strings.IndexByte(v, '|'); idx >= 0 {
		return v[:idx], v[idx+1:]
	}
	return "", v
}

func lastUpdatedFilter(v Value) (QueryFilter, bool) {
	parsed, err := parseDateValue(v.Raw)
	if err != nil {
		return QueryFilter{}, false
	}
	t := parsed.t
	f := QueryFilter{Kind: FilterDateRange, Field: "_lastUpdated"}
	switch v.Prefix {
	case PrefixGe, PrefixGt:
		f.Start = &t
	case PrefixLe, PrefixLt:
		f.End = &t
	case PrefixEq, PrefixNone:
		f.Start, f.End = &t, &t
	default: // ne, sa, eb, ap: no filter produced
		return QueryFilter{}, false
	}
	return f, true
}
