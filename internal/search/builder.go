package search

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// TerminologyExpander is the narrow slice of the terminology provider
// contract the SQL builder needs for :in/:below/:above token modifiers.
// It is deliberately tiny; the full provider contract lives in package
// terminology.
type TerminologyExpander interface {
	ExpandValueSetCodes(url string) ([]CodeValue, error)
	SubsumedCodes(system, code string) ([]CodeValue, error)
}

// CodeValue is a (system, code) pair, as returned by value-set expansion or
// subsumption lookups.
type CodeValue struct {
	System string
	Code   string
}

// Builder accumulates a parameterised WHERE-clause predicate across many
// ParsedParam compilations. It owns the positional-parameter counter so
// nested/sequential calls never collide on "$N".
type Builder struct {
	where []string
	args  []interface{}
	idx   int

	terminology TerminologyExpander
}

// NewBuilder creates an empty Builder. terminology may be nil; in that
// case :in/:not-in/:below/:above requests fail with NotImplemented.
func NewBuilder(terminology TerminologyExpander) *Builder {
	return &Builder{idx: 1, terminology: terminology}
}

// addCondition appends a finished predicate fragment along with the values
// its placeholders bind, keeping the `$N` counter in step.
func (b *Builder) addCondition(clause string, args ...interface{}) {
	b.where = append(b.where, clause)
	b.args = append(b.args, args...)
	b.idx += len(args)
}

func (b *Builder) placeholder() string {
	p := "$" + strconv.Itoa(b.idx)
	b.idx++
	return p
}

// Build assembles the accumulated predicates into a BuiltQuery. Multiple
// ParsedParam compilations are ANDed together at the top level; multiple
// values within one compilation are ORed by the compiler itself.
func (b *Builder) Build() BuiltQuery {
	return BuiltQuery{WhereClauses: append([]string(nil), b.where...), Params: append([]interface{}(nil), b.args...)}
}

// BuiltQuery is the SQL text (as a list of AND-ed WHERE fragments, so
// callers can splice it into either a count or data query) plus the
// positional value vector. Invariant: every "$N" appearing in any fragment
// has a corresponding Params[N-1].
type BuiltQuery struct {
	WhereClauses []string
	Params       []interface{}
}

// SQL joins the WHERE fragments with AND. An empty BuiltQuery yields "".
func (q BuiltQuery) SQL() string {
	return strings.Join(q.WhereClauses, " AND ")
}

// ApplyParam compiles one ParsedParam against its registry definition and
// JSONB path, appending predicates to the builder. jsonbPath is a trusted
// SQL fragment (e.g. `resource->'code'`) built from the registry
// configuration, never from user input.
func (b *Builder) ApplyParam(def *ParamDef, param ParsedParam, jsonbPath string) error {
	if def.Modifiers != nil && param.Modifier.Kind != ModifierNone {
		if !def.Modifiers[param.Modifier.Kind] {
			return errInvalidModifier(fmt.Sprintf("%s does not accept modifier", def.Code))
		}
	}

	if param.Modifier.Kind == ModifierMissing {
		return b.applyMissing(jsonbPath, param)
	}

	// A parameter whose values were all empty after trimming is ignored
	// rather than compiled into an empty predicate.
	if len(param.Values) == 0 {
		return nil
	}

	switch def.Type {
	case Token:
		return b.applyToken(jsonbPath, param)
	case Date:
		return b.applyDate(jsonbPath, param)
	case String:
		return b.applyString(jsonbPath, param)
	case Reference:
		return b.applyReference(jsonbPath, param, def.Target)
	case Number, Quantity:
		return b.applyNumber(jsonbPath, param)
	case URI:
		return b.applyURI(jsonbPath, param)
	case Composite:
		return b.applyComposite(jsonbPath, param, def.Target)
	default:
		return errNotImplemented(fmt.Sprintf("search type %s", def.Type))
	}
}

func (b *Builder) applyMissing(jsonbPath string, param ParsedParam) error {
	want := true
	if len(param.Values) > 0 {
		want = strings.EqualFold(param.Values[0].Raw, "true")
	}
	if want {
		b.addCondition(fmt.Sprintf("(%s IS NULL)", jsonbPath))
	} else {
		b.addCondition(fmt.Sprintf("(%s IS NOT NULL)", jsonbPath))
	}
	return nil
}

// applyToken dispatches on the token modifier to the matching predicate
// shape.
func (b *Builder) applyToken(path string, param ParsedParam) error {
	var orClauses []string

	switch param.Modifier.Kind {
	case ModifierText:
		for _, v := range param.Values {
			ph := b.placeholder()
			orClauses = append(orClauses, fmt.Sprintf(
				"EXISTS (SELECT 1 FROM jsonb_array_elements(COALESCE(%s->'coding', '[]'::jsonb)) c WHERE c->>'display' ILIKE %s)", path, ph))
			b.args = append(b.args, "%"+v.Raw+"%")
		}
	case ModifierIn, ModifierNotIn:
		if b.terminology == nil {
			return errNotImplemented(":in/:not-in requires a terminology provider")
		}
		for _, v := range param.Values {
			codes, err := b.terminology.ExpandValueSetCodes(v.Raw)
			if err != nil {
				return errInvalidSearchValue("expand value set %q: %v", v.Raw, err)
			}
			if len(codes) == 0 {
				if param.Modifier.Kind == ModifierIn {
					orClauses = append(orClauses, "FALSE")
				} else {
					orClauses = append(orClauses, "TRUE")
				}
				continue
			}
			clause := b.tokenCodeSetClause(path, codes)
			if param.Modifier.Kind == ModifierNotIn {
				clause = "NOT (" + clause + ")"
			}
			orClauses = append(orClauses, clause)
		}
	case ModifierBelow, ModifierAbove:
		if b.terminology == nil {
			return errNotImplemented(":below/:above requires a terminology provider")
		}
		for _, v := range param.Values {
			system, code := splitSystemValue(v.Raw)
			if code == "" {
				return errInvalidSearchValue(":below/:above requires system|code form, got %q", v.Raw)
			}
			codes, err := b.terminology.SubsumedCodes(system, code)
			if err != nil {
				return errInvalidSearchValue("subsumption lookup %q: %v", v.Raw, err)
			}
			orClauses = append(orClauses, b.tokenCodeSetClause(path, codes))
		}
	case ModifierOfType:
		for _, v := range param.Values {
			clause, err := b.tokenOfTypeClause(path, v.Raw)
			if err != nil {
				return err
			}
			orClauses = append(orClauses, clause)
		}
	default:
		for _, v := range param.Values {
			orClauses = append(orClauses, b.tokenDefaultClause(path, v.Raw))
		}
	}

	if len(orClauses) == 0 {
		return nil
	}
	clause := "(" + strings.Join(orClauses, " OR ") + ")"
	if param.Modifier.Kind == ModifierNot {
		clause = "NOT " + clause
	}
	b.where = append(b.where, clause)
	return nil
}

// tokenDefaultClause handles the "system|code", "|code", "system|", "code"
// value grammar. The empty-system case ("|code") must produce
// "system IS NULL AND code = ?", never "system = '' AND ...".
func (b *Builder) tokenDefaultClause(path, raw string) string {
	hasPipe := strings.Contains(raw, "|")
	var system, code string
	if hasPipe {
		system, code = splitSystemValue(raw)
	} else {
		code = raw
	}

	var parts []string

	if code != "" {
		containment, _ := json.Marshal([]map[string]string{{"system": system, "code": code}})
		if system == "" && hasPipe {
			containment, _ = json.Marshal([]map[string]string{{"code": code}})
		}
		ph := b.placeholder()
		parts = append(parts, fmt.Sprintf("%s->'coding' @> %s::jsonb", path, ph))
		b.args = append(b.args, string(containment))
	}

	flat := "(" + flatSystemCodeClause(b, path, system, code, hasPipe) + ")"
	parts = append(parts, flat)

	idClause := b.identifierArrayClause(path, system, code, hasPipe)
	parts = append(parts, idClause)

	return "(" + strings.Join(parts, " OR ") + ")"
}

func flatSystemCodeClause(b *Builder, path, system, code string, hasPipe bool) string {
	var clauses []string
	if hasPipe {
		if system == "" {
			clauses = append(clauses, fmt.Sprintf("%s->>'system' IS NULL", path))
		} else {
			ph := b.placeholder()
			b.args = append(b.args, system)
			clauses = append(clauses, fmt.Sprintf("%s->>'system' = %s", path, ph))
		}
	}
	if code != "" {
		ph := b.placeholder()
		b.args = append(b.args, code)
		clauses = append(clauses, fmt.Sprintf("%s->>'code' = %s", path, ph))
	}
	if len(clauses) == 0 {
		return "FALSE"
	}
	return strings.Join(clauses, " AND ")
}

func (b *Builder) identifierArrayClause(path, system, code string, hasPipe bool) string {
	var conds []string
	if hasPipe {
		if system == "" {
			conds = append(conds, "elem->>'system' IS NULL")
		} else {
			ph := b.placeholder()
			b.args = append(b.args, system)
			conds = append(conds, fmt.Sprintf("elem->>'system' = %s", ph))
		}
	}
	if code != "" {
		ph := b.placeholder()
		b.args = append(b.args, code)
		conds = append(conds, fmt.Sprintf("elem->>'value' = %s", ph))
	}
	if len(conds) == 0 {
		return "FALSE"
	}
	return fmt.Sprintf("EXISTS (SELECT 1 FROM jsonb_array_elements(COALESCE(%s, '[]'::jsonb)) elem WHERE %s)",
		path, strings.Join(conds, " AND "))
}

func (b *Builder) tokenCodeSetClause(path string, codes []CodeValue) string {
	var parts []string
	for _, cv := range codes {
		containment, _ := json.Marshal([]map[string]string{{"system": cv.System, "code": cv.Code}})
		ph := b.placeholder()
		b.args = append(b.args, string(containment))
		parts = append(parts, fmt.Sprintf("%s->'coding' @> %s::jsonb", path, ph))
	}
	if len(parts) == 0 {
		return "FALSE"
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

// tokenOfTypeClause formats "type|system|value" or "type|value" against an
// identifier array, checking both type.coding and (system?, value).
func (b *Builder) tokenOfTypeClause(path, raw string) (string, error) {
	parts := strings.Split(raw, "|")
	var typeCode, system, value string
	switch len(parts) {
	case 2:
		typeCode, value = parts[0], parts[1]
	case 3:
		typeCode, system, value = parts[0], parts[1], parts[2]
	default:
		return "", errInvalidSearchValue(":ofType requires type|value or type|system|value, got %q", raw)
	}

	phType := b.placeholder()
	b.args = append(b.args, typeCode)
	conds := []string{fmt.Sprintf("elem->'type'->'coding' @> jsonb_build_array(jsonb_build_object('code', %s::text))", phType)}
	if system != "" {
		phSys := b.placeholder()
		b.args = append(b.args, system)
		conds = append(conds, fmt.Sprintf("elem->>'system' = %s", phSys))
	}
	phVal := b.placeholder()
	b.args = append(b.args, value)
	conds = append(conds, fmt.Sprintf("elem->>'value' = %s", phVal))

	return fmt.Sprintf("EXISTS (SELECT 1 FROM jsonb_array_elements(COALESCE(%s, '[]'::jsonb)) elem WHERE %s)",
		path, strings.Join(conds, " AND ")), nil
}

// applyDate implements the date compiler: parse prefix, emit comparator.
func (b *Builder) applyDate(path string, param ParsedParam) error {
	var orClauses []string
	textPath := fmt.Sprintf("(%s #>> '{}')", path)
	for _, v := range param.Values {
		t, err := parseDateValue(v.Raw)
		if err != nil {
			ph := b.placeholder()
			b.args = append(b.args, v.Raw)
			orClauses = append(orClauses, fmt.Sprintf("%s = %s", textPath, ph))
			continue
		}
		clause, err := b.dateComparison(textPath, v, t)
		if err != nil {
			return err
		}
		orClauses = append(orClauses, clause)
	}
	clause := "(" + strings.Join(orClauses, " OR ") + ")"
	if param.Modifier.Kind == ModifierNot {
		clause = "NOT " + clause
	}
	b.where = append(b.where, clause)
	return nil
}

func (b *Builder) dateComparison(textPath string, v Value, t timeLike) (string, error) {
	rfc := t.Format3339()
	switch v.Prefix {
	case PrefixGt, PrefixSa:
		ph := b.placeholder()
		b.args = append(b.args, rfc)
		return fmt.Sprintf("%s::timestamptz > %s::timestamptz", textPath, ph), nil
	case PrefixLt, PrefixEb:
		ph := b.placeholder()
		b.args = append(b.args, rfc)
		return fmt.Sprintf("%s::timestamptz < %s::timestamptz", textPath, ph), nil
	case PrefixGe:
		ph := b.placeholder()
		b.args = append(b.args, rfc)
		return fmt.Sprintf("%s::timestamptz >= %s::timestamptz", textPath, ph), nil
	case PrefixLe:
		ph := b.placeholder()
		b.args = append(b.args, rfc)
		return fmt.Sprintf("%s::timestamptz <= %s::timestamptz", textPath, ph), nil
	case PrefixNe:
		ph := b.placeholder()
		b.args = append(b.args, rfc)
		return fmt.Sprintf("%s::timestamptz != %s::timestamptz", textPath, ph), nil
	case PrefixAp:
		low, high := t.Widen()
		ph1 := b.placeholder()
		b.args = append(b.args, low.Format3339())
		ph2 := b.placeholder()
		b.args = append(b.args, high.Format3339())
		return fmt.Sprintf("(%s::timestamptz >= %s::timestamptz AND %s::timestamptz <= %s::timestamptz)",
			textPath, ph1, textPath, ph2), nil
	default: // eq / none
		if v.dayPrecision() {
			end := t.EndOfDay()
			ph1 := b.placeholder()
			b.args = append(b.args, rfc)
			ph2 := b.placeholder()
			b.args = append(b.args, end.Format3339())
			return fmt.Sprintf("(%s::timestamptz >= %s::timestamptz AND %s::timestamptz <= %s::timestamptz)",
				textPath, ph1, textPath, ph2), nil
		}
		ph := b.placeholder()
		b.args = append(b.args, rfc)
		return fmt.Sprintf("%s::timestamptz = %s::timestamptz", textPath, ph), nil
	}
}

func (v Value) dayPrecision() bool { return isDatePrecisionDay(v.Raw) }

// applyString implements the string compiler: :exact/:contains/:text and
// the default case-insensitive prefix match.
func (b *Builder) applyString(path string, param ParsedParam) error {
	textPath := fmt.Sprintf("(%s #>> '{}')", path)
	var orClauses []string
	for _, v := range param.Values {
		ph := b.placeholder()
		switch param.Modifier.Kind {
		case ModifierExact:
			b.args = append(b.args, v.Raw)
			orClauses = append(orClauses, fmt.Sprintf("%s = %s", textPath, ph))
		case ModifierContains, ModifierText:
			b.args = append(b.args, "%"+v.Raw+"%")
			orClauses = append(orClauses, fmt.Sprintf("%s ILIKE %s", textPath, ph))
		default:
			b.args = append(b.args, v.Raw+"%")
			orClauses = append(orClauses, fmt.Sprintf("%s ILIKE %s", textPath, ph))
		}
	}
	clause := "(" + strings.Join(orClauses, " OR ") + ")"
	if param.Modifier.Kind == ModifierNot {
		clause = "NOT " + clause
	}
	b.where = append(b.where, clause)
	return nil
}

// applyReference accepts "ResourceType/id", a bare id (requiring a single
// target type), or an absolute URL.
func (b *Builder) applyReference(path string, param ParsedParam, targets []string) error {
	textPath := fmt.Sprintf("(%s->>'reference')", path)
	var orClauses []string
	for _, v := range param.Values {
		raw := v.Raw
		if strings.Contains(raw, "://") {
			ph := b.placeholder()
			b.args = append(b.args, raw)
			orClauses = append(orClauses, fmt.Sprintf("%s = %s", textPath, ph))
			continue
		}
		if strings.Contains(raw, "/") {
			ph := b.placeholder()
			b.args = append(b.args, raw)
			orClauses = append(orClauses, fmt.Sprintf("%s = %s", textPath, ph))
			continue
		}
		if len(targets) != 1 {
			return errInvalidSearchValue("bare reference id %q requires exactly one target resource type, got %d", raw, len(targets))
		}
		ph := b.placeholder()
		b.args = append(b.args, targets[0]+"/"+raw)
		orClauses = append(orClauses, fmt.Sprintf("%s = %s", textPath, ph))
	}
	clause := "(" + strings.Join(orClauses, " OR ") + ")"
	if param.Modifier.Kind == ModifierNot {
		clause = "NOT " + clause
	}
	b.where = append(b.where, clause)
	return nil
}

// applyNumber (and Quantity, which shares its shape) implements prefix-
// based numeric comparison against the ::numeric cast of the JSONB value.
func (b *Builder) applyNumber(path string, param ParsedParam) error {
	numPath := fmt.Sprintf("(%s #>> '{}')::numeric", path)
	var orClauses []string
	for _, v := range param.Values {
		if _, err := strconv.ParseFloat(v.Raw, 64); err != nil {
			return errInvalidSearchValue("not a number: %q", v.Raw)
		}
		ph := b.placeholder()
		b.args = append(b.args, v.Raw)
		op := "="
		switch v.Prefix {
		case PrefixGt, PrefixSa:
			op = ">"
		case PrefixLt, PrefixEb:
			op = "<"
		case PrefixGe:
			op = ">="
		case PrefixLe:
			op = "<="
		case PrefixNe:
			op = "!="
		}
		orClauses = append(orClauses, fmt.Sprintf("%s %s %s::numeric", numPath, op, ph))
	}
	clause := "(" + strings.Join(orClauses, " OR ") + ")"
	if param.Modifier.Kind == ModifierNot {
		clause = "NOT " + clause
	}
	b.where = append(b.where, clause)
	return nil
}

func (b *Builder) applyURI(path string, param ParsedParam) error {
	textPath := fmt.Sprintf("(%s #>> '{}')", path)
	var orClauses []string
	for _, v := range param.Values {
		ph := b.placeholder()
		b.args = append(b.args, v.Raw)
		orClauses = append(orClauses, fmt.Sprintf("%s = %s", textPath, ph))
	}
	clause := "(" + strings.Join(orClauses, " OR ") + ")"
	b.where = append(b.where, clause)
	return nil
}

// applyComposite splits each value on '$' and applies equality predicates
// pairwise against the named component fields (def.Target, reused for
// Composite params to carry ordered component JSON field names, e.g.
// {"code","value"} for an Observation code-value-quantity composite).
func (b *Builder) applyComposite(path string, param ParsedParam, components []string) error {
	if len(components) == 0 {
		return errInvalidSearchValue("composite parameter at %s has no registered components", path)
	}
	var orClauses []string
	for _, v := range param.Values {
		parts := strings.Split(v.Raw, "$")
		if len(parts) != len(components) {
			return errInvalidSearchValue("composite value %q has %d components, expected %d", v.Raw, len(parts), len(components))
		}
		var andClauses []string
		for i, comp := range components {
			ph := b.placeholder()
			b.args = append(b.args, parts[i])
			andClauses = append(andClauses, fmt.Sprintf("(%s->%s #>> '{}') = %s", path, pgQuoteIdent(comp), ph))
		}
		orClauses = append(orClauses, "("+strings.Join(andClauses, " AND ")+")")
	}
	clause := "(" + strings.Join(orClauses, " OR ") + ")"
	b.where = append(b.where, clause)
	return nil
}

// pgQuoteIdent renders a JSONB object key as a SQL string literal for use
// in a `->` accessor. Component names come from the registry, not user
// input, but are still quoted defensively.
func pgQuoteIdent(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}
