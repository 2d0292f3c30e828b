package terminology

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// ExpandParams are the normalised inputs to $expand.
type ExpandParams struct {
	URL     string
	Version string
	Filter  string
	Offset  int
	Count   int
	// ExcludeNested limits CodeSystem traversal to top-level concepts:
	// child concepts are not pulled into the expansion.
	ExcludeNested bool
}

// Expand implements $expand: compose-driven value set expansion over the
// full compose.include/exclude walk, including nested imported value
// sets.
func (e *Engine) Expand(p ExpandParams) (*ExpandedValueSet, error) {
	if p.URL == "" {
		return nil, errInvalidParameters("url is required")
	}
	vs, err := e.valueSet(p.URL, p.Version)
	if err != nil {
		return nil, err
	}
	if vs.Expansion != nil && p.Filter == "" {
		return paginate(vs, vs.Expansion.Contains, p.Offset, p.Count), nil
	}

	excluded := map[string]bool{}
	for _, inc := range vs.Exclude {
		for _, c := range inc.Concept {
			excluded[inc.System+"|"+c.Code] = true
		}
	}

	var all []ValueSetContains
	seen := map[string]bool{} // prevents duplicate emission across overlapping includes
	for _, inc := range vs.Include {
		concepts, err := e.expandInclude(inc, 0, p.ExcludeNested)
		if err != nil {
			return nil, err
		}
		for _, c := range concepts {
			key := c.System + "|" + c.Code
			if excluded[key] || seen[key] {
				continue
			}
			seen[key] = true
			all = append(all, c)
		}
	}

	if p.Filter != "" {
		all = filterContains(all, p.Filter)
	}

	return paginate(vs, all, p.Offset, p.Count), nil
}

const maxValueSetImportDepth = 20

// expandInclude resolves one compose.include entry to concrete
// ValueSetContains rows: explicit concept list, filter-driven traversal
// of the CodeSystem, "no filter and no concepts" meaning every concept,
// or recursive expansion of imported value sets.
func (e *Engine) expandInclude(inc ComposeInclude, importDepth int, excludeNested bool) ([]ValueSetContains, error) {
	var out []ValueSetContains
	maxDepth := maxConceptDepth
	if excludeNested {
		maxDepth = 1
	}

	if len(inc.Concept) > 0 {
		for _, c := range inc.Concept {
			display := c.Display
			if display == "" {
				if cs, err := e.codeSystem(inc.System, inc.Version); err == nil {
					if concept, ok := cs.FindConcept(c.Code); ok {
						display = concept.Display
					}
				}
			}
			out = append(out, ValueSetContains{System: inc.System, Version: inc.Version, Code: c.Code, Display: display})
		}
	} else if len(inc.Filter) > 0 {
		cs, err := e.codeSystem(inc.System, inc.Version)
		if err != nil {
			return nil, err
		}
		out = append(out, walkFiltered(cs.Concept, inc.Filter, inc.System, inc.Version, maxDepth)...)
	} else if inc.System != "" {
		cs, err := e.codeSystem(inc.System, inc.Version)
		if err != nil {
			return nil, err
		}
		out = append(out, walkAll(cs.Concept, inc.System, inc.Version, maxDepth)...)
	}

	if importDepth < maxValueSetImportDepth {
		for _, importURL := range inc.ValueSet {
			imported, err := e.valueSet(importURL, "")
			if err != nil {
				continue // a broken import degrades to "contributes nothing", not a hard failure
			}
			for _, importedInc := range imported.Include {
				nested, err := e.expandInclude(importedInc, importDepth+1, excludeNested)
				if err != nil {
					return nil, err
				}
				out = append(out, nested...)
			}
		}
	}

	return out, nil
}

// walkAll and walkFiltered bound their descent by maxDepth: normally the
// shared maxConceptDepth guard, or 1 when the caller asked for
// excludeNested. A depth-exceeded subtree yields partial results rather
// than an error.
func walkAll(concepts []*Concept, system, version string, maxDepth int) []ValueSetContains {
	if maxDepth <= 0 {
		return nil
	}
	var out []ValueSetContains
	for _, c := range concepts {
		out = append(out, ValueSetContains{System: system, Version: version, Code: c.Code, Display: c.Display})
		out = append(out, walkAll(c.Concept, system, version, maxDepth-1)...)
	}
	return out
}

// walkFiltered applies the compose filter rules: code =, code in,
// display =, concept is-a, concept descendent-of, or a property
// equality/regex.
func walkFiltered(concepts []*Concept, filters []ComposeFilter, system, version string, maxDepth int) []ValueSetContains {
	if maxDepth <= 0 {
		return nil
	}
	var out []ValueSetContains
	for _, c := range concepts {
		if conceptMatchesAllFilters(c, filters) {
			out = append(out, ValueSetContains{System: system, Version: version, Code: c.Code, Display: c.Display})
		}
		out = append(out, walkFiltered(c.Concept, filters, system, version, maxDepth-1)...)
	}
	return out
}

func conceptMatchesAllFilters(c *Concept, filters []ComposeFilter) bool {
	for _, f := range filters {
		if !conceptMatchesFilter(c, f) {
			return false
		}
	}
	return true
}

func conceptMatchesFilter(c *Concept, f ComposeFilter) bool {
	switch f.Property {
	case "code":
		switch f.Op {
		case FilterEquals:
			return c.Code == f.Value
		case FilterIn:
			for _, v := range strings.Split(f.Value, ",") {
				if strings.TrimSpace(v) == c.Code {
					return true
				}
			}
			return false
		case FilterIsA:
			return c.Code == f.Value || hasDescendant(c, f.Value)
		case FilterDescendentOf:
			return hasDescendant(c, f.Value)
		}
	case "display":
		if f.Op == FilterEquals {
			return strings.EqualFold(c.Display, f.Value)
		}
	default:
		for _, prop := range c.Property {
			if prop.Code != f.Property {
				continue
			}
			val := prop.ValueCode
			if val == "" {
				val = prop.ValueString
			}
			switch f.Op {
			case FilterEquals:
				return val == f.Value
			case FilterRegex:
				re, err := regexp.Compile(f.Value)
				if err != nil {
					return false
				}
				return re.MatchString(val)
			}
		}
		return false
	}
	return false
}

func hasDescendant(c *Concept, code string) bool {
	return hasDescendantBounded(c, code, maxConceptDepth)
}

func hasDescendantBounded(c *Concept, code string, depth int) bool {
	if depth <= 0 {
		return false
	}
	for _, child := range c.Concept {
		if child.Code == code || hasDescendantBounded(child, code, depth-1) {
			return true
		}
	}
	return false
}

func filterContains(in []ValueSetContains, filter string) []ValueSetContains {
	lf := strings.ToLower(filter)
	var out []ValueSetContains
	for _, c := range in {
		if strings.Contains(strings.ToLower(c.Display), lf) || strings.Contains(strings.ToLower(c.Code), lf) {
			out = append(out, c)
		}
	}
	return out
}

func paginate(vs *ValueSet, all []ValueSetContains, offset, count int) *ExpandedValueSet {
	total := len(all)
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	if count <= 0 {
		count = total - offset
	}
	end := offset + count
	if end > total {
		end = total
	}
	return &ExpandedValueSet{
		Identifier: "urn:uuid:" + uuid.NewString(),
		URL:        vs.URL,
		Version:    vs.Version,
		Total:      total,
		Offset:     offset,
		Contains:   all[offset:end],
	}
}
