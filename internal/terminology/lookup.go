package terminology

// LookupParams are the normalised inputs to $lookup.
type LookupParams struct {
	System     string
	Code       string
	Version    string
	Coding     *Coding
	Properties []string // if non-empty, designation/property output is filtered to these
}

// Lookup implements $lookup: resolve (system, code), load the CodeSystem
// cache-first, walk its concept tree depth-first (first match wins), and
// return name/version/display/definition/designations/properties.
func (e *Engine) Lookup(p LookupParams) (*LookupResult, error) {
	resolved, ok := Resolve(p.System, p.Code, p.Coding, nil)
	if !ok {
		return nil, errInvalidParameters("system and code (or coding) are required")
	}

	cs, err := e.codeSystem(resolved.System, p.Version)
	if err != nil {
		if largeCodeSystems[resolved.System] {
			if e.external == nil {
				return nil, errNotSupported("lookup on %s requires an external terminology provider", resolved.System)
			}
			return e.external.Lookup(resolved.System, resolved.Code, p.Version)
		}
		return nil, err
	}

	concept, found := cs.FindConcept(resolved.Code)
	if !found {
		if e.external != nil && largeCodeSystems[resolved.System] {
			return e.external.Lookup(resolved.System, resolved.Code, p.Version)
		}
		return nil, errNotFound("code %s not found in system %s", resolved.Code, resolved.System)
	}

	result := &LookupResult{
		Name:       cs.Name,
		Version:    cs.Version,
		Display:    concept.Display,
		Definition: concept.Definition,
	}
	result.Designation = filterDesignations(concept.Designation, p.Properties)
	result.Property = filterProperties(concept.Property, p.Properties)
	return result, nil
}

func filterDesignations(all []Designation, wanted []string) []Designation {
	if len(wanted) == 0 {
		return all
	}
	set := toSet(wanted)
	var out []Designation
	for _, d := range all {
		if d.Use != nil && set[d.Use.Code] {
			out = append(out, d)
		}
	}
	return out
}

func filterProperties(all []Property, wanted []string) []Property {
	if len(wanted) == 0 {
		return all
	}
	set := toSet(wanted)
	var out []Property
	for _, p := range all {
		if set[p.Code] {
			out = append(out, p)
		}
	}
	return out
}

func toSet(xs []string) map[string]bool {
	m := make(map[string]bool, len(xs))
	for _, x := range xs {
		m[x] = true
	}
	return m
}
