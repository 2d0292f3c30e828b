package terminology

// ValidateCodeParams are the normalised inputs to $validate-code. Exactly
// one of CodeSystemURL or ValueSetURL should be set.
type ValidateCodeParams struct {
	CodeSystemURL string
	ValueSetURL   string
	Version       string
	System        string
	Code          string
	Display       string
	Coding        *Coding
}

// ValidateCodeResult is the $validate-code outcome.
type ValidateCodeResult struct {
	Result  bool
	Message string
	Display string
}

// ValidateCode implements $validate-code against either a CodeSystem or a
// ValueSet.
func (e *Engine) ValidateCode(p ValidateCodeParams) (*ValidateCodeResult, error) {
	resolved, ok := Resolve(p.System, p.Code, p.Coding, nil)
	if !ok {
		return nil, errInvalidParameters("system and code (or coding) are required")
	}
	if resolved.Display == "" {
		resolved.Display = p.Display
	}

	if p.CodeSystemURL != "" {
		return e.validateAgainstCodeSystem(p.CodeSystemURL, p.Version, resolved)
	}
	if p.ValueSetURL != "" {
		return e.validateAgainstValueSet(p.ValueSetURL, p.Version, resolved)
	}
	return nil, errInvalidParameters("one of codeSystemUrl or valueSetUrl is required")
}

func (e *Engine) validateAgainstCodeSystem(url, version string, code ResolvedCode) (*ValidateCodeResult, error) {
	cs, err := e.codeSystem(url, version)
	if err != nil {
		return nil, err
	}
	concept, found := cs.FindConcept(code.Code)
	if !found {
		return &ValidateCodeResult{Result: false, Message: "code " + code.Code + " not found in " + url}, nil
	}
	if code.Display != "" && code.Display != concept.Display {
		return &ValidateCodeResult{
			Result:  true,
			Display: concept.Display,
			Message: "display mismatch: expected \"" + concept.Display + "\", got \"" + code.Display + "\"",
		}, nil
	}
	return &ValidateCodeResult{Result: true, Display: concept.Display}, nil
}

func (e *Engine) validateAgainstValueSet(url, version string, code ResolvedCode) (*ValidateCodeResult, error) {
	return e.validateAgainstValueSetBounded(url, version, code, 0)
}

func (e *Engine) validateAgainstValueSetBounded(url, version string, code ResolvedCode, importDepth int) (*ValidateCodeResult, error) {
	vs, err := e.valueSet(url, version)
	if err != nil {
		return nil, err
	}

	if vs.Expansion != nil {
		for _, c := range vs.Expansion.Contains {
			if c.Code == code.Code && (code.System == "" || c.System == code.System) {
				return &ValidateCodeResult{Result: true, Display: c.Display}, nil
			}
		}
		return &ValidateCodeResult{Result: false, Message: "code " + code.Code + " not in expansion of " + url}, nil
	}

	for _, exc := range vs.Exclude {
		if includeMatches(exc, code) {
			return &ValidateCodeResult{Result: false, Message: "code " + code.Code + " is explicitly excluded by " + url}, nil
		}
	}

	for _, inc := range vs.Include {
		if code.System == "" || inc.System == code.System {
			if includeMatches(inc, code) {
				return &ValidateCodeResult{Result: true, Display: code.Display}, nil
			}
			if containsViaFilterOrHierarchy(e, inc, code) {
				return &ValidateCodeResult{Result: true, Display: code.Display}, nil
			}
		}
		// Imported value sets participate in the include walk the same way
		// they do during $expand, short-circuiting on first match.
		if importDepth < maxValueSetImportDepth {
			for _, importURL := range inc.ValueSet {
				result, err := e.validateAgainstValueSetBounded(importURL, "", code, importDepth+1)
				if err != nil {
					continue
				}
				if result.Result {
					return result, nil
				}
			}
		}
	}
	return &ValidateCodeResult{Result: false, Message: "code " + code.Code + " not covered by " + url}, nil
}

func includeMatches(inc ComposeInclude, code ResolvedCode) bool {
	for _, c := range inc.Concept {
		if c.Code == code.Code {
			return true
		}
	}
	return false
}

// containsViaFilterOrHierarchy short-circuits $validate-code's compose
// walk on first match, reusing the same filter/CodeSystem traversal
// $expand uses rather than materialising a full expansion first.
func containsViaFilterOrHierarchy(e *Engine, inc ComposeInclude, code ResolvedCode) bool {
	if len(inc.Concept) > 0 {
		return false // explicit list already checked by includeMatches
	}
	cs, err := e.codeSystem(inc.System, inc.Version)
	if err != nil {
		return false
	}
	if len(inc.Filter) > 0 {
		concept, found := cs.FindConcept(code.Code)
		return found && conceptMatchesAllFilters(concept, inc.Filter)
	}
	if inc.System != "" {
		_, found := cs.FindConcept(code.Code)
		return found
	}
	return false
}
