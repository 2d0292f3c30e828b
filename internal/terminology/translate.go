package terminology

// TranslateParams are the normalised inputs to $translate.
type TranslateParams struct {
	ConceptMapURL string // explicit map, if known
	Version       string
	SourceSystem  string // used when ConceptMapURL is empty, to search for maps
	TargetSystem  string
	System        string
	Code          string
	Coding        *Coding
	Reverse       bool
}

// TranslateResult is the $translate outcome.
type TranslateResult struct {
	Result bool
	Match  []TranslateMatch
}

// Translate implements $translate: load the target ConceptMap(s) either by
// explicit url or by searching on source/target system, then for each
// group whose source matches, find the element with a matching code and
// emit its targets. Reverse mode swaps source/target per group and
// inverts each match's equivalence.
func (e *Engine) Translate(p TranslateParams) (*TranslateResult, error) {
	resolved, ok := Resolve(p.System, p.Code, p.Coding, nil)
	if !ok {
		return nil, errInvalidParameters("system and code (or coding) are required")
	}

	maps, err := e.resolveConceptMaps(p)
	if err != nil {
		return nil, err
	}
	if len(maps) == 0 {
		return nil, errNotFound("no concept map found for system %s", resolved.System)
	}

	var matches []TranslateMatch
	for _, cm := range maps {
		matches = append(matches, translateAgainst(cm, resolved, p.Reverse)...)
	}
	return &TranslateResult{Result: len(matches) > 0, Match: matches}, nil
}

func (e *Engine) resolveConceptMaps(p TranslateParams) ([]*ConceptMap, error) {
	if p.ConceptMapURL != "" {
		cm, err := e.conceptMap(p.ConceptMapURL, p.Version)
		if err != nil {
			return nil, err
		}
		return []*ConceptMap{cm}, nil
	}
	sourceURL, targetURL := p.SourceSystem, p.TargetSystem
	if p.Reverse {
		sourceURL, targetURL = targetURL, sourceURL
	}
	return e.store.FindConceptMaps(sourceURL, targetURL)
}

func translateAgainst(cm *ConceptMap, code ResolvedCode, reverse bool) []TranslateMatch {
	var out []TranslateMatch
	for _, group := range cm.Group {
		groupSource := group.Source
		if reverse {
			groupSource = group.Target
		}
		if code.System != "" && groupSource != code.System {
			continue
		}

		if !reverse {
			for _, el := range group.Element {
				if el.Code != code.Code {
					continue
				}
				for _, t := range el.Target {
					out = append(out, TranslateMatch{Equivalence: t.Equivalence, Code: t.Code, Display: t.Display, Source: cm.URL})
				}
			}
			continue
		}

		// reverse mode: a group's *target* becomes the lookup key, and
		// each element's code becomes the emitted match, with the
		// equivalence inverted.
		for _, el := range group.Element {
			for _, t := range el.Target {
				if t.Code != code.Code {
					continue
				}
				out = append(out, TranslateMatch{
					Equivalence: t.Equivalence.Invert(),
					Code:        el.Code,
					Source:      cm.URL,
				})
			}
		}
	}
	return out
}
