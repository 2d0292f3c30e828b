package canonical

import (
	"encoding/json"
	"fmt"

	"github.com/octofhir/fhircore/internal/terminology"
	"github.com/octofhir/fhircore/pkg/fhirmodels"
)

// The terminology package's CodeSystem/ValueSet/ConceptMap types are a
// reasoning-shaped subset of the real FHIR resources (e.g. ValueSet's
// compose.include is flattened to top-level Include/Exclude slices), so a
// generic json.Marshal/Unmarshal round-trip through them would silently
// drop every nested field. These wire types mirror the actual FHIR JSON
// shape and convert into the domain types the terminology engine
// operates on.

type wireCoding struct {
	System  string `json:"system"`
	Version string `json:"version"`
	Code    string `json:"code"`
	Display string `json:"display"`
}

func (w wireCoding) toDomain() terminology.Coding {
	return terminology.Coding{System: w.System, Version: w.Version, Code: w.Code, Display: w.Display}
}

type wireDesignation struct {
	Language string      `json:"language"`
	Use      *wireCoding `json:"use"`
	Value    string      `json:"value"`
}

type wireProperty struct {
	Code         string `json:"code"`
	ValueCode    string `json:"valueCode"`
	ValueString  string `json:"valueString"`
	ValueBoolean *bool  `json:"valueBoolean"`
	ValueInteger *int   `json:"valueInteger"`
}

type wireConcept struct {
	Code        string            `json:"code"`
	Display     string            `json:"display"`
	Definition  string            `json:"definition"`
	Designation []wireDesignation `json:"designation"`
	Property    []wireProperty    `json:"property"`
	Concept     []wireConcept     `json:"concept"`
}

func (w wireConcept) toDomain() *terminology.Concept {
	c := &terminology.Concept{Code: w.Code, Display: w.Display, Definition: w.Definition}
	for _, d := range w.Designation {
		var use *terminology.Coding
		if d.Use != nil {
			u := d.Use.toDomain()
			use = &u
		}
		c.Designation = append(c.Designation, terminology.Designation{Language: d.Language, Use: use, Value: d.Value})
	}
	for _, p := range w.Property {
		c.Property = append(c.Property, terminology.Property{
			Code: p.Code, ValueCode: p.ValueCode, ValueString: p.ValueString,
			ValueBoolean: p.ValueBoolean, ValueInteger: p.ValueInteger,
		})
	}
	for _, nested := range w.Concept {
		c.Concept = append(c.Concept, nested.toDomain())
	}
	return c
}

type wireCodeSystem struct {
	URL     string        `json:"url"`
	Version string        `json:"version"`
	Name    string        `json:"name"`
	Status  string        `json:"status"`
	Content string        `json:"content"`
	Concept []wireConcept `json:"concept"`
}

func decodeCodeSystem(raw map[string]interface{}) (*terminology.CodeSystem, error) {
	var w wireCodeSystem
	if err := remarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("canonical: decode CodeSystem: %w", err)
	}
	cs := &terminology.CodeSystem{URL: w.URL, Version: w.Version, Name: w.Name, Status: w.Status, Content: w.Content}
	for _, c := range w.Concept {
		cs.Concept = append(cs.Concept, c.toDomain())
	}
	return cs, nil
}

type wireComposeConcept struct {
	Code    string `json:"code"`
	Display string `json:"display"`
}

type wireComposeFilter struct {
	Property string `json:"property"`
	Op       string `json:"op"`
	Value    string `json:"value"`
}

func (w wireComposeFilter) toDomain() terminology.ComposeFilter {
	op := terminology.FilterEquals
	switch w.Op {
	case "in":
		op = terminology.FilterIn
	case "is-a":
		op = terminology.FilterIsA
	case "descendent-of":
		op = terminology.FilterDescendentOf
	case "regex":
		op = terminology.FilterRegex
	}
	return terminology.ComposeFilter{Property: w.Property, Op: op, Value: w.Value}
}

type wireComposeInclude struct {
	System  string               `json:"system"`
	Version string               `json:"version"`
	Concept []wireComposeConcept `json:"concept"`
	Filter  []wireComposeFilter  `json:"filter"`
	// valueSet is an array of canonical URLs in the FHIR wire format.
	ValueSet []string `json:"valueSet"`
}

func (w wireComposeInclude) toDomain() terminology.ComposeInclude {
	ci := terminology.ComposeInclude{System: w.System, Version: w.Version, ValueSet: w.ValueSet}
	for _, c := range w.Concept {
		ci.Concept = append(ci.Concept, terminology.ComposeConcept{Code: c.Code, Display: c.Display})
	}
	for _, f := range w.Filter {
		ci.Filter = append(ci.Filter, f.toDomain())
	}
	return ci
}

type wireValueSet struct {
	URL     string `json:"url"`
	Version string `json:"version"`
	Name    string `json:"name"`
	Title   string `json:"title"`
	Status  string `json:"status"`
	Compose *struct {
		Include []wireComposeInclude `json:"include"`
		Exclude []wireComposeInclude `json:"exclude"`
	} `json:"compose"`
	Expansion *struct {
		Identifier string `json:"identifier"`
		Timestamp  string `json:"timestamp"`
		Total      int    `json:"total"`
		Offset     int    `json:"offset"`
		Contains   []struct {
			System  string `json:"system"`
			Version string `json:"version"`
			Code    string `json:"code"`
			Display string `json:"display"`
		} `json:"contains"`
	} `json:"expansion"`
}

func decodeValueSet(raw map[string]interface{}) (*terminology.ValueSet, error) {
	var w wireValueSet
	if err := remarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("canonical: decode ValueSet: %w", err)
	}
	vs := &terminology.ValueSet{URL: w.URL, Version: w.Version, Name: w.Name, Title: w.Title, Status: w.Status}
	if w.Compose != nil {
		for _, inc := range w.Compose.Include {
			vs.Include = append(vs.Include, inc.toDomain())
		}
		for _, exc := range w.Compose.Exclude {
			vs.Exclude = append(vs.Exclude, exc.toDomain())
		}
	}
	if w.Expansion != nil {
		exp := &terminology.ExpandedValueSet{
			Identifier: w.Expansion.Identifier, URL: w.URL, Version: w.Version,
			Total: w.Expansion.Total, Offset: w.Expansion.Offset,
		}
		for _, c := range w.Expansion.Contains {
			exp.Contains = append(exp.Contains, terminology.ValueSetContains{System: c.System, Version: c.Version, Code: c.Code, Display: c.Display})
		}
		vs.Expansion = exp
	}
	return vs, nil
}

type wireConceptMapTarget struct {
	Code        string `json:"code"`
	Display     string `json:"display"`
	Equivalence string `json:"equivalence"`
}

var equivalenceFromWire = map[string]terminology.Equivalence{
	fhirmodels.EquivalenceEquivalent:  terminology.EquivEquivalent,
	fhirmodels.EquivalenceEqual:       terminology.EquivEqual,
	fhirmodels.EquivalenceWider:       terminology.EquivWider,
	fhirmodels.EquivalenceNarrower:    terminology.EquivNarrower,
	fhirmodels.EquivalenceSpecializes: terminology.EquivSpecializes,
	fhirmodels.EquivalenceSubsumes:    terminology.EquivSubsumes,
	fhirmodels.EquivalenceInexact:     terminology.EquivInexact,
	fhirmodels.EquivalenceUnmatched:   terminology.EquivUnmatched,
	fhirmodels.EquivalenceDisjoint:    terminology.EquivDisjoint,
}

type wireConceptMapElement struct {
	Code   string                 `json:"code"`
	Target []wireConceptMapTarget `json:"target"`
}

type wireConceptMapGroup struct {
	Source  string                  `json:"source"`
	Target  string                  `json:"target"`
	Element []wireConceptMapElement `json:"element"`
}

type wireConceptMap struct {
	URL           string                `json:"url"`
	Version       string                `json:"version"`
	SourceURI     string                `json:"sourceUri"`
	SourceCanon   string                `json:"sourceCanonical"`
	TargetURI     string                `json:"targetUri"`
	TargetCanon   string                `json:"targetCanonical"`
	Group         []wireConceptMapGroup `json:"group"`
}

func decodeConceptMap(raw map[string]interface{}) (*terminology.ConceptMap, error) {
	var w wireConceptMap
	if err := remarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("canonical: decode ConceptMap: %w", err)
	}
	source := w.SourceURI
	if source == "" {
		source = w.SourceCanon
	}
	target := w.TargetURI
	if target == "" {
		target = w.TargetCanon
	}
	cm := &terminology.ConceptMap{URL: w.URL, Version: w.Version, Source: source, Target: target}
	for _, g := range w.Group {
		group := terminology.ConceptMapGroup{Source: g.Source, Target: g.Target}
		for _, el := range g.Element {
			element := terminology.ConceptMapElement{Code: el.Code}
			for _, t := range el.Target {
				eq, ok := equivalenceFromWire[t.Equivalence]
				if !ok {
					eq = terminology.EquivEquivalent
				}
				element.Target = append(element.Target, terminology.ConceptMapTarget{Code: t.Code, Display: t.Display, Equivalence: eq})
			}
			group.Element = append(group.Element, element)
		}
		cm.Group = append(cm.Group, group)
	}
	return cm, nil
}

func remarshal(raw map[string]interface{}, dst interface{}) error {
	b, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dst)
}
