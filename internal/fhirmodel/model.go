// Package fhirmodel implements the FHIR model provider the LSP FHIR
// resolver consumes: schema lookup by resource or complex type, element
// listing, element-type resolution and choice-type expansion, trimmed to
// the element-shape fields the JSONB schema builder actually consumes.
package fhirmodel

// TypeInfo identifies either a resource type ("Patient") or a FHIR
// complex type ("HumanName", "CodeableConcept") within the model. Name
// is the only field the provider contract needs to resolve further
// elements.
type TypeInfo struct {
	Name string
}

// ElementType describes one candidate datatype for an element. A choice
// element ("value[x]") carries more than one ElementType; get_choice_types
// returns exactly that list.
type ElementType struct {
	Code          string
	IsArray       bool
	TargetProfile []string
}

// Element is a single field of a resource or complex type schema.
type Element struct {
	Name  string
	Types []ElementType
}

// Schema is the element listing for one resource or complex type.
type Schema struct {
	TypeName string
	Elements []Element
}

// Provider is the FHIR model provider contract.
type Provider interface {
	GetSchema(resourceType string) (*Schema, bool)
	GetResourceTypes() []string
	GetComplexTypes() []string
	GetElementType(t TypeInfo, element string) (TypeInfo, bool)
	GetElementNames(t TypeInfo) []string
	GetChoiceTypes(typeName, element string) []ElementType
}

// primitiveTypes terminate the schema resolver's recursive walk without
// a nested schema; they render as scalar fields.
var primitiveTypes = map[string]bool{
	"string": true, "boolean": true, "integer": true, "decimal": true,
	"uri": true, "url": true, "canonical": true, "code": true, "id": true,
	"date": true, "dateTime": true, "instant": true, "time": true,
	"base64Binary": true, "markdown": true, "unsignedInt": true,
	"positiveInt": true, "oid": true, "uuid": true,
}

// terminalComplexTypes are base types whose recursion is not worth
// expanding for completion purposes.
var terminalComplexTypes = map[string]bool{
	"Element": true, "Resource": true, "DomainResource": true, "BackboneElement": true,
}

// IsPrimitive reports whether code names a FHIR primitive type.
func IsPrimitive(code string) bool {
	return primitiveTypes[code]
}

// IsTerminalComplex reports whether code names a base type the schema
// resolver should not recurse into further.
func IsTerminalComplex(code string) bool {
	return terminalComplexTypes[code]
}

// StaticProvider is a Provider backed by an in-memory schema table,
// built once at startup from the built-in schema tables and held for the
// life of the server.
type StaticProvider struct {
	resources map[string]*Schema
	complex   map[string]*Schema
}

// NewStaticProvider builds a StaticProvider from the built-in resource and
// complex-type schema tables.
func NewStaticProvider() *StaticProvider {
	p := &StaticProvider{
		resources: make(map[string]*Schema),
		complex:   make(map[string]*Schema),
	}
	for _, s := range builtinResourceSchemas() {
		p.resources[s.TypeName] = s
	}
	for _, s := range builtinComplexSchemas() {
		p.complex[s.TypeName] = s
	}
	return p
}

// GetSchema resolves a resource type or, for the LSP resolver's recursive
// walk into element datatypes, a complex type ("HumanName", "Coding").
func (p *StaticProvider) GetSchema(resourceType string) (*Schema, bool) {
	return p.schemaFor(resourceType)
}

func (p *StaticProvider) GetResourceTypes() []string {
	names := make([]string, 0, len(p.resources))
	for name := range p.resources {
		names = append(names, name)
	}
	return names
}

func (p *StaticProvider) GetComplexTypes() []string {
	names := make([]string, 0, len(p.complex))
	for name := range p.complex {
		names = append(names, name)
	}
	return names
}

func (p *StaticProvider) schemaFor(typeName string) (*Schema, bool) {
	if s, ok := p.resources[typeName]; ok {
		return s, true
	}
	if s, ok := p.complex[typeName]; ok {
		return s, true
	}
	return nil, false
}

// GetElementType resolves the single (non-choice) type of element within t,
// or false if element is absent or is a choice element (use GetChoiceTypes
// for those).
func (p *StaticProvider) GetElementType(t TypeInfo, element string) (TypeInfo, bool) {
	schema, ok := p.schemaFor(t.Name)
	if !ok {
		return TypeInfo{}, false
	}
	for _, el := range schema.Elements {
		if el.Name != element {
			continue
		}
		if len(el.Types) != 1 {
			return TypeInfo{}, false
		}
		return TypeInfo{Name: el.Types[0].Code}, true
	}
	return TypeInfo{}, false
}

// GetElementNames lists the element names declared directly on t's schema.
func (p *StaticProvider) GetElementNames(t TypeInfo) []string {
	schema, ok := p.schemaFor(t.Name)
	if !ok {
		return nil
	}
	names := make([]string, 0, len(schema.Elements))
	for _, el := range schema.Elements {
		names = append(names, el.Name)
	}
	return names
}

// GetChoiceTypes returns the candidate types for a choice element ("x[x]"
// naming, e.g. "value[x]" addressed as element "value"). Non-choice or
// unknown elements yield nil.
func (p *StaticProvider) GetChoiceTypes(typeName, element string) []ElementType {
	schema, ok := p.schemaFor(typeName)
	if !ok {
		return nil
	}
	choiceName := element + "[x]"
	for _, el := range schema.Elements {
		if el.Name == element || el.Name == choiceName {
			if len(el.Types) > 1 {
				return el.Types
			}
			return nil
		}
	}
	return nil
}
