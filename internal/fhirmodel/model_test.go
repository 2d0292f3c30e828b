package fhirmodel

import "testing"

func TestGetSchemaKnownResource(t *testing.T) {
	p := NewStaticProvider()
	schema, ok := p.GetSchema("Patient")
	if !ok {
		t.Fatalf("expected Patient schema to be present")
	}
	if schema.TypeName != "Patient" {
		t.Errorf("TypeName = %q, want Patient", schema.TypeName)
	}
}

func TestGetSchemaUnknownResource(t *testing.T) {
	p := NewStaticProvider()
	if _, ok := p.GetSchema("NoSuchResource"); ok {
		t.Errorf("expected unknown resource to be absent")
	}
}

func TestGetElementTypeSingleType(t *testing.T) {
	p := NewStaticProvider()
	ti, ok := p.GetElementType(TypeInfo{Name: "Patient"}, "gender")
	if !ok {
		t.Fatalf("expected gender element type to resolve")
	}
	if ti.Name != "code" {
		t.Errorf("ti.Name = %q, want code", ti.Name)
	}
}

func TestGetElementTypeChoiceElementIsAmbiguous(t *testing.T) {
	p := NewStaticProvider()
	if _, ok := p.GetElementType(TypeInfo{Name: "Observation"}, "value"); ok {
		t.Errorf("expected a choice element to not resolve via GetElementType")
	}
}

func TestGetChoiceTypes(t *testing.T) {
	p := NewStaticProvider()
	types := p.GetChoiceTypes("Observation", "value")
	if len(types) != 3 {
		t.Fatalf("GetChoiceTypes(Observation, value) = %d types, want 3", len(types))
	}
}

func TestGetElementNamesComplexType(t *testing.T) {
	p := NewStaticProvider()
	names := p.GetElementNames(TypeInfo{Name: "HumanName"})
	found := false
	for _, n := range names {
		if n == "family" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected HumanName element names to include family, got %v", names)
	}
}

func TestPrimitiveAndTerminalClassification(t *testing.T) {
	if !IsPrimitive("string") {
		t.Errorf("expected string to be a primitive type")
	}
	if IsPrimitive("HumanName") {
		t.Errorf("expected HumanName to not be a primitive type")
	}
	if !IsTerminalComplex("Resource") {
		t.Errorf("expected Resource to be a terminal complex type")
	}
}
