package fhirpath

import "testing"

func TestParseValidExpressions(t *testing.T) {
	exprs := []string{
		"Patient.name.given",
		"Patient.name.where(use = 'official').family",
		"Observation.value.exists()",
		"Patient.birthDate < @2000-01-01",
		"name.exists() and telecom.exists()",
		"Patient.deceased.ofType(boolean)",
		"code.coalesce | identifier",
	}
	for _, expr := range exprs {
		if _, err := Parse(expr); err != nil {
			t.Errorf("Parse(%q) returned unexpected error: %v", expr, err)
		}
	}
}

func TestParseInvalidExpressions(t *testing.T) {
	exprs := []string{
		"",
		"Patient.name.",
		"Patient.name(",
		"Patient..name",
		"Patient.name[abc]",
		"Patient.name = ",
	}
	for _, expr := range exprs {
		if _, err := Parse(expr); err == nil {
			t.Errorf("Parse(%q) expected an error, got nil", expr)
		}
	}
}

func TestValidatorSatisfiesSearchInterface(t *testing.T) {
	v := NewValidator()
	if err := v.Validate("Patient.name.given"); err != nil {
		t.Errorf("Validate returned unexpected error: %v", err)
	}
	if err := v.Validate("Patient.name."); err == nil {
		t.Errorf("Validate expected an error for malformed expression")
	}
}

func TestEvaluateSimplePath(t *testing.T) {
	resource := map[string]interface{}{
		"resourceType": "Patient",
		"name": []interface{}{
			map[string]interface{}{
				"use":   "official",
				"given": []interface{}{"Jane"},
			},
		},
	}
	e := NewEngine()
	result, err := e.Evaluate(resource, "Patient.name.where(use = 'official').given")
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if len(result) != 1 || result[0] != "Jane" {
		t.Errorf("Evaluate result = %v, want [Jane]", result)
	}
}

func TestEvaluateBoolExists(t *testing.T) {
	resource := map[string]interface{}{
		"resourceType": "Patient",
		"telecom": []interface{}{
			map[string]interface{}{"system": "phone", "value": "555-0100"},
		},
	}
	e := NewEngine()
	ok, err := e.EvaluateBool(resource, "telecom.exists()")
	if err != nil {
		t.Fatalf("EvaluateBool returned error: %v", err)
	}
	if !ok {
		t.Errorf("EvaluateBool = false, want true")
	}
}
