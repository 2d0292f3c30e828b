package search

import "testing"

func TestRegistry_SeedsBuiltins(t *testing.T) {
	r := NewRegistry(DefaultParamDefs(), nil)
	if d := r.Get("Patient", "_id"); d == nil {
		t.Fatal("expected built-in _id for Patient")
	}
	if d := r.Get("Observation", "code"); d == nil || d.Type != Token {
		t.Fatalf("expected Observation.code to be a Token param, got %+v", d)
	}
}

func TestRegistry_RegisterThenGet(t *testing.T) {
	r := NewRegistry(nil, nil)
	if err := r.Register(&ParamDef{Code: "custom", Base: "Patient", Type: String}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d := r.Get("Patient", "custom"); d == nil {
		t.Fatal("expected newly registered param to be visible")
	}
}

func TestRegistry_RegisterRequiresCodeAndBase(t *testing.T) {
	r := NewRegistry(nil, nil)
	if err := r.Register(&ParamDef{Base: "Patient"}); err == nil {
		t.Fatal("expected error for missing code")
	}
	if err := r.Register(&ParamDef{Code: "x"}); err == nil {
		t.Fatal("expected error for missing base")
	}
}

type rejectingValidator struct{}

func (rejectingValidator) Validate(expression string) error {
	return &ValidationError{Message: "bad expression"}
}

func TestRegistry_RegisterValidatesExpression(t *testing.T) {
	r := NewRegistry(nil, rejectingValidator{})
	err := r.Register(&ParamDef{Code: "x", Base: "Patient", Expression: "Patient.bogus"})
	if err == nil {
		t.Fatal("expected FHIRPath validation failure to reject registration")
	}
}

func TestRegistry_UnregisterRemoves(t *testing.T) {
	r := NewRegistry(nil, nil)
	_ = r.Register(&ParamDef{Code: "custom", Base: "Patient", Type: String})
	r.Unregister("Patient", "custom")
	if d := r.Get("Patient", "custom"); d != nil {
		t.Fatal("expected param to be gone after Unregister")
	}
}

func TestRegistry_UnregisterUnknownIsNoop(t *testing.T) {
	r := NewRegistry(nil, nil)
	r.Unregister("Patient", "does-not-exist") // must not panic
}

func TestRegistry_SnapshotIsolation(t *testing.T) {
	r := NewRegistry(nil, nil)
	before := r.GetAllForType("Patient")
	_ = r.Register(&ParamDef{Code: "new-one", Base: "Patient", Type: String})
	if len(before) != 0 {
		t.Fatalf("expected a snapshot taken before Register to stay empty, got %d entries", len(before))
	}
}
