package search

import (
	"strings"
	"testing"
)

func newPlanRegistry() *Registry {
	return NewRegistry(DefaultParamDefs(), nil)
}

func TestPlanQuery_CompilesPredicateAndPagination(t *testing.T) {
	registry := newPlanRegistry()
	cache := NewCache(16)

	plan, err := PlanQuery(registry, cache, "Observation", "code=http://loinc.org|1234-5&_count=5&_offset=10", 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.Count != 5 {
		t.Fatalf("expected count 5, got %d", plan.Count)
	}
	if plan.Offset != 10 {
		t.Fatalf("expected offset 10, got %d", plan.Offset)
	}
	if plan.Bound.SQL == "" {
		t.Fatal("expected a non-empty compiled predicate")
	}
	if len(plan.Bound.Params) == 0 {
		t.Fatal("expected at least one bound parameter for the token search")
	}
	if plan.CacheHit {
		t.Fatal("first resolution of a shape must be a cache miss")
	}
}

func TestPlanQuery_SecondResolutionOfSameShapeIsACacheHit(t *testing.T) {
	registry := newPlanRegistry()
	cache := NewCache(16)

	if _, err := PlanQuery(registry, cache, "Observation", "code=http://loinc.org|1234-5", 100); err != nil {
		t.Fatalf("unexpected error on first resolution: %v", err)
	}
	plan, err := PlanQuery(registry, cache, "Observation", "code=http://snomed.info/sct|9999", 100)
	if err != nil {
		t.Fatalf("unexpected error on second resolution: %v", err)
	}
	if !plan.CacheHit {
		t.Fatal("expected second resolution of the same query shape to be a cache hit")
	}
	// A cache hit still recompiles against the new request's own values, not
	// the first request's bound parameters.
	found := false
	for _, p := range plan.Bound.Params {
		if s, ok := p.(string); ok && strings.Contains(s, "9999") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected bound params to reflect the second request's own value, got %+v", plan.Bound.Params)
	}
}

func TestPlanQuery_RejectsUnknownParam(t *testing.T) {
	registry := newPlanRegistry()
	cache := NewCache(16)

	if _, err := PlanQuery(registry, cache, "Observation", "bogus=1", 100); err == nil {
		t.Fatal("expected validation error for an unregistered search parameter")
	}
}

func TestJSONBPathFor_DerivedFromExpression(t *testing.T) {
	cases := []struct {
		def  ParamDef
		want string
	}{
		{ParamDef{Code: "_id", Base: "Patient", Expression: "Patient.id"}, "resource->'id'"},
		{ParamDef{Code: "_lastUpdated", Base: "Patient", Expression: "Patient.meta.lastUpdated"}, "resource->'meta'->'lastUpdated'"},
		{ParamDef{Code: "birthdate", Base: "Patient", Expression: "Patient.birthDate"}, "resource->'birthDate'"},
		{ParamDef{Code: "value-quantity", Base: "Observation", Expression: "Observation.value as Quantity"}, "resource->'value'"},
		{ParamDef{Code: "patient", Base: "Observation", Expression: "Observation.subject.where(resolve() is Patient)"}, "resource->'subject'"},
		{ParamDef{Code: "odd", Base: "Patient", Expression: "(telecom | contact.telecom)"}, "resource->'odd'"},
	}
	for _, c := range cases {
		if got := jsonbPathFor(&c.def); got != c.want {
			t.Errorf("jsonbPathFor(%s) = %q, want %q", c.def.Code, got, c.want)
		}
	}
}

func TestPlanQuery_TotalFlagIsPlumbedThrough(t *testing.T) {
	registry := newPlanRegistry()
	cache := NewCache(16)

	plan, err := PlanQuery(registry, cache, "Patient", "_total=accurate", 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !plan.IncludeTotal {
		t.Fatal("expected _total to set IncludeTotal")
	}
}
