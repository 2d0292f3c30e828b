package search

import (
	"strings"
	"testing"
)

func tokenParam(raw string, mod Modifier) ParsedParam {
	return ParsedParam{Name: "code", Modifier: mod, Values: []Value{{Raw: raw}}}
}

func TestBuilder_TokenWithSystemEmitsContainmentClause(t *testing.T) {
	b := NewBuilder(nil)
	err := b.ApplyParam(&ParamDef{Code: "code", Type: Token}, tokenParam("http://loinc.org|1234-5", Modifier{}), "resource->'code'")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	q := b.Build()
	sql := q.SQL()
	if !strings.Contains(sql, "@>") {
		t.Fatalf("expected jsonb containment operator in generated SQL, got %q", sql)
	}
	if len(q.Params) == 0 {
		t.Fatal("expected at least one bound parameter")
	}
	found := false
	for _, p := range q.Params {
		if s, ok := p.(string); ok && strings.Contains(s, "loinc.org") && strings.Contains(s, "1234-5") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a bound containment JSON value referencing system/code, got %+v", q.Params)
	}
}

func TestBuilder_TokenEmptySystem_NotEmptyStringComparison(t *testing.T) {
	b := NewBuilder(nil)
	err := b.ApplyParam(&ParamDef{Code: "identifier", Type: Token}, tokenParam("|12345", Modifier{}), "resource->'identifier'")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sql := b.Build().SQL()
	if strings.Contains(sql, "= ''") {
		t.Fatalf("empty-system case must never compare system to the empty string literal, got %q", sql)
	}
	if !strings.Contains(sql, "IS NULL") {
		t.Fatalf("expected an IS NULL branch for the empty-system case, got %q", sql)
	}
}

func TestBuilder_ParamPlaceholdersAreSequentialAcrossCalls(t *testing.T) {
	b := NewBuilder(nil)
	_ = b.ApplyParam(&ParamDef{Code: "status", Type: Token}, tokenParam("active", Modifier{}), "resource->'status'")
	_ = b.ApplyParam(&ParamDef{Code: "code", Type: Token}, tokenParam("1234-5", Modifier{}), "resource->'code'")
	q := b.Build()
	for i := range q.Params {
		ph := "$" + itoa(i+1)
		if !strings.Contains(q.SQL(), ph) {
			t.Fatalf("expected placeholder %s to appear in SQL, got %q", ph, q.SQL())
		}
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := ""
	for n > 0 {
		digits = string(rune('0'+n%10)) + digits
		n /= 10
	}
	return digits
}

func TestBuilder_EmptyValuesProduceNoPredicate(t *testing.T) {
	b := NewBuilder(nil)
	err := b.ApplyParam(&ParamDef{Code: "name", Type: String}, ParsedParam{Name: "name"}, "resource->'name'")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sql := b.Build().SQL(); sql != "" {
		t.Fatalf("a parameter with no values must compile to nothing, got %q", sql)
	}
}

func TestBuilder_MissingModifier(t *testing.T) {
	b := NewBuilder(nil)
	mod := Modifier{Kind: ModifierMissing}
	err := b.ApplyParam(&ParamDef{Code: "code", Type: Token}, ParsedParam{Name: "code", Modifier: mod, Values: []Value{{Raw: "true"}}}, "resource->'code'")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sql := b.Build().SQL()
	if !strings.Contains(sql, "IS NULL") {
		t.Fatalf("expected IS NULL clause for :missing=true, got %q", sql)
	}
}

func TestBuilder_DisallowedModifierRejected(t *testing.T) {
	b := NewBuilder(nil)
	def := &ParamDef{Code: "status", Type: Token, Modifiers: map[ModifierKind]bool{ModifierText: true}}
	mod := Modifier{Kind: ModifierExact}
	err := b.ApplyParam(def, ParsedParam{Name: "status", Modifier: mod, Values: []Value{{Raw: "active"}}}, "resource->'status'")
	if err == nil {
		t.Fatal("expected error for a modifier not in def.Modifiers")
	}
}

func TestBuilder_InWithoutTerminologyProvider(t *testing.T) {
	b := NewBuilder(nil)
	mod := Modifier{Kind: ModifierIn}
	err := b.ApplyParam(&ParamDef{Code: "code", Type: Token}, ParsedParam{Name: "code", Modifier: mod, Values: []Value{{Raw: "http://vs"}}}, "resource->'code'")
	if err == nil {
		t.Fatal("expected NotImplemented error when terminology provider is nil")
	}
}

func TestBuilder_DateEquality_DayPrecisionExpandsToRange(t *testing.T) {
	b := NewBuilder(nil)
	p := ParsedParam{Name: "birthdate", Values: []Value{{Raw: "2020-05-01"}}}
	if err := b.ApplyParam(&ParamDef{Code: "birthdate", Type: Date}, p, "resource->'birthDate'"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sql := b.Build().SQL()
	if strings.Count(sql, "timestamptz") < 2 {
		t.Fatalf("expected a day-precision eq to expand into a >= AND <= range, got %q", sql)
	}
}

func TestBuilder_StringExactVsDefaultPrefix(t *testing.T) {
	b1 := NewBuilder(nil)
	_ = b1.ApplyParam(&ParamDef{Code: "family", Type: String}, ParsedParam{Name: "family", Modifier: Modifier{Kind: ModifierExact}, Values: []Value{{Raw: "Smith"}}}, "p->'family'")
	if strings.Contains(b1.Build().SQL(), "ILIKE") {
		t.Fatal(":exact must not use ILIKE")
	}

	b2 := NewBuilder(nil)
	_ = b2.ApplyParam(&ParamDef{Code: "family", Type: String}, ParsedParam{Name: "family", Values: []Value{{Raw: "Smith"}}}, "p->'family'")
	if !strings.Contains(b2.Build().SQL(), "ILIKE") {
		t.Fatal("default string prefix match should use ILIKE")
	}
}

func TestBuilder_ReferenceBareIDRequiresSingleTarget(t *testing.T) {
	b := NewBuilder(nil)
	def := &ParamDef{Code: "subject", Type: Reference, Target: []string{"Patient", "Group"}}
	err := b.ApplyParam(def, ParsedParam{Name: "subject", Values: []Value{{Raw: "123"}}}, "resource->'subject'")
	if err == nil {
		t.Fatal("expected error for bare id with multiple possible target types")
	}
}

func TestBuilder_CompositeComponentCountMismatch(t *testing.T) {
	b := NewBuilder(nil)
	def := &ParamDef{Code: "value-quantity", Type: Composite, Target: []string{"code", "value"}}
	err := b.ApplyParam(def, ParsedParam{Name: "value-quantity", Values: []Value{{Raw: "only-one-part"}}}, "resource->'value'")
	if err == nil {
		t.Fatal("expected error when component count does not match registered components")
	}
}
