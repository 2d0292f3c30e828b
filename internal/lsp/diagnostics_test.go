package lsp

import (
	"strings"
	"testing"

	"github.com/octofhir/fhircore/internal/fhirmodel"
	"github.com/octofhir/fhircore/internal/lsp/sqlparse"
)

func newTestAnalyzer(t *testing.T) *Analyzer {
	t.Helper()
	resolver := NewFHIRResolver(fhirmodel.NewStaticProvider())
	return NewAnalyzer(newTestSchemaCache(t), resolver, NewTableResolver())
}

func TestDiagnosticsFlagsUnknownTable(t *testing.T) {
	a := newTestAnalyzer(t)
	src := `SELECT * FROM nonexistent_table`
	doc, parseDiags := sqlparse.Parse(src)
	diags := a.Diagnostics(doc, parseDiags)

	found := false
	for _, d := range diags {
		if d.Severity == SeverityError && strings.Contains(d.Message, "unknown table") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected an unknown-table diagnostic, got %+v", diags)
	}
}

func TestDiagnosticsFlagsUnknownColumn(t *testing.T) {
	a := newTestAnalyzer(t)
	src := `SELECT p.nope FROM patient p`
	doc, parseDiags := sqlparse.Parse(src)
	diags := a.Diagnostics(doc, parseDiags)

	found := false
	for _, d := range diags {
		if strings.Contains(d.Message, "unknown column") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected an unknown-column diagnostic, got %+v", diags)
	}
}

func TestDiagnosticsAcceptsKnownJSONBPath(t *testing.T) {
	a := newTestAnalyzer(t)
	src := `SELECT p.resource->'name' FROM patient p`
	doc, parseDiags := sqlparse.Parse(src)
	diags := a.Diagnostics(doc, parseDiags)

	for _, d := range diags {
		if strings.Contains(d.Message, "unknown field") {
			t.Errorf("did not expect an unknown-field diagnostic for a valid path, got %+v", d)
		}
	}
}

func TestDiagnosticsFlagsUnknownJSONBField(t *testing.T) {
	a := newTestAnalyzer(t)
	src := `SELECT p.resource->'notAField' FROM patient p`
	doc, parseDiags := sqlparse.Parse(src)
	diags := a.Diagnostics(doc, parseDiags)

	found := false
	for _, d := range diags {
		if d.Severity == SeverityWarning && strings.Contains(d.Message, "unknown field") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected an unknown-field diagnostic, got %+v", diags)
	}
}

func TestDiagnosticsParseErrorsSurfaceAsErrors(t *testing.T) {
	a := newTestAnalyzer(t)
	src := `SELECT p.resource->`
	doc, parseDiags := sqlparse.Parse(src)
	if len(parseDiags) == 0 {
		t.Fatalf("expected the parser to produce a diagnostic for a trailing %q", "->")
	}
	diags := a.Diagnostics(doc, parseDiags)

	found := false
	for _, d := range diags {
		if d.Severity == SeverityError {
			found = true
		}
	}
	if !found {
		t.Errorf("expected parse diagnostics to surface as SeverityError, got %+v", diags)
	}
}

func TestDiagnosticsIdempotentAcrossDidChange(t *testing.T) {
	a := newTestAnalyzer(t)
	src := `SELECT p.nope FROM patient p`

	doc1, parse1 := sqlparse.Parse(src)
	first := a.Diagnostics(doc1, parse1)

	doc2, parse2 := sqlparse.Parse(src)
	second := a.Diagnostics(doc2, parse2)

	if len(first) != len(second) {
		t.Fatalf("expected didOpen and didChange(doc -> doc) to yield the same diagnostic count, got %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("diagnostic %d differs: %+v vs %+v", i, first[i], second[i])
		}
	}
}
