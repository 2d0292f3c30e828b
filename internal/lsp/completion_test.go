package lsp

import (
	"testing"

	golsp "github.com/sourcegraph/go-lsp"

	"github.com/octofhir/fhircore/internal/fhirmodel"
	"github.com/octofhir/fhircore/internal/lsp/sqlparse"
)

func newTestSchemaCache(t *testing.T) *SchemaCache {
	t.Helper()
	cache := NewSchemaCache(nil, map[string]string{"patient": "Patient"})
	snap := &Snapshot{
		Tables: []TableInfo{
			{Schema: "public", Name: "patient", ResourceType: "Patient", Columns: []ColumnInfo{
				{Name: "id", DataType: "text"},
				{Name: "resource", DataType: "jsonb"},
			}},
			{Schema: "public", Name: "audit_log", Columns: []ColumnInfo{{Name: "id", DataType: "text"}}},
		},
		Functions: []FunctionInfo{{Name: "jsonb_extract_path_text", ReturnType: "text"}},
	}
	buildIndex(snap)
	cache.current.Store(snap)
	return cache
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	resolver := NewFHIRResolver(fhirmodel.NewStaticProvider())
	return NewCompletionEngine(newTestSchemaCache(t), resolver, NewTableResolver())
}

func TestCompletionJSONBPathOffersResourceFields(t *testing.T) {
	engine := newTestEngine(t)
	src := `SELECT resource->'name' FROM patient p WHERE p.resource->'nam`
	doc, _ := sqlparse.Parse(src)
	// Cursor right after the partially-typed literal "'nam".
	pos := golsp.Position{Line: 0, Character: len(src)}
	items := engine.Complete(doc, src, pos)

	found := false
	for _, it := range items {
		if it.Label == "name" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected completions to include 'name', got %+v", items)
	}
}

func TestCompletionJSONBPathTextEditExtendsUnterminatedLiteral(t *testing.T) {
	engine := newTestEngine(t)
	src := `SELECT resource->'name' FROM patient p WHERE p.resource->'nam`
	doc, _ := sqlparse.Parse(src)
	pos := golsp.Position{Line: 0, Character: len(src)}
	items := engine.Complete(doc, src, pos)

	for _, it := range items {
		if it.Label != "name" {
			continue
		}
		if it.TextEdit == nil {
			t.Fatalf("expected a TextEdit for completion %q", it.Label)
		}
		if it.TextEdit.NewText != "name'" {
			t.Errorf("NewText = %q, want the field name plus the missing closing quote", it.TextEdit.NewText)
		}
		return
	}
	t.Fatalf("expected completions to include 'name', got %+v", items)
}

func TestCompletionJSONBPathTextEditReplacesClosedLiteral(t *testing.T) {
	engine := newTestEngine(t)
	src := `SELECT p.resource->'nam' FROM patient p`
	doc, _ := sqlparse.Parse(src)
	// Cursor inside the closed literal, right after "nam".
	pos := golsp.Position{Line: 0, Character: len(`SELECT p.resource->'nam`)}
	items := engine.Complete(doc, src, pos)

	for _, it := range items {
		if it.Label != "name" {
			continue
		}
		if it.TextEdit == nil {
			t.Fatalf("expected a TextEdit for completion %q", it.Label)
		}
		if it.TextEdit.NewText != "name" {
			t.Errorf("NewText = %q, want just the field name (quotes preserved by the range)", it.TextEdit.NewText)
		}
		return
	}
	t.Fatalf("expected completions to include 'name', got %+v", items)
}

func TestCompletionFunctionArgOffersSnippets(t *testing.T) {
	engine := newTestEngine(t)
	src := `SELECT jsonb_extract_path_text(resource, '`
	doc, _ := sqlparse.Parse(src)
	pos := golsp.Position{Line: 0, Character: len(src)}
	items := engine.Complete(doc, src, pos)
	if len(items) == 0 {
		t.Fatalf("expected JSONPath snippet completions inside a known JSONB function call")
	}
	for _, it := range items {
		if it.Kind != golsp.CIKSnippet {
			t.Errorf("item %q kind = %v, want CIKSnippet", it.Label, it.Kind)
		}
	}
}

func TestCompletionGeneralOrdersFHIRTablesFirst(t *testing.T) {
	engine := newTestEngine(t)
	src := `SELECT * FROM `
	doc, _ := sqlparse.Parse(src)
	pos := golsp.Position{Line: 0, Character: len(src)}
	items := engine.Complete(doc, src, pos)

	var firstTableIdx = -1
	for i, it := range items {
		if it.Label == "patient" {
			firstTableIdx = i
			break
		}
	}
	var auditIdx = -1
	for i, it := range items {
		if it.Label == "audit_log" {
			auditIdx = i
			break
		}
	}
	if firstTableIdx == -1 || auditIdx == -1 {
		t.Fatalf("expected both patient and audit_log in completions, got %+v", items)
	}
	if firstTableIdx >= auditIdx {
		t.Errorf("expected FHIR table 'patient' to sort before public table 'audit_log'")
	}
}

