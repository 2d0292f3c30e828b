package lsp

import (
	"fmt"
	"strings"

	golsp "github.com/sourcegraph/go-lsp"

	"github.com/octofhir/fhircore/internal/lsp/sqlparse"
)

// Severity is the core's own diagnostic severity, kept separate from the
// LSP wire enum so a severity this server doesn't recognize collapses
// predictably to information instead of propagating an invalid value
// over the wire.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityInfo
	SeverityHint
)

func (s Severity) lsp() golsp.DiagnosticSeverity {
	switch s {
	case SeverityError:
		return golsp.Error
	case SeverityWarning:
		return golsp.Warning
	case SeverityHint:
		return golsp.Hint
	case SeverityInfo:
		return golsp.Information
	default:
		return golsp.Information
	}
}

// Diagnostic is one core-level diagnostic with a byte-offset source range.
// Analyzer.Diagnostics merges parser and semantic diagnostics into this
// shape; the server maps offsets to LSP Positions and wire severities at
// the edge, once per document version, rather than threading a
// line/column scan through the analyzer itself.
type Diagnostic struct {
	Start, End int
	Severity   Severity
	Message    string
}

// ToLSP converts a byte-range Diagnostic to the wire shape, scanning src
// once for the offset-to-line/column mapping.
func (d Diagnostic) ToLSP(src string) golsp.Diagnostic {
	return golsp.Diagnostic{
		Range:    golsp.Range{Start: offsetToPosition(src, d.Start), End: offsetToPosition(src, d.End)},
		Severity: d.Severity.lsp(),
		Source:   "fhircore-lsp",
		Message:  d.Message,
	}
}

// offsetToPosition is the inverse of completion.go's positionToOffset.
func offsetToPosition(src string, offset int) golsp.Position {
	if offset > len(src) {
		offset = len(src)
	}
	line, col := 0, 0
	for i, r := range src {
		if i >= offset {
			break
		}
		if r == '\n' {
			line++
			col = 0
		} else {
			col++
		}
	}
	return golsp.Position{Line: line, Character: col}
}

// Analyzer is the semantic half of the SQL Language Server's diagnostics
// pass: it runs the catalog snapshot and the FHIR schema resolver over a
// parsed document, detecting unknown tables/columns, unknown JSONB
// fields at a FHIR path, and FHIR path arity misuse.
type Analyzer struct {
	schema   *SchemaCache
	resolver *FHIRResolver
	tables   *TableResolver
}

// NewAnalyzer wires the semantic pass to the same three collaborators
// the completion engine uses, so both observe one consistent snapshot
// per request.
func NewAnalyzer(schema *SchemaCache, resolver *FHIRResolver, tables *TableResolver) *Analyzer {
	return &Analyzer{schema: schema, resolver: resolver, tables: tables}
}

// Diagnostics merges the parse pass (already run by sqlparse.Parse) with
// the semantic pass, the union published on didOpen/didChange.
func (a *Analyzer) Diagnostics(doc *sqlparse.Document, parseDiags []sqlparse.Diagnostic) []Diagnostic {
	diags := make([]Diagnostic, 0, len(parseDiags))
	for _, d := range parseDiags {
		diags = append(diags, Diagnostic{Start: d.Start, End: d.End, Severity: SeverityError, Message: d.Message})
	}
	for _, stmt := range doc.Statements {
		diags = append(diags, a.analyzeStatement(stmt)...)
	}
	return diags
}

func (a *Analyzer) analyzeStatement(stmt *sqlparse.Statement) []Diagnostic {
	if stmt == nil || stmt.Root == nil {
		return nil
	}
	snap := a.schema.Snapshot()
	aliases := a.tables.Resolve(stmt)
	cteNames := make(map[string]bool, len(aliases))
	for _, ref := range aliases {
		if ref.Kind == RefCTE {
			cteNames[ref.Name] = true
		}
	}

	var diags []Diagnostic
	var walk func(n *sqlparse.Node)
	walk = func(n *sqlparse.Node) {
		if n == nil {
			return
		}
		switch n.Kind {
		case sqlparse.NodeTableRef:
			diags = append(diags, a.checkTableRef(snap, cteNames, n)...)
		case sqlparse.NodeColumnRef:
			diags = append(diags, a.checkColumnRef(snap, aliases, n)...)
		case sqlparse.NodeJSONBPath:
			diags = append(diags, a.checkJSONBPath(snap, aliases, n)...)
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(stmt.Root)
	return diags
}

// checkTableRef flags a FROM/JOIN table name absent from the catalog
// snapshot. A snapshot with zero tables means the schema cache has not
// been refreshed yet; silence rather than false-positive every table in
// that window.
func (a *Analyzer) checkTableRef(snap *Snapshot, cteNames map[string]bool, n *sqlparse.Node) []Diagnostic {
	if snap == nil || len(snap.Tables) == 0 || n.Text == "" {
		return nil
	}
	name := n.Text
	if idx := strings.LastIndexByte(name, '.'); idx >= 0 {
		name = name[idx+1:]
	}
	if cteNames[name] {
		return nil
	}
	if _, ok := snap.Table(name); !ok {
		return []Diagnostic{{Start: n.Start, End: n.End, Severity: SeverityError, Message: fmt.Sprintf("unknown table %q", name)}}
	}
	return nil
}

// checkColumnRef flags a column reference against an unqualified or
// aliased table name not present in that table's catalog columns. Refs
// into a CTE or subquery are not validated; their column set is not
// tracked beyond one level.
func (a *Analyzer) checkColumnRef(snap *Snapshot, aliases map[string]Resolved, n *sqlparse.Node) []Diagnostic {
	if snap == nil || len(snap.Tables) == 0 || n.Text == "" || n.Text == "*" {
		return nil
	}
	parts := strings.Split(n.Text, ".")
	col := parts[len(parts)-1]
	if col == "*" {
		return nil
	}

	var ref Resolved
	var ok bool
	if len(parts) > 1 {
		ref, ok = aliases[parts[len(parts)-2]]
	} else if len(aliases) == 1 {
		for _, only := range aliases {
			ref, ok = only, true
		}
	}
	if !ok || ref.Kind != RefTable {
		return nil
	}
	t, ok := snap.Table(ref.Name)
	if !ok || len(t.Columns) == 0 {
		return nil
	}
	for _, c := range t.Columns {
		if c.Name == col {
			return nil
		}
	}
	return []Diagnostic{{Start: n.Start, End: n.End, Severity: SeverityError, Message: fmt.Sprintf("unknown column %q on %s", col, ref.Name)}}
}

// checkJSONBPath flags an unknown field at a JSONB path, and arity
// misuse: `->>`/`#>>` (scalar text extraction) applied to a field the
// FHIR schema says is an object or array.
func (a *Analyzer) checkJSONBPath(snap *Snapshot, aliases map[string]Resolved, n *sqlparse.Node) []Diagnostic {
	column, segments := jsonbSegments(n)
	if column == "" || len(segments) == 0 {
		return nil
	}
	resourceType := resolveResourceType(snap, aliases, column)
	if resourceType == "" {
		return nil
	}

	path := strings.Join(segments, ".")
	field, ok := a.resolver.FieldAt(resourceType, path)
	if !ok {
		return []Diagnostic{{Start: n.Start, End: n.End, Severity: SeverityWarning, Message: fmt.Sprintf("unknown field %q on %s", path, resourceType)}}
	}

	isTextOp := n.Text == "->>" || n.Text == "#>>"
	if isTextOp && (field.Kind == KindObject || field.Kind == KindArray) {
		return []Diagnostic{{Start: n.Start, End: n.End, Severity: SeverityWarning, Message: fmt.Sprintf("%q is %s; scalar extraction (%s) treats it as text", path, fieldKindLabel(field.Kind), n.Text)}}
	}
	return nil
}
