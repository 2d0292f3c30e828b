package lsp

import (
	"sort"
	"strings"

	golsp "github.com/sourcegraph/go-lsp"

	"github.com/octofhir/fhircore/internal/lsp/sqlparse"
)

// jsonbFunctions is the set of known JSONB-producing/consuming functions
// whose first argument is a JSONB column and whose second (where present)
// is a path literal.
var jsonbFunctions = map[string]bool{
	"jsonb_extract_path_text":   true,
	"jsonb_extract_path":        true,
	"jsonb_path_query":          true,
	"jsonb_path_query_first":    true,
	"jsonb_array_elements":      true,
	"jsonb_array_elements_text": true,
	"jsonb_each":                true,
	"jsonb_each_text":           true,
}

// jsonPathSnippets are the arg-1 completion templates offered inside a
// known JSONB function call.
var jsonPathSnippets = []string{
	"$.*", "$.name", "$.name[0].family", "$.coding[0].code", "$.value",
}

// clauseKeywords holds the keyword completions offered per clause.
var clauseKeywords = map[sqlparse.NodeKind][]string{
	sqlparse.NodeSelectList: {"DISTINCT", "AS"},
	sqlparse.NodeFrom:       {"JOIN", "INNER JOIN", "LEFT JOIN", "RIGHT JOIN", "AS", "ON"},
	sqlparse.NodeWhere:      {"AND", "OR", "NOT", "IS NULL", "IS NOT NULL", "IN", "LIKE", "BETWEEN"},
	sqlparse.NodeStatement:  {"SELECT", "FROM", "WHERE", "WITH", "INSERT", "UPDATE", "DELETE"},
}

// Engine is the LSP completion engine: given a document and cursor
// position it returns ranked completions.
type Engine struct {
	schema   *SchemaCache
	resolver *FHIRResolver
	tables   *TableResolver
}

// NewCompletionEngine wires the engine's three collaborators: the
// catalog snapshot, the FHIR schema walker, and the per-document alias
// resolver.
func NewCompletionEngine(schema *SchemaCache, resolver *FHIRResolver, tables *TableResolver) *Engine {
	return &Engine{schema: schema, resolver: resolver, tables: tables}
}

// positionToOffset converts an LSP Position (0-based line/character) to a
// byte offset into src.
func positionToOffset(src string, pos golsp.Position) int {
	line := 0
	col := 0
	for i, r := range src {
		if line == pos.Line && col == pos.Character {
			return i
		}
		if r == '\n' {
			line++
			col = 0
		} else {
			col++
		}
	}
	return len(src)
}

// pathToOffset walks from root down to the innermost node containing
// offset, returning every node visited along the way (root first): the
// cursor-node lookup, plus the ancestor chain the function-call and
// JSONB-path detectors need.
func pathToOffset(root *sqlparse.Node, offset int) []*sqlparse.Node {
	if root == nil {
		return nil
	}
	path := []*sqlparse.Node{root}
	cur := root
	for {
		advanced := false
		for _, c := range cur.Children {
			if c.Start <= offset && offset <= c.End {
				path = append(path, c)
				cur = c
				advanced = true
				break
			}
		}
		if !advanced {
			break
		}
	}
	return path
}

// Complete returns the ranked completion list for src at pos, given the
// already-parsed document.
func (e *Engine) Complete(doc *sqlparse.Document, src string, pos golsp.Position) []golsp.CompletionItem {
	offset := positionToOffset(src, pos)
	stmt := doc.StatementAt(offset)
	if stmt == nil {
		return nil
	}
	path := pathToOffset(stmt.Root, offset)
	if len(path) == 0 {
		return nil
	}

	if items, ok := e.functionArgCompletions(path); ok {
		return items
	}
	if items, ok := e.jsonbPathCompletions(stmt, path, offset, src); ok {
		return items
	}
	return e.generalCompletions(stmt, path)
}

// functionArgCompletions serves completions inside a function-call
// argument: JSONPath snippets for a known JSONB function's path
// argument, nothing otherwise.
func (e *Engine) functionArgCompletions(path []*sqlparse.Node) ([]golsp.CompletionItem, bool) {
	for i := len(path) - 1; i > 0; i-- {
		if path[i].Kind != sqlparse.NodeArgList {
			continue
		}
		fn := path[i-1]
		if fn.Kind != sqlparse.NodeFunctionCall || !jsonbFunctions[fn.Text] {
			return nil, true // inside a call arg list, but not a known JSONB function: empty
		}
		args := fn.Children[0].Children
		argIndex := len(args) - 1 // cursor directly in the arg list: the trailing arg
		if argIndex < 0 {
			argIndex = 0
		}
		if i+1 < len(path) {
			for idx, c := range args {
				if c == path[i+1] {
					argIndex = idx
					break
				}
			}
		}
		switch argIndex {
		case 0:
			return nil, true // column completions would need the containing table; left empty here, matching "other args -> empty" on ambiguity
		case 1:
			items := make([]golsp.CompletionItem, 0, len(jsonPathSnippets))
			for _, snippet := range jsonPathSnippets {
				items = append(items, golsp.CompletionItem{Label: snippet, Kind: golsp.CIKSnippet, InsertText: snippet})
			}
			return items, true
		default:
			return nil, true
		}
	}
	return nil, false
}

// jsonbSegments walks a left-associative chain of NodeJSONBPath nodes and
// returns the base column text plus the path segments applied to it.
func jsonbSegments(n *sqlparse.Node) (string, []string) {
	if n.Kind != sqlparse.NodeJSONBPath {
		if n.Kind == sqlparse.NodeColumnRef {
			return n.Text, nil
		}
		return "", nil
	}
	col, segs := jsonbSegments(n.Children[0])
	if len(n.Children) > 1 {
		seg := n.Children[1].Text
		seg = strings.Trim(seg, "'")
		segs = append(segs, seg)
	}
	return col, segs
}

// jsonbPathCompletions serves FHIR field completions inside a chained
// ->/->>/#>/#>> expression, resolving the base column to a resource
// type via the alias map and schema snapshot.
func (e *Engine) jsonbPathCompletions(stmt *sqlparse.Statement, path []*sqlparse.Node, offset int, src string) ([]golsp.CompletionItem, bool) {
	var jsonbNode *sqlparse.Node
	for i := len(path) - 1; i >= 0; i-- {
		if path[i].Kind == sqlparse.NodeJSONBPath {
			jsonbNode = path[i]
			break
		}
	}
	if jsonbNode == nil {
		return nil, false
	}

	column, segments := jsonbSegments(jsonbNode)
	partial := ""
	basePath := segments
	var literal *sqlparse.Node
	if len(segments) > 0 {
		last := path[len(path)-1]
		if last.Kind == sqlparse.NodeLiteral && last.Start <= offset && offset <= last.End {
			literal = last
			partial = segments[len(segments)-1]
			basePath = segments[:len(segments)-1]
		}
	}

	resourceType := e.resourceTypeForColumn(stmt, column)
	if resourceType == "" {
		return nil, true
	}

	children := e.resolver.ChildrenAt(resourceType, strings.Join(basePath, "."))
	items := make([]golsp.CompletionItem, 0, len(children))
	for _, f := range children {
		if partial != "" && !strings.HasPrefix(strings.ToLower(f.Name), strings.ToLower(partial)) {
			continue
		}
		items = append(items, golsp.CompletionItem{
			Label:      f.Name,
			Kind:       golsp.CIKField,
			Detail:     fieldKindLabel(f.Kind),
			InsertText: f.Name,
			TextEdit:   quotePreservingEdit(src, literal, offset, f.Name),
		})
	}
	return items, true
}

// quotePreservingEdit computes the completion's TextEdit: replace only
// the inner token of a closed string literal, extend an unterminated
// one, or insert the field name wrapped in quotes when none exists yet.
func quotePreservingEdit(src string, literal *sqlparse.Node, offset int, fieldName string) *golsp.TextEdit {
	if literal == nil {
		pos := offsetToPosition(src, offset)
		return &golsp.TextEdit{
			Range:   golsp.Range{Start: pos, End: pos},
			NewText: "'" + fieldName + "'",
		}
	}

	text := literal.Text
	closed := len(text) >= 2 && text[0] == '\'' && text[len(text)-1] == '\''
	if closed {
		return &golsp.TextEdit{
			Range: golsp.Range{
				Start: offsetToPosition(src, literal.Start+1),
				End:   offsetToPosition(src, literal.End-1),
			},
			NewText: fieldName,
		}
	}

	// Opening quote present but string unterminated: extend it and supply
	// the missing closing quote.
	if len(text) >= 1 && text[0] == '\'' {
		return &golsp.TextEdit{
			Range: golsp.Range{
				Start: offsetToPosition(src, literal.Start+1),
				End:   offsetToPosition(src, literal.End),
			},
			NewText: fieldName + "'",
		}
	}

	pos := offsetToPosition(src, literal.Start)
	return &golsp.TextEdit{
		Range:   golsp.Range{Start: pos, End: offsetToPosition(src, literal.End)},
		NewText: "'" + fieldName + "'",
	}
}

// resourceTypeForColumn locates the table backing column's alias then
// maps it to a FHIR resource type via the catalog snapshot.
func (e *Engine) resourceTypeForColumn(stmt *sqlparse.Statement, column string) string {
	return resolveResourceType(e.schema.Snapshot(), e.tables.Resolve(stmt), column)
}

// resolveResourceType locates the table backing column's alias within an
// already-resolved alias map, then maps it to a FHIR resource type.
// Shared by the completion engine and diagnostics so both resolve a
// `table.column` reference the same way.
func resolveResourceType(snap *Snapshot, aliases map[string]Resolved, column string) string {
	alias := column
	if idx := strings.LastIndexByte(column, '.'); idx >= 0 {
		alias = column[:idx]
	}

	ref, ok := aliases[alias]
	if !ok {
		// Unqualified column: if exactly one table is in scope, assume it.
		if len(aliases) != 1 {
			return ""
		}
		for _, only := range aliases {
			ref = only
		}
	}
	if ref.Kind != RefTable {
		return ""
	}
	if snap != nil {
		if t, ok := snap.Table(ref.Name); ok {
			return t.ResourceType
		}
	}
	return ""
}

func fieldKindLabel(k FieldKind) string {
	switch k {
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBoolean:
		return "boolean"
	default:
		return "unknown"
	}
}

// generalCompletions serves clause-aware keyword, table, column and
// function completions when the cursor is in plain SQL.
func (e *Engine) generalCompletions(stmt *sqlparse.Statement, path []*sqlparse.Node) []golsp.CompletionItem {
	clause := sqlparse.NodeStatement
	for i := len(path) - 1; i >= 0; i-- {
		if _, ok := clauseKeywords[path[i].Kind]; ok {
			clause = path[i].Kind
			break
		}
	}

	var items []golsp.CompletionItem
	for _, kw := range clauseKeywords[clause] {
		items = append(items, golsp.CompletionItem{Label: kw, Kind: golsp.CIKKeyword, InsertText: kw})
	}

	aliases := e.tables.Resolve(stmt)
	mentioned := make(map[string]bool, len(aliases))
	for _, ref := range aliases {
		if ref.Kind == RefTable {
			mentioned[ref.Name] = true
		}
	}

	if snap := e.schema.Snapshot(); snap != nil {
		var fhirTables, publicTables, otherTables []golsp.CompletionItem
		for _, t := range snap.Tables {
			item := golsp.CompletionItem{Label: t.Name, Kind: golsp.CIKClass, Detail: t.Schema}
			switch {
			case t.ResourceType != "":
				fhirTables = append(fhirTables, item)
			case t.Schema == "public" || t.Schema == "":
				publicTables = append(publicTables, item)
			default:
				otherTables = append(otherTables, item)
			}
		}
		sortByLabel(fhirTables)
		sortByLabel(publicTables)
		sortByLabel(otherTables)
		items = append(items, fhirTables...)
		items = append(items, publicTables...)
		items = append(items, otherTables...)

		for _, t := range snap.Tables {
			if !mentioned[t.Name] {
				continue
			}
			for _, c := range t.Columns {
				items = append(items, golsp.CompletionItem{Label: c.Name, Kind: golsp.CIKField, Detail: c.DataType})
			}
		}
		for _, fn := range snap.Functions {
			items = append(items, golsp.CompletionItem{Label: fn.Name, Kind: golsp.CIKFunction, Detail: fn.ReturnType})
		}
	}

	return items
}

func sortByLabel(items []golsp.CompletionItem) {
	sort.Slice(items, func(i, j int) bool { return items[i].Label < items[j].Label })
}
