package lsp

import "github.com/octofhir/fhircore/internal/lsp/sqlparse"

// RefKind classifies what an alias resolves to: a catalog table, a CTE,
// or a subquery.
type RefKind int

const (
	RefTable RefKind = iota
	RefCTE
	RefSubquery
)

// Resolved is what a single alias resolves to within one SQL document.
type Resolved struct {
	Kind   RefKind
	Schema string
	Name   string
}

// TableResolver walks a sqlparse AST once per statement to build an
// alias-to-Resolved map in two passes: CTEs first, then FROM/JOIN
// clauses.
type TableResolver struct{}

// NewTableResolver creates a stateless resolver; it holds no per-document
// state itself; callers keep the returned map alongside the document.
func NewTableResolver() *TableResolver {
	return &TableResolver{}
}

// Resolve builds the alias map for a single statement.
func (r *TableResolver) Resolve(stmt *sqlparse.Statement) map[string]Resolved {
	aliases := make(map[string]Resolved)
	if stmt == nil || stmt.Root == nil {
		return aliases
	}

	cteNames := make(map[string]bool)
	for _, child := range stmt.Root.Children {
		if child.Kind != sqlparse.NodeWith {
			continue
		}
		for _, cte := range child.Children {
			if cte.Kind != sqlparse.NodeCTE || cte.Text == "" {
				continue
			}
			aliases[cte.Text] = Resolved{Kind: RefCTE, Name: cte.Text}
			cteNames[cte.Text] = true
		}
	}

	for _, child := range stmt.Root.Children {
		if child.Kind != sqlparse.NodeFrom {
			continue
		}
		for _, item := range child.Children {
			switch item.Kind {
			case sqlparse.NodeTableRef:
				r.registerTableRef(aliases, cteNames, item)
			case sqlparse.NodeJoin:
				if len(item.Children) > 0 && item.Children[0].Kind == sqlparse.NodeTableRef {
					r.registerTableRef(aliases, cteNames, item.Children[0])
				}
			}
		}
	}

	return aliases
}

func (r *TableResolver) registerTableRef(aliases map[string]Resolved, cteNames map[string]bool, ref *sqlparse.Node) {
	alias := ref.Alias
	if alias == "" {
		alias = ref.Text
	}
	if alias == "" {
		return
	}

	if ref.Text == "" {
		// Parenthesized subquery: only the alias is known; nested
		// subquery aliases beyond one level are not surfaced.
		aliases[alias] = Resolved{Kind: RefSubquery, Name: alias}
		return
	}

	if cteNames[ref.Text] {
		aliases[alias] = Resolved{Kind: RefCTE, Name: ref.Text}
		return
	}

	schema, name := "", ref.Text
	for i := len(ref.Text) - 1; i >= 0; i-- {
		if ref.Text[i] == '.' {
			schema, name = ref.Text[:i], ref.Text[i+1:]
			break
		}
	}
	aliases[alias] = Resolved{Kind: RefTable, Schema: schema, Name: name}
}
