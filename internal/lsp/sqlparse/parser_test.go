package sqlparse

import "testing"

func TestTokenizeJSONBOperators(t *testing.T) {
	tokens, err := Tokenize(`resource->'name'->>0 #> '{a,b}' #>> '{c}'`)
	if err != nil {
		t.Fatalf("Tokenize returned error: %v", err)
	}
	var kinds []TokenKind
	for _, tok := range tokens {
		if tok.Kind != TokEOF {
			kinds = append(kinds, tok.Kind)
		}
	}
	want := []TokenKind{TokIdent, TokArrow, TokString, TokArrowText, TokNumber, TokHashArrow, TokString, TokHashArrowText, TokString}
	if len(kinds) != len(want) {
		t.Fatalf("got %d tokens, want %d: %v", len(kinds), len(want), kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("token[%d] = %v, want %v", i, kinds[i], want[i])
		}
	}
}

func TestParseSimpleSelect(t *testing.T) {
	doc, diags := Parse(`SELECT id, resource->'name' FROM patient p WHERE p.id = '1'`)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	if len(doc.Statements) != 1 {
		t.Fatalf("len(Statements) = %d, want 1", len(doc.Statements))
	}
	stmt := doc.Statements[0]
	if stmt.Kind != StmtSelect {
		t.Errorf("Kind = %v, want StmtSelect", stmt.Kind)
	}

	var from *Node
	for _, c := range stmt.Root.Children {
		if c.Kind == NodeFrom {
			from = c
		}
	}
	if from == nil {
		t.Fatalf("expected a FROM clause node")
	}
	tableRef := from.Children[0]
	if tableRef.Text != "patient" || tableRef.Alias != "p" {
		t.Errorf("table ref = {%q, %q}, want {patient, p}", tableRef.Text, tableRef.Alias)
	}
}

func TestParseJoinsAndCTE(t *testing.T) {
	doc, _ := Parse(`WITH recent AS (SELECT id FROM encounter) SELECT * FROM patient p JOIN observation o ON o.subject = p.id LEFT JOIN recent r ON r.id = p.id`)
	stmt := doc.Statements[0]

	var with, from *Node
	for _, c := range stmt.Root.Children {
		switch c.Kind {
		case NodeWith:
			with = c
		case NodeFrom:
			from = c
		}
	}
	if with == nil || len(with.Children) != 1 || with.Children[0].Text != "recent" {
		t.Fatalf("expected one CTE named 'recent', got %+v", with)
	}
	if from == nil || len(from.Children) != 3 {
		t.Fatalf("expected FROM + 2 joins, got %+v", from)
	}
	join, ok := from.Children[1], from.Children[1].Kind == NodeJoin
	if !ok || join.Children[0].Text != "observation" {
		t.Errorf("first join table = %+v, want observation", join)
	}
}

func TestDescendantForOffsetFindsInnerNode(t *testing.T) {
	src := `SELECT resource->'name'->>'family' FROM patient`
	doc, _ := Parse(src)
	stmt := doc.Statements[0]

	// Offset inside the 'family' string literal.
	offset := len(`SELECT resource->'name'->>'fam`)
	node := stmt.Root.DescendantForOffset(offset)
	if node == nil {
		t.Fatalf("DescendantForOffset returned nil")
	}
	if node.Kind != NodeLiteral {
		t.Errorf("innermost node kind = %v, want NodeLiteral (text=%q)", node.Kind, node.Text)
	}
}

func TestParseFunctionCallArgs(t *testing.T) {
	doc, diags := Parse(`SELECT jsonb_extract_path_text(resource, 'name', 'family') FROM patient`)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	stmt := doc.Statements[0]
	selectList := stmt.Root.Children[0]
	item := selectList.Children[0].Children[0]
	if item.Kind != NodeFunctionCall || item.Text != "jsonb_extract_path_text" {
		t.Fatalf("expected a function call node, got %+v", item)
	}
	args := item.Children[0]
	if len(args.Children) != 3 {
		t.Errorf("len(args) = %d, want 3", len(args.Children))
	}
}
