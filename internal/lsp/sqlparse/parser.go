package sqlparse

import (
	"fmt"
	"strings"
)

// Parse tokenizes and parses src into a Document. Parse errors are
// collected as Diagnostic values rather than aborting: an LSP server must
// still answer completion/hover requests against a document the user is
// mid-way through typing.
func Parse(src string) (*Document, []Diagnostic) {
	tokens, _ := Tokenize(src)
	doc := &Document{Text: src, Tokens: tokens}

	var diags []Diagnostic
	for _, stmtTokens := range splitStatements(tokens) {
		if len(stmtTokens) == 0 || (len(stmtTokens) == 1 && stmtTokens[0].Kind == TokEOF) {
			continue
		}
		stmt, stmtDiags := parseStatement(stmtTokens)
		doc.Statements = append(doc.Statements, stmt)
		diags = append(diags, stmtDiags...)
	}
	return doc, diags
}

// splitStatements breaks a token stream into per-statement slices at
// top-level semicolons (depth 0 parens), each re-terminated with its own
// EOF sentinel.
func splitStatements(tokens []Token) [][]Token {
	var result [][]Token
	var cur []Token
	depth := 0
	for _, t := range tokens {
		switch t.Kind {
		case TokLParen:
			depth++
		case TokRParen:
			depth--
		case TokSemicolon:
			if depth == 0 {
				result = append(result, appendEOF(cur, t.End))
				cur = nil
				continue
			}
		case TokEOF:
			if len(cur) > 0 {
				result = append(result, appendEOF(cur, t.End))
			}
			continue
		}
		cur = append(cur, t)
	}
	return result
}

func appendEOF(tokens []Token, offset int) []Token {
	return append(append([]Token(nil), tokens...), Token{Kind: TokEOF, Start: offset, End: offset})
}

type parser struct {
	tokens []Token
	pos    int
	diags  []Diagnostic
}

func (p *parser) peek() Token {
	if p.pos >= len(p.tokens) {
		return Token{Kind: TokEOF}
	}
	return p.tokens[p.pos]
}

func (p *parser) advance() Token {
	t := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return t
}

func (p *parser) atKeyword(kw string) bool {
	t := p.peek()
	return t.Kind == TokIdent && strings.EqualFold(t.Text, kw)
}

func (p *parser) eatKeyword(kw string) bool {
	if p.atKeyword(kw) {
		p.advance()
		return true
	}
	return false
}

func (p *parser) errorf(t Token, format string, args ...interface{}) {
	p.diags = append(p.diags, Diagnostic{Start: t.Start, End: t.End, Message: fmt.Sprintf(format, args...)})
}

func parseStatement(tokens []Token) (*Statement, []Diagnostic) {
	p := &parser{tokens: tokens}
	start := tokens[0].Start
	root := &Node{Kind: NodeStatement, Start: start}

	kind := classifyStatement(p)

	if p.eatKeyword("WITH") {
		withNode := &Node{Kind: NodeWith, Start: tokens[p.pos-1].Start}
		for {
			cte := p.parseCTE()
			if cte == nil {
				break
			}
			withNode.Children = append(withNode.Children, cte)
			if !p.eatCommaToken() {
				break
			}
		}
		root.Children = append(root.Children, withNode)
	}

	switch kind {
	case StmtSelect:
		p.parseSelectBody(root)
	case StmtInsert, StmtUpdate, StmtDelete:
		p.parseDMLBody(root, kind)
	default:
		// DDL / unrecognised: no child nodes are built; the root's range
		// below still spans every token, so offset lookups resolve to the
		// statement root.
	}

	last := root.Start
	if len(tokens) > 0 {
		last = tokens[len(tokens)-1].Start
	}
	root.End = last
	return &Statement{Kind: kind, Root: root}, p.diags
}

func classifyStatement(p *parser) StatementKind {
	save := p.pos
	defer func() { p.pos = save }()

	if p.atKeyword("WITH") {
		return StmtSelect
	}
	t := p.peek()
	if t.Kind != TokIdent {
		return StmtUnknown
	}
	switch strings.ToUpper(t.Text) {
	case "SELECT":
		return StmtSelect
	case "INSERT":
		return StmtInsert
	case "UPDATE":
		return StmtUpdate
	case "DELETE":
		return StmtDelete
	case "CREATE", "ALTER", "DROP":
		return StmtDDL
	default:
		return StmtUnknown
	}
}

func (p *parser) eatCommaToken() bool {
	if p.peek().Kind == TokComma {
		p.advance()
		return true
	}
	return false
}

// parseCTE parses `name [(col, ...)] AS ( subquery )`.
func (p *parser) parseCTE() *Node {
	if p.peek().Kind != TokIdent || IsKeyword(p.peek().Text) {
		return nil
	}
	nameTok := p.advance()
	cte := &Node{Kind: NodeCTE, Text: nameTok.Text, Start: nameTok.Start}

	if p.peek().Kind == TokLParen {
		depth := 0
		for {
			t := p.advance()
			if t.Kind == TokLParen {
				depth++
			} else if t.Kind == TokRParen {
				depth--
				if depth == 0 {
					break
				}
			} else if t.Kind == TokEOF {
				break
			}
		}
	}

	if !p.eatKeyword("AS") {
		cte.End = p.peek().Start
		return cte
	}
	if p.peek().Kind == TokLParen {
		p.advance()
		depth := 1
		for depth > 0 {
			t := p.peek()
			if t.Kind == TokEOF {
				break
			}
			if t.Kind == TokLParen {
				depth++
			} else if t.Kind == TokRParen {
				depth--
				if depth == 0 {
					p.advance()
					break
				}
			}
			p.advance()
		}
	}
	cte.End = p.peek().Start
	return cte
}

func (p *parser) parseSelectBody(root *Node) {
	if !p.eatKeyword("SELECT") {
		return
	}
	p.eatKeyword("DISTINCT")

	selectList := &Node{Kind: NodeSelectList, Start: p.peek().Start}
	for {
		item := p.parseExpr()
		if item == nil {
			break
		}
		selectList.Children = append(selectList.Children, &Node{Kind: NodeSelectItem, Start: item.Start, End: item.End, Children: []*Node{item}})
		if !p.eatCommaToken() {
			break
		}
	}
	selectList.End = p.peek().Start
	root.Children = append(root.Children, selectList)

	if p.eatKeyword("FROM") {
		from := &Node{Kind: NodeFrom, Start: p.tokens[p.pos-1].Start}
		from.Children = append(from.Children, p.parseTableRef())
		for {
			if p.atJoinKeyword() {
				join := p.parseJoin()
				from.Children = append(from.Children, join)
				continue
			}
			if p.eatCommaToken() {
				from.Children = append(from.Children, p.parseTableRef())
				continue
			}
			break
		}
		from.End = p.peek().Start
		root.Children = append(root.Children, from)
	}

	if p.eatKeyword("WHERE") {
		where := &Node{Kind: NodeWhere, Start: p.tokens[p.pos-1].Start}
		if expr := p.parseExpr(); expr != nil {
			where.Children = append(where.Children, expr)
		}
		where.End = p.peek().Start
		root.Children = append(root.Children, where)
	}

	// GROUP BY / ORDER BY / LIMIT / OFFSET / HAVING: recognised but not
	// deeply parsed; no completion/diagnostic rule currently needs their
	// internal structure beyond clause recognition.
	for {
		switch {
		case p.eatKeyword("GROUP"):
			p.eatKeyword("BY")
			p.skipUntilClauseKeywordOrEnd()
		case p.eatKeyword("ORDER"):
			p.eatKeyword("BY")
			p.skipUntilClauseKeywordOrEnd()
		case p.eatKeyword("HAVING"):
			p.skipUntilClauseKeywordOrEnd()
		case p.eatKeyword("LIMIT"), p.eatKeyword("OFFSET"):
			p.skipUntilClauseKeywordOrEnd()
		default:
			return
		}
	}
}

func (p *parser) skipUntilClauseKeywordOrEnd() {
	for {
		t := p.peek()
		if t.Kind == TokEOF {
			return
		}
		if t.Kind == TokIdent {
			switch strings.ToUpper(t.Text) {
			case "GROUP", "ORDER", "HAVING", "LIMIT", "OFFSET":
				return
			}
		}
		p.advance()
	}
}

func (p *parser) parseDMLBody(root *Node, kind StatementKind) {
	// INSERT/UPDATE/DELETE are recognised at the statement level (for
	// clause-sensitive keyword sets) but not parsed into a full clause
	// tree: completion inside DML bodies degrades to general schema
	// completion.
	p.advance()
	switch kind {
	case StmtInsert:
		p.eatKeyword("INTO")
	case StmtUpdate, StmtDelete:
		p.eatKeyword("FROM")
	}
	if p.peek().Kind == TokIdent {
		tbl := p.parseTableRef()
		root.Children = append(root.Children, &Node{Kind: NodeFrom, Start: tbl.Start, End: tbl.End, Children: []*Node{tbl}})
	}
}

func (p *parser) atJoinKeyword() bool {
	switch strings.ToUpper(p.peek().Text) {
	case "JOIN", "INNER", "LEFT", "RIGHT", "FULL":
		return p.peek().Kind == TokIdent
	}
	return false
}

func (p *parser) parseJoin() *Node {
	start := p.peek().Start
	for p.atJoinKeyword() && !strings.EqualFold(p.peek().Text, "JOIN") {
		p.advance()
	}
	p.eatKeyword("JOIN")
	join := &Node{Kind: NodeJoin, Start: start}
	join.Children = append(join.Children, p.parseTableRef())
	if p.eatKeyword("ON") {
		if cond := p.parseExpr(); cond != nil {
			join.Children = append(join.Children, cond)
		}
	}
	join.End = p.peek().Start
	return join
}

// parseTableRef parses `schema.table [AS] alias`, `table`, or a
// parenthesized subquery with an alias, producing the alias map entries
// the table resolver consumes.
func (p *parser) parseTableRef() *Node {
	start := p.peek().Start
	ref := &Node{Kind: NodeTableRef, Start: start}

	if p.peek().Kind == TokLParen {
		p.advance()
		depth := 1
		for depth > 0 {
			t := p.peek()
			if t.Kind == TokEOF {
				break
			}
			if t.Kind == TokLParen {
				depth++
			} else if t.Kind == TokRParen {
				depth--
				if depth == 0 {
					p.advance()
					break
				}
			}
			p.advance()
		}
		ref.Text = "" // subquery has no table name
		if alias := p.parseOptionalAlias(); alias != "" {
			ref.Alias = alias
		}
		ref.End = p.peek().Start
		return ref
	}

	var parts []string
	if p.peek().Kind == TokIdent {
		parts = append(parts, p.advance().Text)
		for p.peek().Kind == TokDot {
			p.advance()
			if p.peek().Kind == TokIdent {
				parts = append(parts, p.advance().Text)
			}
		}
	}
	ref.Text = strings.Join(parts, ".")
	if len(parts) > 0 {
		ref.Alias = parts[len(parts)-1]
	}
	if alias := p.parseOptionalAlias(); alias != "" {
		ref.Alias = alias
	}
	ref.End = p.peek().Start
	return ref
}

func (p *parser) parseOptionalAlias() string {
	hadAs := p.eatKeyword("AS")
	t := p.peek()
	if t.Kind == TokIdent && !IsKeyword(t.Text) {
		p.advance()
		return t.Text
	}
	if hadAs {
		p.errorf(t, "expected alias after AS")
	}
	return ""
}

// parseExpr parses a boolean/comparison/JSONB expression with AND/OR at
// the lowest precedence, following the same precedence-climbing shape as
// internal/fhirpath's parseExpression(minPrec).
func (p *parser) parseExpr() *Node {
	return p.parseOr()
}

func (p *parser) parseOr() *Node {
	left := p.parseAnd()
	for p.eatKeyword("OR") {
		right := p.parseAnd()
		left = &Node{Kind: NodeBinaryExpr, Text: "OR", Start: left.Start, End: right.End, Children: []*Node{left, right}}
	}
	return left
}

func (p *parser) parseAnd() *Node {
	left := p.parseComparison()
	for p.eatKeyword("AND") {
		right := p.parseComparison()
		left = &Node{Kind: NodeBinaryExpr, Text: "AND", Start: left.Start, End: right.End, Children: []*Node{left, right}}
	}
	return left
}

func (p *parser) parseComparison() *Node {
	left := p.parseJSONBPath()
	if left == nil {
		return nil
	}
	switch p.peek().Kind {
	case TokEq, TokNeq, TokLt, TokGt, TokLe, TokGe:
		op := p.advance()
		right := p.parseJSONBPath()
		if right == nil {
			p.errorf(op, "expected expression after %q", op.Text)
			return left
		}
		return &Node{Kind: NodeBinaryExpr, Text: op.Text, Start: left.Start, End: right.End, Children: []*Node{left, right}}
	}
	return left
}

// parseJSONBPath parses a primary expression followed by zero or more
// ->, ->>, #>, #>> chains, the structural detector behind "is the
// cursor inside a JSONB expression" classification.
func (p *parser) parseJSONBPath() *Node {
	left := p.parsePrimary()
	if left == nil {
		return nil
	}
	for {
		kind := p.peek().Kind
		if kind != TokArrow && kind != TokArrowText && kind != TokHashArrow && kind != TokHashArrowText {
			break
		}
		op := p.advance()
		rhs := p.parsePrimary()
		if rhs == nil {
			p.errorf(op, "expected path segment after %q", op.Text)
			left = &Node{Kind: NodeJSONBPath, Text: op.Text, Start: left.Start, End: op.End, Children: []*Node{left}}
			break
		}
		left = &Node{Kind: NodeJSONBPath, Text: op.Text, Start: left.Start, End: rhs.End, Children: []*Node{left, rhs}}
	}
	return left
}

func (p *parser) parsePrimary() *Node {
	t := p.peek()
	switch t.Kind {
	case TokLParen:
		p.advance()
		inner := p.parseExpr()
		end := p.peek().End
		if p.peek().Kind == TokRParen {
			end = p.advance().End
		}
		return &Node{Kind: NodeParen, Start: t.Start, End: end, Children: []*Node{inner}}
	case TokString, TokNumber:
		p.advance()
		return &Node{Kind: NodeLiteral, Text: t.Text, Start: t.Start, End: t.End}
	case TokStar:
		p.advance()
		return &Node{Kind: NodeColumnRef, Text: "*", Start: t.Start, End: t.End}
	case TokIdent:
		if strings.EqualFold(t.Text, "NOT") {
			p.advance()
			inner := p.parseJSONBPath()
			end := t.End
			if inner != nil {
				end = inner.End
			}
			return &Node{Kind: NodeBinaryExpr, Text: "NOT", Start: t.Start, End: end, Children: []*Node{inner}}
		}
		return p.parseIdentOrCall()
	default:
		return nil
	}
}

// parseIdentOrCall parses `ident`, `ident.ident`, or `ident(args)`.
func (p *parser) parseIdentOrCall() *Node {
	first := p.advance()

	if p.peek().Kind == TokLParen {
		p.advance()
		call := &Node{Kind: NodeFunctionCall, Text: first.Text, Start: first.Start}
		args := &Node{Kind: NodeArgList, Start: p.peek().Start}
		if p.peek().Kind != TokRParen {
			for {
				arg := p.parseExpr()
				if arg == nil {
					break
				}
				args.Children = append(args.Children, arg)
				if !p.eatCommaToken() {
					break
				}
			}
		}
		args.End = p.peek().Start
		call.Children = append(call.Children, args)
		end := p.peek().End
		if p.peek().Kind == TokRParen {
			end = p.advance().End
		}
		call.End = end
		return call
	}

	parts := []string{first.Text}
	for p.peek().Kind == TokDot {
		p.advance()
		if p.peek().Kind == TokIdent || p.peek().Kind == TokStar {
			parts = append(parts, p.advance().Text)
		}
	}
	return &Node{Kind: NodeColumnRef, Text: strings.Join(parts, "."), Start: first.Start, End: p.tokens[p.pos-1].End}
}
