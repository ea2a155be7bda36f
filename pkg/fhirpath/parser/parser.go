// Package parser turns a token stream into a FHIRPath ast.Node tree using
// recursive descent with a fixed precedence ladder. Keyword
// tokens (and, or, is, as, div, mod, ...) are only treated as operators at
// the binary-operator level; everywhere else — after a dot, at the head of
// a primary expression — the same token is accepted as a plain identifier,
// which is how FHIRPath lets `Patient.where` or `Patient.class` coexist with
// the `where`/`class` keywords used elsewhere.
package parser

import (
	"fmt"

	"github.com/fhirpath-go/core/pkg/fhirpath/ast"
	"github.com/fhirpath-go/core/pkg/fhirpath/lexer"
)

// Error reports a syntax error at a token span.
type Error struct {
	Message string
	Start   int
	End     int
}

func (e *Error) Error() string    { return fmt.Sprintf("ParseError: %s", e.Message) }
func (e *Error) Span() (int, int) { return e.Start, e.End }

// Parse scans and parses a complete FHIRPath expression, requiring the whole
// input to be consumed.
func Parse(src string) (n ast.Node, err error) {
	toks, lexErr := lexer.All(src)
	if lexErr != nil {
		return nil, toErr(lexErr)
	}
	p := &parser{toks: toks}
	defer func() {
		if r := recover(); r != nil {
			pe, ok := r.(*Error)
			if !ok {
				panic(r)
			}
			n, err = nil, pe
		}
	}()
	expr := p.parseExpression()
	p.expectEOF()
	return expr, nil
}

func toErr(err error) error {
	if le, ok := err.(*lexer.Error); ok {
		s, e := le.Span()
		return &Error{Message: le.Message, Start: s, End: e}
	}
	return err
}

type parser struct {
	toks []lexer.Token
	pos  int
}

func (p *parser) cur() lexer.Token     { return p.toks[p.pos] }
func (p *parser) at(k lexer.Kind) bool { return p.cur().Kind == k }

func (p *parser) atKeyword(word string) bool {
	t := p.cur()
	return t.Kind == lexer.Ident && t.Text == word
}

func (p *parser) advance() lexer.Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) fail(tok lexer.Token, format string, args ...interface{}) {
	panic(&Error{Message: fmt.Sprintf(format, args...), Start: tok.Start, End: tok.End})
}

func (p *parser) expect(k lexer.Kind) lexer.Token {
	if !p.at(k) {
		p.fail(p.cur(), "expected %s, found %s", k, p.cur().Kind)
	}
	return p.advance()
}

func (p *parser) expectEOF() {
	if !p.at(lexer.EOF) {
		p.fail(p.cur(), "unexpected %s", p.cur().Kind)
	}
}

func sp(start, end int) ast.Span { return ast.Span{Start: start, End: end} }

// parseExpression is the entry point: the lowest-precedence production.
func (p *parser) parseExpression() ast.Node {
	return p.parseImplies()
}

// --- precedence ladder, lowest to highest ---

// parseImplies is right-associative: a implies b implies c parses as
// a implies (b implies c).
func (p *parser) parseImplies() ast.Node {
	left := p.parseOrXor()
	if p.atKeyword("implies") {
		p.advance()
		right := p.parseImplies()
		return p.binary(ast.OpImplies, left, right)
	}
	return left
}

func (p *parser) parseOrXor() ast.Node {
	left := p.parseAnd()
	for p.atKeyword("or") || p.atKeyword("xor") {
		op := ast.OpOr
		if p.atKeyword("xor") {
			op = ast.OpXor
		}
		p.advance()
		right := p.parseAnd()
		left = p.binary(op, left, right)
	}
	return left
}

func (p *parser) parseAnd() ast.Node {
	left := p.parseMembership()
	for p.atKeyword("and") {
		p.advance()
		right := p.parseMembership()
		left = p.binary(ast.OpAnd, left, right)
	}
	return left
}

func (p *parser) parseMembership() ast.Node {
	left := p.parseEquality()
	for p.atKeyword("in") || p.atKeyword("contains") {
		op := ast.OpIn
		if p.atKeyword("contains") {
			op = ast.OpContains
		}
		p.advance()
		right := p.parseEquality()
		left = p.binary(op, left, right)
	}
	return left
}

func (p *parser) parseEquality() ast.Node {
	left := p.parseInequality()
	for {
		var op ast.BinaryOp
		switch p.cur().Kind {
		case lexer.Eq:
			op = ast.OpEq
		case lexer.Neq:
			op = ast.OpNeq
		case lexer.Equiv:
			op = ast.OpEquiv
		case lexer.NEquiv:
			op = ast.OpNEquiv
		default:
			return left
		}
		p.advance()
		right := p.parseInequality()
		left = p.binary(op, left, right)
	}
}

func (p *parser) parseInequality() ast.Node {
	left := p.parseUnion()
	for {
		var op ast.BinaryOp
		switch p.cur().Kind {
		case lexer.Lt:
			op = ast.OpLt
		case lexer.Gt:
			op = ast.OpGt
		case lexer.Lte:
			op = ast.OpLte
		case lexer.Gte:
			op = ast.OpGte
		default:
			return left
		}
		p.advance()
		right := p.parseUnion()
		left = p.binary(op, left, right)
	}
}

func (p *parser) parseUnion() ast.Node {
	left := p.parseIsAs()
	for p.at(lexer.Pipe) {
		p.advance()
		right := p.parseIsAs()
		left = p.binary(ast.OpUnion, left, right)
	}
	return left
}

func (p *parser) parseIsAs() ast.Node {
	left := p.parseAdditive()
	for p.atKeyword("is") || p.atKeyword("as") {
		isIs := p.atKeyword("is")
		p.advance()
		ts := p.parseTypeSpecifier()
		if isIs {
			left = ast.NewIsExpr(sp(left.Span().Start, p.prevEnd()), left, ts)
		} else {
			left = ast.NewAsExpr(sp(left.Span().Start, p.prevEnd()), left, ts)
		}
	}
	return left
}

// prevEnd returns the End of the token just consumed, for spans that close
// on a production with no single terminating token (type specifiers).
func (p *parser) prevEnd() int {
	if p.pos == 0 {
		return p.toks[0].End
	}
	return p.toks[p.pos-1].End
}

func (p *parser) parseAdditive() ast.Node {
	left := p.parseMultiplicative()
	for {
		var op ast.BinaryOp
		switch {
		case p.at(lexer.Plus):
			op = ast.OpAdd
		case p.at(lexer.Minus):
			op = ast.OpSub
		case p.at(lexer.Amp):
			op = ast.OpConcat
		default:
			return left
		}
		p.advance()
		right := p.parseMultiplicative()
		left = p.binary(op, left, right)
	}
}

func (p *parser) parseMultiplicative() ast.Node {
	left := p.parseUnary()
	for {
		var op ast.BinaryOp
		switch {
		case p.at(lexer.Star):
			op = ast.OpMul
		case p.at(lexer.Slash):
			op = ast.OpDiv
		case p.atKeyword("div"):
			op = ast.OpDivInt
		case p.atKeyword("mod"):
			op = ast.OpMod
		default:
			return left
		}
		p.advance()
		right := p.parseUnary()
		left = p.binary(op, left, right)
	}
}

func (p *parser) parseUnary() ast.Node {
	if p.at(lexer.Plus) || p.at(lexer.Minus) {
		opTok := p.advance()
		operand := p.parseUnary()
		op := ast.UnaryPlus
		if opTok.Kind == lexer.Minus {
			op = ast.UnaryMinus
		}
		return ast.NewUnary(sp(opTok.Start, operand.Span().End), op, operand)
	}
	return p.parsePostfix()
}

// parsePostfix handles the dot-chain and indexer, which bind tighter than
// any binary operator.
func (p *parser) parsePostfix() ast.Node {
	n := p.parsePrimary()
	for {
		switch {
		case p.at(lexer.Dot):
			p.advance()
			step := p.parseInvocationStep()
			n = ast.NewInvocation(sp(n.Span().Start, step.Span().End), n, step)
		case p.at(lexer.LBracket):
			p.advance()
			idx := p.parseExpression()
			end := p.expect(lexer.RBracket)
			n = ast.NewIndexer(sp(n.Span().Start, end.End), n, idx)
		default:
			return n
		}
	}
}

// parseInvocationStep parses the part after a '.': a member name, a
// function call, or one of $this/$index/$total.
func (p *parser) parseInvocationStep() ast.Node {
	tok := p.cur()
	switch tok.Kind {
	case lexer.Ident, lexer.Delimited:
		name := identifierText(tok)
		p.advance()
		if p.at(lexer.LParen) {
			return p.parseFunctionCallTail(tok.Start, name)
		}
		return ast.NewIdentifier(sp(tok.Start, tok.End), name, tok.Kind == lexer.Ident && lexer.IsReservedWord(tok.Text))
	case lexer.Variable:
		return p.parseVariableStep(tok)
	default:
		p.fail(tok, "expected a member name after '.'")
		return nil
	}
}

func (p *parser) parseVariableStep(tok lexer.Token) ast.Node {
	p.advance()
	switch tok.Decoded {
	case "this":
		return ast.NewThisInvocation(sp(tok.Start, tok.End))
	case "index":
		return ast.NewIndexInvocation(sp(tok.Start, tok.End))
	case "total":
		return ast.NewTotalInvocation(sp(tok.Start, tok.End))
	default:
		return ast.NewVariable(sp(tok.Start, tok.End), tok.Decoded)
	}
}

func identifierText(tok lexer.Token) string {
	if tok.Kind == lexer.Delimited {
		return tok.Decoded
	}
	return tok.Text
}

func (p *parser) parseFunctionCallTail(start int, name string) ast.Node {
	p.expect(lexer.LParen)
	var args []ast.Node
	if !p.at(lexer.RParen) {
		args = append(args, p.parseExpression())
		for p.at(lexer.Comma) {
			p.advance()
			args = append(args, p.parseExpression())
		}
	}
	end := p.expect(lexer.RParen)
	return ast.NewFunctionCall(sp(start, end.End), name, args)
}

func (p *parser) parsePrimary() ast.Node {
	tok := p.cur()
	switch tok.Kind {
	case lexer.Number:
		p.advance()
		return ast.NewLiteral(sp(tok.Start, tok.End), ast.LitNumber, tok.Text)
	case lexer.String:
		p.advance()
		return ast.NewLiteral(sp(tok.Start, tok.End), ast.LitString, tok.Decoded)
	case lexer.Quantity:
		p.advance()
		return ast.NewLiteral(sp(tok.Start, tok.End), ast.LitQuantity, tok.Decoded)
	case lexer.Date:
		p.advance()
		return ast.NewLiteral(sp(tok.Start, tok.End), ast.LitDate, tok.Decoded)
	case lexer.Time:
		p.advance()
		return ast.NewLiteral(sp(tok.Start, tok.End), ast.LitTime, tok.Decoded)
	case lexer.DateTime:
		p.advance()
		return ast.NewLiteral(sp(tok.Start, tok.End), ast.LitDateTime, tok.Decoded)
	case lexer.Variable:
		return p.parseVariableStep(tok)
	case lexer.EnvVar:
		p.advance()
		return ast.NewExternalConstant(sp(tok.Start, tok.End), tok.Decoded)
	case lexer.LParen:
		p.advance()
		inner := p.parseExpression()
		end := p.expect(lexer.RParen)
		return ast.NewParen(sp(tok.Start, end.End), inner)
	case lexer.LBrace:
		p.advance()
		end := p.expect(lexer.RBrace)
		return ast.NewLiteral(sp(tok.Start, end.End), ast.LitNull, "")
	case lexer.Ident, lexer.Delimited:
		return p.parsePrimaryIdentifierOrCall(tok)
	default:
		p.fail(tok, "unexpected %s", tok.Kind)
		return nil
	}
}

func (p *parser) parsePrimaryIdentifierOrCall(tok lexer.Token) ast.Node {
	if tok.Kind == lexer.Ident {
		switch tok.Text {
		case "true":
			p.advance()
			return ast.NewLiteral(sp(tok.Start, tok.End), ast.LitBoolean, "true")
		case "false":
			p.advance()
			return ast.NewLiteral(sp(tok.Start, tok.End), ast.LitBoolean, "false")
		}
	}
	name := identifierText(tok)
	p.advance()
	if p.at(lexer.LParen) {
		return p.parseFunctionCallTail(tok.Start, name)
	}
	return ast.NewIdentifier(sp(tok.Start, tok.End), name, tok.Kind == lexer.Ident && lexer.IsReservedWord(tok.Text))
}

// parseTypeSpecifier parses `Identifier` or `Identifier.Identifier`
// (namespace-qualified, e.g. FHIR.Patient, System.String) for is/as/ofType.
func (p *parser) parseTypeSpecifier() ast.TypeSpecifier {
	first := p.expectTypeNamePart()
	if p.at(lexer.Dot) {
		p.advance()
		second := p.expectTypeNamePart()
		return ast.TypeSpecifier{Namespace: first, Name: second}
	}
	return ast.TypeSpecifier{Name: first}
}

func (p *parser) expectTypeNamePart() string {
	tok := p.cur()
	if tok.Kind != lexer.Ident && tok.Kind != lexer.Delimited {
		p.fail(tok, "expected a type name")
	}
	p.advance()
	return identifierText(tok)
}

func (p *parser) binary(op ast.BinaryOp, left, right ast.Node) ast.Node {
	return ast.NewBinary(sp(left.Span().Start, right.Span().End), op, left, right)
}
