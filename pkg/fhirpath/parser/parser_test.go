package parser

import (
	"testing"

	"github.com/go-test/deep"

	"github.com/fhirpath-go/core/pkg/fhirpath/ast"
)

// assertRoundTrip checks that parsing src, printing the result, and parsing
// that printed text again yields a structurally identical tree (modulo
// spans, which re-parsing necessarily changes) — spec.md §8's round-trip
// parsing invariant.
func assertRoundTrip(t *testing.T, src string) ast.Node {
	t.Helper()
	n1, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse(%q): %v", src, err)
	}
	printed := ast.Print(n1)
	n2, err := Parse(printed)
	if err != nil {
		t.Fatalf("Parse(%q) round-trip reparse of %q failed: %v", src, printed, err)
	}
	if diff := deep.Equal(stripSpans(n1), stripSpans(n2)); diff != nil {
		t.Errorf("Parse(%q): round trip through %q changed structure:\n%v", src, printed, diff)
	}
	return n1
}

// stripSpans returns a copy of n with every Span zeroed so deep.Equal
// compares structure rather than source positions, which legitimately
// differ between the original and reprinted source.
func stripSpans(n ast.Node) interface{} {
	switch v := n.(type) {
	case nil:
		return nil
	case *ast.Literal:
		return struct {
			Kind ast.LiteralKind
			Text string
		}{v.Kind, v.Text}
	case *ast.Identifier:
		return struct {
			Name         string
			ReservedWord bool
		}{v.Name, v.ReservedWord}
	case *ast.Variable:
		return struct{ Name string }{v.Name}
	case *ast.ExternalConstant:
		return struct{ Name string }{v.Name}
	case *ast.Invocation:
		return struct{ Target, Step interface{} }{stripSpans(v.Target), stripSpans(v.Step)}
	case *ast.ThisInvocation:
		return "$this"
	case *ast.IndexInvocation:
		return "$index"
	case *ast.TotalInvocation:
		return "$total"
	case *ast.FunctionCall:
		args := make([]interface{}, len(v.Args))
		for i, a := range v.Args {
			args[i] = stripSpans(a)
		}
		return struct {
			Name string
			Args []interface{}
		}{v.Name, args}
	case *ast.Indexer:
		return struct{ Target, Index interface{} }{stripSpans(v.Target), stripSpans(v.Index)}
	case *ast.Unary:
		return struct {
			Op      ast.UnaryOp
			Operand interface{}
		}{v.Op, stripSpans(v.Operand)}
	case *ast.Binary:
		return struct {
			Op          ast.BinaryOp
			Left, Right interface{}
		}{v.Op, stripSpans(v.Left), stripSpans(v.Right)}
	case *ast.IsExpr:
		return struct {
			Expr interface{}
			Type ast.TypeSpecifier
		}{stripSpans(v.Expr), v.Type}
	case *ast.AsExpr:
		return struct {
			Expr interface{}
			Type ast.TypeSpecifier
		}{stripSpans(v.Expr), v.Type}
	case *ast.Paren:
		return struct{ Inner interface{} }{stripSpans(v.Inner)}
	default:
		return n
	}
}

func TestRoundTrip(t *testing.T) {
	cases := []string{
		"true",
		"false",
		"{}",
		"42",
		"1.50",
		"'hello'",
		"@2020-01-01",
		"@T14:30",
		"@2020-01-01T14:30:00Z",
		"4 days",
		"10 'mg'",
		"Patient",
		"Patient.name.given",
		"Patient.name.first()",
		"name.where(use = 'official').given",
		"items[0]",
		"items[$index + 1]",
		"-x",
		"+x",
		"1 + 2 * 3",
		"(1 + 2) * 3",
		"a and b or c",
		"a implies b implies c",
		"a | b | c",
		"a is Patient",
		"a as FHIR.Patient",
		"a contains b",
		"a in b",
		"1 = 2",
		"1 != 2",
		"1 ~ 2",
		"1 !~ 2",
		"1 <= 2",
		"1 >= 2",
		"'a' & 'b'",
		"$this.name",
		"$index",
		"$total",
		"%resource.id",
		"%'us-core'",
		"iif(a, b, c)",
		"where($index mod 2 = 0)",
		"`a weird name`",
	}
	for _, src := range cases {
		t.Run(src, func(t *testing.T) {
			assertRoundTrip(t, src)
		})
	}
}

func TestOperatorPrecedence(t *testing.T) {
	n, err := Parse("1 + 2 * 3")
	if err != nil {
		t.Fatal(err)
	}
	bin, ok := n.(*ast.Binary)
	if !ok || bin.Op != ast.OpAdd {
		t.Fatalf("expected top-level +, got %#v", n)
	}
	right, ok := bin.Right.(*ast.Binary)
	if !ok || right.Op != ast.OpMul {
		t.Fatalf("expected right operand to be *, got %#v", bin.Right)
	}

	n, err = Parse("a and b or c")
	if err != nil {
		t.Fatal(err)
	}
	bin, ok = n.(*ast.Binary)
	if !ok || bin.Op != ast.OpOr {
		t.Fatalf("expected top-level or (lower precedence than and), got %#v", n)
	}
	left, ok := bin.Left.(*ast.Binary)
	if !ok || left.Op != ast.OpAnd {
		t.Fatalf("expected left operand to be and, got %#v", bin.Left)
	}

	// implies is right-associative: a implies b implies c == a implies (b implies c)
	n, err = Parse("a implies b implies c")
	if err != nil {
		t.Fatal(err)
	}
	bin, ok = n.(*ast.Binary)
	if !ok || bin.Op != ast.OpImplies {
		t.Fatalf("expected top-level implies, got %#v", n)
	}
	if _, ok := bin.Left.(*ast.Identifier); !ok {
		t.Fatalf("expected right-associative grouping to leave a bare identifier on the left, got %#v", bin.Left)
	}
	right, ok = bin.Right.(*ast.Binary)
	if !ok || right.Op != ast.OpImplies {
		t.Fatalf("expected right operand to itself be an implies (right-associative), got %#v", bin.Right)
	}

	// is/as bind tighter than union, looser than additive.
	n, err = Parse("a + 1 is Integer")
	if err != nil {
		t.Fatal(err)
	}
	isExpr, ok := n.(*ast.IsExpr)
	if !ok {
		t.Fatalf("expected top-level is, got %#v", n)
	}
	if _, ok := isExpr.Expr.(*ast.Binary); !ok {
		t.Fatalf("expected is's operand to be the additive expression, got %#v", isExpr.Expr)
	}

	// postfix (dot, indexer) binds tighter than unary.
	n, err = Parse("-a.b")
	if err != nil {
		t.Fatal(err)
	}
	un, ok := n.(*ast.Unary)
	if !ok || un.Op != ast.UnaryMinus {
		t.Fatalf("expected top-level unary minus, got %#v", n)
	}
	if _, ok := un.Operand.(*ast.Invocation); !ok {
		t.Fatalf("expected unary operand to be the dot-chain a.b, got %#v", un.Operand)
	}
}

func TestKeywordAsIdentifier(t *testing.T) {
	// After a dot, any keyword serves as a plain member/function name.
	n, err := Parse("Patient.where")
	if err != nil {
		t.Fatalf("Patient.where should parse (where reused as a member name): %v", err)
	}
	inv, ok := n.(*ast.Invocation)
	if !ok {
		t.Fatalf("expected Invocation, got %#v", n)
	}
	id, ok := inv.Step.(*ast.Identifier)
	if !ok || id.Name != "where" {
		t.Fatalf("expected step identifier 'where', got %#v", inv.Step)
	}
	if !id.ReservedWord {
		t.Error("expected ReservedWord to be true for a keyword reused as an identifier")
	}

	// "not" is not a FHIRPath prefix operator, so it parses as a bare
	// identifier/function even at expression start.
	n, err = Parse("not()")
	if err != nil {
		t.Fatalf("not() should parse as a function call: %v", err)
	}
	if fc, ok := n.(*ast.FunctionCall); !ok || fc.Name != "not" {
		t.Fatalf("expected FunctionCall named 'not', got %#v", n)
	}
}

func TestSpansCoverWholeSource(t *testing.T) {
	src := "Patient.name.given"
	n, err := Parse(src)
	if err != nil {
		t.Fatal(err)
	}
	sp := n.Span()
	if sp.Start != 0 || sp.End != len(src) {
		t.Errorf("expected span [0,%d), got [%d,%d)", len(src), sp.Start, sp.End)
	}
}

func TestParseErrors(t *testing.T) {
	cases := []string{
		"Patient.name..",
		"Patient.name(",
		"(1 + 2",
		"items[0",
		"a is",
		"1,",
		"1 +",
	}
	for _, src := range cases {
		t.Run(src, func(t *testing.T) {
			if _, err := Parse(src); err == nil {
				t.Errorf("Parse(%q): expected an error", src)
			}
		})
	}
}

func TestTrailingCommaIsAnError(t *testing.T) {
	if _, err := Parse("f(1, 2,)"); err == nil {
		t.Error("expected trailing comma in argument list to be an error")
	}
}

func TestEmptyLiteral(t *testing.T) {
	n, err := Parse("{}")
	if err != nil {
		t.Fatal(err)
	}
	lit, ok := n.(*ast.Literal)
	if !ok || lit.Kind != ast.LitNull {
		t.Fatalf("expected null literal, got %#v", n)
	}
}

func TestIndexerOutOfBoundsIsStillValidSyntax(t *testing.T) {
	// The parser doesn't evaluate the index; any expression is syntactically fine.
	if _, err := Parse("items[-1]"); err != nil {
		t.Errorf("unexpected parse error: %v", err)
	}
}
