// Package ast defines the FHIRPath abstract syntax tree produced by the
// parser and consumed by the compiler.
package ast

// Span is the [Start, End) byte range in source a node was parsed from.
type Span struct {
	Start int
	End   int
}

// Node is implemented by every AST node.
type Node interface {
	Span() Span
	node()
}

type base struct {
	S Span
}

func (b base) Span() Span { return b.S }
func (base) node()        {}

// LiteralKind tags the kind of constant a Literal node holds.
type LiteralKind int

const (
	LitNull LiteralKind = iota
	LitBoolean
	LitString
	LitNumber
	LitDate
	LitTime
	LitDateTime
	LitQuantity
)

// Literal is a constant: {}, true/false, 'str', 42, 1.5, @2020, @T10:00,
// @2020-01-01T10:00:00Z, or a quantity like `4 days`.
type Literal struct {
	base
	Kind LiteralKind
	// Text carries the literal's decoded textual form:
	//   LitBoolean: "true" or "false"
	//   LitString:  the decoded string contents
	//   LitNumber:  the raw numeral, e.g. "1.50"
	//   LitDate/LitTime/LitDateTime: the decoded @-literal body
	//   LitQuantity: "<number> <unit>", unit either a bare word or 'ucum code'
	Text string
}

// Identifier is a bare name: a member access step, a function name, or a
// type-specifier segment. ReservedWord records whether the lexer tagged this
// text as a keyword, so the compiler can still treat it as a plain member
// name when the parser's context class allowed that.
type Identifier struct {
	base
	Name         string
	ReservedWord bool
}

// Variable is a special variable reference: $this, $index, $total.
type Variable struct {
	base
	Name string
}

// ExternalConstant is an environment reference: %resource, %context,
// %'quoted name', or a user-supplied %variable.
type ExternalConstant struct {
	base
	Name string
}

// Invocation is a dot-chain step: Target.Step (e.g. Patient.name.given).
type Invocation struct {
	base
	Target Node
	Step   Node // Identifier, FunctionCall, ThisInvocation, IndexInvocation, TotalInvocation
}

// ThisInvocation is the bare keyword $this used as a step, equivalent to the
// implicit "." in a filter. Distinguished from Variable so the printer can
// round-trip `$this` vs a user `$foo` the same way the parser saw them.
type ThisInvocation struct{ base }

// IndexInvocation is the bare keyword $index used as a step.
type IndexInvocation struct{ base }

// TotalInvocation is the bare keyword $total used as a step (aggregate()'s accumulator).
type TotalInvocation struct{ base }

// FunctionCall is name(arg, arg, ...), either bare or as an Invocation step.
type FunctionCall struct {
	base
	Name string
	Args []Node
}

// Indexer is Target[Index].
type Indexer struct {
	base
	Target Node
	Index  Node
}

// UnaryOp tags the operator of a Unary node.
type UnaryOp int

const (
	UnaryPlus UnaryOp = iota
	UnaryMinus
)

// Unary is a polarity expression: +Expr or -Expr.
type Unary struct {
	base
	Op      UnaryOp
	Operand Node
}

// BinaryOp tags the operator of a Binary node.
type BinaryOp int

const (
	OpMul BinaryOp = iota
	OpDiv
	OpDivInt // div
	OpMod    // mod
	OpAdd
	OpSub
	OpConcat // &
	OpUnion  // |
	OpLt
	OpGt
	OpLte
	OpGte
	OpEq
	OpNeq
	OpEquiv
	OpNEquiv
	OpIn
	OpContains
	OpAnd
	OpOr
	OpXor
	OpImplies
)

// Binary is a two-operand operator expression.
type Binary struct {
	base
	Op          BinaryOp
	Left, Right Node
}

// TypeSpecifier names a type for is/as/ofType, optionally namespace-qualified
// (e.g. FHIR.Patient or System.String).
type TypeSpecifier struct {
	base
	Namespace string // "", "System", or "FHIR"
	Name      string
}

// IsExpr is Expr is TypeSpecifier.
type IsExpr struct {
	base
	Expr Node
	Type TypeSpecifier
}

// AsExpr is Expr as TypeSpecifier.
type AsExpr struct {
	base
	Expr Node
	Type TypeSpecifier
}

// Paren wraps a parenthesized subexpression so the printer can round-trip
// grouping that doesn't affect precedence-derived structure.
type Paren struct {
	base
	Inner Node
}

// Constructors. The parser builds nodes through these rather than struct
// literals, since the span-carrying base embed is unexported.

func NewLiteral(sp Span, kind LiteralKind, text string) *Literal {
	return &Literal{base: base{S: sp}, Kind: kind, Text: text}
}

func NewIdentifier(sp Span, name string, reserved bool) *Identifier {
	return &Identifier{base: base{S: sp}, Name: name, ReservedWord: reserved}
}

func NewVariable(sp Span, name string) *Variable {
	return &Variable{base: base{S: sp}, Name: name}
}

func NewExternalConstant(sp Span, name string) *ExternalConstant {
	return &ExternalConstant{base: base{S: sp}, Name: name}
}

func NewInvocation(sp Span, target, step Node) *Invocation {
	return &Invocation{base: base{S: sp}, Target: target, Step: step}
}

func NewThisInvocation(sp Span) *ThisInvocation { return &ThisInvocation{base{S: sp}} }

func NewIndexInvocation(sp Span) *IndexInvocation { return &IndexInvocation{base{S: sp}} }

func NewTotalInvocation(sp Span) *TotalInvocation { return &TotalInvocation{base{S: sp}} }

func NewFunctionCall(sp Span, name string, args []Node) *FunctionCall {
	return &FunctionCall{base: base{S: sp}, Name: name, Args: args}
}

func NewIndexer(sp Span, target, index Node) *Indexer {
	return &Indexer{base: base{S: sp}, Target: target, Index: index}
}

func NewUnary(sp Span, op UnaryOp, operand Node) *Unary {
	return &Unary{base: base{S: sp}, Op: op, Operand: operand}
}

func NewBinary(sp Span, op BinaryOp, left, right Node) *Binary {
	return &Binary{base: base{S: sp}, Op: op, Left: left, Right: right}
}

func NewIsExpr(sp Span, expr Node, t TypeSpecifier) *IsExpr {
	return &IsExpr{base: base{S: sp}, Expr: expr, Type: t}
}

func NewAsExpr(sp Span, expr Node, t TypeSpecifier) *AsExpr {
	return &AsExpr{base: base{S: sp}, Expr: expr, Type: t}
}

func NewParen(sp Span, inner Node) *Paren {
	return &Paren{base: base{S: sp}, Inner: inner}
}
