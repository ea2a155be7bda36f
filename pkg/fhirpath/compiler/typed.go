package compiler

import (
	"fmt"
	"strings"

	"github.com/fhirpath-go/core/pkg/fhirpath/ast"
	"github.com/fhirpath-go/core/pkg/fhirpath/model"
)

// Severity tags a Diagnostic as blocking compilation or merely advisory:
// some findings (e.g. a type-mixed equality) are downgraded to warnings
// rather than failing compilation.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	if s == SeverityWarning {
		return "warning"
	}
	return "error"
}

// Diagnostic is one finding from the type-inference/semantic-validation
// pass: a severity, a human-readable message, and the source span
// responsible.
type Diagnostic struct {
	Severity Severity
	Message  string
	Span     ast.Span
}

// TypedNode wraps an ast.Node with its inferred static type and
// cardinality, plus its already-typed children, so a caller can walk the
// decorated tree instead of the plain AST.
type TypedNode struct {
	Node        ast.Node
	Type        model.Type
	Cardinality model.Cardinality
	Children    []*TypedNode
}

// typedFocus is the (type, cardinality) pair propagated down the tree as
// $this changes at each navigation step.
type typedFocus struct {
	typ  model.Type
	card model.Cardinality
}

type inferrer struct {
	provider model.Provider
	diags    []Diagnostic
}

// InferTypes builds the typed AST for n given a schema provider and the
// static type of the input focus, returning any diagnostics raised along
// the way. provider may be nil, in which case model.BuiltinProvider{} is
// used.
func InferTypes(n ast.Node, provider model.Provider, root model.Type) (*TypedNode, []Diagnostic) {
	if provider == nil {
		provider = model.BuiltinProvider{}
	}
	inf := &inferrer{provider: provider}
	tn := inf.infer(n, typedFocus{typ: root, card: model.CardinalitySingle})
	return tn, inf.diags
}

// Validate runs the type-inference pass purely for its diagnostics,
// discarding the typed tree.
func Validate(n ast.Node, provider model.Provider, root model.Type) []Diagnostic {
	_, diags := InferTypes(n, provider, root)
	return diags
}

func (inf *inferrer) errorf(sp ast.Span, format string, args ...interface{}) {
	inf.diags = append(inf.diags, Diagnostic{Severity: SeverityError, Message: fmt.Sprintf(format, args...), Span: sp})
}

func (inf *inferrer) warnf(sp ast.Span, format string, args ...interface{}) {
	inf.diags = append(inf.diags, Diagnostic{Severity: SeverityWarning, Message: fmt.Sprintf(format, args...), Span: sp})
}

func (inf *inferrer) infer(n ast.Node, focus typedFocus) *TypedNode {
	switch v := n.(type) {
	case *ast.Literal:
		return inf.leaf(v, literalType(v))
	case *ast.Identifier:
		return inf.inferIdentifier(v, focus)
	case *ast.Variable:
		return inf.inferVariable(v, focus)
	case *ast.ExternalConstant:
		return inf.leaf(v, typedFocus{typ: model.Type{Kind: model.Any}, card: model.CardinalityMany})
	case *ast.ThisInvocation:
		return inf.leaf(v, focus)
	case *ast.IndexInvocation:
		return inf.leaf(v, typedFocus{typ: model.Type{Kind: model.Integer}, card: model.CardinalitySingle})
	case *ast.TotalInvocation:
		return inf.leaf(v, typedFocus{typ: model.Type{Kind: model.Any}, card: model.CardinalityOptional})
	case *ast.Paren:
		inner := inf.infer(v.Inner, focus)
		return &TypedNode{Node: v, Type: inner.Type, Cardinality: inner.Cardinality, Children: []*TypedNode{inner}}
	case *ast.Indexer:
		return inf.inferIndexer(v, focus)
	case *ast.Unary:
		return inf.inferUnary(v, focus)
	case *ast.Binary:
		return inf.inferBinary(v, focus)
	case *ast.IsExpr:
		return inf.inferIs(v, focus)
	case *ast.AsExpr:
		return inf.inferAs(v, focus)
	case *ast.Invocation:
		return inf.inferInvocation(v, focus)
	case *ast.FunctionCall:
		return inf.inferFunctionCall(v, focus)
	default:
		return inf.leaf(n, typedFocus{typ: model.Type{Kind: model.Any}, card: model.CardinalityMany})
	}
}

func (inf *inferrer) leaf(n ast.Node, f typedFocus) *TypedNode {
	return &TypedNode{Node: n, Type: f.typ, Cardinality: f.card}
}

func literalType(lit *ast.Literal) typedFocus {
	single := model.CardinalitySingle
	switch lit.Kind {
	case ast.LitNull:
		return typedFocus{typ: model.Type{Kind: model.Empty}, card: model.CardinalityOptional}
	case ast.LitBoolean:
		return typedFocus{typ: model.Type{Kind: model.Boolean}, card: single}
	case ast.LitString:
		return typedFocus{typ: model.Type{Kind: model.String}, card: single}
	case ast.LitNumber:
		if strings.Contains(lit.Text, ".") {
			return typedFocus{typ: model.Type{Kind: model.Decimal}, card: single}
		}
		return typedFocus{typ: model.Type{Kind: model.Integer}, card: single}
	case ast.LitDate:
		return typedFocus{typ: model.Type{Kind: model.Date}, card: single}
	case ast.LitTime:
		return typedFocus{typ: model.Type{Kind: model.Time}, card: single}
	case ast.LitDateTime:
		return typedFocus{typ: model.Type{Kind: model.DateTime}, card: single}
	case ast.LitQuantity:
		return typedFocus{typ: model.Type{Kind: model.Quantity}, card: single}
	default:
		return typedFocus{typ: model.Type{Kind: model.Any}, card: single}
	}
}

// inferIdentifier mirrors the compiler's memberNode/navigateMember
// resolution order: a resource-type guard first, then an ordinary field
// access the provider has no static schema for (so it widens to Any).
func (inf *inferrer) inferIdentifier(id *ast.Identifier, focus typedFocus) *TypedNode {
	if focus.typ.Kind == model.Resource && inf.provider.IsSubtypeOf(focus.typ.ResourceName, id.Name) {
		return inf.leaf(id, typedFocus{
			typ:  model.Type{Kind: model.Resource, ResourceName: focus.typ.ResourceName},
			card: model.CardinalitySingle,
		})
	}
	if focus.typ.Kind == model.Any && looksLikeResourceType(id.Name) {
		// Root-level bare identifier used as the implicit resource-type guard,
		// e.g. `Patient.name` with no declared root type.
		return inf.leaf(id, typedFocus{
			typ:  model.Type{Kind: model.Resource, ResourceName: id.Name},
			card: model.CardinalitySingle,
		})
	}
	return inf.leaf(id, typedFocus{typ: model.Type{Kind: model.Any}, card: model.CardinalityMany})
}

func looksLikeResourceType(name string) bool {
	return name != "" && name[0] >= 'A' && name[0] <= 'Z'
}

func (inf *inferrer) inferVariable(v *ast.Variable, focus typedFocus) *TypedNode {
	switch v.Name {
	case "this":
		return inf.leaf(v, focus)
	case "index":
		return inf.leaf(v, typedFocus{typ: model.Type{Kind: model.Integer}, card: model.CardinalitySingle})
	case "total":
		return inf.leaf(v, typedFocus{typ: model.Type{Kind: model.Any}, card: model.CardinalityOptional})
	default:
		return inf.leaf(v, typedFocus{typ: model.Type{Kind: model.Any}, card: model.CardinalityMany})
	}
}

func (inf *inferrer) inferInvocation(n *ast.Invocation, focus typedFocus) *TypedNode {
	target := inf.infer(n.Target, focus)
	stepFocus := typedFocus{typ: target.Type, card: target.Cardinality}
	step := inf.infer(n.Step, stepFocus)
	return &TypedNode{Node: n, Type: step.Type, Cardinality: step.Cardinality, Children: []*TypedNode{target, step}}
}

func (inf *inferrer) inferIndexer(n *ast.Indexer, focus typedFocus) *TypedNode {
	target := inf.infer(n.Target, focus)
	idx := inf.infer(n.Index, focus)
	if idx.Type.Kind != model.Any && idx.Type.Kind != model.Integer {
		inf.errorf(n.Index.Span(), "indexer expects an Integer, got %s", kindName(idx.Type.Kind))
	}
	return &TypedNode{
		Node: n, Type: target.Type, Cardinality: model.CardinalityOptional,
		Children: []*TypedNode{target, idx},
	}
}

func (inf *inferrer) inferUnary(n *ast.Unary, focus typedFocus) *TypedNode {
	operand := inf.infer(n.Operand, focus)
	if !isNumericKind(operand.Type.Kind) && operand.Type.Kind != model.Any {
		inf.errorf(n.Span(), "unary %s requires a numeric operand, got %s", unaryOpText(n.Op), kindName(operand.Type.Kind))
	}
	return &TypedNode{Node: n, Type: operand.Type, Cardinality: operand.Cardinality, Children: []*TypedNode{operand}}
}

func unaryOpText(op ast.UnaryOp) string {
	if op == ast.UnaryMinus {
		return "-"
	}
	return "+"
}

func isNumericKind(k model.Kind) bool { return k == model.Integer || k == model.Decimal || k == model.Quantity }

func kindName(k model.Kind) string {
	switch k {
	case model.Any:
		return "Any"
	case model.Boolean:
		return "Boolean"
	case model.Integer:
		return "Integer"
	case model.Decimal:
		return "Decimal"
	case model.String:
		return "String"
	case model.Date:
		return "Date"
	case model.Time:
		return "Time"
	case model.DateTime:
		return "DateTime"
	case model.Quantity:
		return "Quantity"
	case model.Resource:
		return "Resource"
	case model.Choice:
		return "Choice"
	case model.Empty:
		return "Empty"
	default:
		return "Unknown"
	}
}

func (inf *inferrer) inferBinary(n *ast.Binary, focus typedFocus) *TypedNode {
	left := inf.infer(n.Left, focus)
	right := inf.infer(n.Right, focus)
	children := []*TypedNode{left, right}
	resultType, resultCard := inf.binaryResultType(n, left, right)
	return &TypedNode{Node: n, Type: resultType, Cardinality: resultCard, Children: children}
}

func (inf *inferrer) binaryResultType(n *ast.Binary, left, right *TypedNode) (model.Type, model.Cardinality) {
	boolSingle := model.Type{Kind: model.Boolean}
	optional := model.CardinalityOptional
	single := model.CardinalitySingle

	switch n.Op {
	case ast.OpAdd, ast.OpSub, ast.OpMul, ast.OpDiv:
		return inf.numericOrStringResult(n, left, right)
	case ast.OpDivInt, ast.OpMod:
		inf.requireNumeric(n, left, right)
		return model.Type{Kind: model.Integer}, optional
	case ast.OpConcat:
		return model.Type{Kind: model.String}, single
	case ast.OpUnion:
		return model.Widen(left.Type, right.Type), model.CardinalityMany
	case ast.OpLt, ast.OpGt, ast.OpLte, ast.OpGte:
		inf.requireComparable(n, left, right)
		return boolSingle, optional
	case ast.OpEq, ast.OpNeq, ast.OpEquiv, ast.OpNEquiv:
		inf.warnIncompatibleEquality(n, left, right)
		return boolSingle, optional
	case ast.OpIn, ast.OpContains:
		return boolSingle, single
	case ast.OpAnd, ast.OpOr, ast.OpXor, ast.OpImplies:
		return boolSingle, optional
	default:
		return model.Type{Kind: model.Any}, model.CardinalityMany
	}
}

func (inf *inferrer) numericOrStringResult(n *ast.Binary, left, right *TypedNode) (model.Type, model.Cardinality) {
	if left.Type.Kind == model.String && right.Type.Kind == model.String && n.Op == ast.OpAdd {
		return model.Type{Kind: model.String}, model.CardinalitySingle
	}
	if left.Type.Kind == model.Any || right.Type.Kind == model.Any {
		return model.Type{Kind: model.Any}, model.CardinalityOptional
	}
	if !isNumericKind(left.Type.Kind) || !isNumericKind(right.Type.Kind) {
		inf.errorf(n.Span(), "operator %q is not defined for %s and %s",
			binaryOpText(n.Op), kindName(left.Type.Kind), kindName(right.Type.Kind))
		return model.Type{Kind: model.Any}, model.CardinalityOptional
	}
	if left.Type.Kind == model.Decimal || right.Type.Kind == model.Decimal {
		return model.Type{Kind: model.Decimal}, model.CardinalityOptional
	}
	if left.Type.Kind == model.Quantity || right.Type.Kind == model.Quantity {
		return model.Type{Kind: model.Quantity}, model.CardinalityOptional
	}
	return model.Type{Kind: model.Integer}, model.CardinalityOptional
}

func (inf *inferrer) requireNumeric(n *ast.Binary, left, right *TypedNode) {
	if left.Type.Kind == model.Any || right.Type.Kind == model.Any {
		return
	}
	if !isNumericKind(left.Type.Kind) || !isNumericKind(right.Type.Kind) {
		inf.errorf(n.Span(), "operator %q is not defined for %s and %s",
			binaryOpText(n.Op), kindName(left.Type.Kind), kindName(right.Type.Kind))
	}
}

func (inf *inferrer) requireComparable(n *ast.Binary, left, right *TypedNode) {
	if left.Type.Kind == model.Any || right.Type.Kind == model.Any {
		return
	}
	comparable := map[model.Kind]bool{
		model.Integer: true, model.Decimal: true, model.String: true,
		model.Date: true, model.Time: true, model.DateTime: true, model.Quantity: true,
	}
	if !comparable[left.Type.Kind] || !comparable[right.Type.Kind] || left.Type.Kind != right.Type.Kind {
		inf.warnf(n.Span(), "comparing %s and %s may always yield empty",
			kindName(left.Type.Kind), kindName(right.Type.Kind))
	}
}

// warnIncompatibleEquality treats a type-mixed equality as a warning, not
// a compile error: FHIRPath equality between incompatible types evaluates
// to empty rather than failing, so the diagnostic is only a hint.
func (inf *inferrer) warnIncompatibleEquality(n *ast.Binary, left, right *TypedNode) {
	if left.Type.Kind == model.Any || right.Type.Kind == model.Any {
		return
	}
	if left.Type.Kind == model.Empty || right.Type.Kind == model.Empty {
		return
	}
	if left.Type.Kind != right.Type.Kind {
		inf.warnf(n.Span(), "comparing %s and %s always yields empty per FHIRPath's strict equality",
			kindName(left.Type.Kind), kindName(right.Type.Kind))
	}
}

func binaryOpText(op ast.BinaryOp) string {
	switch op {
	case ast.OpMul:
		return "*"
	case ast.OpDiv:
		return "/"
	case ast.OpDivInt:
		return "div"
	case ast.OpMod:
		return "mod"
	case ast.OpAdd:
		return "+"
	case ast.OpSub:
		return "-"
	case ast.OpConcat:
		return "&"
	case ast.OpUnion:
		return "|"
	default:
		return "?"
	}
}

func (inf *inferrer) inferIs(n *ast.IsExpr, focus typedFocus) *TypedNode {
	expr := inf.infer(n.Expr, focus)
	if n.Type.Name == "" {
		inf.errorf(n.Span(), "type specifier expected after 'is'")
	}
	return &TypedNode{
		Node: n, Type: model.Type{Kind: model.Boolean}, Cardinality: model.CardinalitySingle,
		Children: []*TypedNode{expr},
	}
}

func (inf *inferrer) inferAs(n *ast.AsExpr, focus typedFocus) *TypedNode {
	expr := inf.infer(n.Expr, focus)
	if n.Type.Name == "" {
		inf.errorf(n.Span(), "type specifier expected after 'as'")
	}
	resolved := resolveTypeSpecifier(n.Type)
	return &TypedNode{
		Node: n, Type: model.Narrow(expr.Type, resolved), Cardinality: model.CardinalityOptional,
		Children: []*TypedNode{expr},
	}
}

// resolveTypeSpecifier maps a dotted type name to a lattice Type, treating
// anything capitalized and unrecognized as a resource name (System./FHIR.
// namespace prefixes are stripped first).
func resolveTypeSpecifier(t ast.TypeSpecifier) model.Type {
	name := t.Name
	switch strings.ToLower(name) {
	case "boolean":
		return model.Type{Kind: model.Boolean}
	case "integer":
		return model.Type{Kind: model.Integer}
	case "decimal":
		return model.Type{Kind: model.Decimal}
	case "string":
		return model.Type{Kind: model.String}
	case "date":
		return model.Type{Kind: model.Date}
	case "time":
		return model.Type{Kind: model.Time}
	case "datetime", "instant":
		return model.Type{Kind: model.DateTime}
	case "quantity":
		return model.Type{Kind: model.Quantity}
	default:
		return model.Type{Kind: model.Resource, ResourceName: name}
	}
}

// functionReturnKinds gives the static return Kind for functions whose
// result type doesn't depend on their argument. Of the functions absent
// here, first/last/single keep the input focus's type and all others
// widen to Any.
var functionReturnKinds = map[string]model.Kind{
	"exists": model.Boolean, "empty": model.Boolean, "not": model.Boolean,
	"allTrue": model.Boolean, "anyTrue": model.Boolean, "allFalse": model.Boolean, "anyFalse": model.Boolean,
	"all": model.Boolean, "any": model.Boolean, "isDistinct": model.Boolean,
	"subsetOf": model.Boolean, "supersetOf": model.Boolean, "hasValue": model.Boolean,
	"convertsToInteger": model.Boolean, "convertsToDecimal": model.Boolean,
	"convertsToString": model.Boolean, "convertsToBoolean": model.Boolean,
	"convertsToDate": model.Boolean, "convertsToDateTime": model.Boolean,
	"convertsToTime": model.Boolean, "convertsToQuantity": model.Boolean,
	"count": model.Integer, "length": model.Integer, "precision": model.Integer, "indexOf": model.Integer,
	"toInteger": model.Integer,
	"toDecimal":  model.Decimal, "abs": model.Decimal, "ceiling": model.Decimal, "floor": model.Decimal,
	"round": model.Decimal, "truncate": model.Decimal, "sqrt": model.Decimal, "ln": model.Decimal,
	"log": model.Decimal, "exp": model.Decimal, "power": model.Decimal, "sum": model.Decimal, "avg": model.Decimal,
	"toString": model.String, "upper": model.String, "lower": model.String, "trim": model.String,
	"substring": model.String, "replace": model.String, "join": model.String, "type": model.String,
	"toBoolean": model.Boolean, "contains": model.Boolean, "startsWith": model.Boolean, "endsWith": model.Boolean,
	"matches": model.Boolean,
	"toDate":  model.Date, "toDateTime": model.DateTime, "toTime": model.Time,
	"now": model.DateTime, "today": model.Date, "timeOfDay": model.Time,
	"toQuantity": model.Quantity,
}

func (inf *inferrer) inferFunctionCall(fc *ast.FunctionCall, focus typedFocus) *TypedNode {
	children := make([]*TypedNode, 0, len(fc.Args)+1)
	for _, a := range fc.Args {
		// Expression arguments (where/select/...) see the input's element
		// type as their own $this; value arguments are typed against the
		// enclosing focus. The distinction doesn't change the diagnostics
		// this pass raises, so both are typed against focus here.
		children = append(children, inf.infer(a, focus))
	}

	if kind, ok := functionReturnKinds[fc.Name]; ok {
		return &TypedNode{Node: fc, Type: model.Type{Kind: kind}, Cardinality: model.CardinalityOptional, Children: children}
	}

	switch fc.Name {
	case "first", "last", "single":
		return &TypedNode{Node: fc, Type: focus.typ, Cardinality: model.CardinalityOptional, Children: children}
	case "where", "select", "tail", "skip", "take", "distinct", "repeat", "flatten",
		"union", "combine", "intersect", "exclude", "children", "descendants", "ofType":
		return &TypedNode{Node: fc, Type: model.Type{Kind: model.Any}, Cardinality: model.CardinalityMany, Children: children}
	default:
		return &TypedNode{Node: fc, Type: model.Type{Kind: model.Any}, Cardinality: model.CardinalityMany, Children: children}
	}
}
