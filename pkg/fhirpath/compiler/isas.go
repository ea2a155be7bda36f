package compiler

import (
	"github.com/fhirpath-go/core/pkg/fhirpath/ast"
	"github.com/fhirpath-go/core/pkg/fhirpath/eval"
	"github.com/fhirpath-go/core/pkg/fhirpath/model"
	"github.com/fhirpath-go/core/pkg/fhirpath/types"
)

func typeSpecifierName(t ast.TypeSpecifier) string { return t.Name }

// isNode is Expr is TypeSpecifier: requires a singleton operand and
// reports whether its runtime type matches, via the configured
// model.Provider.
type isNode struct {
	sp       ast.Span
	expr     Node
	typeName string
}

func (n *isNode) Span() ast.Span { return n.sp }

func (n *isNode) Eval(rt *eval.Context) (types.Collection, *eval.Context, error) {
	v, rt2, err := n.expr.Eval(rt)
	if err != nil {
		return nil, rt, err
	}
	if v.Empty() {
		return types.EmptyCollection, rt2, nil
	}
	if len(v) != 1 {
		return nil, rt, eval.SingletonError(len(v)).WithSpan(n.sp.Start, n.sp.End)
	}
	return typeMatchResult(rt2, v[0], n.typeName), rt2, nil
}

// asNode is Expr as TypeSpecifier: returns the operand unchanged if it
// matches, else empty.
type asNode struct {
	sp       ast.Span
	expr     Node
	typeName string
}

func (n *asNode) Span() ast.Span { return n.sp }

func (n *asNode) Eval(rt *eval.Context) (types.Collection, *eval.Context, error) {
	v, rt2, err := n.expr.Eval(rt)
	if err != nil {
		return nil, rt, err
	}
	if v.Empty() {
		return types.EmptyCollection, rt2, nil
	}
	if len(v) != 1 {
		return nil, rt, eval.SingletonError(len(v)).WithSpan(n.sp.Start, n.sp.End)
	}
	if isTrue(typeMatchResult(rt2, v[0], n.typeName)) {
		return v, rt2, nil
	}
	return types.EmptyCollection, rt2, nil
}

func typeMatchResult(rt *eval.Context, v types.Value, typeName string) types.Collection {
	actual := valueTypeName(v)
	if model.TypeMatches(actual, typeName) {
		return types.TrueCollection
	}
	if rt.ModelProvider().IsSubtypeOf(actual, typeName) {
		return types.TrueCollection
	}
	return types.FalseCollection
}

func valueTypeName(v types.Value) string {
	if obj, ok := v.(*types.ObjectValue); ok {
		return obj.Type()
	}
	return v.Type()
}

func (c *compiler) compileIsExpr(e *ast.IsExpr) (Node, error) {
	expr, err := c.compile(e.Expr)
	if err != nil {
		return nil, err
	}
	return &isNode{sp: e.Span(), expr: expr, typeName: typeSpecifierName(e.Type)}, nil
}

func (c *compiler) compileAsExpr(e *ast.AsExpr) (Node, error) {
	expr, err := c.compile(e.Expr)
	if err != nil {
		return nil, err
	}
	return &asNode{sp: e.Span(), expr: expr, typeName: typeSpecifierName(e.Type)}, nil
}
