// Package compiler turns a parsed FHIRPath ast.Node into a tree of closures
// (compiler.Node) that evaluate directly against an eval.Context, without
// re-walking the AST on every evaluation. It owns the "special form"
// functions whose arguments are expressions rather than values — where,
// select, all, any, exists, repeat, aggregate, iif, defineVariable, trace,
// ofType — since those need access to the uncompiled argument AST to
// rebind $this/$index/$total per item.
package compiler

import (
	"fmt"

	"github.com/fhirpath-go/core/pkg/fhirpath/ast"
	"github.com/fhirpath-go/core/pkg/fhirpath/eval"
	"github.com/fhirpath-go/core/pkg/fhirpath/model"
	"github.com/fhirpath-go/core/pkg/fhirpath/types"
)

// Node is a compiled expression: a closure over its subtree ready to
// evaluate against a runtime Context. Eval returns, alongside the result,
// the context subsequent steps of the same dot-chain should see — identical
// to rt for every node except defineVariable, whose binding must reach
// operations chained after it.
type Node interface {
	Eval(rt *eval.Context) (types.Collection, *eval.Context, error)
	Span() ast.Span
}

// Options configures how Compile resolves names.
type Options struct {
	// Strict, when true, makes an unknown function a compile error (unless
	// AllowUnknownFunctions is set) instead of an empty result.
	Strict bool

	// AllowUnknownFunctions defers unknown function names to evaluation
	// time (where they yield empty) instead of failing compilation.
	AllowUnknownFunctions bool

	// Funcs is the function registry consulted for generic (eager-arg)
	// function calls. When nil, no generic function resolves; callers pass
	// funcs.GetRegistry() explicitly, which avoids an import cycle with
	// package funcs.
	Funcs eval.FuncRegistry

	// Provider supplies FHIR schema knowledge to is/as/ofType compilation
	// when static resolution is possible; defaults to model.BuiltinProvider.
	Provider model.Provider
}

func (o Options) provider() model.Provider {
	if o.Provider == nil {
		return model.BuiltinProvider{}
	}
	return o.Provider
}

type compiler struct {
	opts Options
}

// Compile lowers a parsed AST into an evaluable Node tree.
func Compile(n ast.Node, opts Options) (Node, error) {
	c := &compiler{opts: opts}
	return c.compile(n)
}

func (c *compiler) compile(n ast.Node) (Node, error) {
	switch v := n.(type) {
	case *ast.Literal:
		return c.compileLiteral(v)
	case *ast.Identifier:
		return &memberNode{sp: v.Span(), name: v.Name}, nil
	case *ast.Variable:
		return c.compileVariable(v)
	case *ast.ExternalConstant:
		return &envNode{sp: v.Span(), name: v.Name}, nil
	case *ast.ThisInvocation:
		return &thisNode{sp: v.Span()}, nil
	case *ast.IndexInvocation:
		return &indexNode{sp: v.Span()}, nil
	case *ast.TotalInvocation:
		return &totalNode{sp: v.Span()}, nil
	case *ast.Paren:
		return c.compile(v.Inner)
	case *ast.Indexer:
		return c.compileIndexer(v)
	case *ast.Unary:
		return c.compileUnary(v)
	case *ast.Binary:
		return c.compileBinary(v)
	case *ast.IsExpr:
		return c.compileIsExpr(v)
	case *ast.AsExpr:
		return c.compileAsExpr(v)
	case *ast.Invocation:
		return c.compileInvocation(v)
	case *ast.FunctionCall:
		return c.compileFunctionCall(v, nil)
	default:
		return nil, fmt.Errorf("compiler: unhandled AST node %T", n)
	}
}

func (c *compiler) compileLiteral(lit *ast.Literal) (Node, error) {
	switch lit.Kind {
	case ast.LitNull:
		return constNode{sp: lit.Span(), val: types.EmptyCollection}, nil
	case ast.LitBoolean:
		return constNode{sp: lit.Span(), val: types.Collection{types.NewBoolean(lit.Text == "true")}}, nil
	case ast.LitString:
		return constNode{sp: lit.Span(), val: types.Collection{types.NewString(lit.Text)}}, nil
	case ast.LitNumber:
		return c.compileNumberLiteral(lit)
	case ast.LitDate:
		d, err := types.NewDate(lit.Text)
		if err != nil {
			return nil, compileErr(lit.Span(), "invalid date literal: %v", err)
		}
		return constNode{sp: lit.Span(), val: types.Collection{d}}, nil
	case ast.LitTime:
		t, err := types.NewTime(lit.Text)
		if err != nil {
			return nil, compileErr(lit.Span(), "invalid time literal: %v", err)
		}
		return constNode{sp: lit.Span(), val: types.Collection{t}}, nil
	case ast.LitDateTime:
		dt, err := types.NewDateTime(lit.Text)
		if err != nil {
			return nil, compileErr(lit.Span(), "invalid datetime literal: %v", err)
		}
		return constNode{sp: lit.Span(), val: types.Collection{dt}}, nil
	case ast.LitQuantity:
		q, err := types.NewQuantity(lit.Text)
		if err != nil {
			return nil, compileErr(lit.Span(), "invalid quantity literal: %v", err)
		}
		return constNode{sp: lit.Span(), val: types.Collection{q}}, nil
	default:
		return nil, compileErr(lit.Span(), "unknown literal kind")
	}
}

func (c *compiler) compileNumberLiteral(lit *ast.Literal) (Node, error) {
	if containsDot(lit.Text) {
		d, err := types.NewDecimal(lit.Text)
		if err != nil {
			return nil, compileErr(lit.Span(), "invalid decimal literal: %v", err)
		}
		return constNode{sp: lit.Span(), val: types.Collection{d}}, nil
	}
	iv, err := parseInt64(lit.Text)
	if err != nil {
		return nil, compileErr(lit.Span(), "invalid integer literal: %v", err)
	}
	return constNode{sp: lit.Span(), val: types.Collection{types.NewInteger(iv)}}, nil
}

func containsDot(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			return true
		}
	}
	return false
}

func parseInt64(s string) (int64, error) {
	var v int64
	_, err := fmt.Sscanf(s, "%d", &v)
	return v, err
}

func compileErr(sp ast.Span, format string, args ...interface{}) *eval.EvalError {
	e := eval.NewEvalError(eval.ErrInvalidExpression, format, args...)
	return e.WithSpan(sp.Start, sp.End)
}
