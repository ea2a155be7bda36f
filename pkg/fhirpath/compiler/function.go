package compiler

import (
	"github.com/fhirpath-go/core/pkg/fhirpath/ast"
	"github.com/fhirpath-go/core/pkg/fhirpath/eval"
	"github.com/fhirpath-go/core/pkg/fhirpath/types"
)

// specialForms lists the functions the compiler lowers to bespoke nodes
// because their arguments are expressions evaluated per item (or, for
// defineVariable/trace/is/as/ofType, need the argument's own AST rather
// than its evaluated value) instead of eagerly-evaluated values.
var specialForms = map[string]bool{
	"where": true, "select": true, "all": true, "any": true, "exists": true,
	"repeat": true, "aggregate": true, "iif": true, "defineVariable": true,
	"trace": true, "ofType": true, "is": true, "as": true,
}

func (c *compiler) compileFunctionCall(fc *ast.FunctionCall, _ interface{}) (Node, error) {
	if specialForms[fc.Name] {
		return c.compileSpecialForm(fc)
	}
	return c.compileGenericCall(fc)
}

func (c *compiler) compileSpecialForm(fc *ast.FunctionCall) (Node, error) {
	switch fc.Name {
	case "where":
		return c.compileWhere(fc)
	case "select":
		return c.compileSelect(fc)
	case "all":
		return c.compileAll(fc)
	case "any":
		return c.compileExistsLike(fc, "any")
	case "exists":
		return c.compileExistsLike(fc, "exists")
	case "repeat":
		return c.compileRepeat(fc)
	case "aggregate":
		return c.compileAggregate(fc)
	case "iif":
		return c.compileIif(fc)
	case "defineVariable":
		return c.compileDefineVariable(fc)
	case "trace":
		return c.compileTrace(fc)
	case "ofType":
		return c.compileOfType(fc)
	case "is":
		return c.compileIsFunc(fc)
	case "as":
		return c.compileAsFunc(fc)
	default:
		return nil, compileErr(fc.Span(), "unhandled special form %q", fc.Name)
	}
}

func (c *compiler) compileGenericCall(fc *ast.FunctionCall) (Node, error) {
	args := make([]Node, len(fc.Args))
	for i, a := range fc.Args {
		compiled, err := c.compile(a)
		if err != nil {
			return nil, err
		}
		args[i] = compiled
	}

	def, ok := c.lookupFunc(fc.Name)
	if !ok {
		if c.opts.Strict && !c.opts.AllowUnknownFunctions {
			return nil, compileErr(fc.Span(), "unknown function %q", fc.Name)
		}
		return &unknownFuncNode{sp: fc.Span(), name: fc.Name, args: args, registry: c.opts.Funcs}, nil
	}
	if len(fc.Args) < def.MinArgs || (def.MaxArgs >= 0 && len(fc.Args) > def.MaxArgs) {
		return nil, compileErr(fc.Span(), "function %q expects %d-%d arguments, got %d",
			fc.Name, def.MinArgs, def.MaxArgs, len(fc.Args))
	}

	return &callNode{sp: fc.Span(), name: fc.Name, def: def, args: args}, nil
}

func (c *compiler) lookupFunc(name string) (eval.FuncDef, bool) {
	if c.opts.Funcs == nil {
		return eval.FuncDef{}, false
	}
	return c.opts.Funcs.Get(name)
}

// callNode evaluates a generic, eager-argument function against the
// current focus.
type callNode struct {
	sp   ast.Span
	name string
	def  eval.FuncDef
	args []Node
}

func (n *callNode) Span() ast.Span { return n.sp }

func (n *callNode) Eval(rt *eval.Context) (types.Collection, *eval.Context, error) {
	argVals := make([]interface{}, len(n.args))
	for i, a := range n.args {
		v, _, err := a.Eval(rt)
		if err != nil {
			return nil, rt, err
		}
		argVals[i] = v
	}
	result, err := n.def.Fn(rt, rt.This(), argVals)
	if err != nil {
		return nil, rt, wrapSpan(err, n.sp)
	}
	return result, rt, nil
}

// unknownFuncNode defers function resolution to evaluation time, used in
// permissive (non-strict) mode when the function wasn't found at compile
// time — e.g. one registered in the registry after compilation.
type unknownFuncNode struct {
	sp       ast.Span
	name     string
	args     []Node
	registry eval.FuncRegistry
}

func (n *unknownFuncNode) Span() ast.Span { return n.sp }

func (n *unknownFuncNode) Eval(rt *eval.Context) (types.Collection, *eval.Context, error) {
	var def eval.FuncDef
	var ok bool
	if n.registry != nil {
		def, ok = n.registry.Get(n.name)
	}
	if !ok {
		if rt.Strict() {
			return nil, rt, eval.FunctionNotFoundError(n.name).WithSpan(n.sp.Start, n.sp.End)
		}
		return types.EmptyCollection, rt, nil
	}
	argVals := make([]interface{}, len(n.args))
	for i, a := range n.args {
		v, _, err := a.Eval(rt)
		if err != nil {
			return nil, rt, err
		}
		argVals[i] = v
	}
	result, err := def.Fn(rt, rt.This(), argVals)
	if err != nil {
		return nil, rt, wrapSpan(err, n.sp)
	}
	return result, rt, nil
}
