package compiler

import (
	"github.com/fhirpath-go/core/pkg/fhirpath/ast"
	"github.com/fhirpath-go/core/pkg/fhirpath/eval"
	"github.com/fhirpath-go/core/pkg/fhirpath/types"
)

// iterate runs body once per item of input with $this/$index rebound,
// checking cancellation every 100 items and the collection-size limit up
// front; shared by where/select/all/any/exists/repeat.
func iterate(rt *eval.Context, input types.Collection, sp ast.Span, body func(rt *eval.Context, item types.Value, i int) error) error {
	if err := rt.CheckCollectionSize(input); err != nil {
		return err
	}
	for i, item := range input {
		if i%100 == 0 {
			if err := rt.CheckCancellation(); err != nil {
				return err
			}
		}
		itemRt := rt.WithThis(types.Collection{item}).WithIndex(i)
		if err := body(itemRt, item, i); err != nil {
			return wrapSpan(err, sp)
		}
	}
	return nil
}

// whereNode filters the input, keeping items whose criteria evaluates to
// boolean true.
type whereNode struct {
	sp       ast.Span
	criteria Node
}

func (n *whereNode) Span() ast.Span { return n.sp }

func (n *whereNode) Eval(rt *eval.Context) (types.Collection, *eval.Context, error) {
	input := rt.This()
	result := types.Collection{}
	err := iterate(rt, input, n.sp, func(itemRt *eval.Context, item types.Value, i int) error {
		col, _, err := n.criteria.Eval(itemRt)
		if err != nil {
			return err
		}
		if isTrue(col) {
			result = append(result, item)
		}
		return nil
	})
	if err != nil {
		return nil, rt, err
	}
	return result, rt, nil
}

func (c *compiler) compileWhere(fc *ast.FunctionCall) (Node, error) {
	if len(fc.Args) != 1 {
		return nil, compileErr(fc.Span(), "where() expects 1 argument, got %d", len(fc.Args))
	}
	criteria, err := c.compile(fc.Args[0])
	if err != nil {
		return nil, err
	}
	return &whereNode{sp: fc.Span(), criteria: criteria}, nil
}

// selectNode projects each input item through proj, flattening the results.
type selectNode struct {
	sp   ast.Span
	proj Node
}

func (n *selectNode) Span() ast.Span { return n.sp }

func (n *selectNode) Eval(rt *eval.Context) (types.Collection, *eval.Context, error) {
	input := rt.This()
	result := types.Collection{}
	err := iterate(rt, input, n.sp, func(itemRt *eval.Context, item types.Value, i int) error {
		col, _, err := n.proj.Eval(itemRt)
		if err != nil {
			return err
		}
		result = append(result, col...)
		return rt.CheckCollectionSize(result)
	})
	if err != nil {
		return nil, rt, err
	}
	return result, rt, nil
}

func (c *compiler) compileSelect(fc *ast.FunctionCall) (Node, error) {
	if len(fc.Args) != 1 {
		return nil, compileErr(fc.Span(), "select() expects 1 argument, got %d", len(fc.Args))
	}
	proj, err := c.compile(fc.Args[0])
	if err != nil {
		return nil, err
	}
	return &selectNode{sp: fc.Span(), proj: proj}, nil
}

// allNode is all(expr): true, vacuously, over an empty collection;
// otherwise true only if every item's criteria is true.
type allNode struct {
	sp       ast.Span
	criteria Node
}

func (n *allNode) Span() ast.Span { return n.sp }

func (n *allNode) Eval(rt *eval.Context) (types.Collection, *eval.Context, error) {
	input := rt.This()
	if input.Empty() {
		return types.TrueCollection, rt, nil
	}
	result := true
	err := iterate(rt, input, n.sp, func(itemRt *eval.Context, item types.Value, i int) error {
		col, _, err := n.criteria.Eval(itemRt)
		if err != nil {
			return err
		}
		if !isTrue(col) {
			result = false
		}
		return nil
	})
	if err != nil {
		return nil, rt, err
	}
	if result {
		return types.TrueCollection, rt, nil
	}
	return types.FalseCollection, rt, nil
}

func (c *compiler) compileAll(fc *ast.FunctionCall) (Node, error) {
	if len(fc.Args) != 1 {
		return nil, compileErr(fc.Span(), "all() expects 1 argument, got %d", len(fc.Args))
	}
	criteria, err := c.compile(fc.Args[0])
	if err != nil {
		return nil, err
	}
	return &allNode{sp: fc.Span(), criteria: criteria}, nil
}

// existsLikeNode implements both exists([expr]) and any(expr): true if any
// item (optionally filtered by criteria) is present / satisfies criteria.
// any requires criteria; exists's is optional and falls back to a plain
// non-empty test.
type existsLikeNode struct {
	sp       ast.Span
	criteria Node // nil for bare exists()
}

func (n *existsLikeNode) Span() ast.Span { return n.sp }

func (n *existsLikeNode) Eval(rt *eval.Context) (types.Collection, *eval.Context, error) {
	input := rt.This()
	if n.criteria == nil {
		if input.Empty() {
			return types.FalseCollection, rt, nil
		}
		return types.TrueCollection, rt, nil
	}
	found := false
	err := iterate(rt, input, n.sp, func(itemRt *eval.Context, item types.Value, i int) error {
		if found {
			return nil
		}
		col, _, err := n.criteria.Eval(itemRt)
		if err != nil {
			return err
		}
		if isTrue(col) {
			found = true
		}
		return nil
	})
	if err != nil {
		return nil, rt, err
	}
	if found {
		return types.TrueCollection, rt, nil
	}
	return types.FalseCollection, rt, nil
}

func (c *compiler) compileExistsLike(fc *ast.FunctionCall, name string) (Node, error) {
	if name == "any" {
		if len(fc.Args) != 1 {
			return nil, compileErr(fc.Span(), "any() expects 1 argument, got %d", len(fc.Args))
		}
	} else if len(fc.Args) > 1 {
		return nil, compileErr(fc.Span(), "exists() expects 0-1 arguments, got %d", len(fc.Args))
	}
	if len(fc.Args) == 0 {
		return &existsLikeNode{sp: fc.Span()}, nil
	}
	criteria, err := c.compile(fc.Args[0])
	if err != nil {
		return nil, err
	}
	return &existsLikeNode{sp: fc.Span(), criteria: criteria}, nil
}

// repeatNode repeatedly applies step to the frontier of newly-discovered
// items until a pass yields nothing new, bounded by maxRepeatIterations as
// a defensive guard against an infinite traversal.
type repeatNode struct {
	sp   ast.Span
	step Node
}

func (n *repeatNode) Span() ast.Span { return n.sp }

const defaultMaxRepeatIterations = 4096

func (n *repeatNode) Eval(rt *eval.Context) (types.Collection, *eval.Context, error) {
	maxIter := rt.GetLimit("maxRepeatIterations")
	if maxIter <= 0 {
		maxIter = defaultMaxRepeatIterations
	}

	seen := map[types.Value]bool{}
	result := types.Collection{}
	frontier := rt.This()

	for iter := 0; len(frontier) > 0 && iter < maxIter; iter++ {
		if err := rt.CheckCancellation(); err != nil {
			return nil, rt, wrapSpan(err, n.sp)
		}
		var next types.Collection
		err := iterate(rt, frontier, n.sp, func(itemRt *eval.Context, item types.Value, i int) error {
			col, _, err := n.step.Eval(itemRt)
			if err != nil {
				return err
			}
			for _, v := range col {
				if seen[v] {
					continue
				}
				seen[v] = true
				result = append(result, v)
				next = append(next, v)
			}
			return nil
		})
		if err != nil {
			return nil, rt, err
		}
		frontier = next
	}

	return result, rt, nil
}

func (c *compiler) compileRepeat(fc *ast.FunctionCall) (Node, error) {
	if len(fc.Args) != 1 {
		return nil, compileErr(fc.Span(), "repeat() expects 1 argument, got %d", len(fc.Args))
	}
	step, err := c.compile(fc.Args[0])
	if err != nil {
		return nil, err
	}
	return &repeatNode{sp: fc.Span(), step: step}, nil
}

// aggregateNode implements aggregate(expr[, init]): expr is evaluated once
// per item with $this/$index/$total bound, its result becoming the next
// $total.
type aggregateNode struct {
	sp   ast.Span
	expr Node
	init Node // nil when no initial value supplied
}

func (n *aggregateNode) Span() ast.Span { return n.sp }

func (n *aggregateNode) Eval(rt *eval.Context) (types.Collection, *eval.Context, error) {
	var total types.Value
	if n.init != nil {
		initVal, _, err := n.init.Eval(rt)
		if err != nil {
			return nil, rt, err
		}
		if len(initVal) == 1 {
			total = initVal[0]
		}
	}

	input := rt.This()
	if err := rt.CheckCollectionSize(input); err != nil {
		return nil, rt, err
	}
	for i, item := range input {
		if i%100 == 0 {
			if err := rt.CheckCancellation(); err != nil {
				return nil, rt, wrapSpan(err, n.sp)
			}
		}
		itemRt := rt.WithThis(types.Collection{item}).WithIndex(i).WithTotal(total)
		col, _, err := n.expr.Eval(itemRt)
		if err != nil {
			return nil, rt, wrapSpan(err, n.sp)
		}
		if len(col) == 1 {
			total = col[0]
		} else if len(col) == 0 {
			total = nil
		}
	}

	if total == nil {
		return types.EmptyCollection, rt, nil
	}
	return types.Collection{total}, rt, nil
}

func (c *compiler) compileAggregate(fc *ast.FunctionCall) (Node, error) {
	if len(fc.Args) < 1 || len(fc.Args) > 2 {
		return nil, compileErr(fc.Span(), "aggregate() expects 1-2 arguments, got %d", len(fc.Args))
	}
	expr, err := c.compile(fc.Args[0])
	if err != nil {
		return nil, err
	}
	var init Node
	if len(fc.Args) == 2 {
		init, err = c.compile(fc.Args[1])
		if err != nil {
			return nil, err
		}
	}
	return &aggregateNode{sp: fc.Span(), expr: expr, init: init}, nil
}

// iifNode evaluates only the branch selected by its condition, never both,
// so a divide-by-zero or other error in the untaken branch never surfaces.
type iifNode struct {
	sp                ast.Span
	cond, then, otherw Node // otherw may be nil
}

func (n *iifNode) Span() ast.Span { return n.sp }

func (n *iifNode) Eval(rt *eval.Context) (types.Collection, *eval.Context, error) {
	cond, rt2, err := n.cond.Eval(rt)
	if err != nil {
		return nil, rt, err
	}
	if isTrue(cond) {
		result, _, err := n.then.Eval(rt2)
		if err != nil {
			return nil, rt, err
		}
		return result, rt, nil
	}
	if n.otherw == nil {
		return types.EmptyCollection, rt, nil
	}
	result, _, err := n.otherw.Eval(rt2)
	if err != nil {
		return nil, rt, err
	}
	return result, rt, nil
}

func (c *compiler) compileIif(fc *ast.FunctionCall) (Node, error) {
	if len(fc.Args) < 2 || len(fc.Args) > 3 {
		return nil, compileErr(fc.Span(), "iif() expects 2-3 arguments, got %d", len(fc.Args))
	}
	cond, err := c.compile(fc.Args[0])
	if err != nil {
		return nil, err
	}
	then, err := c.compile(fc.Args[1])
	if err != nil {
		return nil, err
	}
	var otherw Node
	if len(fc.Args) == 3 {
		otherw, err = c.compile(fc.Args[2])
		if err != nil {
			return nil, err
		}
	}
	return &iifNode{sp: fc.Span(), cond: cond, then: then, otherw: otherw}, nil
}

// defineVariableNode evaluates its value expression once, binds name in a
// child context, and returns $this unchanged — but the returned context
// (not rt) carries the binding, so later steps of the same invocation chain
// see it.
type defineVariableNode struct {
	sp    ast.Span
	name  string
	value Node
}

func (n *defineVariableNode) Span() ast.Span { return n.sp }

func (n *defineVariableNode) Eval(rt *eval.Context) (types.Collection, *eval.Context, error) {
	val, rt2, err := n.value.Eval(rt)
	if err != nil {
		return nil, rt, err
	}
	return rt.This(), rt2.WithVariable(n.name, val), nil
}

func (c *compiler) compileDefineVariable(fc *ast.FunctionCall) (Node, error) {
	if len(fc.Args) < 1 || len(fc.Args) > 2 {
		return nil, compileErr(fc.Span(), "defineVariable() expects 1-2 arguments, got %d", len(fc.Args))
	}
	name, ok := literalStringArg(fc.Args[0])
	if !ok {
		return nil, compileErr(fc.Span(), "defineVariable() name must be a string literal")
	}
	var value Node
	var err error
	if len(fc.Args) == 2 {
		value, err = c.compile(fc.Args[1])
	} else {
		value = &thisNode{sp: fc.Span()}
	}
	if err != nil {
		return nil, err
	}
	return &defineVariableNode{sp: fc.Span(), name: name, value: value}, nil
}

// traceNode logs the current focus (or a projection of it) through the
// runtime's trace hook, left-to-right, then returns its input unchanged.
type traceNode struct {
	sp   ast.Span
	name string
	proj Node // nil when no projection argument
}

func (n *traceNode) Span() ast.Span { return n.sp }

func (n *traceNode) Eval(rt *eval.Context) (types.Collection, *eval.Context, error) {
	input := rt.This()
	if n.proj != nil {
		proj, _, err := n.proj.Eval(rt)
		if err != nil {
			return nil, rt, err
		}
		rt.Trace(n.name, proj)
	} else {
		rt.Trace(n.name, input)
	}
	return input, rt, nil
}

func (c *compiler) compileTrace(fc *ast.FunctionCall) (Node, error) {
	if len(fc.Args) < 1 || len(fc.Args) > 2 {
		return nil, compileErr(fc.Span(), "trace() expects 1-2 arguments, got %d", len(fc.Args))
	}
	name, ok := literalStringArg(fc.Args[0])
	if !ok {
		return nil, compileErr(fc.Span(), "trace() name must be a string literal")
	}
	var proj Node
	var err error
	if len(fc.Args) == 2 {
		proj, err = c.compile(fc.Args[1])
		if err != nil {
			return nil, err
		}
	}
	return &traceNode{sp: fc.Span(), name: name, proj: proj}, nil
}

// ofTypeNode filters the input to items matching a type specifier.
type ofTypeNode struct {
	sp       ast.Span
	typeName string
}

func (n *ofTypeNode) Span() ast.Span { return n.sp }

func (n *ofTypeNode) Eval(rt *eval.Context) (types.Collection, *eval.Context, error) {
	input := rt.This()
	result := types.Collection{}
	for _, item := range input {
		if isTrue(typeMatchResult(rt, item, n.typeName)) {
			result = append(result, item)
		}
	}
	return result, rt, nil
}

func (c *compiler) compileOfType(fc *ast.FunctionCall) (Node, error) {
	if len(fc.Args) != 1 {
		return nil, compileErr(fc.Span(), "ofType() expects 1 argument, got %d", len(fc.Args))
	}
	typeName, err := c.typeArgText(fc.Args[0])
	if err != nil {
		return nil, err
	}
	return &ofTypeNode{sp: fc.Span(), typeName: typeName}, nil
}

// compileIsFunc/compileAsFunc handle is(Type)/as(Type) in function-call
// form (as opposed to the `expr is Type` / `expr as Type` binary-operator
// form, compiled in isas.go). Both read their argument's raw type-specifier
// text rather than evaluating it as an expression.
func (c *compiler) compileIsFunc(fc *ast.FunctionCall) (Node, error) {
	if len(fc.Args) != 1 {
		return nil, compileErr(fc.Span(), "is() expects 1 argument, got %d", len(fc.Args))
	}
	typeName, err := c.typeArgText(fc.Args[0])
	if err != nil {
		return nil, err
	}
	return &isNode{sp: fc.Span(), expr: &thisNode{sp: fc.Span()}, typeName: typeName}, nil
}

func (c *compiler) compileAsFunc(fc *ast.FunctionCall) (Node, error) {
	if len(fc.Args) != 1 {
		return nil, compileErr(fc.Span(), "as() expects 1 argument, got %d", len(fc.Args))
	}
	typeName, err := c.typeArgText(fc.Args[0])
	if err != nil {
		return nil, err
	}
	return &asNode{sp: fc.Span(), expr: &thisNode{sp: fc.Span()}, typeName: typeName}, nil
}

// typeArgText recovers a type name from an is()/as()/ofType() argument,
// which the parser represents as a bare or dotted identifier expression
// (e.g. Patient, FHIR.Patient) rather than a quoted string.
func (c *compiler) typeArgText(n ast.Node) (string, error) {
	switch v := n.(type) {
	case *ast.Identifier:
		return v.Name, nil
	case *ast.Invocation:
		if step, ok := v.Step.(*ast.Identifier); ok {
			return step.Name, nil
		}
	}
	return "", compileErr(n.Span(), "expected a type specifier")
}

func literalStringArg(n ast.Node) (string, bool) {
	lit, ok := n.(*ast.Literal)
	if !ok || lit.Kind != ast.LitString {
		return "", false
	}
	return lit.Text, true
}
