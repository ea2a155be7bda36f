package compiler

import (
	"github.com/fhirpath-go/core/pkg/fhirpath/ast"
	"github.com/fhirpath-go/core/pkg/fhirpath/eval"
	"github.com/fhirpath-go/core/pkg/fhirpath/types"
)

// arithNode covers *, /, div, mod, +, -, each of which propagates empty and
// requires singleton operands before delegating to an eval.* free function.
type arithNode struct {
	sp          ast.Span
	left, right Node
	apply       func(l, r types.Value) (types.Value, error)
}

func (n *arithNode) Span() ast.Span { return n.sp }

func (n *arithNode) Eval(rt *eval.Context) (types.Collection, *eval.Context, error) {
	l, rt2, err := n.left.Eval(rt)
	if err != nil {
		return nil, rt, err
	}
	r, rt3, err := n.right.Eval(rt2)
	if err != nil {
		return nil, rt, err
	}
	if l.Empty() || r.Empty() {
		return types.EmptyCollection, rt3, nil
	}
	if len(l) != 1 || len(r) != 1 {
		return nil, rt, eval.SingletonError(len(l) + len(r)).WithSpan(n.sp.Start, n.sp.End)
	}
	v, err := n.apply(l[0], r[0])
	if err != nil {
		return nil, rt, wrapSpan(err, n.sp)
	}
	return types.Collection{v}, rt3, nil
}

// concatNode is the & operator: treats empty as empty string, never errors.
type concatNode struct {
	sp          ast.Span
	left, right Node
}

func (n *concatNode) Span() ast.Span { return n.sp }

func (n *concatNode) Eval(rt *eval.Context) (types.Collection, *eval.Context, error) {
	l, rt2, err := n.left.Eval(rt)
	if err != nil {
		return nil, rt, err
	}
	r, rt3, err := n.right.Eval(rt2)
	if err != nil {
		return nil, rt, err
	}
	return eval.Concatenate(l, r), rt3, nil
}

// compareNode covers <, <=, >, >=.
type compareNode struct {
	sp          ast.Span
	left, right Node
	apply       func(l, r types.Value) (types.Collection, error)
}

func (n *compareNode) Span() ast.Span { return n.sp }

func (n *compareNode) Eval(rt *eval.Context) (types.Collection, *eval.Context, error) {
	l, rt2, err := n.left.Eval(rt)
	if err != nil {
		return nil, rt, err
	}
	r, rt3, err := n.right.Eval(rt2)
	if err != nil {
		return nil, rt, err
	}
	if l.Empty() || r.Empty() {
		return types.EmptyCollection, rt3, nil
	}
	if len(l) != 1 || len(r) != 1 {
		return nil, rt, eval.SingletonError(len(l) + len(r)).WithSpan(n.sp.Start, n.sp.End)
	}
	result, err := n.apply(l[0], r[0])
	if err != nil {
		return nil, rt, wrapSpan(err, n.sp)
	}
	return result, rt3, nil
}

// collectionBinaryNode covers operators whose eval.* implementation already
// handles empty propagation and singleton rules internally: =, !=, ~, !~,
// |, in, contains.
type collectionBinaryNode struct {
	sp          ast.Span
	left, right Node
	apply       func(l, r types.Collection) types.Collection
}

func (n *collectionBinaryNode) Span() ast.Span { return n.sp }

func (n *collectionBinaryNode) Eval(rt *eval.Context) (types.Collection, *eval.Context, error) {
	l, rt2, err := n.left.Eval(rt)
	if err != nil {
		return nil, rt, err
	}
	r, rt3, err := n.right.Eval(rt2)
	if err != nil {
		return nil, rt, err
	}
	return n.apply(l, r), rt3, nil
}

// andNode short-circuits: a false left operand never evaluates right.
type andNode struct {
	sp          ast.Span
	left, right Node
}

func (n *andNode) Span() ast.Span { return n.sp }

func (n *andNode) Eval(rt *eval.Context) (types.Collection, *eval.Context, error) {
	l, rt2, err := n.left.Eval(rt)
	if err != nil {
		return nil, rt, err
	}
	if isFalse(l) {
		return types.FalseCollection, rt2, nil
	}
	r, rt3, err := n.right.Eval(rt2)
	if err != nil {
		return nil, rt, err
	}
	return eval.And(l, r), rt3, nil
}

// orNode short-circuits: a true left operand never evaluates right.
type orNode struct {
	sp          ast.Span
	left, right Node
}

func (n *orNode) Span() ast.Span { return n.sp }

func (n *orNode) Eval(rt *eval.Context) (types.Collection, *eval.Context, error) {
	l, rt2, err := n.left.Eval(rt)
	if err != nil {
		return nil, rt, err
	}
	if isTrue(l) {
		return types.TrueCollection, rt2, nil
	}
	r, rt3, err := n.right.Eval(rt2)
	if err != nil {
		return nil, rt, err
	}
	return eval.Or(l, r), rt3, nil
}

// impliesNode short-circuits: a false antecedent never evaluates the
// consequent, since false implies X = true regardless of X.
type impliesNode struct {
	sp          ast.Span
	left, right Node
}

func (n *impliesNode) Span() ast.Span { return n.sp }

func (n *impliesNode) Eval(rt *eval.Context) (types.Collection, *eval.Context, error) {
	l, rt2, err := n.left.Eval(rt)
	if err != nil {
		return nil, rt, err
	}
	if isFalse(l) {
		return types.TrueCollection, rt2, nil
	}
	r, rt3, err := n.right.Eval(rt2)
	if err != nil {
		return nil, rt, err
	}
	return eval.Implies(l, r), rt3, nil
}

// xorNode has no short-circuit opportunity (both sides always needed).
type xorNode struct {
	sp          ast.Span
	left, right Node
}

func (n *xorNode) Span() ast.Span { return n.sp }

func (n *xorNode) Eval(rt *eval.Context) (types.Collection, *eval.Context, error) {
	l, rt2, err := n.left.Eval(rt)
	if err != nil {
		return nil, rt, err
	}
	r, rt3, err := n.right.Eval(rt2)
	if err != nil {
		return nil, rt, err
	}
	return eval.Xor(l, r), rt3, nil
}

func isTrue(c types.Collection) bool {
	if len(c) != 1 {
		return false
	}
	b, ok := c[0].(types.Boolean)
	return ok && b.Bool()
}

func isFalse(c types.Collection) bool {
	if len(c) != 1 {
		return false
	}
	b, ok := c[0].(types.Boolean)
	return ok && !b.Bool()
}

func (c *compiler) compileBinary(b *ast.Binary) (Node, error) {
	switch b.Op {
	case ast.OpAnd:
		left, right, err := c.compilePair(b)
		if err != nil {
			return nil, err
		}
		return &andNode{sp: b.Span(), left: left, right: right}, nil
	case ast.OpOr:
		left, right, err := c.compilePair(b)
		if err != nil {
			return nil, err
		}
		return &orNode{sp: b.Span(), left: left, right: right}, nil
	case ast.OpImplies:
		left, right, err := c.compilePair(b)
		if err != nil {
			return nil, err
		}
		return &impliesNode{sp: b.Span(), left: left, right: right}, nil
	case ast.OpXor:
		left, right, err := c.compilePair(b)
		if err != nil {
			return nil, err
		}
		return &xorNode{sp: b.Span(), left: left, right: right}, nil
	case ast.OpConcat:
		left, right, err := c.compilePair(b)
		if err != nil {
			return nil, err
		}
		return &concatNode{sp: b.Span(), left: left, right: right}, nil
	case ast.OpEq:
		return c.compileCollectionBinary(b, eval.Equal)
	case ast.OpNeq:
		return c.compileCollectionBinary(b, eval.NotEqual)
	case ast.OpEquiv:
		return c.compileCollectionBinary(b, eval.Equivalent)
	case ast.OpNEquiv:
		return c.compileCollectionBinary(b, eval.NotEquivalent)
	case ast.OpUnion:
		return c.compileCollectionBinary(b, eval.Union)
	case ast.OpIn:
		return c.compileCollectionBinary(b, eval.In)
	case ast.OpContains:
		return c.compileCollectionBinary(b, eval.Contains)
	case ast.OpLt:
		return c.compileCompare(b, eval.LessThan)
	case ast.OpLte:
		return c.compileCompare(b, eval.LessOrEqual)
	case ast.OpGt:
		return c.compileCompare(b, eval.GreaterThan)
	case ast.OpGte:
		return c.compileCompare(b, eval.GreaterOrEqual)
	case ast.OpMul:
		return c.compileArith(b, eval.Multiply)
	case ast.OpDiv:
		return c.compileArith(b, eval.Divide)
	case ast.OpDivInt:
		return c.compileArith(b, eval.IntegerDivide)
	case ast.OpMod:
		return c.compileArith(b, eval.Modulo)
	case ast.OpAdd:
		return c.compileArith(b, eval.Add)
	case ast.OpSub:
		return c.compileArith(b, eval.Subtract)
	default:
		return nil, compileErr(b.Span(), "unknown binary operator")
	}
}

func (c *compiler) compilePair(b *ast.Binary) (Node, Node, error) {
	left, err := c.compile(b.Left)
	if err != nil {
		return nil, nil, err
	}
	right, err := c.compile(b.Right)
	if err != nil {
		return nil, nil, err
	}
	return left, right, nil
}

func (c *compiler) compileArith(b *ast.Binary, apply func(l, r types.Value) (types.Value, error)) (Node, error) {
	left, right, err := c.compilePair(b)
	if err != nil {
		return nil, err
	}
	return &arithNode{sp: b.Span(), left: left, right: right, apply: apply}, nil
}

func (c *compiler) compileCompare(b *ast.Binary, apply func(l, r types.Value) (types.Collection, error)) (Node, error) {
	left, right, err := c.compilePair(b)
	if err != nil {
		return nil, err
	}
	return &compareNode{sp: b.Span(), left: left, right: right, apply: apply}, nil
}

func (c *compiler) compileCollectionBinary(b *ast.Binary, apply func(l, r types.Collection) types.Collection) (Node, error) {
	left, right, err := c.compilePair(b)
	if err != nil {
		return nil, err
	}
	return &collectionBinaryNode{sp: b.Span(), left: left, right: right, apply: apply}, nil
}
