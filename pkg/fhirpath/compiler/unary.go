package compiler

import (
	"github.com/fhirpath-go/core/pkg/fhirpath/ast"
	"github.com/fhirpath-go/core/pkg/fhirpath/eval"
	"github.com/fhirpath-go/core/pkg/fhirpath/types"
)

// unaryNode is a polarity expression: +Expr or -Expr. Empty propagates;
// a non-empty operand must be a singleton numeric or quantity.
type unaryNode struct {
	sp      ast.Span
	negate  bool
	operand Node
}

func (n *unaryNode) Span() ast.Span { return n.sp }

func (n *unaryNode) Eval(rt *eval.Context) (types.Collection, *eval.Context, error) {
	operand, rt2, err := n.operand.Eval(rt)
	if err != nil {
		return nil, rt, err
	}
	if operand.Empty() {
		return types.EmptyCollection, rt2, nil
	}
	if len(operand) != 1 {
		return nil, rt, eval.SingletonError(len(operand)).WithSpan(n.sp.Start, n.sp.End)
	}
	if !n.negate {
		return operand, rt2, nil
	}
	result, err := eval.Negate(operand[0])
	if err != nil {
		return nil, rt, wrapSpan(err, n.sp)
	}
	return types.Collection{result}, rt2, nil
}

func (c *compiler) compileUnary(u *ast.Unary) (Node, error) {
	operand, err := c.compile(u.Operand)
	if err != nil {
		return nil, err
	}
	if lit, ok := operand.(constNode); ok {
		if u.Op == ast.UnaryPlus {
			return lit, nil
		}
		if len(lit.val) == 1 {
			negated, err := eval.Negate(lit.val[0])
			if err == nil {
				return constNode{sp: u.Span(), val: types.Collection{negated}}, nil
			}
		}
	}
	return &unaryNode{sp: u.Span(), negate: u.Op == ast.UnaryMinus, operand: operand}, nil
}

func wrapSpan(err error, sp ast.Span) error {
	if ee, ok := err.(*eval.EvalError); ok {
		if ee.Span == [2]int{} {
			return ee.WithSpan(sp.Start, sp.End)
		}
		return ee
	}
	return err
}
