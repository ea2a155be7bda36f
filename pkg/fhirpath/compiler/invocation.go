package compiler

import (
	"github.com/fhirpath-go/core/pkg/fhirpath/ast"
	"github.com/fhirpath-go/core/pkg/fhirpath/eval"
	"github.com/fhirpath-go/core/pkg/fhirpath/types"
)

// invocationNode is Target.Step: evaluate Target, then evaluate Step with
// $this rebound to Target's result, using whatever context Target's
// evaluation produced (so a defineVariable earlier in the chain is visible
// to Step). The context Step produces is returned onward in turn, so
// variable bindings keep flowing to the rest of the chain.
type invocationNode struct {
	sp     ast.Span
	target Node
	step   Node
}

func (n *invocationNode) Span() ast.Span { return n.sp }

func (n *invocationNode) Eval(rt *eval.Context) (types.Collection, *eval.Context, error) {
	targetResult, rt2, err := n.target.Eval(rt)
	if err != nil {
		return nil, rt, err
	}
	return n.step.Eval(rt2.WithThis(targetResult))
}

func (c *compiler) compileInvocation(inv *ast.Invocation) (Node, error) {
	target, err := c.compile(inv.Target)
	if err != nil {
		return nil, err
	}

	var step Node
	if fc, ok := inv.Step.(*ast.FunctionCall); ok {
		step, err = c.compileFunctionCall(fc, nil)
	} else {
		step, err = c.compile(inv.Step)
	}
	if err != nil {
		return nil, err
	}

	return &invocationNode{sp: inv.Span(), target: target, step: step}, nil
}

// indexerNode is Target[Index]. An empty index, or one out of range, yields
// empty; an index of more than one item is a singleton error and a
// non-Integer index is a type error.
type indexerNode struct {
	sp          ast.Span
	target, idx Node
}

func (n *indexerNode) Span() ast.Span { return n.sp }

func (n *indexerNode) Eval(rt *eval.Context) (types.Collection, *eval.Context, error) {
	target, rt2, err := n.target.Eval(rt)
	if err != nil {
		return nil, rt, err
	}
	idxCol, rt3, err := n.idx.Eval(rt2)
	if err != nil {
		return nil, rt, err
	}
	if idxCol.Empty() {
		return types.EmptyCollection, rt3, nil
	}
	if len(idxCol) != 1 {
		return nil, rt, eval.SingletonError(len(idxCol)).WithSpan(n.sp.Start, n.sp.End)
	}
	iv, ok := idxCol[0].(types.Integer)
	if !ok {
		return nil, rt, eval.TypeError("Integer", idxCol[0].Type(), "indexer").WithSpan(n.sp.Start, n.sp.End)
	}
	i := int(iv.Value())
	if i < 0 || i >= len(target) {
		return types.EmptyCollection, rt3, nil
	}
	return types.Collection{target[i]}, rt3, nil
}

func (c *compiler) compileIndexer(ix *ast.Indexer) (Node, error) {
	target, err := c.compile(ix.Target)
	if err != nil {
		return nil, err
	}
	idx, err := c.compile(ix.Index)
	if err != nil {
		return nil, err
	}
	return &indexerNode{sp: ix.Span(), target: target, idx: idx}, nil
}
