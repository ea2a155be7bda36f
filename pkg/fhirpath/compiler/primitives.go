package compiler

import (
	"github.com/fhirpath-go/core/pkg/fhirpath/ast"
	"github.com/fhirpath-go/core/pkg/fhirpath/eval"
	"github.com/fhirpath-go/core/pkg/fhirpath/types"
)

// constNode evaluates to a fixed collection regardless of input focus.
type constNode struct {
	sp  ast.Span
	val types.Collection
}

func (n constNode) Span() ast.Span { return n.sp }

func (n constNode) Eval(rt *eval.Context) (types.Collection, *eval.Context, error) {
	return n.val, rt, nil
}

// thisNode evaluates $this: the current iteration focus.
type thisNode struct{ sp ast.Span }

func (n *thisNode) Span() ast.Span { return n.sp }

func (n *thisNode) Eval(rt *eval.Context) (types.Collection, *eval.Context, error) {
	return rt.This(), rt, nil
}

// indexNode evaluates $index: the 0-based position within the current
// where/select/repeat/all/any iteration.
type indexNode struct{ sp ast.Span }

func (n *indexNode) Span() ast.Span { return n.sp }

func (n *indexNode) Eval(rt *eval.Context) (types.Collection, *eval.Context, error) {
	return types.Collection{types.NewInteger(int64(rt.Index()))}, rt, nil
}

// totalNode evaluates $total: aggregate()'s running accumulator.
type totalNode struct{ sp ast.Span }

func (n *totalNode) Span() ast.Span { return n.sp }

func (n *totalNode) Eval(rt *eval.Context) (types.Collection, *eval.Context, error) {
	return rt.Total(), rt, nil
}

// variableNode evaluates a user-defined $name bound by an enclosing
// defineVariable, sharing its binding map with %-style environment
// constants.
type variableNode struct {
	sp   ast.Span
	name string
}

func (n *variableNode) Span() ast.Span { return n.sp }

func (n *variableNode) Eval(rt *eval.Context) (types.Collection, *eval.Context, error) {
	if v, ok := rt.GetVariable(n.name); ok {
		return v, rt, nil
	}
	if rt.Strict() {
		return nil, rt, eval.InvalidPathError("$" + n.name).WithSpan(n.sp.Start, n.sp.End)
	}
	return types.EmptyCollection, rt, nil
}

func (c *compiler) compileVariable(v *ast.Variable) (Node, error) {
	switch v.Name {
	case "this":
		return &thisNode{sp: v.Span()}, nil
	case "index":
		return &indexNode{sp: v.Span()}, nil
	case "total":
		return &totalNode{sp: v.Span()}, nil
	default:
		return &variableNode{sp: v.Span(), name: v.Name}, nil
	}
}

// envNode evaluates %name: a host-supplied environment constant or the
// %resource/%context built-ins seeded by eval.NewContext.
type envNode struct {
	sp   ast.Span
	name string
}

func (n *envNode) Span() ast.Span { return n.sp }

func (n *envNode) Eval(rt *eval.Context) (types.Collection, *eval.Context, error) {
	if v, ok := rt.GetVariable(n.name); ok {
		return v, rt, nil
	}
	if rt.Strict() {
		return nil, rt, eval.InvalidPathError("%" + n.name).WithSpan(n.sp.Start, n.sp.End)
	}
	return types.EmptyCollection, rt, nil
}

// memberNode navigates a named step against the current focus: a
// resource-type guard (Patient.Patient-style matches via IsSubtypeOf),
// direct field access, or FHIR choice-type (value[x]) resolution, in that
// order.
type memberNode struct {
	sp   ast.Span
	name string
}

func (n *memberNode) Span() ast.Span { return n.sp }

func (n *memberNode) Eval(rt *eval.Context) (types.Collection, *eval.Context, error) {
	return navigateMember(rt, rt.This(), n.name), rt, nil
}

func navigateMember(rt *eval.Context, input types.Collection, name string) types.Collection {
	provider := rt.ModelProvider()
	result := types.Collection{}

	for _, item := range input {
		obj, ok := item.(*types.ObjectValue)
		if !ok {
			continue
		}

		if provider.IsSubtypeOf(obj.Type(), name) {
			result = append(result, obj)
			continue
		}

		children := obj.GetCollection(name)
		if len(children) > 0 {
			result = append(result, children...)
			continue
		}

		if fieldName, _, ok := provider.ResolveChoice(obj.Keys(), name); ok {
			result = append(result, obj.GetCollection(fieldName)...)
		}
	}

	return result
}
