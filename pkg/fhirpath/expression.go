package fhirpath

import (
	"github.com/fhirpath-go/core/pkg/fhirpath/ast"
	"github.com/fhirpath-go/core/pkg/fhirpath/compiler"
	"github.com/fhirpath-go/core/pkg/fhirpath/eval"
	"github.com/fhirpath-go/core/pkg/fhirpath/types"
)

// Expression represents a compiled FHIRPath expression: its original
// source, the cached AST it parsed to, and the compiled closure tree
// (compiler.Node) ready to evaluate against a runtime Context.
type Expression struct {
	source string
	ast    ast.Node
	node   compiler.Node
}

// Evaluate executes the expression against a JSON resource using a fresh
// default runtime context.
func (e *Expression) Evaluate(resource []byte) (types.Collection, error) {
	return e.EvaluateWithContext(eval.NewContext(resource))
}

// EvaluateWithContext executes the expression with a caller-supplied
// runtime context, e.g. one preloaded with variables or a model provider.
func (e *Expression) EvaluateWithContext(ctx *eval.Context) (types.Collection, error) {
	result, _, err := e.node.Eval(ctx)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// String returns the original expression source.
func (e *Expression) String() string {
	return e.source
}

// AST returns the parsed abstract syntax tree backing this expression.
func (e *Expression) AST() ast.Node {
	return e.ast
}
