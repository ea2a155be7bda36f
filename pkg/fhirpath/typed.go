package fhirpath

import (
	"github.com/fhirpath-go/core/pkg/fhirpath/compiler"
	"github.com/fhirpath-go/core/pkg/fhirpath/model"
)

// Diagnostic is a single finding from type inference: an error marks a
// definite type fault (see HasErrors), a warning is informational only.
// Neither stops TypedCompile from returning a runnable Expression.
type Diagnostic = compiler.Diagnostic

// TypedExpression pairs a compiled Expression with the diagnostics its
// static type-check raised, letting a caller inspect both without
// re-running inference.
type TypedExpression struct {
	*Expression
	Diagnostics []Diagnostic
}

// HasErrors reports whether any diagnostic has error severity.
func (t *TypedExpression) HasErrors() bool {
	for _, d := range t.Diagnostics {
		if d.Severity == compiler.SeverityError {
			return true
		}
	}
	return false
}

// TypedCompile compiles expr the same way Compile does, but additionally
// runs static type inference against rootType (a resource type name, or ""
// for an untyped/Any root) using the options' ModelProvider. It returns the
// compiled expression alongside the diagnostics raised; a diagnostic with
// error severity does not by itself prevent the Expression from
// evaluating, since FHIRPath's runtime semantics tolerate what the static
// pass can only flag as suspicious.
func TypedCompile(expr string, rootType string, opts ...EvalOption) (*TypedExpression, error) {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	if rootType == "" {
		rootType = options.RootType
	}

	compiled, err := compile(expr)
	if err != nil {
		return nil, err
	}

	provider := options.ModelProvider
	if provider == nil {
		provider = model.BuiltinProvider{}
	}

	root := model.Type{Kind: model.Any}
	if rootType != "" {
		root = model.Type{Kind: model.Resource, ResourceName: rootType}
	}

	_, diags := compiler.InferTypes(compiled.ast, provider, root)
	return &TypedExpression{Expression: compiled, Diagnostics: diags}, nil
}

// Validate parses expr and runs static type inference against rootType,
// returning only the diagnostics without producing a runnable Expression.
// A parse error is returned as the error, with no diagnostics.
func Validate(expr string, rootType string, opts ...EvalOption) ([]Diagnostic, error) {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	if rootType == "" {
		rootType = options.RootType
	}

	tree, err := parse(expr)
	if err != nil {
		return nil, err
	}

	provider := options.ModelProvider
	if provider == nil {
		provider = model.BuiltinProvider{}
	}

	root := model.Type{Kind: model.Any}
	if rootType != "" {
		root = model.Type{Kind: model.Resource, ResourceName: rootType}
	}

	return compiler.Validate(tree, provider, root), nil
}
