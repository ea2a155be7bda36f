package fhirpath

import (
	"context"
	"time"

	"github.com/fhirpath-go/core/pkg/fhirpath/eval"
	"github.com/fhirpath-go/core/pkg/fhirpath/model"
	"github.com/fhirpath-go/core/pkg/fhirpath/types"
)

// EvalOptions configures expression evaluation: timeouts, recursion and
// collection-size limits, external variables, the reference resolver, and
// the schema provider used by the typed pipeline.
type EvalOptions struct {
	// Context for cancellation and timeout
	Ctx context.Context

	// Timeout for evaluation (0 means no timeout)
	Timeout time.Duration

	// MaxDepth is stored on the evaluation context as the "maxDepth" limit;
	// no evaluator step reads that limit, so descendants() is not bounded by it.
	MaxDepth int

	// MaxCollectionSize limits output collection size (0 means no limit)
	MaxCollectionSize int

	// MaxRepeatIterations bounds repeat()'s traversal as a defensive bound
	// against runaway recursion; 0 means the default of a few thousand.
	MaxRepeatIterations int

	// Variables are external variables accessible via %name
	Variables map[string]types.Collection

	// Resolver handles reference resolution for resolve() function
	Resolver ReferenceResolver

	// ModelProvider supplies FHIR schema knowledge to is/as/ofType and
	// choice-type resolution; defaults to model.BuiltinProvider.
	ModelProvider model.Provider

	// RootType declares the static type of the input focus for the typed
	// pipeline (TypedCompile); unused by plain Compile/Evaluate.
	RootType string

	// StrictMode makes unknown identifiers/variables/functions fail instead
	// of yielding empty.
	StrictMode bool

	// AllowUnknownFunctions is not read by this package: expressions are
	// compiled non-strictly, so an unknown function name is always resolved
	// at evaluation time (an error under StrictMode, empty otherwise)
	// whatever this is set to.
	AllowUnknownFunctions bool

	// TraceHook receives trace() output in left-to-right evaluation order.
	TraceHook eval.TraceHook
}

// DefaultOptions returns default evaluation options suitable for production.
func DefaultOptions() *EvalOptions {
	return &EvalOptions{
		Ctx:                 context.Background(),
		Timeout:             5 * time.Second,
		MaxDepth:            100,
		MaxCollectionSize:   10000,
		MaxRepeatIterations: 5000,
		Variables:           make(map[string]types.Collection),
		ModelProvider:       model.BuiltinProvider{},
	}
}

// EvalOption is a functional option for configuring evaluation.
type EvalOption func(*EvalOptions)

// WithContext sets the context for cancellation.
func WithContext(ctx context.Context) EvalOption {
	return func(o *EvalOptions) {
		o.Ctx = ctx
	}
}

// WithTimeout sets the evaluation timeout.
func WithTimeout(d time.Duration) EvalOption {
	return func(o *EvalOptions) {
		o.Timeout = d
	}
}

// WithMaxDepth sets MaxDepth (see EvalOptions.MaxDepth).
func WithMaxDepth(depth int) EvalOption {
	return func(o *EvalOptions) {
		o.MaxDepth = depth
	}
}

// WithMaxCollectionSize sets the maximum output collection size.
func WithMaxCollectionSize(size int) EvalOption {
	return func(o *EvalOptions) {
		o.MaxCollectionSize = size
	}
}

// WithVariable sets an external variable.
func WithVariable(name string, value types.Collection) EvalOption {
	return func(o *EvalOptions) {
		if o.Variables == nil {
			o.Variables = make(map[string]types.Collection)
		}
		o.Variables[name] = value
	}
}

// WithResolver sets the reference resolver.
func WithResolver(r ReferenceResolver) EvalOption {
	return func(o *EvalOptions) {
		o.Resolver = r
	}
}

// WithModelProvider sets the schema collaborator used for is/as/ofType and
// choice-type resolution.
func WithModelProvider(p model.Provider) EvalOption {
	return func(o *EvalOptions) {
		o.ModelProvider = p
	}
}

// WithRootType declares the static type of the input focus for the typed
// pipeline (see TypedCompile).
func WithRootType(typeName string) EvalOption {
	return func(o *EvalOptions) {
		o.RootType = typeName
	}
}

// WithStrictMode makes unknown identifiers, variables, and functions fail
// instead of silently yielding empty.
func WithStrictMode(strict bool) EvalOption {
	return func(o *EvalOptions) {
		o.StrictMode = strict
	}
}

// WithAllowUnknownFunctions sets AllowUnknownFunctions (see
// EvalOptions.AllowUnknownFunctions).
func WithAllowUnknownFunctions(allow bool) EvalOption {
	return func(o *EvalOptions) {
		o.AllowUnknownFunctions = allow
	}
}

// WithMaxRepeatIterations bounds repeat()'s traversal.
func WithMaxRepeatIterations(n int) EvalOption {
	return func(o *EvalOptions) {
		o.MaxRepeatIterations = n
	}
}

// WithTraceHook installs a callback invoked by trace() in evaluation order.
func WithTraceHook(hook eval.TraceHook) EvalOption {
	return func(o *EvalOptions) {
		o.TraceHook = hook
	}
}

// ReferenceResolver resolves FHIR references for the resolve() function.
type ReferenceResolver interface {
	// Resolve takes a reference string (e.g., "Patient/123") and returns the resource.
	Resolve(ctx context.Context, reference string) ([]byte, error)
}

// EvaluateWithOptions evaluates an expression with custom options.
func (e *Expression) EvaluateWithOptions(resource []byte, opts ...EvalOption) (types.Collection, error) {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	// Create context with timeout if specified
	ctx := options.Ctx
	if options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, options.Timeout)
		defer cancel()
	}

	// Create evaluation context
	evalCtx := eval.NewContext(resource)

	// Set variables
	for name, value := range options.Variables {
		evalCtx.SetVariable(name, value)
	}

	// Set limits in context
	evalCtx.SetLimit("maxDepth", options.MaxDepth)
	evalCtx.SetLimit("maxCollectionSize", options.MaxCollectionSize)
	evalCtx.SetLimit("maxRepeatIterations", options.MaxRepeatIterations)
	evalCtx.SetContext(ctx)
	evalCtx.SetStrict(options.StrictMode)

	if options.ModelProvider != nil {
		evalCtx.SetModelProvider(options.ModelProvider)
	}
	if options.TraceHook != nil {
		evalCtx.SetTraceHook(options.TraceHook)
	}

	// Set resolver if provided
	if options.Resolver != nil {
		evalCtx.SetResolver(newResolverAdapter(options.Resolver))
	}

	return e.EvaluateWithContext(evalCtx)
}

// resolverAdapter adapts ReferenceResolver to eval.Resolver
type resolverAdapter struct {
	resolver ReferenceResolver
}

func newResolverAdapter(r ReferenceResolver) *resolverAdapter {
	return &resolverAdapter{resolver: r}
}

func (a *resolverAdapter) Resolve(ctx context.Context, reference string) ([]byte, error) {
	return a.resolver.Resolve(ctx, reference)
}
