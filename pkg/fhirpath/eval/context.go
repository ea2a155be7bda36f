package eval

import (
	"context"

	"github.com/fhirpath-go/core/pkg/fhirpath/model"
	"github.com/fhirpath-go/core/pkg/fhirpath/types"
)

// FuncImpl is the signature for eagerly-evaluated function implementations.
// Expression-argument functions (where, select, all, any, iif, repeat,
// aggregate, defineVariable, trace) are compiled as special forms instead
// and never go through this signature.
type FuncImpl func(ctx *Context, input types.Collection, args []interface{}) (types.Collection, error)

// FuncDef declares one built-in function's arity and implementation.
type FuncDef struct {
	Name    string
	MinArgs int
	MaxArgs int // -1 means unbounded
	Fn      FuncImpl
}

// FuncRegistry is an interface for function lookup, implemented by
// funcs.Registry.
type FuncRegistry interface {
	Get(name string) (FuncDef, bool)
}

// Resolver handles FHIR reference resolution for resolve().
type Resolver interface {
	Resolve(ctx context.Context, reference string) ([]byte, error)
}

// TraceHook receives trace() output in left-to-right evaluation order.
type TraceHook func(name string, values types.Collection)

// Context is the FHIRPath runtime context: the current focus, iteration
// state, variable bindings, and host-supplied collaborators. Contexts are
// conceptually immutable; the With* methods return a shallow copy so that
// defineVariable and per-item iteration create lexically-scoped children
// without mutating a sibling's view.
type Context struct {
	root      types.Collection
	this      types.Collection
	index     int
	total     types.Value
	variables map[string]types.Collection
	limits    map[string]int
	goCtx     context.Context
	resolver  Resolver
	provider  model.Provider
	trace     TraceHook
	strict    bool
}

// NewContext creates a root evaluation context over a JSON-shaped resource.
// %resource and %context are seeded to point at the root per FHIRPath's
// constraint-evaluation convention (used by invariants like bdl-3).
func NewContext(resource []byte) *Context {
	root, _ := types.JSONToCollection(resource)

	variables := map[string]types.Collection{
		"resource": root,
		"context":  root,
	}

	return &Context{
		root:      root,
		this:      root,
		variables: variables,
		limits:    make(map[string]int),
		goCtx:     context.Background(),
		provider:  model.BuiltinProvider{},
	}
}

func (c *Context) clone() *Context {
	nc := *c
	return &nc
}

func (c *Context) SetLimit(name string, value int) {
	if c.limits == nil {
		c.limits = make(map[string]int)
	}
	c.limits[name] = value
}

func (c *Context) GetLimit(name string) int {
	if c.limits == nil {
		return 0
	}
	return c.limits[name]
}

func (c *Context) SetContext(ctx context.Context) { c.goCtx = ctx }

func (c *Context) Context() context.Context {
	if c.goCtx == nil {
		return context.Background()
	}
	return c.goCtx
}

func (c *Context) SetResolver(r Resolver) { c.resolver = r }
func (c *Context) GetResolver() Resolver  { return c.resolver }

func (c *Context) SetModelProvider(p model.Provider) { c.provider = p }

func (c *Context) ModelProvider() model.Provider {
	if c.provider == nil {
		return model.BuiltinProvider{}
	}
	return c.provider
}

func (c *Context) SetTraceHook(h TraceHook) { c.trace = h }

func (c *Context) Trace(name string, values types.Collection) {
	if c.trace != nil {
		c.trace(name, values)
	}
}

func (c *Context) SetStrict(strict bool) { c.strict = strict }
func (c *Context) Strict() bool          { return c.strict }

// CheckCancellation reports ctx.Err() if the Go context backing this
// runtime has been cancelled.
func (c *Context) CheckCancellation() error {
	if c.goCtx == nil {
		return nil
	}
	select {
	case <-c.goCtx.Done():
		return c.goCtx.Err()
	default:
		return nil
	}
}

// CheckCollectionSize returns an error if col exceeds the maxCollectionSize
// limit, when one has been configured.
func (c *Context) CheckCollectionSize(col types.Collection) error {
	maxSize := c.GetLimit("maxCollectionSize")
	if maxSize > 0 && len(col) > maxSize {
		return NewEvalError(ErrInvalidExpression,
			"collection size %d exceeds maximum allowed %d", len(col), maxSize)
	}
	return nil
}

func (c *Context) Root() types.Collection { return c.root }
func (c *Context) This() types.Collection { return c.this }
func (c *Context) Index() int             { return c.index }

func (c *Context) Total() types.Collection {
	if c.total == nil {
		return types.Collection{}
	}
	return types.Collection{c.total}
}

// WithThis returns a child context with $this rebound, used when
// navigating into a member or iterating a collection.
func (c *Context) WithThis(this types.Collection) *Context {
	nc := c.clone()
	nc.this = this
	return nc
}

// WithIndex returns a child context with $index rebound, used while
// iterating where/select/all/any/repeat.
func (c *Context) WithIndex(index int) *Context {
	nc := c.clone()
	nc.index = index
	return nc
}

// WithTotal returns a child context with $total rebound to the running
// accumulator inside aggregate().
func (c *Context) WithTotal(total types.Value) *Context {
	nc := c.clone()
	nc.total = total
	return nc
}

// WithVariable returns a child context binding name to value, shadowing
// any outer binding of the same name without mutating this context — the
// lexical scoping defineVariable requires.
func (c *Context) WithVariable(name string, value types.Collection) *Context {
	nc := c.clone()
	nc.variables = make(map[string]types.Collection, len(c.variables)+1)
	for k, v := range c.variables {
		nc.variables[k] = v
	}
	nc.variables[name] = value
	return nc
}

// SetVariable installs an initial environment/variable binding before
// evaluation begins (host-supplied %variables, $variables). Unlike
// WithVariable it mutates in place, matching createContext()'s one-shot
// setup phase rather than an in-expression scoping event.
func (c *Context) SetVariable(name string, value types.Collection) {
	if c.variables == nil {
		c.variables = make(map[string]types.Collection)
	}
	c.variables[name] = value
}

func (c *Context) GetVariable(name string) (types.Collection, bool) {
	v, ok := c.variables[name]
	return v, ok
}
