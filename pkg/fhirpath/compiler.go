package fhirpath

import (
	"fmt"

	"github.com/fhirpath-go/core/pkg/fhirpath/ast"
	"github.com/fhirpath-go/core/pkg/fhirpath/compiler"
	"github.com/fhirpath-go/core/pkg/fhirpath/funcs"
	"github.com/fhirpath-go/core/pkg/fhirpath/parser"
)

// parseCache memoizes source -> AST, keyed by the raw source string: the
// parse and compile caches are each an independent LRU keyed by source
// string. It sits in front of every Compile call; DefaultCache (cache.go)
// layers the compiled-expression LRU on top of this one.
var parseCache = newASTCache(10000)

// parse produces an AST for expr, consulting parseCache first.
func parse(expr string) (ast.Node, error) {
	if n, ok := parseCache.get(expr); ok {
		return n, nil
	}
	n, err := parser.Parse(expr)
	if err != nil {
		return nil, err
	}
	parseCache.put(expr, n)
	return n, nil
}

// compile parses expr (via the parse cache) and lowers it to a compiler.Node
// using the global function registry and the built-in model provider.
func compile(expr string) (*Expression, error) {
	if expr == "" {
		return nil, fmt.Errorf("empty expression")
	}

	tree, err := parse(expr)
	if err != nil {
		return nil, err
	}

	node, err := compiler.Compile(tree, compiler.Options{Funcs: funcs.GetRegistry()})
	if err != nil {
		return nil, err
	}

	return &Expression{source: expr, ast: tree, node: node}, nil
}

// ClearParseCache empties the AST cache, independent of the compiled
// expression cache (DefaultCache.Clear / ClearCache).
func ClearParseCache() {
	parseCache.clear()
}
