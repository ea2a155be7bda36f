package funcs

import (
	"testing"

	"github.com/fhirpath-go/core/pkg/fhirpath/eval"
	"github.com/fhirpath-go/core/pkg/fhirpath/types"
)

func TestSliceFunction(t *testing.T) {
	ctx := eval.NewContext([]byte(`{}`))

	items := types.Collection{
		types.NewInteger(1),
		types.NewInteger(2),
		types.NewInteger(3),
		types.NewInteger(4),
		types.NewInteger(5),
	}

	t.Run("slice with length", func(t *testing.T) {
		fn, _ := Get("slice")

		result, err := fn.Fn(ctx, items, []interface{}{types.NewInteger(1), types.NewInteger(2)})
		if err != nil {
			t.Fatal(err)
		}
		if len(result) != 2 {
			t.Fatalf("expected 2 elements, got %d", len(result))
		}
		if result[0].(types.Integer).Value() != 2 || result[1].(types.Integer).Value() != 3 {
			t.Errorf("expected [2, 3], got %v", result)
		}
	})

	t.Run("slice without length", func(t *testing.T) {
		fn, _ := Get("slice")

		result, err := fn.Fn(ctx, items, []interface{}{types.NewInteger(3)})
		if err != nil {
			t.Fatal(err)
		}
		if len(result) != 2 {
			t.Fatalf("expected 2 elements, got %d", len(result))
		}
		if result[0].(types.Integer).Value() != 4 || result[1].(types.Integer).Value() != 5 {
			t.Errorf("expected [4, 5], got %v", result)
		}
	})

	t.Run("slice start beyond end", func(t *testing.T) {
		fn, _ := Get("slice")

		result, err := fn.Fn(ctx, items, []interface{}{types.NewInteger(10)})
		if err != nil {
			t.Fatal(err)
		}
		if !result.Empty() {
			t.Error("expected empty when start is beyond the collection")
		}
	})

	t.Run("slice negative length", func(t *testing.T) {
		fn, _ := Get("slice")

		result, err := fn.Fn(ctx, items, []interface{}{types.NewInteger(0), types.NewInteger(-1)})
		if err != nil {
			t.Fatal(err)
		}
		if !result.Empty() {
			t.Error("expected empty for negative length")
		}
	})
}

func TestFlattenFunction(t *testing.T) {
	ctx := eval.NewContext([]byte(`{}`))

	t.Run("flatten passes through a flat collection", func(t *testing.T) {
		fn, _ := Get("flatten")

		input := types.Collection{types.NewInteger(1), types.NewInteger(2)}
		result, err := fn.Fn(ctx, input, nil)
		if err != nil {
			t.Fatal(err)
		}
		if len(result) != 2 {
			t.Fatalf("expected 2 elements, got %d", len(result))
		}
	})

	t.Run("flatten empty", func(t *testing.T) {
		fn, _ := Get("flatten")

		result, err := fn.Fn(ctx, types.Collection{}, nil)
		if err != nil {
			t.Fatal(err)
		}
		if !result.Empty() {
			t.Error("expected empty for flatten of empty")
		}
	})
}
