package funcs

import (
	"testing"

	"github.com/fhirpath-go/core/pkg/fhirpath/eval"
	"github.com/fhirpath-go/core/pkg/fhirpath/types"
)

func TestTypeFunction(t *testing.T) {
	ctx := eval.NewContext([]byte(`{}`))
	fn, ok := Get("type")
	if !ok {
		t.Fatal("expected type() to be registered")
	}

	t.Run("empty input", func(t *testing.T) {
		result, err := fn.Fn(ctx, types.Collection{}, nil)
		if err != nil {
			t.Fatal(err)
		}
		if !result.Empty() {
			t.Errorf("expected empty result, got %v", result)
		}
	})

	t.Run("primitive types", func(t *testing.T) {
		result, err := fn.Fn(ctx, types.Collection{
			types.NewInteger(1),
			types.NewString("x"),
			types.NewBoolean(true),
		}, nil)
		if err != nil {
			t.Fatal(err)
		}
		if len(result) != 3 {
			t.Fatalf("expected 3 results, got %d", len(result))
		}
		want := []string{"Integer", "String", "Boolean"}
		for i, w := range want {
			s, ok := result[i].(types.String)
			if !ok || s.Value() != w {
				t.Errorf("item %d: expected %q, got %#v", i, w, result[i])
			}
		}
	})

	t.Run("object value", func(t *testing.T) {
		obj := types.NewObjectValue([]byte(`{"resourceType":"Patient","id":"1"}`))
		result, err := fn.Fn(ctx, types.Collection{obj}, nil)
		if err != nil {
			t.Fatal(err)
		}
		s, ok := result[0].(types.String)
		if !ok || s.Value() != "Patient" {
			t.Errorf("expected Patient, got %#v", result[0])
		}
	})
}
