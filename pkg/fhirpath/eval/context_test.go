package eval

import (
	"context"
	"testing"

	"github.com/fhirpath-go/core/pkg/fhirpath/model"
	"github.com/fhirpath-go/core/pkg/fhirpath/types"
)

func TestNewContextSeedsResourceAndContextVariables(t *testing.T) {
	resource := []byte(`{"resourceType": "Patient", "id": "p1"}`)
	rt := NewContext(resource)

	for _, name := range []string{"resource", "context"} {
		v, ok := rt.GetVariable(name)
		if !ok {
			t.Fatalf("expected %%%s to be seeded", name)
		}
		if len(v) != len(rt.Root()) {
			t.Errorf("%%%s should point at the root collection", name)
		}
	}
}

func TestWithThisDoesNotMutateParent(t *testing.T) {
	rt := NewContext([]byte(`{}`))
	original := rt.This()

	child := rt.WithThis(types.Collection{types.NewInteger(1)})

	if len(rt.This()) != len(original) {
		t.Error("WithThis must not mutate the receiver's $this")
	}
	if len(child.This()) != 1 {
		t.Error("child should see the rebound $this")
	}
}

func TestWithVariableShadowsWithoutLeaking(t *testing.T) {
	rt := NewContext([]byte(`{}`))
	rt.SetVariable("x", types.Collection{types.NewInteger(1)})

	child := rt.WithVariable("x", types.Collection{types.NewInteger(2)})

	parentVal, _ := rt.GetVariable("x")
	childVal, _ := child.GetVariable("x")

	if parentVal[0].(types.Integer).Value() != 1 {
		t.Error("parent's binding of x must remain 1")
	}
	if childVal[0].(types.Integer).Value() != 2 {
		t.Error("child's binding of x should be 2")
	}
}

func TestWithIndexAndWithTotal(t *testing.T) {
	rt := NewContext([]byte(`{}`))

	indexed := rt.WithIndex(3)
	if indexed.Index() != 3 {
		t.Errorf("got index %d, want 3", indexed.Index())
	}
	if rt.Index() != 0 {
		t.Error("WithIndex must not mutate the receiver")
	}

	totaled := rt.WithTotal(types.NewInteger(42))
	if len(totaled.Total()) != 1 || totaled.Total()[0].(types.Integer).Value() != 42 {
		t.Errorf("got %v, want [42]", totaled.Total())
	}
	if len(rt.Total()) != 0 {
		t.Error("WithTotal must not mutate the receiver")
	}
}

func TestLimitsAreIndependentOfVariables(t *testing.T) {
	rt := NewContext([]byte(`{}`))
	rt.SetLimit("maxCollectionSize", 2)

	if got := rt.GetLimit("maxCollectionSize"); got != 2 {
		t.Errorf("got %d, want 2", got)
	}
	if got := rt.GetLimit("unset"); got != 0 {
		t.Errorf("unset limit should default to 0, got %d", got)
	}
}

func TestCheckCollectionSize(t *testing.T) {
	rt := NewContext([]byte(`{}`))
	rt.SetLimit("maxCollectionSize", 2)

	ok := types.Collection{types.NewInteger(1), types.NewInteger(2)}
	if err := rt.CheckCollectionSize(ok); err != nil {
		t.Errorf("expected no error at the limit, got %v", err)
	}

	tooBig := types.Collection{types.NewInteger(1), types.NewInteger(2), types.NewInteger(3)}
	if err := rt.CheckCollectionSize(tooBig); err == nil {
		t.Error("expected an error over the limit")
	}
}

func TestCheckCancellation(t *testing.T) {
	rt := NewContext([]byte(`{}`))
	ctx, cancel := context.WithCancel(context.Background())
	rt.SetContext(ctx)

	if err := rt.CheckCancellation(); err != nil {
		t.Errorf("expected no error before cancellation, got %v", err)
	}

	cancel()
	if err := rt.CheckCancellation(); err == nil {
		t.Error("expected an error after cancellation")
	}
}

func TestModelProviderDefaultsToBuiltin(t *testing.T) {
	rt := NewContext([]byte(`{}`))
	if _, ok := rt.ModelProvider().(model.BuiltinProvider); !ok {
		t.Errorf("expected BuiltinProvider by default, got %T", rt.ModelProvider())
	}
}

func TestTraceHookReceivesValues(t *testing.T) {
	rt := NewContext([]byte(`{}`))
	var gotName string
	var gotValues types.Collection
	rt.SetTraceHook(func(name string, values types.Collection) {
		gotName = name
		gotValues = values
	})

	rt.Trace("label", types.Collection{types.NewInteger(7)})

	if gotName != "label" {
		t.Errorf("got name %q, want %q", gotName, "label")
	}
	if len(gotValues) != 1 {
		t.Errorf("got %d values, want 1", len(gotValues))
	}
}

func TestStrictMode(t *testing.T) {
	rt := NewContext([]byte(`{}`))
	if rt.Strict() {
		t.Error("strict mode should default to false")
	}
	rt.SetStrict(true)
	if !rt.Strict() {
		t.Error("SetStrict(true) should make Strict() report true")
	}
}
