package fhirpath_test

import (
	"context"
	"testing"

	"github.com/fhircraft-go/fhirprofile/fhirpath"
)

func observationFixture() *fhirpath.MapNode {
	return fhirpath.NewMapNode("Observation", map[string]any{
		"component": []any{
			map[string]any{"valueString": "a"},
			map[string]any{"valueString": "b"},
			map[string]any{"valueString": "c"},
		},
		"extension": []any{
			map[string]any{"url": "http://example.org/ext1", "valueString": "one"},
			map[string]any{"url": "http://example.org/ext2", "valueString": "two"},
		},
		"status": "final",
		"active": true,
	})
}

func TestEvaluateFlattensAcrossChild(t *testing.T) {
	expr := fhirpath.MustParse("component.valueString")
	values, err := fhirpath.Evaluate(context.Background(), observationFixture(), expr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(values) != 3 || values[0] != "a" || values[1] != "b" || values[2] != "c" {
		t.Fatalf("unexpected result: %v", values)
	}
}

func TestIndexAddressesRawListBeforeFlatten(t *testing.T) {
	expr := fhirpath.MustParse("component[1].valueString")
	values, err := fhirpath.Evaluate(context.Background(), observationFixture(), expr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(values) != 1 || values[0] != "b" {
		t.Fatalf("unexpected result: %v", values)
	}
}

func TestIndexOutOfRangeIsEmptyNotError(t *testing.T) {
	expr := fhirpath.MustParse("component[99].valueString")
	values, err := fhirpath.Evaluate(context.Background(), observationFixture(), expr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(values) != 0 {
		t.Fatalf("expected empty result, got %v", values)
	}
}

func TestWhereFiltersByPredicate(t *testing.T) {
	expr := fhirpath.MustParse("component.where(valueString = 'b')")
	values, err := fhirpath.Evaluate(context.Background(), observationFixture(), expr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(values) != 1 {
		t.Fatalf("expected one match, got %v", values)
	}
}

func TestUpdateWritesThroughPathItem(t *testing.T) {
	resource := observationFixture()
	expr := fhirpath.MustParse("component[0].valueString")
	if err := fhirpath.Update(context.Background(), resource, expr, "z"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	values, err := fhirpath.Evaluate(context.Background(), resource, expr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(values) != 1 || values[0] != "z" {
		t.Fatalf("write did not take effect, got %v", values)
	}
}

func TestExtensionSugar(t *testing.T) {
	expr := fhirpath.MustParse(`extension('http://example.org/ext2').valueString`)
	values, err := fhirpath.Evaluate(context.Background(), observationFixture(), expr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(values) != 1 || values[0] != "two" {
		t.Fatalf("unexpected result: %v", values)
	}
}

func TestAndShortCircuitsOnFalse(t *testing.T) {
	expr := fhirpath.MustParse("status = 'cancelled' and nonexistent.field")
	values, err := fhirpath.Evaluate(context.Background(), observationFixture(), expr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(values) != 1 || values[0] != false {
		t.Fatalf("unexpected result: %v", values)
	}
}

func TestUnionDeduplicates(t *testing.T) {
	expr := fhirpath.MustParse("status | status")
	values, err := fhirpath.Evaluate(context.Background(), observationFixture(), expr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(values) != 1 {
		t.Fatalf("expected union to deduplicate, got %v", values)
	}
}

func TestArithmeticOnIntegers(t *testing.T) {
	expr := fhirpath.MustParse("1 + 2 * 3")
	values, err := fhirpath.Evaluate(context.Background(), observationFixture(), expr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(values) != 1 || values[0] != 7 {
		t.Fatalf("unexpected result: %v", values)
	}
}
