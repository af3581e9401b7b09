package fhirpath_test

import (
	"context"
	"testing"

	"github.com/fhircraft-go/fhirprofile/fhirpath"
)

func patientFixture() *fhirpath.MapNode {
	return fhirpath.NewMapNode("Patient", map[string]any{
		"name": []any{
			map[string]any{"family": "Doe", "given": []any{"Jane", "Q"}},
			map[string]any{"family": "Smith", "given": []any{"John"}},
		},
		"active": true,
	})
}

func evalOne(t *testing.T, resource *fhirpath.MapNode, src string) []any {
	t.Helper()
	values, err := fhirpath.Evaluate(context.Background(), resource, fhirpath.MustParse(src))
	if err != nil {
		t.Fatalf("Evaluate(%q): unexpected error: %v", src, err)
	}
	return values
}

func TestSelectFlattensNestedResults(t *testing.T) {
	values := evalOne(t, patientFixture(), "name.select(given)")
	if len(values) != 3 {
		t.Fatalf("expected 3 given names, got %v", values)
	}
}

func TestFirstLastTailSkipTake(t *testing.T) {
	cases := []struct {
		expr string
		want []any
	}{
		{"name.family.first()", []any{"Doe"}},
		{"name.family.last()", []any{"Smith"}},
		{"name.family.tail()", []any{"Smith"}},
		{"name.family.skip(1)", []any{"Smith"}},
		{"name.family.take(1)", []any{"Doe"}},
	}
	for _, tc := range cases {
		t.Run(tc.expr, func(t *testing.T) {
			got := evalOne(t, patientFixture(), tc.expr)
			if len(got) != len(tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("expected %v, got %v", tc.want, got)
				}
			}
		})
	}
}

func TestCountDistinctIsDistinct(t *testing.T) {
	if got := evalOne(t, patientFixture(), "name.family.count()"); got[0] != 2 {
		t.Fatalf("expected count 2, got %v", got)
	}
	if got := evalOne(t, patientFixture(), "(name.family | name.family).count()"); got[0] != 2 {
		t.Fatalf("expected union-deduplicated count 2, got %v", got)
	}
	if got := evalOne(t, patientFixture(), "name.family.isDistinct()"); got[0] != true {
		t.Fatalf("expected isDistinct() true, got %v", got)
	}
}

func TestExistsAndAll(t *testing.T) {
	if got := evalOne(t, patientFixture(), "name.exists(family = 'Doe')"); got[0] != true {
		t.Fatalf("expected exists() true, got %v", got)
	}
	if got := evalOne(t, patientFixture(), "name.all(family.exists())"); got[0] != true {
		t.Fatalf("expected all() true, got %v", got)
	}
}

func TestStringFunctions(t *testing.T) {
	cases := []struct {
		expr string
		want any
	}{
		{"name.family.first().upper()", "DOE"},
		{"name.family.first().lower()", "doe"},
		{"name.family.first().startsWith('Do')", true},
		{"name.family.first().substring(1, 2)", "oe"},
		{"name.family.first().length()", 3},
		{"name.family.first().replace('oe', 'ae')", "Dae"},
		{"name.family.first().matches('D.*')", true},
	}
	for _, tc := range cases {
		t.Run(tc.expr, func(t *testing.T) {
			got := evalOne(t, patientFixture(), tc.expr)
			if len(got) != 1 || got[0] != tc.want {
				t.Fatalf("expected [%v], got %v", tc.want, got)
			}
		})
	}
}

func TestMathFunctions(t *testing.T) {
	neg := fhirpath.NewMapNode("Patient", map[string]any{})
	if got := evalOne(t, neg, "(-4).abs()"); len(got) != 1 || got[0].(interface{ String() string }).String() != "4" {
		t.Fatalf("expected abs(-4) = 4, got %v", got)
	}
}

func TestHasValueAndGetValue(t *testing.T) {
	if got := evalOne(t, patientFixture(), "active.hasValue()"); got[0] != true {
		t.Fatalf("expected hasValue() true, got %v", got)
	}
	if got := evalOne(t, patientFixture(), "active.getValue()"); len(got) != 1 || got[0] != true {
		t.Fatalf("expected getValue() true, got %v", got)
	}
}

func TestChildrenAndDescendants(t *testing.T) {
	got := evalOne(t, patientFixture(), "name.children()")
	if len(got) == 0 {
		t.Fatalf("expected children() to return name's fields, got %v", got)
	}
	// Two names: family plus given Jane, Q for the first; family plus given John for the second.
	if got := evalOne(t, patientFixture(), "name.descendants()"); len(got) != 5 {
		t.Fatalf("expected 5 descendants of name, got %v", got)
	}
}

func TestIifBranches(t *testing.T) {
	if got := evalOne(t, patientFixture(), "iif(active, 'yes', 'no')"); got[0] != "yes" {
		t.Fatalf("expected 'yes', got %v", got)
	}
}
