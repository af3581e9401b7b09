package fhirpath_test

import (
	"testing"

	"github.com/fhircraft-go/fhirprofile/fhirpath"
)

func TestParseRenderRoundTrip(t *testing.T) {
	cases := []string{
		"Patient.name.given",
		"Patient.name.where(family = 'Doe').given",
		"component[2].valueString",
		"component.where(code.coding.code = 'sys')",
		"1 + 2 * 3",
		"name.exists() and active",
	}
	for _, src := range cases {
		t.Run(src, func(t *testing.T) {
			expr, err := fhirpath.Parse(src)
			if err != nil {
				t.Fatalf("Parse(%q): unexpected error: %v", src, err)
			}
			rendered := expr.String()
			if _, err := fhirpath.Parse(rendered); err != nil {
				t.Fatalf("Parse(%q) rendered as %q, which failed to re-parse: %v", src, rendered, err)
			}
		})
	}
}

func TestParseInvalidExpression(t *testing.T) {
	cases := []string{
		"Patient..name",
		"Patient.name(",
		"1 +",
	}
	for _, src := range cases {
		t.Run(src, func(t *testing.T) {
			if _, err := fhirpath.Parse(src); err == nil {
				t.Fatalf("Parse(%q): expected a LexError or ParseError", src)
			}
		})
	}
}

func TestParsePrecedence(t *testing.T) {
	expr, err := fhirpath.Parse("1 + 2 * 3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bin, ok := expr.(*fhirpath.BinaryOp)
	if !ok {
		t.Fatalf("expected top-level BinaryOp, got %T", expr)
	}
	if bin.Op != "+" {
		t.Fatalf("expected '+' at the top level (tighter '*' binds first), got %q", bin.Op)
	}
}

func TestParseSliceAndIndex(t *testing.T) {
	expr, err := fhirpath.Parse("component[2]")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	child, ok := expr.(*fhirpath.Child)
	if !ok {
		t.Fatalf("expected Child, got %T", expr)
	}
	if _, ok := child.RHS.(*fhirpath.Index); !ok {
		t.Fatalf("expected Index as RHS, got %T", child.RHS)
	}

	expr, err = fhirpath.Parse("component[0:2]")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	child, ok = expr.(*fhirpath.Child)
	if !ok {
		t.Fatalf("expected Child, got %T", expr)
	}
	if _, ok := child.RHS.(*fhirpath.Slice); !ok {
		t.Fatalf("expected Slice as RHS, got %T", child.RHS)
	}
}
