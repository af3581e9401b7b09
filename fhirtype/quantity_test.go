package fhirtype_test

import (
	"testing"

	"github.com/cockroachdb/apd/v3"
	"github.com/fhircraft-go/fhirprofile/fhirtype"
)

func TestNewQuantitySkipsValidationForNonUCUMSystem(t *testing.T) {
	value := apd.New(5, 0)
	q, err := fhirtype.NewQuantity(value, "widgets", "http://example.org/local-codes", "wdgt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, unit := q.FHIRQuantity()
	if v.Cmp(value) != 0 || unit != "wdgt" {
		t.Fatalf("unexpected FHIRQuantity() result: %v %q", v, unit)
	}
}

func TestNewQuantityFallsBackToUnitWhenCodeEmpty(t *testing.T) {
	value := apd.New(5, 0)
	q, err := fhirtype.NewQuantity(value, "mg", "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, unit := q.FHIRQuantity()
	if unit != "mg" {
		t.Fatalf("expected unit fallback to %q, got %q", "mg", unit)
	}
}
