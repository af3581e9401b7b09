package fhirtype_test

import (
	"testing"

	"github.com/fhircraft-go/fhirprofile/fhirtype"
	"github.com/fhircraft-go/fhirprofile/release"
)

func TestRegistryResolvesInheritedFields(t *testing.T) {
	reg := fhirtype.NewRegistry(release.R4B{})
	patient, ok := reg.Complex("Patient")
	if !ok {
		t.Fatalf("expected Patient to be registered")
	}
	if _, ok := patient.FieldByName(reg, "name"); !ok {
		t.Fatalf("expected Patient.name to resolve")
	}
	if _, ok := patient.FieldByName(reg, "id"); !ok {
		t.Fatalf("expected Patient.id to resolve via Resource base")
	}
	if _, ok := patient.FieldByName(reg, "nonexistent"); ok {
		t.Fatalf("did not expect nonexistent field to resolve")
	}
}

func TestRegistryMarksResourcesNotDatatypes(t *testing.T) {
	reg := fhirtype.NewRegistry(release.R4B{})
	if !reg.IsResource("Observation") {
		t.Fatalf("expected Observation to be a resource")
	}
	if reg.IsResource("CodeableConcept") {
		t.Fatalf("did not expect CodeableConcept to be a resource")
	}
}

func TestPrimitiveRegexMatchesConformantValues(t *testing.T) {
	date, ok := fhirtype.Primitives["date"]
	if !ok {
		t.Fatalf("expected date primitive to be registered")
	}
	for _, valid := range []string{"2024", "2024-01", "2024-01-15"} {
		if !date.Pattern.MatchString(valid) {
			t.Errorf("expected %q to match date pattern", valid)
		}
	}
	if date.Pattern.MatchString("2024-13-01") {
		t.Errorf("did not expect 2024-13-01 (invalid month) to match date pattern")
	}
}

func TestDefaultConstructsEmptyComplexValue(t *testing.T) {
	reg := fhirtype.NewRegistry(release.R4B{})
	v, err := reg.Default("HumanName")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := v.(interface{ TypeName() string }); !ok {
		t.Fatalf("expected a Node-shaped default, got %T", v)
	}
}

func TestDefaultRejectsUnknownType(t *testing.T) {
	reg := fhirtype.NewRegistry(release.R4B{})
	if _, err := reg.Default("NotARealType"); err == nil {
		t.Fatalf("expected an error for an unknown type")
	}
}
