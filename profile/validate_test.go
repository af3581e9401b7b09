package profile

import (
	"context"
	"testing"

	"github.com/fhircraft-go/fhirprofile/fhirpath"
)

func TestValidatePassesWhenFixedAndCardinalitySatisfied(t *testing.T) {
	model, err := Compile(testObservationSD(), testRegistry(), nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	resource, err := ConstructWithProfiledElements(model, DefaultRuntimeOptions())
	if err != nil {
		t.Fatalf("ConstructWithProfiledElements: %v", err)
	}

	// status already carries its fixed "final" value from construction, and
	// Observation.status has cardinality [1,1], so it alone should validate
	// even though the bodyTemp slice is still incomplete.
	for _, c := range resource.model.Constraints {
		if c.Path != "Observation.status" {
			continue
		}
		if errs := checkConstraint(context.Background(), resource, c.Path, c); len(errs) != 0 {
			t.Fatalf("checkConstraint(status) = %v, want none", errs)
		}
	}
}

func TestValidateReportsCardinalityViolation(t *testing.T) {
	model, err := Compile(testObservationSD(), testRegistry(), nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	resource := model.NewInstance()

	var statusConstraint *Constraint
	for _, c := range resource.model.Constraints {
		if c.Path == "Observation.status" {
			statusConstraint = c
		}
	}
	if statusConstraint == nil {
		t.Fatalf("fixture missing Observation.status constraint")
	}

	// resource was built with NewInstance (no presets), so status is absent
	// entirely: the [1,1] cardinality rule should fail.
	if err := Validate(resource); err == nil {
		t.Fatalf("Validate() = nil, want a cardinality violation on Observation.status")
	}
}

func TestIsPatternSupersetDetectsMismatch(t *testing.T) {
	pattern := map[string]any{"text": "Body Temperature"}
	conformant := fhirpath.NewMapNode("CodeableConcept", map[string]any{"text": "Body Temperature"})
	mismatched := fhirpath.NewMapNode("CodeableConcept", map[string]any{"text": "Heart Rate"})

	if !isPatternSuperset(pattern, conformant) {
		t.Errorf("isPatternSuperset(conformant) = false, want true")
	}
	if isPatternSuperset(pattern, mismatched) {
		t.Errorf("isPatternSuperset(mismatched) = true, want false")
	}
}

func TestValidateDetectsPatternMismatchOnSlice(t *testing.T) {
	model, err := Compile(testObservationSD(), testRegistry(), nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	resource, err := ConstructWithProfiledElements(model, DefaultRuntimeOptions())
	if err != nil {
		t.Fatalf("ConstructWithProfiledElements: %v", err)
	}

	componentsAny, ok := resource.Get("component")
	if !ok {
		t.Fatalf("component not set")
	}
	components, ok := componentsAny.([]any)
	if !ok || len(components) != 1 {
		t.Fatalf("component = %v, want a single seeded slice", componentsAny)
	}
	slice := components[0].(*Instance)

	// Overwrite the preset pattern-conformant code with a navigable
	// fhirpath.MapNode that no longer matches the bodyTemp slice's pattern,
	// mirroring how the runtime itself writes preset complex values.
	if err := slice.Set("code", fhirpath.NewMapNode("CodeableConcept", map[string]any{"text": "Heart Rate"})); err != nil {
		t.Fatalf("Set: %v", err)
	}

	group := resource.model.Slicing[0]
	bodyTemp := group.Slices[0]
	var patternConstraint *Constraint
	for _, c := range bodyTemp.Constraints {
		if c.Pattern != nil {
			patternConstraint = c
		}
	}
	if patternConstraint == nil {
		t.Fatalf("fixture missing bodyTemp pattern constraint")
	}
	path := sliceConstraintPath(group, bodyTemp, patternConstraint)
	if errs := checkConstraint(context.Background(), resource, path, patternConstraint); len(errs) == 0 {
		t.Fatalf("checkConstraint(pattern) = none, want a mismatch after overwriting code")
	}
}

func TestInvariantHoldsRequiresTrueResult(t *testing.T) {
	if invariantHolds(nil) {
		t.Errorf("invariantHolds(nil) = true, want false")
	}
	if invariantHolds([]any{false}) {
		t.Errorf("invariantHolds([false]) = true, want false")
	}
	if !invariantHolds([]any{true}) {
		t.Errorf("invariantHolds([true]) = false, want true")
	}
}
