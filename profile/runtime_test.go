package profile

import (
	"testing"

	"github.com/fhircraft-go/fhirprofile/fhirpath"
)

func TestConstructWithProfiledElementsPresetsGlobalConstraint(t *testing.T) {
	model, err := Compile(testObservationSD(), testRegistry(), nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	resource, err := ConstructWithProfiledElements(model, DefaultRuntimeOptions())
	if err != nil {
		t.Fatalf("ConstructWithProfiledElements: %v", err)
	}
	status, ok := resource.Get("status")
	if !ok || status != "final" {
		t.Fatalf("status = %v, ok=%v, want %q", status, ok, "final")
	}
}

func TestConstructWithProfiledElementsSeedsSlice(t *testing.T) {
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
		t.Fatalf("component = %v, want a single-element slice placeholder", componentsAny)
	}
	slice, ok := components[0].(*Instance)
	if !ok {
		t.Fatalf("component[0] is %T, want *Instance", components[0])
	}
	code, ok := slice.Get("code")
	if !ok {
		t.Fatalf("slice instance missing preset code pattern")
	}
	m, ok := code.(*fhirpath.MapNode)
	if !ok {
		t.Fatalf("slice code = %T, want *fhirpath.MapNode", code)
	}
	if text, ok := m.Get("text"); !ok || text != "Body Temperature" {
		t.Fatalf("slice code.text = %v, ok=%v, want %q", text, ok, "Body Temperature")
	}
}

func TestCleanElementsAndSlicesDropsUntouchedIncompleteSlices(t *testing.T) {
	model, err := Compile(testObservationSD(), testRegistry(), nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	resource, err := ConstructWithProfiledElements(model, DefaultRuntimeOptions())
	if err != nil {
		t.Fatalf("ConstructWithProfiledElements: %v", err)
	}

	// The bodyTemp slice only has its pattern-preset "code" populated; its
	// "value" field was never set, so it is neither complete (IsComplete
	// requires every non-base field, not just required ones) nor modified:
	// cleanup should remove it from the component list entirely.
	if err := CleanElementsAndSlices(resource); err != nil {
		t.Fatalf("CleanElementsAndSlices: %v", err)
	}
	componentsAny, _ := resource.Get("component")
	components, _ := componentsAny.([]any)
	if len(components) != 0 {
		t.Fatalf("expected the untouched incomplete slice to be pruned, got %d component(s)", len(components))
	}
}

func TestCleanElementsAndSlicesKeepsModifiedSlice(t *testing.T) {
	model, err := Compile(testObservationSD(), testRegistry(), nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	resource, err := ConstructWithProfiledElements(model, DefaultRuntimeOptions())
	if err != nil {
		t.Fatalf("ConstructWithProfiledElements: %v", err)
	}

	TrackSliceChanges(resource, true)
	componentsAny, _ := resource.Get("component")
	components, _ := componentsAny.([]any)
	if len(components) != 1 {
		t.Fatalf("setup: expected 1 seeded component, got %d", len(components))
	}
	slice := components[0].(*Instance)
	if err := slice.Set("value", 37.0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if !slice.HasBeenModified() {
		t.Fatalf("slice should report modified after a tracked write")
	}

	if err := CleanElementsAndSlices(resource); err != nil {
		t.Fatalf("CleanElementsAndSlices: %v", err)
	}
	componentsAny, _ = resource.Get("component")
	components, _ = componentsAny.([]any)
	if len(components) != 1 {
		t.Fatalf("expected the modified slice to survive cleanup, got %d component(s)", len(components))
	}
}
