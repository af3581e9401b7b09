package profile

import (
	"testing"

	"github.com/fhircraft-go/fhirprofile/fhirtype"
	"github.com/fhircraft-go/fhirprofile/release"
	"github.com/fhircraft-go/fhirprofile/structuredefinition"
)

// testObservationSD builds a small synthetic Observation profile exercising
// a type choice (value[x]), a nested BackboneElement (component), and a
// slicing group with one pattern-discriminated slice (component:bodyTemp),
// grounded on the shape original_source/test/test_fhir_resources_factory.py
// exercises against real StructureDefinition fixtures.
func testObservationSD() *structuredefinition.StructureDefinition {
	min0, min1 := 0, 1
	elements := []structuredefinition.ElementDefinition{
		{ID: "Observation", Path: "Observation", Short: "Measurement"},
		{ID: "Observation.id", Path: "Observation.id", Min: &min0, Max: "1", Type: []structuredefinition.ElementType{{Code: "string"}}},
		{ID: "Observation.status", Path: "Observation.status", Min: &min1, Max: "1", Type: []structuredefinition.ElementType{{Code: "code"}},
			Fixed: map[string]any{"code": "final"}},
		{ID: "Observation.value[x]", Path: "Observation.value[x]", Min: &min0, Max: "1",
			Type: []structuredefinition.ElementType{{Code: "string"}, {Code: "Quantity"}}},
		{ID: "Observation.component", Path: "Observation.component", Min: &min0, Max: "*",
			Type: []structuredefinition.ElementType{{Code: "BackboneElement"}},
			Slicing: &structuredefinition.Slicing{
				Discriminator: []structuredefinition.Discriminator{{Type: "pattern", Path: "code"}},
				Rules:         "open",
			}},
		{ID: "Observation.component.code", Path: "Observation.component.code", Min: &min1, Max: "1",
			Type: []structuredefinition.ElementType{{Code: "CodeableConcept"}}},
		{ID: "Observation.component.value[x]", Path: "Observation.component.value[x]", Min: &min0, Max: "1",
			Type: []structuredefinition.ElementType{{Code: "Quantity"}}},
		{ID: "Observation.component:bodyTemp", Path: "Observation.component", Min: &min1, Max: "1",
			SliceName: "bodyTemp", Type: []structuredefinition.ElementType{{Code: "BackboneElement"}}},
		{ID: "Observation.component:bodyTemp.code", Path: "Observation.component.code", Min: &min1, Max: "1",
			Pattern: map[string]any{"CodeableConcept": map[string]any{"text": "Body Temperature"}}},
	}
	return &structuredefinition.StructureDefinition{
		URL:            "http://example.org/StructureDefinition/test-observation",
		Name:           "TestObservation",
		Type:           "Observation",
		Kind:           "resource",
		BaseDefinition: "http://hl7.org/fhir/StructureDefinition/DomainResource",
		Version:        "1.0.0",
		Snapshot:       &structuredefinition.ElementsHolder{Element: elements},
	}
}

func testRegistry() *fhirtype.Registry {
	return fhirtype.NewRegistry(release.R4{})
}

func TestCompileExpandsTypeChoice(t *testing.T) {
	model, err := Compile(testObservationSD(), testRegistry(), nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	base, ok := model.FieldByName("value")
	if !ok || !base.IsChoiceBase {
		t.Fatalf("expected a choice-base field %q, got %+v ok=%v", "value", base, ok)
	}
	wantChoices := map[string]bool{"valueString": true, "valueQuantity": true}
	if len(base.ChoiceFields) != len(wantChoices) {
		t.Fatalf("ChoiceFields = %v, want keys of %v", base.ChoiceFields, wantChoices)
	}
	for _, name := range base.ChoiceFields {
		if !wantChoices[name] {
			t.Errorf("unexpected choice field %q", name)
		}
		if _, ok := model.FieldByName(name); !ok {
			t.Errorf("concrete choice field %q was not added to the model", name)
		}
	}
}

func TestCompileNestsBackboneElement(t *testing.T) {
	model, err := Compile(testObservationSD(), testRegistry(), nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	component, ok := model.FieldByName("component")
	if !ok {
		t.Fatalf("missing component field")
	}
	if component.Nested == nil {
		t.Fatalf("component should compile to a nested Model")
	}
	if _, ok := component.Nested.FieldByName("code"); !ok {
		t.Errorf("nested component model missing field %q", "code")
	}
}

func TestCompileBuildsSlicingGroup(t *testing.T) {
	model, err := Compile(testObservationSD(), testRegistry(), nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(model.Slicing) != 1 {
		t.Fatalf("expected 1 slicing group, got %d", len(model.Slicing))
	}
	group := model.Slicing[0]
	if group.Path != "Observation.component" {
		t.Errorf("group.Path = %q", group.Path)
	}
	if len(group.Slices) != 1 || group.Slices[0].Name != "bodyTemp" {
		t.Fatalf("expected slice %q, got %+v", "bodyTemp", group.Slices)
	}
	slice := group.Slices[0]
	if slice.MinCardinality() != 1 || slice.MaxCardinality() != 1 {
		t.Errorf("bodyTemp cardinality = [%d,%d], want [1,1]", slice.MinCardinality(), slice.MaxCardinality())
	}
}

func TestCompileRoutesNonSliceConstraintsGlobally(t *testing.T) {
	model, err := Compile(testObservationSD(), testRegistry(), nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	var sawStatus bool
	for _, c := range model.Constraints {
		if c.Path == "Observation.status" {
			sawStatus = true
			if c.FixedValue != "final" {
				t.Errorf("status constraint FixedValue = %v, want %q", c.FixedValue, "final")
			}
		}
		if c.IsSliceConstraint() {
			t.Errorf("slice constraint %q leaked into global constraints", c.ID)
		}
	}
	if !sawStatus {
		t.Fatalf("expected a global constraint on Observation.status")
	}
}
