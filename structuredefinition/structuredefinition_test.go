package structuredefinition_test

import (
	"testing"

	"github.com/fhircraft-go/fhirprofile/structuredefinition"
)

func samplePatientProfile() []byte {
	return []byte(`{
		"url": "http://example.org/fhir/StructureDefinition/my-patient",
		"name": "MyPatient",
		"type": "Patient",
		"kind": "resource",
		"version": "1.0.0",
		"snapshot": {
			"element": [
				{"id": "Patient", "path": "Patient", "min": 0, "max": "*"},
				{"id": "Patient.name", "path": "Patient.name", "min": 1, "max": "*",
				 "slicing": {"discriminator": [{"type": "value", "path": "use"}], "rules": "open"}},
				{"id": "Patient.name:official", "path": "Patient.name", "min": 0, "max": "1",
				 "sliceName": "official", "type": [{"code": "HumanName"}],
				 "patternHumanName": {"use": "official"}},
				{"id": "Patient.active", "path": "Patient.active", "min": 0, "max": "1",
				 "type": [{"code": "boolean"}], "fixedBoolean": true}
			]
		}
	}`)
}

func TestParseRejectsMissingSnapshot(t *testing.T) {
	if _, err := structuredefinition.Parse([]byte(`{"url": "x"}`)); err == nil {
		t.Fatalf("expected an error for a missing snapshot")
	}
}

func TestParseDecodesFixedAndPatternBySuffix(t *testing.T) {
	sd, err := structuredefinition.Parse(samplePatientProfile())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var sliceElement, activeElement *structuredefinition.ElementDefinition
	for i, e := range sd.Snapshot.Element {
		switch e.ID {
		case "Patient.name:official":
			sliceElement = &sd.Snapshot.Element[i]
		case "Patient.active":
			activeElement = &sd.Snapshot.Element[i]
		}
	}
	if sliceElement == nil || sliceElement.Pattern["HumanName"] == nil {
		t.Fatalf("expected patternHumanName to be captured under Pattern[\"HumanName\"]")
	}
	if activeElement == nil || activeElement.Fixed["Boolean"] != true {
		t.Fatalf("expected fixedBoolean to be captured under Fixed[\"Boolean\"]")
	}
}

func TestBuildTreeAttachesSlicesToParent(t *testing.T) {
	sd, err := structuredefinition.Parse(samplePatientProfile())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tree := structuredefinition.BuildTree(sd.Snapshot.Element)
	patient, ok := tree.Children["Patient"]
	if !ok {
		t.Fatalf("expected a Patient node")
	}
	name, ok := patient.Children["name"]
	if !ok {
		t.Fatalf("expected a Patient.name node")
	}
	if name.Element == nil || name.Element.Slicing == nil {
		t.Fatalf("expected Patient.name to carry the slicing definition")
	}
	official, ok := name.Slices["official"]
	if !ok {
		t.Fatalf("expected an 'official' slice attached to Patient.name")
	}
	if official.Element.SliceName != "official" {
		t.Fatalf("unexpected slice element: %+v", official.Element)
	}
}

func TestMaxCardinalityParsesUnbounded(t *testing.T) {
	e := structuredefinition.ElementDefinition{Max: "*"}
	n, err := e.MaxCardinality()
	if err != nil || n != structuredefinition.MaxUnbounded {
		t.Fatalf("expected unbounded max, got %d, err %v", n, err)
	}
	e = structuredefinition.ElementDefinition{Max: "3"}
	n, err = e.MaxCardinality()
	if err != nil || n != 3 {
		t.Fatalf("expected max 3, got %d, err %v", n, err)
	}
}

func TestResolveURLRules(t *testing.T) {
	cases := []struct{ in, want string }{
		{"http://example.org/fhir/foo.json", "http://example.org/fhir/foo.json"},
		{"http://hl7.org/fhir/StructureDefinition/Patient", "https://hl7.org/fhir/R4/extension-patient.json"},
		{"http://example.org/fhir/StructureDefinition/my-patient", "http://example.org/fhir/StructureDefinition-my-patient.json"},
	}
	for _, tc := range cases {
		if got := structuredefinition.ResolveURL(tc.in); got != tc.want {
			t.Errorf("ResolveURL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
