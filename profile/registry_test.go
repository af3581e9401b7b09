package profile

import (
	"errors"
	"testing"

	"github.com/fhircraft-go/fhirprofile/structuredefinition"
)

func TestProfileRegistryCompilesOnMiss(t *testing.T) {
	calls := 0
	reg := NewProfileRegistry(testRegistry(), func(url string) (*structuredefinition.StructureDefinition, error) {
		calls++
		return testObservationSD(), nil
	})

	model, err := reg.Compile("http://example.org/StructureDefinition/test-observation")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if model.TypeName != "Observation" {
		t.Errorf("model.TypeName = %q, want %q", model.TypeName, "Observation")
	}
	if calls != 1 {
		t.Errorf("fetch called %d times, want 1", calls)
	}
}

func TestProfileRegistryCachesAcrossCalls(t *testing.T) {
	calls := 0
	reg := NewProfileRegistry(testRegistry(), func(url string) (*structuredefinition.StructureDefinition, error) {
		calls++
		return testObservationSD(), nil
	})

	first, err := reg.Compile("http://example.org/StructureDefinition/test-observation")
	if err != nil {
		t.Fatalf("Compile (1st): %v", err)
	}
	second, err := reg.Compile("http://example.org/StructureDefinition/test-observation")
	if err != nil {
		t.Fatalf("Compile (2nd): %v", err)
	}
	if first != second {
		t.Errorf("Compile returned distinct *Model pointers across calls, want the cached instance reused")
	}
	if calls != 1 {
		t.Errorf("fetch called %d times, want 1 (second Compile should hit the cache)", calls)
	}
}

func TestProfileRegistrySurfacesFetchError(t *testing.T) {
	wantErr := errors.New("not found")
	reg := NewProfileRegistry(testRegistry(), func(url string) (*structuredefinition.StructureDefinition, error) {
		return nil, wantErr
	})

	if _, err := reg.Compile("http://example.org/StructureDefinition/missing"); err == nil {
		t.Fatalf("Compile() = nil error, want the fetch failure surfaced")
	}
}

func TestProfileRegistryClearForcesRefetch(t *testing.T) {
	calls := 0
	reg := NewProfileRegistry(testRegistry(), func(url string) (*structuredefinition.StructureDefinition, error) {
		calls++
		return testObservationSD(), nil
	})

	if _, err := reg.Compile("http://example.org/StructureDefinition/test-observation"); err != nil {
		t.Fatalf("Compile: %v", err)
	}
	reg.Clear()
	if _, err := reg.Compile("http://example.org/StructureDefinition/test-observation"); err != nil {
		t.Fatalf("Compile after Clear: %v", err)
	}
	if calls != 2 {
		t.Errorf("fetch called %d times across Clear, want 2", calls)
	}
}

func TestProfileRegistryNoFetchConfigured(t *testing.T) {
	reg := NewProfileRegistry(testRegistry(), nil)
	if _, err := reg.Compile("http://example.org/StructureDefinition/test-observation"); err == nil {
		t.Fatalf("Compile() = nil error, want an error when no fetch function is configured")
	}
}
