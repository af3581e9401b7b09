// Package release identifies which FHIR release a profile, StructureDefinition,
// or FHIRPath evaluation is compiled against. fhirtype keys its catalogue
// by Release.String(), mirroring the generic constraint
// `model.Release` used throughout the teacher's rest and capabilities packages.
package release

import "fmt"

// Release discriminates a FHIR release. Only String is required: callers key
// maps and registries off it rather than switching on concrete type, so new
// releases can be added without touching existing dispatch code.
type Release interface {
	String() string
}

// R4 identifies FHIR release 4.0.1.
type R4 struct{}

func (R4) String() string { return "r4" }

// R4B identifies FHIR release 4.3.0.
type R4B struct{}

func (R4B) String() string { return "r4b" }

// R5 identifies FHIR release 5.0.0.
type R5 struct{}

func (R5) String() string { return "r5" }

var current Release

// Init sets the process-wide release returned by Current. No other package
// in this module reads it: fhirtype and profile take a Release or a
// Registry explicitly. Calling Init twice is a programming error and panics.
func Init(r Release) {
	if current != nil {
		panic(fmt.Sprintf("release: already initialized to %q, cannot reinitialize to %q", current.String(), r.String()))
	}
	current = r
}

// Current returns the release set by Init. It panics if Init was never
// called.
func Current() Release {
	if current == nil {
		panic("release: Current() called before Init()")
	}
	return current
}

// FromString parses a release key as produced by Release.String(). It
// accepts the three keys fhirPathReleaseConfigs uses in the teacher's test
// fixtures ("r4", "r4b", "r5").
func FromString(key string) (Release, error) {
	switch key {
	case "r4":
		return R4{}, nil
	case "r4b":
		return R4B{}, nil
	case "r5":
		return R5{}, nil
	default:
		return nil, fmt.Errorf("release: unknown release key %q", key)
	}
}
