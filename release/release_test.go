package release_test

import (
	"testing"

	"github.com/fhircraft-go/fhirprofile/release"
)

func TestMarkerTypesStringify(t *testing.T) {
	cases := []struct {
		r    release.Release
		want string
	}{
		{release.R4{}, "r4"},
		{release.R4B{}, "r4b"},
		{release.R5{}, "r5"},
	}
	for _, tc := range cases {
		if got := tc.r.String(); got != tc.want {
			t.Errorf("String() = %q, want %q", got, tc.want)
		}
	}
}

func TestFromStringRoundTrips(t *testing.T) {
	for _, key := range []string{"r4", "r4b", "r5"} {
		r, err := release.FromString(key)
		if err != nil {
			t.Fatalf("FromString(%q): unexpected error: %v", key, err)
		}
		if r.String() != key {
			t.Errorf("FromString(%q).String() = %q", key, r.String())
		}
	}
}

func TestFromStringRejectsUnknownKey(t *testing.T) {
	if _, err := release.FromString("r3"); err == nil {
		t.Fatalf("expected an error for an unknown release key")
	}
}

// TestInitThenCurrent exercises the only Init/Current call in this package's
// test binary: Init panics on a second call, so no other test in this file
// may call it.
func TestInitThenCurrent(t *testing.T) {
	release.Init(release.R4B{})
	if release.Current().String() != "r4b" {
		t.Fatalf("expected Current() to return the release passed to Init")
	}
}
