package profile

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/fhircraft-go/fhirprofile/fhirtype"
	"github.com/fhircraft-go/fhirprofile/structuredefinition"
)

// ProfileRegistry is the process-wide compiled-profile cache keyed by
// canonical URL (§5 Concurrency & Resource Model), replacing the Python
// original's module-level `ResourceFactory.profiles` dict with an
// explicit-lifecycle type a host constructs and owns. Cache hits take only
// the read lock; compiling a miss serialises under the write lock,
// same as every other concurrent-write path in the teacher's own caches.
type ProfileRegistry struct {
	typeRegistry *fhirtype.Registry
	fetch        func(canonicalURL string) (*structuredefinition.StructureDefinition, error)

	mu    sync.RWMutex
	cache map[string]*Model
}

// NewProfileRegistry constructs an empty registry. fetch resolves a
// canonical URL to its parsed StructureDefinition — ordinarily
// structuredefinition.Fetch bound to an *http.Client, but callers running
// against a local implementation-guide bundle can supply a map lookup
// instead.
func NewProfileRegistry(typeRegistry *fhirtype.Registry, fetch func(string) (*structuredefinition.StructureDefinition, error)) *ProfileRegistry {
	return &ProfileRegistry{
		typeRegistry: typeRegistry,
		fetch:        fetch,
		cache:        map[string]*Model{},
	}
}

// Compile returns the cached Model for canonicalURL, compiling and
// memoising it on a first request, grounded on spec.md §5's read-through
// cache description ("construct_resource_model(url) returns a cached entry
// if present, otherwise compiles and memoises").
func (r *ProfileRegistry) Compile(canonicalURL string) (*Model, error) {
	r.mu.RLock()
	if m, ok := r.cache[canonicalURL]; ok {
		r.mu.RUnlock()
		return m, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.compileLocked(canonicalURL)
}

// compileLocked is Compile's miss path and must be called with r.mu held
// for writing. It is also the compileProfile callback handed to Compile, so
// a referenced Extension profile compiles under the same lock.
func (r *ProfileRegistry) compileLocked(canonicalURL string) (*Model, error) {
	if m, ok := r.cache[canonicalURL]; ok {
		return m, nil
	}

	slog.Debug("profile: cache miss, compiling", "url", canonicalURL)
	if r.fetch == nil {
		return nil, fmt.Errorf("profile: no fetch function configured for %q", canonicalURL)
	}
	sd, err := r.fetch(canonicalURL)
	if err != nil {
		return nil, fmt.Errorf("profile: fetching %q: %w", canonicalURL, err)
	}

	model, err := Compile(sd, r.typeRegistry, r.compileLocked)
	if err != nil {
		return nil, fmt.Errorf("profile: compiling %q: %w", canonicalURL, err)
	}
	r.cache[canonicalURL] = model
	return model, nil
}

// MustCompile is Compile with a panic instead of an error, for callers that
// only ever reference profiles known to resolve (test fixtures, init-time
// wiring of a fixed implementation guide).
func (r *ProfileRegistry) MustCompile(canonicalURL string) *Model {
	m, err := r.Compile(canonicalURL)
	if err != nil {
		panic(err)
	}
	return m
}

// Clear empties the cache, grounded on ResourceFactory.clear_chache.
func (r *ProfileRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = map[string]*Model{}
}
