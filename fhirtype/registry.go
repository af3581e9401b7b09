package fhirtype

import (
	"fmt"

	"github.com/fhircraft-go/fhirprofile/fhirpath"
	"github.com/fhircraft-go/fhirprofile/release"
)

// FieldDescriptor describes a single named field of a Complex type: its
// FHIR type name(s) (more than one only for an unresolved type-choice base),
// cardinality, and the sibling primitive-extension carrier it implies.
type FieldDescriptor struct {
	Name        string
	Types       []string
	Min         int
	Max         int // -1 means unbounded ("*")
	Description string
	Alias       string
	// HasExtensionCarrier is true for primitive-typed fields, which get a
	// sibling `_<name>` field of type Element to carry extensions (§4.5).
	HasExtensionCarrier bool
}

// Complex is a named record type: Resource, DomainResource, BackboneElement,
// or one of the reusable datatypes (Identifier, CodeableConcept, ...).
type Complex struct {
	Name   string
	Base   string // name of the complex type this inherits from, "" if none
	Fields []FieldDescriptor
}

// FieldByName returns the descriptor for a field, including inherited ones
// when Base resolves within the same release catalogue.
func (c *Complex) FieldByName(reg *Registry, name string) (FieldDescriptor, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}
	if c.Base == "" {
		return FieldDescriptor{}, false
	}
	base, ok := reg.Complex(c.Base)
	if !ok {
		return FieldDescriptor{}, false
	}
	return base.FieldByName(reg, name)
}

// Registry is the static, version-tagged FHIR type catalogue (§4.5). Lookup
// key is (release, name); one Registry instance is built per release and
// exposes both primitives (shared, release-agnostic regexes) and complex
// descriptors (release-specific, since element sets vary across R4/R4B/R5).
type Registry struct {
	release  release.Release
	complex  map[string]*Complex
	resource map[string]bool
}

var registries = map[string]*Registry{}

// NewRegistry builds (or returns the cached) Registry for a release,
// registering its resource type names into fhirpath's root-node set via
// RegisterRootNodes so the head of `Patient.name` parses as a Root
// reference rather than as an element access (§4.1, §4.2).
func NewRegistry(r release.Release) *Registry {
	key := r.String()
	if reg, ok := registries[key]; ok {
		return reg
	}
	reg := &Registry{
		release:  r,
		complex:  map[string]*Complex{},
		resource: map[string]bool{},
	}
	registerComplexTypes(reg)
	registries[key] = reg

	names := make([]string, 0, len(reg.resource))
	for name := range reg.resource {
		names = append(names, name)
	}
	fhirpath.RegisterRootNodes(names...)

	return reg
}

// Primitive looks up a primitive type descriptor. Primitive regex/coercion
// rules are release-agnostic (the FHIR core spec hasn't changed them across
// R4/R4B/R5), so Primitives is shared by every Registry.
func (reg *Registry) Primitive(name string) (*Primitive, bool) {
	p, ok := Primitives[name]
	return p, ok
}

// Complex looks up a complex type descriptor for this release.
func (reg *Registry) Complex(name string) (*Complex, bool) {
	c, ok := reg.complex[name]
	return c, ok
}

// IsResource reports whether name is a registered top-level resource type
// (as opposed to a reusable datatype or backbone element), used by
// structuredefinition when choosing the root base (Resource vs
// DomainResource) for a compiled profile.
func (reg *Registry) IsResource(name string) bool {
	return reg.resource[name]
}

func (reg *Registry) registerComplex(c *Complex, isResource bool) {
	reg.complex[c.Name] = c
	if isResource {
		reg.resource[c.Name] = true
	}
}

// Default constructs the zero value for a field's declared type, used by C3
// in Create mode (§4.3 Element, Index) and by C9.1 skeleton construction.
// It knows nothing of cardinality: it returns one scalar (false for
// boolean, "" for any other primitive) or one empty complex value, and any
// list wrapping is the caller's job. An unrecognised type name is a
// configuration error, not a runtime one, since it can only arise from a
// malformed StructureDefinition.
func (reg *Registry) Default(typeName string) (any, error) {
	if p, ok := reg.Primitive(typeName); ok {
		if p.Name == "boolean" {
			return false, nil
		}
		return "", nil
	}
	if c, ok := reg.Complex(typeName); ok {
		fields := map[string]any{}
		return NewInstanceMap(c.Name, fields), nil
	}
	return nil, fmt.Errorf("fhirtype: unknown type %q for release %q", typeName, reg.release.String())
}

// NewInstanceMap wraps a plain field map as a fhirpath.Node-compatible
// value stamped with its FHIR type name. structuredefinition and profile
// build richer Instance values (backed by compiled FieldSpec); this helper
// exists so Registry.Default has somewhere schema-less to put an empty
// complex value without importing profile (which imports fhirtype),
// avoiding a cycle.
func NewInstanceMap(typeName string, fields map[string]any) *fhirpath.MapNode {
	return fhirpath.NewMapNode(typeName, fields)
}
