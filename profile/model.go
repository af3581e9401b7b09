package profile

import (
	"fmt"
	"strings"

	"github.com/fhircraft-go/fhirprofile/fhirtype"
)

// Model is the compiled runtime artifact of C7: a complex FHIR type
// extended with slicing groups, non-slice constraints, and enough metadata
// to construct/validate/clean instances (§3 Profile Model).
type Model struct {
	Name         string // the compiled resource/profile name (structureDefinition.Name)
	TypeName     string // the FHIR type/resourceType this model represents
	BaseTypeName string // last segment of the baseDefinition URL (e.g. "DomainResource"), or "BackboneElement" for a nested backbone model
	CanonicalURL string
	Description  string

	Fields      []FieldSpec
	fieldIndex  map[string]int
	Slicing     []*SlicingGroup
	Constraints []*Constraint

	registry *fhirtype.Registry
}

func newModel(name, typeName, base string, registry *fhirtype.Registry) *Model {
	return &Model{Name: name, TypeName: typeName, BaseTypeName: base, fieldIndex: map[string]int{}, registry: registry}
}

// addField appends a field and indexes it by name for FieldByName lookups.
func (m *Model) addField(f FieldSpec) {
	m.fieldIndex[f.Name] = len(m.Fields)
	m.Fields = append(m.Fields, f)
}

// FieldByName returns the compiled FieldSpec for name, including the
// virtual choice-base accessor if name matches one.
func (m *Model) FieldByName(name string) (FieldSpec, bool) {
	i, ok := m.fieldIndex[name]
	if !ok {
		return FieldSpec{}, false
	}
	return m.Fields[i], true
}

// NewInstance constructs an empty Instance of this model: every field
// absent, ready for Set calls (used as the starting point of C9.1 skeleton
// construction).
func (m *Model) NewInstance() *Instance {
	return &Instance{model: m, fields: map[string]any{}}
}

// Instance is a data-driven runtime value of a compiled Model (§9 Design
// Notes' "generic engine interpreting FieldSpec, not per-profile generated
// types"): fhirpath navigates it through the Node interface instead of Go
// struct reflection, and profile's factory/runtime/validate operate on its
// FieldSpec-guided field map instead of per-type generated accessors.
type Instance struct {
	model *Model

	fields map[string]any

	// trackChanges/hasBeenModified implement C9.2's mutation-tracking
	// side channel (`__track_changes__`/`__has_been_modified__` in
	// slicing.py's ProfiledSlice.__setattr__): once trackChanges is
	// enabled, any Set flips hasBeenModified, and it is never cleared.
	trackChanges    bool
	hasBeenModified bool
}

// Model returns the compiled model backing this instance.
func (i *Instance) Model() *Model { return i.model }

// TypeName implements fhirpath.Node.
func (i *Instance) TypeName() string { return i.model.TypeName }

// FieldNames implements fhirpath.Node, listing concrete (non-choice-base)
// field names so TypeChoice's prefix-matching walk in fhirpath/eval.go
// finds the expanded `value<Type>` fields rather than the virtual `value`
// accessor.
func (i *Instance) FieldNames() []string {
	names := make([]string, 0, len(i.model.Fields))
	for _, f := range i.model.Fields {
		if f.IsChoiceBase {
			continue
		}
		names = append(names, f.Name)
	}
	return names
}

// Get implements fhirpath.Node. A choice-base name (e.g. "value" for a
// `value[x]` element) returns whichever concrete `value<Type>` field is
// currently set, per §4.7's virtual accessor.
func (i *Instance) Get(field string) (any, bool) {
	spec, ok := i.model.FieldByName(field)
	if !ok {
		return nil, false
	}
	if spec.IsChoiceBase {
		for _, name := range spec.ChoiceFields {
			if v, ok := i.fields[name]; ok {
				return v, true
			}
		}
		return nil, false
	}
	v, ok := i.fields[field]
	return v, ok
}

// IsListField implements fhirpath.Node.
func (i *Instance) IsListField(field string) bool {
	spec, ok := i.model.FieldByName(field)
	return ok && spec.IsList()
}

// Set implements fhirpath.Node. Writing a choice-base name is rejected:
// callers must address the concrete `<base><Type>` field, since the
// virtual accessor doesn't know which type is being assigned.
func (i *Instance) Set(field string, value any) error {
	spec, ok := i.model.FieldByName(field)
	if !ok {
		return fmt.Errorf("profile: %s has no field %q", i.model.TypeName, field)
	}
	if spec.IsChoiceBase {
		return fmt.Errorf("profile: cannot set virtual choice accessor %q directly, set one of %v", field, spec.ChoiceFields)
	}
	i.fields[field] = value
	if i.trackChanges {
		i.hasBeenModified = true
	}
	return nil
}

// Default implements fhirpath.Node, constructing the zero value for field
// per §4.3's Create-mode Element/Index handling: a nested compiled Model
// gets a fresh Instance, a reusable datatype gets whatever the fhirtype
// registry constructs, and list-typed fields get a one-element list
// wrapping that value.
func (i *Instance) Default(field string) (any, error) {
	spec, ok := i.model.FieldByName(field)
	if !ok {
		return nil, fmt.Errorf("profile: %s has no field %q", i.model.TypeName, field)
	}
	if spec.IsChoiceBase {
		return nil, fmt.Errorf("profile: cannot default-construct virtual choice accessor %q", field)
	}
	value, err := i.defaultScalar(spec)
	if err != nil {
		return nil, err
	}
	if spec.IsList() {
		return []any{value}, nil
	}
	return value, nil
}

func (i *Instance) defaultScalar(spec FieldSpec) (any, error) {
	if spec.Nested != nil {
		return spec.Nested.NewInstance(), nil
	}
	return i.model.registry.Default(spec.typeName())
}

// SetTrackChanges enables or disables mutation tracking on this instance,
// recursing into any nested Instance fields, per C9.2's
// track_slice_changes.
func (i *Instance) SetTrackChanges(on bool) {
	i.trackChanges = on
	for _, v := range i.fields {
		for _, elem := range asInstanceList(v) {
			elem.SetTrackChanges(on)
		}
	}
}

// HasBeenModified reports whether this instance, or any nested instance it
// holds, has been mutated since mutation tracking began, per
// slicing.py ProfiledSlice.has_been_modified.
func (i *Instance) HasBeenModified() bool {
	if i.hasBeenModified {
		return true
	}
	for _, v := range i.fields {
		for _, elem := range asInstanceList(v) {
			if elem.HasBeenModified() {
				return true
			}
		}
	}
	return false
}

// baseElementNames are excluded from IsComplete regardless of cardinality,
// mirroring slicing.py ProfiledSlice.is_FHIR_complete's BASE_ELEMENTS.
var baseElementNames = map[string]bool{
	"text":         true,
	"extension":    true,
	"id":           true,
	"resourceType": true,
}

// IsComplete reports whether every non-base element of this instance's
// model is populated, mirroring slicing.py ProfiledSlice.is_FHIR_complete:
// completeness is NOT limited to required (Min > 0) fields there — every
// field the model declares (other than text/extension/id/resourceType and
// any `_`-prefixed extension carrier) must be set for the instance to count
// as complete. A type-choice base (`value[x]`) is treated as one logical
// field, satisfied when any of its concrete `value<Type>` fields is set;
// the concrete expansions themselves are skipped so they aren't each
// demanded individually.
func (i *Instance) IsComplete() bool {
	choiceExpansions := map[string]bool{}
	for _, f := range i.model.Fields {
		if f.IsChoiceBase {
			for _, name := range f.ChoiceFields {
				choiceExpansions[name] = true
			}
		}
	}

	for _, f := range i.model.Fields {
		if baseElementNames[f.Name] || strings.HasPrefix(f.Name, "_") || choiceExpansions[f.Name] {
			continue
		}
		if f.IsChoiceBase {
			set := false
			for _, name := range f.ChoiceFields {
				if v, ok := i.fields[name]; ok && !isZeroish(v) {
					set = true
					break
				}
			}
			if !set {
				return false
			}
			continue
		}
		v, ok := i.fields[f.Name]
		if !ok || isZeroish(v) {
			return false
		}
	}
	return true
}

func asInstanceList(v any) []*Instance {
	switch val := v.(type) {
	case *Instance:
		return []*Instance{val}
	case []any:
		var out []*Instance
		for _, elem := range val {
			if inst, ok := elem.(*Instance); ok {
				out = append(out, inst)
			}
		}
		return out
	default:
		return nil
	}
}
