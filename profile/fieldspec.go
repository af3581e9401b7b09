// Package profile is the FHIR profile-driven model factory and runtime
// (C7–C9): it compiles a structuredefinition tree into a data-driven
// FieldSpec model instead of synthesising Go struct types at runtime (the
// Go-native answer to Pydantic's create_model), and provides the
// construct/track/clean/validate write-then-clean cycle over instances of
// that model (§4.9).
package profile

// FieldSpec describes one compiled field of a Model: its name, FHIR
// type(s), cardinality, and — for a type-choice base like `value[x]` — the
// concrete per-type field names it expands to. This is the generic,
// data-driven replacement for per-profile generated struct fields that
// spec.md §9 Design Notes calls for: one engine interprets a []FieldSpec
// instead of reflecting over N distinct Go types.
//
// Grounded on factory.py _compile_complex_element_fields's per-field
// decisions (type-choice expansion, sibling `_name` extension carrier,
// nested BackboneElement compilation via create_model).
type FieldSpec struct {
	Name        string
	Min         int
	Max         int // MaxUnbounded (-1) for "*"
	Description string

	// Types lists the FHIR type name(s) this field may hold. A
	// non-type-choice field has exactly one. A type-choice base's own
	// virtual FieldSpec (IsChoiceBase true) lists every allowed type; it
	// is never itself the target of a Set.
	Types []string

	// IsChoiceBase marks the virtual `<base>` accessor synthesised for a
	// `<base>[x]` element (§4.7): reading it returns whichever concrete
	// `<base><Type>` field is currently set; writing it is unsupported
	// (callers must address the concrete `<base><Type>` field directly).
	IsChoiceBase bool
	// ChoiceFields lists the concrete field names an IsChoiceBase field
	// expands to, e.g. ["valueString", "valueQuantity", ...].
	ChoiceFields []string

	// HasExtensionCarrier is true for primitive-typed fields, which get a
	// sibling `_<name>` field of type Element (§4.7: "also define a
	// sibling `_<name>` field of type Element").
	HasExtensionCarrier bool

	// Nested is the compiled sub-model for a BackboneElement field with
	// its own children (§4.7: "recursively compile a nested complex
	// type"). nil for fields whose type is a reusable datatype resolved
	// through the fhirtype registry instead.
	Nested *Model
}

// IsList reports whether this field holds a repeated value.
func (f FieldSpec) IsList() bool {
	return f.Max < 0 || f.Max > 1
}

// typeName returns the single FHIR type name for a non-choice field, or ""
// if Types is empty. On a choice base it returns the first listed type,
// which names only one of the alternatives.
func (f FieldSpec) typeName() string {
	if len(f.Types) == 0 {
		return ""
	}
	return f.Types[0]
}
