package profile

import (
	"context"
	"fmt"
	"strings"

	"github.com/fhircraft-go/fhirprofile/fhirpath"
)

// RuntimeOptions configures the construct/clean cycle (C9). SliceCopyCap
// bounds how many speculative copies of an incomplete, repeatable slice get
// seeded during construction (§9 Open Question 1: the Python original's
// hardcoded `slice_copies=9` becomes a configurable field here, defaulting
// to the same value).
type RuntimeOptions struct {
	SliceCopyCap int
}

// DefaultRuntimeOptions returns the construction defaults, grounded on
// factory.py initialize_slices's `slice_copies=9` default argument.
func DefaultRuntimeOptions() RuntimeOptions {
	return RuntimeOptions{SliceCopyCap: 9}
}

func (o RuntimeOptions) normalized() RuntimeOptions {
	if o.SliceCopyCap <= 0 {
		return DefaultRuntimeOptions()
	}
	return o
}

// ConstructWithProfiledElements builds a skeleton instance of model with
// every profile constraint preset and every slicing group seeded with empty
// (but constraint-populated) slice instances, grounded on
// factory.py's construct_with_profiled_elements (C9.1).
func ConstructWithProfiledElements(model *Model, opts RuntimeOptions) (*Instance, error) {
	opts = opts.normalized()
	ctx := context.Background()
	resource := model.NewInstance()
	if err := setConstraints(ctx, resource); err != nil {
		return nil, err
	}
	if err := initializeSlices(ctx, resource, opts); err != nil {
		return nil, err
	}
	return resource, nil
}

// setConstraints presets every non-slice constraint's pattern/fixed value
// onto resource, grounded on factory.py set_constraints.
func setConstraints(ctx context.Context, resource *Instance) error {
	for _, c := range resource.model.Constraints {
		typeHint := ""
		if len(c.ValueTypes) > 0 {
			typeHint = c.ValueTypes[0]
		}
		if c.Pattern != nil {
			if err := applyPresetValue(ctx, resource, c.Path, wrapComplexValue(c.Pattern, typeHint)); err != nil {
				return err
			}
		}
		if c.FixedValue != nil {
			if err := applyPresetValue(ctx, resource, c.Path, wrapComplexValue(c.FixedValue, typeHint)); err != nil {
				return err
			}
		}
	}
	return nil
}

func applyPresetValue(ctx context.Context, resource fhirpath.Node, path string, value any) error {
	expr, err := fhirpath.Parse(path)
	if err != nil {
		return fmt.Errorf("profile: constraint path %q: %w", path, err)
	}
	return fhirpath.UpdateOrCreate(ctx, resource, expr, value)
}

// wrapComplexValue adapts a Constraint's stored pattern/fixed value (a plain
// map[string]any, as decoded from JSON) into a fhirpath.MapNode so that
// writing it onto an Instance produces a navigable complex value rather
// than an opaque map FHIRPath can't descend into. Scalars pass through
// unchanged.
func wrapComplexValue(v any, typeName string) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}
	wrapped := map[string]any{}
	for k, sub := range m {
		wrapped[k] = wrapComplexValue(sub, "")
	}
	return fhirpath.NewMapNode(typeName, wrapped)
}

// initializeSlices seeds every non-[x] slicing group's field with one
// instance per declared slice (or, for an incomplete repeatable slice,
// several speculative copies awaiting later mutation), grounded on
// factory.py initialize_slices.
func initializeSlices(ctx context.Context, resource *Instance, opts RuntimeOptions) error {
	for _, group := range resource.model.Slicing {
		if strings.Contains(group.Path, "[x]") {
			continue
		}
		fieldName, ok := fieldNameForPath(resource.model, group.Path)
		if !ok {
			continue
		}
		spec, _ := resource.model.FieldByName(fieldName)

		var sliceValues []any
		for _, slice := range group.Slices {
			sliceNode, err := newSliceNode(resource.model, spec, slice)
			if err != nil {
				return err
			}
			if err := processSliceConstraints(ctx, sliceNode, slice); err != nil {
				return err
			}
			maxCard := slice.MaxCardinality()
			if !isComplete(sliceNode) && maxCard > 1 {
				count := maxCard
				if count == MaxUnbounded || count > opts.SliceCopyCap {
					count = opts.SliceCopyCap
				}
				for n := 0; n < count; n++ {
					sliceValues = append(sliceValues, copyNode(sliceNode))
				}
			} else {
				sliceValues = append(sliceValues, sliceNode)
			}
		}
		if err := resource.Set(fieldName, sliceValues); err != nil {
			return err
		}
	}
	return nil
}

// fieldNameForPath resolves a slicing group's full dotted path (always
// rooted at the profile's own type name, e.g. "Observation.component") to
// the field name addressable directly on model, supporting only
// single-level nesting (the group's path is the model's type name plus
// exactly one field segment). Deeper nesting is left unsupported for now;
// callers get ok=false and skip the group rather than erroring the whole
// construction.
func fieldNameForPath(model *Model, path string) (string, bool) {
	_, after, found := strings.Cut(path, ".")
	if !found || strings.Contains(after, ".") {
		return "", false
	}
	if _, ok := model.FieldByName(after); !ok {
		return "", false
	}
	return after, true
}

// newSliceNode constructs the empty instance for one slice, grounded on
// Slice.get_pydantic_model: a BackboneElement-typed owning field reuses its
// compiled Nested Model; any other declared type resolves through the
// fhirtype registry (returning a schema-less fhirpath.MapNode).
func newSliceNode(owner *Model, ownerField FieldSpec, slice *Slice) (fhirpath.Node, error) {
	if ownerField.Nested != nil {
		return ownerField.Nested.NewInstance(), nil
	}
	typeName := slice.DeclaredType
	if typeName == "" {
		typeName = ownerField.typeName()
	}
	value, err := owner.registry.Default(typeName)
	if err != nil {
		return nil, err
	}
	node, ok := value.(fhirpath.Node)
	if !ok {
		return nil, fmt.Errorf("profile: slice %q's declared type %q did not construct a navigable node", slice.Name, typeName)
	}
	return node, nil
}

// processSliceConstraints presets a single slice instance's own
// constraints, grounded on factory.py process_slice_constraints.
func processSliceConstraints(ctx context.Context, sliceNode fhirpath.Node, slice *Slice) error {
	for _, c := range slice.Constraints {
		sliceElement := strings.TrimPrefix(strings.TrimPrefix(c.Path, slice.group.Path), ".")
		if strings.Contains(sliceElement, "[x]") {
			continue
		}

		if c.Profile != nil {
			profiled, err := ConstructWithProfiledElements(c.Profile, DefaultRuntimeOptions())
			if err != nil {
				return err
			}
			for _, name := range profiled.FieldNames() {
				v, ok := profiled.Get(name)
				if ok && !isZeroish(v) {
					_ = sliceNode.Set(name, v)
				}
			}
			return nil
		}

		typeHint := ""
		if len(c.ValueTypes) > 0 {
			typeHint = c.ValueTypes[0]
		}
		if c.FixedValue != nil {
			if err := applySliceScalar(ctx, sliceNode, sliceElement, c.FixedValue, typeHint); err != nil {
				return err
			}
		}
		if c.Pattern != nil {
			if err := applySliceScalar(ctx, sliceNode, sliceElement, c.Pattern, typeHint); err != nil {
				return err
			}
		}
	}
	return nil
}

// applySliceScalar writes value at sliceElement relative to sliceNode. An
// empty sliceElement means the constraint targets the slice's own root (the
// slice *is* the pattern/fixed value): each of the value's own fields is
// set directly, mirroring the Python original's `setattr` loop over
// `constraint.pattern.__dict__`.
func applySliceScalar(ctx context.Context, sliceNode fhirpath.Node, sliceElement string, value any, typeHint string) error {
	if sliceElement == "" {
		if m, ok := value.(map[string]any); ok {
			for k, v := range m {
				_ = sliceNode.Set(k, wrapComplexValue(v, ""))
			}
		}
		return nil
	}
	expr, err := fhirpath.Parse(sliceElement)
	if err != nil {
		return fmt.Errorf("profile: slice constraint path %q: %w", sliceElement, err)
	}
	return fhirpath.UpdateOrCreate(ctx, sliceNode, expr, wrapComplexValue(value, typeHint))
}

// TrackSliceChanges turns mutation tracking on or off across resource and
// every nested instance it holds, grounded on factory.py
// track_slice_changes (simplified: the Go Instance tree is walked directly
// instead of re-deriving each slicing group's FHIRPath).
func TrackSliceChanges(resource *Instance, on bool) {
	resource.SetTrackChanges(on)
}

// CleanElementsAndSlices removes slice instances that were never populated
// (neither fixed/pattern-complete nor mutated by a caller) from every
// slicing group's backing list, grounded on factory.py
// clean_elements_and_slices.
func CleanElementsAndSlices(resource *Instance) error {
	return cleanElementsAndSlices(context.Background(), resource)
}

func cleanElementsAndSlices(ctx context.Context, resource *Instance) error {
	for _, group := range resource.model.Slicing {
		if strings.Contains(group.Path, "[x]") {
			continue
		}
		groupExpr, err := fhirpath.Parse(group.Path)
		if err != nil {
			return fmt.Errorf("profile: slicing group path %q: %w", group.Path, err)
		}
		groupValues, err := fhirpath.Evaluate(ctx, resource, groupExpr)
		if err != nil {
			return err
		}
		if len(groupValues) == 0 {
			continue
		}
		valid, ok := groupValues[0].([]any)
		if !ok {
			continue
		}

		for _, slice := range group.Slices {
			sliceExpr, err := fhirpath.Parse(slice.FullPath())
			if err != nil {
				return fmt.Errorf("profile: slice path %q: %w", slice.FullPath(), err)
			}
			sliceValues, err := fhirpath.Evaluate(ctx, resource, sliceExpr)
			if err != nil {
				return err
			}
			for _, entry := range sliceValues {
				if entry == nil {
					continue
				}
				node, ok := entry.(fhirpath.Node)
				if !ok {
					continue
				}
				modified := hasBeenModified(node)
				if !isComplete(node) && !modified {
					valid = removeValue(valid, entry)
					continue
				}
				if inst, ok := node.(*Instance); ok && len(inst.model.Slicing) > 0 {
					if err := cleanElementsAndSlices(ctx, inst); err != nil {
						return err
					}
				}
			}
		}

		if err := fhirpath.Update(ctx, resource, groupExpr, valid); err != nil {
			return err
		}
	}
	return nil
}

func removeValue(values []any, target any) []any {
	out := values[:0]
	removed := false
	for _, v := range values {
		if !removed && v == target {
			removed = true
			continue
		}
		out = append(out, v)
	}
	return out
}

// isComplete reports whether node looks fully populated, falling back to
// true (never dropped by cleaning) for any Node that doesn't expose
// completeness, e.g. a plain fhirpath.MapNode.
func isComplete(node fhirpath.Node) bool {
	if c, ok := node.(interface{ IsComplete() bool }); ok {
		return c.IsComplete()
	}
	return true
}

func hasBeenModified(node fhirpath.Node) bool {
	if m, ok := node.(interface{ HasBeenModified() bool }); ok {
		return m.HasBeenModified()
	}
	return false
}

// copyNode produces an independent copy of a slice placeholder so that
// speculative repeated-slice copies don't alias each other's field maps.
func copyNode(node fhirpath.Node) fhirpath.Node {
	switch n := node.(type) {
	case *Instance:
		return deepCopyInstance(n)
	default:
		return node
	}
}

func deepCopyInstance(i *Instance) *Instance {
	clone := &Instance{model: i.model, fields: map[string]any{}, trackChanges: i.trackChanges}
	for k, v := range i.fields {
		clone.fields[k] = deepCopyValue(v)
	}
	return clone
}

func deepCopyValue(v any) any {
	switch x := v.(type) {
	case *Instance:
		return deepCopyInstance(x)
	case []any:
		out := make([]any, len(x))
		for idx, e := range x {
			out[idx] = deepCopyValue(e)
		}
		return out
	default:
		return v
	}
}

// isZeroish mirrors Python's truthiness test used by process_slice_constraints
// (`if value:`), under which an empty string, false, nil, and an empty list
// all count as "not set".
func isZeroish(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case bool:
		return !x
	case []any:
		return len(x) == 0
	default:
		return false
	}
}

