package profile

import (
	"context"
	"fmt"
	"strings"

	"github.com/cockroachdb/apd/v3"
	"github.com/google/go-cmp/cmp"

	"github.com/fhircraft-go/fhirprofile/fhirpath"
)

// ValidationErrors aggregates every rule failure found while validating a
// resource into a single error, grounded on spec.md §4.9.4's "errors
// collected across the whole resource are surfaced in a single aggregated
// validation failure" (the teacher's REST outcome aggregation pattern,
// adapted here without the REST OperationOutcome wire shape).
type ValidationErrors []error

func (e ValidationErrors) Error() string {
	if len(e) == 1 {
		return e[0].Error()
	}
	parts := make([]string, len(e))
	for i, err := range e {
		parts[i] = err.Error()
	}
	return fmt.Sprintf("%d validation errors: %s", len(e), strings.Join(parts, "; "))
}

// Validate walks every global and slice Constraint of resource's model and
// reports cardinality, fixed, pattern, value-type, and invariant rule
// violations (§4.9.4). A nil return means resource is valid.
func Validate(resource *Instance) error {
	ctx := context.Background()
	var errs ValidationErrors

	for _, c := range resource.model.Constraints {
		errs = append(errs, checkConstraint(ctx, resource, c.Path, c)...)
	}
	for _, group := range resource.model.Slicing {
		for _, slice := range group.Slices {
			for _, c := range slice.Constraints {
				path := sliceConstraintPath(group, slice, c)
				errs = append(errs, checkConstraint(ctx, resource, path, c)...)
			}
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

// sliceConstraintPath rewrites a slice-attached constraint's shared element
// path (identical across every slice of the group) into a path that
// addresses only this slice's own instances, by substituting the group's
// discriminating-expression prefix for the group's plain path.
func sliceConstraintPath(group *SlicingGroup, slice *Slice, c *Constraint) string {
	sliceElement := strings.TrimPrefix(strings.TrimPrefix(c.Path, group.Path), ".")
	if sliceElement == "" {
		return slice.FullPath()
	}
	return joinFHIRPath(slice.FullPath(), sliceElement)
}

func checkConstraint(ctx context.Context, resource *Instance, path string, c *Constraint) []error {
	expr, err := fhirpath.Parse(path)
	if err != nil {
		return []error{fmt.Errorf("profile: constraint %s: invalid path %q: %w", c.ID, path, err)}
	}
	values, err := fhirpath.Evaluate(ctx, resource, expr)
	if err != nil {
		return []error{fmt.Errorf("profile: constraint %s: evaluating %q: %w", c.ID, path, err)}
	}

	var errs []error
	if err := checkCardinality(c, path, values); err != nil {
		errs = append(errs, err)
	}
	for _, v := range values {
		if c.FixedValue != nil {
			if !cmp.Equal(c.FixedValue, v) {
				errs = append(errs, fmt.Errorf("profile: constraint %s: %q does not equal fixed value", c.ID, path))
			}
		}
		if c.Pattern != nil {
			if !isPatternSuperset(c.Pattern, v) {
				errs = append(errs, fmt.Errorf("profile: constraint %s: %q does not conform to pattern", c.ID, path))
			}
		}
		if len(c.ValueTypes) > 0 && !matchesAnyValueType(v, c.ValueTypes) {
			errs = append(errs, fmt.Errorf("profile: constraint %s: %q has an unexpected type", c.ID, path))
		}
	}
	for _, inv := range c.Invariants {
		if err := checkInvariant(ctx, path, values, inv); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func checkCardinality(c *Constraint, path string, values []any) error {
	count := len(values)
	if count < c.Min {
		return fmt.Errorf("profile: constraint %s: %q has %d item(s), need at least %d", c.ID, path, count, c.Min)
	}
	if c.Max != MaxUnbounded && count > c.Max {
		return fmt.Errorf("profile: constraint %s: %q has %d item(s), allow at most %d", c.ID, path, count, c.Max)
	}
	return nil
}

// isPatternSuperset reports whether candidate is a structural superset of
// pattern: every leaf present in pattern must appear, identically, in
// candidate (§4.9.4 Pattern rule). A scalar pattern is compared directly; a
// map pattern is checked leaf-by-leaf against the candidate's own fields
// (via Node.Get, for *Instance/MapNode candidates, or map indexing for a
// plain decoded map).
func isPatternSuperset(pattern, candidate any) bool {
	m, ok := pattern.(map[string]any)
	if !ok {
		return cmp.Equal(pattern, candidate)
	}
	for key, want := range m {
		got, ok := getLeaf(candidate, key)
		if !ok {
			return false
		}
		if !isPatternSuperset(want, got) {
			return false
		}
	}
	return true
}

func getLeaf(v any, field string) (any, bool) {
	switch node := v.(type) {
	case fhirpath.Node:
		return node.Get(field)
	case map[string]any:
		got, ok := node[field]
		return got, ok
	default:
		return nil, false
	}
}

// integerLikeTypes are the FHIR primitive names fhirtype.Registry coerces
// to Go's int (§4.5): a candidate reporting the host type "integer" must
// match any of them, since the registry has no single FHIR type named
// "integer" that every integral primitive aliases to.
var integerLikeTypes = map[string]bool{
	"integer":     true,
	"integer64":   true,
	"unsignedInt": true,
	"positiveInt": true,
}

// stringLikeTypes are the FHIR primitive names fhirtype.Registry keeps as a
// Go string (§4.5), so a candidate reporting "string" matches any of them.
var stringLikeTypes = map[string]bool{
	"string": true, "code": true, "id": true, "uri": true, "url": true,
	"canonical": true, "oid": true, "uuid": true, "markdown": true,
	"base64Binary": true, "date": true, "dateTime": true, "time": true, "instant": true,
}

// matchesAnyValueType reports whether v's runtime FHIR type name matches
// one of types (§4.9.4 Value-type rule: "FHIR primitives are mapped to
// host scalar types").
func matchesAnyValueType(v any, types []string) bool {
	name := valueTypeName(v)
	for _, t := range types {
		if strings.EqualFold(name, t) {
			return true
		}
		if name == "integer" && integerLikeTypes[t] {
			return true
		}
		if name == "string" && stringLikeTypes[t] {
			return true
		}
	}
	return false
}

func valueTypeName(v any) string {
	switch x := v.(type) {
	case fhirpath.Node:
		return x.TypeName()
	case string:
		return "string"
	case bool:
		return "boolean"
	case int:
		return "integer"
	case *apd.Decimal:
		return "decimal"
	default:
		return ""
	}
}

func checkInvariant(ctx context.Context, path string, values []any, inv Invariant) error {
	expr, err := fhirpath.Parse(inv.Expression)
	if err != nil {
		return fmt.Errorf("profile: invariant %s: invalid expression %q: %w", inv.Key, inv.Expression, err)
	}
	for _, v := range values {
		node, ok := v.(fhirpath.Node)
		if !ok {
			continue
		}
		result, err := fhirpath.Evaluate(ctx, node, expr)
		if err != nil {
			return fmt.Errorf("profile: invariant %s: evaluating on %q: %w", inv.Key, path, err)
		}
		if !invariantHolds(result) {
			if inv.Severity == "warning" {
				continue
			}
			return fmt.Errorf("profile: invariant %s failed on %q: %s", inv.Key, path, inv.Description)
		}
	}
	return nil
}

func invariantHolds(result []any) bool {
	if len(result) == 0 {
		return false
	}
	b, ok := result[0].(bool)
	return ok && b
}
