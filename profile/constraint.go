package profile

import (
	"strings"

	"github.com/fhircraft-go/fhirprofile/structuredefinition"
)

// MaxUnbounded is profile's own copy of structuredefinition.MaxUnbounded, a
// sentinel for a "*" max cardinality (§4.8).
const MaxUnbounded = structuredefinition.MaxUnbounded

// Invariant is a FHIRPath rule attached to a Constraint, carrying enough
// metadata to report a useful validation failure (§4.9.4, Invariants).
// Grounded on original_source/fhircraft/fhir/resources/constraint.py's
// Invariant dataclass.
type Invariant struct {
	Key         string
	Severity    string // "error" or "warning"
	Description string
	Expression  string
}

// Constraint is a predicate attached to a path in the element tree (§3).
// Grounded on original_source/fhircraft/fhir/resources/constraint.py's
// Constraint dataclass.
type Constraint struct {
	ID         string
	Path       string
	Min        int
	Max        int // MaxUnbounded (-1) for "*"
	Profile    *Model
	ValueTypes []string
	FixedValue any
	Pattern    any
	Binding    string
	Invariants []Invariant
}

// IsSliceConstraint reports whether this constraint targets a named slice
// rather than the base repeated element, mirroring
// Constraint.is_slice_constraint (`':' in self.id`).
func (c *Constraint) IsSliceConstraint() bool {
	return strings.Contains(c.ID, ":")
}

// ConstrainedSliceName extracts the slice name from a slice constraint's
// id, e.g. "Observation.component:bodyTemp.code" -> "bodyTemp", mirroring
// Constraint.get_constrained_slice_name.
func (c *Constraint) ConstrainedSliceName() string {
	_, after, _ := strings.Cut(c.ID, ":")
	before, _, _ := strings.Cut(after, ".")
	return before
}

// compileConstraints walks a flat element list and splits it into slicing
// groups and non-slice constraints, attaching each slice-targeted
// constraint to its slice and each slicing-object-bearing element to a new
// SlicingGroup. Grounded on factory.py _compile_profile_constraints,
// including its quirk of matching a slice constraint to a slicing group by
// scanning the constraint's id for ':', not by path equality.
func compileConstraints(elements []structuredefinition.ElementDefinition, compileProfile func(canonicalURL string) (*Model, error)) ([]*SlicingGroup, []*Constraint, error) {
	var slicing []*SlicingGroup
	var constraints []*Constraint

	for i := range elements {
		element := &elements[i]

		if element.Slicing != nil {
			group := &SlicingGroup{
				ID:            element.ID,
				Path:          element.Path,
				Rules:         SlicingRules(element.Slicing.Rules),
				Ordered:       element.Slicing.Ordered,
				Description:   element.Slicing.Description,
				Discriminators: make([]Discriminator, 0, len(element.Slicing.Discriminator)),
			}
			for _, d := range element.Slicing.Discriminator {
				disc, err := NewDiscriminator(DiscriminatorType(d.Type), d.Path)
				if err != nil {
					return nil, nil, err
				}
				group.Discriminators = append(group.Discriminators, disc)
			}
			slicing = append(slicing, group)
		}

		if element.SliceName != "" {
			declaredType := ""
			if len(element.Type) > 0 {
				declaredType = element.Type[0].Code
			}
			slice := &Slice{
				ID:           element.ID,
				Name:         element.SliceName,
				DeclaredType: declaredType,
			}
			for _, group := range slicing {
				if group.Path == element.Path {
					group.AddSlice(slice)
					break
				}
			}
		}

		maxCard, err := element.MaxCardinality()
		if err != nil {
			return nil, nil, err
		}
		min := 0
		if element.Min != nil {
			min = *element.Min
		}
		constraint := &Constraint{
			ID:   element.ID,
			Path: element.Path,
			Min:  min,
			Max:  maxCard,
		}
		if len(element.Type) > 0 {
			for _, t := range element.Type {
				constraint.ValueTypes = append(constraint.ValueTypes, t.Code)
			}
			if element.Type[0].Code == "Extension" && len(element.Type[0].Profile) > 0 && compileProfile != nil {
				profileModel, err := compileProfile(element.Type[0].Profile[0])
				if err != nil {
					return nil, nil, err
				}
				constraint.Profile = profileModel
			}
		}
		for t, v := range element.Pattern {
			constraint.Pattern = coercePatternOrFixed(t, v)
			break
		}
		for t, v := range element.Fixed {
			constraint.FixedValue = coercePatternOrFixed(t, v)
			break
		}
		for _, c := range element.Constraint {
			constraint.Invariants = append(constraint.Invariants, Invariant{
				Key:         c.Key,
				Severity:    c.Severity,
				Description: c.Human,
				Expression:  c.Expression,
			})
		}

		attachedToSlice := false
		if constraint.IsSliceConstraint() {
			sliceName := constraint.ConstrainedSliceName()
			for _, group := range slicing {
				if slice := group.SliceByName(sliceName); slice != nil {
					slice.AddConstraint(constraint)
					attachedToSlice = true
					break
				}
			}
		}
		if !attachedToSlice {
			constraints = append(constraints, constraint)
		}
	}

	return slicing, constraints, nil
}

// coercePatternOrFixed is a placeholder pass-through: primitive pattern/
// fixed values decode to their natural JSON Go type (string/float64/bool)
// already; complex pattern/fixed values decode to map[string]any, which
// Constraint.Pattern/FixedValue store as-is for go-cmp comparison in
// validate.go. The FHIR type name (first argument) is ignored and not
// stored.
func coercePatternOrFixed(_ string, v any) any {
	return v
}
