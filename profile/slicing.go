package profile

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/fhircraft-go/fhirprofile/fhirpath"
)

// DiscriminatorType is how a slicing discriminator differentiates slice
// membership (§4.8).
type DiscriminatorType string

const (
	DiscriminatorValue    DiscriminatorType = "value"
	DiscriminatorPattern  DiscriminatorType = "pattern"
	DiscriminatorExists   DiscriminatorType = "exists"
	DiscriminatorKind     DiscriminatorType = "type"
	DiscriminatorProfile  DiscriminatorType = "profile"
	DiscriminatorPosition DiscriminatorType = "position"
)

func (t DiscriminatorType) valid() bool {
	switch t {
	case DiscriminatorValue, DiscriminatorPattern, DiscriminatorExists, DiscriminatorKind, DiscriminatorProfile, DiscriminatorPosition:
		return true
	}
	return false
}

// restrictedDiscriminatorFunctions is the set of FHIRPath functions a
// discriminator path may use, grounded on
// original_source/fhircraft/fhir/resources/slicing.py
// Discriminator._RESTRICTED_FHIRPATH_FUNCTIONS.
var restrictedDiscriminatorFunctions = map[string]bool{
	"extension": true,
	"resolve":   true,
	"ofType":    true,
}

var functionCallPattern = regexp.MustCompile(`\.?([a-zA-Z]*)\(`)

// Discriminator is a pair {type, path} distinguishing slice membership
// (§4.8). Grounded on slicing.py's Discriminator dataclass.
type Discriminator struct {
	Type DiscriminatorType
	Path string
}

// NewDiscriminator validates the discriminator type, that Path parses as a
// FHIRPath expression, and that any function call it contains is on the
// restricted allow-list, mirroring Discriminator.__post_init__.
func NewDiscriminator(t DiscriminatorType, path string) (Discriminator, error) {
	if !t.valid() {
		return Discriminator{}, fmt.Errorf("profile: invalid discriminator type %q", t)
	}
	if _, err := fhirpath.Parse(path); err != nil {
		return Discriminator{}, fmt.Errorf("profile: slice discriminator FHIRPath is not valid: %s: %w", path, err)
	}
	for _, match := range functionCallPattern.FindAllStringSubmatch(path, -1) {
		fn := match[1]
		if fn != "" && !restrictedDiscriminatorFunctions[fn] {
			return Discriminator{}, fmt.Errorf("profile: slice discriminator FHIRPath is not valid: invalid function %q used in restricted discriminator FHIRPath", fn)
		}
	}
	return Discriminator{Type: t, Path: path}, nil
}

// SlicingRules governs whether a slicing group permits content outside its
// declared slices (§3 Slicing Group).
type SlicingRules string

const (
	SlicingClosed    SlicingRules = "closed"
	SlicingOpen      SlicingRules = "open"
	SlicingOpenAtEnd SlicingRules = "openAtEnd"
)

// SlicingGroup partitions a repeated element by distinguishing criteria
// (§3). Grounded on slicing.py's SlicingGroup dataclass.
type SlicingGroup struct {
	ID             string
	Path           string
	Discriminators []Discriminator
	Rules          SlicingRules
	Ordered        bool
	Description    string
	Slices         []*Slice
}

// AddSlice attaches a slice to this group, wiring its back-reference, per
// SlicingGroup.add_slice.
func (g *SlicingGroup) AddSlice(s *Slice) {
	s.group = g
	g.Slices = append(g.Slices, s)
}

// SliceByName returns the slice with the given name, or nil, per
// SlicingGroup.get_slice_by_name.
func (g *SlicingGroup) SliceByName(name string) *Slice {
	for _, s := range g.Slices {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// Slice is a named sub-partition of a slicing group (§3). Grounded on
// slicing.py's Slice dataclass.
type Slice struct {
	ID           string
	Name         string
	DeclaredType string
	Constraints  []*Constraint
	group        *SlicingGroup
}

// AddConstraint attaches a constraint to the slice, per Slice.add_constraint.
func (s *Slice) AddConstraint(c *Constraint) {
	s.Constraints = append(s.Constraints, c)
}

// constraintsOnSlice returns the constraints whose path equals the owning
// group's path (i.e. constraints on the slice as a whole, not on one of its
// sub-elements), per Slice.get_constraints_on_slice.
func (s *Slice) constraintsOnSlice() []*Constraint {
	var out []*Constraint
	for _, c := range s.Constraints {
		if c.Path == s.group.Path {
			out = append(out, c)
		}
	}
	return out
}

// MinCardinality is the minimum over the slice's own-path constraints,
// defaulting to 0, per Slice.min_cardinality.
func (s *Slice) MinCardinality() int {
	min := -1
	for _, c := range s.constraintsOnSlice() {
		if min == -1 || c.Min < min {
			min = c.Min
		}
	}
	if min == -1 {
		return 0
	}
	return min
}

// MaxCardinality is the maximum over the slice's own-path constraints,
// defaulting to 1, per Slice.max_cardinality.
func (s *Slice) MaxCardinality() int {
	max := -2
	for _, c := range s.constraintsOnSlice() {
		if c.Max == MaxUnbounded {
			return MaxUnbounded
		}
		if c.Max > max {
			max = c.Max
		}
	}
	if max == -2 {
		return 1
	}
	return max
}

// ProfileConstraint returns the nested profile a constraint on this slice's
// own path references, if any, per Slice.profile_constraint.
func (s *Slice) ProfileConstraint() *Model {
	for _, c := range s.Constraints {
		if c.Profile != nil && c.Path == s.group.Path {
			return c.Profile
		}
	}
	return nil
}

// FullPath constructs the full FHIRPath addressing just this slice's
// instances within the containing resource, per Slice.full_fhir_path. The
// Extension-slicing special case drops the owning group's trailing
// "extension" segment so the discriminating expression's own
// `extension('url')` call supplies it instead of duplicating it.
func (s *Slice) FullPath() string {
	expr := s.DiscriminatingExpression()
	if strings.HasSuffix(s.group.Path, "extension") && strings.HasPrefix(expr, "extension") {
		base := strings.TrimSuffix(s.group.Path, "extension")
		return joinFHIRPath(base, expr)
	}
	return joinFHIRPath(s.group.Path, expr)
}

// joinFHIRPath concatenates two path fragments with '.', mirroring
// fhircraft.fhir.path.utils.join_fhirpath, used throughout slicing.py to
// build discriminating expressions without worrying about empty fragments.
func joinFHIRPath(a, b string) string {
	a = strings.TrimSuffix(a, ".")
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	return a + "." + b
}

// DiscriminatingExpression synthesises the FHIRPath that selects only the
// instances belonging to this slice (§4.8 table), from the owning group's
// discriminator list. Grounded on slicing.py Slice.discriminating_expression.
func (s *Slice) DiscriminatingExpression() string {
	var expr string
	for _, d := range s.group.Discriminators {
		discriminatorPath := joinFHIRPath(s.group.Path, d.Path)
		var discConstraints []*Constraint
		for _, c := range s.Constraints {
			if c.Path == discriminatorPath {
				discConstraints = append(discConstraints, c)
			}
		}

		switch d.Type {
		case DiscriminatorValue, DiscriminatorPattern:
			if s.DeclaredType == "Extension" {
				if p := s.ProfileConstraint(); p != nil {
					expr = joinFHIRPath(expr, fmt.Sprintf("extension('%s')", p.CanonicalURL))
					continue
				}
			}
			values := map[string]any{}
			for _, c := range discConstraints {
				if c.Pattern != nil {
					for path, v := range leafPaths(c.Pattern, d.Path) {
						values[path] = v
					}
				}
			}
			for _, c := range discConstraints {
				if c.FixedValue != nil {
					values[d.Path] = c.FixedValue
				}
			}
			for path, v := range values {
				expr = joinFHIRPath(expr, fmt.Sprintf("where(%s='%v')", path, v))
			}
		case DiscriminatorExists:
			expr = joinFHIRPath(expr, fmt.Sprintf("where(%s.exists())", d.Path))
		case DiscriminatorKind:
			expr = joinFHIRPath(expr, fmt.Sprintf("where(%s is %s)", d.Path, s.DeclaredType))
		case DiscriminatorProfile:
			// Intentionally unsupported: an open extension point (§9 OQ3).
		case DiscriminatorPosition:
			index := s.indexInGroup()
			expr = joinFHIRPath(expr, fmt.Sprintf("index(%d)", index))
		}
	}
	return expr
}

func (s *Slice) indexInGroup() int {
	for i, slice := range s.group.Slices {
		if slice == s {
			return i
		}
	}
	return -1
}

// leafPaths enumerates a (possibly nested) pattern value's leaf field
// paths, prefixed by base, mirroring get_dict_paths(pattern.model_dump(),
// prefix=discriminator.path). A scalar pattern value is its own single leaf
// at base.
func leafPaths(v any, base string) map[string]any {
	out := map[string]any{}
	m, ok := v.(map[string]any)
	if !ok {
		out[base] = v
		return out
	}
	for k, sub := range m {
		path := k
		if base != "" {
			path = base + "." + k
		}
		for p, leaf := range leafPaths(sub, path) {
			out[p] = leaf
		}
	}
	return out
}
