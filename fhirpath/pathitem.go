package fhirpath

import "fmt"

// Mode selects between read-only traversal and the mutating "create" mode
// that synthesises the path it is asked to evaluate (§4.3).
type Mode uint8

const (
	ModeRead Mode = iota
	ModeCreate
)

// Node is anything the evaluator can navigate: a complex FHIR value with
// named fields. Both profile.Instance (schema-aware, backed by a compiled
// Model) and the schema-less MapNode adapter (for ad hoc map[string]any
// resources) implement it, so the evaluator never needs struct reflection.
type Node interface {
	// TypeName returns the FHIR type name of this node, used as the root
	// segment of FullPath and by the `is`/`ofType` operators.
	TypeName() string
	// FieldNames lists the node's declared field names, used by
	// TypeChoice and Descendants.
	FieldNames() []string
	// Get returns the current value of a field and whether it is set.
	Get(field string) (value any, ok bool)
	// IsListField reports whether the named field holds a repeated value.
	IsListField(field string) bool
	// Set assigns a field's value; list-typed fields require a []any,
	// scalar fields reject multi-element lists (§4.4).
	Set(field string, value any) error
	// Default constructs the schema-appropriate zero value for a missing
	// field, used only in ModeCreate (§4.3 Element, Index).
	Default(field string) (value any, err error)
}

// selectorKind tags how a PathItem's value was reached from its parent.
type selectorKind uint8

const (
	selRoot selectorKind = iota
	selElement
	selIndex
	selLiteral // synthetic, non-addressable result (e.g. a BinaryOp value)
)

// Selector names how a PathItem's value is found within its parent (§3).
type Selector struct {
	kind  selectorKind
	name  string
	index int
}

func (s Selector) String() string {
	switch s.kind {
	case selRoot:
		return ""
	case selElement:
		return s.name
	case selIndex:
		return fmt.Sprintf("[%d]", s.index)
	default:
		return "<literal>"
	}
}

// PathItem is a located value inside a resource graph: a value together
// with the selector and parent link needed to write back to it (§3, §4.4).
type PathItem struct {
	Value    any
	Selector Selector
	Parent   *PathItem
}

// NewRootItem wraps a resource as the initial one-item focus collection
// (§4.3).
func NewRootItem(resource any) *PathItem {
	return &PathItem{Value: resource, Selector: Selector{kind: selRoot}}
}

// FullPath renders the chain from the root to this item, for diagnostics
// only (§3, §4.4).
func (p *PathItem) FullPath() string {
	if p == nil {
		return ""
	}
	parentPath := ""
	if p.Parent != nil {
		parentPath = p.Parent.FullPath()
	}
	switch p.Selector.kind {
	case selRoot:
		if node, ok := p.Value.(Node); ok {
			return node.TypeName()
		}
		return parentPath
	case selElement:
		if parentPath == "" {
			return p.Selector.name
		}
		return parentPath + "." + p.Selector.name
	case selIndex:
		return fmt.Sprintf("%s[%d]", parentPath, p.Selector.index)
	default:
		return parentPath
	}
}

// SetValue writes value through this PathItem to its parent, following the
// selector (§4.4). Writing through a PathItem whose selector is synthetic
// (selLiteral) or that has no parent fails.
func (p *PathItem) SetValue(value any) error {
	if p.Parent == nil {
		return fhirPathErrorf(p.FullPath(), "cannot write: item has no parent")
	}
	switch p.Selector.kind {
	case selElement:
		node, ok := p.Parent.Value.(Node)
		if !ok {
			return fhirPathErrorf(p.FullPath(), "cannot write: parent is not a complex element")
		}
		if err := setOnNode(node, p.Selector.name, value); err != nil {
			return err
		}
		v, _ := node.Get(p.Selector.name)
		p.Value = v
		return nil
	case selIndex:
		arr, ok := asList(p.Parent.Value)
		if !ok {
			return fhirPathErrorf(p.FullPath(), "cannot write: parent is not a list")
		}
		i := p.Selector.index
		if i < 0 || i >= len(arr) {
			return fhirPathErrorf(p.FullPath(), "index %d out of bounds", i)
		}
		arr[i] = value
		p.Value = value
		// The backing array for Parent.Value is shared, but reassign
		// defensively in case Parent.Value was not already a []any.
		p.Parent.Value = arr
		return p.Parent.SetValue(arr)
	default:
		return fhirPathErrorf(p.FullPath(), "cannot write through a synthetic result")
	}
}

// setOnNode mirrors PathItem.SetValue's field-selector branch, coercing
// list/scalar shape per §4.4: "list-typed fields require a list, scalar
// fields reject multi-element lists".
func setOnNode(node Node, field string, value any) error {
	if node.IsListField(field) {
		list, ok := asList(value)
		if !ok {
			list = []any{value}
		}
		return node.Set(field, list)
	}
	if list, ok := asList(value); ok {
		if len(list) > 1 {
			return fhirPathErrorf(field, "value has %d items, but element %s does not allow arrays", len(list), field)
		}
		if len(list) == 1 {
			return node.Set(field, list[0])
		}
		return node.Set(field, nil)
	}
	return node.Set(field, value)
}

func asList(v any) ([]any, bool) {
	list, ok := v.([]any)
	return list, ok
}
