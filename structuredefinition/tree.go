package structuredefinition

import "strings"

// Node is one level of the normalised element tree built from a flat
// snapshot.element list. Its own ElementDefinition is nil for synthetic
// intermediate nodes that exist only because a descendant path needs them
// (matching build_tree_structure's `current = {}` default before
// `current.update(element)` populates a node with its element data).
type Node struct {
	Element  *ElementDefinition
	Children map[string]*Node
	// Slices holds sibling nodes for sliceName-qualified elements that
	// share this node's path, keyed by slice name, per §4.6 ("slice
	// definitions... are attached under a sibling `slices` map on their
	// parent node").
	Slices map[string]*Node
}

func newNode() *Node {
	return &Node{Children: map[string]*Node{}, Slices: map[string]*Node{}}
}

// BuildTree builds the nested path tree from a flat snapshot.element list,
// grounded on factory.py build_tree_structure. Elements whose id contains
// ":<sliceName>" are attached to their parent's Slices map instead of
// Children, keyed by the slice name.
func BuildTree(elements []ElementDefinition) *Node {
	root := newNode()
	for i := range elements {
		element := &elements[i]
		parts := strings.Split(element.Path, ".")
		current := root
		for _, part := range parts {
			child, ok := current.Children[part]
			if !ok {
				child = newNode()
				current.Children[part] = child
			}
			current = child
		}
		if element.IsSlice() {
			current.Slices[sliceNameOf(element.ID)] = &Node{Element: element, Children: map[string]*Node{}, Slices: map[string]*Node{}}
			continue
		}
		current.Element = element
	}
	return root
}

// sliceNameOf extracts the slice name from an id of the form
// "Observation.component:bodyTemp" -> "bodyTemp". Only the first ':'
// segment is taken, matching Constraint.get_constrained_slice_name's
// `id.split(':')[1].split('.')[0]`.
func sliceNameOf(id string) string {
	_, after := splitOnce(id, ':')
	before, _ := splitOnce(after, '.')
	return before
}

func splitOnce(s string, sep byte) (before, after string) {
	i := strings.IndexByte(s, sep)
	if i < 0 {
		return s, ""
	}
	return s[:i], s[i+1:]
}

// Walk locates the node at the given dotted path, starting from the tree's
// root (without the leading resource-type segment, e.g. "component.value"
// under "Observation").
func (n *Node) Walk(path string) (*Node, bool) {
	if path == "" {
		return n, true
	}
	current := n
	for _, part := range strings.Split(path, ".") {
		next, ok := current.Children[part]
		if !ok {
			return nil, false
		}
		current = next
	}
	return current, true
}
