package fhirpath

import (
	"context"
	"strings"

	"github.com/cockroachdb/apd/v3"
)

// ctxKey namespaces context.Context values the evaluator reads, avoiding
// collisions with values a host application already stores on the context.
type ctxKey string

const envVarsKey ctxKey = "fhirpath.env"

// WithEnvironment attaches `%name` environmental variable bindings to ctx
// for the duration of an evaluation (§3, §4.1).
func WithEnvironment(ctx context.Context, vars map[string]any) context.Context {
	return context.WithValue(ctx, envVarsKey, vars)
}

func environmentFrom(ctx context.Context) map[string]any {
	if v, ok := ctx.Value(envVarsKey).(map[string]any); ok {
		return v
	}
	return nil
}

// Evaluate runs expr against resource in ModeRead and returns the resulting
// collection of raw values (unwrapping the internal PathItem bookkeeping).
func Evaluate(ctx context.Context, resource Node, expr Expression) ([]any, error) {
	items, err := Find(ctx, resource, expr)
	if err != nil {
		return nil, err
	}
	values := make([]any, len(items))
	for i, it := range items {
		values[i] = it.Value
	}
	return values, nil
}

// Find runs expr against resource in ModeRead and returns the located
// PathItems, preserving enough context to write back through them.
func Find(ctx context.Context, resource Node, expr Expression) ([]*PathItem, error) {
	root := NewRootItem(resource)
	return expr.evaluate(ctx, []*PathItem{root}, ModeRead)
}

// FindOrCreate runs expr against resource in ModeCreate, synthesising any
// missing intermediate structure along the path (§4.3).
func FindOrCreate(ctx context.Context, resource Node, expr Expression) ([]*PathItem, error) {
	root := NewRootItem(resource)
	return expr.evaluate(ctx, []*PathItem{root}, ModeCreate)
}

// Update evaluates expr in ModeRead and writes value through every
// resulting PathItem (§4.3, §8 invariant "Evaluate-Update duality").
func Update(ctx context.Context, resource Node, expr Expression, value any) error {
	items, err := Find(ctx, resource, expr)
	if err != nil {
		return err
	}
	for _, it := range items {
		if err := it.SetValue(value); err != nil {
			return err
		}
	}
	return nil
}

// UpdateOrCreate evaluates expr in ModeCreate and writes value through
// every resulting PathItem (§4.3).
func UpdateOrCreate(ctx context.Context, resource Node, expr Expression, value any) error {
	items, err := FindOrCreate(ctx, resource, expr)
	if err != nil {
		return err
	}
	for _, it := range items {
		if err := it.SetValue(value); err != nil {
			return err
		}
	}
	return nil
}

// flatten expands any list-valued item into one PathItem per element. This
// is the single point at which FHIRPath's flat-collection semantics are
// produced: Element returns one (possibly list-valued) PathItem per input
// item, and flatten is applied at every Child boundary before composing
// with the right-hand side (§4.3).
func flatten(items []*PathItem) []*PathItem {
	out := make([]*PathItem, 0, len(items))
	for _, it := range items {
		list, ok := asList(it.Value)
		if !ok {
			if it.Value == nil {
				continue
			}
			out = append(out, it)
			continue
		}
		for i, v := range list {
			out = append(out, &PathItem{
				Value:    v,
				Selector: Selector{kind: selIndex, index: i},
				Parent:   it,
			})
		}
	}
	return out
}

func (e *Root) evaluate(ctx context.Context, items []*PathItem, mode Mode) ([]*PathItem, error) {
	seen := map[*PathItem]bool{}
	var out []*PathItem
	for _, it := range items {
		root := it
		for root.Parent != nil {
			root = root.Parent
		}
		if !seen[root] {
			seen[root] = true
			out = append(out, root)
		}
	}
	return out, nil
}

func (e *This) evaluate(ctx context.Context, items []*PathItem, mode Mode) ([]*PathItem, error) {
	return items, nil
}

func (e *Element) evaluate(ctx context.Context, items []*PathItem, mode Mode) ([]*PathItem, error) {
	var out []*PathItem
	for _, it := range items {
		node, ok := it.Value.(Node)
		if !ok {
			if it.Value == nil {
				continue
			}
			return nil, fhirPathErrorf(it.FullPath(), "cannot access field %q on non-complex value", e.Name)
		}
		value, present := node.Get(e.Name)
		if !present {
			if mode != ModeCreate {
				continue
			}
			def, err := node.Default(e.Name)
			if err != nil {
				return nil, err
			}
			if err := setOnNode(node, e.Name, def); err != nil {
				return nil, err
			}
			value, _ = node.Get(e.Name)
		}
		out = append(out, &PathItem{
			Value:    value,
			Selector: Selector{kind: selElement, name: e.Name},
			Parent:   it,
		})
	}
	return out, nil
}

func (e *Index) evaluate(ctx context.Context, items []*PathItem, mode Mode) ([]*PathItem, error) {
	var out []*PathItem
	for _, it := range items {
		list, ok := asList(it.Value)
		if !ok {
			if it.Value == nil && mode == ModeCreate {
				list = []any{}
			} else {
				return nil, fhirPathErrorf(it.FullPath(), "cannot index a non-list value")
			}
		}
		idx := e.I
		if idx < 0 {
			idx += len(list)
		}
		if idx < 0 {
			continue
		}
		if idx >= len(list) {
			if mode != ModeCreate {
				continue
			}
			fieldNode, fieldName, ok := listFieldContext(it)
			if !ok {
				return nil, fhirPathErrorf(it.FullPath(), "cannot extend list: unknown element type")
			}
			for len(list) <= idx {
				def, err := fieldNode.Default(fieldName)
				if err != nil {
					return nil, err
				}
				// Default wraps a list-typed field's value in a
				// one-element list; pad with the element itself.
				if wrapped, ok := asList(def); ok && len(wrapped) == 1 {
					def = wrapped[0]
				}
				list = append(list, def)
			}
			it.Value = list
			if err := it.SetValue(list); err != nil {
				return nil, err
			}
		}
		out = append(out, &PathItem{
			Value:    list[idx],
			Selector: Selector{kind: selIndex, index: idx},
			Parent:   it,
		})
	}
	return out, nil
}

// listFieldContext recovers the (Node, fieldName) pair that produced a
// list-valued PathItem, so Index can ask the owning node to synthesise
// another default element of the correct type (§4.3 Create-mode padding).
func listFieldContext(listItem *PathItem) (Node, string, bool) {
	if listItem.Selector.kind != selElement || listItem.Parent == nil {
		return nil, "", false
	}
	node, ok := listItem.Parent.Value.(Node)
	if !ok {
		return nil, "", false
	}
	return node, listItem.Selector.name, true
}

func sliceIndices(length int, s *Slice) []int {
	if s.Start == nil && s.End == nil && s.Step == nil {
		idx := make([]int, length)
		for i := range idx {
			idx[i] = i
		}
		return idx
	}
	start, end, step := 0, length, 1
	if s.Step != nil {
		step = *s.Step
	}
	if step == 0 {
		step = 1
	}
	if step > 0 {
		if s.Start != nil {
			start = normalizeIndex(*s.Start, length)
		}
		if s.End != nil {
			end = normalizeIndex(*s.End, length)
		}
	} else {
		start = length - 1
		end = -1
		if s.Start != nil {
			start = normalizeIndex(*s.Start, length)
		}
		if s.End != nil {
			end = normalizeIndex(*s.End, length)
		}
	}
	var out []int
	for i := start; (step > 0 && i < end) || (step < 0 && i > end); i += step {
		if i >= 0 && i < length {
			out = append(out, i)
		}
	}
	return out
}

func normalizeIndex(i, length int) int {
	if i < 0 {
		i += length
	}
	if i < 0 {
		return 0
	}
	if i > length {
		return length
	}
	return i
}

func (e *Slice) evaluate(ctx context.Context, items []*PathItem, mode Mode) ([]*PathItem, error) {
	var out []*PathItem
	for _, it := range items {
		list, ok := asList(it.Value)
		if !ok {
			continue
		}
		for _, idx := range sliceIndices(len(list), e) {
			out = append(out, &PathItem{
				Value:    list[idx],
				Selector: Selector{kind: selIndex, index: idx},
				Parent:   it,
			})
		}
	}
	return out, nil
}

func (e *Child) evaluate(ctx context.Context, items []*PathItem, mode Mode) ([]*PathItem, error) {
	mid, err := e.LHS.evaluate(ctx, items, mode)
	if err != nil {
		return nil, err
	}
	// Index and Slice address a PathItem's raw list value directly (e.g.
	// `component[2]` picks element 2 of the list before any flattening),
	// while every other composition auto-flattens list-valued results
	// first (e.g. `component.valueString` flattens across the '.').
	if isIndexLike(e.RHS) {
		return e.RHS.evaluate(ctx, mid, mode)
	}
	return e.RHS.evaluate(ctx, flatten(mid), mode)
}

func (e *Where) evaluate(ctx context.Context, items []*PathItem, mode Mode) ([]*PathItem, error) {
	var out []*PathItem
	for _, it := range items {
		result, err := e.Predicate.evaluate(ctx, []*PathItem{it}, ModeRead)
		if err != nil {
			return nil, err
		}
		if truthy(result) {
			out = append(out, it)
		}
	}
	return out, nil
}

func truthy(items []*PathItem) bool {
	if len(items) == 0 {
		return false
	}
	b, ok := items[0].Value.(bool)
	return ok && b
}

func (e *FhirExtension) evaluate(ctx context.Context, items []*PathItem, mode Mode) ([]*PathItem, error) {
	extItems, err := (&Element{Name: "extension"}).evaluate(ctx, items, mode)
	if err != nil {
		return nil, err
	}
	var out []*PathItem
	for _, ext := range flatten(extItems) {
		node, ok := ext.Value.(Node)
		if !ok {
			continue
		}
		url, ok := node.Get("url")
		if !ok {
			continue
		}
		if s, ok := url.(string); ok && s == e.URL {
			out = append(out, ext)
		}
	}
	return out, nil
}

func (e *TypeChoice) evaluate(ctx context.Context, items []*PathItem, mode Mode) ([]*PathItem, error) {
	var out []*PathItem
	for _, it := range items {
		node, ok := it.Value.(Node)
		if !ok {
			continue
		}
		for _, name := range node.FieldNames() {
			if !strings.HasPrefix(name, e.Base) || len(name) <= len(e.Base) {
				continue
			}
			suffix := name[len(e.Base):]
			if !isUpperFirst(suffix) {
				continue
			}
			value, present := node.Get(name)
			if !present {
				continue
			}
			out = append(out, &PathItem{
				Value:    value,
				Selector: Selector{kind: selElement, name: name},
				Parent:   it,
			})
		}
	}
	return out, nil
}

func isUpperFirst(s string) bool {
	if s == "" {
		return false
	}
	r := s[0]
	return r >= 'A' && r <= 'Z'
}

func (e *Union) evaluate(ctx context.Context, items []*PathItem, mode Mode) ([]*PathItem, error) {
	left, err := e.LHS.evaluate(ctx, items, mode)
	if err != nil {
		return nil, err
	}
	right, err := e.RHS.evaluate(ctx, items, mode)
	if err != nil {
		return nil, err
	}
	return dedupeItems(append(append([]*PathItem{}, left...), right...)), nil
}

func dedupeItems(items []*PathItem) []*PathItem {
	var out []*PathItem
	for _, it := range items {
		dup := false
		for _, o := range out {
			if valuesEqual(it.Value, o.Value) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, it)
		}
	}
	return out
}

func (e *Descendants) evaluate(ctx context.Context, items []*PathItem, mode Mode) ([]*PathItem, error) {
	mid, err := e.LHS.evaluate(ctx, items, mode)
	if err != nil {
		return nil, err
	}
	all := collectDescendants(mid)
	return e.RHS.evaluate(ctx, all, mode)
}

// collectDescendants walks every Node-valued field, recursively, of each
// item's value (§6.1 `descendants()`). List-valued fields contribute one
// entry per element.
func collectDescendants(items []*PathItem) []*PathItem {
	var out []*PathItem
	var walk func(it *PathItem)
	walk = func(it *PathItem) {
		node, ok := it.Value.(Node)
		if !ok {
			return
		}
		for _, name := range node.FieldNames() {
			value, present := node.Get(name)
			if !present {
				continue
			}
			child := &PathItem{Value: value, Selector: Selector{kind: selElement, name: name}, Parent: it}
			for _, leaf := range flatten([]*PathItem{child}) {
				out = append(out, leaf)
				walk(leaf)
			}
		}
	}
	for _, it := range items {
		walk(it)
	}
	return out
}

func (e *BinaryOp) evaluate(ctx context.Context, items []*PathItem, mode Mode) ([]*PathItem, error) {
	switch e.Op {
	case "and", "or", "xor", "implies":
		return evalLogical(ctx, e, items, mode)
	case "is", "as":
		return evalTypeOp(ctx, e, items, mode)
	}

	lhs, err := e.LHS.evaluate(ctx, items, mode)
	if err != nil {
		return nil, err
	}
	rhs, err := e.RHS.evaluate(ctx, items, mode)
	if err != nil {
		return nil, err
	}
	if len(lhs) == 0 || len(rhs) == 0 {
		return nil, nil
	}
	result, err := applyBinary(e.Op, lhs[0].Value, rhs[0].Value)
	if err != nil {
		return nil, err
	}
	return []*PathItem{{Value: result, Selector: Selector{kind: selLiteral}}}, nil
}

func evalLogical(ctx context.Context, e *BinaryOp, items []*PathItem, mode Mode) ([]*PathItem, error) {
	lhs, err := e.LHS.evaluate(ctx, items, mode)
	if err != nil {
		return nil, err
	}
	lb, lok := boolValue(lhs)
	switch e.Op {
	case "and":
		if lok && !lb {
			return literalBool(false), nil
		}
	case "or":
		if lok && lb {
			return literalBool(true), nil
		}
	}
	rhs, err := e.RHS.evaluate(ctx, items, mode)
	if err != nil {
		return nil, err
	}
	rb, rok := boolValue(rhs)
	if !lok || !rok {
		return nil, nil
	}
	switch e.Op {
	case "and":
		return literalBool(lb && rb), nil
	case "or":
		return literalBool(lb || rb), nil
	case "xor":
		return literalBool(lb != rb), nil
	case "implies":
		return literalBool(!lb || rb), nil
	}
	return nil, fhirPathErrorf("", "unknown logical operator %q", e.Op)
}

func boolValue(items []*PathItem) (bool, bool) {
	if len(items) == 0 {
		return false, false
	}
	b, ok := items[0].Value.(bool)
	return b, ok
}

func literalBool(b bool) []*PathItem {
	return []*PathItem{{Value: b, Selector: Selector{kind: selLiteral}}}
}

func evalTypeOp(ctx context.Context, e *BinaryOp, items []*PathItem, mode Mode) ([]*PathItem, error) {
	lhs, err := e.LHS.evaluate(ctx, items, mode)
	if err != nil {
		return nil, err
	}
	lit, ok := e.RHS.(*Literal)
	if !ok {
		return nil, fhirPathErrorf("", "%s requires a type specifier", e.Op)
	}
	spec, ok := lit.Value.(TypeSpecifier)
	if !ok {
		return nil, fhirPathErrorf("", "%s requires a type specifier", e.Op)
	}
	if len(lhs) == 0 {
		return nil, nil
	}
	matches := typeNameOf(lhs[0].Value) == spec.Name
	if e.Op == "is" {
		return literalBool(matches), nil
	}
	if matches {
		return lhs[:1], nil
	}
	return nil, nil
}

func typeNameOf(v any) string {
	switch val := v.(type) {
	case Node:
		return val.TypeName()
	case bool:
		return "Boolean"
	case int:
		return "Integer"
	case string:
		return "String"
	case *apd.Decimal:
		return "Decimal"
	case dateLiteral:
		return "Date"
	case timeLiteral:
		return "Time"
	case dateTimeLiteral:
		return "DateTime"
	case quantityLiteral:
		return "Quantity"
	default:
		if _, ok := v.(quantityValue); ok {
			return "Quantity"
		}
		return ""
	}
}

func (e *UnaryOp) evaluate(ctx context.Context, items []*PathItem, mode Mode) ([]*PathItem, error) {
	operand, err := e.Operand.evaluate(ctx, items, mode)
	if err != nil {
		return nil, err
	}
	if len(operand) == 0 {
		return nil, nil
	}
	switch v := operand[0].Value.(type) {
	case int:
		return []*PathItem{{Value: -v, Selector: Selector{kind: selLiteral}}}, nil
	case *apd.Decimal:
		neg := new(apd.Decimal).Neg(v)
		return []*PathItem{{Value: neg, Selector: Selector{kind: selLiteral}}}, nil
	default:
		return nil, fhirPathErrorf("", "unary %q not applicable to %T", e.Op, v)
	}
}

func (e *Literal) evaluate(ctx context.Context, items []*PathItem, mode Mode) ([]*PathItem, error) {
	return []*PathItem{{Value: e.Value, Selector: Selector{kind: selLiteral}}}, nil
}

func (e *EnvVar) evaluate(ctx context.Context, items []*PathItem, mode Mode) ([]*PathItem, error) {
	env := environmentFrom(ctx)
	if v, ok := env[e.Name]; ok {
		list, isList := asList(v)
		if isList {
			out := make([]*PathItem, len(list))
			for i, elem := range list {
				out[i] = &PathItem{Value: elem, Selector: Selector{kind: selLiteral}}
			}
			return out, nil
		}
		return []*PathItem{{Value: v, Selector: Selector{kind: selLiteral}}}, nil
	}
	if e.Name == "context" || e.Name == "resource" || e.Name == "rootResource" {
		return (&Root{}).evaluate(ctx, items, mode)
	}
	return nil, fhirPathErrorf("", "unknown environmental variable %%%s", e.Name)
}

func (e *ContextVar) evaluate(ctx context.Context, items []*PathItem, mode Mode) ([]*PathItem, error) {
	switch e.Name {
	case "this", "":
		return items, nil
	case "index":
		if v, ok := ctx.Value(ctxKey("$index")).(int); ok {
			return []*PathItem{{Value: v, Selector: Selector{kind: selLiteral}}}, nil
		}
		return nil, fhirPathErrorf("", "$index is not available in this context")
	case "total":
		if v, ok := ctx.Value(ctxKey("$total")); ok {
			return []*PathItem{{Value: v, Selector: Selector{kind: selLiteral}}}, nil
		}
		return nil, fhirPathErrorf("", "$total is not available in this context")
	default:
		return nil, fhirPathErrorf("", "unknown contextual operator $%s", e.Name)
	}
}

func (e *TypeSpecifier) evaluate(ctx context.Context, items []*PathItem, mode Mode) ([]*PathItem, error) {
	return []*PathItem{{Value: *e, Selector: Selector{kind: selLiteral}}}, nil
}

func (e *Invocation) evaluate(ctx context.Context, items []*PathItem, mode Mode) ([]*PathItem, error) {
	fn, ok := builtinFunctions[e.Fn]
	if !ok {
		return nil, fhirPathErrorf("", "unknown function %q", e.Fn)
	}
	return fn(ctx, items, e.Args, mode)
}
