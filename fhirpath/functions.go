package fhirpath

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/cockroachdb/apd/v3"
)

// funcImpl is a builtin FHIRPath function: Invocation.Fn dispatches here
// with the unevaluated argument expressions, since some builtins (select,
// exists, all, iif) need to evaluate an argument once per input item
// rather than once against the whole focus (§6.1).
type funcImpl func(ctx context.Context, items []*PathItem, args []Expression, mode Mode) ([]*PathItem, error)

var builtinFunctions map[string]funcImpl

func init() {
	builtinFunctions = map[string]funcImpl{
		"select":         fnSelect,
		"repeat":         fnRepeat,
		"first":          fnFirst,
		"last":           fnLast,
		"tail":           fnTail,
		"single":         fnSingle,
		"skip":           fnSkip,
		"take":           fnTake,
		"count":          fnCount,
		"distinct":       fnDistinct,
		"isDistinct":     fnIsDistinct,
		"empty":          fnEmpty,
		"exists":         fnExists,
		"all":            fnAll,
		"allTrue":        fnAllTrue,
		"anyTrue":        fnAnyTrue,
		"allFalse":       fnAllFalse,
		"anyFalse":       fnAnyFalse,
		"subsetOf":       fnSubsetOf,
		"supersetOf":     fnSupersetOf,
		"union":          fnUnion,
		"combine":        fnCombine,
		"intersect":      fnIntersect,
		"exclude":        fnExclude,
		"ofType":         fnOfType,
		"iif":            fnIif,
		"toString":       fnToString,
		"toInteger":      fnToInteger,
		"toDecimal":      fnToDecimal,
		"toBoolean":      fnToBoolean,
		"toDate":         fnToDate,
		"toDateTime":     fnToDateTime,
		"toTime":         fnToTime,
		"indexOf":        fnIndexOf,
		"substring":      fnSubstring,
		"startsWith":     fnStartsWith,
		"endsWith":       fnEndsWith,
		"contains":       fnContains,
		"upper":          fnUpper,
		"lower":          fnLower,
		"replace":        fnReplace,
		"matches":        fnMatches,
		"replaceMatches": fnReplaceMatches,
		"length":         fnLength,
		"toChars":        fnToChars,
		"abs":            fnAbs,
		"ceiling":        fnCeiling,
		"floor":          fnFloor,
		"round":          fnRound,
		"sqrt":           fnSqrt,
		"truncate":       fnTruncate,
		"children":       fnChildren,
		"descendants":    fnDescendants,
		"trace":          fnTrace,
		"extension":      fnExtension,
		"hasValue":       fnHasValue,
		"getValue":       fnGetValue,
		"resolve":        fnResolve,
	}
}

func literal(v any) *PathItem {
	return &PathItem{Value: v, Selector: Selector{kind: selLiteral}}
}

func literals(vs []any) []*PathItem {
	out := make([]*PathItem, len(vs))
	for i, v := range vs {
		out[i] = literal(v)
	}
	return out
}

func boolResult(b bool) ([]*PathItem, error) { return []*PathItem{literal(b)}, nil }

// fnSelect evaluates args[0] with each input item as sole focus, and
// flattens the results together (§6.1 `select`).
func fnSelect(ctx context.Context, items []*PathItem, args []Expression, mode Mode) ([]*PathItem, error) {
	if len(args) != 1 {
		return nil, fhirPathErrorf("", "select() takes exactly one argument")
	}
	var out []*PathItem
	for _, it := range items {
		res, err := args[0].evaluate(ctx, []*PathItem{it}, mode)
		if err != nil {
			return nil, err
		}
		out = append(out, flatten(res)...)
	}
	return out, nil
}

// fnRepeat repeatedly applies args[0] until no new items appear (§6.1
// `repeat`).
func fnRepeat(ctx context.Context, items []*PathItem, args []Expression, mode Mode) ([]*PathItem, error) {
	if len(args) != 1 {
		return nil, fhirPathErrorf("", "repeat() takes exactly one argument")
	}
	seen := map[*PathItem]bool{}
	var out []*PathItem
	frontier := items
	for len(frontier) > 0 {
		var next []*PathItem
		for _, it := range frontier {
			res, err := args[0].evaluate(ctx, []*PathItem{it}, mode)
			if err != nil {
				return nil, err
			}
			for _, r := range flatten(res) {
				if !seen[r] {
					seen[r] = true
					out = append(out, r)
					next = append(next, r)
				}
			}
		}
		frontier = next
	}
	return out, nil
}

func fnFirst(ctx context.Context, items []*PathItem, args []Expression, mode Mode) ([]*PathItem, error) {
	if len(items) == 0 {
		return nil, nil
	}
	return items[:1], nil
}

func fnLast(ctx context.Context, items []*PathItem, args []Expression, mode Mode) ([]*PathItem, error) {
	if len(items) == 0 {
		return nil, nil
	}
	return items[len(items)-1:], nil
}

func fnTail(ctx context.Context, items []*PathItem, args []Expression, mode Mode) ([]*PathItem, error) {
	if len(items) <= 1 {
		return nil, nil
	}
	return items[1:], nil
}

func fnSingle(ctx context.Context, items []*PathItem, args []Expression, mode Mode) ([]*PathItem, error) {
	if len(items) == 0 {
		return nil, nil
	}
	if len(items) > 1 {
		return nil, fhirPathErrorf("", "single() expected at most one item, found %d", len(items))
	}
	return items, nil
}

func fnSkip(ctx context.Context, items []*PathItem, args []Expression, mode Mode) ([]*PathItem, error) {
	n, err := intArg(ctx, args, 0, mode)
	if err != nil {
		return nil, err
	}
	if n >= len(items) {
		return nil, nil
	}
	if n < 0 {
		n = 0
	}
	return items[n:], nil
}

func fnTake(ctx context.Context, items []*PathItem, args []Expression, mode Mode) ([]*PathItem, error) {
	n, err := intArg(ctx, args, 0, mode)
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, nil
	}
	if n > len(items) {
		n = len(items)
	}
	return items[:n], nil
}

func intArg(ctx context.Context, args []Expression, i int, mode Mode) (int, error) {
	if i >= len(args) {
		return 0, fhirPathErrorf("", "missing integer argument")
	}
	res, err := args[i].evaluate(ctx, nil, mode)
	if err != nil {
		return 0, err
	}
	if len(res) == 0 {
		return 0, fhirPathErrorf("", "expected an integer argument")
	}
	n, ok := res[0].Value.(int)
	if !ok {
		return 0, fhirPathErrorf("", "expected an integer argument")
	}
	return n, nil
}

func fnCount(ctx context.Context, items []*PathItem, args []Expression, mode Mode) ([]*PathItem, error) {
	return []*PathItem{literal(len(items))}, nil
}

func fnDistinct(ctx context.Context, items []*PathItem, args []Expression, mode Mode) ([]*PathItem, error) {
	return dedupeItems(items), nil
}

func fnIsDistinct(ctx context.Context, items []*PathItem, args []Expression, mode Mode) ([]*PathItem, error) {
	return boolResult(len(dedupeItems(items)) == len(items))
}

func fnEmpty(ctx context.Context, items []*PathItem, args []Expression, mode Mode) ([]*PathItem, error) {
	return boolResult(len(items) == 0)
}

func fnExists(ctx context.Context, items []*PathItem, args []Expression, mode Mode) ([]*PathItem, error) {
	if len(args) == 0 {
		return boolResult(len(items) > 0)
	}
	for _, it := range items {
		res, err := args[0].evaluate(ctx, []*PathItem{it}, mode)
		if err != nil {
			return nil, err
		}
		if truthy(res) {
			return boolResult(true)
		}
	}
	return boolResult(false)
}

func fnAll(ctx context.Context, items []*PathItem, args []Expression, mode Mode) ([]*PathItem, error) {
	if len(args) != 1 {
		return nil, fhirPathErrorf("", "all() takes exactly one argument")
	}
	for _, it := range items {
		res, err := args[0].evaluate(ctx, []*PathItem{it}, mode)
		if err != nil {
			return nil, err
		}
		if !truthy(res) {
			return boolResult(false)
		}
	}
	return boolResult(true)
}

func allBoolsMatch(items []*PathItem, want bool) bool {
	for _, it := range items {
		b, ok := it.Value.(bool)
		if ok && b == want {
			return true
		}
	}
	return false
}

func everyBool(items []*PathItem, want bool) bool {
	for _, it := range items {
		b, ok := it.Value.(bool)
		if !ok || b != want {
			return false
		}
	}
	return true
}

func fnAllTrue(ctx context.Context, items []*PathItem, args []Expression, mode Mode) ([]*PathItem, error) {
	return boolResult(everyBool(items, true))
}

func fnAnyTrue(ctx context.Context, items []*PathItem, args []Expression, mode Mode) ([]*PathItem, error) {
	return boolResult(allBoolsMatch(items, true))
}

func fnAllFalse(ctx context.Context, items []*PathItem, args []Expression, mode Mode) ([]*PathItem, error) {
	return boolResult(everyBool(items, false))
}

func fnAnyFalse(ctx context.Context, items []*PathItem, args []Expression, mode Mode) ([]*PathItem, error) {
	return boolResult(allBoolsMatch(items, false))
}

func evalSetArg(ctx context.Context, args []Expression, i int, items []*PathItem, mode Mode) ([]*PathItem, error) {
	if i >= len(args) {
		return nil, fhirPathErrorf("", "missing collection argument")
	}
	return args[i].evaluate(ctx, items, mode)
}

func fnSubsetOf(ctx context.Context, items []*PathItem, args []Expression, mode Mode) ([]*PathItem, error) {
	other, err := evalSetArg(ctx, args, 0, items, mode)
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		if !containsValue(other, it.Value) {
			return boolResult(false)
		}
	}
	return boolResult(true)
}

func fnSupersetOf(ctx context.Context, items []*PathItem, args []Expression, mode Mode) ([]*PathItem, error) {
	other, err := evalSetArg(ctx, args, 0, items, mode)
	if err != nil {
		return nil, err
	}
	for _, it := range other {
		if !containsValue(items, it.Value) {
			return boolResult(false)
		}
	}
	return boolResult(true)
}

func containsValue(items []*PathItem, v any) bool {
	for _, it := range items {
		if valuesEqual(it.Value, v) {
			return true
		}
	}
	return false
}

func fnUnion(ctx context.Context, items []*PathItem, args []Expression, mode Mode) ([]*PathItem, error) {
	other, err := evalSetArg(ctx, args, 0, items, mode)
	if err != nil {
		return nil, err
	}
	return dedupeItems(append(append([]*PathItem{}, items...), other...)), nil
}

func fnCombine(ctx context.Context, items []*PathItem, args []Expression, mode Mode) ([]*PathItem, error) {
	other, err := evalSetArg(ctx, args, 0, items, mode)
	if err != nil {
		return nil, err
	}
	return append(append([]*PathItem{}, items...), other...), nil
}

func fnIntersect(ctx context.Context, items []*PathItem, args []Expression, mode Mode) ([]*PathItem, error) {
	other, err := evalSetArg(ctx, args, 0, items, mode)
	if err != nil {
		return nil, err
	}
	var out []*PathItem
	for _, it := range dedupeItems(items) {
		if containsValue(other, it.Value) {
			out = append(out, it)
		}
	}
	return out, nil
}

func fnExclude(ctx context.Context, items []*PathItem, args []Expression, mode Mode) ([]*PathItem, error) {
	other, err := evalSetArg(ctx, args, 0, items, mode)
	if err != nil {
		return nil, err
	}
	var out []*PathItem
	for _, it := range items {
		if !containsValue(other, it.Value) {
			out = append(out, it)
		}
	}
	return out, nil
}

func fnOfType(ctx context.Context, items []*PathItem, args []Expression, mode Mode) ([]*PathItem, error) {
	if len(args) != 1 {
		return nil, fhirPathErrorf("", "ofType() takes exactly one argument")
	}
	lit, ok := args[0].(*Literal)
	var typeName string
	if ok {
		if spec, ok := lit.Value.(TypeSpecifier); ok {
			typeName = spec.Name
		} else if s, ok := lit.Value.(string); ok {
			typeName = s
		}
	} else if id, ok := args[0].(*Element); ok {
		typeName = id.Name
	}
	if typeName == "" {
		return nil, fhirPathErrorf("", "ofType() requires a type specifier")
	}
	var out []*PathItem
	for _, it := range items {
		if typeNameOf(it.Value) == typeName {
			out = append(out, it)
		}
	}
	return out, nil
}

func fnIif(ctx context.Context, items []*PathItem, args []Expression, mode Mode) ([]*PathItem, error) {
	if len(args) < 2 || len(args) > 3 {
		return nil, fhirPathErrorf("", "iif() takes two or three arguments")
	}
	var out []*PathItem
	for _, it := range items {
		cond, err := args[0].evaluate(ctx, []*PathItem{it}, mode)
		if err != nil {
			return nil, err
		}
		var branch Expression
		if truthy(cond) {
			branch = args[1]
		} else if len(args) == 3 {
			branch = args[2]
		} else {
			continue
		}
		res, err := branch.evaluate(ctx, []*PathItem{it}, mode)
		if err != nil {
			return nil, err
		}
		out = append(out, res...)
	}
	return out, nil
}

func unaryString(fn func(s string) (any, error)) funcImpl {
	return func(ctx context.Context, items []*PathItem, args []Expression, mode Mode) ([]*PathItem, error) {
		if len(items) == 0 {
			return nil, nil
		}
		s, err := stringOf(items[0].Value)
		if err != nil {
			return nil, err
		}
		v, err := fn(s)
		if err != nil {
			return nil, err
		}
		return []*PathItem{literal(v)}, nil
	}
}

func stringOf(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case bool:
		return strconv.FormatBool(val), nil
	case int:
		return strconv.Itoa(val), nil
	case *apd.Decimal:
		return val.String(), nil
	case fmt.Stringer:
		return val.String(), nil
	default:
		return "", fhirPathErrorf("", "cannot convert %T to string", v)
	}
}

func fnToString(ctx context.Context, items []*PathItem, args []Expression, mode Mode) ([]*PathItem, error) {
	return unaryString(func(s string) (any, error) { return s, nil })(ctx, items, args, mode)
}

func fnToInteger(ctx context.Context, items []*PathItem, args []Expression, mode Mode) ([]*PathItem, error) {
	if len(items) == 0 {
		return nil, nil
	}
	switch v := items[0].Value.(type) {
	case int:
		return []*PathItem{literal(v)}, nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return nil, nil
		}
		return []*PathItem{literal(n)}, nil
	case bool:
		if v {
			return []*PathItem{literal(1)}, nil
		}
		return []*PathItem{literal(0)}, nil
	default:
		return nil, nil
	}
}

func fnToDecimal(ctx context.Context, items []*PathItem, args []Expression, mode Mode) ([]*PathItem, error) {
	if len(items) == 0 {
		return nil, nil
	}
	switch v := items[0].Value.(type) {
	case *apd.Decimal:
		return []*PathItem{literal(v)}, nil
	case int:
		d := apd.New(int64(v), 0)
		return []*PathItem{literal(d)}, nil
	case string:
		d, _, err := apd.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return nil, nil
		}
		return []*PathItem{literal(d)}, nil
	default:
		return nil, nil
	}
}

func fnToBoolean(ctx context.Context, items []*PathItem, args []Expression, mode Mode) ([]*PathItem, error) {
	if len(items) == 0 {
		return nil, nil
	}
	switch v := items[0].Value.(type) {
	case bool:
		return []*PathItem{literal(v)}, nil
	case string:
		switch strings.ToLower(v) {
		case "true", "t", "yes", "y", "1", "1.0":
			return []*PathItem{literal(true)}, nil
		case "false", "f", "no", "n", "0", "0.0":
			return []*PathItem{literal(false)}, nil
		}
		return nil, nil
	case int:
		if v == 1 {
			return []*PathItem{literal(true)}, nil
		}
		if v == 0 {
			return []*PathItem{literal(false)}, nil
		}
		return nil, nil
	default:
		return nil, nil
	}
}

func fnToDate(ctx context.Context, items []*PathItem, args []Expression, mode Mode) ([]*PathItem, error) {
	if len(items) == 0 {
		return nil, nil
	}
	switch v := items[0].Value.(type) {
	case dateLiteral:
		return []*PathItem{literal(v)}, nil
	case dateTimeLiteral:
		return []*PathItem{literal(dateLiteral{text: strings.SplitN(v.text, "T", 2)[0]})}, nil
	case string:
		return []*PathItem{literal(dateLiteral{text: v})}, nil
	default:
		return nil, nil
	}
}

func fnToDateTime(ctx context.Context, items []*PathItem, args []Expression, mode Mode) ([]*PathItem, error) {
	if len(items) == 0 {
		return nil, nil
	}
	switch v := items[0].Value.(type) {
	case dateTimeLiteral:
		return []*PathItem{literal(v)}, nil
	case dateLiteral:
		return []*PathItem{literal(dateTimeLiteral{text: v.text})}, nil
	case string:
		return []*PathItem{literal(dateTimeLiteral{text: v})}, nil
	default:
		return nil, nil
	}
}

func fnToTime(ctx context.Context, items []*PathItem, args []Expression, mode Mode) ([]*PathItem, error) {
	if len(items) == 0 {
		return nil, nil
	}
	switch v := items[0].Value.(type) {
	case timeLiteral:
		return []*PathItem{literal(v)}, nil
	case string:
		return []*PathItem{literal(timeLiteral{text: v})}, nil
	default:
		return nil, nil
	}
}

func fnIndexOf(ctx context.Context, items []*PathItem, args []Expression, mode Mode) ([]*PathItem, error) {
	if len(items) == 0 {
		return nil, nil
	}
	s, err := stringOf(items[0].Value)
	if err != nil {
		return nil, err
	}
	sub, err := stringArgValue(ctx, args, 0, mode)
	if err != nil {
		return nil, err
	}
	return []*PathItem{literal(strings.Index(s, sub))}, nil
}

func stringArgValue(ctx context.Context, args []Expression, i int, mode Mode) (string, error) {
	if i >= len(args) {
		return "", fhirPathErrorf("", "missing string argument")
	}
	res, err := args[i].evaluate(ctx, nil, mode)
	if err != nil {
		return "", err
	}
	if len(res) == 0 {
		return "", fhirPathErrorf("", "expected a string argument")
	}
	return stringOf(res[0].Value)
}

func fnSubstring(ctx context.Context, items []*PathItem, args []Expression, mode Mode) ([]*PathItem, error) {
	if len(items) == 0 {
		return nil, nil
	}
	s, err := stringOf(items[0].Value)
	if err != nil {
		return nil, err
	}
	start, err := intArg(ctx, args, 0, mode)
	if err != nil {
		return nil, err
	}
	runes := []rune(s)
	if start < 0 || start >= len(runes) {
		return nil, nil
	}
	end := len(runes)
	if len(args) > 1 {
		length, err := intArg(ctx, args, 1, mode)
		if err != nil {
			return nil, err
		}
		if start+length < end {
			end = start + length
		}
	}
	return []*PathItem{literal(string(runes[start:end]))}, nil
}

func fnStartsWith(ctx context.Context, items []*PathItem, args []Expression, mode Mode) ([]*PathItem, error) {
	if len(items) == 0 {
		return nil, nil
	}
	s, err := stringOf(items[0].Value)
	if err != nil {
		return nil, err
	}
	prefix, err := stringArgValue(ctx, args, 0, mode)
	if err != nil {
		return nil, err
	}
	return boolResult(strings.HasPrefix(s, prefix))
}

func fnEndsWith(ctx context.Context, items []*PathItem, args []Expression, mode Mode) ([]*PathItem, error) {
	if len(items) == 0 {
		return nil, nil
	}
	s, err := stringOf(items[0].Value)
	if err != nil {
		return nil, err
	}
	suffix, err := stringArgValue(ctx, args, 0, mode)
	if err != nil {
		return nil, err
	}
	return boolResult(strings.HasSuffix(s, suffix))
}

func fnContains(ctx context.Context, items []*PathItem, args []Expression, mode Mode) ([]*PathItem, error) {
	if len(items) == 0 {
		return nil, nil
	}
	s, err := stringOf(items[0].Value)
	if err != nil {
		return nil, err
	}
	sub, err := stringArgValue(ctx, args, 0, mode)
	if err != nil {
		return nil, err
	}
	return boolResult(strings.Contains(s, sub))
}

func fnUpper(ctx context.Context, items []*PathItem, args []Expression, mode Mode) ([]*PathItem, error) {
	return unaryString(func(s string) (any, error) { return strings.ToUpper(s), nil })(ctx, items, args, mode)
}

func fnLower(ctx context.Context, items []*PathItem, args []Expression, mode Mode) ([]*PathItem, error) {
	return unaryString(func(s string) (any, error) { return strings.ToLower(s), nil })(ctx, items, args, mode)
}

func fnReplace(ctx context.Context, items []*PathItem, args []Expression, mode Mode) ([]*PathItem, error) {
	if len(items) == 0 {
		return nil, nil
	}
	s, err := stringOf(items[0].Value)
	if err != nil {
		return nil, err
	}
	pattern, err := stringArgValue(ctx, args, 0, mode)
	if err != nil {
		return nil, err
	}
	replacement, err := stringArgValue(ctx, args, 1, mode)
	if err != nil {
		return nil, err
	}
	return []*PathItem{literal(strings.ReplaceAll(s, pattern, replacement))}, nil
}

func fnMatches(ctx context.Context, items []*PathItem, args []Expression, mode Mode) ([]*PathItem, error) {
	if len(items) == 0 {
		return nil, nil
	}
	s, err := stringOf(items[0].Value)
	if err != nil {
		return nil, err
	}
	pattern, err := stringArgValue(ctx, args, 0, mode)
	if err != nil {
		return nil, err
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fhirPathErrorf("", "invalid regular expression: %s", err)
	}
	return boolResult(re.MatchString(s))
}

func fnReplaceMatches(ctx context.Context, items []*PathItem, args []Expression, mode Mode) ([]*PathItem, error) {
	if len(items) == 0 {
		return nil, nil
	}
	s, err := stringOf(items[0].Value)
	if err != nil {
		return nil, err
	}
	pattern, err := stringArgValue(ctx, args, 0, mode)
	if err != nil {
		return nil, err
	}
	replacement, err := stringArgValue(ctx, args, 1, mode)
	if err != nil {
		return nil, err
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fhirPathErrorf("", "invalid regular expression: %s", err)
	}
	return []*PathItem{literal(re.ReplaceAllString(s, replacement))}, nil
}

func fnLength(ctx context.Context, items []*PathItem, args []Expression, mode Mode) ([]*PathItem, error) {
	if len(items) == 0 {
		return nil, nil
	}
	s, err := stringOf(items[0].Value)
	if err != nil {
		return nil, err
	}
	return []*PathItem{literal(len([]rune(s)))}, nil
}

func fnToChars(ctx context.Context, items []*PathItem, args []Expression, mode Mode) ([]*PathItem, error) {
	if len(items) == 0 {
		return nil, nil
	}
	s, err := stringOf(items[0].Value)
	if err != nil {
		return nil, err
	}
	runes := []rune(s)
	out := make([]any, len(runes))
	for i, r := range runes {
		out[i] = string(r)
	}
	return literals(out), nil
}

func decimalOf(v any) (*apd.Decimal, bool) {
	switch val := v.(type) {
	case *apd.Decimal:
		return val, true
	case int:
		return apd.New(int64(val), 0), true
	default:
		return nil, false
	}
}

func unaryDecimal(fn func(ctx *apd.Context, d, v *apd.Decimal) (apd.Condition, error)) funcImpl {
	return func(ctx context.Context, items []*PathItem, args []Expression, mode Mode) ([]*PathItem, error) {
		if len(items) == 0 {
			return nil, nil
		}
		v, ok := decimalOf(items[0].Value)
		if !ok {
			return nil, fhirPathErrorf("", "expected a numeric value")
		}
		result := new(apd.Decimal)
		if _, err := fn(apd.BaseContext.WithPrecision(34), result, v); err != nil {
			return nil, err
		}
		return []*PathItem{literal(result)}, nil
	}
}

func fnAbs(ctx context.Context, items []*PathItem, args []Expression, mode Mode) ([]*PathItem, error) {
	if len(items) == 0 {
		return nil, nil
	}
	v, ok := decimalOf(items[0].Value)
	if !ok {
		return nil, fhirPathErrorf("", "expected a numeric value")
	}
	result := new(apd.Decimal)
	result.Abs(v)
	return []*PathItem{literal(result)}, nil
}

func fnCeiling(ctx context.Context, items []*PathItem, args []Expression, mode Mode) ([]*PathItem, error) {
	return unaryDecimal(func(c *apd.Context, d, v *apd.Decimal) (apd.Condition, error) { return c.Ceil(d, v) })(ctx, items, args, mode)
}

func fnFloor(ctx context.Context, items []*PathItem, args []Expression, mode Mode) ([]*PathItem, error) {
	return unaryDecimal(func(c *apd.Context, d, v *apd.Decimal) (apd.Condition, error) { return c.Floor(d, v) })(ctx, items, args, mode)
}

func fnRound(ctx context.Context, items []*PathItem, args []Expression, mode Mode) ([]*PathItem, error) {
	if len(items) == 0 {
		return nil, nil
	}
	v, ok := decimalOf(items[0].Value)
	if !ok {
		return nil, fhirPathErrorf("", "expected a numeric value")
	}
	digits := 0
	if len(args) > 0 {
		n, err := intArg(ctx, args, 0, mode)
		if err != nil {
			return nil, err
		}
		digits = n
	}
	result := new(apd.Decimal)
	rctx := apd.BaseContext.WithPrecision(34)
	rctx.Rounding = apd.RoundHalfUp
	if _, err := rctx.Quantize(result, v, -int32(digits)); err != nil {
		return nil, err
	}
	return []*PathItem{literal(result)}, nil
}

func fnSqrt(ctx context.Context, items []*PathItem, args []Expression, mode Mode) ([]*PathItem, error) {
	return unaryDecimal(func(c *apd.Context, d, v *apd.Decimal) (apd.Condition, error) { return c.Sqrt(d, v) })(ctx, items, args, mode)
}

func fnTruncate(ctx context.Context, items []*PathItem, args []Expression, mode Mode) ([]*PathItem, error) {
	if len(items) == 0 {
		return nil, nil
	}
	v, ok := decimalOf(items[0].Value)
	if !ok {
		return nil, fhirPathErrorf("", "expected a numeric value")
	}
	whole := new(apd.Decimal)
	rctx := apd.BaseContext.WithPrecision(34)
	rctx.Rounding = apd.RoundDown
	if _, err := rctx.Quantize(whole, v, 0); err != nil {
		return nil, err
	}
	n, err := whole.Int64()
	if err != nil {
		return nil, fhirPathErrorf("", "truncate() overflow")
	}
	return []*PathItem{literal(int(n))}, nil
}

func fnChildren(ctx context.Context, items []*PathItem, args []Expression, mode Mode) ([]*PathItem, error) {
	var out []*PathItem
	for _, it := range items {
		node, ok := it.Value.(Node)
		if !ok {
			continue
		}
		for _, name := range node.FieldNames() {
			value, present := node.Get(name)
			if !present {
				continue
			}
			out = append(out, &PathItem{Value: value, Selector: Selector{kind: selElement, name: name}, Parent: it})
		}
	}
	return flatten(out), nil
}

func fnDescendants(ctx context.Context, items []*PathItem, args []Expression, mode Mode) ([]*PathItem, error) {
	return collectDescendants(items), nil
}

func fnTrace(ctx context.Context, items []*PathItem, args []Expression, mode Mode) ([]*PathItem, error) {
	return items, nil
}

func fnExtension(ctx context.Context, items []*PathItem, args []Expression, mode Mode) ([]*PathItem, error) {
	if len(args) != 1 {
		return nil, fhirPathErrorf("", "extension() takes exactly one argument")
	}
	url, err := stringArgValue(ctx, args, 0, mode)
	if err != nil {
		return nil, err
	}
	return (&FhirExtension{URL: url}).evaluate(ctx, items, mode)
}

func fnHasValue(ctx context.Context, items []*PathItem, args []Expression, mode Mode) ([]*PathItem, error) {
	if len(items) == 0 {
		return boolResult(false)
	}
	return boolResult(items[0].Value != nil)
}

func fnGetValue(ctx context.Context, items []*PathItem, args []Expression, mode Mode) ([]*PathItem, error) {
	if len(items) == 0 {
		return nil, nil
	}
	node, ok := items[0].Value.(Node)
	if !ok {
		return items[:1], nil
	}
	v, present := node.Get("value")
	if !present {
		return nil, nil
	}
	return []*PathItem{literal(v)}, nil
}

// Resolver looks up a FHIR reference's target resource, supplied by the
// host application via WithResolver (§6.1 `resolve`).
type Resolver func(ctx context.Context, reference string) (Node, error)

const resolverKey ctxKey = "fhirpath.resolver"

// WithResolver attaches a Resolver to ctx for the `resolve()` function.
func WithResolver(ctx context.Context, r Resolver) context.Context {
	return context.WithValue(ctx, resolverKey, r)
}

func fnResolve(ctx context.Context, items []*PathItem, args []Expression, mode Mode) ([]*PathItem, error) {
	resolver, _ := ctx.Value(resolverKey).(Resolver)
	if resolver == nil {
		return nil, fhirPathErrorf("", "resolve() requires a Resolver in context")
	}
	var out []*PathItem
	for _, it := range items {
		var ref string
		switch v := it.Value.(type) {
		case string:
			ref = v
		case Node:
			if s, present := v.Get("reference"); present {
				ref, _ = s.(string)
			}
		default:
			return nil, fhirPathErrorf(it.FullPath(), "resolve() requires a reference or URL value, got %T", it.Value)
		}
		if ref == "" {
			continue
		}
		target, err := resolver(ctx, ref)
		if err != nil {
			return nil, err
		}
		if target != nil {
			out = append(out, &PathItem{Value: target, Selector: Selector{kind: selLiteral}})
		}
	}
	return out, nil
}
