package fhirpath

import (
	"github.com/cockroachdb/apd/v3"
	"github.com/iimos/ucum/ucumapd"
)

// quantityValue is satisfied structurally by fhirtype.Quantity (and any
// other Quantity-shaped value) without fhirpath importing fhirtype: Go
// interface satisfaction needs no declared relationship between packages.
type quantityValue interface {
	FHIRQuantity() (value *apd.Decimal, unit string)
}

// convertQuantities reduces two Quantity operands to comparable decimals in
// a common unit, converting b's value into a's unit via ucumapd when the
// unit codes differ textually (§4 Domain Stack).
func convertQuantities(a, b quantityValue) (*apd.Decimal, *apd.Decimal, error) {
	av, aunit := a.FHIRQuantity()
	bv, bunit := b.FHIRQuantity()
	if aunit == bunit || bunit == "" {
		return av, bv, nil
	}
	converted, err := ucumapd.Convert(bv, bunit, aunit)
	if err != nil {
		return nil, nil, fhirPathErrorf("", "cannot convert quantity unit %q to %q: %v", bunit, aunit, err)
	}
	return av, converted, nil
}

// valuesEqual implements FHIRPath `=` equality between two runtime values,
// used by `=`, `distinct`, `union`, and the set-membership functions
// (§6.1). Node values compare by type and field-by-field equality of all
// declared fields; this is sufficient for the complex FHIR types produced
// by the evaluator, which never hold behaviourally-relevant unexported
// state beyond their fields.
func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if aq, ok := a.(quantityValue); ok {
		bq, ok := b.(quantityValue)
		if !ok {
			return false
		}
		av, bv, err := convertQuantities(aq, bq)
		if err != nil {
			return false
		}
		return av.Cmp(bv) == 0
	}
	switch av := a.(type) {
	case *apd.Decimal:
		bv, ok := decimalOf(b)
		if !ok {
			return false
		}
		return av.Cmp(bv) == 0
	case int:
		switch bv := b.(type) {
		case int:
			return av == bv
		case *apd.Decimal:
			return apd.New(int64(av), 0).Cmp(bv) == 0
		}
		return false
	case Node:
		bn, ok := b.(Node)
		if !ok || av.TypeName() != bn.TypeName() {
			return false
		}
		for _, name := range av.FieldNames() {
			av1, aok := av.Get(name)
			bv1, bok := bn.Get(name)
			if aok != bok {
				return false
			}
			if aok && !valuesEqual(av1, bv1) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

func compareValues(a, b any) (int, bool) {
	if aq, ok := a.(quantityValue); ok {
		bq, ok := b.(quantityValue)
		if !ok {
			return 0, false
		}
		av, bv, err := convertQuantities(aq, bq)
		if err != nil {
			return 0, false
		}
		return av.Cmp(bv), true
	}
	switch av := a.(type) {
	case int:
		switch bv := b.(type) {
		case int:
			if av < bv {
				return -1, true
			}
			if av > bv {
				return 1, true
			}
			return 0, true
		case *apd.Decimal:
			return apd.New(int64(av), 0).Cmp(bv), true
		}
	case *apd.Decimal:
		if bv, ok := decimalOf(b); ok {
			return av.Cmp(bv), true
		}
	case string:
		if bv, ok := b.(string); ok {
			switch {
			case av < bv:
				return -1, true
			case av > bv:
				return 1, true
			default:
				return 0, true
			}
		}
	case dateLiteral:
		if bv, ok := b.(dateLiteral); ok {
			return compareStrings(av.text, bv.text), true
		}
	case timeLiteral:
		if bv, ok := b.(timeLiteral); ok {
			return compareStrings(av.text, bv.text), true
		}
	case dateTimeLiteral:
		if bv, ok := b.(dateTimeLiteral); ok {
			return compareStrings(av.text, bv.text), true
		}
	}
	return 0, false
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// applyBinary implements the arithmetic, string-concatenation, and
// comparison operators of §4.1/§6.1 BinaryOp over two single values. `and`,
// `or`, `xor`, `implies`, `is`, and `as` are handled separately in eval.go
// since they need three-valued-logic short-circuiting or a type
// specifier rather than two plain operands.
func applyBinary(op string, a, b any) (any, error) {
	switch op {
	case "=":
		return valuesEqual(a, b), nil
	case "!=":
		return !valuesEqual(a, b), nil
	case "<", "<=", ">", ">=":
		cmp, ok := compareValues(a, b)
		if !ok {
			return nil, fhirPathErrorf("", "values are not comparable: %T %s %T", a, op, b)
		}
		switch op {
		case "<":
			return cmp < 0, nil
		case "<=":
			return cmp <= 0, nil
		case ">":
			return cmp > 0, nil
		default:
			return cmp >= 0, nil
		}
	case "&":
		as, aok := a.(string)
		bs, bok := b.(string)
		if !aok {
			as = ""
		}
		if !bok {
			bs = ""
		}
		return as + bs, nil
	case "+":
		if as, ok := a.(string); ok {
			bs, ok := b.(string)
			if !ok {
				return nil, fhirPathErrorf("", "cannot add %T to string", b)
			}
			return as + bs, nil
		}
		if q, ok, err := quantityArithmetic(a, b, func(c *apd.Context, d, x, y *apd.Decimal) (apd.Condition, error) { return c.Add(d, x, y) }); ok || err != nil {
			return q, err
		}
		return arithmetic(a, b, func(c *apd.Context, d, x, y *apd.Decimal) (apd.Condition, error) { return c.Add(d, x, y) })
	case "-":
		if q, ok, err := quantityArithmetic(a, b, func(c *apd.Context, d, x, y *apd.Decimal) (apd.Condition, error) { return c.Sub(d, x, y) }); ok || err != nil {
			return q, err
		}
		return arithmetic(a, b, func(c *apd.Context, d, x, y *apd.Decimal) (apd.Condition, error) { return c.Sub(d, x, y) })
	case "*":
		return arithmetic(a, b, func(c *apd.Context, d, x, y *apd.Decimal) (apd.Condition, error) { return c.Mul(d, x, y) })
	case "/":
		return arithmetic(a, b, func(c *apd.Context, d, x, y *apd.Decimal) (apd.Condition, error) { return c.Quo(d, x, y) })
	case "div":
		return arithmetic(a, b, func(c *apd.Context, d, x, y *apd.Decimal) (apd.Condition, error) { return c.QuoInteger(d, x, y) })
	case "mod":
		return arithmetic(a, b, func(c *apd.Context, d, x, y *apd.Decimal) (apd.Condition, error) { return c.Rem(d, x, y) })
	default:
		return nil, fhirPathErrorf("", "unknown operator %q", op)
	}
}

// quantityArithmetic handles `+`/`-` when at least one operand is
// Quantity-shaped. ok is false (with a nil error) when neither operand is a
// Quantity, signalling the caller to fall through to plain decimal
// arithmetic.
func quantityArithmetic(a, b any, fn func(c *apd.Context, d, x, y *apd.Decimal) (apd.Condition, error)) (any, bool, error) {
	aq, aok := a.(quantityValue)
	bq, bok := b.(quantityValue)
	if !aok && !bok {
		return nil, false, nil
	}
	if !aok || !bok {
		return nil, true, fhirPathErrorf("", "cannot combine a quantity with a non-quantity value")
	}
	av, bv, err := convertQuantities(aq, bq)
	if err != nil {
		return nil, true, err
	}
	_, unit := aq.FHIRQuantity()
	result := new(apd.Decimal)
	rctx := apd.BaseContext.WithPrecision(34)
	if _, err := fn(rctx, result, av, bv); err != nil {
		return nil, true, err
	}
	return quantityLiteral{value: result, unit: unit}, true, nil
}

func arithmetic(a, b any, fn func(c *apd.Context, d, x, y *apd.Decimal) (apd.Condition, error)) (any, error) {
	ad, aok := decimalOf(a)
	bd, bok := decimalOf(b)
	if !aok || !bok {
		return nil, fhirPathErrorf("", "arithmetic requires numeric operands, got %T and %T", a, b)
	}
	result := new(apd.Decimal)
	rctx := apd.BaseContext.WithPrecision(34)
	if _, err := fn(rctx, result, ad, bd); err != nil {
		return nil, err
	}
	_, aInt := a.(int)
	_, bInt := b.(int)
	if aInt && bInt {
		if n, err := result.Int64(); err == nil {
			return int(n), nil
		}
	}
	return result, nil
}
