package fhirpath

import "github.com/cockroachdb/apd/v3"

// The following are the payload types a Literal.Value may hold for the
// date/time/quantity literal forms of §4.1. They carry the lexer's raw text
// (already stripped of the leading '@'/'@T' per Token.Value) rather than a
// parsed calendar value, since FHIRPath date/time literals are
// partial-precision by design (a bare "@2024" is a valid, distinct value
// from "@2024-01-01") and comparisons must respect that precision rather
// than normalising it away.
type dateLiteral struct{ text string }

type timeLiteral struct{ text string }

type dateTimeLiteral struct{ text string }

// quantityLiteral is a number immediately followed by a calendar-duration
// unit keyword (e.g. `4 days`), per §4.1's CALENDAR_DURATION token class.
type quantityLiteral struct {
	value *apd.Decimal
	unit  string
}

func (d dateLiteral) String() string     { return "@" + d.text }
func (t timeLiteral) String() string     { return "@T" + t.text }
func (dt dateTimeLiteral) String() string { return "@" + dt.text }
func (q quantityLiteral) String() string {
	if reservedWords[q.unit] == KindCalendarDuration {
		return q.value.String() + " " + q.unit
	}
	return q.value.String() + " " + quoteUnit(q.unit)
}

// FHIRQuantity satisfies the unexported quantityValue interface in
// compare.go so a quantityLiteral can participate in Quantity-aware
// arithmetic and comparison alongside fhirtype.Quantity values.
func (q quantityLiteral) FHIRQuantity() (*apd.Decimal, string) { return q.value, q.unit }

func quoteUnit(unit string) string {
	return "'" + unit + "'"
}
