// Package fhirtype is the FHIR type registry (C5): primitive regex
// descriptors and a representative set of complex-type descriptors, keyed
// per release, that structuredefinition and profile consult when
// compiling a StructureDefinition into a FieldSpec tree.
package fhirtype

import (
	"regexp"

	"github.com/cockroachdb/apd/v3"
)

// Primitive describes a named constrained scalar: a regex pattern the
// wire-format string must match, plus the Go host type it coerces to
// (§4.5).
type Primitive struct {
	Name    string
	Pattern *regexp.Regexp
	Coerce  func(raw string) (any, error)
}

const (
	yearRE     = `([0-9]([0-9]([0-9][1-9]|[1-9]0)|[1-9]00)|[1-9]000)`
	monthRE    = `(0[1-9]|1[0-2])`
	dayRE      = `(0[1-9]|[1-2][0-9]|3[0-1])`
	hourRE     = `([01][0-9]|2[0-3])`
	minutesRE  = `[0-5][0-9]`
	secondsRE  = `([0-5][0-9]|60)(\.[0-9]+)?`
	timezoneRE = `Z|(\+|-)((0[0-9]|1[0-3]):[0-5][0-9]|14:00)`
)

// Primitives holds every FHIR primitive type's descriptor, grounded
// verbatim on the FHIR R4B specification's regex constraints (the same
// patterns `datatypes/primitives.py` encodes as Pydantic `Field(pattern=)`
// constraints).
var Primitives = map[string]*Primitive{}

func registerPrimitive(name, pattern string, coerce func(string) (any, error)) {
	Primitives[name] = &Primitive{
		Name:    name,
		Pattern: regexp.MustCompile("^(?:" + pattern + ")$"),
		Coerce:  coerce,
	}
}

func identityCoerce(raw string) (any, error) { return raw, nil }

func init() {
	registerPrimitive("boolean", `true|false`, func(s string) (any, error) { return s == "true", nil })
	registerPrimitive("integer", `0|[-+]?[1-9][0-9]*`, coerceInt)
	registerPrimitive("integer64", `0|[-+]?[1-9][0-9]*`, coerceInt)
	registerPrimitive("string", `.*`, identityCoerce)
	registerPrimitive("decimal", `-?(0|[1-9][0-9]*)(\.[0-9]+)?([eE][+-]?[0-9]+)?`, coerceDecimal)
	registerPrimitive("uri", `\S*`, identityCoerce)
	registerPrimitive("url", `\S*`, identityCoerce)
	registerPrimitive("canonical", `\S*`, identityCoerce)
	registerPrimitive("base64Binary", `(\s*([0-9a-zA-Z\+\=]){4}\s*)+`, identityCoerce)
	registerPrimitive("instant", yearRE+`-`+monthRE+`-`+dayRE+`T`+hourRE+`:`+minutesRE+`:`+secondsRE+`(`+timezoneRE+`)?`, identityCoerce)
	registerPrimitive("date", yearRE+`(-`+monthRE+`(-`+dayRE+`)?)?`, identityCoerce)
	registerPrimitive("dateTime", yearRE+`(-`+monthRE+`(-`+dayRE+`)?)?(T`+hourRE+`(:`+minutesRE+`(:`+secondsRE+`(`+timezoneRE+`)?)?)?)?`, identityCoerce)
	registerPrimitive("time", hourRE+`(:`+minutesRE+`(:`+secondsRE+`(`+timezoneRE+`)?)?)?`, identityCoerce)
	registerPrimitive("code", `[^\s]+(\s[^\s]+)*`, identityCoerce)
	registerPrimitive("oid", `urn:oid:[0-2](\.(0|[1-9][0-9]*))+`, identityCoerce)
	registerPrimitive("id", `[A-Za-z0-9\-\.]{1,64}`, identityCoerce)
	registerPrimitive("markdown", `\s*(\S|\s)*`, identityCoerce)
	registerPrimitive("unsignedInt", `0|([1-9][0-9]*)`, coerceInt)
	registerPrimitive("positiveInt", `\+?[1-9][0-9]*`, coerceInt)
	registerPrimitive("uuid", `.*`, identityCoerce)
}

func coerceDecimal(raw string) (any, error) {
	d, _, err := apd.NewFromString(raw)
	return d, err
}

func coerceInt(raw string) (any, error) {
	n := 0
	neg := false
	i := 0
	if i < len(raw) && (raw[i] == '+' || raw[i] == '-') {
		neg = raw[i] == '-'
		i++
	}
	for ; i < len(raw); i++ {
		n = n*10 + int(raw[i]-'0')
	}
	if neg {
		n = -n
	}
	return n, nil
}
