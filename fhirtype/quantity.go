package fhirtype

import (
	"fmt"

	"github.com/cockroachdb/apd/v3"
	"github.com/iimos/ucum"
)

// Quantity is the FHIR Quantity datatype, UCUM-validated on construction
// per SPEC_FULL.md §4 Domain Stack. It implements fhirpath's unexported
// quantity interface structurally (FHIRQuantity() (value, unit)) so the
// evaluator's arithmetic/comparison operators can convert and compare two
// Quantity operands without fhirpath importing this package.
type Quantity struct {
	Value      *apd.Decimal
	Comparator string
	Unit       string
	System     string
	Code       string
}

// NewQuantity validates Code against UCUM (when System is the UCUM system
// URI, the FHIR convention for "machine-readable" units) and constructs a
// Quantity. A non-UCUM system (e.g. a local lab code system) is accepted
// without unit validation, since UCUM only governs the `http://unitsofmeasure.org`
// system per the FHIR Quantity datatype definition.
func NewQuantity(value *apd.Decimal, unit, system, code string) (*Quantity, error) {
	if system == "http://unitsofmeasure.org" && code != "" {
		if _, err := ucum.Parse(code); err != nil {
			return nil, fmt.Errorf("fhirtype: invalid UCUM unit %q: %w", code, err)
		}
	}
	return &Quantity{Value: value, Unit: unit, System: system, Code: code}, nil
}

// FHIRQuantity satisfies fhirpath's structural quantity-operand interface.
func (q *Quantity) FHIRQuantity() (*apd.Decimal, string) {
	code := q.Code
	if code == "" {
		code = q.Unit
	}
	return q.Value, code
}
