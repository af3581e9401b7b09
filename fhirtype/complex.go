package fhirtype

// registerComplexTypes populates a Registry with the representative subset
// of FHIR complex types spec.md §8's end-to-end scenarios exercise:
// Resource/DomainResource/Element/BackboneElement/Extension as the
// inheritance spine, Identifier/CodeableConcept/Coding/Quantity/Reference/
// Narrative/Meta as reusable datatypes, and Patient/Observation/HumanName
// as worked resource examples. Grounded on
// original_source/fhircraft/fhir/resources/datatypes/R4B/complex_types.py,
// hand-picking the fields that matter for the component/extension/
// type-choice scenarios rather than transliterating its full ~200KB of
// generated field lists.
func registerComplexTypes(reg *Registry) {
	element := &Complex{
		Name: "Element",
		Fields: []FieldDescriptor{
			{Name: "id", Types: []string{"string"}, Min: 0, Max: 1},
			{Name: "extension", Types: []string{"Extension"}, Min: 0, Max: -1},
		},
	}
	reg.registerComplex(element, false)

	backbone := &Complex{
		Name: "BackboneElement",
		Base: "Element",
		Fields: []FieldDescriptor{
			{Name: "modifierExtension", Types: []string{"Extension"}, Min: 0, Max: -1},
		},
	}
	reg.registerComplex(backbone, false)

	extension := &Complex{
		Name: "Extension",
		Base: "Element",
		Fields: []FieldDescriptor{
			{Name: "url", Types: []string{"uri"}, Min: 1, Max: 1},
			{Name: "value", Types: []string{
				"base64Binary", "boolean", "canonical", "code", "date", "dateTime",
				"decimal", "id", "instant", "integer", "integer64", "markdown", "oid",
				"positiveInt", "string", "time", "unsignedInt", "uri", "url", "uuid",
				"Address", "Age", "Annotation", "Attachment", "CodeableConcept",
				"Coding", "ContactPoint", "Count", "Distance", "Duration",
				"HumanName", "Identifier", "Money", "Period", "Quantity", "Range",
				"Ratio", "Reference", "SampledData", "Signature", "Timing",
			}, Min: 0, Max: 1},
		},
	}
	reg.registerComplex(extension, false)

	narrative := &Complex{
		Name: "Narrative",
		Base: "Element",
		Fields: []FieldDescriptor{
			{Name: "status", Types: []string{"code"}, Min: 1, Max: 1},
			{Name: "div", Types: []string{"string"}, Min: 1, Max: 1},
		},
	}
	reg.registerComplex(narrative, false)

	coding := &Complex{
		Name: "Coding",
		Base: "Element",
		Fields: []FieldDescriptor{
			{Name: "system", Types: []string{"uri"}, Min: 0, Max: 1},
			{Name: "version", Types: []string{"string"}, Min: 0, Max: 1},
			{Name: "code", Types: []string{"code"}, Min: 0, Max: 1},
			{Name: "display", Types: []string{"string"}, Min: 0, Max: 1},
			{Name: "userSelected", Types: []string{"boolean"}, Min: 0, Max: 1},
		},
	}
	reg.registerComplex(coding, false)

	codeableConcept := &Complex{
		Name: "CodeableConcept",
		Base: "Element",
		Fields: []FieldDescriptor{
			{Name: "coding", Types: []string{"Coding"}, Min: 0, Max: -1},
			{Name: "text", Types: []string{"string"}, Min: 0, Max: 1},
		},
	}
	reg.registerComplex(codeableConcept, false)

	identifier := &Complex{
		Name: "Identifier",
		Base: "Element",
		Fields: []FieldDescriptor{
			{Name: "use", Types: []string{"code"}, Min: 0, Max: 1},
			{Name: "type", Types: []string{"CodeableConcept"}, Min: 0, Max: 1},
			{Name: "system", Types: []string{"uri"}, Min: 0, Max: 1},
			{Name: "value", Types: []string{"string"}, Min: 0, Max: 1},
			{Name: "assigner", Types: []string{"Reference"}, Min: 0, Max: 1},
		},
	}
	reg.registerComplex(identifier, false)

	reference := &Complex{
		Name: "Reference",
		Base: "Element",
		Fields: []FieldDescriptor{
			{Name: "reference", Types: []string{"string"}, Min: 0, Max: 1},
			{Name: "type", Types: []string{"uri"}, Min: 0, Max: 1},
			{Name: "identifier", Types: []string{"Identifier"}, Min: 0, Max: 1},
			{Name: "display", Types: []string{"string"}, Min: 0, Max: 1},
		},
	}
	reg.registerComplex(reference, false)

	quantity := &Complex{
		Name: "Quantity",
		Base: "Element",
		Fields: []FieldDescriptor{
			{Name: "value", Types: []string{"decimal"}, Min: 0, Max: 1},
			{Name: "comparator", Types: []string{"code"}, Min: 0, Max: 1},
			{Name: "unit", Types: []string{"string"}, Min: 0, Max: 1},
			{Name: "system", Types: []string{"uri"}, Min: 0, Max: 1},
			{Name: "code", Types: []string{"code"}, Min: 0, Max: 1},
		},
	}
	reg.registerComplex(quantity, false)

	period := &Complex{
		Name: "Period",
		Base: "Element",
		Fields: []FieldDescriptor{
			{Name: "start", Types: []string{"dateTime"}, Min: 0, Max: 1},
			{Name: "end", Types: []string{"dateTime"}, Min: 0, Max: 1},
		},
	}
	reg.registerComplex(period, false)

	humanName := &Complex{
		Name: "HumanName",
		Base: "Element",
		Fields: []FieldDescriptor{
			{Name: "use", Types: []string{"code"}, Min: 0, Max: 1},
			{Name: "text", Types: []string{"string"}, Min: 0, Max: 1},
			{Name: "family", Types: []string{"string"}, Min: 0, Max: 1},
			{Name: "given", Types: []string{"string"}, Min: 0, Max: -1},
			{Name: "period", Types: []string{"Period"}, Min: 0, Max: 1},
		},
	}
	reg.registerComplex(humanName, false)

	meta := &Complex{
		Name: "Meta",
		Base: "Element",
		Fields: []FieldDescriptor{
			{Name: "versionId", Types: []string{"id"}, Min: 0, Max: 1},
			{Name: "lastUpdated", Types: []string{"instant"}, Min: 0, Max: 1},
			{Name: "profile", Types: []string{"canonical"}, Min: 0, Max: -1},
		},
	}
	reg.registerComplex(meta, false)

	resource := &Complex{
		Name: "Resource",
		Fields: []FieldDescriptor{
			{Name: "id", Types: []string{"id"}, Min: 0, Max: 1},
			{Name: "meta", Types: []string{"Meta"}, Min: 0, Max: 1},
			{Name: "implicitRules", Types: []string{"uri"}, Min: 0, Max: 1},
			{Name: "language", Types: []string{"code"}, Min: 0, Max: 1},
		},
	}
	reg.registerComplex(resource, false)

	domainResource := &Complex{
		Name: "DomainResource",
		Base: "Resource",
		Fields: []FieldDescriptor{
			{Name: "text", Types: []string{"Narrative"}, Min: 0, Max: 1},
			{Name: "extension", Types: []string{"Extension"}, Min: 0, Max: -1},
			{Name: "modifierExtension", Types: []string{"Extension"}, Min: 0, Max: -1},
		},
	}
	reg.registerComplex(domainResource, false)

	patient := &Complex{
		Name: "Patient",
		Base: "DomainResource",
		Fields: []FieldDescriptor{
			{Name: "identifier", Types: []string{"Identifier"}, Min: 0, Max: -1},
			{Name: "active", Types: []string{"boolean"}, Min: 0, Max: 1, HasExtensionCarrier: true},
			{Name: "name", Types: []string{"HumanName"}, Min: 0, Max: -1},
			{Name: "birthDate", Types: []string{"date"}, Min: 0, Max: 1, HasExtensionCarrier: true},
		},
	}
	reg.registerComplex(patient, true)

	observationComponent := &Complex{
		Name: "Observation.component",
		Base: "BackboneElement",
		Fields: []FieldDescriptor{
			{Name: "code", Types: []string{"CodeableConcept"}, Min: 1, Max: 1},
			{Name: "value", Types: []string{
				"Quantity", "CodeableConcept", "string", "boolean", "integer",
				"Range", "Ratio", "SampledData", "time", "dateTime", "Period",
			}, Min: 0, Max: 1},
			{Name: "dataAbsentReason", Types: []string{"CodeableConcept"}, Min: 0, Max: 1},
		},
	}
	reg.registerComplex(observationComponent, false)

	observation := &Complex{
		Name: "Observation",
		Base: "DomainResource",
		Fields: []FieldDescriptor{
			{Name: "identifier", Types: []string{"Identifier"}, Min: 0, Max: -1},
			{Name: "status", Types: []string{"code"}, Min: 1, Max: 1, HasExtensionCarrier: true},
			{Name: "code", Types: []string{"CodeableConcept"}, Min: 1, Max: 1},
			{Name: "subject", Types: []string{"Reference"}, Min: 0, Max: 1},
			{Name: "value", Types: []string{
				"Quantity", "CodeableConcept", "string", "boolean", "integer",
				"Range", "Ratio", "SampledData", "time", "dateTime", "Period",
			}, Min: 0, Max: 1},
			{Name: "component", Types: []string{"Observation.component"}, Min: 0, Max: -1},
		},
	}
	reg.registerComplex(observation, true)
}
