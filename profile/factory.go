package profile

import (
	"fmt"
	"sort"
	"strings"

	"github.com/iancoleman/strcase"

	"github.com/fhircraft-go/fhirprofile/fhirtype"
	"github.com/fhircraft-go/fhirprofile/structuredefinition"
)

// Compile builds a Model from a parsed StructureDefinition (C7), grounded on
// original_source/fhircraft/fhir/resources/factory.py's
// construct_resource_model / _compile_complex_element_fields.
//
// compileProfile resolves a canonical URL to its own compiled Model, used
// both for Extension-typed fields that declare a profile and by
// compileConstraints for the same purpose; it lets Compile recurse through a
// caller-owned profile cache without profile importing that cache directly.
func Compile(sd *structuredefinition.StructureDefinition, reg *fhirtype.Registry, compileProfile func(canonicalURL string) (*Model, error)) (*Model, error) {
	if sd.Snapshot == nil || len(sd.Snapshot.Element) == 0 {
		return nil, fmt.Errorf("profile: structure definition %q has no snapshot elements", sd.URL)
	}

	tree := structuredefinition.BuildTree(sd.Snapshot.Element)
	root, ok := tree.Children[sd.Type]
	if !ok {
		return nil, fmt.Errorf("profile: structure definition %q has no root element for type %q", sd.URL, sd.Type)
	}

	model, err := compileComplex(sd.Name, sd.Type, lastPathSegment(sd.BaseDefinition), root, reg, compileProfile)
	if err != nil {
		return nil, err
	}
	model.CanonicalURL = sd.URL
	if root.Element != nil {
		model.Description = root.Element.Short
	}

	slicing, constraints, err := compileConstraints(sd.Snapshot.Element, compileProfile)
	if err != nil {
		return nil, err
	}
	model.Slicing = slicing
	model.Constraints = constraints

	return model, nil
}

// compileComplex compiles one complex type's fields — the resource root, or
// a nested BackboneElement — from its tree node's children. Each child key
// is a compiled FieldSpec; a child typed "BackboneElement" recurses into a
// freshly compiled nested Model rather than resolving through the fhirtype
// registry, mirroring the Python original's per-profile nested create_model
// call for anonymous backbone structures.
func compileComplex(name, typeName, baseTypeName string, node *structuredefinition.Node, reg *fhirtype.Registry, compileProfile func(string) (*Model, error)) (*Model, error) {
	m := newModel(name, typeName, baseTypeName, reg)

	keys := make([]string, 0, len(node.Children))
	for k := range node.Children {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		child := node.Children[key]
		if child.Element == nil {
			continue
		}
		specs, err := compileField(name, key, child, reg, compileProfile)
		if err != nil {
			return nil, err
		}
		for _, spec := range specs {
			m.addField(spec)
		}
	}

	return m, nil
}

// compileField compiles the one-or-many FieldSpecs a single element yields:
// a plain field and its possible nested Model, or — for a `<base>[x]` type
// choice — the concrete `<base><Type>` fields plus the virtual choice-base
// accessor, mirroring _compile_complex_element_fields's per-field branch.
func compileField(ownerName, pathSegment string, node *structuredefinition.Node, reg *fhirtype.Registry, compileProfile func(string) (*Model, error)) ([]FieldSpec, error) {
	elem := node.Element
	min := 0
	if elem.Min != nil {
		min = *elem.Min
	}
	max, err := elem.MaxCardinality()
	if err != nil {
		return nil, err
	}

	baseName := strings.TrimSuffix(pathSegment, "[x]")
	isChoice := len(elem.Type) > 1

	if !isChoice {
		typeCode := ""
		if len(elem.Type) > 0 {
			typeCode = elem.Type[0].Code
		}
		spec := FieldSpec{
			Name:        baseName,
			Min:         min,
			Max:         max,
			Description: elem.Short,
			Types:       []string{typeCode},
		}
		if typeCode == "BackboneElement" {
			nested, err := compileComplex(ownerName+strcase.ToCamel(baseName), "BackboneElement", "BackboneElement", node, reg, compileProfile)
			if err != nil {
				return nil, err
			}
			spec.Nested = nested
		} else {
			spec.HasExtensionCarrier = isPrimitiveType(typeCode, reg)
		}
		return []FieldSpec{spec}, nil
	}

	types := make([]string, 0, len(elem.Type))
	choiceFields := make([]string, 0, len(elem.Type))
	specs := make([]FieldSpec, 0, len(elem.Type)+1)
	for _, t := range elem.Type {
		types = append(types, t.Code)
		concreteName := baseName + strcase.ToCamel(t.Code)
		choiceFields = append(choiceFields, concreteName)
		specs = append(specs, FieldSpec{
			Name:                concreteName,
			Min:                 0,
			Max:                 1,
			Description:         elem.Short,
			Types:               []string{t.Code},
			HasExtensionCarrier: isPrimitiveType(t.Code, reg),
		})
	}
	specs = append(specs, FieldSpec{
		Name:         baseName,
		Min:          min,
		Max:          max,
		Description:  elem.Short,
		Types:        types,
		IsChoiceBase: true,
		ChoiceFields: choiceFields,
	})
	return specs, nil
}

func isPrimitiveType(typeCode string, reg *fhirtype.Registry) bool {
	_, ok := reg.Primitive(typeCode)
	return ok
}

func lastPathSegment(url string) string {
	if url == "" {
		return ""
	}
	i := strings.LastIndexByte(url, '/')
	if i < 0 {
		return url
	}
	return url[i+1:]
}
