package structuredefinition

import (
	"encoding/json"
	"strings"
)

// UnmarshalJSON decodes an ElementDefinition, additionally scanning for the
// polymorphic `fixed<Type>`/`pattern<Type>` wire members (§6.2) that a
// struct tag can't express since <Type> varies per element.
func (e *ElementDefinition) UnmarshalJSON(data []byte) error {
	type alias ElementDefinition
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*e = ElementDefinition(a)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for key, value := range raw {
		switch {
		case key != "fixed" && strings.HasPrefix(key, "fixed"):
			if e.Fixed == nil {
				e.Fixed = map[string]any{}
			}
			var v any
			if err := json.Unmarshal(value, &v); err != nil {
				return err
			}
			e.Fixed[strings.TrimPrefix(key, "fixed")] = v
		case key != "pattern" && strings.HasPrefix(key, "pattern"):
			if e.Pattern == nil {
				e.Pattern = map[string]any{}
			}
			var v any
			if err := json.Unmarshal(value, &v); err != nil {
				return err
			}
			e.Pattern[strings.TrimPrefix(key, "pattern")] = v
		}
	}
	return nil
}
