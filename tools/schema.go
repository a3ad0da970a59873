package tools

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

var reflector = jsonschema.Reflector{
	RequiredFromJSONSchemaTags: true,
	ExpandedStruct:             true,
	AllowAdditionalProperties:  true,
	DoNotReference:             true,
}

// SchemaFor reflects T's struct tags into the map form providers expect in
// a tool definition.
func SchemaFor[T any]() map[string]any {
	var zero T
	s := reflector.Reflect(&zero)
	return schemaToMap(s)
}

func schemaToMap(s *jsonschema.Schema) map[string]any {
	data, err := json.Marshal(s)
	if err != nil {
		return map[string]any{"type": "object"}
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]any{"type": "object"}
	}
	delete(out, "$schema")
	return out
}
