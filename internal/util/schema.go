package util

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"

	"github.com/invopop/jsonschema"
)

// ValidationError represents parameter validation errors with detailed information.
type ValidationError struct {
	Field   string `json:"field"`   // Field that failed validation
	Value   any    `json:"value"`   // Value that was provided
	Message string `json:"message"` // Human-readable error message
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation error: " + e.Message
	}
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// SchemaFor reflects a JSON schema object from the Go type of v. Struct
// fields are read through their json and jsonschema tags; fields without
// omitempty are required.
func SchemaFor(v any) (map[string]any, error) {
	r := &jsonschema.Reflector{
		DoNotReference:            true,
		ExpandedStruct:            true,
		AllowAdditionalProperties: true,
	}

	raw, err := json.Marshal(r.Reflect(v))
	if err != nil {
		return nil, err
	}

	var schema map[string]any
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil, err
	}

	delete(schema, "$schema")
	delete(schema, "$id")

	if _, ok := schema["properties"]; !ok {
		schema["properties"] = map[string]any{}
	}

	return schema, nil
}

// CheckSchema reports whether schema is a usable argument schema: an object
// whose properties are schemas and whose required names are declared.
func CheckSchema(schema map[string]any) error {
	if schema == nil {
		return &ValidationError{Message: "schema is nil"}
	}

	if t, ok := schema["type"]; ok && t != "object" {
		return &ValidationError{Field: "type", Value: t, Message: "top level type must be object"}
	}

	var properties map[string]any
	if p, ok := schema["properties"]; ok {
		properties, ok = p.(map[string]any)
		if !ok {
			return &ValidationError{Field: "properties", Value: p, Message: "properties must be an object"}
		}
		for name, prop := range properties {
			if _, ok := prop.(map[string]any); !ok {
				return &ValidationError{Field: name, Value: prop, Message: "property schema must be an object"}
			}
		}
	}

	names, ok := RequiredFields(schema)
	if !ok {
		return &ValidationError{Field: "required", Value: schema["required"], Message: "required must be a list of strings"}
	}
	for _, name := range names {
		if _, declared := properties[name]; !declared {
			return &ValidationError{Field: name, Message: "required field is not declared in properties"}
		}
	}

	return nil
}

// RequiredFields returns the schema's required names. Both []string and the
// []any produced by JSON decoding are accepted; ok is false for other shapes.
func RequiredFields(schema map[string]any) ([]string, bool) {
	switch req := schema["required"].(type) {
	case nil:
		return nil, true
	case []string:
		return req, true
	case []any:
		names := make([]string, 0, len(req))
		for _, r := range req {
			s, ok := r.(string)
			if !ok {
				return nil, false
			}
			names = append(names, s)
		}
		return names, true
	default:
		return nil, false
	}
}

// ValidateParameters validates decoded arguments against a JSON schema
// object. Extra fields are allowed; nested objects and array items are
// checked recursively.
func ValidateParameters(params map[string]any, schema map[string]any) error {
	return validateObject("", params, schema)
}

func validateObject(prefix string, params map[string]any, schema map[string]any) error {
	required, _ := RequiredFields(schema)
	for _, name := range required {
		if _, exists := params[name]; !exists {
			return &ValidationError{
				Field:   join(prefix, name),
				Message: "required field is missing",
			}
		}
	}

	properties, _ := schema["properties"].(map[string]any)

	// Sorted for deterministic error reporting.
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		propMap, ok := properties[name].(map[string]any)
		if !ok {
			continue
		}
		if err := validateValue(join(prefix, name), params[name], propMap); err != nil {
			return err
		}
	}

	return nil
}

func validateValue(field string, value any, schema map[string]any) error {
	expectedType, _ := schema["type"].(string)
	if !isValidType(value, expectedType) {
		return &ValidationError{
			Field:   field,
			Value:   value,
			Message: fmt.Sprintf("expected type %s, got %T", expectedType, value),
		}
	}

	if enum, ok := schema["enum"].([]any); ok && value != nil && !inEnum(value, enum) {
		return &ValidationError{
			Field:   field,
			Value:   value,
			Message: fmt.Sprintf("value must be one of %v", enum),
		}
	}

	switch v := value.(type) {
	case map[string]any:
		if _, hasProps := schema["properties"]; hasProps {
			return validateObject(field, v, schema)
		}
	case []any:
		if items, ok := schema["items"].(map[string]any); ok {
			for i, item := range v {
				if err := validateValue(fmt.Sprintf("%s[%d]", field, i), item, items); err != nil {
					return err
				}
			}
		}
	}

	return nil
}

func inEnum(value any, enum []any) bool {
	for _, e := range enum {
		if reflect.DeepEqual(e, value) {
			return true
		}
		if ef, ok := toFloat(e); ok {
			if vf, ok := toFloat(value); ok && ef == vf {
				return true
			}
		}
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func join(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

// isValidType checks if a value is valid according to the expected JSON schema type.
func isValidType(value any, expectedType string) bool {
	if value == nil {
		return true // nil is valid for any type
	}

	switch expectedType {
	case "string":
		_, ok := value.(string)
		return ok
	case "integer":
		switch v := value.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			return true
		case float64: // JSON unmarshaling often produces float64 for numbers
			return v == float64(int64(v))
		}
		return false
	case "number":
		switch value.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64,
			float32, float64:
			return true
		}
		return false
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "array":
		_, ok := value.([]any)
		return ok
	case "object":
		_, ok := value.(map[string]any)
		return ok
	default:
		return true // Unknown types are assumed valid
	}
}
