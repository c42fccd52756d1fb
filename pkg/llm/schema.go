package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/swaggest/jsonschema-go"
	"github.com/xeipuuv/gojsonschema"
)

// SchemaFromStruct generates a JSON Schema from a Go struct using the swaggest/jsonschema-go library
//
// Example:
//
//	type Person struct {
//	    Name string `json:"name" required:"true" description:"Full name"`
//	    Age  int    `json:"age" minimum:"0" maximum:"150"`
//	}
//	schema, err := SchemaFromStruct(Person{})
func SchemaFromStruct(structType any) (any, error) {
	reflector := jsonschema.Reflector{}

	schema, err := reflector.Reflect(structType)
	if err != nil {
		return nil, fmt.Errorf("failed to reflect struct to JSON schema: %w", err)
	}

	return schema, nil
}

// SchemaFromStructAsMap generates a JSON Schema as map[string]any from a Go struct
// This is useful when you need the schema as a generic map for API compatibility
func SchemaFromStructAsMap(structType any) (map[string]any, error) {
	schema, err := SchemaFromStruct(structType)
	if err != nil {
		return nil, err
	}

	// Convert to JSON and back to get a map[string]any
	jsonBytes, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema to JSON: %w", err)
	}

	var schemaMap map[string]any
	if err := json.Unmarshal(jsonBytes, &schemaMap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schema JSON to map: %w", err)
	}

	return schemaMap, nil
}

// SchemaValidationError lists the violations found by ValidateAgainstSchema
type SchemaValidationError struct {
	Violations []string
}

func (e *SchemaValidationError) Error() string {
	return "response does not match schema: " + strings.Join(e.Violations, "; ")
}

// ValidateAgainstSchema validates JSON data against a JSON Schema.
// The schema may be any value that marshals to a JSON Schema document
// (a map, a swaggest schema, or raw JSON bytes).
// Schema violations are reported as a *SchemaValidationError; a nil schema
// only checks that data is well-formed JSON.
func ValidateAgainstSchema(data []byte, schema any) error {
	var parsed any
	if err := json.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if schema == nil {
		return nil
	}

	var schemaLoader gojsonschema.JSONLoader
	switch s := schema.(type) {
	case []byte:
		schemaLoader = gojsonschema.NewBytesLoader(s)
	case string:
		schemaLoader = gojsonschema.NewStringLoader(s)
	default:
		raw, err := json.Marshal(schema)
		if err != nil {
			return fmt.Errorf("failed to marshal schema: %w", err)
		}
		schemaLoader = gojsonschema.NewBytesLoader(raw)
	}

	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("failed to validate against schema: %w", err)
	}
	if result.Valid() {
		return nil
	}

	violations := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		violations = append(violations, desc.String())
	}
	return &SchemaValidationError{Violations: violations}
}

// NewJSONSchemaResponseFormat creates a ResponseFormat with JSON Schema
func NewJSONSchemaResponseFormat(name, description string, schema any) *ResponseFormat {
	return &ResponseFormat{
		Type: ResponseFormatJSONSchema,
		JSONSchema: &JSONSchema{
			Name:        name,
			Description: description,
			Schema:      schema,
		},
	}
}

// NewJSONSchemaResponseFormatFromStruct creates a ResponseFormat with JSON Schema generated from a Go struct
func NewJSONSchemaResponseFormatFromStruct(name, description string, structType any) (*ResponseFormat, error) {
	schema, err := SchemaFromStructAsMap(structType)
	if err != nil {
		return nil, fmt.Errorf("failed to generate schema from struct: %w", err)
	}

	return NewJSONSchemaResponseFormat(name, description, schema), nil
}

// NewJSONSchemaResponseFormatStrict creates a ResponseFormat with strict JSON Schema validation
func NewJSONSchemaResponseFormatStrict(name, description string, schema any) *ResponseFormat {
	strict := true
	rf := NewJSONSchemaResponseFormat(name, description, schema)
	rf.JSONSchema.Strict = &strict
	return rf
}

// NewJSONResponseFormat creates a ResponseFormat for basic JSON object output (no schema)
func NewJSONResponseFormat() *ResponseFormat {
	return &ResponseFormat{
		Type: ResponseFormatJSON,
	}
}
