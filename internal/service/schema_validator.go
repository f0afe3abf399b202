package service

import (
	"encoding/json"
	"sort"

	"github.com/xeipuuv/gojsonschema"

	"github.com/docpipeline/docpipeline/internal/pipelineerr"
)

// SchemaViolation is one validation failure, in the engine's
// `$.<segment>.<segment>…` path notation.
type SchemaViolation struct {
	JSONPath string
	Message  string
}

// ValidationResult is the outcome of validating one JSON document
// against a Schema.
type ValidationResult struct {
	IsValid bool
	Errors  []SchemaViolation
}

// SchemaValidator validates arbitrary JSON against a Draft-07 schema,
// filling in top-level property defaults before validation runs —
// gojsonschema enforces structure but does not mutate the instance, so
// default-filling is a deliberate pre-pass layered on top of it.
type SchemaValidator struct{}

// NewSchemaValidator builds a SchemaValidator.
func NewSchemaValidator() *SchemaValidator {
	return &SchemaValidator{}
}

// Validate parses jsonText, fills in any missing top-level properties
// that carry a schema default, and validates the result against schema.
func (v *SchemaValidator) Validate(schema *Schema, jsonText string) (*ValidationResult, error) {
	var instance interface{}
	if err := json.Unmarshal([]byte(jsonText), &instance); err != nil {
		return nil, pipelineerr.Wrap(pipelineerr.KindSchemaValidation, "schema validator: instance is not valid json", err)
	}

	if obj, ok := instance.(map[string]interface{}); ok {
		fillDefaults(obj, schema.Decoded)
	}

	schemaLoader := gojsonschema.NewBytesLoader(schema.Raw)
	documentLoader := gojsonschema.NewGoLoader(instance)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return nil, pipelineerr.Wrap(pipelineerr.KindSchemaValidation, "schema validator: validate", err)
	}

	violations := make([]SchemaViolation, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		violations = append(violations, SchemaViolation{
			JSONPath: toJSONPath(e.Field()),
			Message:  e.Description(),
		})
	}
	sort.Slice(violations, func(i, j int) bool {
		return violationString(violations[i]) < violationString(violations[j])
	})

	return &ValidationResult{
		IsValid: result.Valid(),
		Errors:  violations,
	}, nil
}

func violationString(v SchemaViolation) string {
	return v.JSONPath + ": " + v.Message
}

// toJSONPath converts gojsonschema's dotted field path ("(root)",
// "name", "items.0.amount") into the engine's "$.<segment>..." form.
func toJSONPath(field string) string {
	if field == "" || field == "(root)" {
		return "$"
	}
	return "$." + field
}

// fillDefaults fills in any property of obj that is absent but whose
// subschema under schema["properties"] declares a "default". It does not
// recurse into nested objects or arrays — defaults apply only to the
// object currently being validated, matching the engine's documented
// augmentation.
func fillDefaults(obj map[string]interface{}, schema map[string]interface{}) {
	props, ok := schema["properties"].(map[string]interface{})
	if !ok {
		return
	}
	for name, rawSub := range props {
		if _, present := obj[name]; present {
			continue
		}
		sub, ok := rawSub.(map[string]interface{})
		if !ok {
			continue
		}
		if def, hasDefault := sub["default"]; hasDefault {
			obj[name] = def
		}
	}
}
