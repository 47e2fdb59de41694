package server

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// analyzeSchema validates the body shared by analyze_code,
// generate_refactoring and generate_tests. The code field must be present
// and a string; emptiness is a semantic check left to the coordinator so
// both paths report the same validation error.
const analyzeSchema = `{
	"type": "object",
	"required": ["code"],
	"properties": {
		"code":      {"type": "string"},
		"language":  {"type": "string"},
		"issues":    {"type": "array", "items": {"type": "object"}},
		"functions": {"type": "array", "items": {"type": "object"}}
	},
	"additionalProperties": true
}`

// eventSchemas maps inbound events to their compiled payload schemas.
// Compiled once at package init; the schema source is a constant, so a
// compile failure is a programming error.
var eventSchemas = mustCompileSchemas(map[string]string{
	EventAnalyzeCode: analyzeSchema,
	EventGenRefactor: analyzeSchema,
	EventGenTests:    analyzeSchema,
})

func mustCompileSchemas(sources map[string]string) map[string]*gojsonschema.Schema {
	compiled := make(map[string]*gojsonschema.Schema, len(sources))

	for event, source := range sources {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(source))
		if err != nil {
			panic(fmt.Sprintf("compile %s schema: %v", event, err))
		}

		compiled[event] = schema
	}

	return compiled
}

// validatePayload checks raw against the schema registered for event.
// A nil return means either the payload passed or the event carries no
// schema. Violations are reported as a single combined message.
func validatePayload(event string, raw []byte) error {
	schema, ok := eventSchemas[event]
	if !ok {
		return nil
	}

	if len(raw) == 0 {
		return fmt.Errorf("%s: missing payload", event)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("%s: invalid payload: %w", event, err)
	}

	if result.Valid() {
		return nil
	}

	descriptions := make([]string, 0, len(result.Errors()))
	for _, violation := range result.Errors() {
		descriptions = append(descriptions, violation.String())
	}

	return fmt.Errorf("%s: invalid payload: %s", event, strings.Join(descriptions, "; "))
}
