// internal/planner/schema.go
package planner

import "routeforge/internal/common/validation"

// envelopeSchema gates the planner response shape before any field is read.
// The route body itself is deliberately loose here; it gets full semantic
// validation downstream.
var envelopeSchema = validation.JSONSchema{
	Type: "object",
	Properties: map[string]validation.Property{
		"status": {
			Type: "string",
			Enum: []string{"ok", "error"},
		},
		"message": {
			Type: "string",
		},
		"route": {
			Type: "object",
		},
	},
	Required:             []string{"status"},
	AdditionalProperties: true,
}
