// internal/planner/planner.go

// Package planner talks to the external route planning service that turns a
// note into a route document.
package planner

import "context"

// Request identifies the note a route should be planned for.
type Request struct {
	UserID string `json:"userId"`
	NoteID string `json:"noteId"`
}

// Planner produces raw route documents. Implementations verify the response
// envelope only; route semantics are validated by the caller.
type Planner interface {
	Plan(ctx context.Context, req Request) ([]byte, error)
}
