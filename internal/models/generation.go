// internal/models/generation.go
package models

import (
	"time"

	"routeforge/internal/routegeo"
)

// Status enumerates the generation lifecycle states.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// transitions is the closed edge set of the lifecycle machine. Terminal
// states map to an empty set; soft deletion is not a transition and is
// guarded separately by the store.
var transitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusRunning:   true,
		StatusCompleted: true,
		StatusFailed:    true,
		StatusCancelled: true,
	},
	StatusRunning: {
		StatusCompleted: true,
		StatusFailed:    true,
		StatusCancelled: true,
	},
	StatusCompleted: {},
	StatusFailed:    {},
	StatusCancelled: {},
}

// Valid reports whether s is a known lifecycle status.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Terminal reports whether s permits no further transitions.
func (s Status) Terminal() bool {
	next, ok := transitions[s]
	return ok && len(next) == 0
}

// CanTransitionTo reports whether the edge s -> next exists.
func (s Status) CanTransitionTo(next Status) bool {
	return transitions[s][next]
}

// NonTerminalStatuses returns the states a new generation may still move
// out of, in a fixed order.
func NonTerminalStatuses() []Status {
	return []Status{StatusPending, StatusRunning}
}

// TerminalStatuses returns the states that end the lifecycle, in a fixed
// order.
func TerminalStatuses() []Status {
	return []Status{StatusCompleted, StatusFailed, StatusCancelled}
}

// GenerationRecord tracks one route generation request for a note. Version
// numbers are unique per note and assigned at admission; IdempotencyKey is
// unique per user so duplicate submissions replay the original record.
type GenerationRecord struct {
	ID             string             `json:"id"`
	UserID         string             `json:"userId"`
	NoteID         string             `json:"noteId"`
	Version        int                `json:"version"`
	Status         Status             `json:"status"`
	IdempotencyKey string             `json:"idempotencyKey"`
	Payload        *GenerationPayload `json:"payload,omitempty"`
	FailureReason  string             `json:"failureReason,omitempty"`
	CreatedAt      time.Time          `json:"createdAt"`
	UpdatedAt      time.Time          `json:"updatedAt"`
	DeletedAt      *time.Time         `json:"deletedAt,omitempty"`
}

// GenerationPayload is stored only on completed records: the validated
// route plus the derived fields used for display without a full export.
type GenerationPayload struct {
	Route         routegeo.RouteGeo `json:"route"`
	WaypointCount int               `json:"waypointCount"`
	RouteName     string            `json:"routeName"`
}

// NewGenerationPayload derives the display metadata from a validated route.
func NewGenerationPayload(route *routegeo.RouteGeo) *GenerationPayload {
	waypoints := 0
	for _, f := range route.Features {
		if f.Geometry.Type == routegeo.GeometryPoint {
			waypoints++
		}
	}
	return &GenerationPayload{
		Route:         *route,
		WaypointCount: waypoints,
		RouteName:     route.Properties.Title,
	}
}
