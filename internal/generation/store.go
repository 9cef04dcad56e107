// internal/generation/store.go

// Package generation owns the lifecycle of route generation records: one
// record per attempt, versioned per note, with all concurrency control
// delegated to the backing store's uniqueness guarantees.
package generation

import (
	"context"

	"routeforge/internal/models"
)

// Store persists generation records and enforces the lifecycle rules.
//
// Admit returns the record holding (userID, idempotencyKey) when one exists,
// with replayed true; otherwise it creates a fresh pending record whose
// version is one above the highest version recorded for the note. A
// *ConflictError is returned when the user already has a pending or running
// generation.
//
// The transition methods succeed only from the statuses the lifecycle
// allows; anything else yields a *TransitionError, and unknown or
// soft-deleted records yield models.ErrNotFound.
//
// ListPending feeds the Runner: the oldest live pending records, up to
// limit. Listing takes no lock, so a listed record may have moved on by the
// time it is processed; consumers resolve that through Begin's guard.
type Store interface {
	Admit(ctx context.Context, userID, noteID, idempotencyKey string) (*models.GenerationRecord, bool, error)
	Get(ctx context.Context, id string) (*models.GenerationRecord, error)
	ListPending(ctx context.Context, limit int) ([]*models.GenerationRecord, error)
	Begin(ctx context.Context, id string) (*models.GenerationRecord, error)
	Complete(ctx context.Context, id string, payload *models.GenerationPayload) (*models.GenerationRecord, error)
	Fail(ctx context.Context, id string, reason string) (*models.GenerationRecord, error)
	Cancel(ctx context.Context, id string) (*models.GenerationRecord, error)
	SoftDelete(ctx context.Context, id string) error
}
