// internal/generation/errors.go
package generation

import (
	"fmt"

	"routeforge/internal/models"
)

// ConflictError reports that a submission was refused because the user
// already has a generation in flight. The blocking record is named so the
// caller can surface or cancel it.
type ConflictError struct {
	UserID         string
	BlockingID     string
	BlockingStatus models.Status
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("user %s already has an active generation %s (status %s)",
		e.UserID, e.BlockingID, e.BlockingStatus)
}

// TransitionError reports a lifecycle operation applied to a record whose
// current status does not allow it.
type TransitionError struct {
	RecordID string
	Op       string
	Status   models.Status
}

func (e *TransitionError) Error() string {
	if e.Op == "delete" {
		return fmt.Sprintf("cannot delete non-terminal record %s (status %s)", e.RecordID, e.Status)
	}
	return fmt.Sprintf("cannot %s record %s in status %s", e.Op, e.RecordID, e.Status)
}
