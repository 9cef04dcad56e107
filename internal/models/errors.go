// internal/models/errors.go
package models

import "errors"

// ErrNotFound is returned when a generation record does not exist or has
// already been soft-deleted.
var ErrNotFound = errors.New("generation record not found")
