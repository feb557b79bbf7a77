package repository

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when the requested row does not exist or is no
// longer visible (soft-deleted connection, missing job).
var ErrNotFound = errors.New("record not found")

// ConflictError rejects a job trigger while another job for the same
// connection is still pending or running.
type ConflictError struct {
	ConnectionID  string
	ExistingJobID string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("connection %s already has active job %s", e.ConnectionID, e.ExistingJobID)
}

// IsConflict reports whether err is a duplicate-trigger rejection.
func IsConflict(err error) bool {
	var conflict *ConflictError
	return errors.As(err, &conflict)
}
