package repository

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestIsConflict(t *testing.T) {
	conflict := &ConflictError{ConnectionID: "conn-1", ExistingJobID: "job-9"}
	assert.True(t, IsConflict(conflict))
	assert.True(t, IsConflict(errors.Wrap(conflict, "trigger job")), "wrapped conflicts still match")
	assert.False(t, IsConflict(ErrNotFound))
	assert.False(t, IsConflict(nil))

	assert.Contains(t, conflict.Error(), "conn-1")
	assert.Contains(t, conflict.Error(), "job-9")
}
