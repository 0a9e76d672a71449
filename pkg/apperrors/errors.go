package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrInvalidInput    = errors.New("invalid input")
	ErrNotRollbackable = errors.New("deployment cannot be rolled back")

	// Both wrap ErrNotRollbackable so callers matching on it catch them too.
	ErrAlreadyRolledBack = fmt.Errorf("%w: already rolled back", ErrNotRollbackable)
	ErrRollbackInFlight  = fmt.Errorf("%w: rollback already in progress", ErrNotRollbackable)
)
