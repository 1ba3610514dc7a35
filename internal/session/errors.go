package session

import (
	"fmt"

	"github.com/meltforce/liftplan/internal/models"
)

// ValidationError reports a malformed or missing operation payload.
// Rejected before any persistence attempt.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return "validation: " + e.Msg }

// NotFoundError reports an absent session or template.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// InvalidStateError reports a lifecycle transition attempted from the wrong
// state, e.g. cancel on a session that is not in progress.
type InvalidStateError struct {
	Op     string
	Status models.SessionStatus
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s session in status %q", e.Op, e.Status)
}

func errValidation(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}
