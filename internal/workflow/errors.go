package workflow

import "github.com/pkg/errors"

// Workflow error taxonomy. Callers match with errors.Is and map to
// transport-level codes; conflict is distinct from invalid transition so
// clients can prompt a refresh instead of treating the race as a logic error.
var (
	ErrUnauthorized      = errors.New("actor is not the required approver for this event and stage")
	ErrInvalidTransition = errors.New("action is not defined for the event's current state")
	ErrValidation        = errors.New("a non-empty reason or response is required")
	ErrNotFound          = errors.New("record not found")
	ErrConflict          = errors.New("event state changed, please refresh")
)
