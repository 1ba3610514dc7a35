package session

import (
	"github.com/google/uuid"

	"github.com/meltforce/liftplan/internal/models"
)

// EventType identifies a completed lifecycle transition.
type EventType string

const (
	SessionPlanned   EventType = "session.planned"
	SessionStarted   EventType = "session.started"
	SessionSaved     EventType = "session.saved"
	SessionFinished  EventType = "session.finished"
	SessionCancelled EventType = "session.cancelled"
	SessionDeleted   EventType = "session.deleted"
)

// Event is emitted by the engine after a transition has been persisted.
// Session is nil for SessionDeleted.
type Event struct {
	Type      EventType
	SessionID uuid.UUID
	Session   *models.WorkoutSession
}

// Observer receives engine events. Observers run synchronously after the
// authoritative write; they must not block.
type Observer func(Event)
