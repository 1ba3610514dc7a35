package models

import "time"

// Calendar colors per session status. The client renders these directly.
const (
	ColorPlanned    = "#3788d8"
	ColorInProgress = "#f59e0b"
	ColorCompleted  = "#10b981"
)

// CalendarEntry is the calendar-shaped projection of a session.
type CalendarEntry struct {
	SessionID string    `json:"sessionId"`
	Title     string    `json:"title"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Color     string    `json:"color"`
	Status    string    `json:"status"`
}

// CalendarEntryFor derives the calendar entry for a session, or nil when the
// session has no temporal anchor to place it with (e.g. planned with no date).
func CalendarEntryFor(s *WorkoutSession) *CalendarEntry {
	var start time.Time
	switch s.Status {
	case StatusPlanned:
		if s.ScheduledDate == nil {
			return nil
		}
		start = *s.ScheduledDate
	case StatusInProgress:
		if s.StartedAt == nil {
			return nil
		}
		start = *s.StartedAt
	case StatusCompleted:
		if s.CompletedDate == nil {
			return nil
		}
		start = *s.CompletedDate
	default:
		return nil
	}

	minutes := s.EstimatedMinutes
	if minutes <= 0 {
		minutes = 60
	}

	return &CalendarEntry{
		SessionID: s.ID.String(),
		Title:     s.WorkoutName,
		Start:     start,
		End:       start.Add(time.Duration(minutes) * time.Minute),
		Color:     StatusColor(s.Status),
		Status:    string(s.Status),
	}
}

// StatusColor maps a session status to its calendar color.
func StatusColor(status SessionStatus) string {
	switch status {
	case StatusInProgress:
		return ColorInProgress
	case StatusCompleted:
		return ColorCompleted
	default:
		return ColorPlanned
	}
}
