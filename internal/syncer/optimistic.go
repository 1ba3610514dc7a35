package syncer

import (
	"github.com/google/uuid"

	"github.com/meltforce/liftplan/internal/models"
	"github.com/meltforce/liftplan/internal/session"
	"github.com/meltforce/liftplan/internal/storage"
)

// applyFunc transforms one cached projection value to the predicted
// post-mutation state. It must return a new value and leave the input
// untouched, so a later rollback can restore the captured original verbatim.
type applyFunc func(sig QuerySignature, value any, ev session.Event) any

// optimisticRules maps each engine event to its projection transform. The
// dashboard never appears here: its aggregates are too expensive to predict
// client-side, so it is only ever marked stale.
var optimisticRules = map[session.EventType]applyFunc{
	session.SessionPlanned:   applyUpsert,
	session.SessionStarted:   applyUpsert,
	session.SessionSaved:     applyUpsert,
	session.SessionFinished:  applyUpsert,
	session.SessionCancelled: applyUpsert,
	session.SessionDeleted:   applyRemove,
}

func applyUpsert(sig QuerySignature, value any, ev session.Event) any {
	switch sig.View {
	case ViewList:
		if page, ok := value.(*storage.SessionPage); ok {
			return upsertListPage(sig, page, ev.Session)
		}
	case ViewCalendar:
		if entries, ok := value.([]*models.CalendarEntry); ok {
			return upsertCalendar(sig, entries, ev.Session)
		}
	}
	return value
}

func applyRemove(sig QuerySignature, value any, ev session.Event) any {
	switch sig.View {
	case ViewList:
		if page, ok := value.(*storage.SessionPage); ok {
			return removeFromListPage(page, ev.SessionID.String())
		}
	case ViewCalendar:
		if entries, ok := value.([]*models.CalendarEntry); ok {
			return removeCalendarEntry(entries, ev.SessionID.String())
		}
	}
	return value
}

// matchesFilter reports whether a session belongs in a filtered list variant.
// The date filter is not re-evaluated client-side; the entry stays until the
// post-commit refetch settles it.
func matchesFilter(sig QuerySignature, s *models.WorkoutSession) bool {
	if sig.Status != "" && s.Status != sig.Status {
		return false
	}
	if sig.WorkoutID != uuid.Nil && sig.WorkoutID != s.WorkoutID {
		return false
	}
	return true
}

func upsertListPage(sig QuerySignature, page *storage.SessionPage, s *models.WorkoutSession) *storage.SessionPage {
	out := *page
	out.Items = make([]*models.WorkoutSession, 0, len(page.Items)+1)

	found := false
	for _, item := range page.Items {
		if item.ID == s.ID {
			found = true
			adjustCounts(&out.Counts, item.Status, -1)
			if matchesFilter(sig, s) {
				out.Items = append(out.Items, s.Clone())
				adjustCounts(&out.Counts, s.Status, +1)
			} else {
				out.Total--
			}
			continue
		}
		out.Items = append(out.Items, item)
	}

	if !found && matchesFilter(sig, s) && sig.Page <= 1 {
		out.Items = append([]*models.WorkoutSession{s.Clone()}, out.Items...)
		adjustCounts(&out.Counts, s.Status, +1)
		out.Total++
	}

	return &out
}

func removeFromListPage(page *storage.SessionPage, id string) *storage.SessionPage {
	out := *page
	out.Items = make([]*models.WorkoutSession, 0, len(page.Items))
	for _, item := range page.Items {
		if item.ID.String() == id {
			adjustCounts(&out.Counts, item.Status, -1)
			out.Total--
			continue
		}
		out.Items = append(out.Items, item)
	}
	return &out
}

func upsertCalendar(sig QuerySignature, entries []*models.CalendarEntry, s *models.WorkoutSession) []*models.CalendarEntry {
	out := make([]*models.CalendarEntry, 0, len(entries)+1)
	for _, e := range entries {
		if e.SessionID == s.ID.String() {
			continue
		}
		out = append(out, e)
	}
	if sig.Status == "" || s.Status == sig.Status {
		if entry := models.CalendarEntryFor(s); entry != nil {
			out = append(out, entry)
		}
	}
	return out
}

func removeCalendarEntry(entries []*models.CalendarEntry, id string) []*models.CalendarEntry {
	out := make([]*models.CalendarEntry, 0, len(entries))
	for _, e := range entries {
		if e.SessionID == id {
			continue
		}
		out = append(out, e)
	}
	return out
}

func adjustCounts(c *storage.StatusCounts, status models.SessionStatus, delta int) {
	switch status {
	case models.StatusPlanned:
		c.Planned += delta
	case models.StatusInProgress:
		c.InProgress += delta
	case models.StatusCompleted:
		c.Completed += delta
	}
	c.Total += delta
}
