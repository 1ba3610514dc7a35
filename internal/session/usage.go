package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// UsageTracker keeps a template's timesUsed and lastUsedAt consistent with
// its sessions: timesUsed counts sessions that reached in-progress or
// completed and still exist un-cancelled, lastUsedAt is the max completedDate
// among the template's currently-existing completed sessions.
type UsageTracker struct {
	sessions  Store
	templates TemplateStore
}

// NewUsageTracker creates a tracker over the given stores.
func NewUsageTracker(sessions Store, templates TemplateStore) *UsageTracker {
	return &UsageTracker{sessions: sessions, templates: templates}
}

// OnStart records a session start: timesUsed+1, lastUsedAt=now.
// A missing template (deleted after planning) is not an error.
func (t *UsageTracker) OnStart(ctx context.Context, userID int, workoutID uuid.UUID, now time.Time) error {
	tpl, err := t.templates.GetTemplate(ctx, userID, workoutID)
	if err != nil {
		return fmt.Errorf("loading template: %w", err)
	}
	if tpl == nil {
		return nil
	}
	return t.templates.SetTemplateUsage(ctx, userID, workoutID, tpl.TimesUsed+1, &now)
}

// OnRelease records a started session leaving the counted set (cancel or
// delete): timesUsed-1 floored at 0, lastUsedAt recomputed from the
// template's remaining completed sessions. Must run after the session
// mutation has been persisted so the recompute sees the post-mutation state.
func (t *UsageTracker) OnRelease(ctx context.Context, userID int, workoutID uuid.UUID) error {
	tpl, err := t.templates.GetTemplate(ctx, userID, workoutID)
	if err != nil {
		return fmt.Errorf("loading template: %w", err)
	}
	if tpl == nil {
		return nil
	}

	timesUsed := tpl.TimesUsed - 1
	if timesUsed < 0 {
		timesUsed = 0
	}

	lastUsed, err := t.sessions.LatestCompletedDate(ctx, userID, workoutID)
	if err != nil {
		return fmt.Errorf("recomputing last used: %w", err)
	}

	return t.templates.SetTemplateUsage(ctx, userID, workoutID, timesUsed, lastUsed)
}
