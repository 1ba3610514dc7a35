// Package syncer keeps the client's list, calendar and dashboard projections
// consistent with the session API under optimistic mutations. Every mutating
// call runs the same protocol: capture snapshots of the affected cache
// entries, apply the predicted result, commit the authoritative call, then
// mark everything stale on success or restore the snapshots on failure.
package syncer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/meltforce/liftplan/internal/models"
	"github.com/meltforce/liftplan/internal/session"
	"github.com/meltforce/liftplan/internal/stats"
	"github.com/meltforce/liftplan/internal/storage"
)

// API is the authoritative call surface the synchronizer wraps. *Client
// satisfies it; tests substitute a fake to simulate server failures.
type API interface {
	GetSession(ctx context.Context, id uuid.UUID) (*models.WorkoutSession, error)
	ListSessions(ctx context.Context, f storage.ListFilter) (*storage.SessionPage, error)
	Calendar(ctx context.Context, status models.SessionStatus) ([]*models.CalendarEntry, error)
	Stats(ctx context.Context) (*stats.Summary, error)

	PlanSession(ctx context.Context, workoutID uuid.UUID, scheduledDate *time.Time) (*models.WorkoutSession, error)
	StartSession(ctx context.Context, id uuid.UUID) (*models.WorkoutSession, error)
	SaveProgress(ctx context.Context, id uuid.UUID, exercises []models.SessionExercise, duration string) (*models.WorkoutSession, error)
	CancelSession(ctx context.Context, id uuid.UUID) (*models.WorkoutSession, error)
	UpdateSession(ctx context.Context, id uuid.UUID, scheduledDate *time.Time, exercises []models.SessionExercise) (*models.WorkoutSession, error)
	FinishSession(ctx context.Context, id uuid.UUID, exercises []models.SessionExercise, duration string) (*models.WorkoutSession, error)
	DeleteSession(ctx context.Context, id uuid.UUID) error
}

var _ API = (*Client)(nil)

// Synchronizer wraps every API call with projection bookkeeping.
type Synchronizer struct {
	api    API
	cache  *CacheStore
	backup *BackupStore
	log    *slog.Logger

	mu       sync.Mutex
	inflight map[string]*inflightRead
}

type inflightRead struct {
	cancel context.CancelFunc
}

// New creates a Synchronizer over the given API and cache. backup may be nil
// when offline backup is disabled.
func New(api API, cache *CacheStore, backup *BackupStore, log *slog.Logger) *Synchronizer {
	return &Synchronizer{
		api:      api,
		cache:    cache,
		backup:   backup,
		log:      log,
		inflight: make(map[string]*inflightRead),
	}
}

// --- reads ---

// Sessions returns the list projection for the given filter, from cache when
// fresh, refetching otherwise.
func (s *Synchronizer) Sessions(ctx context.Context, f storage.ListFilter) (*storage.SessionPage, error) {
	sig := QuerySignature{
		View:       ViewList,
		Status:     f.Status,
		DateFilter: f.DateFilter,
		WorkoutID:  f.WorkoutID,
		Page:       f.Page,
		Limit:      f.Limit,
	}
	if v, ok := s.cache.Get(sig); ok {
		return v.(*storage.SessionPage), nil
	}

	ctx, done := s.trackRead(ctx, sig)
	defer done()

	page, err := s.api.ListSessions(ctx, f)
	if err != nil {
		return nil, err
	}
	// A read cancelled by a newer mutation must not overwrite the cache:
	// its result may predate the optimistic value or a rollback.
	if ctx.Err() == nil {
		s.cache.Set(sig, page)
	}
	return page, nil
}

// CalendarView returns the calendar projection, optionally status-filtered.
func (s *Synchronizer) CalendarView(ctx context.Context, status models.SessionStatus) ([]*models.CalendarEntry, error) {
	sig := QuerySignature{View: ViewCalendar, Status: status}
	if v, ok := s.cache.Get(sig); ok {
		return v.([]*models.CalendarEntry), nil
	}

	ctx, done := s.trackRead(ctx, sig)
	defer done()

	entries, err := s.api.Calendar(ctx, status)
	if err != nil {
		return nil, err
	}
	if ctx.Err() == nil {
		s.cache.Set(sig, entries)
	}
	return entries, nil
}

// Dashboard returns the aggregate stats. Dashboard entries are never
// optimistically mutated, only invalidated.
func (s *Synchronizer) Dashboard(ctx context.Context) (*stats.Summary, error) {
	sig := QuerySignature{View: ViewDashboard}
	if v, ok := s.cache.Get(sig); ok {
		return v.(*stats.Summary), nil
	}

	ctx, done := s.trackRead(ctx, sig)
	defer done()

	summary, err := s.api.Stats(ctx)
	if err != nil {
		return nil, err
	}
	if ctx.Err() == nil {
		s.cache.Set(sig, summary)
	}
	return summary, nil
}

// Resume fetches a session for continuing a workout, restoring locally
// backed-up exercise data when it is newer than the server's copy and
// discarding it otherwise.
func (s *Synchronizer) Resume(ctx context.Context, id uuid.UUID) (*models.WorkoutSession, error) {
	sess, err := s.api.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.backup == nil {
		return sess, nil
	}

	b, err := s.backup.Load(id)
	if err != nil {
		s.log.Error("backup load failed", "session_id", id, "error", err)
		return sess, nil
	}
	if b == nil {
		return sess, nil
	}

	if b.SavedAt.After(sess.UpdatedAt) {
		sess.Exercises = b.Exercises
		sess.Duration = b.Duration
	} else if err := s.backup.Delete(id); err != nil {
		s.log.Error("backup discard failed", "session_id", id, "error", err)
	}
	return sess, nil
}

// --- mutations ---

// Plan creates a new session. The list and calendar caches get a placeholder
// until the post-commit refetch replaces it with the server's record.
func (s *Synchronizer) Plan(ctx context.Context, workoutID uuid.UUID, workoutName string, scheduledDate *time.Time) (*models.WorkoutSession, error) {
	now := time.Now()
	scheduled := scheduledDate
	if scheduled == nil {
		scheduled = &now
	}
	placeholder := &models.WorkoutSession{
		ID:            uuid.New(),
		WorkoutID:     workoutID,
		WorkoutName:   workoutName,
		Exercises:     []models.SessionExercise{},
		Status:        models.StatusPlanned,
		ScheduledDate: scheduled,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	return s.mutate(ctx,
		session.Event{Type: session.SessionPlanned, SessionID: placeholder.ID, Session: placeholder},
		func(ctx context.Context) (*models.WorkoutSession, error) {
			return s.api.PlanSession(ctx, workoutID, scheduledDate)
		})
}

// Start transitions cur to in-progress. cur is the record the caller holds;
// the prediction mirrors the server's transition.
func (s *Synchronizer) Start(ctx context.Context, cur *models.WorkoutSession) (*models.WorkoutSession, error) {
	predicted := cur.Clone()
	now := time.Now()
	predicted.Status = models.StatusInProgress
	predicted.StartedAt = &now
	for i := range predicted.Exercises {
		ex := &predicted.Exercises[i]
		sets := make([]models.ActualSet, ex.TargetSets)
		for j := range sets {
			sets[j] = models.ActualSet{Weight: ex.TargetWeight}
		}
		ex.ActualSets = sets
	}

	return s.mutate(ctx,
		session.Event{Type: session.SessionStarted, SessionID: cur.ID, Session: predicted},
		func(ctx context.Context) (*models.WorkoutSession, error) {
			return s.api.StartSession(ctx, cur.ID)
		})
}

// SaveProgress persists the in-flight exercise state. Also writes the local
// offline backup so an interrupted session can resume from it.
func (s *Synchronizer) SaveProgress(ctx context.Context, cur *models.WorkoutSession, exercises []models.SessionExercise, duration string) (*models.WorkoutSession, error) {
	if s.backup != nil {
		if err := s.backup.Save(cur.ID, exercises, duration, time.Now()); err != nil {
			s.log.Error("backup write failed", "session_id", cur.ID, "error", err)
		}
	}

	predicted := cur.Clone()
	predicted.Exercises = models.CloneExercises(exercises)
	predicted.Duration = duration

	return s.mutate(ctx,
		session.Event{Type: session.SessionSaved, SessionID: cur.ID, Session: predicted},
		func(ctx context.Context) (*models.WorkoutSession, error) {
			return s.api.SaveProgress(ctx, cur.ID, exercises, duration)
		})
}

// Finish completes cur with the final exercises and duration, and drops the
// offline backup on success.
func (s *Synchronizer) Finish(ctx context.Context, cur *models.WorkoutSession, exercises []models.SessionExercise, duration string) (*models.WorkoutSession, error) {
	predicted := cur.Clone()
	now := time.Now()
	predicted.Status = models.StatusCompleted
	predicted.CompletedDate = &now
	predicted.Exercises = models.CloneExercises(exercises)
	predicted.Duration = duration

	sess, err := s.mutate(ctx,
		session.Event{Type: session.SessionFinished, SessionID: cur.ID, Session: predicted},
		func(ctx context.Context) (*models.WorkoutSession, error) {
			return s.api.FinishSession(ctx, cur.ID, exercises, duration)
		})
	if err == nil {
		s.dropBackup(cur.ID)
	}
	return sess, err
}

// Cancel reverts cur to planned and drops the offline backup on success.
func (s *Synchronizer) Cancel(ctx context.Context, cur *models.WorkoutSession) (*models.WorkoutSession, error) {
	predicted := cur.Clone()
	predicted.Status = models.StatusPlanned
	predicted.StartedAt = nil
	predicted.CompletedDate = nil
	predicted.Duration = ""
	for i := range predicted.Exercises {
		ex := &predicted.Exercises[i]
		ex.ActualSets = []models.ActualSet{}
		ex.Notes = ""
		ex.Effort = nil
	}

	sess, err := s.mutate(ctx,
		session.Event{Type: session.SessionCancelled, SessionID: cur.ID, Session: predicted},
		func(ctx context.Context) (*models.WorkoutSession, error) {
			return s.api.CancelSession(ctx, cur.ID)
		})
	if err == nil {
		s.dropBackup(cur.ID)
	}
	return sess, err
}

// Update applies field edits to cur (e.g. rescheduling a planned session).
func (s *Synchronizer) Update(ctx context.Context, cur *models.WorkoutSession, scheduledDate *time.Time, exercises []models.SessionExercise) (*models.WorkoutSession, error) {
	predicted := cur.Clone()
	if scheduledDate != nil {
		predicted.ScheduledDate = scheduledDate
	}
	if exercises != nil {
		predicted.Exercises = models.CloneExercises(exercises)
	}

	return s.mutate(ctx,
		session.Event{Type: session.SessionSaved, SessionID: cur.ID, Session: predicted},
		func(ctx context.Context) (*models.WorkoutSession, error) {
			return s.api.UpdateSession(ctx, cur.ID, scheduledDate, exercises)
		})
}

// Delete removes a session from every projection.
func (s *Synchronizer) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := s.mutate(ctx,
		session.Event{Type: session.SessionDeleted, SessionID: id},
		func(ctx context.Context) (*models.WorkoutSession, error) {
			return nil, s.api.DeleteSession(ctx, id)
		})
	if err == nil {
		s.dropBackup(id)
	}
	return err
}

// mutate runs the uniform protocol: cancel in-flight reads, capture
// snapshots, optimistic apply to list/calendar, invalidate dashboard, commit,
// then mark stale on success or restore every snapshot on failure.
func (s *Synchronizer) mutate(ctx context.Context, ev session.Event, commit func(context.Context) (*models.WorkoutSession, error)) (*models.WorkoutSession, error) {
	s.cancelReads()

	affected := func(sig QuerySignature) bool {
		return sig.View == ViewList || sig.View == ViewCalendar
	}
	snaps := s.cache.SnapshotMatching(affected)

	if rule, ok := optimisticRules[ev.Type]; ok {
		for _, snap := range snaps {
			s.cache.Apply(snap.Signature, rule(snap.Signature, snap.Previous, ev))
		}
	}
	s.cache.MarkStale(func(sig QuerySignature) bool { return sig.View == ViewDashboard })

	result, err := commit(ctx)
	if err != nil {
		s.cache.Restore(snaps)
		return nil, err
	}

	s.cache.MarkStale(func(QuerySignature) bool { return true })
	return result, nil
}

// trackRead registers an in-flight read so a subsequent mutation can cancel
// it before capturing snapshots.
func (s *Synchronizer) trackRead(ctx context.Context, sig QuerySignature) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	key := sig.Key()
	entry := &inflightRead{cancel: cancel}

	s.mu.Lock()
	if prev, ok := s.inflight[key]; ok {
		prev.cancel()
	}
	s.inflight[key] = entry
	s.mu.Unlock()

	return ctx, func() {
		s.mu.Lock()
		if s.inflight[key] == entry {
			delete(s.inflight, key)
		}
		s.mu.Unlock()
		cancel()
	}
}

func (s *Synchronizer) cancelReads() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, entry := range s.inflight {
		entry.cancel()
		delete(s.inflight, key)
	}
}

func (s *Synchronizer) dropBackup(id uuid.UUID) {
	if s.backup == nil {
		return
	}
	if err := s.backup.Delete(id); err != nil {
		s.log.Error("backup discard failed", "session_id", id, "error", err)
	}
}
