package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/meltforce/liftplan/internal/models"
)

// fakeStore is an in-memory Store for engine tests.
type fakeStore struct {
	sessions   map[uuid.UUID]*models.WorkoutSession
	failUpdate bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{sessions: make(map[uuid.UUID]*models.WorkoutSession)}
}

func (f *fakeStore) GetSession(_ context.Context, userID int, id uuid.UUID) (*models.WorkoutSession, error) {
	s, ok := f.sessions[id]
	if !ok || s.UserID != userID {
		return nil, nil
	}
	return s.Clone(), nil
}

func (f *fakeStore) CreateSession(_ context.Context, s *models.WorkoutSession) error {
	f.sessions[s.ID] = s.Clone()
	return nil
}

func (f *fakeStore) UpdateSession(_ context.Context, s *models.WorkoutSession) error {
	if f.failUpdate {
		return errors.New("simulated write failure")
	}
	f.sessions[s.ID] = s.Clone()
	return nil
}

func (f *fakeStore) DeleteSession(_ context.Context, _ int, id uuid.UUID) error {
	delete(f.sessions, id)
	return nil
}

func (f *fakeStore) LatestCompletedDate(_ context.Context, userID int, workoutID uuid.UUID) (*time.Time, error) {
	var latest *time.Time
	for _, s := range f.sessions {
		if s.UserID != userID || s.WorkoutID != workoutID || s.Status != models.StatusCompleted || s.CompletedDate == nil {
			continue
		}
		if latest == nil || s.CompletedDate.After(*latest) {
			t := *s.CompletedDate
			latest = &t
		}
	}
	return latest, nil
}

// fakeTemplates is an in-memory TemplateStore.
type fakeTemplates struct {
	templates map[uuid.UUID]*models.WorkoutTemplate
}

func newFakeTemplates() *fakeTemplates {
	return &fakeTemplates{templates: make(map[uuid.UUID]*models.WorkoutTemplate)}
}

func (f *fakeTemplates) GetTemplate(_ context.Context, userID int, id uuid.UUID) (*models.WorkoutTemplate, error) {
	t, ok := f.templates[id]
	if !ok || t.UserID != userID {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTemplates) SetTemplateUsage(_ context.Context, _ int, id uuid.UUID, timesUsed int, lastUsedAt *time.Time) error {
	t := f.templates[id]
	t.TimesUsed = timesUsed
	t.LastUsedAt = lastUsedAt
	return nil
}

func testEngine(t *testing.T) (*Engine, *fakeStore, *fakeTemplates, *models.WorkoutTemplate) {
	t.Helper()
	store := newFakeStore()
	templates := newFakeTemplates()

	tpl := &models.WorkoutTemplate{
		ID:     uuid.New(),
		UserID: 1,
		Name:   "Push Day",
		Exercises: []models.TemplateExercise{
			{Name: "Bench Press", TargetSets: 3, TargetReps: 8, TargetWeight: 80, RestSeconds: 120},
			{Name: "Overhead Press", TargetSets: 4, TargetReps: 10, TargetWeight: 40, RestSeconds: 90},
		},
		EstimatedMinutes: 75,
	}
	templates.templates[tpl.ID] = tpl

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewEngine(store, templates, log), store, templates, tpl
}

func TestPlanSnapshotsTemplate(t *testing.T) {
	engine, _, templates, tpl := testEngine(t)
	ctx := context.Background()

	sess, err := engine.Plan(ctx, 1, PlanRequest{WorkoutID: tpl.ID})
	if err != nil {
		t.Fatalf("Plan() error: %v", err)
	}
	if sess.Status != models.StatusPlanned {
		t.Errorf("status = %q, want planned", sess.Status)
	}
	if sess.WorkoutName != "Push Day" {
		t.Errorf("workoutName = %q, want %q", sess.WorkoutName, "Push Day")
	}
	if len(sess.Exercises) != 2 {
		t.Fatalf("exercises = %d, want 2", len(sess.Exercises))
	}
	for i, ex := range sess.Exercises {
		if len(ex.ActualSets) != 0 {
			t.Errorf("exercise %d actualSets = %d, want 0 while planned", i, len(ex.ActualSets))
		}
	}
	if tpl.TimesUsed != 0 {
		t.Errorf("timesUsed = %d after plan, want 0", tpl.TimesUsed)
	}

	// Editing the template afterwards must not change the snapshot.
	templates.templates[tpl.ID].Name = "Renamed"
	templates.templates[tpl.ID].Exercises[0].TargetWeight = 999

	got, err := engine.Get(ctx, 1, sess.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.WorkoutName != "Push Day" {
		t.Errorf("workoutName after template edit = %q, want %q", got.WorkoutName, "Push Day")
	}
	if got.Exercises[0].TargetWeight != 80 {
		t.Errorf("targetWeight after template edit = %v, want 80", got.Exercises[0].TargetWeight)
	}
}

func TestPlanUnknownTemplate(t *testing.T) {
	engine, _, _, _ := testEngine(t)

	_, err := engine.Plan(context.Background(), 1, PlanRequest{WorkoutID: uuid.New()})
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("Plan() error = %v, want NotFoundError", err)
	}
}

func TestStartInitializesActualSets(t *testing.T) {
	engine, _, templates, tpl := testEngine(t)
	ctx := context.Background()

	planned, err := engine.Plan(ctx, 1, PlanRequest{WorkoutID: tpl.ID})
	if err != nil {
		t.Fatalf("Plan() error: %v", err)
	}

	sess, err := engine.Start(ctx, 1, planned.ID)
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	if sess.Status != models.StatusInProgress {
		t.Errorf("status = %q, want in-progress", sess.Status)
	}
	if sess.StartedAt == nil {
		t.Error("startedAt not set")
	}

	wantLens := []int{3, 4}
	for i, ex := range sess.Exercises {
		if len(ex.ActualSets) != wantLens[i] {
			t.Errorf("exercise %d actualSets = %d, want %d", i, len(ex.ActualSets), wantLens[i])
		}
		for j, set := range ex.ActualSets {
			if set.Reps != nil {
				t.Errorf("exercise %d set %d reps = %v, want nil", i, j, *set.Reps)
			}
			if set.Weight != ex.TargetWeight {
				t.Errorf("exercise %d set %d weight = %v, want %v", i, j, set.Weight, ex.TargetWeight)
			}
			if set.Completed {
				t.Errorf("exercise %d set %d completed = true, want false", i, j)
			}
		}
	}

	if got := templates.templates[tpl.ID].TimesUsed; got != 1 {
		t.Errorf("timesUsed = %d, want 1", got)
	}
	if templates.templates[tpl.ID].LastUsedAt == nil {
		t.Error("lastUsedAt not set on start")
	}
}

func TestStartPreconditions(t *testing.T) {
	engine, _, _, tpl := testEngine(t)
	ctx := context.Background()

	planned, _ := engine.Plan(ctx, 1, PlanRequest{WorkoutID: tpl.ID})
	if _, err := engine.Start(ctx, 1, planned.ID); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	// Starting twice violates the planned precondition.
	_, err := engine.Start(ctx, 1, planned.ID)
	var stateErr *InvalidStateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("second Start() error = %v, want InvalidStateError", err)
	}
	if stateErr.Status != models.StatusInProgress {
		t.Errorf("error status = %q, want in-progress", stateErr.Status)
	}
}

func TestCancelRevertsAndDecrements(t *testing.T) {
	engine, _, templates, tpl := testEngine(t)
	ctx := context.Background()

	planned, _ := engine.Plan(ctx, 1, PlanRequest{WorkoutID: tpl.ID})
	started, _ := engine.Start(ctx, 1, planned.ID)

	// Log some progress so cancel has something to clear.
	reps := 8
	started.Exercises[0].ActualSets[0] = models.ActualSet{Reps: &reps, Weight: 80, Completed: true}
	started.Exercises[0].Notes = "felt heavy"
	effort := 7
	started.Exercises[0].Effort = &effort
	if _, err := engine.SaveProgress(ctx, 1, started.ID, started.Exercises, "00:12:30"); err != nil {
		t.Fatalf("SaveProgress() error: %v", err)
	}

	sess, err := engine.Cancel(ctx, 1, started.ID)
	if err != nil {
		t.Fatalf("Cancel() error: %v", err)
	}

	if sess.Status != models.StatusPlanned {
		t.Errorf("status = %q, want planned", sess.Status)
	}
	if sess.StartedAt != nil || sess.CompletedDate != nil {
		t.Error("timestamps not cleared on cancel")
	}
	if sess.Duration != "" {
		t.Errorf("duration = %q, want empty", sess.Duration)
	}
	for i, ex := range sess.Exercises {
		if len(ex.ActualSets) != 0 {
			t.Errorf("exercise %d actualSets = %d, want 0", i, len(ex.ActualSets))
		}
		if ex.Notes != "" || ex.Effort != nil {
			t.Errorf("exercise %d notes/effort not reset", i)
		}
	}

	if got := templates.templates[tpl.ID].TimesUsed; got != 0 {
		t.Errorf("timesUsed = %d, want 0", got)
	}
	if templates.templates[tpl.ID].LastUsedAt != nil {
		t.Errorf("lastUsedAt = %v, want nil with no completed sessions", templates.templates[tpl.ID].LastUsedAt)
	}

	// timesUsed never goes below zero even if counters drifted.
	started2, _ := engine.Start(ctx, 1, planned.ID)
	templates.templates[tpl.ID].TimesUsed = 0
	if _, err := engine.Cancel(ctx, 1, started2.ID); err != nil {
		t.Fatalf("Cancel() error: %v", err)
	}
	if got := templates.templates[tpl.ID].TimesUsed; got != 0 {
		t.Errorf("timesUsed = %d, want floor 0", got)
	}
}

func TestCancelRequiresInProgress(t *testing.T) {
	engine, _, _, tpl := testEngine(t)
	ctx := context.Background()

	planned, _ := engine.Plan(ctx, 1, PlanRequest{WorkoutID: tpl.ID})

	_, err := engine.Cancel(ctx, 1, planned.ID)
	var stateErr *InvalidStateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("Cancel() on planned session error = %v, want InvalidStateError", err)
	}
}

func TestFinishIsIdempotent(t *testing.T) {
	engine, store, _, tpl := testEngine(t)
	ctx := context.Background()

	planned, _ := engine.Plan(ctx, 1, PlanRequest{WorkoutID: tpl.ID})
	started, _ := engine.Start(ctx, 1, planned.ID)

	first, err := engine.Finish(ctx, 1, started.ID, started.Exercises, "00:45:12")
	if err != nil {
		t.Fatalf("Finish() error: %v", err)
	}
	if first.Status != models.StatusCompleted {
		t.Errorf("status = %q, want completed", first.Status)
	}
	if first.CompletedDate == nil {
		t.Fatal("completedDate not set")
	}
	if first.Duration != "00:45:12" {
		t.Errorf("duration = %q, want 00:45:12", first.Duration)
	}

	second, err := engine.Finish(ctx, 1, started.ID, started.Exercises, "00:45:12")
	if err != nil {
		t.Fatalf("second Finish() error: %v", err)
	}
	if !second.CompletedDate.Equal(*first.CompletedDate) {
		t.Errorf("completedDate changed on retry: %v != %v", second.CompletedDate, first.CompletedDate)
	}
	if got := store.sessions[started.ID]; got.Duration != "00:45:12" || got.Status != models.StatusCompleted {
		t.Errorf("stored record changed on retry: %+v", got)
	}
}

func TestFinishRequiresInProgress(t *testing.T) {
	engine, _, _, tpl := testEngine(t)
	ctx := context.Background()

	planned, _ := engine.Plan(ctx, 1, PlanRequest{WorkoutID: tpl.ID})

	_, err := engine.Finish(ctx, 1, planned.ID, planned.Exercises, "00:10:00")
	var stateErr *InvalidStateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("Finish() on planned session error = %v, want InvalidStateError", err)
	}
}

func TestDeleteRecomputesUsage(t *testing.T) {
	engine, store, templates, tpl := testEngine(t)
	ctx := context.Background()

	// Two completed sessions.
	var completed []*models.WorkoutSession
	for i := 0; i < 2; i++ {
		planned, _ := engine.Plan(ctx, 1, PlanRequest{WorkoutID: tpl.ID})
		started, _ := engine.Start(ctx, 1, planned.ID)
		sess, err := engine.Finish(ctx, 1, started.ID, started.Exercises, "01:00:00")
		if err != nil {
			t.Fatalf("Finish() error: %v", err)
		}
		completed = append(completed, sess)
	}
	// Plus a third session that was started (usage already tracked at 3).
	planned, _ := engine.Plan(ctx, 1, PlanRequest{WorkoutID: tpl.ID})
	if _, err := engine.Start(ctx, 1, planned.ID); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if got := templates.templates[tpl.ID].TimesUsed; got != 3 {
		t.Fatalf("timesUsed = %d, want 3", got)
	}

	// Make completion dates distinct so the recompute is observable.
	early := time.Now().Add(-48 * time.Hour)
	late := time.Now().Add(-24 * time.Hour)
	store.sessions[completed[0].ID].CompletedDate = &early
	store.sessions[completed[1].ID].CompletedDate = &late

	if err := engine.Delete(ctx, 1, completed[1].ID); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}

	if got := templates.templates[tpl.ID].TimesUsed; got != 2 {
		t.Errorf("timesUsed = %d, want 2", got)
	}
	lastUsed := templates.templates[tpl.ID].LastUsedAt
	if lastUsed == nil || !lastUsed.Equal(early) {
		t.Errorf("lastUsedAt = %v, want %v (remaining completed session)", lastUsed, early)
	}

	if _, err := engine.Get(ctx, 1, completed[1].ID); err == nil {
		t.Error("deleted session still retrievable")
	}
}

func TestDeletePlannedSkipsUsage(t *testing.T) {
	engine, _, templates, tpl := testEngine(t)
	ctx := context.Background()

	planned, _ := engine.Plan(ctx, 1, PlanRequest{WorkoutID: tpl.ID})
	templates.templates[tpl.ID].TimesUsed = 5

	if err := engine.Delete(ctx, 1, planned.ID); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if got := templates.templates[tpl.ID].TimesUsed; got != 5 {
		t.Errorf("timesUsed = %d, want 5 (planned delete must not touch usage)", got)
	}
}

func TestDeleteUnknownSession(t *testing.T) {
	engine, _, _, _ := testEngine(t)

	err := engine.Delete(context.Background(), 1, uuid.New())
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("Delete() error = %v, want NotFoundError", err)
	}
}

func TestEngineEmitsEvents(t *testing.T) {
	engine, _, _, tpl := testEngine(t)
	ctx := context.Background()

	var got []EventType
	engine.Subscribe(func(ev Event) { got = append(got, ev.Type) })

	planned, _ := engine.Plan(ctx, 1, PlanRequest{WorkoutID: tpl.ID})
	started, _ := engine.Start(ctx, 1, planned.ID)
	engine.SaveProgress(ctx, 1, started.ID, started.Exercises, "00:05:00")
	engine.Finish(ctx, 1, started.ID, started.Exercises, "00:45:00")
	engine.Delete(ctx, 1, started.ID)

	want := []EventType{SessionPlanned, SessionStarted, SessionSaved, SessionFinished, SessionDeleted}
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %q, want %q", i, got[i], want[i])
		}
	}
}
