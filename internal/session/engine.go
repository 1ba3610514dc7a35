package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/meltforce/liftplan/internal/models"
)

// Store is the persistence surface the engine mutates. Get returns
// (nil, nil) when the session does not exist. Create, Update and Delete are
// single atomic writes of the full record.
type Store interface {
	GetSession(ctx context.Context, userID int, id uuid.UUID) (*models.WorkoutSession, error)
	CreateSession(ctx context.Context, s *models.WorkoutSession) error
	UpdateSession(ctx context.Context, s *models.WorkoutSession) error
	DeleteSession(ctx context.Context, userID int, id uuid.UUID) error

	// LatestCompletedDate returns the max completedDate among the user's
	// currently-existing completed sessions for a template, or nil.
	LatestCompletedDate(ctx context.Context, userID int, workoutID uuid.UUID) (*time.Time, error)
}

// TemplateStore is the read/usage surface for workout templates. Get returns
// (nil, nil) when the template does not exist.
type TemplateStore interface {
	GetTemplate(ctx context.Context, userID int, id uuid.UUID) (*models.WorkoutTemplate, error)
	SetTemplateUsage(ctx context.Context, userID int, id uuid.UUID, timesUsed int, lastUsedAt *time.Time) error
}

// Engine executes session lifecycle transitions. Every transition validates
// its precondition before touching storage, persists the full record in one
// write, applies usage-counter side effects, and then emits an event.
type Engine struct {
	store     Store
	templates TemplateStore
	usage     *UsageTracker
	log       *slog.Logger
	now       func() time.Time
	observers []Observer
}

// NewEngine creates an Engine backed by the given stores.
func NewEngine(store Store, templates TemplateStore, log *slog.Logger) *Engine {
	return &Engine{
		store:     store,
		templates: templates,
		usage:     NewUsageTracker(store, templates),
		log:       log,
		now:       time.Now,
	}
}

// Subscribe registers an observer for engine events.
func (e *Engine) Subscribe(obs Observer) {
	e.observers = append(e.observers, obs)
}

func (e *Engine) emit(ev Event) {
	for _, obs := range e.observers {
		obs(ev)
	}
}

// PlanRequest is the payload for planning a new session.
type PlanRequest struct {
	WorkoutID     uuid.UUID
	ScheduledDate *time.Time
}

// Plan creates a new planned session, snapshotting the template's name and
// exercises. The snapshot never follows later template edits. Usage counters
// are untouched until the session is started.
func (e *Engine) Plan(ctx context.Context, userID int, req PlanRequest) (*models.WorkoutSession, error) {
	if req.WorkoutID == uuid.Nil {
		return nil, errValidation("workoutId is required")
	}

	tpl, err := e.templates.GetTemplate(ctx, userID, req.WorkoutID)
	if err != nil {
		return nil, fmt.Errorf("loading template: %w", err)
	}
	if tpl == nil {
		return nil, &NotFoundError{Resource: "template", ID: req.WorkoutID.String()}
	}

	now := e.now()
	scheduled := req.ScheduledDate
	if scheduled == nil {
		scheduled = &now
	}

	sess := &models.WorkoutSession{
		ID:               uuid.New(),
		UserID:           userID,
		WorkoutID:        tpl.ID,
		WorkoutName:      tpl.Name,
		Exercises:        tpl.SessionExercises(),
		Status:           models.StatusPlanned,
		ScheduledDate:    scheduled,
		EstimatedMinutes: tpl.EstimatedMinutes,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := e.store.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	e.emit(Event{Type: SessionPlanned, SessionID: sess.ID, Session: sess})
	return sess, nil
}

// Start transitions planned → in-progress. Each exercise gets an actualSets
// slice of targetSets length with reps unset, weight preset to the target and
// completed false. Increments the template's timesUsed and stamps lastUsedAt.
func (e *Engine) Start(ctx context.Context, userID int, id uuid.UUID) (*models.WorkoutSession, error) {
	sess, err := e.get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if sess.Status != models.StatusPlanned {
		return nil, &InvalidStateError{Op: "start", Status: sess.Status}
	}

	now := e.now()
	for i := range sess.Exercises {
		ex := &sess.Exercises[i]
		sets := make([]models.ActualSet, ex.TargetSets)
		for j := range sets {
			sets[j] = models.ActualSet{Weight: ex.TargetWeight}
		}
		ex.ActualSets = sets
	}
	sess.Status = models.StatusInProgress
	sess.StartedAt = &now
	sess.UpdatedAt = now

	if err := e.store.UpdateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("starting session: %w", err)
	}

	if err := e.usage.OnStart(ctx, userID, sess.WorkoutID, now); err != nil {
		e.log.Error("usage increment failed", "workout_id", sess.WorkoutID, "error", err)
	}

	e.emit(Event{Type: SessionStarted, SessionID: sess.ID, Session: sess})
	return sess, nil
}

// SaveProgress persists an exercise snapshot and elapsed duration without
// changing status. Serves both periodic autosave and manual save.
func (e *Engine) SaveProgress(ctx context.Context, userID int, id uuid.UUID, exercises []models.SessionExercise, duration string) (*models.WorkoutSession, error) {
	if exercises == nil {
		return nil, errValidation("exercises are required")
	}

	sess, err := e.get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	sess.Exercises = exercises
	sess.Duration = duration
	sess.UpdatedAt = e.now()

	if err := e.store.UpdateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("saving progress: %w", err)
	}

	e.emit(Event{Type: SessionSaved, SessionID: sess.ID, Session: sess})
	return sess, nil
}

// Finish transitions in-progress → completed, persisting the final exercises
// and duration. Finishing an already-completed session is a no-op, so a
// retried finish leaves the record untouched.
func (e *Engine) Finish(ctx context.Context, userID int, id uuid.UUID, exercises []models.SessionExercise, duration string) (*models.WorkoutSession, error) {
	sess, err := e.get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if sess.Status == models.StatusCompleted {
		return sess, nil
	}
	if sess.Status != models.StatusInProgress {
		return nil, &InvalidStateError{Op: "finish", Status: sess.Status}
	}
	if exercises == nil {
		return nil, errValidation("exercises are required")
	}

	now := e.now()
	sess.Status = models.StatusCompleted
	sess.CompletedDate = &now
	sess.Exercises = exercises
	sess.Duration = duration
	sess.UpdatedAt = now

	if err := e.store.UpdateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("finishing session: %w", err)
	}

	e.emit(Event{Type: SessionFinished, SessionID: sess.ID, Session: sess})
	return sess, nil
}

// Cancel reverts in-progress → planned: clears the start/completion
// timestamps and duration, empties every exercise's actualSets and resets
// notes and effort. Decrements the template's timesUsed (floor 0) and
// recomputes lastUsedAt from the remaining completed sessions.
func (e *Engine) Cancel(ctx context.Context, userID int, id uuid.UUID) (*models.WorkoutSession, error) {
	sess, err := e.get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if sess.Status != models.StatusInProgress {
		return nil, &InvalidStateError{Op: "cancel", Status: sess.Status}
	}

	sess.Status = models.StatusPlanned
	sess.StartedAt = nil
	sess.CompletedDate = nil
	sess.Duration = ""
	for i := range sess.Exercises {
		ex := &sess.Exercises[i]
		ex.ActualSets = []models.ActualSet{}
		ex.Notes = ""
		ex.Effort = nil
	}
	sess.UpdatedAt = e.now()

	if err := e.store.UpdateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("cancelling session: %w", err)
	}

	if err := e.usage.OnRelease(ctx, userID, sess.WorkoutID); err != nil {
		e.log.Error("usage recompute failed", "workout_id", sess.WorkoutID, "error", err)
	}

	e.emit(Event{Type: SessionCancelled, SessionID: sess.ID, Session: sess})
	return sess, nil
}

// Delete removes the session unconditionally. If the session had ever been
// started, the template's usage counters are recomputed the same way cancel
// does; deleting a still-planned session leaves them untouched.
func (e *Engine) Delete(ctx context.Context, userID int, id uuid.UUID) error {
	sess, err := e.get(ctx, userID, id)
	if err != nil {
		return err
	}
	wasStarted := sess.Status == models.StatusInProgress || sess.Status == models.StatusCompleted

	if err := e.store.DeleteSession(ctx, userID, id); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}

	if wasStarted {
		if err := e.usage.OnRelease(ctx, userID, sess.WorkoutID); err != nil {
			e.log.Error("usage recompute failed", "workout_id", sess.WorkoutID, "error", err)
		}
	}

	e.emit(Event{Type: SessionDeleted, SessionID: id})
	return nil
}

// UpdateRequest carries optional field edits for a session. Nil fields are
// left as-is; set fields win wholesale (last write wins).
type UpdateRequest struct {
	ScheduledDate *time.Time
	Exercises     []models.SessionExercise
	Duration      *string
}

// Update applies field-level edits outside the lifecycle transitions, e.g.
// rescheduling a planned session.
func (e *Engine) Update(ctx context.Context, userID int, id uuid.UUID, req UpdateRequest) (*models.WorkoutSession, error) {
	sess, err := e.get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if req.ScheduledDate != nil {
		sess.ScheduledDate = req.ScheduledDate
	}
	if req.Exercises != nil {
		sess.Exercises = req.Exercises
	}
	if req.Duration != nil {
		sess.Duration = *req.Duration
	}
	sess.UpdatedAt = e.now()

	if err := e.store.UpdateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("updating session: %w", err)
	}

	e.emit(Event{Type: SessionSaved, SessionID: sess.ID, Session: sess})
	return sess, nil
}

// Get returns a session by id.
func (e *Engine) Get(ctx context.Context, userID int, id uuid.UUID) (*models.WorkoutSession, error) {
	return e.get(ctx, userID, id)
}

func (e *Engine) get(ctx context.Context, userID int, id uuid.UUID) (*models.WorkoutSession, error) {
	sess, err := e.store.GetSession(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	if sess == nil {
		return nil, &NotFoundError{Resource: "session", ID: id.String()}
	}
	return sess, nil
}
