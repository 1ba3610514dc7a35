package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/meltforce/liftplan/internal/models"
	"github.com/meltforce/liftplan/internal/session"
)

// memStore backs the engine for handler tests; the endpoints that read the
// database directly are covered against a live instance, not here.
type memStore struct {
	sessions map[uuid.UUID]*models.WorkoutSession
}

func (m *memStore) GetSession(_ context.Context, userID int, id uuid.UUID) (*models.WorkoutSession, error) {
	s, ok := m.sessions[id]
	if !ok || s.UserID != userID {
		return nil, nil
	}
	return s.Clone(), nil
}

func (m *memStore) CreateSession(_ context.Context, s *models.WorkoutSession) error {
	m.sessions[s.ID] = s.Clone()
	return nil
}

func (m *memStore) UpdateSession(_ context.Context, s *models.WorkoutSession) error {
	m.sessions[s.ID] = s.Clone()
	return nil
}

func (m *memStore) DeleteSession(_ context.Context, _ int, id uuid.UUID) error {
	delete(m.sessions, id)
	return nil
}

func (m *memStore) LatestCompletedDate(_ context.Context, _ int, _ uuid.UUID) (*time.Time, error) {
	return nil, nil
}

type memTemplates struct {
	templates map[uuid.UUID]*models.WorkoutTemplate
}

func (m *memTemplates) GetTemplate(_ context.Context, userID int, id uuid.UUID) (*models.WorkoutTemplate, error) {
	t, ok := m.templates[id]
	if !ok || t.UserID != userID {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (m *memTemplates) SetTemplateUsage(_ context.Context, _ int, id uuid.UUID, timesUsed int, lastUsedAt *time.Time) error {
	t := m.templates[id]
	t.TimesUsed = timesUsed
	t.LastUsedAt = lastUsedAt
	return nil
}

func testServer(t *testing.T) (*Server, uuid.UUID) {
	t.Helper()
	store := &memStore{sessions: make(map[uuid.UUID]*models.WorkoutSession)}
	templates := &memTemplates{templates: make(map[uuid.UUID]*models.WorkoutTemplate)}

	tpl := &models.WorkoutTemplate{
		ID:     uuid.New(),
		UserID: 1,
		Name:   "Upper Body",
		Exercises: []models.TemplateExercise{
			{Name: "Bench Press", TargetSets: 3, TargetReps: 8, TargetWeight: 80},
		},
		EstimatedMinutes: 60,
	}
	templates.templates[tpl.ID] = tpl

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := session.NewEngine(store, templates, log)
	return New(nil, engine, log), tpl.ID
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding request: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func decodeSession(t *testing.T, w *httptest.ResponseRecorder) *models.WorkoutSession {
	t.Helper()
	var s models.WorkoutSession
	if err := json.NewDecoder(w.Body).Decode(&s); err != nil {
		t.Fatalf("decoding session: %v", err)
	}
	return &s
}

func TestCreateSessionScheduled(t *testing.T) {
	srv, workoutID := testServer(t)

	scheduled := time.Now().AddDate(0, 0, 3)
	w := doJSON(t, srv, http.MethodPost, "/api/v1/sessions/", map[string]any{
		"workoutId":     workoutID,
		"scheduledDate": scheduled,
	})

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}
	sess := decodeSession(t, w)
	if sess.Status != models.StatusPlanned {
		t.Errorf("status = %q, want planned", sess.Status)
	}
	if sess.WorkoutName != "Upper Body" {
		t.Errorf("workoutName = %q, want Upper Body", sess.WorkoutName)
	}
}

func TestCreateSessionStartNow(t *testing.T) {
	srv, workoutID := testServer(t)

	// No scheduledDate: plan for today and start immediately.
	w := doJSON(t, srv, http.MethodPost, "/api/v1/sessions/", map[string]any{
		"workoutId": workoutID,
	})

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}
	sess := decodeSession(t, w)
	if sess.Status != models.StatusInProgress {
		t.Errorf("status = %q, want in-progress", sess.Status)
	}
	if len(sess.Exercises) != 1 || len(sess.Exercises[0].ActualSets) != 3 {
		t.Errorf("actualSets not initialized: %+v", sess.Exercises)
	}
}

func TestCreateSessionValidation(t *testing.T) {
	srv, _ := testServer(t)

	w := doJSON(t, srv, http.MethodPost, "/api/v1/sessions/", map[string]any{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing workoutId status = %d, want 400", w.Code)
	}

	w = doJSON(t, srv, http.MethodPost, "/api/v1/sessions/", map[string]any{
		"workoutId": uuid.New(),
	})
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown template status = %d, want 404", w.Code)
	}
}

func TestPatchSessionDispatch(t *testing.T) {
	srv, workoutID := testServer(t)

	scheduled := time.Now()
	created := decodeSession(t, doJSON(t, srv, http.MethodPost, "/api/v1/sessions/", map[string]any{
		"workoutId":     workoutID,
		"scheduledDate": scheduled,
	}))
	path := "/api/v1/sessions/" + created.ID.String()

	w := doJSON(t, srv, http.MethodPatch, path, map[string]any{"action": "start"})
	if w.Code != http.StatusOK {
		t.Fatalf("start status = %d: %s", w.Code, w.Body.String())
	}
	started := decodeSession(t, w)
	if started.Status != models.StatusInProgress {
		t.Errorf("status = %q, want in-progress", started.Status)
	}

	// Starting again conflicts.
	w = doJSON(t, srv, http.MethodPatch, path, map[string]any{"action": "start"})
	if w.Code != http.StatusConflict {
		t.Errorf("double start status = %d, want 409", w.Code)
	}

	w = doJSON(t, srv, http.MethodPatch, path, map[string]any{
		"action":    "save",
		"exercises": started.Exercises,
		"duration":  "00:15:00",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("save status = %d: %s", w.Code, w.Body.String())
	}
	if saved := decodeSession(t, w); saved.Duration != "00:15:00" {
		t.Errorf("duration = %q, want 00:15:00", saved.Duration)
	}

	w = doJSON(t, srv, http.MethodPatch, path, map[string]any{"action": "cancel"})
	if w.Code != http.StatusOK {
		t.Fatalf("cancel status = %d: %s", w.Code, w.Body.String())
	}
	if cancelled := decodeSession(t, w); cancelled.Status != models.StatusPlanned {
		t.Errorf("status after cancel = %q, want planned", cancelled.Status)
	}

	w = doJSON(t, srv, http.MethodPatch, path, map[string]any{"action": "explode"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown action status = %d, want 400", w.Code)
	}
}

func TestPatchSessionReschedule(t *testing.T) {
	srv, workoutID := testServer(t)

	created := decodeSession(t, doJSON(t, srv, http.MethodPost, "/api/v1/sessions/", map[string]any{
		"workoutId":     workoutID,
		"scheduledDate": time.Now(),
	}))

	newDate := time.Now().AddDate(0, 0, 5).Truncate(time.Second)
	w := doJSON(t, srv, http.MethodPatch, "/api/v1/sessions/"+created.ID.String(), map[string]any{
		"action":        "update",
		"scheduledDate": newDate,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d: %s", w.Code, w.Body.String())
	}
	updated := decodeSession(t, w)
	if updated.ScheduledDate == nil || !updated.ScheduledDate.Equal(newDate) {
		t.Errorf("scheduledDate = %v, want %v", updated.ScheduledDate, newDate)
	}
}

func TestFinishSession(t *testing.T) {
	srv, workoutID := testServer(t)

	created := decodeSession(t, doJSON(t, srv, http.MethodPost, "/api/v1/sessions/", map[string]any{
		"workoutId": workoutID,
	}))
	path := "/api/v1/sessions/" + created.ID.String()

	w := doJSON(t, srv, http.MethodPut, path, map[string]any{
		"exercises": created.Exercises,
		"duration":  "00:48:20",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("finish status = %d: %s", w.Code, w.Body.String())
	}
	done := decodeSession(t, w)
	if done.Status != models.StatusCompleted {
		t.Errorf("status = %q, want completed", done.Status)
	}
	if done.Duration != "00:48:20" {
		t.Errorf("duration = %q, want 00:48:20", done.Duration)
	}

	// Retrying the finish returns the same record.
	w = doJSON(t, srv, http.MethodPut, path, map[string]any{
		"exercises": created.Exercises,
		"duration":  "00:48:20",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("retried finish status = %d: %s", w.Code, w.Body.String())
	}
	if again := decodeSession(t, w); !again.CompletedDate.Equal(*done.CompletedDate) {
		t.Error("completedDate changed on retried finish")
	}
}

func TestFinishPlannedConflicts(t *testing.T) {
	srv, workoutID := testServer(t)

	created := decodeSession(t, doJSON(t, srv, http.MethodPost, "/api/v1/sessions/", map[string]any{
		"workoutId":     workoutID,
		"scheduledDate": time.Now(),
	}))

	w := doJSON(t, srv, http.MethodPut, "/api/v1/sessions/"+created.ID.String(), map[string]any{
		"exercises": created.Exercises,
		"duration":  "00:01:00",
	})
	if w.Code != http.StatusConflict {
		t.Errorf("finish planned status = %d, want 409", w.Code)
	}
}

func TestDeleteSession(t *testing.T) {
	srv, workoutID := testServer(t)

	created := decodeSession(t, doJSON(t, srv, http.MethodPost, "/api/v1/sessions/", map[string]any{
		"workoutId":     workoutID,
		"scheduledDate": time.Now(),
	}))
	path := "/api/v1/sessions/" + created.ID.String()

	w := doJSON(t, srv, http.MethodDelete, path, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, srv, http.MethodGet, path, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", w.Code)
	}
}

func TestSessionIDValidation(t *testing.T) {
	srv, _ := testServer(t)

	for _, method := range []string{http.MethodGet, http.MethodPatch, http.MethodPut, http.MethodDelete} {
		w := doJSON(t, srv, method, "/api/v1/sessions/not-a-uuid", map[string]any{})
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s with bad id status = %d, want 400", method, w.Code)
		}
	}

	w := doJSON(t, srv, http.MethodGet, "/api/v1/sessions/"+uuid.NewString(), nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("get unknown id status = %d, want 404", w.Code)
	}
}

func TestMe(t *testing.T) {
	srv, _ := testServer(t)

	w := doJSON(t, srv, http.MethodGet, "/api/v1/me", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var info UserInfo
	if err := json.NewDecoder(w.Body).Decode(&info); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if info.Login != "local" {
		t.Errorf("login = %q, want local", info.Login)
	}
}

func TestAtoiDefault(t *testing.T) {
	tests := []struct {
		in   string
		def  int
		want int
	}{
		{"", 1, 1},
		{"3", 1, 3},
		{"0", 1, 1},
		{"-2", 20, 20},
		{"abc", 20, 20},
	}
	for _, tt := range tests {
		if got := atoiDefault(tt.in, tt.def); got != tt.want {
			t.Errorf("atoiDefault(%q, %d) = %d, want %d", tt.in, tt.def, got, tt.want)
		}
	}
}
