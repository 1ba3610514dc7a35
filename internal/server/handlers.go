package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/meltforce/liftplan/internal/models"
	"github.com/meltforce/liftplan/internal/session"
	"github.com/meltforce/liftplan/internal/stats"
	"github.com/meltforce/liftplan/internal/storage"
)

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, userInfoFromContext(r))
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.SessionStatus(q.Get("status"))
	if filter != "" && !filter.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status filter"})
		return
	}

	var workoutID uuid.UUID
	if v := q.Get("workoutFilter"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid workoutFilter"})
			return
		}
		workoutID = id
	}

	page, err := s.db.ListSessions(r.Context(), userIDFromContext(r), storage.ListFilter{
		Status:     filter,
		DateFilter: q.Get("dateFilter"),
		WorkoutID:  workoutID,
		Page:       atoiDefault(q.Get("page"), 1),
		Limit:      atoiDefault(q.Get("limit"), 20),
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return def
	}
	return n
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session ID"})
		return
	}

	sess, err := s.engine.Get(r.Context(), userIDFromContext(r), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

type createSessionRequest struct {
	WorkoutID     uuid.UUID  `json:"workoutId"`
	ScheduledDate *time.Time `json:"scheduledDate"`
}

// handleCreateSession plans a new session. A payload without a scheduledDate
// means "start now": the session is planned for today and immediately started.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	userID := userIDFromContext(r)
	sess, err := s.engine.Plan(r.Context(), userID, session.PlanRequest{
		WorkoutID:     req.WorkoutID,
		ScheduledDate: req.ScheduledDate,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	if req.ScheduledDate == nil {
		sess, err = s.engine.Start(r.Context(), userID, sess.ID)
		if err != nil {
			s.writeError(w, err)
			return
		}
	}

	writeJSON(w, http.StatusCreated, sess)
}

type patchSessionRequest struct {
	Action        string                   `json:"action"`
	Exercises     []models.SessionExercise `json:"exercises"`
	Duration      *string                  `json:"duration"`
	ScheduledDate *time.Time               `json:"scheduledDate"`
}

// handlePatchSession dispatches {action: start|save|cancel|update} to the
// corresponding engine operation.
func (s *Server) handlePatchSession(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session ID"})
		return
	}

	var req patchSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	userID := userIDFromContext(r)
	var sess *models.WorkoutSession

	switch req.Action {
	case "start":
		sess, err = s.engine.Start(r.Context(), userID, id)
	case "save":
		duration := ""
		if req.Duration != nil {
			duration = *req.Duration
		}
		sess, err = s.engine.SaveProgress(r.Context(), userID, id, req.Exercises, duration)
	case "cancel":
		sess, err = s.engine.Cancel(r.Context(), userID, id)
	case "update":
		sess, err = s.engine.Update(r.Context(), userID, id, session.UpdateRequest{
			ScheduledDate: req.ScheduledDate,
			Exercises:     req.Exercises,
			Duration:      req.Duration,
		})
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown action: " + req.Action})
		return
	}

	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

type finishSessionRequest struct {
	Exercises []models.SessionExercise `json:"exercises"`
	Duration  string                   `json:"duration"`
}

func (s *Server) handleFinishSession(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session ID"})
		return
	}

	var req finishSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	sess, err := s.engine.Finish(r.Context(), userIDFromContext(r), id, req.Exercises, req.Duration)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session ID"})
		return
	}

	if err := s.engine.Delete(r.Context(), userIDFromContext(r), id); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	statusFilter := models.SessionStatus(r.URL.Query().Get("status"))
	if statusFilter != "" && !statusFilter.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status filter"})
		return
	}

	sessions, err := s.db.ListAllSessions(r.Context(), userIDFromContext(r))
	if err != nil {
		s.writeError(w, err)
		return
	}

	entries := []*models.CalendarEntry{}
	for _, sess := range sessions {
		if statusFilter != "" && sess.Status != statusFilter {
			continue
		}
		if entry := models.CalendarEntryFor(sess); entry != nil {
			entries = append(entries, entry)
		}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r)

	sessions, err := s.db.ListAllSessions(r.Context(), userID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	templates, err := s.db.ListTemplates(r.Context(), userID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stats.Compute(sessions, templates, time.Now()))
}

// writeError maps domain errors to HTTP statuses: validation 400, not found
// 404, invalid transition 409, anything else 500.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var validationErr *session.ValidationError
	var notFoundErr *session.NotFoundError
	var stateErr *session.InvalidStateError

	switch {
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.As(err, &notFoundErr):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.As(err, &stateErr):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		s.log.Error("internal error", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
