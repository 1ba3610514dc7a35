package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/meltforce/liftplan/internal/models"
)

const sessionColumns = `id, user_id, workout_id, workout_name, status,
	 scheduled_date, started_at, completed_date, estimated_minutes, duration,
	 exercises, created_at, updated_at`

// CreateSession inserts a new session row.
func (db *DB) CreateSession(ctx context.Context, s *models.WorkoutSession) error {
	exercises, err := json.Marshal(s.Exercises)
	if err != nil {
		return fmt.Errorf("encoding exercises: %w", err)
	}

	_, err = db.Pool.Exec(ctx,
		`INSERT INTO workout_sessions (`+sessionColumns+`)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		s.ID, s.UserID, s.WorkoutID, s.WorkoutName, s.Status,
		s.ScheduledDate, s.StartedAt, s.CompletedDate, s.EstimatedMinutes, s.Duration,
		exercises, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}
	return nil
}

// GetSession retrieves a single session, or (nil, nil) if absent.
func (db *DB) GetSession(ctx context.Context, userID int, id uuid.UUID) (*models.WorkoutSession, error) {
	row := db.Pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM workout_sessions WHERE id = $1 AND user_id = $2`,
		id, userID)

	s, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}
	return s, nil
}

// UpdateSession writes the full session record in a single atomic update.
func (db *DB) UpdateSession(ctx context.Context, s *models.WorkoutSession) error {
	exercises, err := json.Marshal(s.Exercises)
	if err != nil {
		return fmt.Errorf("encoding exercises: %w", err)
	}

	tag, err := db.Pool.Exec(ctx,
		`UPDATE workout_sessions
		 SET status = $3, scheduled_date = $4, started_at = $5, completed_date = $6,
		     estimated_minutes = $7, duration = $8, exercises = $9, updated_at = $10
		 WHERE id = $1 AND user_id = $2`,
		s.ID, s.UserID, s.Status, s.ScheduledDate, s.StartedAt, s.CompletedDate,
		s.EstimatedMinutes, s.Duration, exercises, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("updating session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("updating session %s: no rows affected", s.ID)
	}
	return nil
}

// DeleteSession removes a session row.
func (db *DB) DeleteSession(ctx context.Context, userID int, id uuid.UUID) error {
	_, err := db.Pool.Exec(ctx,
		`DELETE FROM workout_sessions WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// LatestCompletedDate returns the max completed_date among a template's
// existing completed sessions, or nil if there are none.
func (db *DB) LatestCompletedDate(ctx context.Context, userID int, workoutID uuid.UUID) (*time.Time, error) {
	var last *time.Time
	err := db.Pool.QueryRow(ctx,
		`SELECT MAX(completed_date) FROM workout_sessions
		 WHERE user_id = $1 AND workout_id = $2 AND status = $3`,
		userID, workoutID, models.StatusCompleted).Scan(&last)
	if err != nil {
		return nil, fmt.Errorf("querying latest completed date: %w", err)
	}
	return last, nil
}

// ListFilter narrows and paginates the session list. Zero values mean "all".
type ListFilter struct {
	Status     models.SessionStatus
	DateFilter string // "today", "week", "month" or ""
	WorkoutID  uuid.UUID
	Page       int // 1-based
	Limit      int
}

// StatusCounts holds per-status totals for the filtered collection
// (ignoring pagination but honoring date/workout filters).
type StatusCounts struct {
	Planned    int `json:"planned"`
	InProgress int `json:"inProgress"`
	Completed  int `json:"completed"`
	Total      int `json:"total"`
}

// SessionPage is one page of the list projection plus aggregate counts.
type SessionPage struct {
	Items  []*models.WorkoutSession `json:"items"`
	Total  int                      `json:"total"`
	Page   int                      `json:"page"`
	Limit  int                      `json:"limit"`
	Counts StatusCounts             `json:"counts"`
}

// ListSessions returns a filtered, paginated session page ordered by the
// status-appropriate anchor date descending.
func (db *DB) ListSessions(ctx context.Context, userID int, f ListFilter) (*SessionPage, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 20
	}

	where := `user_id = $1`
	args := []any{userID}

	if f.WorkoutID != uuid.Nil {
		args = append(args, f.WorkoutID)
		where += fmt.Sprintf(` AND workout_id = $%d`, len(args))
	}

	if start, end, ok := dateFilterRange(f.DateFilter, time.Now()); ok {
		args = append(args, start, end)
		where += fmt.Sprintf(
			` AND COALESCE(completed_date, started_at, scheduled_date) >= $%d
			  AND COALESCE(completed_date, started_at, scheduled_date) < $%d`,
			len(args)-1, len(args))
	}

	page := &SessionPage{Page: f.Page, Limit: f.Limit, Items: []*models.WorkoutSession{}}

	// Counts cover the date/workout-filtered set regardless of status filter,
	// so list tabs can show badges for every status at once.
	err := db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FILTER (WHERE status = 'planned'),
		        COUNT(*) FILTER (WHERE status = 'in-progress'),
		        COUNT(*) FILTER (WHERE status = 'completed'),
		        COUNT(*)
		 FROM workout_sessions WHERE `+where, args...).
		Scan(&page.Counts.Planned, &page.Counts.InProgress, &page.Counts.Completed, &page.Counts.Total)
	if err != nil {
		return nil, fmt.Errorf("counting sessions: %w", err)
	}

	if f.Status != "" {
		args = append(args, f.Status)
		where += fmt.Sprintf(` AND status = $%d`, len(args))
	}

	err = db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM workout_sessions WHERE `+where, args...).Scan(&page.Total)
	if err != nil {
		return nil, fmt.Errorf("counting filtered sessions: %w", err)
	}

	args = append(args, f.Limit, (f.Page-1)*f.Limit)
	rows, err := db.Pool.Query(ctx,
		`SELECT `+sessionColumns+` FROM workout_sessions WHERE `+where+
			fmt.Sprintf(` ORDER BY COALESCE(completed_date, started_at, scheduled_date) DESC
			 LIMIT $%d OFFSET $%d`, len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		page.Items = append(page.Items, s)
	}
	return page, rows.Err()
}

// ListAllSessions returns every session for a user, newest first. Feeds the
// stats aggregator and the calendar projection.
func (db *DB) ListAllSessions(ctx context.Context, userID int) ([]*models.WorkoutSession, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT `+sessionColumns+` FROM workout_sessions
		 WHERE user_id = $1
		 ORDER BY COALESCE(completed_date, started_at, scheduled_date) DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var result []*models.WorkoutSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

func dateFilterRange(filter string, now time.Time) (start, end time.Time, ok bool) {
	loc := now.Location()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	switch filter {
	case "today":
		return today, today.AddDate(0, 0, 1), true
	case "week":
		// Monday-based week
		offset := (int(today.Weekday()) + 6) % 7
		start = today.AddDate(0, 0, -offset)
		return start, start.AddDate(0, 0, 7), true
	case "month":
		start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(0, 1, 0), true
	}
	return time.Time{}, time.Time{}, false
}

func scanSession(row pgx.Row) (*models.WorkoutSession, error) {
	var s models.WorkoutSession
	var exercises []byte
	err := row.Scan(&s.ID, &s.UserID, &s.WorkoutID, &s.WorkoutName, &s.Status,
		&s.ScheduledDate, &s.StartedAt, &s.CompletedDate, &s.EstimatedMinutes, &s.Duration,
		&exercises, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(exercises, &s.Exercises); err != nil {
		return nil, fmt.Errorf("decoding exercises: %w", err)
	}
	return &s, nil
}
