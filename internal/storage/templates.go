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

const templateColumns = `id, user_id, name, exercises, estimated_minutes,
	 times_used, last_used_at, created_at`

// GetTemplate retrieves a workout template, or (nil, nil) if absent.
func (db *DB) GetTemplate(ctx context.Context, userID int, id uuid.UUID) (*models.WorkoutTemplate, error) {
	row := db.Pool.QueryRow(ctx,
		`SELECT `+templateColumns+` FROM workout_templates WHERE id = $1 AND user_id = $2`,
		id, userID)

	t, err := scanTemplate(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying template: %w", err)
	}
	return t, nil
}

// ListTemplates returns all of a user's workout templates, most used first.
func (db *DB) ListTemplates(ctx context.Context, userID int) ([]*models.WorkoutTemplate, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT `+templateColumns+` FROM workout_templates
		 WHERE user_id = $1
		 ORDER BY times_used DESC, name ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying templates: %w", err)
	}
	defer rows.Close()

	var result []*models.WorkoutTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning template: %w", err)
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

// SetTemplateUsage writes the usage counter and last-used timestamp. Only the
// usage tracker calls this; templates are never mutated by handlers directly.
func (db *DB) SetTemplateUsage(ctx context.Context, userID int, id uuid.UUID, timesUsed int, lastUsedAt *time.Time) error {
	_, err := db.Pool.Exec(ctx,
		`UPDATE workout_templates SET times_used = $3, last_used_at = $4
		 WHERE id = $1 AND user_id = $2`,
		id, userID, timesUsed, lastUsedAt)
	if err != nil {
		return fmt.Errorf("updating template usage: %w", err)
	}
	return nil
}

func scanTemplate(row pgx.Row) (*models.WorkoutTemplate, error) {
	var t models.WorkoutTemplate
	var exercises []byte
	err := row.Scan(&t.ID, &t.UserID, &t.Name, &exercises, &t.EstimatedMinutes,
		&t.TimesUsed, &t.LastUsedAt, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(exercises, &t.Exercises); err != nil {
		return nil, fmt.Errorf("decoding exercises: %w", err)
	}
	return &t, nil
}
