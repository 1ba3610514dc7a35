package models

import (
	"time"

	"github.com/google/uuid"
)

// TemplateExercise is one exercise definition within a workout template.
type TemplateExercise struct {
	Name         string  `json:"name"`
	TargetSets   int     `json:"targetSets"`
	TargetReps   int     `json:"targetReps"`
	TargetWeight float64 `json:"targetWeight"`
	RestSeconds  int     `json:"restSeconds"`
}

// WorkoutTemplate is a reusable workout definition. TimesUsed counts sessions
// that have ever been started against it and not since been cancelled or
// deleted; LastUsedAt is the latest completedDate among its currently-existing
// completed sessions. Both are maintained only by the usage tracker.
type WorkoutTemplate struct {
	ID               uuid.UUID          `json:"id"`
	UserID           int                `json:"-"`
	Name             string             `json:"name"`
	Exercises        []TemplateExercise `json:"exercises"`
	EstimatedMinutes int                `json:"estimatedDuration"`
	TimesUsed        int                `json:"timesUsed"`
	LastUsedAt       *time.Time         `json:"lastUsedAt,omitempty"`
	CreatedAt        time.Time          `json:"createdAt"`
}

// SessionExercises builds the per-session exercise snapshot from the
// template definitions. ActualSets stays empty until the session starts.
func (t *WorkoutTemplate) SessionExercises() []SessionExercise {
	out := make([]SessionExercise, len(t.Exercises))
	for i, ex := range t.Exercises {
		out[i] = SessionExercise{
			Name:         ex.Name,
			TargetSets:   ex.TargetSets,
			TargetReps:   ex.TargetReps,
			TargetWeight: ex.TargetWeight,
			RestSeconds:  ex.RestSeconds,
			ActualSets:   []ActualSet{},
		}
	}
	return out
}
