package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus is the lifecycle state of a workout session.
type SessionStatus string

const (
	StatusPlanned    SessionStatus = "planned"
	StatusInProgress SessionStatus = "in-progress"
	StatusCompleted  SessionStatus = "completed"
)

// Valid reports whether s is one of the three lifecycle states.
func (s SessionStatus) Valid() bool {
	switch s {
	case StatusPlanned, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// ActualSet is one performed (or pending) set within an exercise.
// Reps is nil until the set has been logged.
type ActualSet struct {
	Reps      *int    `json:"reps"`
	Weight    float64 `json:"weight"`
	Completed bool    `json:"completed"`
}

// SessionExercise is one exercise within a session: the target parameters
// snapshotted from the template at plan time, plus execution data.
type SessionExercise struct {
	Name         string      `json:"name"`
	TargetSets   int         `json:"targetSets"`
	TargetReps   int         `json:"targetReps"`
	TargetWeight float64     `json:"targetWeight"`
	RestSeconds  int         `json:"restSeconds"`
	ActualSets   []ActualSet `json:"actualSets"`
	Notes        string      `json:"notes"`
	Effort       *int        `json:"effort"`
}

// WorkoutSession is the canonical session record. WorkoutName and Exercises
// are snapshots taken at plan time and never follow later template edits.
type WorkoutSession struct {
	ID            uuid.UUID         `json:"id"`
	UserID        int               `json:"-"`
	WorkoutID     uuid.UUID         `json:"workoutId"`
	WorkoutName   string            `json:"workoutName"`
	Exercises     []SessionExercise `json:"exercises"`
	Status        SessionStatus     `json:"status"`
	ScheduledDate *time.Time        `json:"scheduledDate,omitempty"`
	StartedAt     *time.Time        `json:"startedAt,omitempty"`
	CompletedDate *time.Time        `json:"completedDate,omitempty"`

	// EstimatedMinutes comes from the template; Duration is the actual
	// elapsed time as "HH:MM:SS", recorded on save/finish.
	EstimatedMinutes int    `json:"estimatedDuration"`
	Duration         string `json:"duration,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Clone returns a deep copy of the session, including exercise and set data.
// Projections hold clones so optimistic edits never alias the original.
func (s *WorkoutSession) Clone() *WorkoutSession {
	if s == nil {
		return nil
	}
	out := *s
	out.ScheduledDate = cloneTime(s.ScheduledDate)
	out.StartedAt = cloneTime(s.StartedAt)
	out.CompletedDate = cloneTime(s.CompletedDate)
	out.Exercises = CloneExercises(s.Exercises)
	return &out
}

// CloneExercises deep-copies an exercise slice.
func CloneExercises(exercises []SessionExercise) []SessionExercise {
	if exercises == nil {
		return nil
	}
	out := make([]SessionExercise, len(exercises))
	for i, ex := range exercises {
		out[i] = ex
		if ex.Effort != nil {
			v := *ex.Effort
			out[i].Effort = &v
		}
		if ex.ActualSets != nil {
			sets := make([]ActualSet, len(ex.ActualSets))
			for j, set := range ex.ActualSets {
				sets[j] = set
				if set.Reps != nil {
					r := *set.Reps
					sets[j].Reps = &r
				}
			}
			out[i].ActualSets = sets
		}
	}
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
