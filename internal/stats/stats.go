// Package stats derives read-only training statistics from the full session
// collection. Everything is recomputed fresh on each call; nothing here is
// incrementally maintained.
package stats

import (
	"sort"
	"time"

	"github.com/meltforce/liftplan/internal/models"
)

// Summary is the dashboard payload.
type Summary struct {
	Planned    int `json:"planned"`
	InProgress int `json:"inProgress"`
	Completed  int `json:"completed"`
	Total      int `json:"total"`

	// TotalDuration sums elapsed time over completed sessions, as "HH:MM:SS".
	TotalDuration string `json:"totalDuration"`

	MonthCompleted int     `json:"monthCompleted"`
	MonthPlanned   int     `json:"monthPlanned"`
	CompletionRate float64 `json:"completionRate"`

	// Volume totals cover only completed sessions' sets marked completed.
	TotalSets   int     `json:"totalSets"`
	TotalReps   int     `json:"totalReps"`
	TotalVolume float64 `json:"totalVolume"`

	Streak int `json:"streak"`

	Favorite *FavoriteWorkout `json:"favoriteWorkout,omitempty"`

	Today  []*models.WorkoutSession `json:"todaySessions"`
	NextUp []*models.WorkoutSession `json:"nextUpSessions"`
}

// FavoriteWorkout is the template with the highest timesUsed.
type FavoriteWorkout struct {
	WorkoutID string `json:"workoutId"`
	Name      string `json:"name"`
	TimesUsed int    `json:"timesUsed"`
}

// Compute aggregates the given sessions and templates as of now, using now's
// location for all calendar-day arithmetic.
func Compute(sessions []*models.WorkoutSession, templates []*models.WorkoutTemplate, now time.Time) *Summary {
	s := &Summary{
		Today:  []*models.WorkoutSession{},
		NextUp: []*models.WorkoutSession{},
	}

	loc := now.Location()
	today := dayOf(now, loc)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
	monthEnd := monthStart.AddDate(0, 1, 0)

	var totalDur time.Duration
	var upcoming []*models.WorkoutSession

	for _, sess := range sessions {
		s.Total++
		switch sess.Status {
		case models.StatusPlanned:
			s.Planned++
		case models.StatusInProgress:
			s.InProgress++
		case models.StatusCompleted:
			s.Completed++
		}

		switch sess.Status {
		case models.StatusCompleted:
			if d, err := models.ParseHMS(sess.Duration); err == nil {
				totalDur += d
			}
			for _, ex := range sess.Exercises {
				for _, set := range ex.ActualSets {
					if !set.Completed {
						continue
					}
					s.TotalSets++
					if set.Reps != nil {
						s.TotalReps += *set.Reps
						s.TotalVolume += float64(*set.Reps) * set.Weight
					}
				}
			}
			if sess.CompletedDate != nil && inRange(*sess.CompletedDate, monthStart, monthEnd) {
				s.MonthCompleted++
			}

		case models.StatusPlanned:
			if sess.ScheduledDate == nil {
				continue
			}
			if inRange(*sess.ScheduledDate, monthStart, monthEnd) {
				s.MonthPlanned++
			}
			day := dayOf(*sess.ScheduledDate, loc)
			switch {
			case day.Equal(today):
				s.Today = append(s.Today, sess)
			case day.After(today):
				upcoming = append(upcoming, sess)
			}
		}
	}

	s.TotalDuration = models.FormatHMS(totalDur)

	if denom := s.MonthCompleted + s.MonthPlanned; denom > 0 {
		s.CompletionRate = float64(s.MonthCompleted) / float64(denom)
	}

	sort.Slice(upcoming, func(i, j int) bool {
		return upcoming[i].ScheduledDate.Before(*upcoming[j].ScheduledDate)
	})
	if len(upcoming) > 3 {
		upcoming = upcoming[:3]
	}
	s.NextUp = append(s.NextUp, upcoming...)

	s.Streak = Streak(sessions, now)
	s.Favorite = favorite(templates)

	return s
}

// Streak counts consecutive calendar days, ending today or yesterday, that
// each contain at least one completed session. A completed day in the future
// does not count. Today absent and yesterday absent means 0; otherwise the
// walk runs backward from its anchor until the first empty day.
func Streak(sessions []*models.WorkoutSession, now time.Time) int {
	loc := now.Location()
	days := make(map[time.Time]bool)
	for _, sess := range sessions {
		if sess.Status != models.StatusCompleted || sess.CompletedDate == nil {
			continue
		}
		if sess.CompletedDate.After(now) {
			continue
		}
		days[dayOf(*sess.CompletedDate, loc)] = true
	}

	cursor := dayOf(now, loc)
	if !days[cursor] {
		cursor = cursor.AddDate(0, 0, -1)
		if !days[cursor] {
			return 0
		}
	}

	streak := 0
	for days[cursor] {
		streak++
		cursor = cursor.AddDate(0, 0, -1)
	}
	return streak
}

func favorite(templates []*models.WorkoutTemplate) *FavoriteWorkout {
	var best *models.WorkoutTemplate
	for _, tpl := range templates {
		if tpl.TimesUsed == 0 {
			continue
		}
		if best == nil || tpl.TimesUsed > best.TimesUsed {
			best = tpl
		}
	}
	if best == nil {
		return nil
	}
	return &FavoriteWorkout{
		WorkoutID: best.ID.String(),
		Name:      best.Name,
		TimesUsed: best.TimesUsed,
	}
}

func dayOf(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func inRange(t, start, end time.Time) bool {
	return !t.Before(start) && t.Before(end)
}
