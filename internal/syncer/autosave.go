package syncer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/meltforce/liftplan/internal/models"
)

// ProgressFunc supplies the current in-flight exercise state and elapsed
// duration at each autosave tick.
type ProgressFunc func() (exercises []models.SessionExercise, duration string)

// Autosaver periodically saves an in-progress session through the
// synchronizer. Autosave failures are recoverable: they are logged and the
// next tick retries; no rollback notification reaches the user.
type Autosaver struct {
	sync     *Synchronizer
	interval time.Duration
	log      *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewAutosaver creates an Autosaver with the given tick interval.
func NewAutosaver(s *Synchronizer, interval time.Duration, log *slog.Logger) *Autosaver {
	return &Autosaver{sync: s, interval: interval, log: log}
}

// Start begins ticking for the given session. Any previous loop is stopped
// first, so a session change never leaves an orphaned ticker behind.
func (a *Autosaver) Start(ctx context.Context, cur *models.WorkoutSession, progress ProgressFunc) {
	a.Stop()

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	a.mu.Lock()
	a.cancel = cancel
	a.done = done
	a.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(a.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				exercises, duration := progress()
				if _, err := a.sync.SaveProgress(ctx, cur, exercises, duration); err != nil {
					a.log.Warn("autosave failed, will retry", "session_id", cur.ID, "error", err)
				}
			}
		}
	}()
}

// Stop cancels the autosave loop and waits for the in-flight tick to finish.
func (a *Autosaver) Stop() {
	a.mu.Lock()
	cancel, done := a.cancel, a.done
	a.cancel, a.done = nil, nil
	a.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}
