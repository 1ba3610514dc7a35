package mcp

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/meltforce/liftplan/internal/models"
	"github.com/meltforce/liftplan/internal/session"
	"github.com/meltforce/liftplan/internal/stats"
	"github.com/meltforce/liftplan/internal/storage"
)

// DataSource abstracts the data layer for MCP tools. Local (direct database)
// and HTTPClient (remote via REST API) both satisfy this interface.
type DataSource interface {
	ListSessions(ctx context.Context, userID int, f storage.ListFilter) (*storage.SessionPage, error)
	GetSession(ctx context.Context, userID int, id uuid.UUID) (*models.WorkoutSession, error)
	GetCalendar(ctx context.Context, userID int, status models.SessionStatus) ([]*models.CalendarEntry, error)
	GetStats(ctx context.Context, userID int) (*stats.Summary, error)
}

// Local serves MCP tools straight from the database, for running the MCP
// server in-process next to the HTTP server.
type Local struct {
	db *storage.DB
}

// Compile-time check: Local satisfies DataSource.
var _ DataSource = (*Local)(nil)

// NewLocal creates a database-backed DataSource.
func NewLocal(db *storage.DB) *Local {
	return &Local{db: db}
}

func (l *Local) ListSessions(ctx context.Context, userID int, f storage.ListFilter) (*storage.SessionPage, error) {
	return l.db.ListSessions(ctx, userID, f)
}

func (l *Local) GetSession(ctx context.Context, userID int, id uuid.UUID) (*models.WorkoutSession, error) {
	sess, err := l.db.GetSession(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, &session.NotFoundError{Resource: "session", ID: id.String()}
	}
	return sess, nil
}

func (l *Local) GetCalendar(ctx context.Context, userID int, status models.SessionStatus) ([]*models.CalendarEntry, error) {
	sessions, err := l.db.ListAllSessions(ctx, userID)
	if err != nil {
		return nil, err
	}

	entries := []*models.CalendarEntry{}
	for _, sess := range sessions {
		if status != "" && sess.Status != status {
			continue
		}
		if entry := models.CalendarEntryFor(sess); entry != nil {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func (l *Local) GetStats(ctx context.Context, userID int) (*stats.Summary, error) {
	sessions, err := l.db.ListAllSessions(ctx, userID)
	if err != nil {
		return nil, err
	}
	templates, err := l.db.ListTemplates(ctx, userID)
	if err != nil {
		return nil, err
	}
	return stats.Compute(sessions, templates, time.Now()), nil
}
