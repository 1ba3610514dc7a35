package mcp

import (
	"context"

	"github.com/google/uuid"

	"github.com/meltforce/liftplan/internal/models"
	"github.com/meltforce/liftplan/internal/stats"
	"github.com/meltforce/liftplan/internal/storage"
	"github.com/meltforce/liftplan/internal/syncer"
)

// HTTPClient implements DataSource by calling the LiftPlan REST API. Used for
// remote MCP mode where the binary runs locally (stdio) but data lives on the
// server, reached over Tailscale. The userID argument is ignored: the server
// resolves identity from the transport.
type HTTPClient struct {
	api *syncer.Client
}

// Compile-time check: HTTPClient satisfies DataSource.
var _ DataSource = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTPClient targeting the given base URL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{api: syncer.NewClient(baseURL)}
}

func (c *HTTPClient) ListSessions(ctx context.Context, _ int, f storage.ListFilter) (*storage.SessionPage, error) {
	return c.api.ListSessions(ctx, f)
}

func (c *HTTPClient) GetSession(ctx context.Context, _ int, id uuid.UUID) (*models.WorkoutSession, error) {
	return c.api.GetSession(ctx, id)
}

func (c *HTTPClient) GetCalendar(ctx context.Context, _ int, status models.SessionStatus) ([]*models.CalendarEntry, error) {
	return c.api.Calendar(ctx, status)
}

func (c *HTTPClient) GetStats(ctx context.Context, _ int) (*stats.Summary, error) {
	return c.api.Stats(ctx)
}
