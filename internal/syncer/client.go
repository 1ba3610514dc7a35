package syncer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/meltforce/liftplan/internal/models"
	"github.com/meltforce/liftplan/internal/stats"
	"github.com/meltforce/liftplan/internal/storage"
)

// APIError is a non-2xx response from the session API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d: %s", e.StatusCode, e.Message)
}

// Client calls the LiftPlan REST API. It is the commit leg of the
// synchronizer; every mutation here is authoritative.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Client targeting the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, body, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("client: encode body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("client: create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("client: read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var body struct {
			Error string `json:"error"`
		}
		msg := string(data)
		if json.Unmarshal(data, &body) == nil && body.Error != "" {
			msg = body.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("client: decode %s: %w", path, err)
		}
	}
	return nil
}

// GetSession fetches a single session.
func (c *Client) GetSession(ctx context.Context, id uuid.UUID) (*models.WorkoutSession, error) {
	var sess models.WorkoutSession
	if err := c.do(ctx, http.MethodGet, "/api/v1/sessions/"+id.String(), nil, nil, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// ListSessions fetches a filtered, paginated session page.
func (c *Client) ListSessions(ctx context.Context, f storage.ListFilter) (*storage.SessionPage, error) {
	params := url.Values{}
	if f.Status != "" {
		params.Set("status", string(f.Status))
	}
	if f.DateFilter != "" {
		params.Set("dateFilter", f.DateFilter)
	}
	if f.WorkoutID != uuid.Nil {
		params.Set("workoutFilter", f.WorkoutID.String())
	}
	if f.Page > 0 {
		params.Set("page", strconv.Itoa(f.Page))
	}
	if f.Limit > 0 {
		params.Set("limit", strconv.Itoa(f.Limit))
	}

	var page storage.SessionPage
	if err := c.do(ctx, http.MethodGet, "/api/v1/sessions", params, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Calendar fetches the calendar projection, optionally filtered by status.
func (c *Client) Calendar(ctx context.Context, status models.SessionStatus) ([]*models.CalendarEntry, error) {
	params := url.Values{}
	if status != "" {
		params.Set("status", string(status))
	}

	var entries []*models.CalendarEntry
	if err := c.do(ctx, http.MethodGet, "/api/v1/calendar", params, nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Stats fetches the dashboard aggregates.
func (c *Client) Stats(ctx context.Context) (*stats.Summary, error) {
	var summary stats.Summary
	if err := c.do(ctx, http.MethodGet, "/api/v1/stats", nil, nil, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// PlanSession creates a planned session; a nil scheduledDate means
// "start now" and returns the session already in progress.
func (c *Client) PlanSession(ctx context.Context, workoutID uuid.UUID, scheduledDate *time.Time) (*models.WorkoutSession, error) {
	body := map[string]any{"workoutId": workoutID}
	if scheduledDate != nil {
		body["scheduledDate"] = scheduledDate
	}

	var sess models.WorkoutSession
	if err := c.do(ctx, http.MethodPost, "/api/v1/sessions", nil, body, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (c *Client) patch(ctx context.Context, id uuid.UUID, body any) (*models.WorkoutSession, error) {
	var sess models.WorkoutSession
	if err := c.do(ctx, http.MethodPatch, "/api/v1/sessions/"+id.String(), nil, body, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// StartSession transitions a planned session to in-progress.
func (c *Client) StartSession(ctx context.Context, id uuid.UUID) (*models.WorkoutSession, error) {
	return c.patch(ctx, id, map[string]any{"action": "start"})
}

// SaveProgress persists exercises and elapsed duration without a transition.
func (c *Client) SaveProgress(ctx context.Context, id uuid.UUID, exercises []models.SessionExercise, duration string) (*models.WorkoutSession, error) {
	return c.patch(ctx, id, map[string]any{"action": "save", "exercises": exercises, "duration": duration})
}

// CancelSession reverts an in-progress session to planned.
func (c *Client) CancelSession(ctx context.Context, id uuid.UUID) (*models.WorkoutSession, error) {
	return c.patch(ctx, id, map[string]any{"action": "cancel"})
}

// UpdateSession applies field edits (e.g. rescheduling).
func (c *Client) UpdateSession(ctx context.Context, id uuid.UUID, scheduledDate *time.Time, exercises []models.SessionExercise) (*models.WorkoutSession, error) {
	body := map[string]any{"action": "update"}
	if scheduledDate != nil {
		body["scheduledDate"] = scheduledDate
	}
	if exercises != nil {
		body["exercises"] = exercises
	}
	return c.patch(ctx, id, body)
}

// FinishSession completes an in-progress session.
func (c *Client) FinishSession(ctx context.Context, id uuid.UUID, exercises []models.SessionExercise, duration string) (*models.WorkoutSession, error) {
	var sess models.WorkoutSession
	body := map[string]any{"exercises": exercises, "duration": duration}
	if err := c.do(ctx, http.MethodPut, "/api/v1/sessions/"+id.String(), nil, body, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// DeleteSession removes a session.
func (c *Client) DeleteSession(ctx context.Context, id uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/sessions/"+id.String(), nil, nil, nil)
}
