package mcp

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/meltforce/liftplan/internal/models"
	"github.com/meltforce/liftplan/internal/storage"
)

// --- Tool definitions ---

var toolListSessions = mcp.NewTool("list_sessions",
	mcp.WithDescription("List workout sessions with optional filters. Returns a paginated list plus per-status counts."),
	mcp.WithString("status", mcp.Description("Filter by lifecycle status"), mcp.Enum("planned", "in-progress", "completed")),
	mcp.WithString("date_filter", mcp.Description("Restrict to a period"), mcp.Enum("today", "week", "month")),
	mcp.WithNumber("page", mcp.Description("Page number (1-based). Defaults to 1.")),
	mcp.WithNumber("limit", mcp.Description("Page size. Defaults to 20.")),
)

var toolGetSession = mcp.NewTool("get_session",
	mcp.WithDescription("Get a single workout session including its exercises, target parameters and logged sets."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Session UUID")),
)

var toolGetCalendar = mcp.NewTool("get_calendar",
	mcp.WithDescription("Get the training calendar: one entry per session with start, end, title and status color."),
	mcp.WithString("status", mcp.Description("Filter by lifecycle status"), mcp.Enum("planned", "in-progress", "completed")),
)

var toolGetTrainingStats = mcp.NewTool("get_training_stats",
	mcp.WithDescription("Aggregate training statistics: status counts, total duration, monthly completion rate, set/rep/volume totals, current streak, favorite workout, and today's/upcoming sessions."),
)

// --- Tool handlers ---

func (h *handlers) listSessions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter := storage.ListFilter{
		Status:     models.SessionStatus(req.GetString("status", "")),
		DateFilter: req.GetString("date_filter", ""),
		Page:       req.GetInt("page", 1),
		Limit:      req.GetInt("limit", 20),
	}

	page, err := h.ds.ListSessions(ctx, UserIDFromContext(ctx), filter)
	if err != nil {
		h.log.Error("mcp list_sessions", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(page)
	if err != nil {
		return mcp.NewToolResultError("encoding failed: " + err.Error()), nil
	}
	return result, nil
}

func (h *handlers) getSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	idStr, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id parameter is required"), nil
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return mcp.NewToolResultError("invalid session id: " + idStr), nil
	}

	sess, err := h.ds.GetSession(ctx, UserIDFromContext(ctx), id)
	if err != nil {
		h.log.Error("mcp get_session", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(sess)
	if err != nil {
		return mcp.NewToolResultError("encoding failed: " + err.Error()), nil
	}
	return result, nil
}

func (h *handlers) getCalendar(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status := models.SessionStatus(req.GetString("status", ""))

	entries, err := h.ds.GetCalendar(ctx, UserIDFromContext(ctx), status)
	if err != nil {
		h.log.Error("mcp get_calendar", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(entries)
	if err != nil {
		return mcp.NewToolResultError("encoding failed: " + err.Error()), nil
	}
	return result, nil
}

func (h *handlers) getTrainingStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	summary, err := h.ds.GetStats(ctx, UserIDFromContext(ctx))
	if err != nil {
		h.log.Error("mcp get_training_stats", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(summary)
	if err != nil {
		return mcp.NewToolResultError("encoding failed: " + err.Error()), nil
	}
	return result, nil
}

// --- Resource handlers ---

func (h *handlers) upcomingSessions(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	summary, err := h.ds.GetStats(ctx, UserIDFromContext(ctx))
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"today":  summary.Today,
		"nextUp": summary.NextUp,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
