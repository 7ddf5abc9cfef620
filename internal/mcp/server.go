// Package mcp exposes the user's training context to LLM coaching clients
// over the Model Context Protocol: the active session, streaks, the
// time-of-day pattern, and recent history. Everything is read-only.
package mcp

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/meltforce/ironflow/internal/backend"
	"github.com/meltforce/ironflow/internal/engine"
	"github.com/meltforce/ironflow/internal/heuristic"
	"github.com/meltforce/ironflow/internal/models"
)

// LocalState is the slice of the state store the MCP handlers read.
// *state.Store satisfies it.
type LocalState interface {
	Streak(category string) (heuristic.Streak, error)
	Pattern() (heuristic.Pattern, error)
	CompletedWorkouts() (int, error)
}

// Remote is the slice of the backend client the MCP handlers read.
// *backend.Client satisfies it.
type Remote interface {
	RecentHistory(ctx context.Context, limit int) ([]models.HistoryRecord, error)
	TrainingSummary(ctx context.Context) (*backend.TrainingSummary, error)
}

// New creates an MCP server with all tools and resources registered.
func New(eng *engine.Engine, local LocalState, remote Remote, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("IronFlow", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("IronFlow workout engine. Query the active session, day streaks, the dominant time-of-day training pattern, and recent workout history. All data belongs to the device owner."),
	)

	h := &handlers{eng: eng, local: local, remote: remote, log: log}

	s.AddTools(
		server.ServerTool{Tool: toolGetActiveSession, Handler: h.getActiveSession},
		server.ServerTool{Tool: toolGetStreaks, Handler: h.getStreaks},
		server.ServerTool{Tool: toolGetTimePattern, Handler: h.getTimePattern},
		server.ServerTool{Tool: toolGetRecentHistory, Handler: h.getRecentHistory},
		server.ServerTool{Tool: toolGetTrainingSummary, Handler: h.getTrainingSummary},
	)

	s.AddResources(
		server.ServerResource{Resource: resDailyContext, Handler: h.dailyContext},
	)

	return s
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	eng    *engine.Engine
	local  LocalState
	remote Remote
	log    *slog.Logger
}

var resDailyContext = mcp.NewResource(
	"ironflow://daily_context",
	"Daily Training Context",
	mcp.WithResourceDescription("Streaks, dominant training pattern, active session (if any), and the most recent workouts — the context a coach needs before answering."),
	mcp.WithMIMEType("application/json"),
)

func (h *handlers) dailyContext(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	now := time.Now()
	payload := map[string]any{
		"date": now.Format("2006-01-02"),
	}

	if workout, err := h.local.Streak("workout"); err == nil {
		payload["workout_streak"] = workout.Display(now)
	} else {
		h.log.Warn("daily_context: streak read failed", "error", err)
	}
	if pattern, err := h.local.Pattern(); err == nil {
		payload["dominant_pattern"] = pattern.Dominant()
	} else {
		h.log.Warn("daily_context: pattern read failed", "error", err)
	}
	if completed, err := h.local.CompletedWorkouts(); err == nil {
		payload["lifetime_workouts"] = completed
	}
	if snap, ok := h.eng.Snapshot(); ok {
		payload["active_session"] = snap
	}
	if history, err := h.remote.RecentHistory(ctx, 5); err == nil {
		payload["recent_history"] = history
	} else {
		h.log.Warn("daily_context: history fetch failed", "error", err)
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
