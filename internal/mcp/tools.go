package mcp

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

// --- Tool definitions ---

var toolGetActiveSession = mcp.NewTool("get_active_session",
	mcp.WithDescription("Snapshot of the workout session in progress: elapsed time, exercises with target sets, completion records, and running totals. Errors when no session is active."),
)

var toolGetStreaks = mcp.NewTool("get_streaks",
	mcp.WithDescription("Current consecutive-day streaks per activity category (workout, nutrition). Values are display values: a streak whose last activity is older than yesterday reads as 0."),
)

var toolGetTimePattern = mcp.NewTool("get_time_pattern",
	mcp.WithDescription("The user's dominant time-of-day training bucket (morning/midday/evening) derived from the last 10 completions, or 'unknown' when not established. Includes the raw sample window."),
)

var toolGetRecentHistory = mcp.NewTool("get_recent_history",
	mcp.WithDescription("Most recent completed workouts with duration, set/rep/volume totals, and achieved PRs."),
	mcp.WithNumber("limit", mcp.Description("Maximum records to return. Defaults to 10.")),
)

var toolGetTrainingSummary = mcp.NewTool("get_training_summary",
	mcp.WithDescription("Rolling training aggregate over the recent period: session count, total sets, reps, and volume in kg."),
)

// --- Tool handlers ---

func (h *handlers) getActiveSession(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap, ok := h.eng.Snapshot()
	if !ok {
		return mcp.NewToolResultError("no active session"), nil
	}
	result, err := mcp.NewToolResultJSON(snap)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getStreaks(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	now := time.Now()
	out := make(map[string]int, 2)
	for _, category := range []string{"workout", "nutrition"} {
		streak, err := h.local.Streak(category)
		if err != nil {
			h.log.Error("mcp get_streaks", "category", category, "error", err)
			return mcp.NewToolResultError("streak read failed: " + err.Error()), nil
		}
		out[category] = streak.Display(now)
	}
	result, err := mcp.NewToolResultJSON(out)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getTimePattern(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pattern, err := h.local.Pattern()
	if err != nil {
		h.log.Error("mcp get_time_pattern", "error", err)
		return mcp.NewToolResultError("pattern read failed: " + err.Error()), nil
	}
	result, err := mcp.NewToolResultJSON(map[string]any{
		"dominant": pattern.Dominant(),
		"manual":   pattern.Manual,
		"samples":  pattern.Samples,
	})
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getRecentHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 10)
	if limit <= 0 {
		limit = 10
	}

	history, err := h.remote.RecentHistory(ctx, limit)
	if err != nil {
		h.log.Error("mcp get_recent_history", "error", err)
		return mcp.NewToolResultError("history fetch failed: " + err.Error()), nil
	}
	result, err := mcp.NewToolResultJSON(history)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getTrainingSummary(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sum, err := h.remote.TrainingSummary(ctx)
	if err != nil {
		h.log.Error("mcp get_training_summary", "error", err)
		return mcp.NewToolResultError("summary fetch failed: " + err.Error()), nil
	}
	result, err := mcp.NewToolResultJSON(sum)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}
