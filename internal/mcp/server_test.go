package mcp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/meltforce/ironflow/internal/backend"
	"github.com/meltforce/ironflow/internal/engine"
	"github.com/meltforce/ironflow/internal/heuristic"
	"github.com/meltforce/ironflow/internal/models"
	"github.com/meltforce/ironflow/internal/state"
)

// fakeLocal serves canned state to the MCP handlers.
type fakeLocal struct {
	streaks   map[string]heuristic.Streak
	pattern   heuristic.Pattern
	completed int
}

func (f *fakeLocal) Streak(category string) (heuristic.Streak, error) {
	return f.streaks[category], nil
}
func (f *fakeLocal) Pattern() (heuristic.Pattern, error) { return f.pattern, nil }
func (f *fakeLocal) CompletedWorkouts() (int, error)     { return f.completed, nil }

// fakeRemote returns fixed history and summary data.
type fakeRemote struct {
	history []models.HistoryRecord
	summary backend.TrainingSummary
}

func (f *fakeRemote) RecentHistory(_ context.Context, limit int) ([]models.HistoryRecord, error) {
	if limit < len(f.history) {
		return f.history[:limit], nil
	}
	return f.history, nil
}

func (f *fakeRemote) TrainingSummary(context.Context) (*backend.TrainingSummary, error) {
	return &f.summary, nil
}

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	st, err := state.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	t.Cleanup(remote.Close)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return engine.New(st, backend.NewClient(remote.URL, "k"), log)
}

func toolText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if res.IsError {
		t.Fatalf("tool returned error: %+v", res.Content)
	}
	if len(res.Content) == 0 {
		t.Fatal("tool returned no content")
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, want TextContent", res.Content[0])
	}
	return text.Text
}

// TestGetActiveSessionIdle verifies the tool reports an error result when
// no session is running.
func TestGetActiveSessionIdle(t *testing.T) {
	h := &handlers{
		eng:   newTestEngine(t),
		local: &fakeLocal{},
		log:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	res, err := h.getActiveSession(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Error("expected error result with no active session")
	}
}

// TestGetStreaks verifies streaks come back as display values.
func TestGetStreaks(t *testing.T) {
	now := time.Now()
	local := &fakeLocal{streaks: map[string]heuristic.Streak{
		"workout":   {LastActivity: now, Count: 6},
		"nutrition": {LastActivity: now.AddDate(0, 0, -5), Count: 3}, // lapsed
	}}
	h := &handlers{eng: newTestEngine(t), local: local, log: slog.New(slog.NewTextHandler(io.Discard, nil))}

	res, err := h.getStreaks(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatal(err)
	}
	var out map[string]int
	if err := json.Unmarshal([]byte(toolText(t, res)), &out); err != nil {
		t.Fatal(err)
	}
	if out["workout"] != 6 {
		t.Errorf("workout streak = %d, want 6", out["workout"])
	}
	if out["nutrition"] != 0 {
		t.Errorf("nutrition streak = %d, want 0 (lapsed)", out["nutrition"])
	}
}

// TestGetTimePattern verifies the dominant bucket and raw window are
// exposed.
func TestGetTimePattern(t *testing.T) {
	local := &fakeLocal{pattern: heuristic.Pattern{
		Samples: []models.TimeBucket{models.BucketMorning, models.BucketMorning, models.BucketMorning},
	}}
	h := &handlers{eng: newTestEngine(t), local: local, log: slog.New(slog.NewTextHandler(io.Discard, nil))}

	res, err := h.getTimePattern(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatal(err)
	}
	var out struct {
		Dominant models.TimeBucket   `json:"dominant"`
		Samples  []models.TimeBucket `json:"samples"`
	}
	if err := json.Unmarshal([]byte(toolText(t, res)), &out); err != nil {
		t.Fatal(err)
	}
	if out.Dominant != models.BucketMorning {
		t.Errorf("dominant = %s, want morning", out.Dominant)
	}
	if len(out.Samples) != 3 {
		t.Errorf("samples = %d, want 3", len(out.Samples))
	}
}

// TestGetRecentHistoryDefaultLimit verifies the limit argument defaults to
// 10.
func TestGetRecentHistoryDefaultLimit(t *testing.T) {
	remote := &fakeRemote{}
	for i := 0; i < 15; i++ {
		remote.history = append(remote.history, models.HistoryRecord{TemplateName: "Push Day"})
	}
	h := &handlers{eng: newTestEngine(t), local: &fakeLocal{}, remote: remote, log: slog.New(slog.NewTextHandler(io.Discard, nil))}

	res, err := h.getRecentHistory(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatal(err)
	}
	var out []models.HistoryRecord
	if err := json.Unmarshal([]byte(toolText(t, res)), &out); err != nil {
		t.Fatal(err)
	}
	if len(out) != 10 {
		t.Errorf("records = %d, want 10", len(out))
	}
}

// TestGetTrainingSummary verifies the rolling aggregate passthrough.
func TestGetTrainingSummary(t *testing.T) {
	remote := &fakeRemote{summary: backend.TrainingSummary{Sessions: 12, TotalSets: 144, TotalVolumeKg: 86000, PeriodDays: 30}}
	h := &handlers{eng: newTestEngine(t), local: &fakeLocal{}, remote: remote, log: slog.New(slog.NewTextHandler(io.Discard, nil))}

	res, err := h.getTrainingSummary(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatal(err)
	}
	var out backend.TrainingSummary
	if err := json.Unmarshal([]byte(toolText(t, res)), &out); err != nil {
		t.Fatal(err)
	}
	if out.Sessions != 12 || out.TotalVolumeKg != 86000 {
		t.Errorf("summary = %+v", out)
	}
}

// TestDailyContext verifies the resource aggregates streaks, pattern,
// counters, and history into one JSON document.
func TestDailyContext(t *testing.T) {
	now := time.Now()
	h := &handlers{
		eng: newTestEngine(t),
		local: &fakeLocal{
			streaks:   map[string]heuristic.Streak{"workout": {LastActivity: now, Count: 4}},
			pattern:   heuristic.Pattern{Manual: models.BucketEvening},
			completed: 42,
		},
		remote: &fakeRemote{history: []models.HistoryRecord{{TemplateName: "Leg Day"}}},
		log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	req := mcp.ReadResourceRequest{}
	req.Params.URI = "ironflow://daily_context"
	contents, err := h.dailyContext(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if len(contents) != 1 {
		t.Fatalf("contents = %d, want 1", len(contents))
	}
	text, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("contents[0] is %T", contents[0])
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(text.Text), &payload); err != nil {
		t.Fatal(err)
	}
	if payload["workout_streak"].(float64) != 4 {
		t.Errorf("workout_streak = %v", payload["workout_streak"])
	}
	if payload["dominant_pattern"] != "evening" {
		t.Errorf("dominant_pattern = %v", payload["dominant_pattern"])
	}
	if payload["lifetime_workouts"].(float64) != 42 {
		t.Errorf("lifetime_workouts = %v", payload["lifetime_workouts"])
	}
	if _, ok := payload["active_session"]; ok {
		t.Error("active_session present while idle")
	}
	if _, ok := payload["recent_history"]; !ok {
		t.Error("recent_history missing")
	}
}
