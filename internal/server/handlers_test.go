package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/meltforce/ironflow/internal/backend"
	"github.com/meltforce/ironflow/internal/engine"
	"github.com/meltforce/ironflow/internal/guidance"
	"github.com/meltforce/ironflow/internal/models"
	"github.com/meltforce/ironflow/internal/state"
)

// newRemoteStub returns an httptest server standing in for the remote
// backend. It accepts every write with an empty JSON object and serves a
// small canned feed.
func newRemoteStub(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/stats/sets", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"prs_achieved": ["heaviest_weight"]}`))
	})
	mux.HandleFunc("/api/v1/feed", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"body": "hello from the feed"}]`))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// newTestServer wires a Server over a real state database in a temp dir and
// the given remote stub.
func newTestServer(t *testing.T, remoteURL string) *Server {
	t.Helper()
	st, err := state.Open(t.TempDir())
	if err != nil {
		t.Fatalf("opening state db: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	bc := backend.NewClient(remoteURL, "test-key")
	eng := engine.New(st, bc, log)
	return New(eng, st, guidance.NewStore(st.DB()), bc, "", log)
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
}

func benchTemplate() models.WorkoutTemplate {
	return models.WorkoutTemplate{
		ID:   "tpl-upper",
		Name: "Upper Body",
		Exercises: []models.Exercise{
			{ID: "bench-press", Name: "Bench Press", Sets: []models.SetSpec{
				{Number: 1, TargetReps: 8, TargetWeightKg: 80, RestSec: 120},
				{Number: 2, TargetReps: 8, TargetWeightKg: 80, RestSec: 120},
			}},
		},
	}
}

func startSession(t *testing.T, s *Server) {
	t.Helper()
	rec := doJSON(t, s, http.MethodPost, "/api/v1/session/start", map[string]any{
		"template":       benchTemplate(),
		"target_minutes": 60,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("start status = %d: %s", rec.Code, rec.Body.String())
	}
}

// TestSessionLifecycle drives a session start to finish over HTTP: start,
// snapshot, record two sets, finish, and verify the result and that the
// session is gone afterwards.
func TestSessionLifecycle(t *testing.T) {
	s := newTestServer(t, newRemoteStub(t).URL)
	startSession(t, s)

	rec := doJSON(t, s, http.MethodGet, "/api/v1/session", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("snapshot status = %d", rec.Code)
	}
	var snap engine.Snapshot
	decode(t, rec, &snap)
	if snap.TemplateID != "tpl-upper" || !snap.Running {
		t.Errorf("snapshot = %+v", snap)
	}

	for n := 1; n <= 2; n++ {
		rec = doJSON(t, s, http.MethodPost, "/api/v1/session/sets", map[string]any{
			"exercise_index": 0,
			"set_number":     n,
			"record":         models.SetCompletionRecord{Completed: true, WeightKg: 82.5, Reps: 8},
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("upsert set %d status = %d: %s", n, rec.Code, rec.Body.String())
		}
	}

	rec = doJSON(t, s, http.MethodPost, "/api/v1/session/finish", map[string]any{"share": false})
	if rec.Code != http.StatusOK {
		t.Fatalf("finish status = %d: %s", rec.Code, rec.Body.String())
	}
	var res struct {
		Totals models.SessionTotals `json:"totals"`
		PRs    []models.PRKind      `json:"prs"`
		Shared bool                 `json:"shared"`
	}
	decode(t, rec, &res)
	if res.Totals.CompletedSets != 2 || res.Totals.TotalReps != 16 {
		t.Errorf("totals = %+v", res.Totals)
	}
	if len(res.PRs) != 2 { // stub reports one PR per set
		t.Errorf("prs = %v", res.PRs)
	}
	if res.Shared {
		t.Error("shared without accepting the prompt")
	}

	if rec = doJSON(t, s, http.MethodGet, "/api/v1/session", nil); rec.Code != http.StatusNotFound {
		t.Errorf("snapshot after finish = %d, want 404", rec.Code)
	}
}

// TestFinishChunkedBody verifies the finish options are honored when the
// request carries no Content-Length, as chunked transfers do.
func TestFinishChunkedBody(t *testing.T) {
	s := newTestServer(t, newRemoteStub(t).URL)
	startSession(t, s)

	rec := doJSON(t, s, http.MethodPost, "/api/v1/session/sets", map[string]any{
		"exercise_index": 0,
		"set_number":     1,
		"record":         models.SetCompletionRecord{Completed: true, WeightKg: 82.5, Reps: 8},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("upsert set status = %d: %s", rec.Code, rec.Body.String())
	}

	// Wrapping the reader hides its length, so the request reports
	// ContentLength -1 like a real chunked upload.
	body := io.MultiReader(strings.NewReader(`{"share": true}`))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/session/finish", body)
	req.Header.Set("Content-Type", "application/json")
	if req.ContentLength != -1 {
		t.Fatalf("ContentLength = %d, want -1", req.ContentLength)
	}
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("finish status = %d: %s", rec.Code, rec.Body.String())
	}
	var res struct {
		Shared bool `json:"shared"`
	}
	decode(t, rec, &res)
	if !res.Shared {
		t.Error("share option in chunked body was ignored")
	}
}

// TestStartConflicts verifies a second start while a session is active
// returns 409.
func TestStartConflicts(t *testing.T) {
	s := newTestServer(t, newRemoteStub(t).URL)
	startSession(t, s)

	rec := doJSON(t, s, http.MethodPost, "/api/v1/session/start", map[string]any{
		"template": benchTemplate(),
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("second start status = %d, want 409", rec.Code)
	}
}

// TestSessionEndpointsWithoutSession verifies the 404 paths.
func TestSessionEndpointsWithoutSession(t *testing.T) {
	s := newTestServer(t, newRemoteStub(t).URL)
	for _, ep := range []struct{ method, path string }{
		{http.MethodGet, "/api/v1/session"},
		{http.MethodPost, "/api/v1/session/pause"},
		{http.MethodPost, "/api/v1/session/resume"},
		{http.MethodPost, "/api/v1/session/finish"},
		{http.MethodPost, "/api/v1/session/exit"},
	} {
		rec := doJSON(t, s, ep.method, ep.path, nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s %s = %d, want 404", ep.method, ep.path, rec.Code)
		}
	}
}

// TestExitPreservesRecords verifies exiting and restarting the same
// template keeps the recorded sets.
func TestExitPreservesRecords(t *testing.T) {
	s := newTestServer(t, newRemoteStub(t).URL)
	startSession(t, s)

	rec := doJSON(t, s, http.MethodPost, "/api/v1/session/sets", map[string]any{
		"exercise_index": 0,
		"set_number":     1,
		"record":         models.SetCompletionRecord{Completed: true, WeightKg: 80, Reps: 8},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("upsert status = %d", rec.Code)
	}

	if rec = doJSON(t, s, http.MethodPost, "/api/v1/session/exit", nil); rec.Code != http.StatusOK {
		t.Fatalf("exit status = %d", rec.Code)
	}

	startSession(t, s)
	rec = doJSON(t, s, http.MethodGet, "/api/v1/session", nil)
	var snap engine.Snapshot
	decode(t, rec, &snap)
	if snap.Totals.CompletedSets != 1 {
		t.Errorf("completed sets after re-entry = %d, want 1", snap.Totals.CompletedSets)
	}
}

// TestExerciseMutations exercises the edit endpoints and the refused-edit
// contract: a floored removal returns changed=false with status 200.
func TestExerciseMutations(t *testing.T) {
	s := newTestServer(t, newRemoteStub(t).URL)
	startSession(t, s)

	type mutation struct {
		Changed bool            `json:"changed"`
		Session engine.Snapshot `json:"session"`
	}

	rec := doJSON(t, s, http.MethodPost, "/api/v1/session/exercises", models.Exercise{ID: "row", Name: "Barbell Row"})
	var m mutation
	decode(t, rec, &m)
	if !m.Changed || len(m.Session.Exercises) != 2 {
		t.Fatalf("add exercise: changed=%v exercises=%d", m.Changed, len(m.Session.Exercises))
	}
	if !m.Session.Modified {
		t.Error("session not marked modified after edit")
	}

	rec = doJSON(t, s, http.MethodPost, "/api/v1/session/exercises/0/sets", nil)
	decode(t, rec, &m)
	if !m.Changed || len(m.Session.Exercises[0].Sets) != 3 {
		t.Fatalf("add set: changed=%v sets=%d", m.Changed, len(m.Session.Exercises[0].Sets))
	}

	rec = doJSON(t, s, http.MethodDelete, "/api/v1/session/exercises/0/sets/0", nil)
	decode(t, rec, &m)
	if !m.Changed || m.Session.Exercises[0].Sets[0].Number != 1 {
		t.Fatalf("remove set: changed=%v first number=%d", m.Changed, m.Session.Exercises[0].Sets[0].Number)
	}

	rec = doJSON(t, s, http.MethodPut, "/api/v1/session/exercises/0", models.Exercise{ID: "incline-press", Name: "Incline Press"})
	decode(t, rec, &m)
	if !m.Changed || m.Session.Exercises[0].ID != "incline-press" {
		t.Fatalf("swap: changed=%v id=%s", m.Changed, m.Session.Exercises[0].ID)
	}

	rec = doJSON(t, s, http.MethodDelete, "/api/v1/session/exercises/1", nil)
	decode(t, rec, &m)
	if !m.Changed || len(m.Session.Exercises) != 1 {
		t.Fatalf("remove exercise: changed=%v exercises=%d", m.Changed, len(m.Session.Exercises))
	}

	// Removing the last exercise is refused, not an error.
	rec = doJSON(t, s, http.MethodDelete, "/api/v1/session/exercises/0", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("floored remove status = %d, want 200", rec.Code)
	}
	decode(t, rec, &m)
	if m.Changed {
		t.Error("removing the last exercise reported a change")
	}
}

// TestHomeSummary verifies the home endpoint aggregates streaks, pattern,
// tier, and the counter, and that the pattern endpoints adjust it.
func TestHomeSummary(t *testing.T) {
	s := newTestServer(t, newRemoteStub(t).URL)

	rec := doJSON(t, s, http.MethodGet, "/api/v1/home", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("home status = %d", rec.Code)
	}
	var home homeSummary
	decode(t, rec, &home)
	if home.WorkoutStreak != 0 || home.DominantPattern != models.BucketUnknown || home.UserTier != models.TierFree {
		t.Errorf("fresh home = %+v", home)
	}

	rec = doJSON(t, s, http.MethodPut, "/api/v1/home/pattern", map[string]string{"bucket": "evening"})
	if rec.Code != http.StatusOK {
		t.Fatalf("set pattern status = %d: %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, s, http.MethodGet, "/api/v1/home", nil)
	decode(t, rec, &home)
	if home.DominantPattern != models.BucketEvening || !home.ManualPattern {
		t.Errorf("home after manual pattern = %+v", home)
	}

	rec = doJSON(t, s, http.MethodDelete, "/api/v1/home/pattern", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("clear pattern status = %d", rec.Code)
	}
	rec = doJSON(t, s, http.MethodGet, "/api/v1/home", nil)
	decode(t, rec, &home)
	if home.ManualPattern {
		t.Error("manual pattern still set after clear")
	}

	rec = doJSON(t, s, http.MethodPut, "/api/v1/home/pattern", map[string]string{"bucket": "brunch"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown bucket status = %d, want 400", rec.Code)
	}
}

// TestPromoAndTierEndpoints verifies promo impression counting and the
// local tier cache both surface through the home summary.
func TestPromoAndTierEndpoints(t *testing.T) {
	s := newTestServer(t, newRemoteStub(t).URL)

	for want := 1; want <= 2; want++ {
		rec := doJSON(t, s, http.MethodPost, "/api/v1/home/promo/impression", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("impression status = %d", rec.Code)
		}
		var resp map[string]int
		decode(t, rec, &resp)
		if resp["impressions"] != want {
			t.Errorf("impressions = %d, want %d", resp["impressions"], want)
		}
	}

	rec := doJSON(t, s, http.MethodPut, "/api/v1/home/tier", map[string]string{"tier": "premium"})
	if rec.Code != http.StatusOK {
		t.Fatalf("set tier status = %d: %s", rec.Code, rec.Body.String())
	}
	if rec = doJSON(t, s, http.MethodPut, "/api/v1/home/tier", map[string]string{"tier": "gold"}); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown tier status = %d, want 400", rec.Code)
	}

	rec = doJSON(t, s, http.MethodGet, "/api/v1/home", nil)
	var home homeSummary
	decode(t, rec, &home)
	if home.PromoImpressions != 2 {
		t.Errorf("promo impressions = %d, want 2", home.PromoImpressions)
	}
	if home.UserTier != models.TierPremium {
		t.Errorf("tier = %s, want premium", home.UserTier)
	}
}

// TestStreakActivityEndpoint verifies nutrition check-ins bump the streak
// and unknown categories are rejected.
func TestStreakActivityEndpoint(t *testing.T) {
	s := newTestServer(t, newRemoteStub(t).URL)

	rec := doJSON(t, s, http.MethodPost, "/api/v1/streaks/nutrition/activity", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("activity status = %d", rec.Code)
	}
	var resp map[string]int
	decode(t, rec, &resp)
	if resp["streak"] != 1 {
		t.Errorf("streak = %d, want 1", resp["streak"])
	}

	// Same-day repeat stays at 1.
	rec = doJSON(t, s, http.MethodPost, "/api/v1/streaks/nutrition/activity", nil)
	decode(t, rec, &resp)
	if resp["streak"] != 1 {
		t.Errorf("streak after repeat = %d, want 1", resp["streak"])
	}

	rec = doJSON(t, s, http.MethodPost, "/api/v1/streaks/meditation/activity", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown category status = %d, want 400", rec.Code)
	}
}

// TestGuidanceEndpoints verifies flag reads/marks, tour progress, kind
// validation, and the reset.
func TestGuidanceEndpoints(t *testing.T) {
	s := newTestServer(t, newRemoteStub(t).URL)

	rec := doJSON(t, s, http.MethodGet, "/api/v1/guidance/hint/rest-timer", nil)
	var seen map[string]bool
	decode(t, rec, &seen)
	if seen["seen"] {
		t.Error("fresh hint reported seen")
	}

	if rec = doJSON(t, s, http.MethodPost, "/api/v1/guidance/hint/rest-timer", nil); rec.Code != http.StatusOK {
		t.Fatalf("mark status = %d", rec.Code)
	}
	rec = doJSON(t, s, http.MethodGet, "/api/v1/guidance/hint/rest-timer", nil)
	decode(t, rec, &seen)
	if !seen["seen"] {
		t.Error("marked hint not reported seen")
	}

	if rec = doJSON(t, s, http.MethodGet, "/api/v1/guidance/banner/x", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown kind status = %d, want 400", rec.Code)
	}

	rec = doJSON(t, s, http.MethodPut, "/api/v1/guidance/tours/first-workout/progress", map[string]int{"step": 4})
	if rec.Code != http.StatusOK {
		t.Fatalf("save progress status = %d: %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, s, http.MethodGet, "/api/v1/guidance/tours/first-workout/progress", nil)
	var prog map[string]int
	decode(t, rec, &prog)
	if prog["step"] != 4 {
		t.Errorf("step = %d, want 4", prog["step"])
	}

	rec = doJSON(t, s, http.MethodPut, "/api/v1/guidance/tours/first-workout/progress", map[string]int{"step": -1})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("negative step status = %d, want 400", rec.Code)
	}

	if rec = doJSON(t, s, http.MethodPost, "/api/v1/guidance/reset", nil); rec.Code != http.StatusOK {
		t.Fatalf("reset status = %d", rec.Code)
	}
	rec = doJSON(t, s, http.MethodGet, "/api/v1/guidance/hint/rest-timer", nil)
	decode(t, rec, &seen)
	if seen["seen"] {
		t.Error("hint survived reset")
	}
}

// TestFeedProxy verifies the feed passthrough and the 502 on remote
// failure.
func TestFeedProxy(t *testing.T) {
	s := newTestServer(t, newRemoteStub(t).URL)

	rec := doJSON(t, s, http.MethodGet, "/api/v1/feed?limit=5", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("feed status = %d", rec.Code)
	}
	var posts []backend.Post
	decode(t, rec, &posts)
	if len(posts) != 1 || posts[0].Body != "hello from the feed" {
		t.Errorf("posts = %+v", posts)
	}

	down := newTestServer(t, "http://127.0.0.1:1") // nothing listens here
	if rec = doJSON(t, down, http.MethodGet, "/api/v1/feed", nil); rec.Code != http.StatusBadGateway {
		t.Errorf("feed with dead remote = %d, want 502", rec.Code)
	}
}

// TestSocialProxies verifies the profile and follow passthroughs.
func TestSocialProxies(t *testing.T) {
	remote := newRemoteStub(t)
	s := newTestServer(t, remote.URL)

	if rec := doJSON(t, s, http.MethodGet, "/api/v1/profiles/user-7", nil); rec.Code != http.StatusOK {
		t.Errorf("profile status = %d", rec.Code)
	}
	rec := doJSON(t, s, http.MethodPost, "/api/v1/follows/user-7", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("follow status = %d", rec.Code)
	}
	var resp map[string]bool
	decode(t, rec, &resp)
	if !resp["following"] {
		t.Error("follow did not report following=true")
	}
	rec = doJSON(t, s, http.MethodDelete, "/api/v1/follows/user-7", nil)
	decode(t, rec, &resp)
	if resp["following"] {
		t.Error("unfollow did not report following=false")
	}
}

// TestLikeToggleRevert verifies a failed like toggle tells the UI which
// state to revert to.
func TestLikeToggleRevert(t *testing.T) {
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer remote.Close()
	s := newTestServer(t, remote.URL)

	postID := "b2f9f4f0-5c1e-4a3c-9a56-7d3a0c2f1e88"
	rec := doJSON(t, s, http.MethodPut, fmt.Sprintf("/api/v1/posts/%s/like", postID), map[string]bool{"liked": true})
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	var resp struct {
		Error    string `json:"error"`
		RevertTo bool   `json:"revert_to"`
	}
	decode(t, rec, &resp)
	if resp.Error == "" {
		t.Error("missing error message")
	}
	if resp.RevertTo != false {
		t.Error("revert_to = true, want false for a failed like")
	}
}

// TestAddCommentValidation verifies empty comment bodies are rejected
// before hitting the backend.
func TestAddCommentValidation(t *testing.T) {
	s := newTestServer(t, newRemoteStub(t).URL)
	rec := doJSON(t, s, http.MethodPost, "/api/v1/posts/b2f9f4f0-5c1e-4a3c-9a56-7d3a0c2f1e88/comments", map[string]string{"body": ""})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
