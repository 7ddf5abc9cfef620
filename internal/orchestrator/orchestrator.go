// Package orchestrator sequences everything that happens when a workout
// session finishes: per-set statistics submission with PR collection,
// history and summary persistence, local streak/pattern updates, the
// save-template branch for modified sessions, and the rating/share
// micro-flow. Backend writes are best-effort: a failed step is logged and
// never blocks the steps after it, so the user always reaches the
// post-completion flow.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/meltforce/ironflow/internal/backend"
	"github.com/meltforce/ironflow/internal/heuristic"
	"github.com/meltforce/ironflow/internal/models"
	"github.com/meltforce/ironflow/internal/session"
	"github.com/meltforce/ironflow/internal/state"
)

// ratingWorkoutThreshold is the lifetime completed-workout count at which
// the app-rating prompt becomes due.
const ratingWorkoutThreshold = 5

// streakCategory is the activity category session completions count toward.
const streakCategory = "workout"

// Backend is the slice of the remote API the completion pipeline needs.
// *backend.Client satisfies it.
type Backend interface {
	UpsertSetStats(ctx context.Context, update models.SetStatsUpdate) ([]models.PRKind, error)
	SaveHistory(ctx context.Context, rec models.HistoryRecord) error
	RecomputeTrainingSummary(ctx context.Context) (*backend.TrainingSummary, error)
	CompleteSession(ctx context.Context, id uuid.UUID, durationSec int) error
	SaveTemplate(ctx context.Context, tpl models.WorkoutTemplate) error
	UpdateTemplate(ctx context.Context, tpl models.WorkoutTemplate) error
	CreatePost(ctx context.Context, p backend.Post) (*backend.Post, error)
}

var _ Backend = (*backend.Client)(nil)

// PrefStore is the slice of the local state store the pipeline needs.
// *state.Store satisfies it.
type PrefStore interface {
	Streak(category string) (heuristic.Streak, error)
	SaveStreak(category string, st heuristic.Streak) error
	RecordPatternSample(b models.TimeBucket, at time.Time) error
	CompletedWorkouts() (int, error)
	IncrementCompletedWorkouts() (int, error)
	RatingState() (string, error)
	SetRatingState(st string) error
}

var _ PrefStore = (*state.Store)(nil)

// TemplateDecision is the user's answer to the save-template prompt shown
// when a session diverged from its template.
type TemplateDecision string

const (
	TemplateSaveAsNew TemplateDecision = "save_as_new"
	TemplateUpdate    TemplateDecision = "update"
	TemplateDiscard   TemplateDecision = "discard"
)

// RatingResponse is the tri-state answer to the app-rating prompt. The UI
// routes positive answers to the store review page and negative ones to
// the feedback channel; this package only persists the resolution.
type RatingResponse string

const (
	RatingPositive  RatingResponse = "positive"
	RatingNegative  RatingResponse = "negative"
	RatingDismissed RatingResponse = "dismissed"
)

// Prompter supplies the user's answers to the post-completion prompts. The
// pipeline blocks on each call; implementations bridge to whatever UI is
// driving the engine.
type Prompter interface {
	ResolveTemplateChange(ctx context.Context, tpl models.WorkoutTemplate) TemplateDecision
	ResolveRating(ctx context.Context) RatingResponse
	ResolveShare(ctx context.Context, totals models.SessionTotals, prs []models.PRKind) bool
}

// Result is what the navigation caller gets back once every gate resolved.
type Result struct {
	ElapsedSec int                  `json:"elapsed_sec"`
	Totals     models.SessionTotals `json:"totals"`
	PRs        []models.PRKind      `json:"prs,omitempty"`
	Template   TemplateDecision     `json:"template_decision,omitempty"`
	Rating     RatingResponse       `json:"rating,omitempty"`
	Shared     bool                 `json:"shared"`
}

// Orchestrator runs the session-completion pipeline.
type Orchestrator struct {
	backend  Backend
	prefs    PrefStore
	prompter Prompter
	log      *slog.Logger
	now      func() time.Time
}

// New creates an orchestrator.
func New(b Backend, prefs PrefStore, prompter Prompter, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		backend:  b,
		prefs:    prefs,
		prompter: prompter,
		log:      log,
		now:      time.Now,
	}
}

// Finish drives a session through the full completion flow and returns the
// final elapsed duration along with what happened at each gate. The phases
// run strictly in order: persistence, then the template prompt (only for
// modified sessions), then the rating gate, then the share gate. Only the
// persistence phase touches the network unconditionally; it runs detached
// from the caller's cancellation so navigating away cannot abort in-flight
// writes.
func (o *Orchestrator) Finish(ctx context.Context, sess *session.Session) (*Result, error) {
	if sess == nil {
		return nil, errors.New("no active session")
	}

	elapsed := sess.Timer().Stop()
	totals := sess.Totals()
	now := o.now()

	// Phase 2: best-effort persistence, shielded from caller cancellation.
	pctx := context.WithoutCancel(ctx)
	prs := o.persist(pctx, sess, totals, elapsed, now)

	res := &Result{
		ElapsedSec: elapsed,
		Totals:     totals,
		PRs:        prs,
	}

	// Phase 3: template branch, only when the list diverged.
	if sess.Modified() {
		res.Template = o.resolveTemplate(ctx, sess)
	}

	// Phase 4: rating gate, then share gate, strictly in that order and
	// each at most once.
	res.Rating = o.ratingGate(ctx)
	res.Shared = o.shareGate(ctx, pctx, sess, totals, prs)

	return res, nil
}

// persist runs every backend and local write for a finished session. Each
// step's failure is logged and swallowed; the returned PR kinds come from
// whichever set-stat submissions succeeded.
func (o *Orchestrator) persist(ctx context.Context, sess *session.Session, totals models.SessionTotals, elapsed int, now time.Time) []models.PRKind {
	completed := sess.CompletedSets()

	// Per-set submissions are independent of one another; no ordering is
	// required, so they go out concurrently.
	var (
		mu  sync.Mutex
		prs []models.PRKind
		wg  sync.WaitGroup
	)
	for _, cs := range completed {
		wg.Add(1)
		go func(cs session.CompletedSet) {
			defer wg.Done()
			update := models.SetStatsUpdate{
				SessionID:   sess.ID,
				ExerciseID:  cs.ExerciseID,
				SetNumber:   cs.SetNumber,
				WeightKg:    cs.Record.WeightKg,
				Reps:        cs.Record.Reps,
				VideoURL:    cs.Record.VideoURL,
				VelocityMPS: cs.Record.VelocityMPS,
			}
			achieved, err := o.backend.UpsertSetStats(ctx, update)
			if err != nil {
				o.log.Warn("set stats update failed", "set", cs.Key, "error", err)
				return
			}
			mu.Lock()
			prs = append(prs, achieved...)
			mu.Unlock()
		}(cs)
	}
	wg.Wait()

	rec := models.HistoryRecord{
		SessionID:     sess.ID,
		TemplateID:    sess.TemplateID,
		TemplateName:  sess.TemplateName,
		StartedAt:     sess.StartedAt,
		CompletedAt:   now,
		DurationSec:   elapsed,
		Totals:        totals,
		PRsAchieved:   prs,
		FromTemplate:  !sess.Modified(),
		ExerciseCount: len(sess.Exercises),
	}
	if err := o.backend.SaveHistory(ctx, rec); err != nil {
		o.log.Warn("history save failed", "session", sess.ID, "error", err)
	}
	if _, err := o.backend.RecomputeTrainingSummary(ctx); err != nil {
		o.log.Warn("training summary recompute failed", "error", err)
	}
	if err := o.backend.CompleteSession(ctx, sess.ID, elapsed); err != nil {
		o.log.Warn("remote session completion failed", "session", sess.ID, "error", err)
	}

	o.updateLocal(now)
	return prs
}

// updateLocal applies the streak, pattern, and counter updates. Failures
// here are as non-fatal as backend ones.
func (o *Orchestrator) updateLocal(now time.Time) {
	streak, err := o.prefs.Streak(streakCategory)
	if err != nil {
		o.log.Warn("streak read failed", "error", err)
	} else {
		streak.RecordActivity(now)
		if err := o.prefs.SaveStreak(streakCategory, streak); err != nil {
			o.log.Warn("streak save failed", "error", err)
		}
	}

	if err := o.prefs.RecordPatternSample(models.BucketForHour(now.Hour()), now); err != nil {
		o.log.Warn("pattern sample record failed", "error", err)
	}

	if _, err := o.prefs.IncrementCompletedWorkouts(); err != nil {
		o.log.Warn("workout counter increment failed", "error", err)
	}
}

// resolveTemplate prompts for what to do with mid-session edits and applies
// the answer. Save failures are logged, not surfaced; the user already
// answered the prompt and is on the way out.
func (o *Orchestrator) resolveTemplate(ctx context.Context, sess *session.Session) TemplateDecision {
	decision := o.prompter.ResolveTemplateChange(ctx, sess.AsTemplate(sess.TemplateID, sess.TemplateName))
	switch decision {
	case TemplateSaveAsNew:
		tpl := sess.AsTemplate(uuid.NewString(), fmt.Sprintf("%s (edited)", sess.TemplateName))
		if err := o.backend.SaveTemplate(context.WithoutCancel(ctx), tpl); err != nil {
			o.log.Warn("template save failed", "template", tpl.ID, "error", err)
		}
	case TemplateUpdate:
		tpl := sess.AsTemplate(sess.TemplateID, sess.TemplateName)
		if err := o.backend.UpdateTemplate(context.WithoutCancel(ctx), tpl); err != nil {
			o.log.Warn("template update failed", "template", tpl.ID, "error", err)
		}
	case TemplateDiscard:
		// Nothing to do.
	}
	return decision
}

// ratingGate shows the app-rating prompt when it is due: the lifetime
// completed-workout counter has crossed the threshold and no earlier
// resolution exists. Returns the response, or empty when not shown.
func (o *Orchestrator) ratingGate(ctx context.Context) RatingResponse {
	state, err := o.prefs.RatingState()
	if err != nil {
		o.log.Warn("rating state read failed", "error", err)
		return ""
	}
	if state != "" {
		return ""
	}
	// The counter was already bumped for this session in updateLocal.
	count, err := o.prefs.CompletedWorkouts()
	if err != nil {
		o.log.Warn("workout count read failed", "error", err)
		return ""
	}
	if count < ratingWorkoutThreshold {
		return ""
	}

	resp := o.prompter.ResolveRating(ctx)
	var persisted string
	switch resp {
	case RatingPositive:
		persisted = "rated"
	case RatingNegative:
		persisted = "declined"
	case RatingDismissed:
		persisted = "dismissed"
	default:
		return resp
	}
	if err := o.prefs.SetRatingState(persisted); err != nil {
		o.log.Warn("rating state save failed", "error", err)
	}
	return resp
}

// shareGate offers a social share when the session achieved at least one
// PR. Accepting publishes a summary post; failure to publish is logged,
// the user is not pulled back in.
func (o *Orchestrator) shareGate(ctx, pctx context.Context, sess *session.Session, totals models.SessionTotals, prs []models.PRKind) bool {
	if len(prs) == 0 {
		return false
	}
	if !o.prompter.ResolveShare(ctx, totals, prs) {
		return false
	}

	post := backend.Post{
		ID:   uuid.New(),
		Body: shareBody(sess.TemplateName, totals, prs),
	}
	if _, err := o.backend.CreatePost(pctx, post); err != nil {
		o.log.Warn("share post failed", "session", sess.ID, "error", err)
	}
	return true
}

func shareBody(name string, totals models.SessionTotals, prs []models.PRKind) string {
	return fmt.Sprintf("Finished %s: %d sets, %d reps, %.0f kg total volume. PRs: %d",
		name, totals.CompletedSets, totals.TotalReps, totals.TotalVolumeKg, len(prs))
}
