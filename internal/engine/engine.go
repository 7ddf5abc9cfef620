// Package engine owns the active workout session and exposes the
// operations the UI surface drives: start, pause/resume, set completion,
// exercise-list edits, and the finish pipeline. All session mutation is
// serialized behind one mutex; the session types themselves stay
// single-owner.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/meltforce/ironflow/internal/backend"
	"github.com/meltforce/ironflow/internal/models"
	"github.com/meltforce/ironflow/internal/orchestrator"
	"github.com/meltforce/ironflow/internal/session"
	"github.com/meltforce/ironflow/internal/state"
)

var (
	// ErrNoSession is returned by operations that need an active session.
	ErrNoSession = errors.New("no active session")
	// ErrSessionActive is returned when starting over an active session.
	ErrSessionActive = errors.New("a session is already active")
)

// Engine coordinates the session lifecycle.
type Engine struct {
	store   *state.Store
	backend *backend.Client
	log     *slog.Logger

	mu      sync.Mutex
	sess    *session.Session
	tracker *session.Tracker
}

// New creates an engine. store backs the tracker's template guard and the
// home-screen state; backend is the remote API. The tracker outlives any
// one session so that re-entering the same template resumes its records.
func New(store *state.Store, bc *backend.Client, log *slog.Logger) *Engine {
	return &Engine{
		store:   store,
		backend: bc,
		log:     log,
		tracker: session.NewTracker(store),
	}
}

// Snapshot is a read-only view of the active session.
type Snapshot struct {
	ID           uuid.UUID                             `json:"id"`
	TemplateID   string                                `json:"template_id"`
	TemplateName string                                `json:"template_name"`
	StartedAt    time.Time                             `json:"started_at"`
	ElapsedSec   int                                   `json:"elapsed_sec"`
	Running      bool                                  `json:"running"`
	OverTarget   bool                                  `json:"over_target"`
	Modified     bool                                  `json:"modified"`
	Exercises    []models.Exercise                     `json:"exercises"`
	Records      map[string]models.SetCompletionRecord `json:"records"`
	Totals       models.SessionTotals                  `json:"totals"`
}

// Start instantiates a session from a template. The set-completion tracker
// is primed first: records survive when the template matches the last one
// tracked, and are cleared otherwise.
func (e *Engine) Start(ctx context.Context, tpl models.WorkoutTemplate, target time.Duration) (*Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sess != nil {
		return nil, ErrSessionActive
	}
	if len(tpl.Exercises) == 0 {
		return nil, errors.New("template has no exercises")
	}

	if err := e.tracker.PrimeForTemplate(tpl.ID); err != nil {
		return nil, err
	}
	e.sess = session.New(tpl, e.tracker, target)

	// Remote registration is best-effort; the workout happens either way.
	if err := e.backend.CreateSession(ctx, e.sess.ID, tpl.ID, e.sess.StartedAt); err != nil {
		e.log.Warn("remote session create failed", "session", e.sess.ID, "error", err)
	}

	return e.snapshotLocked(), nil
}

// Snapshot returns the current session view, or ok=false when idle.
func (e *Engine) Snapshot() (*Snapshot, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess == nil {
		return nil, false
	}
	return e.snapshotLocked(), true
}

func (e *Engine) snapshotLocked() *Snapshot {
	s := e.sess
	return &Snapshot{
		ID:           s.ID,
		TemplateID:   s.TemplateID,
		TemplateName: s.TemplateName,
		StartedAt:    s.StartedAt,
		ElapsedSec:   s.Timer().ElapsedSeconds(),
		Running:      s.Timer().Running(),
		OverTarget:   s.Timer().OverTarget(),
		Modified:     s.Modified(),
		Exercises:    s.Exercises,
		Records:      s.Tracker().Snapshot(),
		Totals:       s.Totals(),
	}
}

// Pause freezes the session timer.
func (e *Engine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess == nil {
		return ErrNoSession
	}
	e.sess.Timer().Pause()
	return nil
}

// Resume continues the session timer.
func (e *Engine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess == nil {
		return ErrNoSession
	}
	e.sess.Timer().Resume()
	return nil
}

// UpsertSet records performed values for one set of the active session.
func (e *Engine) UpsertSet(exerciseIndex, setNumber int, rec models.SetCompletionRecord) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess == nil {
		return ErrNoSession
	}
	key, ok := e.sess.SetKeyAt(exerciseIndex, setNumber)
	if !ok {
		return errors.New("no such set")
	}
	if rec.Completed && rec.CompletedAt == nil {
		now := time.Now()
		rec.CompletedAt = &now
	}
	e.sess.Tracker().Upsert(key, rec)
	return nil
}

// Mutate runs one exercise-list edit under the engine lock. The callback
// gets the live session; it must not retain it.
func (e *Engine) Mutate(fn func(*session.Session) bool) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess == nil {
		return false, ErrNoSession
	}
	return fn(e.sess), nil
}

// Finish runs the completion pipeline and clears the active session. The
// prompter supplies the template/rating/share answers; returns the final
// result once every gate resolved.
func (e *Engine) Finish(ctx context.Context, prompter orchestrator.Prompter) (*orchestrator.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess == nil {
		return nil, ErrNoSession
	}

	orch := orchestrator.New(e.backend, e.store, prompter, e.log)
	res, err := orch.Finish(ctx, e.sess)
	if err != nil {
		return nil, err
	}
	e.sess = nil
	return res, nil
}

// Exit abandons the session without running the completion pipeline and
// returns the elapsed seconds. Tracked set records stay put: re-entering
// the same template resumes them.
func (e *Engine) Exit() (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess == nil {
		return 0, ErrNoSession
	}
	elapsed := e.sess.Timer().Stop()
	e.sess = nil
	return elapsed, nil
}
