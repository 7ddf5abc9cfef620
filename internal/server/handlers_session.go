package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/meltforce/ironflow/internal/engine"
	"github.com/meltforce/ironflow/internal/models"
	"github.com/meltforce/ironflow/internal/orchestrator"
	"github.com/meltforce/ironflow/internal/session"
)

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Template      models.WorkoutTemplate `json:"template"`
		TargetMinutes int                    `json:"target_minutes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.Template.ID == "" {
		writeError(w, http.StatusBadRequest, "template.id required")
		return
	}

	snap, err := s.engine.Start(r.Context(), req.Template, time.Duration(req.TargetMinutes)*time.Minute)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, engine.ErrSessionActive) {
			status = http.StatusConflict
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

func (s *Server) handleSessionSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.engine.Snapshot()
	if !ok {
		writeError(w, http.StatusNotFound, "no active session")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Pause(); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "paused"})
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Resume(); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "running"})
}

func (s *Server) handleUpsertSet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ExerciseIndex int                        `json:"exercise_index"`
		SetNumber     int                        `json:"set_number"`
		Record        models.SetCompletionRecord `json:"record"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if err := s.engine.UpsertSet(req.ExerciseIndex, req.SetNumber, req.Record); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, engine.ErrNoSession) {
			status = http.StatusNotFound
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

// staticPrompter resolves the post-completion prompts from answers the UI
// sent along with the finish request.
type staticPrompter struct {
	template orchestrator.TemplateDecision
	rating   orchestrator.RatingResponse
	share    bool
}

func (p staticPrompter) ResolveTemplateChange(_ context.Context, _ models.WorkoutTemplate) orchestrator.TemplateDecision {
	if p.template == "" {
		return orchestrator.TemplateDiscard
	}
	return p.template
}

func (p staticPrompter) ResolveRating(_ context.Context) orchestrator.RatingResponse {
	if p.rating == "" {
		return orchestrator.RatingDismissed
	}
	return p.rating
}

func (p staticPrompter) ResolveShare(_ context.Context, _ models.SessionTotals, _ []models.PRKind) bool {
	return p.share
}

func (s *Server) handleFinish(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TemplateDecision orchestrator.TemplateDecision `json:"template_decision"`
		Rating           orchestrator.RatingResponse   `json:"rating"`
		Share            bool                          `json:"share"`
	}
	// An empty body means all defaults; chunked requests report no
	// Content-Length, so decode unconditionally and tolerate EOF.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	res, err := s.engine.Finish(r.Context(), staticPrompter{
		template: req.TemplateDecision,
		rating:   req.Rating,
		share:    req.Share,
	})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, engine.ErrNoSession) {
			status = http.StatusNotFound
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleExit(w http.ResponseWriter, r *http.Request) {
	elapsed, err := s.engine.Exit()
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"elapsed_sec": elapsed})
}

// --- exercise-list edits ---

func indexParam(r *http.Request, name string) (int, error) {
	return strconv.Atoi(chi.URLParam(r, name))
}

func (s *Server) handleAddExercise(w http.ResponseWriter, r *http.Request) {
	var ex models.Exercise
	if err := json.NewDecoder(r.Body).Decode(&ex); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	changed, err := s.engine.Mutate(func(sess *session.Session) bool {
		sess.AddExercise(ex)
		return true
	})
	s.writeMutation(w, changed, err)
}

func (s *Server) handleRemoveExercise(w http.ResponseWriter, r *http.Request) {
	idx, err := indexParam(r, "index")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid index")
		return
	}
	changed, err := s.engine.Mutate(func(sess *session.Session) bool {
		return sess.RemoveExercise(idx)
	})
	s.writeMutation(w, changed, err)
}

func (s *Server) handleSwapExercise(w http.ResponseWriter, r *http.Request) {
	idx, err := indexParam(r, "index")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid index")
		return
	}
	var ex models.Exercise
	if err := json.NewDecoder(r.Body).Decode(&ex); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	changed, err := s.engine.Mutate(func(sess *session.Session) bool {
		return sess.SwapExercise(idx, ex)
	})
	s.writeMutation(w, changed, err)
}

func (s *Server) handleAddSet(w http.ResponseWriter, r *http.Request) {
	idx, err := indexParam(r, "index")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid index")
		return
	}
	changed, err := s.engine.Mutate(func(sess *session.Session) bool {
		return sess.AddSet(idx)
	})
	s.writeMutation(w, changed, err)
}

func (s *Server) handleRemoveSet(w http.ResponseWriter, r *http.Request) {
	idx, err := indexParam(r, "index")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid index")
		return
	}
	setIdx, err := indexParam(r, "setIndex")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid set index")
		return
	}
	changed, err := s.engine.Mutate(func(sess *session.Session) bool {
		return sess.RemoveSet(idx, setIdx)
	})
	s.writeMutation(w, changed, err)
}

// writeMutation reports the outcome of an exercise-list edit. A refused
// edit (floor invariants, bad index) is not an error: the list simply did
// not change.
func (s *Server) writeMutation(w http.ResponseWriter, changed bool, err error) {
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	snap, _ := s.engine.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"changed": changed,
		"session": snap,
	})
}
