package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/meltforce/ironflow/internal/guidance"
)

func validKind(kind string) bool {
	switch kind {
	case guidance.KindHint, guidance.KindSpotlight, guidance.KindTour:
		return true
	}
	return false
}

func (s *Server) handleGuidanceFlag(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	if !validKind(kind) {
		writeError(w, http.StatusBadRequest, "unknown kind: "+kind)
		return
	}
	seen, err := s.guidance.HasSeen(kind, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"seen": seen})
}

func (s *Server) handleMarkGuidanceFlag(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	if !validKind(kind) {
		writeError(w, http.StatusBadRequest, "unknown kind: "+kind)
		return
	}
	if err := s.guidance.MarkSeen(kind, chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"seen": true})
}

func (s *Server) handleTourProgress(w http.ResponseWriter, r *http.Request) {
	step, err := s.guidance.Progress(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"step": step})
}

func (s *Server) handleSaveTourProgress(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Step int `json:"step"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.Step < 0 {
		writeError(w, http.StatusBadRequest, "step must be non-negative")
		return
	}
	if err := s.guidance.SaveProgress(chi.URLParam(r, "id"), req.Step); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"step": req.Step})
}

func (s *Server) handleGuidanceReset(w http.ResponseWriter, r *http.Request) {
	if err := s.guidance.ResetAll(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}
