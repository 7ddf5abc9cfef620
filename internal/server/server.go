// Package server exposes the engine to the UI shell over local HTTP.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/meltforce/ironflow/internal/backend"
	"github.com/meltforce/ironflow/internal/engine"
	"github.com/meltforce/ironflow/internal/guidance"
	"github.com/meltforce/ironflow/internal/state"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	engine   *engine.Engine
	store    *state.Store
	guidance *guidance.Store
	backend  *backend.Client
	log      *slog.Logger
	apiKey   string
	router   chi.Router
}

// New creates a new Server with all routes configured.
func New(eng *engine.Engine, store *state.Store, gd *guidance.Store, bc *backend.Client, apiKey string, log *slog.Logger) *Server {
	s := &Server{
		engine:   eng,
		store:    store,
		guidance: gd,
		backend:  bc,
		log:      log,
		apiKey:   apiKey,
		router:   chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(APIKeyAuth(s.apiKey))

		// Active session lifecycle
		r.Post("/session/start", s.handleStartSession)
		r.Get("/session", s.handleSessionSnapshot)
		r.Post("/session/pause", s.handlePause)
		r.Post("/session/resume", s.handleResume)
		r.Post("/session/finish", s.handleFinish)
		r.Post("/session/exit", s.handleExit)
		r.Post("/session/sets", s.handleUpsertSet)

		// Mid-session exercise-list edits
		r.Post("/session/exercises", s.handleAddExercise)
		r.Delete("/session/exercises/{index}", s.handleRemoveExercise)
		r.Put("/session/exercises/{index}", s.handleSwapExercise)
		r.Post("/session/exercises/{index}/sets", s.handleAddSet)
		r.Delete("/session/exercises/{index}/sets/{setIndex}", s.handleRemoveSet)

		// Home screen
		r.Get("/home", s.handleHome)
		r.Put("/home/pattern", s.handleSetManualPattern)
		r.Delete("/home/pattern", s.handleClearManualPattern)
		r.Post("/home/promo/impression", s.handlePromoImpression)
		r.Put("/home/tier", s.handleSetUserTier)
		r.Post("/streaks/{category}/activity", s.handleStreakActivity)

		// Guidance flags
		r.Get("/guidance/{kind}/{id}", s.handleGuidanceFlag)
		r.Post("/guidance/{kind}/{id}", s.handleMarkGuidanceFlag)
		r.Get("/guidance/tours/{id}/progress", s.handleTourProgress)
		r.Put("/guidance/tours/{id}/progress", s.handleSaveTourProgress)
		r.Post("/guidance/reset", s.handleGuidanceReset)

		// Social surface (thin proxy to the remote backend)
		r.Get("/profiles/{id}", s.handleProfile)
		r.Put("/profiles/{id}", s.handleUpdateProfile)
		r.Post("/follows/{id}", s.handleFollow)
		r.Delete("/follows/{id}", s.handleUnfollow)
		r.Get("/feed", s.handleFeed)
		r.Post("/posts", s.handleCreatePost)
		r.Delete("/posts/{id}", s.handleDeletePost)
		r.Put("/posts/{id}/like", s.handleLikeToggle)
		r.Post("/posts/{id}/comments", s.handleAddComment)
		r.Post("/media", s.handleMediaUpload)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
