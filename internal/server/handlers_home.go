package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/meltforce/ironflow/internal/models"
)

// homeSummary is everything the home screen needs in one round trip.
type homeSummary struct {
	WorkoutStreak    int               `json:"workout_streak"`
	NutritionStreak  int               `json:"nutrition_streak"`
	DominantPattern  models.TimeBucket `json:"dominant_pattern"`
	ManualPattern    bool              `json:"manual_pattern"`
	UserTier         models.UserTier   `json:"user_tier"`
	CompletedTotal   int               `json:"completed_total"`
	PromoImpressions int               `json:"promo_impressions"`
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	now := time.Now()

	workout, err := s.store.Streak("workout")
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	nutrition, err := s.store.Streak("nutrition")
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	pattern, err := s.store.Pattern()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	tier, err := s.store.UserTier()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	completed, err := s.store.CompletedWorkouts()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	promos, err := s.store.PromoImpressions()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, homeSummary{
		WorkoutStreak:    workout.Display(now),
		NutritionStreak:  nutrition.Display(now),
		DominantPattern:  pattern.Dominant(),
		ManualPattern:    pattern.Manual != "" && pattern.Manual != models.BucketUnknown,
		UserTier:         tier,
		CompletedTotal:   completed,
		PromoImpressions: promos,
	})
}

// handlePromoImpression counts one display of the home promo card. The UI
// uses the running total to cap how often the card appears.
func (s *Server) handlePromoImpression(w http.ResponseWriter, r *http.Request) {
	n, err := s.store.IncrementPromoImpressions()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"impressions": n})
}

func (s *Server) handleSetManualPattern(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Bucket string `json:"bucket"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	bucket, ok := models.ParseTimeBucket(req.Bucket)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown bucket: "+req.Bucket)
		return
	}
	if err := s.store.SetManualBucket(bucket); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"pattern": string(bucket)})
}

func (s *Server) handleClearManualPattern(w http.ResponseWriter, r *http.Request) {
	if err := s.store.SetManualBucket(models.BucketUnknown); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"pattern": "auto"})
}

// handleSetUserTier caches the subscription tier locally. The UI calls this
// after a profile fetch so the home screen renders the right hero card
// without a network round trip.
func (s *Server) handleSetUserTier(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tier string `json:"tier"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	tier, ok := models.ParseUserTier(req.Tier)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown tier: "+req.Tier)
		return
	}
	if err := s.store.SetUserTier(tier); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"tier": string(tier)})
}

// handleStreakActivity records a qualifying activity for a non-workout
// category (nutrition check-ins arrive here; workout streaks are updated
// by the completion pipeline).
func (s *Server) handleStreakActivity(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	if category != "workout" && category != "nutrition" {
		writeError(w, http.StatusBadRequest, "unknown category: "+category)
		return
	}

	streak, err := s.store.Streak(category)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	now := time.Now()
	streak.RecordActivity(now)
	if err := s.store.SaveStreak(category, streak); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"streak": streak.Display(now)})
}
