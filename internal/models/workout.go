package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SetSpec is one prescribed set within an exercise. Number is 1-based and
// always contiguous within its exercise.
type SetSpec struct {
	Number         int     `json:"number"`
	TargetReps     int     `json:"target_reps"`
	TargetWeightKg float64 `json:"target_weight_kg"`
	RestSec        int     `json:"rest_sec"`
}

// Exercise is one entry in a template or an active session.
type Exercise struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	MuscleGroup string    `json:"muscle_group"`
	Equipment   string    `json:"equipment"`
	Sets        []SetSpec `json:"sets"`
}

// WorkoutTemplate is the reusable definition a session is instantiated from.
type WorkoutTemplate struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Exercises []Exercise `json:"exercises"`
}

// SetKey identifies one conceptual set across screen recompositions and
// navigation: the same (template, exercise, ordinal) always maps to the
// same key.
func SetKey(templateID, exerciseID string, ordinal int) string {
	return fmt.Sprintf("%s:%s:%d", templateID, exerciseID, ordinal)
}

// SetCompletionRecord holds what the user actually performed for one set.
// Created lazily on first interaction, updated afterwards, never deleted
// while the same template is active.
type SetCompletionRecord struct {
	Completed   bool       `json:"completed"`
	WeightKg    float64    `json:"weight_kg"`
	Reps        int        `json:"reps"`
	VideoURL    string     `json:"video_url,omitempty"`
	VelocityMPS *float64   `json:"velocity_mps,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// SessionTotals are the aggregates computed when a session finishes.
type SessionTotals struct {
	CompletedSets int     `json:"completed_sets"`
	TotalReps     int     `json:"total_reps"`
	TotalVolumeKg float64 `json:"total_volume_kg"`
}

// PRKind names a personal-record category the backend may report for a
// completed set.
type PRKind string

const (
	PRHeaviestWeight PRKind = "heaviest_weight"
	PRMostReps       PRKind = "most_reps"
	PRBestSetVolume  PRKind = "best_set_volume"
	PRBestVelocity   PRKind = "best_velocity"
)

// SetStatsUpdate is one per-set statistics submission sent to the backend
// when a session completes. The backend answers with the list of
// personal-record kinds the set achieved, possibly empty.
type SetStatsUpdate struct {
	SessionID   uuid.UUID `json:"session_id"`
	ExerciseID  string    `json:"exercise_id"`
	SetNumber   int       `json:"set_number"`
	WeightKg    float64   `json:"weight_kg"`
	Reps        int       `json:"reps"`
	VideoURL    string    `json:"video_url,omitempty"`
	VelocityMPS *float64  `json:"velocity_mps,omitempty"`
}

// HistoryRecord is the aggregate written to workout history when a session
// completes.
type HistoryRecord struct {
	SessionID     uuid.UUID     `json:"session_id"`
	TemplateID    string        `json:"template_id"`
	TemplateName  string        `json:"template_name"`
	StartedAt     time.Time     `json:"started_at"`
	CompletedAt   time.Time     `json:"completed_at"`
	DurationSec   int           `json:"duration_sec"`
	Totals        SessionTotals `json:"totals"`
	PRsAchieved   []PRKind      `json:"prs_achieved,omitempty"`
	FromTemplate  bool          `json:"from_template"`
	ExerciseCount int           `json:"exercise_count"`
}
