// Package session implements the active-workout state: the session timer,
// the set-completion tracker, and the mutable exercise list a user can edit
// mid-workout. All mutation happens from sequential user actions; the types
// here are single-owner and not safe for concurrent writers.
package session

import (
	"time"

	"github.com/google/uuid"
	"github.com/meltforce/ironflow/internal/models"
)

// Session is one in-progress instance of performing a workout template,
// bounded by Start and Finish/Exit. The exercise list starts as a deep copy
// of the template and may diverge from it; any structural edit marks the
// session as modified, which drives the save-template prompt after finish.
type Session struct {
	ID           uuid.UUID
	TemplateID   string
	TemplateName string
	Exercises    []models.Exercise
	StartedAt    time.Time

	timer    *Timer
	tracker  *Tracker
	modified bool
}

// New instantiates a session from a template and starts its timer. target is
// the optional duration used for the over-target signal (0 for none).
func New(tpl models.WorkoutTemplate, tracker *Tracker, target time.Duration) *Session {
	s := &Session{
		ID:           uuid.New(),
		TemplateID:   tpl.ID,
		TemplateName: tpl.Name,
		Exercises:    copyExercises(tpl.Exercises),
		timer:        NewTimer(),
		tracker:      tracker,
	}
	s.timer.Start(target)
	s.StartedAt = time.Now()
	return s
}

// copyExercises deep-copies the exercise list, normalizing it to the
// session invariants: every exercise holds at least one set, numbered
// contiguously from 1. Templates arrive from outside and may violate both.
func copyExercises(src []models.Exercise) []models.Exercise {
	out := make([]models.Exercise, len(src))
	for i, ex := range src {
		out[i] = ex
		out[i].Sets = make([]models.SetSpec, len(ex.Sets))
		copy(out[i].Sets, ex.Sets)
		if len(out[i].Sets) == 0 {
			out[i].Sets = []models.SetSpec{{Number: 1}}
		}
		renumber(out[i].Sets)
	}
	return out
}

// Timer returns the session timer.
func (s *Session) Timer() *Timer {
	return s.timer
}

// Tracker returns the set-completion tracker.
func (s *Session) Tracker() *Tracker {
	return s.tracker
}

// Modified reports whether the exercise list diverged from its template.
func (s *Session) Modified() bool {
	return s.modified
}

// AddExercise appends an exercise to the session. An exercise arriving with
// no sets gets a single zeroed set so the one-set-minimum invariant holds.
func (s *Session) AddExercise(ex models.Exercise) {
	ex.Sets = append([]models.SetSpec(nil), ex.Sets...)
	if len(ex.Sets) == 0 {
		ex.Sets = []models.SetSpec{{Number: 1}}
	}
	renumber(ex.Sets)
	s.Exercises = append(s.Exercises, ex)
	s.modified = true
}

// RemoveExercise removes the exercise at index. Removing the last remaining
// exercise is a no-op, as is an out-of-range index. Returns whether the list
// changed.
func (s *Session) RemoveExercise(index int) bool {
	if index < 0 || index >= len(s.Exercises) || len(s.Exercises) == 1 {
		return false
	}
	s.Exercises = append(s.Exercises[:index], s.Exercises[index+1:]...)
	s.modified = true
	return true
}

// SwapExercise replaces the identity of the exercise at index with repl,
// keeping its position in the list and its existing set configuration.
func (s *Session) SwapExercise(index int, repl models.Exercise) bool {
	if index < 0 || index >= len(s.Exercises) {
		return false
	}
	sets := s.Exercises[index].Sets
	repl.Sets = sets
	s.Exercises[index] = repl
	s.modified = true
	return true
}

// AddSet appends a set to the exercise at index. The new set clones the last
// set's rest time; target reps and weight are left at zero to force user
// entry. With no prior set everything defaults to zero.
func (s *Session) AddSet(index int) bool {
	if index < 0 || index >= len(s.Exercises) {
		return false
	}
	ex := &s.Exercises[index]
	var spec models.SetSpec
	if n := len(ex.Sets); n > 0 {
		spec.RestSec = ex.Sets[n-1].RestSec
	}
	spec.Number = len(ex.Sets) + 1
	ex.Sets = append(ex.Sets, spec)
	s.modified = true
	return true
}

// RemoveSet removes one set from the exercise at index, renumbering the
// remaining sets to stay contiguous from 1. Removing the only set is a
// no-op.
func (s *Session) RemoveSet(index, setIndex int) bool {
	if index < 0 || index >= len(s.Exercises) {
		return false
	}
	ex := &s.Exercises[index]
	if setIndex < 0 || setIndex >= len(ex.Sets) || len(ex.Sets) == 1 {
		return false
	}
	ex.Sets = append(ex.Sets[:setIndex], ex.Sets[setIndex+1:]...)
	renumber(ex.Sets)
	s.modified = true
	return true
}

func renumber(sets []models.SetSpec) {
	for i := range sets {
		sets[i].Number = i + 1
	}
}

// SetKeyAt returns the deterministic completion key for the given exercise
// and 1-based set ordinal.
func (s *Session) SetKeyAt(index, ordinal int) (string, bool) {
	if index < 0 || index >= len(s.Exercises) {
		return "", false
	}
	ex := s.Exercises[index]
	if ordinal < 1 || ordinal > len(ex.Sets) {
		return "", false
	}
	return models.SetKey(s.TemplateID, ex.ID, ordinal), true
}

// Totals computes the finish-time aggregates over all completed sets:
// completed-set count, total reps, and total volume (Σ weight×reps).
func (s *Session) Totals() models.SessionTotals {
	var t models.SessionTotals
	for _, ex := range s.Exercises {
		for _, set := range ex.Sets {
			rec, ok := s.tracker.Get(models.SetKey(s.TemplateID, ex.ID, set.Number))
			if !ok || !rec.Completed {
				continue
			}
			t.CompletedSets++
			t.TotalReps += rec.Reps
			t.TotalVolumeKg += rec.WeightKg * float64(rec.Reps)
		}
	}
	return t
}

// CompletedSet pairs a completion record with its key and position. The
// completion pipeline consumes these to submit per-set statistics.
type CompletedSet struct {
	Key        string
	ExerciseID string
	SetNumber  int
	Record     models.SetCompletionRecord
}

// CompletedSets lists every completed set in list order.
func (s *Session) CompletedSets() []CompletedSet {
	var out []CompletedSet
	for _, ex := range s.Exercises {
		for _, set := range ex.Sets {
			key := models.SetKey(s.TemplateID, ex.ID, set.Number)
			rec, ok := s.tracker.Get(key)
			if !ok || !rec.Completed {
				continue
			}
			out = append(out, CompletedSet{
				Key:        key,
				ExerciseID: ex.ID,
				SetNumber:  set.Number,
				Record:     rec,
			})
		}
	}
	return out
}

// AsTemplate renders the session's current exercise list as a template,
// used when the user saves mid-session edits as a new or updated template.
func (s *Session) AsTemplate(id, name string) models.WorkoutTemplate {
	return models.WorkoutTemplate{
		ID:        id,
		Name:      name,
		Exercises: copyExercises(s.Exercises),
	}
}
