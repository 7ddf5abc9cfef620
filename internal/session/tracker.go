package session

import (
	"fmt"

	"github.com/meltforce/ironflow/internal/models"
)

// TemplateGuard persists the id of the last template the tracker was primed
// with. It has to survive process restarts, not just in-memory churn, so the
// guard against accidental clears holds across navigation to auxiliary
// screens (camera capture and back) and across app relaunches.
type TemplateGuard interface {
	LastTemplateID() (string, error)
	SetLastTemplateID(id string) error
}

// Tracker is the set-completion store for the active session. Records are
// keyed by models.SetKey so the same conceptual set always resolves to the
// same entry no matter how often the owning screen is rebuilt.
type Tracker struct {
	guard   TemplateGuard
	records map[string]models.SetCompletionRecord
}

// NewTracker creates an empty tracker backed by the given guard.
func NewTracker(guard TemplateGuard) *Tracker {
	return &Tracker{
		guard:   guard,
		records: make(map[string]models.SetCompletionRecord),
	}
}

// PrimeForTemplate prepares the tracker for a session of the given template.
// Records are cleared only when the template id differs from the last primed
// one; re-entering the same template keeps everything.
func (t *Tracker) PrimeForTemplate(templateID string) error {
	last, err := t.guard.LastTemplateID()
	if err != nil {
		return fmt.Errorf("reading last template id: %w", err)
	}
	if last == templateID {
		return nil
	}
	t.records = make(map[string]models.SetCompletionRecord)
	if err := t.guard.SetLastTemplateID(templateID); err != nil {
		return fmt.Errorf("saving last template id: %w", err)
	}
	return nil
}

// Get returns the record for a set key, if one exists.
func (t *Tracker) Get(key string) (models.SetCompletionRecord, bool) {
	rec, ok := t.records[key]
	return rec, ok
}

// Upsert creates or replaces the record for a set key. Records are never
// deleted during a session, only updated.
func (t *Tracker) Upsert(key string, rec models.SetCompletionRecord) {
	t.records[key] = rec
}

// Len returns the number of tracked records.
func (t *Tracker) Len() int {
	return len(t.records)
}

// Snapshot returns a copy of all records.
func (t *Tracker) Snapshot() map[string]models.SetCompletionRecord {
	out := make(map[string]models.SetCompletionRecord, len(t.records))
	for k, v := range t.records {
		out[k] = v
	}
	return out
}
