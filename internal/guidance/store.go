// Package guidance persists the one-shot onboarding state: which hints,
// spotlights, and tours a user has seen, plus per-tour step progress. All
// state is local-only with no expiry; flags survive until an explicit
// reset.
package guidance

import (
	"database/sql"
	"fmt"
)

// Flag kinds. Hints are inline one-liners, spotlights highlight a single
// control, tours are multi-step walkthroughs with saved progress.
const (
	KindHint      = "hint"
	KindSpotlight = "spotlight"
	KindTour      = "tour"
)

// Store reads and writes guidance flags in the shared state database.
type Store struct {
	db *sql.DB
}

// NewStore creates a flag store over the given database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// HasSeen reports whether the flag of the given kind was marked.
func (s *Store) HasSeen(kind, id string) (bool, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM guidance_flags WHERE kind = ? AND flag_id = ?`,
		kind, id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("reading %s flag %s: %w", kind, id, err)
	}
	return n > 0, nil
}

// MarkSeen sets the flag. Marking twice is harmless.
func (s *Store) MarkSeen(kind, id string) error {
	_, err := s.db.Exec(
		`INSERT INTO guidance_flags (kind, flag_id) VALUES (?, ?)
		 ON CONFLICT (kind, flag_id) DO NOTHING`, kind, id)
	if err != nil {
		return fmt.Errorf("marking %s flag %s: %w", kind, id, err)
	}
	return nil
}

// HasSeenHint reports whether a one-shot hint was shown.
func (s *Store) HasSeenHint(id string) (bool, error) { return s.HasSeen(KindHint, id) }

// MarkHintSeen records a shown hint.
func (s *Store) MarkHintSeen(id string) error { return s.MarkSeen(KindHint, id) }

// HasSeenSpotlight reports whether a spotlight was shown.
func (s *Store) HasSeenSpotlight(id string) (bool, error) { return s.HasSeen(KindSpotlight, id) }

// MarkSpotlightSeen records a shown spotlight.
func (s *Store) MarkSpotlightSeen(id string) error { return s.MarkSeen(KindSpotlight, id) }

// HasSeenTour reports whether a tour was completed.
func (s *Store) HasSeenTour(id string) (bool, error) { return s.HasSeen(KindTour, id) }

// MarkTourSeen records a completed tour.
func (s *Store) MarkTourSeen(id string) error { return s.MarkSeen(KindTour, id) }

// Progress returns the saved step for a tour, 0 when never started.
func (s *Store) Progress(tourID string) (int, error) {
	var step int
	err := s.db.QueryRow(
		`SELECT step FROM tour_progress WHERE tour_id = ?`, tourID).Scan(&step)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading tour progress %s: %w", tourID, err)
	}
	return step, nil
}

// SaveProgress stores how far through a tour the user is.
func (s *Store) SaveProgress(tourID string, step int) error {
	_, err := s.db.Exec(
		`INSERT INTO tour_progress (tour_id, step) VALUES (?, ?)
		 ON CONFLICT (tour_id) DO UPDATE SET step = excluded.step`,
		tourID, step)
	if err != nil {
		return fmt.Errorf("saving tour progress %s: %w", tourID, err)
	}
	return nil
}

// ResetAll clears every flag and all tour progress.
func (s *Store) ResetAll() error {
	if _, err := s.db.Exec(`DELETE FROM guidance_flags`); err != nil {
		return fmt.Errorf("clearing guidance flags: %w", err)
	}
	if _, err := s.db.Exec(`DELETE FROM tour_progress`); err != nil {
		return fmt.Errorf("clearing tour progress: %w", err)
	}
	return nil
}
