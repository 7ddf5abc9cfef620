// Package state is the on-device store for everything the app persists
// outside the remote backend: home-screen preferences (time pattern,
// streaks, promo and rating counters, user tier), the sticky last-template
// id guarding set-completion clears, and the guidance flag tables.
package state

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/meltforce/ironflow/internal/heuristic"
	"github.com/meltforce/ironflow/internal/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps the local SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the state database at dir/ironflow.db and applies
// pending migrations.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating state dir %s: %w", dir, err)
	}
	dbPath := filepath.Join(dir, "ironflow.db")

	if err := runMigrations(dbPath); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening state db: %w", err)
	}
	return &Store{db: db}, nil
}

func runMigrations(dbPath string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, "sqlite://"+dbPath)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// DB exposes the underlying handle for sibling stores sharing the database.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the state database.
func (s *Store) Close() error {
	return s.db.Close()
}

// --- template guard (session.TemplateGuard) ---

// LastTemplateID returns the template id the tracker was last primed with.
func (s *Store) LastTemplateID() (string, error) {
	var id string
	err := s.db.QueryRow(`SELECT last_template_id FROM home_prefs WHERE id = 1`).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("reading last template id: %w", err)
	}
	return id, nil
}

// SetLastTemplateID records the template id for the clear guard.
func (s *Store) SetLastTemplateID(id string) error {
	_, err := s.db.Exec(`UPDATE home_prefs SET last_template_id = ? WHERE id = 1`, id)
	if err != nil {
		return fmt.Errorf("saving last template id: %w", err)
	}
	return nil
}

// --- time-of-day pattern ---

// Pattern loads the rolling sample window and the manual override.
func (s *Store) Pattern() (heuristic.Pattern, error) {
	var p heuristic.Pattern

	var manual string
	err := s.db.QueryRow(`SELECT manual_bucket FROM home_prefs WHERE id = 1`).Scan(&manual)
	if err != nil {
		return p, fmt.Errorf("reading manual bucket: %w", err)
	}
	if b, ok := models.ParseTimeBucket(manual); ok {
		p.Manual = b
	} else {
		p.Manual = models.BucketUnknown
	}

	rows, err := s.db.Query(
		`SELECT bucket FROM pattern_samples ORDER BY seq DESC LIMIT 10`)
	if err != nil {
		return p, fmt.Errorf("reading pattern samples: %w", err)
	}
	defer rows.Close()

	var newestFirst []models.TimeBucket
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return p, fmt.Errorf("scanning pattern sample: %w", err)
		}
		// Unparseable rows written by other builds are skipped, not coerced.
		if b, ok := models.ParseTimeBucket(raw); ok {
			newestFirst = append(newestFirst, b)
		}
	}
	if err := rows.Err(); err != nil {
		return p, err
	}
	for i := len(newestFirst) - 1; i >= 0; i-- {
		p.Samples = append(p.Samples, newestFirst[i])
	}
	return p, nil
}

// RecordPatternSample appends one completion bucket and prunes the stored
// window to the most recent 10.
func (s *Store) RecordPatternSample(b models.TimeBucket, at time.Time) error {
	_, err := s.db.Exec(
		`INSERT INTO pattern_samples (bucket, recorded_at) VALUES (?, ?)`,
		string(b), at.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("inserting pattern sample: %w", err)
	}
	_, err = s.db.Exec(
		`DELETE FROM pattern_samples WHERE seq NOT IN
		 (SELECT seq FROM pattern_samples ORDER BY seq DESC LIMIT 10)`)
	if err != nil {
		return fmt.Errorf("pruning pattern samples: %w", err)
	}
	return nil
}

// SetManualBucket stores the user-selected pattern override. Passing
// BucketUnknown clears it.
func (s *Store) SetManualBucket(b models.TimeBucket) error {
	val := string(b)
	if b == models.BucketUnknown {
		val = ""
	}
	_, err := s.db.Exec(`UPDATE home_prefs SET manual_bucket = ? WHERE id = 1`, val)
	if err != nil {
		return fmt.Errorf("saving manual bucket: %w", err)
	}
	return nil
}

// --- streaks ---

// Streak loads the streak for a category. An unknown category yields a zero
// streak.
func (s *Store) Streak(category string) (heuristic.Streak, error) {
	var st heuristic.Streak
	var last string
	err := s.db.QueryRow(
		`SELECT last_activity, count FROM streaks WHERE category = ?`, category,
	).Scan(&last, &st.Count)
	if err == sql.ErrNoRows {
		return st, nil
	}
	if err != nil {
		return st, fmt.Errorf("reading %s streak: %w", category, err)
	}
	t, err := time.Parse(time.RFC3339, last)
	if err != nil {
		return heuristic.Streak{}, fmt.Errorf("parsing %s streak date: %w", category, err)
	}
	st.LastActivity = t
	return st, nil
}

// SaveStreak persists the streak for a category.
func (s *Store) SaveStreak(category string, st heuristic.Streak) error {
	_, err := s.db.Exec(
		`INSERT INTO streaks (category, last_activity, count) VALUES (?, ?, ?)
		 ON CONFLICT (category) DO UPDATE SET last_activity = excluded.last_activity, count = excluded.count`,
		category, st.LastActivity.Format(time.RFC3339), st.Count)
	if err != nil {
		return fmt.Errorf("saving %s streak: %w", category, err)
	}
	return nil
}

// --- tier and counters ---

// UserTier returns the locally cached subscription tier.
func (s *Store) UserTier() (models.UserTier, error) {
	var raw string
	err := s.db.QueryRow(`SELECT user_tier FROM home_prefs WHERE id = 1`).Scan(&raw)
	if err != nil {
		return models.TierUnknown, fmt.Errorf("reading user tier: %w", err)
	}
	tier, _ := models.ParseUserTier(raw)
	return tier, nil
}

// SetUserTier caches the subscription tier.
func (s *Store) SetUserTier(t models.UserTier) error {
	_, err := s.db.Exec(`UPDATE home_prefs SET user_tier = ? WHERE id = 1`, string(t))
	if err != nil {
		return fmt.Errorf("saving user tier: %w", err)
	}
	return nil
}

// CompletedWorkouts returns the lifetime completed-workout counter.
func (s *Store) CompletedWorkouts() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT completed_workouts FROM home_prefs WHERE id = 1`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("reading completed workouts: %w", err)
	}
	return n, nil
}

// IncrementCompletedWorkouts bumps the counter and returns the new value.
func (s *Store) IncrementCompletedWorkouts() (int, error) {
	var n int
	err := s.db.QueryRow(
		`UPDATE home_prefs SET completed_workouts = completed_workouts + 1
		 WHERE id = 1 RETURNING completed_workouts`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("incrementing completed workouts: %w", err)
	}
	return n, nil
}

// RatingState returns the rating-prompt state: empty (never shown to
// resolution), "rated", "declined", or "dismissed".
func (s *Store) RatingState() (string, error) {
	var st string
	err := s.db.QueryRow(`SELECT rating_state FROM home_prefs WHERE id = 1`).Scan(&st)
	if err != nil {
		return "", fmt.Errorf("reading rating state: %w", err)
	}
	return st, nil
}

// SetRatingState persists the rating-prompt resolution.
func (s *Store) SetRatingState(st string) error {
	_, err := s.db.Exec(`UPDATE home_prefs SET rating_state = ? WHERE id = 1`, st)
	if err != nil {
		return fmt.Errorf("saving rating state: %w", err)
	}
	return nil
}

// PromoImpressions returns how often the home promo card was shown.
func (s *Store) PromoImpressions() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT promo_impressions FROM home_prefs WHERE id = 1`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("reading promo impressions: %w", err)
	}
	return n, nil
}

// IncrementPromoImpressions bumps the promo counter and returns the new value.
func (s *Store) IncrementPromoImpressions() (int, error) {
	var n int
	err := s.db.QueryRow(
		`UPDATE home_prefs SET promo_impressions = promo_impressions + 1
		 WHERE id = 1 RETURNING promo_impressions`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("incrementing promo impressions: %w", err)
	}
	return n, nil
}
