package heuristic

import "time"

// Streak tracks consecutive calendar days with at least one qualifying
// activity in a category (workout, nutrition). LastActivity is date-level;
// the time-of-day component is ignored.
type Streak struct {
	LastActivity time.Time `json:"last_activity"`
	Count        int       `json:"count"`
}

// RecordActivity updates the streak for an activity happening at now.
// First-ever activity starts the streak at 1; a same-day re-trigger is
// idempotent; an activity exactly one day after the last extends the
// streak; any longer gap restarts it at 1.
func (s *Streak) RecordActivity(now time.Time) {
	switch daysBetween(s.LastActivity, now) {
	case 0:
		if s.Count == 0 {
			s.Count = 1
		}
	case 1:
		s.Count++
	default:
		s.Count = 1
	}
	s.LastActivity = now
}

// Display returns the streak value to show at read time: the stored count
// when the last activity was today or yesterday, otherwise 0. The stored
// state is left untouched; expiry is lazy, applied by the next
// RecordActivity.
func (s Streak) Display(now time.Time) int {
	if s.LastActivity.IsZero() {
		return 0
	}
	if d := daysBetween(s.LastActivity, now); d == 0 || d == 1 {
		return s.Count
	}
	return 0
}

// daysBetween returns the number of calendar days from a's date to b's
// date, each taken in its own location. The dates are rebuilt as UTC
// midnights so the division is exact on days shortened or stretched by a
// DST transition. A zero a is treated as infinitely far in the past.
func daysBetween(a, b time.Time) int {
	if a.IsZero() {
		return 1 << 30
	}
	da := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da) / (24 * time.Hour))
}
