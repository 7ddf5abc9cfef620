// Package heuristic implements the home-screen workout heuristics: the
// time-of-day pattern detector and the consecutive-day streak counters.
package heuristic

import (
	"time"

	"github.com/meltforce/ironflow/internal/models"
)

const (
	// maxSamples bounds the rolling window of completion buckets.
	maxSamples = 10
	// minSamples is the minimum window size before a pattern can be called.
	minSamples = 3
	// minPlurality is the minimum count the winning bucket needs.
	minPlurality = 2
)

// Pattern derives a dominant time-of-day workout bucket from a rolling
// window of recent completion timestamps. A manually chosen bucket
// bypasses the vote entirely and stays authoritative until cleared;
// automatic samples keep accumulating underneath it.
type Pattern struct {
	Samples []models.TimeBucket `json:"samples"`
	Manual  models.TimeBucket   `json:"manual,omitempty"`
}

// Record appends the completion instant's bucket, trimming the window to
// the most recent maxSamples entries.
func (p *Pattern) Record(completedAt time.Time) {
	p.Samples = append(p.Samples, models.BucketForHour(completedAt.Hour()))
	if len(p.Samples) > maxSamples {
		p.Samples = p.Samples[len(p.Samples)-maxSamples:]
	}
}

// SetManual fixes the dominant bucket to a user-selected value.
func (p *Pattern) SetManual(b models.TimeBucket) {
	p.Manual = b
}

// ClearManual removes the manual override, re-enabling the plurality vote
// over whatever samples accumulated in the meantime.
func (p *Pattern) ClearManual() {
	p.Manual = models.BucketUnknown
}

// Dominant returns the established pattern, or BucketUnknown when none is
// established. A manual choice always wins. Otherwise the plurality bucket
// wins, provided the window holds at least minSamples entries and the
// winner accounts for at least minPlurality of them; ties go to the bucket
// recorded most recently.
func (p *Pattern) Dominant() models.TimeBucket {
	if p.Manual != "" && p.Manual != models.BucketUnknown {
		return p.Manual
	}
	if len(p.Samples) < minSamples {
		return models.BucketUnknown
	}

	counts := make(map[models.TimeBucket]int)
	lastSeen := make(map[models.TimeBucket]int)
	for i, b := range p.Samples {
		counts[b]++
		lastSeen[b] = i
	}

	winner := models.BucketUnknown
	best := 0
	for _, b := range []models.TimeBucket{models.BucketMorning, models.BucketMidday, models.BucketEvening} {
		c := counts[b]
		if c > best || (c == best && c > 0 && lastSeen[b] > lastSeen[winner]) {
			winner = b
			best = c
		}
	}
	if best < minPlurality {
		return models.BucketUnknown
	}
	return winner
}
