package session

import "time"

// Timer tracks wall-clock time for an active workout session. While running,
// elapsed time advances with the clock; while paused, it is frozen and a
// resume continues from the frozen value. The timer is not persisted: if the
// process dies, so does the elapsed time.
type Timer struct {
	now         func() time.Time
	resumedAt   time.Time
	accumulated time.Duration
	target      time.Duration
	running     bool
	started     bool
}

// NewTimer creates a stopped timer using the real clock.
func NewTimer() *Timer {
	return &Timer{now: time.Now}
}

// Start begins timing. target is an optional duration used only for the
// over-target signal; pass 0 for no target. Starting an already started
// timer resets it.
func (t *Timer) Start(target time.Duration) {
	t.accumulated = 0
	t.target = target
	t.resumedAt = t.now()
	t.running = true
	t.started = true
}

// Pause freezes the elapsed time. Pausing a paused or stopped timer is a
// no-op.
func (t *Timer) Pause() {
	if !t.running {
		return
	}
	t.accumulated += t.now().Sub(t.resumedAt)
	t.running = false
}

// Resume continues from the frozen elapsed value.
func (t *Timer) Resume() {
	if t.running || !t.started {
		return
	}
	t.resumedAt = t.now()
	t.running = true
}

// Stop freezes the timer and returns the final elapsed whole seconds.
func (t *Timer) Stop() int {
	t.Pause()
	t.started = false
	return int(t.accumulated / time.Second)
}

// Elapsed returns the current elapsed duration.
func (t *Timer) Elapsed() time.Duration {
	if t.running {
		return t.accumulated + t.now().Sub(t.resumedAt)
	}
	return t.accumulated
}

// ElapsedSeconds returns the elapsed time at 1-second granularity.
func (t *Timer) ElapsedSeconds() int {
	return int(t.Elapsed() / time.Second)
}

// OverTarget reports whether elapsed time has passed the optional target
// duration. Always false when no target was set. Consumers use this as a
// visual signal only; nothing is cut off.
func (t *Timer) OverTarget() bool {
	return t.target > 0 && t.Elapsed() > t.target
}

// Running reports whether the timer is currently advancing.
func (t *Timer) Running() bool {
	return t.running
}
