package posture

import "time"

// DurationTracker accumulates time spent in poor posture.
// An interval is credited to the total only when it closes; an open interval never counts.
type DurationTracker struct {
	poorStart time.Time
	open      bool
	total     time.Duration
}

// NewDurationTracker returns a tracker in the clear state
func NewDurationTracker() *DurationTracker {
	return &DurationTracker{}
}

// Observe advances the state machine with the latest status
func (t *DurationTracker) Observe(status Status, at time.Time) {
	switch {
	case !t.open && status == StatusPoor:
		t.poorStart = at
		t.open = true
	case t.open && status != StatusPoor:
		// timestamps are expected to be non-decreasing; a regression credits nothing
		if elapsed := at.Sub(t.poorStart); elapsed > 0 {
			t.total += elapsed
		}
		t.poorStart = time.Time{}
		t.open = false
	}
}

// Total closed poor-posture time
func (t *DurationTracker) Total() time.Duration {
	return t.total
}

// TotalMinutes whole minutes of closed poor-posture time
func (t *DurationTracker) TotalMinutes() int {
	return int(t.total / time.Minute)
}

// Open reports whether a poor interval is in progress, and since when
func (t *DurationTracker) Open() (time.Time, bool) {
	return t.poorStart, t.open
}

// Reset returns to the clear state with a zero total
func (t *DurationTracker) Reset() {
	t.poorStart = time.Time{}
	t.open = false
	t.total = 0
}
