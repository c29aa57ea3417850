package pipeline

import "math"

type Outcome string

const (
	OutcomeChanged   Outcome = "changed"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeError     Outcome = "error"
)

// Backoff decides the recheck interval in days. Unchanged thumbnails are
// checked less and less often up to MaxDays; a change resets to MinDays.
type Backoff struct {
	MinDays int
	MaxDays int
	Growth  float64
}

func DefaultBackoff() Backoff {
	return Backoff{MinDays: 1, MaxDays: 30, Growth: 2}
}

func (b Backoff) normalized() Backoff {
	if b.MinDays < 1 {
		b.MinDays = 1
	}
	if b.MaxDays < b.MinDays {
		b.MaxDays = b.MinDays
	}
	if b.Growth <= 1 {
		b.Growth = 2
	}
	return b
}

func (b Backoff) clamp(days int) int {
	return min(max(days, b.MinDays), b.MaxDays)
}

// Next returns the interval to use after a check with the given outcome.
// Errors keep the current interval so a flaky upstream neither shortens nor
// stretches the cadence.
func (b Backoff) Next(current int, outcome Outcome) int {
	b = b.normalized()
	current = b.clamp(current)

	switch outcome {
	case OutcomeChanged:
		return b.MinDays
	case OutcomeUnchanged:
		grown := int(math.Ceil(float64(current) * b.Growth))
		return b.clamp(max(current+1, grown))
	default:
		return current
	}
}
