package epochmodel

import (
	"math"
	"time"
)

// DefaultTolerance is the relative error within which an engine is
// considered to keep its target tick period.
const DefaultTolerance = 0.1

// Elapsed returns b - a truncated to whole microseconds.
func Elapsed(a, b time.Time) time.Duration {
	return b.Sub(a).Truncate(time.Microsecond)
}

// TickPeriod returns the mean wall-clock time per tick between two events.
// It reports false when the events are on the same tick.
func TickPeriod(firstTick, lastTick int64, first, last time.Time) (time.Duration, bool) {
	ticks := lastTick - firstTick
	if ticks <= 0 {
		return 0, false
	}
	return Elapsed(first, last) / time.Duration(ticks), true
}

// WithinTolerance reports whether actual is within tol of target, measured
// as |1 - target/actual|. A zero actual period never qualifies.
func WithinTolerance(target, actual time.Duration, tol float64) bool {
	if actual <= 0 {
		return false
	}
	return math.Abs(1-float64(target)/float64(actual)) < tol
}

// SpeedReport compares an engine's measured tick period with a target.
type SpeedReport struct {
	Engine   string        `json:"engine"`
	Ticks    int64         `json:"ticks"`
	Duration time.Duration `json:"duration_ns"`
	Period   time.Duration `json:"period_ns"`
	Target   time.Duration `json:"target_ns,omitempty"`
	OnTarget bool          `json:"on_target"`
}

// Speed builds a SpeedReport from the timing of an analysis. With a zero
// target OnTarget is always false.
func Speed(a *EngineAnalysis, target time.Duration, tol float64) SpeedReport {
	r := SpeedReport{
		Engine:   a.Engine,
		Ticks:    a.Timing.LastTick - a.Timing.FirstTick,
		Duration: a.Timing.Duration,
		Period:   a.Timing.TickPeriod,
		Target:   target,
	}
	if target > 0 {
		r.OnTarget = WithinTolerance(target, r.Period, tol)
	}
	return r
}
