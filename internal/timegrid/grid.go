// Package timegrid generates uniformly spaced evaluation instants.
//
// A Grid is inclusive of its end bound and never overshoots it: the last
// instant is the largest start + k*step that is not after end. Spacing is
// computed in integer time.Duration units, so a 30 minute step over 24 hours
// yields exactly 49 instants.
package timegrid

import (
	"errors"
	"fmt"
	"iter"
	"time"
)

// ErrInvalidConfiguration is returned for a non-positive step or an end bound
// that precedes the start.
var ErrInvalidConfiguration = errors.New("invalid time grid configuration")

// Grid is a finite, restartable sequence of instants.
type Grid struct {
	start time.Time
	step  time.Duration
	n     int
}

// New creates a grid from start to end (inclusive) at the given step.
func New(start time.Time, step time.Duration, end time.Time) (Grid, error) {
	if step <= 0 {
		return Grid{}, fmt.Errorf("%w: step %s must be positive", ErrInvalidConfiguration, step)
	}
	if end.Before(start) {
		return Grid{}, fmt.Errorf("%w: end %s precedes start %s",
			ErrInvalidConfiguration, end.UTC().Format(time.RFC3339), start.UTC().Format(time.RFC3339))
	}
	return Grid{
		start: start,
		step:  step,
		n:     int(end.Sub(start)/step) + 1,
	}, nil
}

// NewForDuration creates a grid covering [start, start+duration].
func NewForDuration(start time.Time, step, duration time.Duration) (Grid, error) {
	if duration < 0 {
		return Grid{}, fmt.Errorf("%w: duration %s is negative", ErrInvalidConfiguration, duration)
	}
	return New(start, step, start.Add(duration))
}

// Len returns the number of instants in the grid.
func (g Grid) Len() int { return g.n }

// Start returns the first instant.
func (g Grid) Start() time.Time { return g.start }

// Step returns the spacing between instants.
func (g Grid) Step() time.Duration { return g.step }

// End returns the last instant, or the start for an empty grid.
func (g Grid) End() time.Time {
	if g.n == 0 {
		return g.start
	}
	return g.At(g.n - 1)
}

// At returns the i-th instant. It panics if i is out of range.
func (g Grid) At(i int) time.Time {
	if i < 0 || i >= g.n {
		panic(fmt.Sprintf("timegrid: index %d out of range [0,%d)", i, g.n))
	}
	return g.start.Add(time.Duration(i) * g.step)
}

// All yields (index, instant) pairs in time order. Each call starts a fresh
// iteration.
func (g Grid) All() iter.Seq2[int, time.Time] {
	return func(yield func(int, time.Time) bool) {
		for i := 0; i < g.n; i++ {
			if !yield(i, g.start.Add(time.Duration(i)*g.step)) {
				return
			}
		}
	}
}

// Instants materializes the grid.
func (g Grid) Instants() []time.Time {
	out := make([]time.Time, 0, g.n)
	for _, t := range g.All() {
		out = append(out, t)
	}
	return out
}
