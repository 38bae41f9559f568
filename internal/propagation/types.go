package propagation

import (
	"fmt"
	"strings"
	"time"

	"github.com/star/groundtrack/internal/transform"
)

// ErrorPolicy selects how Build reacts to an instant that cannot be
// propagated or transformed.
type ErrorPolicy int

const (
	// PolicyAbort fails the whole build on the earliest failing instant and
	// returns no trajectory.
	PolicyAbort ErrorPolicy = iota
	// PolicySkip drops failing instants, recording them in Trajectory.Skipped.
	PolicySkip
)

func (p ErrorPolicy) String() string {
	switch p {
	case PolicyAbort:
		return "abort"
	case PolicySkip:
		return "skip"
	}
	return fmt.Sprintf("ErrorPolicy(%d)", int(p))
}

// ParsePolicy parses "abort" or "skip" (case-insensitive). Empty selects abort.
func ParsePolicy(s string) (ErrorPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "abort":
		return PolicyAbort, nil
	case "skip":
		return PolicySkip, nil
	}
	return PolicyAbort, fmt.Errorf("unknown error policy %q (want abort or skip)", s)
}

// Config holds propagation defaults loaded from configuration.
type Config struct {
	Workers  int           // worker pool size (default: runtime.NumCPU())
	Step     time.Duration // sample spacing (default: 1m)
	Duration time.Duration // span covered by a trajectory (default: 3h)
	Gravity  Gravity       // SGP4 gravity model (default: wgs72)
	Policy   ErrorPolicy   // default: abort
}

// Request describes one trajectory build.
type Request struct {
	Start    time.Time
	Step     time.Duration
	Duration time.Duration
	Policy   ErrorPolicy
}

// Point is one sample of a trajectory.
type Point struct {
	Time     time.Time
	Geodetic transform.Geodetic
	Inertial transform.InertialState
	Speed    float64 // km/s, magnitude of the inertial velocity
}

// Skip records an instant dropped under PolicySkip.
type Skip struct {
	Time time.Time
	Err  error
}

// Trajectory is a time-ordered sequence of geodetic samples.
type Trajectory struct {
	Satellite string
	NORADID   int
	Points    []Point
	Skipped   []Skip
}

// Len returns the number of points.
func (t Trajectory) Len() int { return len(t.Points) }

// Longitudes returns the longitude of every point in order.
func (t Trajectory) Longitudes() []float64 {
	out := make([]float64, len(t.Points))
	for i, p := range t.Points {
		out[i] = p.Geodetic.Longitude
	}
	return out
}

// MeanAltitude returns the average altitude in km, or 0 for an empty
// trajectory.
func (t Trajectory) MeanAltitude() float64 {
	if len(t.Points) == 0 {
		return 0
	}
	var sum float64
	for _, p := range t.Points {
		sum += p.Geodetic.Altitude
	}
	return sum / float64(len(t.Points))
}

// Span returns the time between the first and last point.
func (t Trajectory) Span() time.Duration {
	if len(t.Points) < 2 {
		return 0
	}
	return t.Points[len(t.Points)-1].Time.Sub(t.Points[0].Time)
}
