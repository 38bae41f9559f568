// Package groundtrack splits a geodetic trajectory into map-drawable segments.
//
// A ground track wraps from +180° to -180° longitude (or back) whenever the
// satellite crosses the antimeridian. Drawing consecutive samples across that
// wrap produces a line spanning the whole map, so the track is cut wherever
// two consecutive longitudes differ by more than a threshold. The test is a
// heuristic: it assumes samples are dense enough that no genuine step comes
// near the threshold (see CheckSampling).
package groundtrack

import (
	"math"
	"time"

	"github.com/star/groundtrack/internal/propagation"
)

// DefaultThreshold is the longitude jump (degrees) treated as an antimeridian
// crossing.
const DefaultThreshold = 180.0

// Segment is a contiguous run of trajectory points containing no longitude
// jump above the split threshold.
type Segment struct {
	Points []propagation.Point
}

// Len returns the number of points in the segment.
func (s Segment) Len() int { return len(s.Points) }

// Start returns the time of the first point.
func (s Segment) Start() time.Time {
	if len(s.Points) == 0 {
		return time.Time{}
	}
	return s.Points[0].Time
}

// End returns the time of the last point.
func (s Segment) End() time.Time {
	if len(s.Points) == 0 {
		return time.Time{}
	}
	return s.Points[len(s.Points)-1].Time
}

// Split cuts traj into segments wherever |Δlon| between consecutive points
// exceeds thresholdDeg. A non-positive or NaN threshold selects
// DefaultThreshold. An empty trajectory yields no segments.
//
// Segments share their backing array with traj.Points.
func Split(traj propagation.Trajectory, thresholdDeg float64) []Segment {
	runs := SplitLongitudes(traj.Longitudes(), thresholdDeg)
	segments := make([]Segment, len(runs))
	for i, r := range runs {
		segments[i] = Segment{Points: traj.Points[r.Start:r.End:r.End]}
	}
	return segments
}

// Run is a half-open index range [Start, End) into a longitude sequence.
type Run struct {
	Start, End int
}

// Len returns the number of indices in the run.
func (r Run) Len() int { return r.End - r.Start }

// SplitLongitudes applies the Split rule to raw longitudes (degrees) and
// returns the index runs of each segment, in order. The runs cover every
// index exactly once.
func SplitLongitudes(lons []float64, thresholdDeg float64) []Run {
	if len(lons) == 0 {
		return nil
	}
	threshold := effectiveThreshold(thresholdDeg)

	var runs []Run
	start := 0
	for i := 1; i < len(lons); i++ {
		if math.Abs(lons[i]-lons[i-1]) > threshold {
			runs = append(runs, Run{Start: start, End: i})
			start = i
		}
	}
	return append(runs, Run{Start: start, End: len(lons)})
}

func effectiveThreshold(deg float64) float64 {
	if deg <= 0 || math.IsNaN(deg) {
		return DefaultThreshold
	}
	return deg
}

// SplitOrbits partitions traj into consecutive windows of one orbital period
// measured from the first point. The last window may be partial. Points keep
// their order; Skipped instants are not carried over.
func SplitOrbits(traj propagation.Trajectory, period time.Duration) []propagation.Trajectory {
	if len(traj.Points) == 0 {
		return nil
	}
	if period <= 0 {
		return []propagation.Trajectory{traj}
	}

	t0 := traj.Points[0].Time
	var orbits []propagation.Trajectory
	start := 0
	for i, p := range traj.Points {
		if int(p.Time.Sub(t0)/period) < len(orbits)+1 {
			continue
		}
		orbits = append(orbits, orbitSlice(traj, start, i))
		start = i
		// Gaps longer than a period (skipped instants) leave empty orbits.
		for int(p.Time.Sub(t0)/period) > len(orbits) {
			orbits = append(orbits, orbitSlice(traj, i, i))
		}
	}
	return append(orbits, orbitSlice(traj, start, len(traj.Points)))
}

func orbitSlice(traj propagation.Trajectory, from, to int) propagation.Trajectory {
	return propagation.Trajectory{
		Satellite: traj.Satellite,
		NORADID:   traj.NORADID,
		Points:    traj.Points[from:to:to],
	}
}
