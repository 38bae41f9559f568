package groundtrack

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrUndersampled reports a sampling step too coarse for the split threshold
// to tell real motion from an antimeridian wrap.
var ErrUndersampled = errors.New("ground track undersampled")

// siderealDay is one Earth rotation relative to the stars.
const siderealDay = 86164.0905 * float64(time.Second)

// ExpectedLongitudeStep returns an upper bound (degrees) on the longitude
// advance between consecutive samples taken step apart, for an orbit of the
// given period: the in-plane angular advance plus the Earth's rotation over
// the step. It is exact for an equatorial retrograde orbit and exceeded only
// in the immediate vicinity of the poles on near-polar orbits.
func ExpectedLongitudeStep(step, period time.Duration) float64 {
	if step <= 0 || period <= 0 {
		return 0
	}
	orbital := 360 * float64(step) / float64(period)
	earth := 360 * float64(step) / siderealDay
	return orbital + earth
}

// CheckSampling returns an error wrapping ErrUndersampled when the expected
// longitude step reaches the point where Split can no longer classify jumps:
// a genuine step must stay below thresholdDeg, and a wrap (360° minus a
// genuine step) must stay above it.
func CheckSampling(step, period time.Duration, thresholdDeg float64) error {
	threshold := effectiveThreshold(thresholdDeg)
	limit := math.Min(threshold, 360-threshold)
	if limit <= 0 {
		return fmt.Errorf("%w: threshold %.1f° leaves no margin", ErrUndersampled, threshold)
	}
	if d := ExpectedLongitudeStep(step, period); d >= limit {
		return fmt.Errorf("%w: step %s advances up to %.1f° per sample, limit %.1f° for a %.1f° threshold",
			ErrUndersampled, step, d, limit, threshold)
	}
	return nil
}
