package transform

import (
	"fmt"
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
)

// j2000 is the Julian Date of the J2000.0 epoch (January 1, 2000, 12:00:00 TT).
const j2000 = 2451545.0

// J2000 is the J2000.0 reference epoch expressed in UTC.
var J2000 = time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC)

// Sidereal model defaults: GMST at J2000.0 (280.46061837 deg) and the mean
// rotation rate of the Earth.
const (
	DefaultTheta0       = 4.894961212823756 // rad
	DefaultRotationRate = 7.2921159e-5      // rad/s
)

// SiderealModel computes the Earth rotation angle with a linear model:
//
//	θ(t) = Theta0 + Rate·(t − Epoch)
//
// The angle is not wrapped to [0, 2π). Precession and nutation terms are
// ignored; over a few decades the model drifts by a few hundredths of a degree
// from the IAU-82 polynomial (see GMST).
type SiderealModel struct {
	Epoch  time.Time
	Theta0 float64 // rad, sidereal angle at Epoch
	Rate   float64 // rad/s
}

// DefaultSidereal returns the J2000-referenced linear model.
func DefaultSidereal() SiderealModel {
	return SiderealModel{
		Epoch:  J2000,
		Theta0: DefaultTheta0,
		Rate:   DefaultRotationRate,
	}
}

// Validate reports whether the model can produce meaningful angles.
func (m SiderealModel) Validate() error {
	if m.Epoch.IsZero() {
		return fmt.Errorf("%w: sidereal reference epoch is unset", ErrInvalidFrame)
	}
	if !(m.Rate > 0) || math.IsInf(m.Rate, 0) {
		return fmt.Errorf("%w: rotation rate %g must be positive", ErrInvalidFrame, m.Rate)
	}
	if math.IsNaN(m.Theta0) || math.IsInf(m.Theta0, 0) {
		return fmt.Errorf("%w: theta0 %g is not finite", ErrInvalidFrame, m.Theta0)
	}
	return nil
}

// Angle returns the sidereal angle in radians at t.
func (m SiderealModel) Angle(t time.Time) float64 {
	return m.Theta0 + m.Rate*SecondsSince(m.Epoch, t)
}

// SecondsSince returns the elapsed seconds from ref to t. Spans too long for a
// time.Duration fall back to Unix-second arithmetic.
func SecondsSince(ref, t time.Time) float64 {
	d := t.Sub(ref)
	if d == math.MaxInt64 || d == math.MinInt64 {
		return float64(t.Unix()-ref.Unix()) + float64(t.Nanosecond()-ref.Nanosecond())/1e9
	}
	return d.Seconds()
}

// WrapAngle maps an angle in radians into [0, 2π).
func WrapAngle(rad float64) float64 {
	rad = math.Mod(rad, 2*math.Pi)
	if rad < 0 {
		rad += 2 * math.Pi
	}
	return rad
}

// JulianDate converts a time.Time (UTC) to Julian Date.
func JulianDate(t time.Time) float64 {
	return julian.TimeToJD(t.UTC())
}

// GMST calculates Greenwich Mean Sidereal Time in radians for a given UTC time.
// Uses the IAU-82 model as described in Vallado "Fundamentals of Astrodynamics".
//
// Formula (Vallado Eq 3-47):
//
//	θ_GMST = 67310.54841 + (876600h + 8640184.812866)*T + 0.093104*T² - 6.2e-6*T³
//
// where T is Julian centuries of UT1 from J2000.0, result is in seconds of time.
// The trajectory pipeline uses SiderealModel; GMST is the reference the linear
// model is measured against.
func GMST(t time.Time) float64 {
	tUT1 := (JulianDate(t) - j2000) / 36525.0

	// 876600h = 876600 * 3600 = 3155760000 seconds.
	gmstSec := 67310.54841 +
		(3155760000.0+8640184.812866)*tUT1 +
		0.093104*tUT1*tUT1 -
		6.2e-6*tUT1*tUT1*tUT1

	gmstSec = math.Mod(gmstSec, 86400.0)
	if gmstSec < 0 {
		gmstSec += 86400.0
	}
	return gmstSec / 86400.0 * 2.0 * math.Pi
}

// Drift returns the signed difference in radians between the linear model and
// IAU-82 GMST at t, folded into (-π, π].
func (m SiderealModel) Drift(t time.Time) float64 {
	d := WrapAngle(m.Angle(t)) - GMST(t)
	if d > math.Pi {
		d -= 2 * math.Pi
	} else if d <= -math.Pi {
		d += 2 * math.Pi
	}
	return d
}
