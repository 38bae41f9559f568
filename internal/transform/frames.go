// Package transform converts satellite positions between reference frames.
//
// SGP4 produces positions in an Earth-centered inertial frame (TEME). The
// Earth-fixed frame lags it by the planet's rotation since the sidereal
// reference epoch, so an inertial vector is rotated by the sidereal angle
// about the polar axis to obtain ECEF, then mapped to latitude, longitude and
// altitude on a spherical Earth.
//
// Method: GMST-only rotation (TEME → PEF ≈ ECEF) with a linear sidereal model,
// no polar motion or equation of the equinoxes. Altitude is measured above a
// sphere of radius Frame.EarthRadius, which differs from the WGS-84 ellipsoid
// by up to ~21 km at high latitude. Good enough for ground-track plotting.
package transform

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrDegenerateVector is returned when a position vector has zero
	// magnitude and latitude/longitude are undefined.
	ErrDegenerateVector = errors.New("degenerate position vector")

	// ErrNonFinite is returned when a vector component is NaN or infinite.
	ErrNonFinite = errors.New("non-finite position vector")

	// ErrInvalidFrame is returned for unusable frame constants.
	ErrInvalidFrame = errors.New("invalid frame configuration")
)

// DefaultEarthRadius is the mean Earth radius in km.
const DefaultEarthRadius = 6371.0

// Vector is a Cartesian 3-vector (km or km/s depending on use).
type Vector struct {
	X, Y, Z float64
}

// Norm returns the Euclidean magnitude.
func (v Vector) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// IsFinite reports whether no component is NaN or infinite.
func (v Vector) IsFinite() bool {
	for _, c := range [3]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// InertialState is a position (km) and velocity (km/s) in the inertial frame,
// valid at Time.
type InertialState struct {
	Time     time.Time
	Position Vector
	Velocity Vector
}

// EarthFixedState is a position (km) and velocity (km/s) in the Earth-fixed
// frame at Time.
type EarthFixedState struct {
	Time     time.Time
	Position Vector
	Velocity Vector
}

// Geodetic is a spherical-Earth geodetic position.
type Geodetic struct {
	Latitude  float64 // degrees, [-90, 90]
	Longitude float64 // degrees, (-180, 180]
	Altitude  float64 // km above the reference sphere
}

// Frame holds the constants of the inertial → geodetic conversion.
type Frame struct {
	EarthRadius float64 // km
	Sidereal    SiderealModel
}

// DefaultFrame returns a Frame with the mean Earth radius and the
// J2000-referenced sidereal model.
func DefaultFrame() Frame {
	return Frame{
		EarthRadius: DefaultEarthRadius,
		Sidereal:    DefaultSidereal(),
	}
}

// Validate reports whether the frame constants are usable.
func (f Frame) Validate() error {
	if !(f.EarthRadius > 0) || math.IsInf(f.EarthRadius, 0) {
		return fmt.Errorf("%w: earth radius %g km must be positive", ErrInvalidFrame, f.EarthRadius)
	}
	return f.Sidereal.Validate()
}

func checkPosition(v Vector) error {
	if !v.IsFinite() {
		return fmt.Errorf("%w: [%g, %g, %g]", ErrNonFinite, v.X, v.Y, v.Z)
	}
	if v.X == 0 && v.Y == 0 && v.Z == 0 {
		return ErrDegenerateVector
	}
	return nil
}

// InertialToEarthFixed rotates an inertial state into the Earth-fixed frame
// using the sidereal angle at s.Time.
func (f Frame) InertialToEarthFixed(s InertialState) (EarthFixedState, error) {
	if err := checkPosition(s.Position); err != nil {
		return EarthFixedState{}, err
	}
	return f.RotateToEarthFixed(s, f.Sidereal.Angle(s.Time)), nil
}

// RotateToEarthFixed transforms s using a precomputed sidereal angle theta
// (radians). Useful when many states share one instant.
//
// Position transform: r_ECEF = R3(θ) * r_ECI
// Velocity transform: v_ECEF = R3(θ) * v_ECI - ω × r_ECEF
//
// where ω = [0, 0, Rate] is Earth's angular velocity vector.
func (f Frame) RotateToEarthFixed(s InertialState, theta float64) EarthFixedState {
	rot := R3(theta)
	pos := rotate(rot, s.Position)
	vel := rotate(rot, s.Velocity)

	// ω × r_ECEF = [-ω*y, ω*x, 0]
	w := f.Sidereal.Rate
	vel.X += w * pos.Y
	vel.Y -= w * pos.X

	return EarthFixedState{Time: s.Time, Position: pos, Velocity: vel}
}

// EarthFixedToGeodetic maps an Earth-fixed position (km) to spherical-Earth
// latitude, longitude and altitude.
func (f Frame) EarthFixedToGeodetic(v Vector) (Geodetic, error) {
	if err := checkPosition(v); err != nil {
		return Geodetic{}, err
	}

	req := math.Hypot(v.X, v.Y)
	lat := math.Atan2(v.Z, req) * 180.0 / math.Pi
	lon := NormalizeLongitude(math.Atan2(v.Y, v.X) * 180.0 / math.Pi)

	return Geodetic{
		Latitude:  lat,
		Longitude: lon,
		Altitude:  v.Norm() - f.EarthRadius,
	}, nil
}

// InertialToGeodetic composes InertialToEarthFixed and EarthFixedToGeodetic.
func (f Frame) InertialToGeodetic(s InertialState) (Geodetic, error) {
	ef, err := f.InertialToEarthFixed(s)
	if err != nil {
		return Geodetic{}, err
	}
	return f.EarthFixedToGeodetic(ef.Position)
}

// GeodeticToEarthFixed is the inverse of EarthFixedToGeodetic.
func (f Frame) GeodeticToEarthFixed(g Geodetic) Vector {
	sLat, cLat := math.Sincos(g.Latitude * math.Pi / 180.0)
	sLon, cLon := math.Sincos(g.Longitude * math.Pi / 180.0)
	r := g.Altitude + f.EarthRadius
	return Vector{X: r * cLat * cLon, Y: r * cLat * sLon, Z: r * sLat}
}

// EarthFixedToInertial rotates an Earth-fixed position back into the inertial
// frame at t.
func (f Frame) EarthFixedToInertial(v Vector, t time.Time) Vector {
	return rotate(R3(-f.Sidereal.Angle(t)), v)
}

// NormalizeLongitude maps degrees into (-180, 180].
func NormalizeLongitude(lon float64) float64 {
	lon = math.Mod(lon, 360.0)
	if lon > 180.0 {
		lon -= 360.0
	} else if lon <= -180.0 {
		lon += 360.0
	}
	return lon
}

// PlausibleOrbit reports whether a position (km) is physically reasonable for
// an Earth-orbiting satellite: finite, and between 6200 km and 50000 km from
// the Earth's center.
func PlausibleOrbit(v Vector) bool {
	if !v.IsFinite() {
		return false
	}
	const minRadius = 6200.0
	const maxRadius = 50000.0
	mag := v.Norm()
	return mag >= minRadius && mag <= maxRadius
}
