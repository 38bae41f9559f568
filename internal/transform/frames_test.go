package transform

import (
	"errors"
	"math"
	"testing"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
	"gonum.org/v1/gonum/floats/scalar"
)

// TestInertialToEarthFixedMatchesLibrary checks the position rotation against
// go-satellite's ECIToECEF using the same sidereal angle. Both are pure
// polar-axis rotations, so they agree to floating point precision.
func TestInertialToEarthFixedMatchesLibrary(t *testing.T) {
	f := DefaultFrame()

	tests := []struct {
		name string
		pos  Vector
		time time.Time
	}{
		{
			// Vallado "Fundamentals of Astrodynamics" Example 3-15
			name: "Vallado example 3-15",
			pos:  Vector{X: 5094.18016, Y: 6127.64465, Z: 6380.34453},
			time: time.Date(2004, 4, 6, 7, 51, 28, 0, time.UTC),
		},
		{
			name: "LEO equatorial",
			pos:  Vector{X: 6778.0},
			time: time.Date(2026, 2, 6, 12, 0, 0, 0, time.UTC),
		},
		{
			name: "LEO polar",
			pos:  Vector{Z: 6978.0},
			time: time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			theta := f.Sidereal.Angle(tt.time)
			ef, err := f.InertialToEarthFixed(InertialState{Time: tt.time, Position: tt.pos})
			if err != nil {
				t.Fatalf("InertialToEarthFixed: %v", err)
			}

			ref := satellite.ECIToECEF(satellite.Vector3{X: tt.pos.X, Y: tt.pos.Y, Z: tt.pos.Z}, theta)

			const tol = 1e-6 // km
			if !scalar.EqualWithinAbs(ef.Position.X, ref.X, tol) ||
				!scalar.EqualWithinAbs(ef.Position.Y, ref.Y, tol) ||
				!scalar.EqualWithinAbs(ef.Position.Z, ref.Z, tol) {
				t.Errorf("position mismatch:\n  ours: [%.6f, %.6f, %.6f]\n  ref:  [%.6f, %.6f, %.6f]",
					ef.Position.X, ef.Position.Y, ef.Position.Z, ref.X, ref.Y, ref.Z)
			}

			if !PlausibleOrbit(ef.Position) {
				t.Errorf("rotated position failed plausibility check: %+v", ef.Position)
			}
		})
	}
}

func TestRotationFormula(t *testing.T) {
	f := DefaultFrame()
	theta := 0.7
	in := Vector{X: 7000, Y: -1200, Z: 300}

	got := f.RotateToEarthFixed(InertialState{Position: in}, theta).Position

	s, c := math.Sincos(theta)
	want := Vector{
		X: in.X*c + in.Y*s,
		Y: -in.X*s + in.Y*c,
		Z: in.Z,
	}
	if !scalar.EqualWithinAbs(got.X, want.X, 1e-9) ||
		!scalar.EqualWithinAbs(got.Y, want.Y, 1e-9) ||
		got.Z != want.Z {
		t.Errorf("RotateToEarthFixed = %+v, want %+v", got, want)
	}
}

// TestEarthFixedVelocity verifies the velocity transform includes the Earth
// rotation correction.
func TestEarthFixedVelocity(t *testing.T) {
	f := DefaultFrame()
	s := InertialState{
		Position: Vector{X: 6778.0},
		Velocity: Vector{Y: 7.5},
	}

	ef := f.RotateToEarthFixed(s, 0)

	if math.Abs(ef.Position.X-6778.0) > 1e-9 {
		t.Errorf("X position: got %.6f, want 6778.0", ef.Position.X)
	}

	// ω*R = 7.292115e-5 * 6778 ≈ 0.4943 km/s.
	wantVY := 7.5 - DefaultRotationRate*6778.0
	if math.Abs(ef.Velocity.Y-wantVY) > 1e-9 {
		t.Errorf("VY: got %.6f km/s, want %.6f km/s", ef.Velocity.Y, wantVY)
	}
}

func TestEarthFixedToGeodetic(t *testing.T) {
	f := DefaultFrame()
	r := f.EarthRadius + 400

	tests := []struct {
		name     string
		in       Vector
		lat      float64
		lon      float64
		altitude float64
	}{
		{"prime meridian", Vector{X: r}, 0, 0, 400},
		{"east 90", Vector{Y: r}, 0, 90, 400},
		{"antimeridian maps to +180", Vector{X: -r}, 0, 180, 400},
		{"west 90", Vector{Y: -r}, 0, -90, 400},
		{"north pole", Vector{Z: r}, 90, 0, 400},
		{"south pole", Vector{Z: -r}, -90, 0, 400},
		{"45N 45E", Vector{X: r / 2, Y: r / 2, Z: r / math.Sqrt2}, 45, 45, 400},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := f.EarthFixedToGeodetic(tt.in)
			if err != nil {
				t.Fatalf("EarthFixedToGeodetic: %v", err)
			}
			if !scalar.EqualWithinAbs(g.Latitude, tt.lat, 1e-9) {
				t.Errorf("latitude = %.9f, want %.9f", g.Latitude, tt.lat)
			}
			if !scalar.EqualWithinAbs(g.Longitude, tt.lon, 1e-9) {
				t.Errorf("longitude = %.9f, want %.9f", g.Longitude, tt.lon)
			}
			if !scalar.EqualWithinAbs(g.Altitude, tt.altitude, 1e-6) {
				t.Errorf("altitude = %.6f, want %.6f", g.Altitude, tt.altitude)
			}
		})
	}
}

func TestDegenerateVector(t *testing.T) {
	f := DefaultFrame()
	now := time.Date(2025, 2, 14, 0, 0, 0, 0, time.UTC)

	if _, err := f.EarthFixedToGeodetic(Vector{}); !errors.Is(err, ErrDegenerateVector) {
		t.Errorf("EarthFixedToGeodetic(0,0,0) err = %v, want ErrDegenerateVector", err)
	}
	if _, err := f.InertialToEarthFixed(InertialState{Time: now}); !errors.Is(err, ErrDegenerateVector) {
		t.Errorf("InertialToEarthFixed(0,0,0) err = %v, want ErrDegenerateVector", err)
	}
	if _, err := f.InertialToGeodetic(InertialState{Time: now}); !errors.Is(err, ErrDegenerateVector) {
		t.Errorf("InertialToGeodetic(0,0,0) err = %v, want ErrDegenerateVector", err)
	}

	// Anything with nonzero magnitude converts, however small.
	nonzero := []Vector{
		{X: 1e-300},
		{Y: -1e-12},
		{Z: 5e-324},
		{X: 1, Y: 1, Z: 1},
	}
	for _, v := range nonzero {
		if _, err := f.EarthFixedToGeodetic(v); err != nil {
			t.Errorf("EarthFixedToGeodetic(%+v) err = %v, want nil", v, err)
		}
	}
}

func TestNonFiniteVector(t *testing.T) {
	f := DefaultFrame()
	for _, v := range []Vector{
		{X: math.NaN()},
		{Y: math.Inf(1)},
		{Z: math.Inf(-1)},
	} {
		_, err := f.EarthFixedToGeodetic(v)
		if !errors.Is(err, ErrNonFinite) {
			t.Errorf("EarthFixedToGeodetic(%+v) err = %v, want ErrNonFinite", v, err)
		}
		if errors.Is(err, ErrDegenerateVector) {
			t.Errorf("EarthFixedToGeodetic(%+v) reported degenerate", v)
		}
	}
}

// TestRoundTrip derives the Earth-fixed vector back from geodetic output and
// re-rotates it by the sidereal angle; the result must match the original
// inertial vector.
func TestRoundTrip(t *testing.T) {
	f := DefaultFrame()
	start := time.Date(2025, 2, 14, 4, 19, 40, 0, time.UTC)

	positions := []Vector{
		{X: 6778, Y: 0, Z: 0},
		{X: -4200.5, Y: 3100.25, Z: 4500},
		{X: 1200, Y: -6500, Z: -2200},
		{X: 0.001, Y: 0, Z: 7000},
		{X: 30000, Y: 28000, Z: 100},
		{X: -6500, Y: -1e-9, Z: 0},
	}

	for i, p := range positions {
		ts := start.Add(time.Duration(i) * 17 * time.Minute)
		g, err := f.InertialToGeodetic(InertialState{Time: ts, Position: p})
		if err != nil {
			t.Fatalf("InertialToGeodetic(%+v): %v", p, err)
		}

		if g.Latitude < -90 || g.Latitude > 90 {
			t.Errorf("latitude %.6f out of [-90, 90]", g.Latitude)
		}
		if g.Longitude <= -180 || g.Longitude > 180 {
			t.Errorf("longitude %.6f out of (-180, 180]", g.Longitude)
		}

		back := f.EarthFixedToInertial(f.GeodeticToEarthFixed(g), ts)
		tol := 1e-9 * p.Norm()
		if !scalar.EqualWithinAbs(back.X, p.X, tol) ||
			!scalar.EqualWithinAbs(back.Y, p.Y, tol) ||
			!scalar.EqualWithinAbs(back.Z, p.Z, tol) {
			t.Errorf("round trip of %+v at %v = %+v", p, ts, back)
		}
	}
}

func TestNormalizeLongitude(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{180, 180},
		{-180, 180},
		{181, -179},
		{-181, 179},
		{540, 180},
		{-540, 180},
		{359.5, -0.5},
		{720, 0},
	}
	for _, tt := range tests {
		if got := NormalizeLongitude(tt.in); !scalar.EqualWithinAbs(got, tt.want, 1e-9) {
			t.Errorf("NormalizeLongitude(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestPlausibleOrbit(t *testing.T) {
	tests := []struct {
		name  string
		pos   Vector
		valid bool
	}{
		{"LEO", Vector{X: 6778}, true},
		{"GEO", Vector{X: 42164}, true},
		{"too low", Vector{X: 5000}, false},
		{"too high", Vector{X: 60000}, false},
		{"NaN", Vector{X: math.NaN()}, false},
		{"Inf", Vector{X: math.Inf(1)}, false},
		{"zero", Vector{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PlausibleOrbit(tt.pos); got != tt.valid {
				t.Errorf("PlausibleOrbit(%+v) = %v, want %v", tt.pos, got, tt.valid)
			}
		})
	}
}

func TestFrameValidate(t *testing.T) {
	good := DefaultFrame()
	if err := good.Validate(); err != nil {
		t.Fatalf("DefaultFrame().Validate() = %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Frame)
	}{
		{"zero radius", func(f *Frame) { f.EarthRadius = 0 }},
		{"negative radius", func(f *Frame) { f.EarthRadius = -1 }},
		{"NaN radius", func(f *Frame) { f.EarthRadius = math.NaN() }},
		{"zero rate", func(f *Frame) { f.Sidereal.Rate = 0 }},
		{"unset epoch", func(f *Frame) { f.Sidereal.Epoch = time.Time{} }},
		{"NaN theta0", func(f *Frame) { f.Sidereal.Theta0 = math.NaN() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := DefaultFrame()
			tt.mutate(&f)
			if err := f.Validate(); !errors.Is(err, ErrInvalidFrame) {
				t.Errorf("Validate() = %v, want ErrInvalidFrame", err)
			}
		})
	}
}
