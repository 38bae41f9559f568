package propagation

import (
	"fmt"
	"math"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/star/groundtrack/internal/timegrid"
	"github.com/star/groundtrack/internal/tle"
	"github.com/star/groundtrack/internal/transform"
)

// SGP4 library choice: github.com/joshuaferrara/go-satellite
//
// Pure Go, explicit TEME output, includes ECIToECEF and GSTimeFromDate for
// cross-validation.
//
// Note: Propagate() takes Satellite by value so SGP4 error codes are not visible
// to the caller. We detect propagation failures by checking output for NaN/Inf
// and unreasonable position magnitudes. The library's date entry point takes
// whole seconds, so instants are truncated to the second.

// CheckResolution rejects grids whose instants would not fall on whole
// seconds. SGP4 is evaluated at the truncated second while the sidereal angle
// uses the exact instant, so sub-second grids would repeat inertial positions
// under a rotating Earth.
func CheckResolution(start time.Time, step time.Duration) error {
	if step%time.Second != 0 {
		return fmt.Errorf("%w: step %s is not a whole number of seconds", timegrid.ErrInvalidConfiguration, step)
	}
	if start.Nanosecond() != 0 {
		return fmt.Errorf("%w: start %s has fractional seconds", timegrid.ErrInvalidConfiguration, start.Format(time.RFC3339Nano))
	}
	return nil
}

// Gravity selects the SGP4 gravity constants.
type Gravity string

const (
	GravityWGS72 Gravity = "wgs72"
	GravityWGS84 Gravity = "wgs84"
)

// ParseGravity parses "wgs72" or "wgs84" (case-insensitive). Empty selects
// WGS-72, the model element sets are fitted with.
func ParseGravity(s string) (Gravity, error) {
	switch g := Gravity(strings.ToLower(strings.TrimSpace(s))); g {
	case "":
		return GravityWGS72, nil
	case GravityWGS72, GravityWGS84:
		return g, nil
	}
	return GravityWGS72, fmt.Errorf("unknown gravity model %q (want wgs72 or wgs84)", s)
}

func (g Gravity) constants() satellite.Gravity {
	if g == GravityWGS84 {
		return satellite.GravityWGS84
	}
	return satellite.GravityWGS72
}

// SGP4Propagator is a StateProvider backed by the SGP4 model for one
// satellite. It is immutable after construction and safe for concurrent use.
type SGP4Propagator struct {
	sat      satellite.Satellite
	elements tle.OrbitalElements
}

// NewSGP4Propagator initializes SGP4 from decoded elements.
//
// Pre-validates TLE format before passing to the library, because go-satellite
// calls log.Fatal on malformed input (which would kill the process).
func NewSGP4Propagator(el tle.OrbitalElements, g Gravity) (*SGP4Propagator, error) {
	if err := validateTLELines(el.Line1, el.Line2); err != nil {
		return nil, fmt.Errorf("invalid TLE for NORAD %d: %w", el.NORADID, err)
	}

	sat := satellite.TLEToSat(strings.TrimSpace(el.Line1), strings.TrimSpace(el.Line2), g.constants())
	if sat.Error != 0 {
		return nil, fmt.Errorf("sgp4 init failed for NORAD %d: code=%d %s", el.NORADID, sat.Error, sat.ErrorStr)
	}
	return &SGP4Propagator{sat: sat, elements: el}, nil
}

// validateTLELines performs basic format validation on TLE lines.
func validateTLELines(line1, line2 string) error {
	line1 = strings.TrimSpace(line1)
	line2 = strings.TrimSpace(line2)

	if len(line1) != 69 {
		return fmt.Errorf("line1 length %d, expected 69", len(line1))
	}
	if len(line2) != 69 {
		return fmt.Errorf("line2 length %d, expected 69", len(line2))
	}
	if line1[0] != '1' {
		return fmt.Errorf("line1 must start with '1', got '%c'", line1[0])
	}
	if line2[0] != '2' {
		return fmt.Errorf("line2 must start with '2', got '%c'", line2[0])
	}
	return nil
}

// Elements returns the elements the propagator was built from.
func (p *SGP4Propagator) Elements() tle.OrbitalElements {
	return p.elements
}

// Propagate computes the TEME state at t (km, km/s).
func (p *SGP4Propagator) Propagate(t time.Time) (transform.InertialState, error) {
	u := t.UTC()
	pos, vel := satellite.Propagate(p.sat, u.Year(), int(u.Month()), u.Day(), u.Hour(), u.Minute(), u.Second())

	r := transform.Vector{X: pos.X, Y: pos.Y, Z: pos.Z}
	if !r.IsFinite() {
		return transform.InertialState{}, fmt.Errorf("sgp4 propagation failed for NORAD %d: output is NaN/Inf", p.elements.NORADID)
	}
	if !transform.PlausibleOrbit(r) {
		return transform.InertialState{}, fmt.Errorf("sgp4 propagation failed for NORAD %d: unreasonable position magnitude %.1f km (%.0f min from epoch)",
			p.elements.NORADID, r.Norm(), math.Round(MinutesSinceEpoch(p.elements.Epoch, t)))
	}

	return transform.InertialState{
		Time:     t,
		Position: r,
		Velocity: transform.Vector{X: vel.X, Y: vel.Y, Z: vel.Z},
	}, nil
}
