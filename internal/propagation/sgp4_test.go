package propagation

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/star/groundtrack/internal/timegrid"
	"github.com/star/groundtrack/internal/tle"
	"github.com/star/groundtrack/internal/transform"
)

// ISS elements from May 2025 with valid checksums.
const (
	issName  = "ISS (ZARYA)"
	issLine1 = "1 25544U 98067A   25138.37048074  .00007749  00000+0  14567-3 0  9994"
	issLine2 = "2 25544  51.6369  94.7823 0002558 120.7586  15.7840 15.49587957510533"
)

func issElements(t *testing.T) tle.OrbitalElements {
	t.Helper()
	el, err := tle.ParseElements(issName, issLine1, issLine2)
	if err != nil {
		t.Fatalf("ParseElements: %v", err)
	}
	return el
}

// TestPropagateSingle verifies that the ISS propagates to a LEO-sized state.
func TestPropagateSingle(t *testing.T) {
	el := issElements(t)
	prop, err := NewSGP4Propagator(el, GravityWGS72)
	if err != nil {
		t.Fatalf("NewSGP4Propagator failed: %v", err)
	}

	target := el.Epoch.Add(45 * time.Minute)
	state, err := prop.Propagate(target)
	if err != nil {
		t.Fatalf("Propagate failed: %v", err)
	}

	// ~6371 + 420 km.
	if mag := state.Position.Norm(); mag < 6700 || mag > 6850 {
		t.Errorf("TEME position magnitude = %.1f km, expected ~6791 km (ISS orbit)", mag)
	}
	if v := state.Velocity.Norm(); v < 7.5 || v > 7.8 {
		t.Errorf("TEME speed = %.3f km/s, expected ~7.66", v)
	}
	if !state.Time.Equal(target) {
		t.Errorf("state time = %v, want %v", state.Time, target)
	}
	if prop.Elements().NORADID != 25544 {
		t.Errorf("Elements().NORADID = %d", prop.Elements().NORADID)
	}
}

// TestISSLatitudeBound samples one full orbit at one-minute spacing; the
// sub-satellite latitude never exceeds the inclination and comes close to it.
func TestISSLatitudeBound(t *testing.T) {
	el := issElements(t)
	for _, g := range []Gravity{GravityWGS72, GravityWGS84} {
		prop, err := NewSGP4Propagator(el, g)
		if err != nil {
			t.Fatalf("%s: NewSGP4Propagator: %v", g, err)
		}
		b, err := NewBuilder(prop, transform.DefaultFrame(), testLogger,
			WithSatellite(el.Name, el.NORADID),
			WithPool(NewWorkerPool(4, testLogger)),
		)
		if err != nil {
			t.Fatal(err)
		}

		traj, err := b.Build(context.Background(), Request{
			Start:    el.Epoch.Truncate(time.Second),
			Step:     time.Minute,
			Duration: el.Period(),
		})
		if err != nil {
			t.Fatalf("%s: Build: %v", g, err)
		}
		if traj.Len() < 90 {
			t.Fatalf("%s: got %d points for one orbit", g, traj.Len())
		}

		var maxLat float64
		for _, p := range traj.Points {
			maxLat = max(maxLat, math.Abs(p.Geodetic.Latitude))
			if p.Geodetic.Altitude < 300 || p.Geodetic.Altitude > 500 {
				t.Errorf("%s: altitude %.1f km at %v outside ISS band", g, p.Geodetic.Altitude, p.Time)
			}
		}
		if maxLat > el.Inclination+0.5 {
			t.Errorf("%s: max |latitude| %.3f exceeds inclination %.4f", g, maxLat, el.Inclination)
		}
		if maxLat < 50 {
			t.Errorf("%s: max |latitude| %.3f, expected close to %.4f over a full orbit", g, maxLat, el.Inclination)
		}
	}
}

// TestPropagateInvalidTLE verifies that malformed lines never reach the
// library (which would exit the process).
func TestPropagateInvalidTLE(t *testing.T) {
	tests := []struct {
		name string
		el   tle.OrbitalElements
	}{
		{"garbage", tle.OrbitalElements{NORADID: 99999, Line1: "invalid line 1", Line2: "invalid line 2"}},
		{"swapped", tle.OrbitalElements{NORADID: 25544, Line1: issLine2, Line2: issLine1}},
		{"empty", tle.OrbitalElements{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewSGP4Propagator(tt.el, GravityWGS72); err == nil {
				t.Fatal("expected error for invalid TLE, got nil")
			}
		})
	}
}

func TestCatalog(t *testing.T) {
	store := tle.NewStore()
	cat := NewCatalog(store, GravityWGS72, testLogger)

	if _, err := cat.Propagator(25544); !errors.Is(err, ErrNoDataset) {
		t.Fatalf("empty store err = %v, want ErrNoDataset", err)
	}

	iss := issElements(t).Entry()
	broken := tle.Entry{NORADID: 11111, Name: "BROKEN", Line1: "1 11111U", Line2: "2 11111"}
	store.Set(tle.NewDataset("test", time.Now(), []tle.Entry{iss, broken}))

	first, err := cat.Propagator(25544)
	if err != nil {
		t.Fatalf("Propagator(25544): %v", err)
	}
	again, err := cat.Propagator(25544)
	if err != nil {
		t.Fatal(err)
	}
	if first != again {
		t.Error("propagator rebuilt for an unchanged dataset")
	}

	for _, id := range []int{11111, 1} {
		if _, err := cat.Propagator(id); !errors.Is(err, ErrUnknownSatellite) {
			t.Errorf("Propagator(%d) err = %v, want ErrUnknownSatellite", id, err)
		}
	}

	// A new dataset invalidates the cache.
	store.Set(tle.NewDataset("test", time.Now(), []tle.Entry{iss}))
	fresh, err := cat.Propagator(25544)
	if err != nil {
		t.Fatal(err)
	}
	if fresh == first {
		t.Error("propagator reused across datasets")
	}
}

func TestCheckResolution(t *testing.T) {
	start := time.Date(2025, 5, 18, 9, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		start   time.Time
		step    time.Duration
		wantErr bool
	}{
		{"whole seconds", start, time.Minute, false},
		{"one second", start, time.Second, false},
		{"sub-second step", start, 500 * time.Millisecond, true},
		{"fractional step", start, 1500 * time.Millisecond, true},
		{"fractional start", start.Add(250 * time.Millisecond), time.Minute, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckResolution(tt.start, tt.step)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CheckResolution(%v, %v) = %v, wantErr %v", tt.start, tt.step, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, timegrid.ErrInvalidConfiguration) {
				t.Errorf("err = %v, want ErrInvalidConfiguration", err)
			}
		})
	}
}
