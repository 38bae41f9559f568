package timegrid

import (
	"errors"
	"testing"
	"time"
)

var t0 = time.Date(2025, 2, 14, 12, 0, 0, 0, time.UTC)

// TestGridDayAtHalfHour checks the reference scenario: 24h at 30 min steps
// gives 49 instants at 0, 30, ..., 1440 minutes.
func TestGridDayAtHalfHour(t *testing.T) {
	g, err := NewForDuration(t0, 30*time.Minute, 24*time.Hour)
	if err != nil {
		t.Fatalf("NewForDuration: %v", err)
	}
	if g.Len() != 49 {
		t.Fatalf("Len() = %d, want 49", g.Len())
	}

	count := 0
	for i, ti := range g.All() {
		want := t0.Add(time.Duration(i) * 30 * time.Minute)
		if !ti.Equal(want) {
			t.Errorf("instant %d = %v, want %v", i, ti, want)
		}
		count++
	}
	if count != 49 {
		t.Errorf("iterated %d instants, want 49", count)
	}
	if !g.End().Equal(t0.Add(24 * time.Hour)) {
		t.Errorf("End() = %v, want %v", g.End(), t0.Add(24*time.Hour))
	}
}

func TestGridStopsBeforeOvershoot(t *testing.T) {
	g, err := New(t0, 7*time.Minute, t0.Add(30*time.Minute))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// 0, 7, 14, 21, 28 -> 35 would overshoot.
	if g.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", g.Len())
	}
	if last := g.End(); last.After(t0.Add(30 * time.Minute)) {
		t.Errorf("last instant %v is past end", last)
	}
}

func TestGridRestartable(t *testing.T) {
	g, err := NewForDuration(t0, time.Minute, 5*time.Minute)
	if err != nil {
		t.Fatalf("NewForDuration: %v", err)
	}
	first := g.Instants()
	second := g.Instants()
	if len(first) != 6 || len(second) != 6 {
		t.Fatalf("got %d and %d instants, want 6 each", len(first), len(second))
	}
	for i := range first {
		if !first[i].Equal(second[i]) {
			t.Errorf("iteration mismatch at %d: %v vs %v", i, first[i], second[i])
		}
	}
}

func TestGridEarlyBreak(t *testing.T) {
	g, _ := NewForDuration(t0, time.Minute, time.Hour)
	seen := 0
	for i := range g.All() {
		seen++
		if i == 2 {
			break
		}
	}
	if seen != 3 {
		t.Errorf("seen %d instants before break, want 3", seen)
	}
}

func TestGridSingleInstant(t *testing.T) {
	g, err := NewForDuration(t0, time.Hour, 0)
	if err != nil {
		t.Fatalf("NewForDuration: %v", err)
	}
	if g.Len() != 1 || !g.At(0).Equal(t0) {
		t.Errorf("zero-duration grid = %v, want [%v]", g.Instants(), t0)
	}
}

func TestGridInvalidConfiguration(t *testing.T) {
	tests := []struct {
		name string
		fn   func() (Grid, error)
	}{
		{"zero step", func() (Grid, error) { return New(t0, 0, t0.Add(time.Hour)) }},
		{"negative step", func() (Grid, error) { return New(t0, -time.Minute, t0.Add(time.Hour)) }},
		{"end before start", func() (Grid, error) { return New(t0, time.Minute, t0.Add(-time.Second)) }},
		{"negative duration", func() (Grid, error) { return NewForDuration(t0, time.Minute, -time.Hour) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.fn()
			if !errors.Is(err, ErrInvalidConfiguration) {
				t.Errorf("err = %v, want ErrInvalidConfiguration", err)
			}
		})
	}
}

func TestGridAtOutOfRange(t *testing.T) {
	g, _ := NewForDuration(t0, time.Minute, time.Minute)
	defer func() {
		if recover() == nil {
			t.Error("At(2) on a 2-instant grid did not panic")
		}
	}()
	g.At(2)
}
