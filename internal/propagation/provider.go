package propagation

import (
	"errors"
	"fmt"
	"time"

	"github.com/star/groundtrack/internal/transform"
)

// ErrPropagation matches every *PropagationError via errors.Is.
var ErrPropagation = errors.New("propagation failed")

// PropagationError annotates a state provider or frame failure with the
// instant it occurred at.
type PropagationError struct {
	Time time.Time
	Err  error
}

func (e *PropagationError) Error() string {
	return fmt.Sprintf("propagation at %s: %v", e.Time.UTC().Format(time.RFC3339Nano), e.Err)
}

func (e *PropagationError) Unwrap() error { return e.Err }

// Is reports whether target is ErrPropagation.
func (e *PropagationError) Is(target error) bool { return target == ErrPropagation }

// StateProvider returns the inertial state of one satellite at an instant.
// Implementations must be safe for concurrent use.
type StateProvider interface {
	Propagate(t time.Time) (transform.InertialState, error)
}

// ProviderFunc adapts a function to StateProvider.
type ProviderFunc func(t time.Time) (transform.InertialState, error)

// Propagate calls f(t).
func (f ProviderFunc) Propagate(t time.Time) (transform.InertialState, error) {
	return f(t)
}

// MinutesSinceEpoch returns the elapsed minutes from the element epoch to t,
// the time argument SGP4 works in.
func MinutesSinceEpoch(epoch, t time.Time) float64 {
	return transform.SecondsSince(epoch, t) / 60.0
}
