package propagation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/star/groundtrack/internal/metrics"
	"github.com/star/groundtrack/internal/timegrid"
	"github.com/star/groundtrack/internal/transform"
)

const tracerName = "github.com/star/groundtrack/internal/propagation"

// Builder turns a state provider into geodetic trajectories.
type Builder struct {
	provider  StateProvider
	frame     transform.Frame
	pool      *WorkerPool
	logger    *slog.Logger
	satellite string
	noradID   int
}

// BuilderOption customizes a Builder.
type BuilderOption func(*Builder)

// WithSatellite labels trajectories with a satellite name and catalogue number.
func WithSatellite(name string, noradID int) BuilderOption {
	return func(b *Builder) {
		b.satellite = name
		b.noradID = noradID
	}
}

// WithPool replaces the default single-worker pool.
func WithPool(pool *WorkerPool) BuilderOption {
	return func(b *Builder) {
		if pool != nil {
			b.pool = pool
		}
	}
}

// NewBuilder validates frame and returns a Builder for provider.
func NewBuilder(provider StateProvider, frame transform.Frame, logger *slog.Logger, opts ...BuilderOption) (*Builder, error) {
	if provider == nil {
		return nil, errors.New("propagation: nil state provider")
	}
	if err := frame.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	b := &Builder{
		provider: provider,
		frame:    frame,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.pool == nil {
		b.pool = NewWorkerPool(1, logger)
	}
	return b, nil
}

// Frame returns the frame trajectories are expressed in.
func (b *Builder) Frame() transform.Frame { return b.frame }

// Build samples the provider over the request's time grid and returns the
// geodetic trajectory in time order.
//
// Under PolicyAbort the earliest failing instant aborts the build and no
// trajectory is returned. Under PolicySkip failing instants are dropped and
// listed in Trajectory.Skipped. Cancellation of ctx always aborts.
func (b *Builder) Build(ctx context.Context, req Request) (Trajectory, error) {
	grid, err := timegrid.NewForDuration(req.Start, req.Step, req.Duration)
	if err != nil {
		return Trajectory{}, err
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "propagation.Build",
		trace.WithAttributes(
			attribute.Int("norad_id", b.noradID),
			attribute.Int("instants", grid.Len()),
			attribute.Float64("step_seconds", req.Step.Seconds()),
			attribute.String("policy", req.Policy.String()),
		),
	)
	defer span.End()

	start := time.Now()
	samples := b.pool.SampleGrid(ctx, grid, b.provider, b.frame)
	if err := ctx.Err(); err != nil {
		return Trajectory{}, b.fail(span, start, 0, err)
	}

	traj := Trajectory{
		Satellite: b.satellite,
		NORADID:   b.noradID,
		Points:    make([]Point, 0, len(samples)),
	}
	for _, s := range samples {
		if s.err == nil {
			traj.Points = append(traj.Points, s.point)
			continue
		}
		if req.Policy == PolicyAbort {
			return Trajectory{}, b.fail(span, start, len(traj.Skipped)+1, s.err)
		}
		traj.Skipped = append(traj.Skipped, Skip{Time: sampleTime(s.err), Err: s.err})
		b.logger.Warn("instant skipped",
			"norad_id", b.noradID,
			"error", s.err,
		)
	}

	duration := time.Since(start)
	result := metrics.ResultOK
	if len(traj.Skipped) > 0 {
		result = metrics.ResultPartial
	}
	metrics.RecordBuild(result, len(traj.Points), len(traj.Skipped), duration)

	span.SetAttributes(
		attribute.Int("points", len(traj.Points)),
		attribute.Int("skipped", len(traj.Skipped)),
	)
	b.logger.Debug("trajectory built",
		"norad_id", b.noradID,
		"points", len(traj.Points),
		"skipped", len(traj.Skipped),
		"workers", b.pool.Workers(),
		"duration_ms", duration.Milliseconds(),
	)
	return traj, nil
}

// fail records an aborted build and wraps err.
func (b *Builder) fail(span trace.Span, start time.Time, failed int, err error) error {
	metrics.RecordBuild(metrics.ResultError, 0, failed, time.Since(start))
	span.RecordError(err)
	span.SetStatus(codes.Error, "trajectory build failed")
	b.logger.Warn("trajectory build aborted",
		"norad_id", b.noradID,
		"error", err,
	)
	return fmt.Errorf("build trajectory: %w", err)
}

func sampleTime(err error) time.Time {
	var pe *PropagationError
	if errors.As(err, &pe) {
		return pe.Time
	}
	return time.Time{}
}
