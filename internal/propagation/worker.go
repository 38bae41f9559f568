package propagation

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/star/groundtrack/internal/timegrid"
	"github.com/star/groundtrack/internal/transform"
)

// sampleJob is a unit of work for the worker pool.
type sampleJob struct {
	index int
	at    time.Time
}

// sample is the outcome for one grid instant. Exactly one of point/err is set.
type sample struct {
	point Point
	err   error
}

// WorkerPool manages a fixed number of goroutines that propagate and transform
// grid instants in parallel.
type WorkerPool struct {
	workers int
	logger  *slog.Logger
}

// NewWorkerPool creates a worker pool with the given number of workers.
// Values below one are raised to one.
func NewWorkerPool(workers int, logger *slog.Logger) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	return &WorkerPool{
		workers: workers,
		logger:  logger,
	}
}

// Workers returns the pool size.
func (wp *WorkerPool) Workers() int { return wp.workers }

// SampleGrid evaluates provider and frame at every grid instant. The returned
// slice is index-aligned with the grid, so time order is preserved regardless
// of which worker finished first. Instants left unevaluated because ctx was
// cancelled carry ctx.Err().
func (wp *WorkerPool) SampleGrid(ctx context.Context, grid timegrid.Grid, provider StateProvider, frame transform.Frame) []sample {
	n := grid.Len()
	out := make([]sample, n)
	if n == 0 {
		return out
	}

	jobs := make(chan sampleJob, wp.workers*2)
	done := make([]bool, n)

	var wg sync.WaitGroup
	for i := 0; i < min(wp.workers, n); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				// Each index is owned by exactly one job; no locking needed.
				out[job.index] = sampleAt(provider, frame, job.at)
				done[job.index] = true
			}
		}()
	}

	// Feed jobs until the grid is exhausted or the caller gives up.
feed:
	for i, at := range grid.All() {
		select {
		case jobs <- sampleJob{index: i, at: at}:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		var pending int
		for i := range out {
			if !done[i] {
				out[i] = sample{err: err}
				pending++
			}
		}
		wp.logger.Debug("grid sampling cancelled",
			"instants", n,
			"pending", pending,
			"error", err,
		)
	}
	return out
}

// sampleAt propagates one instant and converts it to geodetic coordinates.
func sampleAt(provider StateProvider, frame transform.Frame, at time.Time) sample {
	state, err := provider.Propagate(at)
	if err != nil {
		return sample{err: &PropagationError{Time: at, Err: err}}
	}
	// Providers may return a zero Time; the grid instant is authoritative.
	state.Time = at

	geo, err := frame.InertialToGeodetic(state)
	if err != nil {
		return sample{err: &PropagationError{Time: at, Err: err}}
	}

	return sample{point: Point{
		Time:     at,
		Geodetic: geo,
		Inertial: state,
		Speed:    speed(state.Velocity),
	}}
}

func speed(v transform.Vector) float64 {
	s := v.Norm()
	if math.IsNaN(s) || math.IsInf(s, 0) {
		return 0
	}
	return s
}
