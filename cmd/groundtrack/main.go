// Command groundtrack propagates one satellite from a TLE file and prints or
// exports its ground track.
//
// Usage:
//
//	groundtrack [flags] [tle-file]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/star/groundtrack/internal/config"
	"github.com/star/groundtrack/internal/export"
	"github.com/star/groundtrack/internal/groundtrack"
	"github.com/star/groundtrack/internal/propagation"
	"github.com/star/groundtrack/internal/render"
	"github.com/star/groundtrack/internal/tle"
)

const defaultTLEFile = "iss_tle.txt"

// options are the command-line settings layered over config.
type options struct {
	configPath string
	tleFile    string
	start      string
	duration   string
	step       string
	policy     string
	threshold  float64
	workers    int
	all        bool

	csvPath     string
	svgPath     string
	orbitsPath  string
	orbitCount  int
	geojsonPath string
	yamlPath    string
	jsonPath    string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("groundtrack", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.configPath, "config", "", "path to a config file")
	fs.StringVar(&o.start, "start", "", "first instant, RFC 3339 (default: now)")
	fs.StringVar(&o.duration, "duration", "", "span to propagate, e.g. 6h or 21600 (default: prop.duration)")
	fs.StringVar(&o.step, "step", "", "sample spacing, e.g. 1m or 60 (default: prop.step)")
	fs.StringVar(&o.policy, "policy", "", "failing instant handling: abort or skip (default: prop.policy)")
	fs.Float64Var(&o.threshold, "threshold", 0, "antimeridian jump threshold in degrees (default: track.threshold_deg)")
	fs.IntVar(&o.workers, "workers", 0, "propagation workers (default: prop.workers)")
	fs.BoolVar(&o.all, "all", false, "print every row instead of an abbreviated table")
	fs.StringVar(&o.csvPath, "csv", "", "write points as CSV to this path")
	fs.StringVar(&o.svgPath, "svg", "", "write the ground track map to this path")
	fs.StringVar(&o.orbitsPath, "orbits-svg", "", "write a per-orbit map to this path")
	fs.IntVar(&o.orbitCount, "orbits", 3, "orbits drawn by -orbits-svg")
	fs.StringVar(&o.geojsonPath, "geojson", "", "write the track as GeoJSON to this path")
	fs.StringVar(&o.yamlPath, "yaml", "", "write the track document as YAML to this path")
	fs.StringVar(&o.jsonPath, "json", "", "write the track document as JSON to this path")
	if err := fs.Parse(args); err != nil {
		return o, err
	}

	o.tleFile = defaultTLEFile
	switch fs.NArg() {
	case 0:
	case 1:
		o.tleFile = fs.Arg(0)
	default:
		return o, fmt.Errorf("expected at most one TLE file, got %d arguments", fs.NArg())
	}
	return o, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	o, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	bootLogger := slog.New(slog.NewTextHandler(stderr, nil))
	cfg, err := config.Load(o.configPath, bootLogger)
	if err != nil {
		return err
	}
	logger := cfg.Log.NewLogger(stderr, config.FormatText)

	req, threshold, err := applyFlags(o, &cfg)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "\nParsing TLE data from: %s\n", o.tleFile)
	el, err := tle.ReadFile(o.tleFile)
	if err != nil {
		return err
	}
	if err := el.WriteSummary(stdout); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "\nOrbital period: %.2f minutes (%.4f hours)\n", el.PeriodMinutes(), el.PeriodMinutes()/60)

	prop, err := propagation.NewSGP4Propagator(el, cfg.Prop.Gravity)
	if err != nil {
		return err
	}
	b, err := propagation.NewBuilder(prop, cfg.Frame, logger,
		propagation.WithSatellite(el.Name, el.NORADID),
		propagation.WithPool(propagation.NewWorkerPool(cfg.Prop.Workers, logger)),
	)
	if err != nil {
		return err
	}

	if err := groundtrack.CheckSampling(req.Step, el.Period(), threshold); err != nil {
		logger.Warn("ground track may be misclassified", "error", err)
	}

	fmt.Fprintf(stdout, "\nPropagating %s from %s for %s every %s...\n",
		el.Name, req.Start.Format(time.RFC3339), req.Duration, req.Step)
	traj, err := b.Build(ctx, req)
	if err != nil {
		return err
	}
	segs := groundtrack.Split(traj, threshold)

	if err := export.WriteTable(stdout, traj, o.all); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "\nGround track segments: %d\n", len(segs))

	title := fmt.Sprintf("%s Ground Track - %.1f Hours", el.Name, req.Duration.Hours())
	outputs := []struct {
		path  string
		write func(io.Writer) error
	}{
		{o.csvPath, func(w io.Writer) error { return export.WriteCSV(w, traj) }},
		{o.svgPath, func(w io.Writer) error {
			return render.WriteGroundTrack(w, traj, segs, render.Options{Title: title, Period: el.Period()})
		}},
		{o.orbitsPath, func(w io.Writer) error {
			orbits := groundtrack.SplitOrbits(traj, el.Period())
			if o.orbitCount > 0 && len(orbits) > o.orbitCount {
				orbits = orbits[:o.orbitCount]
			}
			return render.WriteOrbits(w, orbits, threshold, render.Options{
				Title:  fmt.Sprintf("%s - %d Orbits", el.Name, len(orbits)),
				Period: el.Period(),
			})
		}},
		{o.geojsonPath, func(w io.Writer) error { return export.WriteGeoJSON(w, traj, segs) }},
		{o.yamlPath, func(w io.Writer) error { return export.WriteYAML(w, export.NewTrackDocument(traj, segs)) }},
		{o.jsonPath, func(w io.Writer) error { return export.WriteJSON(w, export.NewTrackDocument(traj, segs)) }},
	}
	for _, out := range outputs {
		if out.path == "" {
			continue
		}
		if err := writeFile(out.path, out.write); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Wrote %s\n", out.path)
	}
	return nil
}

// applyFlags overrides cfg with any flags that were set and returns the build
// request and threshold.
func applyFlags(o options, cfg *config.Config) (propagation.Request, float64, error) {
	req := propagation.Request{
		Start:    time.Now().UTC().Truncate(time.Second),
		Step:     cfg.Prop.Step,
		Duration: cfg.Prop.Duration,
		Policy:   cfg.Prop.Policy,
	}
	threshold := cfg.Track.Threshold

	if o.start != "" {
		t, err := time.Parse(time.RFC3339, o.start)
		if err != nil {
			return req, 0, fmt.Errorf("invalid -start: %w", err)
		}
		req.Start = t.UTC()
	}
	if o.duration != "" {
		d, err := config.ParseDuration(o.duration)
		if err != nil {
			return req, 0, fmt.Errorf("invalid -duration: %w", err)
		}
		req.Duration = d
	}
	if o.step != "" {
		d, err := config.ParseDuration(o.step)
		if err != nil {
			return req, 0, fmt.Errorf("invalid -step: %w", err)
		}
		req.Step = d
	}
	if o.policy != "" {
		p, err := propagation.ParsePolicy(o.policy)
		if err != nil {
			return req, 0, err
		}
		req.Policy = p
	}
	if o.threshold != 0 {
		if o.threshold < 0 || o.threshold >= 360 {
			return req, 0, fmt.Errorf("invalid -threshold %g: must be between 0 and 360 degrees", o.threshold)
		}
		threshold = o.threshold
	}
	if req.Step > 0 {
		if err := propagation.CheckResolution(req.Start, req.Step); err != nil {
			return req, 0, err
		}
	}
	if o.workers > 0 {
		cfg.Prop.Workers = o.workers
	}
	return req, threshold, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
