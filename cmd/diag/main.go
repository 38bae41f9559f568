// Command diag reports how far the linear sidereal rotation model drifts from
// IAU-82 GMST and from the meeus mean sidereal time over a span of days.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/soniakeys/meeus/v3/sidereal"
	"github.com/soniakeys/unit"

	"github.com/star/groundtrack/internal/config"
	"github.com/star/groundtrack/internal/transform"
)

func main() {
	configPath := flag.String("config", "", "path to a config file")
	start := flag.String("start", "", "first instant, RFC 3339 (default: frame epoch)")
	days := flag.Int("days", 3650, "span to report, in days")
	every := flag.Int("every", 365, "report interval, in days")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	cfg, err := config.Load(*configPath, logger)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	model := cfg.Frame.Sidereal

	from := model.Epoch
	if *start != "" {
		if from, err = time.Parse(time.RFC3339, *start); err != nil {
			logger.Error("invalid -start", "error", err)
			os.Exit(1)
		}
	}
	if *every < 1 {
		*every = 1
	}

	fmt.Printf("Sidereal model: epoch %s, theta0 %.12f rad, rate %.10e rad/s\n",
		model.Epoch.Format(time.RFC3339), model.Theta0, model.Rate)
	fmt.Printf("%-22s %14s %14s %16s\n", "Time (UTC)", "vs IAU-82 (°)", "vs meeus (°)", "lon shift (km)")

	for d := 0; d <= *days; d += *every {
		t := from.AddDate(0, 0, d).UTC()
		drift := unit.Angle(model.Drift(t))

		ref := sidereal.Mean(transform.JulianDate(t)).Angle().Rad()
		meeus := unit.Angle(transform.WrapAngle(model.Angle(t) - ref))
		if meeus.Rad() > math.Pi {
			meeus -= unit.Angle(2 * math.Pi)
		}

		// Ground distance of the resulting longitude error at the equator.
		shift := drift.Rad() * cfg.Frame.EarthRadius
		fmt.Printf("%-22s %14.6f %14.6f %16.3f\n", t.Format(time.RFC3339), drift.Deg(), meeus.Deg(), shift)
	}
}
