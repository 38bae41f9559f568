package export

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/star/groundtrack/internal/propagation"
)

const tableWidth = 80

// WriteTable prints a human-readable propagation summary: point count, time
// span, mean altitude and the sample rows. Unless all is set, trajectories
// longer than seven points are abbreviated to the first three, the middle
// and the last three rows.
func WriteTable(w io.Writer, traj propagation.Trajectory, all bool) error {
	bw := bufio.NewWriter(w)
	if traj.Len() == 0 {
		fmt.Fprintln(bw, "No results to display")
		return bw.Flush()
	}

	rule := strings.Repeat("=", tableWidth)
	thin := strings.Repeat("-", tableWidth)
	first, last := traj.Points[0], traj.Points[traj.Len()-1]

	fmt.Fprintf(bw, "\n%s\nORBITAL PROPAGATION RESULTS\n%s\n", rule, rule)
	fmt.Fprintf(bw, "\nTotal time points: %d\n", traj.Len())
	fmt.Fprintf(bw, "Time span: %s to %s\n", first.Time.UTC().Format(timeLayout), last.Time.UTC().Format(timeLayout))
	fmt.Fprintf(bw, "Average altitude: %.2f km (spherical Earth)\n", traj.MeanAltitude())
	if n := len(traj.Skipped); n > 0 {
		fmt.Fprintf(bw, "Skipped instants: %d\n", n)
	}

	fmt.Fprintf(bw, "\n%s\n", thin)
	fmt.Fprintf(bw, "%-20s %-10s %-10s %-10s %-12s\n", "Time (UTC)", "Lat (°)", "Lon (°)", "Alt (km)", "Speed (km/s)")
	fmt.Fprintln(bw, thin)

	row := func(p propagation.Point) {
		fmt.Fprintf(bw, "%-20s %8.3f° %8.3f° %9.2f %11.3f\n",
			p.Time.UTC().Format(timeLayout), p.Geodetic.Latitude, p.Geodetic.Longitude, p.Geodetic.Altitude, p.Speed)
	}
	ellipsis := func() {
		fmt.Fprintf(bw, "%-20s %-10s %-10s %-10s %-12s\n", "...", "...", "...", "...", "...")
	}

	switch n := traj.Len(); {
	case all || n <= 7:
		for _, p := range traj.Points {
			row(p)
		}
	default:
		for _, p := range traj.Points[:3] {
			row(p)
		}
		ellipsis()
		row(traj.Points[n/2])
		ellipsis()
		for _, p := range traj.Points[n-3:] {
			row(p)
		}
	}

	fmt.Fprintf(bw, "%s\n\n", rule)
	return bw.Flush()
}
