package export

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/star/groundtrack/internal/propagation"
)

// CSVHeader is the first row of every CSV export.
var CSVHeader = []string{"Time (UTC)", "Latitude (deg)", "Longitude (deg)", "Spherical Altitude (km)", "Speed (km/s)"}

// WriteCSV writes one row per point, with six decimal places, after
// CSVHeader.
func WriteCSV(w io.Writer, traj propagation.Trajectory) error {
	bw := bufio.NewWriter(w)
	cw := csv.NewWriter(bw)

	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("csv write header: %w", err)
	}
	row := make([]string, len(CSVHeader))
	for _, p := range traj.Points {
		row[0] = p.Time.UTC().Format(timeLayout)
		row[1] = strconv.FormatFloat(p.Geodetic.Latitude, 'f', 6, 64)
		row[2] = strconv.FormatFloat(p.Geodetic.Longitude, 'f', 6, 64)
		row[3] = strconv.FormatFloat(p.Geodetic.Altitude, 'f', 6, 64)
		row[4] = strconv.FormatFloat(p.Speed, 'f', 6, 64)
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("csv write row: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("csv flush: %w", err)
	}
	return bw.Flush()
}
