package export

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/star/groundtrack/internal/groundtrack"
	"github.com/star/groundtrack/internal/propagation"
)

// FeatureCollection is a GeoJSON feature collection.
type FeatureCollection struct {
	Type     string    `json:"type" yaml:"type"`
	Features []Feature `json:"features" yaml:"features"`
}

// Feature is a single GeoJSON feature with geometry and properties.
type Feature struct {
	Type       string         `json:"type" yaml:"type"`
	Geometry   Geometry       `json:"geometry" yaml:"geometry"`
	Properties map[string]any `json:"properties" yaml:"properties"`
}

// Geometry holds Point ([lon, lat]) or MultiLineString coordinates.
type Geometry struct {
	Type        string `json:"type" yaml:"type"`
	Coordinates any    `json:"coordinates" yaml:"coordinates"`
}

// NewFeatureCollection returns the track as a MultiLineString (one line per
// segment) followed by start and end Point features.
func NewFeatureCollection(traj propagation.Trajectory, segs []groundtrack.Segment) FeatureCollection {
	fc := FeatureCollection{Type: "FeatureCollection", Features: []Feature{}}
	if traj.Len() == 0 {
		return fc
	}

	lines := make([][][]float64, 0, len(segs))
	for _, seg := range segs {
		line := make([][]float64, seg.Len())
		for i, p := range seg.Points {
			line[i] = position(p)
		}
		lines = append(lines, line)
	}
	first, last := traj.Points[0], traj.Points[traj.Len()-1]

	fc.Features = append(fc.Features,
		Feature{
			Type:     "Feature",
			Geometry: Geometry{Type: "MultiLineString", Coordinates: lines},
			Properties: map[string]any{
				"satellite":      traj.Satellite,
				"norad_id":       traj.NORADID,
				"points":         traj.Len(),
				"segments":       len(segs),
				"altitude_model": AltitudeModel,
				"start":          first.Time.UTC().Format(time.RFC3339),
				"end":            last.Time.UTC().Format(time.RFC3339),
			},
		},
		pointFeature("start", first),
		pointFeature("end", last),
	)
	return fc
}

func position(p propagation.Point) []float64 {
	return []float64{p.Geodetic.Longitude, p.Geodetic.Latitude}
}

func pointFeature(role string, p propagation.Point) Feature {
	return Feature{
		Type:     "Feature",
		Geometry: Geometry{Type: "Point", Coordinates: position(p)},
		Properties: map[string]any{
			"role":        role,
			"time":        p.Time.UTC().Format(time.RFC3339),
			"altitude_km": p.Geodetic.Altitude,
		},
	}
}

// WriteGeoJSON encodes the feature collection for traj.
func WriteGeoJSON(w io.Writer, traj propagation.Trajectory, segs []groundtrack.Segment) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(NewFeatureCollection(traj, segs)); err != nil {
		return fmt.Errorf("encode geojson: %w", err)
	}
	return nil
}
