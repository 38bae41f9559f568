// Package export serializes trajectories and ground track segments as CSV,
// JSON, YAML, GeoJSON and plain-text tables.
//
// Altitudes are spherical-Earth altitudes (|r| minus a mean radius); every
// format labels them as such.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/star/groundtrack/internal/groundtrack"
	"github.com/star/groundtrack/internal/propagation"
)

// AltitudeModel names the altitude convention used by every export.
const AltitudeModel = "spherical"

// timeLayout is the timestamp format of CSV and table rows.
const timeLayout = "2006-01-02 15:04:05"

// PointRecord is the serialized form of one trajectory point.
type PointRecord struct {
	Time      time.Time `json:"time" yaml:"time"`
	Latitude  float64   `json:"latitude_deg" yaml:"latitude_deg"`
	Longitude float64   `json:"longitude_deg" yaml:"longitude_deg"`
	Altitude  float64   `json:"altitude_km" yaml:"altitude_km"` // spherical-Earth altitude
	Speed     float64   `json:"speed_km_s" yaml:"speed_km_s"`
}

// SkipRecord is an instant dropped from a best-effort build.
type SkipRecord struct {
	Time  time.Time `json:"time" yaml:"time"`
	Error string    `json:"error" yaml:"error"`
}

// SegmentRecord is one antimeridian-free run of points.
type SegmentRecord struct {
	Start  time.Time     `json:"start" yaml:"start"`
	End    time.Time     `json:"end" yaml:"end"`
	Points []PointRecord `json:"points" yaml:"points"`
}

// TrackDocument is the JSON/YAML representation of a segmented ground track.
type TrackDocument struct {
	Satellite     string          `json:"satellite" yaml:"satellite"`
	NORADID       int             `json:"norad_id" yaml:"norad_id"`
	Start         time.Time       `json:"start,omitzero" yaml:"start,omitempty"`
	End           time.Time       `json:"end,omitzero" yaml:"end,omitempty"`
	PointCount    int             `json:"point_count" yaml:"point_count"`
	AltitudeModel string          `json:"altitude_model" yaml:"altitude_model"`
	MeanAltitude  float64         `json:"mean_altitude_km" yaml:"mean_altitude_km"`
	Segments      []SegmentRecord `json:"segments" yaml:"segments"`
	Skipped       []SkipRecord    `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Warnings      []string        `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// NewPointRecord converts a trajectory point.
func NewPointRecord(p propagation.Point) PointRecord {
	return PointRecord{
		Time:      p.Time.UTC(),
		Latitude:  p.Geodetic.Latitude,
		Longitude: p.Geodetic.Longitude,
		Altitude:  p.Geodetic.Altitude,
		Speed:     p.Speed,
	}
}

// NewTrackDocument assembles the document for traj split into segs.
func NewTrackDocument(traj propagation.Trajectory, segs []groundtrack.Segment) TrackDocument {
	doc := TrackDocument{
		Satellite:     traj.Satellite,
		NORADID:       traj.NORADID,
		PointCount:    traj.Len(),
		AltitudeModel: AltitudeModel,
		MeanAltitude:  traj.MeanAltitude(),
		Segments:      make([]SegmentRecord, 0, len(segs)),
	}
	if traj.Len() > 0 {
		doc.Start = traj.Points[0].Time.UTC()
		doc.End = traj.Points[traj.Len()-1].Time.UTC()
	}
	for _, seg := range segs {
		rec := SegmentRecord{
			Start:  seg.Start().UTC(),
			End:    seg.End().UTC(),
			Points: make([]PointRecord, seg.Len()),
		}
		for i, p := range seg.Points {
			rec.Points[i] = NewPointRecord(p)
		}
		doc.Segments = append(doc.Segments, rec)
	}
	for _, s := range traj.Skipped {
		doc.Skipped = append(doc.Skipped, SkipRecord{Time: s.Time.UTC(), Error: s.Err.Error()})
	}
	return doc
}

// WriteJSON encodes doc as indented JSON.
func WriteJSON(w io.Writer, doc TrackDocument) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

// WriteYAML encodes doc as YAML.
func WriteYAML(w io.Writer, doc TrackDocument) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return nil
}
