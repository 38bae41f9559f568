// Package render draws ground tracks as SVG world maps in an equirectangular
// projection.
package render

import (
	"fmt"
	"html"
	"io"
	"strings"
	"time"

	"github.com/star/groundtrack/internal/groundtrack"
	"github.com/star/groundtrack/internal/propagation"
)

// Map layout constants.
const (
	defaultScale   = 4.0 // pixels per degree
	plotMargin     = 40.0
	titleFontSize  = 18
	labelFontSize  = 11
	infoFontSize   = 12
	arrowEvery     = 5
	arrowFraction  = 0.3
	markerRadius   = 6.0
	oceanColor     = "#D6EAF8"
	landColor      = "#E8E8E8"
	gridColor      = "#9E9E9E"
	trackColor     = "blue"
	startColor     = "green"
	endColor       = "red"
	trackStrokePx  = "2"
	orbitStrokePx  = "2.5"
	guideStrokePx  = "1"
	altitudeNotice = "Altitude: spherical Earth, up to ~21 km error"
)

// orbitColors are assigned to successive orbits in multi-orbit maps.
var orbitColors = []string{"blue", "red", "green", "purple", "orange"}

// landBoxes are coarse continent outlines: lon, lat of the south-west corner,
// then width and height in degrees.
var landBoxes = []struct {
	name                  string
	lon, lat, width, tall float64
}{
	{"North America", -170, 15, 90, 60},
	{"South America", -85, -55, 50, 60},
	{"Europe", -10, 35, 60, 40},
	{"Africa", -20, -35, 60, 70},
	{"Asia", 50, -10, 130, 70},
	{"Australia", 110, -45, 50, 35},
}

// guideLines are parallels of latitude drawn across the map.
var guideLines = []struct {
	lat   float64
	color string
	dash  string
	label string
}{
	{0, "gray", "6,4", "Equator"},
	{23.5, "orange", "2,3", "Tropic of Cancer"},
	{-23.5, "orange", "2,3", "Tropic of Capricorn"},
	{66.5, "cyan", "2,3", "Arctic Circle"},
	{-66.5, "cyan", "2,3", "Antarctic Circle"},
}

// Options controls map annotations.
type Options struct {
	Title  string
	Period time.Duration // orbital period for the info box; omitted when zero
	Scale  float64       // pixels per degree; defaults to 4
}

func (o Options) scale() float64 {
	if o.Scale <= 0 {
		return defaultScale
	}
	return o.Scale
}

// canvas accumulates SVG markup for one map.
type canvas struct {
	b     strings.Builder
	scale float64
}

func newCanvas(opts Options) *canvas {
	c := &canvas{scale: opts.scale()}
	width := 360*c.scale + 2*plotMargin
	height := 180*c.scale + 2*plotMargin
	fmt.Fprintf(&c.b, `<svg width="%.0f" height="%.0f" xmlns="http://www.w3.org/2000/svg" style="background-color:white;">`, width, height)
	c.b.WriteString(`<defs><marker id="arrow" viewBox="0 0 10 10" refX="5" refY="5" markerWidth="6" markerHeight="6" orient="auto-start-reverse"><path d="M 0 0 L 10 5 L 0 10 z" fill="context-stroke"/></marker></defs>`)
	if opts.Title != "" {
		fmt.Fprintf(&c.b, `<text x="%.1f" y="%.1f" fill="black" font-size="%d" font-weight="bold" text-anchor="middle">%s</text>`,
			width/2, plotMargin/2+titleFontSize/3, titleFontSize, html.EscapeString(opts.Title))
	}
	c.world()
	return c
}

// project maps longitude/latitude (degrees) to SVG pixel coordinates.
func (c *canvas) project(lon, lat float64) (x, y float64) {
	return plotMargin + (lon+180)*c.scale, plotMargin + (90-lat)*c.scale
}

func (c *canvas) world() {
	x0, y0 := c.project(-180, 90)
	fmt.Fprintf(&c.b, `<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="%s" stroke="black" stroke-width="%s"/>`,
		x0, y0, 360*c.scale, 180*c.scale, oceanColor, guideStrokePx)

	for _, box := range landBoxes {
		x, y := c.project(box.lon, box.lat+box.tall)
		fmt.Fprintf(&c.b, `<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="%s" fill-opacity="0.6"><title>%s</title></rect>`,
			x, y, box.width*c.scale, box.tall*c.scale, landColor, box.name)
	}

	// Graticule every 30°, labelled on the left and bottom edges.
	for lon := -180.0; lon <= 180; lon += 30 {
		x1, y1 := c.project(lon, 90)
		x2, y2 := c.project(lon, -90)
		fmt.Fprintf(&c.b, `<line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="%s" stroke-width="0.5" stroke-opacity="0.4" stroke-dasharray="4,4"/>`, x1, y1, x2, y2, gridColor)
		fmt.Fprintf(&c.b, `<text x="%.1f" y="%.1f" fill="%s" font-size="%d" text-anchor="middle">%.0f°</text>`, x2, y2+labelFontSize+4, gridColor, labelFontSize, lon)
	}
	for lat := -90.0; lat <= 90; lat += 30 {
		x1, y1 := c.project(-180, lat)
		x2, y2 := c.project(180, lat)
		fmt.Fprintf(&c.b, `<line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="%s" stroke-width="0.5" stroke-opacity="0.4" stroke-dasharray="4,4"/>`, x1, y1, x2, y2, gridColor)
		fmt.Fprintf(&c.b, `<text x="%.1f" y="%.1f" fill="%s" font-size="%d" text-anchor="end" dominant-baseline="middle">%.0f°</text>`, x1-4, y1, gridColor, labelFontSize, lat)
	}

	for _, g := range guideLines {
		x1, y := c.project(-180, g.lat)
		x2, _ := c.project(180, g.lat)
		fmt.Fprintf(&c.b, `<line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="%s" stroke-width="%s" stroke-opacity="0.6" stroke-dasharray="%s"><title>%s</title></line>`,
			x1, y, x2, y, g.color, guideStrokePx, g.dash, g.label)
	}
}

// polyline draws one segment and returns false if it had no points.
func (c *canvas) polyline(seg groundtrack.Segment, color, width string) bool {
	if seg.Len() == 0 {
		return false
	}
	c.b.WriteString(`<polyline points="`)
	for i, p := range seg.Points {
		if i > 0 {
			c.b.WriteByte(' ')
		}
		x, y := c.project(p.Geodetic.Longitude, p.Geodetic.Latitude)
		fmt.Fprintf(&c.b, "%.2f,%.2f", x, y)
	}
	fmt.Fprintf(&c.b, `" fill="none" stroke="%s" stroke-width="%s" stroke-opacity="0.8" stroke-linejoin="round"/>`, color, width)
	return true
}

// arrows marks the direction of travel every arrowEvery points.
func (c *canvas) arrows(seg groundtrack.Segment, color string) {
	for i := 0; i+1 < seg.Len(); i += arrowEvery {
		a, b := seg.Points[i].Geodetic, seg.Points[i+1].Geodetic
		x1, y1 := c.project(a.Longitude, a.Latitude)
		x2, y2 := c.project(b.Longitude, b.Latitude)
		x2 = x1 + (x2-x1)*arrowFraction
		y2 = y1 + (y2-y1)*arrowFraction
		fmt.Fprintf(&c.b, `<line class="arrow" x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke="%s" stroke-width="1.5" stroke-opacity="0.6" marker-end="url(#arrow)"/>`,
			x1, y1, x2, y2, color)
	}
}

func (c *canvas) endpoints(first, last propagation.Point) {
	x, y := c.project(first.Geodetic.Longitude, first.Geodetic.Latitude)
	fmt.Fprintf(&c.b, `<circle class="start" cx="%.2f" cy="%.2f" r="%.1f" fill="%s" stroke="black" stroke-width="0.5"/>`, x, y, markerRadius, startColor)
	fmt.Fprintf(&c.b, `<text x="%.2f" y="%.2f" fill="%s" font-size="%d" text-anchor="middle">Start: %s</text>`,
		x, y-markerRadius-4, startColor, labelFontSize, first.Time.UTC().Format("15:04 UTC"))

	x, y = c.project(last.Geodetic.Longitude, last.Geodetic.Latitude)
	fmt.Fprintf(&c.b, `<rect class="end" x="%.2f" y="%.2f" width="%.1f" height="%.1f" fill="%s" stroke="black" stroke-width="0.5"/>`,
		x-markerRadius, y-markerRadius, 2*markerRadius, 2*markerRadius, endColor)
	fmt.Fprintf(&c.b, `<text x="%.2f" y="%.2f" fill="%s" font-size="%d" text-anchor="middle" dominant-baseline="hanging">End: %s</text>`,
		x, y+markerRadius+4, endColor, labelFontSize, last.Time.UTC().Format("15:04 UTC"))
}

// textBox writes lines into a white box anchored at the bottom-left (or
// top-right when right is set) corner of the map.
func (c *canvas) textBox(lines []string, colors []string, right bool) {
	if len(lines) == 0 {
		return
	}
	const pad, lineHeight = 6.0, infoFontSize + 4.0
	width := 0.0
	for _, l := range lines {
		width = max(width, float64(len([]rune(l)))*infoFontSize*0.6)
	}
	width += 2 * pad
	height := float64(len(lines))*lineHeight + pad

	x, y := c.project(-180, -90)
	x += 8
	y -= height + 8
	if right {
		x, y = c.project(180, 90)
		x -= width + 8
		y += 8
	}
	fmt.Fprintf(&c.b, `<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" rx="4" fill="white" fill-opacity="0.8" stroke="%s" stroke-width="0.5"/>`,
		x, y, width, height, gridColor)
	for i, l := range lines {
		color := "black"
		if i < len(colors) && colors[i] != "" {
			color = colors[i]
		}
		fmt.Fprintf(&c.b, `<text x="%.1f" y="%.1f" fill="%s" font-size="%d">%s</text>`,
			x+pad, y+float64(i+1)*lineHeight, color, infoFontSize, html.EscapeString(l))
	}
}

func (c *canvas) finish(w io.Writer) error {
	c.b.WriteString(`</svg>`)
	_, err := io.WriteString(w, c.b.String())
	return err
}

// infoLines summarizes a trajectory for the info box.
func infoLines(traj propagation.Trajectory, period time.Duration) []string {
	lines := []string{
		fmt.Sprintf("Duration: %.1f hours", traj.Span().Hours()),
		fmt.Sprintf("Points: %d", traj.Len()),
	}
	if period > 0 {
		lines = append(lines, fmt.Sprintf("Period: %.1f min", period.Minutes()))
	}
	if traj.Len() > 0 {
		lines = append(lines, fmt.Sprintf("Mean altitude: %.1f km", traj.MeanAltitude()))
	}
	return append(lines, altitudeNotice)
}

// WriteGroundTrack renders traj, already split into segs, as a single-colour
// ground track map with direction arrows, start/end markers and an info box.
func WriteGroundTrack(w io.Writer, traj propagation.Trajectory, segs []groundtrack.Segment, opts Options) error {
	c := newCanvas(opts)
	if traj.Len() == 0 {
		x, y := c.project(0, 0)
		fmt.Fprintf(&c.b, `<text x="%.1f" y="%.1f" fill="black" font-size="%d" text-anchor="middle">No ground track points.</text>`, x, y, titleFontSize)
		return c.finish(w)
	}

	for _, seg := range segs {
		if c.polyline(seg, trackColor, trackStrokePx) {
			c.arrows(seg, trackColor)
		}
	}
	c.endpoints(traj.Points[0], traj.Points[traj.Len()-1])
	c.textBox(infoLines(traj, opts.Period), nil, false)
	return c.finish(w)
}

// WriteOrbits renders up to len(orbitColors) orbits, each split at
// thresholdDeg and drawn in its own colour with a legend entry.
func WriteOrbits(w io.Writer, orbits []propagation.Trajectory, thresholdDeg float64, opts Options) error {
	c := newCanvas(opts)
	var legend, colors []string
	for i, orbit := range orbits {
		if i == len(orbitColors) {
			break
		}
		drawn := false
		for _, seg := range groundtrack.Split(orbit, thresholdDeg) {
			drawn = c.polyline(seg, orbitColors[i], orbitStrokePx) || drawn
		}
		if drawn {
			legend = append(legend, fmt.Sprintf("Orbit %d", i+1))
			colors = append(colors, orbitColors[i])
		}
	}
	c.textBox(legend, colors, true)
	return c.finish(w)
}
