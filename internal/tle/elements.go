package tle

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
)

// OrbitalElements are the decoded mean elements of one two-line set.
// Angles are in degrees, mean motion in revolutions per day.
type OrbitalElements struct {
	Name           string
	NORADID        int
	Classification byte
	Designator     string
	Epoch          time.Time

	MeanMotionDot float64 // rev/day², first derivative / 2
	Bstar         float64 // 1/earth radii

	Inclination      float64
	RAAN             float64
	Eccentricity     float64
	ArgPerigee       float64
	MeanAnomaly      float64
	MeanMotion       float64
	RevolutionNumber int

	Line1 string
	Line2 string
}

// ParseElements decodes a two-line element set. Both lines must be 69
// characters with valid checksums and matching catalogue numbers.
func ParseElements(name, line1, line2 string) (OrbitalElements, error) {
	line1 = strings.TrimSpace(line1)
	line2 = strings.TrimSpace(line2)

	if len(line1) != lineLength {
		return OrbitalElements{}, fmt.Errorf("%w: line 1 length %d, expected %d", ErrFormat, len(line1), lineLength)
	}
	if len(line2) != lineLength {
		return OrbitalElements{}, fmt.Errorf("%w: line 2 length %d, expected %d", ErrFormat, len(line2), lineLength)
	}
	if line1[0] != '1' || line2[0] != '2' {
		return OrbitalElements{}, fmt.Errorf("%w: lines must start with '1' and '2'", ErrFormat)
	}
	if err := verifyChecksum(1, line1); err != nil {
		return OrbitalElements{}, err
	}
	if err := verifyChecksum(2, line2); err != nil {
		return OrbitalElements{}, err
	}

	entry, err := newEntry(name, line1, line2)
	if err != nil {
		return OrbitalElements{}, err
	}

	el := OrbitalElements{
		Name:           entry.Name,
		NORADID:        entry.NORADID,
		Classification: line1[7],
		Designator:     strings.TrimSpace(line1[9:17]),
		Epoch:          entry.Epoch,
		Line1:          line1,
		Line2:          line2,
	}

	p := fieldParser{line: 1, src: line1}
	el.MeanMotionDot = p.decimal("mean motion derivative", 33, 43)
	el.Bstar = p.exponent("B*", 53, 61)

	p = fieldParser{line: 2, src: line2}
	if id := p.integer("catalogue number", 2, 7); p.err == nil && id != el.NORADID {
		return OrbitalElements{}, fmt.Errorf("%w: catalogue numbers differ between lines (%d vs %d)", ErrFormat, el.NORADID, id)
	}
	el.Inclination = p.decimal("inclination", 8, 16)
	el.RAAN = p.decimal("RAAN", 17, 25)
	el.Eccentricity = p.decimal("eccentricity", 26, 33, "0.")
	el.ArgPerigee = p.decimal("argument of perigee", 34, 42)
	el.MeanAnomaly = p.decimal("mean anomaly", 43, 51)
	el.MeanMotion = p.decimal("mean motion", 52, 63)
	el.RevolutionNumber = p.integer("revolution number", 63, 68)
	if p.err != nil {
		return OrbitalElements{}, p.err
	}

	if !(el.MeanMotion > 0) {
		return OrbitalElements{}, fmt.Errorf("%w: mean motion %g must be positive", ErrFormat, el.MeanMotion)
	}
	return el, nil
}

// Period returns the orbital period implied by the mean motion.
func (e OrbitalElements) Period() time.Duration {
	return time.Duration(e.PeriodMinutes() * float64(time.Minute))
}

// PeriodMinutes returns the orbital period in minutes.
func (e OrbitalElements) PeriodMinutes() float64 {
	if e.MeanMotion <= 0 {
		return math.Inf(1)
	}
	return 1440.0 / e.MeanMotion
}

// Entry returns the raw catalogue form of the elements.
func (e OrbitalElements) Entry() Entry {
	return Entry{NORADID: e.NORADID, Name: e.Name, Epoch: e.Epoch, Line1: e.Line1, Line2: e.Line2}
}

// WriteSummary prints the elements in a human-readable block.
func (e OrbitalElements) WriteSummary(w io.Writer) error {
	rule := strings.Repeat("=", 60)
	name := e.Name
	if name == "" {
		name = fmt.Sprintf("NORAD %d", e.NORADID)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\nORBITAL ELEMENTS FOR: %s\n%s\n", rule, name, rule)
	fmt.Fprintf(&b, "\nNORAD ID: %d   Designator: %s   Class: %c\n", e.NORADID, e.Designator, e.Classification)
	fmt.Fprintf(&b, "Epoch: %s (year %d, day %.8f)\n", e.Epoch.Format(time.RFC3339Nano), e.Epoch.Year(), dayOfYear(e.Epoch))
	b.WriteString("\nKeplerian Orbital Elements:\n")
	fmt.Fprintf(&b, "  Inclination:              %.4f°\n", e.Inclination)
	fmt.Fprintf(&b, "  RAAN:                     %.4f°\n", e.RAAN)
	fmt.Fprintf(&b, "  Eccentricity:             %.7f\n", e.Eccentricity)
	fmt.Fprintf(&b, "  Argument of Perigee:      %.4f°\n", e.ArgPerigee)
	fmt.Fprintf(&b, "  Mean Anomaly:             %.4f°\n", e.MeanAnomaly)
	fmt.Fprintf(&b, "  Mean Motion:              %.8f revs/day\n", e.MeanMotion)
	fmt.Fprintf(&b, "  Period:                   %.2f min\n", e.PeriodMinutes())
	fmt.Fprintf(&b, "\nDrag Coefficient (B*):      %.8e\n", e.Bstar)
	fmt.Fprintf(&b, "%s\n", rule)

	_, err := io.WriteString(w, b.String())
	return err
}

func dayOfYear(t time.Time) float64 {
	start := time.Date(t.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	return 1 + t.Sub(start).Hours()/24
}

// fieldParser extracts fixed-column fields from one TLE line, keeping the
// first error.
type fieldParser struct {
	line int
	src  string
	err  error
}

func (p *fieldParser) fail(field string, raw string) {
	if p.err == nil {
		p.err = fmt.Errorf("%w: line %d: invalid %s %q", ErrFormat, p.line, field, raw)
	}
}

func (p *fieldParser) integer(field string, from, to int) int {
	raw := p.src[from:to]
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		p.fail(field, raw)
	}
	return v
}

// decimal parses a plain decimal field. A prefix is prepended for fields with
// an implied leading decimal point.
func (p *fieldParser) decimal(field string, from, to int, prefix ...string) float64 {
	raw := p.src[from:to]
	s := strings.TrimSpace(raw)
	if len(prefix) > 0 {
		s = prefix[0] + s
	}
	// ".00007749" and "-.00001" omit the leading zero.
	if strings.HasPrefix(s, "-.") {
		s = "-0" + s[1:]
	} else if strings.HasPrefix(s, "+.") || strings.HasPrefix(s, ".") {
		s = "0" + strings.TrimPrefix(s, "+")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		p.fail(field, raw)
	}
	return v
}

// exponent parses the packed " SNNNNN±E" form: an assumed leading decimal
// point and a power-of-ten exponent.
func (p *fieldParser) exponent(field string, from, to int) float64 {
	raw := p.src[from:to]
	s := strings.TrimSpace(raw)
	if len(s) < 3 {
		p.fail(field, raw)
		return 0
	}
	mantissa, exp := s[:len(s)-2], s[len(s)-2:]

	sign := 1.0
	switch {
	case strings.HasPrefix(mantissa, "-"):
		sign, mantissa = -1, mantissa[1:]
	case strings.HasPrefix(mantissa, "+"):
		mantissa = mantissa[1:]
	}
	m, err := strconv.ParseFloat("0."+mantissa, 64)
	if err != nil {
		p.fail(field, raw)
		return 0
	}
	e, err := strconv.Atoi(exp)
	if err != nil {
		p.fail(field, raw)
		return 0
	}
	return sign * m * math.Pow(10, float64(e))
}
