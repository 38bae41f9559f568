package tle

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrFormat is returned for text that is not a two-line element set.
	ErrFormat = errors.New("malformed TLE")

	// ErrChecksum is returned when a line's modulo-10 checksum does not match.
	ErrChecksum = errors.New("TLE checksum mismatch")
)

const lineLength = 69

// Parse reads 3-line NORAD TLE format from r and returns parsed entries.
// Malformed entries are skipped with a warning log.
func Parse(r io.Reader, logger *slog.Logger) ([]Entry, error) {
	lines, err := readLines(r)
	if err != nil {
		return nil, err
	}

	var entries []Entry
	for i := 0; i+2 < len(lines); {
		name, line1, line2 := lines[i], lines[i+1], lines[i+2]

		if !strings.HasPrefix(line1, "1 ") || !strings.HasPrefix(line2, "2 ") {
			// Resynchronise on the next line.
			logger.Warn("skipping malformed TLE entry", "line_index", i, "name", name)
			i++
			continue
		}

		entry, err := newEntry(name, line1, line2)
		if err != nil {
			logger.Warn("skipping TLE entry", "name", strings.TrimSpace(name), "error", err)
			i += 3
			continue
		}
		entries = append(entries, entry)
		i += 3
	}

	return entries, nil
}

// ReadFile reads a single satellite from a file holding a name line followed
// by the two element lines. The name line may be omitted.
func ReadFile(path string) (OrbitalElements, error) {
	f, err := os.Open(path)
	if err != nil {
		return OrbitalElements{}, fmt.Errorf("opening TLE file: %w", err)
	}
	defer f.Close()

	el, err := ReadSatellite(f)
	if err != nil {
		return OrbitalElements{}, fmt.Errorf("%s: %w", path, err)
	}
	return el, nil
}

// ReadSatellite reads one element set (2 or 3 lines) from r.
func ReadSatellite(r io.Reader) (OrbitalElements, error) {
	lines, err := readLines(r)
	if err != nil {
		return OrbitalElements{}, err
	}

	var name string
	switch {
	case len(lines) >= 3 && !strings.HasPrefix(lines[0], "1 "):
		name, lines = lines[0], lines[1:3]
	case len(lines) >= 2:
		lines = lines[:2]
	default:
		return OrbitalElements{}, fmt.Errorf("%w: need a name line and two element lines, got %d lines", ErrFormat, len(lines))
	}

	if !strings.HasPrefix(lines[0], "1 ") || !strings.HasPrefix(lines[1], "2 ") {
		return OrbitalElements{}, fmt.Errorf("%w: lines must start with '1 ' and '2 '", ErrFormat)
	}
	return ParseElements(name, lines[0], lines[1])
}

func readLines(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	var lines []string
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading TLE data: %w", err)
	}
	return lines, nil
}

func newEntry(name, line1, line2 string) (Entry, error) {
	// NORAD ID is line1 cols 3-7, epoch cols 19-32.
	if len(line1) < 32 {
		return Entry{}, fmt.Errorf("%w: line 1 too short (%d chars)", ErrFormat, len(line1))
	}
	noradStr := strings.TrimSpace(line1[2:7])
	noradID, err := strconv.Atoi(noradStr)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: invalid NORAD ID %q", ErrFormat, noradStr)
	}
	epoch, err := parseEpoch(strings.TrimSpace(line1[18:32]))
	if err != nil {
		return Entry{}, err
	}
	return Entry{
		NORADID: noradID,
		Name:    strings.TrimSpace(name),
		Epoch:   epoch,
		Line1:   line1,
		Line2:   line2,
	}, nil
}

// parseEpoch converts a TLE epoch string in YYDDD.DDDDDDDD format to time.Time.
// Year 00-56 → 2000s, 57-99 → 1900s.
func parseEpoch(s string) (time.Time, error) {
	if len(s) < 5 {
		return time.Time{}, fmt.Errorf("%w: epoch string too short: %q", ErrFormat, s)
	}

	year, err := strconv.Atoi(s[:2])
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid epoch year %q", ErrFormat, s[:2])
	}
	if year >= 57 {
		year += 1900
	} else {
		year += 2000
	}

	dayOfYear, err := strconv.ParseFloat(s[2:], 64)
	if err != nil || dayOfYear < 1 {
		return time.Time{}, fmt.Errorf("%w: invalid epoch day %q", ErrFormat, s[2:])
	}

	// Day 1 is Jan 1 00:00. Round to the microsecond, the resolution of the
	// 8-digit day fraction.
	days := math.Floor(dayOfYear)
	frac := time.Duration(math.Round((dayOfYear-days)*86400e6)) * time.Microsecond
	return time.Date(year, 1, int(days), 0, 0, 0, 0, time.UTC).Add(frac), nil
}

// Checksum returns the modulo-10 checksum of the first 68 characters of a
// TLE line: digits count their value, '-' counts 1, everything else 0.
func Checksum(line string) int {
	sum := 0
	for i := 0; i < len(line) && i < lineLength-1; i++ {
		switch c := line[i]; {
		case c >= '0' && c <= '9':
			sum += int(c - '0')
		case c == '-':
			sum++
		}
	}
	return sum % 10
}

func verifyChecksum(n int, line string) error {
	want, err := strconv.Atoi(line[lineLength-1:])
	if err != nil {
		return fmt.Errorf("%w: line %d checksum digit %q", ErrFormat, n, line[lineLength-1:])
	}
	if got := Checksum(line); got != want {
		return fmt.Errorf("%w: line %d has %d, computed %d", ErrChecksum, n, want, got)
	}
	return nil
}
