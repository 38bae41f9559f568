package tle

import "time"

// Entry is a single satellite's raw two-line element set as read from a
// catalogue. Numeric fields are decoded on demand by Elements.
type Entry struct {
	NORADID int
	Name    string
	Epoch   time.Time
	Line1   string
	Line2   string
}

// Elements decodes and checksum-verifies the entry's element set.
func (e Entry) Elements() (OrbitalElements, error) {
	return ParseElements(e.Name, e.Line1, e.Line2)
}

// EpochRange represents the minimum and maximum epoch times in a dataset.
type EpochRange struct {
	Min time.Time
	Max time.Time
}

// Dataset is a complete catalogue snapshot from one source.
type Dataset struct {
	Source     string
	FetchedAt  time.Time
	EpochRange EpochRange
	Satellites []Entry

	byID map[int]int
}

// NewDataset indexes entries by NORAD ID and computes their epoch range.
// Later duplicates of a NORAD ID shadow earlier ones.
func NewDataset(source string, fetchedAt time.Time, entries []Entry) *Dataset {
	ds := &Dataset{
		Source:     source,
		FetchedAt:  fetchedAt,
		Satellites: entries,
		byID:       make(map[int]int, len(entries)),
	}
	for i, e := range entries {
		ds.byID[e.NORADID] = i
		if i == 0 || e.Epoch.Before(ds.EpochRange.Min) {
			ds.EpochRange.Min = e.Epoch
		}
		if i == 0 || e.Epoch.After(ds.EpochRange.Max) {
			ds.EpochRange.Max = e.Epoch
		}
	}
	return ds
}

// Lookup returns the entry for a NORAD catalogue number.
func (d *Dataset) Lookup(noradID int) (Entry, bool) {
	if d == nil {
		return Entry{}, false
	}
	if d.byID == nil {
		for _, e := range d.Satellites {
			if e.NORADID == noradID {
				return e, true
			}
		}
		return Entry{}, false
	}
	i, ok := d.byID[noradID]
	if !ok {
		return Entry{}, false
	}
	return d.Satellites[i], true
}
