package propagation

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/star/groundtrack/internal/tle"
)

var (
	// ErrNoDataset is returned while the store holds no TLE dataset.
	ErrNoDataset = errors.New("no TLE dataset loaded")
	// ErrUnknownSatellite is returned for a catalogue number absent from the
	// dataset or whose elements failed to initialize SGP4.
	ErrUnknownSatellite = errors.New("unknown satellite")
)

// sgp4Cache holds preinitialized SGP4 propagators for a specific TLE dataset.
// Immutable after construction; safe for concurrent reads.
type sgp4Cache struct {
	dataset *tle.Dataset
	props   map[int]*SGP4Propagator
}

// Catalog hands out SGP4 propagators for the satellites of the current
// dataset in a tle.Store.
type Catalog struct {
	store   *tle.Store
	gravity Gravity
	logger  *slog.Logger
	sgp4    atomic.Pointer[sgp4Cache]
	sgp4Mu  sync.Mutex // serializes cache rebuilds
}

// NewCatalog creates a catalog over store.
func NewCatalog(store *tle.Store, gravity Gravity, logger *slog.Logger) *Catalog {
	return &Catalog{
		store:   store,
		gravity: gravity,
		logger:  logger,
	}
}

// Propagator returns the SGP4 propagator for noradID.
func (c *Catalog) Propagator(noradID int) (*SGP4Propagator, error) {
	ds := c.store.Get()
	if ds == nil {
		return nil, ErrNoDataset
	}
	sp, ok := c.cachedProps(ds)[noradID]
	if !ok {
		return nil, fmt.Errorf("%w: NORAD %d", ErrUnknownSatellite, noradID)
	}
	return sp, nil
}

// cachedProps returns preinitialized SGP4 propagators for the given dataset.
// Rebuilds the cache if the dataset has changed (double-checked locking).
func (c *Catalog) cachedProps(ds *tle.Dataset) map[int]*SGP4Propagator {
	if sc := c.sgp4.Load(); sc != nil && sc.dataset == ds {
		return sc.props
	}

	c.sgp4Mu.Lock()
	defer c.sgp4Mu.Unlock()

	if sc := c.sgp4.Load(); sc != nil && sc.dataset == ds {
		return sc.props
	}

	props := make(map[int]*SGP4Propagator, len(ds.Satellites))
	var skipped int
	for _, entry := range ds.Satellites {
		if _, ok := props[entry.NORADID]; ok {
			continue
		}
		el, err := entry.Elements()
		if err == nil {
			var sp *SGP4Propagator
			if sp, err = NewSGP4Propagator(el, c.gravity); err == nil {
				props[entry.NORADID] = sp
				continue
			}
		}
		c.logger.Warn("sgp4 cache init failed", "norad_id", entry.NORADID, "error", err)
		skipped++
	}

	c.logger.Info("sgp4 propagator cache rebuilt",
		"cached", len(props),
		"skipped", skipped,
		"dataset_fetched_at", ds.FetchedAt.UTC().Format(time.RFC3339),
	)
	c.sgp4.Store(&sgp4Cache{dataset: ds, props: props})
	return props
}
