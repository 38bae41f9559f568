package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/star/groundtrack/internal/cache"
	"github.com/star/groundtrack/internal/config"
	"github.com/star/groundtrack/internal/export"
	"github.com/star/groundtrack/internal/groundtrack"
	"github.com/star/groundtrack/internal/httputil"
	"github.com/star/groundtrack/internal/metrics"
	"github.com/star/groundtrack/internal/propagation"
	"github.com/star/groundtrack/internal/render"
	"github.com/star/groundtrack/internal/timegrid"
	"github.com/star/groundtrack/internal/tle"
	"github.com/star/groundtrack/internal/transform"
)

// ServiceConfig carries the request defaults and limits.
type ServiceConfig struct {
	Frame     transform.Frame
	Prop      propagation.Config
	Threshold float64 // degrees
	MaxPoints int     // per-request grid budget; 0 means unlimited

	MaxBuildsPerIP int  // concurrent builds per client; 0 means unlimited
	MaxBuilds      int  // concurrent builds overall; 0 means unlimited
	TrustProxy     bool // identify clients by X-Forwarded-For / X-Real-IP

	Cache *cache.TrackCache // optional
}

// Service answers ground track requests against the current TLE dataset.
type Service struct {
	store   *tle.Store
	catalog *propagation.Catalog
	pool    *propagation.WorkerPool
	limiter *buildLimiter
	cfg     ServiceConfig
	logger  *slog.Logger
	now     func() time.Time
}

// NewService builds a Service over store.
func NewService(store *tle.Store, cfg ServiceConfig, logger *slog.Logger) *Service {
	if cfg.Threshold <= 0 {
		cfg.Threshold = groundtrack.DefaultThreshold
	}
	return &Service{
		store:   store,
		catalog: propagation.NewCatalog(store, cfg.Prop.Gravity, logger),
		pool:    propagation.NewWorkerPool(cfg.Prop.Workers, logger),
		limiter: newBuildLimiter(cfg.MaxBuildsPerIP, cfg.MaxBuilds),
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// Ready reports whether a TLE dataset is loaded.
func (s *Service) Ready() bool { return s.store.Ready() }

// trackQuery is a parsed ground track request.
type trackQuery struct {
	noradID   int
	req       propagation.Request
	threshold float64
	format    string
}

// badRequest marks a client error in query parsing.
type badRequest struct {
	msg    string
	fields map[string]any
}

func (e *badRequest) Error() string { return e.msg }

func invalidParam(name, value string, err error) error {
	return &badRequest{msg: fmt.Sprintf("invalid %s %q: %v", name, value, err)}
}

func (s *Service) parseQuery(r *http.Request) (trackQuery, error) {
	q := trackQuery{
		req: propagation.Request{
			Start:    s.now().UTC().Truncate(time.Second),
			Step:     s.cfg.Prop.Step,
			Duration: s.cfg.Prop.Duration,
			Policy:   s.cfg.Prop.Policy,
		},
		threshold: s.cfg.Threshold,
		format:    "json",
	}

	raw := r.PathValue("norad_id")
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return q, &badRequest{msg: fmt.Sprintf("invalid norad_id %q", raw)}
	}
	q.noradID = id

	params := r.URL.Query()
	if v := params.Get("start"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return q, invalidParam("start", v, err)
		}
		q.req.Start = t.UTC()
	}
	if v := params.Get("step"); v != "" {
		d, err := config.ParseDuration(v)
		if err != nil {
			return q, invalidParam("step", v, err)
		}
		q.req.Step = d
	}
	if v := params.Get("duration"); v != "" {
		d, err := config.ParseDuration(v)
		if err != nil {
			return q, invalidParam("duration", v, err)
		}
		q.req.Duration = d
	}
	if v := params.Get("threshold"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil && !(f > 0 && f < 360) {
			err = errors.New("must be between 0 and 360 degrees")
		}
		if err != nil {
			return q, invalidParam("threshold", v, err)
		}
		q.threshold = f
	}
	if v := params.Get("policy"); v != "" {
		p, err := propagation.ParsePolicy(v)
		if err != nil {
			return q, &badRequest{msg: err.Error()}
		}
		q.req.Policy = p
	}
	if v := params.Get("format"); v != "" {
		switch f := strings.ToLower(v); f {
		case "json", "geojson", "yaml", "csv":
			q.format = f
		default:
			return q, &badRequest{msg: fmt.Sprintf("unsupported format %q (want json, geojson, yaml or csv)", v)}
		}
	}

	if q.req.Step <= 0 || q.req.Duration < 0 {
		return q, &badRequest{msg: fmt.Sprintf("%v: step %s, duration %s", timegrid.ErrInvalidConfiguration, q.req.Step, q.req.Duration)}
	}
	if err := propagation.CheckResolution(q.req.Start, q.req.Step); err != nil {
		return q, &badRequest{msg: err.Error()}
	}
	if points := int64(q.req.Duration/q.req.Step) + 1; s.cfg.MaxPoints > 0 && points > int64(s.cfg.MaxPoints) {
		return q, &badRequest{
			msg:    fmt.Sprintf("request needs %d points, exceeding the budget", points),
			fields: map[string]any{"max_points": s.cfg.MaxPoints, "points": points},
		}
	}
	return q, nil
}

// track is a built and segmented ground track.
type track struct {
	traj     propagation.Trajectory
	segs     []groundtrack.Segment
	elements tle.OrbitalElements
	warnings []string
}

// build propagates the requested satellite and splits its ground track,
// reusing a cached trajectory when one matches.
func (s *Service) build(ctx context.Context, q trackQuery) (track, error) {
	prop, err := s.catalog.Propagator(q.noradID)
	if err != nil {
		return track{}, err
	}
	el := prop.Elements()

	key := cache.NewKey(el.NORADID, q.req)
	traj, ok := s.cfg.Cache.Get(key)
	if !ok {
		b, err := propagation.NewBuilder(prop, s.cfg.Frame, s.logger,
			propagation.WithSatellite(el.Name, el.NORADID),
			propagation.WithPool(s.pool),
		)
		if err != nil {
			return track{}, err
		}
		if traj, err = b.Build(ctx, q.req); err != nil {
			return track{}, err
		}
		s.cfg.Cache.Put(key, traj)
	}

	t := track{
		traj:     traj,
		segs:     groundtrack.Split(traj, q.threshold),
		elements: el,
	}
	metrics.RecordSegments(len(t.segs))
	if err := groundtrack.CheckSampling(q.req.Step, el.Period(), q.threshold); err != nil {
		t.warnings = append(t.warnings, err.Error())
	}
	return t, nil
}

func (t track) document() export.TrackDocument {
	doc := export.NewTrackDocument(t.traj, t.segs)
	doc.Warnings = t.warnings
	return doc
}

// warn copies sampling warnings into response headers.
func (t track) warn(w http.ResponseWriter) {
	for _, warning := range t.warnings {
		w.Header().Add("X-Groundtrack-Warning", warning)
	}
}

func (s *Service) index(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "groundtrack",
		"endpoints": []string{
			"/healthz",
			"/readyz",
			"/metrics",
			"/api/v1/satellites",
			"/api/v1/groundtrack/{norad_id}",
			"/api/v1/groundtrack/{norad_id}/map.svg",
		},
	})
}

type satelliteSummary struct {
	NORADID int       `json:"norad_id"`
	Name    string    `json:"name"`
	Epoch   time.Time `json:"epoch"`
}

func (s *Service) satellites(w http.ResponseWriter, r *http.Request) {
	ds := s.store.Get()
	if ds == nil {
		writeError(w, http.StatusServiceUnavailable, propagation.ErrNoDataset.Error(), nil)
		return
	}

	filter := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q")))
	list := make([]satelliteSummary, 0, len(ds.Satellites))
	for _, e := range ds.Satellites {
		if filter != "" && !strings.Contains(strings.ToLower(e.Name), filter) {
			continue
		}
		list = append(list, satelliteSummary{NORADID: e.NORADID, Name: e.Name, Epoch: e.Epoch.UTC()})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].NORADID < list[j].NORADID })

	writeJSON(w, http.StatusOK, map[string]any{
		"source":     ds.Source,
		"fetched_at": ds.FetchedAt.UTC(),
		"count":      len(list),
		"satellites": list,
	})
}

func (s *Service) groundTrack(w http.ResponseWriter, r *http.Request) {
	q, err := s.parseQuery(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	release, ok := s.acquire(w, r)
	if !ok {
		return
	}
	defer release()

	t, err := s.build(r.Context(), q)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	// Encode into a buffer so encoder failures can still produce a 500.
	var buf bytes.Buffer
	contentType := "application/json"
	switch q.format {
	case "geojson":
		contentType = "application/geo+json"
		err = export.WriteGeoJSON(&buf, t.traj, t.segs)
	case "yaml":
		contentType = "application/yaml"
		err = export.WriteYAML(&buf, t.document())
	case "csv":
		contentType = "text/csv"
		err = export.WriteCSV(&buf, t.traj)
	default:
		err = export.WriteJSON(&buf, t.document())
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}

	t.warn(w)
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (s *Service) groundTrackMap(w http.ResponseWriter, r *http.Request) {
	q, err := s.parseQuery(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	orbits := false
	if v := r.URL.Query().Get("orbits"); v != "" {
		if orbits, err = strconv.ParseBool(v); err != nil {
			s.fail(w, r, invalidParam("orbits", v, err))
			return
		}
	}

	release, ok := s.acquire(w, r)
	if !ok {
		return
	}
	defer release()

	t, err := s.build(r.Context(), q)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	el := t.elements
	opts := render.Options{
		Title:  fmt.Sprintf("%s (%d) ground track", el.Name, el.NORADID),
		Period: el.Period(),
	}
	var buf bytes.Buffer
	if orbits {
		err = render.WriteOrbits(&buf, groundtrack.SplitOrbits(t.traj, el.Period()), q.threshold, opts)
	} else {
		err = render.WriteGroundTrack(&buf, t.traj, t.segs, opts)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}

	t.warn(w)
	w.Header().Set("Content-Type", "image/svg+xml")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// acquire reserves a build slot for the client, answering 429 when none is
// free.
func (s *Service) acquire(w http.ResponseWriter, r *http.Request) (func(), bool) {
	ip := httputil.ClientIP(r, s.cfg.TrustProxy)
	if !s.limiter.acquire(ip) {
		metrics.IncBuildsRejected()
		s.logger.Warn("build limit reached", "component", "api", "remote_ip", ip)
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusTooManyRequests, "too many concurrent ground track requests", nil)
		return nil, false
	}
	return func() { s.limiter.release(ip) }, true
}

// fail maps err to a status code and writes a JSON error body.
func (s *Service) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	var fields map[string]any
	var br *badRequest
	switch {
	case errors.As(err, &br):
		status = http.StatusBadRequest
		fields = br.fields
	case errors.Is(err, timegrid.ErrInvalidConfiguration):
		status = http.StatusBadRequest
	case errors.Is(err, propagation.ErrNoDataset):
		status = http.StatusServiceUnavailable
	case errors.Is(err, propagation.ErrUnknownSatellite):
		status = http.StatusNotFound
	case errors.Is(err, propagation.ErrPropagation):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			"component", "api",
			"path", r.URL.Path,
			"status", status,
			"error", err,
		)
	}
	writeError(w, status, err.Error(), fields)
}

func writeError(w http.ResponseWriter, status int, msg string, fields map[string]any) {
	body := map[string]any{"error": msg}
	for k, v := range fields {
		body[k] = v
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

