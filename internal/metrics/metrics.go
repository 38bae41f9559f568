package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Build results recorded by RecordBuild.
const (
	ResultOK      = "ok"
	ResultPartial = "partial"
	ResultError   = "error"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groundtrack_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "groundtrack_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	trajectoryBuildsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groundtrack_trajectory_builds_total",
			Help: "Trajectory builds by result (ok, partial, error).",
		},
		[]string{"result"},
	)

	trajectoryPointsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "groundtrack_trajectory_points_total",
			Help: "Geodetic points produced across all trajectory builds.",
		},
	)

	propagationErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "groundtrack_propagation_errors_total",
			Help: "Instants whose state could not be propagated or transformed.",
		},
	)

	trajectoryBuildDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "groundtrack_trajectory_build_duration_seconds",
			Help:    "Wall time of a trajectory build.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	segmentsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "groundtrack_segments_total",
			Help: "Ground track segments produced by antimeridian splitting.",
		},
	)

	tleDatasetCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "groundtrack_tle_dataset_count",
			Help: "Number of satellites in the loaded TLE dataset.",
		},
	)

	tleDatasetAge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "groundtrack_tle_dataset_age_seconds",
			Help: "Seconds since the loaded TLE dataset was fetched.",
		},
	)

	propagationWorkers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "groundtrack_propagation_workers",
			Help: "Configured size of the propagation worker pool.",
		},
	)

	cacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "groundtrack_track_cache_hits_total",
			Help: "Trajectory cache hits.",
		},
	)

	cacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "groundtrack_track_cache_misses_total",
			Help: "Trajectory cache misses.",
		},
	)

	cacheEvictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "groundtrack_track_cache_evictions_total",
			Help: "Trajectory cache entries evicted for age, capacity or a dataset change.",
		},
	)

	cacheEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "groundtrack_track_cache_entries",
			Help: "Trajectories currently cached.",
		},
	)

	buildsRejectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "groundtrack_builds_rejected_total",
			Help: "Ground track requests rejected by the concurrent build limit.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		trajectoryBuildsTotal,
		trajectoryPointsTotal,
		propagationErrorsTotal,
		trajectoryBuildDuration,
		segmentsTotal,
		tleDatasetCount,
		tleDatasetAge,
		propagationWorkers,
		cacheHitsTotal,
		cacheMissesTotal,
		cacheEvictionsTotal,
		cacheEntries,
		buildsRejectedTotal,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordBuild records one trajectory build.
func RecordBuild(result string, points, failures int, d time.Duration) {
	trajectoryBuildsTotal.WithLabelValues(result).Inc()
	trajectoryPointsTotal.Add(float64(points))
	propagationErrorsTotal.Add(float64(failures))
	trajectoryBuildDuration.Observe(d.Seconds())
}

// RecordSegments adds n produced segments.
func RecordSegments(n int) {
	segmentsTotal.Add(float64(n))
}

// SetTLEDatasetCount sets the number of loaded satellites.
func SetTLEDatasetCount(n int) {
	tleDatasetCount.Set(float64(n))
}

// SetTLEDatasetAge sets the dataset age gauge.
func SetTLEDatasetAge(seconds float64) {
	tleDatasetAge.Set(seconds)
}

// SetPropagationWorkers sets the worker pool size gauge.
func SetPropagationWorkers(n int) {
	propagationWorkers.Set(float64(n))
}

// IncCacheHits increments the trajectory cache hit counter.
func IncCacheHits() {
	cacheHitsTotal.Inc()
}

// IncCacheMisses increments the trajectory cache miss counter.
func IncCacheMisses() {
	cacheMissesTotal.Inc()
}

// AddCacheEvictions adds n evicted entries.
func AddCacheEvictions(n int) {
	cacheEvictionsTotal.Add(float64(n))
}

// SetCacheEntries sets the cached trajectory gauge.
func SetCacheEntries(n int) {
	cacheEntries.Set(float64(n))
}

// IncBuildsRejected counts a request refused by the build limiter.
func IncBuildsRejected() {
	buildsRejectedTotal.Inc()
}

var exactRoutes = map[string]bool{
	"/":                  true,
	"/healthz":           true,
	"/readyz":            true,
	"/metrics":           true,
	"/api/v1/satellites": true,
}

// normalizeRoute maps a request path to a bounded set of label values.
func normalizeRoute(path string) string {
	if exactRoutes[path] {
		return path
	}
	rest, ok := strings.CutPrefix(path, "/api/v1/groundtrack/")
	if !ok {
		return "other"
	}
	id, suffix, _ := strings.Cut(rest, "/")
	if _, err := strconv.Atoi(id); err != nil || id == "" {
		return "other"
	}
	switch suffix {
	case "":
		if strings.HasSuffix(rest, "/") {
			return "other"
		}
		return "/api/v1/groundtrack/{norad_id}"
	case "map.svg":
		return "/api/v1/groundtrack/{norad_id}/map.svg"
	}
	return "other"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		route := normalizeRoute(r.URL.Path)
		httpRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(rw.statusCode)).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
