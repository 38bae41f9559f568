// Package config loads groundtrack settings from an optional config file and
// GROUNDTRACK_* environment variables.
//
// Keys are grouped in sections (http, log, auth, tle, prop, frame, track,
// cache, tracing); the environment variable for a key is its dotted path
// upper-cased with dots replaced by underscores, e.g. prop.workers is
// GROUNDTRACK_PROP_WORKERS. Malformed values are logged and replaced by their
// defaults, except auth settings, which are fatal.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/star/groundtrack/internal/auth"
	"github.com/star/groundtrack/internal/cache"
	"github.com/star/groundtrack/internal/groundtrack"
	"github.com/star/groundtrack/internal/observability"
	"github.com/star/groundtrack/internal/propagation"
	"github.com/star/groundtrack/internal/transform"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "GROUNDTRACK"

// ErrInvalidAuth is returned for auth settings that cannot be fixed by
// falling back to a default.
var ErrInvalidAuth = errors.New("invalid auth configuration")

// Config is the complete runtime configuration.
type Config struct {
	HTTP    HTTPConfig
	Log     LogConfig
	Auth    auth.Config
	TLE     TLEConfig
	Prop    propagation.Config
	Frame   transform.Frame
	Track   TrackConfig
	Cache   cache.Config
	Tracing observability.TracingConfig
}

// HTTPConfig configures the daemon's listener.
type HTTPConfig struct {
	Addr           string
	TrustProxy     bool // take client addresses from X-Forwarded-For / X-Real-IP
	MaxPoints      int  // per-request grid budget
	MaxBuildsPerIP int  // concurrent ground track builds per client
	MaxBuilds      int  // concurrent ground track builds overall
}

// TLEConfig configures where element sets come from.
type TLEConfig struct {
	FetchEnabled    bool
	SourceURL       string
	ExtraURLs       []string
	CacheDir        string
	MaxFiles        int
	RefreshInterval time.Duration
	File            string // local catalogue loaded at startup, if set
}

// TrackConfig configures ground track segmentation.
type TrackConfig struct {
	Threshold float64 // degrees
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.trust_proxy", "false")
	v.SetDefault("http.max_points", "20000")
	v.SetDefault("http.max_builds_per_ip", "4")
	v.SetDefault("http.max_builds", "64")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "")

	v.SetDefault("auth.enabled", "false")
	v.SetDefault("auth.token", "")

	v.SetDefault("tle.fetch_enabled", "true")
	v.SetDefault("tle.source_url", "")
	v.SetDefault("tle.extra_urls", "")
	v.SetDefault("tle.cache_dir", "/tmp/groundtrack/tle")
	v.SetDefault("tle.max_files", "5")
	v.SetDefault("tle.refresh_interval", "6h")
	v.SetDefault("tle.file", "")

	v.SetDefault("prop.workers", strconv.Itoa(runtime.NumCPU()))
	v.SetDefault("prop.step", "1m")
	v.SetDefault("prop.duration", "3h")
	v.SetDefault("prop.gravity", string(propagation.GravityWGS72))
	v.SetDefault("prop.policy", propagation.PolicyAbort.String())

	def := transform.DefaultFrame()
	v.SetDefault("frame.earth_radius_km", strconv.FormatFloat(def.EarthRadius, 'g', -1, 64))
	v.SetDefault("frame.rotation_rate", strconv.FormatFloat(def.Sidereal.Rate, 'g', -1, 64))
	v.SetDefault("frame.theta0", strconv.FormatFloat(def.Sidereal.Theta0, 'g', -1, 64))
	v.SetDefault("frame.epoch", def.Sidereal.Epoch.Format(time.RFC3339))

	v.SetDefault("track.threshold_deg", strconv.FormatFloat(groundtrack.DefaultThreshold, 'g', -1, 64))

	v.SetDefault("cache.ttl", "10m")
	v.SetDefault("cache.max_entries", "256")

	v.SetDefault("tracing.enabled", "false")
	v.SetDefault("tracing.exporter", "stdout")
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.sample_ratio", "1")
	v.SetDefault("tracing.service_name", "groundtrack")
}

// Load reads the config file at path (skipped when empty) and the
// environment. logger receives warnings about values replaced by defaults.
func Load(path string, logger *slog.Logger) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	l := loader{v: v, logger: logger}
	authCfg, err := l.auth()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		HTTP:    l.http(),
		Log:     l.log(),
		Auth:    authCfg,
		TLE:     l.tle(),
		Prop:    l.prop(),
		Frame:   l.frame(),
		Track:   TrackConfig{Threshold: l.float("track.threshold_deg", groundtrack.DefaultThreshold, func(f float64) bool { return f > 0 && f < 360 })},
		Cache:   l.cache(),
		Tracing: l.tracing(),
	}
	return cfg, nil
}

// loader reads typed values, falling back to defaults with a warning.
type loader struct {
	v      *viper.Viper
	logger *slog.Logger
}

func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func (l loader) warn(key, value string, def any) {
	l.logger.Warn("invalid configuration value, using default",
		"key", key,
		"env", envName(key),
		"value", value,
		"default", def,
	)
}

func (l loader) str(key string) string {
	return strings.TrimSpace(l.v.GetString(key))
}

func (l loader) integer(key string, def, minimum int) int {
	raw := l.str(key)
	n, err := strconv.Atoi(raw)
	if err != nil || n < minimum {
		l.warn(key, raw, def)
		return def
	}
	return n
}

func (l loader) float(key string, def float64, valid func(float64) bool) float64 {
	raw := l.str(key)
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || (valid != nil && !valid(f)) {
		l.warn(key, raw, def)
		return def
	}
	return f
}

func (l loader) boolean(key string, def bool) bool {
	raw := l.str(key)
	b, err := strconv.ParseBool(raw)
	if err != nil {
		l.warn(key, raw, def)
		return def
	}
	return b
}

// duration accepts Go duration strings ("90s", "1h30m") or whole seconds.
func (l loader) duration(key string, def time.Duration, allowZero bool) time.Duration {
	raw := l.str(key)
	d, err := ParseDuration(raw)
	if err != nil || d < 0 || (d == 0 && !allowZero) {
		l.warn(key, raw, def.String())
		return def
	}
	return d
}

// maxSeconds is the largest whole-second count a time.Duration can hold.
const maxSeconds = math.MaxInt64 / int64(time.Second)

// ParseDuration parses a Go duration string or a whole number of seconds.
// Second counts outside the range of time.Duration are rejected.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n > maxSeconds || n < -maxSeconds {
			return 0, fmt.Errorf("duration %q: %d seconds out of range", s, n)
		}
		return time.Duration(n) * time.Second, nil
	} else if errors.Is(err, strconv.ErrRange) {
		return 0, fmt.Errorf("duration %q: out of range", s)
	}
	return time.ParseDuration(s)
}

func (l loader) auth() (auth.Config, error) {
	cfg := auth.Config{}
	enabled, err := strconv.ParseBool(l.str("auth.enabled"))
	if err != nil {
		return cfg, fmt.Errorf("%w: %s must be a boolean value (true/false/1/0)", ErrInvalidAuth, envName("auth.enabled"))
	}
	cfg.Enabled = enabled

	if cfg.Enabled {
		cfg.Token = l.str("auth.token")
		if cfg.Token == "" {
			return cfg, fmt.Errorf("%w: %s is required when auth is enabled", ErrInvalidAuth, envName("auth.token"))
		}
	}
	return cfg, nil
}

func (l loader) http() HTTPConfig {
	return HTTPConfig{
		Addr:           l.str("http.addr"),
		TrustProxy:     l.boolean("http.trust_proxy", false),
		MaxPoints:      l.integer("http.max_points", 20000, 1),
		MaxBuildsPerIP: l.integer("http.max_builds_per_ip", 4, 0),
		MaxBuilds:      l.integer("http.max_builds", 64, 0),
	}
}

func (l loader) cache() cache.Config {
	return cache.Config{
		TTL:        l.duration("cache.ttl", 10*time.Minute, true),
		MaxEntries: l.integer("cache.max_entries", 256, 1),
	}
}

func (l loader) log() LogConfig {
	cfg := LogConfig{Level: slog.LevelInfo}
	raw := l.str("log.level")
	if err := cfg.Level.UnmarshalText([]byte(raw)); err != nil {
		l.warn("log.level", raw, "info")
		cfg.Level = slog.LevelInfo
	}
	switch f := strings.ToLower(l.str("log.format")); f {
	case "", FormatJSON, FormatText:
		cfg.Format = f
	default:
		l.warn("log.format", f, "binary default")
	}
	return cfg
}

func (l loader) tle() TLEConfig {
	cfg := TLEConfig{
		FetchEnabled:    l.boolean("tle.fetch_enabled", true),
		SourceURL:       l.str("tle.source_url"),
		CacheDir:        l.str("tle.cache_dir"),
		MaxFiles:        l.integer("tle.max_files", 5, 1),
		RefreshInterval: l.duration("tle.refresh_interval", 6*time.Hour, false),
		File:            l.str("tle.file"),
	}
	cfg.ExtraURLs = l.list("tle.extra_urls")
	return cfg
}

// list accepts a config-file sequence or a comma-separated string.
func (l loader) list(key string) []string {
	var items []string
	switch l.v.Get(key).(type) {
	case []any, []string:
		items = l.v.GetStringSlice(key)
	default:
		items = strings.Split(l.str(key), ",")
	}
	var out []string
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func (l loader) prop() propagation.Config {
	cfg := propagation.Config{
		Workers:  l.integer("prop.workers", runtime.NumCPU(), 1),
		Step:     l.duration("prop.step", time.Minute, false),
		Duration: l.duration("prop.duration", 3*time.Hour, true),
	}

	raw := l.str("prop.gravity")
	g, err := propagation.ParseGravity(raw)
	if err != nil {
		l.warn("prop.gravity", raw, string(g))
	}
	cfg.Gravity = g

	raw = l.str("prop.policy")
	p, err := propagation.ParsePolicy(raw)
	if err != nil {
		l.warn("prop.policy", raw, p.String())
	}
	cfg.Policy = p
	return cfg
}

func (l loader) frame() transform.Frame {
	def := transform.DefaultFrame()
	positive := func(f float64) bool { return f > 0 }

	f := transform.Frame{
		EarthRadius: l.float("frame.earth_radius_km", def.EarthRadius, positive),
		Sidereal: transform.SiderealModel{
			Epoch:  def.Sidereal.Epoch,
			Theta0: l.float("frame.theta0", def.Sidereal.Theta0, nil),
			Rate:   l.float("frame.rotation_rate", def.Sidereal.Rate, positive),
		},
	}
	// YAML files may decode the epoch as a timestamp already.
	if epoch, ok := l.v.Get("frame.epoch").(time.Time); ok {
		f.Sidereal.Epoch = epoch.UTC()
		return f
	}
	raw := l.str("frame.epoch")
	if epoch, err := time.Parse(time.RFC3339, raw); err != nil {
		l.warn("frame.epoch", raw, def.Sidereal.Epoch.Format(time.RFC3339))
	} else {
		f.Sidereal.Epoch = epoch.UTC()
	}
	return f
}

func (l loader) tracing() observability.TracingConfig {
	return observability.TracingConfig{
		Enabled:     l.boolean("tracing.enabled", false),
		ServiceName: l.str("tracing.service_name"),
		Exporter:    strings.ToLower(l.str("tracing.exporter")),
		Endpoint:    l.str("tracing.endpoint"),
		SampleRatio: l.float("tracing.sample_ratio", 1, func(f float64) bool { return f >= 0 && f <= 1 }),
	}
}
