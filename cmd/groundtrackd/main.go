// Command groundtrackd serves satellite ground tracks over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/star/groundtrack/internal/api"
	"github.com/star/groundtrack/internal/cache"
	"github.com/star/groundtrack/internal/config"
	"github.com/star/groundtrack/internal/metrics"
	"github.com/star/groundtrack/internal/observability"
	"github.com/star/groundtrack/internal/tle"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML/JSON/TOML config file")
	flag.Parse()

	// Configuration warnings are logged before the configured level is known.
	bootLogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	cfg, err := config.Load(*configPath, bootLogger)
	if err != nil {
		bootLogger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := cfg.Log.NewLogger(os.Stdout, config.FormatJSON)

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing, logger)
	if err != nil {
		logger.Error("tracing setup failed", "error", err)
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, logger)

	store := tle.NewStore()
	var fetcher *tle.Fetcher
	if cfg.TLE.FetchEnabled {
		fetcher = tle.NewFetcher(cfg.TLE.SourceURL, logger, cfg.TLE.ExtraURLs...)
	}
	loader := tle.NewLoader(store, fetcher, tle.NewCache(cfg.TLE.CacheDir, cfg.TLE.MaxFiles), logger)

	if cfg.TLE.File != "" {
		if err := loader.LoadFile(cfg.TLE.File); err != nil {
			logger.Warn("failed to load TLE file", "path", cfg.TLE.File, "error", err)
		}
	}
	if !store.Ready() {
		if err := loader.LoadCache(); err != nil {
			logger.Info("no TLE cache found, starting without TLE data", "error", err)
		}
	}
	if fetcher != nil {
		go func() {
			if err := loader.Refresh(ctx); err != nil {
				logger.Warn("initial TLE fetch failed", "error", err)
			}
			loader.Run(ctx, cfg.TLE.RefreshInterval)
		}()
	}

	metrics.SetPropagationWorkers(cfg.Prop.Workers)
	logger.Info("propagation config",
		"workers", cfg.Prop.Workers,
		"step_seconds", cfg.Prop.Step.Seconds(),
		"duration_seconds", cfg.Prop.Duration.Seconds(),
		"gravity", string(cfg.Prop.Gravity),
		"policy", cfg.Prop.Policy.String(),
		"threshold_deg", cfg.Track.Threshold,
	)

	trackCache := cache.NewTrackCache(cfg.Cache, store, logger)
	go trackCache.Start(ctx)

	svc := api.NewService(store, api.ServiceConfig{
		Frame:          cfg.Frame,
		Prop:           cfg.Prop,
		Threshold:      cfg.Track.Threshold,
		MaxPoints:      cfg.HTTP.MaxPoints,
		MaxBuildsPerIP: cfg.HTTP.MaxBuildsPerIP,
		MaxBuilds:      cfg.HTTP.MaxBuilds,
		TrustProxy:     cfg.HTTP.TrustProxy,
		Cache:          trackCache,
	}, logger)
	srv := api.NewServer(cfg.HTTP.Addr, logger, cfg.Auth, svc)

	go func() {
		logger.Info("starting server",
			"addr", cfg.HTTP.Addr,
			"auth_enabled", cfg.Auth.Enabled,
			"tle_fetch_enabled", cfg.TLE.FetchEnabled,
			"tracing_enabled", cfg.Tracing.Enabled,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
