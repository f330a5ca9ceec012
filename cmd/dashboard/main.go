package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/glacier-risk-map/internal/adapter/geoapify"
	httpadapter "github.com/couchcryptid/glacier-risk-map/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/glacier-risk-map/internal/adapter/kafka"
	"github.com/couchcryptid/glacier-risk-map/internal/adapter/lakeapi"
	"github.com/couchcryptid/glacier-risk-map/internal/config"
	"github.com/couchcryptid/glacier-risk-map/internal/domain"
	"github.com/couchcryptid/glacier-risk-map/internal/engine"
	"github.com/couchcryptid/glacier-risk-map/internal/geosearch"
	"github.com/couchcryptid/glacier-risk-map/internal/observability"
	"github.com/couchcryptid/glacier-risk-map/internal/session"
	"github.com/couchcryptid/glacier-risk-map/internal/triage"
	"github.com/couchcryptid/glacier-risk-map/internal/uiloop"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing, logger)
	if err != nil {
		logger.Error("failed to init tracing", "error", err)
		os.Exit(1)
	}

	// Initialize geocoder (feature-flagged via GEOCODE_ENABLED / GEOAPIFY_API_KEY).
	var (
		geocoder domain.Geocoder
		places   httpadapter.PlaceSearch
	)
	if cfg.GeocodeEnabled {
		client := geoapify.NewClient(cfg.GeoapifyKey, cfg.GeocodeTimeout, metrics, logger)
		cached, err := geoapify.NewCachedGeocoder(client, cfg.GeocodeCacheSize, metrics)
		if err != nil {
			logger.Error("failed to create geocode cache", "error", err)
			os.Exit(1)
		}
		geocoder = cached
		places = geosearch.New(cached, logger)
		metrics.GeocodeEnabled.Set(1)
		logger.Info("geoapify geocoding enabled", "cache_size", cfg.GeocodeCacheSize, "timeout", cfg.GeocodeTimeout)
	} else {
		logger.Info("geoapify geocoding disabled")
	}

	lakes, err := lakeapi.NewClient(cfg.LakeAPIURL, cfg.LakeAPITimeout, logger)
	if err != nil {
		logger.Error("failed to create lake API client", "error", err)
		os.Exit(1)
	}

	// Decision events (feature-flagged via KAFKA_ENABLED).
	var (
		publisher triage.Publisher
		writer    *kafkaadapter.DecisionWriter
	)
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewDecisionWriter(cfg, logger)
		publisher = writer
		logger.Info("decision events enabled", "topic", cfg.KafkaDecisionTopic)
	}

	loop := uiloop.New(256)
	go loop.Run(ctx)

	eng := engine.New(loop, lakes, geocoder, logger, metrics, engine.Options{
		RefreshOnSelect: cfg.RefreshOnSelect,
		FrameInterval:   cfg.FrameInterval,
		MaxAttempts:     cfg.LakeAPIMaxAttempts,
		Clock:           clockwork.NewRealClock(),
	})
	if err := eng.Mount(ctx); err != nil {
		logger.Error("failed to mount map", "error", err)
		os.Exit(1)
	}

	sessions := session.New(lakes, logger)
	sessions.Load(ctx)
	notifications := triage.NewService(lakes, sessions, publisher, metrics, logger)

	srv := httpadapter.NewServer(cfg.HTTPAddr, httpadapter.Dependencies{
		Map:      eng,
		Sessions: sessions,
		Triage:   notifications,
		Places:   places,
	}, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Initial dataset load. Readiness stays false until it succeeds.
	go func() {
		if _, err := eng.Refresh(ctx); err != nil {
			logger.Error("initial dataset load failed", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	<-loop.Done()
	eng.Wait()
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	observability.ShutdownTracing(shutdownCtx, shutdownTracing, logger)

	logger.Info("shutdown complete")
}
