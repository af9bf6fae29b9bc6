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

	httpadapter "github.com/floodwatch/flood-alert-service/internal/adapter/http"
	kafkaadapter "github.com/floodwatch/flood-alert-service/internal/adapter/kafka"
	"github.com/floodwatch/flood-alert-service/internal/adapter/model"
	"github.com/floodwatch/flood-alert-service/internal/adapter/sms"
	"github.com/floodwatch/flood-alert-service/internal/alert"
	"github.com/floodwatch/flood-alert-service/internal/config"
	"github.com/floodwatch/flood-alert-service/internal/forecast"
	"github.com/floodwatch/flood-alert-service/internal/notify"
	"github.com/floodwatch/flood-alert-service/internal/observability"
	"github.com/floodwatch/flood-alert-service/internal/pipeline"
	"github.com/floodwatch/flood-alert-service/internal/ratelimit"
	"github.com/floodwatch/flood-alert-service/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	// Choose the forecast engine. With no inference server configured the
	// heuristic fallback runs and every forecast is flagged degraded.
	var engine forecast.Engine
	if cfg.ModelURL != "" {
		inScaler, outScaler, err := forecast.LoadScalers(cfg.ScalerPath)
		if err != nil {
			logger.Error("failed to load scalers", "path", cfg.ScalerPath, "error", err)
			os.Exit(1)
		}
		client := model.NewClient(cfg.ModelURL, cfg.ModelTimeout, logger)
		engine, err = forecast.NewModelEngine(client, inScaler, outScaler, logger)
		if err != nil {
			logger.Error("failed to build model engine", "error", err)
			os.Exit(1)
		}
		logger.Info("model engine enabled", "url", cfg.ModelURL)
	} else {
		engine = forecast.NewHeuristicEngine(logger)
		metrics.DegradedMode.Set(1)
		logger.Warn("no model configured, running heuristic fallback")
	}

	var gateway notify.Gateway
	if cfg.SMSDisabled {
		gateway = &sms.NopGateway{Logger: logger}
		logger.Info("sms gateway disabled, warnings logged only")
	} else {
		gateway = sms.NewClient(cfg.SMSAPIURL, cfg.SMSAPIKey, cfg.SMSDeviceID, cfg.SMSTimeout, logger)
		logger.Info("sms gateway enabled", "device", cfg.SMSDeviceID)
	}

	// Long-lived handle for the HTTP API and Kafka ingestor. The forecast
	// loop opens its own connection each cycle.
	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer db.Close() //nolint:errcheck

	profiles, err := db.RiskProfiles(context.Background())
	if err != nil {
		logger.Error("failed to load area risk profiles", "error", err)
		os.Exit(1)
	}
	if len(profiles) == 0 {
		logger.Warn("no area risk profiles configured, no warnings will be issued")
	}

	deduper := alert.New(cfg.CooldownWindow, clock, logger, metrics)
	dispatcher := notify.NewDispatcher(gateway, logger, metrics)

	open := func() (pipeline.Store, error) { return store.Open(cfg.DatabasePath) }
	p := pipeline.New(open, engine, deduper, dispatcher, profiles,
		cfg.LocationID, cfg.CycleInterval, clock, logger, metrics)

	limiter := ratelimit.New(ratelimit.NewMemoryStore(clock), clock, logger, metrics)
	srv := httpadapter.NewServer(cfg.HTTPAddr, p, db, limiter,
		cfg.RateLimit, cfg.RateWindow, cfg.LocationID, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start the optional Kafka telemetry ingestor.
	var ingestor *kafkaadapter.Ingestor
	if len(cfg.KafkaBrokers) > 0 {
		ingestor = kafkaadapter.NewIngestor(cfg, db, logger)
		go func() {
			if err := ingestor.Run(ctx); err != nil {
				logger.Error("kafka ingestor error", "error", err)
			}
		}()
	}

	// Start the forecast loop.
	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("forecast loop error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if ingestor != nil {
		if err := ingestor.Close(); err != nil {
			logger.Error("kafka ingestor close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
