package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/eternisai/maintenance-tracker/internal/config"
	"github.com/eternisai/maintenance-tracker/internal/devserver"
	"github.com/eternisai/maintenance-tracker/internal/events"
	"github.com/eternisai/maintenance-tracker/internal/logger"
	"github.com/eternisai/maintenance-tracker/internal/metrics"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log := logger.New(logger.FromConfig(cfg.LogLevel, cfg.LogFormat))

	log.Info("setting gin mode", slog.String("mode", cfg.GinMode))
	gin.SetMode(cfg.GinMode)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewPrometheusRecorder(reg)

	repo := devserver.NewRepository()
	repo.Seed(cfg.SeedRequests)
	if len(cfg.SeedRequests) > 0 {
		log.Info("seeded requests", slog.Int("count", len(cfg.SeedRequests)))
	}

	hub := events.NewHub(log, recorder)
	var notifier events.Notifier = hub

	// NATS is optional; without it change events only reach this instance's watchers.
	var bridge *events.Bridge
	if cfg.NatsURL != "" {
		nc, err := nats.Connect(cfg.NatsURL, nats.Name("maintenance-tracker-devserver"))
		if err != nil {
			log.Error("failed to connect to NATS", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer nc.Close()

		bridge = events.NewBridge(nc, hub, log, logger.GenerateRequestID())
		if err := bridge.Start(); err != nil {
			log.Error("failed to start events bridge", slog.String("error", err.Error()))
			os.Exit(1)
		}
		notifier = bridge
	}

	router := devserver.NewRouter(devserver.RouterConfig{
		Handler:        devserver.NewHandler(repo, notifier, log),
		Hub:            hub,
		Metrics:        metrics.HTTPHandler(reg),
		AllowedOrigins: cfg.AllowedOrigins(),
		Logger:         log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("dev backend listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("failed to start server", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	if bridge != nil {
		if err := bridge.Stop(); err != nil {
			log.Warn("events bridge shutdown failed", slog.String("error", err.Error()))
		}
	}
	hub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ServerShutdownTimeoutSeconds)*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log.Info("server exited")
}
