package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/medloop/clinic-ops/internal/api/router"
	"github.com/medloop/clinic-ops/internal/appointments"
	"github.com/medloop/clinic-ops/internal/audit"
	"github.com/medloop/clinic-ops/internal/availability"
	appconfig "github.com/medloop/clinic-ops/internal/config"
	"github.com/medloop/clinic-ops/internal/doctors"
	"github.com/medloop/clinic-ops/internal/doctorstatus"
	"github.com/medloop/clinic-ops/internal/events"
	"github.com/medloop/clinic-ops/internal/observability/metrics"
	"github.com/medloop/clinic-ops/internal/queue"
	"github.com/medloop/clinic-ops/internal/scheduling"
	"github.com/medloop/clinic-ops/pkg/logging"
)

func main() {
	// Best effort: .env is a local development convenience.
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting clinic-ops API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage. A single pgx pool backs every repository; the in-memory
	// variants exist for local development and tests.
	var (
		templates   availability.Repository
		appts       appointments.Reader
		directory   doctors.Directory
		store       queue.Store
		statusStore doctorstatus.Store
		recorder    audit.Recorder
	)
	if cfg.UseMemoryStore || cfg.DatabaseURL == "" {
		logger.Warn("using in-memory stores; state will not survive a restart")
		mem := queue.NewMemoryStore()
		store = mem
		statusStore = mem
		templates = availability.NewInMemoryRepository()
		appts = appointments.NewInMemoryReader()
		directory = doctors.NewInMemoryDirectory()
		recorder = audit.NewInMemoryRecorder()
	} else {
		pool, err := pgxpool.New(runCtx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to create database pool", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		if err := pool.Ping(runCtx); err != nil {
			logger.Error("database unreachable", "error", err)
			os.Exit(1)
		}
		store = queue.NewPostgresStore(pool)
		statusStore = doctorstatus.NewPostgresStore(pool)
		templates = availability.NewPostgresRepository(pool)
		appts = appointments.NewPostgresReader(pool)
		directory = doctors.NewPostgresDirectory(pool)
		recorder = audit.NewPostgresRecorder(pool)
	}

	// Metrics.
	registry := prometheus.NewRegistry()
	queueMetrics := metrics.NewQueueMetrics(registry)
	slotMetrics := metrics.NewSlotMetrics(registry)
	metricsHandler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	// Realtime fan-out. Redis is optional; without it broadcasts stay
	// instance-local.
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		opts := &redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		rdb = redis.NewClient(opts)
		defer func() { _ = rdb.Close() }()
	}
	hub := events.NewHub(logger)
	broadcaster := events.NewBroadcaster(hub, rdb, logger)
	go func() {
		if err := broadcaster.Run(runCtx); err != nil && err != context.Canceled {
			logger.Error("event subscriber stopped", "error", err)
		}
	}()

	// Domain services.
	statuses := doctorstatus.NewManager(statusStore, store, logger)
	statuses.Subscribe(broadcaster.StatusChanged)
	orchestrator := queue.NewOrchestrator(store, directory, appts, statuses,
		recorder, broadcaster, queueMetrics, logger)
	generator := scheduling.NewGenerator(templates, appts, directory, slotMetrics, logger).
		WithMaxRange(cfg.MaxSlotRangeDays)

	if cfg.StaffJWTSecret == "" {
		logger.Warn("STAFF_JWT_SECRET is not set; staff routes will reject all requests")
	}

	// Setup router
	routerCfg := &router.Config{
		Logger:              logger,
		AvailabilityHandler: availability.NewHandler(availability.NewService(templates, directory, logger), logger),
		SchedulingHandler:   scheduling.NewHandler(generator, logger),
		QueueHandler:        queue.NewHandler(orchestrator, statuses, logger),
		StatusHandler:       doctorstatus.NewHandler(statuses, logger),
		Hub:                 hub,
		MetricsHandler:      metricsHandler,
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
		StaffJWTSecret:      cfg.StaffJWTSecret,
	}
	r := router.New(routerCfg)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	cancel()

	// Graceful shutdown with timeout
	ctx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
