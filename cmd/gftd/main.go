package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.temporal.io/sdk/client"

	"github.com/Guymer/gft/internal/adapters/http"
	"github.com/Guymer/gft/internal/adapters/landdata"
	natsadapter "github.com/Guymer/gft/internal/adapters/nats"
	"github.com/Guymer/gft/internal/adapters/postgres"
	"github.com/Guymer/gft/internal/adapters/valkey"
	"github.com/Guymer/gft/internal/core/ports"
	"github.com/Guymer/gft/internal/core/usecases"
	"github.com/Guymer/gft/internal/pkg/config"
	"github.com/Guymer/gft/internal/pkg/logging"
	"github.com/Guymer/gft/internal/pkg/telemetry"
	"github.com/Guymer/gft/internal/workflows"
)

func main() {
	cfg, err := config.Load("gftd")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logging.Setup(logLevel, "json")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Archive database (optional). Without it the API serves live runs
	// and synchronous geometry only.
	var db *postgres.DB
	if cfg.Database.Enabled() {
		db, err = postgres.New(ctx, cfg.Database.DSN())
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		defer db.Close()
	} else {
		slog.Warn("no archive database configured, runs will not survive restarts")
	}

	// Cache
	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable", "error", err)
		cache = nil
	} else {
		defer cache.Close()
	}

	// NATS
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable", "error", err)
		pub = nil
	} else {
		defer pub.Close()
	}

	// Raw NATS connection for the WebSocket relay
	natsConn, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats ws conn unavailable", "error", err)
	}

	// Temporal (optional): durable runs step on workers.
	var starter *workflows.Starter
	tc, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		slog.Warn("temporal unavailable, durable runs disabled", "error", err)
	} else {
		defer tc.Close()
		starter = &workflows.Starter{
			Client:     tc,
			TaskQueue:  cfg.Temporal.TaskQueue,
			ChunkSteps: cfg.Temporal.ChunkSteps,
		}
	}

	// Land barrier provider
	land := landdata.NewProvider(cfg.Land.CacheDir, slog.Default())
	if cfg.Land.BaseURL != "" {
		land.BaseURL = cfg.Land.BaseURL
	}

	// Repos. Keep the interfaces nil when the archive is off so the
	// services skip persistence instead of calling through a nil pool.
	var (
		runRepo   ports.RunRepository
		frameRepo ports.FrameRepository
	)
	if db != nil {
		runRepo = postgres.NewRunRepo(db)
		frameRepo = postgres.NewFrameRepo(db)
	}
	var eventPub ports.EventPublisher
	if pub != nil {
		eventPub = pub
	}
	var cacheSvc ports.CacheService
	if cache != nil {
		cacheSvc = cache
	}

	// Use cases
	runSvc := usecases.NewRunService(land, runRepo, frameRepo, eventPub, slog.Default())
	isochroneSvc := usecases.NewIsochroneService(land, cacheSvc, slog.Default())
	isochroneSvc.MaxSteps = cfg.API.IsochroneMaxSteps
	landSvc := usecases.NewLandService(land, cacheSvc, slog.Default())
	complexitySvc := usecases.NewComplexityService(land, slog.Default())

	deps := &http.Dependencies{
		Runs:             runSvc,
		Isochrones:       isochroneSvc,
		Land:             landSvc,
		Complexity:       complexitySvc,
		Durable:          starter,
		NATS:             natsConn,
		DB:               db,
		Cache:            cache,
		IsochroneTimeout: time.Duration(cfg.API.IsochroneTimeout) * time.Second,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "GFT API",
	})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "*",
		AllowMethods:     "GET,POST,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	// Stop live runs before the deferred closes take the archive away.
	runSvc.Shutdown(shutdownCtx)

	slog.Info("server stopped")
}
