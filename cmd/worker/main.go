package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/Guymer/gft/internal/adapters/landdata"
	natsadapter "github.com/Guymer/gft/internal/adapters/nats"
	"github.com/Guymer/gft/internal/adapters/postgres"
	"github.com/Guymer/gft/internal/core/ports"
	"github.com/Guymer/gft/internal/pkg/config"
	"github.com/Guymer/gft/internal/pkg/logging"
	"github.com/Guymer/gft/internal/workflows"
)

func main() {
	cfg, err := config.Load("gft-worker")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logging.Setup(logLevel, "json")

	// Durable runs must land somewhere; a worker without the archive
	// database would step fronts and forget them.
	if !cfg.Database.Enabled() {
		log.Fatal("workers need an archive database, set GFT_DATABASE_HOST")
	}
	db, err := postgres.New(context.Background(), cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Frame stream (optional)
	var eventPub ports.EventPublisher
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable, frames will not stream", "error", err)
	} else {
		defer pub.Close()
		eventPub = pub
	}

	land := landdata.NewProvider(cfg.Land.CacheDir, slog.Default())
	if cfg.Land.BaseURL != "" {
		land.BaseURL = cfg.Land.BaseURL
	}

	// Connect to Temporal
	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})

	// Register workflow & activities
	w.RegisterWorkflow(workflows.SimulationWorkflow)
	w.RegisterActivity(&workflows.SimulationActivities{
		Land:   land,
		Runs:   postgres.NewRunRepo(db),
		Frames: postgres.NewFrameRepo(db),
		Pub:    eventPub,
	})

	log.Printf("simulation worker started on queue %s", cfg.Temporal.TaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
