package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"

	"flipbook/internal/config"
	"flipbook/internal/convert"
	"flipbook/internal/database"
	"flipbook/internal/database/migration"
	handlers "flipbook/internal/http/handler"
	"flipbook/internal/http/middleware"
	"flipbook/internal/otel"
	"flipbook/internal/pipeline"
	"flipbook/internal/repository/postgres"
	"flipbook/internal/service"
	"flipbook/internal/storage"
	"flipbook/internal/worker"
)

func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx := context.Background()

	// Tracing is optional; failures downgrade to noop inside Init.
	shutdownTracing, err := otel.Init(ctx, time.UTC)
	if err != nil {
		log.Fatalf("failed to initialize tracing: %v", err)
	}
	defer shutdownTracing(ctx)

	// PostgreSQL connection (with pooling via database/sql)
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := migration.EnsureMigrated(ctx, db, time.UTC, cfg.Database.Host); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	// S3-compatible object storage client (MinIO-supported)
	objStore, err := storage.NewMinIO(cfg.MinIO)
	if err != nil {
		log.Fatalf("failed to initialize object storage: %v", err)
	}

	taskRepo := postgres.NewTaskPostgres(db)

	// Conversion machinery: format converters, page optimizer, pipeline.
	registry := convert.NewRegistry(cfg.Convert)
	optimizer := convert.NewOptimizer(cfg.Convert.ImageMaxWidth, cfg.Convert.ImageMaxHeight, cfg.Convert.ImageQuality)

	promRegistry := prometheus.NewRegistry()
	convMetrics, err := pipeline.NewMetrics(promRegistry)
	if err != nil {
		log.Fatalf("failed to register conversion metrics: %v", err)
	}

	pipe := pipeline.New(taskRepo, objStore, registry, optimizer, cfg.Worker.UploadConcurrency, logger, convMetrics)

	// Background conversion pool; recovers interrupted tasks on start.
	runner := worker.NewRunner(cfg.Worker, pipe, taskRepo, objStore, logger)
	if err := runner.Start(); err != nil {
		log.Fatalf("failed to start conversion workers: %v", err)
	}
	defer runner.Stop()

	fbSvc := service.NewFlipbookService(objStore, taskRepo, runner, registry.Supported, cfg.Convert.MaxFileSize)

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
		BodyLimit:    int(cfg.Convert.MaxFileSize),
	})

	// RequestID middleware adds/propagates X-Request-ID and stores it in context
	app.Use(middleware.RequestID())
	// JSON Logger middleware for structured request logs
	app.Use(middleware.Logger())

	promMiddleware, err := middleware.NewPrometheusMiddleware(promRegistry)
	if err != nil {
		log.Fatalf("failed to register http metrics: %v", err)
	}
	app.Use(promMiddleware.Handler())

	handlers.RegisterRoutes(app, db, fbSvc, promRegistry)

	addr := ":" + cfg.Port

	if err := app.Listen(addr); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}
