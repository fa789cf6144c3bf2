package main

import (
	"context"
	"errors"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/Ashutoshgit47/ImageWrangler/internal/api/handlers/image"
	"github.com/Ashutoshgit47/ImageWrangler/internal/api/router"
	"github.com/Ashutoshgit47/ImageWrangler/internal/api/server"
	"github.com/Ashutoshgit47/ImageWrangler/internal/config"
	"github.com/Ashutoshgit47/ImageWrangler/internal/infra/kafka/consumer"
	"github.com/Ashutoshgit47/ImageWrangler/internal/infra/kafka/producer"
	imagemsg "github.com/Ashutoshgit47/ImageWrangler/internal/kafka/handlers/image"
	"github.com/Ashutoshgit47/ImageWrangler/internal/processor"
	imagerepo "github.com/Ashutoshgit47/ImageWrangler/internal/repository/image"
	"github.com/Ashutoshgit47/ImageWrangler/internal/scheduler"
	"github.com/Ashutoshgit47/ImageWrangler/internal/security"
	imagesvc "github.com/Ashutoshgit47/ImageWrangler/internal/service/image"
	"github.com/Ashutoshgit47/ImageWrangler/internal/storage/file"
	"github.com/Ashutoshgit47/ImageWrangler/internal/validator"
)

func main() {
	// Context & signals: used for graceful shutdown on system interrupts.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize logger and load application configuration.
	zlog.Init()
	cfg := config.MustLoad("./config/config.yml")

	// Connect to PostgreSQL (master and slaves).
	opts := &dbpg.Options{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}

	slaveDSNs := make([]string, 0, len(cfg.Database.Slaves))
	for _, s := range cfg.Database.Slaves {
		slaveDSNs = append(slaveDSNs, s.DSN())
	}

	db, err := dbpg.New(cfg.Database.Master.DSN(), slaveDSNs, opts)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	// Retry strategy for Kafka and other external calls.
	strategy := retry.Strategy{
		Attempts: cfg.Retry.Attempts,
		Delay:    cfg.Retry.Delay,
		Backoff:  cfg.Retry.Backoff,
	}

	// Initialize file storage (MinIO).
	storage, err := file.NewStorage(ctx, cfg.Storage.Endpoint, cfg.Storage.AccessKey, cfg.Storage.SecretKey, cfg.Storage.BucketName, cfg.Storage.UseSSL)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect to storage")
	}

	// Processing core: validator, transform engine, and the bounded
	// scheduler that serializes heavy work through isolated worker slots.
	limits := security.Default()
	v := validator.New(limits)
	engine := processor.New(limits)
	sched := scheduler.New(scheduler.DefaultSlots, imagesvc.ExecHandler(engine, v))

	// Initialize repository, producer, and service layer.
	repo := imagerepo.NewRepository(db)
	p := producer.New(&cfg.Kafka, strategy)
	service := imagesvc.NewService(storage, p, sched, repo, v)

	// Kafka message handler for uploaded images.
	uploadedHandler := imagemsg.NewUploadedHandler(service)

	// HTTP handler for image routes.
	imgHandler := image.NewHandler(service)

	// Kafka consumer for processing uploaded image events.
	c := consumer.New(&cfg.Kafka, strategy, uploadedHandler)

	// Start Kafka consumer in a separate goroutine.
	var wg sync.WaitGroup
	wg.Add(1)
	go c.Consume(ctx, &wg)

	// Start HTTP server in a separate goroutine.
	r := router.Setup(imgHandler)
	s := server.New(cfg.Server.HTTPPort, r)
	go func() {
		if err := s.ListenAndServe(); err != nil {
			zlog.Logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Block until context is canceled (SIGINT/SIGTERM).
	<-ctx.Done()
	zlog.Logger.Info().Msg("context done")

	// Wait for Kafka consumer goroutine to finish.
	wg.Wait()

	// Graceful shutdown with timeout for HTTP server.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	zlog.Logger.Info().Msg("shutting down server")
	if err := s.Shutdown(shutdownCtx); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to shutdown server")
	}
	if errors.Is(shutdownCtx.Err(), context.DeadlineExceeded) {
		zlog.Logger.Info().Msg("timeout exceeded, forcing shutdown")
	}

	// Tear down the scheduler; any still-pending requests fail immediately.
	sched.Terminate()

	// Close master and slave databases.
	if err := db.Master.Close(); err != nil {
		zlog.Logger.Printf("failed to close master DB: %v", err)
	}
	for i, slave := range db.Slaves {
		if err := slave.Close(); err != nil {
			zlog.Logger.Printf("failed to close slave DB %d: %v", i, err)
		}
	}

	// Close Kafka producer and consumer clients.
	if err = p.Client.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to close kafka producer client")
	}
	if err = c.Client.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to close kafka consumer client")
	}
}
