package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"media-vault/api"
	"media-vault/auth"
	"media-vault/contract"
	"media-vault/domain"
	"media-vault/internal"
	"media-vault/prober"
	"media-vault/queue"
	"media-vault/runtime"
	"media-vault/runtime/workers"
	"media-vault/scanner"
	"media-vault/search"
	"media-vault/services"
	"media-vault/sink"
	"media-vault/storage"
	"media-vault/storage/blob"
	"media-vault/validation"

	"media-vault/domain/event"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/nats-io/nats.go"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the pipeline lifecycle, and
// centralizes error reporting. This pattern is preferred over calling os.Exit
// or panic directly because:
// 1. It ensures all 'defer' statements (like database cleanup) are executed before the program exits.
// 2. It improves testability by decoupling the initialization logic from the main entry point.
// 3. It provides a structured way to handle graceful shutdowns for the background workers.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.INFO))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Storage & Transport
	repo := storage.NewAttachmentRepository(db, log)

	minioClient, err := blob.NewClient(ctx, blob.Config{
		Endpoint:        config.MinioEndpoint,
		AccessKeyID:     config.MinioAccessKey,
		SecretAccessKey: config.MinioSecretKey,
		UseSSL:          config.MinioUseSSL,
		Bucket:          config.MinioBucket,
	})
	if err != nil {
		return fmt.Errorf("object store: %w", err)
	}
	blobs := blob.NewMinioStore(minioClient, config.MinioBucket, log)

	// The queue backend is chosen exactly once here; nothing downstream
	// branches on which one is active.
	var jobQueue contract.Queue
	switch config.QueueBackend {
	case internal.QueueBackendNats:
		nc, err := nats.Connect(config.NatsURL)
		if err != nil {
			return fmt.Errorf("nats connect: %w", err)
		}
		defer nc.Close()
		js, err := nc.JetStream()
		if err != nil {
			return fmt.Errorf("jetstream: %w", err)
		}
		jobQueue, err = queue.NewNatsQueue(js, log, queue.NatsConfig{
			Stream:        "MEDIA_JOBS",
			Subject:       "media.jobs",
			Durable:       "media-processor",
			LeaseDuration: config.LeaseDuration,
		})
		if err != nil {
			return fmt.Errorf("nats queue: %w", err)
		}
	default:
		jobQueue = queue.NewBadgerQueue(db, log, config.LeaseDuration)
	}

	// 5. Validation Pipeline
	scripts, err := validation.NewScriptScreener()
	if err != nil {
		return fmt.Errorf("script screener: %w", err)
	}

	var malware contract.MalwareScanner
	if config.ScannerAddr != "" {
		malware = scanner.NewClamAV(log, config.ScannerAddr, config.ScanTimeout)
	}

	pipeline := validation.NewPipeline(
		log,
		validation.NewImageValidator(log, config.MaxImageDimension, config.MaxImageDimension, scripts),
		validation.NewMediaValidator(log, prober.NewFFProbe(log, config.FFProbePath, config.ProbeTimeout), config.MaxDurationSeconds),
		validation.NewDocumentValidator(log, malware, config.ScannerFailOpen, scripts),
	)

	// 6. Services & Notification
	tokens := auth.NewTokenManager([]byte(config.AuthTokenSecret), "media-vault", config.AuthTokenDuration)
	registry := runtime.NewRegistry(log, tokens)

	events := make(chan event.LifecycleEvent, config.BufferSize)
	limits := domain.SizeLimits{
		Image:    config.MaxImageBytes,
		Video:    config.MaxVideoBytes,
		Audio:    config.MaxAudioBytes,
		Document: config.MaxDocumentBytes,
	}

	uploads := services.NewUploadService(log, repo, blobs, jobQueue, events, limits, config.PresignTTL)

	index, err := search.NewIndex(config.BlugeFilepath, log)
	if err != nil {
		return fmt.Errorf("search index: %w", err)
	}
	defer func() {
		log.Info("Closing search index...")
		_ = index.Close()
	}()

	fanout := workers.NewEventFanout(log, events, registry, config.SinkTimeout).
		Add(sink.NewLogSink(log), sink.NewSearchSink(log, repo, index))
	if config.KafkaBrokers != "" {
		kafkaSink := sink.NewKafkaSink(strings.Split(config.KafkaBrokers, ","), config.KafkaTopic, log)
		defer func() { _ = kafkaSink.Close() }()
		fanout.Add(kafkaSink)
	}

	// 7. Supervision
	sup := workers.NewSupervisor(log, config.RestartInterval)
	for i := 0; i < config.NumberOfWorkers; i++ {
		sup.Add(workers.NewProcessorWorker(
			log, jobQueue, repo, blobs, pipeline, events,
			config.ReceiveWait, config.NackBaseDelay, config.MaxAttempts, config.MaxObjectBytes,
		))
	}
	sup.Add(
		workers.NewReaperWorker(log, repo, blobs, events,
			config.ReaperInterval, config.UploadTTL, config.Retention, config.ReaperBatchSize),
		fanout,
		workers.NewHealthMonitoringWorker(log, config.MetricInterval),
	)

	// 8. HTTP surface
	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := api.NewServer(log, address, uploads, tokens, registry, index)

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting media pipeline",
			"address", address, "workers", config.NumberOfWorkers,
			"queue", config.QueueBackend, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	go sup.Run(ctx)

	// 9. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 10. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
	sup.Stop()

	log.Info("Program stopped cleanly")
	return nil
}
