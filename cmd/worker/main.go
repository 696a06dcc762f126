package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"propcare_backend/internal/cases"
	"propcare_backend/internal/email"
	"propcare_backend/internal/events"
	"propcare_backend/internal/matching"
	"propcare_backend/internal/notification"
	"propcare_backend/internal/providers"
	"propcare_backend/internal/scheduler"
	"propcare_backend/internal/storage"
	"propcare_backend/internal/triage"
	"propcare_backend/platform/config"
	"propcare_backend/platform/db"
	"propcare_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting worker", "env", cfg.Env, "queue", cfg.AsynqQueueName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	eventBus := events.NewInMemoryBus(log)

	// Photo storage feeds the vision sub-call of classification; triage works
	// without it, using text-only input.
	var attachments cases.AttachmentStore
	if cfg.IsMinIOEnabled() {
		storageSvc, err := storage.New(ctx, cfg, log)
		if err != nil {
			log.Error("failed to initialize storage service", "error", err)
			panic("failed to initialize storage service: " + err.Error())
		}
		attachments = storageSvc
	}

	classifier, err := triage.NewGeminiClassifier(ctx, triage.Config{
		APIKey: cfg.GetGeminiAPIKey(),
		Model:  cfg.GetGeminiModel(),
	}, log)
	if err != nil {
		log.Error("failed to initialize triage classifier", "error", err)
		panic("failed to initialize triage classifier: " + err.Error())
	}

	casesRepo := cases.NewRepository(pool)
	providersRepo := providers.New(pool)

	// The worker never enqueues, it only consumes; a nil enqueuer is fine
	// because Report is not reachable from here.
	casesService := cases.NewService(casesRepo, providersRepo, classifier,
		matching.NewScorer(), attachments, nil, eventBus, log)

	// Assignment mail is published from this process, so the notifier
	// subscribes here too.
	sender := email.NewSender(cfg, log)
	notifier := notification.New(sender, providersRepo, cfg.OpsInboxEmail, log)
	notifier.Register(eventBus)

	worker, err := scheduler.NewWorker(cfg, casesService, log)
	if err != nil {
		log.Error("failed to initialize worker", "error", err)
		panic("failed to initialize worker: " + err.Error())
	}

	workerErr := make(chan error, 1)
	go func() {
		workerErr <- worker.Run()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, stopping worker")
		worker.Shutdown()
	case err := <-workerErr:
		if err != nil {
			log.Error("worker error", "error", err)
			panic("worker error: " + err.Error())
		}
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
