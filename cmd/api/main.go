package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"propcare_backend/internal/appointments"
	"propcare_backend/internal/approval"
	"propcare_backend/internal/calendar"
	"propcare_backend/internal/cases"
	"propcare_backend/internal/email"
	"propcare_backend/internal/events"
	apphttp "propcare_backend/internal/http"
	"propcare_backend/internal/http/router"
	"propcare_backend/internal/matching"
	"propcare_backend/internal/notification"
	"propcare_backend/internal/proposals"
	"propcare_backend/internal/providers"
	"propcare_backend/internal/scheduler"
	"propcare_backend/internal/storage"
	"propcare_backend/internal/triage"
	"propcare_backend/platform/config"
	"propcare_backend/platform/db"
	"propcare_backend/platform/logger"
	"propcare_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, "migrations")
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

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
	log.Info("database connection established")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	// Shared validator instance for dependency injection
	val := validator.New()

	// Task queue client for background triage. Nil without REDIS_URL; the
	// case service then runs triage in-process.
	var triageEnqueuer cases.TriageEnqueuer
	schedulerClient, err := scheduler.NewClient(cfg, log)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		panic("failed to initialize scheduler client: " + err.Error())
	}
	if schedulerClient != nil {
		triageEnqueuer = schedulerClient
		defer schedulerClient.Close()
	}

	// Photo storage (MinIO). Optional; cases reject photo uploads without it.
	var attachments cases.AttachmentStore
	if cfg.IsMinIOEnabled() {
		var storageSvc *storage.Service
		if err := withRetry(ctx, log, "storage service", 5, 2*time.Second, func() error {
			s, err := storage.New(ctx, cfg, log)
			if err != nil {
				return err
			}
			storageSvc = s
			return nil
		}); err != nil {
			log.Error("failed to initialize storage service", "error", err)
			panic("failed to initialize storage service: " + err.Error())
		}
		attachments = storageSvc
		log.Info("storage service initialized", "bucket", cfg.GetMinioBucketCasePhotos())
	}

	classifier, err := triage.NewGeminiClassifier(ctx, triage.Config{
		APIKey: cfg.GetGeminiAPIKey(),
		Model:  cfg.GetGeminiModel(),
	}, log)
	if err != nil {
		log.Error("failed to initialize triage classifier", "error", err)
		panic("failed to initialize triage classifier: " + err.Error())
	}

	var calendarClient appointments.CalendarClient
	if cfg.IsCalendarSyncEnabled() {
		calendarClient = calendar.New(cfg.GetCalendarAPIURL(), cfg.GetCalendarAPIKey())
		log.Info("calendar sync enabled", "url", cfg.GetCalendarAPIURL())
	}

	sender := email.NewSender(cfg, log)

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	casesRepo := cases.NewRepository(pool)
	providersRepo := providers.New(pool)
	proposalsRepo := proposals.NewRepository(pool)
	appointmentsRepo := appointments.NewRepository(pool)
	approvalRepo := approval.NewRepository(pool)

	casesService := cases.NewService(casesRepo, providersRepo, classifier,
		matching.NewScorer(), attachments, triageEnqueuer, eventBus, log)
	appointmentsService := appointments.NewService(appointmentsRepo, calendarClient, eventBus, log)
	proposalsService := proposals.NewService(proposalsRepo, casesRepo, approvalRepo,
		appointmentsService, eventBus, log)

	// Notification module subscribes to domain events (not HTTP-facing)
	notifier := notification.New(sender, providersRepo, cfg.OpsInboxEmail, log)
	notifier.Register(eventBus)

	// Cancellation cleans up whatever the case accumulated downstream
	eventBus.Subscribe(events.CaseCancelled{}.EventName(), events.HandlerFunc(proposalsService.HandleCaseCancelled))
	eventBus.Subscribe(events.CaseCancelled{}.EventName(), events.HandlerFunc(appointmentsService.HandleCaseCancelled))

	casesModule := cases.NewModule(cases.NewHandler(casesService, val, log))
	proposalsModule := proposals.NewModule(proposals.NewHandler(proposalsService, val, log))
	appointmentsModule := appointments.NewModule(appointments.NewHandler(appointmentsService, log))
	approvalModule := approval.NewModule(approval.NewHandler(approvalRepo, val, log))
	providersModule := providers.NewModule(providers.NewHandler(providersRepo, log))

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Modules: []apphttp.Module{
			casesModule,
			proposalsModule,
			appointmentsModule,
			approvalModule,
			providersModule,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
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
