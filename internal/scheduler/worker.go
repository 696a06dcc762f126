package scheduler

import (
	"context"

	"propcare_backend/platform/config"
	"propcare_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// TriageRunner executes the triage pipeline for one case. The case service
// implements it.
type TriageRunner interface {
	RunTriage(ctx context.Context, caseID, organizationID uuid.UUID) error
}

// Worker consumes background tasks from Redis.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	log    *logger.Logger
}

// NewWorker creates the asynq server and registers the task handlers.
func NewWorker(cfg config.SchedulerConfig, runner TriageRunner, log *logger.Logger) (*Worker, error) {
	opt, err := redisOptFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: cfg.GetAsynqConcurrency(),
		Queues:      map[string]int{cfg.GetAsynqQueueName(): 1},
		Logger:      asynqLogger{log: log},
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeTriageCase, func(ctx context.Context, task *asynq.Task) error {
		payload, err := parseTriagePayload(task.Payload())
		if err != nil {
			// A payload that never parses will never succeed; drop it.
			log.Error("dropping malformed triage task", "error", err)
			return nil
		}
		return runner.RunTriage(ctx, payload.CaseID, payload.OrganizationID)
	})

	return &Worker{server: server, mux: mux, log: log}, nil
}

// Run blocks processing tasks until Shutdown is called.
func (w *Worker) Run() error {
	return w.server.Run(w.mux)
}

// Shutdown stops the worker gracefully.
func (w *Worker) Shutdown() {
	w.server.Shutdown()
}

// asynqLogger adapts the platform logger to asynq's logging interface.
type asynqLogger struct {
	log *logger.Logger
}

func (l asynqLogger) Debug(args ...interface{}) { l.log.Debug("asynq", "msg", args) }
func (l asynqLogger) Info(args ...interface{})  { l.log.Info("asynq", "msg", args) }
func (l asynqLogger) Warn(args ...interface{})  { l.log.Warn("asynq", "msg", args) }
func (l asynqLogger) Error(args ...interface{}) { l.log.Error("asynq", "msg", args) }
func (l asynqLogger) Fatal(args ...interface{}) { l.log.Error("asynq_fatal", "msg", args) }
