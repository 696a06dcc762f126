package scheduler

import (
	"context"
	"fmt"
	"time"

	"propcare_backend/platform/config"
	"propcare_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Client enqueues background tasks. It satisfies the case service's
// TriageEnqueuer interface.
type Client struct {
	client *asynq.Client
	queue  string
	log    *logger.Logger
}

// NewClient creates an asynq client from the scheduler configuration.
// Returns nil without error when no Redis URL is configured; callers then
// fall back to inline execution.
func NewClient(cfg config.SchedulerConfig, log *logger.Logger) (*Client, error) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; triage runs inline")
		return nil, nil
	}

	opt, err := redisOptFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	return &Client{
		client: asynq.NewClient(opt),
		queue:  cfg.GetAsynqQueueName(),
		log:    log,
	}, nil
}

// EnqueueTriage queues the triage pipeline for a case.
func (c *Client) EnqueueTriage(ctx context.Context, caseID, organizationID uuid.UUID) error {
	task, err := newTriageTask(caseID, organizationID)
	if err != nil {
		return err
	}

	info, err := c.client.EnqueueContext(ctx, task,
		asynq.Queue(c.queue),
		asynq.MaxRetry(5),
		asynq.Timeout(2*time.Minute),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue triage task: %w", err)
	}

	c.log.Info("triage task enqueued", "task_id", info.ID, "case_id", caseID)
	return nil
}

// Close releases the underlying Redis connections.
func (c *Client) Close() error {
	return c.client.Close()
}
