// Package scheduler runs background work through asynq. The only task today
// is the triage pipeline; it is at-least-once and safe to retry because the
// case carries an inspectable triage_status and re-runs are idempotent.
package scheduler

import (
	"crypto/tls"
	"encoding/json"
	"fmt"

	"propcare_backend/platform/config"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// TypeTriageCase is the task type for the asynchronous triage pipeline.
const TypeTriageCase = "cases.triage"

// triagePayload is the JSON body of a triage task.
type triagePayload struct {
	CaseID         uuid.UUID `json:"caseId"`
	OrganizationID uuid.UUID `json:"organizationId"`
}

// newTriageTask builds the asynq task for one case.
func newTriageTask(caseID, organizationID uuid.UUID) (*asynq.Task, error) {
	payload, err := json.Marshal(triagePayload{CaseID: caseID, OrganizationID: organizationID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal triage payload: %w", err)
	}
	return asynq.NewTask(TypeTriageCase, payload), nil
}

// parseTriagePayload decodes a triage task body.
func parseTriagePayload(data []byte) (triagePayload, error) {
	var p triagePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return triagePayload{}, fmt.Errorf("malformed triage payload: %w", err)
	}
	if p.CaseID == uuid.Nil {
		return triagePayload{}, fmt.Errorf("triage payload missing case id")
	}
	return p, nil
}

// redisOptFromConfig turns the configured Redis URL into asynq connection
// options. go-redis does the URL parsing so redis:// and rediss:// both work.
func redisOptFromConfig(cfg config.SchedulerConfig) (asynq.RedisClientOpt, error) {
	parsed, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		return asynq.RedisClientOpt{}, fmt.Errorf("invalid REDIS_URL: %w", err)
	}

	opt := asynq.RedisClientOpt{
		Addr:     parsed.Addr,
		Username: parsed.Username,
		Password: parsed.Password,
		DB:       parsed.DB,
	}
	if parsed.TLSConfig != nil {
		opt.TLSConfig = parsed.TLSConfig
		if cfg.GetRedisTLSInsecure() {
			opt.TLSConfig = &tls.Config{InsecureSkipVerify: true}
		}
	}

	return opt, nil
}
