package scheduler

import (
	"context"
	"testing"

	"propcare_backend/platform/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

type testConfig struct {
	redisURL string
}

func (c testConfig) GetRedisURL() string       { return c.redisURL }
func (c testConfig) GetRedisTLSInsecure() bool { return false }
func (c testConfig) GetAsynqQueueName() string { return "default" }
func (c testConfig) GetAsynqConcurrency() int  { return 1 }

func testLogger() *logger.Logger {
	return logger.New("development")
}

func TestTriagePayloadRoundTrip(t *testing.T) {
	caseID := uuid.New()
	orgID := uuid.New()

	task, err := newTriageTask(caseID, orgID)
	if err != nil {
		t.Fatalf("failed to build task: %v", err)
	}
	if task.Type() != TypeTriageCase {
		t.Fatalf("unexpected task type %s", task.Type())
	}

	payload, err := parseTriagePayload(task.Payload())
	if err != nil {
		t.Fatalf("failed to parse payload: %v", err)
	}
	if payload.CaseID != caseID || payload.OrganizationID != orgID {
		t.Fatal("payload must survive the round trip")
	}
}

func TestParseTriagePayloadRejectsGarbage(t *testing.T) {
	if _, err := parseTriagePayload([]byte("not json")); err == nil {
		t.Fatal("expected error for malformed payload")
	}
	if _, err := parseTriagePayload([]byte(`{}`)); err == nil {
		t.Fatal("expected error for missing case id")
	}
}

func TestNewClientWithoutRedisURL(t *testing.T) {
	client, err := NewClient(testConfig{}, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client != nil {
		t.Fatal("expected nil client without REDIS_URL")
	}
}

func TestEnqueueTriage(t *testing.T) {
	srv := miniredis.RunT(t)

	client, err := NewClient(testConfig{redisURL: "redis://" + srv.Addr()}, testLogger())
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	if client == nil {
		t.Fatal("expected a client")
	}
	defer client.Close()

	caseID := uuid.New()
	if err := client.EnqueueTriage(context.Background(), caseID, uuid.New()); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: srv.Addr()})
	defer inspector.Close()

	pending, err := inspector.ListPendingTasks("default")
	if err != nil {
		t.Fatalf("failed to list tasks: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending task, got %d", len(pending))
	}
	if pending[0].Type != TypeTriageCase {
		t.Fatalf("unexpected task type %s", pending[0].Type)
	}

	payload, err := parseTriagePayload(pending[0].Payload)
	if err != nil {
		t.Fatalf("failed to parse queued payload: %v", err)
	}
	if payload.CaseID != caseID {
		t.Fatal("queued payload must carry the case id")
	}
}
