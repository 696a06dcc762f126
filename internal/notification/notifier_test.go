package notification

import (
	"context"
	"strings"
	"testing"

	"propcare_backend/internal/events"
	"propcare_backend/internal/providers"
	"propcare_backend/platform/logger"

	"github.com/google/uuid"
)

type sentMail struct {
	to, subject, body string
}

type fakeMailer struct {
	sent []sentMail
}

func (f *fakeMailer) Send(_ context.Context, to, subject, body string) error {
	f.sent = append(f.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

func (f *fakeMailer) Enabled() bool { return true }

type fakeProviderReader struct {
	provider *providers.Provider
}

func (f *fakeProviderReader) GetByID(context.Context, uuid.UUID, uuid.UUID) (*providers.Provider, error) {
	return f.provider, nil
}

func testLogger() *logger.Logger {
	return logger.New("development")
}

func TestCaseAssignedMailsTheProvider(t *testing.T) {
	mail := &fakeMailer{}
	n := New(mail, &fakeProviderReader{provider: &providers.Provider{Email: "pro@example.com"}}, "", testLogger())

	err := n.handleCaseAssigned(context.Background(), events.CaseAssigned{
		BaseEvent:  events.NewBaseEvent(),
		CaseID:     uuid.New(),
		ProviderID: uuid.New(),
		MatchScore: 87,
	})
	if err != nil {
		t.Fatalf("handler failed: %v", err)
	}

	if len(mail.sent) != 1 {
		t.Fatalf("expected 1 mail, got %d", len(mail.sent))
	}
	if mail.sent[0].to != "pro@example.com" {
		t.Fatalf("unexpected recipient %s", mail.sent[0].to)
	}
}

func TestReviewRequiredMailsOpsInbox(t *testing.T) {
	mail := &fakeMailer{}
	n := New(mail, &fakeProviderReader{}, "ops@example.com", testLogger())

	err := n.handleReviewRequired(context.Background(), events.ManualReviewRequired{
		BaseEvent: events.NewBaseEvent(),
		CaseID:    uuid.New(),
		Reason:    "estimated cost 40000 exceeds threshold 30000",
	})
	if err != nil {
		t.Fatalf("handler failed: %v", err)
	}

	if len(mail.sent) != 1 {
		t.Fatalf("expected 1 mail, got %d", len(mail.sent))
	}
	if !strings.Contains(mail.sent[0].body, "exceeds threshold") {
		t.Fatal("review mail must carry the deferral reason")
	}
}

func TestReviewRequiredWithoutOpsInboxIsDropped(t *testing.T) {
	mail := &fakeMailer{}
	n := New(mail, &fakeProviderReader{}, "", testLogger())

	err := n.handleReviewRequired(context.Background(), events.ManualReviewRequired{
		BaseEvent: events.NewBaseEvent(),
		CaseID:    uuid.New(),
	})
	if err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	if len(mail.sent) != 0 {
		t.Fatal("no mail expected without an ops inbox")
	}
}

func TestProviderWithoutEmailIsSkipped(t *testing.T) {
	mail := &fakeMailer{}
	n := New(mail, &fakeProviderReader{provider: &providers.Provider{}}, "", testLogger())

	err := n.handleAppointmentApproved(context.Background(), events.AppointmentApproved{
		BaseEvent: events.NewBaseEvent(),
		CaseID:    uuid.New(),
	})
	if err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	if len(mail.sent) != 0 {
		t.Fatal("no mail expected for a provider without an address")
	}
}
