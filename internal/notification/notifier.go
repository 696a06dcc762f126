// Package notification turns domain events into short-label emails. Handlers
// are wired onto the in-memory bus; a failed delivery is logged by the bus
// and never affects the publishing flow.
package notification

import (
	"context"
	"fmt"

	"propcare_backend/internal/events"
	"propcare_backend/internal/providers"
	"propcare_backend/platform/logger"

	"github.com/google/uuid"
)

// mailer is the delivery surface; *email.Sender satisfies it.
type mailer interface {
	Send(ctx context.Context, to, subject, body string) error
	Enabled() bool
}

// providerReader resolves provider contact details for assignment mail.
type providerReader interface {
	GetByID(ctx context.Context, id, organizationID uuid.UUID) (*providers.Provider, error)
}

// Notifier subscribes to domain events and emails the affected parties.
type Notifier struct {
	mail      mailer
	providers providerReader
	opsInbox  string
	log       *logger.Logger
}

// New creates a notifier. opsInbox receives review alerts; empty disables
// them.
func New(mail mailer, providerRepo providerReader, opsInbox string, log *logger.Logger) *Notifier {
	return &Notifier{mail: mail, providers: providerRepo, opsInbox: opsInbox, log: log}
}

// Register subscribes the notifier's handlers on the bus.
func (n *Notifier) Register(bus events.Bus) {
	bus.Subscribe(events.CaseAssigned{}.EventName(), events.HandlerFunc(n.handleCaseAssigned))
	bus.Subscribe(events.ManualReviewRequired{}.EventName(), events.HandlerFunc(n.handleReviewRequired))
	bus.Subscribe(events.AppointmentApproved{}.EventName(), events.HandlerFunc(n.handleAppointmentApproved))
}

func (n *Notifier) handleCaseAssigned(ctx context.Context, event events.Event) error {
	assigned, ok := event.(events.CaseAssigned)
	if !ok {
		return nil
	}

	provider, err := n.providers.GetByID(ctx, assigned.ProviderID, assigned.OrganizationID)
	if err != nil {
		return err
	}
	if provider.Email == "" {
		return nil
	}

	return n.mail.Send(ctx,
		provider.Email,
		"New maintenance case assigned",
		fmt.Sprintf("You have been matched to maintenance case %s (score %.0f). Please propose appointment slots.",
			assigned.CaseID, assigned.MatchScore),
	)
}

func (n *Notifier) handleReviewRequired(ctx context.Context, event events.Event) error {
	review, ok := event.(events.ManualReviewRequired)
	if !ok {
		return nil
	}
	if n.opsInbox == "" {
		n.log.Info("review required but no ops inbox configured", "case_id", review.CaseID)
		return nil
	}

	return n.mail.Send(ctx,
		n.opsInbox,
		"Appointment needs approval",
		fmt.Sprintf("A slot selection for case %s is waiting for manual approval. Reason: %s",
			review.CaseID, review.Reason),
	)
}

func (n *Notifier) handleAppointmentApproved(ctx context.Context, event events.Event) error {
	approved, ok := event.(events.AppointmentApproved)
	if !ok {
		return nil
	}

	provider, err := n.providers.GetByID(ctx, approved.ProviderID, approved.OrganizationID)
	if err != nil {
		return err
	}
	if provider.Email == "" {
		return nil
	}

	return n.mail.Send(ctx,
		provider.Email,
		"Appointment confirmed",
		fmt.Sprintf("Your appointment for case %s is confirmed: %s to %s.",
			approved.CaseID,
			approved.StartTime.Format("Mon Jan 2 15:04"),
			approved.EndTime.Format("15:04")),
	)
}
