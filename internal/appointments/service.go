// Package appointments materializes approved slot selections into confirmed
// appointments and mirrors them to the external calendar on a best-effort
// basis.
package appointments

import (
	"context"
	"time"

	"propcare_backend/internal/calendar"
	"propcare_backend/internal/events"
	"propcare_backend/platform/logger"

	"github.com/google/uuid"
)

// appointmentStore is the persistence surface the materializer needs.
type appointmentStore interface {
	CreateScheduled(ctx context.Context, params CreateParams) (*Appointment, error)
	GetActiveByCase(ctx context.Context, caseID, organizationID uuid.UUID) (*Appointment, error)
	SetCalendarEventID(ctx context.Context, id uuid.UUID, eventID string) error
	CancelByCase(ctx context.Context, caseID uuid.UUID) error
}

// CalendarClient creates entries in the external calendar.
type CalendarClient interface {
	CreateEvent(ctx context.Context, event calendar.Event) (string, error)
}

// Service materializes appointments.
type Service struct {
	repo     appointmentStore
	calendar CalendarClient
	bus      events.Bus
	log      *logger.Logger
}

// NewService creates the appointment service. calendarClient may be nil when
// no calendar collaborator is configured.
func NewService(repo appointmentStore, calendarClient CalendarClient, bus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, calendar: calendarClient, bus: bus, log: log}
}

// MaterializeParams carries an approved selection into materialization.
type MaterializeParams struct {
	CaseID         uuid.UUID
	OrganizationID uuid.UUID
	ProviderID     uuid.UUID
	ProposalID     uuid.UUID
	SlotID         uuid.UUID
	StartTime      time.Time
	EndTime        time.Time
	CaseTitle      string
	AutoApproved   bool
	Reason         string
}

// Materialize creates the confirmed appointment, moves the case to Scheduled
// and syncs the calendar. The appointment in the database is authoritative; a
// calendar failure is logged and the appointment stands without an external
// event id.
func (s *Service) Materialize(ctx context.Context, params MaterializeParams) (*Appointment, error) {
	appointment, err := s.repo.CreateScheduled(ctx, CreateParams{
		CaseID:         params.CaseID,
		OrganizationID: params.OrganizationID,
		ProviderID:     params.ProviderID,
		ProposalID:     params.ProposalID,
		SlotID:         params.SlotID,
		StartTime:      params.StartTime,
		EndTime:        params.EndTime,
		AutoApproved:   params.AutoApproved,
	})
	if err != nil {
		return nil, err
	}

	s.syncCalendar(ctx, appointment, params.CaseTitle)

	s.bus.Publish(ctx, events.AppointmentApproved{
		BaseEvent:      events.NewBaseEvent(),
		CaseID:         params.CaseID,
		OrganizationID: params.OrganizationID,
		AppointmentID:  appointment.ID,
		ProviderID:     params.ProviderID,
		StartTime:      params.StartTime,
		EndTime:        params.EndTime,
		AutoApproved:   params.AutoApproved,
		Reason:         params.Reason,
	})

	return appointment, nil
}

func (s *Service) syncCalendar(ctx context.Context, appointment *Appointment, title string) {
	if s.calendar == nil {
		return
	}

	eventID, err := s.calendar.CreateEvent(ctx, calendar.Event{
		CaseID:     appointment.CaseID,
		ProviderID: appointment.ProviderID,
		Title:      title,
		StartTime:  appointment.StartTime,
		EndTime:    appointment.EndTime,
	})
	if err != nil {
		s.log.Warn("calendar sync failed, appointment stands without external event",
			"appointment_id", appointment.ID, "error", err)
		return
	}

	if err := s.repo.SetCalendarEventID(ctx, appointment.ID, eventID); err != nil {
		s.log.Warn("failed to record calendar event id", "appointment_id", appointment.ID, "error", err)
	}
}

// GetActiveByCase returns the case's confirmed appointment, or nil.
func (s *Service) GetActiveByCase(ctx context.Context, caseID, organizationID uuid.UUID) (*Appointment, error) {
	return s.repo.GetActiveByCase(ctx, caseID, organizationID)
}

// HandleCaseCancelled releases the case's confirmed appointments after a
// cancellation event.
func (s *Service) HandleCaseCancelled(ctx context.Context, event events.Event) error {
	cancelled, ok := event.(events.CaseCancelled)
	if !ok {
		return nil
	}
	return s.repo.CancelByCase(ctx, cancelled.CaseID)
}
