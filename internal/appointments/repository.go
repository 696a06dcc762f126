package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"propcare_backend/internal/cases"
	"propcare_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Appointment statuses.
const (
	StatusConfirmed = "Confirmed"
	StatusCancelled = "Cancelled"
)

// Appointment is a confirmed visit for a maintenance case.
type Appointment struct {
	ID              uuid.UUID `db:"id"`
	CaseID          uuid.UUID `db:"case_id"`
	OrganizationID  uuid.UUID `db:"organization_id"`
	ProviderID      uuid.UUID `db:"provider_id"`
	ProposalID      uuid.UUID `db:"proposal_id"`
	SlotID          uuid.UUID `db:"slot_id"`
	StartTime       time.Time `db:"start_time"`
	EndTime         time.Time `db:"end_time"`
	Status          string    `db:"status"`
	AutoApproved    bool      `db:"auto_approved"`
	CalendarEventID *string   `db:"calendar_event_id"`
	CreatedAt       time.Time `db:"created_at"`
}

// Repository provides database access to appointments.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new appointment repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const appointmentColumns = `id, case_id, organization_id, provider_id, proposal_id, slot_id,
	start_time, end_time, status, auto_approved, calendar_event_id, created_at`

// CreateParams holds the fields for materializing an appointment.
type CreateParams struct {
	CaseID         uuid.UUID
	OrganizationID uuid.UUID
	ProviderID     uuid.UUID
	ProposalID     uuid.UUID
	SlotID         uuid.UUID
	StartTime      time.Time
	EndTime        time.Time
	AutoApproved   bool
}

// CreateScheduled inserts the appointment and moves the case to Scheduled in
// one transaction. It refuses when the case already has an active appointment
// or has left In_Review, so at most one confirmed appointment exists per case.
func (r *Repository) CreateScheduled(ctx context.Context, params CreateParams) (*Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var existing int
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM appointments WHERE case_id = $1 AND status = $2`,
		params.CaseID, StatusConfirmed,
	).Scan(&existing)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing appointments: %w", err)
	}
	if existing > 0 {
		return nil, apperr.Conflict("case already has a confirmed appointment")
	}

	tag, err := tx.Exec(ctx,
		`UPDATE maintenance_cases SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3`,
		cases.StatusScheduled, params.CaseID, cases.StatusInReview,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to schedule case: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, apperr.Conflict("case is not awaiting scheduling")
	}

	appointment := Appointment{
		ID:             uuid.New(),
		CaseID:         params.CaseID,
		OrganizationID: params.OrganizationID,
		ProviderID:     params.ProviderID,
		ProposalID:     params.ProposalID,
		SlotID:         params.SlotID,
		StartTime:      params.StartTime,
		EndTime:        params.EndTime,
		Status:         StatusConfirmed,
		AutoApproved:   params.AutoApproved,
		CreatedAt:      time.Now(),
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO appointments (id, case_id, organization_id, provider_id, proposal_id, slot_id,
			start_time, end_time, status, auto_approved, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		appointment.ID, appointment.CaseID, appointment.OrganizationID, appointment.ProviderID,
		appointment.ProposalID, appointment.SlotID, appointment.StartTime, appointment.EndTime,
		appointment.Status, appointment.AutoApproved, appointment.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create appointment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit appointment: %w", err)
	}

	return &appointment, nil
}

// GetActiveByCase returns the case's confirmed appointment, or nil.
func (r *Repository) GetActiveByCase(ctx context.Context, caseID, organizationID uuid.UUID) (*Appointment, error) {
	query := fmt.Sprintf(`SELECT %s FROM appointments
		WHERE case_id = $1 AND organization_id = $2 AND status = $3
		LIMIT 1`, appointmentColumns)

	row := r.pool.QueryRow(ctx, query, caseID, organizationID, StatusConfirmed)
	appointment, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}

	return &appointment, nil
}

// SetCalendarEventID records the external calendar id after a successful sync.
func (r *Repository) SetCalendarEventID(ctx context.Context, id uuid.UUID, eventID string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE appointments SET calendar_event_id = $1 WHERE id = $2`,
		eventID, id,
	)
	if err != nil {
		return fmt.Errorf("failed to set calendar event id: %w", err)
	}
	return nil
}

// CancelByCase cancels the case's confirmed appointments. Used when the case
// itself is cancelled.
func (r *Repository) CancelByCase(ctx context.Context, caseID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE appointments SET status = $1 WHERE case_id = $2 AND status = $3`,
		StatusCancelled, caseID, StatusConfirmed,
	)
	if err != nil {
		return fmt.Errorf("failed to cancel appointments: %w", err)
	}
	return nil
}

func scanAppointment(row pgx.Row) (Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID, &a.CaseID, &a.OrganizationID, &a.ProviderID, &a.ProposalID, &a.SlotID,
		&a.StartTime, &a.EndTime, &a.Status, &a.AutoApproved, &a.CalendarEventID, &a.CreatedAt,
	)
	if err != nil {
		return Appointment{}, err
	}
	return a, nil
}
