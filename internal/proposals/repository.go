package proposals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"propcare_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Proposal statuses.
const (
	ProposalPending  = "pending"
	ProposalAccepted = "accepted"
	ProposalRejected = "rejected"
)

// Slot statuses.
const (
	SlotProposed = "proposed"
	SlotSelected = "selected"
	SlotDeclined = "declined"
)

// Proposal is a provider's offer of appointment slots for a case.
type Proposal struct {
	ID                 uuid.UUID `db:"id"`
	CaseID             uuid.UUID `db:"case_id"`
	OrganizationID     uuid.UUID `db:"organization_id"`
	ProviderID         uuid.UUID `db:"provider_id"`
	Status             string    `db:"status"`
	EstimatedCostCents *int64    `db:"estimated_cost_cents"`
	Note               string    `db:"note"`
	CreatedAt          time.Time `db:"created_at"`
	UpdatedAt          time.Time `db:"updated_at"`
}

// Slot is one offered appointment window.
type Slot struct {
	ID         uuid.UUID `db:"id"`
	ProposalID uuid.UUID `db:"proposal_id"`
	StartTime  time.Time `db:"start_time"`
	EndTime    time.Time `db:"end_time"`
	Status     string    `db:"status"`
	CreatedAt  time.Time `db:"created_at"`
}

// SlotWithProposal joins a slot with its owning proposal for selection flows.
type SlotWithProposal struct {
	Slot     Slot
	Proposal Proposal
}

// Repository provides database access to proposals and their slots.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new proposal repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const proposalColumns = `id, case_id, organization_id, provider_id, status,
	estimated_cost_cents, note, created_at, updated_at`

// SubmitParams holds a validated proposal submission.
type SubmitParams struct {
	CaseID             uuid.UUID
	OrganizationID     uuid.UUID
	ProviderID         uuid.UUID
	EstimatedCostCents *int64
	Note               string
	Slots              []SlotInput
}

// SlotInput is one offered window in a submission.
type SlotInput struct {
	StartTime time.Time
	EndTime   time.Time
}

// SubmitWithReplace inserts the proposal and its slots in a single
// transaction, first removing any still-pending proposal by the same provider
// for the same case. Either the whole new proposal lands or nothing changes,
// so a failure midway through the slot inserts leaves no partial rows behind.
func (r *Repository) SubmitWithReplace(ctx context.Context, params SubmitParams) (*Proposal, []Slot, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`DELETE FROM proposal_slots WHERE proposal_id IN (
			SELECT id FROM proposals
			WHERE case_id = $1 AND provider_id = $2 AND status = $3)`,
		params.CaseID, params.ProviderID, ProposalPending,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to remove superseded slots: %w", err)
	}

	_, err = tx.Exec(ctx,
		`DELETE FROM proposals WHERE case_id = $1 AND provider_id = $2 AND status = $3`,
		params.CaseID, params.ProviderID, ProposalPending,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to remove superseded proposal: %w", err)
	}

	now := time.Now()
	proposal := Proposal{
		ID:                 uuid.New(),
		CaseID:             params.CaseID,
		OrganizationID:     params.OrganizationID,
		ProviderID:         params.ProviderID,
		Status:             ProposalPending,
		EstimatedCostCents: params.EstimatedCostCents,
		Note:               params.Note,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO proposals (id, case_id, organization_id, provider_id, status,
			estimated_cost_cents, note, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		proposal.ID, proposal.CaseID, proposal.OrganizationID, proposal.ProviderID, proposal.Status,
		proposal.EstimatedCostCents, proposal.Note, proposal.CreatedAt, proposal.UpdatedAt,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create proposal: %w", err)
	}

	slots := make([]Slot, 0, len(params.Slots))
	for _, input := range params.Slots {
		slot := Slot{
			ID:         uuid.New(),
			ProposalID: proposal.ID,
			StartTime:  input.StartTime,
			EndTime:    input.EndTime,
			Status:     SlotProposed,
			CreatedAt:  now,
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO proposal_slots (id, proposal_id, start_time, end_time, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			slot.ID, slot.ProposalID, slot.StartTime, slot.EndTime, slot.Status, slot.CreatedAt,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create proposal slot: %w", err)
		}

		slots = append(slots, slot)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to commit proposal: %w", err)
	}

	return &proposal, slots, nil
}

// GetSlot returns a slot joined with its proposal, scoped to the organization.
func (r *Repository) GetSlot(ctx context.Context, slotID, organizationID uuid.UUID) (*SlotWithProposal, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT s.id, s.proposal_id, s.start_time, s.end_time, s.status, s.created_at,
			p.id, p.case_id, p.organization_id, p.provider_id, p.status,
			p.estimated_cost_cents, p.note, p.created_at, p.updated_at
		FROM proposal_slots s
		JOIN proposals p ON p.id = s.proposal_id
		WHERE s.id = $1 AND p.organization_id = $2`,
		slotID, organizationID,
	)

	var item SlotWithProposal
	err := row.Scan(
		&item.Slot.ID, &item.Slot.ProposalID, &item.Slot.StartTime, &item.Slot.EndTime,
		&item.Slot.Status, &item.Slot.CreatedAt,
		&item.Proposal.ID, &item.Proposal.CaseID, &item.Proposal.OrganizationID,
		&item.Proposal.ProviderID, &item.Proposal.Status,
		&item.Proposal.EstimatedCostCents, &item.Proposal.Note,
		&item.Proposal.CreatedAt, &item.Proposal.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("slot not found")
		}
		return nil, fmt.Errorf("failed to get slot: %w", err)
	}

	return &item, nil
}

// ListByCase returns a case's proposals with their slots, newest first.
func (r *Repository) ListByCase(ctx context.Context, caseID, organizationID uuid.UUID) ([]Proposal, map[uuid.UUID][]Slot, error) {
	query := fmt.Sprintf(`SELECT %s FROM proposals
		WHERE case_id = $1 AND organization_id = $2
		ORDER BY created_at DESC`, proposalColumns)

	rows, err := r.pool.Query(ctx, query, caseID, organizationID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list proposals: %w", err)
	}
	defer rows.Close()

	var items []Proposal
	for rows.Next() {
		var p Proposal
		err := rows.Scan(&p.ID, &p.CaseID, &p.OrganizationID, &p.ProviderID, &p.Status,
			&p.EstimatedCostCents, &p.Note, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return nil, nil, err
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	slots := make(map[uuid.UUID][]Slot)
	for _, p := range items {
		proposalSlots, err := r.listSlots(ctx, p.ID)
		if err != nil {
			return nil, nil, err
		}
		slots[p.ID] = proposalSlots
	}

	return items, slots, nil
}

func (r *Repository) listSlots(ctx context.Context, proposalID uuid.UUID) ([]Slot, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, proposal_id, start_time, end_time, status, created_at
		FROM proposal_slots WHERE proposal_id = $1 ORDER BY start_time`,
		proposalID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list slots: %w", err)
	}
	defer rows.Close()

	var items []Slot
	for rows.Next() {
		var s Slot
		if err := rows.Scan(&s.ID, &s.ProposalID, &s.StartTime, &s.EndTime, &s.Status, &s.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, s)
	}

	return items, rows.Err()
}

// MarkSlotSelected records a selection awaiting manual review. The slot moves
// to selected while the proposal stays pending; the guard keeps two callers
// from selecting the same slot twice.
func (r *Repository) MarkSlotSelected(ctx context.Context, slotID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE proposal_slots SET status = $1 WHERE id = $2 AND status = $3`,
		SlotSelected, slotID, SlotProposed,
	)
	if err != nil {
		return fmt.Errorf("failed to mark slot selected: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.Conflict("slot is no longer selectable")
	}
	return nil
}

// AcceptProposal finalizes a selection: the chosen slot becomes selected, its
// siblings are declined, and the proposal is accepted, all in one transaction.
func (r *Repository) AcceptProposal(ctx context.Context, proposalID, slotID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE proposals SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`,
		ProposalAccepted, proposalID, ProposalPending,
	)
	if err != nil {
		return fmt.Errorf("failed to accept proposal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.Conflict("proposal is no longer pending")
	}

	_, err = tx.Exec(ctx,
		`UPDATE proposal_slots SET status = $1 WHERE id = $2 AND proposal_id = $3`,
		SlotSelected, slotID, proposalID,
	)
	if err != nil {
		return fmt.Errorf("failed to select slot: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE proposal_slots SET status = $1 WHERE proposal_id = $2 AND id <> $3`,
		SlotDeclined, proposalID, slotID,
	)
	if err != nil {
		return fmt.Errorf("failed to decline sibling slots: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit acceptance: %w", err)
	}
	return nil
}

// ReopenProposal undoes an acceptance whose appointment could not be created:
// the proposal returns to pending and all of its slots to proposed, so the
// selection can be retried.
func (r *Repository) ReopenProposal(ctx context.Context, proposalID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE proposals SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`,
		ProposalPending, proposalID, ProposalAccepted,
	)
	if err != nil {
		return fmt.Errorf("failed to reopen proposal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.Conflict("proposal is not accepted")
	}

	_, err = tx.Exec(ctx,
		`UPDATE proposal_slots SET status = $1 WHERE proposal_id = $2`,
		SlotProposed, proposalID,
	)
	if err != nil {
		return fmt.Errorf("failed to reopen proposal slots: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit reopen: %w", err)
	}
	return nil
}

// DeclineSlot returns a selected slot to declined during manual review. The
// proposal stays pending so another slot can still be chosen.
func (r *Repository) DeclineSlot(ctx context.Context, slotID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE proposal_slots SET status = $1 WHERE id = $2 AND status = $3`,
		SlotDeclined, slotID, SlotSelected,
	)
	if err != nil {
		return fmt.Errorf("failed to decline slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.Conflict("slot is not awaiting review")
	}
	return nil
}

// GetPendingSelection returns the pending proposal of the case that has a
// slot selected and awaiting manual review, or nil when there is none.
func (r *Repository) GetPendingSelection(ctx context.Context, caseID, organizationID uuid.UUID) (*SlotWithProposal, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT s.id, s.proposal_id, s.start_time, s.end_time, s.status, s.created_at,
			p.id, p.case_id, p.organization_id, p.provider_id, p.status,
			p.estimated_cost_cents, p.note, p.created_at, p.updated_at
		FROM proposal_slots s
		JOIN proposals p ON p.id = s.proposal_id
		WHERE p.case_id = $1 AND p.organization_id = $2
			AND p.status = $3 AND s.status = $4
		ORDER BY s.created_at DESC
		LIMIT 1`,
		caseID, organizationID, ProposalPending, SlotSelected,
	)

	var item SlotWithProposal
	err := row.Scan(
		&item.Slot.ID, &item.Slot.ProposalID, &item.Slot.StartTime, &item.Slot.EndTime,
		&item.Slot.Status, &item.Slot.CreatedAt,
		&item.Proposal.ID, &item.Proposal.CaseID, &item.Proposal.OrganizationID,
		&item.Proposal.ProviderID, &item.Proposal.Status,
		&item.Proposal.EstimatedCostCents, &item.Proposal.Note,
		&item.Proposal.CreatedAt, &item.Proposal.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get pending selection: %w", err)
	}

	return &item, nil
}

// RejectPendingByCase rejects every still-pending proposal of a case. Used
// when the case is cancelled.
func (r *Repository) RejectPendingByCase(ctx context.Context, caseID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE proposals SET status = $1, updated_at = NOW()
		WHERE case_id = $2 AND status = $3`,
		ProposalRejected, caseID, ProposalPending,
	)
	if err != nil {
		return fmt.Errorf("failed to reject pending proposals: %w", err)
	}
	return nil
}
