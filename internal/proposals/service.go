// Package proposals implements the appointment negotiation workflow:
// providers offer slots, requesters select one, and the approval policy
// decides whether the selection schedules immediately or waits for manual
// sign-off.
package proposals

import (
	"context"
	"fmt"
	"sort"

	"propcare_backend/internal/appointments"
	"propcare_backend/internal/approval"
	"propcare_backend/internal/cases"
	"propcare_backend/internal/events"
	"propcare_backend/platform/apperr"
	"propcare_backend/platform/logger"

	"github.com/google/uuid"
)

// requiredSlotCount is the exact number of slots a proposal must offer.
const requiredSlotCount = 3

// proposalStore is the persistence surface the service needs.
type proposalStore interface {
	SubmitWithReplace(ctx context.Context, params SubmitParams) (*Proposal, []Slot, error)
	GetSlot(ctx context.Context, slotID, organizationID uuid.UUID) (*SlotWithProposal, error)
	ListByCase(ctx context.Context, caseID, organizationID uuid.UUID) ([]Proposal, map[uuid.UUID][]Slot, error)
	MarkSlotSelected(ctx context.Context, slotID uuid.UUID) error
	AcceptProposal(ctx context.Context, proposalID, slotID uuid.UUID) error
	ReopenProposal(ctx context.Context, proposalID uuid.UUID) error
	DeclineSlot(ctx context.Context, slotID uuid.UUID) error
	GetPendingSelection(ctx context.Context, caseID, organizationID uuid.UUID) (*SlotWithProposal, error)
	RejectPendingByCase(ctx context.Context, caseID uuid.UUID) error
}

// caseReader provides the case access the workflow needs: reads, plus the
// guarded status move a first proposal triggers.
type caseReader interface {
	GetByID(ctx context.Context, id, organizationID uuid.UUID) (*cases.Case, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) error
}

// policyReader provides the organization's active approval policy.
type policyReader interface {
	GetActiveByOrganization(ctx context.Context, organizationID uuid.UUID) (*approval.Policy, error)
}

// materializer turns an approved selection into a confirmed appointment.
type materializer interface {
	Materialize(ctx context.Context, params appointments.MaterializeParams) (*appointments.Appointment, error)
}

// Service implements the proposal workflow.
type Service struct {
	repo     proposalStore
	cases    caseReader
	policies policyReader
	appts    materializer
	bus      events.Bus
	log      *logger.Logger
}

// NewService creates the proposal service.
func NewService(repo proposalStore, caseRepo caseReader, policyRepo policyReader, appts materializer, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		repo:     repo,
		cases:    caseRepo,
		policies: policyRepo,
		appts:    appts,
		bus:      bus,
		log:      log,
	}
}

// SubmitInput is a validated proposal submission.
type SubmitInput struct {
	CaseID             uuid.UUID
	OrganizationID     uuid.UUID
	ProviderID         uuid.UUID
	EstimatedCostCents *int64
	Note               string
	Slots              []SlotInput
}

// Submit records a provider's proposal, superseding any still-pending one by
// the same provider for the same case. An assigned case stays New until its
// first proposal arrives; recording the proposal moves it into In_Review.
func (s *Service) Submit(ctx context.Context, input SubmitInput) (*Proposal, []Slot, error) {
	item, err := s.cases.GetByID(ctx, input.CaseID, input.OrganizationID)
	if err != nil {
		return nil, nil, err
	}
	if cases.IsTerminal(item.Status) {
		return nil, nil, apperr.Conflict(fmt.Sprintf("case is already %s", item.Status))
	}
	if item.Status != cases.StatusNew && item.Status != cases.StatusInReview {
		return nil, nil, apperr.Conflict("case is not accepting proposals")
	}
	if item.AssignedProviderID == nil || *item.AssignedProviderID != input.ProviderID {
		return nil, nil, apperr.Forbidden("provider is not assigned to this case")
	}

	if err := validateSlots(input.Slots); err != nil {
		return nil, nil, err
	}

	proposal, slots, err := s.repo.SubmitWithReplace(ctx, SubmitParams{
		CaseID:             input.CaseID,
		OrganizationID:     input.OrganizationID,
		ProviderID:         input.ProviderID,
		EstimatedCostCents: input.EstimatedCostCents,
		Note:               input.Note,
		Slots:              input.Slots,
	})
	if err != nil {
		return nil, nil, err
	}

	if item.Status == cases.StatusNew {
		// The first proposal moves the case into slot selection. The proposal
		// is already recorded, so a lost race on the status guard is tolerated
		// and anything else only logged.
		if err := s.cases.UpdateStatus(ctx, item.ID, cases.StatusNew, cases.StatusInReview); err != nil && !apperr.Is(err, apperr.KindConflict) {
			s.log.Error("failed to move case into review after proposal", "case_id", item.ID, "error", err)
		}
	}

	s.bus.Publish(ctx, events.ProposalSubmitted{
		BaseEvent:      events.NewBaseEvent(),
		CaseID:         proposal.CaseID,
		OrganizationID: proposal.OrganizationID,
		ProposalID:     proposal.ID,
		ProviderID:     proposal.ProviderID,
		SlotCount:      len(slots),
	})

	return proposal, slots, nil
}

// validateSlots enforces the slot rules: exactly three windows, each with
// positive duration, none overlapping another.
func validateSlots(slots []SlotInput) error {
	if len(slots) != requiredSlotCount {
		return apperr.Validation(fmt.Sprintf("a proposal must offer exactly %d slots", requiredSlotCount))
	}

	for _, slot := range slots {
		if !slot.EndTime.After(slot.StartTime) {
			return apperr.Validation("each slot must end after it starts")
		}
	}

	ordered := append([]SlotInput(nil), slots...)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].StartTime.Before(ordered[j].StartTime)
	})
	for i := 1; i < len(ordered); i++ {
		if ordered[i].StartTime.Before(ordered[i-1].EndTime) {
			return apperr.Validation("slots must not overlap")
		}
	}

	return nil
}

// SelectionOutcome reports what selecting a slot led to.
type SelectionOutcome struct {
	Approved    bool
	Reason      string
	Appointment *appointments.Appointment
}

// SelectInput identifies the slot and the actor selecting it.
type SelectInput struct {
	SlotID         uuid.UUID
	OrganizationID uuid.UUID
	ActorID        uuid.UUID
	IsOwner        bool
}

// SelectSlot records the requester's choice and runs the approval policy.
// Auto-approval materializes the appointment immediately; otherwise the
// selection is parked for manual review.
func (s *Service) SelectSlot(ctx context.Context, input SelectInput) (*SelectionOutcome, error) {
	sw, err := s.repo.GetSlot(ctx, input.SlotID, input.OrganizationID)
	if err != nil {
		return nil, err
	}

	item, err := s.cases.GetByID(ctx, sw.Proposal.CaseID, input.OrganizationID)
	if err != nil {
		return nil, err
	}

	if input.ActorID != item.RequesterID && !input.IsOwner {
		return nil, apperr.Forbidden("only the requester or an organization owner may select a slot")
	}
	if cases.IsTerminal(item.Status) {
		return nil, apperr.Conflict(fmt.Sprintf("case is already %s", item.Status))
	}
	if item.Status != cases.StatusInReview {
		return nil, apperr.Conflict("case is not awaiting scheduling")
	}
	if sw.Proposal.Status != ProposalPending {
		return nil, apperr.Conflict("proposal is no longer pending")
	}
	if sw.Slot.Status != SlotProposed {
		return nil, apperr.Conflict("slot has already been decided")
	}

	policy, err := s.policies.GetActiveByOrganization(ctx, input.OrganizationID)
	if err != nil {
		return nil, err
	}

	urgency := ""
	if item.Urgency != nil {
		urgency = *item.Urgency
	}

	decision := approval.Decide(policy, approval.Input{
		CaseUrgency:        urgency,
		ProviderID:         sw.Proposal.ProviderID,
		EstimatedCostCents: sw.Proposal.EstimatedCostCents,
		SlotStart:          sw.Slot.StartTime,
	})

	mode := "none"
	if policy != nil {
		mode = policy.Mode
	}
	s.log.PolicyDecision(item.ID.String(), mode, decision.Approve, decision.Reason)

	if !decision.Approve {
		if err := s.repo.MarkSlotSelected(ctx, input.SlotID); err != nil {
			return nil, err
		}

		s.bus.Publish(ctx, events.ManualReviewRequired{
			BaseEvent:      events.NewBaseEvent(),
			CaseID:         item.ID,
			OrganizationID: item.OrganizationID,
			ProposalID:     sw.Proposal.ID,
			SlotID:         sw.Slot.ID,
			Reason:         decision.Reason,
		})

		return &SelectionOutcome{Approved: false, Reason: decision.Reason}, nil
	}

	appointment, err := s.finalize(ctx, item, sw, true, decision.Reason)
	if err != nil {
		return nil, err
	}

	return &SelectionOutcome{Approved: true, Reason: decision.Reason, Appointment: appointment}, nil
}

// ReviewInput is a manual review verdict for a parked selection.
type ReviewInput struct {
	CaseID         uuid.UUID
	OrganizationID uuid.UUID
	Approve        bool
	Reason         string
}

// Review resolves a selection that the policy deferred. Approval re-enters
// the same materialization step as auto-approval; decline frees the slot's
// proposal for another choice.
func (s *Service) Review(ctx context.Context, input ReviewInput) (*SelectionOutcome, error) {
	item, err := s.cases.GetByID(ctx, input.CaseID, input.OrganizationID)
	if err != nil {
		return nil, err
	}
	if cases.IsTerminal(item.Status) {
		return nil, apperr.Conflict(fmt.Sprintf("case is already %s", item.Status))
	}

	sel, err := s.repo.GetPendingSelection(ctx, input.CaseID, input.OrganizationID)
	if err != nil {
		return nil, err
	}
	if sel == nil {
		return nil, apperr.NotFound("no selection is awaiting review")
	}

	if !input.Approve {
		if err := s.repo.DeclineSlot(ctx, sel.Slot.ID); err != nil {
			return nil, err
		}

		s.bus.Publish(ctx, events.AppointmentDeclined{
			BaseEvent:      events.NewBaseEvent(),
			CaseID:         item.ID,
			OrganizationID: item.OrganizationID,
			ProposalID:     sel.Proposal.ID,
			Reason:         input.Reason,
		})

		return &SelectionOutcome{Approved: false, Reason: input.Reason}, nil
	}

	reason := input.Reason
	if reason == "" {
		reason = "manually approved"
	}

	appointment, err := s.finalize(ctx, item, sel, false, reason)
	if err != nil {
		return nil, err
	}

	return &SelectionOutcome{Approved: true, Reason: reason, Appointment: appointment}, nil
}

// finalize accepts the proposal and materializes the appointment. When the
// appointment cannot be created, the acceptance is undone so the proposal
// returns to pending and the selection can be retried.
func (s *Service) finalize(ctx context.Context, item *cases.Case, sw *SlotWithProposal, auto bool, reason string) (*appointments.Appointment, error) {
	if err := s.repo.AcceptProposal(ctx, sw.Proposal.ID, sw.Slot.ID); err != nil {
		return nil, err
	}

	appointment, err := s.appts.Materialize(ctx, appointments.MaterializeParams{
		CaseID:         item.ID,
		OrganizationID: item.OrganizationID,
		ProviderID:     sw.Proposal.ProviderID,
		ProposalID:     sw.Proposal.ID,
		SlotID:         sw.Slot.ID,
		StartTime:      sw.Slot.StartTime,
		EndTime:        sw.Slot.EndTime,
		CaseTitle:      item.Title,
		AutoApproved:   auto,
		Reason:         reason,
	})
	if err != nil {
		if undoErr := s.repo.ReopenProposal(ctx, sw.Proposal.ID); undoErr != nil {
			s.log.Error("failed to reopen proposal after materialization failure",
				"proposal_id", sw.Proposal.ID, "error", undoErr)
		}
		return nil, err
	}

	return appointment, nil
}

// ListByCase returns a case's proposals with their slots.
func (s *Service) ListByCase(ctx context.Context, caseID, organizationID uuid.UUID) ([]Proposal, map[uuid.UUID][]Slot, error) {
	if _, err := s.cases.GetByID(ctx, caseID, organizationID); err != nil {
		return nil, nil, err
	}
	return s.repo.ListByCase(ctx, caseID, organizationID)
}

// HandleCaseCancelled rejects the case's still-pending proposals after a
// cancellation event.
func (s *Service) HandleCaseCancelled(ctx context.Context, event events.Event) error {
	cancelled, ok := event.(events.CaseCancelled)
	if !ok {
		return nil
	}
	return s.repo.RejectPendingByCase(ctx, cancelled.CaseID)
}
