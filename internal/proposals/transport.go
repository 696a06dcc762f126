package proposals

import (
	"time"

	"github.com/google/uuid"
)

// slotInput is one offered window in a submission.
type slotInput struct {
	StartTime time.Time `json:"startTime" validate:"required"`
	EndTime   time.Time `json:"endTime" validate:"required"`
}

// submitProposalRequest is the payload for submitting a proposal.
type submitProposalRequest struct {
	EstimatedCostCents *int64      `json:"estimatedCostCents" validate:"omitempty,min=0"`
	Note               string      `json:"note" validate:"omitempty,max=2000"`
	Slots              []slotInput `json:"slots" validate:"required,len=3,dive"`
}

// reviewRequest is the manual review verdict payload.
type reviewRequest struct {
	Approve bool   `json:"approve"`
	Reason  string `json:"reason" validate:"omitempty,max=500"`
}

type slotResponse struct {
	ID        uuid.UUID `json:"id"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	Status    string    `json:"status"`
}

type proposalResponse struct {
	ID                 uuid.UUID      `json:"id"`
	CaseID             uuid.UUID      `json:"caseId"`
	ProviderID         uuid.UUID      `json:"providerId"`
	Status             string         `json:"status"`
	EstimatedCostCents *int64         `json:"estimatedCostCents,omitempty"`
	Note               string         `json:"note,omitempty"`
	Slots              []slotResponse `json:"slots"`
	CreatedAt          time.Time      `json:"createdAt"`
}

func toProposalResponse(p *Proposal, slots []Slot) proposalResponse {
	out := proposalResponse{
		ID:                 p.ID,
		CaseID:             p.CaseID,
		ProviderID:         p.ProviderID,
		Status:             p.Status,
		EstimatedCostCents: p.EstimatedCostCents,
		Note:               p.Note,
		Slots:              make([]slotResponse, len(slots)),
		CreatedAt:          p.CreatedAt,
	}
	for i, s := range slots {
		out.Slots[i] = slotResponse{ID: s.ID, StartTime: s.StartTime, EndTime: s.EndTime, Status: s.Status}
	}
	return out
}

// selectionResponse reports the outcome of a slot selection or review.
type selectionResponse struct {
	Approved      bool       `json:"approved"`
	Reason        string     `json:"reason"`
	AppointmentID *uuid.UUID `json:"appointmentId,omitempty"`
	CaseStatus    string     `json:"caseStatus"`
}

func toSelectionResponse(outcome *SelectionOutcome, deferredStatus string) selectionResponse {
	out := selectionResponse{
		Approved:   outcome.Approved,
		Reason:     outcome.Reason,
		CaseStatus: deferredStatus,
	}
	if outcome.Appointment != nil {
		out.AppointmentID = &outcome.Appointment.ID
	}
	return out
}
