// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"propcare_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var (
	NewBaseEvent   = events.NewBaseEvent
	NewInMemoryBus = events.NewInMemoryBus
)

// =============================================================================
// Case Domain Events
// =============================================================================

// CaseReported is published when a new maintenance case is persisted,
// before the asynchronous triage pipeline has run.
type CaseReported struct {
	BaseEvent
	CaseID         uuid.UUID  `json:"caseId"`
	OrganizationID uuid.UUID  `json:"organizationId"`
	RequesterID    uuid.UUID  `json:"requesterId"`
	PropertyID     *uuid.UUID `json:"propertyId,omitempty"`
	Title          string     `json:"title"`
}

func (e CaseReported) EventName() string { return "cases.case.reported" }

// CaseTriaged is published when the classification adapter has produced a
// result for a case (model-derived or fallback).
type CaseTriaged struct {
	BaseEvent
	CaseID         uuid.UUID `json:"caseId"`
	OrganizationID uuid.UUID `json:"organizationId"`
	Category       string    `json:"category"`
	Urgency        string    `json:"urgency"`
	Fallback       bool      `json:"fallback"`
}

func (e CaseTriaged) EventName() string { return "cases.case.triaged" }

// CaseAssigned is published when the contractor scorer has matched a provider.
type CaseAssigned struct {
	BaseEvent
	CaseID         uuid.UUID `json:"caseId"`
	OrganizationID uuid.UUID `json:"organizationId"`
	ProviderID     uuid.UUID `json:"providerId"`
	MatchScore     float64   `json:"matchScore"`
}

func (e CaseAssigned) EventName() string { return "cases.case.assigned" }

// CaseCancelled is published when a case is terminally cancelled. Downstream
// modules must clean up any still-pending work tied to the case.
type CaseCancelled struct {
	BaseEvent
	CaseID         uuid.UUID `json:"caseId"`
	OrganizationID uuid.UUID `json:"organizationId"`
}

func (e CaseCancelled) EventName() string { return "cases.case.cancelled" }

// =============================================================================
// Proposal Domain Events
// =============================================================================

// ProposalSubmitted is published when a provider submits appointment slots.
type ProposalSubmitted struct {
	BaseEvent
	CaseID         uuid.UUID `json:"caseId"`
	OrganizationID uuid.UUID `json:"organizationId"`
	ProposalID     uuid.UUID `json:"proposalId"`
	ProviderID     uuid.UUID `json:"providerId"`
	SlotCount      int       `json:"slotCount"`
}

func (e ProposalSubmitted) EventName() string { return "proposals.proposal.submitted" }

// ManualReviewRequired is published when a selected slot was deferred to
// human sign-off by the approval policy.
type ManualReviewRequired struct {
	BaseEvent
	CaseID         uuid.UUID `json:"caseId"`
	OrganizationID uuid.UUID `json:"organizationId"`
	ProposalID     uuid.UUID `json:"proposalId"`
	SlotID         uuid.UUID `json:"slotId"`
	Reason         string    `json:"reason"`
}

func (e ManualReviewRequired) EventName() string { return "proposals.review.required" }

// =============================================================================
// Appointment Domain Events
// =============================================================================

// AppointmentApproved is published when a slot selection was confirmed,
// either automatically by policy or through manual sign-off.
type AppointmentApproved struct {
	BaseEvent
	CaseID         uuid.UUID `json:"caseId"`
	OrganizationID uuid.UUID `json:"organizationId"`
	AppointmentID  uuid.UUID `json:"appointmentId"`
	ProviderID     uuid.UUID `json:"providerId"`
	StartTime      time.Time `json:"startTime"`
	EndTime        time.Time `json:"endTime"`
	AutoApproved   bool      `json:"autoApproved"`
	Reason         string    `json:"reason"`
}

func (e AppointmentApproved) EventName() string { return "appointments.appointment.approved" }

// AppointmentDeclined is published when a pending selection was declined
// during manual review.
type AppointmentDeclined struct {
	BaseEvent
	CaseID         uuid.UUID `json:"caseId"`
	OrganizationID uuid.UUID `json:"organizationId"`
	ProposalID     uuid.UUID `json:"proposalId"`
	Reason         string    `json:"reason"`
}

func (e AppointmentDeclined) EventName() string { return "appointments.appointment.declined" }
