// Package approval evaluates an organization's autonomy policy against a
// selected appointment slot. Decide is a pure, total function: every
// combination of policy fields and case/slot values yields approve or defer,
// never an error. Absent policy fields are permissive (no gate configured).
package approval

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Involvement modes.
const (
	ModeHandsOff = "hands_off"
	ModeBalanced = "balanced"
	ModeHandsOn  = "hands_on"
)

// Policy is an organization's autonomy configuration.
type Policy struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	Mode           string
	// CostThresholdCents gates auto-approval on estimated cost. Nil means
	// no cost gate.
	CostThresholdCents *int64
	// PreferredHourStart/End define the local time-of-day window (inclusive
	// hours, 0-23) in which appointments may be auto-approved. Both nil
	// means no window gate.
	PreferredHourStart *int
	PreferredHourEnd   *int
	// TrustedProviderIDs limits auto-approval to pre-trusted providers.
	// Empty means every provider passes.
	TrustedProviderIDs []uuid.UUID
	// UrgencyGate restricts auto-approval to cases of exactly this urgency.
	// Nil means no urgency gate.
	UrgencyGate *string
	Active      bool
	CreatedAt   time.Time
}

// Input carries the already-fetched values Decide needs. No I/O happens
// during evaluation.
type Input struct {
	CaseUrgency        string
	ProviderID         uuid.UUID
	EstimatedCostCents *int64
	SlotStart          time.Time
}

// Decision is the outcome of a policy evaluation.
type Decision struct {
	Approve bool
	Reason  string
}

// Decide evaluates the policy against the selected slot.
// A nil policy defers: organizations without an active policy keep a human
// in the loop.
func Decide(policy *Policy, input Input) Decision {
	if policy == nil {
		return Decision{Approve: false, Reason: "no active approval policy configured"}
	}

	switch policy.Mode {
	case ModeHandsOff:
		return Decision{Approve: true, Reason: "hands-off mode auto-approves all appointments"}

	case ModeHandsOn:
		return Decision{Approve: false, Reason: "hands-on mode requires manual confirmation"}

	case ModeBalanced:
		return decideBalanced(policy, input)

	default:
		// Unknown mode defers rather than failing: the decision stays total.
		return Decision{Approve: false, Reason: fmt.Sprintf("unknown involvement mode %q", policy.Mode)}
	}
}

// decideBalanced approves only when every configured gate passes.
func decideBalanced(policy *Policy, input Input) Decision {
	if policy.CostThresholdCents != nil {
		if input.EstimatedCostCents == nil {
			return Decision{Approve: false, Reason: "cost threshold configured but proposal carries no estimate"}
		}
		if *input.EstimatedCostCents > *policy.CostThresholdCents {
			return Decision{
				Approve: false,
				Reason: fmt.Sprintf("estimated cost %d exceeds threshold %d",
					*input.EstimatedCostCents, *policy.CostThresholdCents),
			}
		}
	}

	if policy.PreferredHourStart != nil && policy.PreferredHourEnd != nil {
		hour := input.SlotStart.Hour()
		if !hourInWindow(hour, *policy.PreferredHourStart, *policy.PreferredHourEnd) {
			return Decision{
				Approve: false,
				Reason: fmt.Sprintf("slot hour %d outside preferred window %d-%d",
					hour, *policy.PreferredHourStart, *policy.PreferredHourEnd),
			}
		}
	}

	if len(policy.TrustedProviderIDs) > 0 && !containsID(policy.TrustedProviderIDs, input.ProviderID) {
		return Decision{Approve: false, Reason: "provider is not in the trusted list"}
	}

	if policy.UrgencyGate != nil && *policy.UrgencyGate != input.CaseUrgency {
		return Decision{
			Approve: false,
			Reason:  fmt.Sprintf("case urgency %q does not match policy gate %q", input.CaseUrgency, *policy.UrgencyGate),
		}
	}

	return Decision{Approve: true, Reason: "all configured gates passed"}
}

// hourInWindow checks hour membership in an inclusive window, supporting
// windows that wrap past midnight (e.g. 22-6).
func hourInWindow(hour, start, end int) bool {
	if start <= end {
		return hour >= start && hour <= end
	}
	return hour >= start || hour <= end
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, item := range ids {
		if item == id {
			return true
		}
	}
	return false
}
