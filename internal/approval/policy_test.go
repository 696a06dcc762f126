package approval

import (
	"testing"
	"time"

	"propcare_backend/internal/triage"

	"github.com/google/uuid"
)

var (
	trustedProvider  = uuid.MustParse("aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa")
	unknownProvider  = uuid.MustParse("bbbbbbbb-bbbb-bbbb-bbbb-bbbbbbbbbbbb")
	morningSlotStart = time.Date(2026, 9, 14, 10, 0, 0, 0, time.UTC)
	lateSlotStart    = time.Date(2026, 9, 14, 21, 0, 0, 0, time.UTC)
)

func int64Ptr(v int64) *int64    { return &v }
func intPtr(v int) *int          { return &v }
func strPtr(v string) *string    { return &v }

func balancedPolicy() *Policy {
	return &Policy{
		ID:                 uuid.New(),
		Mode:               ModeBalanced,
		CostThresholdCents: int64Ptr(30000),
		PreferredHourStart: intPtr(8),
		PreferredHourEnd:   intPtr(18),
		TrustedProviderIDs: []uuid.UUID{trustedProvider},
		UrgencyGate:        strPtr(triage.UrgencyHigh),
		Active:             true,
	}
}

func passingInput() Input {
	return Input{
		CaseUrgency:        triage.UrgencyHigh,
		ProviderID:         trustedProvider,
		EstimatedCostCents: int64Ptr(25000),
		SlotStart:          morningSlotStart,
	}
}

func TestDecideHandsOffAlwaysApproves(t *testing.T) {
	policy := &Policy{Mode: ModeHandsOff}

	inputs := []Input{
		passingInput(),
		{CaseUrgency: triage.UrgencyLow, ProviderID: unknownProvider, EstimatedCostCents: int64Ptr(9_000_000), SlotStart: lateSlotStart},
		{},
	}

	for _, input := range inputs {
		if d := Decide(policy, input); !d.Approve {
			t.Fatalf("hands-off must always approve, got defer: %s", d.Reason)
		}
	}
}

func TestDecideHandsOnNeverApproves(t *testing.T) {
	policy := balancedPolicy()
	policy.Mode = ModeHandsOn

	if d := Decide(policy, passingInput()); d.Approve {
		t.Fatal("hands-on must never auto-approve")
	}
}

func TestDecideNilPolicyDefers(t *testing.T) {
	d := Decide(nil, passingInput())
	if d.Approve {
		t.Fatal("missing policy must defer to manual review")
	}
	if d.Reason == "" {
		t.Fatal("decision must always carry a reason")
	}
}

func TestDecideBalancedApprovesWhenAllGatesPass(t *testing.T) {
	d := Decide(balancedPolicy(), passingInput())
	if !d.Approve {
		t.Fatalf("expected approval, got defer: %s", d.Reason)
	}
}

func TestDecideBalancedGates(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Input)
	}{
		{"cost above threshold", func(in *Input) { in.EstimatedCostCents = int64Ptr(40000) }},
		{"missing estimate with cost gate", func(in *Input) { in.EstimatedCostCents = nil }},
		{"slot outside preferred window", func(in *Input) { in.SlotStart = lateSlotStart }},
		{"untrusted provider", func(in *Input) { in.ProviderID = unknownProvider }},
		{"urgency mismatch", func(in *Input) { in.CaseUrgency = triage.UrgencyLow }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := passingInput()
			tc.mutate(&input)

			d := Decide(balancedPolicy(), input)
			if d.Approve {
				t.Fatal("expected defer when a configured gate fails")
			}
			if d.Reason == "" {
				t.Fatal("deferral must explain which gate failed")
			}
		})
	}
}

func TestDecideBalancedAbsentGatesArePermissive(t *testing.T) {
	policy := &Policy{Mode: ModeBalanced}

	input := Input{
		CaseUrgency: triage.UrgencyLow,
		ProviderID:  unknownProvider,
		SlotStart:   lateSlotStart,
	}

	if d := Decide(policy, input); !d.Approve {
		t.Fatalf("unconfigured gates must pass, got defer: %s", d.Reason)
	}
}

func TestDecideWindowWrapsMidnight(t *testing.T) {
	policy := &Policy{
		Mode:               ModeBalanced,
		PreferredHourStart: intPtr(22),
		PreferredHourEnd:   intPtr(6),
	}

	night := Input{SlotStart: time.Date(2026, 9, 14, 23, 0, 0, 0, time.UTC)}
	if d := Decide(policy, night); !d.Approve {
		t.Fatalf("23:00 should fall inside a 22-6 window: %s", d.Reason)
	}

	noon := Input{SlotStart: time.Date(2026, 9, 14, 12, 0, 0, 0, time.UTC)}
	if d := Decide(policy, noon); d.Approve {
		t.Fatal("12:00 should fall outside a 22-6 window")
	}
}

func TestDecideIsPure(t *testing.T) {
	policy := balancedPolicy()
	input := passingInput()

	first := Decide(policy, input)
	for i := 0; i < 10; i++ {
		if got := Decide(policy, input); got != first {
			t.Fatal("same inputs must always produce the same decision")
		}
	}
}

func TestDecideUnknownModeDefers(t *testing.T) {
	policy := &Policy{Mode: "autopilot"}
	if d := Decide(policy, passingInput()); d.Approve {
		t.Fatal("unknown involvement mode must defer")
	}
}
