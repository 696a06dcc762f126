package cases

import (
	"context"
	"testing"

	"propcare_backend/internal/matching"
	"propcare_backend/internal/providers"
	"propcare_backend/internal/triage"
	"propcare_backend/platform/apperr"

	"github.com/google/uuid"
)

func ratingPtr(v float64) *float64 { return &v }

func newTestService(store *fakeStore, pool []providers.Provider, result triage.Result) (*Service, *recordingBus, *fakeEnqueuer) {
	bus := &recordingBus{}
	enqueuer := &fakeEnqueuer{}
	svc := NewService(
		store,
		&fakeProviderLister{items: pool},
		&fakeClassifier{result: result},
		matching.NewScorer(),
		nil,
		enqueuer,
		bus,
		testLogger(),
	)
	return svc, bus, enqueuer
}

func plumberPool(orgID uuid.UUID) []providers.Provider {
	return []providers.Provider{
		{
			ID:              uuid.MustParse("11111111-1111-1111-1111-111111111111"),
			OrganizationID:  orgID,
			Name:            "Rapid Pipes",
			Specializations: []string{"Plumbing"},
			Rating:          ratingPtr(4.5),
			MaxJobsPerDay:   5,
			Active:          true,
		},
		{
			ID:              uuid.MustParse("22222222-2222-2222-2222-222222222222"),
			OrganizationID:  orgID,
			Name:            "Sparks Electric",
			Specializations: []string{"Electrical"},
			Rating:          ratingPtr(4.9),
			MaxJobsPerDay:   5,
			Active:          true,
		},
	}
}

func reportTestCase(t *testing.T, svc *Service, orgID uuid.UUID) *Case {
	t.Helper()
	item, err := svc.Report(context.Background(), ReportParams{
		OrganizationID: orgID,
		RequesterID:    uuid.New(),
		Title:          "Kitchen sink is leaking",
		Description:    "Water pooling under the kitchen sink, getting worse overnight.",
		CategoryHint:   "Plumbing",
	})
	requireNoError(t, err)
	return item
}

func TestReportCreatesCaseAndDispatchesTriage(t *testing.T) {
	orgID := uuid.New()
	store := newFakeStore()
	svc, bus, enqueuer := newTestService(store, nil, triage.Result{})

	item := reportTestCase(t, svc, orgID)

	if item.Status != StatusNew {
		t.Fatalf("expected status New, got %s", item.Status)
	}
	if item.TriageStatus != TriagePending {
		t.Fatalf("expected triage pending, got %s", item.TriageStatus)
	}
	if !contains(bus.names(), "cases.case.reported") {
		t.Fatal("expected case.reported event")
	}
	if len(enqueuer.calls) != 1 || enqueuer.calls[0] != item.ID {
		t.Fatal("expected one triage task for the new case")
	}
}

func TestRunTriageClassifiesAndAssignsBestMatch(t *testing.T) {
	orgID := uuid.New()
	store := newFakeStore()
	result := triage.Result{
		Category:                 "Plumbing",
		Urgency:                  triage.UrgencyHigh,
		RequiredSkills:           []string{"plumbing"},
		EstimatedDurationMinutes: 90,
		SafetyRisk:               triage.SafetyRiskLow,
		Diagnosis:                "Worn sink trap seal.",
		TroubleshootingSteps:     []string{"Shut off the valve under the sink."},
		ModelVersion:             "test-model",
	}
	svc, bus, _ := newTestService(store, plumberPool(orgID), result)

	item := reportTestCase(t, svc, orgID)
	requireNoError(t, svc.RunTriage(context.Background(), item.ID, orgID))

	got, err := svc.Get(context.Background(), item.ID, orgID)
	requireNoError(t, err)

	if got.Status != StatusNew {
		t.Fatalf("assignment must keep the case New until the provider responds, got %s", got.Status)
	}
	if got.TriageStatus != TriageCompleted {
		t.Fatalf("expected triage completed, got %s", got.TriageStatus)
	}
	if got.AssignedProviderID == nil {
		t.Fatal("expected an assigned provider")
	}
	if got.AssignedProviderID.String() != "11111111-1111-1111-1111-111111111111" {
		t.Fatalf("expected the plumbing specialist, got %s", got.AssignedProviderID)
	}
	if got.Category == nil || *got.Category != "Plumbing" {
		t.Fatal("expected denormalized category")
	}

	names := bus.names()
	if !contains(names, "cases.case.triaged") || !contains(names, "cases.case.assigned") {
		t.Fatalf("expected triaged and assigned events, got %v", names)
	}
}

func TestRunTriageWithoutCandidatesLeavesCaseUnassigned(t *testing.T) {
	orgID := uuid.New()
	store := newFakeStore()
	svc, bus, _ := newTestService(store, nil, triage.Result{Category: "Plumbing", Urgency: triage.UrgencyMedium})

	item := reportTestCase(t, svc, orgID)
	requireNoError(t, svc.RunTriage(context.Background(), item.ID, orgID))

	got, err := svc.Get(context.Background(), item.ID, orgID)
	requireNoError(t, err)

	if got.Status != StatusInReview {
		t.Fatalf("expected In_Review for manual assignment, got %s", got.Status)
	}
	if got.AssignedProviderID != nil {
		t.Fatal("expected no assignment without candidates")
	}
	if got.TriageStatus != TriageCompleted {
		t.Fatalf("expected triage completed, got %s", got.TriageStatus)
	}
	if contains(bus.names(), "cases.case.assigned") {
		t.Fatal("no assignment event expected without candidates")
	}
}

func TestRunTriageSkipsCancelledCase(t *testing.T) {
	orgID := uuid.New()
	store := newFakeStore()
	svc, _, _ := newTestService(store, plumberPool(orgID), triage.Result{Category: "Plumbing"})

	item := reportTestCase(t, svc, orgID)
	requireNoError(t, svc.Cancel(context.Background(), item.ID, orgID))
	requireNoError(t, svc.RunTriage(context.Background(), item.ID, orgID))

	classification, err := store.GetLatestClassification(context.Background(), item.ID)
	requireNoError(t, err)
	if classification != nil {
		t.Fatal("cancelled case must not be classified")
	}
}

func TestRunTriageFallbackStillCompletes(t *testing.T) {
	orgID := uuid.New()
	store := newFakeStore()
	// Empty fake result makes the classifier return the fallback.
	svc, _, _ := newTestService(store, plumberPool(orgID), triage.Result{})

	item := reportTestCase(t, svc, orgID)
	requireNoError(t, svc.RunTriage(context.Background(), item.ID, orgID))

	classification, err := store.GetLatestClassification(context.Background(), item.ID)
	requireNoError(t, err)
	if classification == nil || !classification.Fallback {
		t.Fatal("expected a stored fallback classification")
	}
	if classification.Category != "Plumbing" {
		t.Fatalf("fallback must honor the category hint, got %q", classification.Category)
	}

	got, err := svc.Get(context.Background(), item.ID, orgID)
	requireNoError(t, err)
	if got.TriageStatus != TriageCompleted {
		t.Fatalf("fallback still completes triage, got %s", got.TriageStatus)
	}
}

func TestCancelRejectsTerminalCase(t *testing.T) {
	orgID := uuid.New()
	store := newFakeStore()
	svc, _, _ := newTestService(store, nil, triage.Result{})

	item := reportTestCase(t, svc, orgID)
	requireNoError(t, svc.Cancel(context.Background(), item.ID, orgID))

	err := svc.Cancel(context.Background(), item.ID, orgID)
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict on double cancel, got %v", err)
	}
}

func TestHoldAndResumeReturnsToInReview(t *testing.T) {
	orgID := uuid.New()
	store := newFakeStore()
	svc, _, _ := newTestService(store, plumberPool(orgID), triage.Result{Category: "Plumbing"})

	item := reportTestCase(t, svc, orgID)
	requireNoError(t, svc.RunTriage(context.Background(), item.ID, orgID))
	requireNoError(t, store.UpdateStatus(context.Background(), item.ID, StatusNew, StatusInReview))

	requireNoError(t, svc.Hold(context.Background(), item.ID, orgID))
	got, err := svc.Get(context.Background(), item.ID, orgID)
	requireNoError(t, err)
	if got.Status != StatusOnHold {
		t.Fatalf("expected On_Hold, got %s", got.Status)
	}

	requireNoError(t, svc.Resume(context.Background(), item.ID, orgID))
	got, err = svc.Get(context.Background(), item.ID, orgID)
	requireNoError(t, err)
	if got.Status != StatusInReview {
		t.Fatalf("resume must return the case to In_Review, got %s", got.Status)
	}
}

func TestResumeFromScheduledHoldReturnsToInReview(t *testing.T) {
	orgID := uuid.New()
	store := newFakeStore()
	svc, _, _ := newTestService(store, nil, triage.Result{})

	item := reportTestCase(t, svc, orgID)
	requireNoError(t, store.UpdateStatus(context.Background(), item.ID, StatusNew, StatusInReview))
	requireNoError(t, store.UpdateStatus(context.Background(), item.ID, StatusInReview, StatusScheduled))

	requireNoError(t, svc.Hold(context.Background(), item.ID, orgID))
	requireNoError(t, svc.Resume(context.Background(), item.ID, orgID))

	got, err := svc.Get(context.Background(), item.ID, orgID)
	requireNoError(t, err)
	if got.Status != StatusInReview {
		t.Fatalf("a case held while Scheduled must resume into In_Review, got %s", got.Status)
	}
}

func TestHoldRejectsNewCase(t *testing.T) {
	orgID := uuid.New()
	store := newFakeStore()
	svc, _, _ := newTestService(store, nil, triage.Result{})

	item := reportTestCase(t, svc, orgID)

	if err := svc.Hold(context.Background(), item.ID, orgID); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict holding a New case, got %v", err)
	}
}

func TestHoldRejectsTerminalCase(t *testing.T) {
	orgID := uuid.New()
	store := newFakeStore()
	svc, _, _ := newTestService(store, nil, triage.Result{})

	item := reportTestCase(t, svc, orgID)
	requireNoError(t, svc.Cancel(context.Background(), item.ID, orgID))

	if err := svc.Hold(context.Background(), item.ID, orgID); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict holding a cancelled case, got %v", err)
	}
}

func TestGuidanceBeforeAndAfterTriage(t *testing.T) {
	orgID := uuid.New()
	store := newFakeStore()
	svc, _, _ := newTestService(store, nil, triage.Result{
		Category:  "Plumbing",
		Urgency:   triage.UrgencyHigh,
		Diagnosis: "Worn sink trap seal.",
	})

	item := reportTestCase(t, svc, orgID)

	if _, err := svc.Guidance(context.Background(), item.ID, orgID); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found before triage, got %v", err)
	}

	requireNoError(t, svc.RunTriage(context.Background(), item.ID, orgID))

	guidance, err := svc.Guidance(context.Background(), item.ID, orgID)
	requireNoError(t, err)
	if guidance.Diagnosis != "Worn sink trap seal." {
		t.Fatalf("unexpected diagnosis %q", guidance.Diagnosis)
	}
}

func TestCompleteOnlyFromScheduled(t *testing.T) {
	orgID := uuid.New()
	store := newFakeStore()
	svc, _, _ := newTestService(store, plumberPool(orgID), triage.Result{Category: "Plumbing"})

	item := reportTestCase(t, svc, orgID)

	if err := svc.Complete(context.Background(), item.ID, orgID); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict completing a New case, got %v", err)
	}

	requireNoError(t, svc.RunTriage(context.Background(), item.ID, orgID))
	requireNoError(t, store.UpdateStatus(context.Background(), item.ID, StatusNew, StatusInReview))
	requireNoError(t, store.UpdateStatus(context.Background(), item.ID, StatusInReview, StatusScheduled))

	requireNoError(t, svc.Complete(context.Background(), item.ID, orgID))

	got, err := svc.Get(context.Background(), item.ID, orgID)
	requireNoError(t, err)
	if got.Status != StatusCompleted {
		t.Fatalf("expected Completed, got %s", got.Status)
	}
}
