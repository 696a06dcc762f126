package cases

import (
	"context"
	"sync"
	"testing"
	"time"

	"propcare_backend/internal/events"
	"propcare_backend/internal/providers"
	"propcare_backend/internal/triage"
	"propcare_backend/platform/apperr"
	"propcare_backend/platform/logger"

	"github.com/google/uuid"
)

func testLogger() *logger.Logger {
	return logger.New("development")
}

// fakeStore is an in-memory store for service tests.
type fakeStore struct {
	mu              sync.Mutex
	cases           map[uuid.UUID]*Case
	classifications map[uuid.UUID][]Classification
	photos          map[uuid.UUID][]Photo
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		cases:           make(map[uuid.UUID]*Case),
		classifications: make(map[uuid.UUID][]Classification),
		photos:          make(map[uuid.UUID][]Photo),
	}
}

func (f *fakeStore) Create(_ context.Context, params CreateParams) (*Case, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item := &Case{
		ID:             uuid.New(),
		OrganizationID: params.OrganizationID,
		RequesterID:    params.RequesterID,
		PropertyID:     params.PropertyID,
		Title:          params.Title,
		Description:    params.Description,
		CategoryHint:   params.CategoryHint,
		Status:         StatusNew,
		TriageStatus:   TriagePending,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	f.cases[item.ID] = item
	return copyCase(item), nil
}

func (f *fakeStore) GetByID(_ context.Context, id, organizationID uuid.UUID) (*Case, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.cases[id]
	if !ok || item.OrganizationID != organizationID {
		return nil, apperr.NotFound("case not found")
	}
	return copyCase(item), nil
}

func (f *fakeStore) ListByOrganization(_ context.Context, organizationID uuid.UUID, status string) ([]Case, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var items []Case
	for _, item := range f.cases {
		if item.OrganizationID == organizationID && (status == "" || item.Status == status) {
			items = append(items, *copyCase(item))
		}
	}
	return items, nil
}

func (f *fakeStore) UpdateStatus(_ context.Context, id uuid.UUID, from, to string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.cases[id]
	if !ok || item.Status != from {
		return apperr.Conflict("case is no longer " + from)
	}
	item.Status = to
	return nil
}

func (f *fakeStore) SetTriageStatus(_ context.Context, id uuid.UUID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if item, ok := f.cases[id]; ok {
		item.TriageStatus = status
	}
	return nil
}

func (f *fakeStore) SaveClassification(_ context.Context, caseID uuid.UUID, result triage.Result) (*Classification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row := Classification{
		ID:                       uuid.New(),
		CaseID:                   caseID,
		Category:                 result.Category,
		Urgency:                  result.Urgency,
		RequiredSkills:           result.RequiredSkills,
		EstimatedDurationMinutes: result.EstimatedDurationMinutes,
		SafetyRisk:               result.SafetyRisk,
		Diagnosis:                result.Diagnosis,
		TroubleshootingSteps:     result.TroubleshootingSteps,
		ModelVersion:             result.ModelVersion,
		Fallback:                 result.Fallback,
		CreatedAt:                time.Now(),
	}
	f.classifications[caseID] = append(f.classifications[caseID], row)
	if item, ok := f.cases[caseID]; ok {
		item.Category = &row.Category
		item.Urgency = &row.Urgency
	}
	return &row, nil
}

func (f *fakeStore) GetLatestClassification(_ context.Context, caseID uuid.UUID) (*Classification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rows := f.classifications[caseID]
	if len(rows) == 0 {
		return nil, nil
	}
	latest := rows[len(rows)-1]
	return &latest, nil
}

func (f *fakeStore) AssignProvider(_ context.Context, caseID, providerID uuid.UUID, score float64, justification string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.cases[caseID]
	if !ok || item.Status != StatusNew {
		return apperr.Conflict("case is no longer awaiting assignment")
	}
	item.AssignedProviderID = &providerID
	item.MatchScore = &score
	item.MatchJustification = &justification
	return nil
}

func (f *fakeStore) Hold(_ context.Context, id uuid.UUID, fromStatus string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.cases[id]
	if !ok || item.Status != fromStatus {
		return apperr.Conflict("case is no longer " + fromStatus)
	}
	item.Status = StatusOnHold
	item.HeldFromStatus = &fromStatus
	return nil
}

func (f *fakeStore) Resume(_ context.Context, id uuid.UUID, toStatus string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.cases[id]
	if !ok || item.Status != StatusOnHold {
		return apperr.Conflict("case is not on hold")
	}
	item.Status = toStatus
	item.HeldFromStatus = nil
	return nil
}

func (f *fakeStore) AddPhoto(_ context.Context, caseID uuid.UUID, objectKey, mimeType string, sizeBytes int64) (*Photo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	photo := Photo{
		ID:        uuid.New(),
		CaseID:    caseID,
		ObjectKey: objectKey,
		MIMEType:  mimeType,
		SizeBytes: sizeBytes,
		CreatedAt: time.Now(),
	}
	f.photos[caseID] = append(f.photos[caseID], photo)
	return &photo, nil
}

func (f *fakeStore) ListPhotos(_ context.Context, caseID uuid.UUID) ([]Photo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Photo(nil), f.photos[caseID]...), nil
}

func copyCase(item *Case) *Case {
	dup := *item
	return &dup
}

// fakeProviderLister returns a fixed candidate pool.
type fakeProviderLister struct {
	items []providers.Provider
}

func (f *fakeProviderLister) ListActiveByOrganization(context.Context, uuid.UUID) ([]providers.Provider, error) {
	return f.items, nil
}

// fakeClassifier returns a canned result.
type fakeClassifier struct {
	result triage.Result
}

func (f *fakeClassifier) Classify(_ context.Context, report triage.Report) triage.Result {
	if f.result.Category == "" {
		return triage.FallbackResult(report)
	}
	return f.result
}

// recordingBus captures published events synchronously.
type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *recordingBus) Publish(_ context.Context, event events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *recordingBus) PublishSync(ctx context.Context, event events.Event) error {
	b.Publish(ctx, event)
	return nil
}

func (b *recordingBus) Subscribe(string, events.Handler) {}

func (b *recordingBus) names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.events))
	for i, e := range b.events {
		out[i] = e.EventName()
	}
	return out
}

// fakeEnqueuer records dispatched triage tasks instead of running them.
type fakeEnqueuer struct {
	mu    sync.Mutex
	calls []uuid.UUID
}

func (f *fakeEnqueuer) EnqueueTriage(_ context.Context, caseID, _ uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, caseID)
	return nil
}

func contains(names []string, want string) bool {
	for _, n := range names {
		if n == want {
			return true
		}
	}
	return false
}

func requireNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
