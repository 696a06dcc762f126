package proposals

import (
	"context"
	"errors"
	"sync"
	"time"

	"propcare_backend/internal/appointments"
	"propcare_backend/internal/approval"
	"propcare_backend/internal/cases"
	"propcare_backend/internal/events"
	"propcare_backend/platform/apperr"
	"propcare_backend/platform/logger"

	"github.com/google/uuid"
)

func testLogger() *logger.Logger {
	return logger.New("development")
}

// fakeProposalStore is an in-memory proposal store mirroring the repository's
// replace and guard semantics. failOnSlot, when positive, aborts a submission
// at that slot the way a failed insert aborts the transaction.
type fakeProposalStore struct {
	mu         sync.Mutex
	proposals  map[uuid.UUID]*Proposal
	slots      map[uuid.UUID]*Slot
	submits    int
	failOnSlot int
}

func newFakeProposalStore() *fakeProposalStore {
	return &fakeProposalStore{
		proposals: make(map[uuid.UUID]*Proposal),
		slots:     make(map[uuid.UUID]*Slot),
	}
}

func (f *fakeProposalStore) SubmitWithReplace(_ context.Context, params SubmitParams) (*Proposal, []Slot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submits++

	// Stage everything first so an injected failure leaves the maps
	// untouched, mirroring the repository's single transaction.
	now := time.Now()
	proposal := &Proposal{
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

	staged := make([]*Slot, 0, len(params.Slots))
	for i, input := range params.Slots {
		if f.failOnSlot > 0 && i+1 == f.failOnSlot {
			return nil, nil, errors.New("failed to create proposal slot")
		}
		staged = append(staged, &Slot{
			ID:         uuid.New(),
			ProposalID: proposal.ID,
			StartTime:  input.StartTime,
			EndTime:    input.EndTime,
			Status:     SlotProposed,
			CreatedAt:  now,
		})
	}

	for id, p := range f.proposals {
		if p.CaseID == params.CaseID && p.ProviderID == params.ProviderID && p.Status == ProposalPending {
			for sid, s := range f.slots {
				if s.ProposalID == id {
					delete(f.slots, sid)
				}
			}
			delete(f.proposals, id)
		}
	}

	f.proposals[proposal.ID] = proposal
	created := make([]Slot, 0, len(staged))
	for _, slot := range staged {
		f.slots[slot.ID] = slot
		created = append(created, *slot)
	}

	return proposal, created, nil
}

func (f *fakeProposalStore) GetSlot(_ context.Context, slotID, organizationID uuid.UUID) (*SlotWithProposal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	slot, ok := f.slots[slotID]
	if !ok {
		return nil, apperr.NotFound("slot not found")
	}
	proposal := f.proposals[slot.ProposalID]
	if proposal == nil || proposal.OrganizationID != organizationID {
		return nil, apperr.NotFound("slot not found")
	}
	return &SlotWithProposal{Slot: *slot, Proposal: *proposal}, nil
}

func (f *fakeProposalStore) ListByCase(_ context.Context, caseID, organizationID uuid.UUID) ([]Proposal, map[uuid.UUID][]Slot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var items []Proposal
	slots := make(map[uuid.UUID][]Slot)
	for _, p := range f.proposals {
		if p.CaseID != caseID || p.OrganizationID != organizationID {
			continue
		}
		items = append(items, *p)
		for _, s := range f.slots {
			if s.ProposalID == p.ID {
				slots[p.ID] = append(slots[p.ID], *s)
			}
		}
	}
	return items, slots, nil
}

func (f *fakeProposalStore) MarkSlotSelected(_ context.Context, slotID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	slot, ok := f.slots[slotID]
	if !ok || slot.Status != SlotProposed {
		return apperr.Conflict("slot is no longer selectable")
	}
	slot.Status = SlotSelected
	return nil
}

func (f *fakeProposalStore) AcceptProposal(_ context.Context, proposalID, slotID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	proposal, ok := f.proposals[proposalID]
	if !ok || proposal.Status != ProposalPending {
		return apperr.Conflict("proposal is no longer pending")
	}
	proposal.Status = ProposalAccepted
	for _, s := range f.slots {
		if s.ProposalID != proposalID {
			continue
		}
		if s.ID == slotID {
			s.Status = SlotSelected
		} else {
			s.Status = SlotDeclined
		}
	}
	return nil
}

func (f *fakeProposalStore) ReopenProposal(_ context.Context, proposalID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	proposal, ok := f.proposals[proposalID]
	if !ok || proposal.Status != ProposalAccepted {
		return apperr.Conflict("proposal is not accepted")
	}
	proposal.Status = ProposalPending
	for _, s := range f.slots {
		if s.ProposalID == proposalID {
			s.Status = SlotProposed
		}
	}
	return nil
}

func (f *fakeProposalStore) DeclineSlot(_ context.Context, slotID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	slot, ok := f.slots[slotID]
	if !ok || slot.Status != SlotSelected {
		return apperr.Conflict("slot is not awaiting review")
	}
	slot.Status = SlotDeclined
	return nil
}

func (f *fakeProposalStore) GetPendingSelection(_ context.Context, caseID, organizationID uuid.UUID) (*SlotWithProposal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.proposals {
		if p.CaseID != caseID || p.OrganizationID != organizationID || p.Status != ProposalPending {
			continue
		}
		for _, s := range f.slots {
			if s.ProposalID == p.ID && s.Status == SlotSelected {
				return &SlotWithProposal{Slot: *s, Proposal: *p}, nil
			}
		}
	}
	return nil, nil
}

func (f *fakeProposalStore) RejectPendingByCase(_ context.Context, caseID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.proposals {
		if p.CaseID == caseID && p.Status == ProposalPending {
			p.Status = ProposalRejected
		}
	}
	return nil
}

func (f *fakeProposalStore) pendingCount(caseID uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, p := range f.proposals {
		if p.CaseID == caseID && p.Status == ProposalPending {
			count++
		}
	}
	return count
}

// fakeCaseReader serves cases from a map and lets tests mutate status.
type fakeCaseReader struct {
	mu    sync.Mutex
	cases map[uuid.UUID]*cases.Case
}

func newFakeCaseReader() *fakeCaseReader {
	return &fakeCaseReader{cases: make(map[uuid.UUID]*cases.Case)}
}

func (f *fakeCaseReader) GetByID(_ context.Context, id, organizationID uuid.UUID) (*cases.Case, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.cases[id]
	if !ok || item.OrganizationID != organizationID {
		return nil, apperr.NotFound("case not found")
	}
	dup := *item
	return &dup, nil
}

func (f *fakeCaseReader) UpdateStatus(_ context.Context, id uuid.UUID, from, to string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.cases[id]
	if !ok || item.Status != from {
		return apperr.Conflict("case is no longer " + from)
	}
	item.Status = to
	return nil
}

func (f *fakeCaseReader) put(item *cases.Case) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cases[item.ID] = item
}

func (f *fakeCaseReader) setStatus(id uuid.UUID, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if item, ok := f.cases[id]; ok {
		item.Status = status
	}
}

// fakePolicyReader returns a fixed policy.
type fakePolicyReader struct {
	policy *approval.Policy
}

func (f *fakePolicyReader) GetActiveByOrganization(context.Context, uuid.UUID) (*approval.Policy, error) {
	return f.policy, nil
}

// fakeMaterializer records calls and flips the case to Scheduled the way the
// appointment service does. A non-nil failWith makes every call fail instead.
type fakeMaterializer struct {
	mu       sync.Mutex
	calls    []appointments.MaterializeParams
	cases    *fakeCaseReader
	failWith error
}

func (f *fakeMaterializer) Materialize(_ context.Context, params appointments.MaterializeParams) (*appointments.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	f.calls = append(f.calls, params)
	if f.cases != nil {
		f.cases.setStatus(params.CaseID, cases.StatusScheduled)
	}
	return &appointments.Appointment{
		ID:           uuid.New(),
		CaseID:       params.CaseID,
		ProviderID:   params.ProviderID,
		StartTime:    params.StartTime,
		EndTime:      params.EndTime,
		Status:       appointments.StatusConfirmed,
		AutoApproved: params.AutoApproved,
	}, nil
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

func containsEvent(names []string, want string) bool {
	for _, n := range names {
		if n == want {
			return true
		}
	}
	return false
}
