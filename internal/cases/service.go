package cases

import (
	"context"
	"fmt"

	"propcare_backend/internal/events"
	"propcare_backend/internal/matching"
	"propcare_backend/internal/providers"
	"propcare_backend/internal/triage"
	"propcare_backend/platform/apperr"
	"propcare_backend/platform/logger"

	"github.com/google/uuid"
)

// store is the persistence surface the service needs. *Repository satisfies
// it; tests substitute an in-memory fake.
type store interface {
	Create(ctx context.Context, params CreateParams) (*Case, error)
	GetByID(ctx context.Context, id, organizationID uuid.UUID) (*Case, error)
	ListByOrganization(ctx context.Context, organizationID uuid.UUID, status string) ([]Case, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) error
	SetTriageStatus(ctx context.Context, id uuid.UUID, status string) error
	SaveClassification(ctx context.Context, caseID uuid.UUID, result triage.Result) (*Classification, error)
	GetLatestClassification(ctx context.Context, caseID uuid.UUID) (*Classification, error)
	AssignProvider(ctx context.Context, caseID, providerID uuid.UUID, score float64, justification string) error
	Hold(ctx context.Context, id uuid.UUID, fromStatus string) error
	Resume(ctx context.Context, id uuid.UUID, toStatus string) error
	AddPhoto(ctx context.Context, caseID uuid.UUID, objectKey, mimeType string, sizeBytes int64) (*Photo, error)
	ListPhotos(ctx context.Context, caseID uuid.UUID) ([]Photo, error)
}

// providerLister supplies the candidate pool for matching.
type providerLister interface {
	ListActiveByOrganization(ctx context.Context, organizationID uuid.UUID) ([]providers.Provider, error)
}

// TriageEnqueuer hands the triage task to the background queue. A nil
// enqueuer makes the service run triage in an in-process goroutine instead,
// so the pipeline still works without Redis.
type TriageEnqueuer interface {
	EnqueueTriage(ctx context.Context, caseID, organizationID uuid.UUID) error
}

// AttachmentStore stores and retrieves photo bytes by object key.
type AttachmentStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// Service implements the case lifecycle and the asynchronous triage pipeline.
type Service struct {
	repo        store
	providers   providerLister
	classifier  triage.Classifier
	scorer      *matching.Scorer
	attachments AttachmentStore
	enqueuer    TriageEnqueuer
	bus         events.Bus
	log         *logger.Logger
}

// NewService creates the case service. enqueuer and attachments may be nil;
// triage then runs inline and photo handling is disabled.
func NewService(
	repo store,
	providerRepo providerLister,
	classifier triage.Classifier,
	scorer *matching.Scorer,
	attachments AttachmentStore,
	enqueuer TriageEnqueuer,
	bus events.Bus,
	log *logger.Logger,
) *Service {
	return &Service{
		repo:        repo,
		providers:   providerRepo,
		classifier:  classifier,
		scorer:      scorer,
		attachments: attachments,
		enqueuer:    enqueuer,
		bus:         bus,
		log:         log,
	}
}

// ReportParams holds the validated input for reporting a case.
type ReportParams struct {
	OrganizationID uuid.UUID
	RequesterID    uuid.UUID
	PropertyID     *uuid.UUID
	Title          string
	Description    string
	CategoryHint   string
}

// Report persists a new case and dispatches triage. The caller gets the case
// back immediately; classification and matching happen in the background.
func (s *Service) Report(ctx context.Context, params ReportParams) (*Case, error) {
	item, err := s.repo.Create(ctx, CreateParams{
		OrganizationID: params.OrganizationID,
		RequesterID:    params.RequesterID,
		PropertyID:     params.PropertyID,
		Title:          params.Title,
		Description:    params.Description,
		CategoryHint:   params.CategoryHint,
	})
	if err != nil {
		return nil, err
	}

	s.bus.Publish(ctx, events.CaseReported{
		BaseEvent:      events.NewBaseEvent(),
		CaseID:         item.ID,
		OrganizationID: item.OrganizationID,
		RequesterID:    item.RequesterID,
		PropertyID:     item.PropertyID,
		Title:          item.Title,
	})

	s.dispatchTriage(ctx, item.ID, item.OrganizationID)
	return item, nil
}

// dispatchTriage enqueues the triage task, falling back to an in-process
// goroutine when no queue is configured or enqueueing fails. The case is
// already persisted with triage_status=pending, so a lost dispatch is
// visible and retryable.
func (s *Service) dispatchTriage(ctx context.Context, caseID, organizationID uuid.UUID) {
	if s.enqueuer != nil {
		if err := s.enqueuer.EnqueueTriage(ctx, caseID, organizationID); err == nil {
			return
		} else {
			s.log.Error("failed to enqueue triage task, running inline", "case_id", caseID, "error", err)
		}
	}

	go func() {
		ctx := context.WithoutCancel(ctx)
		if err := s.RunTriage(ctx, caseID, organizationID); err != nil {
			s.log.Error("inline triage failed", "case_id", caseID, "error", err)
		}
	}()
}

// RunTriage executes the pipeline for one case: classify, persist the result,
// rank providers, assign the best match. It is safe to re-run; a case that
// has left New is no longer assigned but keeps its fresh classification.
func (s *Service) RunTriage(ctx context.Context, caseID, organizationID uuid.UUID) error {
	item, err := s.repo.GetByID(ctx, caseID, organizationID)
	if err != nil {
		return err
	}
	if IsTerminal(item.Status) {
		s.log.TriageEvent("skipped_terminal", caseID.String(), false)
		return nil
	}

	if err := s.repo.SetTriageStatus(ctx, caseID, TriageRunning); err != nil {
		return err
	}

	result := s.classifier.Classify(ctx, triage.Report{
		Title:        item.Title,
		Description:  item.Description,
		CategoryHint: item.CategoryHint,
		Photos:       s.loadPhotos(ctx, caseID),
	})
	s.log.TriageEvent("classified", caseID.String(), result.Fallback)

	if _, err := s.repo.SaveClassification(ctx, caseID, result); err != nil {
		s.markTriageFailed(ctx, caseID)
		return err
	}

	s.bus.Publish(ctx, events.CaseTriaged{
		BaseEvent:      events.NewBaseEvent(),
		CaseID:         caseID,
		OrganizationID: organizationID,
		Category:       result.Category,
		Urgency:        result.Urgency,
		Fallback:       result.Fallback,
	})

	if err := s.assignBestMatch(ctx, item, result); err != nil {
		s.markTriageFailed(ctx, caseID)
		return err
	}

	return s.repo.SetTriageStatus(ctx, caseID, TriageCompleted)
}

func (s *Service) assignBestMatch(ctx context.Context, item *Case, result triage.Result) error {
	candidates, err := s.providers.ListActiveByOrganization(ctx, item.OrganizationID)
	if err != nil {
		return err
	}

	ranked := s.scorer.Rank(matching.CaseProfile{
		Category:       result.Category,
		RequiredSkills: result.RequiredSkills,
		Urgency:        result.Urgency,
	}, candidates)

	if len(ranked) == 0 {
		// No eligible provider. The case still leaves New so a human can
		// pick one by hand.
		s.log.TriageEvent("no_match", item.ID.String(), result.Fallback)
		if err := s.repo.UpdateStatus(ctx, item.ID, StatusNew, StatusInReview); err != nil {
			if apperr.Is(err, apperr.KindConflict) {
				return nil
			}
			return err
		}
		return nil
	}

	best := ranked[0]
	if err := s.repo.AssignProvider(ctx, item.ID, best.ProviderID, best.Score, best.Justification); err != nil {
		// The case was cancelled or reassigned while triage ran. The fresh
		// classification is kept; assignment simply no longer applies.
		if apperr.Is(err, apperr.KindConflict) {
			s.log.TriageEvent("assignment_skipped", item.ID.String(), result.Fallback)
			return nil
		}
		return err
	}
	s.log.TriageEvent("assigned", item.ID.String(), result.Fallback)

	s.bus.Publish(ctx, events.CaseAssigned{
		BaseEvent:      events.NewBaseEvent(),
		CaseID:         item.ID,
		OrganizationID: item.OrganizationID,
		ProviderID:     best.ProviderID,
		MatchScore:     best.Score,
	})
	return nil
}

// loadPhotos fetches attachment bytes for the vision sub-call. Any storage
// failure just shrinks the photo set; triage proceeds regardless.
func (s *Service) loadPhotos(ctx context.Context, caseID uuid.UUID) []triage.Photo {
	if s.attachments == nil {
		return nil
	}

	stored, err := s.repo.ListPhotos(ctx, caseID)
	if err != nil {
		s.log.Warn("failed to list case photos", "case_id", caseID, "error", err)
		return nil
	}

	photos := make([]triage.Photo, 0, len(stored))
	for _, p := range stored {
		data, err := s.attachments.Get(ctx, p.ObjectKey)
		if err != nil {
			s.log.Warn("failed to fetch case photo", "object_key", p.ObjectKey, "error", err)
			continue
		}
		photos = append(photos, triage.Photo{MIMEType: p.MIMEType, Data: data})
	}
	return photos
}

func (s *Service) markTriageFailed(ctx context.Context, caseID uuid.UUID) {
	if err := s.repo.SetTriageStatus(ctx, caseID, TriageFailed); err != nil {
		s.log.Error("failed to mark triage failed", "case_id", caseID, "error", err)
	}
}

// Get returns one case.
func (s *Service) Get(ctx context.Context, id, organizationID uuid.UUID) (*Case, error) {
	return s.repo.GetByID(ctx, id, organizationID)
}

// List returns the organization's cases, optionally filtered by status.
func (s *Service) List(ctx context.Context, organizationID uuid.UUID, status string) ([]Case, error) {
	return s.repo.ListByOrganization(ctx, organizationID, status)
}

// Guidance returns the latest AI guidance for a case. Until triage has run
// there is nothing to show.
func (s *Service) Guidance(ctx context.Context, id, organizationID uuid.UUID) (*Classification, error) {
	if _, err := s.repo.GetByID(ctx, id, organizationID); err != nil {
		return nil, err
	}

	classification, err := s.repo.GetLatestClassification(ctx, id)
	if err != nil {
		return nil, err
	}
	if classification == nil {
		return nil, apperr.NotFound("guidance is not available yet")
	}
	return classification, nil
}

// Cancel terminally cancels a case. Terminal cases reject the request.
func (s *Service) Cancel(ctx context.Context, id, organizationID uuid.UUID) error {
	item, err := s.repo.GetByID(ctx, id, organizationID)
	if err != nil {
		return err
	}
	if IsTerminal(item.Status) {
		return apperr.Conflict(fmt.Sprintf("case is already %s", item.Status))
	}

	if err := s.repo.UpdateStatus(ctx, id, item.Status, StatusCancelled); err != nil {
		return err
	}

	s.bus.Publish(ctx, events.CaseCancelled{
		BaseEvent:      events.NewBaseEvent(),
		CaseID:         id,
		OrganizationID: organizationID,
	})
	return nil
}

// Hold parks an active case On_Hold.
func (s *Service) Hold(ctx context.Context, id, organizationID uuid.UUID) error {
	item, err := s.repo.GetByID(ctx, id, organizationID)
	if err != nil {
		return err
	}
	if !CanHold(item.Status) {
		return apperr.Conflict(fmt.Sprintf("cannot hold a case in status %s", item.Status))
	}
	return s.repo.Hold(ctx, id, item.Status)
}

// Resume returns a held case to In_Review. Even a case held while Scheduled
// goes back through slot selection; its appointment may no longer be valid.
func (s *Service) Resume(ctx context.Context, id, organizationID uuid.UUID) error {
	item, err := s.repo.GetByID(ctx, id, organizationID)
	if err != nil {
		return err
	}
	if item.Status != StatusOnHold {
		return apperr.Conflict("case is not on hold")
	}
	return s.repo.Resume(ctx, id, StatusInReview)
}

// Complete closes a Scheduled case after the work is done.
func (s *Service) Complete(ctx context.Context, id, organizationID uuid.UUID) error {
	item, err := s.repo.GetByID(ctx, id, organizationID)
	if err != nil {
		return err
	}
	if err := ValidateTransition(item.Status, StatusCompleted); err != nil {
		return apperr.Conflict(err.Error())
	}
	return s.repo.UpdateStatus(ctx, id, item.Status, StatusCompleted)
}

// AddPhoto stores an attachment for a case and records its metadata.
func (s *Service) AddPhoto(ctx context.Context, id, organizationID uuid.UUID, mimeType string, data []byte) (*Photo, error) {
	if s.attachments == nil {
		return nil, apperr.Internal("photo storage is not configured")
	}

	item, err := s.repo.GetByID(ctx, id, organizationID)
	if err != nil {
		return nil, err
	}
	if IsTerminal(item.Status) {
		return nil, apperr.Conflict(fmt.Sprintf("case is already %s", item.Status))
	}

	key := fmt.Sprintf("cases/%s/%s", id, uuid.New())
	if err := s.attachments.Put(ctx, key, mimeType, data); err != nil {
		return nil, fmt.Errorf("failed to store photo: %w", err)
	}

	return s.repo.AddPhoto(ctx, id, key, mimeType, int64(len(data)))
}
