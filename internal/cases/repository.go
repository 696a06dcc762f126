package cases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"propcare_backend/internal/triage"
	"propcare_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Case is a maintenance case moving through the triage and scheduling
// lifecycle.
type Case struct {
	ID             uuid.UUID  `db:"id"`
	OrganizationID uuid.UUID  `db:"organization_id"`
	RequesterID    uuid.UUID  `db:"requester_id"`
	PropertyID     *uuid.UUID `db:"property_id"`
	Title          string     `db:"title"`
	Description    string     `db:"description"`
	CategoryHint   string     `db:"category_hint"`
	Status         string     `db:"status"`
	TriageStatus   string     `db:"triage_status"`
	// Category and Urgency are denormalized from the latest classification
	// result for cheap listing and matching. The full result lives in
	// classification_results.
	Category           *string    `db:"category"`
	Urgency            *string    `db:"urgency"`
	AssignedProviderID *uuid.UUID `db:"assigned_provider_id"`
	MatchScore         *float64   `db:"match_score"`
	MatchJustification *string    `db:"match_justification"`
	// HeldFromStatus remembers the pre-hold status while the case is On_Hold.
	HeldFromStatus *string   `db:"held_from_status"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// Classification is one immutable stored triage result. Re-running triage
// appends a new row; existing rows are never updated.
type Classification struct {
	ID                       uuid.UUID `db:"id"`
	CaseID                   uuid.UUID `db:"case_id"`
	Category                 string    `db:"category"`
	Subcategory              string    `db:"subcategory"`
	Urgency                  string    `db:"urgency"`
	Complexity               string    `db:"complexity"`
	RequiredSkills           []string  `db:"required_skills"`
	EstimatedDurationMinutes int       `db:"estimated_duration_minutes"`
	SuggestedTimeWindow      string    `db:"suggested_time_window"`
	SafetyRisk               string    `db:"safety_risk"`
	Diagnosis                string    `db:"diagnosis"`
	TroubleshootingSteps     []string  `db:"troubleshooting_steps"`
	PhotoAnalysis            string    `db:"photo_analysis"`
	ModelVersion             string    `db:"model_version"`
	Fallback                 bool      `db:"fallback"`
	CreatedAt                time.Time `db:"created_at"`
}

// Photo is a stored report attachment. Bytes live in object storage under
// ObjectKey; only metadata is kept here.
type Photo struct {
	ID        uuid.UUID `db:"id"`
	CaseID    uuid.UUID `db:"case_id"`
	ObjectKey string    `db:"object_key"`
	MIMEType  string    `db:"mime_type"`
	SizeBytes int64     `db:"size_bytes"`
	CreatedAt time.Time `db:"created_at"`
}

// Repository provides database access to maintenance cases.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new case repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const caseColumns = `id, organization_id, requester_id, property_id, title, description,
	category_hint, status, triage_status, category, urgency, assigned_provider_id,
	match_score, match_justification, held_from_status, created_at, updated_at`

// CreateParams holds the fields for creating a case.
type CreateParams struct {
	OrganizationID uuid.UUID
	RequesterID    uuid.UUID
	PropertyID     *uuid.UUID
	Title          string
	Description    string
	CategoryHint   string
}

// Create persists a new case in status New with triage pending.
func (r *Repository) Create(ctx context.Context, params CreateParams) (*Case, error) {
	now := time.Now()
	item := Case{
		ID:             uuid.New(),
		OrganizationID: params.OrganizationID,
		RequesterID:    params.RequesterID,
		PropertyID:     params.PropertyID,
		Title:          params.Title,
		Description:    params.Description,
		CategoryHint:   params.CategoryHint,
		Status:         StatusNew,
		TriageStatus:   TriagePending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO maintenance_cases (id, organization_id, requester_id, property_id, title,
			description, category_hint, status, triage_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		item.ID, item.OrganizationID, item.RequesterID, item.PropertyID, item.Title,
		item.Description, item.CategoryHint, item.Status, item.TriageStatus,
		item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create case: %w", err)
	}

	return &item, nil
}

// GetByID returns one case scoped to its organization.
func (r *Repository) GetByID(ctx context.Context, id, organizationID uuid.UUID) (*Case, error) {
	query := fmt.Sprintf(`SELECT %s FROM maintenance_cases
		WHERE id = $1 AND organization_id = $2`, caseColumns)

	row := r.pool.QueryRow(ctx, query, id, organizationID)
	item, err := scanCase(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("case not found")
		}
		return nil, fmt.Errorf("failed to get case: %w", err)
	}

	return &item, nil
}

// ListByOrganization returns the organization's cases, newest first.
func (r *Repository) ListByOrganization(ctx context.Context, organizationID uuid.UUID, status string) ([]Case, error) {
	query := fmt.Sprintf(`SELECT %s FROM maintenance_cases
		WHERE organization_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC`, caseColumns)

	rows, err := r.pool.Query(ctx, query, organizationID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list cases: %w", err)
	}
	defer rows.Close()

	var items []Case
	for rows.Next() {
		item, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

// UpdateStatus moves a case between statuses with an optimistic guard on the
// expected current status. A concurrent change surfaces as a Conflict.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE maintenance_cases SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3`,
		to, id, from,
	)
	if err != nil {
		return fmt.Errorf("failed to update case status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.Conflict(fmt.Sprintf("case is no longer %s", from))
	}
	return nil
}

// SetTriageStatus updates the inspectable triage task status.
func (r *Repository) SetTriageStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE maintenance_cases SET triage_status = $1, updated_at = NOW() WHERE id = $2`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("failed to set triage status: %w", err)
	}
	return nil
}

// SaveClassification appends an immutable classification row and denormalizes
// category and urgency onto the case in the same transaction.
func (r *Repository) SaveClassification(ctx context.Context, caseID uuid.UUID, result triage.Result) (*Classification, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	row := Classification{
		ID:                       uuid.New(),
		CaseID:                   caseID,
		Category:                 result.Category,
		Subcategory:              result.Subcategory,
		Urgency:                  result.Urgency,
		Complexity:               result.Complexity,
		RequiredSkills:           result.RequiredSkills,
		EstimatedDurationMinutes: result.EstimatedDurationMinutes,
		SuggestedTimeWindow:      result.SuggestedTimeWindow,
		SafetyRisk:               result.SafetyRisk,
		Diagnosis:                result.Diagnosis,
		TroubleshootingSteps:     result.TroubleshootingSteps,
		PhotoAnalysis:            result.PhotoAnalysis,
		ModelVersion:             result.ModelVersion,
		Fallback:                 result.Fallback,
		CreatedAt:                time.Now(),
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO classification_results (id, case_id, category, subcategory, urgency,
			complexity, required_skills, estimated_duration_minutes, suggested_time_window,
			safety_risk, diagnosis, troubleshooting_steps, photo_analysis, model_version,
			fallback, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		row.ID, row.CaseID, row.Category, row.Subcategory, row.Urgency,
		row.Complexity, row.RequiredSkills, row.EstimatedDurationMinutes, row.SuggestedTimeWindow,
		row.SafetyRisk, row.Diagnosis, row.TroubleshootingSteps, row.PhotoAnalysis, row.ModelVersion,
		row.Fallback, row.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to save classification: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE maintenance_cases SET category = $1, urgency = $2, updated_at = NOW() WHERE id = $3`,
		row.Category, row.Urgency, caseID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to denormalize classification: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit classification: %w", err)
	}

	return &row, nil
}

// GetLatestClassification returns the newest classification for a case, or
// nil when triage has not produced one yet.
func (r *Repository) GetLatestClassification(ctx context.Context, caseID uuid.UUID) (*Classification, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, case_id, category, subcategory, urgency, complexity, required_skills,
			estimated_duration_minutes, suggested_time_window, safety_risk, diagnosis,
			troubleshooting_steps, photo_analysis, model_version, fallback, created_at
		FROM classification_results
		WHERE case_id = $1
		ORDER BY created_at DESC
		LIMIT 1`,
		caseID,
	)

	var c Classification
	err := row.Scan(
		&c.ID, &c.CaseID, &c.Category, &c.Subcategory, &c.Urgency, &c.Complexity, &c.RequiredSkills,
		&c.EstimatedDurationMinutes, &c.SuggestedTimeWindow, &c.SafetyRisk, &c.Diagnosis,
		&c.TroubleshootingSteps, &c.PhotoAnalysis, &c.ModelVersion, &c.Fallback, &c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get classification: %w", err)
	}

	return &c, nil
}

// AssignProvider records the matched provider on a still-New case. The case
// stays New until the provider responds with a proposal; the assignment is
// visible through the assigned_provider_id alone. The status guard keeps a
// concurrently cancelled case from being assigned.
func (r *Repository) AssignProvider(ctx context.Context, caseID, providerID uuid.UUID, score float64, justification string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE maintenance_cases
		SET assigned_provider_id = $1, match_score = $2, match_justification = $3,
			updated_at = NOW()
		WHERE id = $4 AND status = $5`,
		providerID, score, justification, caseID, StatusNew,
	)
	if err != nil {
		return fmt.Errorf("failed to assign provider: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.Conflict("case is no longer awaiting assignment")
	}
	return nil
}

// Hold parks the case On_Hold and remembers where it came from.
func (r *Repository) Hold(ctx context.Context, id uuid.UUID, fromStatus string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE maintenance_cases
		SET status = $1, held_from_status = $2, updated_at = NOW()
		WHERE id = $3 AND status = $2`,
		StatusOnHold, fromStatus, id,
	)
	if err != nil {
		return fmt.Errorf("failed to hold case: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.Conflict(fmt.Sprintf("case is no longer %s", fromStatus))
	}
	return nil
}

// Resume moves an On_Hold case to the target status and clears the hold
// marker.
func (r *Repository) Resume(ctx context.Context, id uuid.UUID, toStatus string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE maintenance_cases
		SET status = $1, held_from_status = NULL, updated_at = NOW()
		WHERE id = $2 AND status = $3`,
		toStatus, id, StatusOnHold,
	)
	if err != nil {
		return fmt.Errorf("failed to resume case: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.Conflict("case is not on hold")
	}
	return nil
}

// AddPhoto records an uploaded attachment.
func (r *Repository) AddPhoto(ctx context.Context, caseID uuid.UUID, objectKey, mimeType string, sizeBytes int64) (*Photo, error) {
	photo := Photo{
		ID:        uuid.New(),
		CaseID:    caseID,
		ObjectKey: objectKey,
		MIMEType:  mimeType,
		SizeBytes: sizeBytes,
		CreatedAt: time.Now(),
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO case_photos (id, case_id, object_key, mime_type, size_bytes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		photo.ID, photo.CaseID, photo.ObjectKey, photo.MIMEType, photo.SizeBytes, photo.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to add case photo: %w", err)
	}

	return &photo, nil
}

// ListPhotos returns a case's attachments in upload order.
func (r *Repository) ListPhotos(ctx context.Context, caseID uuid.UUID) ([]Photo, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, case_id, object_key, mime_type, size_bytes, created_at
		FROM case_photos WHERE case_id = $1 ORDER BY created_at`,
		caseID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list case photos: %w", err)
	}
	defer rows.Close()

	var items []Photo
	for rows.Next() {
		var p Photo
		if err := rows.Scan(&p.ID, &p.CaseID, &p.ObjectKey, &p.MIMEType, &p.SizeBytes, &p.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, p)
	}

	return items, rows.Err()
}

func scanCase(row pgx.Row) (Case, error) {
	var item Case
	err := row.Scan(
		&item.ID, &item.OrganizationID, &item.RequesterID, &item.PropertyID, &item.Title,
		&item.Description, &item.CategoryHint, &item.Status, &item.TriageStatus,
		&item.Category, &item.Urgency, &item.AssignedProviderID,
		&item.MatchScore, &item.MatchJustification, &item.HeldFromStatus,
		&item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return Case{}, err
	}
	return item, nil
}
