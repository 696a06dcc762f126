// Package providers exposes read-only access to the service-provider records
// owned by the record-management subsystem. This engine only reads providers;
// it never mutates them.
package providers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"propcare_backend/platform/apperr"
	"propcare_backend/platform/phone"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Provider is a service contractor eligible for case assignment.
type Provider struct {
	ID                  uuid.UUID `db:"id"`
	OrganizationID      uuid.UUID `db:"organization_id"`
	Name                string    `db:"name"`
	Email               string    `db:"email"`
	Phone               string    `db:"phone"`
	Specializations     []string  `db:"specializations"`
	AvailabilityPattern string    `db:"availability_pattern"`
	AvgResponseMinutes  int       `db:"avg_response_minutes"`
	HourlyRateCents     int64     `db:"hourly_rate_cents"`
	Rating              *float64  `db:"rating"`
	MaxJobsPerDay       int       `db:"max_jobs_per_day"`
	EmergencyAvailable  bool      `db:"emergency_available"`
	Active              bool      `db:"active"`
	// CurrentWorkload is a point-in-time count of active assignments,
	// computed at read time. It is not state owned by this engine, and two
	// near-simultaneous reads may both see a near-capacity provider as free.
	CurrentWorkload int
	CreatedAt       time.Time `db:"created_at"`
}

// Repository provides read access to providers.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new providers repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const providerColumns = `p.id, p.organization_id, p.name, p.email, p.phone, p.specializations,
	p.availability_pattern, p.avg_response_minutes, p.hourly_rate_cents, p.rating,
	p.max_jobs_per_day, p.emergency_available, p.active, p.created_at`

// workload counts cases currently assigned to the provider that have not
// reached a terminal state. Snapshot only; no reservation is taken.
const workloadSubquery = `(SELECT COUNT(*) FROM maintenance_cases c
	WHERE c.assigned_provider_id = p.id
	AND c.status NOT IN ('Completed', 'Cancelled'))`

// ListActiveByOrganization returns all active providers of an organization
// with their point-in-time workload. Inactive providers are filtered here,
// before scoring ever sees them.
func (r *Repository) ListActiveByOrganization(ctx context.Context, organizationID uuid.UUID) ([]Provider, error) {
	query := fmt.Sprintf(`SELECT %s, %s AS current_workload
		FROM providers p
		WHERE p.organization_id = $1 AND p.active = TRUE
		ORDER BY p.id`, providerColumns, workloadSubquery)

	rows, err := r.pool.Query(ctx, query, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list providers: %w", err)
	}
	defer rows.Close()

	var items []Provider
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}

	return items, rows.Err()
}

// GetByID returns one provider regardless of active flag.
func (r *Repository) GetByID(ctx context.Context, id, organizationID uuid.UUID) (*Provider, error) {
	query := fmt.Sprintf(`SELECT %s, %s AS current_workload
		FROM providers p
		WHERE p.id = $1 AND p.organization_id = $2`, providerColumns, workloadSubquery)

	row := r.pool.QueryRow(ctx, query, id, organizationID)
	p, err := scanProvider(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("provider not found")
		}
		return nil, fmt.Errorf("failed to get provider: %w", err)
	}

	return &p, nil
}

func scanProvider(row pgx.Row) (Provider, error) {
	var p Provider
	err := row.Scan(
		&p.ID, &p.OrganizationID, &p.Name, &p.Email, &p.Phone, &p.Specializations,
		&p.AvailabilityPattern, &p.AvgResponseMinutes, &p.HourlyRateCents, &p.Rating,
		&p.MaxJobsPerDay, &p.EmergencyAvailable, &p.Active, &p.CreatedAt,
		&p.CurrentWorkload,
	)
	if err != nil {
		return Provider{}, err
	}

	p.Phone = phone.NormalizeE164(p.Phone)
	return p, nil
}
