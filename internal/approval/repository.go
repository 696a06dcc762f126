package approval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides database access to approval policies.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new approval policy repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const policyColumns = `id, organization_id, mode, cost_threshold_cents,
	preferred_hour_start, preferred_hour_end, trusted_provider_ids,
	urgency_gate, active, created_at`

// GetActiveByOrganization returns the organization's active policy, or nil
// when none is configured. Activation keeps a single active row per
// organization; ordering by created_at is a deterministic backstop should
// legacy data still hold several.
func (r *Repository) GetActiveByOrganization(ctx context.Context, organizationID uuid.UUID) (*Policy, error) {
	query := fmt.Sprintf(`SELECT %s FROM approval_policies
		WHERE organization_id = $1 AND active = TRUE
		ORDER BY created_at DESC
		LIMIT 1`, policyColumns)

	row := r.pool.QueryRow(ctx, query, organizationID)
	policy, err := scanPolicy(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get approval policy: %w", err)
	}

	return &policy, nil
}

// CreateParams holds the fields for creating a policy.
type CreateParams struct {
	OrganizationID     uuid.UUID
	Mode               string
	CostThresholdCents *int64
	PreferredHourStart *int
	PreferredHourEnd   *int
	TrustedProviderIDs []uuid.UUID
	UrgencyGate        *string
}

// CreateActive inserts a new policy as the single active one for the
// organization. Any previously active policy is deactivated in the same
// transaction, enforcing the one-active-policy invariant at write time.
func (r *Repository) CreateActive(ctx context.Context, params CreateParams) (*Policy, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`UPDATE approval_policies SET active = FALSE WHERE organization_id = $1 AND active = TRUE`,
		params.OrganizationID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to deactivate previous policies: %w", err)
	}

	policy := Policy{
		ID:                 uuid.New(),
		OrganizationID:     params.OrganizationID,
		Mode:               params.Mode,
		CostThresholdCents: params.CostThresholdCents,
		PreferredHourStart: params.PreferredHourStart,
		PreferredHourEnd:   params.PreferredHourEnd,
		TrustedProviderIDs: params.TrustedProviderIDs,
		UrgencyGate:        params.UrgencyGate,
		Active:             true,
		CreatedAt:          time.Now(),
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO approval_policies (id, organization_id, mode, cost_threshold_cents,
			preferred_hour_start, preferred_hour_end, trusted_provider_ids, urgency_gate, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		policy.ID, policy.OrganizationID, policy.Mode, policy.CostThresholdCents,
		policy.PreferredHourStart, policy.PreferredHourEnd, uuidStrings(policy.TrustedProviderIDs),
		policy.UrgencyGate, policy.Active, policy.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create approval policy: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit approval policy: %w", err)
	}

	return &policy, nil
}

func scanPolicy(row pgx.Row) (Policy, error) {
	var (
		policy     Policy
		trustedRaw []string
	)

	err := row.Scan(
		&policy.ID, &policy.OrganizationID, &policy.Mode, &policy.CostThresholdCents,
		&policy.PreferredHourStart, &policy.PreferredHourEnd, &trustedRaw,
		&policy.UrgencyGate, &policy.Active, &policy.CreatedAt,
	)
	if err != nil {
		return Policy{}, err
	}

	policy.TrustedProviderIDs = make([]uuid.UUID, 0, len(trustedRaw))
	for _, raw := range trustedRaw {
		id, err := uuid.Parse(raw)
		if err != nil {
			continue
		}
		policy.TrustedProviderIDs = append(policy.TrustedProviderIDs, id)
	}

	return policy, nil
}

func uuidStrings(ids []uuid.UUID) []string {
	items := make([]string, len(ids))
	for i, id := range ids {
		items[i] = id.String()
	}
	return items
}
