package approval

import (
	"net/http"
	"time"

	"propcare_backend/platform/httpkit"
	"propcare_backend/platform/logger"
	"propcare_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const roleOwner = "owner"

// createPolicyRequest is the payload for activating an approval policy.
type createPolicyRequest struct {
	Mode               string      `json:"mode" validate:"required,oneof=hands_off balanced hands_on"`
	CostThresholdCents *int64      `json:"costThresholdCents" validate:"omitempty,min=0"`
	PreferredHourStart *int        `json:"preferredHourStart" validate:"omitempty,min=0,max=23"`
	PreferredHourEnd   *int        `json:"preferredHourEnd" validate:"omitempty,min=0,max=23"`
	TrustedProviderIDs []uuid.UUID `json:"trustedProviderIds"`
	UrgencyGate        *string     `json:"urgencyGate" validate:"omitempty,oneof=Low Medium High Urgent"`
}

type policyResponse struct {
	ID                 uuid.UUID   `json:"id"`
	Mode               string      `json:"mode"`
	CostThresholdCents *int64      `json:"costThresholdCents,omitempty"`
	PreferredHourStart *int        `json:"preferredHourStart,omitempty"`
	PreferredHourEnd   *int        `json:"preferredHourEnd,omitempty"`
	TrustedProviderIDs []uuid.UUID `json:"trustedProviderIds"`
	UrgencyGate        *string     `json:"urgencyGate,omitempty"`
	Active             bool        `json:"active"`
	CreatedAt          time.Time   `json:"createdAt"`
}

func toPolicyResponse(p *Policy) policyResponse {
	ids := p.TrustedProviderIDs
	if ids == nil {
		ids = []uuid.UUID{}
	}
	return policyResponse{
		ID:                 p.ID,
		Mode:               p.Mode,
		CostThresholdCents: p.CostThresholdCents,
		PreferredHourStart: p.PreferredHourStart,
		PreferredHourEnd:   p.PreferredHourEnd,
		TrustedProviderIDs: ids,
		UrgencyGate:        p.UrgencyGate,
		Active:             p.Active,
		CreatedAt:          p.CreatedAt,
	}
}

// Handler exposes the approval policy endpoints.
type Handler struct {
	repo      *Repository
	validator *validator.Validator
	log       *logger.Logger
}

// NewHandler creates a new approval policy handler.
func NewHandler(repo *Repository, v *validator.Validator, log *logger.Logger) *Handler {
	return &Handler{repo: repo, validator: v, log: log}
}

// Create handles PUT /policies. The new policy becomes the organization's
// single active one.
func (h *Handler) Create(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	orgID := identity.OrgID()
	if orgID == nil {
		httpkit.Error(c, http.StatusForbidden, "no organization context", nil)
		return
	}
	if !identity.HasRole(roleOwner) {
		httpkit.Error(c, http.StatusForbidden, "only organization owners may configure policies", nil)
		return
	}

	var req createPolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	policy, err := h.repo.CreateActive(c.Request.Context(), CreateParams{
		OrganizationID:     *orgID,
		Mode:               req.Mode,
		CostThresholdCents: req.CostThresholdCents,
		PreferredHourStart: req.PreferredHourStart,
		PreferredHourEnd:   req.PreferredHourEnd,
		TrustedProviderIDs: req.TrustedProviderIDs,
		UrgencyGate:        req.UrgencyGate,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, toPolicyResponse(policy))
}

// GetActive handles GET /policies/active.
func (h *Handler) GetActive(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	orgID := identity.OrgID()
	if orgID == nil {
		httpkit.Error(c, http.StatusForbidden, "no organization context", nil)
		return
	}

	policy, err := h.repo.GetActiveByOrganization(c.Request.Context(), *orgID)
	if httpkit.HandleError(c, err) {
		return
	}
	if policy == nil {
		httpkit.Error(c, http.StatusNotFound, "no active policy configured", nil)
		return
	}

	httpkit.OK(c, toPolicyResponse(policy))
}
