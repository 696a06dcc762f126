package proposals

import (
	"net/http"

	"propcare_backend/internal/cases"
	"propcare_backend/platform/httpkit"
	"propcare_backend/platform/logger"
	"propcare_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Role names carried in JWT claims.
const (
	roleOwner    = "owner"
	roleProvider = "provider"
)

// Handler exposes the proposal endpoints.
type Handler struct {
	service   *Service
	validator *validator.Validator
	log       *logger.Logger
}

// NewHandler creates a new proposal handler.
func NewHandler(service *Service, v *validator.Validator, log *logger.Logger) *Handler {
	return &Handler{service: service, validator: v, log: log}
}

// Submit handles POST /cases/:id/proposals. The caller must be the assigned
// provider; the provider id is taken from the authenticated identity.
func (h *Handler) Submit(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	orgID := identity.OrgID()
	if orgID == nil {
		httpkit.Error(c, http.StatusForbidden, "no organization context", nil)
		return
	}
	if !identity.HasRole(roleProvider) {
		httpkit.Error(c, http.StatusForbidden, "only providers may submit proposals", nil)
		return
	}

	caseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid case id", nil)
		return
	}

	var req submitProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	slots := make([]SlotInput, len(req.Slots))
	for i, s := range req.Slots {
		slots[i] = SlotInput{StartTime: s.StartTime, EndTime: s.EndTime}
	}

	proposal, created, err := h.service.Submit(c.Request.Context(), SubmitInput{
		CaseID:             caseID,
		OrganizationID:     *orgID,
		ProviderID:         identity.UserID(),
		EstimatedCostCents: req.EstimatedCostCents,
		Note:               req.Note,
		Slots:              slots,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, toProposalResponse(proposal, created))
}

// List handles GET /cases/:id/proposals.
func (h *Handler) List(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	orgID := identity.OrgID()
	if orgID == nil {
		httpkit.Error(c, http.StatusForbidden, "no organization context", nil)
		return
	}

	caseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid case id", nil)
		return
	}

	items, slots, err := h.service.ListByCase(c.Request.Context(), caseID, *orgID)
	if httpkit.HandleError(c, err) {
		return
	}

	out := make([]proposalResponse, len(items))
	for i := range items {
		out[i] = toProposalResponse(&items[i], slots[items[i].ID])
	}
	httpkit.OK(c, out)
}

// Select handles POST /slots/:id/select.
func (h *Handler) Select(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	orgID := identity.OrgID()
	if orgID == nil {
		httpkit.Error(c, http.StatusForbidden, "no organization context", nil)
		return
	}

	slotID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid slot id", nil)
		return
	}

	outcome, err := h.service.SelectSlot(c.Request.Context(), SelectInput{
		SlotID:         slotID,
		OrganizationID: *orgID,
		ActorID:        identity.UserID(),
		IsOwner:        identity.HasRole(roleOwner),
	})
	if httpkit.HandleError(c, err) {
		return
	}

	status := cases.StatusInReview
	if outcome.Approved {
		status = cases.StatusScheduled
	}
	httpkit.OK(c, toSelectionResponse(outcome, status))
}

// Review handles POST /cases/:id/approve. Organization owners resolve
// selections the policy deferred.
func (h *Handler) Review(c *gin.Context) {
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
		httpkit.Error(c, http.StatusForbidden, "only organization owners may review selections", nil)
		return
	}

	caseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid case id", nil)
		return
	}

	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	outcome, err := h.service.Review(c.Request.Context(), ReviewInput{
		CaseID:         caseID,
		OrganizationID: *orgID,
		Approve:        req.Approve,
		Reason:         req.Reason,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	status := cases.StatusInReview
	if outcome.Approved {
		status = cases.StatusScheduled
	}
	httpkit.OK(c, toSelectionResponse(outcome, status))
}
