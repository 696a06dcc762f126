package providers

import (
	"net/http"
	"time"

	apphttp "propcare_backend/internal/http"
	"propcare_backend/platform/httpkit"
	"propcare_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type providerResponse struct {
	ID                 uuid.UUID `json:"id"`
	Name               string    `json:"name"`
	Email              string    `json:"email"`
	Phone              string    `json:"phone"`
	Specializations    []string  `json:"specializations"`
	AvgResponseMinutes int       `json:"avgResponseMinutes"`
	HourlyRateCents    int64     `json:"hourlyRateCents"`
	Rating             *float64  `json:"rating,omitempty"`
	MaxJobsPerDay      int       `json:"maxJobsPerDay"`
	EmergencyAvailable bool      `json:"emergencyAvailable"`
	CurrentWorkload    int       `json:"currentWorkload"`
	CreatedAt          time.Time `json:"createdAt"`
}

func toProviderResponse(p *Provider) providerResponse {
	return providerResponse{
		ID:                 p.ID,
		Name:               p.Name,
		Email:              p.Email,
		Phone:              p.Phone,
		Specializations:    p.Specializations,
		AvgResponseMinutes: p.AvgResponseMinutes,
		HourlyRateCents:    p.HourlyRateCents,
		Rating:             p.Rating,
		MaxJobsPerDay:      p.MaxJobsPerDay,
		EmergencyAvailable: p.EmergencyAvailable,
		CurrentWorkload:    p.CurrentWorkload,
		CreatedAt:          p.CreatedAt,
	}
}

// Handler exposes the read-only provider endpoints.
type Handler struct {
	repo *Repository
	log  *logger.Logger
}

// NewHandler creates a new provider handler.
func NewHandler(repo *Repository, log *logger.Logger) *Handler {
	return &Handler{repo: repo, log: log}
}

// List handles GET /providers.
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

	items, err := h.repo.ListActiveByOrganization(c.Request.Context(), *orgID)
	if httpkit.HandleError(c, err) {
		return
	}

	out := make([]providerResponse, len(items))
	for i := range items {
		out[i] = toProviderResponse(&items[i])
	}
	httpkit.OK(c, out)
}

// Get handles GET /providers/:id.
func (h *Handler) Get(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	orgID := identity.OrgID()
	if orgID == nil {
		httpkit.Error(c, http.StatusForbidden, "no organization context", nil)
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid provider id", nil)
		return
	}

	item, err := h.repo.GetByID(c.Request.Context(), id, *orgID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, toProviderResponse(item))
}

// Module wires the provider endpoints into the HTTP server.
type Module struct {
	handler *Handler
}

// NewModule creates the providers HTTP module.
func NewModule(handler *Handler) *Module {
	return &Module{handler: handler}
}

// Name returns the module identifier.
func (m *Module) Name() string { return "providers" }

// RegisterRoutes mounts the provider routes under the authenticated group.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.GET("/providers", m.handler.List)
	ctx.Protected.GET("/providers/:id", m.handler.Get)
}
