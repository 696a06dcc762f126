package appointments

import (
	"net/http"
	"time"

	apphttp "propcare_backend/internal/http"
	"propcare_backend/platform/httpkit"
	"propcare_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type appointmentResponse struct {
	ID              uuid.UUID `json:"id"`
	CaseID          uuid.UUID `json:"caseId"`
	ProviderID      uuid.UUID `json:"providerId"`
	StartTime       time.Time `json:"startTime"`
	EndTime         time.Time `json:"endTime"`
	Status          string    `json:"status"`
	AutoApproved    bool      `json:"autoApproved"`
	CalendarEventID *string   `json:"calendarEventId,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

func toAppointmentResponse(a *Appointment) appointmentResponse {
	return appointmentResponse{
		ID:              a.ID,
		CaseID:          a.CaseID,
		ProviderID:      a.ProviderID,
		StartTime:       a.StartTime,
		EndTime:         a.EndTime,
		Status:          a.Status,
		AutoApproved:    a.AutoApproved,
		CalendarEventID: a.CalendarEventID,
		CreatedAt:       a.CreatedAt,
	}
}

// Handler exposes the appointment endpoints.
type Handler struct {
	service *Service
	log     *logger.Logger
}

// NewHandler creates a new appointment handler.
func NewHandler(service *Service, log *logger.Logger) *Handler {
	return &Handler{service: service, log: log}
}

// GetByCase handles GET /cases/:id/appointment.
func (h *Handler) GetByCase(c *gin.Context) {
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

	appointment, err := h.service.GetActiveByCase(c.Request.Context(), caseID, *orgID)
	if httpkit.HandleError(c, err) {
		return
	}
	if appointment == nil {
		httpkit.Error(c, http.StatusNotFound, "no confirmed appointment for this case", nil)
		return
	}

	httpkit.OK(c, toAppointmentResponse(appointment))
}

// Module wires the appointment endpoints into the HTTP server.
type Module struct {
	handler *Handler
}

// NewModule creates the appointments HTTP module.
func NewModule(handler *Handler) *Module {
	return &Module{handler: handler}
}

// Name returns the module identifier.
func (m *Module) Name() string { return "appointments" }

// RegisterRoutes mounts the appointment routes under the authenticated group.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.GET("/cases/:id/appointment", m.handler.GetByCase)
}
