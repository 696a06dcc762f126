package cases

import (
	"io"
	"net/http"

	"propcare_backend/platform/httpkit"
	"propcare_backend/platform/logger"
	"propcare_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// maxPhotoBytes caps a single attachment upload.
const maxPhotoBytes = 10 << 20

// Handler exposes the case endpoints.
type Handler struct {
	service   *Service
	validator *validator.Validator
	log       *logger.Logger
}

// NewHandler creates a new case handler.
func NewHandler(service *Service, v *validator.Validator, log *logger.Logger) *Handler {
	return &Handler{service: service, validator: v, log: log}
}

// Report handles POST /cases.
func (h *Handler) Report(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	orgID := identity.OrgID()
	if orgID == nil {
		httpkit.Error(c, http.StatusForbidden, "no organization context", nil)
		return
	}

	var req reportCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	item, err := h.service.Report(c.Request.Context(), ReportParams{
		OrganizationID: *orgID,
		RequesterID:    identity.UserID(),
		PropertyID:     req.PropertyID,
		Title:          req.Title,
		Description:    req.Description,
		CategoryHint:   req.CategoryHint,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, toCaseResponse(item))
}

// List handles GET /cases.
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

	items, err := h.service.List(c.Request.Context(), *orgID, c.Query("status"))
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, toCaseResponses(items))
}

// Get handles GET /cases/:id.
func (h *Handler) Get(c *gin.Context) {
	h.withCase(c, func(caseID, orgID uuid.UUID) {
		item, err := h.service.Get(c.Request.Context(), caseID, orgID)
		if httpkit.HandleError(c, err) {
			return
		}
		httpkit.OK(c, toCaseResponse(item))
	})
}

// Guidance handles GET /cases/:id/guidance.
func (h *Handler) Guidance(c *gin.Context) {
	h.withCase(c, func(caseID, orgID uuid.UUID) {
		classification, err := h.service.Guidance(c.Request.Context(), caseID, orgID)
		if httpkit.HandleError(c, err) {
			return
		}
		httpkit.OK(c, toGuidanceResponse(classification))
	})
}

// Cancel handles POST /cases/:id/cancel.
func (h *Handler) Cancel(c *gin.Context) {
	h.withCase(c, func(caseID, orgID uuid.UUID) {
		if httpkit.HandleError(c, h.service.Cancel(c.Request.Context(), caseID, orgID)) {
			return
		}
		httpkit.OK(c, gin.H{"status": StatusCancelled})
	})
}

// Hold handles PATCH /cases/:id/hold.
func (h *Handler) Hold(c *gin.Context) {
	h.withCase(c, func(caseID, orgID uuid.UUID) {
		if httpkit.HandleError(c, h.service.Hold(c.Request.Context(), caseID, orgID)) {
			return
		}
		httpkit.OK(c, gin.H{"status": StatusOnHold})
	})
}

// Resume handles PATCH /cases/:id/resume.
func (h *Handler) Resume(c *gin.Context) {
	h.withCase(c, func(caseID, orgID uuid.UUID) {
		if httpkit.HandleError(c, h.service.Resume(c.Request.Context(), caseID, orgID)) {
			return
		}
		item, err := h.service.Get(c.Request.Context(), caseID, orgID)
		if httpkit.HandleError(c, err) {
			return
		}
		httpkit.OK(c, toCaseResponse(item))
	})
}

// Complete handles POST /cases/:id/complete.
func (h *Handler) Complete(c *gin.Context) {
	h.withCase(c, func(caseID, orgID uuid.UUID) {
		if httpkit.HandleError(c, h.service.Complete(c.Request.Context(), caseID, orgID)) {
			return
		}
		httpkit.OK(c, gin.H{"status": StatusCompleted})
	})
}

// AddPhoto handles POST /cases/:id/photos (multipart field "photo").
func (h *Handler) AddPhoto(c *gin.Context) {
	h.withCase(c, func(caseID, orgID uuid.UUID) {
		file, err := c.FormFile("photo")
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "missing photo file", nil)
			return
		}
		if file.Size > maxPhotoBytes {
			httpkit.Error(c, http.StatusBadRequest, "photo exceeds maximum size", nil)
			return
		}

		f, err := file.Open()
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "unreadable photo file", nil)
			return
		}
		defer f.Close()

		data, err := io.ReadAll(io.LimitReader(f, maxPhotoBytes))
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "unreadable photo file", nil)
			return
		}

		photo, err := h.service.AddPhoto(c.Request.Context(), caseID, orgID, file.Header.Get("Content-Type"), data)
		if httpkit.HandleError(c, err) {
			return
		}

		httpkit.JSON(c, http.StatusCreated, toPhotoResponse(photo))
	})
}

// withCase resolves the authenticated organization and the :id path param
// before invoking the endpoint body.
func (h *Handler) withCase(c *gin.Context, fn func(caseID, orgID uuid.UUID)) {
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

	fn(caseID, *orgID)
}
