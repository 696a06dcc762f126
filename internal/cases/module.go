package cases

import (
	apphttp "propcare_backend/internal/http"
)

// Module wires the case endpoints into the HTTP server.
type Module struct {
	handler *Handler
}

// NewModule creates the cases HTTP module.
func NewModule(handler *Handler) *Module {
	return &Module{handler: handler}
}

// Name returns the module identifier.
func (m *Module) Name() string { return "cases" }

// RegisterRoutes mounts the case routes under the authenticated group.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/cases")
	{
		group.POST("", m.handler.Report)
		group.GET("", m.handler.List)
		group.GET("/:id", m.handler.Get)
		group.GET("/:id/guidance", m.handler.Guidance)
		group.POST("/:id/cancel", m.handler.Cancel)
		group.PATCH("/:id/hold", m.handler.Hold)
		group.PATCH("/:id/resume", m.handler.Resume)
		group.POST("/:id/complete", m.handler.Complete)
		group.POST("/:id/photos", m.handler.AddPhoto)
	}
}
