package proposals

import (
	apphttp "propcare_backend/internal/http"
)

// Module wires the proposal endpoints into the HTTP server.
type Module struct {
	handler *Handler
}

// NewModule creates the proposals HTTP module.
func NewModule(handler *Handler) *Module {
	return &Module{handler: handler}
}

// Name returns the module identifier.
func (m *Module) Name() string { return "proposals" }

// RegisterRoutes mounts the proposal routes under the authenticated group.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.POST("/cases/:id/proposals", m.handler.Submit)
	ctx.Protected.GET("/cases/:id/proposals", m.handler.List)
	ctx.Protected.POST("/cases/:id/approve", m.handler.Review)
	ctx.Protected.POST("/slots/:id/select", m.handler.Select)
}
