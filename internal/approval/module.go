package approval

import (
	apphttp "propcare_backend/internal/http"
)

// Module wires the policy endpoints into the HTTP server.
type Module struct {
	handler *Handler
}

// NewModule creates the approval HTTP module.
func NewModule(handler *Handler) *Module {
	return &Module{handler: handler}
}

// Name returns the module identifier.
func (m *Module) Name() string { return "approval" }

// RegisterRoutes mounts the policy routes under the authenticated group.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.PUT("/policies", m.handler.Create)
	ctx.Protected.GET("/policies/active", m.handler.GetActive)
}
