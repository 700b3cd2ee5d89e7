// Package outreach provides the outreach sequencing bounded context module.
// This file wires the admin HTTP surface; the background jobs are composed in
// cmd/scheduler.
package outreach

import (
	apphttp "outreach_backend/internal/http"
	"outreach_backend/internal/outreach/catalog"
	"outreach_backend/internal/outreach/handler"
	"outreach_backend/internal/outreach/repository"
	"outreach_backend/internal/outreach/scheduling"
	"outreach_backend/platform/logger"
	"outreach_backend/platform/validator"
)

// Module is the outreach bounded context module implementing http.Module.
type Module struct {
	handler    *handler.Handler
	scheduling *scheduling.Service
	catalog    *catalog.Service
}

// NewModule creates the outreach module. enqueuer may be nil to schedule
// sequences inside the request.
func NewModule(store repository.Store, enqueuer handler.Enqueuer, templates catalog.TemplateSet, val *validator.Validator, log *logger.Logger) *Module {
	schedulingSvc := scheduling.New(store, log)
	catalogSvc := catalog.New(store, store, templates, val, log)

	return &Module{
		handler:    handler.New(schedulingSvc, enqueuer, store, store, catalogSvc, val),
		scheduling: schedulingSvc,
		catalog:    catalogSvc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "outreach"
}

// SchedulingService returns the sequence scheduling service for external use.
func (m *Module) SchedulingService() *scheduling.Service {
	return m.scheduling
}

// RegisterRoutes mounts outreach routes on the admin group.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	g := ctx.Admin.Group("/outreach")

	g.GET("/steps", m.handler.ListSteps)
	g.PUT("/steps", m.handler.ImportCatalog)

	leads := g.Group("/leads/:id")
	leads.POST("/sequence", m.handler.ScheduleSequence)
	leads.POST("/inbound-contact", m.handler.RecordInboundContact)
	leads.DELETE("/deliveries", m.handler.CancelDeliveries)

	deliveries := g.Group("/deliveries/:id")
	deliveries.GET("", m.handler.GetDelivery)
	deliveries.GET("/retry-logs", m.handler.ListRetryLogs)
}
