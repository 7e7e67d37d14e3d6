// Package leads provides the buyer lead bounded context module.
// This file defines the module that encapsulates all leads setup and route registration.
package leads

import (
	apphttp "buyer_crm_backend/internal/http"
	"buyer_crm_backend/internal/leads/handler"
	"buyer_crm_backend/internal/leads/history"
	"buyer_crm_backend/internal/leads/importer"
	"buyer_crm_backend/internal/leads/management"
	"buyer_crm_backend/internal/leads/metrics"
	"buyer_crm_backend/internal/leads/query"
	"buyer_crm_backend/internal/leads/repository"
	"buyer_crm_backend/internal/leads/validation"
	"buyer_crm_backend/platform/logger"
	"buyer_crm_backend/platform/validator"

	"github.com/prometheus/client_golang/prometheus"
)

// Module is the leads bounded context module implementing http.Module.
type Module struct {
	handler    *handler.Handler
	management *management.Service
	query      *query.Service
	importer   *importer.Pipeline
}

// NewModule wires the lead services over store. reg receives the lead metrics and may be nil.
func NewModule(store repository.Store, val *validator.Validator, reg prometheus.Registerer, log *logger.Logger) *Module {
	m := metrics.New(reg)
	leadVal := validation.New()

	mgmt := management.New(store, history.NewRecorder(), m, log)
	queries := query.New(store, log)
	imports := importer.New(store, leadVal, mgmt, m, log)

	return &Module{
		handler:    handler.New(mgmt, queries, imports, leadVal, val),
		management: mgmt,
		query:      queries,
		importer:   imports,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// ManagementService exposes single-record operations to other entry points.
func (m *Module) ManagementService() *management.Service {
	return m.management
}

// QueryService exposes listing and export.
func (m *Module) QueryService() *query.Service {
	return m.query
}

// Importer exposes the bulk import pipeline.
func (m *Module) Importer() *importer.Pipeline {
	return m.importer
}

// RegisterRoutes mounts buyer routes on the protected group.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	buyers := ctx.Protected.Group("/buyers")
	m.handler.RegisterRoutes(buyers, ctx.WriteLimit, ctx.ImportLimit)
	ctx.Protected.GET("/me", m.handler.Me)
}
