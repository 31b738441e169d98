// Package leads provides the lead management bounded context module.
// This file defines the module that encapsulates leads setup and route
// registration.
package leads

import (
	"github.com/jackc/pgx/v5/pgxpool"

	apphttp "prospector_backend/internal/http"
	"prospector_backend/internal/ingest"
	"prospector_backend/internal/leads/handler"
	"prospector_backend/internal/leads/repository"
	"prospector_backend/internal/leads/service"
	"prospector_backend/internal/pipeline"
	"prospector_backend/platform/config"
	"prospector_backend/platform/logger"
	"prospector_backend/platform/validator"
)

// Module is the leads bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    *repository.Repository
}

// NewModule creates and initializes the leads module with its dependencies.
func NewModule(pool *pgxpool.Pool, queue *pipeline.Client, cfg config.IngestConfig, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	batcher := ingest.New(repo, queue, cfg, log)
	svc := service.New(repo, batcher, queue, log)
	h := handler.New(svc, val)

	return &Module{
		handler: h,
		service: svc,
		repo:    repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// RegisterRoutes mounts the leads and job routes under /api/v1.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.V1.Group("/leads"))
	m.handler.RegisterJobRoutes(ctx.V1.Group("/jobs"))
}

// Repository exposes the lead store for cross-module wiring (the pipeline
// worker and the recalculation coordinator persist through it).
func (m *Module) Repository() *repository.Repository {
	return m.repo
}
