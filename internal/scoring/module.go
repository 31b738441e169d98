// Package scoring provides the scoring bounded context module.
// This file defines the module that encapsulates rule set management and
// route registration; the engine itself lives in the rules subpackage.
package scoring

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	apphttp "prospector_backend/internal/http"
	"prospector_backend/internal/scoring/handler"
	"prospector_backend/internal/scoring/repository"
	"prospector_backend/internal/scoring/rules"
	"prospector_backend/internal/scoring/service"
	"prospector_backend/platform/logger"
	"prospector_backend/platform/validator"
)

// Module is the scoring bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    *repository.Repository
}

// NewModule creates and initializes the scoring module.
func NewModule(pool *pgxpool.Pool, recalc service.RecalcEnqueuer, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, recalc, log)
	h := handler.New(svc, val)

	return &Module{
		handler: h,
		service: svc,
		repo:    repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "scoring"
}

// RegisterRoutes mounts the scoring config routes under /api/v1.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.V1.Group("/scoring-configs"))
}

// Service exposes the scoring service for cross-module wiring (the pipeline
// worker and the recalculation coordinator resolve the active rule set
// through it).
func (m *Module) Service() *service.Service {
	return m.service
}

// ActiveConfig resolves the active rule set for engine callers.
func (m *Module) ActiveConfig(ctx context.Context) (rules.Config, error) {
	return m.service.GetActiveConfig(ctx)
}
