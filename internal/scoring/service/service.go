// Package service provides business logic for scoring configurations.
package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"prospector_backend/internal/scoring/repository"
	"prospector_backend/internal/scoring/rules"
	"prospector_backend/internal/scoring/transport"
	"prospector_backend/platform/apperr"
	"prospector_backend/platform/logger"
)

// Repository is the persistence surface the service needs.
type Repository interface {
	Create(ctx context.Context, params repository.CreateConfigParams) (rules.Config, error)
	GetByID(ctx context.Context, id uuid.UUID) (rules.Config, error)
	GetActive(ctx context.Context) (rules.Config, error)
	List(ctx context.Context) ([]rules.Config, error)
	Update(ctx context.Context, id uuid.UUID, params repository.UpdateConfigParams) (rules.Config, error)
	Activate(ctx context.Context, id uuid.UUID) (rules.Config, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// RecalcEnqueuer schedules a full score recalculation after rule changes.
type RecalcEnqueuer interface {
	EnqueueScoreRecalculation(ctx context.Context) error
}

// Service provides business logic for scoring configs.
type Service struct {
	repo   Repository
	recalc RecalcEnqueuer
	log    *logger.Logger
}

// New creates a new scoring service.
func New(repo Repository, recalc RecalcEnqueuer, log *logger.Logger) *Service {
	return &Service{repo: repo, recalc: recalc, log: log}
}

// GetActiveConfig returns the active rule set, materializing the built-in
// default on first use so scoring never runs against an empty table.
func (s *Service) GetActiveConfig(ctx context.Context) (rules.Config, error) {
	cfg, err := s.repo.GetActive(ctx)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return rules.Config{}, err
	}

	cfg, err = s.repo.Create(ctx, repository.CreateConfigParams{
		Name:        "Padrão",
		Description: "Regras iniciais de pontuação",
		IsActive:    true,
		Categories:  DefaultCategories(),
	})
	if errors.Is(err, repository.ErrActiveConflict) {
		// Another worker materialized the default first; use theirs.
		return s.repo.GetActive(ctx)
	}
	if err != nil {
		return rules.Config{}, err
	}
	s.log.Info("default scoring config materialized", "id", cfg.ID)
	return cfg, nil
}

// List returns every config, newest first.
func (s *Service) List(ctx context.Context) (transport.ConfigListResponse, error) {
	configs, err := s.repo.List(ctx)
	if err != nil {
		return transport.ConfigListResponse{}, err
	}
	items := make([]transport.ConfigResponse, 0, len(configs))
	for _, cfg := range configs {
		items = append(items, transport.FromConfig(cfg))
	}
	return transport.ConfigListResponse{Items: items, Total: len(items)}, nil
}

// GetByID returns one config.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (transport.ConfigResponse, error) {
	cfg, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return transport.ConfigResponse{}, apperr.NotFound("scoring config not found")
	}
	if err != nil {
		return transport.ConfigResponse{}, err
	}
	return transport.FromConfig(cfg), nil
}

// Create stores a new config and, when it is created active, swaps activation
// and schedules a recalculation.
func (s *Service) Create(ctx context.Context, req transport.CreateConfigRequest) (transport.ConfigResponse, error) {
	categories := transport.ToCategories(req.Categories)
	draft := rules.Config{Name: strings.TrimSpace(req.Name), Categories: categories}
	if err := draft.Validate(); err != nil {
		return transport.ConfigResponse{}, apperr.Validation(err.Error())
	}

	cfg, err := s.repo.Create(ctx, repository.CreateConfigParams{
		Name:        draft.Name,
		Description: strings.TrimSpace(req.Description),
		IsActive:    false,
		Categories:  categories,
	})
	if err != nil {
		return transport.ConfigResponse{}, err
	}

	if req.Activate {
		cfg, err = s.repo.Activate(ctx, cfg.ID)
		if err != nil {
			return transport.ConfigResponse{}, err
		}
		s.scheduleRecalc(ctx)
	}

	s.log.Info("scoring config created", "id", cfg.ID, "name", cfg.Name, "active", cfg.IsActive)
	return transport.FromConfig(cfg), nil
}

// Update replaces a config's rule set. Updating the active config schedules
// a recalculation.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req transport.UpdateConfigRequest) (transport.ConfigResponse, error) {
	categories := transport.ToCategories(req.Categories)
	draft := rules.Config{Name: strings.TrimSpace(req.Name), Categories: categories}
	if err := draft.Validate(); err != nil {
		return transport.ConfigResponse{}, apperr.Validation(err.Error())
	}

	cfg, err := s.repo.Update(ctx, id, repository.UpdateConfigParams{
		Name:        draft.Name,
		Description: strings.TrimSpace(req.Description),
		Categories:  categories,
	})
	if errors.Is(err, repository.ErrNotFound) {
		return transport.ConfigResponse{}, apperr.NotFound("scoring config not found")
	}
	if err != nil {
		return transport.ConfigResponse{}, err
	}

	if cfg.IsActive {
		s.scheduleRecalc(ctx)
	}

	s.log.Info("scoring config updated", "id", cfg.ID, "active", cfg.IsActive)
	return transport.FromConfig(cfg), nil
}

// Activate makes the config the single active one and schedules a
// recalculation.
func (s *Service) Activate(ctx context.Context, id uuid.UUID) (transport.ConfigResponse, error) {
	cfg, err := s.repo.Activate(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return transport.ConfigResponse{}, apperr.NotFound("scoring config not found")
	}
	if err != nil {
		return transport.ConfigResponse{}, err
	}

	s.scheduleRecalc(ctx)
	s.log.Info("scoring config activated", "id", cfg.ID, "name", cfg.Name)
	return transport.FromConfig(cfg), nil
}

// Delete removes a config. Deleting the active one schedules a
// recalculation; the next active read rematerializes the built-in default.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	cfg, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound("scoring config not found")
	}
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("scoring config not found")
		}
		return err
	}

	if cfg.IsActive {
		s.scheduleRecalc(ctx)
	}
	s.log.Info("scoring config deleted", "id", id, "was_active", cfg.IsActive)
	return nil
}

// scheduleRecalc enqueues the recalculation task. A broken queue must not
// fail the config mutation itself; scores converge on the next pipeline run.
func (s *Service) scheduleRecalc(ctx context.Context) {
	if s.recalc == nil {
		return
	}
	if err := s.recalc.EnqueueScoreRecalculation(ctx); err != nil {
		s.log.Error("failed to enqueue score recalculation", "error", err)
	}
}

// DefaultCategories is the built-in rule set used until an operator tunes
// their own. Activity codes cover the retail food segment.
func DefaultCategories() []rules.Category {
	return []rules.Category{
		{
			Kind:   rules.KindActivityCode,
			Name:   "Atividade principal",
			Points: 30,
			Criteria: []rules.Criterion{
				{Value: "4711301", Points: 40, Description: "Hipermercado"},
				{Value: "4711302", Points: 45, Description: "Supermercado"},
				{Value: "4712100", Points: 35, Description: "Minimercado"},
				{Value: "4721102", Points: 25, Description: "Padaria e confeitaria"},
				{Value: "4639701", Points: 30, Description: "Atacado de alimentos"},
			},
		},
		{
			Kind:   rules.KindRegion,
			Name:   "Região",
			Points: 10,
			Criteria: []rules.Criterion{
				{Value: "Sudeste", Points: 15},
				{Value: "Sul", Points: 12},
				{Value: "Nordeste", Points: 10},
			},
		},
		{
			Kind:   rules.KindCapital,
			Name:   "Capital social",
			Points: 10,
			Criteria: []rules.Criterion{
				{Value: rules.CapitalHigh, Points: 20},
				{Value: rules.CapitalMedium, Points: 12},
				{Value: rules.CapitalLow, Points: 6},
			},
		},
		{
			Kind:   rules.KindFoundingAge,
			Name:   "Tempo de atividade",
			Points: 8,
			Criteria: []rules.Criterion{
				{Value: rules.FoundingAge10Plus, Points: 12},
				{Value: rules.FoundingAge5To10, Points: 8},
				{Value: rules.FoundingAge2To5, Points: 4},
			},
		},
		{
			Kind:   rules.KindPartners,
			Name:   "Quadro societário",
			Points: 5,
			Criteria: []rules.Criterion{
				{Value: "true", Points: 5},
			},
		},
		{
			Kind:   rules.KindAddress,
			Name:   "Endereço validado",
			Points: 8,
			Criteria: []rules.Criterion{
				{Value: "true", Points: 8},
			},
		},
	}
}
