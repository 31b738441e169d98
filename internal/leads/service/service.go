// Package service provides business logic for the leads API.
package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"prospector_backend/internal/ingest"
	"prospector_backend/internal/leads/repository"
	"prospector_backend/internal/leads/transport"
	"prospector_backend/internal/scoring/rules"
	"prospector_backend/platform/apperr"
	"prospector_backend/platform/logger"
)

// QueueInspector reports the pipeline queue depth.
type QueueInspector interface {
	QueueDepth(ctx context.Context) (int, error)
}

// Service provides business logic for leads.
type Service struct {
	repo    *repository.Repository
	batcher *ingest.Batcher
	queue   QueueInspector
	log     *logger.Logger
}

// New creates a new leads service.
func New(repo *repository.Repository, batcher *ingest.Batcher, queue QueueInspector, log *logger.Logger) *Service {
	return &Service{repo: repo, batcher: batcher, queue: queue, log: log}
}

// Import ingests a batch of leads into the pipeline.
func (s *Service) Import(ctx context.Context, req transport.ImportRequest) (transport.ImportResponse, error) {
	result, err := s.batcher.Import(ctx, req.Leads)
	if err != nil {
		return transport.ImportResponse{}, err
	}
	return transport.ImportResponse{
		Total:   result.Total,
		Created: result.Created,
		Skipped: result.Skipped,
		Batches: result.Batches,
	}, nil
}

// List retrieves leads with filters and pagination.
func (s *Service) List(ctx context.Context, req transport.ListLeadsRequest) (transport.LeadListResponse, error) {
	page := req.Page
	pageSize := req.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	items, total, err := s.repo.List(ctx, repository.ListLeadsParams{
		Status: req.Status,
		Tier:   req.Tier,
		State:  req.State,
		Offset: (page - 1) * pageSize,
		Limit:  pageSize,
	})
	if err != nil {
		return transport.LeadListResponse{}, err
	}

	responses := make([]transport.LeadResponse, 0, len(items))
	for _, lead := range items {
		responses = append(responses, transport.FromLead(lead))
	}
	return transport.LeadListResponse{
		Items:    responses,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

// GetByID retrieves one lead.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (transport.LeadResponse, error) {
	lead, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return transport.LeadResponse{}, apperr.NotFound("lead not found")
	}
	if err != nil {
		return transport.LeadResponse{}, err
	}
	return transport.FromLead(lead), nil
}

// ScoreDetails returns the stored score breakdown for a lead.
func (s *Service) ScoreDetails(ctx context.Context, id uuid.UUID) (transport.ScoreDetailsResponse, error) {
	lead, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return transport.ScoreDetailsResponse{}, apperr.NotFound("lead not found")
	}
	if err != nil {
		return transport.ScoreDetailsResponse{}, err
	}
	if lead.Score == nil || lead.Tier == nil {
		return transport.ScoreDetailsResponse{}, apperr.NotFound("lead has not been scored yet")
	}

	confidence := 0
	if lead.Confidence != nil {
		confidence = *lead.Confidence
	}
	return transport.ScoreDetailsResponse{
		LeadID:     lead.ID,
		Score:      *lead.Score,
		Tier:       *lead.Tier,
		Confidence: confidence,
		Factors:    lead.ScoreFactors,
		ScoredAt:   lead.ScoredAt,
	}, nil
}

// Reprocess schedules a fresh pipeline run for a lead.
func (s *Service) Reprocess(ctx context.Context, id uuid.UUID) (transport.JobResponse, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.JobResponse{}, apperr.NotFound("lead not found")
		}
		return transport.JobResponse{}, err
	}

	job, err := s.batcher.Schedule(ctx, id)
	if errors.Is(err, repository.ErrJobExists) {
		return transport.JobResponse{}, apperr.Conflict("lead already has a live processing job")
	}
	if err != nil {
		return transport.JobResponse{}, err
	}

	s.log.Info("lead reprocess scheduled", "lead_id", id, "job_id", job.ID)
	return transport.FromJob(job), nil
}

// GetJob retrieves one processing job.
func (s *Service) GetJob(ctx context.Context, id uuid.UUID) (transport.JobResponse, error) {
	job, err := s.repo.GetJobByID(ctx, id)
	if errors.Is(err, repository.ErrJobNotFound) {
		return transport.JobResponse{}, apperr.NotFound("processing job not found")
	}
	if err != nil {
		return transport.JobResponse{}, err
	}
	return transport.FromJob(job), nil
}

// JobStats reports job counts by status plus the live queue depth.
func (s *Service) JobStats(ctx context.Context) (transport.JobStatsResponse, error) {
	jobs, err := s.repo.CountJobsByStatus(ctx)
	if err != nil {
		return transport.JobStatsResponse{}, err
	}

	depth := 0
	if s.queue != nil {
		if d, err := s.queue.QueueDepth(ctx); err != nil {
			s.log.StageError("stats.queue_depth", err)
		} else {
			depth = d
		}
	}

	return transport.JobStatsResponse{ByStatus: jobs, QueueDepth: depth}, nil
}

// Stats aggregates leads, jobs and queue depth for the dashboard. A broken
// queue inspector degrades to depth 0 rather than failing the endpoint.
func (s *Service) Stats(ctx context.Context) (transport.StatsResponse, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return transport.StatsResponse{}, err
	}

	jobs, err := s.repo.CountJobsByStatus(ctx)
	if err != nil {
		return transport.StatsResponse{}, err
	}

	depth := 0
	if s.queue != nil {
		if d, err := s.queue.QueueDepth(ctx); err != nil {
			s.log.StageError("stats.queue_depth", err)
		} else {
			depth = d
		}
	}

	byRegion := make(map[string]int)
	for state, count := range stats.ByState {
		region := rules.RegionForState(state)
		if region == "" {
			region = "Desconhecida"
		}
		byRegion[region] += count
	}

	return transport.StatsResponse{
		Total:        stats.Total,
		ByStatus:     stats.ByStatus,
		ByTier:       stats.ByTier,
		ByRegion:     byRegion,
		AverageScore: stats.AverageScore,
		Jobs:         jobs,
		QueueDepth:   depth,
	}, nil
}
