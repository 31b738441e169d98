// Package ingest turns lead imports into deduplicated rows and spaced-out
// queue work.
package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"prospector_backend/internal/enrich"
	"prospector_backend/internal/leads/repository"
	"prospector_backend/internal/leads/transport"
	"prospector_backend/internal/pipeline"
	"prospector_backend/platform/logger"
)

// LeadStore is the persistence surface the batcher needs.
type LeadStore interface {
	Create(ctx context.Context, params repository.CreateLeadParams) (repository.Lead, bool, error)
	CreateJob(ctx context.Context, leadID uuid.UUID) (repository.ProcessingJob, error)
	SetJobTaskID(ctx context.Context, jobID uuid.UUID, taskID string) error
}

// Enqueuer schedules pipeline runs.
type Enqueuer interface {
	EnqueueLeadEnrichment(ctx context.Context, payload pipeline.LeadEnrichmentPayload, delay time.Duration) (string, error)
}

// Result summarizes one import.
type Result struct {
	Total   int
	Created int
	Skipped int
	Batches int
}

// Batcher deduplicates imported leads and spreads their pipeline runs over
// time: every batchSize created leads, the enqueue delay grows by spacing so
// external lookups never burst.
type Batcher struct {
	store     LeadStore
	queue     Enqueuer
	batchSize int
	spacing   time.Duration
	log       *logger.Logger
}

// Config is the subset of settings the batcher reads.
type Config interface {
	GetIngestBatchSize() int
	GetIngestBatchSpacing() time.Duration
}

// New creates a batcher.
func New(store LeadStore, queue Enqueuer, cfg Config, log *logger.Logger) *Batcher {
	batchSize := cfg.GetIngestBatchSize()
	if batchSize < 1 {
		batchSize = 3
	}
	return &Batcher{
		store:     store,
		queue:     queue,
		batchSize: batchSize,
		spacing:   cfg.GetIngestBatchSpacing(),
		log:       log,
	}
}

// Import stores the payload rows and schedules a pipeline run per created
// lead. Duplicates (by tax id) are counted and skipped; they neither get a
// job nor consume a batch slot.
func (b *Batcher) Import(ctx context.Context, items []transport.ImportLeadPayload) (Result, error) {
	result := Result{Total: len(items)}

	for _, item := range items {
		lead, created, err := b.store.Create(ctx, repository.CreateLeadParams{
			TaxID:           enrich.NormalizeTaxID(item.TaxID),
			CompanyName:     item.CompanyName,
			TradeName:       item.TradeName,
			Municipality:    item.Municipality,
			RawPostalCode:   item.PostalCode,
			RawStreet:       item.Street,
			SuggestedStreet: item.SuggestedStreet,
			RawCoordinates:  item.Coordinates,
			StreetViewURL:   item.StreetViewURL,
		})
		if err != nil {
			return result, err
		}
		if !created {
			result.Skipped++
			continue
		}

		batchIndex := result.Created / b.batchSize
		if err := b.schedule(ctx, lead.ID, time.Duration(batchIndex)*b.spacing); err != nil {
			return result, err
		}
		result.Created++
	}

	if result.Created > 0 {
		result.Batches = (result.Created + b.batchSize - 1) / b.batchSize
	}

	b.log.Info("lead import finished",
		"total", result.Total, "created", result.Created,
		"skipped", result.Skipped, "batches", result.Batches,
	)
	return result, nil
}

// Schedule opens a job for one lead and enqueues its pipeline run without
// delay. Used for manual reprocessing; a live job surfaces as ErrJobExists.
func (b *Batcher) Schedule(ctx context.Context, leadID uuid.UUID) (repository.ProcessingJob, error) {
	job, err := b.store.CreateJob(ctx, leadID)
	if err != nil {
		return repository.ProcessingJob{}, err
	}

	taskID, err := b.queue.EnqueueLeadEnrichment(ctx, pipeline.LeadEnrichmentPayload{
		LeadID: leadID.String(),
		JobID:  job.ID.String(),
	}, 0)
	if err != nil {
		return repository.ProcessingJob{}, err
	}

	if err := b.store.SetJobTaskID(ctx, job.ID, taskID); err != nil {
		return repository.ProcessingJob{}, err
	}
	job.QueueTaskID = taskID
	return job, nil
}

func (b *Batcher) schedule(ctx context.Context, leadID uuid.UUID, delay time.Duration) error {
	job, err := b.store.CreateJob(ctx, leadID)
	if errors.Is(err, repository.ErrJobExists) {
		// A live job already covers this lead.
		b.log.Info("lead already has a live job, not enqueueing", "lead_id", leadID)
		return nil
	}
	if err != nil {
		return err
	}

	taskID, err := b.queue.EnqueueLeadEnrichment(ctx, pipeline.LeadEnrichmentPayload{
		LeadID: leadID.String(),
		JobID:  job.ID.String(),
	}, delay)
	if err != nil {
		return err
	}

	return b.store.SetJobTaskID(ctx, job.ID, taskID)
}
