// Package recalc reruns the scoring engine over the processed backlog after
// a rule set change.
package recalc

import (
	"context"
	"time"

	"github.com/google/uuid"

	"prospector_backend/internal/leads/repository"
	"prospector_backend/internal/scoring/rules"
	"prospector_backend/platform/config"
	"prospector_backend/platform/logger"
)

// LeadSource streams and updates processed leads.
type LeadSource interface {
	ListProcessedAfter(ctx context.Context, after uuid.UUID, limit int) ([]repository.Lead, error)
	UpdateScore(ctx context.Context, id uuid.UUID, result rules.Result) error
}

// RuleSource resolves the active scoring rule set.
type RuleSource interface {
	GetActiveConfig(ctx context.Context) (rules.Config, error)
}

// Summary reports one recalculation run.
type Summary struct {
	Scanned int
	Updated int
	Errors  int
}

// Coordinator walks the processed backlog in id order, rescoring each batch
// against the active rule set with a pause between batches to keep the pool
// responsive for the live pipeline.
type Coordinator struct {
	store     LeadSource
	rulesrc   RuleSource
	engine    *rules.Engine
	batchSize int
	pause     time.Duration
	log       *logger.Logger

	// sleep is injected by tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a recalculation coordinator.
func New(store LeadSource, rulesrc RuleSource, engine *rules.Engine, cfg config.RecalcConfig, log *logger.Logger) *Coordinator {
	batchSize := cfg.GetRecalcBatchSize()
	if batchSize < 1 {
		batchSize = 50
	}
	return &Coordinator{
		store:     store,
		rulesrc:   rulesrc,
		engine:    engine,
		batchSize: batchSize,
		pause:     cfg.GetRecalcBatchPause(),
		log:       log,
		sleep:     sleepCtx,
	}
}

// Run rescores every processed lead. Per-lead persistence failures are
// counted and skipped; only batch-level failures abort the run.
func (c *Coordinator) Run(ctx context.Context) (Summary, error) {
	cfg, err := c.rulesrc.GetActiveConfig(ctx)
	if err != nil {
		return Summary{}, err
	}

	var summary Summary
	after := uuid.Nil
	for {
		batch, err := c.store.ListProcessedAfter(ctx, after, c.batchSize)
		if err != nil {
			return summary, err
		}
		if len(batch) == 0 {
			return summary, nil
		}

		for _, lead := range batch {
			summary.Scanned++
			result := c.engine.Score(&cfg, lead.ScoringInput())
			result = rules.ApplyAddressBonus(result, lead.AddressStreet != "", lead.Latitude != nil)

			if err := c.store.UpdateScore(ctx, lead.ID, result); err != nil {
				summary.Errors++
				c.log.DatabaseError("recalc_update_score", err)
				continue
			}
			summary.Updated++
		}

		after = batch[len(batch)-1].ID
		if len(batch) < c.batchSize {
			return summary, nil
		}
		if c.pause > 0 {
			if err := c.sleep(ctx, c.pause); err != nil {
				return summary, err
			}
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
