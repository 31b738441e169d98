package pipeline

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"prospector_backend/internal/address"
	"prospector_backend/internal/enrich"
	"prospector_backend/internal/leads/repository"
	"prospector_backend/internal/recalc"
	"prospector_backend/internal/scoring/rules"
	"prospector_backend/platform/logger"
)

// Stage progress milestones persisted to the job row. The gap to 100 is
// closed when the job completes.
const (
	progressAddress = 25
	progressCompany = 50
	progressScore   = 75
	progressPersist = 85
)

// Stage step labels.
const (
	stepAddress = "address"
	stepCompany = "company"
	stepScore   = "score"
	stepPersist = "persist"
)

// LeadStore is the persistence surface the processor needs.
type LeadStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (repository.Lead, error)
	SetStatus(ctx context.Context, id uuid.UUID, status string) error
	MarkError(ctx context.Context, id uuid.UUID, message string) error
	UpdateAddress(ctx context.Context, id uuid.UUID, params repository.UpdateAddressParams) error
	UpdateEnrichment(ctx context.Context, id uuid.UUID, params repository.UpdateEnrichmentParams) error
	UpdateScore(ctx context.Context, id uuid.UUID, result rules.Result) error
	StartJob(ctx context.Context, id uuid.UUID) error
	UpdateJobProgress(ctx context.Context, id uuid.UUID, progress int, step string) error
	CompleteJob(ctx context.Context, id uuid.UUID) error
	FailJob(ctx context.Context, id uuid.UUID, message string) error
}

// AddressResolver is the address validation stage.
type AddressResolver interface {
	Resolve(ctx context.Context, partial address.PartialAddress) address.Resolution
}

// CompanyFetcher is the registry enrichment stage.
type CompanyFetcher interface {
	Fetch(ctx context.Context, taxID string) *enrich.CompanyRecord
}

// RuleSource resolves the active scoring rule set.
type RuleSource interface {
	GetActiveConfig(ctx context.Context) (rules.Config, error)
}

// Recalculator reruns scoring over the processed backlog.
type Recalculator interface {
	Run(ctx context.Context) (recalc.Summary, error)
}

// Processor executes pipeline tasks. It is separate from the Worker so the
// stage logic can run without a queue server behind it.
type Processor struct {
	store    LeadStore
	resolver AddressResolver
	fetcher  CompanyFetcher
	rulesrc  RuleSource
	engine   *rules.Engine
	recalc   Recalculator
	log      *logger.Logger
}

// NewProcessor wires the pipeline stages.
func NewProcessor(store LeadStore, resolver AddressResolver, fetcher CompanyFetcher, rulesrc RuleSource, engine *rules.Engine, recalculator Recalculator, log *logger.Logger) *Processor {
	return &Processor{
		store:    store,
		resolver: resolver,
		fetcher:  fetcher,
		rulesrc:  rulesrc,
		engine:   engine,
		recalc:   recalculator,
		log:      log,
	}
}

// HandleLeadEnrichment runs the full pipeline for one lead. Returned errors
// trigger queue-level retries; on the final attempt the job and lead are
// marked failed before the error surfaces.
func (p *Processor) HandleLeadEnrichment(ctx context.Context, task *asynq.Task) error {
	// Retrying cannot fix a malformed payload; drop it instead of burning
	// the queue's retry budget.
	payload, err := ParseLeadEnrichmentPayload(task)
	if err != nil {
		p.log.Error("dropping malformed enrichment task", "error", err)
		return nil
	}

	leadID, err := uuid.Parse(payload.LeadID)
	if err != nil {
		p.log.Error("dropping enrichment task with bad lead id", "lead_id", payload.LeadID, "error", err)
		return nil
	}
	jobID, err := uuid.Parse(payload.JobID)
	if err != nil {
		p.log.Error("dropping enrichment task with bad job id", "job_id", payload.JobID, "error", err)
		return nil
	}

	if err := p.processLead(ctx, leadID, jobID); err != nil {
		if finalAttempt(ctx) {
			p.failTerminally(ctx, leadID, jobID, err)
		}
		return err
	}
	return nil
}

// HandleScoreRecalculation reruns scoring over every processed lead.
func (p *Processor) HandleScoreRecalculation(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseScoreRecalculationPayload(task)
	if err != nil {
		p.log.Error("dropping malformed recalculation task", "error", err)
		return nil
	}

	summary, err := p.recalc.Run(ctx)
	if err != nil {
		return err
	}
	p.log.Info("score recalculation finished",
		"reason", payload.Reason,
		"scanned", summary.Scanned,
		"updated", summary.Updated,
		"errors", summary.Errors,
	)
	return nil
}

func (p *Processor) processLead(ctx context.Context, leadID, jobID uuid.UUID) error {
	log := p.log.WithLeadID(leadID.String())

	lead, err := p.store.GetByID(ctx, leadID)
	if errors.Is(err, repository.ErrNotFound) {
		// The lead was deleted after enqueue; nothing to retry.
		log.Warn("lead vanished before processing, dropping task")
		return nil
	}
	if err != nil {
		return err
	}

	if err := p.store.StartJob(ctx, jobID); err != nil {
		return err
	}
	if err := p.store.SetStatus(ctx, leadID, repository.StatusProcessing); err != nil {
		return err
	}

	// Stage 1: address validation. Never fails; degraded resolutions keep
	// the raw fields.
	res := p.resolver.Resolve(ctx, address.PartialAddress{
		Street:         firstNonEmpty(lead.RawStreet, lead.SuggestedStreet),
		City:           lead.Municipality,
		PostalCode:     lead.RawPostalCode,
		RawCoordinates: lead.RawCoordinates,
	})
	validated := !res.Degraded && address.IsValid(res.Address)
	if err := p.store.UpdateAddress(ctx, leadID, repository.UpdateAddressParams{
		Street:       res.Address.Street,
		Number:       res.Address.Number,
		Complement:   res.Address.Complement,
		Neighborhood: res.Address.Neighborhood,
		City:         res.Address.City,
		State:        res.Address.State,
		PostalCode:   res.Address.PostalCode,
		Validated:    validated,
		Latitude:     res.Address.Latitude,
		Longitude:    res.Address.Longitude,
	}); err != nil {
		return err
	}
	if err := p.store.UpdateJobProgress(ctx, jobID, progressAddress, stepAddress); err != nil {
		return err
	}

	// Stage 2: registry enrichment. Absent records are normal.
	record := p.fetcher.Fetch(ctx, lead.TaxID)
	if record != nil {
		if err := p.store.UpdateEnrichment(ctx, leadID, repository.UpdateEnrichmentParams{
			ActivityCode:        record.ActivityCode,
			ActivityDescription: record.ActivityDescription,
			RegisteredCapital:   record.RegisteredCapital,
			FoundingDate:        record.FoundingDate,
			Partners:            toPartners(record),
		}); err != nil {
			return err
		}
	} else {
		log.Info("no registry record, scoring without company data")
	}
	if err := p.store.UpdateJobProgress(ctx, jobID, progressCompany, stepCompany); err != nil {
		return err
	}

	// Stage 3: scoring against the active rule set.
	cfg, err := p.rulesrc.GetActiveConfig(ctx)
	if err != nil {
		return err
	}
	result := p.engine.Score(&cfg, scoringInput(lead, res, validated, record))
	result = rules.ApplyAddressBonus(result, res.Address.Street != "", res.Address.Latitude != nil)
	if err := p.store.UpdateJobProgress(ctx, jobID, progressScore, stepScore); err != nil {
		return err
	}

	// Stage 4: persist the outcome.
	if err := p.store.UpdateScore(ctx, leadID, result); err != nil {
		return err
	}
	if err := p.store.UpdateJobProgress(ctx, jobID, progressPersist, stepPersist); err != nil {
		return err
	}

	if err := p.store.SetStatus(ctx, leadID, repository.StatusProcessed); err != nil {
		return err
	}
	if err := p.store.CompleteJob(ctx, jobID); err != nil {
		return err
	}

	log.Info("lead processed", "score", result.Score, "tier", result.Tier, "confidence", result.Confidence)
	return nil
}

// failTerminally marks the job and the lead failed once the queue will not
// retry again. Bookkeeping errors are logged, not raised; the task error
// itself is what surfaces.
func (p *Processor) failTerminally(ctx context.Context, leadID, jobID uuid.UUID, cause error) {
	if err := p.store.FailJob(ctx, jobID, cause.Error()); err != nil {
		p.log.DatabaseError("fail_job", err)
	}
	if err := p.store.MarkError(ctx, leadID, cause.Error()); err != nil {
		p.log.DatabaseError("mark_lead_error", err)
	}
	p.log.Error("lead processing failed terminally", "lead_id", leadID, "error", cause)
}

func finalAttempt(ctx context.Context) bool {
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return false
	}
	max, ok := asynq.GetMaxRetry(ctx)
	if !ok {
		return false
	}
	return retried >= max
}

func scoringInput(lead repository.Lead, res address.Resolution, validated bool, record *enrich.CompanyRecord) rules.Input {
	input := rules.Input{
		TaxID:            lead.TaxID,
		CompanyName:      lead.CompanyName,
		TradeName:        lead.TradeName,
		State:            res.Address.State,
		AddressValidated: validated,
		HasCoordinates:   res.Address.Latitude != nil,
	}
	if record != nil {
		if record.Name != "" {
			input.CompanyName = record.Name
		}
		if record.TradeName != "" {
			input.TradeName = record.TradeName
		}
		input.ActivityCode = record.ActivityCode
		input.RegisteredCapital = record.RegisteredCapital
		input.FoundingDate = record.FoundingDate
		input.PartnerCount = len(record.Partners)
		input.Region = record.Region
		if record.State != "" {
			input.State = record.State
		}
	}
	return input
}

func toPartners(record *enrich.CompanyRecord) []repository.Partner {
	partners := make([]repository.Partner, 0, len(record.Partners))
	for _, p := range record.Partners {
		partners = append(partners, repository.Partner{Name: p.Name, Role: p.Role})
	}
	return partners
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
