// Package enrich fetches company registry data for a lead's tax identifier.
// Enrichment is optional for the pipeline: every failure mode ends in an
// absent record, never in an error crossing the stage boundary.
package enrich

import (
	"context"
	"errors"
	"strings"
	"time"

	"prospector_backend/internal/registry"
	"prospector_backend/internal/scoring/rules"
	"prospector_backend/platform/logger"
)

const (
	// maxAttempts bounds registry lookups per lead.
	maxAttempts = 5
	// backoffBase is the first retry delay; each retry doubles it
	// (90s, 180s, 360s, 720s).
	backoffBase = 90 * time.Second
)

// CompanyRecord is the enrichment result mapped into scoring's vocabulary.
type CompanyRecord struct {
	TaxID               string
	Name                string
	TradeName           string
	ActivityCode        string
	ActivityDescription string
	RegisteredCapital   *float64
	FoundingDate        *time.Time
	Partners            []registry.Partner
	State               string
	Region              string
}

// RegistryClient is the external company registry.
type RegistryClient interface {
	Fetch(ctx context.Context, taxID string) (*registry.Company, error)
}

// QuotaGate is the shared registry rate limiter.
type QuotaGate interface {
	TryConsume(ctx context.Context) (bool, error)
	WaitUntilAvailable(ctx context.Context) error
}

// Enricher drives rate-limited, retried registry lookups.
type Enricher struct {
	client RegistryClient
	gate   QuotaGate
	log    *logger.Logger

	// sleep is injected by tests to observe the backoff schedule.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates an enricher gated by the shared quota limiter.
func New(client RegistryClient, gate QuotaGate, log *logger.Logger) *Enricher {
	return &Enricher{
		client: client,
		gate:   gate,
		log:    log,
		sleep:  sleepCtx,
	}
}

// Fetch returns the company record for a tax identifier, or nil when the
// registry has no record, the identifier is malformed, or all retry attempts
// were exhausted.
func (e *Enricher) Fetch(ctx context.Context, taxID string) *CompanyRecord {
	normalized := NormalizeTaxID(taxID)
	if len(normalized) != 14 {
		e.log.Warn("malformed tax id, skipping enrichment", "tax_id", taxID)
		return nil
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if !e.acquireSlot(ctx) {
			return nil
		}

		company, err := e.client.Fetch(ctx, normalized)
		if err == nil {
			return toRecord(company)
		}

		if errors.Is(err, registry.ErrNotFound) {
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}

		// Quota refusals, server errors, timeouts and transport failures
		// are all transient; anything permanent was handled above.
		var statusErr *registry.StatusError
		if errors.As(err, &statusErr) && !statusErr.Transient() {
			return nil
		}

		if attempt == maxAttempts {
			e.log.Warn("registry attempts exhausted", "tax_id", normalized, "error", err)
			return nil
		}

		delay := backoffBase << (attempt - 1)
		e.log.Info("registry attempt failed, backing off",
			"tax_id", normalized, "attempt", attempt, "delay", delay.String(), "error", err)
		if e.sleep(ctx, delay) != nil {
			return nil
		}
	}

	return nil
}

// acquireSlot takes a slot from the shared quota, parking the worker when
// the window is exhausted.
func (e *Enricher) acquireSlot(ctx context.Context) bool {
	allowed, err := e.gate.TryConsume(ctx)
	if err != nil {
		// A broken limiter store must not abort enrichment; proceed
		// unguarded and let the registry's own 429 answer throttle us.
		e.log.StageError("enrich.quota", err)
		return true
	}
	if allowed {
		return true
	}
	if err := e.gate.WaitUntilAvailable(ctx); err != nil {
		return false
	}
	return true
}

// NormalizeTaxID strips everything but digits from a tax identifier.
func NormalizeTaxID(taxID string) string {
	var b strings.Builder
	for _, r := range taxID {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func toRecord(company *registry.Company) *CompanyRecord {
	return &CompanyRecord{
		TaxID:               company.TaxID,
		Name:                company.Name,
		TradeName:           company.TradeName,
		ActivityCode:        company.ActivityCode,
		ActivityDescription: company.ActivityDescription,
		RegisteredCapital:   company.RegisteredCapital,
		FoundingDate:        company.FoundingDate,
		Partners:            company.Partners,
		State:               company.State,
		Region:              rules.RegionForState(company.State),
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
