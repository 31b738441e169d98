// Package repository persists leads and their processing jobs.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"prospector_backend/internal/scoring/rules"
)

var ErrNotFound = errors.New("lead not found")

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Lead statuses.
const (
	StatusAwaiting   = "awaiting"
	StatusProcessing = "processing"
	StatusProcessed  = "processed"
	StatusError      = "error"
)

// Partner is one entry of a lead's ownership list, stored as JSONB.
type Partner struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

type Lead struct {
	ID     uuid.UUID
	TaxID  string
	Status string

	// raw import attributes
	CompanyName     string
	TradeName       string
	Municipality    string
	RawPostalCode   string
	RawStreet       string
	SuggestedStreet string
	RawCoordinates  string
	StreetViewURL   string

	// validated address attributes
	AddressStreet       string
	AddressNumber       string
	AddressComplement   string
	AddressNeighborhood string
	AddressCity         string
	AddressState        string
	AddressPostalCode   string
	AddressValidated    bool
	Latitude            *float64
	Longitude           *float64

	// enrichment attributes
	ActivityCode        string
	ActivityDescription string
	RegisteredCapital   *float64
	FoundingDate        *time.Time
	Partners            []Partner

	// scoring attributes
	Score        *int
	Tier         *string
	ScoreFactors []rules.Factor
	Confidence   *int
	ScoredAt     *time.Time

	ProcessingError *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

const leadColumns = `
	id, tax_id, status,
	company_name, trade_name, municipality, raw_postal_code, raw_street,
	suggested_street, raw_coordinates, street_view_url,
	address_street, address_number, address_complement, address_neighborhood,
	address_city, address_state, address_postal_code, address_validated,
	latitude, longitude,
	activity_code, activity_description, registered_capital, founding_date, partners,
	score, tier, score_factors, confidence, scored_at,
	processing_error, created_at, updated_at`

type scannable interface {
	Scan(dest ...any) error
}

func scanLead(row scannable) (Lead, error) {
	var lead Lead
	var partners, factors []byte
	err := row.Scan(
		&lead.ID, &lead.TaxID, &lead.Status,
		&lead.CompanyName, &lead.TradeName, &lead.Municipality, &lead.RawPostalCode, &lead.RawStreet,
		&lead.SuggestedStreet, &lead.RawCoordinates, &lead.StreetViewURL,
		&lead.AddressStreet, &lead.AddressNumber, &lead.AddressComplement, &lead.AddressNeighborhood,
		&lead.AddressCity, &lead.AddressState, &lead.AddressPostalCode, &lead.AddressValidated,
		&lead.Latitude, &lead.Longitude,
		&lead.ActivityCode, &lead.ActivityDescription, &lead.RegisteredCapital, &lead.FoundingDate, &partners,
		&lead.Score, &lead.Tier, &factors, &lead.Confidence, &lead.ScoredAt,
		&lead.ProcessingError, &lead.CreatedAt, &lead.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	if err != nil {
		return Lead{}, err
	}
	if len(partners) > 0 {
		if err := json.Unmarshal(partners, &lead.Partners); err != nil {
			return Lead{}, err
		}
	}
	if len(factors) > 0 {
		if err := json.Unmarshal(factors, &lead.ScoreFactors); err != nil {
			return Lead{}, err
		}
	}
	return lead, nil
}

type CreateLeadParams struct {
	TaxID           string
	CompanyName     string
	TradeName       string
	Municipality    string
	RawPostalCode   string
	RawStreet       string
	SuggestedStreet string
	RawCoordinates  string
	StreetViewURL   string
}

// Create inserts a lead, deduplicating on tax id. The second return value
// reports whether a new row was created; on a duplicate the existing lead is
// returned untouched.
func (r *Repository) Create(ctx context.Context, params CreateLeadParams) (Lead, bool, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO leads (
			tax_id, company_name, trade_name, municipality, raw_postal_code,
			raw_street, suggested_street, raw_coordinates, street_view_url
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (tax_id) DO NOTHING
		RETURNING`+leadColumns,
		params.TaxID, params.CompanyName, params.TradeName, params.Municipality, params.RawPostalCode,
		params.RawStreet, params.SuggestedStreet, params.RawCoordinates, params.StreetViewURL,
	)

	lead, err := scanLead(row)
	if err == nil {
		return lead, true, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Lead{}, false, err
	}

	existing, err := r.GetByTaxID(ctx, params.TaxID)
	if err != nil {
		return Lead{}, false, err
	}
	return existing, false, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Lead, error) {
	row := r.pool.QueryRow(ctx, `SELECT`+leadColumns+` FROM leads WHERE id = $1`, id)
	return scanLead(row)
}

func (r *Repository) GetByTaxID(ctx context.Context, taxID string) (Lead, error) {
	row := r.pool.QueryRow(ctx, `SELECT`+leadColumns+` FROM leads WHERE tax_id = $1`, taxID)
	return scanLead(row)
}

// SetStatus moves a lead through its lifecycle. Entering a non-error status
// clears any previous processing error.
func (r *Repository) SetStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET status = $2,
		    processing_error = CASE WHEN $2 = 'error' THEN processing_error ELSE NULL END,
		    updated_at = now()
		WHERE id = $1
	`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkError records a terminal processing failure.
func (r *Repository) MarkError(ctx context.Context, id uuid.UUID, message string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET status = 'error', processing_error = $2, updated_at = now()
		WHERE id = $1
	`, id, message)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type UpdateAddressParams struct {
	Street       string
	Number       string
	Complement   string
	Neighborhood string
	City         string
	State        string
	PostalCode   string
	Validated    bool
	Latitude     *float64
	Longitude    *float64
}

func (r *Repository) UpdateAddress(ctx context.Context, id uuid.UUID, params UpdateAddressParams) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET address_street = $2, address_number = $3, address_complement = $4,
		    address_neighborhood = $5, address_city = $6, address_state = $7,
		    address_postal_code = $8, address_validated = $9,
		    latitude = $10, longitude = $11, updated_at = now()
		WHERE id = $1
	`, id,
		params.Street, params.Number, params.Complement,
		params.Neighborhood, params.City, params.State,
		params.PostalCode, params.Validated,
		params.Latitude, params.Longitude,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type UpdateEnrichmentParams struct {
	ActivityCode        string
	ActivityDescription string
	RegisteredCapital   *float64
	FoundingDate        *time.Time
	Partners            []Partner
}

func (r *Repository) UpdateEnrichment(ctx context.Context, id uuid.UUID, params UpdateEnrichmentParams) error {
	partners, err := json.Marshal(params.Partners)
	if err != nil {
		return err
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET activity_code = $2, activity_description = $3, registered_capital = $4,
		    founding_date = $5, partners = $6, updated_at = now()
		WHERE id = $1
	`, id, params.ActivityCode, params.ActivityDescription, params.RegisteredCapital,
		params.FoundingDate, partners,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateScore persists a scoring result and stamps scored_at.
func (r *Repository) UpdateScore(ctx context.Context, id uuid.UUID, result rules.Result) error {
	factors, err := json.Marshal(result.Factors)
	if err != nil {
		return err
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET score = $2, tier = $3, score_factors = $4, confidence = $5,
		    scored_at = now(), updated_at = now()
		WHERE id = $1
	`, id, result.Score, result.Tier, factors, result.Confidence)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type ListLeadsParams struct {
	Status string
	Tier   string
	State  string
	Offset int
	Limit  int
}

// List returns leads newest first with optional filters, plus the total
// count for pagination.
func (r *Repository) List(ctx context.Context, params ListLeadsParams) ([]Lead, int, error) {
	where := ` WHERE ($1 = '' OR status = $1)
		AND ($2 = '' OR tier = $2)
		AND ($3 = '' OR address_state = $3)`

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM leads`+where,
		params.Status, params.Tier, params.State).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `SELECT`+leadColumns+` FROM leads`+where+`
		ORDER BY created_at DESC, id DESC
		OFFSET $4 LIMIT $5`,
		params.Status, params.Tier, params.State, params.Offset, params.Limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := make([]Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, lead)
	}
	return items, total, rows.Err()
}

// ListProcessedAfter streams processed leads in stable id order for batch
// recalculation. Pass uuid.Nil to start from the beginning.
func (r *Repository) ListProcessedAfter(ctx context.Context, after uuid.UUID, limit int) ([]Lead, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT`+leadColumns+` FROM leads
		WHERE status = 'processed' AND id > $1
		ORDER BY id ASC
		LIMIT $2
	`, after, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Lead, 0, limit)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, lead)
	}
	return items, rows.Err()
}
