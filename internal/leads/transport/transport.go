// Package transport defines request and response DTOs for the leads API.
package transport

import (
	"time"

	"github.com/google/uuid"

	"prospector_backend/internal/leads/repository"
	"prospector_backend/internal/scoring/rules"
)

// ImportLeadPayload is one row of a lead import.
type ImportLeadPayload struct {
	TaxID           string `json:"taxId" validate:"required,min=11,max=20"`
	CompanyName     string `json:"companyName" validate:"max=255"`
	TradeName       string `json:"tradeName" validate:"max=255"`
	Municipality    string `json:"municipality" validate:"max=120"`
	PostalCode      string `json:"postalCode" validate:"max=10"`
	Street          string `json:"street" validate:"max=255"`
	SuggestedStreet string `json:"suggestedStreet" validate:"max=255"`
	Coordinates     string `json:"coordinates" validate:"max=64"`
	StreetViewURL   string `json:"streetViewUrl" validate:"max=512"`
}

// ImportRequest imports a batch of leads into the pipeline.
type ImportRequest struct {
	Leads []ImportLeadPayload `json:"leads" validate:"required,min=1,max=500,dive"`
}

// ImportResponse summarizes an import.
type ImportResponse struct {
	Total   int `json:"total"`
	Created int `json:"created"`
	Skipped int `json:"skipped"`
	Batches int `json:"batches"`
}

// ListLeadsRequest filters the lead listing.
type ListLeadsRequest struct {
	Status   string `form:"status" validate:"omitempty,oneof=awaiting processing processed error"`
	Tier     string `form:"tier" validate:"omitempty,oneof=low medium high"`
	State    string `form:"state" validate:"omitempty,len=2"`
	Page     int    `form:"page" validate:"omitempty,min=1"`
	PageSize int    `form:"pageSize" validate:"omitempty,min=1,max=100"`
}

// AddressView is the validated address block of a lead.
type AddressView struct {
	Street       string   `json:"street"`
	Number       string   `json:"number"`
	Complement   string   `json:"complement"`
	Neighborhood string   `json:"neighborhood"`
	City         string   `json:"city"`
	State        string   `json:"state"`
	PostalCode   string   `json:"postalCode"`
	Validated    bool     `json:"validated"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
}

// CompanyView is the enrichment block of a lead.
type CompanyView struct {
	ActivityCode        string               `json:"activityCode"`
	ActivityDescription string               `json:"activityDescription"`
	RegisteredCapital   *float64             `json:"registeredCapital,omitempty"`
	FoundingDate        *string              `json:"foundingDate,omitempty"`
	Partners            []repository.Partner `json:"partners,omitempty"`
}

// ScoreView is the scoring block of a lead.
type ScoreView struct {
	Score      *int       `json:"score,omitempty"`
	Tier       *string    `json:"tier,omitempty"`
	Confidence *int       `json:"confidence,omitempty"`
	ScoredAt   *time.Time `json:"scoredAt,omitempty"`
}

// LeadResponse is the API view of a lead.
type LeadResponse struct {
	ID              uuid.UUID   `json:"id"`
	TaxID           string      `json:"taxId"`
	Status          string      `json:"status"`
	CompanyName     string      `json:"companyName"`
	TradeName       string      `json:"tradeName"`
	Municipality    string      `json:"municipality"`
	StreetViewURL   string      `json:"streetViewUrl,omitempty"`
	Address         AddressView `json:"address"`
	Company         CompanyView `json:"company"`
	Scoring         ScoreView   `json:"scoring"`
	ProcessingError *string     `json:"processingError,omitempty"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
}

// LeadListResponse wraps a paginated lead listing.
type LeadListResponse struct {
	Items    []LeadResponse `json:"items"`
	Total    int            `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"pageSize"`
}

// ScoreDetailsResponse is the full score breakdown of one lead.
type ScoreDetailsResponse struct {
	LeadID     uuid.UUID      `json:"leadId"`
	Score      int            `json:"score"`
	Tier       string         `json:"tier"`
	Confidence int            `json:"confidence"`
	Factors    []rules.Factor `json:"factors"`
	ScoredAt   *time.Time     `json:"scoredAt,omitempty"`
}

// JobResponse is the API view of a processing job.
type JobResponse struct {
	ID          uuid.UUID  `json:"id"`
	LeadID      uuid.UUID  `json:"leadId"`
	Status      string     `json:"status"`
	Progress    int        `json:"progress"`
	CurrentStep string     `json:"currentStep"`
	Error       *string    `json:"error,omitempty"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	FinishedAt  *time.Time `json:"finishedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// JobStatsResponse summarizes the job table and the live queue.
type JobStatsResponse struct {
	ByStatus   map[string]int `json:"byStatus"`
	QueueDepth int            `json:"queueDepth"`
}

// StatsResponse aggregates the pipeline for the dashboard.
type StatsResponse struct {
	Total        int            `json:"total"`
	ByStatus     map[string]int `json:"byStatus"`
	ByTier       map[string]int `json:"byTier"`
	ByRegion     map[string]int `json:"byRegion"`
	AverageScore *float64       `json:"averageScore,omitempty"`
	Jobs         map[string]int `json:"jobs"`
	QueueDepth   int            `json:"queueDepth"`
}

// FromLead maps a stored lead into its API view.
func FromLead(lead repository.Lead) LeadResponse {
	resp := LeadResponse{
		ID:            lead.ID,
		TaxID:         lead.TaxID,
		Status:        lead.Status,
		CompanyName:   lead.CompanyName,
		TradeName:     lead.TradeName,
		Municipality:  lead.Municipality,
		StreetViewURL: lead.StreetViewURL,
		Address: AddressView{
			Street:       lead.AddressStreet,
			Number:       lead.AddressNumber,
			Complement:   lead.AddressComplement,
			Neighborhood: lead.AddressNeighborhood,
			City:         lead.AddressCity,
			State:        lead.AddressState,
			PostalCode:   lead.AddressPostalCode,
			Validated:    lead.AddressValidated,
			Latitude:     lead.Latitude,
			Longitude:    lead.Longitude,
		},
		Company: CompanyView{
			ActivityCode:        lead.ActivityCode,
			ActivityDescription: lead.ActivityDescription,
			RegisteredCapital:   lead.RegisteredCapital,
			Partners:            lead.Partners,
		},
		Scoring: ScoreView{
			Score:      lead.Score,
			Tier:       lead.Tier,
			Confidence: lead.Confidence,
			ScoredAt:   lead.ScoredAt,
		},
		ProcessingError: lead.ProcessingError,
		CreatedAt:       lead.CreatedAt,
		UpdatedAt:       lead.UpdatedAt,
	}
	if lead.FoundingDate != nil {
		founded := lead.FoundingDate.Format("2006-01-02")
		resp.Company.FoundingDate = &founded
	}
	return resp
}

// FromJob maps a stored processing job into its API view.
func FromJob(job repository.ProcessingJob) JobResponse {
	return JobResponse{
		ID:          job.ID,
		LeadID:      job.LeadID,
		Status:      job.Status,
		Progress:    job.Progress,
		CurrentStep: job.CurrentStep,
		Error:       job.Error,
		StartedAt:   job.StartedAt,
		FinishedAt:  job.FinishedAt,
		CreatedAt:   job.CreatedAt,
	}
}
