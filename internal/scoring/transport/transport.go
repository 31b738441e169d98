// Package transport defines request and response DTOs for scoring configs.
package transport

import (
	"time"

	"github.com/google/uuid"

	"prospector_backend/internal/scoring/rules"
)

// CriterionPayload is one matchable value inside a category.
type CriterionPayload struct {
	Value       string `json:"value" validate:"required,max=120"`
	Points      int    `json:"points" validate:"min=0,max=100"`
	Description string `json:"description" validate:"max=255"`
}

// CategoryPayload is one rule category of a config.
type CategoryPayload struct {
	Kind     string             `json:"kind" validate:"required,oneof=activity-code region capital founding-age address partners custom"`
	Name     string             `json:"name" validate:"max=120"`
	Points   int                `json:"points" validate:"min=0,max=100"`
	Criteria []CriterionPayload `json:"criteria" validate:"dive"`
}

// CreateConfigRequest creates a scoring config.
type CreateConfigRequest struct {
	Name        string            `json:"name" validate:"required,max=120"`
	Description string            `json:"description" validate:"max=500"`
	Activate    bool              `json:"activate"`
	Categories  []CategoryPayload `json:"categories" validate:"required,min=1,dive"`
}

// UpdateConfigRequest replaces a config's rule set.
type UpdateConfigRequest struct {
	Name        string            `json:"name" validate:"required,max=120"`
	Description string            `json:"description" validate:"max=500"`
	Categories  []CategoryPayload `json:"categories" validate:"required,min=1,dive"`
}

// ConfigResponse is the API view of a scoring config.
type ConfigResponse struct {
	ID          uuid.UUID         `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	IsActive    bool              `json:"isActive"`
	Categories  []CategoryPayload `json:"categories"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// ConfigListResponse wraps a config listing.
type ConfigListResponse struct {
	Items []ConfigResponse `json:"items"`
	Total int              `json:"total"`
}

// ToCategories maps payload categories into the domain model.
func ToCategories(payloads []CategoryPayload) []rules.Category {
	categories := make([]rules.Category, 0, len(payloads))
	for _, p := range payloads {
		criteria := make([]rules.Criterion, 0, len(p.Criteria))
		for _, c := range p.Criteria {
			criteria = append(criteria, rules.Criterion{
				Value:       c.Value,
				Points:      c.Points,
				Description: c.Description,
			})
		}
		categories = append(categories, rules.Category{
			Kind:     rules.CategoryKind(p.Kind),
			Name:     p.Name,
			Points:   p.Points,
			Criteria: criteria,
		})
	}
	return categories
}

// FromConfig maps a domain config into its API view.
func FromConfig(cfg rules.Config) ConfigResponse {
	categories := make([]CategoryPayload, 0, len(cfg.Categories))
	for _, cat := range cfg.Categories {
		criteria := make([]CriterionPayload, 0, len(cat.Criteria))
		for _, c := range cat.Criteria {
			criteria = append(criteria, CriterionPayload{
				Value:       c.Value,
				Points:      c.Points,
				Description: c.Description,
			})
		}
		categories = append(categories, CategoryPayload{
			Kind:     string(cat.Kind),
			Name:     cat.Name,
			Points:   cat.Points,
			Criteria: criteria,
		})
	}
	return ConfigResponse{
		ID:          cfg.ID,
		Name:        cfg.Name,
		Description: cfg.Description,
		IsActive:    cfg.IsActive,
		Categories:  categories,
		CreatedAt:   cfg.CreatedAt,
		UpdatedAt:   cfg.UpdatedAt,
	}
}
