// Package rules evaluates the configurable rule set that turns enriched
// lead attributes into a score, tier and confidence.
package rules

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CategoryKind is the closed set of rule category types. Each kind carries
// its own typed attribute extractor selected by an explicit dispatch table
// (see engine.go), never by field probing.
type CategoryKind string

const (
	KindActivityCode CategoryKind = "activity-code"
	KindRegion       CategoryKind = "region"
	KindCapital      CategoryKind = "capital"
	KindFoundingAge  CategoryKind = "founding-age"
	KindAddress      CategoryKind = "address"
	KindPartners     CategoryKind = "partners"
	KindCustom       CategoryKind = "custom"
)

// KnownKind reports whether the kind is part of the closed set.
func KnownKind(kind CategoryKind) bool {
	switch kind {
	case KindActivityCode, KindRegion, KindCapital, KindFoundingAge, KindAddress, KindPartners, KindCustom:
		return true
	}
	return false
}

// Criterion matches one attribute value and awards points.
type Criterion struct {
	Value       string `json:"value"`
	Points      int    `json:"points"`
	Description string `json:"description,omitempty"`
}

// Category groups criteria evaluated against one lead attribute. Points is
// the category's base weight: the default for criteria declared without
// points, and the weight the heuristic fallback mode scales from.
type Category struct {
	Kind     CategoryKind `json:"kind"`
	Name     string       `json:"name"`
	Points   int          `json:"points"`
	Criteria []Criterion  `json:"criteria"`
}

// Config is a versioned scoring rule set. At most one config is active at
// any time; activation is enforced atomically by the repository write path.
type Config struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	IsActive    bool       `json:"isActive"`
	Categories  []Category `json:"categories"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Validate checks category kinds and point ranges.
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("config name is required")
	}
	for i, cat := range c.Categories {
		if !KnownKind(cat.Kind) {
			return fmt.Errorf("category %d: unknown kind %q", i, cat.Kind)
		}
		if cat.Points < 0 || cat.Points > 100 {
			return fmt.Errorf("category %d: points out of range", i)
		}
		for j, crit := range cat.Criteria {
			if crit.Points < 0 || crit.Points > 100 {
				return fmt.Errorf("category %d criterion %d: points out of range", i, j)
			}
		}
	}
	return nil
}

// Capital buckets, coarsest first.
const (
	CapitalHigh    = "high"     // > 1,000,000
	CapitalMedium  = "medium"   // > 100,000
	CapitalLow     = "low"      // > 10,000
	CapitalVeryLow = "very-low" // everything else
)

// Founding-age buckets.
const (
	FoundingAge10Plus = "10+"
	FoundingAge5To10  = "5-10"
	FoundingAge2To5   = "2-5"
	FoundingAge0To2   = "0-2"
)

// Tiers.
const (
	TierLow    = "low"
	TierMedium = "medium"
	TierHigh   = "high"
)

// Input carries the lead attributes the engine evaluates. Region is derived
// from State when empty.
type Input struct {
	TaxID             string
	CompanyName       string
	TradeName         string
	ActivityCode      string
	RegisteredCapital *float64
	FoundingDate      *time.Time
	PartnerCount      int
	State             string
	Region            string
	AddressValidated  bool
	HasCoordinates    bool
}

// HasCompanyData reports whether any registry-sourced attribute is present;
// when none is, the engine falls back to heuristic mode.
func (in Input) HasCompanyData() bool {
	return in.ActivityCode != "" || in.RegisteredCapital != nil ||
		in.FoundingDate != nil || in.PartnerCount > 0
}

func (in Input) region() string {
	if in.Region != "" {
		return in.Region
	}
	return RegionForState(in.State)
}

// Factor is one line of the score breakdown.
type Factor struct {
	Name        string `json:"name"`
	Points      int    `json:"points"`
	Description string `json:"description"`
}

// Result is a complete scoring outcome.
type Result struct {
	Score      int      `json:"score"`
	Tier       string   `json:"tier"`
	Confidence int      `json:"confidence"`
	Factors    []Factor `json:"factors"`
}
