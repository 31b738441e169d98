package rules

import (
	"fmt"
	"strings"
	"time"
)

// Configured-mode tier thresholds.
const (
	tierHighThreshold   = 80
	tierMediumThreshold = 50
)

// Heuristic fallback constants, used when no registry data is available.
const (
	fallbackBase            = 20
	fallbackRegionFactor    = 1.5
	fallbackRegionWeight    = 10
	fallbackKeywordHigh     = 25
	fallbackKeywordMedium   = 15
	fallbackConfidence      = 40
	fallbackHighThreshold   = 60
	fallbackMediumThreshold = 35
)

// confidenceChecklist counts 8 attributes; confidence is the filled share.
const confidenceChecklist = 8

var fallbackKeywordsHigh = []string{
	"supermercado", "hipermercado", "atacado", "atacadista", "distribuidora", "mercado",
}

var fallbackKeywordsMedium = []string{
	"comercio", "mercearia", "emporio", "padaria", "varejo", "loja",
}

// attribute extracts a category's matchable value from the input. ok reports
// whether the underlying data is present at all.
type attribute func(in Input, now time.Time) (value string, ok bool)

// categoryAttributes is the closed dispatch table from category kind to
// attribute extractor. KindCustom has no automatic attribute and is only
// meaningful to external tooling, so it is absent here.
var categoryAttributes = map[CategoryKind]attribute{
	KindActivityCode: func(in Input, _ time.Time) (string, bool) {
		return in.ActivityCode, in.ActivityCode != ""
	},
	KindRegion: func(in Input, _ time.Time) (string, bool) {
		region := in.region()
		return region, region != ""
	},
	KindCapital: func(in Input, _ time.Time) (string, bool) {
		if in.RegisteredCapital == nil {
			return "", false
		}
		return capitalBucket(*in.RegisteredCapital), true
	},
	KindFoundingAge: func(in Input, now time.Time) (string, bool) {
		if in.FoundingDate == nil {
			return "", false
		}
		return foundingAgeBucket(*in.FoundingDate, now), true
	},
	KindAddress: func(in Input, _ time.Time) (string, bool) {
		return boolValue(in.AddressValidated), true
	},
	KindPartners: func(in Input, _ time.Time) (string, bool) {
		return boolValue(in.PartnerCount > 0), true
	},
}

// Engine scores leads against a rule config, falling back to name and
// location heuristics when registry data is absent.
type Engine struct {
	now func() time.Time
}

// NewEngine creates a scoring engine.
func NewEngine() *Engine {
	return &Engine{now: time.Now}
}

// Score evaluates the input against the config. A nil or empty config yields
// a zero score with an explanatory factor rather than an error.
func (e *Engine) Score(cfg *Config, in Input) Result {
	if cfg == nil || len(cfg.Categories) == 0 {
		return Result{
			Score:      0,
			Tier:       TierLow,
			Confidence: confidence(in),
			Factors: []Factor{{
				Name:        "no-rules",
				Points:      0,
				Description: "no active scoring configuration",
			}},
		}
	}

	if !in.HasCompanyData() {
		return e.fallback(cfg, in)
	}

	now := e.now()
	total := 0
	var factors []Factor

	for _, cat := range cfg.Categories {
		extract, ok := categoryAttributes[cat.Kind]
		if !ok {
			continue
		}
		value, available := extract(in, now)
		if !available {
			continue
		}
		for _, crit := range cat.Criteria {
			if !strings.EqualFold(crit.Value, value) {
				continue
			}
			points := crit.Points
			if points == 0 {
				points = cat.Points
			}
			total += points
			factors = append(factors, Factor{
				Name:        categoryLabel(cat),
				Points:      points,
				Description: criterionLabel(cat, crit, value),
			})
		}
	}

	score := clamp(total)
	return Result{
		Score:      score,
		Tier:       tierFor(score, tierHighThreshold, tierMediumThreshold),
		Confidence: confidence(in),
		Factors:    factors,
	}
}

// ApplyAddressBonus folds address-quality bonuses into an existing result:
// +10 for a resolved street, +5 for coordinates, re-clamped and re-tiered.
func ApplyAddressBonus(res Result, hasStreet, hasCoordinates bool) Result {
	if hasStreet {
		res.Factors = append(res.Factors, Factor{
			Name:        "address-street",
			Points:      10,
			Description: "street resolved",
		})
		res.Score += 10
	}
	if hasCoordinates {
		res.Factors = append(res.Factors, Factor{
			Name:        "address-coordinates",
			Points:      5,
			Description: "coordinates resolved",
		})
		res.Score += 5
	}
	res.Score = clamp(res.Score)
	res.Tier = tierFor(res.Score, tierHighThreshold, tierMediumThreshold)
	return res
}

// fallback scores on name keywords and location only. It reuses the config's
// region weight so tuning the rule set still shifts heuristic results.
func (e *Engine) fallback(cfg *Config, in Input) Result {
	total := fallbackBase
	factors := []Factor{{
		Name:        "base",
		Points:      fallbackBase,
		Description: "no registry data, heuristic scoring",
	}}

	if region := in.region(); region != "" {
		weight := fallbackRegionWeight
		for _, cat := range cfg.Categories {
			if cat.Kind == KindRegion && cat.Points > 0 {
				weight = cat.Points
				break
			}
		}
		points := int(fallbackRegionFactor*float64(weight) + 0.5)
		total += points
		factors = append(factors, Factor{
			Name:        "region",
			Points:      points,
			Description: fmt.Sprintf("located in %s", region),
		})
	}

	name := strings.ToLower(in.CompanyName + " " + in.TradeName)
	if keyword := firstKeyword(name, fallbackKeywordsHigh); keyword != "" {
		total += fallbackKeywordHigh
		factors = append(factors, Factor{
			Name:        "name-keyword",
			Points:      fallbackKeywordHigh,
			Description: fmt.Sprintf("name contains %q", keyword),
		})
	} else if keyword := firstKeyword(name, fallbackKeywordsMedium); keyword != "" {
		total += fallbackKeywordMedium
		factors = append(factors, Factor{
			Name:        "name-keyword",
			Points:      fallbackKeywordMedium,
			Description: fmt.Sprintf("name contains %q", keyword),
		})
	}

	score := clamp(total)
	return Result{
		Score:      score,
		Tier:       tierFor(score, fallbackHighThreshold, fallbackMediumThreshold),
		Confidence: fallbackConfidence,
		Factors:    factors,
	}
}

func capitalBucket(capital float64) string {
	switch {
	case capital > 1_000_000:
		return CapitalHigh
	case capital > 100_000:
		return CapitalMedium
	case capital > 10_000:
		return CapitalLow
	default:
		return CapitalVeryLow
	}
}

func foundingAgeBucket(founded, now time.Time) string {
	years := now.Sub(founded).Hours() / (24 * 365.25)
	switch {
	case years >= 10:
		return FoundingAge10Plus
	case years >= 5:
		return FoundingAge5To10
	case years >= 2:
		return FoundingAge2To5
	default:
		return FoundingAge0To2
	}
}

// confidence is the share of the 8-attribute checklist that is filled,
// as a 0-100 percentage.
func confidence(in Input) int {
	available := 0
	checks := []bool{
		in.TaxID != "",
		in.ActivityCode != "",
		in.RegisteredCapital != nil,
		in.FoundingDate != nil,
		in.PartnerCount > 0,
		in.region() != "",
		in.AddressValidated,
		in.HasCoordinates,
	}
	for _, ok := range checks {
		if ok {
			available++
		}
	}
	return int(float64(available)/confidenceChecklist*100 + 0.5)
}

func tierFor(score, high, medium int) string {
	switch {
	case score >= high:
		return TierHigh
	case score >= medium:
		return TierMedium
	default:
		return TierLow
	}
}

func clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func boolValue(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func categoryLabel(cat Category) string {
	if cat.Name != "" {
		return cat.Name
	}
	return string(cat.Kind)
}

func criterionLabel(cat Category, crit Criterion, value string) string {
	if crit.Description != "" {
		return crit.Description
	}
	return fmt.Sprintf("%s matched %q", cat.Kind, value)
}

func firstKeyword(name string, keywords []string) string {
	for _, keyword := range keywords {
		if strings.Contains(name, keyword) {
			return keyword
		}
	}
	return ""
}
