package rules

import (
	"testing"
	"time"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestEngine() *Engine {
	e := NewEngine()
	e.now = func() time.Time { return testNow }
	return e
}

func testConfig() *Config {
	return &Config{
		Name: "default",
		Categories: []Category{
			{
				Kind:   KindActivityCode,
				Name:   "Retail food",
				Points: 30,
				Criteria: []Criterion{
					{Value: "4721100", Points: 45},
					{Value: "4711301", Points: 40},
				},
			},
			{
				Kind:   KindRegion,
				Points: 20,
				Criteria: []Criterion{
					{Value: "Sudeste"},
					{Value: "Sul", Points: 15},
				},
			},
			{
				Kind:   KindCapital,
				Points: 10,
				Criteria: []Criterion{
					{Value: CapitalHigh, Points: 20},
					{Value: CapitalMedium, Points: 10},
				},
			},
			{
				Kind:   KindFoundingAge,
				Points: 10,
				Criteria: []Criterion{
					{Value: FoundingAge10Plus, Points: 15},
				},
			},
			{
				Kind:   KindPartners,
				Points: 5,
				Criteria: []Criterion{
					{Value: "true"},
				},
			},
		},
	}
}

func floatPtr(v float64) *float64 { return &v }

func timePtr(t time.Time) *time.Time { return &t }

func TestScore_ConfiguredModeMatchesCriteria(t *testing.T) {
	e := newTestEngine()
	founded := time.Date(2010, 6, 1, 0, 0, 0, 0, time.UTC)
	in := Input{
		TaxID:             "12345678000195",
		ActivityCode:      "4721100",
		RegisteredCapital: floatPtr(250_000),
		FoundingDate:      timePtr(founded),
		PartnerCount:      2,
		State:             "SP",
	}

	res := e.Score(testConfig(), in)

	// 45 (activity) + 20 (region base) + 10 (capital medium) + 15 (age 10+) + 5 (partners)
	if res.Score != 95 {
		t.Fatalf("expected score 95, got %d (factors %+v)", res.Score, res.Factors)
	}
	if res.Tier != TierHigh {
		t.Fatalf("expected high tier, got %q", res.Tier)
	}
	if len(res.Factors) != 5 {
		t.Fatalf("expected 5 factors, got %d: %+v", len(res.Factors), res.Factors)
	}
}

func TestScore_CriterionWithoutPointsUsesCategoryBase(t *testing.T) {
	e := newTestEngine()
	in := Input{ActivityCode: "9999999", State: "RJ"}

	res := e.Score(testConfig(), in)

	// only the region category matches, via its 20-point base
	if res.Score != 20 {
		t.Fatalf("expected score 20 from category base, got %d", res.Score)
	}
	if res.Tier != TierLow {
		t.Fatalf("expected low tier, got %q", res.Tier)
	}
}

func TestScore_ClampsAtHundred(t *testing.T) {
	e := newTestEngine()
	cfg := &Config{
		Name: "maxed",
		Categories: []Category{
			{Kind: KindRegion, Points: 90, Criteria: []Criterion{{Value: "Sul"}}},
			{Kind: KindPartners, Points: 90, Criteria: []Criterion{{Value: "true"}}},
		},
	}
	in := Input{ActivityCode: "0000000", State: "PR", PartnerCount: 1}

	res := e.Score(cfg, in)

	if res.Score != 100 {
		t.Fatalf("expected clamped score 100, got %d", res.Score)
	}
}

func TestScore_NilConfigScoresZero(t *testing.T) {
	e := newTestEngine()

	res := e.Score(nil, Input{ActivityCode: "4721100"})

	if res.Score != 0 || res.Tier != TierLow {
		t.Fatalf("expected zero/low result, got %d/%s", res.Score, res.Tier)
	}
	if len(res.Factors) != 1 || res.Factors[0].Name != "no-rules" {
		t.Fatalf("expected explanatory factor, got %+v", res.Factors)
	}
}

func TestScore_FallbackKeywordAndRegion(t *testing.T) {
	e := newTestEngine()
	in := Input{
		TaxID:       "12345678000195",
		CompanyName: "Supermercado Bom Preco LTDA",
		State:       "SP",
	}

	res := e.Score(testConfig(), in)

	// base 20 + region 1.5*20=30 + high keyword 25
	if res.Score != 75 {
		t.Fatalf("expected heuristic score 75, got %d (factors %+v)", res.Score, res.Factors)
	}
	if res.Tier != TierHigh {
		t.Fatalf("expected high tier at fallback threshold, got %q", res.Tier)
	}
	if res.Confidence != fallbackConfidence {
		t.Fatalf("fallback confidence must be fixed at %d, got %d", fallbackConfidence, res.Confidence)
	}
}

func TestScore_FallbackKeywordTiersAreExclusive(t *testing.T) {
	e := newTestEngine()
	// name hits both tiers; only the higher one may count
	in := Input{CompanyName: "Comercio Atacadista Santos"}

	res := e.Score(testConfig(), in)

	if res.Score != fallbackBase+fallbackKeywordHigh {
		t.Fatalf("expected base+high keyword only, got %d (factors %+v)", res.Score, res.Factors)
	}
}

func TestScore_FallbackMediumKeyword(t *testing.T) {
	e := newTestEngine()
	in := Input{CompanyName: "Padaria do Ze", State: "AM"}

	res := e.Score(testConfig(), in)

	// base 20 + region 30 (Norte matches no criteria but weight still applies) + medium 15
	if res.Score != 65 {
		t.Fatalf("expected 65, got %d (factors %+v)", res.Score, res.Factors)
	}
}

func TestScore_ConfidenceCountsAvailableAttributes(t *testing.T) {
	e := newTestEngine()
	in := Input{
		TaxID:            "12345678000195",
		ActivityCode:     "4721100",
		State:            "SP",
		AddressValidated: true,
	}

	res := e.Score(testConfig(), in)

	// 4 of 8 attributes present
	if res.Confidence != 50 {
		t.Fatalf("expected confidence 50, got %d", res.Confidence)
	}
}

func TestCapitalBucket(t *testing.T) {
	cases := []struct {
		capital float64
		want    string
	}{
		{2_000_000, CapitalHigh},
		{1_000_000, CapitalMedium},
		{500_000, CapitalMedium},
		{50_000, CapitalLow},
		{10_000, CapitalVeryLow},
		{0, CapitalVeryLow},
	}
	for _, tc := range cases {
		if got := capitalBucket(tc.capital); got != tc.want {
			t.Fatalf("capitalBucket(%v): expected %q, got %q", tc.capital, tc.want, got)
		}
	}
}

func TestFoundingAgeBucket(t *testing.T) {
	cases := []struct {
		founded time.Time
		want    string
	}{
		{testNow.AddDate(-12, 0, 0), FoundingAge10Plus},
		{testNow.AddDate(-7, 0, 0), FoundingAge5To10},
		{testNow.AddDate(-3, 0, 0), FoundingAge2To5},
		{testNow.AddDate(-1, 0, 0), FoundingAge0To2},
	}
	for _, tc := range cases {
		if got := foundingAgeBucket(tc.founded, testNow); got != tc.want {
			t.Fatalf("foundingAgeBucket(%v): expected %q, got %q", tc.founded, tc.want, got)
		}
	}
}

func TestApplyAddressBonus(t *testing.T) {
	res := Result{Score: 70, Tier: TierMedium}

	res = ApplyAddressBonus(res, true, true)

	if res.Score != 85 {
		t.Fatalf("expected 85 after +10/+5 bonus, got %d", res.Score)
	}
	if res.Tier != TierHigh {
		t.Fatalf("bonus must re-tier the result, got %q", res.Tier)
	}

	capped := ApplyAddressBonus(Result{Score: 98, Tier: TierHigh}, true, true)
	if capped.Score != 100 {
		t.Fatalf("expected clamp at 100, got %d", capped.Score)
	}
}
