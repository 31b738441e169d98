package recalc

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"

	"prospector_backend/internal/leads/repository"
	"prospector_backend/internal/scoring/rules"
	"prospector_backend/platform/logger"
)

type fakeLeads struct {
	leads   []repository.Lead
	scores  map[uuid.UUID]rules.Result
	failIDs map[uuid.UUID]bool
}

func newFakeLeads(n int) *fakeLeads {
	f := &fakeLeads{
		scores:  make(map[uuid.UUID]rules.Result),
		failIDs: make(map[uuid.UUID]bool),
	}
	for i := 0; i < n; i++ {
		f.leads = append(f.leads, repository.Lead{
			ID:            uuid.New(),
			TaxID:         "12345678000195",
			CompanyName:   "Supermercado Teste",
			ActivityCode:  "4711302",
			AddressState:  "SP",
			AddressStreet: "Rua Teste",
		})
	}
	sort.Slice(f.leads, func(i, j int) bool {
		return f.leads[i].ID.String() < f.leads[j].ID.String()
	})
	return f
}

func (f *fakeLeads) ListProcessedAfter(_ context.Context, after uuid.UUID, limit int) ([]repository.Lead, error) {
	out := make([]repository.Lead, 0, limit)
	for _, lead := range f.leads {
		if lead.ID.String() <= after.String() && after != uuid.Nil {
			continue
		}
		out = append(out, lead)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeLeads) UpdateScore(_ context.Context, id uuid.UUID, result rules.Result) error {
	if f.failIDs[id] {
		return errors.New("write refused")
	}
	f.scores[id] = result
	return nil
}

type ruleSource struct{}

func (ruleSource) GetActiveConfig(_ context.Context) (rules.Config, error) {
	return rules.Config{
		Name: "test",
		Categories: []rules.Category{
			{Kind: rules.KindActivityCode, Points: 30, Criteria: []rules.Criterion{{Value: "4711302", Points: 45}}},
		},
	}, nil
}

type recalcConfig struct {
	size  int
	pause time.Duration
}

func (c recalcConfig) GetRecalcBatchSize() int            { return c.size }
func (c recalcConfig) GetRecalcBatchPause() time.Duration { return c.pause }

func newTestCoordinator(store *fakeLeads, size int) (*Coordinator, *int) {
	c := New(store, ruleSource{}, rules.NewEngine(), recalcConfig{size: size, pause: 200 * time.Millisecond}, logger.New("development"))
	pauses := 0
	c.sleep = func(_ context.Context, _ time.Duration) error {
		pauses++
		return nil
	}
	return c, &pauses
}

func TestRun_BatchesWithPauses(t *testing.T) {
	store := newFakeLeads(7)
	c, pauses := newTestCoordinator(store, 3)

	summary, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.Scanned != 7 || summary.Updated != 7 || summary.Errors != 0 {
		t.Fatalf("expected all 7 rescored, got %+v", summary)
	}
	// 3 + 3 + 1: two full batches, each followed by a pause
	if *pauses != 2 {
		t.Fatalf("expected 2 inter-batch pauses, got %d", *pauses)
	}
	for _, lead := range store.leads {
		result, ok := store.scores[lead.ID]
		if !ok {
			t.Fatalf("lead %s was not rescored", lead.ID)
		}
		// 45 (activity) + 10 (street bonus)
		if result.Score != 55 {
			t.Fatalf("expected score 55, got %d", result.Score)
		}
	}
}

func TestRun_CountsPerLeadFailures(t *testing.T) {
	store := newFakeLeads(4)
	store.failIDs[store.leads[1].ID] = true
	c, _ := newTestCoordinator(store, 10)

	summary, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("per-lead failures must not abort the run: %v", err)
	}
	if summary.Scanned != 4 || summary.Updated != 3 || summary.Errors != 1 {
		t.Fatalf("expected scanned=4 updated=3 errors=1, got %+v", summary)
	}
}

func TestRun_IsIdempotent(t *testing.T) {
	store := newFakeLeads(5)
	c, _ := newTestCoordinator(store, 2)

	first, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	firstScores := make(map[uuid.UUID]int)
	for id, result := range store.scores {
		firstScores[id] = result.Score
	}

	second, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Updated != second.Updated {
		t.Fatalf("reruns must cover the same set: %+v vs %+v", first, second)
	}
	for id, result := range store.scores {
		if firstScores[id] != result.Score {
			t.Fatalf("rerun changed score for %s: %d -> %d", id, firstScores[id], result.Score)
		}
	}
}
