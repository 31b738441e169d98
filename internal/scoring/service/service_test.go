package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"prospector_backend/internal/scoring/repository"
	"prospector_backend/internal/scoring/rules"
	"prospector_backend/internal/scoring/transport"
	"prospector_backend/platform/apperr"
	"prospector_backend/platform/logger"
)

type fakeRepo struct {
	configs map[uuid.UUID]rules.Config
	creates int

	// createErr simulates losing the single-active insert race; raceWinner
	// is what a later GetActive then sees.
	createErr  error
	raceWinner *rules.Config
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{configs: make(map[uuid.UUID]rules.Config)}
}

func (f *fakeRepo) Create(_ context.Context, params repository.CreateConfigParams) (rules.Config, error) {
	f.creates++
	if f.createErr != nil {
		return rules.Config{}, f.createErr
	}
	cfg := rules.Config{
		ID:         uuid.New(),
		Name:       params.Name,
		IsActive:   params.IsActive,
		Categories: params.Categories,
	}
	f.configs[cfg.ID] = cfg
	return cfg, nil
}

func (f *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (rules.Config, error) {
	cfg, ok := f.configs[id]
	if !ok {
		return rules.Config{}, repository.ErrNotFound
	}
	return cfg, nil
}

func (f *fakeRepo) GetActive(_ context.Context) (rules.Config, error) {
	for _, cfg := range f.configs {
		if cfg.IsActive {
			return cfg, nil
		}
	}
	if f.raceWinner != nil && f.creates > 0 {
		return *f.raceWinner, nil
	}
	return rules.Config{}, repository.ErrNotFound
}

func (f *fakeRepo) List(_ context.Context) ([]rules.Config, error) {
	out := make([]rules.Config, 0, len(f.configs))
	for _, cfg := range f.configs {
		out = append(out, cfg)
	}
	return out, nil
}

func (f *fakeRepo) Update(_ context.Context, id uuid.UUID, params repository.UpdateConfigParams) (rules.Config, error) {
	cfg, ok := f.configs[id]
	if !ok {
		return rules.Config{}, repository.ErrNotFound
	}
	cfg.Name = params.Name
	cfg.Categories = params.Categories
	f.configs[id] = cfg
	return cfg, nil
}

func (f *fakeRepo) Activate(_ context.Context, id uuid.UUID) (rules.Config, error) {
	target, ok := f.configs[id]
	if !ok {
		return rules.Config{}, repository.ErrNotFound
	}
	for other, cfg := range f.configs {
		cfg.IsActive = other == id
		f.configs[other] = cfg
	}
	target.IsActive = true
	return target, nil
}

func (f *fakeRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := f.configs[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.configs, id)
	return nil
}

type fakeEnqueuer struct {
	calls int
	err   error
}

func (f *fakeEnqueuer) EnqueueScoreRecalculation(_ context.Context) error {
	f.calls++
	return f.err
}

func TestGetActiveConfig_MaterializesDefaultOnce(t *testing.T) {
	repo := newFakeRepo()
	svc := New(repo, &fakeEnqueuer{}, logger.New("development"))

	first, err := svc.GetActiveConfig(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !first.IsActive || len(first.Categories) == 0 {
		t.Fatalf("expected an active default rule set, got %+v", first)
	}

	second, err := svc.GetActiveConfig(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.creates != 1 {
		t.Fatalf("default must be created exactly once, got %d creates", repo.creates)
	}
	if second.ID != first.ID {
		t.Fatalf("second read must return the materialized config")
	}
}

func TestActivate_SwapsSingleActiveAndSchedulesRecalc(t *testing.T) {
	repo := newFakeRepo()
	queue := &fakeEnqueuer{}
	svc := New(repo, queue, logger.New("development"))

	a, _ := repo.Create(context.Background(), repository.CreateConfigParams{Name: "a", IsActive: true, Categories: DefaultCategories()})
	b, _ := repo.Create(context.Background(), repository.CreateConfigParams{Name: "b", Categories: DefaultCategories()})

	if _, err := svc.Activate(context.Background(), b.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	active, err := repo.GetActive(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if active.ID != b.ID {
		t.Fatalf("expected %s active, got %s", b.ID, active.ID)
	}
	if repo.configs[a.ID].IsActive {
		t.Fatalf("previous active config must be deactivated")
	}
	if queue.calls != 1 {
		t.Fatalf("activation must schedule one recalculation, got %d", queue.calls)
	}
}

func TestDelete_ActiveConfigSchedulesRecalc(t *testing.T) {
	repo := newFakeRepo()
	queue := &fakeEnqueuer{}
	svc := New(repo, queue, logger.New("development"))

	cfg, _ := repo.Create(context.Background(), repository.CreateConfigParams{Name: "a", IsActive: true, Categories: DefaultCategories()})

	if err := svc.Delete(context.Background(), cfg.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := repo.configs[cfg.ID]; ok {
		t.Fatalf("config must be deleted")
	}
	if queue.calls != 1 {
		t.Fatalf("deleting the active config must schedule one recalculation, got %d", queue.calls)
	}
}

func TestDelete_InactiveConfigSkipsRecalc(t *testing.T) {
	repo := newFakeRepo()
	queue := &fakeEnqueuer{}
	svc := New(repo, queue, logger.New("development"))

	cfg, _ := repo.Create(context.Background(), repository.CreateConfigParams{Name: "a", Categories: DefaultCategories()})

	if err := svc.Delete(context.Background(), cfg.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if queue.calls != 0 {
		t.Fatalf("deleting an inactive config must not schedule a recalculation, got %d", queue.calls)
	}
}

func TestDelete_MissingConfigIsNotFound(t *testing.T) {
	repo := newFakeRepo()
	svc := New(repo, &fakeEnqueuer{}, logger.New("development"))

	err := svc.Delete(context.Background(), uuid.New())
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGetActiveConfig_LostInsertRaceFallsBackToWinner(t *testing.T) {
	repo := newFakeRepo()
	winner := rules.Config{ID: uuid.New(), Name: "Padrão", IsActive: true, Categories: DefaultCategories()}
	repo.createErr = repository.ErrActiveConflict
	repo.raceWinner = &winner
	svc := New(repo, &fakeEnqueuer{}, logger.New("development"))

	cfg, err := svc.GetActiveConfig(context.Background())
	if err != nil {
		t.Fatalf("losing the materialization race must not surface an error: %v", err)
	}
	if cfg.ID != winner.ID {
		t.Fatalf("expected the winning config, got %+v", cfg)
	}
}

func TestUpdate_BrokenQueueDoesNotFailMutation(t *testing.T) {
	repo := newFakeRepo()
	queue := &fakeEnqueuer{err: errors.New("redis down")}
	svc := New(repo, queue, logger.New("development"))

	cfg, _ := repo.Create(context.Background(), repository.CreateConfigParams{Name: "a", IsActive: true, Categories: DefaultCategories()})

	req := transport.UpdateConfigRequest{
		Name:       cfg.Name,
		Categories: transport.FromConfig(cfg).Categories,
	}
	if _, err := svc.Update(context.Background(), cfg.ID, req); err != nil {
		t.Fatalf("queue failures must not surface from config mutations: %v", err)
	}
	if queue.calls != 1 {
		t.Fatalf("expected one enqueue attempt, got %d", queue.calls)
	}
}
